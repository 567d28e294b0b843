package engine

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	raw := []byte("\x89PNG\xfb")
	png := base64.StdEncoding.EncodeToString(raw)
	ack := map[string]any{"success": true, "mimeType": "image/png"}

	tests := []struct {
		name string
		raw  any
		want map[string]any
		blob bool
	}{
		{"object passes through", map[string]any{"ok": true}, map[string]any{"ok": true}, false},
		{"string is wrapped", "hello", map[string]any{"result": "hello"}, false},
		{"number is wrapped", 42, map[string]any{"result": float64(42)}, false},
		{"nil is wrapped", nil, map[string]any{"result": nil}, false},
		{"slice is wrapped", []string{"a"}, map[string]any{"result": []any{"a"}}, false},
		{"struct becomes object", struct {
			Name string `json:"name"`
		}{"x"}, map[string]any{"name": "x"}, false},
		{"binary is extracted", map[string]any{"base64": png, "mimeType": "image/png", "size": 5},
			ack, true},
		{"unpadded base64", map[string]any{"base64": base64.RawStdEncoding.EncodeToString(raw), "mimeType": "image/png"},
			ack, true},
		{"url-safe base64", map[string]any{"base64": base64.URLEncoding.EncodeToString(raw), "mimeType": "image/png"},
			ack, true},
		{"data url", map[string]any{"base64": "data:image/png;base64," + png, "mimeType": "image/png"},
			ack, true},
		{"binary without mime type is kept", map[string]any{"base64": png},
			map[string]any{"base64": png}, false},
		{"undecodable base64 is not echoed", map[string]any{"base64": "%%%", "mimeType": "image/png"},
			map[string]any{"success": false, "mimeType": "image/png", "error": "invalid base64"}, false},
		{"data url without base64 marker", map[string]any{"base64": "data:image/png,abc", "mimeType": "image/png"},
			map[string]any{"success": false, "mimeType": "image/png", "error": "invalid base64"}, false},
		{"unserializable value", make(chan int), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.raw)

			if tt.want == nil {
				assert.Contains(t, got.Response, "error")
				return
			}

			assert.Equal(t, tt.want, got.Response)

			if !tt.blob {
				assert.Nil(t, got.Blob)
				return
			}

			require.NotNil(t, got.Blob)
			assert.Equal(t, "image/png", got.Blob.MIMEType)
			assert.Equal(t, raw, got.Blob.Data)
		})
	}
}
