package engine

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/toolgate/core"
)

// Sanitized is a tool result ready to be sent as a function response, plus
// the binary it carried, if any.
type Sanitized struct {
	Response map[string]any
	Blob     *core.BlobPart
}

// Sanitize normalizes a raw tool result into an object. Results carrying a
// "base64" string and a "mimeType" string are replaced by
// {"success": true, "mimeType": ...} and their bytes are returned as a blob,
// since binaries may not travel inside a function response. A payload that
// cannot be decoded yields {"success": false, "mimeType": ..., "error": ...}.
func Sanitize(raw any) Sanitized {
	resp := normalizeResult(raw)

	b64, ok := resp["base64"].(string)
	if !ok {
		return Sanitized{Response: resp}
	}

	mimeType, ok := resp["mimeType"].(string)
	if !ok {
		return Sanitized{Response: resp}
	}

	data, ok := decodeBase64(b64)
	if !ok {
		return Sanitized{Response: map[string]any{
			"success":  false,
			"mimeType": mimeType,
			"error":    "invalid base64",
		}}
	}

	return Sanitized{
		Response: map[string]any{"success": true, "mimeType": mimeType},
		Blob:     &core.BlobPart{MIMEType: mimeType, Data: data},
	}
}

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// decodeBase64 accepts padded, unpadded and URL-safe payloads as well as
// data URLs ("data:<mime>;base64,<payload>").
func decodeBase64(s string) ([]byte, bool) {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ";base64,")
		if i < 0 {
			return nil, false
		}

		s = s[i+len(";base64,"):]
	}

	for _, enc := range base64Encodings {
		if data, err := enc.DecodeString(s); err == nil {
			return data, true
		}
	}

	return nil, false
}

// normalizeResult converts any JSON-serializable value into a map. Values
// that are not objects are wrapped as {"result": v}.
func normalizeResult(raw any) map[string]any {
	if m, ok := raw.(map[string]any); ok && m != nil {
		return m
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return map[string]any{"error": fmt.Sprintf("result is not serializable: %v", err)}
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err == nil && obj != nil {
		return obj
	}

	var v any
	_ = json.Unmarshal(data, &v)

	return map[string]any{"result": v}
}
