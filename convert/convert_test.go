package convert

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolgate/core"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

func TestIsConvertible(t *testing.T) {
	assert.True(t, IsConvertible(docxMIME))
	assert.True(t, IsConvertible("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.False(t, IsConvertible("application/pdf"))
	assert.False(t, IsConvertible("text/plain"))
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New("  ")
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestToPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/convert", r.URL.Path)

		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()

		assert.Equal(t, "report.docx", header.Filename)

		data, _ := io.ReadAll(file)
		assert.Equal(t, []byte("docx-bytes"), data)

		w.Header().Set("Content-Type", PDFMimeType)
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	c, err := New(srv.URL + "/")
	require.NoError(t, err)

	pdf, err := c.ToPDF(context.Background(), []byte("docx-bytes"), docxMIME, "report")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), pdf)
}

func TestToPDF_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Unsupported file type", http.StatusBadRequest)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.ToPDF(context.Background(), []byte("x"), docxMIME, "a.docx")
	require.ErrorIs(t, err, core.ErrUpstream)
	assert.Contains(t, err.Error(), "Unsupported file type")
}

func TestToPDF_UnsupportedMime(t *testing.T) {
	c, err := New("http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = c.ToPDF(context.Background(), []byte("x"), "image/png", "a.png")
	assert.ErrorIs(t, err, core.ErrInvalidArguments)
}

func TestToPDF_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 32))
	}))
	defer srv.Close()

	c, err := New(srv.URL, func(o *Options) { o.MaxResponseBytes = 16 })
	require.NoError(t, err)

	_, err = c.ToPDF(context.Background(), []byte("x"), docxMIME, "a.docx")
	assert.ErrorIs(t, err, core.ErrUpstream)
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	assert.NoError(t, c.Health(context.Background()))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "report.docx", fileName("report", ".docx"))
	assert.Equal(t, "report.DOCX", fileName("report.DOCX", ".docx"))
	assert.Equal(t, "b.docx", fileName(`a\b.docx`, ".docx"))
	assert.Equal(t, "document.pptx", fileName("", ".pptx"))
}
