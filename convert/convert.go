// Package convert is a client for the office document to PDF conversion
// service. The service accepts a multipart upload on POST /convert and
// answers with the PDF bytes.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path"
	"strings"
	"time"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/logging"
)

// PDFMimeType is the MIME type of every conversion result.
const PDFMimeType = "application/pdf"

var extensions = map[string]string{
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",
}

// IsConvertible reports whether mimeType is an office format the service converts.
func IsConvertible(mimeType string) bool {
	_, ok := extensions[mimeType]
	return ok
}

// Converter turns office documents into PDF.
type Converter interface {
	ToPDF(ctx context.Context, data []byte, mimeType, name string) ([]byte, error)
}

// Options configures the conversion client.
type Options struct {
	HTTPClient *http.Client
	Logger     logging.Logger
	// MaxResponseBytes caps the size of a converted document.
	MaxResponseBytes int64
}

// Client talks to the conversion service.
type Client struct {
	baseURL string
	opts    Options
}

var _ Converter = (*Client)(nil)

// New creates a client for the service at baseURL.
func New(baseURL string, optFns ...func(o *Options)) (*Client, error) {
	opts := Options{
		HTTPClient:       &http.Client{Timeout: 90 * time.Second},
		Logger:           logging.NoOpLogger{},
		MaxResponseBytes: 64 << 20,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, &core.ConfigurationError{Field: "converter.url", Reason: "required"}
	}

	return &Client{baseURL: baseURL, opts: opts}, nil
}

// ToPDF uploads data and returns the converted PDF. The uploaded file name
// always carries the extension matching mimeType since the service keys the
// conversion on it.
func (c *Client) ToPDF(ctx context.Context, data []byte, mimeType, name string) ([]byte, error) {
	ext, ok := extensions[mimeType]
	if !ok {
		return nil, &core.InvalidArgumentsError{Tool: "convert_to_pdf", Reason: fmt.Sprintf("unsupported mime type %q", mimeType)}
	}

	body, contentType, err := multipartBody(data, mimeType, fileName(name, ext))
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert", body)
	if err != nil {
		return nil, fmt.Errorf("convert: build request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)

	start := time.Now()

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, &core.UpstreamError{Op: "convert", Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxResponseBytes+1))
	if err != nil {
		return nil, &core.UpstreamError{Op: "convert", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &core.UpstreamError{
			Op:  "convert",
			Err: fmt.Errorf("conversion failed: %s: %s", resp.Status, strings.TrimSpace(string(payload))),
		}
	}

	if int64(len(payload)) > c.opts.MaxResponseBytes {
		return nil, &core.UpstreamError{Op: "convert", Err: fmt.Errorf("converted document exceeds %d bytes", c.opts.MaxResponseBytes)}
	}

	c.opts.Logger.Debug("convert.done",
		"mime_type", mimeType,
		"in_bytes", len(data),
		"out_bytes", len(payload),
		"duration", time.Since(start),
	)

	return payload, nil
}

// Health checks that the service is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("convert: build request: %w", err)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return &core.UpstreamError{Op: "convert.health", Err: err}
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &core.UpstreamError{Op: "convert.health", Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	return nil
}

func fileName(name, ext string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "document"
	}

	if !strings.EqualFold(path.Ext(name), ext) {
		name += ext
	}

	return name
}

func multipartBody(data []byte, mimeType, name string) (io.Reader, string, error) {
	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", mimeType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("convert: create form part: %w", err)
	}

	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("convert: write form part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("convert: close form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
