// Package upload ships finished report files to the chat server. The core
// only cares about the boolean outcome: an upload failure is logged by the
// caller and never fails report generation.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tbourn/go-attendance-backend/internal/period"
)

// Client posts a report file as multipart form data, authenticated by the
// same static token the webhook uses.
type Client struct {
	URL   string
	Token string

	// HTTPClient may be overridden in tests; nil uses a 30s-timeout default.
	HTTPClient *http.Client
}

// Upload sends the file at path together with the period it covers. The
// boolean reports whether the server accepted the upload (2xx); err carries
// the reason otherwise.
func (c *Client) Upload(ctx context.Context, path string, p period.Period) (bool, error) {
	if c.URL == "" {
		return false, fmt.Errorf("upload: no URL configured")
	}

	file, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("upload: open report: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("token", c.Token); err != nil {
		return false, err
	}
	if err := w.WriteField("period", p.Stem()); err != nil {
		return false, err
	}
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return false, err
	}
	if err := w.Close(); err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, &body)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return false, fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("upload: server returned %s", resp.Status)
	}
	return true, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}
