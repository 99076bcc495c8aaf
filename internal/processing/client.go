// Package processing talks to the backend's post-call endpoints.
package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrBackend wraps every non-2xx response.
var ErrBackend = errors.New("backend error")

// Summary is the result of Summarize.
type Summary struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// Client calls the backend at BaseURL.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client. A nil hc uses a client with a two minute timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: hc}
}

// Upload sends the file at path and returns the stored name.
func (c *Client) Upload(ctx context.Context, path, kind string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("kind", kind); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var out struct {
		File string `json:"file"`
	}
	if err := c.do(ctx, "/upload", mw.FormDataContentType(), &body, &out); err != nil {
		return "", err
	}
	return out.File, nil
}

// Transcribe asks the backend for the text of an uploaded file.
func (c *Client) Transcribe(ctx context.Context, file string) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	if err := c.postJSON(ctx, "/transcribe", map[string]string{"file": file}, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

// Summarize returns the summary and keywords of text.
func (c *Client) Summarize(ctx context.Context, text string) (*Summary, error) {
	var out Summary
	if err := c.postJSON(ctx, "/summarize", map[string]string{"text": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, path, "application/json", bytes.NewReader(b), out)
}

func (c *Client) do(ctx context.Context, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return fmt.Errorf("%s: %w: %s", path, ErrBackend, e.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}
