// Package converter is a client for the document-to-markdown conversion service.
package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kailas-cloud/memrag/internal/domain"
)

// Config holds conversion service settings.
type Config struct {
	URL                string
	Strategy           string
	EmbedModelProvider string
	Timeout            time.Duration
}

// Client uploads source documents and returns their markdown.
type Client struct {
	http     *http.Client
	url      string
	strategy string
	provider string
}

// New creates a conversion client.
func New(cfg Config) *Client {
	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		url:      cfg.URL,
		strategy: cfg.Strategy,
		provider: cfg.EmbedModelProvider,
	}
}

type convertResponse struct {
	MD string `json:"md"`
}

// Convert posts the file at path as multipart form data and returns the "md" field.
// Every failure wraps domain.ErrSourceConversion.
func (c *Client) Convert(ctx context.Context, path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open %s: %w: %w", path, domain.ErrSourceConversion, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read %s: %w: %w", path, domain.ErrSourceConversion, err)
	}
	for field, value := range map[string]string{
		"strategy":             c.strategy,
		"embed_model_provider": c.provider,
	} {
		if err := mw.WriteField(field, value); err != nil {
			return "", fmt.Errorf("write field %s: %w", field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w: %w", filepath.Base(path), domain.ErrSourceConversion, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w: %w", domain.ErrSourceConversion, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("convert %s returned %s: %s: %w",
			filepath.Base(path), resp.Status, strings.TrimSpace(string(respBody)), domain.ErrSourceConversion)
	}

	var out convertResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode response: %w: %w", domain.ErrSourceConversion, err)
	}
	if strings.TrimSpace(out.MD) == "" {
		return "", fmt.Errorf("convert %s: empty markdown: %w", filepath.Base(path), domain.ErrSourceConversion)
	}
	return out.MD, nil
}
