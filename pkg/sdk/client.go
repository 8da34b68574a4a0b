package memrag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Source is an excerpt used to build an answer.
type Source struct {
	ID      string  `json:"id"`
	Display string  `json:"display"`
	Score   float32 `json:"score"`
}

// Answer is the server's reply to a question.
type Answer struct {
	SessionID string   `json:"session_id"`
	Text      string   `json:"answer"`
	Sources   []Source `json:"sources"`
}

type answerRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Answer  string `json:"answer"`
}

// Client talks to a memrag server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	obs     *observer
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("memrag: base URL required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("memrag: invalid base URL %q", baseURL)
	}

	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.apiKey,
		http:    hc,
		obs:     obs,
	}, nil
}

// Answer asks a question. An empty sessionID starts a new session; the
// returned Answer carries the session id to use for follow-ups.
func (c *Client) Answer(ctx context.Context, sessionID, query string) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("answer", start, err) }()

	err = c.do(ctx, http.MethodPost, "/v1/answer", answerRequest{SessionID: sessionID, Query: query}, &ans)
	return ans, err
}

// Sessions returns the session service.
func (c *Client) Sessions() *SessionService {
	return &SessionService{c: c}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("memrag: encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("memrag: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("memrag: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("memrag: decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || body.Code == "" {
		return &APIError{
			Status:  resp.StatusCode,
			Code:    "http_" + fmt.Sprint(resp.StatusCode),
			Message: strings.TrimSpace(string(raw)),
		}
	}
	return &APIError{
		Status:  resp.StatusCode,
		Code:    body.Code,
		Message: body.Message,
		Answer:  body.Answer,
	}
}
