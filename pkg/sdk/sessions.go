package memrag

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Turn is one entry of a session history. Role is "user", "assistant"
// or "system" for a summary of older turns.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the stored history of a conversation.
type Session struct {
	SessionID string `json:"session_id"`
	History   []Turn `json:"history"`
}

// SessionService provides access to conversation sessions.
type SessionService struct {
	c *Client
}

// Get returns the history of a session.
func (s *SessionService) Get(ctx context.Context, id string) (sess Session, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("session_get", start, err) }()

	err = s.c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(id), nil, &sess)
	return sess, err
}

// Delete removes a session and its history.
func (s *SessionService) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("session_delete", start, err) }()

	return s.c.do(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(id), nil, nil)
}
