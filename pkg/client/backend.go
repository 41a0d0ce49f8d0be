package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/codeready-toolchain/livechat/pkg/models"
)

// Backend is the external collaborator that creates sessions and persists
// messages. The authoritative copy of every message arrives via the
// stream, not via these calls' responses.
type Backend interface {
	// StartSession creates a session and returns it with its assigned
	// identifier and initial status.
	StartSession(ctx context.Context, subject string) (*models.ChatSession, error)
	// PostMessage submits a message; fire-and-forget from the engine's
	// perspective. The local id travels with the request so the confirmed
	// copy can supersede the optimistic entry.
	PostMessage(ctx context.Context, sessionID string, req models.PostMessageRequest) error
	// RateSession records a terminal rating/feedback for the session.
	RateSession(ctx context.Context, sessionID string, rating int, feedback string) error
	// LeaveSession informs the backend the user left the session.
	LeaveSession(ctx context.Context, sessionID string) error
	// JoinSession joins the caller as the session's operator. Used by the
	// operator variant only.
	JoinSession(ctx context.Context, sessionID string) error
}

// HTTPBackend implements Backend against the livechat REST API.
//
// No request timeout is applied by the backend itself; callers own the
// context and may attach deadlines.
type HTTPBackend struct {
	baseURL string
	creds   Credentials
	httpc   *http.Client
}

// NewHTTPBackend creates a backend client for the given http(s) origin.
func NewHTTPBackend(baseURL string, creds Credentials) *HTTPBackend {
	return &HTTPBackend{
		baseURL: baseURL,
		creds:   creds,
		httpc:   &http.Client{},
	}
}

func (b *HTTPBackend) StartSession(ctx context.Context, subject string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := b.do(ctx, http.MethodPost, "/api/v1/sessions",
		models.StartSessionRequest{Subject: subject}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (b *HTTPBackend) PostMessage(ctx context.Context, sessionID string, req models.PostMessageRequest) error {
	return b.do(ctx, http.MethodPost,
		fmt.Sprintf("/api/v1/sessions/%s/messages", sessionID), req, nil)
}

func (b *HTTPBackend) RateSession(ctx context.Context, sessionID string, rating int, feedback string) error {
	return b.do(ctx, http.MethodPost,
		fmt.Sprintf("/api/v1/sessions/%s/rating", sessionID),
		models.RateSessionRequest{Rating: rating, Feedback: feedback}, nil)
}

func (b *HTTPBackend) LeaveSession(ctx context.Context, sessionID string) error {
	return b.do(ctx, http.MethodPost,
		fmt.Sprintf("/api/v1/sessions/%s/leave", sessionID), nil, nil)
}

func (b *HTTPBackend) JoinSession(ctx context.Context, sessionID string) error {
	return b.do(ctx, http.MethodPost,
		fmt.Sprintf("/api/v1/sessions/%s/admin/join", sessionID), nil, nil)
}

// do issues one JSON request and decodes the response into out (if non-nil).
func (b *HTTPBackend) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header = b.creds.header()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: unexpected status %d: %s",
			method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
