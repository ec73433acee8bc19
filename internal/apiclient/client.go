// Package apiclient talks to a running chess-player over its JSON API and
// websocket feed.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/cheese-engine-player/pkg/chessdto"
)

// APIError is a non-2xx response.
type APIError struct {
	Status int
	chessdto.DomainError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chess api error: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithHTTPClient replaces the transport, e.g. with an in-memory dialer.
func WithHTTPClient(h *fasthttp.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) State(ctx context.Context) (*chessdto.SessionState, error) {
	var out chessdto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/v1/session", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Board returns the plain text board view.
func (c *Client) Board(ctx context.Context) (string, error) {
	return c.doText(ctx, "/v1/session?format=text")
}

func (c *Client) Start(ctx context.Context) (*chessdto.StartResponse, error) {
	var out chessdto.StartResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/v1/session/start", nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Select(ctx context.Context, square string) (*chessdto.SelectResponse, error) {
	var out chessdto.SelectResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/v1/session/select", chessdto.SelectRequest{Square: square}, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Promote(ctx context.Context, piece string) (*chessdto.SessionState, error) {
	return c.stateCall(ctx, "/v1/session/promote", chessdto.PromoteRequest{Piece: piece})
}

func (c *Client) Move(ctx context.Context, move string) (*chessdto.SessionState, error) {
	return c.stateCall(ctx, "/v1/session/move", chessdto.MoveRequest{Move: move})
}

func (c *Client) Undo(ctx context.Context) (*chessdto.SessionState, error) {
	return c.stateCall(ctx, "/v1/session/undo", nil)
}

func (c *Client) Flip(ctx context.Context) (*chessdto.SessionState, error) {
	return c.stateCall(ctx, "/v1/session/flip", nil)
}

func (c *Client) Reset(ctx context.Context, color string) (*chessdto.SessionState, error) {
	return c.stateCall(ctx, "/v1/session/reset", chessdto.ColorRequest{Color: color})
}

func (c *Client) Load(ctx context.Context, fen, color string) (*chessdto.SessionState, error) {
	return c.stateCall(ctx, "/v1/session/load", chessdto.LoadRequest{FEN: fen, Color: color})
}

func (c *Client) View(ctx context.Context, index int) (*chessdto.SessionState, error) {
	return c.stateCall(ctx, "/v1/session/view", chessdto.ViewRequest{Index: index})
}

func (c *Client) ExitView(ctx context.Context) (*chessdto.SessionState, error) {
	return c.stateCall(ctx, "/v1/session/view/exit", nil)
}

func (c *Client) ValidateSetup(ctx context.Context, req chessdto.SetupRequest) (*chessdto.SetupResponse, error) {
	var out chessdto.SetupResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/v1/setup", req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Games(ctx context.Context, limit int) ([]*chessdto.ChessGame, error) {
	path := "/v1/games"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out chessdto.HistoryResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out.Games, nil
}

func (c *Client) Game(ctx context.Context, id int64) (*chessdto.ChessGame, error) {
	var out chessdto.GameResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/v1/games/"+strconv.FormatInt(id, 10), nil, &out, true); err != nil {
		return nil, err
	}
	return out.Game, nil
}

func (c *Client) Profile(ctx context.Context) (*chessdto.ChessProfile, error) {
	var out chessdto.ProfileResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/v1/profile", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Profile, nil
}

func (c *Client) stateCall(ctx context.Context, path string, in any) (*chessdto.SessionState, error) {
	var out chessdto.SessionState
	if err := c.doJSON(ctx, fasthttp.MethodPost, path, in, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doText(ctx context.Context, path string) (string, error) {
	var text string
	err := c.do(ctx, fasthttp.MethodGet, path, nil, true, func(body []byte) error {
		text = string(body)
		return nil
	})
	return text, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}
	return c.do(ctx, method, path, payload, retry, func(body []byte) error {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

// do sends the request. Only idempotent calls retry; game moves must not be
// replayed after a timeout.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, retry bool, onBody func([]byte) error) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	if payload != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			lastErr = decodeAPIError(status, resp.Body())
			if !shouldRetryStatus(status) {
				return lastErr
			}
		} else {
			return onBody(resp.Body())
		}
		if attempt == attempts {
			break
		}
		if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return lastErr
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func decodeAPIError(status int, body []byte) error {
	var envelope struct {
		Error chessdto.DomainError `json:"error"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		apiErr.DomainError = envelope.Error
	} else {
		apiErr.Code = "http_" + strconv.Itoa(status)
		apiErr.Message = truncate(string(body), 512)
	}
	return apiErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
