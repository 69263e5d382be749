// Package gateway is the REST client for the time-tracking backend.
package gateway

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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the backend's local development address.
const DefaultBaseURL = "http://localhost:5000/api"

// RequestIDHeader carries a per-request id for correlating client and server
// logs.
const RequestIDHeader = "X-Request-ID"

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the backend. Authenticated calls carry the bearer token
// from the configured token source.
type Client struct {
	base   *url.URL
	authed *http.Client
	public *http.Client
	log    zerolog.Logger
}

// New creates a client. tokens is consulted on every authenticated request,
// so logging in or out takes effect immediately.
func New(cfg Config, tokens oauth2.TokenSource, log zerolog.Logger) (*Client, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server base URL %q", raw)
	}

	log = log.With().Str("component", "gateway").Logger()
	transport := &requestLogger{next: http.DefaultTransport, log: log}

	return &Client{
		base: base,
		authed: &http.Client{
			Transport: &oauth2.Transport{Base: transport, Source: tokenSource{tokens}},
			Timeout:   cfg.Timeout,
		},
		public: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		log:    log,
	}, nil
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string { return c.base.String() }

// tokenSource marks token failures so they are reported unchanged instead
// of as network errors.
type tokenSource struct{ ts oauth2.TokenSource }

type tokenError struct{ err error }

func (e *tokenError) Error() string { return e.err.Error() }
func (e *tokenError) Unwrap() error { return e.err }

func (s tokenSource) Token() (*oauth2.Token, error) {
	if s.ts == nil {
		return nil, &tokenError{errors.New("no credentials configured")}
	}
	tok, err := s.ts.Token()
	if err != nil {
		return nil, &tokenError{err}
	}
	return tok, nil
}

// message is the envelope the backend uses for notifications and errors.
type message struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())
	return req, nil
}

// send performs the request and returns the response when it is 2xx. The
// caller owns the body.
func (c *Client) send(hc *http.Client, req *http.Request) (*http.Response, error) {
	op := req.Method + " " + strings.TrimPrefix(req.URL.Path, c.base.Path)
	resp, err := hc.Do(req)
	if err != nil {
		var terr *tokenError
		if errors.As(err, &terr) {
			return nil, terr.err
		}
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		return nil, &NetworkError{Op: op, Err: err}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return nil, &ServerError{Status: resp.StatusCode, Message: errorText(body)}
}

// do sends a JSON request and decodes a JSON answer into out.
func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	resp, err := c.send(hc, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func errorText(body []byte) string {
	var m message
	if err := json.Unmarshal(body, &m); err == nil {
		if m.Message != "" {
			return m.Message
		}
		if m.Error != "" {
			return m.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "…"
	}
	return text
}

// requestLogger logs every round trip.
type requestLogger struct {
	next http.RoundTripper
	log  zerolog.Logger
}

func (t *requestLogger) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		t.log.Warn().
			Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Str("request_id", req.Header.Get(RequestIDHeader)).
			Dur("duration", elapsed).
			Msg("Request failed")
		return nil, err
	}

	ev := t.log.Debug()
	if resp.StatusCode >= 400 {
		ev = t.log.Warn()
	}
	ev.Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Str("request_id", req.Header.Get(RequestIDHeader)).
		Dur("duration", elapsed).
		Msg("Request completed")
	return resp, nil
}
