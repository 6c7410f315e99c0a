// Package backend is the HTTP client for the quiz platform's admin API.
// The backend is the authority for every record the console shows.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/jrsteele09/quiz-admin/internal/config"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, hc *http.Client) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		http:    hc,
	}
}

// NewHTTPClient builds the client used for backend calls. When client
// credentials are configured every request carries a bearer token obtained
// with the OAuth2 client-credentials grant.
func NewHTTPClient(ctx context.Context, cfg config.BackendConfig) *http.Client {
	base := &http.Client{Timeout: cfg.GetBackendTimeout()}

	id, secret, tokenURL := cfg.GetBackendClientID(), cfg.GetBackendClientSecret(), cfg.GetBackendTokenURL()
	if id == "" || secret == "" || tokenURL == "" {
		return base
	}

	cc := clientcredentials.Config{
		ClientID:     id,
		ClientSecret: secret,
		TokenURL:     tokenURL,
	}
	hc := cc.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	hc.Timeout = cfg.GetBackendTimeout()
	return hc
}

// APIError is a non-success reply from the backend. Message is the backend's
// own error text when it sent one.
type APIError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// envelope is the common reply shape: {success, message, error}.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// doJSON sends req (if non-nil) as JSON and decodes the reply into resp.
// Any non-2xx status becomes an *APIError carrying the body's error text,
// or "Request failed with status code N" when there is none.
func (c *Client) doJSON(ctx context.Context, method, path string, req any, resp any) error {
	var body io.Reader
	if req != nil {
		b, err := json.Marshal(req)
		if err != nil {
			return errors.Wrapf(err, "[Client.doJSON] marshal %s %s", method, path)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if req != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	rsp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(rsp.Body, 1<<20))

	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		var env envelope
		_ = json.Unmarshal(raw, &env) // tolerate non-JSON error bodies
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("Request failed with status code %d", rsp.StatusCode)
		}
		return &APIError{Method: method, Path: path, Code: rsp.StatusCode, Message: msg}
	}

	if resp != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, resp); err != nil {
			return errors.Wrapf(err, "[Client.doJSON] decode %s %s", method, path)
		}
	}
	return nil
}

// rejected turns a 2xx reply with success=false into an *APIError.
func rejected(method, path string, env envelope, fallback string) error {
	msg := env.Error
	if msg == "" {
		msg = env.Message
	}
	if msg == "" {
		msg = fallback
	}
	return &APIError{Method: method, Path: path, Code: http.StatusOK, Message: msg}
}
