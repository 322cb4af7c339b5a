// Package client talks to the Organic Hub API and keeps the storefront
// usable when the API cannot be reached. Session, guest cart, wishlist and
// offline orders live in a localstore.Store.
package client

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

	"go.uber.org/zap"

	"organic-hub/pkg/localstore"
)

const maxResponseBody = 4 << 20

type Config struct {
	// BaseURL includes the /api prefix, e.g. http://localhost:8080/api.
	BaseURL string
	Timeout time.Duration

	// Used when pricing orders placed offline.
	FreeShippingThreshold float64
	ShippingFee           float64

	// OnUnauthorized runs after a 401 has cleared the stored session.
	OnUnauthorized func()
}

type Client struct {
	baseURL string
	http    *http.Client
	store   *localstore.Store
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

func New(cfg Config, store *localstore.Store, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		store:   store,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d message=%s", e.Status, e.Message)
}

// NetworkError means the request never got an answer. It is the only
// error that sends the client down a local fallback path.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// StatusOf returns the HTTP status of an APIError, or 0.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers http.Header
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// demo tokens are minted locally and mean nothing to the API
	token := c.store.GetString(localstore.KeyToken)
	authed := token != "" && !IsDemoToken(token)
	if authed {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range r.headers {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &NetworkError{Op: r.method + " " + r.path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &NetworkError{Op: r.method + " " + r.path, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized && authed {
		c.clearSession()
		if c.cfg.OnUnauthorized != nil {
			c.cfg.OnUnauthorized()
		}
	}
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

func errorMessage(raw []byte, fallback string) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	return fallback
}

func (c *Client) clearSession() {
	if err := c.store.Remove(localstore.KeyToken, localstore.KeyUser); err != nil {
		c.logger.Warn("failed to clear session", zap.Error(err))
	}
}
