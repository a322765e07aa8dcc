// Package backend is the HTTP client for the hosted flow backend.
//
// Each method maps to one endpoint and performs exactly one request. Non-2xx
// responses come back as *StatusError; there is no retry.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"
)

const DefaultURL = "http://localhost:5137"

type Client struct {
	rest   *resty.Client
	logger *slog.Logger
}

// NewClient returns a client for the backend at baseURL. No client-side
// timeout is set; callers bound requests through their context.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	rest := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	return &Client{rest: rest, logger: logger}
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string // backend "error" field, when present
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: HTTP error status=%d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: HTTP error status=%d", e.Op, e.StatusCode)
}

// StatusCode extracts the HTTP status from err, if it carries one.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}

type errorBody struct {
	Error string `json:"error"`
}

type call struct {
	op     string
	method string
	path   string
	query  map[string]string
	params map[string]string
	body   any
}

// do runs one request and decodes a 2xx body into out (if non-nil).
func (c *Client) do(ctx context.Context, cl call, out any) error {
	req := c.rest.R().SetContext(ctx)
	if len(cl.query) > 0 {
		req.SetQueryParams(cl.query)
	}
	if len(cl.params) > 0 {
		req.SetPathParams(cl.params)
	}
	if cl.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(cl.body)
	}

	resp, err := req.Execute(cl.method, cl.path)
	if err != nil {
		return fmt.Errorf("%s: %w", cl.op, err)
	}

	c.logger.Debug("backend call", "op", cl.op, "method", cl.method, "path", cl.path, "status", resp.StatusCode())

	if !resp.IsSuccess() {
		se := &StatusError{Op: cl.op, StatusCode: resp.StatusCode()}
		var eb errorBody
		if json.Unmarshal(resp.Body(), &eb) == nil {
			se.Message = eb.Error
		}
		return se
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("%s: unmarshal response: %w", cl.op, err)
	}
	return nil
}

func get(op, path string, query map[string]string) call {
	return call{op: op, method: http.MethodGet, path: path, query: query}
}
