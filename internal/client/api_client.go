// Package client is the HTTP client for the problem API. It speaks either
// route family the server exposes and never retries: every failure goes
// straight back to the caller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"boulder-catalog/internal/domain"
)

type Style string

const (
	StyleServer    Style = "server"
	StyleFunctions Style = "functions"
)

const functionsPath = "/.netlify/functions"

var ErrNotFound = errors.New("problem not found")

// ServerError is any non-2xx answer other than 404.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Message)
}

// TransportError wraps failures to reach the server or read its answer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err means the remote tier could not serve
// the request at all, as opposed to rejecting it.
func IsUnavailable(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.StatusCode >= http.StatusInternalServerError
	}
	return false
}

type APIClient struct {
	baseURL string
	style   Style
	client  *http.Client
}

// NewAPIClient returns a client for baseURL. A zero timeout leaves requests
// bounded only by the caller's context.
func NewAPIClient(baseURL string, style Style, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		style:   style,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *APIClient) List(ctx context.Context) ([]domain.Problem, error) {
	var problems []domain.Problem
	if err := c.do(ctx, http.MethodGet, c.path("list", 0), nil, &problems); err != nil {
		return nil, err
	}
	if problems == nil {
		problems = []domain.Problem{}
	}
	return problems, nil
}

func (c *APIClient) GetByID(ctx context.Context, id int) (domain.Problem, error) {
	var problem domain.Problem
	err := c.do(ctx, http.MethodGet, c.path("get", id), nil, &problem)
	return problem, err
}

func (c *APIClient) Create(ctx context.Context, req *domain.CreateProblemRequest) (domain.Problem, error) {
	var problem domain.Problem
	err := c.do(ctx, http.MethodPost, c.path("create", 0), req, &problem)
	return problem, err
}

func (c *APIClient) Update(ctx context.Context, id int, req *domain.UpdateProblemRequest) (domain.Problem, error) {
	var problem domain.Problem
	err := c.do(ctx, http.MethodPut, c.path("update", id), req, &problem)
	return problem, err
}

func (c *APIClient) Delete(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, c.path("delete", id), nil, nil)
}

func (c *APIClient) NextID(ctx context.Context) (int, error) {
	var resp domain.NextIDResponse
	if err := c.do(ctx, http.MethodGet, c.path("next-id", 0), nil, &resp); err != nil {
		return 0, err
	}
	return resp.NextID, nil
}

func (c *APIClient) path(op string, id int) string {
	idPart := strconv.Itoa(id)

	if c.style == StyleFunctions {
		switch op {
		case "list":
			return functionsPath + "/getProblems"
		case "get":
			return functionsPath + "/getProblemById/" + idPart
		case "create":
			return functionsPath + "/createProblem"
		case "update":
			return functionsPath + "/updateProblem/" + idPart
		case "delete":
			return functionsPath + "/deleteProblem/" + idPart
		default:
			return functionsPath + "/getNextId"
		}
	}

	switch op {
	case "list", "create":
		return "/api/problems"
	case "get", "update", "delete":
		return "/api/problems/" + idPart
	default:
		return "/api/next-id"
	}
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Message string `json:"message"`
		}
		json.NewDecoder(resp.Body).Decode(&errBody)
		return &ServerError{StatusCode: resp.StatusCode, Message: errBody.Message}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}
