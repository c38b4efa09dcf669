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

	"github.com/alfredjeanlab/boardsync/internal/model"
)

// DefaultTimeout bounds a single API request.
const DefaultTimeout = 15 * time.Second

// HTTPClient implements TaskClient using the board service's REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8000"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// BaseURL returns the normalized API base URL.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) ListProjectTasks(ctx context.Context, projectID string) ([]*model.Task, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/api/tasks/project/"+url.PathEscape(projectID), nil, &raw); err != nil {
		return nil, err
	}
	return decodeTaskList(raw)
}

func (c *HTTPClient) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &raw); err != nil {
		return nil, err
	}
	task, err := decodeTask(raw)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("decoding response: no task in body")
	}
	return task, nil
}

func (c *HTTPClient) UpdateTaskStatus(ctx context.Context, id string, status model.Stage) (*model.Task, error) {
	var raw json.RawMessage
	body := &UpdateTaskRequest{Status: status}
	if err := c.doJSON(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(id), body, &raw); err != nil {
		return nil, err
	}
	return decodeTask(raw)
}

func (c *HTTPClient) ApproveTask(ctx context.Context, id string) (*model.Task, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(id)+"/approve", nil, &raw); err != nil {
		return nil, err
	}
	return decodeTask(raw)
}

// --- response shapes ---

// decodeTaskList accepts either a bare array or an object with a "tasks" key.
func decodeTaskList(raw json.RawMessage) ([]*model.Task, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	var tasks []*model.Task
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &tasks); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		return tasks, nil
	}
	var wrapped struct {
		Tasks []*model.Task `json:"tasks"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return wrapped.Tasks, nil
}

// decodeTask accepts either a bare task or an object with a "task" key. It
// returns nil when the body carries no task.
func decodeTask(raw json.RawMessage) (*model.Task, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil
	}
	var wrapped struct {
		Task *model.Task `json:"task"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if wrapped.Task != nil {
		return wrapped.Task, nil
	}
	var task model.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if task.ID == "" {
		return nil, nil
	}
	return &task, nil
}

// --- internal helpers ---

// ErrorKind classifies a failed API call.
type ErrorKind string

const (
	KindNetwork    ErrorKind = "network"
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindForbidden  ErrorKind = "forbidden"
	KindServer     ErrorKind = "server"
	KindUnknown    ErrorKind = "unknown"
)

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Kind maps the status code onto an ErrorKind.
func (e *APIError) Kind() ErrorKind {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return KindNotFound
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return KindForbidden
	case e.StatusCode == http.StatusBadRequest, e.StatusCode == http.StatusConflict,
		e.StatusCode == http.StatusUnprocessableEntity:
		return KindValidation
	case e.StatusCode >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// NetworkError wraps a failure to reach the service at all.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// KindOf classifies any error returned by HTTPClient.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind()
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	return KindUnknown
}

// errorMessage extracts a human-readable message from an error body. The
// service answers {"detail": "..."}; validation failures carry a list of
// {"msg": "..."} objects under detail instead.
func errorMessage(body []byte) string {
	var resp struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if json.Unmarshal(body, &resp) != nil {
		return strings.TrimSpace(string(body))
	}
	if len(resp.Detail) > 0 {
		var s string
		if json.Unmarshal(resp.Detail, &s) == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(resp.Detail, &items) == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	if resp.Error != "" {
		return resp.Error
	}
	return strings.TrimSpace(string(body))
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: "reading response", Err: err}
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
