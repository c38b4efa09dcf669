package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alfredjeanlab/boardsync/internal/model"
)

var _ TaskClient = (*HTTPClient)(nil)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	rawPath     string
	body        string
	contentType string
	auth        string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.rawPath = r.URL.RawPath
	h.contentType = r.Header.Get("Content-Type")
	h.auth = r.Header.Get("Authorization")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(t *testing.T, h http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", "tok-123")
}

func TestHTTPClient_UpdateTaskStatus(t *testing.T) {
	h := &testHandler{
		responseBody: `{"message":"updated","task":{"_id":"t1","title":"Login","status":"In Progress"}}`,
	}
	c := newTestClient(t, h)

	task, err := c.UpdateTaskStatus(context.Background(), "t1", model.StageInProgress)
	if err != nil {
		t.Fatalf("UpdateTaskStatus() error = %v", err)
	}
	if h.method != http.MethodPut {
		t.Errorf("method = %s, want PUT", h.method)
	}
	if h.path != "/api/tasks/t1" {
		t.Errorf("path = %s", h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("Content-Type = %q", h.contentType)
	}
	if h.auth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", h.auth)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(h.body), &body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if body["status"] != "In Progress" {
		t.Errorf("body status = %q", body["status"])
	}
	if task == nil || task.Status != model.StageInProgress {
		t.Errorf("task = %+v", task)
	}
}

func TestHTTPClient_UpdateTaskStatus_NoRepresentation(t *testing.T) {
	h := &testHandler{responseBody: `{"message":"Task updated successfully"}`}
	c := newTestClient(t, h)

	task, err := c.UpdateTaskStatus(context.Background(), "t1", model.StageTesting)
	if err != nil {
		t.Fatalf("UpdateTaskStatus() error = %v", err)
	}
	if task != nil {
		t.Errorf("task = %+v, want nil", task)
	}
}

func TestHTTPClient_UpdateTaskStatus_PathEscape(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNoContent}
	c := newTestClient(t, h)

	if _, err := c.UpdateTaskStatus(context.Background(), "a/b", model.StageDone); err != nil {
		t.Fatalf("UpdateTaskStatus() error = %v", err)
	}
	if h.rawPath != "/api/tasks/a%2Fb" {
		t.Errorf("rawPath = %q", h.rawPath)
	}
}

func TestHTTPClient_ListProjectTasks(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
	}{
		{"bare array", `[{"_id":"t1","status":"To Do"},{"_id":"t2","status":"Done"}]`},
		{"wrapped", `{"tasks":[{"_id":"t1","status":"To Do"},{"_id":"t2","status":"Done"}]}`},
		{"service timestamps", `[{"_id":"t1","status":"To Do","created_at":"2025-03-01T10:15:30.123456"},{"_id":"t2","status":"Done","updated_at":"2025-03-02T09:00:00","approved_date":"2025-03-02T09:30:00.000001"}]`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := &testHandler{responseBody: tc.body}
			c := newTestClient(t, h)

			tasks, err := c.ListProjectTasks(context.Background(), "p1")
			if err != nil {
				t.Fatalf("ListProjectTasks() error = %v", err)
			}
			if h.method != http.MethodGet || h.path != "/api/tasks/project/p1" {
				t.Errorf("request = %s %s", h.method, h.path)
			}
			if len(tasks) != 2 || tasks[1].Status != model.StageDone {
				t.Errorf("tasks = %+v", tasks)
			}
		})
	}
}

func TestHTTPClient_GetTask(t *testing.T) {
	h := &testHandler{responseBody: `{"_id":"t9","title":"Docs","status":"Testing","approved_by_name":""}`}
	c := newTestClient(t, h)

	task, err := c.GetTask(context.Background(), "t9")
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if task.ID != "t9" || task.Title != "Docs" {
		t.Errorf("task = %+v", task)
	}
}

func TestHTTPClient_GetTask_EmptyBody(t *testing.T) {
	h := &testHandler{responseBody: `{}`}
	c := newTestClient(t, h)

	if _, err := c.GetTask(context.Background(), "t9"); err == nil {
		t.Fatal("GetTask() error = nil for empty body")
	}
}

func TestHTTPClient_ApproveTask(t *testing.T) {
	h := &testHandler{
		responseBody: `{"task":{"_id":"t1","status":"Closed","approved_by":"u1","approved_by_name":"Ann"}}`,
	}
	c := newTestClient(t, h)

	task, err := c.ApproveTask(context.Background(), "t1")
	if err != nil {
		t.Fatalf("ApproveTask() error = %v", err)
	}
	if h.method != http.MethodPost || h.path != "/api/tasks/t1/approve" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	if task.Status != model.StageClosed || task.ApprovedByName != "Ann" {
		t.Errorf("task = %+v", task)
	}
}

func TestHTTPClient_Errors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
		wantMsg  string
	}{
		{"not found", 404, `{"detail":"Task not found"}`, KindNotFound, "Task not found"},
		{"forbidden", 403, `{"detail":"Not a project member"}`, KindForbidden, "Not a project member"},
		{"unauthorized", 401, `{"detail":"Invalid token"}`, KindForbidden, "Invalid token"},
		{"validation list", 422, `{"detail":[{"loc":["body","status"],"msg":"field required"}]}`, KindValidation, "field required"},
		{"bad request", 400, `{"error":"invalid status"}`, KindValidation, "invalid status"},
		{"server", 500, `boom`, KindServer, "boom"},
		{"teapot", 418, `{"detail":"no"}`, KindUnknown, "no"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := &testHandler{statusCode: tc.status, responseBody: tc.body}
			c := newTestClient(t, h)

			_, err := c.UpdateTaskStatus(context.Background(), "t1", model.StageDone)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tc.status {
				t.Errorf("StatusCode = %d", apiErr.StatusCode)
			}
			if apiErr.Message != tc.wantMsg {
				t.Errorf("Message = %q, want %q", apiErr.Message, tc.wantMsg)
			}
			if KindOf(err) != tc.wantKind {
				t.Errorf("KindOf() = %q, want %q", KindOf(err), tc.wantKind)
			}
		})
	}
}

func TestHTTPClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url, "")
	_, err := c.GetTask(context.Background(), "t1")
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %v, want *NetworkError", err)
	}
	if KindOf(err) != KindNetwork {
		t.Errorf("KindOf() = %q", KindOf(err))
	}
}

func TestHTTPClient_ContextCanceled(t *testing.T) {
	h := &testHandler{}
	c := newTestClient(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetTask(ctx, "t1")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestNewHTTPClient_TrimsSlash(t *testing.T) {
	c := NewHTTPClient("http://example.test///", "")
	if c.BaseURL() != "http://example.test" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
}
