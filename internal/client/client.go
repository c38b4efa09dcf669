// Package client provides the task mutation API used by board sessions and an
// HTTP/JSON implementation that talks to the board service's REST API.
package client

import (
	"context"

	"github.com/alfredjeanlab/boardsync/internal/model"
)

// TaskClient is the interface board sessions and the CLI use to read and
// mutate tasks. It is implemented by HTTPClient and by fakes in tests.
type TaskClient interface {
	// ListProjectTasks returns every task on a board, used for the initial load.
	ListProjectTasks(ctx context.Context, projectID string) ([]*model.Task, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	// UpdateTaskStatus persists a stage change. The returned task may be nil
	// when the service acknowledges without a representation.
	UpdateTaskStatus(ctx context.Context, id string, status model.Stage) (*model.Task, error)
	// ApproveTask moves a Done task to Closed. It is the only path into Closed.
	ApproveTask(ctx context.Context, id string) (*model.Task, error)
	Close() error
}

// UpdateTaskRequest is the body of a task update.
type UpdateTaskRequest struct {
	Status model.Stage `json:"status"`
}
