package repository

import (
	"context"

	"github.com/and161185/syncdo/internal/model"
)

// TaskRepository owns task records. Every call is scoped by owner: a task
// belonging to another principal is reported as errs.ErrNotFound.
type TaskRepository interface {
	// Create inserts a task for owner and returns the stored record.
	Create(ctx context.Context, ownerID int64, in model.TaskInput) (*model.Task, error)
	// ListByOwner returns all tasks of owner ordered by id.
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Task, error)
	// Get returns a single task.
	Get(ctx context.Context, id, ownerID int64) (*model.Task, error)
	// Update applies the present fields of patch and returns the stored record.
	Update(ctx context.Context, id, ownerID int64, patch model.TaskPatch) (*model.Task, error)
	// Delete removes a task.
	Delete(ctx context.Context, id, ownerID int64) error
	// SetExternalRef records the calendar event id of a task; last writer wins.
	SetExternalRef(ctx context.Context, id, ownerID int64, eventID string) error
}
