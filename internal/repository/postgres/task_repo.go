package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/syncdo/internal/errs"
	"github.com/and161185/syncdo/internal/model"
)

// TaskRepo implements TaskRepository using PostgreSQL.
type TaskRepo struct{ db *DB }

// NewTaskRepo constructs a task repository.
func NewTaskRepo(db *DB) *TaskRepo { return &TaskRepo{db: db} }

const taskColumns = `id, user_id, title, description, due_date, priority, is_completed, created_at, sync_with_calendar, google_event_id`

// Create inserts a task owned by ownerID.
func (r *TaskRepo) Create(ctx context.Context, ownerID int64, in model.TaskInput) (*model.Task, error) {
	const q = `
INSERT INTO tasks (user_id, title, description, due_date, priority, sync_with_calendar)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + taskColumns
	prio := in.Priority
	if prio == "" {
		prio = model.PriorityMedium
	}
	row := r.db.Pool.QueryRow(ctx, q, ownerID, in.Title, in.Description, in.DueDate, string(prio), in.SyncWithCalendar)
	t, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListByOwner returns all tasks of the owner ordered by id.
func (r *TaskRepo) ListByOwner(ctx context.Context, ownerID int64) ([]model.Task, error) {
	const q = `SELECT ` + taskColumns + `
FROM tasks WHERE user_id=$1
ORDER BY id ASC`
	rows, err := r.db.Pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Get returns a single task by id within the owner's scope.
func (r *TaskRepo) Get(ctx context.Context, id, ownerID int64) (*model.Task, error) {
	const q = `SELECT ` + taskColumns + `
FROM tasks WHERE id=$1 AND user_id=$2`
	t, err := scanTask(r.db.Pool.QueryRow(ctx, q, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return t, err
}

// Update locks the row, applies the patch and writes the full record back.
func (r *TaskRepo) Update(
	ctx context.Context, id, ownerID int64, patch model.TaskPatch,
) (t *model.Task, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			t, err = nil, e
		}
	}()

	const sel = `SELECT ` + taskColumns + `
FROM tasks WHERE id=$1 AND user_id=$2 FOR UPDATE`
	const upd = `
UPDATE tasks
SET title=$3, description=$4, due_date=$5, priority=$6, is_completed=$7, sync_with_calendar=$8
WHERE id=$1 AND user_id=$2`

	t, err = scanTask(tx.QueryRow(ctx, sel, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	patch.Apply(t)
	if _, err = tx.Exec(ctx, upd, id, ownerID, t.Title, t.Description, t.DueDate, string(t.Priority), t.IsCompleted, t.SyncWithCalendar); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes a task within the owner's scope.
func (r *TaskRepo) Delete(ctx context.Context, id, ownerID int64) error {
	const q = `DELETE FROM tasks WHERE id=$1 AND user_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SetExternalRef records the calendar event id of a task.
func (r *TaskRepo) SetExternalRef(ctx context.Context, id, ownerID int64, eventID string) error {
	const q = `UPDATE tasks SET google_event_id=$3 WHERE id=$1 AND user_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, id, ownerID, eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var (
		t    model.Task
		prio string
	)
	if err := row.Scan(
		&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.DueDate, &prio,
		&t.IsCompleted, &t.CreatedAt, &t.SyncWithCalendar, &t.ExternalEventID,
	); err != nil {
		return nil, err
	}
	t.Priority = model.Priority(prio)
	return &t, nil
}
