package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/syncdo/internal/calsync"
	"github.com/and161185/syncdo/internal/errs"
	"github.com/and161185/syncdo/internal/model"
	"github.com/and161185/syncdo/internal/repository"
)

// CalendarSync is the calendar reconciliation hook run after each local commit.
type CalendarSync interface {
	Created(ctx context.Context, u *model.User, t *model.Task) calsync.Result
	Updated(ctx context.Context, u *model.User, t *model.Task) calsync.Result
	Deleted(ctx context.Context, u *model.User, t *model.Task) calsync.Result
}

// TaskService defines owner-scoped task operations.
type TaskService interface {
	// Create stores a task for the principal, then mirrors it to the calendar.
	Create(ctx context.Context, u *model.User, in model.TaskInput) (*model.Task, error)
	// List returns the principal's tasks.
	List(ctx context.Context, u *model.User) ([]model.Task, error)
	// Update applies a partial update, then mirrors it to the calendar.
	Update(ctx context.Context, u *model.User, id int64, patch model.TaskPatch) (*model.Task, error)
	// Delete removes the remote event (best effort) and the local task.
	Delete(ctx context.Context, u *model.User, id int64) error
}

type TaskServiceImpl struct {
	repo repository.TaskRepository
	sync CalendarSync
	log  *zap.Logger
}

var _ TaskService = (*TaskServiceImpl)(nil)

// NewTaskService constructs TaskService.
func NewTaskService(repo repository.TaskRepository, sync CalendarSync, log *zap.Logger) *TaskServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskServiceImpl{repo: repo, sync: sync, log: log}
}

// Create validates input, commits the task and then attempts calendar sync.
func (s *TaskServiceImpl) Create(ctx context.Context, u *model.User, in model.TaskInput) (*model.Task, error) {
	if u == nil || u.ID <= 0 {
		return nil, fmt.Errorf("%w: empty principal", errs.ErrValidation)
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: empty title", errs.ErrValidation)
	}
	prio, ok := model.ParsePriority(string(in.Priority))
	if !ok {
		return nil, fmt.Errorf("%w: bad priority %q", errs.ErrValidation, in.Priority)
	}
	in.Priority = prio

	t, err := s.repo.Create(ctx, u.ID, in)
	if err != nil {
		return nil, err
	}
	s.reconcile(s.sync.Created(ctx, u, t), u, t)
	return t, nil
}

// List returns all tasks owned by the principal.
func (s *TaskServiceImpl) List(ctx context.Context, u *model.User) ([]model.Task, error) {
	if u == nil || u.ID <= 0 {
		return nil, fmt.Errorf("%w: empty principal", errs.ErrValidation)
	}
	return s.repo.ListByOwner(ctx, u.ID)
}

// Update validates the patch, commits it and then attempts calendar sync.
// Validation rules:
// - title, priority, is_completed and sync_with_calendar cannot be null
// - title cannot be blank
// - priority must be low/medium/high
func (s *TaskServiceImpl) Update(ctx context.Context, u *model.User, id int64, patch model.TaskPatch) (*model.Task, error) {
	if u == nil || u.ID <= 0 {
		return nil, fmt.Errorf("%w: empty principal", errs.ErrValidation)
	}
	if err := validatePatch(&patch); err != nil {
		return nil, err
	}

	t, err := s.repo.Update(ctx, id, u.ID, patch)
	if err != nil {
		return nil, err
	}
	s.reconcile(s.sync.Updated(ctx, u, t), u, t)
	return t, nil
}

// Delete checks ownership, removes the remote event and deletes the task
// regardless of the remote outcome.
func (s *TaskServiceImpl) Delete(ctx context.Context, u *model.User, id int64) error {
	if u == nil || u.ID <= 0 {
		return fmt.Errorf("%w: empty principal", errs.ErrValidation)
	}
	t, err := s.repo.Get(ctx, id, u.ID)
	if err != nil {
		return err
	}
	s.reconcile(s.sync.Deleted(ctx, u, t), u, t)
	return s.repo.Delete(ctx, id, u.ID)
}

// reconcile logs a sync result and discards it: calendar failures never fail
// the task operation.
func (s *TaskServiceImpl) reconcile(res calsync.Result, u *model.User, t *model.Task) {
	fields := append(res.Fields(), zap.Int64("task_id", t.ID), zap.Int64("user_id", u.ID))
	switch res.Outcome {
	case calsync.OutcomeFailed:
		s.log.Warn("calendar sync failed", fields...)
	case calsync.OutcomeSynced:
		s.log.Info("calendar synced", fields...)
	default:
		s.log.Debug("calendar sync not attempted", fields...)
	}
}

func validatePatch(p *model.TaskPatch) error {
	if p.Title.Set {
		if p.Title.Null {
			return fmt.Errorf("%w: title cannot be null", errs.ErrValidation)
		}
		p.Title.Value = strings.TrimSpace(p.Title.Value)
		if p.Title.Value == "" {
			return fmt.Errorf("%w: empty title", errs.ErrValidation)
		}
	}
	if p.Priority.Set {
		prio, ok := model.ParsePriority(string(p.Priority.Value))
		if p.Priority.Null || !ok || p.Priority.Value == "" {
			return fmt.Errorf("%w: bad priority", errs.ErrValidation)
		}
		p.Priority.Value = prio
	}
	if (p.IsCompleted.Set && p.IsCompleted.Null) || (p.SyncWithCalendar.Set && p.SyncWithCalendar.Null) {
		return fmt.Errorf("%w: flags cannot be null", errs.ErrValidation)
	}
	return nil
}
