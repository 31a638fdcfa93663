// Package calsync mirrors task lifecycle events onto an external calendar.
//
// Synchronization is best effort and at most once: the local task mutation is
// already committed when the engine runs, every provider call is attempted a
// single time, and the outcome is reported as a Result instead of an error so
// that callers log it and move on. The only state the engine ever writes back
// is the external event id of a task.
package calsync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/syncdo/internal/calendar"
	"github.com/and161185/syncdo/internal/errs"
	"github.com/and161185/syncdo/internal/model"
)

// DefaultTimeout bounds a single reconciliation, provider round trips included.
const DefaultTimeout = 10 * time.Second

// RefWriter persists the external event id of a task.
type RefWriter interface {
	SetExternalRef(ctx context.Context, id, ownerID int64, eventID string) error
}

// Observer receives one notification per reconciliation.
type Observer interface {
	ObserveSync(op Op, outcome Outcome, d time.Duration)
}

// Config holds engine settings.
type Config struct {
	CalendarID string
	Timeout    time.Duration
}

// Engine reconciles task mutations with the remote calendar.
type Engine struct {
	connector calendar.Connector
	refs      RefWriter
	obs       Observer
	cfg       Config
	log       *zap.Logger
}

// New constructs an Engine. A nil connector disables synchronization.
func New(connector calendar.Connector, refs RefWriter, obs Observer, cfg Config, log *zap.Logger) *Engine {
	if cfg.CalendarID == "" {
		cfg.CalendarID = calendar.DefaultCalendarID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{connector: connector, refs: refs, obs: obs, cfg: cfg, log: log}
}

// Created reconciles a newly created task. On success the task's
// ExternalEventID is set in place and persisted.
func (e *Engine) Created(ctx context.Context, u *model.User, t *model.Task) Result {
	return e.run(ctx, OpCreate, func(ctx context.Context) Result {
		return e.create(ctx, OpCreate, u, t)
	})
}

// Updated reconciles an updated task: linked tasks are patched, unlinked tasks
// that now qualify are created remotely.
func (e *Engine) Updated(ctx context.Context, u *model.User, t *model.Task) Result {
	if !t.HasExternalRef() {
		return e.run(ctx, OpUpdate, func(ctx context.Context) Result {
			return e.create(ctx, OpUpdate, u, t)
		})
	}
	return e.run(ctx, OpUpdate, func(ctx context.Context) Result {
		return e.patch(ctx, u, t)
	})
}

// Deleted removes the remote counterpart of a task. It does not depend on,
// nor influence, the local delete.
func (e *Engine) Deleted(ctx context.Context, u *model.User, t *model.Task) Result {
	return e.run(ctx, OpDelete, func(ctx context.Context) Result {
		if !t.HasExternalRef() {
			return Result{Outcome: OutcomeSkipped}
		}
		p, res, ok := e.provider(ctx, u)
		if !ok {
			return res
		}
		if err := p.Delete(ctx, e.cfg.CalendarID, *t.ExternalEventID); err != nil {
			return failed(err)
		}
		return Result{Outcome: OutcomeSynced, EventID: *t.ExternalEventID}
	})
}

func (e *Engine) create(ctx context.Context, op Op, u *model.User, t *model.Task) Result {
	if !t.SyncWithCalendar || t.DueDate == nil {
		return Result{Outcome: OutcomeSkipped}
	}
	p, res, ok := e.provider(ctx, u)
	if !ok {
		return res
	}

	id, err := p.Insert(ctx, e.cfg.CalendarID, eventFor(t))
	if err != nil {
		return failed(err)
	}
	if err := e.refs.SetExternalRef(ctx, t.ID, t.OwnerID, id); err != nil {
		e.log.Warn("calendar event created but reference not stored",
			zap.String("op", string(op)),
			zap.Int64("task_id", t.ID),
			zap.String("event_id", id),
			zap.Error(err),
		)
		r := failed(err)
		r.EventID = id
		return r
	}
	t.ExternalEventID = &id
	return Result{Outcome: OutcomeSynced, EventID: id}
}

func (e *Engine) patch(ctx context.Context, u *model.User, t *model.Task) Result {
	p, res, ok := e.provider(ctx, u)
	if !ok {
		return res
	}
	ev := eventFor(t)
	ev.Status = calendar.StatusConfirmed
	if t.IsCompleted {
		ev.Status = calendar.StatusCancelled
	}
	if err := p.Patch(ctx, e.cfg.CalendarID, *t.ExternalEventID, ev); err != nil {
		return failed(err)
	}
	return Result{Outcome: OutcomeSynced, EventID: *t.ExternalEventID}
}

// provider resolves the principal's calendar credential into a Provider.
func (e *Engine) provider(ctx context.Context, u *model.User) (calendar.Provider, Result, bool) {
	if e.connector == nil {
		return nil, Result{Outcome: OutcomeDisabled}, false
	}
	if !u.HasCalendarCredential() {
		return nil, Result{Outcome: OutcomeNoCredential, Err: errs.ErrNoCalendarCredential}, false
	}
	p, err := e.connector.Connect(ctx, *u.CalendarCredential)
	if err != nil {
		return nil, failed(err), false
	}
	return p, Result{}, true
}

// run detaches the reconciliation from the caller's cancellation and bounds it
// by the engine timeout.
func (e *Engine) run(ctx context.Context, op Op, fn func(context.Context) Result) Result {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	res := fn(ctx)
	res.Op = op
	if e.obs != nil {
		e.obs.ObserveSync(op, res.Outcome, time.Since(start))
	}
	return res
}

// eventFor builds a zero-duration event at the due timestamp.
func eventFor(t *model.Task) calendar.Event {
	ev := calendar.Event{Summary: t.Title}
	if t.Description != nil {
		ev.Description = *t.Description
	}
	if t.DueDate != nil {
		due := t.DueDate.UTC()
		ev.Start, ev.End = &due, &due
	}
	return ev
}

func failed(err error) Result {
	return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("%w: %w", errs.ErrSyncFailed, err)}
}
