package calsync

import "go.uber.org/zap"

// Op is the task lifecycle event being reconciled.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Outcome classifies a reconciliation.
type Outcome int

const (
	// OutcomeSkipped: the task does not qualify (no due date, sync disabled, or no reference to remove).
	OutcomeSkipped Outcome = iota
	// OutcomeDisabled: no calendar provider is configured for the process.
	OutcomeDisabled
	// OutcomeNoCredential: the principal holds no calendar credential.
	OutcomeNoCredential
	// OutcomeSynced: the provider call succeeded.
	OutcomeSynced
	// OutcomeFailed: a provider call or the reference write-back failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDisabled:
		return "disabled"
	case OutcomeNoCredential:
		return "no_credential"
	case OutcomeSynced:
		return "synced"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reports what a reconciliation did. Err is non-nil for OutcomeFailed
// (wrapping errs.ErrSyncFailed) and OutcomeNoCredential.
type Result struct {
	Op      Op
	Outcome Outcome
	EventID string
	Err     error
}

// Fields returns structured log fields describing the result.
func (r Result) Fields() []zap.Field {
	fs := []zap.Field{
		zap.String("op", string(r.Op)),
		zap.Stringer("outcome", r.Outcome),
	}
	if r.EventID != "" {
		fs = append(fs, zap.String("event_id", r.EventID))
	}
	if r.Err != nil {
		fs = append(fs, zap.Error(r.Err))
	}
	return fs
}
