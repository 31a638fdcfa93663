// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/syncdo/internal/model"
)

// UserRepository is the credential store: principals, password credentials
// and optional calendar refresh credentials.
type UserRepository interface {
	// Create inserts a new user and fills in ID and CreatedAt.
	// Returns errs.ErrAlreadyExists when the email is taken.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// SetCalendarCredential stores (or clears, when nil) the calendar refresh credential.
	SetCalendarCredential(ctx context.Context, id int64, credential *string) error
}
