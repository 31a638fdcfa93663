// Package service contains application services for authentication and tasks.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/syncdo/internal/crypto"
	"github.com/and161185/syncdo/internal/errs"
	"github.com/and161185/syncdo/internal/limiter"
	"github.com/and161185/syncdo/internal/model"
	"github.com/and161185/syncdo/internal/repository"
	"github.com/and161185/syncdo/internal/session"
)

// Fixed test account reachable through the admin/admin login.
const (
	adminLogin    = "admin"
	adminPassword = "admin"
	AdminEmail    = "admin@syncdo.app"
	adminName     = "Administrator"
)

// AuthService defines authentication operations.
type AuthService interface {
	// Signup creates a principal with a password credential and issues a token.
	Signup(ctx context.Context, email, password, name string) (model.Tokens, error)
	// Login authenticates by email/password (rate limited per client) and issues a token.
	Login(ctx context.Context, email, password, ip string) (model.Tokens, error)
	// Resolve verifies a token and loads the principal it names.
	Resolve(ctx context.Context, token string) (*model.User, error)
	// SetCalendarCredential stores (or clears, when nil) the principal's calendar refresh credential.
	SetCalendarCredential(ctx context.Context, userID int64, credential *string) error
}

// CredentialSealer protects calendar credentials at rest.
type CredentialSealer interface {
	Seal(ownerID int64, plaintext string) (string, error)
	Open(ownerID int64, stored string) (string, error)
}

type AuthServiceImpl struct {
	users  repository.UserRepository
	tokens *session.Issuer
	lim    limiter.Limiter
	sealer CredentialSealer // nil stores credentials as given
	log    *zap.Logger
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, tokens *session.Issuer, lim limiter.Limiter, log *zap.Logger) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{users: users, tokens: tokens, lim: lim, log: log}
}

// WithSealer enables at-rest sealing of calendar credentials.
func (s *AuthServiceImpl) WithSealer(sealer CredentialSealer) *AuthServiceImpl {
	s.sealer = sealer
	return s
}

// Signup creates a new user with a salted password credential.
func (s *AuthServiceImpl) Signup(ctx context.Context, email, password, name string) (model.Tokens, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.Tokens{}, fmt.Errorf("%w: empty email/password", errs.ErrValidation)
	}
	hash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return model.Tokens{}, err
	}
	u := &model.User{Email: email, Name: strings.TrimSpace(name), PasswordHash: &hash}
	if err := s.users.Create(ctx, u); err != nil {
		return model.Tokens{}, err
	}
	return s.tokens.Issue(u)
}

// Login authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, email, password, ip string) (model.Tokens, error) {
	if isAdminLogin(email, password) {
		return s.loginAdmin(ctx)
	}

	email = strings.TrimSpace(email)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Tokens{}, err
	}
	if !allowed {
		return model.Tokens{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, err
	}
	if err != nil || u.PasswordHash == nil || !pkgcrypto.VerifyPassword(password, *u.PasswordHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.Tokens{}, errs.ErrRateLimited
		}
		// unknown email and wrong password are indistinguishable
		return model.Tokens{}, errs.ErrUnauthorized
	}

	if err := s.lim.Success(ctx, email, ipHash); err != nil {
		s.log.Warn("limiter reset failed", zap.Error(err))
	}
	return s.tokens.Issue(u)
}

func isAdminLogin(email, password string) bool {
	return email == adminLogin && password == adminPassword
}

// loginAdmin is the admin/admin test-account backdoor: it bypasses credential
// lookup and rate limiting, provisioning the fixed administrator principal on
// first use and reusing it afterwards.
func (s *AuthServiceImpl) loginAdmin(ctx context.Context) (model.Tokens, error) {
	u, err := s.users.GetByEmail(ctx, AdminEmail)
	if errors.Is(err, errs.ErrNotFound) {
		hash, herr := pkgcrypto.HashPassword(adminPassword)
		if herr != nil {
			return model.Tokens{}, herr
		}
		u = &model.User{Email: AdminEmail, Name: adminName, PasswordHash: &hash}
		err = s.users.Create(ctx, u)
		if errors.Is(err, errs.ErrAlreadyExists) {
			// concurrent first login won the insert
			u, err = s.users.GetByEmail(ctx, AdminEmail)
		}
	}
	if err != nil {
		return model.Tokens{}, err
	}
	s.log.Info("admin test account login", zap.Int64("user_id", u.ID))
	return s.tokens.Issue(u)
}

// Resolve verifies signature and expiry, then loads the referenced principal.
func (s *AuthServiceImpl) Resolve(ctx context.Context, token string) (*model.User, error) {
	p, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: principal no longer exists", errs.ErrUnauthorized)
		}
		return nil, err
	}
	if s.sealer != nil && u.CalendarCredential != nil {
		plain, err := s.sealer.Open(u.ID, *u.CalendarCredential)
		if err != nil {
			// unreadable credential: behave as unlinked, the user can relink
			s.log.Warn("calendar credential cannot be opened", zap.Int64("user_id", u.ID), zap.Error(err))
			u.CalendarCredential = nil
		} else {
			u.CalendarCredential = &plain
		}
	}
	return u, nil
}

// SetCalendarCredential rotates or clears the calendar refresh credential.
func (s *AuthServiceImpl) SetCalendarCredential(ctx context.Context, userID int64, credential *string) error {
	if userID <= 0 {
		return fmt.Errorf("%w: empty user id", errs.ErrValidation)
	}
	if credential != nil {
		c := strings.TrimSpace(*credential)
		if c == "" {
			return fmt.Errorf("%w: empty credential", errs.ErrValidation)
		}
		if s.sealer != nil {
			sealed, err := s.sealer.Seal(userID, c)
			if err != nil {
				return err
			}
			c = sealed
		}
		credential = &c
	}
	return s.users.SetCalendarCredential(ctx, userID, credential)
}
