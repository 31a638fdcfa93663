package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	pkgcrypto "github.com/and161185/syncdo/internal/crypto"
	"github.com/and161185/syncdo/internal/errs"
	"github.com/and161185/syncdo/internal/limiter"
	"github.com/and161185/syncdo/internal/model"
	"github.com/and161185/syncdo/internal/repository"
	"github.com/and161185/syncdo/internal/session"
)

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]*model.User
	nextID  int64

	createErr error
	getErr    error
	creates   int
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers() *fakeUsers { return &fakeUsers{byEmail: map[string]*model.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.byEmail[u.Email]; exists {
		return errs.ErrAlreadyExists
	}
	f.creates++
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now()
	cpy := *u
	f.byEmail[u.Email] = &cpy
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) SetCalendarCredential(_ context.Context, id int64, credential *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			u.CalendarCredential = credential
			return nil
		}
	}
	return errs.ErrNotFound
}

func (f *fakeUsers) remove(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byEmail, email)
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

func newAuth(t *testing.T, users *fakeUsers, lim limiter.Limiter) *AuthServiceImpl {
	t.Helper()
	return NewAuthService(users, session.NewIssuer([]byte("secret"), time.Hour), lim, zaptest.NewLogger(t))
}

func TestAuth_Signup_ThenResolveSamePrincipal(t *testing.T) {
	t.Parallel()
	users := newFakeUsers()
	s := newAuth(t, users, &fakeLimiter{allowOK: true})
	ctx := context.Background()

	tok, err := s.Signup(ctx, "alice@x.io", "pwd", "Alice")
	require.NoError(t, err)
	require.NotEmpty(t, tok.AccessToken)
	require.Equal(t, "bearer", tok.TokenType)

	stored, err := users.GetByEmail(ctx, "alice@x.io")
	require.NoError(t, err)
	require.NotEqual(t, "pwd", *stored.PasswordHash)
	require.True(t, pkgcrypto.VerifyPassword("pwd", *stored.PasswordHash))

	u, err := s.Resolve(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, stored.ID, u.ID)
	require.Equal(t, "Alice", u.Name)
}

func TestAuth_Signup_Validation_And_Conflict(t *testing.T) {
	t.Parallel()
	users := newFakeUsers()
	s := newAuth(t, users, nil)
	ctx := context.Background()

	_, err := s.Signup(ctx, "", "pwd", "x")
	require.ErrorIs(t, err, errs.ErrValidation)
	_, err = s.Signup(ctx, "a@x.io", "", "x")
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = s.Signup(ctx, "a@x.io", "pwd", "x")
	require.NoError(t, err)
	_, err = s.Signup(ctx, "a@x.io", "pwd2", "y")
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	users.createErr = errors.New("boom")
	_, err = s.Signup(ctx, "b@x.io", "pwd", "b")
	require.Error(t, err)
}

func TestAuth_Login_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()
	users := newFakeUsers()
	lim := &fakeLimiter{allowOK: true}
	s := newAuth(t, users, lim)
	ctx := context.Background()

	_, err := s.Signup(ctx, "alice@x.io", "correct", "Alice")
	require.NoError(t, err)

	lim.allowErr = errors.New("lim-err")
	_, err = s.Login(ctx, "alice@x.io", "correct", "1.2.3.4")
	require.Error(t, err)
	lim.allowErr = nil

	lim.allowOK = false
	_, err = s.Login(ctx, "alice@x.io", "correct", "1.2.3.4")
	require.ErrorIs(t, err, errs.ErrRateLimited)
	lim.allowOK = true

	_, err = s.Login(ctx, "nope@x.io", "x", "")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	lim.failBlocked = true
	_, err = s.Login(ctx, "alice@x.io", "wrong", "")
	require.ErrorIs(t, err, errs.ErrRateLimited)
	lim.failBlocked = false

	_, err = s.Login(ctx, "alice@x.io", "wrong", "")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	users.getErr = errors.New("db down")
	_, err = s.Login(ctx, "alice@x.io", "correct", "")
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrUnauthorized)
	users.getErr = nil

	tok, err := s.Login(ctx, "alice@x.io", "correct", "127.0.0.1")
	require.NoError(t, err)
	require.True(t, tok.ExpiresAt.After(time.Now()))
	require.Equal(t, 1, lim.successCalls)
}

func TestAuth_Login_ExternalIdentityWithoutPassword(t *testing.T) {
	t.Parallel()
	users := newFakeUsers()
	s := newAuth(t, users, nil)
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &model.User{Email: "g@x.io", GoogleID: ptr("g-1")}))
	_, err := s.Login(ctx, "g@x.io", "", "")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestAuth_AdminBackdoor_ProvisionsOnceAndReuses(t *testing.T) {
	t.Parallel()
	users := newFakeUsers()
	lim := &fakeLimiter{allowOK: false}
	s := newAuth(t, users, lim)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		tok, err := s.Login(ctx, "admin", "admin", "1.2.3.4")
		require.NoError(t, err)
		u, err := s.Resolve(ctx, tok.AccessToken)
		require.NoError(t, err)
		require.Equal(t, AdminEmail, u.Email)
		require.Equal(t, "Administrator", u.Name)
		ids = append(ids, u.ID)
	}
	require.Equal(t, ids[0], ids[1])
	require.Equal(t, ids[0], ids[2])
	require.Equal(t, 1, users.creates)
	require.Zero(t, lim.allowCalls, "admin branch bypasses the limiter")

	lim.allowOK = true
	_, err := s.Login(ctx, "admin", "wrong", "")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestAuth_AdminBackdoor_ConcurrentFirstLogin(t *testing.T) {
	t.Parallel()
	users := newFakeUsers()
	s := newAuth(t, users, nil)

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Login(context.Background(), "admin", "admin", "")
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}
	require.Equal(t, 1, users.creates)
}

func TestAuth_Resolve_Failures(t *testing.T) {
	t.Parallel()
	users := newFakeUsers()
	s := newAuth(t, users, nil)
	ctx := context.Background()

	_, err := s.Resolve(ctx, "")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	_, err = s.Resolve(ctx, "garbage")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	tok, err := s.Signup(ctx, "gone@x.io", "p", "G")
	require.NoError(t, err)
	users.remove("gone@x.io")
	_, err = s.Resolve(ctx, tok.AccessToken)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	expired := NewAuthService(users,
		session.NewIssuer([]byte("secret"), time.Hour).WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }),
		nil, nil)
	require.NoError(t, users.Create(ctx, &model.User{Email: "old@x.io"}))
	u, err := users.GetByEmail(ctx, "old@x.io")
	require.NoError(t, err)
	old, err := expired.tokens.Issue(u)
	require.NoError(t, err)
	_, err = s.Resolve(ctx, old.AccessToken)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestAuth_SetCalendarCredential(t *testing.T) {
	t.Parallel()
	users := newFakeUsers()
	s := newAuth(t, users, nil)
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &model.User{Email: "c@x.io"}))
	u, _ := users.GetByEmail(ctx, "c@x.io")

	require.ErrorIs(t, s.SetCalendarCredential(ctx, 0, ptr("x")), errs.ErrValidation)
	require.ErrorIs(t, s.SetCalendarCredential(ctx, u.ID, ptr("  ")), errs.ErrValidation)

	require.NoError(t, s.SetCalendarCredential(ctx, u.ID, ptr(" 1//refresh ")))
	got, _ := users.GetByID(ctx, u.ID)
	require.Equal(t, "1//refresh", *got.CalendarCredential)

	require.NoError(t, s.SetCalendarCredential(ctx, u.ID, nil))
	got, _ = users.GetByID(ctx, u.ID)
	require.False(t, got.HasCalendarCredential())

	require.ErrorIs(t, s.SetCalendarCredential(ctx, 999, ptr("x")), errs.ErrNotFound)
}

func TestAuth_CalendarCredentialSealedAtRest(t *testing.T) {
	t.Parallel()
	users := newFakeUsers()
	sealer, err := pkgcrypto.NewSealer([]byte("secret"))
	require.NoError(t, err)
	s := newAuth(t, users, nil).WithSealer(sealer)
	ctx := context.Background()

	tok, err := s.Signup(ctx, "d@x.io", "pwd", "D")
	require.NoError(t, err)
	u, err := s.Resolve(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.False(t, u.HasCalendarCredential())

	require.NoError(t, s.SetCalendarCredential(ctx, u.ID, ptr("1//refresh")))
	stored, _ := users.GetByID(ctx, u.ID)
	require.NotEqual(t, "1//refresh", *stored.CalendarCredential)

	u, err = s.Resolve(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "1//refresh", *u.CalendarCredential)

	// a value that cannot be opened reads as unlinked
	require.NoError(t, users.SetCalendarCredential(ctx, u.ID, ptr("v1.garbage")))
	u, err = s.Resolve(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.False(t, u.HasCalendarCredential())
}
