package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/go-contacts-api/internal/auth"
	"github.com/redmonkez12/go-contacts-api/internal/config"
	"github.com/redmonkez12/go-contacts-api/internal/contact"
	"github.com/redmonkez12/go-contacts-api/internal/email"
	"github.com/redmonkez12/go-contacts-api/internal/logging"
	"github.com/redmonkez12/go-contacts-api/internal/password"
	"github.com/redmonkez12/go-contacts-api/internal/ratelimit"
	"github.com/redmonkez12/go-contacts-api/internal/token"
	"github.com/redmonkez12/go-contacts-api/internal/user"
)

// singleUserStore knows exactly one confirmed account
type singleUserStore struct {
	u *user.User
}

func (s *singleUserStore) FindByEmail(_ context.Context, addr string) (*user.User, error) {
	if addr != s.u.Email {
		return nil, user.ErrNotFound
	}
	cp := *s.u
	return &cp, nil
}

func (s *singleUserStore) Create(context.Context, user.NewUser) (*user.User, error) {
	return nil, user.ErrDuplicateEmail
}

func (s *singleUserStore) UpdateRefreshToken(context.Context, int64, *string) error { return nil }

func (s *singleUserStore) SwapRefreshToken(context.Context, int64, string, string) (bool, error) {
	return false, nil
}

func (s *singleUserStore) SetConfirmed(context.Context, int64) error { return nil }

type discardMailer struct{}

func (discardMailer) Enqueue(email.Message) error { return nil }

// emptyContacts is a contact.Store with no rows
type emptyContacts struct{}

func (emptyContacts) List(context.Context, int64, int, int) ([]contact.Contact, error) {
	return []contact.Contact{}, nil
}
func (emptyContacts) ListByName(context.Context, int64, string, int, int) ([]contact.Contact, error) {
	return []contact.Contact{}, nil
}
func (emptyContacts) ListBySurname(context.Context, int64, string, int, int) ([]contact.Contact, error) {
	return []contact.Contact{}, nil
}
func (emptyContacts) ListUpcomingBirthdays(context.Context, int64, time.Time, int, int, int) ([]contact.Contact, error) {
	return []contact.Contact{}, nil
}
func (emptyContacts) Get(context.Context, int64, int64) (*contact.Contact, error) {
	return nil, contact.ErrNotFound
}
func (emptyContacts) GetByEmail(context.Context, int64, string) (*contact.Contact, error) {
	return nil, contact.ErrNotFound
}
func (emptyContacts) Create(context.Context, int64, contact.Input, time.Time) (*contact.Contact, error) {
	return nil, errors.New("read only")
}
func (emptyContacts) Update(context.Context, int64, int64, contact.Input, time.Time) (*contact.Contact, error) {
	return nil, contact.ErrNotFound
}
func (emptyContacts) Delete(context.Context, int64, int64) error { return contact.ErrNotFound }

func newTestRouter(t *testing.T, health func(context.Context) error) (http.Handler, string) {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Env: "prod"},
		RateLimit: config.RateLimitConfig{
			ContactsListLimit:  10,
			ContactsListWindow: time.Minute,
		},
	}
	logger := logging.NewLoggerWithWriter(io.Discard, false)

	tokens, err := token.NewService(token.Config{
		Secret:          []byte("router-test-secret"),
		Algorithm:       token.AlgHS256,
		AccessTTL:       time.Minute,
		RefreshTTL:      time.Hour,
		ConfirmationTTL: time.Hour,
	})
	require.NoError(t, err)

	store := &singleUserStore{u: &user.User{ID: 1, Username: "alice", Email: "alice@example.com", Confirmed: true}}
	hasher := password.NewHasherWithParams(password.Params{Time: 1, Memory: 1024, Threads: 1})
	authService := auth.NewService(store, hasher, tokens, discardMailer{}, logger)
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore())

	router := NewRouter(cfg, Handlers{
		Auth:           auth.NewHandler(authService, limiter, "http://localhost:8000"),
		AuthMiddleware: auth.NewMiddleware(authService),
		Users:          user.NewHandler(nil, nil),
		Contacts:       contact.NewHandler(emptyContacts{}),
		Limiter:        limiter,
		Health:         health,
	}, logger)

	access, err := tokens.IssueAccess("alice@example.com")
	require.NoError(t, err)
	return router, access
}

func get(h http.Handler, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthchecker(t *testing.T) {
	router, _ := newTestRouter(t, func(context.Context) error { return nil })

	rec := get(router, "/api/healthchecker", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Welcome to Contacts API!"}`, rec.Body.String())

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))
}

func TestHealthchecker_DatabaseDown(t *testing.T) {
	router, _ := newTestRouter(t, func(context.Context) error { return errors.New("connection refused") })

	rec := get(router, "/api/healthchecker", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestContactsRequireAuth(t *testing.T) {
	router, access := newTestRouter(t, nil)

	assert.Equal(t, http.StatusUnauthorized, get(router, "/api/contacts", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/api/users/me", "").Code)

	rec := get(router, "/api/users/me", access)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice@example.com")
}

func TestContactsListRateLimited(t *testing.T) {
	router, access := newTestRouter(t, nil)

	for i := 0; i < 10; i++ {
		rec := get(router, "/api/contacts", access)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := get(router, "/api/contacts", access)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Other contact routes have their own budget
	assert.Equal(t, http.StatusNotFound, get(router, "/api/contacts/id/1", access).Code)
}

func TestSwaggerDisabledInProduction(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	assert.Equal(t, http.StatusNotFound, get(router, "/swagger/index.html", "").Code)
}
