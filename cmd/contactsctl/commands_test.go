package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/go-contacts-api/internal/auth"
	"github.com/redmonkez12/go-contacts-api/internal/password"
	"github.com/redmonkez12/go-contacts-api/internal/user"
)

type fakeAccounts struct {
	known     map[string]bool
	confirmed []string
	revoked   []string
}

func (f *fakeAccounts) ConfirmByEmail(_ context.Context, email string) error {
	if !f.known[email] {
		return auth.ErrUserNotFound
	}
	f.confirmed = append(f.confirmed, email)
	return nil
}

func (f *fakeAccounts) RevokeByEmail(_ context.Context, email string) error {
	if !f.known[email] {
		return auth.ErrUserNotFound
	}
	f.revoked = append(f.revoked, email)
	return nil
}

type sliceLister struct {
	users []user.User
	calls int
}

func (s *sliceLister) List(_ context.Context, limit, offset int) ([]user.User, error) {
	s.calls++
	if offset >= len(s.users) {
		return nil, nil
	}
	end := min(offset+limit, len(s.users))
	return s.users[offset:end], nil
}

type fakeMigrator struct {
	applied bool
	err     error
}

func (m *fakeMigrator) Up(context.Context) error {
	if m.err != nil {
		return m.err
	}
	m.applied = true
	return nil
}

func (m *fakeMigrator) Status(context.Context) error { return m.err }

func (m *fakeMigrator) Version(context.Context) (int64, error) {
	if !m.applied {
		return 0, nil
	}
	return 2, nil
}

type harness struct {
	accounts *fakeAccounts
	users    *sliceLister
	migr     *fakeMigrator
	hasher   *password.Hasher
	closed   int
	prompted int
	answer   bool
}

func newHarness() *harness {
	return &harness{
		accounts: &fakeAccounts{known: map[string]bool{"alice@example.com": true}},
		users:    &sliceLister{},
		migr:     &fakeMigrator{},
		hasher:   password.NewHasherWithParams(password.Params{Time: 1, Memory: 1024, Threads: 1}),
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	connect := func(context.Context) (*backend, error) {
		return &backend{
			accounts:   h.accounts,
			users:      h.users,
			hasher:     h.hasher,
			migrations: h.migr,
			close:      func() { h.closed++ },
		}, nil
	}
	confirm := func(string, string) (bool, error) {
		h.prompted++
		return h.answer, nil
	}

	cmd := newRootCmdWithPrompt(connect, confirm)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

func TestMigrateUp(t *testing.T) {
	h := newHarness()

	out, _, err := h.run(t, "migrate", "up")
	require.NoError(t, err)
	assert.True(t, h.migr.applied)
	assert.Contains(t, out, "Schema is at version 2")
	assert.Equal(t, 1, h.closed)
}

func TestMigrateUp_Failure(t *testing.T) {
	h := newHarness()
	h.migr.err = errors.New("apply migrations: syntax error")

	_, errOut, err := h.run(t, "migrate", "up")
	require.Error(t, err)
	assert.Contains(t, errOut, "syntax error")
	assert.Equal(t, 1, h.closed)
}

func TestUserConfirm(t *testing.T) {
	h := newHarness()

	out, _, err := h.run(t, "user", "confirm", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com"}, h.accounts.confirmed)
	assert.Contains(t, out, "Confirmed alice@example.com")

	_, errOut, err := h.run(t, "user", "confirm", "nobody@example.com")
	require.Error(t, err)
	assert.Contains(t, errOut, "no account registered for nobody@example.com")
}

func TestUserConfirm_RequiresEmail(t *testing.T) {
	h := newHarness()

	_, _, err := h.run(t, "user", "confirm")
	require.Error(t, err)
	assert.Zero(t, h.closed, "backend must not be opened on bad arguments")
}

func TestUserRevoke(t *testing.T) {
	t.Run("prompt declined", func(t *testing.T) {
		h := newHarness()

		out, _, err := h.run(t, "user", "revoke", "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, 1, h.prompted)
		assert.Empty(t, h.accounts.revoked)
		assert.Contains(t, out, "Aborted.")
	})

	t.Run("prompt accepted", func(t *testing.T) {
		h := newHarness()
		h.answer = true

		_, _, err := h.run(t, "user", "revoke", "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice@example.com"}, h.accounts.revoked)
	})

	t.Run("yes flag skips prompt", func(t *testing.T) {
		h := newHarness()

		out, _, err := h.run(t, "user", "revoke", "-y", "alice@example.com")
		require.NoError(t, err)
		assert.Zero(t, h.prompted)
		assert.Equal(t, []string{"alice@example.com"}, h.accounts.revoked)
		assert.Contains(t, out, "Revoked refresh token of alice@example.com")
	})
}

func TestUserRehashReport(t *testing.T) {
	h := newHarness()

	current, err := h.hasher.Hash("secret1")
	require.NoError(t, err)
	weaker, err := password.NewHasherWithParams(password.Params{Time: 1, Memory: 512, Threads: 1}).Hash("secret2")
	require.NoError(t, err)

	h.users.users = []user.User{
		{ID: 1, Email: "current@example.com", PasswordHash: current},
		{ID: 2, Email: "legacy@example.com", PasswordHash: "$2b$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"},
		{ID: 3, Email: "weaker@example.com", PasswordHash: weaker},
	}

	out, _, err := h.run(t, "user", "rehash-report", "--page-size", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "legacy@example.com")
	assert.Contains(t, out, "weaker@example.com")
	assert.NotContains(t, out, "current@example.com")
	assert.Contains(t, out, "2 of 3 accounts need rehash")
	assert.Equal(t, 2, h.users.calls)
}

func TestUserRehashReport_AllCurrent(t *testing.T) {
	h := newHarness()

	out, _, err := h.run(t, "user", "rehash-report")
	require.NoError(t, err)
	assert.Contains(t, out, "All 0 accounts use current parameters")
}

func TestConnectFailure(t *testing.T) {
	cmd := newRootCmdWithPrompt(func(context.Context) (*backend, error) {
		return nil, errors.New("failed to ping database: connection refused")
	}, nil)
	var stderr bytes.Buffer
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"migrate", "status"})

	require.Error(t, cmd.ExecuteContext(t.Context()))
	assert.Contains(t, stderr.String(), "connection refused")
}
