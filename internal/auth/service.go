package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/redmonkez12/go-contacts-api/internal/email"
	"github.com/redmonkez12/go-contacts-api/internal/logging"
	"github.com/redmonkez12/go-contacts-api/internal/password"
	"github.com/redmonkez12/go-contacts-api/internal/token"
	"github.com/redmonkez12/go-contacts-api/internal/user"
)

const (
	minUsernameLen = 5
	maxUsernameLen = 16
	minPasswordLen = 6
	maxPasswordLen = 72
	maxEmailLen    = 254
)

// Service handles authentication business logic.
//
// Account states move Unregistered -> unconfirmed -> confirmed and never back.
// A user holds at most one live refresh token: login overwrites it, refresh
// rotates it with a compare-and-swap, and logout or reuse detection clears it.
type Service struct {
	users  UserStore
	hasher *password.Hasher
	tokens *token.Service
	mailer Mailer
	logger *logging.Logger
}

func NewService(
	users UserStore,
	hasher *password.Hasher,
	tokens *token.Service,
	mailer Mailer,
	logger *logging.Logger,
) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		mailer: mailer,
		logger: logger,
	}
}

// Signup creates an unconfirmed account and queues a confirmation email.
// A failure to queue the email is logged and does not undo the account.
func (s *Service) Signup(ctx context.Context, in SignupInput, baseURL string) (*user.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateSignup(in); err != nil {
		return nil, err
	}

	_, err := s.users.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, ErrAccountExists
	case !errors.Is(err, user.ErrNotFound):
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	newUser, err := s.users.Create(ctx, user.NewUser{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: passwordHash,
		Avatar:       user.GravatarURL(in.Email),
	})
	if err != nil {
		// Lost a race with a concurrent signup for the same email
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.queueConfirmation(newUser, baseURL)

	return newUser, nil
}

// Login verifies credentials and starts a new session.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, emailAddr, plaintext string) (*TokenPair, error) {
	emailAddr = strings.TrimSpace(emailAddr)
	if emailAddr == "" || plaintext == "" {
		return nil, ErrInvalidCredentials
	}

	existing, err := s.users.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.hasher.VerifyDummy(plaintext)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !s.hasher.Verify(plaintext, existing.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	// Only revealed to someone who already knows the password
	if !existing.Confirmed {
		return nil, ErrEmailNotConfirmed
	}

	pair, err := s.issuePair(existing.Email)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateRefreshToken(ctx, existing.ID, &pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return pair, nil
}

// Refresh exchanges a refresh token for a new pair and rotates the stored token.
//
// Presenting anything other than the currently stored token is treated as
// reuse of a stolen or already-rotated token: the session is revoked and the
// legitimate holder has to log in again. Two concurrent refreshes with the
// same token race on a compare-and-swap; the loser is treated the same way.
func (s *Service) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	subject, err := s.tokens.DecodeRefresh(raw)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	existing, err := s.users.FindByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if existing.RefreshToken == nil || *existing.RefreshToken != raw {
		if existing.RefreshToken != nil {
			s.logger.Warn("refresh token reuse detected, revoking session", "user_id", existing.ID)
			if err := s.users.UpdateRefreshToken(ctx, existing.ID, nil); err != nil {
				return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
			}
		}
		return nil, ErrInvalidRefreshToken
	}

	pair, err := s.issuePair(existing.Email)
	if err != nil {
		return nil, err
	}

	won, err := s.users.SwapRefreshToken(ctx, existing.ID, raw, pair.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if !won {
		s.logger.Warn("concurrent refresh token use detected, revoking session", "user_id", existing.ID)
		if err := s.users.UpdateRefreshToken(ctx, existing.ID, nil); err != nil {
			return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
		}
		return nil, ErrInvalidRefreshToken
	}

	return pair, nil
}

// ConfirmEmail marks the token's subject as confirmed.
// Confirming twice succeeds and reports alreadyConfirmed.
func (s *Service) ConfirmEmail(ctx context.Context, raw string) (alreadyConfirmed bool, err error) {
	subject, err := s.tokens.DecodeConfirmation(raw)
	if err != nil {
		return false, ErrVerificationFailed
	}

	existing, err := s.users.FindByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return false, ErrVerificationFailed
		}
		return false, fmt.Errorf("failed to get user: %w", err)
	}

	if existing.Confirmed {
		return true, nil
	}

	if err := s.users.SetConfirmed(ctx, existing.ID); err != nil {
		return false, fmt.Errorf("failed to confirm email: %w", err)
	}

	return false, nil
}

// RequestEmail queues a fresh confirmation email.
// Unknown addresses succeed silently so the endpoint cannot be used to
// discover accounts.
func (s *Service) RequestEmail(ctx context.Context, emailAddr, baseURL string) (alreadyConfirmed bool, err error) {
	existing, err := s.users.FindByEmail(ctx, strings.TrimSpace(emailAddr))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get user: %w", err)
	}

	if existing.Confirmed {
		return true, nil
	}

	s.queueConfirmation(existing, baseURL)
	return false, nil
}

// Logout revokes the user's refresh token. Access tokens stay valid until they expire.
func (s *Service) Logout(ctx context.Context, u *user.User) error {
	if err := s.users.UpdateRefreshToken(ctx, u.ID, nil); err != nil {
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}
	return nil
}

// Authenticate resolves an access token to its user
func (s *Service) Authenticate(ctx context.Context, raw string) (*user.User, error) {
	subject, err := s.tokens.DecodeAccess(raw)
	if err != nil {
		return nil, ErrInvalidToken
	}

	existing, err := s.users.FindByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return existing, nil
}

// ConfirmByEmail confirms an account without a token, for operators
func (s *Service) ConfirmByEmail(ctx context.Context, emailAddr string) error {
	existing, err := s.users.FindByEmail(ctx, strings.TrimSpace(emailAddr))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if existing.Confirmed {
		return nil
	}
	return s.users.SetConfirmed(ctx, existing.ID)
}

// RevokeByEmail clears the stored refresh token, for operators
func (s *Service) RevokeByEmail(ctx context.Context, emailAddr string) error {
	existing, err := s.users.FindByEmail(ctx, strings.TrimSpace(emailAddr))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	return s.Logout(ctx, existing)
}

func (s *Service) issuePair(subject string) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(subject)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(subject)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

func (s *Service) queueConfirmation(u *user.User, baseURL string) {
	confirmation, err := s.tokens.IssueConfirmation(u.Email)
	if err != nil {
		s.logger.Error("failed to issue confirmation token", "user_id", u.ID, "error", err)
		return
	}

	err = s.mailer.Enqueue(email.Message{
		To:        u.Email,
		Username:  u.Username,
		Token:     confirmation,
		BaseURL:   baseURL,
		ExpiresIn: s.tokens.ConfirmationTTL(),
	})
	if err != nil {
		// The user can ask for another email through request_email
		s.logger.Warn("failed to queue confirmation email", "user_id", u.ID, "error", err)
	}
}

func validateSignup(in SignupInput) error {
	if n := utf8.RuneCountInString(in.Username); n < minUsernameLen || n > maxUsernameLen {
		return &ValidationError{Field: "username", Message: fmt.Sprintf("must be %d to %d characters", minUsernameLen, maxUsernameLen)}
	}
	if in.Email == "" || len(in.Email) > maxEmailLen {
		return &ValidationError{Field: "email", Message: "invalid email format"}
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return &ValidationError{Field: "email", Message: "invalid email format"}
	}
	if n := len(in.Password); n < minPasswordLen || n > maxPasswordLen {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("must be %d to %d characters", minPasswordLen, maxPasswordLen)}
	}
	return nil
}
