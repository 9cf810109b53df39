package auth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "conflict", err: ErrAccountExists, want: KindConflict},
		{name: "bad credentials", err: ErrInvalidCredentials, want: KindUnauthorized},
		{name: "unconfirmed", err: ErrEmailNotConfirmed, want: KindUnauthorized},
		{name: "stale refresh", err: ErrInvalidRefreshToken, want: KindUnauthorized},
		{name: "bad access token", err: ErrInvalidToken, want: KindUnauthorized},
		{name: "verification", err: ErrVerificationFailed, want: KindBadRequest},
		{name: "validation", err: &ValidationError{Field: "email", Message: "invalid"}, want: KindBadRequest},
		{name: "unknown user", err: ErrUserNotFound, want: KindNotFound},
		{name: "cooldown", err: ErrRateLimited, want: KindRateLimited},
		{name: "wrapped", err: fmt.Errorf("request email: %w", ErrRateLimited), want: KindRateLimited},
		{name: "store fault", err: errors.New("connection reset"), want: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}

	assert.Equal(t, "rate_limited", KindRateLimited.String())
}
