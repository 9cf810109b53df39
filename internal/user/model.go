package user

import (
	"context"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose password hash in JSON
	Confirmed    bool      `json:"confirmed"`
	RefreshToken *string   `json:"-"`
	Avatar       string    `json:"avatar"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser holds what signup knows about an account before it is stored
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Avatar       string
}

type contextKey struct{}

// WithCurrent returns a copy of ctx carrying the authenticated user
func WithCurrent(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext returns the authenticated user stored by the auth middleware
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(contextKey{}).(*User)
	return u, ok && u != nil
}
