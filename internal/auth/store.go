package auth

import (
	"context"

	"github.com/redmonkez12/go-contacts-api/internal/email"
	"github.com/redmonkez12/go-contacts-api/internal/user"
)

// UserStore defines the account storage the auth flows need.
// user.Repository is the PostgreSQL implementation.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	Create(ctx context.Context, nu user.NewUser) (*user.User, error)
	// UpdateRefreshToken overwrites the stored token; nil clears it
	UpdateRefreshToken(ctx context.Context, id int64, token *string) error
	// SwapRefreshToken replaces expected with next, reporting false if expected is no longer stored
	SwapRefreshToken(ctx context.Context, id int64, expected, next string) (bool, error)
	SetConfirmed(ctx context.Context, id int64) error
}

// Mailer queues confirmation emails without blocking.
// email.Dispatcher is the production implementation.
type Mailer interface {
	Enqueue(msg email.Message) error
}
