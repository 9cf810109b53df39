// Command contactsctl is the operator tool for the contacts API: schema
// migrations and account maintenance against the configured database.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/redmonkez12/go-contacts-api/internal/auth"
	"github.com/redmonkez12/go-contacts-api/internal/config"
	"github.com/redmonkez12/go-contacts-api/internal/database"
	"github.com/redmonkez12/go-contacts-api/internal/logging"
	"github.com/redmonkez12/go-contacts-api/internal/password"
	"github.com/redmonkez12/go-contacts-api/internal/token"
	"github.com/redmonkez12/go-contacts-api/internal/user"
)

func main() {
	if err := newRootCmd(connect).Execute(); err != nil {
		os.Exit(1)
	}
}

// connect loads configuration from the environment and opens the database
func connect(ctx context.Context) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewService(token.Config{
		Secret:          []byte(cfg.Auth.Secret),
		Algorithm:       cfg.Auth.Algorithm,
		AccessTTL:       cfg.Auth.AccessTokenTTL,
		RefreshTTL:      cfg.Auth.RefreshTokenTTL,
		ConfirmationTTL: cfg.Auth.ConfirmationTokenTTL,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	logger := logging.NewLoggerWithWriter(os.Stderr, cfg.Server.IsDevelopment())
	hasher := password.NewHasher()
	users := user.NewRepository(db)

	return &backend{
		// Operator actions never send mail
		accounts:   auth.NewService(users, hasher, tokens, nil, logger),
		users:      users,
		hasher:     hasher,
		migrations: sqlMigrator{db: db.DB},
		close:      func() { db.Close() },
	}, nil
}

// sqlMigrator runs the embedded goose migrations
type sqlMigrator struct {
	db *sql.DB
}

func (m sqlMigrator) Up(ctx context.Context) error {
	return database.Migrate(ctx, m.db)
}

func (m sqlMigrator) Status(ctx context.Context) error {
	return database.MigrationStatus(ctx, m.db)
}

func (m sqlMigrator) Version(ctx context.Context) (int64, error) {
	return database.MigrationVersion(ctx, m.db)
}
