package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-contacts-api/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Repository handles user data persistence
type Repository struct {
	db bun.IDB
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new unconfirmed user
func (r *Repository) Create(ctx context.Context, nu NewUser) (*User, error) {
	dbUser := &database.User{
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Confirmed:    false,
	}
	if nu.Avatar != "" {
		dbUser.Avatar = &nu.Avatar
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// FindByEmail retrieves a user by email
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, "email = ?", email)
}

// FindByID retrieves a user by ID
func (r *Repository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *Repository) findOne(ctx context.Context, where string, arg any) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// UpdateRefreshToken overwrites the stored refresh token; nil clears it
func (r *Repository) UpdateRefreshToken(ctx context.Context, id int64, token *string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("refresh_token = ?", token).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update refresh token: %w", err)
	}

	return requireRow(result)
}

// SwapRefreshToken replaces expected with next only if expected is still the
// stored token. It reports false when another request rotated or cleared the
// token first.
func (r *Repository) SwapRefreshToken(ctx context.Context, id int64, expected, next string) (bool, error) {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("refresh_token = ?", next).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Where("refresh_token = ?", expected).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// SetConfirmed marks a user's email as confirmed
func (r *Repository) SetConfirmed(ctx context.Context, id int64) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("confirmed = ?", true).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to confirm email: %w", err)
	}

	return requireRow(result)
}

// UpdateAvatar stores a new avatar URL and returns the updated user
func (r *Repository) UpdateAvatar(ctx context.Context, id int64, url string) (*User, error) {
	dbUser := new(database.User)
	_, err := r.db.NewUpdate().
		Model(dbUser).
		Set("avatar = ?", url).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update avatar: %w", err)
	}
	if dbUser.ID == 0 {
		return nil, ErrNotFound
	}

	return mapDBUserToModel(dbUser), nil
}

// List returns users ordered by id, used by admin tooling
func (r *Repository) List(ctx context.Context, limit, offset int) ([]User, error) {
	var rows []database.User
	err := r.db.NewSelect().
		Model(&rows).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]User, 0, len(rows))
	for i := range rows {
		users = append(users, *mapDBUserToModel(&rows[i]))
	}
	return users, nil
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	u := &User{
		ID:           dbu.ID,
		Username:     dbu.Username,
		Email:        dbu.Email,
		PasswordHash: dbu.PasswordHash,
		Confirmed:    dbu.Confirmed,
		RefreshToken: dbu.RefreshToken,
		CreatedAt:    dbu.CreatedAt,
		UpdatedAt:    dbu.UpdatedAt,
	}
	if dbu.Avatar != nil {
		u.Avatar = *dbu.Avatar
	}
	return u
}
