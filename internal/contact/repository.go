package contact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-contacts-api/internal/database"
)

var ErrNotFound = errors.New("contact not found")

// Repository persists contacts. Every query is scoped to the owning user.
type Repository struct {
	db bun.IDB
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

// List returns the owner's contacts ordered by id
func (r *Repository) List(ctx context.Context, ownerID int64, limit, offset int) ([]Contact, error) {
	return r.list(ctx, ownerID, limit, offset, nil)
}

// ListByName returns the owner's contacts with an exact name match
func (r *Repository) ListByName(ctx context.Context, ownerID int64, name string, limit, offset int) ([]Contact, error) {
	return r.list(ctx, ownerID, limit, offset, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("name = ?", name)
	})
}

// ListBySurname returns the owner's contacts with an exact surname match
func (r *Repository) ListBySurname(ctx context.Context, ownerID int64, surname string, limit, offset int) ([]Contact, error) {
	return r.list(ctx, ownerID, limit, offset, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("surname = ?", surname)
	})
}

// ListUpcomingBirthdays returns contacts whose birthday falls within days of
// today, inclusive, nearest first.
func (r *Repository) ListUpcomingBirthdays(ctx context.Context, ownerID int64, today time.Time, days, limit, offset int) ([]Contact, error) {
	keys := upcomingDays(today, days)
	return r.list(ctx, ownerID, limit, offset, func(q *bun.SelectQuery) *bun.SelectQuery {
		// Birthdays earlier in the calendar than today belong to next year
		return q.Where("to_char(birthday, 'MM-DD') IN (?)", bun.In(keys)).
			OrderExpr("to_char(birthday, 'MM-DD') < ? ASC", today.Format("01-02")).
			OrderExpr("to_char(birthday, 'MM-DD') ASC")
	})
}

func (r *Repository) list(ctx context.Context, ownerID int64, limit, offset int, filter func(*bun.SelectQuery) *bun.SelectQuery) ([]Contact, error) {
	var rows []database.Contact
	q := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", ownerID)
	if filter != nil {
		q = filter(q)
	}

	err := q.Order("id ASC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}

	contacts := make([]Contact, 0, len(rows))
	for i := range rows {
		contacts = append(contacts, *mapDBContactToModel(&rows[i]))
	}
	return contacts, nil
}

// Get returns one of the owner's contacts by id
func (r *Repository) Get(ctx context.Context, ownerID, id int64) (*Contact, error) {
	return r.findOne(ctx, ownerID, "id = ?", id)
}

// GetByEmail returns the owner's first contact with the given email
func (r *Repository) GetByEmail(ctx context.Context, ownerID int64, email string) (*Contact, error) {
	return r.findOne(ctx, ownerID, "email = ?", email)
}

func (r *Repository) findOne(ctx context.Context, ownerID int64, where string, arg any) (*Contact, error) {
	dbContact := new(database.Contact)
	err := r.db.NewSelect().
		Model(dbContact).
		Where("user_id = ?", ownerID).
		Where(where, arg).
		Order("id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return mapDBContactToModel(dbContact), nil
}

// Create stores a new contact for the owner. in must already be validated.
func (r *Repository) Create(ctx context.Context, ownerID int64, in Input, birthday time.Time) (*Contact, error) {
	dbContact := &database.Contact{
		UserID:     ownerID,
		Name:       in.Name,
		Surname:    in.Surname,
		Email:      in.Email,
		Phone:      in.Phone,
		Birthday:   birthday,
		Additional: in.Additional,
	}

	_, err := r.db.NewInsert().
		Model(dbContact).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	return mapDBContactToModel(dbContact), nil
}

// Update replaces every field of one of the owner's contacts
func (r *Repository) Update(ctx context.Context, ownerID, id int64, in Input, birthday time.Time) (*Contact, error) {
	dbContact := new(database.Contact)
	_, err := r.db.NewUpdate().
		Model(dbContact).
		Set("name = ?", in.Name).
		Set("surname = ?", in.Surname).
		Set("email = ?", in.Email).
		Set("phone = ?", in.Phone).
		Set("birthday = ?", birthday.Format(DateLayout)).
		Set("additional = ?", in.Additional).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Where("user_id = ?", ownerID).
		Returning("*").
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	if dbContact.ID == 0 {
		return nil, ErrNotFound
	}

	return mapDBContactToModel(dbContact), nil
}

// Delete removes one of the owner's contacts
func (r *Repository) Delete(ctx context.Context, ownerID, id int64) error {
	result, err := r.db.NewDelete().
		Model((*database.Contact)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func mapDBContactToModel(dbc *database.Contact) *Contact {
	return &Contact{
		ID:         dbc.ID,
		Name:       dbc.Name,
		Surname:    dbc.Surname,
		Email:      dbc.Email,
		Phone:      dbc.Phone,
		Birthday:   dbc.Birthday.Format(DateLayout),
		Additional: dbc.Additional,
		CreatedAt:  dbc.CreatedAt,
		UpdatedAt:  dbc.UpdatedAt,
	}
}
