package database

import (
	"time"

	"github.com/uptrace/bun"
)

// User is the persisted account row
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Username     string    `bun:"username,notnull"`
	Email        string    `bun:"email,notnull,unique"`
	PasswordHash string    `bun:"password,notnull"`
	Confirmed    bool      `bun:"confirmed,notnull,default:false"`
	RefreshToken *string   `bun:"refresh_token"`
	Avatar       *string   `bun:"avatar"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Contact is the persisted contact row, owned by one user
type Contact struct {
	bun.BaseModel `bun:"table:contacts,alias:c"`

	ID         int64     `bun:"id,pk,autoincrement"`
	UserID     int64     `bun:"user_id,notnull"`
	Name       string    `bun:"name,notnull"`
	Surname    string    `bun:"surname,notnull"`
	Email      string    `bun:"email,notnull"`
	Phone      string    `bun:"phone,notnull"`
	Birthday   time.Time `bun:"birthday,type:date,notnull"`
	Additional string    `bun:"additional,notnull,default:''"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
