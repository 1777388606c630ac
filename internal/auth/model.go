package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Email        string    `bun:"email,unique,notnull" json:"email"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	LastSignInAt time.Time `bun:"last_sign_in_at,nullzero,notnull,default:current_timestamp" json:"last_sign_in_at"`
}

// SessionRecord is the server-side half of a session. Deleting the row
// revokes every token that references it.
type SessionRecord struct {
	bun.BaseModel `bun:"table:sessions,alias:ss"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	UserID    uuid.UUID `bun:"user_id,type:uuid,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
}

var _ bun.AfterCreateTableHook = (*SessionRecord)(nil)

// AfterCreateTable indexes expiry for session lookups and the purge job.
func (*SessionRecord) AfterCreateTable(ctx context.Context, query *bun.CreateTableQuery) error {
	_, err := query.DB().NewCreateIndex().
		Model((*SessionRecord)(nil)).
		Index("sessions_expires_at_idx").
		IfNotExists().
		Column("expires_at").
		Exec(ctx)
	return err
}

// Session is an authenticated user as seen by the rest of the application.
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
