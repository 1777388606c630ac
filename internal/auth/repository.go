package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"school-directory/internal/metrics"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Repository interface {
	GetOrCreateUser(ctx context.Context, email string, now time.Time) (*User, error)
	CreateSession(ctx context.Context, userID uuid.UUID, now, expiresAt time.Time) (*SessionRecord, error)
	GetSession(ctx context.Context, id uuid.UUID, now time.Time) (*SessionRecord, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type repository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewRepository(db *bun.DB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) GetOrCreateUser(ctx context.Context, email string, now time.Time) (*User, error) {
	start := time.Now()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		CreatedAt:    now,
		LastSignInAt: now,
	}
	_, err := r.db.NewInsert().
		Model(user).
		On("CONFLICT (email) DO UPDATE").
		Set("last_sign_in_at = EXCLUDED.last_sign_in_at").
		Returning("*").
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "upsert", "users", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *repository) CreateSession(ctx context.Context, userID uuid.UUID, now, expiresAt time.Time) (*SessionRecord, error) {
	start := time.Now()
	record := &SessionRecord{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	_, err := r.db.NewInsert().Model(record).Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "insert", "sessions", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *repository) GetSession(ctx context.Context, id uuid.UUID, now time.Time) (*SessionRecord, error) {
	start := time.Now()
	record := new(SessionRecord)
	err := r.db.NewSelect().
		Model(record).
		Where("id = ?", id).
		Where("expires_at > ?", now).
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "sessions", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return record, nil
}

// DeleteSession is a no-op for unknown ids.
func (r *repository) DeleteSession(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	_, err := r.db.NewDelete().
		Model((*SessionRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "delete", "sessions", time.Since(start), err)

	return err
}

func (r *repository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()
	result, err := r.db.NewDelete().
		Model((*SessionRecord)(nil)).
		Where("expires_at <= ?", now).
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "delete", "sessions", time.Since(start), err)

	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
