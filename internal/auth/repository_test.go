package auth

import (
	"context"
	"testing"
	"time"

	"school-directory/internal/metrics"
	"school-directory/testing/testdb"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Postgres(t *testing.T) {
	pg := testdb.Shared(t)
	pg.Migrate(t, (*User)(nil), (*SessionRecord)(nil))

	repo := NewRepository(pg.DB, metrics.NewMock())
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("GetOrCreateUser", func(t *testing.T) {
		pg.Truncate(t, "users", "sessions")

		first, err := repo.GetOrCreateUser(ctx, "user@example.com", now)
		require.NoError(t, err)

		second, err := repo.GetOrCreateUser(ctx, "user@example.com", now.Add(time.Hour))
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.True(t, second.LastSignInAt.After(first.LastSignInAt))
	})

	t.Run("SessionLifecycle", func(t *testing.T) {
		pg.Truncate(t, "users", "sessions")

		user, err := repo.GetOrCreateUser(ctx, "user@example.com", now)
		require.NoError(t, err)

		record, err := repo.CreateSession(ctx, user.ID, now, now.Add(time.Hour))
		require.NoError(t, err)

		got, err := repo.GetSession(ctx, record.ID, now)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.UserID)

		_, err = repo.GetSession(ctx, record.ID, now.Add(2*time.Hour))
		assert.ErrorIs(t, err, ErrSessionNotFound)

		require.NoError(t, repo.DeleteSession(ctx, record.ID))
		require.NoError(t, repo.DeleteSession(ctx, record.ID))

		_, err = repo.GetSession(ctx, record.ID, now)
		assert.ErrorIs(t, err, ErrSessionNotFound)

		_, err = repo.GetSession(ctx, uuid.New(), now)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("DeleteExpiredSessions", func(t *testing.T) {
		pg.Truncate(t, "users", "sessions")

		user, err := repo.GetOrCreateUser(ctx, "user@example.com", now)
		require.NoError(t, err)

		_, err = repo.CreateSession(ctx, user.ID, now, now.Add(-time.Minute))
		require.NoError(t, err)
		live, err := repo.CreateSession(ctx, user.ID, now, now.Add(time.Hour))
		require.NoError(t, err)

		n, err := repo.DeleteExpiredSessions(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = repo.GetSession(ctx, live.ID, now)
		assert.NoError(t, err)
	})
}
