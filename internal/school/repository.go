package school

import (
	"context"
	"time"

	"school-directory/internal/metrics"

	"github.com/uptrace/bun"
)

type Repository interface {
	Insert(ctx context.Context, school *School) (*School, error)
	ListNewestFirst(ctx context.Context) ([]School, error)
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

func (r *repository) Insert(ctx context.Context, school *School) (*School, error) {
	start := time.Now()
	_, err := r.db.NewInsert().Model(school).Returning("*").Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "insert", "schools", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return school, nil
}

func (r *repository) ListNewestFirst(ctx context.Context) ([]School, error) {
	start := time.Now()
	var schools []School
	err := r.db.NewSelect().
		Model(&schools).
		Order("created_at DESC", "id DESC").
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "schools", time.Since(start), err)

	return schools, err
}
