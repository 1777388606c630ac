package school

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"school-directory/internal/events"
	"school-directory/internal/metrics"
	"school-directory/internal/storage"
)

type Service interface {
	// Submit validates the form, uploads the optional image and inserts the
	// record. It returns FieldErrors, *UploadError or *InsertError on failure.
	Submit(ctx context.Context, form Form, submittedBy string) (*School, error)
	// List returns every school, newest first. On failure the listing is
	// empty and the error is a *QueryError.
	List(ctx context.Context) (Listing, error)
}

type service struct {
	repo     Repository
	store    storage.ObjectStore
	schema   *Schema
	producer events.Producer
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewService(repo Repository, store storage.ObjectStore, producer events.Producer, logger *slog.Logger, m *metrics.Metrics) Service {
	if producer == nil {
		producer = events.Noop{}
	}
	if m == nil {
		m = metrics.NewMock()
	}
	return &service{
		repo:     repo,
		store:    store,
		schema:   NewSchema(),
		producer: producer,
		logger:   logger,
		metrics:  m,
	}
}

func (s *service) Submit(ctx context.Context, form Form, submittedBy string) (*School, error) {
	if errs := s.schema.Validate(form); len(errs) > 0 {
		return nil, errs
	}

	imageURL := ""
	if img := form.Image(); img != nil {
		key := storage.NewKey(img.Filename, img.ContentType)
		if err := s.store.Upload(ctx, key, bytes.NewReader(img.Data), img.ContentType); err != nil {
			s.metrics.RecordSubmissionFailed(ctx, "upload")
			return nil, &UploadError{Key: key, Err: err}
		}
		imageURL = s.store.PublicURL(key)
	}

	created, err := s.repo.Insert(ctx, form.record(imageURL))
	if err != nil {
		s.metrics.RecordSubmissionFailed(ctx, "insert")
		return nil, &InsertError{ImageURL: imageURL, Err: err}
	}

	s.metrics.RecordSchoolAdded(ctx)
	s.publishCreated(ctx, created, submittedBy)

	return created, nil
}

// publishCreated never fails the submission; the record is already stored.
func (s *service) publishCreated(ctx context.Context, created *School, submittedBy string) {
	event := CreatedEvent{
		ID:        created.ID,
		Name:      created.Name,
		City:      created.City,
		State:     created.State,
		Image:     created.Image,
		CreatedBy: submittedBy,
		CreatedAt: created.CreatedAt,
	}
	start := time.Now()
	err := s.producer.SendMessage(ctx, event)
	s.metrics.Events.RecordPublish(ctx, CreatedEventType, time.Since(start), err)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish school created event", "school_id", created.ID, "error", err)
	}
}

func (s *service) List(ctx context.Context) (Listing, error) {
	schools, err := s.repo.ListNewestFirst(ctx)
	if err != nil {
		return NewListing(nil), &QueryError{Err: err}
	}

	s.metrics.RecordListingViewed(ctx)
	return NewListing(schools), nil
}
