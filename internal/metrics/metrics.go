package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	Database *DatabaseMetrics
	Events   *EventMetrics
	Health   *HealthMetrics

	schoolsAdded      metric.Int64Counter
	submissionsFailed metric.Int64Counter
	listingsViewed    metric.Int64Counter
	otpRequested      metric.Int64Counter
	otpVerified       metric.Int64Counter
	signOuts          metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.Database, err = NewDatabaseMetrics(meter)
	if err != nil {
		return nil, err
	}

	m.Events, err = NewEventMetrics(meter)
	if err != nil {
		return nil, err
	}

	m.Health, err = NewHealthMetrics(meter)
	if err != nil {
		return nil, err
	}

	m.schoolsAdded, err = meter.Int64Counter(
		"school_directory.schools.added",
		metric.WithDescription("Total number of schools added to the directory"),
		metric.WithUnit("{school}"),
	)
	if err != nil {
		return nil, err
	}

	m.submissionsFailed, err = meter.Int64Counter(
		"school_directory.submissions.failed",
		metric.WithDescription("Total number of failed school submissions by stage"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, err
	}

	m.listingsViewed, err = meter.Int64Counter(
		"school_directory.listings.viewed",
		metric.WithDescription("Total number of times the school list was viewed"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.otpRequested, err = meter.Int64Counter(
		"school_directory.otp.requested",
		metric.WithDescription("Total number of sign-in codes sent"),
		metric.WithUnit("{code}"),
	)
	if err != nil {
		return nil, err
	}

	m.otpVerified, err = meter.Int64Counter(
		"school_directory.otp.verified",
		metric.WithDescription("Total number of sign-in codes verified successfully"),
		metric.WithUnit("{code}"),
	)
	if err != nil {
		return nil, err
	}

	m.signOuts, err = meter.Int64Counter(
		"school_directory.sessions.signed_out",
		metric.WithDescription("Total number of explicit sign-outs"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordSchoolAdded(ctx context.Context) {
	if m != nil && m.schoolsAdded != nil {
		m.schoolsAdded.Add(ctx, 1)
	}
}

// RecordSubmissionFailed counts a failed submission; stage is "upload" or "insert".
func (m *Metrics) RecordSubmissionFailed(ctx context.Context, stage string) {
	if m != nil && m.submissionsFailed != nil {
		m.submissionsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	}
}

func (m *Metrics) RecordListingViewed(ctx context.Context) {
	if m != nil && m.listingsViewed != nil {
		m.listingsViewed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordOTPRequested(ctx context.Context) {
	if m != nil && m.otpRequested != nil {
		m.otpRequested.Add(ctx, 1)
	}
}

func (m *Metrics) RecordOTPVerified(ctx context.Context) {
	if m != nil && m.otpVerified != nil {
		m.otpVerified.Add(ctx, 1)
	}
}

func (m *Metrics) RecordSignOut(ctx context.Context) {
	if m != nil && m.signOuts != nil {
		m.signOuts.Add(ctx, 1)
	}
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{
		Database: &DatabaseMetrics{},
		Events:   &EventMetrics{},
		Health:   &HealthMetrics{},
	}
}
