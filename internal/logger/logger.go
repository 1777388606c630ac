package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

const redacted = "[REDACTED]"

// Attribute keys whose values never reach the log output.
var secretKeys = map[string]bool{
	"code":     true,
	"otp":      true,
	"token":    true,
	"password": true,
	"secret":   true,
	"cookie":   true,
}

type Options struct {
	// JSON selects the JSON handler; otherwise a colourised text handler is used.
	JSON   bool
	Level  slog.Level
	Output io.Writer
}

// New picks JSON output inside Kubernetes and for the prod/dev environments,
// coloured text everywhere else.
func New() *slog.Logger {
	_, inK8s := os.LookupEnv("KUBERNETES_SERVICE_HOST")
	env := os.Getenv("ENV")

	opts := Options{Level: slog.LevelDebug, Output: os.Stdout}
	if inK8s || env == "prod" || env == "production" || env == "dev" {
		opts.JSON = true
		opts.Level = slog.LevelInfo
	}
	return NewWithOptions(opts)
}

func NewWithOptions(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       opts.Level,
		AddSource:   opts.JSON,
		ReplaceAttr: scrub,
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = &levelColorHandler{next: slog.NewTextHandler(out, handlerOpts)}
	}
	return slog.New(&spanHandler{next: handler})
}

func NewWithServiceContext(serviceName, version string) *slog.Logger {
	return New().With(
		slog.String("service", serviceName),
		slog.String("version", version),
		slog.String("environment", os.Getenv("ENV")),
	)
}

// Discard returns a logger that drops every record. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scrub hides one-time codes, tokens and secrets, and masks the local part of
// email addresses.
func scrub(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	switch {
	case secretKeys[key]:
		return slog.String(a.Key, redacted)
	case key == "email" && a.Value.Kind() == slog.KindString:
		return slog.String(a.Key, MaskEmail(a.Value.String()))
	}
	return a
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return redacted
	}
	return email[:1] + "***" + email[at:]
}

// levelColorHandler paints WARN messages yellow and ERROR messages red.
type levelColorHandler struct {
	next slog.Handler
}

func (h *levelColorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *levelColorHandler) Handle(ctx context.Context, r slog.Record) error {
	var color string
	switch {
	case r.Level >= slog.LevelError:
		color = "\x1b[31m"
	case r.Level >= slog.LevelWarn:
		color = "\x1b[33m"
	default:
		return h.next.Handle(ctx, r)
	}

	painted := slog.NewRecord(r.Time, r.Level, color+r.Message+"\x1b[0m", r.PC)
	r.Attrs(func(a slog.Attr) bool {
		painted.AddAttrs(a)
		return true
	})
	return h.next.Handle(ctx, painted)
}

func (h *levelColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelColorHandler{next: h.next.WithAttrs(attrs)}
}

func (h *levelColorHandler) WithGroup(name string) slog.Handler {
	return &levelColorHandler{next: h.next.WithGroup(name)}
}

// spanHandler adds trace_id and span_id when ctx carries a sampled OTel span.
type spanHandler struct {
	next slog.Handler
}

func (h *spanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *spanHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, r)
}

func (h *spanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &spanHandler{next: h.next.WithAttrs(attrs)}
}

func (h *spanHandler) WithGroup(name string) slog.Handler {
	return &spanHandler{next: h.next.WithGroup(name)}
}
