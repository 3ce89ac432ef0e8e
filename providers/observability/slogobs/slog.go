package slogobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lmittmann/tint"

	"github.com/childreth/Olly/providers/observability"
)

// Observer implements observability.Provider on top of a slog.Logger.
type Observer struct {
	logger  *slog.Logger
	metrics *metricsStore
}

// New creates a slog-based observer.
//
//	observer := slogobs.New(
//	    slogobs.WithFormat(slogobs.FormatJSON),
//	    slogobs.WithLevel(slog.LevelDebug),
//	)
func New(opts ...Option) *Observer {
	cfg := applyOptions(opts...)

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(newHandler(cfg))
	}

	return &Observer{
		logger:  logger,
		metrics: newMetricsStore(),
	}
}

// Logger exposes the underlying slog.Logger, e.g. for slog.SetDefault.
func (o *Observer) Logger() *slog.Logger {
	return o.logger
}

var _ observability.Provider = (*Observer)(nil)

func newHandler(cfg *config) slog.Handler {
	if cfg.format == FormatJSON {
		return slog.NewJSONHandler(cfg.output, &slog.HandlerOptions{Level: cfg.level})
	}
	return tint.NewHandler(cfg.output, &tint.Options{
		Level:      cfg.level,
		TimeFormat: "2006-01-02 15:04:05.000",
		NoColor:    !cfg.colors,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == "error" && a.Value.Kind() == slog.KindString && a.Value.String() != "" {
				return tint.Attr(9, a)
			}
			return a
		},
	})
}

// --- TRACING ---

// StartSpan begins a named span and logs its start at debug level. The
// returned context carries the span so providers can enrich it.
func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	span := &slogSpan{
		name:      name,
		startTime: time.Now(),
		logger:    o.logger,
		attrs:     attrs,
	}

	o.logger.LogAttrs(ctx, slog.LevelDebug, "Span started", append([]slog.Attr{
		slog.String("span", name),
		slog.String("event", "span.start"),
	}, toSlog(attrs)...)...)

	return observability.ContextWithSpan(ctx, span), span
}

type slogSpan struct {
	name      string
	startTime time.Time
	logger    *slog.Logger
	attrs     []observability.Attribute
	mu        sync.Mutex
}

func (s *slogSpan) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "Span ended", append([]slog.Attr{
		slog.String("span", s.name),
		slog.String("event", "span.end"),
		slog.Duration("duration", time.Since(s.startTime)),
	}, toSlog(s.attrs)...)...)
}

func (s *slogSpan) SetAttributes(attrs ...observability.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs = append(s.attrs, attrs...)
}

func (s *slogSpan) SetStatus(code observability.StatusCode, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := "unset"
	switch code {
	case observability.StatusOK:
		status = "ok"
	case observability.StatusError:
		status = "error"
	}

	s.attrs = append(s.attrs, observability.String(observability.AttrStatus, status))
	if description != "" {
		s.attrs = append(s.attrs, observability.String(observability.AttrStatusDescription, description))
	}
}

func (s *slogSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attrs = append(s.attrs, observability.Error(err))
	s.logger.LogAttrs(context.Background(), slog.LevelError, "Span error",
		slog.String("span", s.name),
		slog.String("error", err.Error()),
	)
}

func (s *slogSpan) AddEvent(name string, attrs ...observability.Attribute) {
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "Span event", append([]slog.Attr{
		slog.String("span", s.name),
		slog.String("event", name),
	}, toSlog(attrs)...)...)
}

// --- METRICS ---

// Counter returns the named counter; repeated calls return the same instance.
func (o *Observer) Counter(name string) observability.Counter {
	return o.metrics.getCounter(name, o.logger)
}

// Histogram returns the named histogram; repeated calls return the same instance.
func (o *Observer) Histogram(name string) observability.Histogram {
	return o.metrics.getHistogram(name, o.logger)
}

type metricsStore struct {
	mu         sync.Mutex
	counters   map[string]*slogCounter
	histograms map[string]*slogHistogram
}

func newMetricsStore() *metricsStore {
	return &metricsStore{
		counters:   make(map[string]*slogCounter),
		histograms: make(map[string]*slogHistogram),
	}
}

func (m *metricsStore) getCounter(name string, logger *slog.Logger) *slogCounter {
	m.mu.Lock()
	defer m.mu.Unlock()

	counter, exists := m.counters[name]
	if !exists {
		counter = &slogCounter{name: name, logger: logger}
		m.counters[name] = counter
	}
	return counter
}

func (m *metricsStore) getHistogram(name string, logger *slog.Logger) *slogHistogram {
	m.mu.Lock()
	defer m.mu.Unlock()

	histogram, exists := m.histograms[name]
	if !exists {
		histogram = &slogHistogram{name: name, logger: logger}
		m.histograms[name] = histogram
	}
	return histogram
}

type slogCounter struct {
	name   string
	logger *slog.Logger
	mu     sync.Mutex
	value  int64
}

func (c *slogCounter) Add(ctx context.Context, value int64, attrs ...observability.Attribute) {
	c.mu.Lock()
	c.value += value
	current := c.value
	c.mu.Unlock()

	c.logger.LogAttrs(ctx, slog.LevelDebug, "Counter", append([]slog.Attr{
		slog.String("metric", c.name),
		slog.Int64("value", current),
		slog.Int64("delta", value),
	}, toSlog(attrs)...)...)
}

// Value returns the current total.
func (c *slogCounter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

type slogHistogram struct {
	name   string
	logger *slog.Logger
}

func (h *slogHistogram) Record(ctx context.Context, value float64, attrs ...observability.Attribute) {
	h.logger.LogAttrs(ctx, slog.LevelDebug, "Histogram", append([]slog.Attr{
		slog.String("metric", h.name),
		slog.Float64("value", value),
	}, toSlog(attrs)...)...)
}

// --- LOGGING ---

func (o *Observer) Trace(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, LevelTrace, msg, toSlog(attrs)...)
}

func (o *Observer) Debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, slog.LevelDebug, msg, toSlog(attrs)...)
}

func (o *Observer) Info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, slog.LevelInfo, msg, toSlog(attrs)...)
}

func (o *Observer) Warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, slog.LevelWarn, msg, toSlog(attrs)...)
}

func (o *Observer) Error(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.logger.LogAttrs(ctx, slog.LevelError, msg, toSlog(attrs)...)
}

func toSlog(attrs []observability.Attribute) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, slog.Any(attr.Key, attr.Value))
	}
	return out
}
