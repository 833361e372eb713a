// Package metrics exposes OpenTelemetry instruments through a Prometheus
// scrape handler. All Record methods are safe on a nil *Metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Metrics struct {
	HTTPRequests    metric.Int64Counter
	HTTPDuration    metric.Float64Histogram
	CacheHits       metric.Int64Counter
	CacheMisses     metric.Int64Counter
	ReactionToggles metric.Int64Counter
	FollowChanges   metric.Int64Counter
	SnapshotRuns    metric.Int64Counter
	SnapshotLatency metric.Float64Histogram
}

// Setup builds the instruments on a fresh registry and returns the handler serving it.
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	m := &Metrics{}

	m.HTTPRequests, err = meter.Int64Counter(
		"blog_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"blog_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CacheHits, err = meter.Int64Counter(
		"blog_cache_hits_total",
		metric.WithDescription("Total number of cache hits"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.CacheMisses, err = meter.Int64Counter(
		"blog_cache_misses_total",
		metric.WithDescription("Total number of cache misses"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ReactionToggles, err = meter.Int64Counter(
		"blog_reaction_toggles_total",
		metric.WithDescription("Reaction toggles by target kind and resulting state"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.FollowChanges, err = meter.Int64Counter(
		"blog_follow_changes_total",
		metric.WithDescription("Follow graph edges added or removed"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SnapshotRuns, err = meter.Int64Counter(
		"blog_snapshot_runs_total",
		metric.WithDescription("Weekly snapshot runs by outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SnapshotLatency, err = meter.Float64Histogram(
		"blog_snapshot_duration_seconds",
		metric.WithDescription("Weekly snapshot run duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m, handler, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

// RecordCacheHit counts a hit. key should be a low-cardinality scope, not a full cache key.
func (m *Metrics) RecordCacheHit(ctx context.Context, key string) {
	if m == nil {
		return
	}
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))
}

func (m *Metrics) RecordCacheMiss(ctx context.Context, key string) {
	if m == nil {
		return
	}
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key)))
}

func (m *Metrics) RecordReactionToggle(ctx context.Context, kind string, reacted bool) {
	if m == nil {
		return
	}
	m.ReactionToggles.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("reacted", reacted),
	))
}

// RecordFollowChange counts an edge change; action is "follow" or "unfollow".
func (m *Metrics) RecordFollowChange(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.FollowChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

func (m *Metrics) RecordSnapshotRun(ctx context.Context, kind string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	labels := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	m.SnapshotRuns.Add(ctx, 1, labels)
	m.SnapshotLatency.Record(ctx, duration.Seconds(), labels)
}
