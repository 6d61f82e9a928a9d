// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	TicksTotal      prometheus.Counter
	TickErrors      prometheus.Counter
	Samples         *prometheus.CounterVec // by kind: playing|paused|unavailable
	PublisherCalls  *prometheus.CounterVec // by op and result
	StaleHandles    prometheus.Counter
	HistoryAppends  prometheus.Counter
	LyricsLookups   *prometheus.CounterVec // by result: hit|found|fallback
	CommandsHandled *prometheus.CounterVec // by command

	// Histograms (seconds)
	TickDuration  prometheus.Observer
	FetchDuration prometheus.Observer

	// Gauges
	TrackerRunningGauge prometheus.Gauge // 1=running,0=stopped
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		TicksTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "nowplaying_ticks_total", Help: "Number of reconcile ticks executed"})
		TickErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "nowplaying_tick_errors_total", Help: "Number of ticks that ended with a channel error"})
		Samples = promauto.NewCounterVec(prometheus.CounterOpts{Name: "nowplaying_samples_total", Help: "Playback samples by kind"}, []string{"kind"})
		PublisherCalls = promauto.NewCounterVec(prometheus.CounterOpts{Name: "nowplaying_publisher_calls_total", Help: "Channel mutations by operation and result"}, []string{"op", "result"})
		StaleHandles = promauto.NewCounter(prometheus.CounterOpts{Name: "nowplaying_stale_handles_total", Help: "Tracked messages found missing on edit"})
		HistoryAppends = promauto.NewCounter(prometheus.CounterOpts{Name: "nowplaying_history_appends_total", Help: "Track changes written to history"})
		LyricsLookups = promauto.NewCounterVec(prometheus.CounterOpts{Name: "nowplaying_lyrics_lookups_total", Help: "Lyrics link resolutions by result"}, []string{"result"})
		CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{Name: "nowplaying_commands_total", Help: "Bot commands handled"}, []string{"command"})
		TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "nowplaying_tick_duration_seconds", Help: "Reconcile tick duration seconds", Buckets: prometheus.DefBuckets})
		FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "nowplaying_fetch_duration_seconds", Help: "Source fetch duration seconds", Buckets: prometheus.DefBuckets})
		TrackerRunningGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "nowplaying_tracker_running", Help: "Tracker running=1 stopped=0"})
	})
}

// SetTrackerRunning sets the running gauge to 1 or 0.
func SetTrackerRunning(running bool) {
	if TrackerRunningGauge == nil {
		return
	}
	if running {
		TrackerRunningGauge.Set(1)
	} else {
		TrackerRunningGauge.Set(0)
	}
}

// CountTick records one tick and whether it failed.
func CountTick(failed bool) {
	if TicksTotal != nil {
		TicksTotal.Inc()
	}
	if failed && TickErrors != nil {
		TickErrors.Inc()
	}
}

// CountSample records a sample of the given kind.
func CountSample(kind string) {
	if Samples != nil {
		Samples.WithLabelValues(kind).Inc()
	}
}

// CountPublisherCall records a channel mutation outcome.
func CountPublisherCall(op string, err error) {
	if PublisherCalls == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	PublisherCalls.WithLabelValues(op, result).Inc()
}

// CountStaleHandle records a tracked message that disappeared.
func CountStaleHandle() {
	if StaleHandles != nil {
		StaleHandles.Inc()
	}
}

// CountHistoryAppend records one history write.
func CountHistoryAppend() {
	if HistoryAppends != nil {
		HistoryAppends.Inc()
	}
}

// CountLyricsLookup records a lyrics link resolution result.
func CountLyricsLookup(result string) {
	if LyricsLookups != nil {
		LyricsLookups.WithLabelValues(result).Inc()
	}
}

// CountCommand records a handled bot command.
func CountCommand(name string) {
	if CommandsHandled != nil {
		CommandsHandled.WithLabelValues(name).Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
