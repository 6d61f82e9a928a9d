// Package tracker runs the reconcile loop that keeps the channel message in step with
// playback. A Loop is either stopped or running; Start and Stop are the only transitions.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/nowplaying/publisher"
	"github.com/onnwee/nowplaying/telemetry"
	"github.com/onnwee/nowplaying/tracksource"
)

const (
	DefaultInterval = 10 * time.Second
	historyTimeout  = 5 * time.Second
	stopWait        = 30 * time.Second
)

// Source yields one sample per call and never fails.
type Source interface {
	Fetch(ctx context.Context) tracksource.Sample
}

// Publisher mutates the tracked channel message.
type Publisher interface {
	Publish(ctx context.Context, s tracksource.Sample) (publisher.Handle, error)
	Update(ctx context.Context, h publisher.Handle, s tracksource.Sample) error
	MarkPaused(ctx context.Context, h publisher.Handle, lastArtwork string) error
	Retract(ctx context.Context, h publisher.Handle)
}

// History records track changes.
type History interface {
	Append(ctx context.Context, title, artists string) error
}

// Ack reports the outcome of Start or Stop.
type Ack struct {
	Changed bool
	Reason  string
	Err     error
}

// Reasons returned in Ack.
const (
	ReasonStarted        = "started"
	ReasonStopped        = "stopped"
	ReasonAlreadyRunning = "already running"
	ReasonAlreadyStopped = "already stopped"
)

// Loop owns the tracker state. All methods are safe for concurrent use.
type Loop struct {
	src      Source
	pub      Publisher
	hist     History
	interval time.Duration

	// ctlMu serializes Start and Stop.
	ctlMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// mu guards st and the tick bookkeeping.
	mu         sync.Mutex
	st         State
	lastTickAt time.Time
	lastErr    error
}

// New returns a stopped Loop. hist may be nil.
func New(src Source, pub Publisher, hist History, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{src: src, pub: pub, hist: hist, interval: interval}
}

// Start resets state, reconciles once synchronously and starts ticking. When the first
// sample is unavailable a paused placeholder is published so the channel shows something.
// The loop runs even when that first channel call fails; Ack.Err then carries the failure
// and the next tick retries.
func (l *Loop) Start(ctx context.Context) Ack {
	l.ctlMu.Lock()
	defer l.ctlMu.Unlock()

	if l.Running() {
		return Ack{Reason: ReasonAlreadyRunning}
	}
	if err := ctx.Err(); err != nil {
		return Ack{Reason: "start canceled", Err: err}
	}

	l.mu.Lock()
	l.st = State{Running: true}
	l.lastErr = nil
	l.mu.Unlock()

	kind, firstErr := l.tick(ctx)
	if firstErr == nil && kind == tracksource.KindUnavailable {
		firstErr = l.publishPlaceholder(ctx)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(loopCtx, l.done)

	telemetry.SetTrackerRunning(true)
	slog.Info("tracker started", slog.String("component", "tracker"), slog.Duration("interval", l.interval))
	return Ack{Changed: true, Reason: ReasonStarted, Err: firstErr}
}

func (l *Loop) publishPlaceholder(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.st.Handle != nil {
		return nil
	}
	h, err := l.pub.Publish(ctx, tracksource.Paused())
	if err != nil {
		slog.Warn("placeholder publish failed", slog.String("component", "tracker"), slog.Any("err", err))
		l.lastErr = err
		return err
	}
	l.st.Handle = &h
	return nil
}

// Stop cancels the loop, waits for an in-flight tick, clears state and retracts the message.
// The returned state is stopped regardless of whether the retract succeeded.
func (l *Loop) Stop(ctx context.Context) Ack {
	l.ctlMu.Lock()
	defer l.ctlMu.Unlock()

	if !l.Running() {
		return Ack{Reason: ReasonAlreadyStopped}
	}
	if l.cancel != nil {
		l.cancel()
		wait, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopWait)
		select {
		case <-l.done:
		case <-wait.Done():
			slog.Warn("tracker tick did not finish before stop deadline", slog.String("component", "tracker"))
		}
		cancel()
		l.cancel, l.done = nil, nil
	}

	l.mu.Lock()
	h := l.st.Handle
	l.st = State{}
	l.mu.Unlock()

	telemetry.SetTrackerRunning(false)
	if h != nil {
		l.pub.Retract(context.WithoutCancel(ctx), *h)
	}
	slog.Info("tracker stopped", slog.String("component", "tracker"))
	return Ack{Changed: true, Reason: ReasonStopped}
}

// Running reports whether the loop is started.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.st.Running
}

// Status returns a snapshot of the current state.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := Status{
		Running:    l.st.Running,
		State:      l.st.LastKnown.Kind.String(),
		LastTickAt: l.lastTickAt,
	}
	if !l.st.Running {
		s.State = "stopped"
	}
	if l.st.Handle != nil {
		s.MessageID = l.st.Handle.MessageID
	}
	if l.st.LastKnown.Kind == ObservedPlaying && l.st.Current != nil {
		s.TrackID = l.st.Current.TrackID
		s.Title = l.st.Current.DisplayTitle()
		s.Artists = l.st.Current.ArtistLine()
		s.TrackURL = tracksource.TrackURL(l.st.Current.TrackID)
	}
	if l.lastErr != nil {
		s.LastError = l.lastErr.Error()
	}
	return s
}

// Interval returns the tick period.
func (l *Loop) Interval() time.Duration { return l.interval }

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			// Cancellation stops the loop between ticks; a started tick completes under
			// its own per-call timeouts.
			_, _ = l.tick(context.WithoutCancel(ctx))
		}
	}
}

// tick fetches one sample and reconciles it. Errors and panics end here.
func (l *Loop) tick(ctx context.Context) (kind tracksource.Kind, err error) {
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	ctx, span := telemetry.StartSpan(ctx, "tracker", "tracker.tick")
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "tracker"))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
			logger.Error("tick panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
		if err != nil {
			logger.Warn("tick failed; will retry next tick", slog.String("sample", kind.String()), slog.Any("err", err))
		}
		l.mu.Lock()
		l.lastTickAt = time.Now()
		l.lastErr = err
		l.mu.Unlock()
		telemetry.CountTick(err != nil)
		if telemetry.TickDuration != nil {
			telemetry.TickDuration.Observe(time.Since(start).Seconds())
		}
		telemetry.EndSpan(span, err)
	}()

	s := l.src.Fetch(ctx)
	kind = s.Kind
	span.SetAttributes(telemetry.SampleKindAttr(kind.String()), telemetry.TrackIDAttr(s.TrackID))

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.st.Running {
		return kind, nil
	}
	return kind, l.reconcile(ctx, &l.st, s)
}
