package tracker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/onnwee/nowplaying/publisher"
	"github.com/onnwee/nowplaying/telemetry"
	"github.com/onnwee/nowplaying/tracksource"
)

// reconcile applies one sample to st, making at most one channel mutation plus one
// compensating publish when the tracked message turns out to be stale. LastKnown only
// advances once the channel reflects the sample, so a failed mutation is retried next tick.
func (l *Loop) reconcile(ctx context.Context, st *State, s tracksource.Sample) error {
	switch s.Kind {
	case tracksource.KindPaused:
		return l.reconcilePaused(ctx, st)
	case tracksource.KindPlaying:
		return l.reconcilePlaying(ctx, st, s)
	default:
		return nil
	}
}

func (l *Loop) reconcilePaused(ctx context.Context, st *State) error {
	if st.LastKnown.Kind == ObservedPaused {
		return nil
	}
	if st.Handle != nil {
		err := l.pub.MarkPaused(ctx, *st.Handle, st.LastArtwork)
		switch {
		case err == nil:
			st.LastKnown = LastKnown{Kind: ObservedPaused}
			return nil
		case errors.Is(err, publisher.ErrStaleHandle):
			l.dropHandle(ctx, st)
		default:
			return err
		}
	}
	h, err := l.pub.Publish(ctx, tracksource.Paused())
	if err != nil {
		return err
	}
	st.Handle = &h
	st.LastKnown = LastKnown{Kind: ObservedPaused}
	return nil
}

func (l *Loop) reconcilePlaying(ctx context.Context, st *State, s tracksource.Sample) error {
	if st.LastKnown.PlayingID(s.TrackID) {
		return nil
	}
	if st.lastAppended != s.TrackID {
		l.appendHistory(ctx, st, s)
	}
	if st.Handle != nil {
		err := l.pub.Update(ctx, *st.Handle, s)
		switch {
		case err == nil:
			l.commitPlaying(st, s)
			return nil
		case errors.Is(err, publisher.ErrStaleHandle):
			l.dropHandle(ctx, st)
		case errors.Is(err, publisher.ErrNeedsRepublish):
			return l.replaceMessage(ctx, st, s)
		default:
			return err
		}
	}
	h, err := l.pub.Publish(ctx, s)
	if err != nil {
		return err
	}
	st.Handle = &h
	l.commitPlaying(st, s)
	return nil
}

func (l *Loop) commitPlaying(st *State, s tracksource.Sample) {
	st.LastKnown = LastKnown{Kind: ObservedPlaying, TrackID: s.TrackID}
	st.LastArtwork = s.ArtworkURL
	cur := s
	st.Current = &cur
}

// replaceMessage publishes s as a new message and retracts the old one. The old handle is
// kept when the publish fails so the next tick retries.
func (l *Loop) replaceMessage(ctx context.Context, st *State, s tracksource.Sample) error {
	h, err := l.pub.Publish(ctx, s)
	if err != nil {
		return err
	}
	old := *st.Handle
	st.Handle = &h
	l.commitPlaying(st, s)
	l.pub.Retract(ctx, old)
	return nil
}

func (l *Loop) dropHandle(ctx context.Context, st *State) {
	telemetry.LoggerWithCorr(ctx).Info("tracked message is gone; publishing a new one",
		slog.String("component", "tracker"), slog.Int("message_id", st.Handle.MessageID))
	st.Handle = nil
}

// appendHistory logs failures and lets the tick continue.
func (l *Loop) appendHistory(ctx context.Context, st *State, s tracksource.Sample) {
	if l.hist == nil {
		st.lastAppended = s.TrackID
		return
	}
	hctx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()
	if err := l.hist.Append(hctx, s.DisplayTitle(), s.ArtistLine()); err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("history append failed",
			slog.String("component", "tracker"), slog.String("track_id", s.TrackID), slog.Any("err", err))
		return
	}
	st.lastAppended = s.TrackID
}
