package session

import (
	"context"
	"log/slog"
	"time"
)

// staleAfter is how long a session may go without a heartbeat before the
// server closes it on the client's behalf: twice the heartbeat cadence, so a
// single dropped heartbeat never kills a live session.
func (s *Service) staleAfter() time.Duration {
	return 2 * s.heartbeatInterval
}

// ReapStale closes every open session whose last heartbeat is older than
// twice the heartbeat interval. Active time is credited only through the
// last observed heartbeat, not through the close time, so a lost unload
// beacon never inflates a session's duration. Returns the number of
// sessions closed.
func (s *Service) ReapStale(ctx context.Context) (int, error) {
	open, err := s.store.ListOpen(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	cutoff := now.Add(-s.staleAfter())
	closed := 0
	for _, rec := range open {
		last := rec.LastHeartbeat
		if last.IsZero() {
			last = rec.StartTime
		}
		if last.After(cutoff) {
			continue
		}

		end := last
		if end.Before(rec.StartTime) {
			end = rec.StartTime
		}
		active := int64(end.Sub(rec.StartTime) / time.Second)
		rec.EndTime = &end
		rec.ActiveDurationSeconds = &active
		if err := s.store.Update(ctx, rec); err != nil {
			slog.Warn("failed to close stale session", "session", rec.ID, "error", err)
			continue
		}
		closed++
		slog.Info("closed stale session", "session", rec.ID, "user", rec.UserID, "lastHeartbeat", last)
	}
	return closed, nil
}

// RunReaper sweeps for stale sessions on the heartbeat cadence until the
// context is cancelled.
func (s *Service) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ReapStale(ctx); err != nil {
				slog.Warn("stale session sweep failed", "error", err)
			}
		}
	}
}
