package worker

import (
	"context"
	"time"

	"achieveit/internal/logger"

	"go.uber.org/zap"
)

const DefaultSweepInterval = time.Minute

// Sweeper ends expired sessions.
type Sweeper interface {
	Sweep(ctx context.Context) int
	ActiveSessions() int
}

type SessionSweeper struct {
	sessions Sweeper
	interval time.Duration
}

func NewSessionSweeper(sessions Sweeper, interval *time.Duration) *SessionSweeper {
	intervalToSet := DefaultSweepInterval
	if interval != nil && *interval > 0 {
		intervalToSet = *interval
	}
	return &SessionSweeper{
		sessions: sessions,
		interval: intervalToSet,
	}
}

// Start runs Check on every tick until ctx is done.
func (w *SessionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Debug("Worker: sweeping expired sessions", zap.Time("started_at", time.Now()))
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: session sweeper stopping")
			return
		}
	}
}

// Check runs one sweep and reports how many sessions it ended.
func (w *SessionSweeper) Check(ctx context.Context) int {
	start := time.Now()

	ended := w.sessions.Sweep(ctx)
	if ended == 0 {
		return 0
	}

	logger.Info("Worker: expired sessions ended",
		zap.Duration("ms", time.Since(start)),
		zap.Int("ended", ended),
		zap.Int("active", w.sessions.ActiveSessions()),
	)
	return ended
}
