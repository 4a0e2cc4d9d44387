// Package purge removes expired verification codes so the code table stays
// small and redemption lookups stay cheap.
package purge

import (
	"context"
	"time"

	"github.com/squadhub/squadlink/internal/database"
	"github.com/squadhub/squadlink/internal/setup"
	"go.uber.org/zap"
)

// Worker periodically deletes expired verification codes.
type Worker struct {
	db       database.Client
	interval time.Duration
	logger   *zap.Logger
}

// New creates a new purge worker.
func New(app *setup.App, logger *zap.Logger) *Worker {
	return &Worker{
		db:       app.DB,
		interval: time.Duration(app.Config.Worker.PurgeIntervalMinutes) * time.Minute,
		logger:   logger,
	}
}

// Start begins the purge worker's main loop.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Purge worker started", zap.Duration("interval", w.interval))

	for {
		purged, err := w.db.Service().Verification().PurgeExpired(ctx)
		if err != nil {
			w.logger.Error("Failed to purge expired codes", zap.Error(err))
		} else if purged > 0 {
			w.logger.Info("Purged expired verification codes", zap.Int64("count", purged))
		}

		select {
		case <-time.After(w.interval):
		case <-ctx.Done():
			w.logger.Info("Purge worker stopped")
			return
		}
	}
}
