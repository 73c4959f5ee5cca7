package workers

import (
	"context"
	"log/slog"
	"time"
)

// StartTokenKeeper calls ensure every interval until ctx is done, so the
// access token is validated (and refreshed when rejected) without waiting for
// a send to fail. A non-positive interval disables the loop.
func StartTokenKeeper(ctx context.Context, interval time.Duration, ensure func(ctx context.Context) bool, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "token_keeper")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		logger.Info("token keeper started", "interval", interval)
		for {
			select {
			case <-ctx.Done():
				logger.Info("token keeper stopped")
				return
			case <-ticker.C:
				if !ensure(ctx) {
					logger.Warn("access token still invalid, manual authorization may be required")
				}
			}
		}
	}()
}
