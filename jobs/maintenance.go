package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dentara-clinic/dentara/internal/shared"
)

const idempotencyRetention = 30 * 24 * time.Hour

// HandleIdempotencyCleanup prunes idempotency keys past the retention
// window. Deduction guards older than that refer to lines whose pay-off
// transition can no longer replay.
func HandleIdempotencyCleanup(logger *slog.Logger, store *shared.IdempotencyStore) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		if err := store.Cleanup(ctx, idempotencyRetention); err != nil {
			return err
		}
		logger.Info("idempotency keys pruned", slog.Duration("retention", idempotencyRetention))
		return nil
	}
}
