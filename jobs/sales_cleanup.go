package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// SalesCleaner is the sale-engine surface the cleanup handler needs.
type SalesCleaner interface {
	CleanupOldVoidedSales(ctx context.Context, retentionDays int) (int, error)
}

// NewSalesCleanupHandler builds the handler for TaskSalesCleanupVoided.
func NewSalesCleanupHandler(cleaner SalesCleaner, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SalesCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		removed, err := cleaner.CleanupOldVoidedSales(ctx, payload.RetentionDays)
		if err != nil {
			logger.Error("voided sale cleanup failed", slog.String("error", err.Error()))
			return err
		}
		logger.Info("voided sale cleanup finished",
			slog.Int("removed", removed),
			slog.Int("retention_days", payload.RetentionDays))
		return nil
	}
}
