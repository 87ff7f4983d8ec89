package scoring

import (
	"context"
	"log/slog"

	id "kyc/pkg/domain"
)

// Engine binds a Config to the pure scoring functions and logs admission outcomes.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates an engine. A nil logger discards admission logs.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Evaluate admits and scores a user's receipts.
func (e *Engine) Evaluate(ctx context.Context, userID id.UserID, records []Receipt) (Result, error) {
	trusted, dropped := e.Partition(ctx, userID, records)
	return Aggregate(ctx, trusted, dropped, e.cfg)
}

// Partition runs admission with the engine's thresholds.
func (e *Engine) Partition(ctx context.Context, userID id.UserID, records []Receipt) ([]Receipt, []Dropped) {
	trusted, dropped := Partition(records, e.cfg.MinReceiptConfidence, e.cfg.MaxSingleReceiptAmount)

	e.logger.InfoContext(ctx, "receipts partitioned",
		"user_id", userID,
		"trusted", len(trusted),
		"dropped", len(dropped),
	)
	for _, d := range dropped {
		e.logger.InfoContext(ctx, "receipt dropped",
			"user_id", userID,
			"receipt_id", d.Receipt.ID,
			"reason", d.Reason,
		)
	}
	return trusted, dropped
}
