package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"kyc/internal/verification/models"
	id "kyc/pkg/domain"
	"kyc/pkg/platform/sentinel"
	txcontext "kyc/pkg/platform/tx"
)

// PostgresStore persists scores in verification_scores and history in
// verification_history. Calls join the transaction carried by ctx.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const scoreColumns = `user_id,
	document_quality_score, spending_pattern_score, consistency_score, diversity_score, final_score,
	weight_document_quality, weight_spending_pattern, weight_consistency, weight_diversity,
	verification_threshold, is_verified,
	total_receipts, total_spending, unique_merchants, unique_locations, date_range_days, average_transaction_amount,
	calculated_at`

func (s *PostgresStore) Upsert(ctx context.Context, score *models.Score) error {
	query := `
		INSERT INTO verification_scores (` + scoreColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (user_id) DO UPDATE SET
			document_quality_score = EXCLUDED.document_quality_score,
			spending_pattern_score = EXCLUDED.spending_pattern_score,
			consistency_score = EXCLUDED.consistency_score,
			diversity_score = EXCLUDED.diversity_score,
			final_score = EXCLUDED.final_score,
			weight_document_quality = EXCLUDED.weight_document_quality,
			weight_spending_pattern = EXCLUDED.weight_spending_pattern,
			weight_consistency = EXCLUDED.weight_consistency,
			weight_diversity = EXCLUDED.weight_diversity,
			verification_threshold = EXCLUDED.verification_threshold,
			is_verified = EXCLUDED.is_verified,
			total_receipts = EXCLUDED.total_receipts,
			total_spending = EXCLUDED.total_spending,
			unique_merchants = EXCLUDED.unique_merchants,
			unique_locations = EXCLUDED.unique_locations,
			date_range_days = EXCLUDED.date_range_days,
			average_transaction_amount = EXCLUDED.average_transaction_amount,
			calculated_at = EXCLUDED.calculated_at
	`
	c, w, m := score.Components, score.Weights, score.Metrics
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		score.UserID.String(),
		c.DocumentQuality, c.SpendingPattern, c.Consistency, c.Diversity, score.FinalScore,
		w.DocumentQuality, w.SpendingPattern, w.Consistency, w.Diversity,
		score.Threshold, score.IsVerified,
		m.TotalReceipts, m.TotalSpending, m.UniqueMerchants, m.UniqueLocations, m.DateRangeDays, m.AverageTransaction,
		score.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert verification score: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByUser(ctx context.Context, userID id.UserID) (*models.Score, error) {
	query := `SELECT ` + scoreColumns + ` FROM verification_scores WHERE user_id = $1`
	score, err := scanScore(txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, userID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find verification score: %w", err)
	}
	return score, nil
}

func (s *PostgresStore) AppendHistory(ctx context.Context, entry models.HistoryEntry) error {
	query := `
		INSERT INTO verification_history (user_id, final_score, receipt_count, recorded_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		entry.UserID.String(), entry.FinalScore, entry.ReceiptCount, entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("append verification history: %w", err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, userID id.UserID) ([]models.HistoryEntry, error) {
	query := `
		SELECT final_score, receipt_count, recorded_at
		FROM verification_history
		WHERE user_id = $1
		ORDER BY recorded_at ASC, id ASC
	`
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("query verification history: %w", err)
	}
	defer rows.Close()

	out := []models.HistoryEntry{}
	for rows.Next() {
		e := models.HistoryEntry{UserID: userID}
		if err := rows.Scan(&e.FinalScore, &e.ReceiptCount, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan verification history: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification history: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Score, error) {
	query := `SELECT ` + scoreColumns + ` FROM verification_scores ORDER BY final_score DESC, user_id`
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list verification scores: %w", err)
	}
	defer rows.Close()

	out := []*models.Score{}
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification score: %w", err)
		}
		out = append(out, score)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification scores: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) AverageFinalScore(ctx context.Context) (decimal.Decimal, error) {
	var avg decimal.NullDecimal
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `SELECT AVG(final_score) FROM verification_scores`).Scan(&avg)
	if err != nil {
		return decimal.Zero, fmt.Errorf("average final score: %w", err)
	}
	if !avg.Valid {
		return decimal.Zero, nil
	}
	return avg.Decimal.Round(2), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScore(row rowScanner) (*models.Score, error) {
	var (
		score models.Score
		rawID string
		c     = &score.Components
		w     = &score.Weights
		m     = &score.Metrics
	)
	err := row.Scan(&rawID,
		&c.DocumentQuality, &c.SpendingPattern, &c.Consistency, &c.Diversity, &score.FinalScore,
		&w.DocumentQuality, &w.SpendingPattern, &w.Consistency, &w.Diversity,
		&score.Threshold, &score.IsVerified,
		&m.TotalReceipts, &m.TotalSpending, &m.UniqueMerchants, &m.UniqueLocations, &m.DateRangeDays, &m.AverageTransaction,
		&score.CalculatedAt,
	)
	if err != nil {
		return nil, err
	}
	if score.UserID, err = id.ParseUserID(rawID); err != nil {
		return nil, err
	}
	return &score, nil
}
