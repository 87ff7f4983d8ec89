package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"kyc/internal/receipt/models"
	"kyc/internal/scoring"
	id "kyc/pkg/domain"
	"kyc/pkg/platform/sentinel"
	txcontext "kyc/pkg/platform/tx"
)

// PostgresStore persists receipts in the receipts table. Every query runs on
// the transaction carried in ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const fieldColumns = `merchant_name, receipt_date, address, total_amount, currency,
	overall_confidence, confidence_merchant, confidence_date, confidence_address, confidence_total`

const receiptColumns = `id, user_id, file_name, content_type, file_size, status, error_message,
	` + fieldColumns + `, uploaded_at, processed_at`

func (s *PostgresStore) exec(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFrom(ctx, s.db)
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Receipt) error {
	query := `
		INSERT INTO receipts (
			id, user_id, file_name, content_type, file_size, image, status, error_message,
			` + fieldColumns + `, uploaded_at, processed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err := s.exec(ctx).ExecContext(ctx, query,
		r.ID.String(), r.UserID.String(), r.FileName, r.ContentType, r.FileSize, r.Image,
		string(r.Status), r.ErrorMessage,
		r.MerchantName, r.ReceiptDate, r.Address, r.TotalAmount, r.Currency,
		r.OverallConfidence, r.ConfidenceMerchant, r.ConfidenceDate, r.ConfidenceAddress, r.ConfidenceTotal,
		r.UploadedAt, r.ProcessedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, r *models.Receipt) error {
	query := `
		UPDATE receipts SET
			status = $3, error_message = $4,
			merchant_name = $5, receipt_date = $6, address = $7, total_amount = $8, currency = $9,
			overall_confidence = $10, confidence_merchant = $11, confidence_date = $12,
			confidence_address = $13, confidence_total = $14, processed_at = $15
		WHERE id = $1 AND user_id = $2
	`
	res, err := s.exec(ctx).ExecContext(ctx, query,
		r.ID.String(), r.UserID.String(), string(r.Status), r.ErrorMessage,
		r.MerchantName, r.ReceiptDate, r.Address, r.TotalAmount, r.Currency,
		r.OverallConfidence, r.ConfidenceMerchant, r.ConfidenceDate, r.ConfidenceAddress, r.ConfidenceTotal,
		r.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("update receipt: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) FindByIDForUser(ctx context.Context, userID id.UserID, receiptID id.ReceiptID) (*models.Receipt, error) {
	query := `SELECT ` + receiptColumns + `, image FROM receipts WHERE id = $1 AND user_id = $2`
	row := s.exec(ctx).QueryRowContext(ctx, query, receiptID.String(), userID.String())

	r, err := scanReceipt(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find receipt: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID, filter models.ListFilter) ([]*models.Receipt, error) {
	var statuses pq.StringArray
	if filter.Status != nil {
		statuses = pq.StringArray{string(*filter.Status)}
	}
	limit := sql.NullInt64{Int64: int64(filter.Limit), Valid: filter.Limit > 0}

	query := `
		SELECT ` + receiptColumns + `
		FROM receipts
		WHERE user_id = $1 AND ($2::text[] IS NULL OR status = ANY($2))
		ORDER BY uploaded_at DESC, id DESC
		OFFSET $3 LIMIT $4
	`
	rows, err := s.exec(ctx).QueryContext(ctx, query, userID.String(), statuses, filter.Offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	out := []*models.Receipt{}
	for rows.Next() {
		r, err := scanReceipt(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListForScoring(ctx context.Context, userID id.UserID) ([]scoring.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE user_id = $1`
	rows, err := s.exec(ctx).QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list receipts for scoring: %w", err)
	}
	defer rows.Close()

	var out []scoring.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		out = append(out, r.Snapshot())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID id.UserID, receiptID id.ReceiptID) error {
	res, err := s.exec(ctx).ExecContext(ctx,
		`DELETE FROM receipts WHERE id = $1 AND user_id = $2`, receiptID.String(), userID.String())
	if err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) Stats(ctx context.Context, userID id.UserID) (models.Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(SUM(total_amount) FILTER (WHERE status = 'completed'), 0)
		FROM receipts
		WHERE user_id = $1
	`
	var st models.Stats
	err := s.exec(ctx).QueryRowContext(ctx, query, userID.String()).Scan(
		&st.Total, &st.Completed, &st.Pending, &st.Processing, &st.Failed, &st.CompletedAmount,
	)
	if err != nil {
		return models.Stats{}, fmt.Errorf("receipt stats: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) PlatformStats(ctx context.Context) (models.PlatformStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(SUM(total_amount) FILTER (WHERE status = 'completed'), 0)
		FROM receipts
	`
	var st models.PlatformStats
	if err := s.exec(ctx).QueryRowContext(ctx, query).Scan(&st.Total, &st.Completed, &st.Failed, &st.TotalSpending); err != nil {
		return models.PlatformStats{}, fmt.Errorf("platform receipt stats: %w", err)
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner, withImage bool) (*models.Receipt, error) {
	var (
		r                  models.Receipt
		receiptID, ownerID string
		status             string
		receiptDate        sql.NullTime
		processedAt        sql.NullTime
		currency           sql.NullString
	)
	dest := []any{
		&receiptID, &ownerID, &r.FileName, &r.ContentType, &r.FileSize, &status, &r.ErrorMessage,
		&r.MerchantName, &receiptDate, &r.Address, &r.TotalAmount, &currency,
		&r.OverallConfidence, &r.ConfidenceMerchant, &r.ConfidenceDate, &r.ConfidenceAddress, &r.ConfidenceTotal,
		&r.UploadedAt, &processedAt,
	}
	if withImage {
		dest = append(dest, &r.Image)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if r.ID, err = id.ParseReceiptID(receiptID); err != nil {
		return nil, err
	}
	if r.UserID, err = id.ParseUserID(ownerID); err != nil {
		return nil, err
	}
	r.Status = scoring.ReceiptStatus(status)
	r.Currency = models.DefaultCurrency
	if currency.Valid && currency.String != "" {
		r.Currency = currency.String
	}
	if receiptDate.Valid {
		d := receiptDate.Time.UTC()
		r.ReceiptDate = &d
	}
	if processedAt.Valid {
		t := processedAt.Time
		r.ProcessedAt = &t
	}
	r.UploadedAt = r.UploadedAt.UTC()
	return &r, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
