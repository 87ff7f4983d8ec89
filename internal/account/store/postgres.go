package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"kyc/internal/account/models"
	"kyc/internal/scoring"
	id "kyc/pkg/domain"
	"kyc/pkg/platform/sentinel"
	txcontext "kyc/pkg/platform/tx"
)

// PostgresStore persists accounts in the users table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `id, email, full_name, kyc_status, kyc_score, verification_date, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, a *models.Account) error {
	query := `
		INSERT INTO users (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		a.ID.String(), a.Email, a.FullName, string(a.KYCStatus), a.KYCScore, a.VerificationDate, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE id = $1`
	a, err := scanAccount(txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, userID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) UpdateKYC(ctx context.Context, userID id.UserID, kyc scoring.AccountKYC, now time.Time) error {
	query := `
		UPDATE users
		SET kyc_score = $2, kyc_status = $3, verification_date = $4, updated_at = $5
		WHERE id = $1
	`
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		userID.String(), kyc.Score.Round(2), string(kyc.Status), kyc.VerificationDate, now,
	)
	if err != nil {
		return fmt.Errorf("update account kyc: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Account, error) {
	var status sql.NullString
	if filter.Status != nil {
		status = sql.NullString{String: string(*filter.Status), Valid: true}
	}
	var limit sql.NullInt64
	if filter.Limit > 0 {
		limit = sql.NullInt64{Int64: int64(filter.Limit), Valid: true}
	}
	query := `
		SELECT ` + accountColumns + `
		FROM users
		WHERE ($1::text IS NULL OR kyc_status = $1)
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3
	`
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, status, filter.Offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	out := []*models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) StatusCounts(ctx context.Context) (models.StatusCounts, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE kyc_status = 'verified'),
			COUNT(*) FILTER (WHERE kyc_status = 'under_review'),
			COUNT(*) FILTER (WHERE kyc_status = 'pending')
		FROM users
	`
	var c models.StatusCounts
	if err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query).Scan(&c.Total, &c.Verified, &c.UnderReview, &c.Pending); err != nil {
		return models.StatusCounts{}, fmt.Errorf("account status counts: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) IDs(ctx context.Context) ([]id.UserID, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, `SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list account ids: %w", err)
	}
	defer rows.Close()

	var out []id.UserID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		userID, err := id.ParseUserID(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, userID)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		a        models.Account
		rawID    string
		status   string
		verified sql.NullTime
	)
	if err := row.Scan(&rawID, &a.Email, &a.FullName, &status, &a.KYCScore, &verified, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(rawID)
	if err != nil {
		return nil, err
	}
	a.ID = userID
	if a.KYCStatus, err = id.ParseKYCStatus(status); err != nil {
		return nil, err
	}
	if verified.Valid {
		t := verified.Time
		a.VerificationDate = &t
	}
	return &a, nil
}
