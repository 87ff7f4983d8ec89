// Package app assembles stores and services from configuration. The server
// and kycctl share it so both run against the same wiring.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	accountmodels "kyc/internal/account/models"
	accountstore "kyc/internal/account/store"
	adminservice "kyc/internal/admin/service"
	"kyc/internal/platform/config"
	"kyc/internal/platform/database"
	redisclient "kyc/internal/platform/redis"
	"kyc/internal/receipt/extractor"
	receiptmetrics "kyc/internal/receipt/metrics"
	"kyc/internal/receipt/ports"
	receiptservice "kyc/internal/receipt/service"
	receiptstore "kyc/internal/receipt/store"
	"kyc/internal/scoring"
	verificationmetrics "kyc/internal/verification/metrics"
	verificationservice "kyc/internal/verification/service"
	verificationstore "kyc/internal/verification/store"
	"kyc/migrations"
	id "kyc/pkg/domain"
	audit "kyc/pkg/platform/audit"
	"kyc/pkg/platform/audit/publishers/compliance"
	"kyc/pkg/platform/audit/publishers/ops"
	auditmemory "kyc/pkg/platform/audit/store/memory"
	auditpostgres "kyc/pkg/platform/audit/store/postgres"
)

type receiptStore interface {
	receiptservice.Store
	verificationservice.ReceiptSource
	adminservice.ReceiptStats
}

type accountStore interface {
	verificationservice.AccountStore
	adminservice.AccountStore
	IDs(ctx context.Context) ([]id.UserID, error)
	Create(ctx context.Context, a *accountmodels.Account) error
}

type scoreStore interface {
	verificationservice.ScoreStore
	adminservice.ScoreStore
}

// Stores is the persistence layer. DB and Outbox are nil in memory mode.
type Stores struct {
	DB       *sql.DB
	Receipts receiptStore
	Accounts accountStore
	Scores   scoreStore
	Audit    audit.Store
	Trail    audit.Reader
	Outbox   *auditpostgres.Store
	Tx       verificationservice.Transactor
}

// OpenStores connects to Postgres when a database URL is configured and
// falls back to in-memory stores otherwise.
func OpenStores(ctx context.Context, cfg config.Server, logger *slog.Logger) (*Stores, error) {
	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			return nil, errors.New("DATABASE_URL is required in production")
		}
		logger.WarnContext(ctx, "no DATABASE_URL set, using in-memory stores")
		auditStore := auditmemory.NewInMemoryStore()
		return &Stores{
			Receipts: receiptstore.NewInMemoryStore(),
			Accounts: accountstore.NewInMemoryStore(),
			Scores:   verificationstore.NewInMemoryStore(),
			Audit:    auditStore,
			Trail:    auditStore,
			Tx:       verificationservice.NewShardedTx(),
		}, nil
	}

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := migrations.Apply(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	outbox := auditpostgres.New(db)
	return &Stores{
		DB:       db,
		Receipts: receiptstore.NewPostgres(db),
		Accounts: accountstore.NewPostgres(db),
		Scores:   verificationstore.NewPostgres(db),
		Audit:    outbox,
		Trail:    outbox,
		Outbox:   outbox,
		Tx:       verificationstore.NewPostgresTx(db),
	}, nil
}

// Close releases the database pool, if any.
func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Services are the domain services built on top of Stores.
type Services struct {
	Receipts     *receiptservice.Service
	Verification *verificationservice.Service
	Admin        *adminservice.Service
	Redis        *redisclient.Client
}

// Close releases the cache connection, if any.
func (s *Services) Close() error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Close()
}

// NewServices wires the receipt, verification and admin services. reg may be
// a throwaway registry for one-shot commands.
func NewServices(ctx context.Context, cfg config.Server, stores *Stores, reg prometheus.Registerer, logger *slog.Logger) (*Services, error) {
	compliancePublisher := compliance.New(stores.Audit,
		compliance.WithLogger(logger),
		compliance.WithMetrics(compliance.NewMetrics(reg)),
	)
	opsTracker := ops.New(stores.Audit,
		ops.WithLogger(logger),
		ops.WithMetrics(ops.NewMetrics(reg)),
		ops.WithSampler(ops.NewSampler(cfg.Audit.OpsSampleRate.InexactFloat64(),
			ops.WithActionRate(audit.EventScoreViewed, cfg.Audit.ScoreViewSampleRate.InexactFloat64()),
			ops.KeepAlways(audit.EventReceiptFailed, audit.EventScoresExported),
		)),
	)

	verificationOpts := []verificationservice.Option{
		verificationservice.WithTransactor(stores.Tx),
		verificationservice.WithAuditPublisher(compliancePublisher),
		verificationservice.WithMetrics(verificationmetrics.New(reg)),
		verificationservice.WithLogger(logger),
	}
	redis, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if redis != nil {
		verificationOpts = append(verificationOpts,
			verificationservice.WithCache(verificationstore.NewRedisScoreCache(redis.Client, cfg.Redis.ScoreTTL)))
	}

	engine := scoring.NewEngine(cfg.Scoring, logger)
	verification, err := verificationservice.New(stores.Receipts, stores.Scores, stores.Accounts, engine, verificationOpts...)
	if err != nil {
		return nil, fmt.Errorf("verification service: %w", err)
	}

	ext, err := newExtractor(cfg.Extractor, logger)
	if err != nil {
		return nil, err
	}
	receipts, err := receiptservice.New(stores.Receipts, ext, verification,
		receiptservice.WithTransactor(stores.Tx),
		receiptservice.WithLogger(logger),
		receiptservice.WithAuditPublisher(compliancePublisher),
		receiptservice.WithOpsTracker(opsTracker),
		receiptservice.WithMetrics(receiptmetrics.New(reg)),
		receiptservice.WithMaxUploadBytes(cfg.UploadMaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("receipt service: %w", err)
	}

	admin, err := adminservice.New(stores.Accounts, stores.Receipts, stores.Scores,
		adminservice.WithTransactor(stores.Tx),
		adminservice.WithAuditPublisher(compliancePublisher),
		adminservice.WithOpsTracker(opsTracker),
		adminservice.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("admin service: %w", err)
	}

	return &Services{
		Receipts:     receipts,
		Verification: verification,
		Admin:        admin,
		Redis:        redis,
	}, nil
}

func newExtractor(cfg config.ExtractorConfig, logger *slog.Logger) (ports.Extractor, error) {
	if cfg.URL == "" {
		logger.Warn("no EXTRACTOR_URL set, using the static demo extractor")
		return extractor.NewStaticExtractor(time.Now), nil
	}
	ext, err := extractor.NewHTTPExtractor(extractor.Config{
		URL:              cfg.URL,
		Timeout:          cfg.Timeout,
		MaxRetries:       cfg.MaxRetries,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerCooldown,
		MaxEdge:          cfg.MaxEdge,
	}, extractor.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}
	return ext, nil
}
