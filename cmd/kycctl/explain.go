package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"kyc/internal/scoring"
	id "kyc/pkg/domain"
)

// receiptFixture is the JSON shape accepted by explain. Absent numbers stay
// invalid, exactly as an extractor that produced nothing for the field.
type receiptFixture struct {
	ID                 string              `json:"id"`
	FileName           string              `json:"file_name"`
	MerchantName       *string             `json:"merchant_name"`
	ReceiptDate        string              `json:"receipt_date"`
	Address            *string             `json:"address"`
	TotalAmount        decimal.NullDecimal `json:"total_amount"`
	Currency           string              `json:"currency"`
	OverallConfidence  decimal.NullDecimal `json:"overall_confidence"`
	ConfidenceMerchant decimal.NullDecimal `json:"confidence_merchant"`
	ConfidenceDate     decimal.NullDecimal `json:"confidence_date"`
	ConfidenceAddress  decimal.NullDecimal `json:"confidence_address"`
	ConfidenceTotal    decimal.NullDecimal `json:"confidence_total"`
	Status             string              `json:"status"`
	UploadedAt         *time.Time          `json:"uploaded_at"`
}

func explainCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Score a JSON receipt fixture offline and explain the result",
		Long: `Reads a JSON array of receipts, runs admission and aggregation with the
configured scoring parameters, and prints the component breakdown together
with the receipts that were dropped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open fixture: %w", err)
			}
			defer func() { _ = f.Close() }()

			records, err := loadFixtures(f)
			if err != nil {
				return err
			}
			cfg, err := loadServerConfig()
			if err != nil {
				return err
			}

			engine := scoring.NewEngine(cfg.Scoring, slog.Default())
			result, err := engine.Evaluate(cmd.Context(), id.UserID{}, records)
			if err != nil {
				return err
			}
			return renderBreakdown(cmd.OutOrStdout(), scoring.NewBreakdown(result))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with an array of receipts")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func loadFixtures(r io.Reader) ([]scoring.Receipt, error) {
	var fixtures []receiptFixture
	if err := json.NewDecoder(r).Decode(&fixtures); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}

	records := make([]scoring.Receipt, 0, len(fixtures))
	for i, fx := range fixtures {
		rec, err := fx.toReceipt()
		if err != nil {
			return nil, fmt.Errorf("receipt %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (fx receiptFixture) toReceipt() (scoring.Receipt, error) {
	rec := scoring.Receipt{
		ID:                 id.NewReceiptID(),
		FileName:           fx.FileName,
		MerchantName:       fx.MerchantName,
		Address:            fx.Address,
		TotalAmount:        fx.TotalAmount,
		Currency:           fx.Currency,
		OverallConfidence:  fx.OverallConfidence,
		ConfidenceMerchant: fx.ConfidenceMerchant,
		ConfidenceDate:     fx.ConfidenceDate,
		ConfidenceAddress:  fx.ConfidenceAddress,
		ConfidenceTotal:    fx.ConfidenceTotal,
		Status:             scoring.ReceiptCompleted,
	}
	if fx.ID != "" {
		parsed, err := id.ParseReceiptID(fx.ID)
		if err != nil {
			return scoring.Receipt{}, err
		}
		rec.ID = parsed
	}
	if rec.Currency == "" {
		rec.Currency = "KES"
	}
	if fx.Status != "" {
		rec.Status = scoring.ReceiptStatus(fx.Status)
		if !rec.Status.IsValid() {
			return scoring.Receipt{}, fmt.Errorf("unknown status %q", fx.Status)
		}
	}
	if fx.ReceiptDate != "" {
		d, err := time.Parse(time.DateOnly, fx.ReceiptDate)
		if err != nil {
			return scoring.Receipt{}, fmt.Errorf("receipt_date: %w", err)
		}
		rec.ReceiptDate = &d
	}
	switch {
	case fx.UploadedAt != nil:
		rec.UploadedAt = fx.UploadedAt.UTC()
	case rec.ReceiptDate != nil:
		rec.UploadedAt = *rec.ReceiptDate
	}
	return rec, nil
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	passStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

func renderBreakdown(w io.Writer, b scoring.Breakdown) error {
	verdict := failStyle.Render("NOT VERIFIED")
	if b.IsVerified {
		verdict = passStyle.Render("VERIFIED")
	}
	summary := fmt.Sprintf("%s %s / 100   threshold %s   %s",
		titleStyle.Render("KYC score"),
		b.FinalScore.StringFixed(2),
		b.Threshold.StringFixed(2),
		verdict,
	)

	var sb strings.Builder
	sb.WriteString(summaryStyle.Render(summary))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "%-20s %8s %8s %13s\n",
		headerStyle.Render("Component"),
		headerStyle.Render("Score"),
		headerStyle.Render("Weight"),
		headerStyle.Render("Contribution"),
	)
	for _, c := range b.Components {
		fmt.Fprintf(&sb, "%-20s %8s %8s %13s\n", c.Name,
			c.Score.StringFixed(2), c.Weight.StringFixed(2), c.Contribution.StringFixed(2))
		fmt.Fprintf(&sb, "  %s\n", mutedStyle.Render("tip: "+c.Tip))
	}

	m := b.Metrics
	fmt.Fprintf(&sb, "\n%s\n", titleStyle.Render("Trusted receipts"))
	fmt.Fprintf(&sb, "  receipts %d   spending %s   average %s\n",
		m.TotalReceipts, m.TotalSpending.StringFixed(2), m.AverageTransaction.StringFixed(2))
	fmt.Fprintf(&sb, "  merchants %d   locations %d   date range %d days\n",
		m.UniqueMerchants, m.UniqueLocations, m.DateRangeDays)

	if len(b.ReceiptsDropped) > 0 {
		fmt.Fprintf(&sb, "\n%s\n", failStyle.Render(fmt.Sprintf("Dropped receipts (%d)", len(b.ReceiptsDropped))))
		for _, d := range b.ReceiptsDropped {
			fmt.Fprintf(&sb, "  %-24s %12s  %s\n", merchantLabel(d.Receipt), amountLabel(d.Receipt), d.Reason)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func merchantLabel(r scoring.Receipt) string {
	if r.MerchantName != nil && *r.MerchantName != "" {
		return *r.MerchantName
	}
	if r.FileName != "" {
		return r.FileName
	}
	return r.ID.String()
}

func amountLabel(r scoring.Receipt) string {
	if !r.TotalAmount.Valid {
		return "-"
	}
	return r.TotalAmount.Decimal.StringFixed(2)
}
