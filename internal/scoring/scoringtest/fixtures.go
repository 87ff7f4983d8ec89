// Package scoringtest builds receipt snapshots for tests.
package scoringtest

import (
	"time"

	"github.com/shopspring/decimal"

	"kyc/internal/scoring"
	id "kyc/pkg/domain"
)

// Base is the reference "today" used by fixtures.
var Base = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

// Option mutates a receipt under construction.
type Option func(*scoring.Receipt)

// Dec parses a decimal literal and panics on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Null wraps a decimal literal as a valid NullDecimal.
func Null(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(Dec(s))
}

// Receipt returns a completed receipt with a merchant and full confidence set
// to 0.95, then applies opts.
func Receipt(opts ...Option) scoring.Receipt {
	merchant := "Naivas Supermarket"
	date := Base
	r := scoring.Receipt{
		ID:                 id.NewReceiptID(),
		FileName:           "receipt.jpg",
		MerchantName:       &merchant,
		ReceiptDate:        &date,
		TotalAmount:        Null("1000.00"),
		Currency:           "KES",
		OverallConfidence:  Null("0.95"),
		ConfidenceMerchant: Null("0.95"),
		ConfidenceDate:     Null("0.95"),
		ConfidenceAddress:  Null("0.95"),
		ConfidenceTotal:    Null("0.95"),
		Status:             scoring.ReceiptCompleted,
		UploadedAt:         Base,
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}

func WithID(v id.ReceiptID) Option { return func(r *scoring.Receipt) { r.ID = v } }

func WithMerchant(name string) Option {
	return func(r *scoring.Receipt) { r.MerchantName = &name }
}

func WithoutMerchant() Option { return func(r *scoring.Receipt) { r.MerchantName = nil } }

func WithAddress(addr string) Option {
	return func(r *scoring.Receipt) { r.Address = &addr }
}

// WithDay sets the receipt date to Base plus n days.
func WithDay(n int) Option {
	return func(r *scoring.Receipt) {
		d := Base.AddDate(0, 0, n)
		r.ReceiptDate = &d
	}
}

func WithoutDate() Option { return func(r *scoring.Receipt) { r.ReceiptDate = nil } }

func WithAmount(s string) Option { return func(r *scoring.Receipt) { r.TotalAmount = Null(s) } }

func WithoutAmount() Option {
	return func(r *scoring.Receipt) { r.TotalAmount = decimal.NullDecimal{} }
}

func WithOverall(s string) Option {
	return func(r *scoring.Receipt) { r.OverallConfidence = Null(s) }
}

func WithoutOverall() Option {
	return func(r *scoring.Receipt) { r.OverallConfidence = decimal.NullDecimal{} }
}

// WithConfidences sets merchant, date, address and total confidences.
func WithConfidences(merchant, date, address, total string) Option {
	return func(r *scoring.Receipt) {
		r.ConfidenceMerchant = nullable(merchant)
		r.ConfidenceDate = nullable(date)
		r.ConfidenceAddress = nullable(address)
		r.ConfidenceTotal = nullable(total)
	}
}

// WithAllConfidences sets the overall and every field confidence to s.
func WithAllConfidences(s string) Option {
	return func(r *scoring.Receipt) {
		r.OverallConfidence = Null(s)
		WithConfidences(s, s, s, s)(r)
	}
}

func WithStatus(s scoring.ReceiptStatus) Option { return func(r *scoring.Receipt) { r.Status = s } }

func WithUploadedAt(t time.Time) Option { return func(r *scoring.Receipt) { r.UploadedAt = t } }

func nullable(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	return Null(s)
}

// ScenarioA is a single fresh receipt from a supermarket.
func ScenarioA() []scoring.Receipt {
	return []scoring.Receipt{
		Receipt(
			WithAmount("2500.00"),
			WithOverall("0.95"),
			WithAddress("Moi Avenue, Nairobi"),
			WithConfidences("0.95", "0.92", "0.88", "0.97"),
		),
	}
}

// ScenarioB is ten regular receipts over 70 days at four merchants and three
// addresses, all read with 0.97 confidence, totalling 80,000.
func ScenarioB() []scoring.Receipt {
	days := []int{0, 8, 16, 23, 31, 39, 47, 54, 62, 70}
	merchants := []string{"Naivas Supermarket", "Carrefour", "Quickmart", "Chandarana Foodplus"}
	addresses := []string{"Moi Avenue, Nairobi", "Westlands, Nairobi", "Nyali, Mombasa"}

	out := make([]scoring.Receipt, 0, len(days))
	for i, d := range days {
		out = append(out, Receipt(
			WithDay(d),
			WithMerchant(merchants[i%len(merchants)]),
			WithAddress(addresses[i%len(addresses)]),
			WithAmount("8000.00"),
			WithAllConfidences("0.97"),
			WithUploadedAt(Base.Add(time.Duration(i)*time.Minute)),
		))
	}
	return out
}
