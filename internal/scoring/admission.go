package scoring

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	reasonMissingCompanyName = "missing_company_name"
	reasonSeparator          = "; "
)

// Partition splits the eligible receipts into trusted and dropped, in ascending
// upload order. Ineligible receipts are excluded from both outputs.
// Every admission rule is evaluated so a dropped receipt lists all its reasons.
func Partition(records []Receipt, minConfidence decimal.Decimal, maxSingleAmount decimal.NullDecimal) ([]Receipt, []Dropped) {
	eligible := make([]Receipt, 0, len(records))
	for _, r := range records {
		if r.Eligible() {
			eligible = append(eligible, r)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if !eligible[i].UploadedAt.Equal(eligible[j].UploadedAt) {
			return eligible[i].UploadedAt.Before(eligible[j].UploadedAt)
		}
		return bytes.Compare(eligible[i].ID[:], eligible[j].ID[:]) < 0
	})

	trusted := make([]Receipt, 0, len(eligible))
	dropped := make([]Dropped, 0)
	for _, r := range eligible {
		reasons := admissionReasons(r, minConfidence, maxSingleAmount)
		if len(reasons) == 0 {
			trusted = append(trusted, r)
			continue
		}
		dropped = append(dropped, Dropped{Receipt: r, Reason: strings.Join(reasons, reasonSeparator)})
	}
	return trusted, dropped
}

func admissionReasons(r Receipt, minConfidence decimal.Decimal, maxSingleAmount decimal.NullDecimal) []string {
	var reasons []string
	if missingMerchant(r.MerchantName) {
		reasons = append(reasons, reasonMissingCompanyName)
	}

	observed := decimal.Zero
	if r.OverallConfidence.Valid {
		observed = r.OverallConfidence.Decimal
	}
	if observed.LessThan(minConfidence) {
		reasons = append(reasons, fmt.Sprintf("low_confidence (%s < %s)",
			observed.StringFixed(3), minConfidence.StringFixed(3)))
	}

	if maxSingleAmount.Valid && r.TotalAmount.Decimal.GreaterThan(maxSingleAmount.Decimal) {
		reasons = append(reasons, fmt.Sprintf("outlier_amount (%s > %s)",
			r.TotalAmount.Decimal.String(), maxSingleAmount.Decimal.StringFixed(0)))
	}
	return reasons
}

func missingMerchant(name *string) bool {
	if name == nil {
		return true
	}
	n := strings.ToLower(strings.TrimSpace(*name))
	return n == "" || n == "unknown" || n == "n/a"
}
