package scoring

import (
	"time"

	"github.com/shopspring/decimal"

	pstrings "kyc/pkg/platform/strings"
)

// Pure component scorers. Each takes the trusted set and returns a value in [0,100].

var (
	spendingTiers = []tier{
		{min: decimal.NewFromInt(100000), points: decimal.NewFromInt(60)},
		{min: decimal.NewFromInt(50000), points: decimal.NewFromInt(45)},
		{min: decimal.NewFromInt(25000), points: decimal.NewFromInt(30)},
	}
	frequencyTiers = []tier{
		{min: decimal.NewFromInt(20), points: decimal.NewFromInt(40)},
		{min: decimal.NewFromInt(10), points: decimal.NewFromInt(30)},
		{min: decimal.NewFromInt(5), points: decimal.NewFromInt(20)},
	}
	cadenceTiers = []tier{
		{min: decimal.NewFromInt(2), points: decimal.NewFromInt(100)},
		{min: decimal.NewFromInt(1), points: decimal.NewFromInt(75)},
		{min: half, points: decimal.NewFromInt(50)},
	}
	merchantTiers = []tier{
		{min: decimal.NewFromInt(5), points: decimal.NewFromInt(60)},
		{min: decimal.NewFromInt(3), points: decimal.NewFromInt(45)},
		{min: decimal.NewFromInt(2), points: decimal.NewFromInt(30)},
	}
	locationTiers = []tier{
		{min: decimal.NewFromInt(3), points: decimal.NewFromInt(40)},
		{min: decimal.NewFromInt(2), points: decimal.NewFromInt(25)},
	}
)

// tier awards points when a value reaches min. Tier lists are ordered highest first.
type tier struct {
	min    decimal.Decimal
	points decimal.Decimal
}

func tiered(v decimal.Decimal, tiers []tier, fallback func(decimal.Decimal) decimal.Decimal) decimal.Decimal {
	for _, t := range tiers {
		if v.GreaterThanOrEqual(t.min) {
			return t.points
		}
	}
	return fallback(v)
}

func constant(d decimal.Decimal) func(decimal.Decimal) decimal.Decimal {
	return func(decimal.Decimal) decimal.Decimal { return d }
}

// DocumentQuality is the mean overall confidence as a percentage.
func DocumentQuality(trusted []Receipt) decimal.Decimal {
	mean, ok := meanOf(trusted, func(r Receipt) decimal.NullDecimal { return r.OverallConfidence })
	if !ok {
		return decimal.Zero
	}
	return decimal.Min(mean.Mul(hundred), hundred)
}

// SpendingPattern rewards total volume and receipt count, scaled by how
// confident the extractor was in the amounts.
func SpendingPattern(trusted []Receipt) decimal.Decimal {
	if len(trusted) == 0 {
		return decimal.Zero
	}
	total := totalSpending(trusted)
	spending := tiered(total, spendingTiers, func(v decimal.Decimal) decimal.Decimal {
		return v.Div(decimal.NewFromInt(1000)).Mul(decimal.RequireFromString("0.6"))
	})
	count := decimal.NewFromInt(int64(len(trusted)))
	frequency := tiered(count, frequencyTiers, func(v decimal.Decimal) decimal.Decimal {
		return v.Mul(decimal.NewFromInt(4))
	})
	return decimal.Min(spending.Add(frequency).Mul(amountConfidence(trusted)), hundred)
}

// amountConfidence is the amount-weighted mean of ConfidenceTotal.
func amountConfidence(trusted []Receipt) decimal.Decimal {
	weighted, weight := decimal.Zero, decimal.Zero
	for _, r := range trusted {
		if !r.TotalAmount.Valid || !r.ConfidenceTotal.Valid {
			continue
		}
		weighted = weighted.Add(r.TotalAmount.Decimal.Mul(r.ConfidenceTotal.Decimal))
		weight = weight.Add(r.TotalAmount.Decimal)
	}
	if weight.IsZero() {
		return half
	}
	return weighted.Div(weight)
}

// Consistency rewards a regular receipt cadence over a long span.
func Consistency(trusted []Receipt) decimal.Decimal {
	rangeDays, dated := dateRange(trusted)
	if dated < 2 || rangeDays == 0 {
		return decimal.Zero
	}

	perWeek := decimal.NewFromInt(int64(len(trusted) * 7)).Div(decimal.NewFromInt(int64(rangeDays)))
	score := tiered(perWeek, cadenceTiers, func(v decimal.Decimal) decimal.Decimal {
		return v.Mul(decimal.NewFromInt(50))
	})
	switch {
	case rangeDays >= 90:
		score = decimal.Min(score.Add(decimal.NewFromInt(10)), hundred)
	case rangeDays >= 60:
		score = decimal.Min(score.Add(decimal.NewFromInt(5)), hundred)
	}

	dateConfidence, ok := meanOf(trusted, func(r Receipt) decimal.NullDecimal { return r.ConfidenceDate })
	if !ok {
		dateConfidence = half
	}
	score = score.Mul(decimal.Max(dateConfidence, half))
	return clamp(score)
}

// Diversity rewards shopping at several merchants and locations.
func Diversity(trusted []Receipt) decimal.Decimal {
	if len(trusted) == 0 {
		return decimal.Zero
	}
	merchants := decimal.NewFromInt(int64(uniqueMerchants(trusted)))
	locations := decimal.NewFromInt(int64(uniqueLocations(trusted)))
	sum := tiered(merchants, merchantTiers, constant(decimal.NewFromInt(15))).
		Add(tiered(locations, locationTiers, constant(decimal.NewFromInt(10))))

	merchantConf, ok := meanOf(trusted, func(r Receipt) decimal.NullDecimal { return r.ConfidenceMerchant })
	if !ok {
		merchantConf = half
	}
	addressConf, ok := meanOf(trusted, func(r Receipt) decimal.NullDecimal { return r.ConfidenceAddress })
	if !ok {
		addressConf = half
	}
	multiplier := merchantConf.Add(addressConf).Div(decimal.NewFromInt(2))
	return decimal.Min(sum.Mul(multiplier), hundred)
}

func meanOf(rs []Receipt, field func(Receipt) decimal.NullDecimal) (decimal.Decimal, bool) {
	sum := decimal.Zero
	n := 0
	for _, r := range rs {
		if v := field(r); v.Valid {
			sum = sum.Add(v.Decimal)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(int64(n))), true
}

func totalSpending(rs []Receipt) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rs {
		if r.TotalAmount.Valid {
			total = total.Add(r.TotalAmount.Decimal)
		}
	}
	return total
}

// dateRange returns the whole-day span between the earliest and latest
// receipt dates, and how many receipts carried a date.
func dateRange(rs []Receipt) (days int, dated int) {
	var lo, hi time.Time
	for _, r := range rs {
		if r.ReceiptDate == nil {
			continue
		}
		d := civilDate(*r.ReceiptDate)
		if dated == 0 || d.Before(lo) {
			lo = d
		}
		if dated == 0 || d.After(hi) {
			hi = d
		}
		dated++
	}
	if dated == 0 {
		return 0, 0
	}
	return int(hi.Sub(lo).Hours() / 24), dated
}

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func uniqueMerchants(rs []Receipt) int {
	return pstrings.CountDistinct(collect(rs, func(r Receipt) *string { return r.MerchantName }))
}

func uniqueLocations(rs []Receipt) int {
	return pstrings.CountDistinct(collect(rs, func(r Receipt) *string { return r.Address }))
}

func collect(rs []Receipt, field func(Receipt) *string) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		if v := field(r); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func clamp(d decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, decimal.Min(d, hundred))
}
