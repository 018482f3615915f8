package paye

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// RATE SCHEDULE - Progressive bands plus NIS constants for one regime/year
// =============================================================================

// TaxBand is one row of the progressive table. Threshold is the cumulative
// ceiling of taxable income covered by this band and every band before it.
// The final band is unbounded: its Threshold is a placeholder and is never
// used as a cap.
type TaxBand struct {
	Threshold decimal.Decimal
	Rate      decimal.Decimal
}

// SocialInsurance holds the NIS constants.
type SocialInsurance struct {
	EmployedRate     decimal.Decimal
	SelfEmployedRate decimal.Decimal
	MonthlyCeiling   decimal.Decimal // max monthly insurable earnings
}

// Schedule is the full rate configuration the engine runs against.
type Schedule struct {
	Name            string
	Year            int
	Currency        string
	Bands           []TaxBand
	SocialInsurance SocialInsurance
}

// DefaultSchedule returns the Barbados PAYE/NIS table.
func DefaultSchedule() Schedule {
	return Schedule{
		Name:     "Barbados PAYE",
		Year:     2022,
		Currency: "BBD",
		Bands: []TaxBand{
			{Threshold: decimal.NewFromInt(25000), Rate: decimal.Zero},
			{Threshold: decimal.NewFromInt(50000), Rate: decimal.RequireFromString("0.125")},
			{Threshold: decimal.Zero, Rate: decimal.RequireFromString("0.285")},
		},
		SocialInsurance: SocialInsurance{
			EmployedRate:     decimal.RequireFromString("0.111"),
			SelfEmployedRate: decimal.RequireFromString("0.171"),
			MonthlyCeiling:   decimal.NewFromInt(4880),
		},
	}
}

var one = decimal.NewFromInt(1)

// Validate checks rates are fractions in [0,1], bounded thresholds are
// positive and strictly increasing, and the NIS ceiling is positive.
func (s Schedule) Validate() error {
	if len(s.Bands) == 0 {
		return scheduleError("at least one band is required")
	}
	prev := decimal.Zero
	for i, b := range s.Bands {
		if !isFraction(b.Rate) {
			return scheduleError("band %d rate %s outside [0,1]", i, b.Rate)
		}
		if i == len(s.Bands)-1 {
			break
		}
		if !b.Threshold.GreaterThan(prev) {
			return scheduleError("band %d threshold %s must exceed %s", i, b.Threshold, prev)
		}
		prev = b.Threshold
	}
	si := s.SocialInsurance
	if !isFraction(si.EmployedRate) {
		return scheduleError("employed NIS rate %s outside [0,1]", si.EmployedRate)
	}
	if !isFraction(si.SelfEmployedRate) {
		return scheduleError("self-employed NIS rate %s outside [0,1]", si.SelfEmployedRate)
	}
	if !si.MonthlyCeiling.IsPositive() {
		return scheduleError("NIS monthly ceiling must be positive")
	}
	return nil
}

// RateFor returns the NIS rate for an employment type.
func (si SocialInsurance) RateFor(t EmploymentType) decimal.Decimal {
	if t == Employed {
		return si.EmployedRate
	}
	return si.SelfEmployedRate
}

// widths converts cumulative thresholds into the amount of income each
// bounded band consumes. The final band gets no width.
func (s Schedule) widths() []decimal.Decimal {
	out := make([]decimal.Decimal, len(s.Bands))
	prev := decimal.Zero
	for i, b := range s.Bands {
		if i == len(s.Bands)-1 {
			break
		}
		out[i] = b.Threshold.Sub(prev)
		prev = b.Threshold
	}
	return out
}

func (s Schedule) clone() Schedule {
	c := s
	c.Bands = append([]TaxBand(nil), s.Bands...)
	return c
}

func isFraction(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(one)
}
