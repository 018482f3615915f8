package paye

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE - Progressive band consumption + capped NIS
// =============================================================================

// Engine computes assessments against one immutable Schedule.
// Safe for concurrent use.
type Engine struct {
	schedule Schedule
	widths   []decimal.Decimal
	now      func() time.Time
	newID    func() AssessmentID
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides how assessment IDs are assigned.
func WithIDGenerator(newID func() AssessmentID) Option {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine validates the schedule and takes a private copy of it.
func NewEngine(s Schedule, opts ...Option) (*Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s = s.clone()
	e := &Engine{
		schedule: s,
		widths:   s.widths(),
		now:      time.Now,
		newID:    func() AssessmentID { return AssessmentID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Schedule returns a copy of the schedule the engine was built with.
func (e *Engine) Schedule() Schedule {
	return e.schedule.clone()
}

// ComputeAssessment is the engine's single operation. It either returns a
// fully populated result or an *InvalidInputError.
func (e *Engine) ComputeAssessment(in AssessmentInput) (AssessmentResult, error) {
	if err := in.Validate(); err != nil {
		return AssessmentResult{}, err
	}

	bands := e.BandAmounts(in.AnnualGrossSalary)
	annual := decimal.Zero
	for _, b := range bands {
		annual = annual.Add(b)
	}

	return AssessmentResult{
		ID:                     e.newID(),
		BandAmounts:            bands,
		AnnualIncomeTax:        annual,
		MonthlyIncomeTax:       annual.Div(monthsPerYear),
		MonthlySocialInsurance: e.MonthlySocialInsurance(in.AnnualGrossSalary, in.EmploymentType),
		AnnualGrossSalary:      in.AnnualGrossSalary,
		EmploymentType:         in.EmploymentType,
		CreatedAt:              e.now(),
	}, nil
}

// BandAmounts returns the tax owed in each band for salary. Bands are
// consumed in order; the remainder is clamped at zero before each band so a
// salary below a boundary never yields negative tax further up. The final
// band absorbs whatever remains.
func (e *Engine) BandAmounts(salary decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(e.schedule.Bands))
	remaining := salary
	last := len(e.schedule.Bands) - 1

	for i, band := range e.schedule.Bands {
		taxable := decimal.Max(remaining, decimal.Zero)
		if i < last {
			taxable = decimal.Min(taxable, e.widths[i])
			remaining = remaining.Sub(e.widths[i])
		}
		out[i] = band.Rate.Mul(taxable)
	}
	return out
}

// MonthlySocialInsurance is rate * min(salary/12, ceiling).
func (e *Engine) MonthlySocialInsurance(salary decimal.Decimal, t EmploymentType) decimal.Decimal {
	si := e.schedule.SocialInsurance
	insurable := decimal.Min(salary.Div(monthsPerYear), si.MonthlyCeiling)
	return si.RateFor(t).Mul(insurable)
}
