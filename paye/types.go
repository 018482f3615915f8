/*
Package paye provides the payroll tax engine.

PURPOSE:
  Computes a PAYE income tax and National Insurance Scheme (NIS) estimate
  from an annual gross salary and an employment classification. The engine
  is a pure function of its input and a fixed rate schedule; the only
  ambient input is the clock used to stamp CreatedAt.

KEY CONCEPTS IN THIS FILE (types.go):
  - EmploymentType: Employed or SelfEmployed, selects the NIS rate
  - AssessmentInput: validated (salary, employment type) pair
  - AssessmentResult: immutable breakdown produced by one computation

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal, never float64
  2. Immutability: results are values; the engine never mutates history
  3. Explicit errors: invalid input returns *InvalidInputError

USAGE:
  engine, _ := paye.NewEngine(paye.DefaultSchedule())
  in, err := paye.NewInputFromFloat(36000, paye.Employed)
  result, err := engine.ComputeAssessment(in)

SEE ALSO:
  - schedule.go: Rate table and NIS constants
  - engine.go: Band consumption algorithm
  - errors.go: Error types
*/
package paye

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EMPLOYMENT CLASSIFICATION
// =============================================================================

// EmploymentType determines which social-insurance rate applies.
type EmploymentType string

const (
	Employed     EmploymentType = "employed"
	SelfEmployed EmploymentType = "self-employed"
)

// Valid reports whether t is one of the known classifications.
func (t EmploymentType) Valid() bool {
	return t == Employed || t == SelfEmployed
}

func (t EmploymentType) String() string { return string(t) }

// Label is the human-readable form shown next to a history entry.
func (t EmploymentType) Label() string {
	switch t {
	case Employed:
		return "Employed"
	case SelfEmployed:
		return "Self-Employed"
	default:
		return string(t)
	}
}

// ParseEmploymentType accepts the wire values plus a few common spellings.
func ParseEmploymentType(s string) (EmploymentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "employed":
		return Employed, nil
	case "self-employed", "self_employed", "selfemployed":
		return SelfEmployed, nil
	case "":
		return "", &InvalidInputError{Field: FieldEmploymentType, Reason: "is required"}
	default:
		return "", &InvalidInputError{
			Field:  FieldEmploymentType,
			Value:  s,
			Reason: "must be employed or self-employed",
		}
	}
}

// =============================================================================
// INPUT / RESULT
// =============================================================================

// AssessmentInput is the engine's only input. AnnualGrossSalary must be > 0.
type AssessmentInput struct {
	AnnualGrossSalary decimal.Decimal
	EmploymentType    EmploymentType
}

// NewInputFromFloat builds an input from a float salary, rejecting NaN,
// infinities and non-positive values. decimal.NewFromFloat panics on
// non-finite values, so the check has to happen before conversion.
func NewInputFromFloat(salary float64, t EmploymentType) (AssessmentInput, error) {
	if math.IsNaN(salary) || math.IsInf(salary, 0) {
		return AssessmentInput{}, &InvalidInputError{
			Field:  FieldSalary,
			Value:  strconv.FormatFloat(salary, 'g', -1, 64),
			Reason: "must be a finite number",
		}
	}
	in := AssessmentInput{
		AnnualGrossSalary: decimal.NewFromFloat(salary),
		EmploymentType:    t,
	}
	if err := in.Validate(); err != nil {
		return AssessmentInput{}, err
	}
	return in, nil
}

// Validate checks the input contract.
func (in AssessmentInput) Validate() error {
	if !in.AnnualGrossSalary.IsPositive() {
		return &InvalidInputError{
			Field:  FieldSalary,
			Value:  in.AnnualGrossSalary.String(),
			Reason: "must be more than zero",
		}
	}
	if !in.EmploymentType.Valid() {
		return &InvalidInputError{
			Field:  FieldEmploymentType,
			Value:  string(in.EmploymentType),
			Reason: "must be employed or self-employed",
		}
	}
	return nil
}

// AssessmentID identifies a single computed assessment.
type AssessmentID string

// AssessmentResult is the breakdown produced by one ComputeAssessment call.
// BandAmounts has one entry per schedule band, in schedule order.
// Treat it as read-only; stores hand out copies.
type AssessmentResult struct {
	ID                     AssessmentID
	BandAmounts            []decimal.Decimal
	AnnualIncomeTax        decimal.Decimal
	MonthlyIncomeTax       decimal.Decimal
	MonthlySocialInsurance decimal.Decimal
	AnnualGrossSalary      decimal.Decimal
	EmploymentType         EmploymentType
	CreatedAt              time.Time
}

var monthsPerYear = decimal.NewFromInt(12)

// MonthlyGrossSalary is the annual salary spread over twelve months.
func (r AssessmentResult) MonthlyGrossSalary() decimal.Decimal {
	return r.AnnualGrossSalary.Div(monthsPerYear)
}

// AnnualSocialInsurance is twelve monthly NIS contributions.
func (r AssessmentResult) AnnualSocialInsurance() decimal.Decimal {
	return r.MonthlySocialInsurance.Mul(monthsPerYear)
}

// TotalMonthlyDeductions is monthly PAYE plus monthly NIS.
func (r AssessmentResult) TotalMonthlyDeductions() decimal.Decimal {
	return r.MonthlyIncomeTax.Add(r.MonthlySocialInsurance)
}

// MonthlyNetSalary is monthly gross less PAYE and NIS.
func (r AssessmentResult) MonthlyNetSalary() decimal.Decimal {
	return r.MonthlyGrossSalary().Sub(r.TotalMonthlyDeductions())
}

// Clone returns a copy that shares no slices with r.
func (r AssessmentResult) Clone() AssessmentResult {
	c := r
	c.BandAmounts = append([]decimal.Decimal(nil), r.BandAmounts...)
	return c
}
