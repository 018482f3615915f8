/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain results carry
  decimal.Decimal values; the API sends them as exact decimal strings plus
  a pre-formatted display string for each figure the page shows.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DISPLAY STRINGS:
  Formatted as US-dollar style currency ("$1,375.00"). Amounts that are
  zero render as "" so the page shows a blank cell rather than "$0.00".

SEE ALSO:
  - handlers.go: Uses these types
  - input.go: Request parsing and field validation
  - format.go: Currency formatting
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/sajclarke/tax-calculator-app/paye"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// AssessmentRequest is the body of POST /api/assessments. Salary may be a
// JSON number or currency text such as "$36,000.00".
type AssessmentRequest struct {
	Salary         json.RawMessage `json:"salary"`
	EmploymentType string          `json:"employment_type"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// BandDTO is one row of the per-band breakdown.
type BandDTO struct {
	Index            int    `json:"index"`
	Threshold        string `json:"threshold,omitempty"` // empty for the unbounded final band
	Rate             string `json:"rate"`
	TaxAmount        string `json:"tax_amount"`
	TaxAmountDisplay string `json:"tax_amount_display"`
}

// AssessmentDisplayDTO holds the formatted figures.
type AssessmentDisplayDTO struct {
	AnnualGrossSalary      string `json:"annual_gross_salary"`
	AnnualIncomeTax        string `json:"annual_income_tax"`
	MonthlyIncomeTax       string `json:"monthly_income_tax"`
	MonthlySocialInsurance string `json:"monthly_social_insurance"`
	MonthlyNetSalary       string `json:"monthly_net_salary"`
}

// AssessmentDTO represents one computed assessment.
type AssessmentDTO struct {
	ID                     string               `json:"id"`
	AnnualGrossSalary      string               `json:"annual_gross_salary"`
	EmploymentType         string               `json:"employment_type"`
	EmploymentLabel        string               `json:"employment_label"`
	Bands                  []BandDTO            `json:"bands"`
	AnnualIncomeTax        string               `json:"annual_income_tax"`
	MonthlyIncomeTax       string               `json:"monthly_income_tax"`
	MonthlySocialInsurance string               `json:"monthly_social_insurance"`
	MonthlyNetSalary       string               `json:"monthly_net_salary"`
	Display                AssessmentDisplayDTO `json:"display"`
	CreatedAt              string               `json:"created_at"`
}

// ScheduleBandDTO describes one band of the rate table.
type ScheduleBandDTO struct {
	Threshold string `json:"threshold,omitempty"`
	Rate      string `json:"rate"`
	Unbounded bool   `json:"unbounded,omitempty"`
}

// ScheduleDTO describes the rate table in force.
type ScheduleDTO struct {
	Name            string            `json:"name"`
	Year            int               `json:"year"`
	Currency        string            `json:"currency"`
	Bands           []ScheduleBandDTO `json:"bands"`
	SocialInsurance struct {
		EmployedRate     string `json:"employed_rate"`
		SelfEmployedRate string `json:"self_employed_rate"`
		MonthlyCeiling   string `json:"monthly_ceiling"`
	} `json:"social_insurance"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAssessmentDTO(r paye.AssessmentResult, schedule paye.Schedule) AssessmentDTO {
	last := len(schedule.Bands) - 1
	bands := lo.Map(r.BandAmounts, func(amount decimal.Decimal, i int) BandDTO {
		dto := BandDTO{
			Index:            i,
			TaxAmount:        amount.String(),
			TaxAmountDisplay: FormatCurrency(amount),
		}
		if i < len(schedule.Bands) {
			dto.Rate = schedule.Bands[i].Rate.String()
			if i != last {
				dto.Threshold = schedule.Bands[i].Threshold.String()
			}
		}
		return dto
	})

	return AssessmentDTO{
		ID:                     string(r.ID),
		AnnualGrossSalary:      r.AnnualGrossSalary.String(),
		EmploymentType:         string(r.EmploymentType),
		EmploymentLabel:        r.EmploymentType.Label(),
		Bands:                  bands,
		AnnualIncomeTax:        r.AnnualIncomeTax.String(),
		MonthlyIncomeTax:       r.MonthlyIncomeTax.String(),
		MonthlySocialInsurance: r.MonthlySocialInsurance.String(),
		MonthlyNetSalary:       r.MonthlyNetSalary().String(),
		Display: AssessmentDisplayDTO{
			AnnualGrossSalary:      FormatCurrency(r.AnnualGrossSalary),
			AnnualIncomeTax:        FormatCurrency(r.AnnualIncomeTax),
			MonthlyIncomeTax:       FormatCurrency(r.MonthlyIncomeTax),
			MonthlySocialInsurance: FormatCurrency(r.MonthlySocialInsurance),
			MonthlyNetSalary:       FormatCurrency(r.MonthlyNetSalary()),
		},
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toScheduleDTO(s paye.Schedule) ScheduleDTO {
	last := len(s.Bands) - 1
	dto := ScheduleDTO{
		Name:     s.Name,
		Year:     s.Year,
		Currency: s.Currency,
		Bands: lo.Map(s.Bands, func(b paye.TaxBand, i int) ScheduleBandDTO {
			if i == last {
				return ScheduleBandDTO{Rate: b.Rate.String(), Unbounded: true}
			}
			return ScheduleBandDTO{Threshold: b.Threshold.String(), Rate: b.Rate.String()}
		}),
	}
	dto.SocialInsurance.EmployedRate = s.SocialInsurance.EmployedRate.String()
	dto.SocialInsurance.SelfEmployedRate = s.SocialInsurance.SelfEmployedRate.String()
	dto.SocialInsurance.MonthlyCeiling = s.SocialInsurance.MonthlyCeiling.String()
	return dto
}
