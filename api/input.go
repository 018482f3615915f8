package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sajclarke/tax-calculator-app/paye"
)

// Field-level messages shown next to the form inputs.
const (
	msgRequired       = "Field is required"
	msgNotNumber      = "Must be a number"
	msgNotPositive    = "Must be more than zero"
	msgBadEmployment  = "Must be employed or self-employed"
	msgTooLarge       = "Must be at most $1,000,000,000,000"
	msgValidateFailed = "Validation failed"
)

// maxSalary bounds what the form accepts. Decimal arithmetic scales with
// the operand's magnitude, so unbounded input is unbounded work.
var maxSalary = decimal.New(1, 12)

// FieldErrors maps a request field to its message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for field, msg := range fe {
		parts = append(parts, field+": "+msg)
	}
	return strings.Join(parts, "; ")
}

// ParseSalary accepts plain numbers and currency text ("$36,000.00",
// "36 000"). Exponent notation is not a currency amount and is refused.
// It returns the field message on failure.
func ParseSalary(s string) (decimal.Decimal, string) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Zero, msgRequired
	}
	if strings.ContainsAny(cleaned, "eE") {
		return decimal.Zero, msgNotNumber
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, msgNotNumber
	}
	if !d.IsPositive() {
		return decimal.Zero, msgNotPositive
	}
	if d.GreaterThan(maxSalary) {
		return decimal.Zero, msgTooLarge
	}
	return d, ""
}

// parseSalaryJSON handles the raw "salary" member: a number, a string, or
// missing/null.
func parseSalaryJSON(raw json.RawMessage) (decimal.Decimal, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, msgRequired
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, msgNotNumber
		}
		return ParseSalary(s)
	}
	return ParseSalary(string(raw))
}

// toInput validates a request and converts it to engine input.
func (req AssessmentRequest) toInput() (paye.AssessmentInput, error) {
	fields := FieldErrors{}

	salary, msg := parseSalaryJSON(req.Salary)
	if msg != "" {
		fields[paye.FieldSalary] = msg
	}

	var empType paye.EmploymentType
	if strings.TrimSpace(req.EmploymentType) == "" {
		fields[paye.FieldEmploymentType] = msgRequired
	} else {
		t, err := paye.ParseEmploymentType(req.EmploymentType)
		if err != nil {
			fields[paye.FieldEmploymentType] = msgBadEmployment
		}
		empType = t
	}

	if len(fields) > 0 {
		return paye.AssessmentInput{}, fields
	}
	return paye.AssessmentInput{AnnualGrossSalary: salary, EmploymentType: empType}, nil
}

// fieldErrorsFrom maps an engine error back onto a form field.
func fieldErrorsFrom(err error) FieldErrors {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe
	}
	var ie *paye.InvalidInputError
	if errors.As(err, &ie) {
		msg := msgNotPositive
		if ie.Field == paye.FieldEmploymentType {
			msg = msgBadEmployment
		}
		return FieldErrors{ie.Field: msg}
	}
	return nil
}
