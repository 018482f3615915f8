/*
Package factory converts rate schedule documents into paye.Schedule values.

PURPOSE:
  The engine runs against one fixed table, but the table itself is data:
  thresholds, rates and NIS constants can be supplied as YAML or JSON so
  the service can be pointed at a corrected table without a rebuild.

DOCUMENT SCHEMA (YAML shown, JSON uses the same keys):
  name: Barbados PAYE
  year: 2022
  currency: BBD
  bands:
    - threshold: 25000
      rate: 0
    - threshold: 50000
      rate: 0.125
    - rate: 0.285        # final band: threshold omitted, always unbounded
  social_insurance:
    employed_rate: 0.111
    self_employed_rate: 0.171
    monthly_ceiling: 4880

KEY FEATURES:
  - Accepts YAML or JSON, chosen by file extension in LoadFile
  - The final band's threshold is optional and ignored if present
  - Every schedule is validated before it is returned
  - Decode and validation failures both wrap ErrInvalidSchedule
  - WriteYAML dumps the table in force (server -dump-schedule)

USAGE:
  schedule, err := factory.LoadFile("configs/schedule.yaml")
  engine, err := paye.NewEngine(*schedule)

SEE ALSO:
  - paye/schedule.go: Schedule type and validation rules
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sajclarke/tax-calculator-app/paye"
)

// ErrInvalidSchedule is returned for documents that parse but describe an
// unusable table. It is the same sentinel the engine uses.
var ErrInvalidSchedule = paye.ErrInvalidSchedule

// =============================================================================
// DOCUMENT TYPES
// =============================================================================

// ScheduleDocument is the serialized form of a rate schedule.
type ScheduleDocument struct {
	Name            string                  `yaml:"name" json:"name"`
	Year            int                     `yaml:"year" json:"year"`
	Currency        string                  `yaml:"currency" json:"currency"`
	Bands           []BandDocument          `yaml:"bands" json:"bands"`
	SocialInsurance SocialInsuranceDocument `yaml:"social_insurance" json:"social_insurance"`
}

// BandDocument is one progressive band. Values are read as decimal text,
// so non-numeric scalars such as .nan or .inf are rejected while decoding.
type BandDocument struct {
	Threshold *decimal.Decimal `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Rate      decimal.Decimal  `yaml:"rate" json:"rate"`
}

// SocialInsuranceDocument holds the NIS constants.
type SocialInsuranceDocument struct {
	EmployedRate     decimal.Decimal `yaml:"employed_rate" json:"employed_rate"`
	SelfEmployedRate decimal.Decimal `yaml:"self_employed_rate" json:"self_employed_rate"`
	MonthlyCeiling   decimal.Decimal `yaml:"monthly_ceiling" json:"monthly_ceiling"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseYAML decodes and validates a YAML schedule document.
func ParseYAML(data []byte) (*paye.Schedule, error) {
	var doc ScheduleDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalidSchedule, err)
	}
	return doc.Schedule()
}

// ParseJSON decodes and validates a JSON schedule document.
func ParseJSON(data []byte) (*paye.Schedule, error) {
	var doc ScheduleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse json: %v", ErrInvalidSchedule, err)
	}
	return doc.Schedule()
}

// LoadFile reads a schedule from disk. ".json" files are parsed as JSON,
// everything else as YAML.
func LoadFile(path string) (*paye.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(data)
	}
	return ParseYAML(data)
}

// Schedule converts the document to a validated paye.Schedule.
func (doc ScheduleDocument) Schedule() (*paye.Schedule, error) {
	if len(doc.Bands) == 0 {
		return nil, fmt.Errorf("%w: no bands defined", ErrInvalidSchedule)
	}
	last := len(doc.Bands) - 1
	for i, b := range doc.Bands[:last] {
		if b.Threshold == nil {
			return nil, fmt.Errorf("%w: band %d is missing a threshold", ErrInvalidSchedule, i)
		}
	}

	s := &paye.Schedule{
		Name:     doc.Name,
		Year:     doc.Year,
		Currency: doc.Currency,
		Bands: lo.Map(doc.Bands, func(b BandDocument, _ int) paye.TaxBand {
			return paye.TaxBand{Threshold: lo.FromPtr(b.Threshold), Rate: b.Rate}
		}),
		SocialInsurance: paye.SocialInsurance{
			EmployedRate:     doc.SocialInsurance.EmployedRate,
			SelfEmployedRate: doc.SocialInsurance.SelfEmployedRate,
			MonthlyCeiling:   doc.SocialInsurance.MonthlyCeiling,
		},
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// FromSchedule renders a schedule back into document form. The final band's
// threshold is left out.
func FromSchedule(s paye.Schedule) ScheduleDocument {
	last := len(s.Bands) - 1
	return ScheduleDocument{
		Name:     s.Name,
		Year:     s.Year,
		Currency: s.Currency,
		Bands: lo.Map(s.Bands, func(b paye.TaxBand, i int) BandDocument {
			doc := BandDocument{Rate: b.Rate}
			if i != last {
				doc.Threshold = lo.ToPtr(b.Threshold)
			}
			return doc
		}),
		SocialInsurance: SocialInsuranceDocument{
			EmployedRate:     s.SocialInsurance.EmployedRate,
			SelfEmployedRate: s.SocialInsurance.SelfEmployedRate,
			MonthlyCeiling:   s.SocialInsurance.MonthlyCeiling,
		},
	}
}

// WriteYAML writes s as a schedule document that ParseYAML reads back.
func WriteYAML(w io.Writer, s paye.Schedule) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(FromSchedule(s)); err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	return enc.Close()
}

// IsInvalidSchedule reports whether err came from schedule validation.
func IsInvalidSchedule(err error) bool {
	return errors.Is(err, ErrInvalidSchedule)
}
