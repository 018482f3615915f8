package factory_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajclarke/tax-calculator-app/factory"
	"github.com/sajclarke/tax-calculator-app/paye"
)

const scheduleFile = "../configs/schedule.yaml"

func TestLoadFile_ShippedScheduleMatchesBuiltin(t *testing.T) {
	// GIVEN: the rate table shipped in configs/
	// THEN: it describes exactly the Go default table
	got, err := factory.LoadFile(scheduleFile)
	require.NoError(t, err)

	want := paye.DefaultSchedule()
	require.Len(t, got.Bands, len(want.Bands))
	for i := range want.Bands[:len(want.Bands)-1] {
		assert.True(t, want.Bands[i].Threshold.Equal(got.Bands[i].Threshold), "band %d threshold", i)
	}
	for i := range want.Bands {
		assert.True(t, want.Bands[i].Rate.Equal(got.Bands[i].Rate), "band %d rate", i)
	}
	assert.True(t, want.SocialInsurance.EmployedRate.Equal(got.SocialInsurance.EmployedRate))
	assert.True(t, want.SocialInsurance.SelfEmployedRate.Equal(got.SocialInsurance.SelfEmployedRate))
	assert.True(t, want.SocialInsurance.MonthlyCeiling.Equal(got.SocialInsurance.MonthlyCeiling))
	assert.Equal(t, "BBD", got.Currency)
}

func TestParseYAML_EngineProducesReferenceFigures(t *testing.T) {
	s, err := factory.LoadFile(scheduleFile)
	require.NoError(t, err)
	engine, err := paye.NewEngine(*s)
	require.NoError(t, err)

	r, err := engine.ComputeAssessment(paye.AssessmentInput{
		AnnualGrossSalary: decimal.NewFromInt(100000),
		EmploymentType:    paye.SelfEmployed,
	})
	require.NoError(t, err)
	assert.Equal(t, "17375", r.AnnualIncomeTax.String())
	assert.Equal(t, "834.48", r.MonthlySocialInsurance.String())
}

func TestParseJSON(t *testing.T) {
	doc := `{
		"name": "Test",
		"year": 2023,
		"currency": "BBD",
		"bands": [
			{"threshold": 10000, "rate": 0.1},
			{"threshold": 999999999, "rate": 0.2}
		],
		"social_insurance": {"employed_rate": 0.1, "self_employed_rate": 0.15, "monthly_ceiling": 3000}
	}`
	s, err := factory.ParseJSON([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 2023, s.Year)
	assert.Len(t, s.Bands, 2)
}

func TestSchedule_Rejects(t *testing.T) {
	cases := map[string]string{
		"no bands": `bands: []
social_insurance: {employed_rate: 0.1, self_employed_rate: 0.1, monthly_ceiling: 100}`,
		"missing threshold": `bands:
  - rate: 0
  - rate: 0.2
social_insurance: {employed_rate: 0.1, self_employed_rate: 0.1, monthly_ceiling: 100}`,
		"rate out of range": `bands:
  - threshold: 100
    rate: 1.2
  - rate: 0.2
social_insurance: {employed_rate: 0.1, self_employed_rate: 0.1, monthly_ceiling: 100}`,
		"no ceiling": `bands:
  - rate: 0.2
social_insurance: {employed_rate: 0.1, self_employed_rate: 0.1}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := factory.ParseYAML([]byte(doc))
			assert.True(t, factory.IsInvalidSchedule(err), "got %v", err)
		})
	}
}

func TestParseYAML_Malformed(t *testing.T) {
	_, err := factory.ParseYAML([]byte("bands: [unclosed"))
	require.Error(t, err)
	assert.True(t, factory.IsInvalidSchedule(err))
}

func TestParseYAML_NonFiniteValuesRejected(t *testing.T) {
	// GIVEN: YAML scalars that float parsing would accept as NaN or infinity
	// WHEN: the document is parsed
	// THEN: an invalid schedule error comes back instead of a panic
	cases := map[string]string{
		"nan rate": `bands: [{threshold: 25000, rate: .nan}, {rate: 0.2}]
social_insurance: {employed_rate: 0.1, self_employed_rate: 0.1, monthly_ceiling: 100}`,
		"inf ceiling": `bands: [{threshold: 25000, rate: 0}, {rate: 0.2}]
social_insurance: {employed_rate: 0.1, self_employed_rate: 0.1, monthly_ceiling: .inf}`,
		"negative inf threshold": `bands: [{threshold: -.inf, rate: 0}, {rate: 0.2}]
social_insurance: {employed_rate: 0.1, self_employed_rate: 0.1, monthly_ceiling: 100}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { _, err = factory.ParseYAML([]byte(doc)) })
			assert.True(t, factory.IsInvalidSchedule(err), "got %v", err)
		})
	}
}

func TestParseYAML_ExactDecimals(t *testing.T) {
	s, err := factory.ParseYAML([]byte(`bands:
  - threshold: "25000.10"
    rate: 0.1
  - rate: 0.2
social_insurance: {employed_rate: 0.111, self_employed_rate: 0.171, monthly_ceiling: 4880}`))
	require.NoError(t, err)
	assert.Equal(t, "25000.1", s.Bands[0].Threshold.String())
	assert.Equal(t, "0.111", s.SocialInsurance.EmployedRate.String())
}

func TestLoadFile_ByExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "schedule.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"bands":[{"rate":0.3}],
		"social_insurance":{"employed_rate":0.1,"self_employed_rate":0.2,"monthly_ceiling":1000}}`), 0o644))
	s, err := factory.LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, s.Bands, 1)

	_, err = factory.LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestFromSchedule_RoundTrip(t *testing.T) {
	doc := factory.FromSchedule(paye.DefaultSchedule())
	assert.Nil(t, doc.Bands[2].Threshold)
	require.NotNil(t, doc.Bands[1].Threshold)
	assert.Equal(t, "50000", doc.Bands[1].Threshold.String())

	s, err := doc.Schedule()
	require.NoError(t, err)
	assert.Equal(t, "0.285", s.Bands[2].Rate.String())
}

func TestWriteYAML_ParsesBack(t *testing.T) {
	// GIVEN: the built-in table written out as YAML
	// WHEN: the output is parsed again
	// THEN: every threshold and rate survives exactly
	var buf bytes.Buffer
	require.NoError(t, factory.WriteYAML(&buf, paye.DefaultSchedule()))

	got, err := factory.ParseYAML(buf.Bytes())
	require.NoError(t, err)

	want := paye.DefaultSchedule()
	assert.Equal(t, want.Name, got.Name)
	require.Len(t, got.Bands, len(want.Bands))
	for i := range want.Bands {
		assert.True(t, want.Bands[i].Rate.Equal(got.Bands[i].Rate), "band %d rate", i)
	}
	assert.True(t, want.Bands[1].Threshold.Equal(got.Bands[1].Threshold))
	assert.True(t, want.SocialInsurance.MonthlyCeiling.Equal(got.SocialInsurance.MonthlyCeiling))
}
