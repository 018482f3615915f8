package paye_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sajclarke/tax-calculator-app/paye"
)

func TestDefaultSchedule_IsValid(t *testing.T) {
	s := paye.DefaultSchedule()
	require.NoError(t, s.Validate())
	assert.Len(t, s.Bands, 3)
	assertDecimal(t, "4880", s.SocialInsurance.MonthlyCeiling)
}

func TestSchedule_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*paye.Schedule)
	}{
		{"no bands", func(s *paye.Schedule) { s.Bands = nil }},
		{"rate above one", func(s *paye.Schedule) { s.Bands[1].Rate = d("1.5") }},
		{"negative rate", func(s *paye.Schedule) { s.Bands[2].Rate = d("-0.1") }},
		{"thresholds not increasing", func(s *paye.Schedule) { s.Bands[1].Threshold = d("20000") }},
		{"zero first threshold", func(s *paye.Schedule) { s.Bands[0].Threshold = decimal.Zero }},
		{"bad employed NIS", func(s *paye.Schedule) { s.SocialInsurance.EmployedRate = d("2") }},
		{"bad self-employed NIS", func(s *paye.Schedule) { s.SocialInsurance.SelfEmployedRate = d("-1") }},
		{"zero ceiling", func(s *paye.Schedule) { s.SocialInsurance.MonthlyCeiling = decimal.Zero }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := paye.DefaultSchedule()
			tc.mutate(&s)
			assert.ErrorIs(t, s.Validate(), paye.ErrInvalidSchedule)

			_, err := paye.NewEngine(s)
			assert.ErrorIs(t, err, paye.ErrInvalidSchedule)
		})
	}
}

func TestSchedule_FinalBandThresholdIgnored(t *testing.T) {
	// GIVEN: the top band carries an arbitrary placeholder threshold
	// THEN: it is never applied as a cap
	s := paye.DefaultSchedule()
	s.Bands[2].Threshold = d("60000")
	engine, err := paye.NewEngine(s)
	require.NoError(t, err)

	r := assessFloat(t, engine, 500000, paye.Employed)
	assertDecimal(t, "128250", r.BandAmounts[2])
}

func TestEngine_ScheduleIsCopied(t *testing.T) {
	s := paye.DefaultSchedule()
	engine, err := paye.NewEngine(s)
	require.NoError(t, err)

	s.Bands[1].Rate = d("0.9")
	got := engine.Schedule()
	got.Bands[2].Rate = d("0.9")

	r := assessFloat(t, engine, 100000, paye.Employed)
	assertDecimal(t, "17375", r.AnnualIncomeTax)
}

func TestParseEmploymentType(t *testing.T) {
	cases := map[string]paye.EmploymentType{
		"employed":      paye.Employed,
		" Employed ":    paye.Employed,
		"self-employed": paye.SelfEmployed,
		"SELF_EMPLOYED": paye.SelfEmployed,
		"selfemployed":  paye.SelfEmployed,
	}
	for in, want := range cases {
		got, err := paye.ParseEmploymentType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := paye.ParseEmploymentType("")
	assert.ErrorIs(t, err, paye.ErrInvalidInput)
	_, err = paye.ParseEmploymentType("retired")
	assert.ErrorIs(t, err, paye.ErrInvalidInput)
}

func TestEmploymentType_Label(t *testing.T) {
	assert.Equal(t, "Employed", paye.Employed.Label())
	assert.Equal(t, "Self-Employed", paye.SelfEmployed.Label())
}
