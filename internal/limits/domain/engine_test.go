package domain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLimitRepo struct {
	limits    []*EntityLimit
	countries map[string]string
	err       error
}

func (s *stubLimitRepo) Save(ctx context.Context, l *EntityLimit) error { return nil }

func (s *stubLimitRepo) ListAll(ctx context.Context) ([]*EntityLimit, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.limits, nil
}

func (s *stubLimitRepo) ListByEntity(ctx context.Context, entityName string) ([]*EntityLimit, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*EntityLimit
	for _, l := range s.limits {
		if l.EntityName == entityName {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *stubLimitRepo) ListByCountry(ctx context.Context, country string) ([]*EntityLimit, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []*EntityLimit
	for _, l := range s.limits {
		if strings.EqualFold(s.countries[l.EntityName], country) {
			out = append(out, l)
		}
	}
	return out, nil
}

func usd(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func testCeilings() Ceilings {
	return Ceilings{
		Program: usd(100_000_000),
		Country: map[string]decimal.Decimal{"VIETNAM": usd(20_000_000)},
	}
}

func xyzBankBook() *stubLimitRepo {
	return &stubLimitRepo{
		limits: []*EntityLimit{
			{
				EntityName:          "XYZ Bank",
				Facility:            "Trade Finance - Letters of Credit",
				ApprovedLimit:       usd(5_000_000),
				PFIRPAAllocation:    usd(1_000_000),
				OutstandingExposure: usd(500_000),
				EarmarkLimit:        usd(200_000),
			},
		},
		countries: map[string]string{"XYZ Bank": "Vietnam"},
	}
}

func TestCheckPassedScenario(t *testing.T) {
	engine := NewEngine(xyzBankBook(), testCeilings())

	report, err := engine.Check(context.Background(), CheckInput{
		AmountUSD:    usd(2_000_000),
		Country:      "Vietnam",
		IssuingBank:  "XYZ Bank",
		SubLimitType: "Letters of Credit",
	})
	require.NoError(t, err)

	assert.Equal(t, CheckStatusPassed, report.OverallStatus)

	require.Len(t, report.EntityLimitChecks, 1)
	entity := report.EntityLimitChecks[0]
	assert.Equal(t, "XYZ Bank", entity.EntityName)
	assert.True(t, entity.Approved.Equal(usd(5_000_000)))
	assert.True(t, entity.Utilized.Equal(usd(1_500_000)))
	assert.True(t, entity.Available.Equal(usd(3_500_000)))
	assert.True(t, entity.PostTransactionUtilization.Equal(usd(3_500_000)))
	assert.True(t, entity.PostTransactionAvailable.Equal(usd(1_500_000)))
	assert.True(t, entity.CurrentUtilizationPercentage.Equal(decimal.NewFromInt(30)))
	assert.True(t, entity.PostTransactionPercentage.Equal(decimal.NewFromInt(70)))
	assert.False(t, entity.NoMatchingFacilities)

	require.Len(t, report.FacilityLimitChecks, 1)
	facility := report.FacilityLimitChecks[0]
	assert.Equal(t, "Trade Finance - Letters of Credit", facility.Facility)
	// 5,000,000 - 1,500,000 utilized - 200,000 earmarked.
	assert.True(t, facility.NetAvailable.Equal(usd(3_300_000)))
	assert.Equal(t, CheckStatusPassed, facility.Status)
}

func TestCheckFacilityHeadroomWarning(t *testing.T) {
	engine := NewEngine(xyzBankBook(), testCeilings())

	// 3,400,000 fits the entity rollup (3.5M available) but not the facility
	// net headroom (3.3M after earmark).
	report, err := engine.Check(context.Background(), CheckInput{
		AmountUSD:    usd(3_400_000),
		Country:      "Vietnam",
		IssuingBank:  "XYZ Bank",
		SubLimitType: "Letters of Credit",
	})
	require.NoError(t, err)

	assert.Equal(t, CheckStatusWarning, report.OverallStatus)
	assert.Equal(t, CheckStatusPassed, report.EntityLimitChecks[0].Status)
	require.Len(t, report.FacilityLimitChecks, 1)
	assert.Equal(t, CheckStatusWarning, report.FacilityLimitChecks[0].Status)
}

func TestCheckNoMatchingFacilityWarns(t *testing.T) {
	engine := NewEngine(xyzBankBook(), testCeilings())

	report, err := engine.Check(context.Background(), CheckInput{
		AmountUSD:    usd(1_000_000),
		Country:      "Vietnam",
		IssuingBank:  "XYZ Bank",
		SubLimitType: "Supply Chain Finance",
	})
	require.NoError(t, err)

	assert.Equal(t, CheckStatusWarning, report.OverallStatus)
	assert.Empty(t, report.FacilityLimitChecks)
	require.Len(t, report.EntityLimitChecks, 1)
	assert.True(t, report.EntityLimitChecks[0].NoMatchingFacilities)
	assert.Equal(t, CheckStatusWarning, report.EntityLimitChecks[0].Status)
}

func TestCheckUnconfiguredCountryCeilingWarns(t *testing.T) {
	book := xyzBankBook()
	book.countries["XYZ Bank"] = "Cambodia"
	engine := NewEngine(book, testCeilings())

	report, err := engine.Check(context.Background(), CheckInput{
		AmountUSD:    usd(1_000_000),
		Country:      "Cambodia",
		IssuingBank:  "XYZ Bank",
		SubLimitType: "Letters of Credit",
	})
	require.NoError(t, err)

	assert.Equal(t, CheckStatusWarning, report.OverallStatus)
	assert.Equal(t, "no_configured_ceiling", report.CountryLimitCheck.Reason)
	assert.Equal(t, CheckStatusWarning, report.CountryLimitCheck.Status)
}

func TestCheckProgramCeilingWarning(t *testing.T) {
	book := xyzBankBook()
	engine := NewEngine(book, Ceilings{
		// The book's 5M of approved limits leaves 1M of program headroom.
		Program: usd(6_000_000),
		Country: map[string]decimal.Decimal{"VIETNAM": usd(20_000_000)},
	})

	report, err := engine.Check(context.Background(), CheckInput{
		AmountUSD:    usd(2_000_000),
		Country:      "Vietnam",
		IssuingBank:  "XYZ Bank",
		SubLimitType: "Letters of Credit",
	})
	require.NoError(t, err)

	assert.Equal(t, CheckStatusWarning, report.ProgramLimitCheck.Status)
	assert.Equal(t, CheckStatusWarning, report.OverallStatus)
}

func TestCheckRepositoryFailureIsAnError(t *testing.T) {
	boom := errors.New("db down")
	engine := NewEngine(&stubLimitRepo{err: boom}, testCeilings())

	_, err := engine.Check(context.Background(), CheckInput{
		AmountUSD:   usd(1),
		Country:     "Vietnam",
		IssuingBank: "XYZ Bank",
	})
	assert.ErrorIs(t, err, boom)
}

func TestFacilityMatches(t *testing.T) {
	assert.True(t, FacilityMatches("Trade Finance - Letters of Credit", "letters of credit"))
	assert.False(t, FacilityMatches("Trade Finance - Letters of Credit", "Guarantee"))
	assert.False(t, FacilityMatches("Trade Finance - Letters of Credit", ""))
}

func TestEntityLimitArithmetic(t *testing.T) {
	l := &EntityLimit{
		ApprovedLimit:       usd(5_000_000),
		PFIRPAAllocation:    usd(1_000_000),
		OutstandingExposure: usd(500_000),
		EarmarkLimit:        usd(200_000),
	}
	assert.True(t, l.Utilized().Equal(usd(1_500_000)))
	assert.True(t, l.Available().Equal(usd(3_500_000)))
	assert.True(t, l.NetAvailable().Equal(usd(3_300_000)))
}
