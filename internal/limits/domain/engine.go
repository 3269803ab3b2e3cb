package domain

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// Ceilings are deployment configuration, not derived data. Country keys are
// upper-cased.
type Ceilings struct {
	Program decimal.Decimal
	Country map[string]decimal.Decimal
}

// CheckInput is the slice of a transaction the aggregation needs.
type CheckInput struct {
	AmountUSD    decimal.Decimal
	Country      string
	IssuingBank  string
	SubLimitType string
}

// ScopeReport carries the utilization arithmetic for one scope. The check is
// advisory: insufficient headroom reports WARNING, it never fails the call.
type ScopeReport struct {
	Approved                     decimal.Decimal `json:"approved"`
	Utilized                     decimal.Decimal `json:"utilized"`
	Available                    decimal.Decimal `json:"available"`
	CurrentUtilizationPercentage decimal.Decimal `json:"current_utilization_percentage"`
	TransactionAmount            decimal.Decimal `json:"transaction_amount"`
	PostTransactionUtilization   decimal.Decimal `json:"post_transaction_utilization"`
	PostTransactionAvailable     decimal.Decimal `json:"post_transaction_available"`
	PostTransactionPercentage    decimal.Decimal `json:"post_transaction_percentage"`
	ImpactAmount                 decimal.Decimal `json:"impact_amount"`
	ImpactPercentage             decimal.Decimal `json:"impact_percentage"`
	Status                       CheckStatus     `json:"status"`
}

type ProgramCheck struct {
	ScopeReport
}

type CountryCheck struct {
	Country string `json:"country"`
	Reason  string `json:"reason,omitempty"`
	ScopeReport
}

type EntityCheck struct {
	EntityName           string `json:"entity_name"`
	NoMatchingFacilities bool   `json:"no_matching_facilities,omitempty"`
	ScopeReport
}

type FacilityCheck struct {
	EntityName   string          `json:"entity_name"`
	Facility     string          `json:"facility_limit"`
	EarmarkLimit decimal.Decimal `json:"earmark_limit"`
	NetAvailable decimal.Decimal `json:"net_available_limit"`
	ScopeReport
}

// Report combines the four scopes for one transaction amount.
type Report struct {
	TransactionAmountUSD decimal.Decimal `json:"transaction_amount_usd"`
	ProgramLimitCheck    ProgramCheck    `json:"program_limit_check"`
	CountryLimitCheck    CountryCheck    `json:"country_limit_check"`
	EntityLimitChecks    []EntityCheck   `json:"entity_limit_checks"`
	FacilityLimitChecks  []FacilityCheck `json:"facility_limit_checks"`
	OverallStatus        CheckStatus     `json:"overall_status"`
}

// Engine computes utilization and headroom at the program, country, entity
// and facility scopes.
type Engine struct {
	limits   EntityLimitRepository
	ceilings Ceilings
}

func NewEngine(limits EntityLimitRepository, ceilings Ceilings) *Engine {
	return &Engine{limits: limits, ceilings: ceilings}
}

var hundred = decimal.NewFromInt(100)

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole).Round(2)
}

// scopeReport fills the arithmetic for one scope. headroom is the amount of
// room the status decision compares against; for the facility scope it is
// net of earmark, elsewhere it equals available.
func scopeReport(approved, utilized, headroom, amount decimal.Decimal) ScopeReport {
	available := approved.Sub(utilized)
	status := CheckStatusPassed
	if headroom.LessThan(amount) {
		status = CheckStatusWarning
	}
	return ScopeReport{
		Approved:                     approved,
		Utilized:                     utilized,
		Available:                    available,
		CurrentUtilizationPercentage: percentOf(utilized, approved),
		TransactionAmount:            amount,
		PostTransactionUtilization:   utilized.Add(amount),
		PostTransactionAvailable:     available.Sub(amount),
		PostTransactionPercentage:    percentOf(utilized.Add(amount), approved),
		ImpactAmount:                 amount,
		ImpactPercentage:             percentOf(amount, approved),
		Status:                       status,
	}
}

// FacilityMatches reports whether a facility label covers the transaction's
// product classification (case-insensitive substring).
func FacilityMatches(facility, subLimitType string) bool {
	if subLimitType == "" {
		return false
	}
	return strings.Contains(strings.ToLower(facility), strings.ToLower(subLimitType))
}

// Check evaluates the four scopes independently and combines them. Overall
// status is WARNING when any scope warns.
func (e *Engine) Check(ctx context.Context, input CheckInput) (*Report, error) {
	amount := input.AmountUSD

	report := &Report{
		TransactionAmountUSD: amount,
		EntityLimitChecks:    []EntityCheck{},
		FacilityLimitChecks:  []FacilityCheck{},
		OverallStatus:        CheckStatusPassed,
	}

	allLimits, err := e.limits.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	// Program scope: configured ceiling against the sum of every approved
	// limit in the book.
	totalApproved := decimal.Zero
	for _, l := range allLimits {
		totalApproved = totalApproved.Add(l.ApprovedLimit)
	}
	programAvailable := e.ceilings.Program.Sub(totalApproved)
	report.ProgramLimitCheck = ProgramCheck{
		ScopeReport: scopeReport(e.ceilings.Program, totalApproved, programAvailable, amount),
	}

	// Country scope: configured per-country ceiling against approved limits
	// of entities located there.
	countryCheck, err := e.checkCountry(ctx, input)
	if err != nil {
		return nil, err
	}
	report.CountryLimitCheck = countryCheck

	// Entity scope: issuing bank rollup across all of its facility limits.
	entityLimits, err := e.limits.ListByEntity(ctx, input.IssuingBank)
	if err != nil {
		return nil, err
	}

	entityApproved := decimal.Zero
	entityUtilized := decimal.Zero
	matched := 0
	for _, l := range entityLimits {
		entityApproved = entityApproved.Add(l.ApprovedLimit)
		entityUtilized = entityUtilized.Add(l.Utilized())

		if !FacilityMatches(l.Facility, input.SubLimitType) {
			continue
		}
		matched++
		report.FacilityLimitChecks = append(report.FacilityLimitChecks, FacilityCheck{
			EntityName:   l.EntityName,
			Facility:     l.Facility,
			EarmarkLimit: l.EarmarkLimit,
			NetAvailable: l.NetAvailable(),
			ScopeReport:  scopeReport(l.ApprovedLimit, l.Utilized(), l.NetAvailable(), amount),
		})
	}

	entityCheck := EntityCheck{
		EntityName:  input.IssuingBank,
		ScopeReport: scopeReport(entityApproved, entityUtilized, entityApproved.Sub(entityUtilized), amount),
	}
	if len(entityLimits) > 0 && matched == 0 {
		// Limits exist but none cover this product type: needs review, not a
		// silent pass.
		entityCheck.NoMatchingFacilities = true
		entityCheck.Status = CheckStatusWarning
	}
	report.EntityLimitChecks = append(report.EntityLimitChecks, entityCheck)

	for _, status := range []CheckStatus{
		report.ProgramLimitCheck.Status,
		report.CountryLimitCheck.Status,
		entityCheck.Status,
	} {
		if status == CheckStatusWarning {
			report.OverallStatus = CheckStatusWarning
		}
	}
	for _, fc := range report.FacilityLimitChecks {
		if fc.Status == CheckStatusWarning {
			report.OverallStatus = CheckStatusWarning
		}
	}

	return report, nil
}

func (e *Engine) checkCountry(ctx context.Context, input CheckInput) (CountryCheck, error) {
	check := CountryCheck{Country: input.Country}

	ceiling, ok := e.ceilings.Country[strings.ToUpper(input.Country)]
	if !ok {
		check.Reason = "no_configured_ceiling"
		check.ScopeReport = scopeReport(decimal.Zero, decimal.Zero, decimal.Zero, input.AmountUSD)
		check.Status = CheckStatusWarning
		return check, nil
	}

	countryLimits, err := e.limits.ListByCountry(ctx, input.Country)
	if err != nil {
		return check, err
	}

	countryApproved := decimal.Zero
	for _, l := range countryLimits {
		countryApproved = countryApproved.Add(l.ApprovedLimit)
	}
	check.ScopeReport = scopeReport(ceiling, countryApproved, ceiling.Sub(countryApproved), input.AmountUSD)
	return check, nil
}
