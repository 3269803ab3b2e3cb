package application

import (
	"context"

	"github.com/SamGorr/tscmf-system/internal/transaction/domain"
	"github.com/SamGorr/tscmf-system/pkg/config"
)

// CheckPolicy supplies the eligibility and exposure decisions the
// orchestrator folds into its approve/decline verdict. Decisions must be
// deterministic for a given transaction.
type CheckPolicy interface {
	EligibilityPasses(ctx context.Context, t *domain.Transaction) bool
	ExposurePasses(ctx context.Context, t *domain.Transaction) bool
	// AmendmentExempt reports whether the amendment may skip re-verification.
	AmendmentExempt(original, amended *domain.Transaction) bool
}

// StaticPolicy answers from configuration. It stands in until an external
// policy engine is wired behind CheckPolicy.
type StaticPolicy struct {
	cfg config.ChecksConfig
}

func NewStaticPolicy(cfg config.ChecksConfig) *StaticPolicy {
	return &StaticPolicy{cfg: cfg}
}

func (p *StaticPolicy) EligibilityPasses(ctx context.Context, t *domain.Transaction) bool {
	return p.cfg.EligibilityPass
}

func (p *StaticPolicy) ExposurePasses(ctx context.Context, t *domain.Transaction) bool {
	return p.cfg.ExposurePass
}

// AmendmentExempt allows amendments that only move amounts or dates to carry
// the original verification over, when the deployment opts in.
func (p *StaticPolicy) AmendmentExempt(original, amended *domain.Transaction) bool {
	if !p.cfg.ExemptDateAmountAmendments {
		return false
	}
	return original.Country == amended.Country &&
		original.IssuingBank == amended.IssuingBank &&
		original.ConfirmingBank == amended.ConfirmingBank &&
		original.RequestingBank == amended.RequestingBank &&
		original.Importer == amended.Importer &&
		original.Supplier == amended.Supplier &&
		original.Currency == amended.Currency &&
		original.SubLimitType == amended.SubLimitType &&
		original.Industry == amended.Industry &&
		equalGoods(original.Goods, amended.Goods)
}

func equalGoods(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
