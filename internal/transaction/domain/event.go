package domain

import "time"

// Event is an append-only audit record. The latest Event of a transaction is
// authoritative for its current verification state; events are never updated
// in place except to stamp check results.
type Event struct {
	ID                   uint64 `json:"id"`
	TransactionReference string `json:"transaction_reference"`
	Source               string `json:"source"`
	Type                 Kind   `json:"type"`
	Status               Status `json:"status"`

	SanctionCheckStatus    string `json:"sanction_check_status,omitempty"`
	EligibilityCheckStatus string `json:"eligibility_check_status,omitempty"`
	LimitCheckStatus       string `json:"limit_check_status,omitempty"`
	PricingStatus          string `json:"pricing_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// CheckStamp is a partial update of the verification-check fields on a
// transaction's latest Event. Nil fields are left untouched.
type CheckStamp struct {
	SanctionCheckStatus    *string `json:"sanction_check_status,omitempty"`
	EligibilityCheckStatus *string `json:"eligibility_check_status,omitempty"`
	LimitCheckStatus       *string `json:"limit_check_status,omitempty"`
	PricingStatus          *string `json:"pricing_status,omitempty"`
}

func (s CheckStamp) Apply(e *Event) {
	if s.SanctionCheckStatus != nil {
		e.SanctionCheckStatus = *s.SanctionCheckStatus
	}
	if s.EligibilityCheckStatus != nil {
		e.EligibilityCheckStatus = *s.EligibilityCheckStatus
	}
	if s.LimitCheckStatus != nil {
		e.LimitCheckStatus = *s.LimitCheckStatus
	}
	if s.PricingStatus != nil {
		e.PricingStatus = *s.PricingStatus
	}
}
