package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEntityNotFound   = errors.New("entity not found")
	ErrDuplicateEntity  = errors.New("entity name already onboarded")
	ErrEntityValidation = errors.New("entity validation failed")
	// ErrLimitExceededAtCommit signals that a concurrent booking consumed the
	// headroom between check and commit. Callers retry the booking, not the
	// whole workflow.
	ErrLimitExceededAtCommit = errors.New("limit exceeded at commit")
	ErrNoMatchingFacility    = errors.New("no facility limit matches the transaction product type")
)

type CheckStatus string

const (
	CheckStatusPassed  CheckStatus = "PASSED"
	CheckStatusWarning CheckStatus = "WARNING"
)

// Entity is a legal counterparty. Name is the natural key used by
// transactions to reference their banks; collisions are rejected at
// onboarding.
type Entity struct {
	ID            uint64     `json:"id"`
	Name          string     `json:"name"`
	Country       string     `json:"country"`
	Address       string     `json:"address"`
	SwiftCode     string     `json:"swift_code"`
	EntityType    string     `json:"entity_type"`
	AgreementDate *time.Time `json:"agreement_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (e *Entity) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: name is required", ErrEntityValidation)
	}
	if e.Country == "" {
		return fmt.Errorf("%w: country is required", ErrEntityValidation)
	}
	return nil
}

// EntityLimit is one (entity, facility) sub-limit row. Headroom is always
// recomputed from the stored components, never cached.
type EntityLimit struct {
	ID                  uint64          `json:"id"`
	EntityName          string          `json:"entity_name"`
	Facility            string          `json:"facility"`
	ApprovedLimit       decimal.Decimal `json:"approved_limit"`
	PFIRPAAllocation    decimal.Decimal `json:"pfi_rpa_allocation"`
	OutstandingExposure decimal.Decimal `json:"outstanding_exposure"`
	EarmarkLimit        decimal.Decimal `json:"earmark_limit"`
	// Version guards the optimistic read-modify-write on booking.
	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *EntityLimit) Utilized() decimal.Decimal {
	return l.PFIRPAAllocation.Add(l.OutstandingExposure)
}

func (l *EntityLimit) Available() decimal.Decimal {
	return l.ApprovedLimit.Sub(l.Utilized())
}

// NetAvailable subtracts the earmark reservation from the headroom.
func (l *EntityLimit) NetAvailable() decimal.Decimal {
	return l.Available().Sub(l.EarmarkLimit)
}
