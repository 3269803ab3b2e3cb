package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("transaction not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("validation failed")
)

type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusSubmitted  Status = "SUBMITTED"
	StatusProcessing Status = "PROCESSING"
	StatusApproved   Status = "APPROVED"
	StatusDeclined   Status = "DECLINED"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusAmended    Status = "AMENDED"
	StatusExpired    Status = "EXPIRED"
)

type Kind string

const (
	KindInquiry   Kind = "INQUIRY"
	KindRequest   Kind = "REQUEST"
	KindAmendment Kind = "AMENDMENT"
	KindClosure   Kind = "CLOSURE"
)

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusDeclined:  {},
	StatusCancelled: {},
	StatusExpired:   {},
}

var allowedTransitions = map[Status][]Status{
	StatusDraft:      {StatusSubmitted},
	StatusSubmitted:  {StatusProcessing},
	StatusProcessing: {StatusApproved, StatusDeclined},
	StatusApproved:   {StatusCompleted},
}

func (s Status) Terminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// CanTransition reports whether the state machine allows moving from s to
// target. AMENDED, CANCELLED and EXPIRED are side branches reachable from
// any non-terminal state.
func (s Status) CanTransition(target Status) bool {
	if s.Terminal() {
		return false
	}
	switch target {
	case StatusAmended, StatusCancelled, StatusExpired:
		return true
	}
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Transaction is a trade-finance transaction. Status is derived from the
// most recent Event; it is never written without appending one.
type Transaction struct {
	ID               uint64 `json:"id"`
	Reference        string `json:"reference"`
	InquiryReference string `json:"inquiry_reference,omitempty"`
	AmendsReference  string `json:"amends_reference,omitempty"`
	Kind             Kind   `json:"kind"`
	Status           Status `json:"status"`

	Country        string `json:"country"`
	IssuingBank    string `json:"issuing_bank"`
	ConfirmingBank string `json:"confirming_bank,omitempty"`
	RequestingBank string `json:"requesting_bank,omitempty"`
	Importer       string `json:"importer,omitempty"`
	Supplier       string `json:"supplier,omitempty"`

	Currency     string          `json:"currency"`
	FaceAmount   decimal.Decimal `json:"face_amount"`
	LocalAmount  decimal.Decimal `json:"local_amount"`
	USDAmount    decimal.Decimal `json:"usd_amount"`
	PricingRate  decimal.Decimal `json:"pricing_rate"`
	TenorDays    int             `json:"tenor_days"`
	SubLimitType string          `json:"sub_limit_type"`
	Industry     string          `json:"industry,omitempty"`
	Goods        []string        `json:"goods,omitempty"`

	IssueDate      *time.Time `json:"issue_date,omitempty"`
	MaturityDate   *time.Time `json:"maturity_date,omitempty"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
	ApprovalDate   *time.Time `json:"approval_date,omitempty"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewReference generates a unique transaction reference with the
// kind-specific prefix, e.g. TRX-4F2A91C3.
func NewReference(kind Kind) string {
	prefix := "TRX"
	switch kind {
	case KindInquiry:
		prefix = "INQ"
	case KindAmendment:
		prefix = "AMD"
	}
	token := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("%s-%s", prefix, token)
}

// Validate checks the intake fields.
func (t *Transaction) Validate() error {
	if t.USDAmount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: usd amount must be positive", ErrValidation)
	}
	if len(t.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", ErrValidation)
	}
	if t.IssuingBank == "" {
		return fmt.Errorf("%w: issuing bank is required", ErrValidation)
	}
	if t.Country == "" {
		return fmt.Errorf("%w: country is required", ErrValidation)
	}
	return nil
}

// Parties lists the counterparty names linked to the transaction, for
// sanctions screening. Blank slots are omitted.
func (t *Transaction) Parties() []PartyRef {
	parties := []PartyRef{
		{Name: t.IssuingBank, Role: "ISSUING_BANK"},
		{Name: t.ConfirmingBank, Role: "CONFIRMING_BANK"},
		{Name: t.RequestingBank, Role: "REQUESTING_BANK"},
		{Name: t.Importer, Role: "IMPORTER"},
		{Name: t.Supplier, Role: "SUPPLIER"},
	}
	kept := parties[:0]
	for _, p := range parties {
		if p.Name != "" {
			kept = append(kept, p)
		}
	}
	return kept
}

// PartyRef is a weak reference to an Entity by its unique name.
type PartyRef struct {
	Name string `json:"name"`
	Role string `json:"role"`
}
