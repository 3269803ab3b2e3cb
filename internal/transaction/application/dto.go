package application

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/SamGorr/tscmf-system/internal/transaction/domain"
)

// SubmitRequest is the intake payload for a new inquiry or request.
type SubmitRequest struct {
	Kind             string `json:"kind"`
	InquiryReference string `json:"inquiry_reference,omitempty"`

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

	IssueDate    *time.Time `json:"issue_date,omitempty"`
	MaturityDate *time.Time `json:"maturity_date,omitempty"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
}

func (r SubmitRequest) toTransaction() *domain.Transaction {
	kind := domain.Kind(r.Kind)
	if kind == "" {
		kind = domain.KindRequest
	}
	return &domain.Transaction{
		Reference:        domain.NewReference(kind),
		InquiryReference: r.InquiryReference,
		Kind:             kind,
		Country:          r.Country,
		IssuingBank:      r.IssuingBank,
		ConfirmingBank:   r.ConfirmingBank,
		RequestingBank:   r.RequestingBank,
		Importer:         r.Importer,
		Supplier:         r.Supplier,
		Currency:         r.Currency,
		FaceAmount:       r.FaceAmount,
		LocalAmount:      r.LocalAmount,
		USDAmount:        r.USDAmount,
		PricingRate:      r.PricingRate,
		TenorDays:        r.TenorDays,
		SubLimitType:     r.SubLimitType,
		Industry:         r.Industry,
		Goods:            r.Goods,
		IssueDate:        r.IssueDate,
		MaturityDate:     r.MaturityDate,
		ExpiryDate:       r.ExpiryDate,
	}
}

// AmendRequest carries field overrides for an amendment. Nil fields keep the
// original value.
type AmendRequest struct {
	Currency     *string          `json:"currency,omitempty"`
	FaceAmount   *decimal.Decimal `json:"face_amount,omitempty"`
	LocalAmount  *decimal.Decimal `json:"local_amount,omitempty"`
	USDAmount    *decimal.Decimal `json:"usd_amount,omitempty"`
	PricingRate  *decimal.Decimal `json:"pricing_rate,omitempty"`
	TenorDays    *int             `json:"tenor_days,omitempty"`
	SubLimitType *string          `json:"sub_limit_type,omitempty"`
	Goods        []string         `json:"goods,omitempty"`

	IssueDate    *time.Time `json:"issue_date,omitempty"`
	MaturityDate *time.Time `json:"maturity_date,omitempty"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
}

func (r AmendRequest) apply(t *domain.Transaction) {
	if r.Currency != nil {
		t.Currency = *r.Currency
	}
	if r.FaceAmount != nil {
		t.FaceAmount = *r.FaceAmount
	}
	if r.LocalAmount != nil {
		t.LocalAmount = *r.LocalAmount
	}
	if r.USDAmount != nil {
		t.USDAmount = *r.USDAmount
	}
	if r.PricingRate != nil {
		t.PricingRate = *r.PricingRate
	}
	if r.TenorDays != nil {
		t.TenorDays = *r.TenorDays
	}
	if r.SubLimitType != nil {
		t.SubLimitType = *r.SubLimitType
	}
	if r.Goods != nil {
		t.Goods = r.Goods
	}
	if r.IssueDate != nil {
		t.IssueDate = r.IssueDate
	}
	if r.MaturityDate != nil {
		t.MaturityDate = r.MaturityDate
	}
	if r.ExpiryDate != nil {
		t.ExpiryDate = r.ExpiryDate
	}
}

// TransactionDetail is a transaction with its full audit trail.
type TransactionDetail struct {
	Transaction *domain.Transaction `json:"transaction"`
	Events      []*domain.Event     `json:"events"`
}

// ListResult is one page of transactions.
type ListResult struct {
	Items    []*domain.Transaction `json:"items"`
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
}
