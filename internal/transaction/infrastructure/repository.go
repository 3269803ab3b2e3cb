package infrastructure

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/SamGorr/tscmf-system/internal/transaction/domain"
	"github.com/SamGorr/tscmf-system/pkg/db"
)

type TransactionPO struct {
	ID               uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Reference        string `gorm:"column:reference;type:varchar(32);uniqueIndex;not null"`
	InquiryReference string `gorm:"column:inquiry_reference;type:varchar(32);index"`
	AmendsReference  string `gorm:"column:amends_reference;type:varchar(32);index"`
	Kind             string `gorm:"column:kind;type:varchar(20);not null"`

	Country        string `gorm:"column:country;type:varchar(100);not null"`
	IssuingBank    string `gorm:"column:issuing_bank;type:varchar(255);index;not null"`
	ConfirmingBank string `gorm:"column:confirming_bank;type:varchar(255)"`
	RequestingBank string `gorm:"column:requesting_bank;type:varchar(255)"`
	Importer       string `gorm:"column:importer;type:varchar(255)"`
	Supplier       string `gorm:"column:supplier;type:varchar(255)"`

	Currency     string          `gorm:"column:currency;type:char(3);not null"`
	FaceAmount   decimal.Decimal `gorm:"column:face_amount;type:decimal(20,2);not null"`
	LocalAmount  decimal.Decimal `gorm:"column:local_amount;type:decimal(20,2);not null"`
	USDAmount    decimal.Decimal `gorm:"column:usd_amount;type:decimal(20,2);not null"`
	PricingRate  decimal.Decimal `gorm:"column:pricing_rate;type:decimal(10,4)"`
	TenorDays    int             `gorm:"column:tenor_days"`
	SubLimitType string          `gorm:"column:sub_limit_type;type:varchar(255)"`
	Industry     string          `gorm:"column:industry;type:varchar(255)"`
	Goods        string          `gorm:"column:goods;type:text"`

	IssueDate      *time.Time `gorm:"column:issue_date"`
	MaturityDate   *time.Time `gorm:"column:maturity_date"`
	ExpiryDate     *time.Time `gorm:"column:expiry_date"`
	ApprovalDate   *time.Time `gorm:"column:approval_date"`
	CompletionDate *time.Time `gorm:"column:completion_date"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (TransactionPO) TableName() string { return "transactions" }

type EventPO struct {
	ID                   uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	TransactionReference string `gorm:"column:transaction_reference;type:varchar(32);index;not null"`
	Source               string `gorm:"column:source;type:varchar(50)"`
	Type                 string `gorm:"column:type;type:varchar(20);not null"`
	Status               string `gorm:"column:status;type:varchar(20);not null"`

	SanctionCheckStatus    string `gorm:"column:sanction_check_status;type:varchar(20)"`
	EligibilityCheckStatus string `gorm:"column:eligibility_check_status;type:varchar(20)"`
	LimitCheckStatus       string `gorm:"column:limit_check_status;type:varchar(20)"`
	PricingStatus          string `gorm:"column:pricing_status;type:varchar(20)"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (EventPO) TableName() string { return "events" }

type GormTransactionRepository struct {
	db *gorm.DB
}

func NewGormTransactionRepository(gdb *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: gdb}
}

func (r *GormTransactionRepository) conn(ctx context.Context) *gorm.DB {
	return db.FromContext(ctx, r.db).WithContext(ctx)
}

func (r *GormTransactionRepository) Create(ctx context.Context, t *domain.Transaction, evt *domain.Event) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		po := toTransactionPO(t)
		if err := tx.Create(po).Error; err != nil {
			return err
		}
		t.ID = po.ID
		return tx.Create(toEventPO(evt)).Error
	})
}

func (r *GormTransactionRepository) Update(ctx context.Context, t *domain.Transaction, evt *domain.Event) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(toTransactionPO(t)).Error; err != nil {
			return err
		}
		return tx.Create(toEventPO(evt)).Error
	})
}

func (r *GormTransactionRepository) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	var po TransactionPO
	err := r.conn(ctx).Where("reference = ?", reference).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	t := toTransaction(&po)
	latest, err := r.LatestEvent(ctx, reference)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if latest != nil {
		// Current status is always derived from the most recent event.
		t.Status = latest.Status
	} else {
		t.Status = domain.StatusDraft
	}
	return t, nil
}

func (r *GormTransactionRepository) List(ctx context.Context, status domain.Status, kind domain.Kind, page, pageSize int) ([]*domain.Transaction, int64, error) {
	query := r.conn(ctx).Model(&TransactionPO{})
	if kind != "" {
		query = query.Where("kind = ?", string(kind))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var pos []*TransactionPO
	offset := (page - 1) * pageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&pos).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*domain.Transaction, 0, len(pos))
	for _, po := range pos {
		t := toTransaction(po)
		latest, err := r.LatestEvent(ctx, po.Reference)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, 0, err
		}
		if latest != nil {
			t.Status = latest.Status
		} else {
			t.Status = domain.StatusDraft
		}
		if status != "" && t.Status != status {
			continue
		}
		out = append(out, t)
	}
	return out, total, nil
}

func (r *GormTransactionRepository) LatestEvent(ctx context.Context, reference string) (*domain.Event, error) {
	var po EventPO
	err := r.conn(ctx).
		Where("transaction_reference = ?", reference).
		Order("id DESC").
		First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toEvent(&po), nil
}

func (r *GormTransactionRepository) ListEvents(ctx context.Context, reference string) ([]*domain.Event, error) {
	var pos []*EventPO
	err := r.conn(ctx).
		Where("transaction_reference = ?", reference).
		Order("id ASC").
		Find(&pos).Error
	if err != nil {
		return nil, err
	}
	events := make([]*domain.Event, len(pos))
	for i, po := range pos {
		events[i] = toEvent(po)
	}
	return events, nil
}

func (r *GormTransactionRepository) StampChecks(ctx context.Context, reference string, stamp domain.CheckStamp) error {
	updates := map[string]any{}
	if stamp.SanctionCheckStatus != nil {
		updates["sanction_check_status"] = *stamp.SanctionCheckStatus
	}
	if stamp.EligibilityCheckStatus != nil {
		updates["eligibility_check_status"] = *stamp.EligibilityCheckStatus
	}
	if stamp.LimitCheckStatus != nil {
		updates["limit_check_status"] = *stamp.LimitCheckStatus
	}
	if stamp.PricingStatus != nil {
		updates["pricing_status"] = *stamp.PricingStatus
	}
	if len(updates) == 0 {
		return nil
	}

	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var latest EventPO
		err := tx.Where("transaction_reference = ?", reference).
			Order("id DESC").
			First(&latest).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return tx.Model(&EventPO{}).Where("id = ?", latest.ID).Updates(updates).Error
	})
}

func toTransactionPO(t *domain.Transaction) *TransactionPO {
	return &TransactionPO{
		ID:               t.ID,
		Reference:        t.Reference,
		InquiryReference: t.InquiryReference,
		AmendsReference:  t.AmendsReference,
		Kind:             string(t.Kind),
		Country:          t.Country,
		IssuingBank:      t.IssuingBank,
		ConfirmingBank:   t.ConfirmingBank,
		RequestingBank:   t.RequestingBank,
		Importer:         t.Importer,
		Supplier:         t.Supplier,
		Currency:         t.Currency,
		FaceAmount:       t.FaceAmount,
		LocalAmount:      t.LocalAmount,
		USDAmount:        t.USDAmount,
		PricingRate:      t.PricingRate,
		TenorDays:        t.TenorDays,
		SubLimitType:     t.SubLimitType,
		Industry:         t.Industry,
		Goods:            strings.Join(t.Goods, ","),
		IssueDate:        t.IssueDate,
		MaturityDate:     t.MaturityDate,
		ExpiryDate:       t.ExpiryDate,
		ApprovalDate:     t.ApprovalDate,
		CompletionDate:   t.CompletionDate,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func toTransaction(po *TransactionPO) *domain.Transaction {
	var goods []string
	if po.Goods != "" {
		goods = strings.Split(po.Goods, ",")
	}
	return &domain.Transaction{
		ID:               po.ID,
		Reference:        po.Reference,
		InquiryReference: po.InquiryReference,
		AmendsReference:  po.AmendsReference,
		Kind:             domain.Kind(po.Kind),
		Country:          po.Country,
		IssuingBank:      po.IssuingBank,
		ConfirmingBank:   po.ConfirmingBank,
		RequestingBank:   po.RequestingBank,
		Importer:         po.Importer,
		Supplier:         po.Supplier,
		Currency:         po.Currency,
		FaceAmount:       po.FaceAmount,
		LocalAmount:      po.LocalAmount,
		USDAmount:        po.USDAmount,
		PricingRate:      po.PricingRate,
		TenorDays:        po.TenorDays,
		SubLimitType:     po.SubLimitType,
		Industry:         po.Industry,
		Goods:            goods,
		IssueDate:        po.IssueDate,
		MaturityDate:     po.MaturityDate,
		ExpiryDate:       po.ExpiryDate,
		ApprovalDate:     po.ApprovalDate,
		CompletionDate:   po.CompletionDate,
		CreatedAt:        po.CreatedAt,
		UpdatedAt:        po.UpdatedAt,
	}
}

func toEventPO(e *domain.Event) *EventPO {
	return &EventPO{
		ID:                     e.ID,
		TransactionReference:   e.TransactionReference,
		Source:                 e.Source,
		Type:                   string(e.Type),
		Status:                 string(e.Status),
		SanctionCheckStatus:    e.SanctionCheckStatus,
		EligibilityCheckStatus: e.EligibilityCheckStatus,
		LimitCheckStatus:       e.LimitCheckStatus,
		PricingStatus:          e.PricingStatus,
		CreatedAt:              e.CreatedAt,
	}
}

func toEvent(po *EventPO) *domain.Event {
	return &domain.Event{
		ID:                     po.ID,
		TransactionReference:   po.TransactionReference,
		Source:                 po.Source,
		Type:                   domain.Kind(po.Type),
		Status:                 domain.Status(po.Status),
		SanctionCheckStatus:    po.SanctionCheckStatus,
		EligibilityCheckStatus: po.EligibilityCheckStatus,
		LimitCheckStatus:       po.LimitCheckStatus,
		PricingStatus:          po.PricingStatus,
		CreatedAt:              po.CreatedAt,
	}
}
