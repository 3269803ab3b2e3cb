package infrastructure

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/SamGorr/tscmf-system/internal/limits/domain"
	"github.com/SamGorr/tscmf-system/pkg/db"
)

type EntityPO struct {
	ID            uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name          string     `gorm:"column:entity_name;type:varchar(255);uniqueIndex;not null"`
	Country       string     `gorm:"column:country;type:varchar(100);index"`
	Address       string     `gorm:"column:address;type:varchar(500)"`
	SwiftCode     string     `gorm:"column:swift_code;type:varchar(20)"`
	EntityType    string     `gorm:"column:entity_type;type:varchar(50)"`
	AgreementDate *time.Time `gorm:"column:agreement_date"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (EntityPO) TableName() string { return "entities" }

type EntityLimitPO struct {
	ID                  uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	EntityName          string          `gorm:"column:entity_name;type:varchar(255);index;not null"`
	Facility            string          `gorm:"column:facility;type:varchar(255);not null"`
	ApprovedLimit       decimal.Decimal `gorm:"column:approved_limit;type:decimal(20,2);not null"`
	PFIRPAAllocation    decimal.Decimal `gorm:"column:pfi_rpa_allocation;type:decimal(20,2);not null"`
	OutstandingExposure decimal.Decimal `gorm:"column:outstanding_exposure;type:decimal(20,2);not null"`
	EarmarkLimit        decimal.Decimal `gorm:"column:earmark_limit;type:decimal(20,2);not null"`
	Version             uint64          `gorm:"column:version;not null;default:0"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (EntityLimitPO) TableName() string { return "entity_limits" }

type GormEntityRepository struct {
	db *gorm.DB
}

func NewGormEntityRepository(db *gorm.DB) *GormEntityRepository {
	return &GormEntityRepository{db: db}
}

func (r *GormEntityRepository) conn(ctx context.Context) *gorm.DB {
	return db.FromContext(ctx, r.db).WithContext(ctx)
}

func (r *GormEntityRepository) Save(ctx context.Context, e *domain.Entity) error {
	po := toEntityPO(e)
	err := r.conn(ctx).Create(po).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateEntity
	}
	if err != nil {
		return err
	}
	e.ID = po.ID
	return nil
}

func (r *GormEntityRepository) GetByName(ctx context.Context, name string) (*domain.Entity, error) {
	var po EntityPO
	err := r.conn(ctx).Where("entity_name = ?", name).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrEntityNotFound
	}
	if err != nil {
		return nil, err
	}
	return toEntity(&po), nil
}

func (r *GormEntityRepository) List(ctx context.Context) ([]*domain.Entity, error) {
	var pos []*EntityPO
	if err := r.conn(ctx).Order("entity_name").Find(&pos).Error; err != nil {
		return nil, err
	}
	entities := make([]*domain.Entity, len(pos))
	for i, po := range pos {
		entities[i] = toEntity(po)
	}
	return entities, nil
}

type GormEntityLimitRepository struct {
	db *gorm.DB
}

func NewGormEntityLimitRepository(db *gorm.DB) *GormEntityLimitRepository {
	return &GormEntityLimitRepository{db: db}
}

func (r *GormEntityLimitRepository) conn(ctx context.Context) *gorm.DB {
	return db.FromContext(ctx, r.db).WithContext(ctx)
}

func (r *GormEntityLimitRepository) Save(ctx context.Context, l *domain.EntityLimit) error {
	po := toEntityLimitPO(l)
	if err := r.conn(ctx).Create(po).Error; err != nil {
		return err
	}
	l.ID = po.ID
	return nil
}

func (r *GormEntityLimitRepository) ListAll(ctx context.Context) ([]*domain.EntityLimit, error) {
	var pos []*EntityLimitPO
	if err := r.conn(ctx).Find(&pos).Error; err != nil {
		return nil, err
	}
	return toEntityLimits(pos), nil
}

func (r *GormEntityLimitRepository) ListByEntity(ctx context.Context, entityName string) ([]*domain.EntityLimit, error) {
	var pos []*EntityLimitPO
	err := r.conn(ctx).Where("entity_name = ?", entityName).Find(&pos).Error
	if err != nil {
		return nil, err
	}
	return toEntityLimits(pos), nil
}

func (r *GormEntityLimitRepository) ListByCountry(ctx context.Context, country string) ([]*domain.EntityLimit, error) {
	var pos []*EntityLimitPO
	err := r.conn(ctx).
		Joins("JOIN entities ON entities.entity_name = entity_limits.entity_name").
		Where("LOWER(entities.country) = LOWER(?)", country).
		Find(&pos).Error
	if err != nil {
		return nil, err
	}
	return toEntityLimits(pos), nil
}

// BookExposure consumes headroom on the best matching facility row. The
// update re-validates net headroom and the row version inside one statement;
// zero rows affected means another booking intervened.
func (r *GormEntityLimitRepository) BookExposure(ctx context.Context, entityName, subLimitType string, amount decimal.Decimal) (*domain.EntityLimit, error) {
	var booked *domain.EntityLimit

	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var pos []*EntityLimitPO
		if err := tx.Where("entity_name = ?", entityName).Find(&pos).Error; err != nil {
			return err
		}

		var target *EntityLimitPO
		for _, po := range pos {
			l := toEntityLimit(po)
			if !domain.FacilityMatches(l.Facility, subLimitType) {
				continue
			}
			if l.NetAvailable().LessThan(amount) {
				continue
			}
			if target == nil || l.NetAvailable().GreaterThan(toEntityLimit(target).NetAvailable()) {
				target = po
			}
		}
		if target == nil {
			// Either no facility covers this product type or none has
			// headroom left; both are booking failures, not workflow failures.
			return domain.ErrLimitExceededAtCommit
		}

		res := tx.Model(&EntityLimitPO{}).
			Where("id = ? AND version = ?", target.ID, target.Version).
			Where("approved_limit - pfi_rpa_allocation - outstanding_exposure - earmark_limit >= ?", amount).
			Updates(map[string]any{
				"outstanding_exposure": gorm.Expr("outstanding_exposure + ?", amount),
				"version":              gorm.Expr("version + 1"),
				"updated_at":           time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrLimitExceededAtCommit
		}

		var fresh EntityLimitPO
		if err := tx.Where("id = ?", target.ID).First(&fresh).Error; err != nil {
			return err
		}
		booked = toEntityLimit(&fresh)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booked, nil
}

func toEntityPO(e *domain.Entity) *EntityPO {
	return &EntityPO{
		ID:            e.ID,
		Name:          e.Name,
		Country:       e.Country,
		Address:       e.Address,
		SwiftCode:     e.SwiftCode,
		EntityType:    e.EntityType,
		AgreementDate: e.AgreementDate,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toEntity(po *EntityPO) *domain.Entity {
	return &domain.Entity{
		ID:            po.ID,
		Name:          po.Name,
		Country:       po.Country,
		Address:       po.Address,
		SwiftCode:     po.SwiftCode,
		EntityType:    po.EntityType,
		AgreementDate: po.AgreementDate,
		CreatedAt:     po.CreatedAt,
		UpdatedAt:     po.UpdatedAt,
	}
}

func toEntityLimitPO(l *domain.EntityLimit) *EntityLimitPO {
	return &EntityLimitPO{
		ID:                  l.ID,
		EntityName:          l.EntityName,
		Facility:            l.Facility,
		ApprovedLimit:       l.ApprovedLimit,
		PFIRPAAllocation:    l.PFIRPAAllocation,
		OutstandingExposure: l.OutstandingExposure,
		EarmarkLimit:        l.EarmarkLimit,
		Version:             l.Version,
		CreatedAt:           l.CreatedAt,
		UpdatedAt:           l.UpdatedAt,
	}
}

func toEntityLimit(po *EntityLimitPO) *domain.EntityLimit {
	return &domain.EntityLimit{
		ID:                  po.ID,
		EntityName:          po.EntityName,
		Facility:            po.Facility,
		ApprovedLimit:       po.ApprovedLimit,
		PFIRPAAllocation:    po.PFIRPAAllocation,
		OutstandingExposure: po.OutstandingExposure,
		EarmarkLimit:        po.EarmarkLimit,
		Version:             po.Version,
		CreatedAt:           po.CreatedAt,
		UpdatedAt:           po.UpdatedAt,
	}
}

func toEntityLimits(pos []*EntityLimitPO) []*domain.EntityLimit {
	limits := make([]*domain.EntityLimit, len(pos))
	for i, po := range pos {
		limits[i] = toEntityLimit(po)
	}
	return limits
}
