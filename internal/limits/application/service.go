package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SamGorr/tscmf-system/internal/limits/domain"
)

// UnitOfWork groups repository calls into one atomic commit.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// OnboardRequest registers an entity together with its initial facilities.
type OnboardRequest struct {
	Name          string         `json:"entity_name"`
	Country       string         `json:"country"`
	Address       string         `json:"address,omitempty"`
	SwiftCode     string         `json:"swift_code,omitempty"`
	EntityType    string         `json:"entity_type,omitempty"`
	AgreementDate *time.Time     `json:"agreement_date,omitempty"`
	Limits        []LimitRequest `json:"limits,omitempty"`
}

type LimitRequest struct {
	Facility            string          `json:"facility"`
	ApprovedLimit       decimal.Decimal `json:"approved_limit"`
	PFIRPAAllocation    decimal.Decimal `json:"pfi_rpa_allocation"`
	OutstandingExposure decimal.Decimal `json:"outstanding_exposure"`
	EarmarkLimit        decimal.Decimal `json:"earmark_limit"`
}

// LimitView is one facility row with its derived utilization figures.
type LimitView struct {
	ID                    uint64          `json:"id"`
	Facility              string          `json:"facility"`
	ApprovedLimit         decimal.Decimal `json:"approved_limit"`
	PFIRPAAllocation      decimal.Decimal `json:"pfi_rpa_allocation"`
	OutstandingExposure   decimal.Decimal `json:"outstanding_exposure"`
	EarmarkLimit          decimal.Decimal `json:"earmark_limit"`
	Utilized              decimal.Decimal `json:"utilized"`
	Available             decimal.Decimal `json:"available"`
	NetAvailable          decimal.Decimal `json:"net_available"`
	UtilizationPercentage decimal.Decimal `json:"utilization_percentage"`
}

type EntityDetail struct {
	Entity *domain.Entity `json:"entity"`
	Limits []LimitView    `json:"limits"`
}

// EntityService manages the onboarded entities and their facilities.
type EntityService struct {
	entities domain.EntityRepository
	limits   domain.EntityLimitRepository
	uow      UnitOfWork
	logger   *slog.Logger
}

func NewEntityService(entities domain.EntityRepository, limits domain.EntityLimitRepository, uow UnitOfWork, logger *slog.Logger) *EntityService {
	return &EntityService{entities: entities, limits: limits, uow: uow, logger: logger}
}

// Onboard creates the entity and its initial facility rows in one commit.
// A duplicate name fails the whole request with ErrDuplicateEntity.
func (s *EntityService) Onboard(ctx context.Context, req OnboardRequest) (*EntityDetail, error) {
	entity := &domain.Entity{
		Name:          req.Name,
		Country:       req.Country,
		Address:       req.Address,
		SwiftCode:     req.SwiftCode,
		EntityType:    req.EntityType,
		AgreementDate: req.AgreementDate,
	}
	if err := entity.Validate(); err != nil {
		return nil, err
	}

	err := s.uow.Do(ctx, func(ctx context.Context) error {
		if err := s.entities.Save(ctx, entity); err != nil {
			return err
		}
		for _, lr := range req.Limits {
			limit := &domain.EntityLimit{
				EntityName:          entity.Name,
				Facility:            lr.Facility,
				ApprovedLimit:       lr.ApprovedLimit,
				PFIRPAAllocation:    lr.PFIRPAAllocation,
				OutstandingExposure: lr.OutstandingExposure,
				EarmarkLimit:        lr.EarmarkLimit,
			}
			if err := s.limits.Save(ctx, limit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "entity onboarded",
		"entity", entity.Name, "country", entity.Country, "facilities", len(req.Limits))
	return s.Get(ctx, entity.Name)
}

// AddLimit attaches another facility to an existing entity.
func (s *EntityService) AddLimit(ctx context.Context, entityName string, req LimitRequest) (*domain.EntityLimit, error) {
	if _, err := s.entities.GetByName(ctx, entityName); err != nil {
		return nil, err
	}
	limit := &domain.EntityLimit{
		EntityName:          entityName,
		Facility:            req.Facility,
		ApprovedLimit:       req.ApprovedLimit,
		PFIRPAAllocation:    req.PFIRPAAllocation,
		OutstandingExposure: req.OutstandingExposure,
		EarmarkLimit:        req.EarmarkLimit,
	}
	if err := s.limits.Save(ctx, limit); err != nil {
		return nil, err
	}
	return limit, nil
}

// Get returns the entity with its facility rows and utilization figures.
func (s *EntityService) Get(ctx context.Context, name string) (*EntityDetail, error) {
	entity, err := s.entities.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	rows, err := s.limits.ListByEntity(ctx, name)
	if err != nil {
		return nil, err
	}

	views := make([]LimitView, len(rows))
	for i, l := range rows {
		views[i] = toLimitView(l)
	}
	return &EntityDetail{Entity: entity, Limits: views}, nil
}

// List returns every onboarded entity.
func (s *EntityService) List(ctx context.Context) ([]*domain.Entity, error) {
	return s.entities.List(ctx)
}

var hundred = decimal.NewFromInt(100)

func toLimitView(l *domain.EntityLimit) LimitView {
	utilized := l.Utilized()
	pct := decimal.Zero
	if !l.ApprovedLimit.IsZero() {
		pct = utilized.Mul(hundred).Div(l.ApprovedLimit).Round(2)
	}
	return LimitView{
		ID:                    l.ID,
		Facility:              l.Facility,
		ApprovedLimit:         l.ApprovedLimit,
		PFIRPAAllocation:      l.PFIRPAAllocation,
		OutstandingExposure:   l.OutstandingExposure,
		EarmarkLimit:          l.EarmarkLimit,
		Utilized:              utilized,
		Available:             l.Available(),
		NetAvailable:          l.NetAvailable(),
		UtilizationPercentage: pct,
	}
}
