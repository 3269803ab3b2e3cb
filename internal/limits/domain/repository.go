package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type EntityRepository interface {
	Save(ctx context.Context, entity *Entity) error
	GetByName(ctx context.Context, name string) (*Entity, error)
	List(ctx context.Context) ([]*Entity, error)
}

type EntityLimitRepository interface {
	Save(ctx context.Context, limit *EntityLimit) error
	ListAll(ctx context.Context) ([]*EntityLimit, error)
	ListByEntity(ctx context.Context, entityName string) ([]*EntityLimit, error)
	ListByCountry(ctx context.Context, country string) ([]*EntityLimit, error)
}

// ExposureBooker performs the atomic read-modify-write that consumes
// headroom when a transaction completes. Implementations must re-validate
// net headroom at commit time and fail with ErrLimitExceededAtCommit when a
// concurrent booking intervened.
type ExposureBooker interface {
	BookExposure(ctx context.Context, entityName, subLimitType string, amount decimal.Decimal) (*EntityLimit, error)
}
