package domain

import "context"

// Repository is the Record Store contract for transactions and their audit
// trail. Create and Append persist the transaction fields and the audit
// Event together; implementations must never apply one without the other.
type Repository interface {
	Create(ctx context.Context, t *Transaction, evt *Event) error
	Update(ctx context.Context, t *Transaction, evt *Event) error
	GetByReference(ctx context.Context, reference string) (*Transaction, error)
	List(ctx context.Context, status Status, kind Kind, page, pageSize int) ([]*Transaction, int64, error)
	LatestEvent(ctx context.Context, reference string) (*Event, error)
	ListEvents(ctx context.Context, reference string) ([]*Event, error)
	// StampChecks partially updates the verification-check fields on the
	// latest Event.
	StampChecks(ctx context.Context, reference string, stamp CheckStamp) error
}

// EventPublisher emits lifecycle events for downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}
