package audit

import "context"

// Repository port for the audit trail
type Repository interface {
	Save(ctx context.Context, e *Entry) error
	ListByResource(ctx context.Context, resourceType, resourceID string, limit int) ([]*Entry, error)
}
