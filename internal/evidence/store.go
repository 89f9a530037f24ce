package evidence

import (
	"context"

	id "kycvault/pkg/domain"
)

// Store persists evidence documents. Saving a document marks any prior
// current document for the same (owner, category) as superseded; superseded
// rows stay queryable by ID. Save returns sentinel.ErrConflict when a
// concurrent save for the same (owner, category) already claimed the
// current slot.
type Store interface {
	Save(ctx context.Context, doc *Document) error
	Update(ctx context.Context, doc *Document) error
	FindByID(ctx context.Context, docID id.DocumentID) (*Document, error)
	ListCurrent(ctx context.Context, ownerID id.UserID) ([]*Document, error)
}
