package port

import (
	"context"

	"github.com/rl1809/velocity/internal/core/domain"
)

type OwnerMirror interface {
	// SaveOwner stores the owner unless a newer revision is already mirrored
	SaveOwner(ctx context.Context, change domain.OwnerChange) error

	// LoadOwners returns every mirrored owner with its revision, oldest first.
	// Used to restore the ledger on startup.
	LoadOwners(ctx context.Context) ([]domain.OwnerChange, error)
}
