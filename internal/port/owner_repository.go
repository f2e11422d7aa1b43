package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/rl1809/velocity/internal/core/domain"
)

// OwnerRepository is what the transport handlers need from the ledger.
type OwnerRepository interface {
	// UpsertOwner inserts or replaces an owner, rejecting writes that push
	// the company total above 100
	UpsertOwner(ctx context.Context, owner domain.Owner) (domain.Owner, error)

	// GetOwnerByID reports false when no owner is stored under id
	GetOwnerByID(ctx context.Context, id uuid.UUID) (domain.Owner, bool)

	GetAllOwners(ctx context.Context) []domain.Owner

	GetOwnersByCompany(ctx context.Context, companyID uuid.UUID) []domain.Owner
}
