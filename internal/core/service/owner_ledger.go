package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/oops"
	slogctx "github.com/veqryn/slog-context"

	"github.com/rl1809/velocity/internal/core/domain"
)

const (
	MaxCompanyPercentage  = 100.0
	PercentageOverflowMsg = "Sum of percentages higher than 100%."
)

// ErrPercentageOverflow is returned when a write would push a company above
// MaxCompanyPercentage.
var ErrPercentageOverflow = errors.New(PercentageOverflowMsg)

// OwnerLedger is the in-memory owner store. It guarantees that the owners of
// a company never hold more than MaxCompanyPercentage in total.
type OwnerLedger struct {
	mu       sync.RWMutex
	owners   map[uuid.UUID]*domain.Owner
	order    []uuid.UUID
	revision uint64

	feedMu     sync.RWMutex
	changes    chan domain.OwnerChange
	feedClosed bool
}

// NewOwnerLedger creates an empty ledger. A positive queueSize enables the
// change feed returned by Changes; it must then be drained.
func NewOwnerLedger(queueSize int) *OwnerLedger {
	l := &OwnerLedger{
		owners: make(map[uuid.UUID]*domain.Owner),
	}
	if queueSize > 0 {
		l.changes = make(chan domain.OwnerChange, queueSize)
	}
	return l
}

func (l *OwnerLedger) UpsertOwner(ctx context.Context, owner domain.Owner) (domain.Owner, error) {
	l.mu.Lock()
	stored, err := l.upsertLocked(owner)
	if err != nil {
		l.mu.Unlock()
		slogctx.Info(ctx, "owner rejected",
			"owner_id", owner.ID, "company_id", owner.CompanyID, "percentage", owner.Percentage)
		return domain.Owner{}, err
	}
	l.revision++
	change := domain.OwnerChange{Owner: stored, Revision: l.revision}
	l.mu.Unlock()

	slogctx.Debug(ctx, "owner stored",
		"owner_id", stored.ID, "company_id", stored.CompanyID, "revision", change.Revision)

	l.publish(change)
	return stored, nil
}

// upsertLocked applies the cap check and the write. Caller holds l.mu.
func (l *OwnerLedger) upsertLocked(owner domain.Owner) (domain.Owner, error) {
	existing, found := l.owners[owner.ID]

	companyID := owner.CompanyID
	if found {
		// an existing owner stays in its original company
		companyID = existing.CompanyID
	}

	// summed in insertion order so the float result does not depend on map order
	var candidateSum float64
	for _, id := range l.order {
		o := l.owners[id]
		if o.CompanyID != companyID || id == owner.ID {
			continue
		}
		candidateSum += o.Percentage
	}
	candidateSum += owner.Percentage

	if candidateSum > MaxCompanyPercentage {
		return domain.Owner{}, oops.
			In("ledger").
			With("company_id", companyID.String(), "candidate_sum", candidateSum).
			Wrap(ErrPercentageOverflow)
	}

	if found {
		existing.Name = owner.Name
		existing.Percentage = owner.Percentage
		return *existing, nil
	}

	stored := owner
	l.owners[owner.ID] = &stored
	l.order = append(l.order, owner.ID)
	return stored, nil
}

func (l *OwnerLedger) GetOwnerByID(_ context.Context, id uuid.UUID) (domain.Owner, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.owners[id]
	if !ok {
		return domain.Owner{}, false
	}
	return *o, true
}

// GetAllOwners returns the stored owners in insertion order.
func (l *OwnerLedger) GetAllOwners(_ context.Context) []domain.Owner {
	l.mu.RLock()
	defer l.mu.RUnlock()

	owners := make([]domain.Owner, 0, len(l.order))
	for _, id := range l.order {
		owners = append(owners, *l.owners[id])
	}
	return owners
}

func (l *OwnerLedger) GetOwnersByCompany(_ context.Context, companyID uuid.UUID) []domain.Owner {
	l.mu.RLock()
	defer l.mu.RUnlock()

	owners := make([]domain.Owner, 0)
	for _, id := range l.order {
		if o := l.owners[id]; o.CompanyID == companyID {
			owners = append(owners, *o)
		}
	}
	return owners
}

// Restore loads owners from a mirror. Owners with a percentage outside
// [0, 100] or that would break the company cap are skipped. Restored owners are not published on the change feed, and
// later writes get revisions above every restored one.
func (l *OwnerLedger) Restore(ctx context.Context, changes []domain.OwnerChange) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	restored := 0
	for _, change := range changes {
		if change.Revision > l.revision {
			l.revision = change.Revision
		}

		owner := change.Owner
		if !owner.HasValidPercentage() {
			slogctx.Warn(ctx, "skipping mirrored owner with invalid percentage",
				"owner_id", owner.ID, "company_id", owner.CompanyID, "percentage", owner.Percentage)
			continue
		}
		if _, err := l.upsertLocked(owner); err != nil {
			if !errors.Is(err, ErrPercentageOverflow) {
				return restored, err
			}
			slogctx.Warn(ctx, "skipping mirrored owner over company cap",
				"owner_id", owner.ID, "company_id", owner.CompanyID, "error", err)
			continue
		}
		restored++
	}
	return restored, nil
}

// Changes returns the change feed, or nil when the ledger was built without one.
func (l *OwnerLedger) Changes() <-chan domain.OwnerChange {
	return l.changes
}

// Close closes the change feed. Later writes are still accepted.
func (l *OwnerLedger) Close() {
	l.feedMu.Lock()
	defer l.feedMu.Unlock()

	if l.changes == nil || l.feedClosed {
		return
	}
	l.feedClosed = true
	close(l.changes)
}

func (l *OwnerLedger) publish(change domain.OwnerChange) {
	l.feedMu.RLock()
	defer l.feedMu.RUnlock()

	if l.changes == nil || l.feedClosed {
		return
	}
	l.changes <- change
}
