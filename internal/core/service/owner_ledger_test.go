package service

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/velocity/internal/core/domain"
)

func newOwner(companyID uuid.UUID, name string, percentage float64) domain.Owner {
	return domain.Owner{
		ID:         uuid.New(),
		CompanyID:  companyID,
		Name:       name,
		Percentage: percentage,
	}
}

func companyTotal(l *OwnerLedger, companyID uuid.UUID) float64 {
	var total float64
	for _, o := range l.GetOwnersByCompany(context.Background(), companyID) {
		total += o.Percentage
	}
	return total
}

func TestUpsertOwner_NewOwner(t *testing.T) {
	ledger := NewOwnerLedger(0)
	owner := newOwner(uuid.New(), "Test Person", 49.5)

	stored, err := ledger.UpsertOwner(context.Background(), owner)

	require.NoError(t, err)
	assert.Equal(t, owner, stored)
}

func TestUpsertOwner_ZeroValueOwner(t *testing.T) {
	ledger := NewOwnerLedger(0)

	stored, err := ledger.UpsertOwner(context.Background(), domain.Owner{})

	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, stored.ID)

	got, ok := ledger.GetOwnerByID(context.Background(), uuid.Nil)
	require.True(t, ok)
	assert.Equal(t, stored, got)
}

func TestUpsertOwner_ReplaceExcludesPreviousPercentage(t *testing.T) {
	ctx := context.Background()
	ledger := NewOwnerLedger(0)
	owner := newOwner(uuid.New(), "A", 50)

	_, err := ledger.UpsertOwner(ctx, owner)
	require.NoError(t, err)

	owner.Percentage = 100
	stored, err := ledger.UpsertOwner(ctx, owner)

	require.NoError(t, err)
	assert.Equal(t, 100.0, stored.Percentage)
	assert.Len(t, ledger.GetAllOwners(ctx), 1)
}

func TestUpsertOwner_ExistingOwnerOverflow(t *testing.T) {
	ctx := context.Background()
	ledger := NewOwnerLedger(0)
	owner := newOwner(uuid.New(), "A", 50)

	_, err := ledger.UpsertOwner(ctx, owner)
	require.NoError(t, err)

	owner.Percentage = 101
	_, err = ledger.UpsertOwner(ctx, owner)

	assert.ErrorIs(t, err, ErrPercentageOverflow)

	got, ok := ledger.GetOwnerByID(ctx, owner.ID)
	require.True(t, ok)
	assert.Equal(t, 50.0, got.Percentage)
}

func TestUpsertOwner_NewOwnerOverflow(t *testing.T) {
	ledger := NewOwnerLedger(0)

	_, err := ledger.UpsertOwner(context.Background(), domain.Owner{Percentage: 101})

	assert.ErrorIs(t, err, ErrPercentageOverflow)
	assert.Empty(t, ledger.GetAllOwners(context.Background()))
}

func TestUpsertOwner_NewOwnerRejection(t *testing.T) {
	ctx := context.Background()
	ledger := NewOwnerLedger(0)
	company := uuid.New()

	_, err := ledger.UpsertOwner(ctx, newOwner(company, "A", 35))
	require.NoError(t, err)
	_, err = ledger.UpsertOwner(ctx, newOwner(company, "B", 25))
	require.NoError(t, err)

	_, err = ledger.UpsertOwner(ctx, newOwner(company, "C", 41))
	assert.ErrorIs(t, err, ErrPercentageOverflow)
	assert.Len(t, ledger.GetOwnersByCompany(ctx, company), 2)

	_, err = ledger.UpsertOwner(ctx, newOwner(company, "C", 40))
	assert.NoError(t, err)
	assert.Equal(t, 100.0, companyTotal(ledger, company))
}

func TestUpsertOwner_Boundary(t *testing.T) {
	tests := []struct {
		name       string
		seed       float64
		percentage float64
		wantErr    bool
	}{
		{name: "exactly 100", seed: 40, percentage: 60, wantErr: false},
		{name: "single owner at 100", seed: 0, percentage: 100, wantErr: false},
		{name: "just above 100", seed: 0, percentage: math.Nextafter(100, 101), wantErr: true},
		{name: "half a point above 100", seed: 40, percentage: 60.5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			ledger := NewOwnerLedger(0)
			company := uuid.New()

			_, err := ledger.UpsertOwner(ctx, newOwner(company, "A", tt.seed))
			require.NoError(t, err)

			_, err = ledger.UpsertOwner(ctx, newOwner(company, "B", tt.percentage))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPercentageOverflow)
				assert.Len(t, ledger.GetOwnersByCompany(ctx, company), 1)
			} else {
				assert.NoError(t, err)
				assert.Len(t, ledger.GetOwnersByCompany(ctx, company), 2)
			}
		})
	}
}

func TestUpsertOwner_CompaniesAreIndependent(t *testing.T) {
	ctx := context.Background()
	ledger := NewOwnerLedger(0)

	_, err := ledger.UpsertOwner(ctx, newOwner(uuid.New(), "A", 100))
	require.NoError(t, err)
	_, err = ledger.UpsertOwner(ctx, newOwner(uuid.New(), "B", 100))
	require.NoError(t, err)

	assert.Len(t, ledger.GetAllOwners(ctx), 2)
}

func TestUpsertOwner_ExistingOwnerKeepsCompany(t *testing.T) {
	ctx := context.Background()
	ledger := NewOwnerLedger(0)
	original := uuid.New()
	other := uuid.New()

	owner := newOwner(original, "A", 30)
	_, err := ledger.UpsertOwner(ctx, owner)
	require.NoError(t, err)
	_, err = ledger.UpsertOwner(ctx, newOwner(other, "B", 90))
	require.NoError(t, err)

	// checked against the original company, where 80 still fits
	moved := owner
	moved.CompanyID = other
	moved.Name = "A2"
	moved.Percentage = 80

	stored, err := ledger.UpsertOwner(ctx, moved)

	require.NoError(t, err)
	assert.Equal(t, original, stored.CompanyID)
	assert.Equal(t, "A2", stored.Name)
	assert.Equal(t, 80.0, stored.Percentage)
	assert.Len(t, ledger.GetOwnersByCompany(ctx, other), 1)
}

func TestUpsertOwner_EndToEndScenario(t *testing.T) {
	ctx := context.Background()
	ledger := NewOwnerLedger(0)
	company := uuid.New()
	first := uuid.New()
	second := uuid.New()

	stored, err := ledger.UpsertOwner(ctx, domain.Owner{ID: first, CompanyID: company, Name: "X", Percentage: 49.5})
	require.NoError(t, err)
	assert.Equal(t, first, stored.ID)

	_, err = ledger.UpsertOwner(ctx, domain.Owner{ID: second, CompanyID: company, Name: "Y", Percentage: 51})
	require.ErrorIs(t, err, ErrPercentageOverflow)
	assert.Equal(t, PercentageOverflowMsg, ErrPercentageOverflow.Error())

	owners := ledger.GetAllOwners(ctx)
	require.Len(t, owners, 1)
	assert.Equal(t, first, owners[0].ID)

	_, err = ledger.UpsertOwner(ctx, domain.Owner{ID: second, CompanyID: company, Name: "Y", Percentage: 50.5})
	require.NoError(t, err)
	assert.Equal(t, 100.0, companyTotal(ledger, company))
}

func TestGetOwnerByID(t *testing.T) {
	ctx := context.Background()
	ledger := NewOwnerLedger(0)

	_, ok := ledger.GetOwnerByID(ctx, uuid.New())
	assert.False(t, ok)

	owner := newOwner(uuid.New(), "A", 10)
	_, err := ledger.UpsertOwner(ctx, owner)
	require.NoError(t, err)

	owner.Name = "Renamed"
	_, err = ledger.UpsertOwner(ctx, owner)
	require.NoError(t, err)

	got, ok := ledger.GetOwnerByID(ctx, owner.ID)
	require.True(t, ok)
	assert.Equal(t, owner, got)
}

func TestGetOwnerByID_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	ledger := NewOwnerLedger(0)
	owner := newOwner(uuid.New(), "A", 10)
	_, err := ledger.UpsertOwner(ctx, owner)
	require.NoError(t, err)

	got, _ := ledger.GetOwnerByID(ctx, owner.ID)
	got.Percentage = 99

	again, _ := ledger.GetOwnerByID(ctx, owner.ID)
	assert.Equal(t, 10.0, again.Percentage)
}

func TestGetAllOwners_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	ledger := NewOwnerLedger(0)

	assert.NotNil(t, ledger.GetAllOwners(ctx))

	var want []uuid.UUID
	for i := 0; i < 5; i++ {
		o := newOwner(uuid.New(), "A", 10)
		_, err := ledger.UpsertOwner(ctx, o)
		require.NoError(t, err)
		want = append(want, o.ID)
	}

	var got []uuid.UUID
	for _, o := range ledger.GetAllOwners(ctx) {
		got = append(got, o.ID)
	}
	assert.Equal(t, want, got)
}

func TestGetOwnersByCompany(t *testing.T) {
	ctx := context.Background()
	ledger := NewOwnerLedger(0)
	companyA := uuid.New()
	companyB := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := ledger.UpsertOwner(ctx, newOwner(companyA, "A", 10))
		require.NoError(t, err)
		_, err = ledger.UpsertOwner(ctx, newOwner(companyB, "B", 20))
		require.NoError(t, err)
	}

	owners := ledger.GetOwnersByCompany(ctx, companyA)
	assert.Len(t, owners, 3)
	for _, o := range owners {
		assert.Equal(t, companyA, o.CompanyID)
	}

	empty := ledger.GetOwnersByCompany(ctx, uuid.New())
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestUpsertOwner_Concurrent(t *testing.T) {
	ctx := context.Background()
	ledger := NewOwnerLedger(0)
	company := uuid.New()
	totalRequests := 50

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.UpsertOwner(ctx, newOwner(company, "owner", 5)); err == nil {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(20), successCount.Load())
	assert.Equal(t, 100.0, companyTotal(ledger, company))
}

func TestChanges_PublishesAcceptedWrites(t *testing.T) {
	ctx := context.Background()
	ledger := NewOwnerLedger(10)
	company := uuid.New()

	first := newOwner(company, "A", 60)
	_, err := ledger.UpsertOwner(ctx, first)
	require.NoError(t, err)

	_, err = ledger.UpsertOwner(ctx, newOwner(company, "B", 50))
	require.Error(t, err)

	first.Percentage = 70
	_, err = ledger.UpsertOwner(ctx, first)
	require.NoError(t, err)

	ledger.Close()

	var changes []domain.OwnerChange
	for c := range ledger.Changes() {
		changes = append(changes, c)
	}

	require.Len(t, changes, 2)
	assert.Equal(t, uint64(1), changes[0].Revision)
	assert.Equal(t, 60.0, changes[0].Owner.Percentage)
	assert.Equal(t, uint64(2), changes[1].Revision)
	assert.Equal(t, 70.0, changes[1].Owner.Percentage)
}

func TestChanges_DisabledFeed(t *testing.T) {
	ledger := NewOwnerLedger(0)

	assert.Nil(t, ledger.Changes())

	_, err := ledger.UpsertOwner(context.Background(), newOwner(uuid.New(), "A", 1))
	assert.NoError(t, err)
	ledger.Close()
}

func TestClose_WritesStillAccepted(t *testing.T) {
	ctx := context.Background()
	ledger := NewOwnerLedger(1)
	ledger.Close()
	ledger.Close()

	_, err := ledger.UpsertOwner(ctx, newOwner(uuid.New(), "A", 10))
	assert.NoError(t, err)
	assert.Len(t, ledger.GetAllOwners(ctx), 1)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	ledger := NewOwnerLedger(10)
	company := uuid.New()

	mirrored := []domain.OwnerChange{
		{Owner: newOwner(company, "A", 70), Revision: 3},
		{Owner: newOwner(company, "B", 40), Revision: 8},
		{Owner: newOwner(company, "C", 30), Revision: 12},
		{Owner: newOwner(uuid.New(), "D", 100), Revision: 15},
	}

	n, err := ledger.Restore(ctx, mirrored)

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 100.0, companyTotal(ledger, company))

	_, ok := ledger.GetOwnerByID(ctx, mirrored[1].Owner.ID)
	assert.False(t, ok)

	select {
	case c := <-ledger.Changes():
		t.Fatalf("restored owner published: %+v", c)
	default:
	}

	// new writes must outrank everything already mirrored
	_, err = ledger.UpsertOwner(ctx, newOwner(uuid.New(), "E", 10))
	require.NoError(t, err)

	ledger.Close()
	change, open := <-ledger.Changes()
	require.True(t, open)
	assert.Equal(t, uint64(16), change.Revision)
}

func TestRestore_SkipsInvalidPercentage(t *testing.T) {
	tests := []struct {
		name       string
		percentage float64
	}{
		{name: "NaN", percentage: math.NaN()},
		{name: "negative", percentage: -50},
		{name: "above 100", percentage: 150},
		{name: "infinite", percentage: math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			ledger := NewOwnerLedger(0)
			company := uuid.New()
			corrupt := newOwner(company, "corrupt", tt.percentage)

			n, err := ledger.Restore(ctx, []domain.OwnerChange{
				{Owner: corrupt, Revision: 1},
				{Owner: newOwner(company, "A", 50), Revision: 2},
			})

			require.NoError(t, err)
			assert.Equal(t, 1, n)
			_, ok := ledger.GetOwnerByID(ctx, corrupt.ID)
			assert.False(t, ok)

			// the cap still holds for the company after restore
			accepted := 0
			for i := 0; i < 3; i++ {
				if _, err := ledger.UpsertOwner(ctx, newOwner(company, "B", 50)); err == nil {
					accepted++
				} else {
					assert.ErrorIs(t, err, ErrPercentageOverflow)
				}
			}
			assert.Equal(t, 1, accepted)
			assert.Equal(t, 100.0, companyTotal(ledger, company))
		})
	}
}
