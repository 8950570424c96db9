package resolve

import (
	"context"
	"time"

	"github.com/seisio/stationsync/pkg/inventory"
)

// ProviderResolver resolves the authoritative provider id(s) for a station
// identity. Two implementations exist: one backed by the routing oracle and
// one backed by the persisted inventory; the caller selects the strategy at
// construction time.
type ProviderResolver interface {
	// Resolve returns the provider ids considered authoritative for the
	// station identity. Zero or more than one id means the identity is
	// ambiguous and cannot be persisted safely.
	Resolve(ctx context.Context, network, station string, start time.Time, end *time.Time) ([]inventory.ProviderID, error)

	// Description names the tie-break source for log output.
	Description() string
}

// Assignment is one persisted provider assignment for a station natural key.
type Assignment struct {
	Provider inventory.ProviderID
	EndTime  *time.Time
}

// AssignmentSource reads existing provider assignments from the persisted
// store. The store repository implements it.
type AssignmentSource interface {
	StationAssignments(ctx context.Context, network, station string, start time.Time) ([]Assignment, error)
}

// StoreResolver resolves provider authority from records already persisted
// in the relational store, used when no routing oracle is available.
type StoreResolver struct {
	source AssignmentSource
}

// NewStoreResolver creates a ProviderResolver backed by the persisted store.
func NewStoreResolver(source AssignmentSource) *StoreResolver {
	return &StoreResolver{source: source}
}

// Description implements ProviderResolver.
func (r *StoreResolver) Description() string { return "already saved stations" }

// Resolve looks up persisted assignments for the natural key. Among multiple
// matches it prefers the most specific one by also matching the end time;
// remaining ties are reported as-is (ambiguous), never guessed.
func (r *StoreResolver) Resolve(ctx context.Context, network, station string, start time.Time, end *time.Time) ([]inventory.ProviderID, error) {
	assignments, err := r.source.StationAssignments(ctx, network, station, start)
	if err != nil {
		return nil, err
	}

	distinct := distinctProviders(assignments)
	if len(distinct) <= 1 {
		return distinct, nil
	}

	// More than one persisted provider for (network, station, start):
	// narrow to the assignments whose end time matches the candidate's.
	var narrowed []Assignment
	for _, a := range assignments {
		if endEqual(a.EndTime, end) {
			narrowed = append(narrowed, a)
		}
	}
	if ids := distinctProviders(narrowed); len(ids) == 1 {
		return ids, nil
	}
	return distinct, nil
}

func distinctProviders(assignments []Assignment) []inventory.ProviderID {
	seen := make(map[inventory.ProviderID]struct{}, len(assignments))
	var ids []inventory.ProviderID
	for _, a := range assignments {
		if _, ok := seen[a.Provider]; !ok {
			seen[a.Provider] = struct{}{}
			ids = append(ids, a.Provider)
		}
	}
	return ids
}

func endEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UTC().Equal(b.UTC())
}
