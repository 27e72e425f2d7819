package interfaces

import (
	"context"

	"elasticpool/internal/model"
)

// UnitFilter selects units of the worker pool by lifecycle state
// Empty States matches every state.
type UnitFilter struct {
	States []model.UnitState
}

// Matches reports whether state passes the filter
func (f UnitFilter) Matches(state model.UnitState) bool {
	if len(f.States) == 0 {
		return true
	}
	for _, s := range f.States {
		if s == state {
			return true
		}
	}
	return false
}

// ActiveUnits matches units that count toward running capacity
var ActiveUnits = UnitFilter{States: []model.UnitState{model.UnitStatePending, model.UnitStateRunning}}

// FleetProvider instance fleet provider interface
// Implementations: EC2, Kubernetes pods, Docker containers, in-memory.
// A provider only ever sees units carrying its pool tag.
type FleetProvider interface {
	// List lists pool units matching filter
	List(ctx context.Context, filter UnitFilter) ([]*model.FleetUnit, error)

	// Launch provisions count units from the provider's launch template, tagged for discovery
	Launch(ctx context.Context, count int) ([]*model.FleetUnit, error)

	// Tag assigns a unique name to a unit
	Tag(ctx context.Context, unitID string, name string) error

	// Terminate terminates units
	Terminate(ctx context.Context, unitIDs []string) error

	// SelfIdentity returns the unit id of the caller, only callable from within a unit
	SelfIdentity(ctx context.Context) (string, error)
}
