package autoscaler

import (
	"context"
	"errors"
	"testing"
	"time"

	"elasticpool/internal/model"
	fleetmemory "elasticpool/pkg/fleet/memory"
	"elasticpool/pkg/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tagFailingFleet struct {
	*fleetmemory.Provider
}

func (f tagFailingFleet) Tag(ctx context.Context, unitID string, name string) error {
	return errors.New("tag api throttled")
}

func TestUnitNamer(t *testing.T) {
	n := NewUnitNamer("app-tier-instance")
	assert.Equal(t, 0, n.Peek())
	assert.Equal(t, "app-tier-instance-0", n.Next())
	assert.Equal(t, "app-tier-instance-1", n.Next())
	assert.Equal(t, 2, n.Peek())

	// a second controller starts its own sequence
	assert.Equal(t, "app-tier-instance-0", NewUnitNamer("app-tier-instance").Next())
}

func TestSelectVictims(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	units := []*model.FleetUnit{
		{ID: "b", LaunchedAt: base.Add(2 * time.Minute)},
		{ID: "a", LaunchedAt: base},
		{ID: "c", LaunchedAt: base.Add(time.Minute)},
	}

	assert.Equal(t, []string{"a", "c"}, SelectVictims(units, 2))
	assert.Equal(t, []string{"a", "c", "b"}, SelectVictims(units, 10))
	assert.Nil(t, SelectVictims(units, 0))
	assert.Nil(t, SelectVictims(nil, 3))

	// input order is untouched
	assert.Equal(t, "b", units[0].ID)
}

func TestExecutor_LaunchKeepsUnitWhenTagFails(t *testing.T) {
	fleet := fleetmemory.NewProvider()
	recorder := &fakeRecorder{}
	e := NewExecutor(tagFailingFleet{fleet}, NewUnitNamer("worker"), recorder)

	units, err := e.Launch(context.Background(), &ScaleDecision{RunningUnits: 1, ToLaunch: 2, Reason: "scale out"})
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Empty(t, units[0].Name)

	active, err := fleet.List(context.Background(), interfaces.ActiveUnits)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	require.Len(t, recorder.events, 1)
	assert.Equal(t, 1, recorder.events[0].FromUnits)
	assert.Equal(t, 3, recorder.events[0].ToUnits)
	assert.Equal(t, "scale out", recorder.events[0].Reason)
}

func TestExecutor_PartialLaunchNamesWhatArrived(t *testing.T) {
	fleet := fleetmemory.NewProvider()
	fleet.SetLaunchCapacity(2)
	namer := NewUnitNamer("worker")
	e := NewExecutor(fleet, namer, nil)

	units, err := e.Launch(context.Background(), &ScaleDecision{ToLaunch: 5})
	require.NoError(t, err)
	assert.Len(t, units, 2)
	assert.Equal(t, "worker-1", units[1].Name)
	assert.Equal(t, 2, namer.Peek())
}

func TestExecutor_NothingToDo(t *testing.T) {
	e := NewExecutor(fleetmemory.NewProvider(), NewUnitNamer("worker"), nil)

	units, err := e.Launch(context.Background(), &ScaleDecision{})
	assert.NoError(t, err)
	assert.Nil(t, units)

	ids, err := e.Terminate(context.Background(), &ScaleDecision{}, nil)
	assert.NoError(t, err)
	assert.Nil(t, ids)
}
