package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"elasticpool/internal/model"
	"elasticpool/pkg/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_LaunchTagTerminate(t *testing.T) {
	p := NewProvider()
	now := time.Unix(1000, 0)
	p.SetClock(func() time.Time { return now })
	ctx := context.Background()

	units, err := p.Launch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.NotEqual(t, units[0].ID, units[1].ID)

	require.NoError(t, p.Tag(ctx, units[0].ID, "worker-0"))
	assert.Error(t, p.Tag(ctx, "missing", "worker-9"))

	u, ok := p.Unit(units[0].ID)
	require.True(t, ok)
	assert.Equal(t, "worker-0", u.Name)

	require.NoError(t, p.Terminate(ctx, []string{units[1].ID, "missing"}))

	active, err := p.List(ctx, interfaces.ActiveUnits)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, units[0].ID, active[0].ID)

	all, err := p.List(ctx, interfaces.UnitFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestProvider_ListOldestFirst(t *testing.T) {
	p := NewProvider()
	p.Add(&model.FleetUnit{ID: "b", State: model.UnitStateRunning, LaunchedAt: time.Unix(200, 0)})
	p.Add(&model.FleetUnit{ID: "a", State: model.UnitStatePending, LaunchedAt: time.Unix(100, 0)})
	p.Add(&model.FleetUnit{ID: "c", State: model.UnitStateTerminating, LaunchedAt: time.Unix(50, 0)})

	units, err := p.List(context.Background(), interfaces.ActiveUnits)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "a", units[0].ID)
	assert.Equal(t, "b", units[1].ID)
}

func TestProvider_LaunchFailures(t *testing.T) {
	p := NewProvider()
	ctx := context.Background()

	p.SetLaunchCapacity(1)
	units, err := p.Launch(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, units, 1)

	p.SetLaunchError(errors.New("InsufficientInstanceCapacity"))
	_, err = p.Launch(ctx, 1)
	assert.Error(t, err)
}

func TestProvider_SelfIdentity(t *testing.T) {
	p := NewProvider()
	_, err := p.SelfIdentity(context.Background())
	assert.Error(t, err)

	p.SetSelfIdentity("unit-000001")
	id, err := p.SelfIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unit-000001", id)
}
