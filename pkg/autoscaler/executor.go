package autoscaler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"elasticpool/internal/model"
	"elasticpool/pkg/interfaces"
	"elasticpool/pkg/logger"

	"github.com/google/uuid"
)

// Executor executor - executes scaling operations
type Executor struct {
	fleet    interfaces.FleetProvider
	namer    *UnitNamer
	recorder interfaces.ScalingEventRecorder // optional
	now      func() time.Time
}

// NewExecutor creates executor
func NewExecutor(fleet interfaces.FleetProvider, namer *UnitNamer, recorder interfaces.ScalingEventRecorder) *Executor {
	return &Executor{
		fleet:    fleet,
		namer:    namer,
		recorder: recorder,
		now:      time.Now,
	}
}

// Launch provisions decision.ToLaunch units and names each one.
// A failed tag leaves the unit running under its pool tag.
func (e *Executor) Launch(ctx context.Context, decision *ScaleDecision) ([]*model.FleetUnit, error) {
	if decision.ToLaunch <= 0 {
		return nil, nil
	}

	units, err := e.fleet.Launch(ctx, decision.ToLaunch)
	if err != nil {
		return nil, fmt.Errorf("failed to launch %d units: %w", decision.ToLaunch, err)
	}

	ids := make([]string, 0, len(units))
	for _, u := range units {
		name := e.namer.Next()
		if err := e.fleet.Tag(ctx, u.ID, name); err != nil {
			logger.WarnCtx(ctx, "failed to tag unit %s as %s: %v", u.ID, name, err)
		} else {
			u.Name = name
		}
		ids = append(ids, u.ID)
	}

	logger.InfoCtx(ctx, "launched %d units: %v", len(units), ids)
	e.record(ctx, interfaces.ScalingActionLaunch, decision, decision.RunningUnits+len(units), ids)
	return units, nil
}

// Terminate terminates decision.ToTerminate of the given units, oldest first
func (e *Executor) Terminate(ctx context.Context, decision *ScaleDecision, units []*model.FleetUnit) ([]string, error) {
	victims := SelectVictims(units, decision.ToTerminate)
	if len(victims) == 0 {
		return nil, nil
	}

	if err := e.fleet.Terminate(ctx, victims); err != nil {
		return nil, fmt.Errorf("failed to terminate units %v: %w", victims, err)
	}

	logger.InfoCtx(ctx, "terminated %d units: %v", len(victims), victims)
	e.record(ctx, interfaces.ScalingActionTerminate, decision, decision.RunningUnits-len(victims), victims)
	return victims, nil
}

// SelectVictims returns the ids of the count oldest units
func SelectVictims(units []*model.FleetUnit, count int) []string {
	if count <= 0 || len(units) == 0 {
		return nil
	}
	sorted := make([]*model.FleetUnit, len(units))
	copy(sorted, units)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LaunchedAt.Before(sorted[j].LaunchedAt)
	})
	if count > len(sorted) {
		count = len(sorted)
	}
	ids := make([]string, 0, count)
	for _, u := range sorted[:count] {
		ids = append(ids, u.ID)
	}
	return ids
}

func (e *Executor) record(ctx context.Context, action interfaces.ScalingAction, decision *ScaleDecision, to int, ids []string) {
	if e.recorder == nil {
		return
	}
	event := &interfaces.ScalingEvent{
		EventID:     uuid.NewString(),
		Timestamp:   e.now(),
		Action:      action,
		FromUnits:   decision.RunningUnits,
		ToUnits:     to,
		QueueLength: decision.QueueLength,
		UnitIDs:     ids,
		Reason:      decision.Reason,
	}
	if err := e.recorder.Record(ctx, event); err != nil {
		logger.WarnCtx(ctx, "failed to record scaling event: %v", err)
	}
}
