package mysql

import (
	"elasticpool/pkg/interfaces"
)

// FromScalingEventDomain converts a controller scaling event to its MySQL row
func FromScalingEventDomain(pool string, event *interfaces.ScalingEvent) *ScalingEvent {
	if event == nil {
		return nil
	}

	return &ScalingEvent{
		EventID:     event.EventID,
		Pool:        pool,
		Timestamp:   event.Timestamp,
		Action:      string(event.Action),
		FromUnits:   event.FromUnits,
		ToUnits:     event.ToUnits,
		QueueLength: int64(event.QueueLength),
		UnitIDs:     event.UnitIDs,
		Reason:      event.Reason,
	}
}

// ToScalingEventDomain converts a MySQL row back to a scaling event
func ToScalingEventDomain(row *ScalingEvent) *interfaces.ScalingEvent {
	if row == nil {
		return nil
	}

	return &interfaces.ScalingEvent{
		EventID:     row.EventID,
		Timestamp:   row.Timestamp,
		Action:      interfaces.ScalingAction(row.Action),
		FromUnits:   row.FromUnits,
		ToUnits:     row.ToUnits,
		QueueLength: int(row.QueueLength),
		UnitIDs:     row.UnitIDs,
		Reason:      row.Reason,
	}
}
