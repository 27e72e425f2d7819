package interfaces

import (
	"context"
	"time"
)

// ScalingAction action recorded for a controller tick
type ScalingAction string

const (
	ScalingActionLaunch    ScalingAction = "launch"
	ScalingActionTerminate ScalingAction = "terminate"
)

// ScalingEvent one launch/terminate action taken by the controller
type ScalingEvent struct {
	EventID     string        `json:"eventId"`
	Timestamp   time.Time     `json:"timestamp"`
	Action      ScalingAction `json:"action"`
	FromUnits   int           `json:"fromUnits"`
	ToUnits     int           `json:"toUnits"`
	QueueLength int           `json:"queueLength"`
	UnitIDs     []string      `json:"unitIds"`
	Reason      string        `json:"reason"`
}

// ScalingEventRecorder persists scaling history (optional)
type ScalingEventRecorder interface {
	Record(ctx context.Context, event *ScalingEvent) error
	DeleteOldEvents(ctx context.Context, olderThan time.Time) (int64, error)
}
