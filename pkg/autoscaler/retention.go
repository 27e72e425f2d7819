package autoscaler

import (
	"context"
	"time"

	"elasticpool/pkg/interfaces"
	"elasticpool/pkg/logger"
)

const (
	// EventRetention is how long scaling events are kept
	EventRetention = 7 * 24 * time.Hour
	// EventPruneInterval is how often old scaling events are deleted
	EventPruneInterval = time.Hour
)

// EventRetentionJob deletes scaling events older than the retention window.
// Runs as a background job next to the control loop.
type EventRetentionJob struct {
	interval        time.Duration
	retention       time.Duration
	recorder        interfaces.ScalingEventRecorder
	distributedLock DistributedLock // optional
	now             func() time.Time
}

// NewEventRetentionJob creates the hourly prune job. lock may be nil.
func NewEventRetentionJob(recorder interfaces.ScalingEventRecorder, lock DistributedLock) *EventRetentionJob {
	return &EventRetentionJob{
		interval:        EventPruneInterval,
		retention:       EventRetention,
		recorder:        recorder,
		distributedLock: lock,
		now:             time.Now,
	}
}

func (j *EventRetentionJob) Name() string { return "scaling-event-retention" }

func (j *EventRetentionJob) Interval() time.Duration { return j.interval }

// Run prunes once. Only the replica holding lock prunes.
func (j *EventRetentionJob) Run(ctx context.Context) error {
	if j.recorder == nil {
		return nil
	}
	if j.distributedLock != nil {
		acquired, err := j.distributedLock.TryLock(ctx)
		if err != nil || !acquired {
			return err
		}
		defer j.distributedLock.Unlock(ctx)
	}

	deleted, err := j.recorder.DeleteOldEvents(ctx, j.now().Add(-j.retention))
	if err != nil {
		return err
	}
	if deleted > 0 {
		logger.InfoCtx(ctx, "cleaned up %d old scaling events (older than %s)", deleted, j.retention)
	}
	return nil
}
