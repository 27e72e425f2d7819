package mysql

import (
	"context"
	"fmt"
	"time"

	"elasticpool/pkg/interfaces"
)

// ScalingEventRepository handles scaling event persistence in MySQL
type ScalingEventRepository struct {
	ds   *Datastore
	pool string
}

// NewScalingEventRepository creates a new scaling event repository scoped to one pool
func NewScalingEventRepository(ds *Datastore, pool string) *ScalingEventRepository {
	return &ScalingEventRepository{ds: ds, pool: pool}
}

// Record stores one controller action
func (r *ScalingEventRepository) Record(ctx context.Context, event *interfaces.ScalingEvent) error {
	if err := r.ds.DB(ctx).Create(FromScalingEventDomain(r.pool, event)).Error; err != nil {
		return fmt.Errorf("failed to record scaling event: %w", err)
	}
	return nil
}

// ListRecent retrieves the most recent scaling events of the pool
func (r *ScalingEventRepository) ListRecent(ctx context.Context, limit int) ([]*interfaces.ScalingEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []*ScalingEvent
	err := r.ds.DB(ctx).
		Where("pool = ?", r.pool).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent scaling events: %w", err)
	}

	events := make([]*interfaces.ScalingEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, ToScalingEventDomain(row))
	}
	return events, nil
}

// DeleteOldEvents deletes events older than the specified time
func (r *ScalingEventRepository) DeleteOldEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.ds.DB(ctx).Where("timestamp < ?", olderThan).Delete(&ScalingEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
