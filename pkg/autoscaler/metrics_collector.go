package autoscaler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"elasticpool/internal/model"
	"elasticpool/pkg/interfaces"
	"elasticpool/pkg/logger"
)

// MetricsCollector samples backlog and fleet size for the decision engine
type MetricsCollector struct {
	queue     interfaces.QueueProvider
	fleet     interfaces.FleetProvider
	batchSize int
	wait      time.Duration
	release   bool
}

// NewMetricsCollector creates a metrics collector
func NewMetricsCollector(queue interfaces.QueueProvider, fleet interfaces.FleetProvider, cfg *Config) *MetricsCollector {
	return &MetricsCollector{
		queue:     queue,
		fleet:     fleet,
		batchSize: cfg.SampleBatchSize,
		wait:      cfg.SampleWait,
		release:   cfg.ReleaseSampledLeases(),
	}
}

// SampleQueueLength counts the messages returned by one bounded receive.
// The result is an estimate: the queue may hold more than one batch.
func (c *MetricsCollector) SampleQueueLength(ctx context.Context) (int, error) {
	msgs, err := c.queue.Receive(ctx, c.batchSize, c.wait)
	if err != nil {
		return 0, fmt.Errorf("failed to sample queue: %w", err)
	}

	if c.release && len(msgs) > 0 {
		if releaser, ok := c.queue.(interfaces.LeaseReleaser); ok {
			// released leases go back to the head, last first keeps receive order
			for i := len(msgs) - 1; i >= 0; i-- {
				if err := releaser.Release(ctx, msgs[i].ReceiptToken); err != nil && !errors.Is(err, interfaces.ErrLeaseNotFound) {
					logger.WarnCtx(ctx, "failed to release sampled lease: %v", err)
				}
			}
		}
	}
	return len(msgs), nil
}

// ActiveUnits lists pending or running pool units
func (c *MetricsCollector) ActiveUnits(ctx context.Context) ([]*model.FleetUnit, error) {
	units, err := c.fleet.List(ctx, interfaces.ActiveUnits)
	if err != nil {
		return nil, fmt.Errorf("failed to list fleet units: %w", err)
	}
	return units, nil
}
