package autoscaler

import (
	"context"
	"time"

	"elasticpool/pkg/config"
	"elasticpool/pkg/interfaces"
)

// Config fleet controller configuration
type Config struct {
	config.AutoScalerConfig

	// NamePrefix prefix of sequential unit names (<prefix>-<n>)
	NamePrefix string
	// Pool scopes the leader lock and scaling history
	Pool string
}

// NewConfig builds the controller configuration from the global config
func NewConfig(cfg *config.Config) *Config {
	return &Config{
		AutoScalerConfig: cfg.AutoScaler,
		NamePrefix:       cfg.Fleet.NamePrefix,
		Pool:             cfg.Fleet.NamePrefix,
	}
}

// ScaleDecision result of one control loop tick
type ScaleDecision struct {
	QueueLength  int    `json:"queueLength"`  // Sampled backlog
	RunningUnits int    `json:"runningUnits"` // Pending or running units
	DesiredUnits int    `json:"desiredUnits"`
	ToLaunch     int    `json:"toLaunch"`
	ToTerminate  int    `json:"toTerminate"`
	Reason       string `json:"reason"`
}

// NoOp reports whether the decision requires no fleet action
func (d *ScaleDecision) NoOp() bool {
	return d.ToLaunch == 0 && d.ToTerminate == 0
}

// ScalingEvent scaling history entry
type ScalingEvent = interfaces.ScalingEvent

// EventHistory is implemented by recorders that can list past events
type EventHistory interface {
	ListRecent(ctx context.Context, limit int) ([]*ScalingEvent, error)
}

// Status controller status snapshot
type Status struct {
	Running       bool            `json:"running"`
	Ticks         int64           `json:"ticks"`
	LastRunTime   time.Time       `json:"lastRunTime"`
	LastError     string          `json:"lastError,omitempty"`
	LastDecision  *ScaleDecision  `json:"lastDecision,omitempty"`
	NextUnitIndex int             `json:"nextUnitIndex"`
	MinInstances  int             `json:"minInstances"`
	MaxInstances  int             `json:"maxInstances"`
	RecentEvents  []*ScalingEvent `json:"recentEvents,omitempty"`
}
