package autoscaler

import (
	"fmt"

	"elasticpool/pkg/config"
)

// DesiredCapacity returns the unit count the fleet should converge to for a
// sampled backlog of queueLength messages
func DesiredCapacity(cfg config.AutoScalerConfig, queueLength int) int {
	if queueLength <= 0 {
		return cfg.MinInstances
	}
	perInstance := cfg.MessagesPerInstance
	if perInstance <= 0 {
		perInstance = 1
	}
	desired := (queueLength + perInstance - 1) / perInstance
	return clamp(desired, cfg.MinInstances, cfg.MaxInstances)
}

// Decide computes the launch/terminate counts for one tick.
//
// Launches are capped by LaunchRateLimit. Scale-in only happens when the
// sample saw no backlog and the fleet is above MinInstances; since desired
// is MinInstances in that case, scale-in never goes below the floor.
func Decide(cfg config.AutoScalerConfig, queueLength, running int) *ScaleDecision {
	desired := DesiredCapacity(cfg, queueLength)
	d := &ScaleDecision{
		QueueLength:  queueLength,
		RunningUnits: running,
		DesiredUnits: desired,
	}

	rate := cfg.LaunchRateLimit
	if rate < 0 {
		rate = 0
	}
	d.ToLaunch = clamp(desired-running, 0, rate)

	if excess := running - desired; excess > 0 && running > cfg.MinInstances && queueLength == 0 {
		d.ToTerminate = excess
	}

	switch {
	case d.ToLaunch > 0 && d.ToLaunch < desired-running:
		d.Reason = fmt.Sprintf("scale out %d->%d (rate limited to %d)", running, desired, d.ToLaunch)
	case d.ToLaunch > 0:
		d.Reason = fmt.Sprintf("scale out %d->%d", running, desired)
	case d.ToTerminate > 0:
		d.Reason = fmt.Sprintf("scale in %d->%d (queue empty)", running, desired)
	case running > desired:
		d.Reason = fmt.Sprintf("above desired %d but backlog visible, holding", desired)
	default:
		d.Reason = "at desired capacity"
	}
	return d
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
