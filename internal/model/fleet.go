package model

import (
	"time"
)

// UnitState lifecycle state of a fleet unit
type UnitState string

const (
	UnitStatePending     UnitState = "pending"     // Provisioning
	UnitStateRunning     UnitState = "running"     // Running
	UnitStateTerminating UnitState = "terminating" // Termination issued, not gone yet
	UnitStateTerminated  UnitState = "terminated"  // Gone
)

// Active reports whether a unit counts toward running capacity
func (s UnitState) Active() bool {
	return s == UnitStatePending || s == UnitStateRunning
}

// FleetUnit one provisioned compute unit running a worker
type FleetUnit struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	State      UnitState `json:"state"`
	LaunchedAt time.Time `json:"launched_at"`
}

// WorkerPhase worker state machine phase
type WorkerPhase string

const (
	WorkerPhaseStarting   WorkerPhase = "STARTING"
	WorkerPhasePolling    WorkerPhase = "POLLING"
	WorkerPhaseProcessing WorkerPhase = "PROCESSING"
	WorkerPhaseDraining   WorkerPhase = "DRAINING"
	WorkerPhaseTerminated WorkerPhase = "TERMINATED"
)
