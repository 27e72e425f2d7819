package autoscaler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"elasticpool/pkg/interfaces"
	"elasticpool/pkg/logger"
	"elasticpool/pkg/metrics"
)

const recentEventLimit = 20

// Manager fleet controller: samples backlog, sizes the fleet, repeats
type Manager struct {
	config           *Config
	metricsCollector *MetricsCollector
	executor         *Executor
	namer            *UnitNamer
	recorder         interfaces.ScalingEventRecorder // optional
	distributedLock  DistributedLock                 // optional
	metrics          *metrics.ControllerMetrics      // optional

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// tickMu serializes ticks from the loop and manual triggers
	tickMu sync.Mutex

	mu           sync.RWMutex
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
	ticks        int64
	lastRunTime  time.Time
	lastError    string
	lastDecision *ScaleDecision
}

// NewManager creates a fleet controller. recorder, lock and m may be nil.
func NewManager(
	config *Config,
	queue interfaces.QueueProvider,
	fleet interfaces.FleetProvider,
	recorder interfaces.ScalingEventRecorder,
	lock DistributedLock,
	m *metrics.ControllerMetrics,
) *Manager {
	namer := NewUnitNamer(config.NamePrefix)
	return &Manager{
		config:           config,
		metricsCollector: NewMetricsCollector(queue, fleet, config),
		executor:         NewExecutor(fleet, namer, recorder),
		namer:            namer,
		recorder:         recorder,
		distributedLock:  lock,
		metrics:          m,
		now:              time.Now,
		sleep:            sleepCtx,
	}
}

// SetClock overrides the time source and the inter-tick sleep
func (m *Manager) SetClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now != nil {
		m.now = now
		m.executor.now = now
	}
	if sleep != nil {
		m.sleep = sleep
	}
}

// Start runs the control loop in the background
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("autoscaler is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go func() {
		defer close(m.done)
		m.Run(loopCtx)
	}()
	return nil
}

// Stop stops the background loop and waits for the current tick to finish
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("autoscaler is not running")
	}
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	logger.Info("autoscaler stopped")
	return nil
}

// Run executes ticks until ctx is cancelled. A failed tick is logged and
// the next one runs on the normal cadence.
func (m *Manager) Run(ctx context.Context) {
	logger.InfoCtx(ctx, "starting autoscaler, interval: %s, min: %d, max: %d, messages/instance: %d",
		m.config.Interval, m.config.MinInstances, m.config.MaxInstances, m.config.MessagesPerInstance)

	for {
		start := m.clock()
		if err := m.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.ErrorCtx(ctx, "autoscaler run failed: %v", err)
			m.metrics.TickFailed()
		}
		elapsed := m.clock().Sub(start)
		m.metrics.ObserveTick(elapsed)

		if err := m.sleepFn()(ctx, m.nextSleep(elapsed)); err != nil {
			return
		}
	}
}

// nextSleep returns the remainder of the tick interval, floored at MinSleep
func (m *Manager) nextSleep(elapsed time.Duration) time.Duration {
	d := m.config.Interval - elapsed
	if d < m.config.MinSleep {
		d = m.config.MinSleep
	}
	return d
}

// RunOnce executes one tick. Concurrent callers wait for the running tick.
func (m *Manager) RunOnce(ctx context.Context) error {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()

	m.mu.Lock()
	m.ticks++
	tick := m.ticks
	m.mu.Unlock()
	ctx = logger.WithTrace(ctx, fmt.Sprintf("tick-%d", tick))

	if m.distributedLock != nil {
		acquired, err := m.distributedLock.TryLock(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		if !acquired {
			logger.DebugCtx(ctx, "autoscaler lock held by another instance, skipping this run")
			return nil
		}
		defer func() {
			if err := m.distributedLock.Unlock(ctx); err != nil {
				logger.ErrorCtx(ctx, "failed to release distributed lock: %v", err)
			}
		}()
	}

	err := m.tick(ctx)

	m.mu.Lock()
	m.lastRunTime = m.now()
	m.lastError = ""
	if err != nil {
		m.lastError = err.Error()
	}
	m.mu.Unlock()
	return err
}

func (m *Manager) tick(ctx context.Context) error {
	// Step 1: backlog sample
	queueLength, err := m.metricsCollector.SampleQueueLength(ctx)
	if err != nil {
		return err
	}

	// Step 2: fleet size
	units, err := m.metricsCollector.ActiveUnits(ctx)
	if err != nil {
		return err
	}

	// Step 3: decide
	decision := Decide(m.config.AutoScalerConfig, queueLength, len(units))
	m.metrics.ObserveDecision(decision.QueueLength, decision.RunningUnits, decision.DesiredUnits)
	logger.InfoCtx(ctx, "queue=%d running=%d desired=%d launch=%d terminate=%d: %s",
		decision.QueueLength, decision.RunningUnits, decision.DesiredUnits,
		decision.ToLaunch, decision.ToTerminate, decision.Reason)

	m.mu.Lock()
	m.lastDecision = decision
	m.mu.Unlock()

	// Step 4: act
	if decision.ToLaunch > 0 {
		launched, err := m.executor.Launch(ctx, decision)
		if err != nil {
			return err
		}
		m.metrics.Launched(len(launched))
	}
	if decision.ToTerminate > 0 {
		terminated, err := m.executor.Terminate(ctx, decision, units)
		if err != nil {
			return err
		}
		m.metrics.Terminated(len(terminated))
	}
	return nil
}

// GetStatus returns a snapshot of the controller state
func (m *Manager) GetStatus(ctx context.Context) *Status {
	m.mu.RLock()
	status := &Status{
		Running:       m.running,
		Ticks:         m.ticks,
		LastRunTime:   m.lastRunTime,
		LastError:     m.lastError,
		NextUnitIndex: m.namer.Peek(),
		MinInstances:  m.config.MinInstances,
		MaxInstances:  m.config.MaxInstances,
	}
	if m.lastDecision != nil {
		d := *m.lastDecision
		status.LastDecision = &d
	}
	m.mu.RUnlock()

	if history, ok := m.recorder.(EventHistory); ok {
		events, err := history.ListRecent(ctx, recentEventLimit)
		if err != nil {
			logger.WarnCtx(ctx, "failed to list recent events: %v", err)
		} else {
			status.RecentEvents = events
		}
	}
	return status
}

// RecentEvents returns up to limit newest scaling events, nil without a history store
func (m *Manager) RecentEvents(ctx context.Context, limit int) ([]*ScalingEvent, error) {
	history, ok := m.recorder.(EventHistory)
	if !ok {
		return nil, nil
	}
	events, err := history.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent events: %w", err)
	}
	return events, nil
}

func (m *Manager) clock() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now()
}

func (m *Manager) sleepFn() func(ctx context.Context, d time.Duration) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sleep
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
