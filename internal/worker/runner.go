package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"elasticpool/internal/model"
	"elasticpool/pkg/config"
	"elasticpool/pkg/constants"
	"elasticpool/pkg/interfaces"
	"elasticpool/pkg/logger"
	"elasticpool/pkg/metrics"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
)

// Deps collaborators of a worker
type Deps struct {
	Requests   interfaces.QueueProvider // Jobs are leased from here
	Responses  interfaces.QueueProvider // "<base_id>:<label>" lines are published here
	Input      interfaces.BlobStore
	Output     interfaces.BlobStore
	Fleet      interfaces.FleetProvider // Used to resolve and terminate the worker's own unit
	Classifier interfaces.Classifier
}

// Runner worker bound to one fleet unit.
//
// Lifecycle: Starting -> Polling <-> Processing -> Draining -> Terminated.
// One job at a time; the minimum runtime is only checked between jobs.
type Runner struct {
	cfg     config.WorkerConfig
	deps    Deps
	metrics *metrics.WorkerMetrics
	backoff wait.Backoff

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.RWMutex
	phase     model.WorkerPhase
	unitID    string
	startedAt time.Time
	processed int
}

// NewRunner creates a worker, m may be nil
func NewRunner(cfg config.WorkerConfig, deps Deps, m *metrics.WorkerMetrics) *Runner {
	steps := cfg.PublishRetries
	if steps <= 0 {
		steps = 1
	}
	return &Runner{
		cfg:     cfg,
		deps:    deps,
		metrics: m,
		backoff: wait.Backoff{
			Steps:    steps,
			Duration: 200 * time.Millisecond,
			Factor:   2.0,
			Jitter:   0.1,
		},
		now:   time.Now,
		sleep: sleepCtx,
		phase: model.WorkerPhaseStarting,
	}
}

// SetClock overrides the time source and the pause used after receive errors
func (r *Runner) SetClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if now != nil {
		r.now = now
	}
	if sleep != nil {
		r.sleep = sleep
	}
}

// Phase returns the current lifecycle phase
func (r *Runner) Phase() model.WorkerPhase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phase
}

// UnitID returns the resolved identity, empty before Starting completes
func (r *Runner) UnitID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.unitID
}

// Processed returns the number of jobs acknowledged so far
func (r *Runner) Processed() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.processed
}

func (r *Runner) setPhase(ctx context.Context, phase model.WorkerPhase) {
	r.mu.Lock()
	prev := r.phase
	r.phase = phase
	r.mu.Unlock()
	r.metrics.SetPhase(string(phase))
	if prev != phase {
		logger.DebugCtx(ctx, "worker phase %s -> %s", prev, phase)
	}
}

func (r *Runner) clock() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.now()
}

// Run executes the full lifecycle. It returns after the unit has been asked
// to terminate itself, or early without self-termination when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.setPhase(ctx, model.WorkerPhaseStarting)

	unitID, err := r.resolveIdentity(ctx)
	if err != nil {
		return err
	}
	start := r.clock()
	r.mu.Lock()
	r.unitID = unitID
	r.startedAt = start
	r.mu.Unlock()
	logger.InfoCtx(ctx, "worker %s started, minimum runtime %s", unitID, r.cfg.MinRuntime)

	for r.clock().Sub(start) < r.cfg.MinRuntime {
		if ctx.Err() != nil {
			return r.interrupted(ctx)
		}

		r.setPhase(ctx, model.WorkerPhasePolling)
		msgs, err := r.deps.Requests.Receive(ctx, 1, r.cfg.PollWait)
		if err != nil {
			if ctx.Err() != nil {
				return r.interrupted(ctx)
			}
			logger.WarnCtx(ctx, "failed to receive job: %v", err)
			if err := r.pause(ctx, r.cfg.PollErrorDelay); err != nil {
				return r.interrupted(ctx)
			}
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		r.setPhase(ctx, model.WorkerPhaseProcessing)
		for _, msg := range msgs {
			// a started job always runs to completion
			if _, err := r.ProcessJob(context.WithoutCancel(ctx), msg); err != nil {
				logger.WarnCtx(ctx, "job %s not acknowledged: %v", msg.Body, err)
			}
		}
	}

	r.setPhase(ctx, model.WorkerPhaseDraining)
	logger.InfoCtx(ctx, "worker %s reached minimum runtime after %d jobs, draining", unitID, r.Processed())

	r.setPhase(ctx, model.WorkerPhaseTerminated)
	if err := r.deps.Fleet.Terminate(context.WithoutCancel(ctx), []string{unitID}); err != nil {
		return fmt.Errorf("failed to terminate own unit %s: %w", unitID, err)
	}
	logger.InfoCtx(ctx, "terminated own unit %s", unitID)
	return nil
}

func (r *Runner) resolveIdentity(ctx context.Context) (string, error) {
	if r.cfg.UnitID != "" {
		return r.cfg.UnitID, nil
	}
	id, err := r.deps.Fleet.SelfIdentity(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve own unit identity: %w", err)
	}
	if id == "" {
		return "", fmt.Errorf("failed to resolve own unit identity: empty id")
	}
	return id, nil
}

func (r *Runner) interrupted(ctx context.Context) error {
	r.setPhase(ctx, model.WorkerPhaseTerminated)
	logger.InfoCtx(ctx, "worker interrupted after %d jobs, exiting without self-termination", r.Processed())
	return nil
}

func (r *Runner) pause(ctx context.Context, d time.Duration) error {
	r.mu.RLock()
	sleep := r.sleep
	r.mu.RUnlock()
	return sleep(ctx, d)
}

// ProcessJob handles one leased job: fetch, classify, publish, acknowledge.
//
// A missing payload or a failed inference publishes the Unknown label. Any
// other fetch error leaves the lease to expire so the job is redelivered.
// Once publication has been attempted the lease is deleted regardless of
// whether both writes succeeded.
func (r *Runner) ProcessJob(ctx context.Context, msg *interfaces.Message) (constants.JobOutcome, error) {
	job := &model.Job{ID: msg.Body}
	ctx = logger.WithTrace(ctx, job.ID)
	logger.InfoCtx(ctx, "processing job")

	outcome := constants.JobOutcomeClassified
	label := model.UnknownLabel

	payload, err := r.deps.Input.Get(ctx, job.ID)
	switch {
	case errors.Is(err, interfaces.ErrBlobNotFound):
		logger.WarnCtx(ctx, "input payload missing")
		outcome = constants.JobOutcomeUnknown
	case err != nil:
		r.metrics.JobDone(constants.JobOutcomeSkipped.String())
		return constants.JobOutcomeSkipped, fmt.Errorf("failed to fetch payload: %w", err)
	default:
		inferStart := r.clock()
		got, err := r.deps.Classifier.Classify(ctx, job.ID, payload)
		r.metrics.ObserveInference(r.clock().Sub(inferStart))
		if err != nil {
			logger.WarnCtx(ctx, "inference failed, publishing %s: %v", model.UnknownLabel, err)
			outcome = constants.JobOutcomeUnknown
		} else {
			label = got
		}
	}

	result := &model.Result{JobID: job.ID, Label: label}
	if err := r.publish(ctx, result); err != nil {
		logger.ErrorCtx(ctx, "result publication incomplete: %v", err)
		outcome = constants.JobOutcomeFailed
	}

	if err := r.deps.Requests.Delete(ctx, msg.ReceiptToken); err != nil {
		r.metrics.JobDone(outcome.String())
		return outcome, fmt.Errorf("failed to delete job: %w", err)
	}

	r.mu.Lock()
	r.processed++
	r.mu.Unlock()
	r.metrics.JobDone(outcome.String())
	logger.InfoCtx(ctx, "job done: %s", result)
	return outcome, nil
}

// publish writes the result to the output store then the response queue.
// Each write is retried on its own with the same key and body.
func (r *Runner) publish(ctx context.Context, result *model.Result) error {
	body := result.String()
	always := func(error) bool { return true }

	var errs []error
	if err := retry.OnError(r.backoff, always, func() error {
		return r.deps.Output.Put(ctx, result.BaseID(), []byte(body))
	}); err != nil {
		errs = append(errs, fmt.Errorf("output store: %w", err))
	}
	if err := retry.OnError(r.backoff, always, func() error {
		return r.deps.Responses.Send(ctx, body)
	}); err != nil {
		errs = append(errs, fmt.Errorf("response queue: %w", err))
	}
	return errors.Join(errs...)
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
