package main

import (
	"fmt"

	"elasticpool/internal/jobs"
	"elasticpool/pkg/autoscaler"
	"elasticpool/pkg/logger"
)

// initJobs registers the controller's background jobs
func (app *Application) initJobs() error {
	if app.role != RoleController {
		return nil
	}

	recorder := app.scalingRecorder()
	if recorder == nil {
		logger.InfoCtx(app.ctx, "Scaling event history disabled, skipping background task registration")
		return nil
	}

	manager := jobs.NewManager(app.ctx)

	// Replicas share the history table, only the lock holder prunes it
	pool := app.config.Fleet.NamePrefix
	retentionLock := app.leaderLock(fmt.Sprintf("elasticpool:cleanup:%s:event-retention-lock", pool))
	manager.Register(autoscaler.NewEventRetentionJob(recorder, retentionLock))

	app.jobsManager = manager
	return nil
}
