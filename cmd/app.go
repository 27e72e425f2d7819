package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"elasticpool/app/handler"
	"elasticpool/internal/jobs"
	"elasticpool/internal/service"
	"elasticpool/internal/worker"
	"elasticpool/pkg/autoscaler"
	"elasticpool/pkg/config"
	"elasticpool/pkg/interfaces"
	"elasticpool/pkg/logger"
	mysqlstore "elasticpool/pkg/store/mysql"
	redisstore "elasticpool/pkg/store/redis"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Role selects which part of the pool a process runs
type Role string

const (
	RoleIngress    Role = "ingress"
	RoleController Role = "controller"
	RoleWorker     Role = "worker"
)

// Application manages the lifecycle of one role
type Application struct {
	role       Role
	configPath string

	// Infrastructure components
	config      *config.Config
	mysqlRepo   *mysqlstore.Repository // nil unless mysql.enabled
	redisClient *redisstore.RedisClient
	registry    *prometheus.Registry

	// Business providers
	requestQueue  interfaces.QueueProvider
	responseQueue interfaces.QueueProvider
	inputStore    interfaces.BlobStore
	outputStore   interfaces.BlobStore
	fleet         interfaces.FleetProvider

	// Service layer
	ingressService *service.IngressService

	// Handler layer
	ingressHandler    *handler.IngressHandler
	autoscalerHandler *handler.AutoScalerHandler

	// Auto-scaler
	autoscalerMgr *autoscaler.Manager

	// Worker
	workerRunner *worker.Runner

	// HTTP server
	httpServer *http.Server
	ginEngine  *gin.Engine

	// Background tasks
	jobsManager *jobs.Manager

	// Context management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan error

	// Background task cleanup functions
	cleanupFuncs []func()
}

// NewApplication creates a new Application instance
func NewApplication(role Role, configPath string) *Application {
	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		role:         role,
		configPath:   configPath,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan error, 2),
		cleanupFuncs: make([]func(), 0),
	}
}

// Initialize initializes all application components
func (app *Application) Initialize() error {
	var err error

	// Initialize components in order
	steps := []struct {
		name string
		fn   func() error
	}{
		{"Configuration", app.initConfig},
		{"Logging", app.initLogger},
		{"Metrics", app.initMetrics},
		{"Redis", app.initRedis},
		{"MySQL", app.initMySQL},
		{"Business Providers", app.initProviders},
		{"Service Layer", app.initServices},
		{"Auto-scaler", app.initAutoScaler},
		{"Worker", app.initWorker},
		{"Background Tasks", app.initJobs},
		{"Handler Layer", app.initHandlers},
		{"HTTP Server", app.initHTTPServer},
	}

	for _, step := range steps {
		logger.InfoCtx(app.ctx, "Initializing %s...", step.name)
		if err = step.fn(); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		logger.InfoCtx(app.ctx, "%s initialized successfully", step.name)
	}

	logger.InfoCtx(app.ctx, "Application initialization completed, role: %s", app.role)
	return nil
}

// Start starts all application components
func (app *Application) Start() error {
	logger.InfoCtx(app.ctx, "Starting application components...")

	// 1. Start background tasks
	if app.jobsManager != nil {
		logger.InfoCtx(app.ctx, "Starting background task manager")
		app.jobsManager.Start()
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.jobsManager.Wait()
		}()
	}

	// 2. Start AutoScaler
	if app.autoscalerMgr != nil {
		if err := app.autoscalerMgr.Start(app.ctx); err != nil {
			return fmt.Errorf("failed to start autoscaler: %w", err)
		}
		logger.InfoCtx(app.ctx, "Autoscaler started successfully")
	}

	// 3. Start worker; its return ends the process
	if app.workerRunner != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.done <- app.workerRunner.Run(app.ctx)
		}()
		logger.InfoCtx(app.ctx, "Worker started")
	}

	// 4. Start HTTP server
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		logger.InfoCtx(app.ctx, "HTTP server listening on: %s", app.httpServer.Addr)
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCtx(app.ctx, "HTTP server error: %v", err)
			select {
			case app.done <- fmt.Errorf("http server: %w", err):
			default:
			}
		}
	}()

	logger.InfoCtx(app.ctx, "All components started successfully")
	return nil
}

// Done delivers the result of a role that finishes on its own
func (app *Application) Done() <-chan error {
	return app.done
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown(timeout time.Duration) error {
	logger.InfoCtx(app.ctx, "Starting graceful shutdown (timeout: %v)...", timeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// 1. Cancel all background tasks
	logger.InfoCtx(app.ctx, "Canceling background tasks...")
	app.cancel()
	if app.jobsManager != nil {
		app.jobsManager.Stop()
	}

	// 2. Stop HTTP server (stop accepting new requests)
	if app.httpServer != nil {
		logger.InfoCtx(app.ctx, "Shutting down HTTP server...")
		if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
			logger.ErrorCtx(app.ctx, "HTTP server shutdown error: %v", err)
		}
	}

	// 3. Stop AutoScaler, waits for the in-flight tick
	if app.autoscalerMgr != nil {
		logger.InfoCtx(app.ctx, "Stopping autoscaler...")
		if err := app.autoscalerMgr.Stop(); err != nil {
			logger.WarnCtx(app.ctx, "autoscaler stop: %v", err)
		}
	}

	// 4. Wait for all background tasks to complete
	logger.InfoCtx(app.ctx, "Waiting for background tasks to complete...")
	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		logger.InfoCtx(app.ctx, "All background tasks completed")
	case <-shutdownCtx.Done():
		logger.WarnCtx(app.ctx, "Shutdown timeout, some tasks may not have completed")
		err = fmt.Errorf("shutdown timed out after %s", timeout)
	}

	if app.jobsManager != nil {
		for _, s := range app.jobsManager.Stats() {
			logger.InfoCtx(app.ctx, "background job %s: %d runs, %d failures", s.Name, s.Runs, s.Failures)
		}
	}

	// 5. Execute all cleanup functions (in reverse registration order)
	logger.InfoCtx(app.ctx, "Executing cleanup functions...")
	for i := len(app.cleanupFuncs) - 1; i >= 0; i-- {
		app.cleanupFuncs[i]()
	}

	logger.InfoCtx(app.ctx, "Graceful shutdown completed")
	return err
}

// registerCleanup registers cleanup function
func (app *Application) registerCleanup(cleanup func()) {
	app.cleanupFuncs = append(app.cleanupFuncs, cleanup)
}
