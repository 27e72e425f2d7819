package main

import (
	"fmt"
	"net/http"

	"elasticpool/app/handler"
	"elasticpool/app/router"
	"elasticpool/internal/service"
	"elasticpool/internal/worker"
	"elasticpool/pkg/autoscaler"
	"elasticpool/pkg/blobstore"
	"elasticpool/pkg/classifier"
	"elasticpool/pkg/config"
	"elasticpool/pkg/fleet"
	"elasticpool/pkg/interfaces"
	"elasticpool/pkg/logger"
	"elasticpool/pkg/metrics"
	"elasticpool/pkg/queue"
	mysqlstore "elasticpool/pkg/store/mysql"
	redisstore "elasticpool/pkg/store/redis"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// initConfig initializes configuration
func (app *Application) initConfig() error {
	if err := config.Init(app.configPath); err != nil {
		return err
	}
	app.config = config.GlobalConfig
	return nil
}

// initLogger initializes logging
func (app *Application) initLogger() error {
	if err := logger.Init(string(app.role)); err != nil {
		return err
	}
	app.registerCleanup(func() {
		logger.InfoCtx(app.ctx, "Logging system has been closed")
		logger.Sync()
	})
	return nil
}

// initMetrics creates the role's prometheus registry
func (app *Application) initMetrics() error {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return nil
}

// usesRedis reports whether any configured backend needs the shared redis client
func (app *Application) usesRedis() bool {
	cfg := app.config
	if cfg.Queue.Provider == "redis" || cfg.Blob.Provider == "redis" {
		return true
	}
	return app.role == RoleController && cfg.AutoScaler.LeaderLock
}

// initRedis initializes Redis
func (app *Application) initRedis() error {
	if !app.config.Redis.Enabled() {
		if app.usesRedis() {
			return fmt.Errorf("redis.addr is required by the configured providers")
		}
		logger.InfoCtx(app.ctx, "Redis not configured, skipping")
		return nil
	}

	client, err := redisstore.NewRedisClient(app.ctx, app.config.Redis)
	if err != nil {
		return err
	}
	app.redisClient = client
	app.registerCleanup(func() {
		if err := app.redisClient.Close(); err != nil {
			logger.ErrorCtx(app.ctx, "Failed to close Redis: %v", err)
		}
	})
	return nil
}

// initMySQL initializes the scaling event history, controller only
func (app *Application) initMySQL() error {
	if app.role != RoleController || !app.config.MySQL.Enabled {
		return nil
	}

	repo, err := mysqlstore.NewRepository(app.ctx, app.config.MySQL.DSN(), app.config.Fleet.NamePrefix)
	if err != nil {
		return fmt.Errorf("failed to connect to mysql: %w", err)
	}
	app.mysqlRepo = repo
	app.registerCleanup(func() {
		if err := app.mysqlRepo.Close(); err != nil {
			logger.ErrorCtx(app.ctx, "Failed to close MySQL: %v", err)
		}
	})
	return nil
}

// initProviders creates the queues, blob stores and fleet each role needs
func (app *Application) initProviders() error {
	cfg := app.config
	var err error

	// Every role touches the request queue
	app.requestQueue, err = queue.CreateQueueProvider(app.ctx, cfg, cfg.Queue.RequestQueue, app.redisClient)
	if err != nil {
		return fmt.Errorf("failed to create request queue: %w", err)
	}
	app.registerCleanup(func() { app.requestQueue.Close() })
	logger.InfoCtx(app.ctx, "Request queue: %s (%s)", cfg.Queue.RequestQueue, cfg.Queue.Provider)

	if app.role == RoleWorker {
		app.responseQueue, err = queue.CreateQueueProvider(app.ctx, cfg, cfg.Queue.ResponseQueue, app.redisClient)
		if err != nil {
			return fmt.Errorf("failed to create response queue: %w", err)
		}
		app.registerCleanup(func() { app.responseQueue.Close() })
	}

	if app.role == RoleIngress || app.role == RoleWorker {
		app.inputStore, err = blobstore.CreateBlobStore(app.ctx, cfg, cfg.Blob.InputBucket, app.redisClient)
		if err != nil {
			return fmt.Errorf("failed to create input store: %w", err)
		}
		app.outputStore, err = blobstore.CreateBlobStore(app.ctx, cfg, cfg.Blob.OutputBucket, app.redisClient)
		if err != nil {
			return fmt.Errorf("failed to create output store: %w", err)
		}
		logger.InfoCtx(app.ctx, "Blob stores: %s, %s (%s)", cfg.Blob.InputBucket, cfg.Blob.OutputBucket, cfg.Blob.Provider)
	}

	if app.role == RoleController || app.role == RoleWorker {
		app.fleet, err = fleet.CreateFleetProvider(app.ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to create fleet provider: %w", err)
		}
		logger.InfoCtx(app.ctx, "Fleet provider: %s, unit prefix: %s", cfg.Fleet.Provider, cfg.Fleet.NamePrefix)
	}
	return nil
}

// initServices initializes service layer
func (app *Application) initServices() error {
	if app.role != RoleIngress {
		return nil
	}
	app.ingressService = service.NewIngressService(
		app.inputStore,
		app.outputStore,
		app.requestQueue,
		metrics.NewIngressMetrics(app.registry),
	)
	return nil
}

// scalingRecorder returns the event history, nil when mysql is disabled
func (app *Application) scalingRecorder() interfaces.ScalingEventRecorder {
	if app.mysqlRepo == nil {
		return nil
	}
	return app.mysqlRepo.ScalingEvent
}

// leaderLock returns a redis lock for key when leader election is enabled
func (app *Application) leaderLock(key string) autoscaler.DistributedLock {
	if !app.config.AutoScaler.LeaderLock || app.redisClient == nil {
		return nil
	}
	return autoscaler.NewRedisDistributedLock(app.redisClient.GetClient(), key)
}

// initAutoScaler initializes the fleet controller
func (app *Application) initAutoScaler() error {
	if app.role != RoleController {
		return nil
	}

	asConfig := autoscaler.NewConfig(app.config)
	lock := app.leaderLock(autoscaler.LockKey(asConfig.Pool))
	if lock != nil {
		logger.InfoCtx(app.ctx, "Leader lock enabled: %s", autoscaler.LockKey(asConfig.Pool))
	}

	app.autoscalerMgr = autoscaler.NewManager(
		asConfig,
		app.requestQueue,
		app.fleet,
		app.scalingRecorder(),
		lock,
		metrics.NewControllerMetrics(app.registry),
	)
	return nil
}

// initWorker initializes the worker state machine
func (app *Application) initWorker() error {
	if app.role != RoleWorker {
		return nil
	}

	app.workerRunner = worker.NewRunner(app.config.Worker, worker.Deps{
		Requests:   app.requestQueue,
		Responses:  app.responseQueue,
		Input:      app.inputStore,
		Output:     app.outputStore,
		Fleet:      app.fleet,
		Classifier: classifier.NewExecClassifier(app.config.Classifier),
	}, metrics.NewWorkerMetrics(app.registry))
	logger.InfoCtx(app.ctx, "Classifier: %s %s (timeout %s)",
		app.config.Classifier.Interpreter, app.config.Classifier.Script, app.config.Classifier.Timeout)
	return nil
}

// initHandlers initializes handler layer
func (app *Application) initHandlers() error {
	if app.ingressService != nil {
		app.ingressHandler = handler.NewIngressHandler(app.ingressService)
	}
	if app.autoscalerMgr != nil {
		app.autoscalerHandler = handler.NewAutoScalerHandler(app.autoscalerMgr)
	}
	return nil
}

// initHTTPServer initializes HTTP server
func (app *Application) initHTTPServer() error {
	// Initialize router
	r := router.NewRouter(app.ingressHandler, app.autoscalerHandler, app.registry, app.config.Server.APIKey)

	// Set Gin mode
	gin.SetMode(app.config.Server.Mode)

	// Create Gin engine
	app.ginEngine = gin.New()

	// Setup routes
	r.Setup(app.ginEngine)

	// Create HTTP server
	app.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: app.ginEngine,
	}
	return nil
}
