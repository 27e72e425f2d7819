package router

import (
	"net/http"

	"elasticpool/app/handler"
	"elasticpool/app/middleware"
	"elasticpool/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Router Router
type Router struct {
	ingressHandler    *handler.IngressHandler    // nil outside the ingress role
	autoscalerHandler *handler.AutoScalerHandler // nil outside the controller role
	gatherer          prometheus.Gatherer
	apiKey            string
}

// NewRouter creates a new Router, either handler may be nil
func NewRouter(ingressHandler *handler.IngressHandler, autoscalerHandler *handler.AutoScalerHandler, gatherer prometheus.Gatherer, apiKey string) *Router {
	return &Router{
		ingressHandler:    ingressHandler,
		autoscalerHandler: autoscalerHandler,
		gatherer:          gatherer,
		apiKey:            apiKey,
	}
}

// Setup sets up routes
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger())

	if r.ingressHandler != nil {
		// Submission keeps the bare root path clients already post to
		engine.POST("/", middleware.AuthMiddleware(r.apiKey), r.ingressHandler.Submit)

		v1 := engine.Group("/v1")
		{
			v1.GET("/results/:id", r.ingressHandler.Result)
		}
	}

	if r.autoscalerHandler != nil {
		autoscaler := engine.Group("/api/v1/autoscaler")
		autoscaler.Use(middleware.AuthMiddleware(r.apiKey))
		{
			autoscaler.GET("/status", r.autoscalerHandler.GetStatus)
			autoscaler.GET("/recent-events", r.autoscalerHandler.GetRecentEvents)
			autoscaler.POST("/trigger", r.autoscalerHandler.TriggerScale)
		}
	}

	if r.gatherer != nil {
		engine.GET("/metrics", gin.WrapH(metrics.Handler(r.gatherer)))
	}

	// Health check
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
