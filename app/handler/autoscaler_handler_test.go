package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"elasticpool/pkg/autoscaler"
	"elasticpool/pkg/config"
	fleetmemory "elasticpool/pkg/fleet/memory"
	"elasticpool/pkg/interfaces"
	queuememory "elasticpool/pkg/queue/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventHistory in-memory scaling history, newest last
type eventHistory struct {
	events []*interfaces.ScalingEvent
}

func (h *eventHistory) Record(ctx context.Context, event *interfaces.ScalingEvent) error {
	h.events = append(h.events, event)
	return nil
}

func (h *eventHistory) DeleteOldEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

func (h *eventHistory) ListRecent(ctx context.Context, limit int) ([]*interfaces.ScalingEvent, error) {
	out := make([]*interfaces.ScalingEvent, 0, limit)
	for i := len(h.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.events[i])
	}
	return out, nil
}

func newAutoScalerEngine() *gin.Engine {
	return newAutoScalerEngineWith(nil)
}

func newAutoScalerEngineWith(recorder interfaces.ScalingEventRecorder) *gin.Engine {
	cfg := &autoscaler.Config{
		AutoScalerConfig: config.AutoScalerConfig{
			MinInstances:        2,
			MaxInstances:        4,
			MessagesPerInstance: 5,
			LaunchRateLimit:     5,
			SampleBatchSize:     10,
		},
		NamePrefix: "worker",
	}
	m := autoscaler.NewManager(cfg, queuememory.NewMemoryQueueProvider("req", time.Minute), fleetmemory.NewProvider(), recorder, nil, nil)
	h := NewAutoScalerHandler(m)

	engine := gin.New()
	engine.GET("/status", h.GetStatus)
	engine.GET("/recent-events", h.GetRecentEvents)
	engine.POST("/trigger", h.TriggerScale)
	return engine
}

func TestAutoScalerHandler_TriggerThenStatus(t *testing.T) {
	engine := newAutoScalerEngine()

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var decision autoscaler.ScaleDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, 2, decision.DesiredUnits)
	assert.Equal(t, 2, decision.ToLaunch)

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status autoscaler.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, int64(1), status.Ticks)
	assert.Equal(t, 2, status.NextUnitIndex)
}

func TestAutoScalerHandler_RecentEventsEmpty(t *testing.T) {
	engine := newAutoScalerEngine()

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/recent-events?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAutoScalerHandler_RecentEventsHonorsLargeLimit(t *testing.T) {
	history := &eventHistory{}
	for i := 0; i < 30; i++ {
		history.events = append(history.events, &interfaces.ScalingEvent{
			EventID: fmt.Sprintf("evt-%d", i),
			Action:  interfaces.ScalingActionLaunch,
		})
	}
	engine := newAutoScalerEngineWith(history)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/recent-events?limit=25", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var events []*interfaces.ScalingEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 25)
	assert.Equal(t, "evt-29", events[0].EventID)

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/recent-events", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 10)
}
