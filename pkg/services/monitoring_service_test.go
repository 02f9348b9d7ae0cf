package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPrediction(t *testing.T) {
	s := NewMonitoringService()
	s.RecordPrediction(OutcomeSuccess, 1000000)
	s.RecordPrediction(OutcomeSuccess, 3000000)
	s.RecordPrediction(OutcomeInvalid, 0)
	s.RecordPrediction(OutcomeUnavailable, 0)

	stats := s.PredictionStats()
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.ByOutcome[OutcomeSuccess])
	assert.Equal(t, 1, stats.ByOutcome[OutcomeInvalid])
	assert.InDelta(t, 2000000, stats.AvgPrice, 1e-6)
}

func TestLoggingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewMonitoringService()

	r := gin.New()
	r.Use(s.LoggingMiddleware())
	r.GET("/api/v1/price/schema", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/admin/health-status", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/api/v1/price/schema", "/api/v1/admin/health-status", "/boom"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	data := s.GetDashboardData(1)
	assert.Equal(t, map[string]int{"/api/v1/price/schema": 1, "/boom": 1}, data.Endpoints)
	require.Len(t, data.RecentErrors, 1)
	assert.Equal(t, "/boom", data.RecentErrors[0].Path)
	require.Len(t, data.RequestsOverTime, 1)
	assert.Equal(t, 2, data.RequestsOverTime[0]["requests"])
}

func TestLogRequestIsBounded(t *testing.T) {
	s := NewMonitoringService()
	for i := 0; i < maxLogEntries+5; i++ {
		s.LogRequest(LogEntry{Timestamp: time.Now(), Path: "/x", StatusCode: 200})
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Len(t, s.logs, maxLogEntries)
}

func TestMetricsHandler(t *testing.T) {
	s := NewMonitoringService()
	s.RecordPrediction(OutcomeSuccess, 5000000)
	s.RecordTraining(true, 150*time.Millisecond)
	s.SetModelLoaded(true)

	w := httptest.NewRecorder()
	s.MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `houseprice_predictions_total{outcome="success"} 1`)
	assert.Contains(t, body, "houseprice_training_runs_total")
	assert.Contains(t, body, "houseprice_model_loaded 1")
}
