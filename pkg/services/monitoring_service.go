package services

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Prediction outcomes recorded by RecordPrediction.
const (
	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

const maxLogEntries = 10000

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"statusCode"`
	ResponseTime time.Duration `json:"responseTime"`
}

// MonitoringService はAPIのモニタリング機能を提供します。
// Request logs feed the dashboard; counters and histograms are exported
// on a private Prometheus registry.
type MonitoringService struct {
	mu   sync.RWMutex
	logs []LogEntry

	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	predictions      *prometheus.CounterVec
	predictedPrice   prometheus.Histogram
	trainingRuns     *prometheus.CounterVec
	trainingDuration prometheus.Histogram
	modelLoaded      prometheus.Gauge
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService() *MonitoringService {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &MonitoringService{
		logs:     make([]LogEntry, 0),
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "houseprice_http_requests_total",
			Help: "Total HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "houseprice_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "houseprice_predictions_total",
			Help: "Price predictions by outcome",
		}, []string{"outcome"}),
		predictedPrice: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "houseprice_predicted_price",
			Help:    "Distribution of successful price predictions",
			Buckets: prometheus.ExponentialBuckets(500000, 2, 8),
		}),
		trainingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "houseprice_training_runs_total",
			Help: "Model training runs by outcome",
		}, []string{"outcome"}),
		trainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "houseprice_training_duration_seconds",
			Help:    "Duration of model training runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
		modelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "houseprice_model_loaded",
			Help: "1 when a price model is loaded, 0 otherwise",
		}),
	}
}

// Registry exposes the Prometheus registry backing this service.
func (s *MonitoringService) Registry() *prometheus.Registry {
	return s.registry
}

// MetricsHandler serves the registry in the Prometheus text format.
func (s *MonitoringService) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// LogRequest はリクエストを記録します。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxLogEntries {
		s.logs = append([]LogEntry(nil), s.logs[len(s.logs)-maxLogEntries:]...)
	}
}

// RecordPrediction counts one prediction; price is observed only on success.
func (s *MonitoringService) RecordPrediction(outcome string, price float64) {
	s.predictions.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		s.predictedPrice.Observe(price)
	}
}

// RecordTraining counts one training run.
func (s *MonitoringService) RecordTraining(ok bool, d time.Duration) {
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeError
	}
	s.trainingRuns.WithLabelValues(outcome).Inc()
	s.trainingDuration.Observe(d.Seconds())
}

// SetModelLoaded updates the model gauge.
func (s *MonitoringService) SetModelLoaded(loaded bool) {
	if loaded {
		s.modelLoaded.Set(1)
	} else {
		s.modelLoaded.Set(0)
	}
}

// LoggingMiddleware はリクエスト情報を記録するGinミドルウェアです。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		s.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		s.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		// 管理・監視系のパスはダッシュボードから除外
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/v1/admin") || strings.HasPrefix(path, "/api/v1/monitoring") || path == "/metrics" {
			return
		}
		s.LogRequest(LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: elapsed,
		})
	}
}

// PredictionStats summarises prediction traffic since process start.
type PredictionStats struct {
	Total       int            `json:"total_predictions"`
	ByOutcome   map[string]int `json:"by_outcome"`
	AvgPrice    float64        `json:"avg_price"`
	TrainingRun map[string]int `json:"training_runs"`
}

// DashboardData はダッシュボードに表示するための集計済みデータです。
type DashboardData struct {
	RequestsOverTime []map[string]interface{} `json:"requestsOverTime"`
	Endpoints        map[string]int           `json:"endpoints"`
	StatusCodes      []map[string]interface{} `json:"statusCodes"`
	AvgResponseTimes []map[string]interface{} `json:"avgResponseTimes"`
	RecentErrors     []LogEntry               `json:"recentErrors"`
	Predictions      PredictionStats          `json:"predictions"`
}

// PredictionStats reads the prediction counters back from the registry.
func (s *MonitoringService) PredictionStats() PredictionStats {
	stats := PredictionStats{
		ByOutcome:   make(map[string]int),
		TrainingRun: make(map[string]int),
	}
	for _, outcome := range []string{OutcomeSuccess, OutcomeInvalid, OutcomeUnavailable, OutcomeError} {
		n := int(counterValue(s.predictions.WithLabelValues(outcome)))
		stats.ByOutcome[outcome] = n
		stats.Total += n
	}
	for _, outcome := range []string{OutcomeSuccess, OutcomeError} {
		stats.TrainingRun[outcome] = int(counterValue(s.trainingRuns.WithLabelValues(outcome)))
	}

	var m dto.Metric
	if err := s.predictedPrice.Write(&m); err == nil {
		if h := m.GetHistogram(); h.GetSampleCount() > 0 {
			stats.AvgPrice = h.GetSampleSum() / float64(h.GetSampleCount())
		}
	}
	return stats
}

func counterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// GetDashboardData は指定された期間のログを集計してダッシュボード用データを返します。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	if periodHours <= 0 {
		periodHours = 24
	}

	jst, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		jst = time.UTC
	}
	now := time.Now().In(jst)
	since := now.Add(-time.Duration(periodHours) * time.Hour)

	s.mu.RLock()
	recent := make([]LogEntry, 0, len(s.logs))
	for _, e := range s.logs {
		if e.Timestamp.After(since) {
			recent = append(recent, e)
		}
	}
	s.mu.RUnlock()

	// 1時間ごとのバケット（古い順）
	buckets := make([]map[string]interface{}, periodHours)
	bucketIndex := make(map[int64]int, periodHours)
	for i := 0; i < periodHours; i++ {
		t := now.Add(-time.Duration(periodHours-1-i) * time.Hour).Truncate(time.Hour)
		bucketIndex[t.Unix()] = i
		buckets[i] = map[string]interface{}{"time": t.Format("15:00"), "requests": 0}
	}

	endpoints := make(map[string]int)
	statusClasses := map[string]int{"2xx Success": 0, "4xx Client Error": 0, "5xx Server Error": 0}
	latencySum := make(map[string]time.Duration)
	var recentErrors []LogEntry

	for _, e := range recent {
		if i, ok := bucketIndex[e.Timestamp.In(jst).Truncate(time.Hour).Unix()]; ok {
			buckets[i]["requests"] = buckets[i]["requests"].(int) + 1
		}
		endpoints[e.Path]++
		latencySum[e.Path] += e.ResponseTime
		switch {
		case e.StatusCode >= 500:
			statusClasses["5xx Server Error"]++
		case e.StatusCode >= 400:
			statusClasses["4xx Client Error"]++
		case e.StatusCode >= 200 && e.StatusCode < 300:
			statusClasses["2xx Success"]++
		}
	}
	for i := len(recent) - 1; i >= 0 && len(recentErrors) < 10; i-- {
		if recent[i].StatusCode >= 500 {
			recentErrors = append(recentErrors, recent[i])
		}
	}
	if recentErrors == nil {
		recentErrors = []LogEntry{}
	}

	statusCodes := make([]map[string]interface{}, 0, len(statusClasses))
	for _, name := range []string{"2xx Success", "4xx Client Error", "5xx Server Error"} {
		statusCodes = append(statusCodes, map[string]interface{}{"name": name, "value": statusClasses[name]})
	}

	paths := make([]string, 0, len(latencySum))
	for p := range latencySum {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	avgResponseTimes := make([]map[string]interface{}, 0, len(paths))
	for _, p := range paths {
		avg := latencySum[p].Milliseconds() / int64(endpoints[p])
		avgResponseTimes = append(avgResponseTimes, map[string]interface{}{"endpoint": p, "responseTime": avg})
	}

	return DashboardData{
		RequestsOverTime: buckets,
		Endpoints:        endpoints,
		StatusCodes:      statusCodes,
		AvgResponseTimes: avgResponseTimes,
		RecentErrors:     recentErrors,
		Predictions:      s.PredictionStats(),
	}
}
