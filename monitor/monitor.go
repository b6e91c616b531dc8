// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redacted-game/gameserver/logger"
	"github.com/redacted-game/gameserver/models"
)

type Metrics struct {
	GamesCreated   prometheus.Counter
	GamesStarted   prometheus.Counter
	GamesFinished  prometheus.Counter
	WaitingGames   prometheus.Gauge
	Joins          *prometheus.CounterVec
	Actions        *prometheus.CounterVec
	Analyses       prometheus.Counter
	RequestLatency *prometheus.HistogramVec
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GamesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_created_total",
			Help:      "Number of games created",
		}),
		GamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_started_total",
			Help:      "Number of games moved from Waiting to Act1",
		}),
		GamesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Number of games that reached Finished",
		}),
		WaitingGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "waiting_games",
			Help:      "Number of games waiting for players",
		}),
		Joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_total",
			Help:      "Join attempts by outcome",
		}, []string{"outcome"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Recorded player actions by type",
		}, []string{"type"}),
		Analyses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Trust analysis snapshots written",
		}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}, []string{"route", "code"}),
	}

	reg.MustRegister(
		m.GamesCreated,
		m.GamesStarted,
		m.GamesFinished,
		m.WaitingGames,
		m.Joins,
		m.Actions,
		m.Analyses,
		m.RequestLatency,
	)

	return m
}

type Monitor struct {
	metrics      *Metrics
	registry     *prometheus.Registry
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

// NewMonitor registers its metrics on a private registry so several
// monitors can coexist in one process.
func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	return &Monitor{
		metrics:   NewMetrics(namespace, reg),
		registry:  reg,
		startTime: time.Now(),
	}
}

func (m *Monitor) Metrics() *Metrics {
	return m.metrics
}

func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var publishOnce sync.Once

func (m *Monitor) StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/debug/vars", expvar.Handler())

	// 添加expvar指标
	publishOnce.Do(func() {
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			return time.Since(m.startTime).Seconds()
		}))
		expvar.Publish("requests", expvar.Func(func() interface{} {
			return m.RequestCount()
		}))
	})

	go func() {
		logger.Log.Infof("Metrics server listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Log.Errorf("Metrics server stopped: %v", err)
		}
	}()
}

func (m *Monitor) RequestCount() int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.requestCount
}

// --- services.Recorder ---

func (m *Monitor) GameCreated() {
	m.metrics.GamesCreated.Inc()
	m.metrics.WaitingGames.Inc()
}

func (m *Monitor) GameStarted() {
	m.metrics.GamesStarted.Inc()
	m.metrics.WaitingGames.Dec()
}

func (m *Monitor) GameFinished() {
	m.metrics.GamesFinished.Inc()
}

func (m *Monitor) GameDeleted(wasWaiting bool) {
	if wasWaiting {
		m.metrics.WaitingGames.Dec()
	}
}

func (m *Monitor) JoinAttempt(outcome string) {
	m.metrics.Joins.WithLabelValues(outcome).Inc()
}

func (m *Monitor) ActionRecorded(t models.ActionType) {
	m.metrics.Actions.WithLabelValues(string(t)).Inc()
}

func (m *Monitor) AnalysisRecorded() {
	m.metrics.Analyses.Inc()
}

// ObserveRequest records one HTTP request.
func (m *Monitor) ObserveRequest(route, code string, duration time.Duration) {
	m.metrics.RequestLatency.WithLabelValues(route, code).Observe(duration.Seconds())
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}
