package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"voltonic-power/internal/engine"
	"voltonic-power/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics engine and HTTP instrumentation
type Metrics struct {
	gatherer prometheus.Gatherer

	ticksTotal        *prometheus.CounterVec
	tickDuration      prometheus.Histogram
	roomsSimulated    prometheus.Counter
	roomsSkipped      prometheus.Counter
	actionsTotal      *prometheus.CounterVec
	energySavedKWh    prometheus.Counter
	spikesTotal       prometheus.Counter
	solarAvailability prometheus.Gauge
	gridAvailable     prometheus.Gauge
	buildingLoadKW    *prometheus.GaugeVec

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

var _ engine.Listener = (*Metrics)(nil)

// NewMetrics registers every collector on reg
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		ticksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "power_ticks_total",
			Help: "Decision ticks by result.",
		}, []string{"result"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "power_tick_duration_seconds",
			Help:    "Wall time of one decision tick including persistence.",
			Buckets: prometheus.DefBuckets,
		}),
		roomsSimulated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "power_rooms_simulated_total",
			Help: "Room readings produced.",
		}),
		roomsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "power_rooms_skipped_total",
			Help: "Rooms skipped because reference data was missing.",
		}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "power_autonomous_actions_total",
			Help: "Committed autonomous actions by kind.",
		}, []string{"action_type"}),
		energySavedKWh: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "power_energy_saved_kwh_total",
			Help: "Energy saved by power cutoffs.",
		}),
		spikesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "power_demand_spikes_total",
			Help: "Demand spikes detected.",
		}),
		solarAvailability: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "power_solar_availability_ratio",
			Help: "Solar availability factor of the last tick.",
		}),
		gridAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "power_grid_available",
			Help: "1 when the grid was up during the last tick.",
		}),
		buildingLoadKW: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "power_building_load_kw",
			Help: "Aggregate building load of the last tick.",
		}, []string{"building_id"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.ticksTotal,
		m.tickDuration,
		m.roomsSimulated,
		m.roomsSkipped,
		m.actionsTotal,
		m.energySavedKWh,
		m.spikesTotal,
		m.solarAvailability,
		m.gridAvailable,
		m.buildingLoadKW,
		m.httpRequestsTotal,
		m.httpDuration,
	)

	return m
}

// OnTick records a committed tick
func (m *Metrics) OnTick(_ context.Context, batch *engine.TickBatch, summary *engine.TickSummary) {
	m.roomsSimulated.Add(float64(summary.RoomsSimulated))
	m.roomsSkipped.Add(float64(summary.RoomsSkipped))
	m.spikesTotal.Add(float64(summary.Spikes))
	m.solarAvailability.Set(summary.SolarAvailability)
	if summary.GridAvailable {
		m.gridAvailable.Set(1)
	} else {
		m.gridAvailable.Set(0)
	}
	for id, load := range summary.BuildingLoads {
		m.buildingLoadKW.WithLabelValues(strconv.FormatInt(id, 10)).Set(load)
	}

	for i := range batch.Actions {
		a := &batch.Actions[i]
		m.actionsTotal.WithLabelValues(string(a.ActionType)).Inc()
		if a.ActionType == models.ActionPowerCutoff {
			m.energySavedKWh.Add(a.EnergySavedKWh)
		}
	}
}

// ObserveTick counts a tick by result and its duration
func (m *Metrics) ObserveTick(duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ticksTotal.WithLabelValues(result).Inc()
	m.tickDuration.Observe(duration.Seconds())
}

// Handler exposes the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and their latency under route
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
