package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of all camera pipelines in a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cycles           *prometheus.CounterVec
	missingFrames    *prometheus.CounterVec
	level            *prometheus.GaugeVec
	transitions      *prometheus.CounterVec
	outputs          *prometheus.CounterVec
	outputErrors     *prometheus.CounterVec
	alarms           *prometheus.CounterVec
	detectionLatency *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "securitycam_cycles_total",
			Help: "Pipeline cycles by kind (detection or skip)",
		}, []string{"camera", "kind"}),
		missingFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "securitycam_missing_frames_total",
			Help: "Cycles in which the camera produced no frame",
		}, []string{"camera"}),
		level: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "securitycam_event_level",
			Help: "Current event level (1 idle to 4 alarming)",
		}, []string{"camera"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "securitycam_level_transitions_total",
			Help: "Event level changes by direction",
		}, []string{"camera", "direction"}),
		outputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "securitycam_outputs_total",
			Help: "Frames persisted by output kind",
		}, []string{"camera", "output"}),
		outputErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "securitycam_output_errors_total",
			Help: "Failed snapshot or recording writes",
		}, []string{"camera"}),
		alarms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "securitycam_alarms_total",
			Help: "Alarm deliveries by result",
		}, []string{"camera", "result"}),
		detectionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "securitycam_detection_seconds",
			Help:    "Time spent in the object detector per detection cycle",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"camera"}),
	}

	m.registry.MustRegister(
		m.cycles,
		m.missingFrames,
		m.level,
		m.transitions,
		m.outputs,
		m.outputErrors,
		m.alarms,
		m.detectionLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the private registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns HTTP handler for Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Camera returns the collectors of one camera. Calling it on a nil *Metrics yields a
// nil *Camera, whose methods do nothing.
func (m *Metrics) Camera(id string) *Camera {
	if m == nil {
		return nil
	}
	return &Camera{id: id, m: m}
}

// Camera records the metrics of a single pipeline.
type Camera struct {
	id string
	m  *Metrics
}

func (c *Camera) Cycle(detection bool) {
	if c == nil {
		return
	}
	kind := "skip"
	if detection {
		kind = "detection"
	}
	c.m.cycles.WithLabelValues(c.id, kind).Inc()
}

func (c *Camera) MissingFrame() {
	if c == nil {
		return
	}
	c.m.missingFrames.WithLabelValues(c.id).Inc()
}

func (c *Camera) Level(level int) {
	if c == nil {
		return
	}
	c.m.level.WithLabelValues(c.id).Set(float64(level))
}

func (c *Camera) Transition(direction string) {
	if c == nil {
		return
	}
	c.m.transitions.WithLabelValues(c.id, direction).Inc()
}

func (c *Camera) Output(output string) {
	if c == nil {
		return
	}
	c.m.outputs.WithLabelValues(c.id, output).Inc()
}

func (c *Camera) OutputError() {
	if c == nil {
		return
	}
	c.m.outputErrors.WithLabelValues(c.id).Inc()
}

func (c *Camera) Alarm(err error) {
	if c == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	c.m.alarms.WithLabelValues(c.id, result).Inc()
}

func (c *Camera) Detection(d time.Duration) {
	if c == nil {
		return
	}
	c.m.detectionLatency.WithLabelValues(c.id).Observe(d.Seconds())
}
