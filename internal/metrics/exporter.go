package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/solar-hass/fronius-hass/internal/meter"
)

// Exporter mirrors the published readings as Prometheus metrics. It
// implements meter.Sink and is safe to scrape while the tick loop publishes.
type Exporter struct {
	registry *prometheus.Registry

	power       prometheus.Gauge
	energy      prometheus.Gauge
	producing   prometheus.Gauge
	lastPoll    prometheus.Gauge
	polls       *prometheus.CounterVec
	modeChanges *prometheus.CounterVec

	lastPollUnix atomic.Int64
	now          func() time.Time
}

// NewExporter creates an exporter with its own registry. Every series
// carries a device label.
func NewExporter(deviceID string) *Exporter {
	labels := prometheus.Labels{"device": deviceID}
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		power: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "fronius_power_watts",
			Help:        "Instantaneous AC power fed in by the inverter",
			ConstLabels: labels,
		}),
		energy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "fronius_energy_watt_hours",
			Help:        "Estimated cumulative energy delivered by the inverter",
			ConstLabels: labels,
		}),
		producing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "fronius_producing",
			Help:        "Whether the inverter is producing (1=yes, 0=no)",
			ConstLabels: labels,
		}),
		lastPoll: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "fronius_last_poll_timestamp_seconds",
			Help:        "Unix time of the last completed poll",
			ConstLabels: labels,
		}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "fronius_polls_total",
			Help:        "Inverter polls by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		modeChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "fronius_mode_changes_total",
			Help:        "Transitions between producing and idle",
			ConstLabels: labels,
		}, []string{"producing"}),
		now: time.Now,
	}
	e.registry.MustRegister(e.power, e.energy, e.producing, e.lastPoll, e.polls, e.modeChanges)
	return e
}

// Publish records one reading.
func (e *Exporter) Publish(r meter.Reading) error {
	e.power.Set(r.PowerWatts)
	e.energy.Set(float64(r.EnergyWattHours))
	if r.Producing {
		e.producing.Set(1)
	} else {
		e.producing.Set(0)
	}
	if r.Outcome != "" {
		e.polls.WithLabelValues(string(r.Outcome)).Inc()
	}

	now := e.now()
	e.lastPoll.Set(float64(now.Unix()))
	e.lastPollUnix.Store(now.UnixNano())
	return nil
}

// ModeChange counts a producing/idle transition.
func (e *Exporter) ModeChange(producing bool) error {
	label := "false"
	if producing {
		label = "true"
		e.producing.Set(1)
	} else {
		e.producing.Set(0)
	}
	e.modeChanges.WithLabelValues(label).Inc()
	return nil
}

// Healthy reports whether a poll completed within maxAge. Before the first
// poll the exporter counts as healthy for maxAge after start.
func (e *Exporter) Healthy(started time.Time, maxAge time.Duration) bool {
	last := e.lastPollUnix.Load()
	ref := started
	if last != 0 {
		ref = time.Unix(0, last)
	}
	return e.now().Sub(ref) <= maxAge
}

// Handler serves the exporter's registry in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
