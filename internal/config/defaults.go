package config

import "time"

// Central place for all application-wide timing constants and other defaults.
// Changing a value here immediately affects all components that import
// github.com/solar-hass/fronius-hass/internal/config.

const (
	// Heartbeat / polling cadence. The inverter is polled on every
	// PollEvery-th heartbeat, which yields a one minute poll interval.
	HeartbeatInterval = 30 * time.Second
	PollEvery         = 2

	// Operation time-outs (to avoid blocking the tick loop)
	InverterTimeout = 10 * time.Second // Fronius Solar API call
	MQTTTimeout     = 5 * time.Second  // MQTT publish

	// HTTP server for /metrics and /healthz
	DefaultMetricsAddr = ":9090"
)
