package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all configuration options for the fronius-hass application
type Config struct {
	// Inverter Configuration
	InverterHost     string `mapstructure:"inverter_host" json:"inverter_host"`           // Inverter host[:port]
	InverterDeviceID string `mapstructure:"inverter_device_id" json:"inverter_device_id"` // Fronius DeviceId query parameter

	// MQTT Configuration
	MQTTUrl         string `mapstructure:"mqtt_url" json:"mqtt_url"`                 // MQTT URL (supports both WebSocket and standard MQTT)
	DiscoveryPrefix string `mapstructure:"discovery_prefix" json:"discovery_prefix"` // Home Assistant discovery prefix

	// Device Configuration
	DeviceID string `mapstructure:"device_id" json:"device_id"` // Unique device identifier used in topics

	// Polling Configuration
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" json:"heartbeat_interval"`
	PollEvery         int           `mapstructure:"poll_every" json:"poll_every"` // Poll on every Nth heartbeat
	APITimeout        time.Duration `mapstructure:"api_timeout" json:"api_timeout"`

	// Application Configuration
	MetricsAddr string `mapstructure:"metrics_addr" json:"metrics_addr"` // Listen address for /metrics, empty disables
	Verbose     bool   `mapstructure:"verbose" json:"verbose"`           // Enable verbose logging
	LogFile     string `mapstructure:"log_file" json:"log_file"`         // Optional file mirroring all log output
}

// GetDefaultConfig returns a configuration with sensible defaults
func GetDefaultConfig() *Config {
	return &Config{
		InverterDeviceID:  "1",
		DiscoveryPrefix:   "homeassistant",
		DeviceID:          "fronius",
		HeartbeatInterval: HeartbeatInterval,
		PollEvery:         PollEvery,
		APITimeout:        InverterTimeout,
		MetricsAddr:       DefaultMetricsAddr,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.InverterHost == "" {
		return fmt.Errorf("inverter host is required")
	}
	if strings.Contains(c.InverterHost, "://") {
		return fmt.Errorf("inverter host must be host[:port] without a scheme")
	}
	if c.DeviceID == "" {
		return fmt.Errorf("device ID is required")
	}

	// MQTT validation - support both WebSocket and standard MQTT protocols
	if c.MQTTUrl != "" {
		if !strings.HasPrefix(c.MQTTUrl, "ws://") &&
			!strings.HasPrefix(c.MQTTUrl, "wss://") &&
			!strings.HasPrefix(c.MQTTUrl, "mqtt://") &&
			!strings.HasPrefix(c.MQTTUrl, "mqtts://") {
			return fmt.Errorf("MQTT URL must use supported protocol (ws://, wss://, mqtt://, or mqtts://)")
		}
	}

	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be > 0")
	}
	if c.PollEvery < 1 {
		return fmt.Errorf("poll_every must be >= 1")
	}
	if c.PollInterval() > time.Hour {
		return fmt.Errorf("poll interval %s exceeds one hour", c.PollInterval())
	}

	// Set defaults for invalid values
	if c.InverterDeviceID == "" {
		c.InverterDeviceID = "1"
	}
	if c.APITimeout <= 0 {
		c.APITimeout = InverterTimeout
	}

	return nil
}

// HasMQTT returns true if MQTT is configured
func (c *Config) HasMQTT() bool {
	return c.MQTTUrl != ""
}

// HasMetrics returns true if the metrics endpoint is enabled
func (c *Config) HasMetrics() bool {
	return c.MetricsAddr != ""
}

// PollInterval is the effective interval between two inverter polls.
func (c *Config) PollInterval() time.Duration {
	return c.HeartbeatInterval * time.Duration(c.PollEvery)
}

// InverterURL returns the realtime data endpoint of the configured inverter.
func (c *Config) InverterURL() string {
	return fmt.Sprintf("http://%s/solar_api/v1/GetInverterRealtimeData.cgi?Scope=Device&DeviceID=%s&DataCollection=CommonInverterData",
		c.InverterHost, c.InverterDeviceID)
}
