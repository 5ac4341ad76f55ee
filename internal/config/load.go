package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// FRONIUS_HASS_INVERTER_HOST.
const EnvPrefix = "fronius_hass"

// Load builds a Config from defaults, an optional YAML/JSON/TOML file and the
// environment, in increasing order of precedence. An empty path falls back to
// the CONFIG_FILE environment variable; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := GetDefaultConfig()
	v.SetDefault("inverter_host", def.InverterHost)
	v.SetDefault("inverter_device_id", def.InverterDeviceID)
	v.SetDefault("mqtt_url", def.MQTTUrl)
	v.SetDefault("discovery_prefix", def.DiscoveryPrefix)
	v.SetDefault("device_id", def.DeviceID)
	v.SetDefault("heartbeat_interval", def.HeartbeatInterval)
	v.SetDefault("poll_every", def.PollEvery)
	v.SetDefault("api_timeout", def.APITimeout)
	v.SetDefault("metrics_addr", def.MetricsAddr)
	v.SetDefault("verbose", def.Verbose)
	v.SetDefault("log_file", def.LogFile)
}
