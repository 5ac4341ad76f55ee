package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/solar-hass/fronius-hass/internal/app"
	"github.com/solar-hass/fronius-hass/internal/config"
	"github.com/solar-hass/fronius-hass/internal/fronius"
	"github.com/solar-hass/fronius-hass/internal/meter"
	"github.com/solar-hass/fronius-hass/internal/metrics"
	"github.com/solar-hass/fronius-hass/internal/mqtt"
	"github.com/solar-hass/fronius-hass/internal/transmission"
)

// version is injected at build time via ldflags
var version = ""

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	logger, closeLog, err := setupLogger(cfg.Verbose, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging setup failed: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	logger.WithFields(logrus.Fields{
		"version":    getVersion(),
		"device_id":  cfg.DeviceID,
		"inverter":   cfg.InverterHost,
		"heartbeat":  cfg.HeartbeatInterval,
		"poll_every": cfg.PollEvery,
	}).Info("Starting fronius-hass")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Sinks ----------------------------------------------------------------------
	var sinks []meter.Sink

	if cfg.HasMQTT() {
		mqttClient, err := mqtt.NewClient(cfg.MQTTUrl, cfg.DeviceID, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create MQTT client")
		}
		defer mqttClient.Disconnect(250)
		sinks = append(sinks, transmission.NewMQTTTransmitter(mqttClient, cfg.DeviceID, cfg.DiscoveryPrefix, logger))
		logger.Info("MQTT transmitter ready")
	}

	var srv *http.Server
	if cfg.HasMetrics() {
		exporter := metrics.NewExporter(cfg.DeviceID)
		sinks = append(sinks, exporter)
		srv = metrics.NewServer(cfg.MetricsAddr, exporter, 3*cfg.PollInterval())
	}

	if len(sinks) == 0 {
		logger.Warn("No sinks configured; readings will only be logged")
	}

	// Session --------------------------------------------------------------------
	client := fronius.NewClient(cfg.InverterURL(), cfg.APITimeout, logger)
	session := meter.NewSession(client, meter.SessionOptions{
		PollEvery:    cfg.PollEvery,
		PollInterval: cfg.PollInterval(),
		FetchTimeout: cfg.APITimeout,
	}, logger, sinks...)

	app.Run(ctx, session, cfg.HeartbeatInterval, srv, logger)
	logger.Info("fronius-hass stopped")
}

// -----------------------------------------------------------------------------
// Helpers & Flags
// -----------------------------------------------------------------------------

func parseFlags(fs *flag.FlagSet, args []string) (*config.Config, error) {
	showVersion := fs.Bool("version", false, "Show version and exit")
	configPath := fs.String("config", "", "Path to a YAML/JSON/TOML config file (default $CONFIG_FILE)")
	inverterHost := fs.String("inverter-host", "", "Inverter host[:port]")
	inverterDeviceID := fs.String("inverter-device-id", "", "Fronius DeviceID query parameter")
	mqttURL := fs.String("mqtt-url", "", "MQTT URL")
	deviceID := fs.String("device-id", "", "Device identifier used in topics")
	discoveryPrefix := fs.String("discovery-prefix", "", "HA discovery prefix")
	metricsAddr := fs.String("metrics-addr", "", "Listen address for /metrics and /healthz")
	heartbeat := fs.Duration("heartbeat", 0, "Heartbeat interval (e.g. 30s)")
	pollEvery := fs.Int("poll-every", 0, "Poll the inverter on every Nth heartbeat")
	verbose := fs.Bool("verbose", false, "Verbose logging")
	logFile := fs.String("log-file", "", "Mirror log output into this file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *showVersion {
		fmt.Printf("fronius-hass %s\n", getVersion())
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	// Explicit flags win over file and environment
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "inverter-host":
			cfg.InverterHost = *inverterHost
		case "inverter-device-id":
			cfg.InverterDeviceID = *inverterDeviceID
		case "mqtt-url":
			cfg.MQTTUrl = *mqttURL
		case "device-id":
			cfg.DeviceID = *deviceID
		case "discovery-prefix":
			cfg.DiscoveryPrefix = *discoveryPrefix
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "heartbeat":
			cfg.HeartbeatInterval = *heartbeat
		case "poll-every":
			cfg.PollEvery = *pollEvery
		case "verbose":
			cfg.Verbose = *verbose
		case "log-file":
			cfg.LogFile = *logFile
		}
	})

	return cfg, nil
}

func getVersion() string {
	if version != "" {
		return version
	}
	return versioninfo.Short()
}

func setupLogger(verbose bool, logFile string) (*logrus.Logger, func(), error) {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}

	if logFile == "" {
		return l, func() {}, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l.SetOutput(io.MultiWriter(os.Stderr, f))
	return l, func() { _ = f.Close() }, nil
}
