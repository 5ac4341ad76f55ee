package mqtt

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/solar-hass/fronius-hass/internal/config"
)

const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"

	qosAtLeastOnce = byte(1)
)

// Client wraps the paho client with topic helpers for one inverter.
type Client struct {
	client   mqtt.Client
	deviceID string
	logger   *logrus.Logger
}

// NewClient connects to the broker behind mqttURL. Supported schemes are
// ws, wss, mqtt and mqtts; credentials may be embedded in the URL.
func NewClient(mqttURL, deviceID string, logger *logrus.Logger) (*Client, error) {
	opts, err := clientOptions(mqttURL, deviceID, logger)
	if err != nil {
		return nil, err
	}
	watchConnection(opts, deviceID, logger)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	logger.WithFields(logrus.Fields{
		"broker":    cleanURL(mqttURL),
		"client_id": opts.ClientID,
	}).Info("MQTT client connected")

	return &Client{
		client:   client,
		deviceID: deviceID,
		logger:   logger,
	}, nil
}

// watchConnection logs broker connectivity. A lost connection makes the
// broker publish the retained offline will; the next reading sends online.
func watchConnection(opts *mqtt.ClientOptions, deviceID string, logger *logrus.Logger) {
	availability := AvailabilityTopic(deviceID)
	var connected atomic.Bool

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.WithError(err).WithField("availability_topic", availability).
			Warn("MQTT connection lost, inverter marked offline by broker")
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Debug("MQTT reconnecting")
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		if connected.Swap(true) {
			logger.Info("MQTT reconnected, availability resumes with the next reading")
		}
	})
}

func clientOptions(mqttURL, deviceID string, logger *logrus.Logger) (*mqtt.ClientOptions, error) {
	parsedURL, err := url.Parse(mqttURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT URL: %w", err)
	}
	broker, secure, err := brokerAddress(parsedURL)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"scheme": parsedURL.Scheme,
		"tls":    secure,
	}).Debug("Configuring MQTT connection")

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("fronius-hass-%s", deviceID)).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetKeepAlive(60*time.Second).
		SetPingTimeout(config.MQTTTimeout).
		SetConnectTimeout(config.MQTTTimeout).
		SetMaxReconnectInterval(30*time.Second).
		SetWill(AvailabilityTopic(deviceID), PayloadOffline, qosAtLeastOnce, true)

	if secure {
		// self-signed broker certificates are common on home networks
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	}
	if parsedURL.User != nil {
		password, _ := parsedURL.User.Password()
		opts.SetUsername(parsedURL.User.Username())
		opts.SetPassword(password)
	}
	return opts, nil
}

// brokerAddress maps the user facing scheme onto the one paho dials.
func brokerAddress(u *url.URL) (string, bool, error) {
	broker := *u
	broker.User = nil
	switch u.Scheme {
	case "ws", "wss":
	case "mqtt":
		broker.Scheme = "tcp"
	case "mqtts":
		broker.Scheme = "ssl"
	default:
		return "", false, fmt.Errorf("unsupported protocol scheme: %s (supported: ws, wss, mqtt, mqtts)", u.Scheme)
	}
	return broker.String(), u.Scheme == "wss" || u.Scheme == "mqtts", nil
}

// Publish sends payload with QoS 1 and waits up to config.MQTTTimeout for
// the broker to acknowledge it.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	token := c.client.Publish(topic, qosAtLeastOnce, retained, payload)
	if !token.WaitTimeout(config.MQTTTimeout) {
		return fmt.Errorf("publish to %s timed out after %s", topic, config.MQTTTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	c.logger.WithFields(logrus.Fields{
		"topic":    topic,
		"bytes":    len(payload),
		"retained": retained,
	}).Debug("Published MQTT message")
	return nil
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Disconnect waits up to quiesce milliseconds for in-flight work.
func (c *Client) Disconnect(quiesce uint) {
	c.client.Disconnect(quiesce)
	c.logger.Debug("MQTT client disconnected")
}

// cleanURL masks credentials so the broker URL can be logged.
func cleanURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	if parsed.User != nil {
		parsed.User = url.UserPassword("***", "***")
	}

	return parsed.String()
}

// BaseTopic returns the base topic for an inverter
func BaseTopic(deviceID string) string {
	return BuildCleanTopic("fronius_inverter", deviceID)
}

// StateTopic returns the JSON state topic for an inverter
func StateTopic(deviceID string) string {
	return BaseTopic(deviceID) + "/state"
}

// AvailabilityTopic returns the availability topic for an inverter
func AvailabilityTopic(deviceID string) string {
	return BaseTopic(deviceID) + "/availability"
}

// DiscoveryTopic returns the Home Assistant discovery topic of one entity
func DiscoveryTopic(prefix, entityType, deviceID, entityID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", prefix, entityType, BuildCleanTopic("fronius_inverter_"+deviceID), entityID)
}

// BuildCleanTopic lowercases parts and replaces characters that are not
// allowed or have a meaning inside an MQTT topic level.
func BuildCleanTopic(parts ...string) string {
	cleanParts := make([]string, 0, len(parts))
	for _, part := range parts {
		clean := strings.ReplaceAll(part, " ", "_")
		clean = strings.ReplaceAll(clean, "/", "_")
		clean = strings.ReplaceAll(clean, "+", "plus")
		clean = strings.ReplaceAll(clean, "#", "hash")
		clean = strings.ToLower(clean)
		cleanParts = append(cleanParts, clean)
	}
	return strings.Join(cleanParts, "/")
}
