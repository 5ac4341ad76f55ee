package transmission

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/carlmjohnson/versioninfo"
	"github.com/sirupsen/logrus"
	"github.com/solar-hass/fronius-hass/internal/meter"
	"github.com/solar-hass/fronius-hass/internal/mqtt"
)

// Publisher is the subset of the MQTT client the transmitter needs.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
	IsConnected() bool
}

// MQTTTransmitter publishes readings to Home Assistant via MQTT discovery.
type MQTTTransmitter struct {
	client           Publisher
	deviceID         string
	discoveryPrefix  string
	logger           *logrus.Logger
	publishedSensors map[string]bool // Tracks published discovery configs
	producing        bool
}

// HADiscoveryConfig represents Home Assistant MQTT discovery configuration
type HADiscoveryConfig struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	Device            HADevice `json:"device"`
	AvailabilityTopic string   `json:"availability_topic"`
	Icon              string   `json:"icon,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
}

// HADevice represents the device information for Home Assistant
type HADevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// StatePayload is the JSON document published on the state topic.
type StatePayload struct {
	Power     float64 `json:"power"`
	Energy    int64   `json:"energy"`
	Producing string  `json:"producing"`
}

// NewMQTTTransmitter creates a new MQTT transmitter
func NewMQTTTransmitter(client Publisher, deviceID, discoveryPrefix string, logger *logrus.Logger) *MQTTTransmitter {
	return &MQTTTransmitter{
		client:           client,
		deviceID:         deviceID,
		discoveryPrefix:  discoveryPrefix,
		logger:           logger,
		publishedSensors: make(map[string]bool),
		producing:        true,
	}
}

func (t *MQTTTransmitter) device() HADevice {
	return HADevice{
		Identifiers:  []string{fmt.Sprintf("fronius_inverter_%s", t.deviceID)},
		Name:         "Fronius Inverter",
		Model:        "Inverter",
		Manufacturer: "Fronius",
		SWVersion:    versioninfo.Short(),
	}
}

func (t *MQTTTransmitter) uniqueID(sensor SensorConfig) string {
	return fmt.Sprintf("%s_%s", t.deviceID, sensor.EntityID)
}

func (t *MQTTTransmitter) icon(sensor SensorConfig) string {
	if sensor.EntityID != EntityPower {
		return ""
	}
	if t.producing {
		return IconProducing
	}
	return IconIdle
}

// publishDiscoveryForSensor publishes the discovery config for a single
// entity unless it was already published. force republishes regardless.
func (t *MQTTTransmitter) publishDiscoveryForSensor(sensor SensorConfig, force bool) error {
	uniqueID := t.uniqueID(sensor)
	if t.publishedSensors[uniqueID] && !force {
		return nil
	}

	config := HADiscoveryConfig{
		Name:              sensor.Name,
		UniqueID:          uniqueID,
		StateTopic:        mqtt.StateTopic(t.deviceID),
		ValueTemplate:     sensor.ValueTemplate,
		DeviceClass:       sensor.DeviceClass,
		UnitOfMeasurement: sensor.Unit,
		StateClass:        sensor.StateClass,
		AvailabilityTopic: mqtt.AvailabilityTopic(t.deviceID),
		Icon:              t.icon(sensor),
		PayloadOn:         sensor.PayloadOn,
		PayloadOff:        sensor.PayloadOff,
		Device:            t.device(),
	}

	topic := mqtt.DiscoveryTopic(t.discoveryPrefix, sensor.EntityType, t.deviceID, sensor.EntityID)
	if err := t.publishJSON(topic, config, true); err != nil {
		return fmt.Errorf("failed to publish %s discovery config: %w", sensor.Name, err)
	}

	t.logger.WithFields(logrus.Fields{
		"sensor_name": sensor.Name,
		"entity_id":   sensor.EntityID,
		"topic":       topic,
	}).Debug("Published sensor discovery config")

	t.publishedSensors[uniqueID] = true
	return nil
}

// publishDiscoveryConfigs ensures all entities have their discovery configs published.
func (t *MQTTTransmitter) publishDiscoveryConfigs() {
	for _, sensor := range Sensors {
		if err := t.publishDiscoveryForSensor(sensor, false); err != nil {
			t.logger.WithError(err).WithField("sensor", sensor.Name).Error("Failed to publish discovery config")
		}
	}
}

func (t *MQTTTransmitter) publishJSON(topic string, v interface{}, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	return t.client.Publish(topic, payload, retained)
}

// buildStatePayload builds the JSON payload for the state topic
func buildStatePayload(r meter.Reading) StatePayload {
	producing := "OFF"
	if r.Producing {
		producing = "ON"
	}
	return StatePayload{
		Power:     math.Round(r.PowerWatts*10) / 10,
		Energy:    r.EnergyWattHours,
		Producing: producing,
	}
}

// Publish sends one reading to the state topic.
func (t *MQTTTransmitter) Publish(r meter.Reading) error {
	if !t.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	t.publishDiscoveryConfigs()

	topic := mqtt.StateTopic(t.deviceID)
	state := buildStatePayload(r)
	if err := t.publishJSON(topic, state, true); err != nil {
		return fmt.Errorf("failed to publish sensor data to %s: %w", topic, err)
	}

	if err := t.publishAvailability(true); err != nil {
		return fmt.Errorf("failed to publish availability: %w", err)
	}

	t.logger.WithFields(logrus.Fields{
		"topic":  topic,
		"power":  state.Power,
		"energy": state.Energy,
	}).Debug("Published sensor data")
	return nil
}

// ModeChange swaps the power sensor icon to reflect whether the inverter
// is producing. When the discovery config cannot be sent it is marked stale
// and goes out with the next Publish.
func (t *MQTTTransmitter) ModeChange(producing bool) error {
	t.producing = producing
	for _, sensor := range Sensors {
		if sensor.EntityID != EntityPower {
			continue
		}
		if !t.client.IsConnected() {
			t.publishedSensors[t.uniqueID(sensor)] = false
			return fmt.Errorf("MQTT client not connected")
		}
		if err := t.publishDiscoveryForSensor(sensor, true); err != nil {
			t.publishedSensors[t.uniqueID(sensor)] = false
			return err
		}
	}
	t.logger.WithField("producing", producing).Info("Published inverter mode")
	return nil
}

// Close marks the inverter unavailable in Home Assistant.
func (t *MQTTTransmitter) Close() error {
	if !t.client.IsConnected() {
		return nil
	}
	return t.publishAvailability(false)
}

// publishAvailability publishes the availability status
func (t *MQTTTransmitter) publishAvailability(online bool) error {
	payload := mqtt.PayloadOnline
	if !online {
		payload = mqtt.PayloadOffline
	}

	topic := mqtt.AvailabilityTopic(t.deviceID)
	if err := t.client.Publish(topic, []byte(payload), true); err != nil {
		return fmt.Errorf("failed to publish availability to %s: %w", topic, err)
	}
	return nil
}
