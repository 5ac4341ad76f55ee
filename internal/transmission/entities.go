package transmission

// Entity IDs double as JSON keys of the state payload.
const (
	EntityPower     = "power"
	EntityEnergy    = "energy"
	EntityProducing = "producing"
)

// Icons shown on the power sensor depending on whether the inverter is
// feeding in.
const (
	IconProducing = "mdi:solar-power"
	IconIdle      = "mdi:solar-power-variant-outline"
)

// SensorConfig defines the configuration for each entity
type SensorConfig struct {
	Name          string
	EntityID      string
	EntityType    string
	DeviceClass   string
	Unit          string
	StateClass    string
	ValueTemplate string
	PayloadOn     string
	PayloadOff    string
}

// Sensors is the authoritative list of entities announced to Home Assistant.
var Sensors = []SensorConfig{
	{
		Name:          "Current power",
		EntityID:      EntityPower,
		EntityType:    "sensor",
		DeviceClass:   "power",
		Unit:          "W",
		StateClass:    "measurement",
		ValueTemplate: "{{ value_json.power | default(0) }}",
	},
	{
		Name:          "Total power",
		EntityID:      EntityEnergy,
		EntityType:    "sensor",
		DeviceClass:   "energy",
		Unit:          "Wh",
		StateClass:    "total_increasing",
		ValueTemplate: "{{ value_json.energy }}",
	},
	{
		Name:          "Producing",
		EntityID:      EntityProducing,
		EntityType:    "binary_sensor",
		DeviceClass:   "running",
		ValueTemplate: "{{ value_json.producing }}",
		PayloadOn:     "ON",
		PayloadOff:    "OFF",
	},
}
