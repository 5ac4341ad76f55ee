package meter

import "time"

// StatusReport is one snapshot of the inverter's realtime data.
// InstantPowerWatts and CoarseEnergyWattHours are only meaningful when
// StatusCode is StatusActive.
type StatusReport struct {
	StatusCode            int
	StatusReason          string
	InstantPowerWatts     float64
	CoarseEnergyWattHours int64
	Timestamp             time.Time
}

// Outcome describes how a poll ended; it is exported as a metric label.
type Outcome string

const (
	OutcomeActive      Outcome = "active"
	OutcomeNight       Outcome = "night"
	OutcomeError       Outcome = "error"
	OutcomeUnreachable Outcome = "unreachable"
)

// Reading is the pair of values forwarded to sinks after every poll.
type Reading struct {
	PowerWatts      float64
	EnergyWattHours int64
	Producing       bool
	Outcome         Outcome
}

// Sink receives readings. Publish is called once per poll, ModeChange once
// per Active/Inactive edge, before the Publish of the same poll.
type Sink interface {
	Publish(r Reading) error
	ModeChange(producing bool) error
}
