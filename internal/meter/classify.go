package meter

import "errors"

// ErrNoReport is used when a poll returned neither a report nor an error.
var ErrNoReport = errors.New("no status report")

// Fronius Solar API status codes of interest.
const (
	StatusActive = 0
	StatusNight  = 12 // no sun, inverter powered down
)

// Mode is the operating state derived from a poll.
type Mode int

const (
	ModeInactive Mode = iota
	ModeActive
)

func (m Mode) String() string {
	if m == ModeActive {
		return "active"
	}
	return "inactive"
}

// Classification is the result of inspecting one poll.
type Classification struct {
	Mode   Mode
	Code   int
	Reason string
	Err    error // fetch or decode failure, nil when a report was received
}

// Expected reports whether an inactive classification is part of normal
// operation and must not be logged as an error.
func (c Classification) Expected() bool {
	return c.Mode == ModeActive || (c.Err == nil && c.Code == StatusNight)
}

// Outcome maps the classification onto its metric label.
func (c Classification) Outcome() Outcome {
	switch {
	case c.Err != nil:
		return OutcomeUnreachable
	case c.Mode == ModeActive:
		return OutcomeActive
	case c.Code == StatusNight:
		return OutcomeNight
	default:
		return OutcomeError
	}
}

// Classify decides whether the inverter is producing. A nil report or a
// non-nil fetchErr means the poll yielded nothing usable.
func Classify(report *StatusReport, fetchErr error) Classification {
	if fetchErr != nil {
		return Classification{Mode: ModeInactive, Err: fetchErr}
	}
	if report == nil {
		return Classification{Mode: ModeInactive, Err: ErrNoReport}
	}
	c := Classification{Code: report.StatusCode, Reason: report.StatusReason}
	if report.StatusCode == StatusActive {
		c.Mode = ModeActive
	}
	return c
}
