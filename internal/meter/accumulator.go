package meter

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// Accumulator estimates the inverter's cumulative energy between updates of
// its coarse (whole Wh) TOTAL_ENERGY counter by integrating the reported AC
// power with the trapezoidal rule.
//
// The published total is baseline + fraction. The fraction is discarded the
// moment the device counter moves past the baseline, so the estimate never
// drifts away from the device for longer than one counter step.
//
// An Accumulator is not safe for concurrent use; it is owned by the tick loop.
type Accumulator struct {
	baseline  int64   // last accepted coarse total
	lastPower float64 // AC power of the previous active poll
	fraction  int64   // interpolated Wh since baseline was accepted

	intervalsPerHour float64
	logger           *logrus.Logger
}

// NewAccumulator returns an accumulator for polls spaced pollInterval apart.
// A one minute interval converts average watts to watt-hours by dividing by 60.
func NewAccumulator(pollInterval time.Duration, logger *logrus.Logger) *Accumulator {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	return &Accumulator{
		intervalsPerHour: float64(time.Hour) / float64(pollInterval),
		logger:           logger,
	}
}

// Update folds an active report into the estimate and returns the values to
// publish: the report's instantaneous power and the estimated total in Wh.
func (a *Accumulator) Update(report StatusReport) (float64, int64) {
	newTotal := report.CoarseEnergyWattHours
	newPower := report.InstantPowerWatts

	switch {
	case newTotal > a.baseline:
		a.logger.WithFields(logrus.Fields{
			"previous_total": a.baseline,
			"new_total":      newTotal,
			"last_fraction":  a.fraction,
		}).Debug("New total received")
		a.baseline = newTotal
		a.fraction = 0

	case newTotal < a.baseline:
		// Counter went backwards: inverter reset or replaced.
		a.logger.WithFields(logrus.Fields{
			"previous_total": a.baseline,
			"new_total":      newTotal,
		}).Warn("Inverter energy counter decreased, accepting as new baseline")
		a.baseline = newTotal
		a.fraction = 0

	default:
		step := a.interpolate(a.lastPower, newPower)
		a.fraction += step
		a.logger.WithFields(logrus.Fields{
			"power":    newPower,
			"step_wh":  step,
			"fraction": a.fraction,
		}).Debug("Fraction calculated")
	}

	a.lastPower = newPower
	return newPower, a.Total()
}

// UpdateInactive returns zero power and the last known total. The state is
// left untouched so the next active poll resumes where this one left off.
func (a *Accumulator) UpdateInactive() (float64, int64) {
	return 0, a.Total()
}

// Total is the currently published cumulative energy in Wh.
func (a *Accumulator) Total() int64 {
	return a.baseline + a.fraction
}

// Baseline returns the last accepted coarse total.
func (a *Accumulator) Baseline() int64 { return a.baseline }

// Fraction returns the interpolated Wh accumulated on top of the baseline.
func (a *Accumulator) Fraction() int64 { return a.fraction }

// interpolate returns the energy delivered between two polls, rounded half
// away from zero to whole Wh.
func (a *Accumulator) interpolate(prev, cur float64) int64 {
	avg := (prev + cur) / 2
	wh := int64(math.Round(avg / a.intervalsPerHour))
	if wh < 0 {
		return 0
	}
	return wh
}
