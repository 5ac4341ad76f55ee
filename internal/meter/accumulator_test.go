package meter

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccumulator(t *testing.T) (*Accumulator, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewAccumulator(time.Minute, logger), hook
}

func active(power float64, total int64) StatusReport {
	return StatusReport{StatusCode: StatusActive, InstantPowerWatts: power, CoarseEnergyWattHours: total}
}

func TestAccumulatorScenario(t *testing.T) {
	acc, _ := newTestAccumulator(t)

	power, energy := acc.Update(active(600, 10))
	assert.Equal(t, 600.0, power)
	assert.Equal(t, int64(10), energy)
	assert.Equal(t, int64(10), acc.Baseline())
	assert.Equal(t, int64(0), acc.Fraction())

	power, energy = acc.Update(active(600, 10))
	assert.Equal(t, 600.0, power)
	assert.Equal(t, int64(20), energy)
	assert.Equal(t, int64(10), acc.Fraction())

	power, energy = acc.Update(active(0, 15))
	assert.Equal(t, 0.0, power)
	assert.Equal(t, int64(15), energy)
	assert.Equal(t, int64(15), acc.Baseline())
	assert.Equal(t, int64(0), acc.Fraction())
}

func TestAccumulatorInterpolatesTrapezoid(t *testing.T) {
	tests := []struct {
		name   string
		p1, p2 float64
		want   int64
	}{
		{"flat", 600, 600, 10},
		{"ramp up", 0, 1200, 10},
		{"ramp down", 1200, 0, 10},
		{"uneven", 250, 500, 6}, // 375/60 = 6.25
		{"zero", 0, 0, 0},
		{"below half", 20, 20, 0}, // 20/60 = 0.33
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc, _ := newTestAccumulator(t)
			acc.Update(active(tt.p1, 100))
			_, before := acc.Update(active(tt.p1, 100))
			_, after := acc.Update(active(tt.p2, 100))
			assert.Equal(t, tt.want, after-before)
		})
	}
}

func TestAccumulatorRoundsHalfUp(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.Update(active(30, 50))

	// avg 30 W over one minute is exactly 0.5 Wh
	_, energy := acc.Update(active(30, 50))
	assert.Equal(t, int64(51), energy)

	// avg 90 W is 1.5 Wh
	acc2, _ := newTestAccumulator(t)
	acc2.Update(active(90, 50))
	_, energy = acc2.Update(active(90, 50))
	assert.Equal(t, int64(52), energy)
}

func TestAccumulatorRepeatedIncrementIsConstant(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	_, prev := acc.Update(active(480, 1000))

	for i := 0; i < 20; i++ {
		_, energy := acc.Update(active(480, 1000))
		assert.Equal(t, int64(8), energy-prev, "tick %d", i)
		prev = energy
	}
	assert.Equal(t, int64(160), acc.Fraction())
}

func TestAccumulatorNondecreasing(t *testing.T) {
	acc, _ := newTestAccumulator(t)

	// The device integrates the same power trace but only refreshes its
	// counter on some polls. Powers are multiples of 120 W so every step is
	// a whole Wh.
	powers := []float64{0, 120, 600, 1200, 2400, 2400, 1920, 960, 120, 0, 0, 240, 3000, 3000}
	refresh := []bool{true, false, false, true, false, false, false, true, false, false, true, false, false, true}

	var device, counter, last int64
	var prev float64
	for i := range powers {
		device += int64((prev + powers[i]) / 2 / 60)
		prev = powers[i]
		if refresh[i] {
			counter = device
		}

		_, energy := acc.Update(active(powers[i], counter))
		assert.GreaterOrEqual(t, energy, last, "tick %d", i)
		assert.Equal(t, device, energy, "tick %d", i)
		last = energy
	}
	assert.Equal(t, int64(241), last)
}

func TestAccumulatorDipsToCoarseStepBelowEstimate(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.Update(active(1200, 10))
	acc.Update(active(1200, 10))
	_, estimate := acc.Update(active(1200, 10))
	require.Equal(t, int64(50), estimate)

	// The device steps to 30 Wh while the estimate already reads 50 Wh.
	// The fraction is discarded and the device total is published.
	_, energy := acc.Update(active(1200, 30))
	assert.Equal(t, int64(30), energy)
	assert.Less(t, energy, estimate)
	assert.Equal(t, int64(0), acc.Fraction())

	_, energy = acc.Update(active(1200, 30))
	assert.Equal(t, int64(50), energy)
}

func TestAccumulatorResetsFractionOnNewTotal(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.Update(active(1200, 200))
	acc.Update(active(1200, 200))
	acc.Update(active(1200, 200))
	require.Equal(t, int64(40), acc.Fraction())

	_, energy := acc.Update(active(1200, 230))
	assert.Equal(t, int64(0), acc.Fraction())
	assert.Equal(t, int64(230), energy)
}

func TestAccumulatorInactiveKeepsState(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.Update(active(600, 10))
	acc.Update(active(600, 10))

	for i := 0; i < 3; i++ {
		power, energy := acc.UpdateInactive()
		assert.Equal(t, 0.0, power)
		assert.Equal(t, int64(20), energy)
	}

	// interpolation resumes from the last active power
	_, energy := acc.Update(active(0, 10))
	assert.Equal(t, int64(25), energy)
}

func TestAccumulatorCounterReset(t *testing.T) {
	acc, hook := newTestAccumulator(t)
	acc.Update(active(600, 5000))
	acc.Update(active(600, 5000))

	_, energy := acc.Update(active(600, 12))
	assert.Equal(t, int64(12), energy)
	assert.Equal(t, int64(12), acc.Baseline())
	assert.Equal(t, int64(0), acc.Fraction())

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	_, energy = acc.Update(active(600, 12))
	assert.Equal(t, int64(22), energy)
}

func TestAccumulatorIntervalScaling(t *testing.T) {
	logger, _ := test.NewNullLogger()
	acc := NewAccumulator(30*time.Second, logger)
	acc.Update(active(1200, 1))
	_, energy := acc.Update(active(1200, 1))
	assert.Equal(t, int64(11), energy) // 1200 W for 30 s
}
