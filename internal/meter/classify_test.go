package meter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	fetchErr := errors.New("dial tcp 10.0.0.5:80: connect: no route to host")

	tests := []struct {
		name     string
		report   *StatusReport
		err      error
		mode     Mode
		outcome  Outcome
		expected bool
	}{
		{"active", &StatusReport{StatusCode: 0}, nil, ModeActive, OutcomeActive, true},
		{"night", &StatusReport{StatusCode: 12, StatusReason: "Transfer timeout"}, nil, ModeInactive, OutcomeNight, true},
		{"error code", &StatusReport{StatusCode: 1, StatusReason: "Query not supported"}, nil, ModeInactive, OutcomeError, false},
		{"fetch failure", nil, fetchErr, ModeInactive, OutcomeUnreachable, false},
		{"no report", nil, nil, ModeInactive, OutcomeUnreachable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.report, tt.err)
			assert.Equal(t, tt.mode, c.Mode)
			assert.Equal(t, tt.outcome, c.Outcome())
			assert.Equal(t, tt.expected, c.Expected())
		})
	}
}

func TestClassifyKeepsDetail(t *testing.T) {
	c := Classify(&StatusReport{StatusCode: 255, StatusReason: "Device not available"}, nil)
	assert.Equal(t, 255, c.Code)
	assert.Equal(t, "Device not available", c.Reason)
	assert.NoError(t, c.Err)

	c = Classify(nil, nil)
	assert.ErrorIs(t, c.Err, ErrNoReport)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "active", ModeActive.String())
	assert.Equal(t, "inactive", ModeInactive.String())
}
