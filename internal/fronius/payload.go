package fronius

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/solar-hass/fronius-hass/internal/meter"
)

// ErrMalformedPayload marks a response that could not be turned into a
// status report. Callers treat it like an unreachable inverter.
var ErrMalformedPayload = errors.New("malformed inverter payload")

// maxWattHours is 2^63, the first value that no longer fits in an int64.
const maxWattHours = float64(math.MaxInt64)

// Value is a unit+value pair as returned by the Fronius Solar API. Value is
// null for channels the inverter cannot measure at the moment.
type Value struct {
	Unit  string   `json:"Unit"`
	Value *float64 `json:"Value"`
}

// CommonInverterData holds the fields of DataCollection=CommonInverterData
// we care about.
type CommonInverterData struct {
	PAC         *Value `json:"PAC"`
	TotalEnergy *Value `json:"TOTAL_ENERGY"`
}

// RealtimeDataResponse is the envelope of GetInverterRealtimeData.cgi.
type RealtimeDataResponse struct {
	Body struct {
		Data *CommonInverterData `json:"Data"`
	} `json:"Body"`
	Head struct {
		Status struct {
			Code        *int   `json:"Code"`
			Reason      string `json:"Reason"`
			UserMessage string `json:"UserMessage"`
		} `json:"Status"`
		Timestamp string `json:"Timestamp"`
	} `json:"Head"`
}

// ParseRealtimeData decodes a realtime data response into a status report.
// Every failure wraps ErrMalformedPayload.
func ParseRealtimeData(body []byte) (*meter.StatusReport, error) {
	var resp RealtimeDataResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if resp.Head.Status.Code == nil {
		return nil, fmt.Errorf("%w: missing Head.Status.Code", ErrMalformedPayload)
	}

	report := &meter.StatusReport{
		StatusCode:   *resp.Head.Status.Code,
		StatusReason: resp.Head.Status.Reason,
	}
	if report.StatusReason == "" {
		report.StatusReason = resp.Head.Status.UserMessage
	}
	if ts, err := time.Parse(time.RFC3339, resp.Head.Timestamp); err == nil {
		report.Timestamp = ts
	}

	if report.StatusCode != meter.StatusActive {
		return report, nil
	}

	data := resp.Body.Data
	if data == nil || data.TotalEnergy == nil || data.TotalEnergy.Value == nil {
		return nil, fmt.Errorf("%w: missing TOTAL_ENERGY", ErrMalformedPayload)
	}
	total := math.Round(scaleToWattHours(*data.TotalEnergy.Value, data.TotalEnergy.Unit))
	if total < 0 || math.IsNaN(total) || total >= maxWattHours {
		return nil, fmt.Errorf("%w: invalid TOTAL_ENERGY %v", ErrMalformedPayload, *data.TotalEnergy.Value)
	}
	report.CoarseEnergyWattHours = int64(total)

	// Inverters omit PAC while they are not feeding in.
	if data.PAC != nil && data.PAC.Value != nil {
		power := *data.PAC.Value
		if power < 0 || math.IsNaN(power) || math.IsInf(power, 0) {
			return nil, fmt.Errorf("%w: invalid PAC %v", ErrMalformedPayload, power)
		}
		report.InstantPowerWatts = power
	}

	return report, nil
}

func scaleToWattHours(v float64, unit string) float64 {
	switch unit {
	case "kWh":
		return v * 1000
	case "MWh":
		return v * 1000 * 1000
	default:
		return v
	}
}
