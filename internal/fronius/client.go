package fronius

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/solar-hass/fronius-hass/internal/meter"
	"github.com/solar-hass/fronius-hass/internal/netutil"
)

// Client handles communication with the inverter's local Solar API.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new Solar API client for the given realtime data URL.
func NewClient(url string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		url:        url,
		httpClient: netutil.NewHTTPClient(timeout, logger),
		logger:     logger,
	}
}

// Fetch retrieves and decodes the inverter's realtime data. Transport errors
// and ErrMalformedPayload are both returned wrapped.
func (c *Client) Fetch(ctx context.Context) (*meter.StatusReport, error) {
	body, err := c.makeRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}

	report, err := ParseRealtimeData(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"code":      report.StatusCode,
		"power":     report.InstantPowerWatts,
		"total":     report.CoarseEnergyWattHours,
		"reason":    report.StatusReason,
		"timestamp": report.Timestamp,
	}).Debug("Successfully parsed inverter data")
	return report, nil
}

// makeRequest performs the HTTP request to the Solar API.
func (c *Client) makeRequest(ctx context.Context) ([]byte, error) {
	c.logger.WithField("url", c.url).Debug("Retrieve solar data")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"status_code":   resp.StatusCode,
		"response_size": len(body),
	}).Debug("Received API response")

	return body, nil
}
