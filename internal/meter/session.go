package meter

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Fetcher retrieves one status report from the inverter.
type Fetcher interface {
	Fetch(ctx context.Context) (*StatusReport, error)
}

// Session owns the accumulator and the Active/Inactive state for one
// process lifetime. The host drives it with OnStart, OnTick and OnStop;
// all three must be called from the same goroutine.
type Session struct {
	fetcher   Fetcher
	acc       *Accumulator
	sinks     []Sink
	pollEvery int
	timeout   time.Duration
	logger    *logrus.Logger

	heartbeats int
	active     bool
	last       Reading
}

// SessionOptions configures a Session.
type SessionOptions struct {
	PollEvery    int           // poll on every Nth heartbeat
	PollInterval time.Duration // effective interval between polls
	FetchTimeout time.Duration
}

// NewSession wires a fetcher to the given sinks. The session starts in the
// active mode, so an inverter that is already asleep at startup produces one
// off reading on the first poll.
func NewSession(fetcher Fetcher, opts SessionOptions, logger *logrus.Logger, sinks ...Sink) *Session {
	if opts.PollEvery < 1 {
		opts.PollEvery = 1
	}
	return &Session{
		fetcher:   fetcher,
		acc:       NewAccumulator(opts.PollInterval, logger),
		sinks:     sinks,
		pollEvery: opts.PollEvery,
		timeout:   opts.FetchTimeout,
		logger:    logger,
		active:    true,
	}
}

// OnStart announces the initial producing state to every sink.
func (s *Session) OnStart(ctx context.Context) {
	s.logger.WithFields(logrus.Fields{
		"poll_every": s.pollEvery,
		"sinks":      len(s.sinks),
	}).Debug("Session started")
	s.modeChange(s.active)
}

// OnTick is called on every heartbeat. Only every pollEvery-th heartbeat
// polls the inverter; the returned bool reports whether this one did.
func (s *Session) OnTick(ctx context.Context) (Reading, bool) {
	s.heartbeats++
	if s.heartbeats < s.pollEvery {
		return s.last, false
	}
	s.heartbeats = 0
	return s.Poll(ctx), true
}

// Poll runs one fetch, classify and update cycle and publishes the result.
func (s *Session) Poll(ctx context.Context) Reading {
	var (
		report *StatusReport
		err    error
	)
	if s.timeout > 0 {
		fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
		report, err = s.fetcher.Fetch(fetchCtx)
		cancel()
	} else {
		report, err = s.fetcher.Fetch(ctx)
	}

	c := Classify(report, err)
	s.logClassification(c)

	var reading Reading
	if c.Mode == ModeActive {
		power, energy := s.acc.Update(*report)
		reading = Reading{PowerWatts: power, EnergyWattHours: energy, Producing: true}
	} else {
		power, energy := s.acc.UpdateInactive()
		reading = Reading{PowerWatts: power, EnergyWattHours: energy}
	}
	reading.Outcome = c.Outcome()

	if producing := c.Mode == ModeActive; producing != s.active {
		s.active = producing
		s.logger.WithFields(logrus.Fields{
			"mode":   c.Mode,
			"energy": reading.EnergyWattHours,
		}).Info("Inverter mode changed")
		s.modeChange(producing)
	}

	s.publish(reading)
	s.last = reading
	return reading
}

// OnStop closes every sink that holds resources.
func (s *Session) OnStop(ctx context.Context) {
	s.logger.Debug("onStop called")
	for _, sink := range s.sinks {
		if c, ok := sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				s.logger.WithError(err).Warn("Failed to close sink")
			}
		}
	}
}

// Active reports the mode of the most recent poll.
func (s *Session) Active() bool { return s.active }

func (s *Session) logClassification(c Classification) {
	switch {
	case c.Err != nil:
		s.logger.WithError(c.Err).Error("Failed to retrieve inverter data")
	case c.Mode == ModeActive:
		// nothing to report
	case c.Expected():
		s.logger.WithFields(logrus.Fields{
			"code":   c.Code,
			"reason": c.Reason,
		}).Debug("Inverter is asleep")
	default:
		s.logger.WithFields(logrus.Fields{
			"code":   c.Code,
			"reason": c.Reason,
		}).Error("Inverter reported an error status")
	}
}

func (s *Session) publish(r Reading) {
	for _, sink := range s.sinks {
		if err := sink.Publish(r); err != nil {
			s.logger.WithError(err).Warn("Failed to publish reading")
		}
	}
}

func (s *Session) modeChange(producing bool) {
	for _, sink := range s.sinks {
		if err := sink.ModeChange(producing); err != nil {
			s.logger.WithError(err).Warn("Failed to publish mode change")
		}
	}
}
