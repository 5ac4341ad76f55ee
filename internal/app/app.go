package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/solar-hass/fronius-hass/internal/meter"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Host is what the runner drives on every heartbeat.
type Host interface {
	OnStart(ctx context.Context)
	OnTick(ctx context.Context) (meter.Reading, bool)
	OnStop(ctx context.Context)
}

// Run starts the heartbeat loop and, when srv is non-nil, the HTTP server.
// It blocks until ctx is cancelled.
func Run(ctx context.Context, host Host, heartbeat time.Duration, srv *http.Server, logger *logrus.Logger) {
	grp, ctx := errgroup.WithContext(ctx)

	// Heartbeat -----------------------------------------------------------
	grp.Go(func() error {
		host.OnStart(ctx)
		defer host.OnStop(context.Background())

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				reading, polled := host.OnTick(ctx)
				if !polled {
					continue
				}
				logger.WithFields(logrus.Fields{
					"power":   reading.PowerWatts,
					"energy":  reading.EnergyWattHours,
					"outcome": reading.Outcome,
				}).Debug("Poll completed")
			}
		}
	})

	// HTTP server ------------------------------------------------------------
	if srv != nil {
		grp.Go(func() error {
			logger.WithField("addr", srv.Addr).Info("Metrics endpoint listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				// polling carries on without the endpoint
				logger.WithError(err).Error("Metrics endpoint failed")
			}
			return nil
		})
		grp.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Warn("app: background group exited")
	}
}
