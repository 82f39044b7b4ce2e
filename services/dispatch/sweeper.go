// File: services/dispatch/sweeper.go
package dispatch

import (
	"context"
	"time"

	"voicecab/utils"

	"go.uber.org/zap"
)

// Sweeper periodically deactivates drivers that stopped heartbeating.
type Sweeper struct {
	Registry *Registry
	Interval time.Duration
}

// NewSweeper creates a sweeper over the given registry.
func NewSweeper(registry *Registry, interval time.Duration) *Sweeper {
	return &Sweeper{Registry: registry, Interval: interval}
}

// Run blocks until the context is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	logger := utils.GetLogger()
	logger.Info("driver liveness sweeper started", zap.Duration("interval", s.Interval))

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("driver liveness sweeper stopped")
			return
		case <-ticker.C:
			if swept := s.Registry.Sweep(); len(swept) > 0 {
				logger.Info("deactivated stale drivers", zap.Strings("driverIds", swept))
			}
		}
	}
}
