package licensing

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/alptraumtech/lms/pkg/logger"
)

// Checker periodically re-validates the license in the background. Remote
// failures are logged and otherwise ignored so a flaky network never locks
// the application out; a definitive rejection is persisted by Refresh.
type Checker struct {
	service  *Service
	schedule string
	cron     *cron.Cron
	log      *zap.Logger
}

// NewChecker constructs a Checker with a cron schedule (e.g. "@every 6h").
func NewChecker(service *Service, schedule string) (*Checker, error) {
	if service == nil {
		return nil, errors.New("licensing: service is required")
	}
	if schedule == "" {
		schedule = "@every 6h"
	}
	return &Checker{
		service:  service,
		schedule: schedule,
		cron:     cron.New(),
		log:      logger.WithModule("licensing"),
	}, nil
}

// Start registers the periodic check and launches the cron scheduler.
func (c *Checker) Start(ctx context.Context) error {
	_, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.service.Refresh(ctx); err != nil {
			if errors.Is(err, ErrNoLicense) {
				return
			}
			c.log.Warn("periodic license refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	c.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running check to finish.
func (c *Checker) Stop() {
	<-c.cron.Stop().Done()
}
