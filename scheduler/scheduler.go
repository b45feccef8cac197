package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/GraysonBannister/live-japan-sub000/config"
	"github.com/robfig/cron/v3"
)

// Job is one schedulable pipeline step (scrape+ingest, maintenance).
type Job func(ctx context.Context) error

// Scheduler drives the periodic pipeline: scrape runs on a cron expression
// or fixed interval, the maintenance pass on its own daily cron.
type Scheduler struct {
	cfg      *config.Config
	scrape   Job
	maintain Job
	cron     *cron.Cron
	ticker   *time.Ticker
	stopCh   chan struct{}
}

func New(cfg *config.Config, scrape, maintain Job) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		scrape:   scrape,
		maintain: maintain,
		cron:     cron.New(),
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Scheduler.ScrapeCron != "" {
		log.Printf("scheduling scrape with cron: %s", s.cfg.Scheduler.ScrapeCron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.ScrapeCron, func() {
			if err := s.scrape(ctx); err != nil {
				log.Printf("scheduled scrape error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid scrape cron expression: %w", err)
		}
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("scheduling scrape with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					if err := s.scrape(ctx); err != nil {
						log.Printf("scheduled scrape error: %v", err)
					}
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("no scrape schedule configured, scrape runs on demand only")
	}

	if s.cfg.Scheduler.MaintenanceCron != "" {
		log.Printf("scheduling maintenance with cron: %s", s.cfg.Scheduler.MaintenanceCron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.MaintenanceCron, func() {
			if err := s.maintain(ctx); err != nil {
				log.Printf("scheduled maintenance error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid maintenance cron expression: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// TriggerScrape runs the scrape pipeline immediately, outside the schedule.
func (s *Scheduler) TriggerScrape(ctx context.Context) error {
	return s.scrape(ctx)
}
