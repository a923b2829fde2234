package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ys-23412/sbcontest2/config"
	"github.com/ys-23412/sbcontest2/ingest"
	"github.com/ys-23412/sbcontest2/scraper"
)

// Scheduler triggers scrape runs on a cron expression or fixed
// interval. Without either, the daemon waits for a manual trigger.
type Scheduler struct {
	cfg          *config.Config
	orchestrator *scraper.Orchestrator
	runs         *ingest.WorkflowRuns
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}
}

func New(cfg *config.Config, orchestrator *scraper.Orchestrator) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

// SetWorkflowRuns enables the CI-gap check before scheduled runs.
func (s *Scheduler) SetWorkflowRuns(runs *ingest.WorkflowRuns) {
	s.runs = runs
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.run(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.run(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to manual triggers")
	}

	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	s.logLastCIRun(ctx)
	if err := s.orchestrator.RunAll(ctx); err != nil {
		log.Printf("Scheduled run error: %v", err)
	}
}

// logLastCIRun surfaces the gap since the last successful CI scrape,
// so an operator can spot skipped schedules in the log.
func (s *Scheduler) logLastCIRun(ctx context.Context) {
	if s.runs == nil {
		return
	}
	last, err := s.runs.LastSuccessfulRun(ctx, s.cfg.GitHub.WorkflowName)
	if err != nil {
		log.Printf("Workflow run lookup failed: %v", err)
		return
	}
	if last.IsZero() {
		log.Printf("No successful %q workflow run found", s.cfg.GitHub.WorkflowName)
		return
	}
	log.Printf("Last successful %q run: %s (%s ago)",
		s.cfg.GitHub.WorkflowName, last.Format(time.RFC3339), time.Since(last).Round(time.Minute))
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

func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.orchestrator.RunAll(ctx)
}
