// Package scheduler runs periodic automation sweeps over orgs with cron.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// BatchRunner is the interface for sweeping an org's open claims.
type BatchRunner interface {
	RunBatch(ctx context.Context, orgID string) error
}

// Sweep is one scheduled automation pass over an org.
type Sweep struct {
	OrgID       string
	Cron        string
	Description string
}

// Scheduler manages cron-based automation sweeps.
type Scheduler struct {
	cron   *cron.Cron
	runner BatchRunner
}

// New creates a scheduler backed by the given runner.
// Cron expressions use the standard 5-field format: minute hour day-of-month month day-of-week
// (e.g. "0 7 * * *" for 07:00 daily). Do not use WithSeconds() so docs and configs match.
func New(runner BatchRunner) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
	}
}

// RegisterSweeps adds cron entries for the given sweeps.
func (s *Scheduler) RegisterSweeps(sweeps []Sweep) error {
	for _, sw := range sweeps {
		orgID := sw.OrgID
		desc := sw.Description

		_, err := s.cron.AddFunc(sw.Cron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			log.Info().
				Str("org_id", orgID).
				Str("description", desc).
				Msg("scheduled_sweep_fired")

			if err := s.runner.RunBatch(ctx, orgID); err != nil {
				log.Error().Err(err).
					Str("org_id", orgID).
					Msg("scheduled_sweep_failed")
			}
		})
		if err != nil {
			return fmt.Errorf("registering cron %q for org %s: %w", sw.Cron, orgID, err)
		}
	}

	return nil
}

// Start begins executing registered cron jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to complete.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries returns the number of registered cron entries (for testing).
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
