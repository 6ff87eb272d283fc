// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the periodic maintenance jobs of the service.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 5 * time.Minute

// Job is the work done by one scheduled run. ctx is canceled when the run
// times out or the scheduler stops.
type Job func(ctx context.Context) error

// registeredJob holds metadata about a registered cron job.
type registeredJob struct {
	name        string
	description string
	schedule    string
	entryID     cron.EntryID
	job         Job

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
	runs    int
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Schedule    string    `json:"schedule"`
	LastRun     time.Time `json:"last_run"`
	NextRun     time.Time `json:"next_run"`
	LastError   string    `json:"last_error,omitempty"`
	Runs        int       `json:"runs"`
}

// Scheduler handles periodic jobs like client recycling and cache warm-up.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	jobs map[string]*registeredJob
}

// New creates a new scheduler instance. Overlapping runs of the same job
// are skipped.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger.With("component", "scheduler")}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		timeout: DefaultJobTimeout,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(map[string]*registeredJob),
	}
}

// SetJobTimeout changes the per-run timeout. Call before Start.
func (s *Scheduler) SetJobTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// ValidateSchedule checks a standard five-field cron expression or a
// descriptor like "@every 15m".
func ValidateSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}
	return nil
}

// Add registers a job under a unique name.
func (s *Scheduler) Add(name, description, schedule string, job Job) error {
	if err := ValidateSchedule(schedule); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job already registered: %s", name)
	}

	rj := &registeredJob{
		name:        name,
		description: description,
		schedule:    schedule,
		job:         job,
	}
	id, err := s.cron.AddFunc(schedule, func() { _ = s.run(s.ctx, rj) })
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", name, err)
	}
	rj.entryID = id
	s.jobs[name] = rj

	s.logger.Debug("registered scheduled job", "name", name, "schedule", schedule)
	return nil
}

// Start begins running the registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// TriggerNow runs a job immediately and returns its error.
func (s *Scheduler) TriggerNow(ctx context.Context, name string) error {
	s.mu.RLock()
	rj, ok := s.jobs[name]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("job not found: %s", name)
	}

	s.logger.Info("manually triggering job", "name", name)
	return s.run(ctx, rj)
}

// run executes one job run with the configured timeout, recording the
// outcome. A panicking job is reported as an error.
func (s *Scheduler) run(ctx context.Context, rj *registeredJob) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", rj.name, r)
		}

		rj.mu.Lock()
		rj.lastRun = start
		rj.lastErr = err
		rj.runs++
		rj.mu.Unlock()

		if err != nil {
			s.logger.Error("scheduled job failed", "name", rj.name, "duration", time.Since(start), "error", err)
			return
		}
		s.logger.Debug("scheduled job finished", "name", rj.name, "duration", time.Since(start))
	}()

	return rj.job(ctx)
}

// List returns all registered jobs sorted by name.
func (s *Scheduler) List() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]JobInfo, 0, len(s.jobs))
	for _, rj := range s.jobs {
		rj.mu.Lock()
		info := JobInfo{
			Name:        rj.name,
			Description: rj.description,
			Schedule:    rj.schedule,
			LastRun:     rj.lastRun,
			Runs:        rj.runs,
		}
		if rj.lastErr != nil {
			info.LastError = rj.lastErr.Error()
		}
		rj.mu.Unlock()

		info.NextRun = s.cron.Entry(rj.entryID).Next
		result = append(result, info)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// cronLogger adapts slog to cron.Logger. cron's chatty info messages go to
// debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
