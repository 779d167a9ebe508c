// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the site's periodic maintenance jobs on cron
// schedules and lets operators trigger them by hand.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Errors returned by Trigger.
var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobRunning = errors.New("job is already running")
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 5 * time.Minute

// Job is a named periodic task.
type Job struct {
	Name        string
	Description string
	Schedule    string
	Run         func(ctx context.Context) error
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Schedule    string    `json:"schedule"`
	Running     bool      `json:"running"`
	LastRun     time.Time `json:"last_run"`
	LastError   string    `json:"last_error,omitempty"`
	NextRun     time.Time `json:"next_run"`
}

// Recorder counts job runs.
type Recorder interface {
	RecordJobRun(job string, err error)
}

type registeredJob struct {
	job     Job
	entryID cron.EntryID

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
}

// Scheduler runs registered jobs. A job never overlaps itself: a tick
// that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron     *cron.Cron
	logger   *slog.Logger
	recorder Recorder
	timeout  time.Duration
	now      func() time.Time

	mu   sync.RWMutex
	jobs map[string]*registeredJob
	wg   sync.WaitGroup
	base context.Context
	stop context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRecorder sets the job metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithTimeout sets the per-run timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// New creates a new scheduler instance.
func New(logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("category", "system")
	base, stop := context.WithCancel(context.Background())
	s := &Scheduler{
		logger:  logger,
		timeout: DefaultJobTimeout,
		now:     time.Now,
		jobs:    make(map[string]*registeredJob),
		base:    base,
		stop:    stop,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{logger})))
	return s
}

// Add registers job. A blank schedule registers a manual-only job.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a run function")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}

	rj := &registeredJob{job: job}
	if job.Schedule != "" {
		id, err := s.cron.AddFunc(job.Schedule, func() {
			if err := s.run(s.base, rj); errors.Is(err, ErrJobRunning) {
				s.logger.Warn("skipping job tick, previous run still active", "job", job.Name)
			}
		})
		if err != nil {
			return fmt.Errorf("job %q: invalid schedule %q: %w", job.Name, job.Schedule, err)
		}
		rj.entryID = id
	}
	s.jobs[job.Name] = rj
	s.logger.Debug("registered scheduled job", "job", job.Name, "schedule", job.Schedule)
	return nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the schedule, cancels running jobs and waits for them.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	s.stop()
	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Trigger runs the named job now and returns its error.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.RLock()
	rj, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, rj)
}

// List returns all registered jobs sorted by name.
func (s *Scheduler) List() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, rj := range s.jobs {
		rj.mu.Lock()
		info := JobInfo{
			Name:        rj.job.Name,
			Description: rj.job.Description,
			Schedule:    rj.job.Schedule,
			Running:     rj.running,
			LastRun:     rj.lastRun,
		}
		if rj.lastErr != nil {
			info.LastError = rj.lastErr.Error()
		}
		rj.mu.Unlock()
		if rj.entryID != 0 {
			info.NextRun = s.cron.Entry(rj.entryID).Next
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) run(ctx context.Context, rj *registeredJob) error {
	rj.mu.Lock()
	if rj.running {
		rj.mu.Unlock()
		return ErrJobRunning
	}
	rj.running = true
	rj.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	err := rj.job.Run(ctx)
	elapsed := s.now().Sub(start)

	rj.mu.Lock()
	rj.running = false
	rj.lastRun = start
	rj.lastErr = err
	rj.mu.Unlock()

	if s.recorder != nil {
		s.recorder.RecordJobRun(rj.job.Name, err)
	}
	if err != nil {
		s.logger.Error("job failed", "job", rj.job.Name, "duration", elapsed, "error", err)
		return err
	}
	s.logger.Debug("job finished", "job", rj.job.Name, "duration", elapsed)
	return nil
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
