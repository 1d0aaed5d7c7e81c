// Package jobs runs the periodic maintenance of the intake service using robfig/cron.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRetention is how long card scans are kept
const DefaultRetention = 30 * 24 * time.Hour

const (
	expireSchedule = "* * * * *"
	pruneSchedule  = "0 3 * * *"
)

// SessionExpirer drops handoff sessions that are past their TTL
type SessionExpirer interface {
	Expire(now time.Time) int
}

// ScanPruner deletes card scans created before a cutoff
type ScanPruner interface {
	DeleteScansBefore(cutoff time.Time) (int, error)
}

// Scheduler manages the background jobs
type Scheduler struct {
	cron      *cron.Cron
	sessions  SessionExpirer
	scans     ScanPruner
	retention time.Duration
	now       func() time.Time
}

// NewScheduler creates a new job scheduler
func NewScheduler(sessions SessionExpirer, scans ScanPruner, retention time.Duration) *Scheduler {
	return NewSchedulerWithClock(sessions, scans, retention, time.Now)
}

// NewSchedulerWithClock creates a scheduler that reads the time from now
func NewSchedulerWithClock(sessions SessionExpirer, scans ScanPruner, retention time.Duration, now func() time.Time) *Scheduler {
	if retention <= 0 {
		retention = DefaultRetention
	}
	// Standard 5-field format, seconds disabled
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		sessions:  sessions,
		scans:     scans,
		retention: retention,
		now:       now,
	}
}

// Start begins the scheduled jobs
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(expireSchedule, func() { s.ExpireSessions() }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(pruneSchedule, func() { s.PruneScans() }); err != nil {
		return err
	}

	s.cron.Start()
	slog.Info("Scheduler started", "jobs", len(s.cron.Entries()), "retention", s.retention)
	return nil
}

// Stop stops the scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	slog.Info("Scheduler stopping")
	return s.cron.Stop()
}

// ExpireSessions drops expired handoff sessions and returns how many were dropped
func (s *Scheduler) ExpireSessions() int {
	n := s.sessions.Expire(s.now())
	if n > 0 {
		slog.Debug("Expired handoff sessions", "count", n)
	}
	return n
}

// PruneScans deletes card scans older than the retention window
func (s *Scheduler) PruneScans() (int, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.scans.DeleteScansBefore(cutoff)
	if err != nil {
		slog.Error("Failed to prune card scans", "cutoff", cutoff, "removed", n, "error", err)
		return n, err
	}
	slog.Info("Pruned card scans", "cutoff", cutoff, "removed", n)
	return n, nil
}
