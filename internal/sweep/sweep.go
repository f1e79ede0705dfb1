// Package sweep deactivates dormant accounts on a schedule. An account
// counts as dormant when it has not logged in within the configured
// threshold; accounts that never logged in are judged by creation time.
package sweep

import (
	"context"
	"errors"
	"time"

	"github.com/99004433/Multi-tenant-IAM/internal/audit"
	"github.com/99004433/Multi-tenant-IAM/internal/mail"
	"github.com/99004433/Multi-tenant-IAM/internal/obs"
)

const (
	defaultInterval  = 24 * time.Hour
	defaultThreshold = 90 * 24 * time.Hour
)

// Store is the persistence operation the sweep needs.
type Store interface {
	DeactivateDormant(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Sweeper runs the periodic deactivation pass.
type Sweeper struct {
	store     Store
	sender    mail.Sender
	adminAddr string
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithInterval sets the pause between passes.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithThreshold sets the dormancy window.
func WithThreshold(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.threshold = d
		}
	}
}

// WithAdminNotice mails the given address after each pass that
// deactivated at least one account.
func WithAdminNotice(sender mail.Sender, addr string) Option {
	return func(s *Sweeper) {
		s.sender = sender
		s.adminAddr = addr
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Sweeper) {
		if fn != nil {
			s.now = fn
		}
	}
}

// New constructs a Sweeper.
func New(store Store, opts ...Option) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("sweep: store is required")
	}
	s := &Sweeper{
		store:     store,
		interval:  defaultInterval,
		threshold: defaultThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run executes passes until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				obs.LogEntry(map[string]any{
					"level": "error",
					"msg":   "sweep_failed",
					"error": err.Error(),
				})
			}
		}
	}
}

// RunOnce executes a single deactivation pass.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	cutoff := s.now().Add(-s.threshold)
	emails, err := s.store.DeactivateDormant(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(emails) == 0 {
		return nil
	}

	_ = audit.LogEvent(ctx, "directory.user.sweep", map[string]any{
		"deactivated": len(emails),
		"cutoff":      cutoff.UTC().Format(time.RFC3339),
	})
	if s.sender != nil && s.adminAddr != "" {
		if err := s.sender.Send(ctx, mail.InactiveUsers(s.adminAddr, emails)); err != nil {
			obs.LogEntry(map[string]any{
				"level": "warn",
				"msg":   "sweep notice mail failed",
				"error": err.Error(),
			})
		}
	}
	return nil
}
