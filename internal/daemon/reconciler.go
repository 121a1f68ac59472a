package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/1broseidon/layerd/internal/compositor"
)

// Executor runs closures on the compositor loop.
type Executor interface {
	Do(ctx context.Context, fn func(*compositor.State) error) error
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	// StaleAfter is how long a client may hold a draw request before the
	// repaint is completed on its behalf. Zero disables the sweep.
	StaleAfter      time.Duration
	AuditInvariants bool
	Logger          *slog.Logger
}

// Report summarises one reconciliation pass.
type Report struct {
	Expired    int
	Violations error
	Repaired   bool
}

// Reconciler periodically checks for state drift and corrects it.
type Reconciler struct {
	interval   time.Duration
	staleAfter time.Duration
	audit      bool
	exec       Executor
	logger     *slog.Logger
}

// NewReconciler creates a new reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, exec Executor) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		interval:   interval,
		staleAfter: cfg.StaleAfter,
		audit:      cfg.AuditInvariants,
		exec:       exec,
		logger:     logger,
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.interval, "stale_after", r.staleAfter, "audit", r.audit)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.ReconcileNow(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("reconciler: pass failed", "error", err)
			}
		}
	}
}

// ReconcileNow performs a single reconciliation pass.
func (r *Reconciler) ReconcileNow(ctx context.Context) (rep Report, err error) {
	err = r.exec.Do(ctx, func(s *compositor.State) (perr error) {
		// Recover from panics to prevent crashing the daemon
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("reconciler panic recovered", "error", p)
				perr = fmt.Errorf("reconciler panic: %v", p)
			}
		}()
		r.reconcile(s, &rep)
		return nil
	})
	return rep, err
}

func (r *Reconciler) reconcile(s *compositor.State, rep *Report) {
	if r.staleAfter > 0 {
		rep.Expired = s.ExpireUpdates(r.staleAfter)
		if rep.Expired > 0 {
			r.logger.Info("reconciler: completed stale repaints", "count", rep.Expired, "stale_after", r.staleAfter)
		}
	}

	if !r.audit {
		return
	}
	if err := s.CheckInvariants(); err != nil {
		rep.Violations = err
		r.logger.Warn("reconciler: scene invariants violated, forcing full repaint", "error", err)
		if err := s.Redraw(); err != nil {
			r.logger.Error("reconciler: redraw failed", "error", err)
			return
		}
		rep.Repaired = true
	}
}
