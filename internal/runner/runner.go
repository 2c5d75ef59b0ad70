// Package runner executes listing workflows for accounts, one run per
// account at a time, and records their outcome.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/theeshop/listingbot/internal/diagnostic"
	"github.com/theeshop/listingbot/internal/log"
	"github.com/theeshop/listingbot/internal/product"
	"github.com/theeshop/listingbot/internal/session"
	"github.com/theeshop/listingbot/internal/types"
	"github.com/theeshop/listingbot/internal/workflow"
)

// ErrAccountBusy is returned when a run is requested for an account that
// is already running one.
var ErrAccountBusy = errors.New("account is busy")

// RunStore persists run records.
type RunStore interface {
	SaveRun(ctx context.Context, r types.RunRecord) error
}

type Runner struct {
	Sessions       *session.Manager
	Store          RunStore
	DiagnosticsDir string
	Workflow       workflow.Config
	// Records receives every finished run if set.
	Records chan<- types.RunRecord

	mu   sync.Mutex
	busy map[string]bool
	wg   sync.WaitGroup
}

func New(sessions *session.Manager, store RunStore, diagnosticsDir string, cfg workflow.Config) *Runner {
	return &Runner{
		Sessions:       sessions,
		Store:          store,
		DiagnosticsDir: diagnosticsDir,
		Workflow:       cfg,
		busy:           map[string]bool{},
	}
}

func (r *Runner) reserve(account string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy == nil {
		r.busy = map[string]bool{}
	}
	if r.busy[account] {
		return false
	}
	r.busy[account] = true
	return true
}

func (r *Runner) free(account string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.busy, account)
}

// Busy reports whether account has a run in progress.
func (r *Runner) Busy(account string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy[account]
}

// Active returns the accounts with an open session.
func (r *Runner) Active() []string {
	return r.Sessions.Active()
}

// Run creates one listing for account and blocks until the workflow has
// finished. The returned error is only set when the run could not be
// started; a failed step is reported in the outcome.
func (r *Runner) Run(ctx context.Context, account string, in product.Input) (workflow.Outcome, error) {
	if !r.reserve(account) {
		return workflow.Outcome{}, fmt.Errorf("%w: %s", ErrAccountBusy, account)
	}
	defer r.free(account)
	return r.run(ctx, uuid.NewString(), account, in)
}

// Start reserves account and runs the workflow in the background. The
// run keeps going when ctx is cancelled; use Wait to let it finish.
func (r *Runner) Start(ctx context.Context, account string, in product.Input) (string, error) {
	if !r.reserve(account) {
		return "", fmt.Errorf("%w: %s", ErrAccountBusy, account)
	}
	id := uuid.NewString()
	pending := types.RunRecord{
		RunID:      id,
		AccountKey: account,
		Category:   in.CategoryQuery,
		Title:      in.Title,
		Status:     types.RunStatusRunning,
		StartedAt:  time.Now(),
	}
	r.save(ctx, pending)

	bg := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.free(account)
		if _, err := r.run(bg, id, account, in); err != nil {
			pending.Status = types.RunStatusAborted
			pending.Error = err.Error()
			pending.FinishedAt = time.Now()
			r.save(bg, pending)
		}
	}()
	return id, nil
}

// Wait blocks until all runs started with Start have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, id, account string, in product.Input) (workflow.Outcome, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("account", account))
	ctx = log.ContextWithLogger(ctx, logger)

	s, err := r.Sessions.Acquire(ctx, account)
	if err != nil {
		return workflow.Outcome{}, fmt.Errorf("failed to open session: %w", err)
	}
	w := workflow.New(account, s.Page, diagnostic.New(r.DiagnosticsDir, account, s.Page), r.Workflow)
	w.RunID = id
	out := w.Run(ctx, in)

	rec := out.Record(in)
	if out.Done() {
		logger.Info(fmt.Sprintf("run %s done in %v", id, out.FinishedAt.Sub(out.StartedAt).Round(time.Millisecond)))
	} else {
		logger.Warn(fmt.Sprintf("run %s aborted at %s, diagnostic: %s", id, rec.FailedStep, rec.Artifact))
	}
	r.save(ctx, rec)
	if r.Records != nil {
		select {
		case r.Records <- rec:
		case <-ctx.Done():
		}
	}
	return out, nil
}

func (r *Runner) save(ctx context.Context, rec types.RunRecord) {
	if r.Store == nil {
		return
	}
	if err := r.Store.SaveRun(ctx, rec); err != nil {
		log.LoggerFromContext(ctx).Error(fmt.Sprintf("failed to save run %s: %v", rec.RunID, err))
	}
}
