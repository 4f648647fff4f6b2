// Package orchestrator owns the exploration job lifecycle: it decides which
// untried menu path to explore next, bridges the out-of-band call-completion
// signal into a sequential workflow, and folds the leg ledger into the final
// context document.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/ivrmap/internal/composer"
	"github.com/kalambet/ivrmap/internal/ledger"
	"github.com/kalambet/ivrmap/internal/metrics"
	"github.com/kalambet/ivrmap/internal/notify"
	"github.com/kalambet/ivrmap/internal/storage"
	"github.com/kalambet/ivrmap/internal/telephony"
)

// Options bound the exploration workflow.
type Options struct {
	// MaxIterations caps the number of calls one job may place, so the loop
	// terminates even if the stopping condition never fires. Default 10.
	MaxIterations int
	// CallTimeout is the per-iteration deadline for the call-completion
	// signal. Default 5 minutes.
	CallTimeout time.Duration
	// JobTTL is how long a job stays queryable after creation. Default 24h.
	JobTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = 10
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 5 * time.Minute
	}
	if o.JobTTL <= 0 {
		o.JobTTL = 24 * time.Hour
	}
	return o
}

// Deps are the collaborators an Orchestrator drives. Jobs may be nil to run
// without durable snapshots; Metrics may be nil to disable metrics.
type Deps struct {
	Registry *Registry
	Ledger   *ledger.Store
	Dialer   telephony.Dialer
	Notifier *notify.Notifier
	Jobs     *storage.Store
	Metrics  metrics.Sink
}

// Orchestrator runs exploration jobs. One workflow goroutine per job; the
// public methods are safe to call concurrently with running workflows.
type Orchestrator struct {
	opts     Options
	registry *Registry
	ledger   *ledger.Store
	dialer   telephony.Dialer
	notifier *notify.Notifier
	jobs     *storage.Store
	metrics  metrics.Sink
	logger   *slog.Logger
}

// New creates an Orchestrator from deps and opts.
func New(deps Deps, opts Options) *Orchestrator {
	sink := deps.Metrics
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	return &Orchestrator{
		opts:     opts.withDefaults(),
		registry: deps.Registry,
		ledger:   deps.Ledger,
		dialer:   deps.Dialer,
		notifier: deps.Notifier,
		jobs:     deps.Jobs,
		metrics:  sink,
		logger:   slog.Default(),
	}
}

// Submit validates req, registers a new pending job, and starts its workflow
// goroutine. It returns the job id immediately; all exploration work happens
// asynchronously. A missing phone number fails synchronously with a
// *ValidationError and no job is created.
func (o *Orchestrator) Submit(req Request) (string, error) {
	if req.PhoneNumber == "" {
		return "", &ValidationError{Field: "phoneNumber", Reason: "is required"}
	}

	job := newJob(uuid.New().String(), req, o.opts.JobTTL)
	o.registry.Put(job)
	o.persist(job)
	o.metrics.JobSubmitted()

	o.notify(job, notify.EventJobCreated, map[string]any{"phoneNumber": req.PhoneNumber})
	o.logger.Info("exploration job created", "job_id", job.ID(), "phone_number", req.PhoneNumber)

	go o.run(job)
	return job.ID(), nil
}

// Status returns the latest committed snapshot for id. Jobs evicted from the
// registry are served from the durable store; unknown ids yield ErrNotFound.
func (o *Orchestrator) Status(id string) (Snapshot, error) {
	if job, ok := o.registry.Get(id); ok {
		return job.Snapshot(), nil
	}
	if o.jobs != nil {
		rec, err := o.jobs.GetJob(id)
		if err == nil {
			return snapshotFromRecord(rec), nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			o.logger.Warn("could not read job snapshot", "job_id", id, "error", err)
		}
	}
	return Snapshot{}, ErrNotFound
}

// List returns job snapshots newest-first. With a durable store configured it
// pages through persisted records, so evicted jobs still show up; otherwise it
// falls back to the live registry.
func (o *Orchestrator) List(limit, offset int) ([]Snapshot, error) {
	if o.jobs != nil {
		recs, err := o.jobs.ListJobs(limit, offset)
		if err != nil {
			return nil, fmt.Errorf("listing job records: %w", err)
		}
		snaps := make([]Snapshot, len(recs))
		for i, rec := range recs {
			// Resident jobs may be a transition ahead of their last
			// persisted snapshot; prefer the live view.
			if job, ok := o.registry.Get(rec.ID); ok {
				snaps[i] = job.Snapshot()
				continue
			}
			snaps[i] = snapshotFromRecord(rec)
		}
		return snaps, nil
	}

	snaps := make([]Snapshot, 0, o.registry.Len())
	for _, job := range o.registry.List() {
		snaps = append(snaps, job.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CreatedAt.After(snaps[j].CreatedAt) })
	if offset >= len(snaps) {
		return []Snapshot{}, nil
	}
	snaps = snaps[offset:]
	if limit > 0 && len(snaps) > limit {
		snaps = snaps[:limit]
	}
	return snaps, nil
}

// Cancel stops the job's workflow from waiting on or acting on further call
// results. An outstanding completion handle is rejected with ErrCancelled
// before the job transitions, so the awaiting iteration unblocks promptly.
// Already-terminal jobs return ErrTerminal; an in-flight external call is
// never torn down.
func (o *Orchestrator) Cancel(id string) error {
	job, ok := o.registry.Get(id)
	if !ok {
		return ErrNotFound
	}
	if !job.cancel() {
		return ErrTerminal
	}

	o.persist(job)
	o.metrics.JobFinished(string(StatusCancelled))
	o.notify(job, notify.EventCancelled, nil)
	o.logger.Info("exploration job cancelled", "job_id", id)
	return nil
}

// NotifyCallComplete is the external entry point the call-execution service
// invokes when a call ends. It fulfills the job's outstanding completion
// handle, if any; a signal for an unknown job or an already-resolved handle
// (late arrival after timeout or cancellation) is a safe no-op.
func (o *Orchestrator) NotifyCallComplete(id string, session telephony.SessionData) {
	job, ok := o.registry.Get(id)
	if !ok {
		o.logger.Debug("call completion for unknown job ignored", "job_id", id, "call_id", session.CallID)
		return
	}
	if !job.fulfillPending(session) {
		o.logger.Debug("call completion with no outstanding handle ignored", "job_id", id, "call_id", session.CallID)
	}
}

// RunSweeper evicts expired jobs from the registry and the durable store at
// the given interval, until ctx is cancelled.
func (o *Orchestrator) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if evicted := o.registry.Sweep(now.UTC()); evicted > 0 {
				o.logger.Info("evicted expired jobs", "count", evicted)
			}
			if o.jobs != nil {
				if _, err := o.jobs.DeleteExpired(now.UTC()); err != nil {
					o.logger.Warn("could not delete expired job records", "error", err)
				}
			}
		}
	}
}

// run drives one job from pending to a terminal state. All iteration errors
// are converted to job state here, at a single boundary: callers only ever
// observe status and error fields, never raw workflow errors.
func (o *Orchestrator) run(job *Job) {
	if !job.begin() {
		// Cancelled before the workflow started; nothing else to do.
		return
	}
	o.persist(job)

	legs, err := o.explore(job)
	switch {
	case errors.Is(err, ErrCancelled):
		// cancel() already transitioned the job and emitted the
		// cancellation notification; stop without further side effects.
		o.logger.Info("exploration stopped by cancellation", "job_id", job.ID())

	case err != nil:
		if job.fail(err.Error()) {
			o.persist(job)
			o.metrics.JobFinished(string(StatusFailed))
			o.notify(job, notify.EventFailed, map[string]any{"error": err.Error()})
			o.logger.Error("exploration failed", "job_id", job.ID(), "error", err)
		}

	default:
		o.notify(job, notify.EventBuildingContext, map[string]any{"legs": len(legs)})
		result := &Result{Context: composer.Summary(legs), Legs: legs}
		if job.complete(result) {
			o.persist(job)
			o.metrics.JobFinished(string(StatusCompleted))
			o.notify(job, notify.EventCompleted, map[string]any{"context": result.Context, "legs": len(legs)})
			o.logger.Info("exploration completed", "job_id", job.ID(), "legs", len(legs))
		}
	}
}

// explore is the iterate-call-document loop. It returns the final resynced
// leg set on normal exit, or the first error an iteration hit.
func (o *Orchestrator) explore(job *Job) ([]ledger.Leg, error) {
	var legs []ledger.Leg

	for iteration := 1; iteration <= o.opts.MaxIterations; iteration++ {
		if job.cancelled() {
			return nil, ErrCancelled
		}
		iterStart := time.Now()

		o.notify(job, notify.EventReadingMapping, map[string]any{"iteration": iteration})
		legs = o.ledger.Load()
		view := ledger.Derive(legs)
		if view.Exhausted && view.InProgress == nil {
			// Every path within the depth bound is documented.
			break
		}
		target := view.NextSuggested
		o.notify(job, notify.EventUpdatingContext, map[string]any{"target": target, "completedPaths": len(view.CompletedPaths)})

		session, err := o.placeCall(job, legs, target)
		if err != nil {
			return nil, err
		}

		o.notify(job, notify.EventEvaluatingOutcome, map[string]any{"callId": session.CallID, "outcome": session.Outcome})

		// The call service wrote to the ledger during the call; resync
		// before deciding whether anything is left to explore.
		legs = o.ledger.Load()
		o.metrics.IterationCompleted(time.Since(iterStart))
	}

	return legs, nil
}

// placeCall runs one call round trip: arm the completion handle, ask the
// dialer to start the call, and await the out-of-band completion signal.
func (o *Orchestrator) placeCall(job *Job, legs []ledger.Leg, target string) (telephony.SessionData, error) {
	handle, err := job.armCompletion()
	if err != nil {
		return telephony.SessionData{}, err
	}
	defer job.clearPending(handle)

	o.notify(job, notify.EventMakingCall, map[string]any{"target": target})

	sessionCtx := composer.SessionContext(legs, target, job.Request().PhoneNumber)
	callID, err := o.dialer.InitiateCall(context.Background(), job.Request().PhoneNumber, sessionCtx, telephony.CallMetadata{
		JobID:      job.ID(),
		TargetPath: target,
	})
	if err != nil {
		return telephony.SessionData{}, fmt.Errorf("initiating call for path %s: %w", target, err)
	}
	o.notify(job, notify.EventCallInitiated, map[string]any{"callId": callID, "target": target})

	waitStart := time.Now()
	session, err := handle.Await(o.opts.CallTimeout)
	waited := time.Since(waitStart)
	switch {
	case errors.Is(err, ErrCancelled):
		o.metrics.CallResolved(metrics.CallOutcomeCancelled, waited)
		return telephony.SessionData{}, err
	case errors.Is(err, ErrCallTimeout):
		o.metrics.CallResolved(metrics.CallOutcomeTimeout, waited)
		return telephony.SessionData{}, fmt.Errorf("call %s: %w", callID, err)
	case err != nil:
		return telephony.SessionData{}, err
	}

	o.metrics.CallResolved(metrics.CallOutcomeCompleted, waited)
	return session, nil
}

func (o *Orchestrator) notify(job *Job, event notify.Event, data any) {
	if o.notifier == nil {
		return
	}
	o.notifier.Notify(job.Request().CallbackURL, job.ID(), event, data)
}

// persist writes the job's current snapshot to the durable store. Snapshot
// write failures are logged, never escalated: they must not fail the job.
func (o *Orchestrator) persist(job *Job) {
	if o.jobs == nil {
		return
	}

	snap := job.Snapshot()
	rec := storage.JobRecord{
		ID:          snap.ID,
		PhoneNumber: job.Request().PhoneNumber,
		CallbackURL: job.Request().CallbackURL,
		Status:      string(snap.Status),
		Error:       snap.Error,
		CreatedAt:   snap.CreatedAt,
		UpdatedAt:   snap.UpdatedAt,
		ExpiresAt:   job.ExpiresAt(),
	}
	if snap.Result != nil {
		rec.ContextResult = snap.Result.Context
		if data, err := json.Marshal(snap.Result.Legs); err == nil {
			rec.LegsJSON = string(data)
		} else {
			o.logger.Warn("could not encode result legs", "job_id", snap.ID, "error", err)
		}
	}

	if err := o.jobs.UpsertJob(rec); err != nil {
		o.logger.Warn("could not persist job snapshot", "job_id", snap.ID, "error", err)
	}
}

func snapshotFromRecord(rec storage.JobRecord) Snapshot {
	snap := Snapshot{
		ID:        rec.ID,
		Status:    Status(rec.Status),
		Error:     rec.Error,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if rec.Status == string(StatusCompleted) {
		result := &Result{Context: rec.ContextResult}
		if rec.LegsJSON != "" {
			if err := json.Unmarshal([]byte(rec.LegsJSON), &result.Legs); err != nil {
				slog.Warn("could not decode stored legs", "job_id", rec.ID, "error", err)
			}
		}
		snap.Result = result
	}
	return snap
}
