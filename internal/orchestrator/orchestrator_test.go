package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/ivrmap/internal/ledger"
	"github.com/kalambet/ivrmap/internal/notify"
	"github.com/kalambet/ivrmap/internal/planner"
	"github.com/kalambet/ivrmap/internal/storage"
	"github.com/kalambet/ivrmap/internal/telephony"
)

// fakeDialer stands in for the call-execution service. Unless silent, each
// InitiateCall spawns a goroutine that documents the target path as a
// COMPLETED leg and delivers the completion signal, the way the real service
// would out of band.
type fakeDialer struct {
	store  *ledger.Store
	signal func(jobID string, session telephony.SessionData)

	silent  bool
	failErr error

	mu    sync.Mutex
	calls []string
}

func (d *fakeDialer) InitiateCall(_ context.Context, _, _ string, meta telephony.CallMetadata) (string, error) {
	if d.failErr != nil {
		return "", d.failErr
	}

	d.mu.Lock()
	d.calls = append(d.calls, meta.TargetPath)
	callID := fmt.Sprintf("call-%d", len(d.calls))
	d.mu.Unlock()

	if d.silent {
		return callID, nil
	}

	go func() {
		legs := d.store.Load()
		_ = d.store.Upsert(ledger.Leg{
			LegNumber:       ledger.MaxLegNumber(legs) + 1,
			Path:            meta.TargetPath,
			ExplorationDate: time.Now().UTC(),
			MenuSequence: []ledger.Menu{{
				MenuID:           "menu-" + meta.TargetPath,
				AudioTranscript:  "Thank you for calling.",
				AvailableOptions: []string{"1: Sales", "2: Support"},
			}},
			FinalOutcome: "menu documented",
			Status:       ledger.StatusCompleted,
		})
		d.signal(meta.JobID, telephony.SessionData{
			CallID:     callID,
			TargetPath: meta.TargetPath,
			Outcome:    "documented",
		})
	}()
	return callID, nil
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *fakeDialer) callTargets() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

type testEnv struct {
	orch     *Orchestrator
	dialer   *fakeDialer
	registry *Registry
	ledger   *ledger.Store
	jobs     *storage.Store
	ledgerFn string
}

func newTestEnv(t *testing.T, opts Options, notifier *notify.Notifier) *testEnv {
	t.Helper()

	ledgerPath := filepath.Join(t.TempDir(), "ledger.json")
	store := ledger.NewStore(ledgerPath)

	jobs, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening job store: %v", err)
	}
	t.Cleanup(func() { jobs.Close() })

	registry := NewRegistry()
	dialer := &fakeDialer{store: store}
	orch := New(Deps{
		Registry: registry,
		Ledger:   store,
		Dialer:   dialer,
		Notifier: notifier,
		Jobs:     jobs,
	}, opts)
	dialer.signal = orch.NotifyCallComplete

	return &testEnv{
		orch:     orch,
		dialer:   dialer,
		registry: registry,
		ledger:   store,
		jobs:     jobs,
		ledgerFn: ledgerPath,
	}
}

// waitForStatus polls until the job reaches want, failing fast if it settles
// in a different terminal state instead.
func waitForStatus(t *testing.T, o *Orchestrator, id string, want Status) Snapshot {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := o.Status(id)
		if err != nil {
			t.Fatalf("Status(%s): %v", id, err)
		}
		if snap.Status == want {
			return snap
		}
		if snap.Status.Terminal() {
			t.Fatalf("job settled as %s (error %q), want %s", snap.Status, snap.Error, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for job %s to reach %s", id, want)
	return Snapshot{}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSubmit_RequiresPhoneNumber(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	id, err := env.orch.Submit(Request{})
	if err == nil {
		t.Fatal("Submit accepted a request without a phone number")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if verr.Field != "phoneNumber" {
		t.Errorf("Field = %q, want %q", verr.Field, "phoneNumber")
	}
	if id != "" {
		t.Errorf("got job id %q for a rejected request", id)
	}
	if env.registry.Len() != 0 {
		t.Errorf("registry holds %d jobs after a rejected submission", env.registry.Len())
	}
}

func TestSubmit_RunsExplorationToCompletion(t *testing.T) {
	env := newTestEnv(t, Options{MaxIterations: 3, CallTimeout: 2 * time.Second}, nil)

	id, err := env.orch.Submit(Request{PhoneNumber: "+15551234567"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := waitForStatus(t, env.orch, id, StatusCompleted)
	if snap.Result == nil {
		t.Fatal("completed job has no result")
	}
	if snap.Result.Context == "" {
		t.Error("completed job has an empty context document")
	}
	if len(snap.Result.Legs) != 3 {
		t.Errorf("result holds %d legs, want 3", len(snap.Result.Legs))
	}

	// The iteration cap allowed three calls; canonical order starts at the
	// root and walks single digits upward.
	want := []string{planner.RootPath, "1", "2"}
	got := env.dialer.callTargets()
	if len(got) != len(want) {
		t.Fatalf("placed %d calls %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d targeted %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExplore_ResumesInProgressLeg(t *testing.T) {
	env := newTestEnv(t, Options{MaxIterations: 1, CallTimeout: 2 * time.Second}, nil)

	if err := env.ledger.Upsert(ledger.Leg{
		LegNumber:       1,
		Path:            "3",
		ExplorationDate: time.Now().UTC(),
		FinalOutcome:    "call dropped mid-menu",
		Status:          ledger.StatusInProgress,
		NextTarget:      "3-1",
	}); err != nil {
		t.Fatalf("seeding ledger: %v", err)
	}

	id, err := env.orch.Submit(Request{PhoneNumber: "+15551234567"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForStatus(t, env.orch, id, StatusCompleted)

	targets := env.dialer.callTargets()
	if len(targets) != 1 || targets[0] != "3-1" {
		t.Errorf("call targets = %v, want the resumable leg's nextTarget [3-1]", targets)
	}
}

func TestExplore_StopsWhenEveryPathIsDocumented(t *testing.T) {
	env := newTestEnv(t, Options{MaxIterations: 5, CallTimeout: 2 * time.Second}, nil)
	seedExhaustedLedger(t, env.ledgerFn)

	id, err := env.orch.Submit(Request{PhoneNumber: "+15551234567"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := waitForStatus(t, env.orch, id, StatusCompleted)
	if n := env.dialer.callCount(); n != 0 {
		t.Errorf("placed %d calls against a fully documented tree, want 0", n)
	}
	if snap.Result == nil || snap.Result.Context == "" {
		t.Error("exhausted-tree completion should still synthesize a context document")
	}
}

// seedExhaustedLedger writes a ledger where every path within the planner's
// depth bound is COMPLETED, directly as a file to avoid hundreds of rewrites.
func seedExhaustedLedger(t *testing.T, path string) {
	t.Helper()

	paths := []string{planner.RootPath}
	for a := 1; a <= 9; a++ {
		paths = append(paths, fmt.Sprintf("%d", a))
		for b := 1; b <= 9; b++ {
			paths = append(paths, fmt.Sprintf("%d-%d", a, b))
			for c := 1; c <= 9; c++ {
				paths = append(paths, fmt.Sprintf("%d-%d-%d", a, b, c))
			}
		}
	}

	legs := make([]ledger.Leg, 0, len(paths))
	for i, p := range paths {
		legs = append(legs, ledger.Leg{
			LegNumber:       i + 1,
			Path:            p,
			ExplorationDate: time.Now().UTC(),
			FinalOutcome:    "menu documented",
			Status:          ledger.StatusCompleted,
		})
	}

	data, err := json.Marshal(legs)
	if err != nil {
		t.Fatalf("encoding seed legs: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing seed ledger: %v", err)
	}
}

func TestCancel_UnblocksAwaitingIteration(t *testing.T) {
	env := newTestEnv(t, Options{MaxIterations: 3, CallTimeout: 30 * time.Second}, nil)
	env.dialer.silent = true

	id, err := env.orch.Submit(Request{PhoneNumber: "+15551234567"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, "first call to be placed", func() bool { return env.dialer.callCount() == 1 })

	if err := env.orch.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	snap := waitForStatus(t, env.orch, id, StatusCancelled)
	if snap.Error != "" {
		t.Errorf("cancelled job carries error %q, want none", snap.Error)
	}

	if err := env.orch.Cancel(id); !errors.Is(err, ErrTerminal) {
		t.Errorf("second Cancel = %v, want ErrTerminal", err)
	}

	// A completion signal arriving after cancellation must change nothing.
	env.orch.NotifyCallComplete(id, telephony.SessionData{CallID: "call-1", Outcome: "too late"})
	time.Sleep(20 * time.Millisecond)
	snap, err = env.orch.Status(id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if snap.Status != StatusCancelled {
		t.Errorf("status after late completion = %s, want %s", snap.Status, StatusCancelled)
	}
	if n := env.dialer.callCount(); n != 1 {
		t.Errorf("placed %d calls after cancellation, want 1", n)
	}
}

func TestCallTimeout_FailsJob(t *testing.T) {
	env := newTestEnv(t, Options{MaxIterations: 3, CallTimeout: 25 * time.Millisecond}, nil)
	env.dialer.silent = true

	id, err := env.orch.Submit(Request{PhoneNumber: "+15551234567"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := waitForStatus(t, env.orch, id, StatusFailed)
	if !strings.Contains(snap.Error, ErrCallTimeout.Error()) {
		t.Errorf("error = %q, want it to mention the call timeout", snap.Error)
	}
	if n := env.dialer.callCount(); n != 1 {
		t.Errorf("placed %d calls, want the loop to stop after the first timeout", n)
	}
}

func TestDialerError_FailsJob(t *testing.T) {
	env := newTestEnv(t, Options{MaxIterations: 3, CallTimeout: 2 * time.Second}, nil)
	env.dialer.failErr = errors.New("dialer service returned 503")

	id, err := env.orch.Submit(Request{PhoneNumber: "+15551234567"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := waitForStatus(t, env.orch, id, StatusFailed)
	if !strings.Contains(snap.Error, "503") {
		t.Errorf("error = %q, want the dialer failure surfaced", snap.Error)
	}
}

func TestStatus_UnknownJob(t *testing.T) {
	env := newTestEnv(t, Options{}, nil)

	if _, err := env.orch.Status("no-such-job"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Status = %v, want ErrNotFound", err)
	}
	if err := env.orch.Cancel("no-such-job"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel = %v, want ErrNotFound", err)
	}

	// A completion signal for an unknown job is ignored, not an error.
	env.orch.NotifyCallComplete("no-such-job", telephony.SessionData{CallID: "stray"})
}

func TestStatus_ServedFromStoreAfterEviction(t *testing.T) {
	env := newTestEnv(t, Options{MaxIterations: 1, CallTimeout: 2 * time.Second}, nil)

	id, err := env.orch.Submit(Request{PhoneNumber: "+15551234567"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	want := waitForStatus(t, env.orch, id, StatusCompleted)

	if evicted := env.registry.Sweep(time.Now().UTC().Add(48 * time.Hour)); evicted != 1 {
		t.Fatalf("Sweep evicted %d jobs, want 1", evicted)
	}

	got, err := env.orch.Status(id)
	if err != nil {
		t.Fatalf("Status after eviction: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("status = %s, want %s", got.Status, StatusCompleted)
	}
	if got.Result == nil || got.Result.Context != want.Result.Context {
		t.Error("durable snapshot lost the synthesized context document")
	}
	if got.Result != nil && len(got.Result.Legs) != len(want.Result.Legs) {
		t.Errorf("durable snapshot holds %d legs, want %d", len(got.Result.Legs), len(want.Result.Legs))
	}
}

func TestWorkflow_EmitsLifecycleEvents(t *testing.T) {
	var mu sync.Mutex
	var events []notify.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p notify.Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decoding webhook payload: %v", err)
		}
		mu.Lock()
		events = append(events, p.Event)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := notify.NewNotifier("test-secret", nil)
	env := newTestEnv(t, Options{MaxIterations: 1, CallTimeout: 2 * time.Second}, notifier)

	id, err := env.orch.Submit(Request{PhoneNumber: "+15551234567", CallbackURL: srv.URL})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForStatus(t, env.orch, id, StatusCompleted)

	seen := func(want notify.Event) bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == want {
				return true
			}
		}
		return false
	}
	for _, want := range []notify.Event{
		notify.EventJobCreated,
		notify.EventReadingMapping,
		notify.EventMakingCall,
		notify.EventCallInitiated,
		notify.EventEvaluatingOutcome,
		notify.EventBuildingContext,
		notify.EventCompleted,
	} {
		want := want
		waitFor(t, string(want)+" event", func() bool { return seen(want) })
	}
}

func TestRegistry_SweepKeepsUnexpiredJobs(t *testing.T) {
	r := NewRegistry()
	fresh := newJob("fresh", Request{PhoneNumber: "+15550000001"}, time.Hour)
	stale := newJob("stale", Request{PhoneNumber: "+15550000002"}, time.Millisecond)
	r.Put(fresh)
	r.Put(stale)

	if evicted := r.Sweep(time.Now().UTC().Add(time.Second)); evicted != 1 {
		t.Fatalf("Sweep evicted %d jobs, want 1", evicted)
	}
	if _, ok := r.Get("fresh"); !ok {
		t.Error("unexpired job was evicted")
	}
	if _, ok := r.Get("stale"); ok {
		t.Error("expired job survived the sweep")
	}
}
