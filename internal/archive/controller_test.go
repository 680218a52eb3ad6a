package archive

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/workflow"
)

// fakeClock implements workflow.Clock without real sleeping.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 7, 2, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return nil
}

func (f *fakeClock) sleepLog() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

// fakeTasks scripts export task lifecycles per log group. A group with no
// script completes on the first status check; a scripted group consumes
// its statuses in order, repeating the last one.
type fakeTasks struct {
	mu          sync.Mutex
	statuses    map[string][]TaskStatus
	noTaskID    map[string]bool
	createErr   error
	statusErr   error
	creates     map[string]int
	statusCalls int
	createOrder []string
	requests    []ExportRequest
	taskGroup   map[string]string
	seq         int
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{
		statuses:  make(map[string][]TaskStatus),
		noTaskID:  make(map[string]bool),
		creates:   make(map[string]int),
		taskGroup: make(map[string]string),
	}
}

func (f *fakeTasks) script(group string, statuses ...TaskStatus) {
	f.statuses[group] = statuses
}

func (f *fakeTasks) Create(ctx context.Context, req ExportRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates[req.LogGroup]++
	f.createOrder = append(f.createOrder, req.LogGroup)
	f.requests = append(f.requests, req)
	if f.createErr != nil {
		return "", f.createErr
	}
	if f.noTaskID[req.LogGroup] {
		return "", nil
	}
	f.seq++
	id := fmt.Sprintf("task-%04d", f.seq)
	f.taskGroup[id] = req.LogGroup
	return id, nil
}

func (f *fakeTasks) Status(ctx context.Context, taskID string) (TaskStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return "", f.statusErr
	}
	group := f.taskGroup[taskID]
	seq := f.statuses[group]
	if len(seq) == 0 {
		return StatusCompleted, nil
	}
	st := seq[0]
	if len(seq) > 1 {
		f.statuses[group] = seq[1:]
	}
	return st, nil
}

func testWindow() Window {
	return PreviousDay(time.Date(2024, 7, 2, 9, 0, 0, 0, time.UTC))
}

func TestExport_PendingRunningCompleted(t *testing.T) {
	tasks := newFakeTasks()
	tasks.script("/aws/lambda/app", StatusPending, StatusRunning, StatusCompleted)
	clock := newFakeClock()
	ctrl := NewController(tasks, workflow.NewRunner("run-test", workflow.NewMemoryJournal(), clock))

	err := ctrl.Export(context.Background(), "export#0", "/aws/lambda/app", testWindow(), "archive-bucket")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tasks.creates["/aws/lambda/app"] != 1 {
		t.Errorf("expected 1 create, got %d", tasks.creates["/aws/lambda/app"])
	}
	if tasks.statusCalls != 3 {
		t.Errorf("expected 3 status checks, got %d", tasks.statusCalls)
	}
	// PENDING waits short, RUNNING waits long, COMPLETED ends the run.
	want := []time.Duration{3 * time.Second, 10 * time.Second}
	if !reflect.DeepEqual(clock.sleepLog(), want) {
		t.Errorf("expected waits %v, got %v", want, clock.sleepLog())
	}
}

func TestExport_RequestFields(t *testing.T) {
	tasks := newFakeTasks()
	ctrl := NewController(tasks, workflow.NewRunner("run-test", workflow.NewMemoryJournal(), newFakeClock()))

	err := ctrl.Export(context.Background(), "export#0", "/svc/app.name", testWindow(), "archive-bucket")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks.requests) != 1 {
		t.Fatalf("expected 1 create request, got %d", len(tasks.requests))
	}

	req := tasks.requests[0]
	if req.Destination != "archive-bucket" {
		t.Errorf("expected destination archive-bucket, got %s", req.Destination)
	}
	if req.Prefix != "svc-app--name/2024/07/01/" {
		t.Errorf("unexpected destination prefix: %s", req.Prefix)
	}
	wantFrom := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if req.FromMillis != wantFrom {
		t.Errorf("expected from %d, got %d", wantFrom, req.FromMillis)
	}
	if req.ToMillis != wantFrom+24*60*60*1000-1 {
		t.Errorf("unexpected to: %d", req.ToMillis)
	}
	if !strings.HasPrefix(req.TaskName, "archive-svc-app--name-20240701-") {
		t.Errorf("unexpected task name: %s", req.TaskName)
	}
}

func TestExport_RetriesOnceAfterFailure(t *testing.T) {
	tasks := newFakeTasks()
	tasks.script("/aws/lambda/app", StatusFailed, StatusCompleted)
	clock := newFakeClock()
	ctrl := NewController(tasks, workflow.NewRunner("run-test", workflow.NewMemoryJournal(), clock))

	err := ctrl.Export(context.Background(), "export#0", "/aws/lambda/app", testWindow(), "archive-bucket")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if tasks.creates["/aws/lambda/app"] != 2 {
		t.Errorf("expected 2 creates (initial + retry), got %d", tasks.creates["/aws/lambda/app"])
	}
	// The only wait is the short gap between the failure and the retry.
	want := []time.Duration{3 * time.Second}
	if !reflect.DeepEqual(clock.sleepLog(), want) {
		t.Errorf("expected waits %v, got %v", want, clock.sleepLog())
	}
}

func TestExport_FailsAfterSecondFailure(t *testing.T) {
	tasks := newFakeTasks()
	tasks.script("/aws/lambda/app", StatusFailed)
	ctrl := NewController(tasks, workflow.NewRunner("run-test", workflow.NewMemoryJournal(), newFakeClock()))

	err := ctrl.Export(context.Background(), "export#0", "/aws/lambda/app", testWindow(), "archive-bucket")
	var failure *ExportFailureError
	if !errors.As(err, &failure) {
		t.Fatalf("expected ExportFailureError, got %v", err)
	}
	if failure.LogGroup != "/aws/lambda/app" {
		t.Errorf("unexpected log group in error: %s", failure.LogGroup)
	}
	if tasks.creates["/aws/lambda/app"] != 2 {
		t.Errorf("expected exactly 2 creates, got %d", tasks.creates["/aws/lambda/app"])
	}
}

func TestExport_NoTaskID(t *testing.T) {
	tasks := newFakeTasks()
	tasks.noTaskID["/aws/lambda/app"] = true
	ctrl := NewController(tasks, workflow.NewRunner("run-test", workflow.NewMemoryJournal(), newFakeClock()))

	err := ctrl.Export(context.Background(), "export#0", "/aws/lambda/app", testWindow(), "archive-bucket")
	var creation *ExportCreationError
	if !errors.As(err, &creation) {
		t.Fatalf("expected ExportCreationError, got %v", err)
	}
	// A missing task ID is fatal for the item, never retried.
	if tasks.creates["/aws/lambda/app"] != 1 {
		t.Errorf("expected 1 create, got %d", tasks.creates["/aws/lambda/app"])
	}
	if tasks.statusCalls != 0 {
		t.Errorf("expected no status checks, got %d", tasks.statusCalls)
	}
}

func TestExport_TerminalStatuses(t *testing.T) {
	for _, status := range []TaskStatus{StatusCompleted, StatusCancelled, StatusPendingCancel} {
		t.Run(string(status), func(t *testing.T) {
			tasks := newFakeTasks()
			tasks.script("/aws/lambda/app", status)
			clock := newFakeClock()
			ctrl := NewController(tasks, workflow.NewRunner("run-test", workflow.NewMemoryJournal(), clock))

			err := ctrl.Export(context.Background(), "export#0", "/aws/lambda/app", testWindow(), "archive-bucket")
			if err != nil {
				t.Fatalf("expected %s to finish the export, got %v", status, err)
			}
			if tasks.statusCalls != 1 {
				t.Errorf("expected 1 status check, got %d", tasks.statusCalls)
			}
			if len(clock.sleepLog()) != 0 {
				t.Errorf("expected no waits, got %v", clock.sleepLog())
			}
		})
	}
}

func TestExport_UnrecognizedStatusKeepsPolling(t *testing.T) {
	tasks := newFakeTasks()
	tasks.script("/aws/lambda/app", TaskStatus("EXPORT_LIMIT_BACKOFF"), StatusCompleted)
	clock := newFakeClock()
	ctrl := NewController(tasks, workflow.NewRunner("run-test", workflow.NewMemoryJournal(), clock))

	err := ctrl.Export(context.Background(), "export#0", "/aws/lambda/app", testWindow(), "archive-bucket")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{3 * time.Second}
	if !reflect.DeepEqual(clock.sleepLog(), want) {
		t.Errorf("expected a short wait for the unknown status, got %v", clock.sleepLog())
	}
}

func TestExport_CreateErrorPropagates(t *testing.T) {
	tasks := newFakeTasks()
	tasks.createErr = errors.New("AccessDeniedException")
	ctrl := NewController(tasks, workflow.NewRunner("run-test", workflow.NewMemoryJournal(), newFakeClock()))

	err := ctrl.Export(context.Background(), "export#0", "/aws/lambda/app", testWindow(), "archive-bucket")
	if err == nil || !errors.Is(err, tasks.createErr) {
		t.Fatalf("expected create error, got %v", err)
	}
}

func TestExport_ReplaysOnResume(t *testing.T) {
	tasks := newFakeTasks()
	tasks.script("/aws/lambda/app", StatusPending, StatusCompleted)
	journal := workflow.NewMemoryJournal()

	ctrl := NewController(tasks, workflow.NewRunner("run-1", journal, newFakeClock()))
	if err := ctrl.Export(context.Background(), "export#0", "/aws/lambda/app", testWindow(), "archive-bucket"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tasks.creates["/aws/lambda/app"] != 1 || tasks.statusCalls != 2 {
		t.Fatalf("unexpected call counts: creates=%d status=%d", tasks.creates["/aws/lambda/app"], tasks.statusCalls)
	}

	// A resumed invocation replays every step and wait from the journal
	// without touching the service again.
	resumeClock := newFakeClock()
	resumed := NewController(tasks, workflow.NewRunner("run-1", journal, resumeClock))
	if err := resumed.Export(context.Background(), "export#0", "/aws/lambda/app", testWindow(), "archive-bucket"); err != nil {
		t.Fatalf("unexpected error on resume: %v", err)
	}
	if tasks.creates["/aws/lambda/app"] != 1 {
		t.Errorf("expected no additional create on resume, got %d", tasks.creates["/aws/lambda/app"])
	}
	if tasks.statusCalls != 2 {
		t.Errorf("expected no additional status checks on resume, got %d", tasks.statusCalls)
	}
	if len(resumeClock.sleepLog()) != 0 {
		t.Errorf("expected no sleeps on resume, got %v", resumeClock.sleepLog())
	}
}

func TestExport_SuspendsNearDeadline(t *testing.T) {
	tasks := newFakeTasks()
	tasks.script("/aws/lambda/app", StatusRunning)
	ctrl := NewController(tasks, workflow.NewRunner("run-test", workflow.NewMemoryJournal(), newFakeClock()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := ctrl.Export(ctx, "export#0", "/aws/lambda/app", testWindow(), "archive-bucket")
	if !errors.Is(err, workflow.ErrSuspended) {
		t.Fatalf("expected ErrSuspended, got %v", err)
	}
}
