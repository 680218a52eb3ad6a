package archive

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/gammarers/aws-daily-cloudwatch-logs-archiver/internal/workflow"
)

// fakeDiscoverer serves scripted discovery pages keyed by page token and
// records the tokens it was called with.
type fakeDiscoverer struct {
	mu     sync.Mutex
	pages  map[string]TagPage
	tokens []string
	err    error
}

func newFakeDiscoverer() *fakeDiscoverer {
	return &fakeDiscoverer{pages: make(map[string]TagPage)}
}

func (f *fakeDiscoverer) LogGroupsByTag(ctx context.Context, key string, values []string, pageToken string) (TagPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, pageToken)
	if f.err != nil {
		return TagPage{}, f.err
	}
	return f.pages[pageToken], nil
}

func (f *fakeDiscoverer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tokens)
}

func testRunner(journal workflow.Journal) *workflow.Runner {
	return workflow.NewRunner("run-test", journal, newFakeClock())
}

func TestResolve_TagPagination(t *testing.T) {
	disco := newFakeDiscoverer()
	disco.pages[""] = TagPage{
		ARNs: []string{
			"arn:aws:logs:us-east-1:123456789012:log-group:alpha",
			"arn:aws:logs:us-east-1:123456789012:log-group:beta",
		},
		NextToken: "tok1",
	}
	disco.pages["tok1"] = TagPage{
		ARNs: []string{"arn:aws:logs:us-east-1:123456789012:log-group:gamma"},
	}

	r := NewResolver(disco, testRunner(workflow.NewMemoryJournal()))
	names, err := r.Resolve(context.Background(), TriggerInput{
		Kind:      TriggerTagSelector,
		TagKey:    "archive",
		TagValues: []string{"daily"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"alpha", "beta", "gamma"}) {
		t.Errorf("unexpected names: %v", names)
	}
	if !reflect.DeepEqual(disco.tokens, []string{"", "tok1"}) {
		t.Errorf("unexpected page tokens: %v", disco.tokens)
	}
}

func TestResolve_PreservesDuplicates(t *testing.T) {
	disco := newFakeDiscoverer()
	arn := "arn:aws:logs:us-east-1:123456789012:log-group:alpha"
	disco.pages[""] = TagPage{ARNs: []string{arn, arn}}

	r := NewResolver(disco, testRunner(workflow.NewMemoryJournal()))
	names, err := r.Resolve(context.Background(), TriggerInput{
		Kind:      TriggerTagSelector,
		TagKey:    "archive",
		TagValues: []string{"daily"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"alpha", "alpha"}) {
		t.Errorf("expected duplicates preserved, got %v", names)
	}
}

func TestResolve_NoMatches(t *testing.T) {
	disco := newFakeDiscoverer()
	disco.pages[""] = TagPage{}

	r := NewResolver(disco, testRunner(workflow.NewMemoryJournal()))
	names, err := r.Resolve(context.Background(), TriggerInput{
		Kind:      TriggerTagSelector,
		TagKey:    "archive",
		TagValues: []string{"daily"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected empty worklist, got %v", names)
	}
}

func TestResolve_SelectorValidation(t *testing.T) {
	tests := []struct {
		name    string
		trigger TriggerInput
	}{
		{"empty tag key", TriggerInput{Kind: TriggerTagSelector, TagValues: []string{"daily"}}},
		{"empty tag values", TriggerInput{Kind: TriggerTagSelector, TagKey: "archive"}},
		{"empty log group", TriggerInput{Kind: TriggerSingleSource}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			disco := newFakeDiscoverer()
			r := NewResolver(disco, testRunner(workflow.NewMemoryJournal()))

			_, err := r.Resolve(context.Background(), tt.trigger)
			var inputErr *InputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("expected InputError, got %v", err)
			}
			if disco.calls() != 0 {
				t.Errorf("expected no discovery calls, got %d", disco.calls())
			}
		})
	}
}

func TestResolve_SingleSource(t *testing.T) {
	disco := newFakeDiscoverer()
	r := NewResolver(disco, testRunner(workflow.NewMemoryJournal()))

	names, err := r.Resolve(context.Background(), TriggerInput{
		Kind:     TriggerSingleSource,
		LogGroup: "/aws/lambda/app",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"/aws/lambda/app"}) {
		t.Errorf("unexpected names: %v", names)
	}
	if disco.calls() != 0 {
		t.Errorf("expected no discovery calls for single source, got %d", disco.calls())
	}
}

func TestResolve_DiscoveryError(t *testing.T) {
	disco := newFakeDiscoverer()
	disco.err = errors.New("throttled")

	r := NewResolver(disco, testRunner(workflow.NewMemoryJournal()))
	_, err := r.Resolve(context.Background(), TriggerInput{
		Kind:      TriggerTagSelector,
		TagKey:    "archive",
		TagValues: []string{"daily"},
	})
	if err == nil || !errors.Is(err, disco.err) {
		t.Fatalf("expected discovery error, got %v", err)
	}
}

func TestResolve_ReplaysPagesOnResume(t *testing.T) {
	disco := newFakeDiscoverer()
	disco.pages[""] = TagPage{
		ARNs:      []string{"arn:aws:logs:us-east-1:123456789012:log-group:alpha"},
		NextToken: "tok1",
	}
	disco.pages["tok1"] = TagPage{
		ARNs: []string{"arn:aws:logs:us-east-1:123456789012:log-group:beta"},
	}

	journal := workflow.NewMemoryJournal()
	trigger := TriggerInput{Kind: TriggerTagSelector, TagKey: "archive", TagValues: []string{"daily"}}

	first, err := NewResolver(disco, testRunner(journal)).Resolve(context.Background(), trigger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A resumed run replays both pages from the journal.
	second, err := NewResolver(disco, testRunner(journal)).Resolve(context.Background(), trigger)
	if err != nil {
		t.Fatalf("unexpected error on resume: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("resumed worklist differs: %v vs %v", first, second)
	}
	if disco.calls() != 2 {
		t.Errorf("expected 2 discovery calls total, got %d", disco.calls())
	}
}
