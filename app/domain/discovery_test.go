package domain

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

// fakeProvider is an in-memory RepositoryProvider that records how often
// each enumeration level was hit, so tests can assert the literal
// short-circuit and laziness contracts.
type fakeProvider struct {
	name        string
	hasProjects bool
	orgs        []string
	// projects is keyed by org; repos by "org/project".
	projects map[string][]string
	repos    map[string][]RepositoryHandle
	authErr  error
	repoErr  error

	mu           sync.Mutex
	orgCalls     int
	projectCalls int
	repoCalls    int
	yielded      int
}

func (f *fakeProvider) Name() string      { return f.name }
func (f *fakeProvider) HasProjects() bool { return f.hasProjects }

func (f *fakeProvider) Authenticate(context.Context) error { return f.authErr }

func (f *fakeProvider) Organizations(context.Context) ([]string, error) {
	f.mu.Lock()
	f.orgCalls++
	f.mu.Unlock()
	return f.orgs, nil
}

func (f *fakeProvider) Projects(_ context.Context, org string) ([]string, error) {
	f.mu.Lock()
	f.projectCalls++
	f.mu.Unlock()
	if !f.hasProjects {
		return []string{""}, nil
	}
	return f.projects[org], nil
}

func (f *fakeProvider) Repositories(_ context.Context, org, project string, yield func(RepositoryHandle) bool) error {
	f.mu.Lock()
	f.repoCalls++
	f.mu.Unlock()
	if f.repoErr != nil {
		return f.repoErr
	}
	repos, ok := f.repos[org+"/"+project]
	if !ok {
		return &NotFoundError{Resource: org + "/" + project}
	}
	for _, h := range repos {
		f.mu.Lock()
		f.yielded++
		f.mu.Unlock()
		if !yield(h) {
			return nil
		}
	}
	return nil
}

func (f *fakeProvider) AuthenticatedCloneURL(h RepositoryHandle) (string, error) {
	return h.CloneURL + "?token=s3cret", nil
}

func (f *fakeProvider) counts() (orgs, projects, repos int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orgCalls, f.projectCalls, f.repoCalls
}

func handle(provider, org, project, name string, disabled bool) RepositoryHandle {
	return RepositoryHandle{
		ProviderName:  provider,
		Organization:  org,
		Project:       project,
		Name:          name,
		CloneURL:      "https://example.com/" + org + "/" + name + ".git",
		DefaultBranch: "main",
		IsDisabled:    disabled,
	}
}

// adoTestProvider mirrors the layout used throughout the spec scenarios:
// a 3-level provider with organization pdidev, project CSE, and repos CSE
// (enabled) plus legacy (disabled).
func adoTestProvider() *fakeProvider {
	return &fakeProvider{
		name:        "ado-test",
		hasProjects: true,
		orgs:        []string{"pdidev"},
		projects:    map[string][]string{"pdidev": {"CSE", "Platform"}},
		repos: map[string][]RepositoryHandle{
			"pdidev/CSE": {
				handle("ado-test", "pdidev", "CSE", "CSE", false),
				handle("ado-test", "pdidev", "CSE", "legacy", true),
			},
			"pdidev/Platform": {
				handle("ado-test", "pdidev", "Platform", "infra", false),
			},
		},
	}
}

func mustPattern(t *testing.T, raw string) Pattern {
	t.Helper()
	p, err := CompilePattern(raw)
	if err != nil {
		t.Fatalf("compile %q: %v", raw, err)
	}
	return p
}

func TestDiscover_LiteralShortCircuit(t *testing.T) {
	f := adoTestProvider()

	stream := Discover(context.Background(), []RepositoryProvider{f}, mustPattern(t, "pdidev/CSE/*"))
	got := stream.Collect(context.Background(), 0)

	if len(got) != 2 {
		t.Fatalf("expected 2 handles, got %d: %v", len(got), got)
	}
	orgs, projects, repos := f.counts()
	if orgs != 0 || projects != 0 {
		t.Fatalf("literal segments must not enumerate: orgCalls=%d projectCalls=%d", orgs, projects)
	}
	if repos != 1 {
		t.Fatalf("expected exactly 1 repository listing, got %d", repos)
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
}

func TestDiscover_DisabledRepositoriesAreSurfaced(t *testing.T) {
	f := adoTestProvider()

	got := Discover(context.Background(), []RepositoryProvider{f}, mustPattern(t, "pdidev/CSE/*")).
		Collect(context.Background(), 0)

	var disabled []string
	for _, h := range got {
		if h.IsDisabled {
			disabled = append(disabled, h.Name)
		}
	}
	if len(disabled) != 1 || disabled[0] != "legacy" {
		t.Fatalf("expected disabled repo legacy to be surfaced, got %v", disabled)
	}
}

func TestDiscover_WildcardEnumeratesAndFilters(t *testing.T) {
	f := adoTestProvider()

	got := Discover(context.Background(), []RepositoryProvider{f}, mustPattern(t, "*/*/leg*")).
		Collect(context.Background(), 0)

	if len(got) != 1 || got[0].Name != "legacy" {
		t.Fatalf("expected only legacy, got %v", got)
	}
	orgs, projects, repos := f.counts()
	if orgs != 1 || projects != 1 {
		t.Fatalf("wildcard segments must enumerate once: orgCalls=%d projectCalls=%d", orgs, projects)
	}
	if repos != 2 {
		t.Fatalf("expected a listing per project, got %d", repos)
	}
}

func TestDiscover_EmptyProviderDoesNotError(t *testing.T) {
	full := &fakeProvider{
		name: "busy",
		orgs: []string{"acme"},
		repos: map[string][]RepositoryHandle{
			"acme/": {
				handle("busy", "acme", "", "r1", false),
				handle("busy", "acme", "", "r2", false),
				handle("busy", "acme", "", "r3", false),
				handle("busy", "acme", "", "r4", false),
				handle("busy", "acme", "", "r5", false),
			},
		},
	}
	empty := &fakeProvider{
		name:  "idle",
		orgs:  []string{"ghost"},
		repos: map[string][]RepositoryHandle{"ghost/": {}},
	}

	stream := Discover(context.Background(), []RepositoryProvider{full, empty}, mustPattern(t, "*/*/*"))
	got := stream.Collect(context.Background(), 0)

	if len(got) != 5 {
		t.Fatalf("expected 5 handles, got %d", len(got))
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w := stream.Warnings(); len(w) != 0 {
		t.Fatalf("unexpected warnings: %v", w)
	}
}

func TestDiscover_RoundRobinAcrossProviders(t *testing.T) {
	p1 := &fakeProvider{
		name: "one",
		orgs: []string{"a"},
		repos: map[string][]RepositoryHandle{"a/": {
			handle("one", "a", "", "r1", false),
			handle("one", "a", "", "r2", false),
			handle("one", "a", "", "r3", false),
		}},
	}
	p2 := &fakeProvider{
		name: "two",
		orgs: []string{"b"},
		repos: map[string][]RepositoryHandle{"b/": {
			handle("two", "b", "", "s1", false),
			handle("two", "b", "", "s2", false),
			handle("two", "b", "", "s3", false),
		}},
	}

	got := Discover(context.Background(), []RepositoryProvider{p1, p2}, mustPattern(t, "*/*/*")).
		Collect(context.Background(), 2)

	if len(got) != 2 {
		t.Fatalf("expected 2 handles, got %d", len(got))
	}
	if got[0].ProviderName == got[1].ProviderName {
		t.Fatalf("expected a round-robin mix, got both from %s", got[0].ProviderName)
	}
}

func TestDiscover_ProviderFailureIsIsolated(t *testing.T) {
	bad := &fakeProvider{
		name:    "bad",
		authErr: &AuthError{Provider: "bad", Err: errors.New("401")},
	}
	good := &fakeProvider{
		name: "good",
		orgs: []string{"acme"},
		repos: map[string][]RepositoryHandle{"acme/": {
			handle("good", "acme", "", "kept", false),
		}},
	}

	stream := Discover(context.Background(), []RepositoryProvider{bad, good}, mustPattern(t, "*/*/*"))
	got := stream.Collect(context.Background(), 0)

	if len(got) != 1 || got[0].ProviderName != "good" {
		t.Fatalf("expected the healthy provider's repo, got %v", got)
	}
	warnings := stream.Warnings()
	if len(warnings) != 1 || warnings[0].Provider != "bad" {
		t.Fatalf("expected one warning for provider bad, got %v", warnings)
	}
}

func TestDiscover_FullyLiteralNoMatchIsNotFound(t *testing.T) {
	f := adoTestProvider()

	stream := Discover(context.Background(), []RepositoryProvider{f}, mustPattern(t, "pdidev/CSE/nosuch"))
	if got := stream.Collect(context.Background(), 0); len(got) != 0 {
		t.Fatalf("expected no handles, got %v", got)
	}

	var nf *NotFoundError
	if !errors.As(stream.Err(), &nf) {
		t.Fatalf("expected NotFoundError, got %v", stream.Err())
	}
}

func TestDiscover_WildcardNoMatchIsNotAnError(t *testing.T) {
	f := adoTestProvider()

	stream := Discover(context.Background(), []RepositoryProvider{f}, mustPattern(t, "pdidev/CSE/nosuch*"))
	if got := stream.Collect(context.Background(), 0); len(got) != 0 {
		t.Fatalf("expected no handles, got %v", got)
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("wildcard zero matches must not error, got %v", err)
	}
}

func TestDiscover_Idempotent(t *testing.T) {
	names := func(handles []RepositoryHandle) []string {
		out := make([]string, 0, len(handles))
		for _, h := range handles {
			out = append(out, h.String())
		}
		sort.Strings(out)
		return out
	}

	first := Discover(context.Background(), []RepositoryProvider{adoTestProvider()}, mustPattern(t, "pdidev/*/*")).
		Collect(context.Background(), 0)
	second := Discover(context.Background(), []RepositoryProvider{adoTestProvider()}, mustPattern(t, "pdidev/*/*")).
		Collect(context.Background(), 0)

	a, b := names(first), names(second)
	if len(a) != 3 || len(a) != len(b) {
		t.Fatalf("expected identical sets of 3, got %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("discovery not idempotent: %v vs %v", a, b)
		}
	}
}

func TestDiscover_StopLimitsEnumeration(t *testing.T) {
	many := make([]RepositoryHandle, 100)
	for i := range many {
		many[i] = handle("big", "acme", "", "repo-"+string(rune('a'+i%26)), false)
	}
	f := &fakeProvider{
		name:  "big",
		orgs:  []string{"acme"},
		repos: map[string][]RepositoryHandle{"acme/": many},
	}

	stream := Discover(context.Background(), []RepositoryProvider{f}, mustPattern(t, "*/*/*"))
	got := stream.Collect(context.Background(), 1)
	if len(got) != 1 {
		t.Fatalf("expected 1 handle, got %d", len(got))
	}

	// Give the producer a moment to observe the stop signal.
	time.Sleep(20 * time.Millisecond)
	f.mu.Lock()
	yielded := f.yielded
	f.mu.Unlock()
	if yielded > 5 {
		t.Fatalf("consumer pulled 1 item but provider enumerated %d", yielded)
	}
}
