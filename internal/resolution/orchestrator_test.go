package resolution

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/kozaktomas/sightmatch/internal/config"
	"github.com/kozaktomas/sightmatch/internal/database"
	"github.com/kozaktomas/sightmatch/internal/database/mock"
	"github.com/kozaktomas/sightmatch/internal/notify"
)

type recordingSender struct {
	matches []notify.Match
	err     error
}

func (s *recordingSender) NotifyMatch(_ context.Context, m notify.Match) (bool, error) {
	s.matches = append(s.matches, m)
	if s.err != nil {
		return false, s.err
	}
	return true, nil
}

type fixture struct {
	registry *mock.MockRegistry
	store    *mock.MockEmbeddingStore
	sender   *recordingSender
	orch     *Orchestrator
}

// Query embeddings: alice is at cosine distance 0 from Alice's reference,
// bob at distance 0 from Bob's, stranger is orthogonal to both.
var (
	alice    = []float32{1, 0, 0}
	bob      = []float32{0, 1, 0}
	stranger = []float32{0, 0, 1}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := mock.NewMockRegistry()
	reg.AddCase("Alice", "9876543210", "has a mole on the left cheek")
	reg.AddCase("Bob", "", "scar on the right hand")

	f := &fixture{
		registry: reg,
		store:    mock.NewMockEmbeddingStore(map[string][]float32{"Alice": alice, "Bob": bob}),
		sender:   &recordingSender{},
	}
	orch, err := New(Deps{
		Registry:   f.registry,
		Embeddings: f.store,
		Recorder:   f.registry,
		Sender:     f.sender,
	}, config.DefaultPolicy(), nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.orch = orch
	return f
}

func fullReport(r Report) Report {
	r.Location = "Central Station"
	r.ReporterName = "Raj"
	r.ReporterPhone = "5550001111"
	return r
}

func TestResolve_TextOnlyAcceptance(t *testing.T) {
	f := newFixture(t)
	v, err := f.orch.Resolve(context.Background(), fullReport(Report{Details: "mole on left cheek, near the eye"}))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !v.MatchFound || v.Method != MethodTextual || v.Identity != "Alice" {
		t.Fatalf("verdict = %+v", v)
	}
	if v.TextScore < 90 || v.Confidence != v.TextScore/100 {
		t.Errorf("score = %v, confidence = %v", v.TextScore, v.Confidence)
	}
	if v.CaseID == "" {
		t.Error("case id not set")
	}
	if v.LastSeenLocation != database.UnknownLocation {
		t.Errorf("last seen = %q", v.LastSeenLocation)
	}
	if !v.NotificationSent || len(f.sender.matches) != 1 {
		t.Fatalf("notification sent = %v, calls = %d", v.NotificationSent, len(f.sender.matches))
	}
	want := notify.Match{Contact: "9876543210", Identity: "Alice", Location: "Central Station", ReporterName: "Raj", ReporterPhone: "5550001111"}
	if f.sender.matches[0] != want {
		t.Errorf("notify = %+v, want %+v", f.sender.matches[0], want)
	}
	wantTrace := []State{StateStart, StateBiometricAttempted, StateTextAttempted, StateDecided}
	if !slices.Equal(v.Trace, wantTrace) {
		t.Errorf("trace = %v", v.Trace)
	}
}

func TestResolve_BiometricPrecedence(t *testing.T) {
	f := newFixture(t)
	// Face says Bob, text says Alice.
	v, err := f.orch.Resolve(context.Background(), Report{Embedding: bob, Details: "mole on left cheek"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.Method != MethodBiometric || v.Identity != "Bob" {
		t.Fatalf("verdict = %+v, want biometric Bob", v)
	}
	if v.Corroborated {
		t.Error("Bob's scar must not corroborate a mole description")
	}
	if v.Confidence < 0.999 {
		t.Errorf("confidence = %v", v.Confidence)
	}
	// Bob has no contact.
	if v.NotificationSent || len(f.sender.matches) != 0 {
		t.Errorf("notification sent without contact")
	}
}

func TestResolve_Corroboration(t *testing.T) {
	f := newFixture(t)
	v, err := f.orch.Resolve(context.Background(), Report{Embedding: alice, Details: "mole on left cheek"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.Method != MethodBiometric || v.Identity != "Alice" || !v.Corroborated {
		t.Errorf("verdict = %+v, want corroborated biometric Alice", v)
	}
	if v.TextScore < 80 {
		t.Errorf("text score = %v", v.TextScore)
	}
}

func TestResolve_NoMarkerSkipsTextChannel(t *testing.T) {
	f := newFixture(t)
	f.registry.DescriptiveFeaturesError = errors.New("must not be called")
	f.registry.DescriptionError = errors.New("must not be called")

	v, err := f.orch.Resolve(context.Background(), Report{Embedding: alice, Details: "wearing a red jacket"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.Method != MethodBiometric || v.Corroborated || v.TextScore != 0 {
		t.Errorf("verdict = %+v", v)
	}
}

func TestResolve_FaceMissesTextMatches(t *testing.T) {
	f := newFixture(t)
	v, err := f.orch.Resolve(context.Background(), Report{Embedding: stranger, Details: "Mole on left cheek"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.Method != MethodTextual || v.Identity != "Alice" {
		t.Errorf("verdict = %+v, want textual Alice", v)
	}
}

func TestResolve_NoMatch(t *testing.T) {
	f := newFixture(t)
	v, err := f.orch.Resolve(context.Background(), fullReport(Report{
		Embedding:   stranger,
		Details:     "birthmark on the neck",
		ClaimedName: "Dana",
	}))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.MatchFound || v.Method != MethodNone || v.Identity != "" || v.NotificationSent {
		t.Errorf("verdict = %+v", v)
	}
	if !v.Recorded {
		t.Error("unmatched report with full reporter details must be recorded")
	}
	s := f.registry.Sightings()
	if len(s) != 1 || s[0].Name != "Dana" || s[0].Details != "birthmark on the neck" {
		t.Errorf("sightings = %+v", s)
	}
}

func TestVerdict_JSONKeepsLastSeenLocation(t *testing.T) {
	data, err := json.Marshal(Verdict{Method: MethodNone})
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	loc, ok := fields["last_seen_location"]
	if !ok {
		t.Fatalf("no-match verdict lacks last_seen_location: %s", data)
	}
	if loc != "" {
		t.Errorf("last_seen_location = %v, want empty string", loc)
	}
}

func TestResolve_EmptyStore(t *testing.T) {
	f := newFixture(t)
	f.store = mock.NewMockEmbeddingStore(nil)
	f.orch.deps.Embeddings = f.store

	v, err := f.orch.Resolve(context.Background(), Report{Embedding: alice})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.MatchFound {
		t.Errorf("verdict = %+v, want no match", v)
	}
}

func TestResolve_Persistence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Incomplete reporter details are not persisted.
	v, err := f.orch.Resolve(ctx, Report{Embedding: alice, Location: "Park"})
	if err != nil {
		t.Fatal(err)
	}
	if v.Recorded || f.registry.RecordSightingCalls != 0 {
		t.Fatal("incomplete report recorded")
	}

	v, err = f.orch.Resolve(ctx, fullReport(Report{Embedding: alice}))
	if err != nil {
		t.Fatal(err)
	}
	if !v.Recorded || v.LastSeenLocation != database.UnknownLocation {
		t.Errorf("first sighting: %+v", v)
	}
	if s := f.registry.Sightings(); len(s) != 1 || s[0].Name != "Alice" {
		t.Errorf("matched identity not recorded: %+v", s)
	}

	// The second report sees the first one as the last known location.
	r := fullReport(Report{Embedding: alice})
	r.Location = "Harbour"
	v, err = f.orch.Resolve(ctx, r)
	if err != nil {
		t.Fatal(err)
	}
	if v.LastSeenLocation != "Central Station" {
		t.Errorf("last seen = %q, want previous sighting", v.LastSeenLocation)
	}
	if got := f.sender.matches[len(f.sender.matches)-1].Location; got != "Harbour" {
		t.Errorf("notified location = %q, want current sighting", got)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reports := []Report{
		{Embedding: alice, Details: "mole on left cheek"},
		{Embedding: bob, Details: "mole on left cheek"},
		{Details: "scar on right hand"},
		{Embedding: stranger},
	}
	for _, r := range reports {
		first, err := f.orch.Resolve(ctx, r)
		if err != nil {
			t.Fatal(err)
		}
		second, err := f.orch.Resolve(ctx, r)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("verdicts differ:\n%+v\n%+v", first, second)
		}
	}
}

func TestResolve_CollaboratorFailures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		report Report
		inject func(f *fixture)
		op     string
	}{
		{"embedding store", Report{Embedding: alice}, func(f *fixture) { f.store.LoadError = boom }, "load embedding store"},
		{"features", Report{Details: "a mole"}, func(f *fixture) { f.registry.DescriptiveFeaturesError = boom }, "load descriptive features"},
		{"description", Report{Embedding: alice, Details: "a mole"}, func(f *fixture) { f.registry.DescriptionError = boom }, "load description"},
		{"case", Report{Embedding: alice}, func(f *fixture) { f.registry.CaseByNameError = boom }, "load case"},
		{"sightings", Report{Embedding: alice}, func(f *fixture) { f.registry.SightingsError = boom }, "load sightings"},
		{"contact", Report{Embedding: alice}, func(f *fixture) { f.registry.ContactError = boom }, "load contact"},
		{"recorder", fullReport(Report{}), func(f *fixture) { f.registry.RecordSightingError = boom }, "record sighting"},
		{"sender", Report{Embedding: alice}, func(f *fixture) { f.sender.err = boom }, "notify contact"},
		{"open circuit", Report{Embedding: alice}, func(f *fixture) { f.sender.err = notify.ErrCircuitOpen }, "notify contact"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.inject(f)
			v, err := f.orch.Resolve(context.Background(), tt.report)
			if v != nil {
				t.Errorf("verdict returned alongside error: %+v", v)
			}
			if !IsCollaboratorFailure(err) {
				t.Fatalf("err = %v, want collaborator failure", err)
			}
			var ce *CollaboratorError
			errors.As(err, &ce)
			if ce.Op != tt.op {
				t.Errorf("op = %q, want %q", ce.Op, tt.op)
			}
			if tt.name != "open circuit" && !errors.Is(err, boom) {
				t.Errorf("cause lost: %v", err)
			}
		})
	}
}

func TestResolve_SenderErrorAfterPersistence(t *testing.T) {
	f := newFixture(t)
	f.sender.err = errors.New("gateway down")
	if _, err := f.orch.Resolve(context.Background(), fullReport(Report{Embedding: alice})); err == nil {
		t.Fatal("expected error")
	}
	if len(f.registry.Sightings()) != 1 {
		t.Error("sighting must be recorded before notification is attempted")
	}
}

func TestHasMarker(t *testing.T) {
	f := newFixture(t)
	tests := map[string]bool{
		"MOLE on cheek":        true,
		"birthmark near ear":   true,
		"Distinguishing MARKS": true,
		"red jacket":           false,
		"":                     false,
	}
	for in, want := range tests {
		if got := f.orch.HasMarker(in); got != want {
			t.Errorf("HasMarker(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	reg := mock.NewMockRegistry()
	_, err := New(Deps{Registry: reg, Embeddings: mock.NewMockEmbeddingStore(nil), Recorder: reg}, config.DefaultPolicy(), nil, nil)
	if err == nil {
		t.Error("expected error for missing sender")
	}
}

func TestCollaboratorError(t *testing.T) {
	cause := errors.New("connection refused")
	err := collaboratorErr("load contact", cause)
	if err.Error() != "load contact: connection refused" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Unwrap lost the cause")
	}
	if IsCollaboratorFailure(cause) || IsCollaboratorFailure(nil) {
		t.Error("plain errors are not collaborator failures")
	}
}
