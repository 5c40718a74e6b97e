package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/sightmatch/internal/config"
	"github.com/kozaktomas/sightmatch/internal/logging"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

func TestFormatE164(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		cc    string
		want  string
	}{
		{"already international", "+44 20 7946 0958", "91", "+44 20 7946 0958"},
		{"ten digits default code", "9876543210", "91", "+919876543210"},
		{"ten digits with separators", "(987) 654-3210", "91", "+919876543210"},
		{"ten digits other code", "5551234567", "+1", "+15551234567"},
		{"ten digits empty code", "9876543210", "", "+919876543210"},
		{"twelve digits india", "919876543210", "91", "+919876543210"},
		{"eleven digits north america", "15551234567", "91", "+15551234567"},
		{"unknown length", "12345", "91", "+12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatE164(tt.phone, tt.cc); got != tt.want {
				t.Errorf("FormatE164(%q, %q) = %q, want %q", tt.phone, tt.cc, got, tt.want)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	msg := Message(Match{Identity: "Alice", Location: "Central Station", ReporterName: "Raj", ReporterPhone: "555"})
	for _, part := range []string{"Alice has been found", "Current location: Central Station", "Found by: Raj", "Contact finder at: 555"} {
		if !strings.Contains(msg, part) {
			t.Errorf("message %q missing %q", msg, part)
		}
	}

	msg = Message(Match{Identity: "Bob"})
	for _, part := range []string{"Current location: Unknown location", "Found by: Anonymous", "Contact finder at: Unknown"} {
		if !strings.Contains(msg, part) {
			t.Errorf("message %q missing default %q", msg, part)
		}
	}
}

func TestNew_DisabledIsNoop(t *testing.T) {
	s, err := New(config.TwilioConfig{AccountSID: "AC1"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := s.(Noop); !ok {
		t.Fatalf("expected Noop, got %T", s)
	}
	sent, err := s.NotifyMatch(context.Background(), Match{Contact: "123", Identity: "A"})
	if sent || err != nil {
		t.Errorf("Noop.NotifyMatch = %v, %v", sent, err)
	}
}

type fakeMessages struct {
	params []*twilioApi.CreateMessageParams
	err    error
}

func (f *fakeMessages) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = append(f.params, p)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioSender_NotifyMatch(t *testing.T) {
	api := &fakeMessages{}
	s := newTwilioSender(api, "+15550000000", "91", logging.NewNop())

	sent, err := s.NotifyMatch(context.Background(), Match{
		Contact: "9876543210", Identity: "Alice", Location: "Park", ReporterName: "Raj", ReporterPhone: "555",
	})
	if err != nil || !sent {
		t.Fatalf("NotifyMatch = %v, %v", sent, err)
	}
	if len(api.params) != 1 {
		t.Fatalf("expected 1 message, got %d", len(api.params))
	}
	p := api.params[0]
	if *p.To != "+919876543210" || *p.From != "+15550000000" {
		t.Errorf("to/from = %s/%s", *p.To, *p.From)
	}
	if !strings.Contains(*p.Body, "Alice") {
		t.Errorf("body = %q", *p.Body)
	}
}

func TestTwilioSender_NoContact(t *testing.T) {
	api := &fakeMessages{}
	s := newTwilioSender(api, "+1", "91", nil)
	sent, err := s.NotifyMatch(context.Background(), Match{Identity: "Alice"})
	if sent || err != nil || len(api.params) != 0 {
		t.Errorf("NotifyMatch without contact = %v, %v, %d calls", sent, err, len(api.params))
	}
}

func TestTwilioSender_Error(t *testing.T) {
	gateway := errors.New("gateway down")
	s := newTwilioSender(&fakeMessages{err: gateway}, "+1", "91", nil)
	sent, err := s.NotifyMatch(context.Background(), Match{Contact: "+1555", Identity: "Alice"})
	if sent || !errors.Is(err, gateway) {
		t.Errorf("NotifyMatch = %v, %v; want wrapped gateway error", sent, err)
	}
}

type stubSender struct {
	calls int
	err   error
}

func (s *stubSender) NotifyMatch(context.Context, Match) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return true, nil
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	next := &stubSender{err: errors.New("boom")}
	b := NewBreaker(next, BreakerConfig{MaxFailures: 2, Timeout: time.Hour, HalfOpenMaxRequests: 1}, nil)
	ctx := context.Background()
	m := Match{Contact: "+1", Identity: "A"}

	for range 2 {
		if _, err := b.NotifyMatch(ctx, m); err == nil || errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("expected gateway error, got %v", err)
		}
	}
	if _, err := b.NotifyMatch(ctx, m); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if next.calls != 2 {
		t.Errorf("open circuit still called sender: %d calls", next.calls)
	}
	if b.State() != "open" {
		t.Errorf("state = %s", b.State())
	}
}

func TestBreaker_PassesThrough(t *testing.T) {
	next := &stubSender{}
	b := NewBreaker(next, DefaultBreakerConfig(), nil)

	sent, err := b.NotifyMatch(context.Background(), Match{Contact: "+1", Identity: "A"})
	if !sent || err != nil {
		t.Errorf("NotifyMatch = %v, %v", sent, err)
	}
	sent, err = b.NotifyMatch(context.Background(), Match{Identity: "A"})
	if sent || err != nil || next.calls != 1 {
		t.Errorf("empty contact forwarded: %v, %v, %d calls", sent, err, next.calls)
	}
}
