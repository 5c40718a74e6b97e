// Package notify delivers "person found" messages to the contact registered for a case.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/kozaktomas/sightmatch/internal/config"
	"github.com/kozaktomas/sightmatch/internal/database"
	"github.com/kozaktomas/sightmatch/internal/logging"
)

// Match describes an accepted identification to report to the case contact.
type Match struct {
	Contact       string // phone number registered for the case
	Identity      string
	Location      string // where the person was just seen
	ReporterName  string
	ReporterPhone string
}

// Sender delivers a match notification. It reports whether a message was
// actually handed to a gateway; a transport failure is returned as an error.
type Sender interface {
	NotifyMatch(ctx context.Context, m Match) (bool, error)
}

// Noop is used when no gateway is configured.
type Noop struct{}

// NotifyMatch never sends anything.
func (Noop) NotifyMatch(context.Context, Match) (bool, error) {
	return false, nil
}

// New returns a circuit-protected Twilio sender when credentials are
// configured and Noop otherwise.
func New(cfg config.TwilioConfig, logger *slog.Logger) (Sender, error) {
	if !cfg.Enabled() {
		logging.NewComponentLogger(logger, "notify").Warn("twilio credentials not configured, SMS notifications disabled")
		return Noop{}, nil
	}
	sender, err := NewTwilioSender(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewBreaker(sender, DefaultBreakerConfig(), logger), nil
}

// Message renders the SMS body for m. Absent reporter details and location
// are replaced with placeholders.
func Message(m Match) string {
	location := orDefault(m.Location, database.UnknownLocation)
	reporter := orDefault(m.ReporterName, database.AnonymousName)
	phone := orDefault(m.ReporterPhone, database.UnknownPhone)

	return fmt.Sprintf(
		"URGENT: %s has been found! Current location: %s. Found by: %s. "+
			"Contact finder at: %s. Please contact authorities immediately.",
		m.Identity, location, reporter, phone)
}

// FormatE164 converts a phone number to E.164. Numbers already starting with
// '+' are returned unchanged; ten-digit national numbers get defaultCountryCode.
func FormatE164(phone, defaultCountryCode string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "+") {
		return phone
	}

	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)

	if len(digits) == 10 {
		cc := strings.TrimPrefix(strings.TrimSpace(defaultCountryCode), "+")
		if cc == "" {
			cc = "91"
		}
		return "+" + cc + digits
	}
	return "+" + digits
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
