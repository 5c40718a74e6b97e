package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/sightmatch/internal/config"
	"github.com/kozaktomas/sightmatch/internal/logging"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the subset of the Twilio REST API used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends match notifications as SMS through Twilio.
type TwilioSender struct {
	api         messageCreator
	from        string
	countryCode string
	logger      *slog.Logger
}

// NewTwilioSender creates a sender from account credentials.
func NewTwilioSender(cfg config.TwilioConfig, logger *slog.Logger) (*TwilioSender, error) {
	if !cfg.Enabled() {
		return nil, errors.New("twilio account SID, auth token and sender number are required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newTwilioSender(client.Api, cfg.FromNumber, cfg.DefaultCountryCode, logger), nil
}

func newTwilioSender(api messageCreator, from, countryCode string, logger *slog.Logger) *TwilioSender {
	return &TwilioSender{
		api:         api,
		from:        from,
		countryCode: countryCode,
		logger:      logging.NewComponentLogger(logger, "twilio"),
	}
}

// NotifyMatch texts m.Contact. An empty contact sends nothing.
func (s *TwilioSender) NotifyMatch(ctx context.Context, m Match) (bool, error) {
	if m.Contact == "" {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	to := FormatE164(m.Contact, s.countryCode)
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(Message(m))

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return false, fmt.Errorf("send sms to %s: %w", to, err)
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	s.logger.Info("sms sent", logging.FieldIdentity, m.Identity, "to", to, "sid", sid)
	return true, nil
}
