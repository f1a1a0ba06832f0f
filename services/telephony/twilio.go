package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"

	"github.com/waygroup/numbot/core/logger"
	"log/slog"
)

// twilioProvider wraps the Twilio REST SDK behind the Provider interface.
// All calls share one token-bucket limiter so a burst of inbox polls
// cannot trip the provider's rate limits.
type twilioProvider struct {
	api        *openapi.ApiService
	accountSID string
	limiter    *rate.Limiter
}

// NewTwilioFactory returns a Factory producing SDK-backed providers.
// requestsPerSecond caps outbound API calls per provider instance;
// zero or negative disables pacing.
func NewTwilioFactory(requestsPerSecond float64) Factory {
	return func(accountSID, authToken string) Provider {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		})
		limit := rate.Inf
		if requestsPerSecond > 0 {
			limit = rate.Limit(requestsPerSecond)
		}
		return &twilioProvider{
			api:        client.Api,
			accountSID: accountSID,
			limiter:    rate.NewLimiter(limit, 1),
		}
	}
}

func (p *twilioProvider) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telephony: rate wait: %w", err)
	}
	return nil
}

func (p *twilioProvider) FetchAccount(ctx context.Context) (*Account, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	acct, err := p.api.FetchAccount(p.accountSID)
	if err != nil {
		return nil, wrapTwilioError("fetch account", err)
	}
	out := &Account{SID: p.accountSID}
	if acct.Sid != nil {
		out.SID = *acct.Sid
	}
	if acct.FriendlyName != nil {
		out.FriendlyName = *acct.FriendlyName
	}
	if acct.Status != nil {
		out.Status = *acct.Status
	}
	return out, nil
}

func (p *twilioProvider) SearchLocal(ctx context.Context, country string, areaCode int, limit int) ([]AvailableNumber, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	params := &openapi.ListAvailablePhoneNumberLocalParams{}
	params.SetSmsEnabled(true)
	if areaCode > 0 {
		params.SetAreaCode(areaCode)
	}
	if limit > 0 {
		params.SetLimit(limit)
	}
	records, err := p.api.ListAvailablePhoneNumberLocal(country, params)
	if err != nil {
		return nil, wrapTwilioError("search local numbers", err)
	}
	out := make([]AvailableNumber, 0, len(records))
	for _, rec := range records {
		n := AvailableNumber{}
		if rec.PhoneNumber != nil {
			n.PhoneNumber = *rec.PhoneNumber
		}
		if rec.FriendlyName != nil {
			n.FriendlyName = *rec.FriendlyName
		}
		if rec.Locality != nil {
			n.Locality = *rec.Locality
		}
		if rec.Region != nil {
			n.Region = *rec.Region
		}
		if n.PhoneNumber != "" {
			out = append(out, n)
		}
	}
	return out, nil
}

func (p *twilioProvider) Purchase(ctx context.Context, phoneNumber string) (*IncomingNumber, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	params := &openapi.CreateIncomingPhoneNumberParams{}
	params.SetPhoneNumber(phoneNumber)
	rec, err := p.api.CreateIncomingPhoneNumber(params)
	if err != nil {
		return nil, wrapTwilioError("purchase number", err)
	}
	out := &IncomingNumber{PhoneNumber: phoneNumber}
	if rec.Sid != nil {
		out.SID = *rec.Sid
	}
	if rec.PhoneNumber != nil {
		out.PhoneNumber = *rec.PhoneNumber
	}
	logger.SVCNumbers.LogAttrs(ctx, slog.LevelDebug, "provider.purchase",
		slog.String("number", out.PhoneNumber),
		slog.String("number_sid", out.SID),
	)
	return out, nil
}

func (p *twilioProvider) FetchNumber(ctx context.Context, numberSID string) (*IncomingNumber, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	rec, err := p.api.FetchIncomingPhoneNumber(numberSID, &openapi.FetchIncomingPhoneNumberParams{})
	if err != nil {
		return nil, wrapTwilioError("fetch number", err)
	}
	out := &IncomingNumber{SID: numberSID}
	if rec.Sid != nil {
		out.SID = *rec.Sid
	}
	if rec.PhoneNumber != nil {
		out.PhoneNumber = *rec.PhoneNumber
	}
	return out, nil
}

func (p *twilioProvider) Release(ctx context.Context, numberSID string) error {
	if err := p.wait(ctx); err != nil {
		return err
	}
	if err := p.api.DeleteIncomingPhoneNumber(numberSID, &openapi.DeleteIncomingPhoneNumberParams{}); err != nil {
		return wrapTwilioError("release number", err)
	}
	logger.SVCNumbers.LogAttrs(ctx, slog.LevelDebug, "provider.release",
		slog.String("number_sid", numberSID),
	)
	return nil
}

func (p *twilioProvider) LatestMessage(ctx context.Context, phoneNumber string) (*Message, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	params := &openapi.ListMessageParams{}
	params.SetTo(phoneNumber)
	params.SetLimit(1)
	records, err := p.api.ListMessage(params)
	if err != nil {
		return nil, wrapTwilioError("list messages", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	rec := records[0]
	msg := &Message{To: phoneNumber}
	if rec.Sid != nil {
		msg.SID = *rec.Sid
	}
	if rec.From != nil {
		msg.From = *rec.From
	}
	if rec.To != nil {
		msg.To = *rec.To
	}
	if rec.Body != nil {
		msg.Body = *rec.Body
	}
	if rec.DateSent != nil {
		if ts, parseErr := time.Parse(time.RFC1123Z, *rec.DateSent); parseErr == nil {
			msg.DateSent = ts
		}
	}
	return msg, nil
}

// wrapTwilioError maps SDK errors onto the package error taxonomy while
// keeping the provider message for logs.
func wrapTwilioError(op string, err error) error {
	if err == nil {
		return nil
	}
	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) && restErr.Status == http.StatusNotFound {
		return fmt.Errorf("telephony: %s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("telephony: %s: %w", op, err)
}
