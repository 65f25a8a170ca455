// Package notify delivers OTP codes, magic links, and reset links
// out-of-band. Delivery is fire-and-observe: callers log failures and
// never retry here.
package notify

import (
	"context"
	"fmt"

	"github.com/resendlabs/resend-go"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/veriqo/server/internal/config"
)

// Sink is the out-of-band delivery contract.
type Sink interface {
	SendSMS(ctx context.Context, phone, message string) error
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Client sends SMS through Twilio and email through Resend. Credentials
// are injected at construction; missing credentials surface at send time.
type Client struct {
	twilioCfg config.TwilioConfig
	resendCfg config.ResendConfig
	twilio    *twilio.RestClient
	resend    *resend.Client
}

// NewClient creates a notification client from delivery credentials.
func NewClient(twilioCfg config.TwilioConfig, resendCfg config.ResendConfig) *Client {
	c := &Client{twilioCfg: twilioCfg, resendCfg: resendCfg}
	if twilioCfg.AccountSID != "" {
		c.twilio = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: twilioCfg.AccountSID,
			Password: twilioCfg.AuthToken,
		})
	}
	if resendCfg.APIKey != "" {
		c.resend = resend.NewClient(resendCfg.APIKey)
	}
	return c
}

// SendSMS delivers a text message to phone.
func (c *Client) SendSMS(ctx context.Context, phone, message string) error {
	if c.twilio == nil || c.twilioCfg.From == "" {
		return fmt.Errorf("twilio credentials not set in configuration")
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(c.twilioCfg.From)
	params.SetBody(message)

	if _, err := c.twilio.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	return nil
}

// SendEmail delivers a plain-text email.
func (c *Client) SendEmail(ctx context.Context, to, subject, body string) error {
	if c.resend == nil || c.resendCfg.From == "" {
		return fmt.Errorf("resend credentials not set in configuration")
	}

	params := &resend.SendEmailRequest{
		From:    c.resendCfg.From,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}
	if _, err := c.resend.Emails.Send(params); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
