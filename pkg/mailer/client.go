package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	sendgrid "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/kanakkart/storefront-backend/pkg/config"
	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
)

var (
	errAPIKeyRequired = errors.New("sendgrid api key is required")
	errFromRequired   = errors.New("sendgrid default from address is required")
)

type sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Client sends transactional email through SendGrid.
type Client struct {
	sender   sender
	from     *mail.Email
	fromName string
}

// Message is a single transactional email.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// NewClient builds the SendGrid mailer from config.
func NewClient(cfg config.SendgridConfig) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	fromAddr := strings.TrimSpace(cfg.DefaultFrom)
	if fromAddr == "" {
		return nil, errFromRequired
	}
	return &Client{
		sender:   sendgrid.NewSendClient(apiKey),
		from:     mail.NewEmail(cfg.FromName, fromAddr),
		fromName: cfg.FromName,
	}, nil
}

// Send delivers a single message. Non-2xx provider responses surface as
// dependency errors so callers can schedule a retry.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil || c.sender == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "mailer not configured")
	}
	if strings.TrimSpace(msg.ToAddress) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient address is required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subject is required")
	}

	to := mail.NewEmail(msg.ToName, msg.ToAddress)
	email := mail.NewSingleEmail(c.from, msg.Subject, to, msg.PlainBody, msg.HTMLBody)

	resp, err := c.sender.SendWithContext(ctx, email)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sendgrid send")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body)),
			"sendgrid rejected message")
	}
	return nil
}
