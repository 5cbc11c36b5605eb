package mailer

import (
	"context"
	"fmt"
	"net/http"

	mg "github.com/mailgun/mailgun-go/v4"
)

// Mailgun sends through the Mailgun HTTP API instead of SMTP.
type Mailgun struct {
	Domain  string
	APIKey  string
	Sender  string
	APIBase string // optional override, used by tests
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{Domain: domain, APIKey: apiKey, Sender: sender}
}

// Send submits msg via Mailgun. Attachments are read before the request.
func (m *Mailgun) Send(ctx context.Context, msg Message) error {
	files, err := readAttachments(msg.Attachments)
	if err != nil {
		return err
	}

	client := mg.NewMailgun(m.Domain, m.APIKey)
	if m.APIBase != "" {
		client.SetAPIBase(m.APIBase)
	}
	message := client.NewMessage(m.Sender, msg.Subject, "", msg.To...)
	message.SetHtml(msg.HTML)
	for _, cc := range msg.CC {
		message.AddCC(cc)
	}
	for _, bcc := range msg.BCC {
		message.AddBCC(bcc)
	}
	for _, f := range files {
		message.AddBufferAttachment(f.Name, f.Data)
	}

	if _, _, err := client.Send(ctx, message); err != nil {
		switch mg.GetStatusFromErr(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}
