package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPConfig carries the sender credentials. It is passed in explicitly and
// never read from the environment here.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

type smtpClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTP opens one STARTTLS session per message (implicit TLS on port 465)
// and authenticates with PLAIN before submitting.
type SMTP struct {
	cfg       SMTPConfig
	newClient func() (smtpClient, error)
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	s := &SMTP{cfg: cfg}
	s.newClient = s.dialer
	return s
}

func (s *SMTP) dialer() (smtpClient, error) {
	opts := []mail.Option{
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
	}
	if s.cfg.Port == 465 {
		opts = append(opts, mail.WithSSLPort(false))
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}
	opts = append(opts, mail.WithPort(s.cfg.Port))
	if s.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.cfg.Timeout))
	}
	return mail.NewClient(s.cfg.Host, opts...)
}

// Send composes msg and submits it over a fresh authenticated session.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := s.compose(msg)
	if err != nil {
		return err
	}
	c, err := s.newClient()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return classifySMTP(err)
	}
	return nil
}

func (s *SMTP) compose(msg Message) (*mail.Msg, error) {
	files, err := readAttachments(msg.Attachments)
	if err != nil {
		return nil, err
	}

	m := mail.NewMsg()
	if s.cfg.FromName != "" {
		err = m.FromFormat(s.cfg.FromName, s.cfg.From)
	} else {
		err = m.From(s.cfg.From)
	}
	if err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("set to: %w", err)
	}
	if len(msg.CC) > 0 {
		if err := m.Cc(msg.CC...); err != nil {
			return nil, fmt.Errorf("set cc: %w", err)
		}
	}
	if len(msg.BCC) > 0 {
		if err := m.Bcc(msg.BCC...); err != nil {
			return nil, fmt.Errorf("set bcc: %w", err)
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	for _, f := range files {
		if err := m.AttachReader(f.Name, bytes.NewReader(f.Data)); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrAttachmentRead, f.Name, err)
		}
	}
	return m, nil
}

// classifySMTP maps rejected-credential replies to ErrAuthentication and
// everything else to ErrTransport.
func classifySMTP(err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch tpErr.Code {
		case 530, 534, 535, 538:
			return fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}
