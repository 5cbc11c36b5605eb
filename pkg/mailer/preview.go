package mailer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

const previewChars = 500

// Preview is the test-mode sender: it renders the composed message to Out
// and the log, opens no connection, and always reports success.
type Preview struct {
	From   string
	Out    io.Writer
	Logger *logrus.Logger

	count int
}

func NewPreview(from string, out io.Writer, logger *logrus.Logger) *Preview {
	return &Preview{From: from, Out: out, Logger: logger}
}

func (p *Preview) Send(_ context.Context, msg Message) error {
	files, err := readAttachments(msg.Attachments)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	p.count++

	if p.Out != nil {
		rule := strings.Repeat("=", 50)
		var b strings.Builder
		fmt.Fprintf(&b, "\n%s\nTEST MODE - Email Preview\n%s\n", rule, rule)
		fmt.Fprintf(&b, "From: %s\n", p.From)
		fmt.Fprintf(&b, "To: %s\n", strings.Join(msg.To, ", "))
		if len(msg.CC) > 0 {
			fmt.Fprintf(&b, "CC: %s\n", strings.Join(msg.CC, ", "))
		}
		if len(msg.BCC) > 0 {
			fmt.Fprintf(&b, "BCC: %s\n", strings.Join(msg.BCC, ", "))
		}
		fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
		attached := "None"
		if len(names) > 0 {
			attached = strings.Join(names, ", ")
		}
		fmt.Fprintf(&b, "Attachments: %s\n", attached)
		fmt.Fprintf(&b, "\nContent preview:\n%s\n%s\n", excerpt(msg.HTML, previewChars), rule)
		_, _ = io.WriteString(p.Out, b.String())
	}
	if p.Logger != nil {
		p.Logger.WithFields(logrus.Fields{
			"to":          strings.Join(msg.To, ","),
			"subject":     msg.Subject,
			"attachments": len(names),
		}).Info("would send")
	}
	return nil
}

// Count returns how many previews were produced.
func (p *Preview) Count() int { return p.count }

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
