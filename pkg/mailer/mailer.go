package mailer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrAuthentication means the provider rejected the credentials. Every
	// later send would fail the same way.
	ErrAuthentication = errors.New("authentication failed")
	// ErrTransport covers connection, timeout and delivery refusals.
	ErrTransport = errors.New("transport failure")
	// ErrAttachmentRead means a declared attachment could not be opened.
	ErrAttachmentRead = errors.New("attachment unreadable")
)

// Sender submits one composed message per call.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one composed email.
type Message struct {
	To          []string
	CC          []string
	BCC         []string
	Subject     string
	HTML        string
	Attachments []string // file paths
}

// Recipients returns every envelope recipient.
func (m Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.CC)+len(m.BCC))
	out = append(out, m.To...)
	out = append(out, m.CC...)
	return append(out, m.BCC...)
}

type attachment struct {
	Name string
	Data []byte
}

// readAttachments loads every attachment before any network I/O.
func readAttachments(paths []string) ([]attachment, error) {
	out := make([]attachment, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAttachmentRead, err)
		}
		out = append(out, attachment{Name: filepath.Base(p), Data: b})
	}
	return out, nil
}
