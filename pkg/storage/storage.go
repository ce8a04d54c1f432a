// Package storage contains implementation independent datastore logic
package storage

import (
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/extension"
	"github.com/inbucket/courier/pkg/extension/event"
	"github.com/samber/lo"
)

var (
	// ErrNotExist indicates the requested message does not exist.
	ErrNotExist = errors.New("message does not exist")

	// ErrExists indicates a message with the same ID is already stored in the mailbox.
	ErrExists = errors.New("message already exists")

	// Constructors tracks registered storage constructors
	Constructors = make(map[string]func(config.Storage, *extension.Host) (Store, error))
)

// System labels.
const (
	LabelInbox     = "INBOX"
	LabelSent      = "SENT"
	LabelScheduled = "SCHEDULED"
	LabelUnread    = "UNREAD"
)

// Store is the interface Courier uses to interact with storage implementations.
type Store interface {
	// AddMessage stores the message.  A message with an empty ID will be assigned one by the
	// store.
	AddMessage(message Message) (id string, err error)
	GetMessage(mailbox, id string) (Message, error)
	GetMessages(mailbox string) ([]Message, error)
	// ModifyLabels adds, then removes, the specified labels.
	ModifyLabels(mailbox, id string, add, remove []string) error
	// MarkSent replaces the SCHEDULED label with SENT and updates the message date.
	MarkSent(mailbox, id string, date time.Time) error
	PurgeMessages(mailbox string) error
	RemoveMessage(mailbox, id string) error
	VisitMailboxes(f func([]Message) (cont bool)) error
}

// Message represents a message to be stored, or returned from a storage implementation.
type Message interface {
	Mailbox() string
	ID() string
	ThreadID() string
	From() *mail.Address
	To() []*mail.Address
	Cc() []*mail.Address
	Bcc() []*mail.Address
	Date() time.Time
	Subject() string
	Snippet() string
	Labels() []string
	ScheduledAt() time.Time
	Source() (io.ReadCloser, error)
	Size() int64
}

// FromConfig creates an instance of the Store based on the provided configuration.
func FromConfig(c config.Storage, extHost *extension.Host) (store Store, err error) {
	if cf := Constructors[c.Type]; cf != nil {
		return cf(c, extHost)
	}
	return nil, fmt.Errorf("unknown storage type configured: %q", c.Type)
}

// NormalizeLabels upper-cases labels, dropping empty and duplicate entries.
func NormalizeLabels(labels []string) []string {
	labels = lo.Map(labels, func(l string, _ int) string {
		return strings.ToUpper(strings.TrimSpace(l))
	})
	return lo.Uniq(lo.Compact(labels))
}

// HasLabel returns true if the message carries the label, case is ignored.
func HasLabel(m Message, label string) bool {
	return lo.ContainsBy(m.Labels(), func(l string) bool {
		return strings.EqualFold(l, label)
	})
}

// MakeMetadata populates event metadata from a stored message.
func MakeMetadata(m Message) *event.MessageMetadata {
	return &event.MessageMetadata{
		Mailbox:     m.Mailbox(),
		ID:          m.ID(),
		ThreadID:    m.ThreadID(),
		From:        m.From(),
		To:          m.To(),
		Cc:          m.Cc(),
		Bcc:         m.Bcc(),
		Date:        m.Date(),
		Subject:     m.Subject(),
		Snippet:     m.Snippet(),
		Labels:      m.Labels(),
		ScheduledAt: m.ScheduledAt(),
		Size:        m.Size(),
	}
}
