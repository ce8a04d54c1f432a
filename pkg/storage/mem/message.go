package mem

import (
	"bytes"
	"io"
	"net/mail"
	"time"

	"github.com/inbucket/courier/pkg/storage"
)

// Message is a memory store message.
type Message struct {
	index       int
	mailbox     string
	id          string
	threadID    string
	from        *mail.Address
	to          []*mail.Address
	cc          []*mail.Address
	bcc         []*mail.Address
	date        time.Time
	subject     string
	snippet     string
	labels      []string
	scheduledAt time.Time
	source      []byte
}

var _ storage.Message = &Message{}

// Mailbox returns the mailbox name.
func (m *Message) Mailbox() string { return m.mailbox }

// ID the message ID.
func (m *Message) ID() string { return m.id }

// ThreadID returns the conversation this message belongs to.
func (m *Message) ThreadID() string { return m.threadID }

// From returns the from address.
func (m *Message) From() *mail.Address { return m.from }

// To returns the to address list.
func (m *Message) To() []*mail.Address { return m.to }

// Cc returns the carbon copy address list.
func (m *Message) Cc() []*mail.Address { return m.cc }

// Bcc returns the blind carbon copy address list.
func (m *Message) Bcc() []*mail.Address { return m.bcc }

// Date returns the date the message was stored or sent.
func (m *Message) Date() time.Time { return m.date }

// Subject returns the subject line.
func (m *Message) Subject() string { return m.subject }

// Snippet returns a short plain text preview of the body.
func (m *Message) Snippet() string { return m.snippet }

// Labels returns a copy of the message labels.
func (m *Message) Labels() []string { return append([]string(nil), m.labels...) }

// ScheduledAt returns the time a scheduled message is due, or zero.
func (m *Message) ScheduledAt() time.Time { return m.scheduledAt }

// Source returns a reader for the message source.
func (m *Message) Source() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.source)), nil
}

// Size returns the message size in bytes.
func (m *Message) Size() int64 { return int64(len(m.source)) }

// snapshot returns a copy of m that is safe to hand out while m remains mutable under the
// mailbox lock.
func (m *Message) snapshot() *Message {
	c := *m
	c.labels = append([]string(nil), m.labels...)
	return &c
}
