// Package message contains message composition, retrieval and draft handling logic.
package message

import (
	"io"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/inbucket/courier/pkg/extension/event"
	"github.com/inbucket/courier/pkg/storage"
)

// snippetLen is the maximum number of characters in a message snippet.
const snippetLen = 100

// Priority of an outgoing message.
type Priority string

// Priorities accepted by Send and SendDraft.  The empty value is treated as PriorityNormal.
const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityLow    Priority = "low"
)

// headers returns the X-Priority and Importance headers for p, empty for normal priority.
func (p Priority) headers() map[string]string {
	switch p {
	case PriorityHigh:
		return map[string]string{"X-Priority": "1 (Highest)", "Importance": "high"}
	case PriorityLow:
		return map[string]string{"X-Priority": "5 (Lowest)", "Importance": "low"}
	}
	return nil
}

// Message holds both the metadata and content of a message.
type Message struct {
	event.MessageMetadata
	BodyText    string
	BodyHTML    string
	Attachments []AttachmentInfo
	// HasBody is false when the body fields were omitted from a read.
	HasBody bool
}

// AttachmentInfo describes a stored attachment.  ID may be passed back as an AttachmentSpec
// FileID to forward the attachment.
type AttachmentInfo struct {
	ID        string
	Filename  string
	MimeType  string
	SizeBytes int
}

// AttachmentSpec describes an attachment on an outgoing message or draft, either by inline
// base64 content or by reference to an existing attachment.
type AttachmentSpec struct {
	Filename      string `json:"filename"`
	MimeType      string `json:"mime_type"`
	ContentBase64 string `json:"content_base64"`
	FileID        string `json:"file_id"`
}

// Delivery is used to add a message to storage.
type Delivery struct {
	Meta   event.MessageMetadata
	Reader io.Reader
}

var _ storage.Message = &Delivery{}

// Mailbox getter.
func (d *Delivery) Mailbox() string { return d.Meta.Mailbox }

// ID getter.
func (d *Delivery) ID() string { return d.Meta.ID }

// ThreadID getter.
func (d *Delivery) ThreadID() string { return d.Meta.ThreadID }

// From getter.
func (d *Delivery) From() *mail.Address { return d.Meta.From }

// To getter.
func (d *Delivery) To() []*mail.Address { return d.Meta.To }

// Cc getter.
func (d *Delivery) Cc() []*mail.Address { return d.Meta.Cc }

// Bcc getter.
func (d *Delivery) Bcc() []*mail.Address { return d.Meta.Bcc }

// Date getter.
func (d *Delivery) Date() time.Time { return d.Meta.Date }

// Subject getter.
func (d *Delivery) Subject() string { return d.Meta.Subject }

// Snippet getter.
func (d *Delivery) Snippet() string { return d.Meta.Snippet }

// Labels getter.
func (d *Delivery) Labels() []string { return d.Meta.Labels }

// ScheduledAt getter.
func (d *Delivery) ScheduledAt() time.Time { return d.Meta.ScheduledAt }

// Size getter.
func (d *Delivery) Size() int64 { return d.Meta.Size }

// Source contains the raw content of the message.
func (d *Delivery) Source() (io.ReadCloser, error) {
	return io.NopCloser(d.Reader), nil
}

// makeSnippet collapses whitespace in text and truncates it to snippetLen characters.
func makeSnippet(text string) string {
	fields := strings.FieldsFunc(text, unicode.IsSpace)
	s := []rune(strings.Join(fields, " "))
	if len(s) > snippetLen {
		s = s[:snippetLen]
	}
	return string(s)
}
