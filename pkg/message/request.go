package message

import "time"

// Send statuses.
const (
	StatusSent      = "sent"
	StatusScheduled = "scheduled"
)

// ReadRequest selects messages from a mailbox.  When MessageID is set the remaining filters
// are ignored.
type ReadRequest struct {
	MessageID string
	Query     string
	Labels    []string
	// MaxResults of zero selects the configured default.
	MaxResults int
	// IncludeBody defaults to true when nil.
	IncludeBody *bool
}

// ReadResult holds the matching messages, most recent first.  A MessageID lookup returns
// exactly one message.
type ReadResult struct {
	Messages []*Message
}

// SendRequest describes a message to send immediately or at ScheduleTime.
type SendRequest struct {
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	BodyText    string
	BodyHTML    string
	Attachments []AttachmentSpec
	// InReplyTo is the ID of a message in the same mailbox.
	InReplyTo    string
	ThreadID     string
	Headers      map[string]string
	Priority     Priority
	ScheduleTime *time.Time
}

// SendResult reports the outcome of a send.  Date is set for sent messages, ScheduledTime for
// scheduled ones.
type SendResult struct {
	Status        string
	MessageID     string
	ThreadID      string
	Date          time.Time
	ScheduledTime *time.Time
}

// DraftRequest creates a draft when DraftID is empty, otherwise updates it.  Nil fields are
// left unchanged on update; an empty, non-nil slice or map clears the field.
type DraftRequest struct {
	DraftID     string
	To          []string
	Cc          []string
	Bcc         []string
	Subject     *string
	BodyText    *string
	BodyHTML    *string
	Attachments []AttachmentSpec
	InReplyTo   *string
	Headers     map[string]string
}

// DraftResult identifies a saved draft.
type DraftResult struct {
	DraftID   string
	MessageID string
	ThreadID  string
	UpdatedAt time.Time
}

// SendDraftRequest controls how a draft is sent.
type SendDraftRequest struct {
	Priority     Priority
	ScheduleTime *time.Time
}
