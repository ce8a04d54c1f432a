// Package model holds the JSON types exchanged by the REST API and its client.
package model

import "time"

// JSONErrorV1 is the body of every non-2xx JSON response.
type JSONErrorV1 struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// JSONMessageHeaderV1 contains the basic header data for a message.
type JSONMessageHeaderV1 struct {
	Mailbox       string     `json:"mailbox"`
	MessageID     string     `json:"message_id"`
	ThreadID      string     `json:"thread_id"`
	From          string     `json:"from"`
	To            []string   `json:"to"`
	Subject       string     `json:"subject"`
	Date          time.Time  `json:"date"`
	Snippet       string     `json:"snippet"`
	Labels        []string   `json:"labels"`
	Size          int64      `json:"size"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
}

// JSONMessageV1 is a message as returned by a read.  The body fields and attachments are
// omitted when the body was not requested.
type JSONMessageV1 struct {
	MessageID     string              `json:"message_id"`
	ThreadID      string              `json:"thread_id"`
	Mailbox       string              `json:"mailbox"`
	Subject       string              `json:"subject"`
	From          string              `json:"from"`
	To            []string            `json:"to"`
	Cc            []string            `json:"cc"`
	Bcc           []string            `json:"bcc"`
	Date          time.Time           `json:"date"`
	Snippet       string              `json:"snippet"`
	BodyText      *string             `json:"body_text,omitempty"`
	BodyHTML      *string             `json:"body_html,omitempty"`
	Labels        []string            `json:"labels"`
	Attachments   []*JSONAttachmentV1 `json:"attachments,omitempty"`
	Size          int64               `json:"size"`
	ScheduledTime *time.Time          `json:"scheduled_time,omitempty"`
}

// JSONAttachmentV1 describes a stored attachment.
type JSONAttachmentV1 struct {
	AttachmentID string `json:"attachment_id"`
	Filename     string `json:"filename"`
	MimeType     string `json:"mime_type"`
	SizeBytes    int    `json:"size_bytes"`
}

// JSONReadResultV1 holds messages, most recent first.
type JSONReadResultV1 struct {
	Messages []*JSONMessageV1 `json:"messages"`
}

// JSONAttachmentSpecV1 is an attachment on a send or draft request, given either inline or as
// the file_id of an existing attachment.
type JSONAttachmentSpecV1 struct {
	Filename      string `json:"filename,omitempty"`
	MimeType      string `json:"mime_type,omitempty"`
	ContentBase64 string `json:"content_base64,omitempty"`
	FileID        string `json:"file_id,omitempty"`
}

// JSONSendRequestV1 is the body of a send.
type JSONSendRequestV1 struct {
	To           []string               `json:"to"`
	Cc           []string               `json:"cc,omitempty"`
	Bcc          []string               `json:"bcc,omitempty"`
	Subject      string                 `json:"subject"`
	BodyText     string                 `json:"body_text,omitempty"`
	BodyHTML     string                 `json:"body_html,omitempty"`
	Attachments  []JSONAttachmentSpecV1 `json:"attachments,omitempty"`
	InReplyTo    string                 `json:"in_reply_to,omitempty"`
	ThreadID     string                 `json:"thread_id,omitempty"`
	Headers      map[string]string      `json:"headers,omitempty"`
	Priority     string                 `json:"priority,omitempty"`
	ScheduleTime *time.Time             `json:"schedule_time,omitempty"`
}

// JSONSendResultV1 reports a sent or scheduled message.
type JSONSendResultV1 struct {
	Status        string     `json:"status"`
	MessageID     string     `json:"message_id"`
	ThreadID      string     `json:"thread_id"`
	Date          *time.Time `json:"date,omitempty"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
}

// JSONDraftRequestV1 creates or updates a draft.  Absent or null fields are left unchanged on
// update, empty lists clear them.
type JSONDraftRequestV1 struct {
	DraftID     string                 `json:"draft_id,omitempty"`
	To          []string               `json:"to"`
	Cc          []string               `json:"cc"`
	Bcc         []string               `json:"bcc"`
	Subject     *string                `json:"subject,omitempty"`
	BodyText    *string                `json:"body_text,omitempty"`
	BodyHTML    *string                `json:"body_html,omitempty"`
	Attachments []JSONAttachmentSpecV1 `json:"attachments"`
	InReplyTo   *string                `json:"in_reply_to,omitempty"`
	Headers     map[string]string      `json:"headers"`
}

// JSONDraftResultV1 identifies a saved draft.
type JSONDraftResultV1 struct {
	DraftID   string    `json:"draft_id"`
	MessageID string    `json:"message_id"`
	ThreadID  string    `json:"thread_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JSONDraftAttachmentV1 describes an attachment held by a draft.
type JSONDraftAttachmentV1 struct {
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type"`
	SizeBytes int    `json:"size_bytes"`
}

// JSONDraftV1 is a stored draft.
type JSONDraftV1 struct {
	DraftID     string                   `json:"draft_id"`
	MessageID   string                   `json:"message_id"`
	ThreadID    string                   `json:"thread_id"`
	InReplyTo   string                   `json:"in_reply_to,omitempty"`
	To          []string                 `json:"to"`
	Cc          []string                 `json:"cc"`
	Bcc         []string                 `json:"bcc"`
	Subject     string                   `json:"subject"`
	BodyText    string                   `json:"body_text"`
	BodyHTML    string                   `json:"body_html"`
	Attachments []*JSONDraftAttachmentV1 `json:"attachments"`
	Headers     map[string]string        `json:"headers,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// JSONSendDraftRequestV1 controls how a draft is sent.
type JSONSendDraftRequestV1 struct {
	Priority     string     `json:"priority,omitempty"`
	ScheduleTime *time.Time `json:"schedule_time,omitempty"`
}

// JSONLabelsPatchV1 adds and removes message labels.
type JSONLabelsPatchV1 struct {
	AddLabels    []string `json:"add_labels"`
	RemoveLabels []string `json:"remove_labels"`
}

// JSONRepaymentRequestV1 is the body of a repayment.
type JSONRepaymentRequestV1 struct {
	EntityName               string         `json:"entity_name"`
	EntityID                 string         `json:"entity_id"`
	EntityGroupID            string         `json:"entity_group_id,omitempty"`
	DisplayName              string         `json:"display_name,omitempty"`
	Description              string         `json:"description,omitempty"`
	LogoURL                  string         `json:"logo_url,omitempty"`
	Keywords                 []string       `json:"keywords,omitempty"`
	RankingHint              *float64       `json:"ranking_hint,omitempty"`
	ExpirationTime           *float64       `json:"expiration_time,omitempty"`
	MetadataModificationTime *float64       `json:"metadata_modification_time,omitempty"`
	ActivityType             []string       `json:"activity_type,omitempty"`
	IsPublicData             *bool          `json:"is_public_data,omitempty"`
	Extras                   map[string]any `json:"extras,omitempty"`
}

// JSONRepaymentRecordV1 is the metadata stored for an entity.
type JSONRepaymentRecordV1 struct {
	EntityID                 string         `json:"entity_id"`
	EntityName               string         `json:"entity_name"`
	EntityGroupID            string         `json:"entity_group_id,omitempty"`
	DisplayName              string         `json:"display_name"`
	Description              string         `json:"description"`
	LogoURL                  string         `json:"logo_url"`
	Keywords                 []string       `json:"keywords"`
	RankingHint              *float64       `json:"ranking_hint,omitempty"`
	ExpirationTime           *float64       `json:"expiration_time,omitempty"`
	MetadataModificationTime *float64       `json:"metadata_modification_time,omitempty"`
	ActivityType             []string       `json:"activity_type"`
	IsPublicData             *bool          `json:"is_public_data,omitempty"`
	Extras                   map[string]any `json:"extras,omitempty"`
	PaymentID                string         `json:"payment_id"`
	UpdatedAt                time.Time      `json:"updated_at"`
}

// JSONRepaymentResultV1 is the outcome of a repayment.
type JSONRepaymentResultV1 struct {
	Status      string                 `json:"status"`
	PaymentID   string                 `json:"payment_id"`
	EntityID    string                 `json:"entity_id"`
	ProcessedAt time.Time              `json:"processed_at"`
	Message     string                 `json:"message"`
	Snapshot    *JSONRepaymentRecordV1 `json:"snapshot"`
}

// JSONMonitorEventV1 contains events for the monitor socket.
type JSONMonitorEventV1 struct {
	// Event variant: `message-sent`, `message-scheduled`, `message-delivered`, `message-deleted`.
	Variant string               `json:"variant"`
	Header  *JSONMessageHeaderV1 `json:"header"`
}
