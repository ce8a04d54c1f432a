package message

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/inbucket/courier/pkg/storage"
	"github.com/inbucket/courier/pkg/validation"
	"github.com/jhillyerd/enmime/v2"
	"github.com/samber/lo"
)

const defaultMimeType = "application/octet-stream"

// reservedHeaders are generated by Courier and may not be supplied by callers.
var reservedHeaders = []string{
	"From", "To", "Cc", "Bcc", "Subject", "Date", "Message-Id", "Mime-Version", "Content-Type",
	"Content-Transfer-Encoding", "In-Reply-To", "References",
}

// outgoing is a fully resolved message, ready to be checked and rendered.  Its JSON tags name
// fields in validation errors.
type outgoing struct {
	MessageID    string               `json:"-"`
	ThreadID     string               `json:"thread_id"`
	InReplyTo    string               `json:"in_reply_to"`
	From         *mail.Address        `json:"-"`
	To           []*mail.Address      `json:"to" validate:"required,min=1"`
	Cc           []*mail.Address      `json:"cc"`
	Bcc          []*mail.Address      `json:"bcc"`
	Subject      string               `json:"subject" validate:"required"`
	BodyText     string               `json:"body_text"`
	BodyHTML     string               `json:"body_html"`
	Attachments  []storage.Attachment `json:"-"`
	Headers      map[string]string    `json:"headers" validate:"dive,keys,headername,endkeys"`
	Priority     Priority             `json:"priority" validate:"omitempty,oneof=normal high low"`
	ScheduleTime *time.Time           `json:"schedule_time"`
	Date         time.Time            `json:"-"`
}

// recipients returns every envelope recipient, including blind copies.
func (o *outgoing) recipients() []*mail.Address {
	all := make([]*mail.Address, 0, len(o.To)+len(o.Cc)+len(o.Bcc))
	all = append(all, o.To...)
	all = append(all, o.Cc...)
	return append(all, o.Bcc...)
}

// check validates o against the mail configuration.  Struct tags cover presence and enum
// rules, the remaining rules depend on configuration or the clock.
func (s *StoreManager) check(o *outgoing, now time.Time, prior validation.Error) error {
	verr := validation.Error{}
	verr.Merge(prior)
	if err := s.Validator.Validate(o); err != nil {
		var fields validation.Error
		if !errors.As(err, &fields) {
			return err
		}
		verr.Merge(fields)
	}
	if o.BodyText == "" && o.BodyHTML == "" {
		verr.Merge(validation.Field("body", "one of body_text or body_html is required"))
	}
	if limit := s.Config.MaxRecipients; limit > 0 && len(o.recipients()) > limit {
		verr.Merge(validation.Fieldf("to", "at most %d recipients are permitted", limit))
	}
	verr.Merge(checkHeaders(o.Headers))
	if o.ScheduleTime != nil && !o.ScheduleTime.After(now) {
		verr.Merge(validation.Field("schedule_time", "schedule_time must be in the future"))
	}
	return verr.OrNil()
}

// checkHeaders rejects headers that Courier generates itself, or values that would break the
// header block.
func checkHeaders(headers map[string]string) validation.Error {
	verr := validation.Error{}
	for k, v := range headers {
		field := "headers[" + k + "]"
		if lo.ContainsBy(reservedHeaders, func(r string) bool { return strings.EqualFold(r, k) }) {
			verr.Merge(validation.Fieldf(field, "%s is a reserved header", k))
		}
		if strings.ContainsAny(v, "\r\n") {
			verr.Merge(validation.Field(field, "header values may not contain line breaks"))
		}
	}
	return verr
}

// parseAddresses parses a list of recipient addresses, naming the first bad one in the error.
func (s *StoreManager) parseAddresses(field string, addrs []string) ([]*mail.Address, error) {
	if addrs == nil {
		return nil, nil
	}
	parsed := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		r, err := s.AddrPolicy.NewRecipient(a)
		if err != nil {
			return nil, validation.Fieldf(field, "invalid address %q", a)
		}
		addr := r.Address
		parsed = append(parsed, &addr)
	}
	return parsed, nil
}

// resolveAttachments decodes inline content and loads referenced attachments from the mailbox.
func (s *StoreManager) resolveAttachments(
	mailbox string,
	specs []AttachmentSpec,
) ([]storage.Attachment, error) {
	if specs == nil {
		return nil, nil
	}
	out := make([]storage.Attachment, 0, len(specs))
	for i, spec := range specs {
		field := "attachments[" + strconv.Itoa(i) + "]"
		inline, ref := spec.ContentBase64 != "", spec.FileID != ""
		if inline == ref {
			return nil, validation.Field(field, "exactly one of content_base64 or file_id is required")
		}
		var att storage.Attachment
		if inline {
			if spec.Filename == "" {
				return nil, validation.Field(field+".filename", "filename is required")
			}
			content, err := base64.StdEncoding.DecodeString(spec.ContentBase64)
			if err != nil {
				return nil, validation.Field(field+".content_base64", "content_base64 is not valid base64")
			}
			att = storage.Attachment{Filename: spec.Filename, MimeType: spec.MimeType, Content: content}
		} else {
			var err error
			att, err = s.loadAttachment(mailbox, spec.FileID)
			if err != nil {
				return nil, err
			}
			if spec.Filename != "" {
				att.Filename = spec.Filename
			}
			if spec.MimeType != "" {
				att.MimeType = spec.MimeType
			}
		}
		if att.MimeType == "" {
			att.MimeType = guessMimeType(att.Filename)
		}
		out = append(out, att)
	}
	return out, nil
}

// loadAttachment fetches the content of an attachment by its ID, <message id>.<index>.
func (s *StoreManager) loadAttachment(mailbox, fileID string) (storage.Attachment, error) {
	msgID, index, ok := splitAttachmentID(fileID)
	if !ok {
		return storage.Attachment{}, fmt.Errorf("attachment %q: %w", fileID, storage.ErrNotExist)
	}
	env, err := s.readEnvelope(mailbox, msgID)
	if err != nil {
		return storage.Attachment{}, fmt.Errorf("attachment %q: %w", fileID, err)
	}
	parts := attachmentParts(env)
	if index >= len(parts) {
		return storage.Attachment{}, fmt.Errorf("attachment %q: %w", fileID, storage.ErrNotExist)
	}
	p := parts[index]
	return storage.Attachment{
		Filename: p.FileName,
		MimeType: p.ContentType,
		Content:  bytes.Clone(p.Content),
	}, nil
}

// attachmentParts returns the parts exposed as attachments, in attachment ID order.
func attachmentParts(env *enmime.Envelope) []*enmime.Part {
	parts := make([]*enmime.Part, 0, len(env.Attachments)+len(env.Inlines))
	parts = append(parts, env.Attachments...)
	return append(parts, env.Inlines...)
}

func attachmentID(messageID string, index int) string {
	return messageID + "." + strconv.Itoa(index)
}

func splitAttachmentID(id string) (messageID string, index int, ok bool) {
	dot := strings.LastIndexByte(id, '.')
	if dot <= 0 {
		return "", 0, false
	}
	index, err := strconv.Atoi(id[dot+1:])
	if err != nil || index < 0 {
		return "", 0, false
	}
	return id[:dot], index, true
}

func guessMimeType(filename string) string {
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		return t
	}
	return defaultMimeType
}

// render builds the RFC 5322 source of o.  Blind copy recipients are not written to the header.
func (s *StoreManager) render(o *outgoing) ([]byte, error) {
	b := enmime.Builder().
		From(o.From.Name, o.From.Address).
		Subject(o.Subject).
		Date(o.Date).
		Header("Message-Id", s.messageIDHeader(o.MessageID))
	for _, a := range o.To {
		b = b.To(a.Name, a.Address)
	}
	for _, a := range o.Cc {
		b = b.CC(a.Name, a.Address)
	}
	if o.InReplyTo != "" {
		parent := s.messageIDHeader(o.InReplyTo)
		b = b.Header("In-Reply-To", parent).Header("References", parent)
	}
	for k, v := range o.Priority.headers() {
		b = b.Header(k, v)
	}
	for _, k := range sortedKeys(o.Headers) {
		b = b.Header(k, o.Headers[k])
	}
	if o.BodyText != "" {
		b = b.Text([]byte(o.BodyText))
	}
	if o.BodyHTML != "" {
		b = b.HTML([]byte(o.BodyHTML))
	}
	for _, a := range o.Attachments {
		b = b.AddAttachment(a.Content, a.MimeType, a.Filename)
	}
	root, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build message: %w", err)
	}
	buf := &bytes.Buffer{}
	if err := root.Encode(buf); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *StoreManager) messageIDHeader(id string) string {
	return "<" + id + "@" + s.Config.Domain + ">"
}

func sortedKeys(m map[string]string) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
