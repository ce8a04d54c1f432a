package test

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/message"
	"github.com/inbucket/courier/pkg/policy"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/inbucket/courier/pkg/validation"
	"github.com/samber/lo"
)

// ManagerStub is a test stub for message.Manager.  Mailboxes named "messageerr" and
// "messageserr" force internal errors.
type ManagerStub struct {
	message.Manager
	mailboxes map[string][]*message.Message
	sources   map[string]string
	drafts    map[string][]*storage.Draft

	// Sent records requests passed to Send.
	Sent []message.SendRequest
	// SendResult is returned by Send and SendDraft when set.
	SendResult *message.SendResult
	// Drafted records requests passed to WriteDraft.
	Drafted []message.DraftRequest
	// LastRead holds the most recent ReadRequest.
	LastRead message.ReadRequest
}

// NewManager creates a new ManagerStub.
func NewManager() *ManagerStub {
	return &ManagerStub{
		mailboxes: make(map[string][]*message.Message),
		sources:   make(map[string]string),
		drafts:    make(map[string][]*storage.Draft),
	}
}

// AddMessage adds a message to the specified mailbox.
func (m *ManagerStub) AddMessage(mailbox string, msg *message.Message) {
	messages := m.mailboxes[mailbox]
	m.mailboxes[mailbox] = append(messages, msg)
}

// AddSource sets the raw source returned for a message.
func (m *ManagerStub) AddSource(mailbox, id, source string) {
	m.sources[mailbox+"/"+id] = source
}

// AddDraft adds a draft to the specified mailbox.
func (m *ManagerStub) AddDraft(mailbox string, d *storage.Draft) {
	m.drafts[mailbox] = append(m.drafts[mailbox], d)
}

// Read returns the message matching req.MessageID, or every message in the mailbox.
func (m *ManagerStub) Read(
	ctx context.Context,
	mailbox string,
	req message.ReadRequest,
) (*message.ReadResult, error) {
	m.LastRead = req
	if mailbox == "messageserr" {
		return nil, errors.New("internal error")
	}
	if req.MaxResults < 0 {
		return nil, validation.Field("max_results", "max_results must be 0 or greater")
	}
	if req.MessageID != "" {
		msg, err := m.GetMessage(mailbox, req.MessageID)
		if err != nil {
			return nil, err
		}
		return &message.ReadResult{Messages: []*message.Message{msg}}, nil
	}
	return &message.ReadResult{Messages: append([]*message.Message{}, m.mailboxes[mailbox]...)}, nil
}

// GetMessage gets a message by ID from the specified mailbox.
func (m *ManagerStub) GetMessage(mailbox, id string) (*message.Message, error) {
	if mailbox == "messageerr" {
		return nil, errors.New("internal error")
	}
	for _, msg := range m.mailboxes[mailbox] {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, storage.ErrNotExist
}

// Send records the request and returns SendResult.
func (m *ManagerStub) Send(
	ctx context.Context,
	mailbox string,
	req message.SendRequest,
) (*message.SendResult, error) {
	if mailbox == "messageerr" {
		return nil, errors.New("internal error")
	}
	if len(req.To) == 0 {
		return nil, validation.Field("to", "to is a required field")
	}
	m.Sent = append(m.Sent, req)
	if m.SendResult != nil {
		return m.SendResult, nil
	}
	return &message.SendResult{Status: message.StatusSent, MessageID: "1", ThreadID: "1"}, nil
}

// GetDraft gets a draft by ID.
func (m *ManagerStub) GetDraft(mailbox, id string) (*storage.Draft, error) {
	for _, d := range m.drafts[mailbox] {
		if d.DraftID == id {
			return d, nil
		}
	}
	return nil, storage.ErrDraftNotExist
}

// WriteDraft records the request.  Updates of unknown drafts fail with ErrDraftNotExist.
func (m *ManagerStub) WriteDraft(
	ctx context.Context,
	mailbox string,
	req message.DraftRequest,
) (*message.DraftResult, error) {
	if mailbox == "messageerr" {
		return nil, errors.New("internal error")
	}
	id := req.DraftID
	if id == "" {
		id = "draft-" + strconv.Itoa(len(m.Drafted)+1)
	} else if _, err := m.GetDraft(mailbox, id); err != nil {
		return nil, err
	}
	m.Drafted = append(m.Drafted, req)
	return &message.DraftResult{DraftID: id, MessageID: "1", ThreadID: "1"}, nil
}

// SendDraft removes the draft and returns SendResult.
func (m *ManagerStub) SendDraft(
	ctx context.Context,
	mailbox, id string,
	req message.SendDraftRequest,
) (*message.SendResult, error) {
	d, err := m.GetDraft(mailbox, id)
	if err != nil {
		return nil, err
	}
	if err := m.DeleteDraft(mailbox, id); err != nil {
		return nil, err
	}
	if m.SendResult != nil {
		return m.SendResult, nil
	}
	if req.ScheduleTime != nil {
		return &message.SendResult{
			Status:        message.StatusScheduled,
			MessageID:     d.MessageID,
			ThreadID:      d.ThreadID,
			ScheduledTime: req.ScheduleTime,
		}, nil
	}
	return &message.SendResult{Status: message.StatusSent, MessageID: d.MessageID, ThreadID: d.ThreadID}, nil
}

// DeleteDraft removes a stubbed draft.
func (m *ManagerStub) DeleteDraft(mailbox, id string) error {
	for i, d := range m.drafts[mailbox] {
		if d.DraftID == id {
			m.drafts[mailbox] = append(m.drafts[mailbox][:i], m.drafts[mailbox][i+1:]...)
			return nil
		}
	}
	return storage.ErrDraftNotExist
}

// ListDrafts returns the drafts in a mailbox in insertion order.
func (m *ManagerStub) ListDrafts(mailbox string) ([]*storage.Draft, error) {
	if mailbox == "messageserr" {
		return nil, errors.New("internal error")
	}
	return m.drafts[mailbox], nil
}

// ModifyLabels applies label changes to a stubbed message.
func (m *ManagerStub) ModifyLabels(mailbox, id string, add, remove []string) error {
	msg, err := m.GetMessage(mailbox, id)
	if err != nil {
		return err
	}
	labels := storage.NormalizeLabels(append(msg.Labels, add...))
	msg.Labels = lo.Without(labels, storage.NormalizeLabels(remove)...)
	return nil
}

// RemoveMessage deletes a stubbed message.
func (m *ManagerStub) RemoveMessage(mailbox, id string) error {
	if mailbox == "messageerr" {
		return errors.New("internal error")
	}
	for i, msg := range m.mailboxes[mailbox] {
		if msg.ID == id {
			m.mailboxes[mailbox] = append(m.mailboxes[mailbox][:i], m.mailboxes[mailbox][i+1:]...)
			return nil
		}
	}
	return storage.ErrNotExist
}

// PurgeMessages empties a mailbox.
func (m *ManagerStub) PurgeMessages(mailbox string) error {
	delete(m.mailboxes, mailbox)
	return nil
}

// SourceReader returns the source set by AddSource.
func (m *ManagerStub) SourceReader(mailbox, id string) (io.ReadCloser, error) {
	source, ok := m.sources[mailbox+"/"+id]
	if !ok {
		return nil, storage.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(source)), nil
}

// MailboxForAddress invokes policy.ExtractMailbox with full naming.
func (m *ManagerStub) MailboxForAddress(address string) (string, error) {
	addrPolicy := &policy.Addressing{Mail: config.Mail{MailboxNaming: config.FullNaming}}
	return addrPolicy.ExtractMailbox(address)
}
