package message

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/extension"
	"github.com/inbucket/courier/pkg/ident"
	"github.com/inbucket/courier/pkg/metric"
	"github.com/inbucket/courier/pkg/policy"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/inbucket/courier/pkg/validation"
	"github.com/jhillyerd/enmime/v2"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

var expCounters = metric.NewCounters("message",
	"sent", "scheduled", "send_failed", "drafts_saved", "drafts_sent", "reads")

// Manager is the interface controllers use to interact with messages.
type Manager interface {
	Read(ctx context.Context, mailbox string, req ReadRequest) (*ReadResult, error)
	GetMessage(mailbox, id string) (*Message, error)
	Send(ctx context.Context, mailbox string, req SendRequest) (*SendResult, error)
	WriteDraft(ctx context.Context, mailbox string, req DraftRequest) (*DraftResult, error)
	GetDraft(mailbox, id string) (*storage.Draft, error)
	ListDrafts(mailbox string) ([]*storage.Draft, error)
	DeleteDraft(mailbox, id string) error
	SendDraft(ctx context.Context, mailbox, id string, req SendDraftRequest) (*SendResult, error)
	ModifyLabels(mailbox, id string, add, remove []string) error
	PurgeMessages(mailbox string) error
	RemoveMessage(mailbox, id string) error
	SourceReader(mailbox, id string) (io.ReadCloser, error)
	MailboxForAddress(address string) (string, error)
}

// Outbound is a rendered message handed to a Transport.
type Outbound struct {
	Mailbox    string
	MessageID  string
	ThreadID   string
	From       *mail.Address
	To         []*mail.Address
	Cc         []*mail.Address
	Bcc        []*mail.Address
	Subject    string
	Snippet    string
	Date       time.Time
	Source     []byte
	Recipients []*mail.Address // Envelope recipients: to, cc and bcc.
}

// Transport transmits outbound messages.
type Transport interface {
	Deliver(ctx context.Context, out *Outbound) error
}

// StoreManager is a message Manager backed by the storage.Store.
type StoreManager struct {
	Config     config.Mail
	AddrPolicy *policy.Addressing
	Store      storage.Store
	Drafts     storage.DraftStore
	Transport  Transport
	ExtHost    *extension.Host
	IDs        *ident.Generator
	Validator  *validation.Validator
	// Clock defaults to time.Now.
	Clock func() time.Time
}

var _ Manager = &StoreManager{}

// GetMessage returns the specified message with its body.
func (s *StoreManager) GetMessage(mailbox, id string) (*Message, error) {
	sm, err := s.Store.GetMessage(mailbox, id)
	if err != nil {
		return nil, err
	}
	return s.loadMessage(sm, true)
}

// ModifyLabels adds and removes labels.  SCHEDULED is owned by the scheduler and cannot be
// added or removed by callers; deleting the message cancels a scheduled send.
func (s *StoreManager) ModifyLabels(mailbox, id string, add, remove []string) error {
	add = storage.NormalizeLabels(add)
	remove = storage.NormalizeLabels(remove)
	verr := validation.Error{}
	if lo.Contains(add, storage.LabelScheduled) {
		verr.Merge(validation.Fieldf("add_labels", "label %s cannot be added",
			storage.LabelScheduled))
	}
	if lo.Contains(remove, storage.LabelScheduled) {
		verr.Merge(validation.Fieldf("remove_labels", "label %s cannot be removed",
			storage.LabelScheduled))
	}
	if err := verr.OrNil(); err != nil {
		return err
	}
	log.Debug().Str("module", "message").Str("mailbox", mailbox).Str("id", id).
		Strs("add", add).Strs("remove", remove).Msg("Modifying labels")
	return s.Store.ModifyLabels(mailbox, id, add, remove)
}

// PurgeMessages removes all messages from the specified mailbox.
func (s *StoreManager) PurgeMessages(mailbox string) error {
	return s.Store.PurgeMessages(mailbox)
}

// RemoveMessage deletes the specified message.
func (s *StoreManager) RemoveMessage(mailbox, id string) error {
	return s.Store.RemoveMessage(mailbox, id)
}

// SourceReader allows the stored message source to be read.
func (s *StoreManager) SourceReader(mailbox, id string) (io.ReadCloser, error) {
	sm, err := s.Store.GetMessage(mailbox, id)
	if err != nil {
		return nil, err
	}
	return sm.Source()
}

// MailboxForAddress parses an email address to return the canonical mailbox name.
func (s *StoreManager) MailboxForAddress(mailbox string) (string, error) {
	return s.AddrPolicy.ExtractMailbox(mailbox)
}

func (s *StoreManager) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

// senderAddress returns the From address used for mail sent from mailbox.
func (s *StoreManager) senderAddress(mailbox string) *mail.Address {
	if strings.Contains(mailbox, "@") {
		return &mail.Address{Address: mailbox}
	}
	return &mail.Address{Address: mailbox + "@" + s.Config.Domain}
}

// threadFor returns the thread of the parent message, or fallback if the parent is unknown.
func (s *StoreManager) threadFor(mailbox, parentID, fallback string) string {
	if parentID == "" {
		return fallback
	}
	parent, err := s.Store.GetMessage(mailbox, parentID)
	if err != nil {
		return fallback
	}
	if t := parent.ThreadID(); t != "" {
		return t
	}
	return parent.ID()
}

// readEnvelope parses the stored source of a message.
func (s *StoreManager) readEnvelope(mailbox, id string) (*enmime.Envelope, error) {
	sm, err := s.Store.GetMessage(mailbox, id)
	if err != nil {
		return nil, err
	}
	return parseSource(sm)
}

func parseSource(sm storage.Message) (*enmime.Envelope, error) {
	r, err := sm.Source()
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, fmt.Errorf("parse message %s/%s: %w", sm.Mailbox(), sm.ID(), err)
	}
	return env, nil
}
