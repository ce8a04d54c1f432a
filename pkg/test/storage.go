package test

import (
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/inbucket/courier/pkg/message"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/samber/lo"
)

// StoreStub stubs storage.Store for testing.  Messages are kept as *message.Delivery values.
// Mailboxes named "messageerr" and "messageserr" force errors from the single and list getters.
type StoreStub struct {
	storage.Store
	mailboxes map[string][]*message.Delivery
	deleted   map[storage.Message]struct{}
	lastID    int
}

// NewStore creates a new StoreStub.
func NewStore() *StoreStub {
	return &StoreStub{
		mailboxes: make(map[string][]*message.Delivery),
		deleted:   make(map[storage.Message]struct{}),
	}
}

// AddMessage adds a message to the specified mailbox.  Messages that are not a *message.Delivery
// are copied into one.
func (s *StoreStub) AddMessage(m storage.Message) (id string, err error) {
	d, ok := m.(*message.Delivery)
	if !ok {
		d = &message.Delivery{Meta: *storage.MakeMetadata(m)}
		if d.Reader, err = m.Source(); err != nil {
			return "", err
		}
	}
	if d.Meta.ID == "" {
		s.lastID++
		d.Meta.ID = strconv.Itoa(s.lastID)
	}
	mb := d.Mailbox()
	s.mailboxes[mb] = append(s.mailboxes[mb], d)
	return d.ID(), nil
}

// GetMessage gets a message by ID from the specified mailbox.
func (s *StoreStub) GetMessage(mailbox, id string) (storage.Message, error) {
	if mailbox == "messageerr" {
		return nil, errors.New("internal error")
	}
	if d := s.find(mailbox, id); d != nil {
		return d, nil
	}
	return nil, storage.ErrNotExist
}

// GetMessages gets all the messages for the specified mailbox.
func (s *StoreStub) GetMessages(mailbox string) ([]storage.Message, error) {
	if mailbox == "messageserr" {
		return nil, errors.New("internal error")
	}
	return lo.Map(s.mailboxes[mailbox], func(d *message.Delivery, _ int) storage.Message {
		return d
	}), nil
}

// ModifyLabels adds, then removes labels.
func (s *StoreStub) ModifyLabels(mailbox, id string, add, remove []string) error {
	if mailbox == "messageerr" {
		return errors.New("internal error")
	}
	d := s.find(mailbox, id)
	if d == nil {
		return storage.ErrNotExist
	}
	labels := storage.NormalizeLabels(append(slices.Clone(d.Meta.Labels), add...))
	d.Meta.Labels = lo.Without(labels, storage.NormalizeLabels(remove)...)
	return nil
}

// MarkSent relabels a scheduled message as sent.
func (s *StoreStub) MarkSent(mailbox, id string, date time.Time) error {
	d := s.find(mailbox, id)
	if d == nil {
		return storage.ErrNotExist
	}
	labels := lo.Without(d.Meta.Labels, storage.LabelScheduled)
	d.Meta.Labels = storage.NormalizeLabels(append(labels, storage.LabelSent))
	d.Meta.Date = date
	d.Meta.ScheduledAt = time.Time{}
	return nil
}

// RemoveMessage deletes a message by ID from the specified mailbox.
func (s *StoreStub) RemoveMessage(mailbox, id string) error {
	mb := s.mailboxes[mailbox]
	for i, m := range mb {
		if m.ID() == id {
			s.mailboxes[mailbox] = slices.Delete(mb, i, i+1)
			s.deleted[m] = struct{}{}
			return nil
		}
	}
	return storage.ErrNotExist
}

// PurgeMessages deletes all messages in the specified mailbox.
func (s *StoreStub) PurgeMessages(mailbox string) error {
	for _, m := range s.mailboxes[mailbox] {
		s.deleted[m] = struct{}{}
	}
	delete(s.mailboxes, mailbox)
	return nil
}

// VisitMailboxes accepts a function that will be called with the messages in each mailbox while it
// continues to return true.
func (s *StoreStub) VisitMailboxes(f func([]storage.Message) (cont bool)) error {
	for mailbox := range s.mailboxes {
		msgs, _ := s.GetMessages(mailbox)
		if !f(msgs) {
			return nil
		}
	}
	return nil
}

// MessageDeleted returns true if the specified message was deleted
func (s *StoreStub) MessageDeleted(m storage.Message) bool {
	_, ok := s.deleted[m]
	return ok
}

func (s *StoreStub) find(mailbox, id string) *message.Delivery {
	for _, d := range s.mailboxes[mailbox] {
		if d.ID() == id {
			return d
		}
	}
	return nil
}
