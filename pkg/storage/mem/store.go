// Package mem implements in-memory message and draft storage.
package mem

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/extension"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/samber/lo"
)

// Store implements an in-memory message store.
type Store struct {
	sync.Mutex
	boxes    map[string]*mbox
	cap      int           // Per-mailbox message cap.
	incoming chan *msgDone // New messages for size enforcer.
	remove   chan *msgDone // Remove deleted messages from size enforcer.
	extHost  *extension.Host
}

type mbox struct {
	sync.RWMutex
	name     string
	last     int // Last generated ID.
	next     int // Next insertion index.
	messages map[string]*Message
}

var _ storage.Store = &Store{}

// New returns an empty memory store.
func New(cfg config.Storage, extHost *extension.Host) (storage.Store, error) {
	if extHost == nil {
		extHost = extension.NewHost()
	}
	s := &Store{
		boxes:   make(map[string]*mbox),
		cap:     cfg.MailboxMsgCap,
		extHost: extHost,
	}
	if str, ok := cfg.Params["maxkb"]; ok {
		maxKB, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse maxkb: %v", err)
		}
		if maxKB > 0 {
			// Setup enforcer.
			s.incoming = make(chan *msgDone)
			s.remove = make(chan *msgDone)
			go s.maxSizeEnforcer(maxKB * 1024)
		}
	}
	return s, nil
}

// AddMessage stores the message.  Size is computed from the source, and an empty ID is replaced
// with a generated one.
func (s *Store) AddMessage(message storage.Message) (id string, err error) {
	r, err := message.Source()
	if err != nil {
		return "", err
	}
	source, err := io.ReadAll(r)
	_ = r.Close()
	if err != nil {
		return "", err
	}
	m := &Message{
		mailbox:     message.Mailbox(),
		id:          message.ID(),
		threadID:    message.ThreadID(),
		from:        message.From(),
		to:          message.To(),
		cc:          message.Cc(),
		bcc:         message.Bcc(),
		date:        message.Date(),
		subject:     message.Subject(),
		snippet:     message.Snippet(),
		labels:      storage.NormalizeLabels(message.Labels()),
		scheduledAt: message.ScheduledAt(),
		source:      source,
	}
	var evicted []*Message
	s.withMailbox(m.mailbox, true, func(mb *mbox) {
		if m.id == "" {
			for {
				mb.last++
				m.id = strconv.Itoa(mb.last)
				if _, taken := mb.messages[m.id]; !taken {
					break
				}
			}
		} else if _, taken := mb.messages[m.id]; taken {
			err = storage.ErrExists
			return
		}
		if m.threadID == "" {
			m.threadID = m.id
		}
		m.index = mb.next
		mb.next++
		mb.messages[m.id] = m

		if s.cap > 0 {
			// Enforce cap.
			for len(mb.messages) > s.cap {
				oldest := mb.oldest()
				delete(mb.messages, oldest.id)
				evicted = append(evicted, oldest)
			}
		}
	})
	if err != nil {
		return "", err
	}
	for _, old := range evicted {
		s.enforcerRemove(old)
		s.extHost.Events.AfterMessageDeleted.Emit(storage.MakeMetadata(old))
	}
	s.enforcerDeliver(m)
	return m.id, nil
}

// GetMessage gets a message.
func (s *Store) GetMessage(mailbox, id string) (m storage.Message, err error) {
	s.withMailbox(mailbox, false, func(mb *mbox) {
		if msg, ok := mb.messages[id]; ok {
			m = msg.snapshot()
		} else {
			err = storage.ErrNotExist
		}
	})
	return m, err
}

// GetMessages gets a list of messages, in the order they were stored.
func (s *Store) GetMessages(mailbox string) (ms []storage.Message, err error) {
	s.withMailbox(mailbox, false, func(mb *mbox) {
		sorted := lo.Values(mb.messages)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].index < sorted[j].index
		})
		ms = make([]storage.Message, len(sorted))
		for i, m := range sorted {
			ms[i] = m.snapshot()
		}
	})
	return ms, err
}

// ModifyLabels adds, then removes labels on a message.
func (s *Store) ModifyLabels(mailbox, id string, add, remove []string) (err error) {
	add = storage.NormalizeLabels(add)
	remove = storage.NormalizeLabels(remove)
	s.withMailbox(mailbox, true, func(mb *mbox) {
		m, ok := mb.messages[id]
		if !ok {
			err = storage.ErrNotExist
			return
		}
		labels := storage.NormalizeLabels(append(m.labels, add...))
		m.labels = lo.Without(labels, remove...)
	})
	return err
}

// MarkSent records that a scheduled message has been transmitted.
func (s *Store) MarkSent(mailbox, id string, date time.Time) (err error) {
	s.withMailbox(mailbox, true, func(mb *mbox) {
		m, ok := mb.messages[id]
		if !ok {
			err = storage.ErrNotExist
			return
		}
		labels := lo.Without(m.labels, storage.LabelScheduled)
		m.labels = storage.NormalizeLabels(append(labels, storage.LabelSent))
		m.date = date
		m.scheduledAt = time.Time{}
	})
	return err
}

// PurgeMessages deletes the contents of a mailbox.
func (s *Store) PurgeMessages(mailbox string) error {
	// Grab lock, copy messages, clear, and drop lock.
	var messages map[string]*Message
	s.withMailbox(mailbox, true, func(mb *mbox) {
		messages = mb.messages
		mb.messages = make(map[string]*Message)
	})

	// Process size/quota.
	if s.remove != nil {
		for _, m := range messages {
			s.enforcerRemove(m)
		}
	}

	// Emit delete events.
	for _, m := range messages {
		s.extHost.Events.AfterMessageDeleted.Emit(storage.MakeMetadata(m))
	}

	return nil
}

// removeMessage deletes a single message without notifying the size enforcer.  Returns the message
// that was removed.
func (s *Store) removeMessage(mailbox, id string) *Message {
	var m *Message
	s.withMailbox(mailbox, true, func(mb *mbox) {
		m = mb.messages[id]
		if m != nil {
			delete(mb.messages, id)
		}
	})

	if m != nil {
		s.extHost.Events.AfterMessageDeleted.Emit(storage.MakeMetadata(m))
	}

	return m
}

// RemoveMessage deletes a single message.
func (s *Store) RemoveMessage(mailbox, id string) error {
	m := s.removeMessage(mailbox, id)
	if m == nil {
		return storage.ErrNotExist
	}
	s.enforcerRemove(m)
	return nil
}

// VisitMailboxes visits each mailbox in the store.
func (s *Store) VisitMailboxes(f func([]storage.Message) (cont bool)) error {
	// Lock store, get names of all mailboxes.
	s.Lock()
	boxNames := lo.Keys(s.boxes)
	s.Unlock()
	sort.Strings(boxNames)
	// Process mailboxes.
	for _, mailbox := range boxNames {
		ms, err := s.GetMessages(mailbox)
		if err != nil {
			return err
		}
		if !f(ms) {
			break
		}
	}
	return nil
}

// withMailbox gets or creates a mailbox, locks it, then calls f.
func (s *Store) withMailbox(mailbox string, writeLock bool, f func(mb *mbox)) {
	s.Lock()
	mb, ok := s.boxes[mailbox]
	if !ok {
		// Create mailbox
		mb = &mbox{
			name:     mailbox,
			messages: make(map[string]*Message),
		}
		s.boxes[mailbox] = mb
	}
	s.Unlock()
	if writeLock {
		mb.Lock()
		defer mb.Unlock()
	} else {
		mb.RLock()
		defer mb.RUnlock()
	}
	f(mb)
}

// oldest returns the earliest stored message.  Lock must be held.
func (mb *mbox) oldest() *Message {
	return lo.MinBy(lo.Values(mb.messages), func(a, b *Message) bool {
		return a.index < b.index
	})
}
