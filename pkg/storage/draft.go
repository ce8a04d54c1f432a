package storage

import (
	"net/mail"
	"time"
)

// ErrDraftNotExist indicates the requested draft does not exist.  It satisfies
// errors.Is(err, ErrNotExist).
var ErrDraftNotExist error = draftNotExist{}

type draftNotExist struct{}

func (draftNotExist) Error() string { return "draft does not exist" }

func (draftNotExist) Is(target error) bool { return target == ErrNotExist }

// Draft is an unsent, mutable composition.
type Draft struct {
	Mailbox     string
	DraftID     string
	MessageID   string
	ThreadID    string
	InReplyTo   string
	To          []*mail.Address
	Cc          []*mail.Address
	Bcc         []*mail.Address
	Subject     string
	BodyText    string
	BodyHTML    string
	Attachments []Attachment
	Headers     map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Attachment is the resolved content of a draft attachment.
type Attachment struct {
	Filename string
	MimeType string
	Content  []byte
}

// Clone returns a deep copy of the draft.
func (d *Draft) Clone() *Draft {
	c := *d
	c.To = cloneAddresses(d.To)
	c.Cc = cloneAddresses(d.Cc)
	c.Bcc = cloneAddresses(d.Bcc)
	c.Attachments = append([]Attachment(nil), d.Attachments...)
	if d.Headers != nil {
		c.Headers = make(map[string]string, len(d.Headers))
		for k, v := range d.Headers {
			c.Headers[k] = v
		}
	}
	return &c
}

// DraftStore persists drafts, keyed by mailbox and draft ID.
type DraftStore interface {
	// AddDraft stores a new draft.  ErrExists is returned if the ID is taken.
	AddDraft(d *Draft) error
	GetDraft(mailbox, id string) (*Draft, error)
	// GetDrafts returns the drafts in a mailbox, most recently updated first.
	GetDrafts(mailbox string) ([]*Draft, error)
	// UpdateDraft calls f with a copy of the stored draft while holding the mailbox lock, and
	// stores the result when f returns nil.
	UpdateDraft(mailbox, id string, f func(d *Draft) error) (*Draft, error)
	RemoveDraft(mailbox, id string) error
}

func cloneAddresses(addrs []*mail.Address) []*mail.Address {
	if addrs == nil {
		return nil
	}
	c := make([]*mail.Address, len(addrs))
	for i, a := range addrs {
		if a != nil {
			v := *a
			c[i] = &v
		}
	}
	return c
}
