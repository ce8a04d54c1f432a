package mem

import (
	"sort"
	"sync"

	"github.com/inbucket/courier/pkg/storage"
	"github.com/samber/lo"
)

// DraftStore implements an in-memory storage.DraftStore.
type DraftStore struct {
	sync.Mutex
	boxes map[string]*draftBox
}

type draftBox struct {
	sync.Mutex
	drafts map[string]*storage.Draft
}

var _ storage.DraftStore = &DraftStore{}

// NewDraftStore returns an empty draft store.
func NewDraftStore() *DraftStore {
	return &DraftStore{boxes: make(map[string]*draftBox)}
}

// AddDraft stores a new draft.
func (s *DraftStore) AddDraft(d *storage.Draft) (err error) {
	s.withDrafts(d.Mailbox, func(db *draftBox) {
		if _, ok := db.drafts[d.DraftID]; ok {
			err = storage.ErrExists
			return
		}
		db.drafts[d.DraftID] = d.Clone()
	})
	return err
}

// GetDraft returns a copy of the stored draft.
func (s *DraftStore) GetDraft(mailbox, id string) (d *storage.Draft, err error) {
	s.withDrafts(mailbox, func(db *draftBox) {
		if stored, ok := db.drafts[id]; ok {
			d = stored.Clone()
		} else {
			err = storage.ErrDraftNotExist
		}
	})
	return d, err
}

// GetDrafts returns copies of all drafts in the mailbox, most recently updated first.
func (s *DraftStore) GetDrafts(mailbox string) (ds []*storage.Draft, err error) {
	s.withDrafts(mailbox, func(db *draftBox) {
		ds = lo.Map(lo.Values(db.drafts), func(d *storage.Draft, _ int) *storage.Draft {
			return d.Clone()
		})
	})
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].UpdatedAt.Equal(ds[j].UpdatedAt) {
			return ds[i].DraftID > ds[j].DraftID
		}
		return ds[i].UpdatedAt.After(ds[j].UpdatedAt)
	})
	return ds, err
}

// UpdateDraft applies f to a copy of the draft, storing the copy if f succeeds.
func (s *DraftStore) UpdateDraft(
	mailbox, id string,
	f func(d *storage.Draft) error,
) (d *storage.Draft, err error) {
	s.withDrafts(mailbox, func(db *draftBox) {
		stored, ok := db.drafts[id]
		if !ok {
			err = storage.ErrDraftNotExist
			return
		}
		work := stored.Clone()
		if err = f(work); err != nil {
			return
		}
		// Identity fields cannot be changed by f.
		work.Mailbox, work.DraftID = stored.Mailbox, stored.DraftID
		db.drafts[id] = work
		d = work.Clone()
	})
	return d, err
}

// RemoveDraft deletes a draft.
func (s *DraftStore) RemoveDraft(mailbox, id string) (err error) {
	s.withDrafts(mailbox, func(db *draftBox) {
		if _, ok := db.drafts[id]; !ok {
			err = storage.ErrDraftNotExist
			return
		}
		delete(db.drafts, id)
	})
	return err
}

// withDrafts gets or creates the draft box for a mailbox, locks it, then calls f.
func (s *DraftStore) withDrafts(mailbox string, f func(db *draftBox)) {
	s.Lock()
	db, ok := s.boxes[mailbox]
	if !ok {
		db = &draftBox{drafts: make(map[string]*storage.Draft)}
		s.boxes[mailbox] = db
	}
	s.Unlock()
	db.Lock()
	defer db.Unlock()
	f(db)
}
