package message

import (
	"context"
	"maps"
	"net/mail"
	"time"

	"github.com/inbucket/courier/pkg/extension/event"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/inbucket/courier/pkg/validation"
	"github.com/rs/zerolog/log"
)

// WriteDraft creates a draft when req.DraftID is empty, otherwise updates the existing draft.
// Nothing is transmitted.
func (s *StoreManager) WriteDraft(
	ctx context.Context,
	mailbox string,
	req DraftRequest,
) (*DraftResult, error) {
	patch, err := s.resolveDraft(mailbox, req)
	if err != nil {
		return nil, err
	}

	var d *storage.Draft
	if req.DraftID == "" {
		now := s.now()
		d = &storage.Draft{
			Mailbox:   mailbox,
			DraftID:   s.IDs.DraftID(),
			MessageID: s.IDs.MessageID(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		patch.apply(d)
		d.ThreadID = s.threadFor(mailbox, d.InReplyTo, d.MessageID)
		if err := s.Drafts.AddDraft(d); err != nil {
			return nil, err
		}
	} else {
		d, err = s.Drafts.UpdateDraft(mailbox, req.DraftID, func(d *storage.Draft) error {
			patch.apply(d)
			d.ThreadID = s.threadFor(mailbox, d.InReplyTo, d.MessageID)
			d.UpdatedAt = advance(d.UpdatedAt, s.now())
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	log.Debug().Str("module", "message").Str("mailbox", mailbox).Str("draft", d.DraftID).
		Msg("Draft saved")
	expCounters.Add("drafts_saved", 1)
	s.ExtHost.Events.AfterDraftSaved.Emit(&event.DraftMetadata{
		Mailbox:   d.Mailbox,
		DraftID:   d.DraftID,
		MessageID: d.MessageID,
		ThreadID:  d.ThreadID,
		To:        d.To,
		Subject:   d.Subject,
		UpdatedAt: d.UpdatedAt,
	})
	return &DraftResult{
		DraftID:   d.DraftID,
		MessageID: d.MessageID,
		ThreadID:  d.ThreadID,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

// GetDraft returns the specified draft.
func (s *StoreManager) GetDraft(mailbox, id string) (*storage.Draft, error) {
	return s.Drafts.GetDraft(mailbox, id)
}

// ListDrafts returns the drafts in mailbox, most recently updated first.
func (s *StoreManager) ListDrafts(mailbox string) ([]*storage.Draft, error) {
	return s.Drafts.GetDrafts(mailbox)
}

// DeleteDraft discards a draft.
func (s *StoreManager) DeleteDraft(mailbox, id string) error {
	return s.Drafts.RemoveDraft(mailbox, id)
}

// draftPatch is a validated DraftRequest, ready to be applied to a stored draft.
type draftPatch struct {
	req         DraftRequest
	to, cc, bcc []*mail.Address
	attachments []storage.Attachment
}

// resolveDraft parses addresses and attachments.  Presence of body and recipients is not
// required until the draft is sent.
func (s *StoreManager) resolveDraft(mailbox string, req DraftRequest) (*draftPatch, error) {
	verr := validation.Error{}
	p := &draftPatch{req: req}
	var err error
	if p.to, err = s.parseAddresses("to", req.To); err != nil && !mergeValidation(verr, err) {
		return nil, err
	}
	if p.cc, err = s.parseAddresses("cc", req.Cc); err != nil && !mergeValidation(verr, err) {
		return nil, err
	}
	if p.bcc, err = s.parseAddresses("bcc", req.Bcc); err != nil && !mergeValidation(verr, err) {
		return nil, err
	}
	p.attachments, err = s.resolveAttachments(mailbox, req.Attachments)
	if err != nil && !mergeValidation(verr, err) {
		return nil, err
	}
	verr.Merge(checkHeaders(req.Headers))
	for k := range req.Headers {
		if !validation.ValidHeaderName(k) {
			verr.Merge(validation.Fieldf("headers["+k+"]", "headers[%s] must be a valid header name", k))
		}
	}
	return p, verr.OrNil()
}

// apply copies the fields present in the request onto d.
func (p *draftPatch) apply(d *storage.Draft) {
	if p.req.To != nil {
		d.To = p.to
	}
	if p.req.Cc != nil {
		d.Cc = p.cc
	}
	if p.req.Bcc != nil {
		d.Bcc = p.bcc
	}
	if p.req.Subject != nil {
		d.Subject = *p.req.Subject
	}
	if p.req.BodyText != nil {
		d.BodyText = *p.req.BodyText
	}
	if p.req.BodyHTML != nil {
		d.BodyHTML = *p.req.BodyHTML
	}
	if p.req.InReplyTo != nil {
		d.InReplyTo = *p.req.InReplyTo
	}
	if p.req.Attachments != nil {
		d.Attachments = p.attachments
	}
	if p.req.Headers != nil {
		d.Headers = maps.Clone(p.req.Headers)
	}
}

// advance returns now, or the instant just after prev when the clock has not moved past it.
func advance(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}
