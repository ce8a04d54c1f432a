package message

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/inbucket/courier/pkg/extension/event"
	"github.com/inbucket/courier/pkg/sanitize"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/inbucket/courier/pkg/validation"
	"github.com/rs/zerolog/log"
)

// Send composes a message from mailbox and transmits it, or stores it for the scheduler when
// req.ScheduleTime is set.
func (s *StoreManager) Send(ctx context.Context, mailbox string, req SendRequest) (*SendResult, error) {
	o, verr, err := s.resolveSend(mailbox, req)
	if err != nil {
		return nil, err
	}
	o.MessageID = s.IDs.MessageID()
	if o.ThreadID == "" {
		o.ThreadID = s.threadFor(mailbox, o.InReplyTo, o.MessageID)
	}
	return s.submit(ctx, mailbox, o, verr)
}

// resolveSend parses the addresses and attachments of req.  Validation failures are collected
// in verr so they can be reported together with the checks made by submit.
func (s *StoreManager) resolveSend(
	mailbox string,
	req SendRequest,
) (o *outgoing, verr validation.Error, err error) {
	verr = validation.Error{}
	o = &outgoing{
		ThreadID:     req.ThreadID,
		InReplyTo:    req.InReplyTo,
		From:         s.senderAddress(mailbox),
		Subject:      req.Subject,
		BodyText:     req.BodyText,
		BodyHTML:     req.BodyHTML,
		Headers:      req.Headers,
		Priority:     req.Priority,
		ScheduleTime: req.ScheduleTime,
	}
	if o.To, err = s.parseAddresses("to", req.To); err != nil {
		if !mergeValidation(verr, err) {
			return nil, nil, err
		}
	}
	if o.Cc, err = s.parseAddresses("cc", req.Cc); err != nil {
		if !mergeValidation(verr, err) {
			return nil, nil, err
		}
	}
	if o.Bcc, err = s.parseAddresses("bcc", req.Bcc); err != nil {
		if !mergeValidation(verr, err) {
			return nil, nil, err
		}
	}
	if o.Attachments, err = s.resolveAttachments(mailbox, req.Attachments); err != nil {
		if !mergeValidation(verr, err) {
			return nil, nil, err
		}
	}
	return o, verr, nil
}

// SendDraft sends or schedules a draft under its message ID, then deletes the draft.
func (s *StoreManager) SendDraft(
	ctx context.Context,
	mailbox, id string,
	req SendDraftRequest,
) (*SendResult, error) {
	d, err := s.Drafts.GetDraft(mailbox, id)
	if err != nil {
		return nil, err
	}
	o := &outgoing{
		MessageID:    d.MessageID,
		ThreadID:     d.ThreadID,
		InReplyTo:    d.InReplyTo,
		From:         s.senderAddress(mailbox),
		To:           d.To,
		Cc:           d.Cc,
		Bcc:          d.Bcc,
		Subject:      d.Subject,
		BodyText:     d.BodyText,
		BodyHTML:     d.BodyHTML,
		Attachments:  d.Attachments,
		Headers:      d.Headers,
		Priority:     req.Priority,
		ScheduleTime: req.ScheduleTime,
	}
	result, err := s.submit(ctx, mailbox, o, nil)
	if err != nil {
		return nil, err
	}
	if err := s.Drafts.RemoveDraft(mailbox, id); err != nil {
		log.Warn().Str("module", "message").Str("mailbox", mailbox).Str("draft", id).Err(err).
			Msg("Failed to remove sent draft")
	}
	expCounters.Add("drafts_sent", 1)
	return result, nil
}

// submit validates, renders and stores o, transmitting it unless it is scheduled.  Failures in
// prior are reported along with those found by check.
func (s *StoreManager) submit(
	ctx context.Context,
	mailbox string,
	o *outgoing,
	prior validation.Error,
) (*SendResult, error) {
	now := s.now()
	if err := s.check(o, now, prior); err != nil {
		return nil, err
	}
	o.Date = now
	source, err := s.render(o)
	if err != nil {
		return nil, err
	}
	if limit := s.Config.MaxMessageBytes; limit > 0 && len(source) > limit {
		return nil, validation.Fieldf("body", "message size %d exceeds the %d byte limit",
			len(source), limit)
	}

	label := storage.LabelSent
	meta := event.MessageMetadata{
		Mailbox:  mailbox,
		ID:       o.MessageID,
		ThreadID: o.ThreadID,
		From:     o.From,
		To:       o.To,
		Cc:       o.Cc,
		Bcc:      o.Bcc,
		Date:     now,
		Subject:  o.Subject,
		Snippet:  snippetOf(o.BodyText, o.BodyHTML),
		Size:     int64(len(source)),
	}
	if o.ScheduleTime != nil {
		label = storage.LabelScheduled
		meta.ScheduledAt = o.ScheduleTime.UTC()
	}
	meta.Labels = []string{label}

	delivery := &Delivery{Meta: meta, Reader: bytes.NewReader(source)}
	if _, err := s.Store.AddMessage(delivery); err != nil {
		return nil, fmt.Errorf("store message %s/%s: %w", mailbox, o.MessageID, err)
	}
	slog := log.With().Str("module", "message").Str("mailbox", mailbox).Str("id", o.MessageID).
		Logger()

	if o.ScheduleTime != nil {
		slog.Debug().Time("scheduled", meta.ScheduledAt).Msg("Message scheduled")
		expCounters.Add("scheduled", 1)
		s.ExtHost.Events.AfterMessageScheduled.Emit(&meta)
		scheduled := *o.ScheduleTime
		return &SendResult{
			Status:        StatusScheduled,
			MessageID:     o.MessageID,
			ThreadID:      o.ThreadID,
			ScheduledTime: &scheduled,
		}, nil
	}

	if err := s.Transport.Deliver(ctx, outboundFrom(&meta, source)); err != nil {
		expCounters.Add("send_failed", 1)
		// A failed send must not leave a SENT copy behind.
		if rerr := s.Store.RemoveMessage(mailbox, o.MessageID); rerr != nil {
			slog.Warn().Err(rerr).Msg("Failed to remove unsent message")
		}
		return nil, fmt.Errorf("deliver message %s/%s: %w", mailbox, o.MessageID, err)
	}
	slog.Debug().Int("recipients", len(o.recipients())).Msg("Message sent")
	expCounters.Add("sent", 1)
	s.ExtHost.Events.AfterMessageSent.Emit(&meta)
	return &SendResult{
		Status:    StatusSent,
		MessageID: o.MessageID,
		ThreadID:  o.ThreadID,
		Date:      now,
	}, nil
}

// outboundFrom builds the transport view of a stored message.
func outboundFrom(meta *event.MessageMetadata, source []byte) *Outbound {
	out := &Outbound{
		Mailbox:   meta.Mailbox,
		MessageID: meta.ID,
		ThreadID:  meta.ThreadID,
		From:      meta.From,
		To:        meta.To,
		Cc:        meta.Cc,
		Bcc:       meta.Bcc,
		Subject:   meta.Subject,
		Snippet:   meta.Snippet,
		Date:      meta.Date,
		Source:    source,
	}
	out.Recipients = append(out.Recipients, meta.To...)
	out.Recipients = append(out.Recipients, meta.Cc...)
	out.Recipients = append(out.Recipients, meta.Bcc...)
	return out
}

func snippetOf(text, html string) string {
	if text == "" {
		text = sanitize.Text(html)
	}
	return makeSnippet(text)
}

// mergeValidation merges err into verr if it is a validation failure, reporting whether it was.
func mergeValidation(verr validation.Error, err error) bool {
	var fields validation.Error
	if !errors.As(err, &fields) {
		return false
	}
	verr.Merge(fields)
	return true
}
