package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/inbucket/courier/pkg/extension"
	"github.com/inbucket/courier/pkg/extension/event"
	"github.com/inbucket/courier/pkg/ident"
	"github.com/inbucket/courier/pkg/message"
	"github.com/inbucket/courier/pkg/policy"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/rs/zerolog/log"
)

// Local delivers a copy of each message into the mailbox of every local recipient.
type Local struct {
	Store      storage.Store
	AddrPolicy *policy.Addressing
	IDs        *ident.Generator
	ExtHost    *extension.Host
}

var _ message.Transport = &Local{}

// Deliver stores an INBOX copy per recipient mailbox.  Recipients outside the local domains are
// skipped.  Blind copy recipients are not revealed to other recipients.  Delivery is all or
// nothing: if any copy fails, the copies already stored are removed, so that a retried send
// does not deliver twice.
func (l *Local) Deliver(ctx context.Context, out *message.Outbound) error {
	slog := log.With().Str("module", "transport").Str("id", out.MessageID).Logger()
	seen := make(map[string]bool)
	var delivered []*event.MessageMetadata
	var errs []error
	for _, addr := range out.Recipients {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		r, err := l.AddrPolicy.NewRecipient(addr.Address)
		if err != nil {
			errs = append(errs, err)
			break
		}
		if !r.ShouldDeliver() {
			slog.Debug().Str("recipient", addr.Address).Msg("Skipping non-local recipient")
			continue
		}
		if seen[r.Mailbox] {
			continue
		}
		seen[r.Mailbox] = true

		meta := &event.MessageMetadata{
			Mailbox:  r.Mailbox,
			ID:       l.IDs.MessageID(),
			ThreadID: out.ThreadID,
			From:     out.From,
			To:       out.To,
			Cc:       out.Cc,
			Date:     out.Date,
			Subject:  out.Subject,
			Snippet:  out.Snippet,
			Labels:   []string{storage.LabelInbox, storage.LabelUnread},
			Size:     int64(len(out.Source)),
		}
		delivery := &message.Delivery{Meta: *meta, Reader: bytes.NewReader(out.Source)}
		id, err := l.Store.AddMessage(delivery)
		if err != nil {
			errs = append(errs, fmt.Errorf("deliver to %s: %w", r.Mailbox, err))
			break
		}
		meta.ID = id
		delivered = append(delivered, meta)
	}

	if len(errs) > 0 {
		for _, meta := range delivered {
			if err := l.Store.RemoveMessage(meta.Mailbox, meta.ID); err != nil {
				slog.Warn().Str("mailbox", meta.Mailbox).Err(err).
					Msg("Failed to remove partially delivered message")
			}
		}
		return errors.Join(errs...)
	}
	for _, meta := range delivered {
		slog.Debug().Str("mailbox", meta.Mailbox).Msg("Delivered message")
		l.ExtHost.Events.AfterMessageDelivered.Emit(meta)
	}
	return nil
}
