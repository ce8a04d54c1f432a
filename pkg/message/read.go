package message

import (
	"context"
	"fmt"
	"sort"

	"github.com/inbucket/courier/pkg/message/search"
	"github.com/inbucket/courier/pkg/sanitize"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/inbucket/courier/pkg/stringutil"
	"github.com/inbucket/courier/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Read returns a single message by ID, or the messages matching the query and label filters.
func (s *StoreManager) Read(ctx context.Context, mailbox string, req ReadRequest) (*ReadResult, error) {
	includeBody := req.IncludeBody == nil || *req.IncludeBody
	expCounters.Add("reads", 1)

	if req.MessageID != "" {
		sm, err := s.Store.GetMessage(mailbox, req.MessageID)
		if err != nil {
			return nil, err
		}
		m, err := s.loadMessage(sm, includeBody)
		if err != nil {
			return nil, err
		}
		return &ReadResult{Messages: []*Message{m}}, nil
	}

	limit, err := s.resultLimit(req.MaxResults)
	if err != nil {
		return nil, err
	}
	query, err := search.Parse(req.Query)
	if err != nil {
		return nil, err
	}
	labels := storage.NormalizeLabels(req.Labels)

	stored, err := s.Store.GetMessages(mailbox)
	if err != nil {
		return nil, err
	}
	matched := lo.Filter(stored, func(sm storage.Message, _ int) bool {
		if !lo.EveryBy(labels, func(l string) bool { return storage.HasLabel(sm, l) }) {
			return false
		}
		return query.Match(document(sm))
	})
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.Date().Equal(b.Date()) {
			return a.Date().After(b.Date())
		}
		return idLess(b.ID(), a.ID())
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}

	result := &ReadResult{Messages: make([]*Message, 0, len(matched))}
	for _, sm := range matched {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := s.loadMessage(sm, includeBody)
		if err != nil {
			return nil, err
		}
		result.Messages = append(result.Messages, m)
	}
	log.Debug().Str("module", "message").Str("mailbox", mailbox).Str("query", req.Query).
		Int("count", len(result.Messages)).Msg("Read messages")
	return result, nil
}

// resultLimit applies the configured default and cap to a requested result count.
func (s *StoreManager) resultLimit(requested int) (int, error) {
	switch {
	case requested < 0:
		return 0, validation.Field("max_results", "max_results must be 0 or greater")
	case requested == 0:
		requested = s.Config.DefaultMaxResults
	}
	if s.Config.MaxResultsLimit > 0 && requested > s.Config.MaxResultsLimit {
		requested = s.Config.MaxResultsLimit
	}
	return requested, nil
}

// loadMessage converts a stored message, parsing the source when the body is wanted.
func (s *StoreManager) loadMessage(sm storage.Message, includeBody bool) (*Message, error) {
	m := &Message{MessageMetadata: *storage.MakeMetadata(sm)}
	if !includeBody {
		return m, nil
	}
	env, err := parseSource(sm)
	if err != nil {
		return nil, err
	}
	m.HasBody = true
	m.BodyText = env.Text
	m.BodyHTML = env.HTML
	if m.BodyHTML != "" && s.Config.SanitizeHTML {
		if m.BodyHTML, err = sanitize.HTML(env.HTML); err != nil {
			return nil, fmt.Errorf("sanitize message %s/%s: %w", sm.Mailbox(), sm.ID(), err)
		}
	}
	for i, p := range attachmentParts(env) {
		m.Attachments = append(m.Attachments, AttachmentInfo{
			ID:        attachmentID(sm.ID(), i),
			Filename:  p.FileName,
			MimeType:  p.ContentType,
			SizeBytes: len(p.Content),
		})
	}
	return m, nil
}

// document builds the searchable view of a stored message.
func document(sm storage.Message) *search.Document {
	return &search.Document{
		From:    stringutil.StringAddress(sm.From()),
		To:      stringutil.StringAddressList(sm.To()),
		Cc:      stringutil.StringAddressList(sm.Cc()),
		Bcc:     stringutil.StringAddressList(sm.Bcc()),
		Subject: sm.Subject(),
		Snippet: sm.Snippet(),
		Labels:  sm.Labels(),
		Date:    sm.Date(),
		HasAttachment: func() bool {
			env, err := parseSource(sm)
			return err == nil && len(attachmentParts(env)) > 0
		},
	}
}

// idLess orders numeric IDs by value and other IDs lexically.
func idLess(a, b string) bool {
	if isDigits(a) && isDigits(b) && len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
