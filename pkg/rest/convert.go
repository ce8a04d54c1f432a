package rest

import (
	"time"

	"github.com/inbucket/courier/pkg/extension/event"
	"github.com/inbucket/courier/pkg/message"
	"github.com/inbucket/courier/pkg/repayment"
	"github.com/inbucket/courier/pkg/rest/model"
	"github.com/inbucket/courier/pkg/storage"
	"github.com/inbucket/courier/pkg/stringutil"
)

func headerFromMetadata(m *event.MessageMetadata) *model.JSONMessageHeaderV1 {
	return &model.JSONMessageHeaderV1{
		Mailbox:       m.Mailbox,
		MessageID:     m.ID,
		ThreadID:      m.ThreadID,
		From:          stringutil.StringAddress(m.From),
		To:            stringutil.StringAddressList(m.To),
		Subject:       m.Subject,
		Date:          m.Date,
		Snippet:       m.Snippet,
		Labels:        nonNil(m.Labels),
		Size:          m.Size,
		ScheduledTime: timeOrNil(m.ScheduledAt),
	}
}

func jsonMessage(m *message.Message) *model.JSONMessageV1 {
	jm := &model.JSONMessageV1{
		MessageID:     m.ID,
		ThreadID:      m.ThreadID,
		Mailbox:       m.Mailbox,
		Subject:       m.Subject,
		From:          stringutil.StringAddress(m.From),
		To:            stringutil.StringAddressList(m.To),
		Cc:            stringutil.StringAddressList(m.Cc),
		Bcc:           stringutil.StringAddressList(m.Bcc),
		Date:          m.Date,
		Snippet:       m.Snippet,
		Labels:        nonNil(m.Labels),
		Size:          m.Size,
		ScheduledTime: timeOrNil(m.ScheduledAt),
	}
	if m.HasBody {
		text, html := m.BodyText, m.BodyHTML
		jm.BodyText = &text
		jm.BodyHTML = &html
		jm.Attachments = make([]*model.JSONAttachmentV1, len(m.Attachments))
		for i, a := range m.Attachments {
			jm.Attachments[i] = &model.JSONAttachmentV1{
				AttachmentID: a.ID,
				Filename:     a.Filename,
				MimeType:     a.MimeType,
				SizeBytes:    a.SizeBytes,
			}
		}
	}
	return jm
}

func attachmentSpecs(specs []model.JSONAttachmentSpecV1) []message.AttachmentSpec {
	if specs == nil {
		return nil
	}
	out := make([]message.AttachmentSpec, len(specs))
	for i, s := range specs {
		out[i] = message.AttachmentSpec{
			Filename:      s.Filename,
			MimeType:      s.MimeType,
			ContentBase64: s.ContentBase64,
			FileID:        s.FileID,
		}
	}
	return out
}

func sendRequest(j *model.JSONSendRequestV1) message.SendRequest {
	return message.SendRequest{
		To:           j.To,
		Cc:           j.Cc,
		Bcc:          j.Bcc,
		Subject:      j.Subject,
		BodyText:     j.BodyText,
		BodyHTML:     j.BodyHTML,
		Attachments:  attachmentSpecs(j.Attachments),
		InReplyTo:    j.InReplyTo,
		ThreadID:     j.ThreadID,
		Headers:      j.Headers,
		Priority:     message.Priority(j.Priority),
		ScheduleTime: j.ScheduleTime,
	}
}

func jsonSendResult(r *message.SendResult) *model.JSONSendResultV1 {
	jr := &model.JSONSendResultV1{
		Status:        r.Status,
		MessageID:     r.MessageID,
		ThreadID:      r.ThreadID,
		ScheduledTime: r.ScheduledTime,
	}
	if r.Status == message.StatusSent {
		jr.Date = timeOrNil(r.Date)
	}
	return jr
}

func draftRequest(j *model.JSONDraftRequestV1) message.DraftRequest {
	return message.DraftRequest{
		DraftID:     j.DraftID,
		To:          j.To,
		Cc:          j.Cc,
		Bcc:         j.Bcc,
		Subject:     j.Subject,
		BodyText:    j.BodyText,
		BodyHTML:    j.BodyHTML,
		Attachments: attachmentSpecs(j.Attachments),
		InReplyTo:   j.InReplyTo,
		Headers:     j.Headers,
	}
}

func jsonDraft(d *storage.Draft) *model.JSONDraftV1 {
	jd := &model.JSONDraftV1{
		DraftID:     d.DraftID,
		MessageID:   d.MessageID,
		ThreadID:    d.ThreadID,
		InReplyTo:   d.InReplyTo,
		To:          stringutil.StringAddressList(d.To),
		Cc:          stringutil.StringAddressList(d.Cc),
		Bcc:         stringutil.StringAddressList(d.Bcc),
		Subject:     d.Subject,
		BodyText:    d.BodyText,
		BodyHTML:    d.BodyHTML,
		Attachments: make([]*model.JSONDraftAttachmentV1, len(d.Attachments)),
		Headers:     d.Headers,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for i, a := range d.Attachments {
		jd.Attachments[i] = &model.JSONDraftAttachmentV1{
			Filename:  a.Filename,
			MimeType:  a.MimeType,
			SizeBytes: len(a.Content),
		}
	}
	return jd
}

func repaymentRequest(j *model.JSONRepaymentRequestV1) repayment.Request {
	return repayment.Request{
		EntityName:               j.EntityName,
		EntityID:                 j.EntityID,
		EntityGroupID:            j.EntityGroupID,
		DisplayName:              j.DisplayName,
		Description:              j.Description,
		LogoURL:                  j.LogoURL,
		Keywords:                 j.Keywords,
		RankingHint:              j.RankingHint,
		ExpirationTime:           j.ExpirationTime,
		MetadataModificationTime: j.MetadataModificationTime,
		ActivityType:             j.ActivityType,
		IsPublicData:             j.IsPublicData,
		Extras:                   j.Extras,
	}
}

func jsonRepaymentRecord(r *repayment.Record) *model.JSONRepaymentRecordV1 {
	if r == nil {
		return nil
	}
	return &model.JSONRepaymentRecordV1{
		EntityID:                 r.EntityID,
		EntityName:               r.EntityName,
		EntityGroupID:            r.EntityGroupID,
		DisplayName:              r.DisplayName,
		Description:              r.Description,
		LogoURL:                  r.LogoURL,
		Keywords:                 nonNil(r.Keywords),
		RankingHint:              r.RankingHint,
		ExpirationTime:           r.ExpirationTime,
		MetadataModificationTime: r.MetadataModificationTime,
		ActivityType:             nonNil(r.ActivityType),
		IsPublicData:             r.IsPublicData,
		Extras:                   r.Extras,
		PaymentID:                r.PaymentID,
		UpdatedAt:                r.UpdatedAt,
	}
}

func jsonRepaymentResult(r *repayment.Result) *model.JSONRepaymentResultV1 {
	return &model.JSONRepaymentResultV1{
		Status:      r.Status,
		PaymentID:   r.PaymentID,
		EntityID:    r.EntityID,
		ProcessedAt: r.ProcessedAt,
		Message:     r.Message,
		Snapshot:    jsonRepaymentRecord(r.Snapshot),
	}
}

// nonNil keeps empty lists rendering as [] instead of null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
