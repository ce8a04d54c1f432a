package rest

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/inbucket/courier/pkg/message"
	"github.com/inbucket/courier/pkg/rest/model"
	"github.com/inbucket/courier/pkg/server/web"
	"github.com/inbucket/courier/pkg/validation"
	"github.com/rs/zerolog/log"
)

// mailboxName resolves the {name} route variable to a mailbox name.
func mailboxName(ctx *web.Context) (string, error) {
	name, err := ctx.Manager.MailboxForAddress(ctx.Vars["name"])
	if err != nil {
		return "", validation.Field("mailbox", err.Error())
	}
	return name, nil
}

// readRequest builds a ReadRequest from the query string.  Labels may be repeated, comma
// separated, or both.
func readRequest(req *http.Request) (message.ReadRequest, error) {
	q := req.URL.Query()
	rr := message.ReadRequest{
		MessageID: q.Get("message_id"),
		Query:     q.Get("query"),
	}
	for _, v := range q["labels"] {
		for _, l := range strings.Split(v, ",") {
			if l = strings.TrimSpace(l); l != "" {
				rr.Labels = append(rr.Labels, l)
			}
		}
	}
	verr := validation.Error{}
	if v := q.Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			verr.Merge(validation.Field("max_results", "max_results must be an integer"))
		}
		rr.MaxResults = n
	}
	if v := q.Get("include_body"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			verr.Merge(validation.Field("include_body", "include_body must be true or false"))
		}
		rr.IncludeBody = &b
	}
	return rr, verr.OrNil()
}

// MailboxReadV1 renders the messages of a mailbox selected by the query string.
func MailboxReadV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	name, err := mailboxName(ctx)
	if err != nil {
		return err
	}
	rr, err := readRequest(req)
	if err != nil {
		return err
	}
	result, err := ctx.Manager.Read(req.Context(), name, rr)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	jr := &model.JSONReadResultV1{Messages: make([]*model.JSONMessageV1, len(result.Messages))}
	for i, m := range result.Messages {
		jr.Messages[i] = jsonMessage(m)
	}
	return web.RenderJSON(w, jr)
}

// MailboxShowV1 renders a particular message from a mailbox.
func MailboxShowV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	// Don't have to validate these aren't empty, Gorilla returns 404
	id := ctx.Vars["id"]
	name, err := mailboxName(ctx)
	if err != nil {
		return err
	}
	msg, err := ctx.Manager.GetMessage(name, id)
	if err != nil {
		return fmt.Errorf("get message %s/%s: %w", name, id, err)
	}
	return web.RenderJSON(w, jsonMessage(msg))
}

// MailboxLabelsV1 adds and removes labels from a message, then renders it.
func MailboxLabelsV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	id := ctx.Vars["id"]
	name, err := mailboxName(ctx)
	if err != nil {
		return err
	}
	var patch model.JSONLabelsPatchV1
	if err := web.DecodeJSON(req, &patch); err != nil {
		return err
	}
	if err := ctx.Manager.ModifyLabels(name, id, patch.AddLabels, patch.RemoveLabels); err != nil {
		return fmt.Errorf("modify labels %s/%s: %w", name, id, err)
	}
	msg, err := ctx.Manager.GetMessage(name, id)
	if err != nil {
		return fmt.Errorf("get message %s/%s: %w", name, id, err)
	}
	return web.RenderJSON(w, jsonMessage(msg))
}

// MailboxDeleteV1 removes a particular message from a mailbox.
func MailboxDeleteV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	id := ctx.Vars["id"]
	name, err := mailboxName(ctx)
	if err != nil {
		return err
	}
	if err := ctx.Manager.RemoveMessage(name, id); err != nil {
		return fmt.Errorf("remove message %s/%s: %w", name, id, err)
	}
	return web.RenderJSON(w, "OK")
}

// MailboxSourceV1 writes the raw source of a message.
func MailboxSourceV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	id := ctx.Vars["id"]
	name, err := mailboxName(ctx)
	if err != nil {
		return err
	}
	r, err := ctx.Manager.SourceReader(name, id)
	if err != nil {
		return fmt.Errorf("source %s/%s: %w", name, id, err)
	}
	defer r.Close()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err = io.Copy(w, r)
	return err
}

// MailboxPurgeV1 deletes all messages from a mailbox.
func MailboxPurgeV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	name, err := mailboxName(ctx)
	if err != nil {
		return err
	}
	if err := ctx.Manager.PurgeMessages(name); err != nil {
		return fmt.Errorf("purge %s: %w", name, err)
	}
	log.Debug().Str("module", "rest").Str("mailbox", name).Msg("Purged mailbox")
	return web.RenderJSON(w, "OK")
}

// MailboxSendV1 sends or schedules a message from a mailbox.
func MailboxSendV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	name, err := mailboxName(ctx)
	if err != nil {
		return err
	}
	var jreq model.JSONSendRequestV1
	if err := web.DecodeJSON(req, &jreq); err != nil {
		return err
	}
	result, err := ctx.Manager.Send(req.Context(), name, sendRequest(&jreq))
	if err != nil {
		return fmt.Errorf("send from %s: %w", name, err)
	}
	return web.RenderJSON(w, jsonSendResult(result))
}

// DraftWriteV1 creates or updates a draft.
func DraftWriteV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	name, err := mailboxName(ctx)
	if err != nil {
		return err
	}
	var jreq model.JSONDraftRequestV1
	if err := web.DecodeJSON(req, &jreq); err != nil {
		return err
	}
	result, err := ctx.Manager.WriteDraft(req.Context(), name, draftRequest(&jreq))
	if err != nil {
		return fmt.Errorf("write draft in %s: %w", name, err)
	}
	return web.RenderJSON(w, &model.JSONDraftResultV1{
		DraftID:   result.DraftID,
		MessageID: result.MessageID,
		ThreadID:  result.ThreadID,
		UpdatedAt: result.UpdatedAt,
	})
}

// DraftListV1 renders the drafts of a mailbox, most recently updated first.
func DraftListV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	name, err := mailboxName(ctx)
	if err != nil {
		return err
	}
	drafts, err := ctx.Manager.ListDrafts(name)
	if err != nil {
		return fmt.Errorf("list drafts in %s: %w", name, err)
	}
	jdrafts := make([]*model.JSONDraftV1, len(drafts))
	for i, d := range drafts {
		jdrafts[i] = jsonDraft(d)
	}
	return web.RenderJSON(w, jdrafts)
}

// DraftShowV1 renders a particular draft.
func DraftShowV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	id := ctx.Vars["id"]
	name, err := mailboxName(ctx)
	if err != nil {
		return err
	}
	d, err := ctx.Manager.GetDraft(name, id)
	if err != nil {
		return fmt.Errorf("get draft %s/%s: %w", name, id, err)
	}
	return web.RenderJSON(w, jsonDraft(d))
}

// DraftDeleteV1 discards a draft.
func DraftDeleteV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	id := ctx.Vars["id"]
	name, err := mailboxName(ctx)
	if err != nil {
		return err
	}
	if err := ctx.Manager.DeleteDraft(name, id); err != nil {
		return fmt.Errorf("delete draft %s/%s: %w", name, id, err)
	}
	return web.RenderJSON(w, "OK")
}

// DraftSendV1 sends or schedules a draft.  An empty body sends it immediately with normal
// priority.
func DraftSendV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	id := ctx.Vars["id"]
	name, err := mailboxName(ctx)
	if err != nil {
		return err
	}
	var jreq model.JSONSendDraftRequestV1
	if req.ContentLength != 0 {
		if err := web.DecodeJSON(req, &jreq); err != nil {
			return err
		}
	}
	result, err := ctx.Manager.SendDraft(req.Context(), name, id, message.SendDraftRequest{
		Priority:     message.Priority(jreq.Priority),
		ScheduleTime: jreq.ScheduleTime,
	})
	if err != nil {
		return fmt.Errorf("send draft %s/%s: %w", name, id, err)
	}
	return web.RenderJSON(w, jsonSendResult(result))
}

// RepaymentPayV1 triggers a repayment.  Failed and pending charges are reported in the result
// status with a 200 response.
func RepaymentPayV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	var jreq model.JSONRepaymentRequestV1
	if err := web.DecodeJSON(req, &jreq); err != nil {
		return err
	}
	result, err := ctx.Repayments.Pay(req.Context(), repaymentRequest(&jreq))
	if err != nil {
		return fmt.Errorf("repayment for %q: %w", jreq.EntityID, err)
	}
	return web.RenderJSON(w, jsonRepaymentResult(result))
}

// RepaymentShowV1 renders the stored metadata of an entity.
func RepaymentShowV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	id := ctx.Vars["entity_id"]
	r, err := ctx.Repayments.Get(req.Context(), id)
	if err != nil {
		return fmt.Errorf("repayment record %q: %w", id, err)
	}
	return web.RenderJSON(w, jsonRepaymentRecord(r))
}
