package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"
	"github.com/inbucket/courier/pkg/rest/client"
	"github.com/inbucket/courier/pkg/rest/model"
)

type draftCmd struct {
	id          string
	to, cc, bcc listFlag
	subject     string
	text        string
	html        string
	list        bool
	send        bool
	discard     bool
	at          string
	set         map[string]bool
}

func (*draftCmd) Name() string {
	return "draft"
}

func (*draftCmd) Synopsis() string {
	return "write, list, send, or discard drafts"
}

func (*draftCmd) Usage() string {
	return `draft [flags] <mailbox>:
	save a draft in mailbox, creating it unless -id is given
	only the flags given are changed when updating a draft
`
}

func (d *draftCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&d.id, "id", "", "draft ID to update, send, or discard")
	f.Var(&d.to, "to", "recipient address, may be repeated")
	f.Var(&d.cc, "cc", "carbon copy address, may be repeated")
	f.Var(&d.bcc, "bcc", "blind carbon copy address, may be repeated")
	f.StringVar(&d.subject, "subject", "", "draft subject")
	f.StringVar(&d.text, "text", "", "plain text body")
	f.StringVar(&d.html, "html", "", "HTML body")
	f.BoolVar(&d.list, "list", false, "list drafts in mailbox")
	f.BoolVar(&d.send, "send", false, "send the draft given by -id")
	f.BoolVar(&d.discard, "discard", false, "discard the draft given by -id")
	f.StringVar(&d.at, "at", "", "with -send, schedule for an RFC3339 time")
}

func (d *draftCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	mailbox := f.Arg(0)
	if mailbox == "" {
		return usage("mailbox required")
	}
	d.set = make(map[string]bool)
	f.Visit(func(fl *flag.Flag) { d.set[fl.Name] = true })
	if (d.send || d.discard) && d.id == "" {
		return usage("-id required")
	}

	// Setup REST client
	c, err := client.New(baseURL())
	if err != nil {
		return fatal("Couldn't build client", err)
	}

	switch {
	case d.list:
		drafts, err := c.ListDrafts(ctx, mailbox)
		if err != nil {
			return fatal("List REST call failed", err)
		}
		for _, dr := range drafts {
			fmt.Printf("%s %s %q\n", dr.DraftID, dr.UpdatedAt.Format(time.RFC3339), dr.Subject)
		}
	case d.discard:
		if err := c.DeleteDraft(ctx, mailbox, d.id); err != nil {
			return fatal("Delete REST call failed", err)
		}
	case d.send:
		req := &model.JSONSendDraftRequestV1{}
		if d.at != "" {
			at, err := time.Parse(time.RFC3339, d.at)
			if err != nil {
				return usage("invalid -at time: " + err.Error())
			}
			req.ScheduleTime = &at
		}
		result, err := c.SendDraft(ctx, mailbox, d.id, req)
		if err != nil {
			return fatal("Send REST call failed", err)
		}
		printSendResult(result)
	default:
		result, err := c.WriteDraft(ctx, mailbox, d.request())
		if err != nil {
			return fatal("Draft REST call failed", err)
		}
		fmt.Printf("%s %s thread %s\n", result.DraftID, result.MessageID, result.ThreadID)
	}
	return subcommands.ExitSuccess
}

// request includes only the fields set on the command line.
func (d *draftCmd) request() *model.JSONDraftRequestV1 {
	req := &model.JSONDraftRequestV1{DraftID: d.id}
	if d.set["to"] {
		req.To = d.to
	}
	if d.set["cc"] {
		req.Cc = d.cc
	}
	if d.set["bcc"] {
		req.Bcc = d.bcc
	}
	if d.set["subject"] {
		req.Subject = &d.subject
	}
	if d.set["text"] {
		req.BodyText = &d.text
	}
	if d.set["html"] {
		req.BodyHTML = &d.html
	}
	return req
}
