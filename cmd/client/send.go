package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/inbucket/courier/pkg/rest/client"
	"github.com/inbucket/courier/pkg/rest/model"
)

type sendCmd struct {
	to, cc, bcc listFlag
	subject     string
	text        string
	html        string
	textFile    string
	inReplyTo   string
	priority    string
	at          string
}

func (*sendCmd) Name() string {
	return "send"
}

func (*sendCmd) Synopsis() string {
	return "send or schedule a message"
}

func (*sendCmd) Usage() string {
	return `send [flags] <mailbox>:
	send a message from mailbox, printing its message ID
`
}

func (s *sendCmd) SetFlags(f *flag.FlagSet) {
	f.Var(&s.to, "to", "recipient address, may be repeated")
	f.Var(&s.cc, "cc", "carbon copy address, may be repeated")
	f.Var(&s.bcc, "bcc", "blind carbon copy address, may be repeated")
	f.StringVar(&s.subject, "subject", "", "message subject")
	f.StringVar(&s.text, "text", "", "plain text body")
	f.StringVar(&s.textFile, "textfile", "", "read plain text body from file, - for stdin")
	f.StringVar(&s.html, "html", "", "HTML body")
	f.StringVar(&s.inReplyTo, "replyto", "", "message ID this message replies to")
	f.StringVar(&s.priority, "priority", "", "low, normal, or high")
	f.StringVar(&s.at, "at", "", "schedule for an RFC3339 time (ex: \"2026-05-10T15:00:00Z\")")
}

func (s *sendCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	mailbox := f.Arg(0)
	if mailbox == "" {
		return usage("mailbox required")
	}
	req := &model.JSONSendRequestV1{
		To:        s.to,
		Cc:        s.cc,
		Bcc:       s.bcc,
		Subject:   s.subject,
		BodyText:  s.text,
		BodyHTML:  s.html,
		InReplyTo: s.inReplyTo,
		Priority:  s.priority,
	}
	if s.textFile != "" {
		body, err := readBody(s.textFile)
		if err != nil {
			return fatal("Couldn't read body", err)
		}
		req.BodyText = body
	}
	if s.at != "" {
		at, err := time.Parse(time.RFC3339, s.at)
		if err != nil {
			return usage("invalid -at time: " + err.Error())
		}
		req.ScheduleTime = &at
	}

	// Setup REST client
	c, err := client.New(baseURL())
	if err != nil {
		return fatal("Couldn't build client", err)
	}
	result, err := c.Send(ctx, mailbox, req)
	if err != nil {
		return fatal("Send REST call failed", err)
	}
	printSendResult(result)
	return subcommands.ExitSuccess
}

func printSendResult(r *model.JSONSendResultV1) {
	switch {
	case r.ScheduledTime != nil:
		fmt.Printf("%s %s thread %s at %s\n", r.Status, r.MessageID, r.ThreadID,
			r.ScheduledTime.Format(time.RFC3339))
	default:
		fmt.Printf("%s %s thread %s\n", r.Status, r.MessageID, r.ThreadID)
	}
}

func readBody(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}
