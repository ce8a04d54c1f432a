package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/mail"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/inbucket/courier/pkg/rest/client"
	"github.com/inbucket/courier/pkg/rest/model"
)

// outputFunc renders a list of messages.
type outputFunc func(ctx context.Context, c *client.Client, msgs []*model.JSONMessageV1) error

type matchCmd struct {
	output  string
	outFunc outputFunc
	delete  bool
	query   string
	// match criteria
	from    regexFlag
	subject regexFlag
	to      regexFlag
	maxAge  time.Duration
}

func (*matchCmd) Name() string {
	return "match"
}

func (*matchCmd) Synopsis() string {
	return "output messages matching criteria"
}

func (*matchCmd) Usage() string {
	return `match [flags] <mailbox>:
	output messages matching all specified criteria
	exit status will be 1 if no matches were found, otherwise 0
`
}

func (m *matchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&m.output, "output", "id", "output format: id, json, or mbox")
	f.BoolVar(&m.delete, "delete", false, "delete matched messages after output")
	f.StringVar(&m.query, "query", "", "server side search query, applied before the regexps")
	f.Var(&m.from, "from", "From header matching regexp (address, not name)")
	f.Var(&m.subject, "subject", "Subject header matching regexp")
	f.Var(&m.to, "to", "To header matching regexp (must match 1+ to address)")
	f.DurationVar(
		&m.maxAge, "maxage", 0,
		"Matches must have been sent in this time frame (ex: \"10s\", \"5m\")")
}

func (m *matchCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	mailbox := f.Arg(0)
	if mailbox == "" {
		return usage("mailbox required")
	}
	// Select output function
	switch m.output {
	case "id":
		m.outFunc = outputID
	case "json":
		m.outFunc = outputJSON
	case "mbox":
		m.outFunc = outputMbox
	default:
		return usage("unknown output type: " + m.output)
	}
	// Setup REST client
	c, err := client.New(baseURL())
	if err != nil {
		return fatal("Couldn't build client", err)
	}
	// Get list
	noBody := false
	result, err := c.Read(ctx, mailbox, client.ReadOptions{Query: m.query, IncludeBody: &noBody})
	if err != nil {
		return fatal("Read REST call failed", err)
	}
	// Find matches
	matches := make([]*model.JSONMessageV1, 0, len(result.Messages))
	for _, msg := range result.Messages {
		if m.match(msg) {
			matches = append(matches, msg)
		}
	}
	// Return error status if no matches
	if len(matches) == 0 {
		return subcommands.ExitFailure
	}
	// Output matches
	err = m.outFunc(ctx, c, matches)
	if err != nil {
		return fatal("Error", err)
	}
	if m.delete {
		// Delete matches
		for _, msg := range matches {
			err = c.DeleteMessage(ctx, mailbox, msg.MessageID)
			if err != nil {
				return fatal("Delete REST call failed", err)
			}
		}
	}
	return subcommands.ExitSuccess
}

// match returns true if msg matches all defined criteria
func (m *matchCmd) match(msg *model.JSONMessageV1) bool {
	if m.maxAge > 0 {
		if time.Since(msg.Date) > m.maxAge {
			return false
		}
	}
	if m.subject.Defined() {
		if !m.subject.MatchString(msg.Subject) {
			return false
		}
	}
	if m.from.Defined() {
		from := msg.From
		addr, err := mail.ParseAddress(from)
		if err == nil {
			// Parsed successfully
			from = addr.Address
		}
		if !m.from.MatchString(from) {
			return false
		}
	}
	if m.to.Defined() {
		match := false
		for _, to := range msg.To {
			addr, err := mail.ParseAddress(to)
			if err == nil {
				// Parsed successfully
				to = addr.Address
			}
			if m.to.MatchString(to) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

func outputID(_ context.Context, _ *client.Client, msgs []*model.JSONMessageV1) error {
	for _, msg := range msgs {
		fmt.Println(msg.MessageID)
	}
	return nil
}

func outputJSON(_ context.Context, _ *client.Client, msgs []*model.JSONMessageV1) error {
	return printJSON(msgs)
}

func printJSON(v any) error {
	jsonEncoder := json.NewEncoder(os.Stdout)
	jsonEncoder.SetEscapeHTML(false)
	jsonEncoder.SetIndent("", "  ")
	return jsonEncoder.Encode(v)
}
