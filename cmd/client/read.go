package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"
	"github.com/inbucket/courier/pkg/rest/client"
)

type readCmd struct {
	id     string
	query  string
	labels listFlag
	max    int
	body   bool
	output string
}

func (*readCmd) Name() string {
	return "read"
}

func (*readCmd) Synopsis() string {
	return "read messages from mailbox"
}

func (*readCmd) Usage() string {
	return `read [flags] <mailbox>:
	list messages in mailbox, most recent first
`
}

func (r *readCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.id, "id", "", "read a single message by ID")
	f.StringVar(&r.query, "query", "", "search query (ex: \"from:alice is:unread\")")
	f.Var(&r.labels, "label", "required label, may be repeated")
	f.IntVar(&r.max, "max", 0, "maximum messages returned, 0 for server default")
	f.BoolVar(&r.body, "body", false, "include message bodies in output")
	f.StringVar(&r.output, "output", "id", "output format: id, or json")
}

func (r *readCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	mailbox := f.Arg(0)
	if mailbox == "" {
		return usage("mailbox required")
	}
	var out outputFunc
	switch r.output {
	case "id":
		out = outputID
	case "json":
		out = outputJSON
	default:
		return usage("unknown output type: " + r.output)
	}

	// Setup rest client
	c, err := client.New(baseURL())
	if err != nil {
		return fatal("Couldn't build client", err)
	}

	result, err := c.Read(ctx, mailbox, client.ReadOptions{
		MessageID:   r.id,
		Query:       r.query,
		Labels:      r.labels,
		MaxResults:  r.max,
		IncludeBody: &r.body,
	})
	if err != nil {
		return fatal("REST call failed", err)
	}
	if err := out(ctx, c, result.Messages); err != nil {
		return fatal("Error", err)
	}
	return subcommands.ExitSuccess
}
