package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"regexp"

	"github.com/google/subcommands"
	"github.com/inbucket/courier/pkg/rest/client"
	"github.com/inbucket/courier/pkg/rest/model"
)

// fromLine matches body lines that mboxrd readers would take as a message separator.
var fromLine = regexp.MustCompile(`^>*From `)

type mboxCmd struct {
	delete bool
	query  string
}

func (*mboxCmd) Name() string {
	return "mbox"
}

func (*mboxCmd) Synopsis() string {
	return "output mailbox in mbox format"
}

func (*mboxCmd) Usage() string {
	return `mbox [flags] <mailbox>:
	output mailbox in mbox format
`
}

func (m *mboxCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&m.delete, "delete", false, "delete messages after output")
	f.StringVar(&m.query, "query", "", "only output messages matching search query")
}

func (m *mboxCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	mailbox := f.Arg(0)
	if mailbox == "" {
		return usage("mailbox required")
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
	err = outputMbox(ctx, c, result.Messages)
	if err != nil {
		return fatal("Error", err)
	}

	// Optionally, delete retrieved messages
	if m.delete {
		for _, msg := range result.Messages {
			err = c.DeleteMessage(ctx, mailbox, msg.MessageID)
			if err != nil {
				return fatal("Delete REST call failed", err)
			}
		}
	}

	return subcommands.ExitSuccess
}

// outputMbox renders messages in mbox format.
// It is also used by match subcommand.
func outputMbox(ctx context.Context, c *client.Client, msgs []*model.JSONMessageV1) error {
	w := bufio.NewWriter(os.Stdout)
	for _, msg := range msgs {
		source, err := c.GetMessageSource(ctx, msg.Mailbox, msg.MessageID)
		if err != nil {
			return fmt.Errorf("get source REST failed: %v", err)
		}
		sender := msg.From
		if addr, err := mail.ParseAddress(sender); err == nil {
			sender = addr.Address
		}
		fmt.Fprintf(w, "From %s %s\n", sender, msg.Date.UTC().Format("Mon Jan _2 15:04:05 2006"))
		if err := writeMboxBody(w, source); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

// writeMboxBody copies source to w, quoting any From_ lines with a leading >.  Line endings are
// passed through unchanged.
func writeMboxBody(w io.Writer, source *bytes.Buffer) error {
	for {
		line, err := source.ReadBytes('\n')
		if len(line) > 0 {
			if fromLine.Match(line) {
				if _, werr := io.WriteString(w, ">"); werr != nil {
					return werr
				}
			}
			if _, werr := w.Write(line); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
