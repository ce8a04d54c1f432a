package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/google/subcommands"
	"github.com/inbucket/courier/pkg/rest/client"
	"github.com/inbucket/courier/pkg/rest/model"
)

type payCmd struct {
	name        string
	group       string
	display     string
	description string
	logo        string
	keywords    listFlag
	rank        string
	get         bool
}

func (*payCmd) Name() string {
	return "pay"
}

func (*payCmd) Synopsis() string {
	return "trigger or inspect a repayment"
}

func (*payCmd) Usage() string {
	return `pay [flags] <entity_id>:
	pay for an entity, printing the result as JSON
	exit status will be 1 unless the payment succeeded or is pending
`
}

func (p *payCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.name, "name", "Repayment", "entity name")
	f.StringVar(&p.group, "group", "", "entity group ID")
	f.StringVar(&p.display, "display", "", "display name")
	f.StringVar(&p.description, "description", "", "description")
	f.StringVar(&p.logo, "logo", "", "logo URL")
	f.Var(&p.keywords, "keyword", "search keyword, may be repeated")
	f.StringVar(&p.rank, "rank", "", "ranking hint")
	f.BoolVar(&p.get, "get", false, "print the stored metadata instead of paying")
}

func (p *payCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	entityID := f.Arg(0)
	if entityID == "" {
		return usage("entity_id required")
	}

	// Setup REST client
	c, err := client.New(baseURL())
	if err != nil {
		return fatal("Couldn't build client", err)
	}

	if p.get {
		record, err := c.GetRepayment(ctx, entityID)
		if client.IsNotFound(err) {
			fmt.Printf("no metadata stored for %s\n", entityID)
			return subcommands.ExitFailure
		}
		if err != nil {
			return fatal("Get REST call failed", err)
		}
		if err := printJSON(record); err != nil {
			return fatal("Error", err)
		}
		return subcommands.ExitSuccess
	}

	req := &model.JSONRepaymentRequestV1{
		EntityName:    p.name,
		EntityID:      entityID,
		EntityGroupID: p.group,
		DisplayName:   p.display,
		Description:   p.description,
		LogoURL:       p.logo,
		Keywords:      p.keywords,
	}
	if p.rank != "" {
		rank, err := strconv.ParseFloat(p.rank, 64)
		if err != nil {
			return usage("invalid -rank: " + err.Error())
		}
		req.RankingHint = &rank
	}
	result, err := c.Pay(ctx, req)
	if err != nil {
		return fatal("Pay REST call failed", err)
	}
	if err := printJSON(result); err != nil {
		return fatal("Error", err)
	}
	if result.Status == "failed" {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
