// Package config loads Courier configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	prefix      = "courier"
	tableFormat = `Courier is configured via the environment. The following environment
variables can be used:

KEY	DEFAULT	REQUIRED	DESCRIPTION
{{range .}}{{usage_key .}}	{{usage_default .}}	{{usage_required .}}	{{usage_description .}}
{{end}}`
)

var (
	// Version of this build, set by main
	Version = ""

	// BuildDate for this build, set by main
	BuildDate = ""
)

// mbNaming represents a mailbox naming strategy.
type mbNaming int

// Mailbox naming strategies.
const (
	UnknownNaming mbNaming = iota
	LocalNaming
	FullNaming
)

// Decode a naming strategy from string.
func (n *mbNaming) Decode(v string) error {
	switch strings.ToLower(v) {
	case "local":
		*n = LocalNaming
	case "full":
		*n = FullNaming
	default:
		return fmt.Errorf("unknown MailboxNaming strategy: %q", v)
	}
	return nil
}

// Transport modes.
const (
	TransportLocal   = "local"
	TransportSMTP    = "smtp"
	TransportDiscard = "discard"
)

// Payment processors.
const (
	ProcessorInstant = "instant"
	ProcessorAsync   = "async"
	ProcessorReject  = "reject"
)

// Root wraps all other configurations.
type Root struct {
	LogLevel  string `required:"true" default:"info" desc:"debug, info, warn, or error"`
	Lua       Lua
	Mail      Mail
	Transport Transport
	Scheduler Scheduler
	Web       Web
	Storage   Storage
	Payment   Payment
}

// Lua contains the Lua extension host configuration.
type Lua struct {
	Path     string `required:"false" default:"courier.lua" desc:"Lua script path"`
	Required bool   `required:"false" default:"false" desc:"Fail startup if script missing?"`
}

// Mail contains the message composition and retrieval configuration.
type Mail struct {
	Domain            string   `required:"true" default:"courier.local" desc:"Domain for message IDs and sender addresses"`
	MailboxNaming     mbNaming `required:"true" default:"local" desc:"Use local or full addressing"`
	DefaultMaxResults int      `required:"true" default:"50" desc:"Results returned when max_results is unset"`
	MaxResultsLimit   int      `required:"true" default:"500" desc:"Upper bound for max_results"`
	MaxRecipients     int      `required:"true" default:"100" desc:"Maximum to+cc+bcc per message"`
	MaxMessageBytes   int      `required:"true" default:"10485760" desc:"Maximum rendered message size"`
	SanitizeHTML      bool     `required:"true" default:"true" desc:"Sanitize HTML bodies on read?"`
}

// Transport contains the outbound delivery configuration.
type Transport struct {
	Mode         string        `required:"true" default:"local" desc:"local, smtp, or discard"`
	LocalDomains []string      `desc:"Domains delivered locally, empty accepts all"`
	SMTPAddr     string        `default:"127.0.0.1:25" desc:"SMTP relay host:port"`
	SMTPUsername string        `desc:"SMTP relay PLAIN auth username"`
	SMTPPassword string        `desc:"SMTP relay PLAIN auth password"`
	RetryMax     uint64        `required:"true" default:"3" desc:"SMTP relay retry attempts"`
	RetryBase    time.Duration `required:"true" default:"200ms" desc:"SMTP relay initial backoff"`
}

// Scheduler contains the scheduled send configuration.
type Scheduler struct {
	Interval time.Duration `required:"true" default:"5s" desc:"Scheduled mail scan interval, 0 disables"`
}

// Web contains the HTTP server configuration.
type Web struct {
	Addr           string   `required:"true" default:"0.0.0.0:9300" desc:"Web server IP4 host:port"`
	BasePath       string   `default:"" desc:"Base path prefix for API URLs"`
	CORSOrigins    []string `desc:"Allowed CORS origins, empty disables CORS"`
	MonitorHistory int      `required:"true" default:"30" desc:"Monitor remembered messages"`
}

// Storage contains the mail store configuration.
type Storage struct {
	Type            string            `required:"true" default:"memory" desc:"Storage impl: memory"`
	Params          map[string]string `default:"" desc:"Storage impl parameters, see docs."`
	RetentionPeriod time.Duration     `required:"true" default:"0s" desc:"Duration to retain messages, 0 keeps forever"`
	RetentionSleep  time.Duration     `required:"true" default:"50ms" desc:"Duration to sleep between mailboxes"`
	MailboxMsgCap   int               `required:"true" default:"500" desc:"Maximum messages per mailbox"`
}

// Payment contains the repayment processing configuration.
type Payment struct {
	Processor  string `required:"true" default:"instant" desc:"instant, async, or reject"`
	Store      string `required:"true" default:"memory" desc:"Metadata store: memory or sqlite"`
	SQLitePath string `default:"courier.db" desc:"SQLite database path"`
	Node       int64  `required:"true" default:"1" desc:"Snowflake node number, 0-1023"`
}

// Process loads and parses configuration from the environment.
func Process() (*Root, error) {
	c := &Root{}
	err := envconfig.Process(prefix, c)
	return c, err
}

// Usage prints out the envconfig usage to Stderr.
func Usage() {
	tabs := tabwriter.NewWriter(os.Stderr, 1, 0, 4, ' ', 0)
	if err := envconfig.Usagef(prefix, &Root{}, tabs, tableFormat); err != nil {
		log.Fatalf("Unable to parse env config: %v", err)
	}
	if err := tabs.Flush(); err != nil {
		log.Fatalf("Unable to write usage: %v", err)
	}
}
