// Package search parses and evaluates mailbox search queries.
//
// A query is a whitespace separated list of terms.  A term is either free text, matched against
// the subject, sender, recipients and snippet of a message, or an operator of the form
// `name:value`.  Values containing spaces may be double quoted, and a leading `-` negates a term.
package search

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/samber/lo"
)

// Operator names.
const (
	OpText    = ""
	OpFrom    = "from"
	OpTo      = "to"
	OpCc      = "cc"
	OpBcc     = "bcc"
	OpSubject = "subject"
	OpLabel   = "label"
	OpIn      = "in"
	OpBefore  = "before"
	OpAfter   = "after"
	OpIs      = "is"
	OpHas     = "has"
)

var knownOps = []string{
	OpFrom, OpTo, OpCc, OpBcc, OpSubject, OpLabel, OpIn, OpBefore, OpAfter, OpIs, OpHas,
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", time.RFC3339}

// SyntaxError describes a malformed query.
type SyntaxError struct {
	Query  string
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid query at offset %d: %s", e.Offset, e.Msg)
}

// Term is a single query condition.
type Term struct {
	Op     string
	Value  string    // Lower-cased for text operators.
	Date   time.Time // Set for before and after.
	Negate bool
}

// Query is a parsed search query; the zero value matches everything.
type Query struct {
	Terms []Term
}

// Document is the searchable view of a message.
type Document struct {
	From    string
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Snippet string
	Labels  []string
	Date    time.Time
	// HasAttachment is consulted only when a query uses has:attachment.
	HasAttachment func() bool
}

// Parse parses a query string.  An empty query matches every message.
func Parse(input string) (*Query, error) {
	p := &parser{input: input}
	q := &Query{}
	for {
		p.skipSpace()
		if p.done() {
			return q, nil
		}
		term, err := p.term()
		if err != nil {
			return nil, err
		}
		q.Terms = append(q.Terms, term)
	}
}

// Match returns true if the document satisfies every term.
func (q *Query) Match(d *Document) bool {
	for _, t := range q.Terms {
		if t.match(d) == t.Negate {
			return false
		}
	}
	return true
}

func (t Term) match(d *Document) bool {
	switch t.Op {
	case OpText:
		return containsFold(d.Subject, t.Value) || containsFold(d.From, t.Value) ||
			anyContainsFold(d.To, t.Value) || anyContainsFold(d.Cc, t.Value) ||
			containsFold(d.Snippet, t.Value)
	case OpFrom:
		return containsFold(d.From, t.Value)
	case OpTo:
		return anyContainsFold(d.To, t.Value)
	case OpCc:
		return anyContainsFold(d.Cc, t.Value)
	case OpBcc:
		return anyContainsFold(d.Bcc, t.Value)
	case OpSubject:
		return containsFold(d.Subject, t.Value)
	case OpLabel, OpIn:
		return lo.ContainsBy(d.Labels, func(l string) bool { return strings.EqualFold(l, t.Value) })
	case OpBefore:
		return d.Date.Before(t.Date)
	case OpAfter:
		return !d.Date.Before(t.Date)
	case OpIs:
		hasLabel := func(label string) bool {
			return lo.ContainsBy(d.Labels, func(l string) bool { return strings.EqualFold(l, label) })
		}
		switch t.Value {
		case "unread":
			return hasLabel("UNREAD")
		case "read":
			return !hasLabel("UNREAD")
		default:
			return hasLabel(t.Value)
		}
	case OpHas:
		return d.HasAttachment != nil && d.HasAttachment()
	}
	return false
}

type parser struct {
	input string
	pos   int
}

func (p *parser) done() bool { return p.pos >= len(p.input) }

func (p *parser) skipSpace() {
	for !p.done() && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *parser) errorf(offset int, format string, args ...any) error {
	return &SyntaxError{Query: p.input, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// term parses a single term starting at the current position.
func (p *parser) term() (Term, error) {
	start := p.pos
	t := Term{}
	if p.input[p.pos] == '-' {
		t.Negate = true
		p.pos++
		if p.done() || unicode.IsSpace(rune(p.input[p.pos])) {
			return t, p.errorf(start, "negation without a term")
		}
	}

	// Operator names are purely alphabetic and immediately followed by a colon.
	word := p.pos
	for !p.done() && isLetter(p.input[p.pos]) {
		p.pos++
	}
	if p.pos > word && !p.done() && p.input[p.pos] == ':' {
		op := strings.ToLower(p.input[word:p.pos])
		if !lo.Contains(knownOps, op) {
			return t, p.errorf(word, "unknown operator %q", op)
		}
		p.pos++
		value, err := p.value()
		if err != nil {
			return t, err
		}
		if value == "" {
			return t, p.errorf(word, "operator %q requires a value", op)
		}
		t.Op = op
		return t, t.setValue(p, word, value)
	}

	// Free text, rewind past any letters consumed while looking for an operator.
	p.pos = word
	value, err := p.value()
	if err != nil {
		return t, err
	}
	if value == "" {
		return t, p.errorf(start, "empty term")
	}
	t.Op = OpText
	t.Value = strings.ToLower(value)
	return t, nil
}

// value reads a quoted or bare value.
func (p *parser) value() (string, error) {
	if p.done() {
		return "", nil
	}
	if p.input[p.pos] == '"' {
		open := p.pos
		p.pos++
		end := strings.IndexByte(p.input[p.pos:], '"')
		if end < 0 {
			return "", p.errorf(open, "unterminated quote")
		}
		v := p.input[p.pos : p.pos+end]
		p.pos += end + 1
		return v, nil
	}
	start := p.pos
	for !p.done() && !unicode.IsSpace(rune(p.input[p.pos])) {
		if p.input[p.pos] == '"' {
			return "", p.errorf(p.pos, "unexpected quote")
		}
		p.pos++
	}
	return p.input[start:p.pos], nil
}

// setValue validates and stores an operator value.
func (t *Term) setValue(p *parser, offset int, value string) error {
	switch t.Op {
	case OpBefore, OpAfter:
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, value); err == nil {
				t.Date = d
				t.Value = value
				return nil
			}
		}
		return p.errorf(offset, "invalid date %q for %s", value, t.Op)
	case OpIs:
		v := strings.ToLower(value)
		if !lo.Contains([]string{"unread", "read", "scheduled", "sent"}, v) {
			return p.errorf(offset, "unsupported is:%s", value)
		}
		t.Value = v
	case OpHas:
		if !strings.EqualFold(value, "attachment") {
			return p.errorf(offset, "unsupported has:%s", value)
		}
		t.Value = "attachment"
	default:
		t.Value = strings.ToLower(value)
	}
	return nil
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

func anyContainsFold(values []string, substr string) bool {
	return lo.ContainsBy(values, func(v string) bool { return containsFold(v, substr) })
}
