// Package policy decides how addresses map to mailboxes and which recipients are delivered
// locally.
package policy

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/inbucket/courier/pkg/config"
	"github.com/samber/lo"
)

// Specials permitted unquoted in an RFC 3696 local-part.
const atextSpecials = "!#$%&'*+-/=?^_`{|}~"

// Addressing handles email address policy.
type Addressing struct {
	Mail config.Mail
	// LocalDomains limits local delivery; empty accepts every domain.
	LocalDomains []string
}

// ExtractMailbox extracts the mailbox name from a partial email address.
func (a *Addressing) ExtractMailbox(address string) (string, error) {
	local, domain, err := splitAddress(address)
	if err != nil {
		return "", err
	}
	local, err = mailboxName(local)
	if err != nil {
		return "", err
	}
	switch a.Mail.MailboxNaming {
	case config.LocalNaming:
		return local, nil
	case config.FullNaming:
		if domain == "" {
			return local, nil
		}
		if !ValidateDomainPart(domain) {
			return "", fmt.Errorf("domain part %q in %q failed validation", domain, address)
		}
		return local + "@" + strings.ToLower(domain), nil
	}
	return "", fmt.Errorf("unknown MailboxNaming value: %v", a.Mail.MailboxNaming)
}

// NewRecipient parses an address into a Recipient.  Display names are permitted.
func (a *Addressing) NewRecipient(address string) (*Recipient, error) {
	ar, err := mail.ParseAddress(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}
	local, domain, err := ParseEmailAddress(ar.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}
	mailbox, err := a.ExtractMailbox(ar.Address)
	if err != nil {
		return nil, err
	}
	return &Recipient{
		Address:    *ar,
		addrPolicy: a,
		LocalPart:  local,
		Domain:     domain,
		Mailbox:    mailbox,
	}, nil
}

// ShouldDeliverDomain indicates if mail for the domain is delivered to a local mailbox.
func (a *Addressing) ShouldDeliverDomain(domain string) bool {
	if len(a.LocalDomains) == 0 {
		return true
	}
	domain = strings.ToLower(domain)
	return lo.ContainsBy(a.LocalDomains, func(d string) bool {
		return strings.EqualFold(d, domain)
	})
}

// ParseEmailAddress unescapes an email address and splits the local part from the domain part.
// An error is returned if either part fails RFC 3696 validation.
func ParseEmailAddress(address string) (local string, domain string, err error) {
	local, domain, err = splitAddress(address)
	if err != nil {
		return "", "", err
	}
	if !ValidateDomainPart(domain) {
		return "", "", fmt.Errorf("domain part validation failed")
	}
	return local, domain, nil
}

// ValidateDomainPart returns true if the domain part complies with RFC 3696 and RFC 1035.
func ValidateDomainPart(domain string) bool {
	if domain == "" || len(domain) > 255 {
		return false
	}
	labels := strings.Split(strings.TrimSuffix(domain, "."), ".")
	for _, label := range labels {
		if !validLabel(label) {
			return false
		}
	}
	return true
}

func validLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	alnum := false
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case isAlpha(c) || isDigit(c) || c == '_':
			alnum = true
		case c == '-':
		default:
			return false
		}
	}
	return alnum
}

// splitAddress unescapes an address and splits off the domain.  The local part is validated per
// RFC 3696, the optional domain is returned as is.
func splitAddress(address string) (local string, domain string, err error) {
	switch {
	case address == "":
		return "", "", fmt.Errorf("empty address")
	case len(address) > 320:
		return "", "", fmt.Errorf("address exceeds 320 characters")
	case address[0] == '@':
		return "", "", fmt.Errorf("address cannot start with @ symbol")
	case address[0] == '.':
		return "", "", fmt.Errorf("address cannot start with a period")
	}

	var sb strings.Builder
	prev := byte('.')
	escaped := false // Previous byte was a backslash.
	quoted := false  // Inside a quoted string.
	for i := 0; i < len(address); i++ {
		c := address[i]
		if c > 127 {
			return "", "", fmt.Errorf("characters outside of US-ASCII range not permitted")
		}
		switch {
		case escaped:
			sb.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			if !quoted && i != 0 {
				return "", "", fmt.Errorf("quoted string can only begin at start of address")
			}
			quoted = !quoted
		case quoted:
			sb.WriteByte(c)
		case c == '@':
			if i > 128 {
				return "", "", fmt.Errorf("local part must not exceed 128 characters")
			}
			if prev == '.' {
				return "", "", fmt.Errorf("local part cannot end with a period")
			}
			return sb.String(), address[i+1:], nil
		case c == '.':
			if prev == '.' {
				return "", "", fmt.Errorf("sequence of periods is not permitted")
			}
			sb.WriteByte(c)
		case isAlpha(c) || isDigit(c) || strings.IndexByte(atextSpecials, c) >= 0:
			sb.WriteByte(c)
		default:
			return "", "", fmt.Errorf("character %q must be quoted", c)
		}
		prev = c
	}
	if escaped {
		return "", "", fmt.Errorf("cannot end address with unterminated quoted-pair")
	}
	if quoted {
		return "", "", fmt.Errorf("cannot end address with unterminated string quote")
	}
	if len(address) > 128 {
		return "", "", fmt.Errorf("local part must not exceed 128 characters")
	}
	if prev == '.' {
		return "", "", fmt.Errorf("local part cannot end with a period")
	}
	return sb.String(), "", nil
}

// mailboxName lower-cases a local part and strips any +extension.  Characters that RFC 3696
// requires quoting are rejected.
func mailboxName(local string) (string, error) {
	if local == "" {
		return "", fmt.Errorf("mailbox name cannot be empty")
	}
	result := strings.ToLower(local)
	invalid := lo.Filter([]byte(result), func(c byte, _ int) bool {
		return !(isAlpha(c) || isDigit(c) || c == '.' || strings.IndexByte(atextSpecials, c) >= 0)
	})
	if len(invalid) > 0 {
		return "", fmt.Errorf("mailbox name contained invalid character(s): %q", invalid)
	}
	if before, _, found := strings.Cut(result, "+"); found {
		result = before
	}
	return result, nil
}

func isAlpha(c byte) bool { return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') }

func isDigit(c byte) bool { return '0' <= c && c <= '9' }
