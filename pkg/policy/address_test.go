package policy_test

import (
	"strings"
	"testing"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldDeliverDomain(t *testing.T) {
	open := &policy.Addressing{}
	assert.True(t, open.ShouldDeliverDomain("anywhere.org"))

	ap := &policy.Addressing{LocalDomains: []string{"courier.local", "Example.com"}}
	testCases := []struct {
		domain string
		want   bool
	}{
		{domain: "courier.local", want: true},
		{domain: "EXAMPLE.com", want: true},
		{domain: "a.example.com", want: false},
		{domain: "bar.com", want: false},
	}
	for _, tc := range testCases {
		t.Run(tc.domain, func(t *testing.T) {
			assert.Equal(t, tc.want, ap.ShouldDeliverDomain(tc.domain))
		})
	}
}

func TestNewRecipient(t *testing.T) {
	ap := &policy.Addressing{
		Mail:         config.Mail{MailboxNaming: config.FullNaming},
		LocalDomains: []string{"example.com"},
	}

	r, err := ap.NewRecipient(`"Alice Liddell" <Alice+news@Example.com>`)
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", r.Name)
	assert.Equal(t, "Alice+news@Example.com", r.Address.Address)
	assert.Equal(t, "Alice+news", r.LocalPart)
	assert.Equal(t, "Example.com", r.Domain)
	assert.Equal(t, "alice@example.com", r.Mailbox)
	assert.True(t, r.ShouldDeliver())

	r, err = ap.NewRecipient("bob@elsewhere.net")
	require.NoError(t, err)
	assert.False(t, r.ShouldDeliver())

	for _, bad := range []string{"", "no-domain", "two@@example.com", "sp ace@example.com"} {
		_, err := ap.NewRecipient(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestExtractMailboxValid(t *testing.T) {
	localPolicy := policy.Addressing{Mail: config.Mail{MailboxNaming: config.LocalNaming}}
	fullPolicy := policy.Addressing{Mail: config.Mail{MailboxNaming: config.FullNaming}}

	testTable := []struct {
		input string // Input to test
		local string // Expected output when mailbox naming = local
		full  string // Expected output when mailbox naming = full
	}{
		{input: "mailbox", local: "mailbox", full: "mailbox"},
		{input: "user123", local: "user123", full: "user123"},
		{input: "MailBOX", local: "mailbox", full: "mailbox"},
		{input: "First.Last", local: "first.last", full: "first.last"},
		{input: "user+label", local: "user", full: "user"},
		{input: "chars!#$%", local: "chars!#$%", full: "chars!#$%"},
		{input: "chars=/?^", local: "chars=/?^", full: "chars=/?^"},
		{input: "chars|}~", local: "chars|}~", full: "chars|}~"},
		{input: "mailbox@domain.com", local: "mailbox", full: "mailbox@domain.com"},
		{input: "MailBOX@Domain.com", local: "mailbox", full: "mailbox@domain.com"},
		{input: "user+label@domain.com", local: "user", full: "user@domain.com"},
		{input: "chars_`.{@domain.com", local: "chars_`.{", full: "chars_`.{@domain.com"},
	}
	for _, tc := range testTable {
		t.Run(tc.input, func(t *testing.T) {
			got, err := localPolicy.ExtractMailbox(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.local, got, "local naming")

			got, err = fullPolicy.ExtractMailbox(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.full, got, "full naming")
		})
	}
}

func TestExtractMailboxInvalid(t *testing.T) {
	localPolicy := policy.Addressing{Mail: config.Mail{MailboxNaming: config.LocalNaming}}
	fullPolicy := policy.Addressing{Mail: config.Mail{MailboxNaming: config.FullNaming}}
	unknownPolicy := policy.Addressing{}

	for _, input := range []string{"", "first last", "first\"last", "first\nlast"} {
		_, err := localPolicy.ExtractMailbox(input)
		assert.Error(t, err, "local naming %q", input)
	}
	for _, input := range []string{
		"", "user@host@domain.com", "first last@domain.com", "first\nlast@domain.com",
	} {
		_, err := fullPolicy.ExtractMailbox(input)
		assert.Error(t, err, "full naming %q", input)
	}
	_, err := unknownPolicy.ExtractMailbox("user")
	assert.Error(t, err)
}

func TestValidateDomain(t *testing.T) {
	testTable := []struct {
		input  string
		expect bool
		msg    string
	}{
		{"", false, "Empty domain is not valid"},
		{"hostname", true, "Just a hostname is valid"},
		{"github.com", true, "Two labels should be just fine"},
		{"my-domain.com", true, "Hyphen is allowed mid-label"},
		{"_domainkey.foo.com", true, "Underscores are allowed"},
		{"bar.com.", true, "Must be able to end with a dot"},
		{"123.com", true, "Number only label valid"},
		{"google..com", false, "Double dot not valid"},
		{".foo.com", false, "Cannot start with a dot"},
		{"google\r.com", false, "Special chars not allowed"},
		{"foo.-bar.com", false, "Label cannot start with hyphen"},
		{"foo-.bar.com", false, "Label cannot end with hyphen"},
		{strings.Repeat("a", 256), false, "Max domain length is 255"},
		{strings.Repeat("a", 63) + ".com", true, "Should allow 63 char domain label"},
		{strings.Repeat("a", 64) + ".com", false, "Max domain label length is 63"},
	}
	for _, tt := range testTable {
		assert.Equal(t, tt.expect, policy.ValidateDomainPart(tt.input), "%q: %s", tt.input, tt.msg)
	}
}

func TestValidateLocal(t *testing.T) {
	testTable := []struct {
		input  string
		expect bool
		msg    string
	}{
		{"", false, "Empty local is not valid"},
		{"a", true, "Single letter should be fine"},
		{strings.Repeat("a", 128), true, "Valid up to 128 characters"},
		{strings.Repeat("a", 129), false, "Only valid up to 128 characters"},
		{"a!#$%&'*+-/=?^_`{|}~", true, "Any of !#$%&'*+-/=?^_`{|}~ are permitted"},
		{"first.last", true, "Embedded period is permitted"},
		{"first..last", false, "Sequence of periods is not allowed"},
		{".user", false, "Cannot lead with a period"},
		{"user.", false, "Cannot end with a period"},
		{"first last", false, "Unquoted space not permitted"},
		{"no,commas", false, "Unquoted comma not allowed"},
		{"james\\@mail", true, "Quoted @ permitted"},
		{"quoted\\ space", true, "Quoted space permitted"},
		{"return\\\r", true, "Should be able to quote ASCII control chars"},
		{"high\\\x80", false, "Should not accept > 7-bit quoted chars"},
		{"\"first last\"", true, "Quoted space is permitted"},
		{"\"quoted@sign\"", true, "Quoted @ is allowed"},
		{"\"unterminated", false, "Quoted string must be terminated"},
		{"\"unterminated\\\"", false, "Quoted string must be terminated"},
		{"embed\"quote\"string", false, "Embedded quoted string is illegal"},
		{"customer/department=shipping", true, "RFC3696 test case should be valid"},
	}
	for _, tt := range testTable {
		_, _, err := policy.ParseEmailAddress(tt.input + "@domain.com")
		assert.Equal(t, tt.expect, err == nil, "%q: %s (err %v)", tt.input, tt.msg, err)
	}
}
