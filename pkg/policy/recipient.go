package policy

import "net/mail"

// Recipient represents a parsed message recipient, allows policies for it to be queried.
type Recipient struct {
	mail.Address
	addrPolicy *Addressing
	// LocalPart is the part of the address before @, including +extension.
	LocalPart string
	// Domain is the part of the address after @.
	Domain string
	// Mailbox is the canonical mailbox name for this recipient.
	Mailbox string
}

// ShouldDeliver returns true if this recipient has a local mailbox.
func (r *Recipient) ShouldDeliver() bool {
	return r.addrPolicy.ShouldDeliverDomain(r.Domain)
}
