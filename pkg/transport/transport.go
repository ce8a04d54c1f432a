// Package transport delivers rendered messages to local mailboxes or an SMTP relay.
package transport

import (
	"context"
	"fmt"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/extension"
	"github.com/inbucket/courier/pkg/ident"
	"github.com/inbucket/courier/pkg/message"
	"github.com/inbucket/courier/pkg/policy"
	"github.com/inbucket/courier/pkg/storage"
)

// FromConfig creates the transport selected by cfg.Mode.
func FromConfig(
	cfg config.Transport,
	store storage.Store,
	addrPolicy *policy.Addressing,
	ids *ident.Generator,
	extHost *extension.Host,
) (message.Transport, error) {
	switch cfg.Mode {
	case config.TransportLocal:
		return &Local{Store: store, AddrPolicy: addrPolicy, IDs: ids, ExtHost: extHost}, nil
	case config.TransportSMTP:
		return NewSMTP(cfg), nil
	case config.TransportDiscard:
		return Discard{}, nil
	}
	return nil, fmt.Errorf("unknown transport mode configured: %q", cfg.Mode)
}

// Discard drops every message.
type Discard struct{}

// Deliver implements message.Transport.
func (Discard) Deliver(ctx context.Context, out *message.Outbound) error {
	return ctx.Err()
}
