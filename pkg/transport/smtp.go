package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/message"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP relays messages through an upstream SMTP server, retrying transient failures with
// Fibonacci backoff.
type SMTP struct {
	addr       string
	auth       smtp.Auth
	maxRetries uint64
	backoff    func() retry.Backoff
	send       SendFunc
}

var _ message.Transport = &SMTP{}

// NewSMTP creates an SMTP relay transport.
func NewSMTP(cfg config.Transport) *SMTP {
	t := &SMTP{
		addr:       cfg.SMTPAddr,
		maxRetries: cfg.RetryMax,
		send:       smtp.SendMail,
	}
	base := cfg.RetryBase
	t.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(t.maxRetries, retry.NewFibonacci(base))
	}
	if cfg.SMTPUsername != "" {
		host, _, err := net.SplitHostPort(cfg.SMTPAddr)
		if err != nil {
			host = cfg.SMTPAddr
		}
		t.auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, host)
	}
	return t
}

// WithSendFunc replaces the function used to talk to the relay.
func (t *SMTP) WithSendFunc(f SendFunc) *SMTP {
	t.send = f
	return t
}

// Deliver implements message.Transport.
func (t *SMTP) Deliver(ctx context.Context, out *message.Outbound) error {
	to := make([]string, 0, len(out.Recipients))
	for _, a := range out.Recipients {
		to = append(to, a.Address)
	}
	slog := log.With().Str("module", "transport").Str("id", out.MessageID).Logger()
	attempt := 0
	err := retry.Do(ctx, t.backoff(), func(ctx context.Context) error {
		attempt++
		err := t.send(t.addr, t.auth, out.From.Address, to, out.Source)
		if err == nil {
			return nil
		}
		if permanent(err) {
			return err
		}
		slog.Debug().Err(err).Int("attempt", attempt).Msg("SMTP relay failed, will retry")
		return retry.RetryableError(err)
	})
	if err != nil {
		return fmt.Errorf("smtp relay %s: %w", t.addr, err)
	}
	slog.Debug().Int("recipients", len(to)).Msg("Relayed message")
	return nil
}

// permanent reports whether the relay rejected the message with a 5xx reply.
func permanent(err error) bool {
	var perr *textproto.Error
	return errors.As(err, &perr) && perr.Code >= 500
}
