package repayment

import (
	"context"
	"fmt"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/extension/event"
)

// Processor charges a repayment.  An error is reported to the caller as a failed payment.
type Processor interface {
	Charge(ctx context.Context, p *event.Repayment) (*event.PaymentDecision, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, p *event.Repayment) (*event.PaymentDecision, error)

// Charge implements Processor.
func (f ProcessorFunc) Charge(ctx context.Context, p *event.Repayment) (*event.PaymentDecision, error) {
	return f(ctx, p)
}

// Instant settles every payment immediately.
var Instant = ProcessorFunc(func(ctx context.Context, _ *event.Repayment) (*event.PaymentDecision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &event.PaymentDecision{Status: StatusSuccess, Message: "payment processed"}, nil
})

// Async accepts every payment for later settlement.
var Async = ProcessorFunc(func(ctx context.Context, _ *event.Repayment) (*event.PaymentDecision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &event.PaymentDecision{Status: StatusPending, Message: "payment accepted, settlement pending"}, nil
})

// Reject declines every payment.
var Reject = ProcessorFunc(func(context.Context, *event.Repayment) (*event.PaymentDecision, error) {
	return &event.PaymentDecision{Status: StatusFailed, Message: "payment rejected by processor"}, nil
})

// ProcessorFromConfig returns the processor named by cfg.Processor.
func ProcessorFromConfig(cfg config.Payment) (Processor, error) {
	switch cfg.Processor {
	case config.ProcessorInstant:
		return Instant, nil
	case config.ProcessorAsync:
		return Async, nil
	case config.ProcessorReject:
		return Reject, nil
	}
	return nil, fmt.Errorf("unknown payment processor configured: %q", cfg.Processor)
}

// validStatus returns true for the three payment outcomes.
func validStatus(s string) bool {
	switch s {
	case StatusSuccess, StatusPending, StatusFailed:
		return true
	}
	return false
}
