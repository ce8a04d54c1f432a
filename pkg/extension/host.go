// Package extension provides the event hooks used by Courier extensions.
package extension

import (
	"github.com/inbucket/courier/pkg/extension/event"
)

// Host defines extension points for Courier.
type Host struct {
	Events *Events
}

// Events defines all the event types supported by the extension host.
//
// Before-events are processed synchronously, and the first listener to respond with a non-nil
// value determines the outcome.  The remaining listeners are not called.
//
// After-events are delivered asynchronously once the action has completed.
type Events struct {
	AfterDraftSaved          AsyncEventBroker[event.DraftMetadata]
	AfterMessageDelivered    AsyncEventBroker[event.MessageMetadata]
	AfterMessageDeleted      AsyncEventBroker[event.MessageMetadata]
	AfterMessageScheduled    AsyncEventBroker[event.MessageMetadata]
	AfterMessageSent         AsyncEventBroker[event.MessageMetadata]
	AfterRepaymentProcessed  AsyncEventBroker[event.Repayment]
	BeforeRepaymentProcessed EventBroker[event.Repayment, event.PaymentDecision]
}

// Void indicates the event emitter will ignore any value returned by listeners.
type Void struct{}

// NewHost creates a new extension host.
func NewHost() *Host {
	return &Host{Events: &Events{}}
}
