package extension_test

import (
	"testing"

	"github.com/inbucket/courier/pkg/extension"
	"github.com/inbucket/courier/pkg/extension/event"
	"github.com/stretchr/testify/assert"
)

func TestBrokerEmitCallsListenersInOrder(t *testing.T) {
	broker := &extension.EventBroker[string, bool]{}

	var calls []string
	broker.AddListener("first", func(s string) *bool {
		calls = append(calls, "first:"+s)
		return nil
	})
	broker.AddListener("second", func(s string) *bool {
		calls = append(calls, "second:"+s)
		return nil
	})

	ev := "hi"
	got := broker.Emit(&ev)
	assert.Nil(t, got)
	assert.Equal(t, []string{"first:hi", "second:hi"}, calls)
}

func TestBrokerEmitCapturesFirstResult(t *testing.T) {
	broker := &extension.EventBroker[event.Repayment, event.PaymentDecision]{}

	makeListener := func(result *event.PaymentDecision) func(event.Repayment) *event.PaymentDecision {
		return func(event.Repayment) *event.PaymentDecision { return result }
	}
	pending := &event.PaymentDecision{Status: event.PaymentPending}
	failed := &event.PaymentDecision{Status: event.PaymentFailed}
	broker.AddListener("0", makeListener(nil))
	broker.AddListener("1", makeListener(pending))
	broker.AddListener("2", makeListener(failed))

	got := broker.Emit(&event.Repayment{EntityID: "e1"})
	if assert.NotNil(t, got) {
		assert.Equal(t, event.PaymentPending, got.Status)
	}
}

func TestBrokerListenerGetsCopy(t *testing.T) {
	broker := &extension.EventBroker[event.Repayment, extension.Void]{}
	broker.AddListener("mutator", func(r event.Repayment) *extension.Void {
		r.EntityID = "changed"
		return nil
	})

	ev := &event.Repayment{EntityID: "original"}
	broker.Emit(ev)
	assert.Equal(t, "original", ev.EntityID)
}

func TestBrokerAddingDuplicateNameReplacesPrevious(t *testing.T) {
	broker := &extension.EventBroker[string, bool]{}

	var firstGot, secondGot string
	broker.AddListener("dup", func(s string) *bool {
		firstGot = s
		return nil
	})
	broker.AddListener("dup", func(s string) *bool {
		secondGot = s
		return nil
	})

	ev := "hi"
	broker.Emit(&ev)
	assert.Empty(t, firstGot)
	assert.Equal(t, "hi", secondGot)
	assert.Equal(t, []string{"dup"}, broker.Listeners())
}

func TestBrokerRemovingListener(t *testing.T) {
	broker := &extension.EventBroker[string, bool]{}

	var firstGot, secondGot string
	broker.AddListener("1", func(s string) *bool {
		firstGot = s
		return nil
	})
	broker.AddListener("2", func(s string) *bool {
		secondGot = s
		return nil
	})
	broker.RemoveListener("1")
	broker.RemoveListener("missing")

	ev := "hi"
	broker.Emit(&ev)
	assert.Empty(t, firstGot)
	assert.Equal(t, "hi", secondGot)
	assert.Equal(t, []string{"2"}, broker.Listeners())
}
