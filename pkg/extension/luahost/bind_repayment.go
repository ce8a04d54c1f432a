package luahost

import (
	"fmt"

	"github.com/inbucket/courier/pkg/extension/event"
	lua "github.com/yuin/gopher-lua"
)

const (
	repaymentName       = "repayment"
	paymentDecisionName = "payment"
)

func registerRepaymentTypes(ls *lua.LState) {
	mt := ls.NewTypeMetatable(repaymentName)
	ls.SetGlobal(repaymentName, mt)
	ls.SetField(mt, "__index", ls.NewFunction(repaymentIndex))

	// payment.success(msg), payment.pending(msg) and payment.failed(msg) build decisions
	// returned from courier.before.repayment_processed.
	mt = ls.NewTypeMetatable(paymentDecisionName)
	ls.SetGlobal(paymentDecisionName, mt)
	ls.SetField(mt, "success", ls.NewFunction(newPaymentDecision(event.PaymentSuccess)))
	ls.SetField(mt, "pending", ls.NewFunction(newPaymentDecision(event.PaymentPending)))
	ls.SetField(mt, "failed", ls.NewFunction(newPaymentDecision(event.PaymentFailed)))
	ls.SetField(mt, "__index", ls.NewFunction(paymentDecisionIndex))
}

func wrapRepayment(ls *lua.LState, val *event.Repayment) *lua.LUserData {
	return wrapUserData(ls, val, repaymentName)
}

func checkRepayment(ls *lua.LState, pos int) *event.Repayment {
	ud := ls.CheckUserData(pos)
	if v, ok := ud.Value.(*event.Repayment); ok {
		return v
	}
	ls.ArgError(pos, repaymentName+" expected")
	return nil
}

func repaymentIndex(ls *lua.LState) int {
	p := checkRepayment(ls, 1)

	switch ls.CheckString(2) {
	case "payment_id":
		ls.Push(lua.LString(p.PaymentID))
	case "entity_id":
		ls.Push(lua.LString(p.EntityID))
	case "entity_name":
		ls.Push(lua.LString(p.EntityName))
	case "entity_group_id":
		ls.Push(lua.LString(p.EntityGroupID))
	case "display_name":
		ls.Push(lua.LString(p.DisplayName))
	case "ranking_hint":
		ls.Push(lua.LNumber(p.RankingHint))
	case "status":
		ls.Push(lua.LString(p.Status))
	case "message":
		ls.Push(lua.LString(p.Message))
	case "processed_at":
		ls.Push(unixOrNil(p.ProcessedAt))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

func newPaymentDecision(status string) lua.LGFunction {
	return func(ls *lua.LState) int {
		val := &event.PaymentDecision{
			Status:  status,
			Message: ls.OptString(1, ""),
		}
		ls.Push(wrapUserData(ls, val, paymentDecisionName))
		return 1
	}
}

func paymentDecisionIndex(ls *lua.LState) int {
	ud := ls.CheckUserData(1)
	d, ok := ud.Value.(*event.PaymentDecision)
	if !ok {
		ls.ArgError(1, paymentDecisionName+" expected")
		return 0
	}

	switch ls.CheckString(2) {
	case "status":
		ls.Push(lua.LString(d.Status))
	case "message":
		ls.Push(lua.LString(d.Message))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

func unwrapPaymentDecision(lv lua.LValue) (*event.PaymentDecision, error) {
	if ud, ok := lv.(*lua.LUserData); ok {
		if v, ok := ud.Value.(*event.PaymentDecision); ok {
			return v, nil
		}
	}

	return nil, fmt.Errorf("expected payment decision, got %q", lv.Type().String())
}
