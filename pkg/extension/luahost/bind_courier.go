package luahost

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

const (
	courierName       = "courier"
	courierAfterName  = "courier_after"
	courierBeforeName = "courier_before"

	// Function names, used in logging.
	afterDraftSavedFnName          = "after.draft_saved"
	afterMessageDeletedFnName      = "after.message_deleted"
	afterMessageDeliveredFnName    = "after.message_delivered"
	afterMessageScheduledFnName    = "after.message_scheduled"
	afterMessageSentFnName         = "after.message_sent"
	afterRepaymentProcessedFnName  = "after.repayment_processed"
	beforeRepaymentProcessedFnName = "before.repayment_processed"
)

// Courier is the Go value behind the `courier` Lua global.
type Courier struct {
	After  CourierAfterFuncs
	Before CourierBeforeFuncs
}

// CourierAfterFuncs holds the functions a script assigned under `courier.after`.
type CourierAfterFuncs struct {
	DraftSaved         *lua.LFunction
	MessageDeleted     *lua.LFunction
	MessageDelivered   *lua.LFunction
	MessageScheduled   *lua.LFunction
	MessageSent        *lua.LFunction
	RepaymentProcessed *lua.LFunction
}

// CourierBeforeFuncs holds the functions a script assigned under `courier.before`.
type CourierBeforeFuncs struct {
	RepaymentProcessed *lua.LFunction
}

func registerCourierTypes(ls *lua.LState) {
	// courier type.
	mt := ls.NewTypeMetatable(courierName)
	ls.SetField(mt, "__index", ls.NewFunction(courierIndex))

	// courier.after type.
	mt = ls.NewTypeMetatable(courierAfterName)
	ls.SetField(mt, "__index", ls.NewFunction(courierAfterIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(courierAfterNewIndex))

	// courier.before type.
	mt = ls.NewTypeMetatable(courierBeforeName)
	ls.SetField(mt, "__index", ls.NewFunction(courierBeforeIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(courierBeforeNewIndex))

	// courier global.
	ls.SetGlobal(courierName, wrapUserData(ls, &Courier{}, courierName))
}

func wrapUserData(ls *lua.LState, val any, typeName string) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = val
	ls.SetMetatable(ud, ls.GetTypeMetatable(typeName))

	return ud
}

func getCourier(ls *lua.LState) (*Courier, error) {
	lv := ls.GetGlobal(courierName)
	if lv == nil || lv == lua.LNil {
		return nil, errors.New("courier object was nil")
	}

	ud, ok := lv.(*lua.LUserData)
	if !ok {
		return nil, fmt.Errorf("courier object was type %s instead of UserData", lv.Type())
	}

	val, ok := ud.Value.(*Courier)
	if !ok {
		return nil, fmt.Errorf("courier object (%v) could not be cast", ud.Value)
	}

	return val, nil
}

func checkCourier(ls *lua.LState, pos int) *Courier {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*Courier); ok {
		return val
	}
	ls.ArgError(pos, courierName+" expected")
	return nil
}

func checkCourierAfter(ls *lua.LState, pos int) *CourierAfterFuncs {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*CourierAfterFuncs); ok {
		return val
	}
	ls.ArgError(pos, courierAfterName+" expected")
	return nil
}

func checkCourierBefore(ls *lua.LState, pos int) *CourierBeforeFuncs {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*CourierBeforeFuncs); ok {
		return val
	}
	ls.ArgError(pos, courierBeforeName+" expected")
	return nil
}

// courier getter.
func courierIndex(ls *lua.LState) int {
	c := checkCourier(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "after":
		ls.Push(wrapUserData(ls, &c.After, courierAfterName))
	case "before":
		ls.Push(wrapUserData(ls, &c.Before, courierBeforeName))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// afterFuncs maps Lua field names to their slots in CourierAfterFuncs.
func afterFuncs(a *CourierAfterFuncs) map[string]**lua.LFunction {
	return map[string]**lua.LFunction{
		"draft_saved":         &a.DraftSaved,
		"message_deleted":     &a.MessageDeleted,
		"message_delivered":   &a.MessageDelivered,
		"message_scheduled":   &a.MessageScheduled,
		"message_sent":        &a.MessageSent,
		"repayment_processed": &a.RepaymentProcessed,
	}
}

// courier.after getter.
func courierAfterIndex(ls *lua.LState) int {
	after := checkCourierAfter(ls, 1)
	field := ls.CheckString(2)

	if slot, ok := afterFuncs(after)[field]; ok {
		ls.Push(funcOrNil(*slot))
	} else {
		ls.Push(lua.LNil)
	}

	return 1
}

// courier.after setter.
func courierAfterNewIndex(ls *lua.LState) int {
	after := checkCourierAfter(ls, 1)
	index := ls.CheckString(2)

	slot, ok := afterFuncs(after)[index]
	if !ok {
		ls.RaiseError("invalid courier.after index %q", index)
		return 0
	}
	*slot = ls.CheckFunction(3)

	return 0
}

// courier.before getter.
func courierBeforeIndex(ls *lua.LState) int {
	before := checkCourierBefore(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "repayment_processed":
		ls.Push(funcOrNil(before.RepaymentProcessed))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

// courier.before setter.
func courierBeforeNewIndex(ls *lua.LState) int {
	before := checkCourierBefore(ls, 1)
	index := ls.CheckString(2)

	switch index {
	case "repayment_processed":
		before.RepaymentProcessed = ls.CheckFunction(3)
	default:
		ls.RaiseError("invalid courier.before index %q", index)
	}

	return 0
}

func funcOrNil(f *lua.LFunction) lua.LValue {
	if f == nil {
		return lua.LNil
	}

	return f
}
