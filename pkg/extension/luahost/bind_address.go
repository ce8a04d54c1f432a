package luahost

import (
	"net/mail"

	lua "github.com/yuin/gopher-lua"
)

const mailAddressName = "address"

func registerMailAddressType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(mailAddressName)
	ls.SetGlobal(mailAddressName, mt)

	// Static attributes.
	ls.SetField(mt, "new", ls.NewFunction(newMailAddress))
	ls.SetField(mt, "parse", ls.NewFunction(parseMailAddress))

	// Methods.
	ls.SetField(mt, "__index", ls.NewFunction(mailAddressIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(mailAddressNewIndex))
	ls.SetField(mt, "__tostring", ls.NewFunction(mailAddressString))
}

// address.new(name, address)
func newMailAddress(ls *lua.LState) int {
	val := &mail.Address{
		Name:    ls.CheckString(1),
		Address: ls.CheckString(2),
	}
	ls.Push(wrapMailAddress(ls, val))

	return 1
}

// address.parse("Name <addr>") returns an address, or nil and an error message.
func parseMailAddress(ls *lua.LState) int {
	val, err := mail.ParseAddress(ls.CheckString(1))
	if err != nil {
		ls.Push(lua.LNil)
		ls.Push(lua.LString(err.Error()))
		return 2
	}
	ls.Push(wrapMailAddress(ls, val))

	return 1
}

func wrapMailAddress(ls *lua.LState, val *mail.Address) lua.LValue {
	if val == nil {
		return lua.LNil
	}
	return wrapUserData(ls, val, mailAddressName)
}

func wrapMailAddresses(ls *lua.LState, vals []*mail.Address) *lua.LTable {
	lt := ls.NewTable()
	for _, v := range vals {
		lt.Append(wrapMailAddress(ls, v))
	}
	return lt
}

func unwrapMailAddress(lv lua.LValue) (*mail.Address, bool) {
	if ud, ok := lv.(*lua.LUserData); ok {
		val, ok := ud.Value.(*mail.Address)
		return val, ok
	}
	return nil, false
}

func checkMailAddress(ls *lua.LState, pos int) *mail.Address {
	if val, ok := unwrapMailAddress(ls.CheckUserData(pos)); ok {
		return val
	}
	ls.ArgError(pos, mailAddressName+" expected")
	return nil
}

// checkMailAddresses converts a Lua list of addresses, raising an error on other values.
func checkMailAddresses(ls *lua.LState, pos int) []*mail.Address {
	lt := ls.CheckTable(pos)
	out := make([]*mail.Address, 0, lt.Len())
	lt.ForEach(func(_, lv lua.LValue) {
		addr, ok := unwrapMailAddress(lv)
		if !ok {
			ls.ArgError(pos, "list of "+mailAddressName+" expected")
		}
		out = append(out, addr)
	})
	return out
}

func mailAddressIndex(ls *lua.LState) int {
	val := checkMailAddress(ls, 1)
	switch ls.CheckString(2) {
	case "name":
		ls.Push(lua.LString(val.Name))
	case "address":
		ls.Push(lua.LString(val.Address))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}

func mailAddressNewIndex(ls *lua.LState) int {
	val := checkMailAddress(ls, 1)
	switch index := ls.CheckString(2); index {
	case "name":
		val.Name = ls.CheckString(3)
	case "address":
		val.Address = ls.CheckString(3)
	default:
		ls.RaiseError("invalid address index %q", index)
	}

	return 0
}

func mailAddressString(ls *lua.LState) int {
	ls.Push(lua.LString(checkMailAddress(ls, 1).String()))
	return 1
}
