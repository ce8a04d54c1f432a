package luahost

import (
	"time"

	"github.com/inbucket/courier/pkg/extension/event"
	lua "github.com/yuin/gopher-lua"
)

const messageMetadataName = "message_metadata"

func registerMessageMetadataType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(messageMetadataName)
	ls.SetGlobal(messageMetadataName, mt)

	// Static attributes.
	ls.SetField(mt, "new", ls.NewFunction(newMessageMetadata))

	// Methods.
	ls.SetField(mt, "__index", ls.NewFunction(messageMetadataIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(messageMetadataNewIndex))
}

func newMessageMetadata(ls *lua.LState) int {
	ls.Push(wrapMessageMetadata(ls, &event.MessageMetadata{}))
	return 1
}

func wrapMessageMetadata(ls *lua.LState, val *event.MessageMetadata) *lua.LUserData {
	return wrapUserData(ls, val, messageMetadataName)
}

func checkMessageMetadata(ls *lua.LState, pos int) *event.MessageMetadata {
	ud := ls.CheckUserData(pos)
	if v, ok := ud.Value.(*event.MessageMetadata); ok {
		return v
	}
	ls.ArgError(pos, messageMetadataName+" expected")
	return nil
}

func stringList(ls *lua.LState, vals []string) *lua.LTable {
	lt := ls.NewTable()
	for _, v := range vals {
		lt.Append(lua.LString(v))
	}
	return lt
}

func checkStringList(ls *lua.LState, pos int) []string {
	lt := ls.CheckTable(pos)
	out := make([]string, 0, lt.Len())
	lt.ForEach(func(_, lv lua.LValue) {
		s, ok := lv.(lua.LString)
		if !ok {
			ls.ArgError(pos, "list of strings expected")
		}
		out = append(out, string(s))
	})
	return out
}

// unixOrNil converts t to a Lua number of seconds, with nil for the zero time.
func unixOrNil(t time.Time) lua.LValue {
	if t.IsZero() {
		return lua.LNil
	}
	return lua.LNumber(t.Unix())
}

// Gets a field value from MessageMetadata user object.  This emulates a Lua table,
// allowing `msg.subject` instead of a Lua object syntax of `msg:subject()`.
func messageMetadataIndex(ls *lua.LState) int {
	m := checkMessageMetadata(ls, 1)
	field := ls.CheckString(2)

	// Push the requested field's value onto the stack.
	switch field {
	case "mailbox":
		ls.Push(lua.LString(m.Mailbox))
	case "id":
		ls.Push(lua.LString(m.ID))
	case "thread_id":
		ls.Push(lua.LString(m.ThreadID))
	case "from":
		ls.Push(wrapMailAddress(ls, m.From))
	case "to":
		ls.Push(wrapMailAddresses(ls, m.To))
	case "cc":
		ls.Push(wrapMailAddresses(ls, m.Cc))
	case "bcc":
		ls.Push(wrapMailAddresses(ls, m.Bcc))
	case "date":
		ls.Push(lua.LNumber(m.Date.Unix()))
	case "subject":
		ls.Push(lua.LString(m.Subject))
	case "snippet":
		ls.Push(lua.LString(m.Snippet))
	case "labels":
		ls.Push(stringList(ls, m.Labels))
	case "scheduled_at":
		ls.Push(unixOrNil(m.ScheduledAt))
	case "size":
		ls.Push(lua.LNumber(m.Size))
	default:
		// Unknown field.
		ls.Push(lua.LNil)
	}

	return 1
}

// Sets a field value on MessageMetadata user object.  This emulates a Lua table,
// allowing `msg.subject = x` instead of a Lua object syntax of `msg:subject(x)`.
func messageMetadataNewIndex(ls *lua.LState) int {
	m := checkMessageMetadata(ls, 1)
	index := ls.CheckString(2)

	switch index {
	case "mailbox":
		m.Mailbox = ls.CheckString(3)
	case "id":
		m.ID = ls.CheckString(3)
	case "thread_id":
		m.ThreadID = ls.CheckString(3)
	case "from":
		m.From = checkMailAddress(ls, 3)
	case "to":
		m.To = checkMailAddresses(ls, 3)
	case "cc":
		m.Cc = checkMailAddresses(ls, 3)
	case "bcc":
		m.Bcc = checkMailAddresses(ls, 3)
	case "date":
		m.Date = time.Unix(ls.CheckInt64(3), 0)
	case "subject":
		m.Subject = ls.CheckString(3)
	case "snippet":
		m.Snippet = ls.CheckString(3)
	case "labels":
		m.Labels = checkStringList(ls, 3)
	case "size":
		m.Size = ls.CheckInt64(3)
	default:
		ls.RaiseError("invalid index %q", index)
	}

	return 0
}
