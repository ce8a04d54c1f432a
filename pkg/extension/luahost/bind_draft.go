package luahost

import (
	"github.com/inbucket/courier/pkg/extension/event"
	lua "github.com/yuin/gopher-lua"
)

const draftMetadataName = "draft_metadata"

// Drafts are read-only in Lua.
func registerDraftMetadataType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(draftMetadataName)
	ls.SetGlobal(draftMetadataName, mt)
	ls.SetField(mt, "__index", ls.NewFunction(draftMetadataIndex))
}

func wrapDraftMetadata(ls *lua.LState, val *event.DraftMetadata) *lua.LUserData {
	return wrapUserData(ls, val, draftMetadataName)
}

func checkDraftMetadata(ls *lua.LState, pos int) *event.DraftMetadata {
	ud := ls.CheckUserData(pos)
	if v, ok := ud.Value.(*event.DraftMetadata); ok {
		return v
	}
	ls.ArgError(pos, draftMetadataName+" expected")
	return nil
}

func draftMetadataIndex(ls *lua.LState) int {
	d := checkDraftMetadata(ls, 1)

	switch ls.CheckString(2) {
	case "mailbox":
		ls.Push(lua.LString(d.Mailbox))
	case "draft_id":
		ls.Push(lua.LString(d.DraftID))
	case "message_id":
		ls.Push(lua.LString(d.MessageID))
	case "thread_id":
		ls.Push(lua.LString(d.ThreadID))
	case "to":
		ls.Push(wrapMailAddresses(ls, d.To))
	case "subject":
		ls.Push(lua.LString(d.Subject))
	case "updated_at":
		ls.Push(unixOrNil(d.UpdatedAt))
	default:
		ls.Push(lua.LNil)
	}

	return 1
}
