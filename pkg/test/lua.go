package test

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cosmotek/loguago"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

// LuaNotifyTimeout bounds how long AssertNotified waits for an async hook.
var LuaNotifyTimeout = 2 * time.Second

// LuaInit defines the assertion helpers available to Lua test scripts.  Setting `async = true`
// makes failed assertions clear `test_ok` and log, instead of raising an error, so that hooks
// running on the event broker can report back through a channel.
const LuaInit = `
	local logger = require("logger")

	async = false
	test_ok = true

	function fail(message)
		if async then
			logger.error(message, {from = "fail"})
			test_ok = false
		else
			error(message, 2)
		end
	end

	function assert_true(value, message)
		if not value then
			fail(message)
		end
	end

	-- Compares plain values, or list tables element by element.
	function assert_eq(got, want)
		if type(got) == "table" and type(want) == "table" then
			assert_true(#got == #want, string.format("got %d elements, wanted %d", #got, #want))
			for i, wantv in ipairs(want) do
				assert_eq(got[i], wantv)
			end
			return
		end
		assert_true(got == want, string.format("got %q, wanted %q", tostring(got), tostring(want)))
	end

	function assert_contains(got, want)
		assert_true(string.find(got, want, 1, true),
			string.format("got %q, wanted it to contain %q", got, want))
	end

	-- Checks each field named in want against the same field of obj.
	function assert_fields(obj, want)
		for k, v in pairs(want) do
			assert_eq(obj[k], v)
		end
	end

	-- Checks a decision returned by payment.success, payment.pending or payment.failed.
	function assert_decision(d, status, message)
		assert_true(d ~= nil, "wanted a payment decision, got nil")
		assert_eq(d.status, status)
		if message ~= nil then
			assert_eq(d.message, message)
		end
	end
`

// LuaScript returns script prefixed with LuaInit, ready to be loaded by a lua host.
func LuaScript(script string) io.Reader {
	return strings.NewReader(LuaInit + script)
}

// NewLuaState creates an LState with the logger module and LuaInit loaded.  Log output is
// collected in the returned builder.
func NewLuaState() (*lua.LState, *strings.Builder) {
	output := &strings.Builder{}
	logger := loguago.NewLogger(zerolog.New(output))

	ls := lua.NewState()
	ls.PreloadModule("logger", logger.Loader)
	if err := ls.DoString(LuaInit); err != nil {
		panic(err)
	}

	return ls, output
}

// RunLua runs script in ls, failing the test on any Lua error.
func RunLua(t *testing.T, ls *lua.LState, script string) {
	t.Helper()
	require.NoError(t, ls.DoString(script))
}

// AssertNotified requires a truthy value on notify within LuaNotifyTimeout.
func AssertNotified(t *testing.T, notify chan lua.LValue) {
	t.Helper()
	select {
	case lv := <-notify:
		if lua.LVIsFalse(lv) {
			t.Error("Lua hook reported a failed assertion, see log output")
		}
	case <-time.After(LuaNotifyTimeout):
		t.Fatal("Lua hook did not notify within timeout")
	}
}
