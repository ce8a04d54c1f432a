// Package luahost runs Lua extension scripts, wiring the functions they register on the
// `courier` global to the extension event brokers.
package luahost

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/inbucket/courier/pkg/config"
	"github.com/inbucket/courier/pkg/extension"
	"github.com/inbucket/courier/pkg/extension/event"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// listenerName is the name Lua listeners are registered under with the extension host.
const listenerName = "lua"

// Host of Lua extensions.
type Host struct {
	Functions  []string // Functions detected in lua script.
	extHost    *extension.Host
	pool       *statePool
	logContext zerolog.Context
}

// ErrScriptMissing is returned by New when a required script is not present.
var ErrScriptMissing = errors.New("lua script not found")

// New constructs a new Lua Host, pre-compiling the source.  A nil Host is returned when the
// script does not exist and is not required.
func New(conf config.Lua, extHost *extension.Host) (*Host, error) {
	scriptPath := conf.Path
	if scriptPath == "" {
		return nil, nil
	}

	logContext := log.With().Str("module", "lua")
	logger := logContext.Str("phase", "startup").Str("path", scriptPath).Logger()

	// Pre-load, parse, and compile script.
	if fi, err := os.Stat(scriptPath); err != nil {
		if conf.Required {
			return nil, fmt.Errorf("%w: %v", ErrScriptMissing, scriptPath)
		}
		logger.Info().Msg("Script file not found")
		return nil, nil
	} else if fi.IsDir() {
		return nil, fmt.Errorf("lua script %v is a directory", scriptPath)
	}

	logger.Info().Msg("Loading script")
	file, err := os.Open(scriptPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return NewFromReader(logContext.Logger(), extHost, bufio.NewReader(file), scriptPath)
}

// NewFromReader constructs a new Lua Host, loading Lua source from the provided reader.
// The provided path is used in logging and error messages.
func NewFromReader(logger zerolog.Logger, extHost *extension.Host, r io.Reader, path string) (*Host, error) {
	logContext := logger.With().Str("path", path)

	// Pre-parse, and compile script.
	chunk, err := parse.Parse(r, path)
	if err != nil {
		return nil, err
	}
	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return nil, err
	}

	// Build the pool and confirm LState is retrievable.
	pool := newStatePool(logger, proto)
	h := &Host{extHost: extHost, pool: pool, logContext: logContext}
	ls, err := pool.getState()
	if err != nil {
		return nil, err
	}
	defer pool.putState(ls)

	ib, err := getCourier(ls)
	if err != nil {
		return nil, err
	}
	h.wireFunctions(ib)

	return h, nil
}

// CreateChannel creates a channel and places it into the named global variable
// in newly created LStates.
func (h *Host) CreateChannel(name string) chan lua.LValue {
	return h.pool.createChannel(name)
}

// wireFunctions registers an event listener for each function the script defined.
func (h *Host) wireFunctions(ib *Courier) {
	logger := h.logContext.Str("phase", "startup").Logger()
	events := h.extHost.Events
	wire := func(fn string, present bool, add func()) {
		if present {
			logger.Debug().Str("function", fn).Msg("Registering Lua listener")
			h.Functions = append(h.Functions, fn)
			add()
		}
	}

	wire(afterDraftSavedFnName, ib.After.DraftSaved != nil, func() {
		events.AfterDraftSaved.AddListener(listenerName, h.handleAfterDraftSaved)
	})
	wire(afterMessageDeletedFnName, ib.After.MessageDeleted != nil, func() {
		events.AfterMessageDeleted.AddListener(listenerName,
			h.afterMessageHandler(afterMessageDeletedFnName, func(a *CourierAfterFuncs) *lua.LFunction {
				return a.MessageDeleted
			}))
	})
	wire(afterMessageDeliveredFnName, ib.After.MessageDelivered != nil, func() {
		events.AfterMessageDelivered.AddListener(listenerName,
			h.afterMessageHandler(afterMessageDeliveredFnName, func(a *CourierAfterFuncs) *lua.LFunction {
				return a.MessageDelivered
			}))
	})
	wire(afterMessageScheduledFnName, ib.After.MessageScheduled != nil, func() {
		events.AfterMessageScheduled.AddListener(listenerName,
			h.afterMessageHandler(afterMessageScheduledFnName, func(a *CourierAfterFuncs) *lua.LFunction {
				return a.MessageScheduled
			}))
	})
	wire(afterMessageSentFnName, ib.After.MessageSent != nil, func() {
		events.AfterMessageSent.AddListener(listenerName,
			h.afterMessageHandler(afterMessageSentFnName, func(a *CourierAfterFuncs) *lua.LFunction {
				return a.MessageSent
			}))
	})
	wire(afterRepaymentProcessedFnName, ib.After.RepaymentProcessed != nil, func() {
		events.AfterRepaymentProcessed.AddListener(listenerName, h.handleAfterRepaymentProcessed)
	})
	wire(beforeRepaymentProcessedFnName, ib.Before.RepaymentProcessed != nil, func() {
		events.BeforeRepaymentProcessed.AddListener(listenerName, h.handleBeforeRepaymentProcessed)
	})

	if len(h.Functions) == 0 {
		logger.Warn().Msg("No Lua event listeners registered")
	}
}

// afterMessageHandler builds a listener that calls the Lua function selected by pick.
func (h *Host) afterMessageHandler(
	fnName string,
	pick func(*CourierAfterFuncs) *lua.LFunction,
) func(event.MessageMetadata) {
	return func(msg event.MessageMetadata) {
		h.call(fnName, func(ls *lua.LState, ib *Courier) (*lua.LFunction, []lua.LValue) {
			return pick(&ib.After), []lua.LValue{wrapMessageMetadata(ls, &msg)}
		}, 0)
	}
}

func (h *Host) handleAfterDraftSaved(d event.DraftMetadata) {
	h.call(afterDraftSavedFnName, func(ls *lua.LState, ib *Courier) (*lua.LFunction, []lua.LValue) {
		return ib.After.DraftSaved, []lua.LValue{wrapDraftMetadata(ls, &d)}
	}, 0)
}

func (h *Host) handleAfterRepaymentProcessed(p event.Repayment) {
	h.call(afterRepaymentProcessedFnName, func(ls *lua.LState, ib *Courier) (*lua.LFunction, []lua.LValue) {
		return ib.After.RepaymentProcessed, []lua.LValue{wrapRepayment(ls, &p)}
	}, 0)
}

// handleBeforeRepaymentProcessed lets the script decide the outcome of a payment.  A nil, or
// non-decision, return value defers to the payment processor.
func (h *Host) handleBeforeRepaymentProcessed(p event.Repayment) *event.PaymentDecision {
	var decision *event.PaymentDecision
	h.call(beforeRepaymentProcessedFnName, func(ls *lua.LState, ib *Courier) (*lua.LFunction, []lua.LValue) {
		return ib.Before.RepaymentProcessed, []lua.LValue{wrapRepayment(ls, &p)}
	}, 1, func(ret lua.LValue) {
		if ret == lua.LNil {
			return
		}
		d, err := unwrapPaymentDecision(ret)
		if err != nil {
			logger := h.logContext.Str("function", beforeRepaymentProcessedFnName).Logger()
			logger.Error().Err(err).Msg("Bad response from Lua function")
			return
		}
		decision = d
	})
	return decision
}

// call checks out an LState, calls the function returned by setup, and passes the nret return
// values to each handler.
func (h *Host) call(
	fnName string,
	setup func(*lua.LState, *Courier) (*lua.LFunction, []lua.LValue),
	nret int,
	handlers ...func(lua.LValue),
) {
	logger := h.logContext.Str("function", fnName).Logger()
	ls, err := h.pool.getState()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get Lua state instance from pool")
		return
	}
	defer h.pool.putState(ls)

	ib, err := getCourier(ls)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get courier global")
		return
	}
	fn, args := setup(ls, ib)
	if fn == nil {
		return
	}
	if err := ls.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...); err != nil {
		logger.Error().Err(err).Msg("Failed to call Lua function")
		return
	}
	if nret == 0 {
		return
	}
	ret := ls.Get(-1)
	ls.Pop(1)
	for _, handle := range handlers {
		handle(ret)
	}
}
