// Package metric publishes expvar counters and their recent history.
package metric

import (
	"container/list"
	"expvar"
	"strings"
	"time"
)

// historyLen is one hour of one minute samples, plus one so deltas can be charted.
const historyLen = 61

// TickerFunc is the function signature accepted by AddTickerFunc, will be called once per minute.
type TickerFunc func()

var tickerFuncChan = make(chan TickerFunc)

func init() {
	go metricsTicker()
}

// AddTickerFunc adds a new function callback to the list of metrics TickerFuncs that get
// called each minute.
func AddTickerFunc(f TickerFunc) {
	tickerFuncChan <- f
}

// Push adds the metric to the end of the list and returns a comma separated string of the
// previous historyLen entries.
func Push(history *list.List, ev expvar.Var) string {
	history.PushBack(ev.String())
	if history.Len() > historyLen {
		history.Remove(history.Front())
	}
	return joinStringList(history)
}

// TrackHistory returns an expvar holding the per-minute history of src.
func TrackHistory(src expvar.Var) *expvar.String {
	history := list.New()
	out := new(expvar.String)
	AddTickerFunc(func() {
		out.Set(Push(history, src))
	})
	return out
}

// NewCounters publishes a map of named counters, each initialized to zero.
func NewCounters(name string, keys ...string) *expvar.Map {
	m := expvar.NewMap(name)
	for _, k := range keys {
		m.Add(k, 0)
	}
	return m
}

// metricsTicker calls the current list of TickerFuncs once per minute.
func metricsTicker() {
	funcs := make([]TickerFunc, 0)
	ticker := time.NewTicker(time.Minute)

	for {
		select {
		case <-ticker.C:
			for _, f := range funcs {
				f()
			}
		case f := <-tickerFuncChan:
			funcs = append(funcs, f)
		}
	}
}

// joinStringList joins a List containing strings by commas.
func joinStringList(listOfStrings *list.List) string {
	if listOfStrings.Len() == 0 {
		return ""
	}
	s := make([]string, 0, listOfStrings.Len())
	for e := listOfStrings.Front(); e != nil; e = e.Next() {
		s = append(s, e.Value.(string))
	}
	return strings.Join(s, ",")
}
