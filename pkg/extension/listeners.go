package extension

import "sync"

// listenerSet is an ordered, named list of listener functions, shared by the event brokers.
type listenerSet[F any] struct {
	sync.RWMutex
	names []string
	funcs []F
}

// add registers f under name, replacing an existing listener with the same name.
func (ls *listenerSet[F]) add(name string, f F) {
	ls.Lock()
	defer ls.Unlock()

	ls.lockedRemove(name)
	ls.names = append(ls.names, name)
	ls.funcs = append(ls.funcs, f)
}

func (ls *listenerSet[F]) remove(name string) {
	ls.Lock()
	defer ls.Unlock()

	ls.lockedRemove(name)
}

func (ls *listenerSet[F]) lockedRemove(name string) {
	for i, entry := range ls.names {
		if entry == name {
			ls.names = append(ls.names[:i], ls.names[i+1:]...)
			ls.funcs = append(ls.funcs[:i], ls.funcs[i+1:]...)
			return
		}
	}
}

// snapshot returns a copy of the registered functions, so they may be called without the lock.
func (ls *listenerSet[F]) snapshot() []F {
	ls.RLock()
	defer ls.RUnlock()

	return append([]F(nil), ls.funcs...)
}

// listenerNames returns the registered names in priority order.
func (ls *listenerSet[F]) listenerNames() []string {
	ls.RLock()
	defer ls.RUnlock()

	return append([]string(nil), ls.names...)
}
