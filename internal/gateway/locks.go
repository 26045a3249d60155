package gateway

import "sync"

// nameLocks serializes check-then-create sequences per resource name so at
// most one local creation runs for a given name. Concurrent processes are
// still unguarded; the provider's uniqueness constraints are the backstop.
type nameLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (n *nameLocks) lock(name string) func() {
	n.mu.Lock()
	if n.locks == nil {
		n.locks = make(map[string]*sync.Mutex)
	}
	l, ok := n.locks[name]
	if !ok {
		l = &sync.Mutex{}
		n.locks[name] = l
	}
	n.mu.Unlock()

	l.Lock()
	return l.Unlock
}
