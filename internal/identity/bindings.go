package identity

import "sync"

// Key identifies a browser context for one assistant alias.
type Key struct {
	ClientID string
	Alias    string
}

// Bindings stores the session id bound to each key.
type Bindings interface {
	Load(key Key) (string, bool)
	Store(key Key, sessionID string)
	// CompareAndSwap binds next only if the current binding equals old
	// (old == "" means no binding). It reports whether the swap happened.
	CompareAndSwap(key Key, old, next string) bool
}

// MemoryBindings is an in-process Bindings implementation.
type MemoryBindings struct {
	mu sync.Mutex
	m  map[Key]string
}

// NewMemoryBindings creates an empty binding store.
func NewMemoryBindings() *MemoryBindings {
	return &MemoryBindings{m: make(map[Key]string)}
}

func (b *MemoryBindings) Load(key Key) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.m[key]
	return id, ok
}

func (b *MemoryBindings) Store(key Key, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[key] = sessionID
}

func (b *MemoryBindings) CompareAndSwap(key Key, old, next string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.m[key] != old {
		return false
	}
	if next == "" {
		delete(b.m, key)
	} else {
		b.m[key] = next
	}
	return true
}
