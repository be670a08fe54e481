package runtime

import (
	"chat-sync/contract"
	"sync"
)

type Set map[string]struct{}

// Registry maps document keys to the listeners currently watching them.
type Registry struct {
	mu          sync.RWMutex
	Listeners   map[string]contract.SnapshotListener // map subscription -> listener
	KeyWatchers map[string]Set                       // map document key to subscriptions
}

func NewRegistry() *Registry {
	return &Registry{
		Listeners:   make(map[string]contract.SnapshotListener),
		KeyWatchers: make(map[string]Set),
	}
}

// GetListenersForKey resolves the subscriptions watching a key into their listeners.
// The returned slice is a copy: callers deliver outside of the registry lock.
// Returns nil if nobody watches the key.
func (r *Registry) GetListenersForKey(key string) []contract.SnapshotListener {
	r.mu.RLock()
	defer r.mu.RUnlock()

	watchers, ok := r.KeyWatchers[key]
	if !ok {
		return nil
	}
	var active []contract.SnapshotListener
	for subscriptionID := range watchers {
		if listener, exists := r.Listeners[subscriptionID]; exists {
			active = append(active, listener)
		}
	}
	return active
}

// Subscribe registers a listener under its subscription id and attaches it to a key.
// The key entry is created on the fly.
func (r *Registry) Subscribe(subscriptionID, key string, listener contract.SnapshotListener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Listeners[subscriptionID] = listener

	if _, ok := r.KeyWatchers[key]; !ok {
		r.KeyWatchers[key] = make(Set)
	}
	r.KeyWatchers[key][subscriptionID] = struct{}{}
}

// Unsubscribe removes a subscription and drops the key entry once nobody watches it.
func (r *Registry) Unsubscribe(subscriptionID, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.Listeners, subscriptionID)

	if watchers, ok := r.KeyWatchers[key]; ok {
		delete(watchers, subscriptionID)
		if len(watchers) == 0 {
			delete(r.KeyWatchers, key)
		}
	}
}
