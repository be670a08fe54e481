package repositories

import (
	"chat-sync/contract"
	"sync"
	"sync/atomic"
)

// guardedListener wraps a listener so nothing reaches it once the subscription
// is canceled or has failed. It never holds a lock while delivering.
type guardedListener struct {
	listener contract.SnapshotListener
	closed   atomic.Bool
	once     sync.Once
	release  func()
}

func newGuardedListener(listener contract.SnapshotListener) *guardedListener {
	return &guardedListener{listener: listener}
}

// onRelease sets what Cancel tears down. It must be called before the guard is shared.
func (g *guardedListener) onRelease(release func()) {
	g.release = release
}

func (g *guardedListener) OnSnapshot(snap contract.DocumentSnapshot) {
	if g.closed.Load() {
		return
	}
	g.listener.OnSnapshot(snap)
}

// OnError is delivered at most once and ends the subscription.
func (g *guardedListener) OnError(err error) {
	if !g.closed.CompareAndSwap(false, true) {
		return
	}
	g.listener.OnError(err)
	g.teardown()
}

func (g *guardedListener) Cancel() {
	g.closed.Store(true)
	g.teardown()
}

func (g *guardedListener) teardown() {
	g.once.Do(func() {
		if g.release != nil {
			g.release()
		}
	})
}
