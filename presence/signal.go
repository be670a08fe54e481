// Package presence turns local keystrokes into a debounced "typing" state
// stored on the room document, and reads the other participant's state back.
package presence

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultIdle = 1000 * time.Millisecond

// Scheduler puts work back on the owner's event loop.
type Scheduler interface {
	Post(task func()) bool
}

type Config struct {
	Idle         time.Duration
	WriteTimeout time.Duration
}

// Signal is owned by one session and driven from its event loop only,
// except for the writer goroutine which is fed through the pending slot.
type Signal struct {
	log       *slog.Logger
	store     contract.Store
	scheduler Scheduler
	self      domain.ParticipantID
	other     domain.ParticipantID
	room      domain.RoomID
	config    Config

	// loop-owned, published is also read by Release
	published  atomic.Bool
	timer      *time.Timer
	generation uint64

	// writer hand-off
	mu       sync.Mutex
	pending  any
	dirty    bool
	flushing bool
	drained  chan struct{}
}

func NewSignal(log *slog.Logger, store contract.Store, scheduler Scheduler,
	self, other domain.ParticipantID, room domain.RoomID, config Config) *Signal {
	if config.Idle <= 0 {
		config.Idle = DefaultIdle
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	return &Signal{
		log:       log,
		store:     store,
		scheduler: scheduler,
		self:      self,
		other:     other,
		room:      room,
		config:    config,
	}
}

// OnLocalEdit is called on every change of the composer text.
// A burst of edits writes typingUser=self once when it starts and null once
// the composer has been idle for config.Idle.
func (s *Signal) OnLocalEdit(text string) {
	if strings.TrimSpace(text) == "" {
		s.End()
		return
	}
	if !s.published.Load() {
		s.published.Store(true)
		s.publish(string(s.self))
	}
	s.arm()
}

// End closes the current burst right away, if there is one.
func (s *Signal) End() {
	s.disarm()
	if s.published.CompareAndSwap(true, false) {
		s.publish(nil)
	}
}

// Stop is End for a session going away. It returns once the last write
// landed, so the store may be closed right after.
func (s *Signal) Stop() {
	s.End()
	s.drain()
}

// Release ends a published burst from outside the event loop, once that loop
// is gone. A pending idle timer then posts to nothing and is left to expire.
func (s *Signal) Release() {
	if s.published.CompareAndSwap(true, false) {
		s.publish(nil)
	}
	s.drain()
}

// Typing reports whether a burst is currently published.
func (s *Signal) Typing() bool {
	return s.published.Load()
}

// RemoteTyping reads the typing slot of a room snapshot.
// Our own value is never reported, only the other participant's.
func (s *Signal) RemoteTyping(room domain.Room) bool {
	return room.IsTyping(s.other)
}

func (s *Signal) arm() {
	s.disarm()
	generation := s.generation
	s.timer = time.AfterFunc(s.config.Idle, func() {
		s.scheduler.Post(func() {
			// A timer stopped too late still fires; its generation is stale by then.
			if generation != s.generation {
				return
			}
			s.timer = nil
			s.End()
		})
	})
}

func (s *Signal) disarm() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// publish hands the value to a single writer goroutine.
// Writes land in order; values superseded while a write is in flight are skipped.
func (s *Signal) publish(value any) {
	s.mu.Lock()
	s.pending = value
	s.dirty = true
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	s.drained = make(chan struct{})
	drained := s.drained
	s.mu.Unlock()
	go s.flush(drained)
}

// drain waits for the writer goroutine, each write is bounded by WriteTimeout.
func (s *Signal) drain() {
	s.mu.Lock()
	flushing, drained := s.flushing, s.drained
	s.mu.Unlock()
	if flushing {
		<-drained
	}
}

func (s *Signal) flush(drained chan struct{}) {
	for {
		s.mu.Lock()
		if !s.dirty {
			s.flushing = false
			close(drained)
			s.mu.Unlock()
			return
		}
		value := s.pending
		s.dirty = false
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		err := s.store.UpdateField(ctx, string(s.room), domain.FieldTypingUser, value)
		cancel()
		if err != nil {
			s.log.Debug("Typing state not published", "room", s.room, "error", err)
		}
	}
}
