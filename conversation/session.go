// Package conversation keeps a live, ordered view of a two-party room in sync
// with the store. A Session owns the room subscription, the typing signal and
// the local message sequence; everything it owns is touched from its event loop,
// except the resources Close must still release once that loop is gone.
package conversation

import (
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/presence"
	"chat-sync/runtime"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/samber/lo"
)

type State int

const (
	Uninitialized State = iota
	Subscribing
	Live
	Detached
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Subscribing:
		return "subscribing"
	case Live:
		return "live"
	case Detached:
		return "detached"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Config struct {
	TypingIdle       time.Duration
	WriteTimeout     time.Duration
	SinkTimeout      time.Duration
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
}

func DefaultConfig() Config {
	return Config{
		TypingIdle:       presence.DefaultIdle,
		WriteTimeout:     10 * time.Second,
		SinkTimeout:      time.Second,
		ReconnectInitial: 500 * time.Millisecond,
		ReconnectMax:     30 * time.Second,
	}
}

// View is the read side of a session, replaced as a whole after every change.
type View struct {
	State        State
	Room         domain.RoomID
	Messages     []domain.Message
	RemoteTyping bool
	Connected    bool
}

type Session struct {
	log    *slog.Logger
	store  contract.Store
	loop   *runtime.EventLoop
	clock  domain.Clock
	self   domain.ParticipantID
	config Config

	view atomic.Pointer[View]

	observersMu  sync.Mutex
	observers    map[uint64]contract.EventSink
	nextObserver uint64

	// Loop-owned state.
	state        State
	room         domain.RoomID
	other        domain.ParticipantID
	messages     []domain.Message
	remoteTyping bool
	connected    bool
	generation   uint64
	ctx          context.Context
	reconnect    *backoff.ExponentialBackOff
	retry        *time.Timer

	// Written from the loop only, under resourcesMu so Close can release them without it.
	resourcesMu  sync.Mutex
	presence     *presence.Signal
	subscription contract.Subscription
	cancel       context.CancelFunc
}

// NewSession binds a session to the authenticated participant.
// The loop must be run by the caller, typically under a workers.Supervisor.
func NewSession(log *slog.Logger, store contract.Store, loop *runtime.EventLoop,
	clock domain.Clock, self domain.ParticipantID, config Config) *Session {
	reconnect := backoff.NewExponentialBackOff()
	reconnect.InitialInterval = config.ReconnectInitial
	reconnect.MaxInterval = config.ReconnectMax
	reconnect.Reset()

	s := &Session{
		log:       log,
		store:     store,
		loop:      loop,
		clock:     clock,
		self:      self,
		config:    config,
		observers: make(map[uint64]contract.EventSink),
		reconnect: reconnect,
	}
	s.publish()
	return s
}

// Open starts the conversation with other: the room is created if absent and
// its document subscribed. Opening the same pair again only repeats the create.
func (s *Session) Open(ctx context.Context, other domain.ParticipantID) error {
	roomID, err := domain.NewRoomID(s.self, other)
	if err != nil {
		return err
	}
	var openErr error
	if err := s.loop.Do(ctx, func() { openErr = s.open(roomID, other) }); err != nil {
		return err
	}
	return openErr
}

// SendMessage appends a message to the room. Blank text is a no-op.
// The message only shows up in Messages once the store notifies it back.
func (s *Session) SendMessage(ctx context.Context, text string) error {
	var (
		msg      domain.Message
		roomID   domain.RoomID
		blank    bool
		stateErr error
	)
	err := s.loop.Do(ctx, func() {
		if s.state != Subscribing && s.state != Live {
			stateErr = fmt.Errorf("%w: %s", errors.ErrSessionNotLive, s.state)
			return
		}
		m, err := domain.NewMessage(s.self, text, s.clock)
		if err == errors.ErrEmptyContent {
			blank = true
			return
		}
		if err != nil {
			stateErr = err
			return
		}
		msg, roomID = m, s.room
	})
	if err != nil {
		return loopError(err)
	}
	if stateErr != nil || blank {
		return stateErr
	}

	if err := s.store.AppendToArrayField(ctx, string(roomID), domain.FieldMessages, domain.MessageFields(msg)); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrSendFailed, err)
	}
	s.loop.Post(func() {
		if s.state != Detached && s.room == roomID {
			s.presence.End()
		}
	})
	return nil
}

// OnLocalEdit feeds the composer text to the typing signal.
func (s *Session) OnLocalEdit(ctx context.Context, text string) error {
	var stateErr error
	err := s.loop.Do(ctx, func() {
		if s.state != Subscribing && s.state != Live {
			stateErr = fmt.Errorf("%w: %s", errors.ErrSessionNotLive, s.state)
			return
		}
		s.presence.OnLocalEdit(text)
	})
	if err != nil {
		return loopError(err)
	}
	return stateErr
}

// Close detaches the session. Once it returns, neither the view nor any
// observer changes anymore, even if the store still has callbacks in flight.
// With the loop already stopped, only the subscription, the typing burst and
// the session context are released.
func (s *Session) Close(ctx context.Context) error {
	err := s.loop.Do(ctx, s.close)
	if goerrors.Is(err, errors.ErrLoopStopped) {
		s.release()
		return nil
	}
	return err
}

// loopError keeps caller cancellations as they are: only a stopped loop means
// the session can no longer be used.
func loopError(err error) error {
	if goerrors.Is(err, errors.ErrLoopStopped) {
		return fmt.Errorf("%w: %w", errors.ErrSessionNotLive, err)
	}
	return err
}

// Observe registers a sink for the session events.
// Sinks are called from the event loop and must not call back into the session synchronously.
func (s *Session) Observe(sink contract.EventSink) contract.Subscription {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = sink
	return cancelFunc(func() {
		s.observersMu.Lock()
		defer s.observersMu.Unlock()
		delete(s.observers, id)
	})
}

func (s *Session) Messages() []domain.Message {
	return slices.Clone(s.view.Load().Messages)
}

func (s *Session) RemoteTyping() bool {
	return s.view.Load().RemoteTyping
}

func (s *Session) State() State {
	return s.view.Load().State
}

func (s *Session) View() View {
	return *s.view.Load()
}

func (s *Session) Self() domain.ParticipantID {
	return s.self
}

func (s *Session) open(roomID domain.RoomID, other domain.ParticipantID) error {
	switch s.state {
	case Detached:
		return errors.ErrSessionClosed
	case Subscribing, Live:
		if roomID != s.room {
			return fmt.Errorf("%w: %s", errors.ErrSessionBusy, s.room)
		}
		s.createRoom()
		return nil
	}

	s.room = roomID
	s.other = other
	ctx, cancel := context.WithCancel(context.Background())
	signal := presence.NewSignal(s.log, s.store, s.loop, s.self, other, roomID, presence.Config{
		Idle:         s.config.TypingIdle,
		WriteTimeout: s.config.WriteTimeout,
	})
	s.resourcesMu.Lock()
	s.ctx, s.cancel, s.presence = ctx, cancel, signal
	s.resourcesMu.Unlock()
	s.state = Subscribing
	s.publish()
	s.log.Info("Opening conversation", "room", roomID, "self", s.self)

	s.createRoom()
	s.subscribe()
	return nil
}

// createRoom is fire-and-forget: the bookkeeping fields may be overwritten
// by every open, nothing orders messages by them.
func (s *Session) createRoom() {
	ctx, roomID := s.ctx, s.room
	fields := domain.RoomFields(roomID, s.clock.Now())
	go func() {
		ctx, cancel := context.WithTimeout(ctx, s.config.WriteTimeout)
		defer cancel()
		if err := s.store.SetDocument(ctx, string(roomID), fields); err != nil {
			s.log.Warn("Room creation failed", "room", roomID, "error", err)
		}
	}()
}

func (s *Session) subscribe() {
	s.generation++
	listener := &roomListener{session: s, generation: s.generation}
	subscription, err := s.store.Subscribe(s.ctx, string(s.room), listener)
	if err != nil {
		s.lost(s.generation, err)
		return
	}
	s.resourcesMu.Lock()
	s.subscription = subscription
	s.resourcesMu.Unlock()
}

func (s *Session) dropSubscription() {
	s.resourcesMu.Lock()
	subscription := s.subscription
	s.subscription = nil
	s.resourcesMu.Unlock()
	if subscription != nil {
		subscription.Cancel()
	}
}

// apply is the full-replace reducer: the snapshot alone defines the sequence.
func (s *Session) apply(generation uint64, snap contract.DocumentSnapshot) {
	if generation != s.generation || s.state == Detached {
		return
	}
	room, skipped := domain.DecodeRoom(s.room, snap.Fields)
	if skipped > 0 {
		s.log.Warn("Malformed messages skipped", "room", s.room, "count", skipped)
	}

	firstSnapshot := s.state == Subscribing
	s.state = Live
	s.messages = domain.ReduceSnapshot(room.Messages)
	s.reconnect.Reset()

	events := []event.DomainEvent{event.MessagesReplaced{Room: s.room, Messages: s.messages}}
	if typing := s.presence.RemoteTyping(room); firstSnapshot || typing != s.remoteTyping {
		s.remoteTyping = typing
		events = append(events, event.RemoteTypingChanged{Room: s.room, Typing: typing})
	}
	if !s.connected {
		s.connected = true
		events = append(events, event.ConnectionChanged{Room: s.room, Connected: true})
	}
	s.publish()
	s.emit(events...)
}

// lost keeps the last known messages and subscribes again after a backoff delay.
func (s *Session) lost(generation uint64, err error) {
	if generation != s.generation || s.state == Detached {
		return
	}
	s.log.Warn("Subscription lost, keeping last messages", "room", s.room, "error", err)
	s.dropSubscription()
	s.generation++
	if s.connected {
		s.connected = false
		s.publish()
		s.emit(event.ConnectionChanged{Room: s.room, Connected: false})
	}

	delay := s.reconnect.NextBackOff()
	if delay < 0 {
		delay = s.config.ReconnectMax
	}
	retryGeneration := s.generation
	s.retry = time.AfterFunc(delay, func() {
		s.loop.Post(func() {
			if retryGeneration != s.generation || s.state == Detached {
				return
			}
			s.retry = nil
			s.log.Info("Subscribing again", "room", s.room)
			s.subscribe()
		})
	})
}

func (s *Session) close() {
	if s.state == Detached {
		return
	}
	s.state = Detached
	s.generation++
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	if s.presence != nil {
		s.presence.Stop()
	}
	s.release()
	s.publish()
	s.log.Info("Conversation closed", "room", s.room)
}

// release frees what outlives the loop: the store subscription, a typing
// burst still published and the session context. Safe to call more than once.
func (s *Session) release() {
	s.resourcesMu.Lock()
	subscription, signal, cancel := s.subscription, s.presence, s.cancel
	s.subscription, s.cancel = nil, nil
	s.resourcesMu.Unlock()

	if subscription != nil {
		subscription.Cancel()
	}
	if signal != nil {
		signal.Release()
	}
	if cancel != nil {
		cancel()
	}
}

func (s *Session) publish() {
	s.view.Store(&View{
		State:        s.state,
		Room:         s.room,
		Messages:     s.messages,
		RemoteTyping: s.remoteTyping,
		Connected:    s.connected,
	})
}

func (s *Session) emit(events ...event.DomainEvent) {
	s.observersMu.Lock()
	sinks := lo.Values(s.observers)
	s.observersMu.Unlock()

	for _, e := range events {
		for _, sink := range sinks {
			ctx, cancel := context.WithTimeout(context.Background(), s.config.SinkTimeout)
			if err := sink.Consume(ctx, e); err != nil {
				s.log.Warn("Sink failed to consume event", "room", s.room, "error", err)
			}
			cancel()
		}
	}
}

type roomListener struct {
	session    *Session
	generation uint64
}

func (l *roomListener) OnSnapshot(snap contract.DocumentSnapshot) {
	l.session.loop.Post(func() { l.session.apply(l.generation, snap) })
}

func (l *roomListener) OnError(err error) {
	l.session.loop.Post(func() { l.session.lost(l.generation, err) })
}

type cancelFunc func()

func (f cancelFunc) Cancel() {
	f()
}
