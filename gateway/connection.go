package gateway

import (
	"chat-sync/contract"
	"chat-sync/conversation"
	"chat-sync/domain"
	"chat-sync/projection"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

var errClientClosed = goerrors.New("client closed the connection")

// connection owns one websocket, its event loop and its session.
type connection struct {
	log     *slog.Logger
	conn    *websocket.Conn
	store   contract.Store
	clock   domain.Clock
	self    domain.ParticipantID
	other   domain.ParticipantID
	config  Config
	frames  chan Outbound
	loop    *runtime.EventLoop
	session *conversation.Session
}

func newConnection(log *slog.Logger, conn *websocket.Conn, store contract.Store, clock domain.Clock,
	self, other domain.ParticipantID, config Config) *connection {
	loop := runtime.NewEventLoop(log, config.LoopBufferSize)
	return &connection{
		log:     log,
		conn:    conn,
		store:   store,
		clock:   clock,
		self:    self,
		other:   other,
		config:  config,
		frames:  make(chan Outbound, config.OutboundBuffer),
		loop:    loop,
		session: conversation.NewSession(log, store, loop, clock, self, config.Session),
	}
}

// serve runs until the client leaves or ctx is done.
// The session is closed before its loop stops, so its store subscription is released.
func (c *connection) serve(ctx context.Context) error {
	defer c.conn.Close()

	supervisor := workers.NewSupervisor(c.log, c.config.RestartInterval).Add(c.loop)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		supervisor.Run(context.Background())
	}()
	defer func() {
		supervisor.Stop()
		<-loopDone
	}()

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), c.config.CloseTimeout)
		defer cancel()
		if err := c.session.Close(closeCtx); err != nil {
			c.log.Warn("Session close failed", "error", err)
		}
	}()
	// Canceled first: nobody drains the frames once the pumps are gone.
	handle := c.session.Observe(frameSink{self: c.self, frames: c.frames})
	defer handle.Cancel()
	latency := c.session.Observe(projection.NewLatency(c.log, c.config.LatencyThreshold))
	defer latency.Cancel()

	if err := c.session.Open(ctx, c.other); err != nil {
		_ = c.writeFrame(Outbound{Type: FrameError, Error: err.Error()})
		return fmt.Errorf("open conversation: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	g.Go(func() error { return c.readPump(ctx) })
	g.Go(func() error { return c.writePump(ctx) })
	if err := g.Wait(); err != nil && !goerrors.Is(err, errClientClosed) && !goerrors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *connection) readPump(ctx context.Context) error {
	c.conn.SetReadLimit(64 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		var frame Inbound
		if err := c.conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errClientClosed
			}
			return fmt.Errorf("read frame: %w", err)
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))

		switch frame.Type {
		case FrameEdit:
			if err := c.session.OnLocalEdit(ctx, frame.Text); err != nil {
				c.reply(ctx, Outbound{Type: FrameError, Error: err.Error()})
			}
		case FrameSend:
			// The client clears its composer on "sent" only.
			if err := c.session.SendMessage(ctx, frame.Text); err != nil {
				c.reply(ctx, Outbound{Type: FrameError, Error: err.Error()})
				continue
			}
			c.reply(ctx, Outbound{Type: FrameSent})
		default:
			c.reply(ctx, Outbound{Type: FrameError, Error: fmt.Sprintf("unknown frame type %q", frame.Type)})
		}
	}
}

func (c *connection) reply(ctx context.Context, frame Outbound) {
	select {
	case c.frames <- frame:
	case <-ctx.Done():
	}
}

func (c *connection) writePump(ctx context.Context) error {
	ping := time.NewTicker(c.config.PongWait * 9 / 10)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.config.WriteWait))
			return ctx.Err()
		case frame := <-c.frames:
			if err := c.writeFrame(frame); err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteWait)); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (c *connection) writeFrame(frame Outbound) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
	return c.conn.WriteJSON(frame)
}
