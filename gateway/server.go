// Package gateway exposes conversation sessions over websockets.
// Each connection is one authenticated participant talking to one other participant.
package gateway

import (
	"chat-sync/auth"
	"chat-sync/contract"
	"chat-sync/conversation"
	"chat-sync/domain"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Config struct {
	Session         conversation.Config
	LoopBufferSize  int
	RestartInterval time.Duration
	OutboundBuffer  int
	WriteWait       time.Duration
	PongWait        time.Duration
	CloseTimeout    time.Duration
	// LatencyThreshold above which a delivered message is logged as slow
	LatencyThreshold time.Duration
}

func DefaultConfig() Config {
	return Config{
		Session:          conversation.DefaultConfig(),
		LoopBufferSize:   256,
		RestartInterval:  time.Second,
		OutboundBuffer:   64,
		WriteWait:        10 * time.Second,
		PongWait:         60 * time.Second,
		CloseTimeout:     5 * time.Second,
		LatencyThreshold: 2 * time.Second,
	}
}

type Server struct {
	log      *slog.Logger
	store    contract.Store
	issuer   auth.Issuer
	clock    domain.Clock
	config   Config
	upgrader websocket.Upgrader

	// Upgraded connections are invisible to http.Server.Shutdown, they are tracked here.
	ctx         context.Context
	stop        context.CancelFunc
	mu          sync.Mutex
	closing     bool
	connections sync.WaitGroup
}

func NewServer(log *slog.Logger, store contract.Store, issuer auth.Issuer, config Config) *Server {
	ctx, stop := context.WithCancel(context.Background())
	return &Server{
		ctx:    ctx,
		stop:   stop,
		log:    log,
		store:  store,
		issuer: issuer,
		clock:  domain.NewMonotonicClock(),
		config: config,
		upgrader: websocket.Upgrader{
			// Identity comes from the token, not from cookies, so any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Routes() http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/ws/:other", auth.Middleware(s.issuer), s.handleConversation)
	return engine
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConversation(c *gin.Context) {
	self, ok := auth.ParticipantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown participant"})
		return
	}
	other := domain.ParticipantID(c.Param("other"))
	if _, err := domain.NewRoomID(self, other); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.track() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
		return
	}
	defer s.connections.Done()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "participant", self, "error", err)
		return
	}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	defer context.AfterFunc(s.ctx, cancel)()

	log := s.log.With("participant", self, "other", other)
	log.Info("Participant connected")
	if err := newConnection(log, conn, s.store, s.clock, self, other, s.config).serve(ctx); err != nil {
		log.Warn("Connection ended with error", "error", err)
		return
	}
	log.Info("Participant disconnected")
}

func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.connections.Add(1)
	return true
}

// Shutdown ends every live conversation and waits until their sessions are
// closed, so the store can be closed right after. New conversations get a 503.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.stop()

	done := make(chan struct{})
	go func() {
		s.connections.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
