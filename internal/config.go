package internal

import (
	"chat-sync/conversation"
	"chat-sync/gateway"
	"time"
)

type Config struct {
	LogLevel              string        `env:"LOG_LEVEL,required=true"`
	StoreBackend          string        `env:"STORE_BACKEND,default=badger"`
	BadgerFilepath        string        `env:"BADGER_FILEPATH"`
	FirestoreProject      string        `env:"FIRESTORE_PROJECT"`
	FirestoreCollection   string        `env:"FIRESTORE_COLLECTION,default=chatRooms"`
	GoogleCredentialsFile string        `env:"GOOGLE_CREDENTIALS_FILE"`
	TypingIdle            time.Duration `env:"TYPING_IDLE,default=1s"`
	ReconnectInitial      time.Duration `env:"RECONNECT_INITIAL_INTERVAL,default=500ms"`
	ReconnectMax          time.Duration `env:"RECONNECT_MAX_INTERVAL,default=30s"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	SinkTimeout           time.Duration `env:"SINK_TIMEOUT,default=1s"`
	LoopBufferSize        int           `env:"LOOP_BUFFER_SIZE,default=256"`
	RestartInterval       time.Duration `env:"RESTART_INTERVAL,default=1s"`
	Host                  string        `env:"HOST,default=localhost"`
	Port                  int           `env:"PORT,default=8080"`
	DebugPort             int           `env:"DEBUG_PORT"`
	AuthSecret            string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration     time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	LatencyThreshold      time.Duration `env:"LATENCY_THRESHOLD,default=2s"`
}

func (c Config) SessionConfig() conversation.Config {
	return conversation.Config{
		TypingIdle:       c.TypingIdle,
		WriteTimeout:     c.WriteTimeout,
		SinkTimeout:      c.SinkTimeout,
		ReconnectInitial: c.ReconnectInitial,
		ReconnectMax:     c.ReconnectMax,
	}
}

func (c Config) GatewayConfig() gateway.Config {
	config := gateway.DefaultConfig()
	config.Session = c.SessionConfig()
	config.LoopBufferSize = c.LoopBufferSize
	config.RestartInterval = c.RestartInterval
	config.WriteWait = c.WriteTimeout
	config.LatencyThreshold = c.LatencyThreshold
	return config
}
