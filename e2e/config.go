package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// GATEWAY_ADDR is host:port of a running gateway, the suites are skipped without it
	GatewayAddr string `envconfig:"GATEWAY_ADDR"`
	AuthSecret  string `envconfig:"AUTH_SECRET"`
	// E2E_DEBUG_JSON allows dumping every websocket frame as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
