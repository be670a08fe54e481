package e2e

import (
	"chat-sync/auth"
	"chat-sync/domain"
	"chat-sync/gateway"
	"encoding/json"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type BaseWsSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.GatewayAddr == "" {
		s.T().Skip("GATEWAY_ADDR not set")
	}
}

// Participant is one side of a conversation driven through the gateway.
type Participant struct {
	t     *testing.T
	name  string
	conn  *websocket.Conn
	debug bool
}

// Join opens the conversation between self and other, authenticated as self.
func (s *BaseWsSuite) Join(name string, self, other string) *Participant {
	t := s.T()
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)

	token, err := auth.NewIssuer(s.Config.AuthSecret, time.Hour).Generate(domain.ParticipantID(self))
	s.Require().NoError(err)

	target := url.URL{Scheme: "ws", Host: s.Config.GatewayAddr, Path: "/ws/" + other}
	target.RawQuery = url.Values{"token": {token}}.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(target.String(), nil)
	s.Require().NoError(err, "Failed to connect to gateway at "+s.Config.GatewayAddr)

	p := &Participant{t: t, name: self, conn: conn, debug: s.Config.DebugJSON}
	t.Cleanup(func() { _ = conn.Close() })
	return p
}

func (p *Participant) Write(frame gateway.Inbound) {
	p.t.Helper()
	p.dump("SENT", frame)
	if err := p.conn.WriteJSON(frame); err != nil {
		p.t.Fatalf("%s write: %v", p.name, err)
	}
}

// Await reads frames until match accepts one or the timeout expires.
func (p *Participant) Await(timeout time.Duration, match func(gateway.Outbound) bool) gateway.Outbound {
	p.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		_ = p.conn.SetReadDeadline(deadline)
		var frame gateway.Outbound
		if err := p.conn.ReadJSON(&frame); err != nil {
			p.t.Fatalf("%s read: %v", p.name, err)
		}
		p.dump("RECEIVED", frame)
		if match(frame) {
			return frame
		}
	}
}

func (p *Participant) dump(direction string, frame any) {
	if !p.debug {
		return
	}
	body, _ := json.MarshalIndent(frame, "", "  ")
	p.t.Logf("%s %s:\n%s", p.name, direction, body)
}
