package projection

import (
	"bytes"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLatency_Warns_On_Slow_Delivery_Only_Once(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	log := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	latency := NewLatency(log, time.Second)
	latency.now = func() time.Time { return now }
	ctx := context.Background()

	old := message("bob", "history", now.Add(-time.Hour))
	fast := message("bob", "fast", now.Add(-100*time.Millisecond))
	slow := message("alice", "slow", now.Add(-5*time.Second))

	// Given the history delivered by the first snapshot
	req.NoError(latency.Consume(ctx, event.MessagesReplaced{Room: room, Messages: []domain.Message{old}}))
	req.Empty(out.String())

	// When two new messages show up, then again with nothing new
	req.NoError(latency.Consume(ctx, event.MessagesReplaced{Room: room, Messages: []domain.Message{old, fast, slow}}))
	req.NoError(latency.Consume(ctx, event.MessagesReplaced{Room: room, Messages: []domain.Message{old, fast, slow}}))
	req.NoError(latency.Consume(ctx, event.RemoteTypingChanged{Room: room, Typing: true}))

	// Then each new message is measured once and only the slow one warns
	req.Equal(2, strings.Count(out.String(), "delivery latency"))
	req.Equal(1, strings.Count(out.String(), "high latency detected"))
}

func TestLatency_Empty_First_Snapshot_Primes(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer
	log := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	latency := NewLatency(log, time.Minute)

	req.NoError(latency.Consume(context.Background(), event.MessagesReplaced{Room: room}))
	req.NoError(latency.Consume(context.Background(), event.MessagesReplaced{Room: room,
		Messages: []domain.Message{message("bob", "hi", time.Now())}}))

	req.Equal(1, strings.Count(out.String(), "delivery latency"))
}
