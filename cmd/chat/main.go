package main

import (
	"bufio"
	"chat-sync/auth"
	"chat-sync/conversation"
	"chat-sync/domain"
	"chat-sync/internal"
	"chat-sync/projection"
	"chat-sync/runtime"
	"chat-sync/runtime/workers"
	"context"
	goerrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"
)

var (
	mine    = color.New(color.FgGreen)
	theirs  = color.New(color.FgCyan)
	status  = color.New(color.BgBlack, color.FgYellow)
	failure = color.New(color.FgRed)
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run opens one conversation with the configured store and chats on the terminal.
// Every line typed is sent, every keystroke batch in between counts as an edit.
func run() error {
	token := flag.String("token", "", "Token resolving to your participant identity")
	other := flag.String("with", "", "Participant to talk to")
	flag.Parse()

	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	self, err := auth.NewIssuer(config.AuthSecret, config.AuthTokenDuration).Validate(*token)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := internal.OpenStore(ctx, log, config)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	loop := runtime.NewEventLoop(log, config.LoopBufferSize)
	supervisor := workers.NewSupervisor(log, config.RestartInterval).Add(loop)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		supervisor.Run(context.Background())
	}()
	defer func() {
		supervisor.Stop()
		<-loopDone
	}()

	session := conversation.NewSession(log, store, loop, domain.NewMonotonicClock(), self, config.SessionConfig())
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			log.Warn("Session close failed", "error", err)
		}
	}()

	timeline := projection.NewTimeline(self)
	handle := session.Observe(timeline)
	defer handle.Cancel()

	if err := session.Open(ctx, domain.ParticipantID(*other)); err != nil {
		return fmt.Errorf("open conversation: %w", err)
	}
	fmt.Println(status.Render(fmt.Sprintf(" %s ⇄ %s ", self, *other)))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return readInput(ctx, log, session, os.Stdin) })
	g.Go(func() error { return render(ctx, timeline) })
	if err := g.Wait(); err != nil && !goerrors.Is(err, context.Canceled) && !goerrors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// readInput sends each line. Stdin is line buffered, so the edit preceding a
// send is the line itself.
func readInput(ctx context.Context, log *slog.Logger, session *conversation.Session, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return err
				}
				return io.EOF
			}
			if err := session.OnLocalEdit(ctx, line); err != nil {
				log.Debug("Edit dropped", "error", err)
			}
			if err := session.SendMessage(ctx, line); err != nil {
				fmt.Println(failure.Render("✗ " + err.Error()))
			}
		}
	}
}

// render prints the messages not printed yet, then any typing or connection change.
// A message arriving late is printed when it arrives, below the ones already shown.
func render(ctx context.Context, timeline *projection.Timeline) error {
	cursor := timeline.Cursor()
	typing, connected := false, false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeline.Changes():
		}

		for _, m := range cursor.Next() {
			line := fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Format("15:04:05"), m.SentBy, m.Content)
			if timeline.IsMine(m) {
				fmt.Println(mine.Render(line))
			} else {
				fmt.Println(theirs.Render(line))
			}
		}
		if now := timeline.RemoteTyping(); now != typing {
			typing = now
			if typing {
				fmt.Println(status.Render(" typing… "))
			}
		}
		if now := timeline.Connected(); now != connected {
			connected = now
			fmt.Println(status.Render(" " + connectionLabel(connected) + " "))
		}
	}
}

func connectionLabel(connected bool) string {
	if connected {
		return "connected"
	}
	return "reconnecting…"
}
