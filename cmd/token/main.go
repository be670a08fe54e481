package main

import (
	"chat-sync/auth"
	"chat-sync/domain"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run prints a token resolving to the given participant.
func run() error {
	participant := flag.String("participant", "", "Participant identity carried by the token")
	duration := flag.Duration("duration", 0, "Token lifetime, AUTH_TOKEN_DURATION when unset")
	flag.Parse()

	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	request := auth.TokenRequest{Participant: *participant, Duration: config.AuthTokenDuration}
	if *duration != 0 {
		request.Duration = *duration
	}
	if err := auth.ValidateTokenRequest(request); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	token, err := auth.NewIssuer(config.AuthSecret, request.Duration).Generate(domain.ParticipantID(request.Participant))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
