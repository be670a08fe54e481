package auth

import (
	"chat-sync/domain"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// TokenRequest is what an operator asks for when issuing a token.
type TokenRequest struct {
	Participant string        `validate:"required,max=128"`
	Duration    time.Duration `validate:"required,min=1m"`
}

func ValidateTokenRequest(req TokenRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	return domain.ParticipantID(req.Participant).Validate()
}
