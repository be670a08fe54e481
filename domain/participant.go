// Package domain contains core concepts of the chat system.
// This file defines Participant identities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"chat-sync/errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ParticipantID is the opaque identity issued to an authenticated user.
type ParticipantID string

// Validate rejects empty ids and ids containing the room separator,
// which would make two different pairs collide on the same RoomID.
func (p ParticipantID) Validate() error {
	if err := validate.Var(string(p), "required,excludes="+RoomSeparator); err != nil {
		return fmt.Errorf("%w: %q", errors.ErrInvalidIdentity, string(p))
	}
	return nil
}

func (p ParticipantID) String() string {
	return string(p)
}
