package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrInvalidIdentity  = fmt.Errorf("invalid participant identity")
	ErrEmptyContent     = fmt.Errorf("message content is empty")
	ErrInvalidMessage   = fmt.Errorf("invalid message")
	ErrSessionNotLive   = fmt.Errorf("session is not live")
	ErrSessionBusy      = fmt.Errorf("session already open on another room")
	ErrSessionClosed    = fmt.Errorf("session is closed")
	ErrSendFailed       = fmt.Errorf("send failed")
	ErrSubscriptionLost = fmt.Errorf("subscription lost")
	ErrNotFound         = fmt.Errorf("document not found")
	ErrLoopStopped      = fmt.Errorf("event loop stopped")
	ErrInvalidToken     = fmt.Errorf("invalid or expired token")
	ErrUnknownBackend   = fmt.Errorf("unknown store backend")
)
