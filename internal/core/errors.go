package core

// Error codes for domain errors.
const (
	ErrCodeRoomNotFound      = "room_not_found"
	ErrCodeAlreadySubscribed = "already_subscribed"
	ErrCodeNotSubscribed     = "not_subscribed"
	ErrCodeNotParticipant    = "not_participant"
	ErrCodeBadRequest        = "bad_request"
	ErrCodeInternal          = "internal_error"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
