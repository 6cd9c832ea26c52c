package domain

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyTranscript = errors.New("no messages in session")
	ErrUnknownModel    = errors.New("unknown model")
	ErrIdleTimeout     = errors.New("upstream idle timeout")
)

// SessionStore holds one transcript per session id.
type SessionStore interface {
	// Ensure creates an empty transcript for id if none exists.
	Ensure(id string)
	// Append adds msg to the end of the transcript. It fails with
	// ErrSessionNotFound if the session was never ensured.
	Append(id string, msg ChatMessage) error
	// Get returns a copy of the transcript and whether the session exists.
	// Unknown sessions yield an empty transcript.
	Get(id string) ([]ChatMessage, bool)
	// Clear empties the transcript of an existing session.
	Clear(id string)
}
