package models

// AuthEventType enumerates the auth-state-change events emitted by the
// identity provider stream.
type AuthEventType string

const (
	EventSignedIn       AuthEventType = "SIGNED_IN"
	EventTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
	EventSignedOut      AuthEventType = "SIGNED_OUT"
	EventUserUpdated    AuthEventType = "USER_UPDATED"
)

// AuthEvent is one entry of the gateway's auth-state-change stream.
// Session is nil for EventSignedOut.
type AuthEvent struct {
	Type    AuthEventType
	Session *Session
}
