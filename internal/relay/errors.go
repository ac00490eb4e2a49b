package relay

import "errors"

// Protocol error taxonomy. These are returned by event handlers and mapped
// onto error events; none of them tears down the connection.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrUnauthorized         = errors.New("not a participant of this conversation")
	ErrNotInRoom            = errors.New("join the conversation before sending")
	ErrMalformedInput       = errors.New("malformed event payload")
	ErrNotFound             = errors.New("not found")
)
