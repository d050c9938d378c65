package ascii

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("ascii: client closed")

	// ErrNoServers is returned when the client is constructed without
	// server addresses.
	ErrNoServers = errors.New("ascii: no servers provided")

	// ErrMalformedResponse is wrapped into errors caused by responses the
	// protocol parser cannot interpret. The connection is dropped.
	ErrMalformedResponse = errors.New("ascii: malformed response")
)

// ServerError is an error reported by the server itself (a SERVER_ERROR or
// CLIENT_ERROR response line). The connection stays usable.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("ascii: server error: %s", e.Message)
}
