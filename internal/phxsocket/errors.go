package phxsocket

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotConnected     = errors.New("socket not connected")
	ErrHeartbeatTimeout = errors.New("heartbeat reply not received")
	ErrConnectionClosed = errors.New("socket connection closed")
	ErrChannelClosed    = errors.New("channel closed")
)

// HTTPStatusError is returned when the server rejects the websocket
// upgrade. Phoenix answers 403 when the CSRF token does not check out.
type HTTPStatusError struct {
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "websocket upgrade failed"
	}
	if e.Status != "" {
		return "websocket upgrade failed: " + e.Status
	}
	return fmt.Sprintf("websocket upgrade failed: http status %d", e.StatusCode)
}

func IsUnauthorized(err error) bool {
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden
}
