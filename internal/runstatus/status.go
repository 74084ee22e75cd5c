package runstatus

import "strings"

const (
	PageLoaded       = "Page loaded"
	Connecting       = "Connecting"
	Connected        = "Connected"
	Joined           = "Live view joined"
	Reconnecting     = "Reconnecting"
	Disconnected     = "Disconnected"
	DisconnectedAuth = "Disconnected (auth)"
)

const (
	KeyPageLoaded       = "page loaded"
	KeyConnecting       = "connecting"
	KeyConnected        = "connected"
	KeyJoined           = "live view joined"
	KeyReconnecting     = "reconnecting"
	KeyDisconnected     = "disconnected"
	KeyDisconnectedAuth = "disconnected (auth)"
)

func Key(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// Live reports whether status means the socket is up.
func Live(status string) bool {
	switch Key(status) {
	case KeyConnected, KeyJoined:
		return true
	default:
		return false
	}
}
