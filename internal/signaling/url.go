package signaling

import (
	"fmt"
	"net/url"
	"strings"
)

// RoomURL derives the room socket address from the site origin, choosing
// wss for https origins and ws otherwise.
func RoomURL(origin, room string) (string, error) {
	if room == "" {
		return "", fmt.Errorf("room code cannot be empty")
	}

	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid origin %q: missing host", origin)
	}

	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws", "":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("invalid origin %q: unsupported scheme %q", origin, u.Scheme)
	}

	u.Path = "/ws/rooms/" + url.PathEscape(room) + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
