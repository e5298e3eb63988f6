package relay

import (
	"time"

	"github.com/BioHazard786/cafe/internal/signaling"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the member.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the member.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Enough for session descriptions.
	maxMessageSize = 64 * 1024

	sendBuffer = 256
)

// Member is one websocket connection in a room.
type Member struct {
	ID       string
	Username string
	RoomID   string

	Hub  *Hub
	Conn *websocket.Conn

	// Send is the outbound frame queue, drained by WritePump and closed by
	// the hub.
	Send chan []byte
}

// ReadPump forwards decoded frames to the hub until the connection fails.
// It is the only reader on Conn.
func (m *Member) ReadPump() {
	defer func() {
		select {
		case m.Hub.Unregister <- m:
		case <-m.Hub.done:
		}
		m.Conn.Close()
	}()

	m.Conn.SetReadLimit(maxMessageSize)
	m.Conn.SetReadDeadline(time.Now().Add(pongWait))
	m.Conn.SetPongHandler(func(string) error {
		m.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := m.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.Hub.log.Debug("read failed", "member", m.ID, "error", err)
			}
			return
		}

		env, err := signaling.Decode(data)
		if err != nil {
			m.Hub.log.Debug("dropping frame", "member", m.ID, "error", err)
			continue
		}

		select {
		case m.Hub.Broadcast <- &Message{Envelope: env, member: m}:
		case <-m.Hub.done:
			return
		}
	}
}

// WritePump writes queued frames and keepalive pings. It is the only writer
// on Conn.
func (m *Member) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		m.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-m.Send:
			m.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				m.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := m.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				m.Hub.log.Debug("write failed", "member", m.ID, "error", err)
				return
			}

		case <-ticker.C:
			m.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := m.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
