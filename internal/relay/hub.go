// Package relay is a small room relay speaking the same envelope protocol as
// the room server. It is meant for local use and tests: it keeps no history
// and trusts the session cookie as the member's name.
package relay

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BioHazard786/cafe/internal/signaling"
)

// Hub owns every room. All room state is touched only by Run.
type Hub struct {
	rooms map[string]*Room

	// Register adds a member to its room.
	Register chan *Member

	// Unregister removes a member and closes its send channel.
	Unregister chan *Member

	// Broadcast carries decoded frames from members.
	Broadcast chan *Message

	done chan struct{}
	log  *slog.Logger
	now  func() time.Time
}

// Room is the set of members connected under one room code.
type Room struct {
	ID      string
	Members map[*Member]struct{}
}

// Message is one envelope received from a member.
type Message struct {
	Envelope signaling.Envelope
	member   *Member
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:      make(map[string]*Room),
		Register:   make(chan *Member),
		Unregister: make(chan *Member),
		Broadcast:  make(chan *Message),
		done:       make(chan struct{}),
		log:        logger.With("component", "relay"),
		now:        time.Now,
	}
}

// Run processes registrations and frames until ctx is done. It must be
// called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, r := range h.rooms {
				for m := range r.Members {
					close(m.Send)
				}
			}
			h.rooms = map[string]*Room{}
			return

		case m := <-h.Register:
			r, ok := h.rooms[m.RoomID]
			if !ok {
				r = &Room{ID: m.RoomID, Members: make(map[*Member]struct{})}
				h.rooms[m.RoomID] = r
				h.log.Info("room opened", "room", r.ID)
			}
			r.Members[m] = struct{}{}
			h.log.Info("member joined", "room", r.ID, "member", m.ID, "username", m.Username)
			h.broadcast(r, signaling.Join{Username: m.Username})

		case m := <-h.Unregister:
			r, ok := h.rooms[m.RoomID]
			if !ok {
				continue
			}
			if _, ok := r.Members[m]; !ok {
				continue
			}
			delete(r.Members, m)
			close(m.Send)
			h.log.Info("member left", "room", r.ID, "member", m.ID, "username", m.Username)

			if len(r.Members) == 0 {
				delete(h.rooms, r.ID)
				h.log.Info("room closed", "room", r.ID)
				continue
			}
			h.broadcast(r, signaling.Leave{Username: m.Username})

		case msg := <-h.Broadcast:
			r, ok := h.rooms[msg.member.RoomID]
			if !ok {
				continue
			}
			if env, ok := h.stamp(msg); ok {
				h.broadcast(r, env)
			}
		}
	}
}

// stamp attributes a member's frame to its username. Chat also gets the
// server timestamp; blank chat is dropped.
func (h *Hub) stamp(msg *Message) (signaling.Envelope, bool) {
	name := msg.member.Username

	switch e := msg.Envelope.(type) {
	case signaling.Chat:
		text := strings.TrimSpace(e.Message)
		if text == "" {
			return nil, false
		}
		return signaling.Chat{
			Username:  name,
			Message:   text,
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
			Avatar:    e.Avatar,
		}, true
	case signaling.Offer:
		e.Username = name
		return e, true
	case signaling.Answer:
		e.Username = name
		return e, true
	case signaling.ICE:
		e.Username = name
		return e, true
	case signaling.Timer:
		e.Username = name
		return e, true
	}

	h.log.Debug("ignoring frame", "type", msg.Envelope.Type(), "member", msg.member.ID)
	return nil, false
}

// broadcast queues env for every member of r, the sender included. A member
// whose buffer is full is dropped from the room, and a room left empty is
// closed.
func (h *Hub) broadcast(r *Room, env signaling.Envelope) {
	data, err := signaling.Encode(env)
	if err != nil {
		h.log.Error("encode frame", "type", env.Type(), "error", err)
		return
	}

	for m := range r.Members {
		select {
		case m.Send <- data:
		default:
			h.log.Warn("member too slow, dropping", "room", r.ID, "member", m.ID)
			delete(r.Members, m)
			close(m.Send)
		}
	}

	if len(r.Members) == 0 {
		delete(h.rooms, r.ID)
		h.log.Info("room closed", "room", r.ID)
	}
}
