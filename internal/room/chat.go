package room

import (
	"fmt"
	"strings"
	"time"

	"github.com/BioHazard786/cafe/internal/signaling"
)

// SendChat sends trimmed text as a chat envelope. Blank input sends
// nothing and reports false, as does a closed channel.
func (c *Controller) SendChat(text string) bool {
	msg := strings.TrimSpace(text)
	if msg == "" {
		return false
	}
	return c.out.Send(signaling.Chat{Message: msg, Avatar: c.avatar})
}

func (c *Controller) onChat(e signaling.Chat) {
	avatar := e.Avatar
	if avatar == "" {
		avatar = c.avatar
	}

	c.view.Chat(ChatMessage{
		Username: e.Username,
		Text:     e.Message,
		Time:     parseTimestamp(e.Timestamp),
		Avatar:   avatar,
		Own:      e.Username == c.username,
	})
}

func (c *Controller) onTimer(e signaling.Timer) {
	if e.Username == c.username {
		return
	}
	notice := fmt.Sprintf("%s %s the timer", e.Username, e.Action)
	if e.Minutes != nil {
		notice += fmt.Sprintf(" (%d min)", *e.Minutes)
	}
	c.view.Notice(notice)
}

// parseTimestamp reads the server's ISO-8601 stamp, falling back to the
// local clock when it is missing or unreadable.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now()
}
