package ui

import (
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BioHazard786/cafe/internal/room"
)

var transcriptTemplate = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Room {{.Room}}</title>
</head>
<body>
<div id="chat-messages">
{{- range .Entries}}
{{- if .Notice}}
<div class="chat-notification">{{.Text}}</div>
{{- else}}
<div class="chat-message{{if .Own}} own{{end}}">
  <img class="message-avatar" src="{{.Avatar}}" alt="">
  <div class="message-username">{{.Username}}</div>
  <div class="message-text">{{.Text}}</div>
  <div class="message-time">{{.Time}}</div>
</div>
{{- end}}
{{- end}}
</div>
</body>
</html>
`))

type transcriptEntry struct {
	Notice   bool
	Username string
	Avatar   string
	Text     string
	Time     string
	Own      bool
}

// transcriptFlushDelay batches entries into one file write.
const transcriptFlushDelay = time.Second

// Transcript renders the room's chat as an HTML page. All user supplied
// text is escaped by html/template. When a path is set the file is
// rewritten at most once per flush delay; Close writes what is left.
type Transcript struct {
	room  string
	path  string
	delay time.Duration
	log   *slog.Logger

	mu      sync.Mutex
	entries []transcriptEntry
	pending *time.Timer
	closed  bool

	// serializes file writes
	writeMu sync.Mutex
}

func NewTranscript(roomCode, path string, logger *slog.Logger) *Transcript {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcript{
		room:  roomCode,
		path:  path,
		delay: transcriptFlushDelay,
		log:   logger.With("component", "transcript"),
	}
}

func (t *Transcript) Chat(msg room.ChatMessage) {
	t.add(transcriptEntry{
		Username: msg.Username,
		Avatar:   msg.Avatar,
		Text:     msg.Text,
		Time:     FormatClock(msg.Time),
		Own:      msg.Own,
	})
}

func (t *Transcript) Notice(text string) {
	t.add(transcriptEntry{Notice: true, Text: text})
}

func (t *Transcript) Status(string)             {}
func (t *Transcript) Alert(string)              {}
func (t *Transcript) CallChanged(room.Snapshot) {}
func (t *Transcript) RemoteTrack(string)        {}
func (t *Transcript) ClearVideo()               {}

func (t *Transcript) add(e transcriptEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, e)
	if t.path == "" || t.closed || t.pending != nil {
		return
	}
	t.pending = time.AfterFunc(t.delay, func() {
		if err := t.Flush(); err != nil {
			t.log.Warn("failed to write transcript", "path", t.path, "error", err)
		}
	})
}

// Flush writes the transcript file now, cancelling any scheduled write.
func (t *Transcript) Flush() error {
	t.mu.Lock()
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.mu.Unlock()

	if t.path == "" {
		return nil
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.write()
}

// Close writes the final transcript. Later entries are no longer scheduled
// for writing; only an explicit Flush saves them.
func (t *Transcript) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return t.Flush()
}

// Render writes the page to w.
func (t *Transcript) Render(w io.Writer) error {
	t.mu.Lock()
	data := struct {
		Room    string
		Entries []transcriptEntry
	}{t.room, append([]transcriptEntry(nil), t.entries...)}
	t.mu.Unlock()

	return transcriptTemplate.Execute(w, data)
}

// write replaces the transcript file through a temporary file in the same
// directory.
func (t *Transcript) write() error {
	tmp, err := os.CreateTemp(filepath.Dir(t.path), ".transcript-*.html")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := t.Render(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("render: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), t.path)
}

// FormatClock formats a message time the way the room page shows it.
func FormatClock(t time.Time) string {
	return t.Local().Format("3:04 PM")
}
