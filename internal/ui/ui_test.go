package ui

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BioHazard786/cafe/internal/room"
	"github.com/BioHazard786/cafe/internal/timer"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"", Command{Kind: CmdNone}},
		{"   ", Command{Kind: CmdNone}},
		{"hello", Command{Kind: CmdChat, Text: "hello"}},
		{"  hi there ", Command{Kind: CmdChat, Text: "hi there"}},
		{"//shrug", Command{Kind: CmdChat, Text: "/shrug"}},
		{"/call", Command{Kind: CmdCall}},
		{"/HANGUP", Command{Kind: CmdHangup}},
		{"/mic", Command{Kind: CmdMic}},
		{"/cam", Command{Kind: CmdCamera}},
		{"/timer start", Command{Kind: CmdTimerStart}},
		{"/timer pause", Command{Kind: CmdTimerPause}},
		{"/timer reset", Command{Kind: CmdTimerReset}},
		{"/timer 50", Command{Kind: CmdTimerPreset, Minutes: 50}},
		{"/quit", Command{Kind: CmdQuit}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCommand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	_, err := ParseCommand("/dance")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	for _, in := range []string{"/timer", "/timer soon", "/timer 1 2"} {
		_, err := ParseCommand(in)
		assert.ErrorIs(t, err, ErrTimerUsage, in)
	}
}

func TestTranscriptEscapesChat(t *testing.T) {
	tr := NewTranscript("ABC123", "", nil)
	tr.Chat(room.ChatMessage{
		Username: "<b>mallory</b>",
		Text:     "<script>alert('x')</script>",
		Time:     time.Date(2024, 5, 1, 14, 30, 0, 0, time.Local),
		Avatar:   "javascript:alert(1)",
	})
	tr.Notice("bob joined the room")

	var buf bytes.Buffer
	require.NoError(t, tr.Render(&buf))
	out := buf.String()

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "&lt;b&gt;mallory&lt;/b&gt;")
	assert.NotContains(t, out, "javascript:")
	assert.Contains(t, out, "2:30 PM")
	assert.Contains(t, out, `<div class="chat-notification">bob joined the room</div>`)
}

func TestTranscriptWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room.html")
	tr := NewTranscript("ABC123", path, nil)

	tr.delay = 10 * time.Millisecond

	tr.Chat(room.ChatMessage{Username: "alice", Text: "first", Own: true})
	tr.Chat(room.ChatMessage{Username: "bob", Text: "second"})

	var data []byte
	require.Eventually(t, func() bool {
		var err error
		data, err = os.ReadFile(path)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second")
	assert.Contains(t, string(data), `class="chat-message own"`)
}

func TestTranscriptBatchesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room.html")
	tr := NewTranscript("ABC123", path, nil)
	tr.delay = time.Hour

	for i := 0; i < 200; i++ {
		tr.Chat(room.ChatMessage{Username: "alice", Text: fmt.Sprintf("message %d", i)})
	}
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no write before the flush delay")

	require.NoError(t, tr.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 200, strings.Count(string(data), `class="chat-message"`))
	assert.Contains(t, string(data), "message 199")

	tr.Chat(room.ChatMessage{Username: "bob", Text: "after close"})
	require.NoError(t, tr.Flush())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "after close")
}

func TestSanitizeStripsEscapes(t *testing.T) {
	assert.Equal(t, "[31mred", sanitize("\x1b[31mred"))
	assert.Equal(t, "a b", sanitize("a\nb"))
	assert.Equal(t, "<script>", sanitize("<script>"))
}

type fakeActions struct {
	mu    sync.Mutex
	chats []string
	calls []string
	open  bool
}

func (f *fakeActions) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
}

func (f *fakeActions) SendChat(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return false
	}
	f.chats = append(f.chats, text)
	return true
}

func (f *fakeActions) StartCall()    { f.record("call") }
func (f *fakeActions) EndCall()      { f.record("hangup") }
func (f *fakeActions) ToggleMic()    { f.record("mic") }
func (f *fakeActions) ToggleCamera() { f.record("cam") }

func newTestTimer(t *testing.T) *timer.Timer {
	t.Helper()
	tm, err := timer.New(nil, timer.Options{})
	require.NoError(t, err)
	return tm
}

func submit(m *RoomModel, line string) tea.Cmd {
	m.input.SetValue(line)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestRoomModelDispatchesInput(t *testing.T) {
	actions := &fakeActions{open: true}
	tm := newTestTimer(t)
	m := NewRoomModel(RoomInfo{Code: "ABC123", Username: "alice"}, actions, tm, NewFeed())

	submit(m, "  hello  ")
	submit(m, "/call")
	submit(m, "/mic")
	submit(m, "/cam")
	submit(m, "/hangup")
	submit(m, "/timer 15")

	assert.Equal(t, []string{"hello"}, actions.chats)
	assert.Equal(t, []string{"call", "mic", "cam", "hangup"}, actions.calls)
	assert.Equal(t, 15, tm.State().Preset)
	assert.Empty(t, m.input.Value())

	submit(m, "/timer 500")
	assert.Contains(t, m.status, timer.ErrInvalidPreset.Error())

	submit(m, "/nope")
	assert.Contains(t, m.status, ErrUnknownCommand.Error())

	actions.open = false
	submit(m, "lost")
	assert.Equal(t, "Not connected - message not sent", m.status)

	cmd := submit(m, "/quit")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestRoomModelRendersFeed(t *testing.T) {
	m := NewRoomModel(RoomInfo{Code: "ABC123", Username: "alice"}, &fakeActions{}, newTestTimer(t), NewFeed())
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	m.Update(connMsg(true))
	assert.Equal(t, "Connected - Ready for video call", m.status)

	m.Update(chatMsg(room.ChatMessage{Username: "bob", Text: "hey \x1b[2J", Time: time.Now()}))
	m.Update(chatMsg(room.ChatMessage{Username: "alice", Text: "mine", Time: time.Now(), Own: true}))
	m.Update(noticeMsg("carol joined the room"))
	m.Update(callMsg(room.Snapshot{State: room.Connected, MicEnabled: true, CameraEnabled: true}))
	m.Update(trackMsg("video"))
	m.Update(completeMsg(25))

	view := m.View()
	assert.Contains(t, view, "hey")
	assert.NotContains(t, view, "\x1b[2J")
	assert.Contains(t, view, "carol joined the room")
	assert.Contains(t, view, "remote: video")
	assert.Contains(t, view, "Congratulations! You completed 25 minutes")

	m.Update(clearVideoMsg{})
	m.Update(callMsg(room.Snapshot{State: room.Idle, MicEnabled: true, CameraEnabled: true}))
	assert.Empty(t, m.remote)

	stats := m.Stats()
	assert.Equal(t, Stats{Messages: 1, Calls: 1, Sessions: 1, FocusMinutes: 25}, stats)
}

func TestFeedDropsAfterClose(t *testing.T) {
	f := NewFeed()
	f.Close()
	f.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < updateBuffer*2; i++ {
			f.Notice("late")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("send blocked after close")
	}
	assert.Nil(t, f.listen()())
}

func TestSessionSummaryView(t *testing.T) {
	out := SessionSummaryView(SessionSummary{
		Room:         "ABC123",
		Username:     "alice",
		Duration:     90 * time.Second,
		Messages:     4,
		Calls:        1,
		Sessions:     2,
		FocusMinutes: 50,
	})

	for _, want := range []string{"Room Summary", "ABC123", "alice", "1m30s", "Focus minutes", "50"} {
		assert.True(t, strings.Contains(out, want), "summary missing %q", want)
	}
}
