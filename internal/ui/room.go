package ui

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/BioHazard786/cafe/internal/room"
	"github.com/BioHazard786/cafe/internal/timer"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	updateBuffer = 256
	headerLines  = 2
	footerLines  = 4
	maxMessage   = 2000
)

// Actions are the user operations the room screen can trigger.
type Actions interface {
	SendChat(text string) bool
	StartCall()
	EndCall()
	ToggleMic()
	ToggleCamera()
}

// TimerControl is the countdown driven from the room screen.
type TimerControl interface {
	Start()
	Pause()
	Reset()
	SetPreset(minutes int) error
	State() timer.State
}

// Stats are collected while the room screen runs.
type Stats struct {
	Messages     int
	Calls        int
	Sessions     int
	FocusMinutes int
}

type (
	chatMsg       room.ChatMessage
	noticeMsg     string
	statusMsg     string
	alertMsg      string
	callMsg       room.Snapshot
	trackMsg      string
	clearVideoMsg struct{}
	connMsg       bool
	timerMsg      timer.State
	completeMsg   int
)

// Feed delivers events from other goroutines to the room screen. It
// implements room.Renderer and also carries connection and timer updates.
type Feed struct {
	updates chan tea.Msg
	done    chan struct{}
}

func NewFeed() *Feed {
	return &Feed{updates: make(chan tea.Msg, updateBuffer), done: make(chan struct{})}
}

// Close stops delivery; later events are discarded.
func (f *Feed) Close() {
	select {
	case <-f.done:
	default:
		close(f.done)
	}
}

func (f *Feed) send(msg tea.Msg) {
	select {
	case f.updates <- msg:
	case <-f.done:
	}
}

func (f *Feed) Chat(msg room.ChatMessage)   { f.send(chatMsg(msg)) }
func (f *Feed) Notice(text string)          { f.send(noticeMsg(text)) }
func (f *Feed) Status(text string)          { f.send(statusMsg(text)) }
func (f *Feed) Alert(text string)           { f.send(alertMsg(text)) }
func (f *Feed) CallChanged(s room.Snapshot) { f.send(callMsg(s)) }
func (f *Feed) RemoteTrack(kind string)     { f.send(trackMsg(kind)) }
func (f *Feed) ClearVideo()                 { f.send(clearVideoMsg{}) }

// Connected reports the room channel opening or closing.
func (f *Feed) Connected(open bool) { f.send(connMsg(open)) }

// TimerChanged reports a countdown change.
func (f *Feed) TimerChanged(s timer.State) { f.send(timerMsg(s)) }

// TimerCompleted reports a finished focus session.
func (f *Feed) TimerCompleted(minutes int) { f.send(completeMsg(minutes)) }

func (f *Feed) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-f.done:
			return nil
		default:
		}
		select {
		case msg := <-f.updates:
			return msg
		case <-f.done:
			return nil
		}
	}
}

// RoomInfo identifies the joined room.
type RoomInfo struct {
	Code     string
	Username string
	Link     string
}

// RoomModel is the bubbletea model of the room screen.
type RoomModel struct {
	info    RoomInfo
	actions Actions
	timer   TimerControl
	feed    *Feed

	viewport viewport.Model
	input    textinput.Model
	bar      progress.Model
	spinner  spinner.Model

	lines      []string
	status     string
	alert      string
	connected  bool
	call       room.Snapshot
	remote     []string
	countdown  timer.State
	stats      Stats
	wasCalling bool
	ready      bool
	quitting   bool
}

func NewRoomModel(info RoomInfo, actions Actions, tm TimerControl, feed *Feed) *RoomModel {
	in := textinput.New()
	in.Placeholder = "Type a message or /help"
	in.CharLimit = maxMessage
	in.Prompt = "› "
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Globe
	s.Style = SpinnerStyle

	return &RoomModel{
		info:    info,
		actions: actions,
		timer:   tm,
		feed:    feed,
		input:   in,
		spinner: s,
		bar: progress.New(
			progress.WithGradient(ProgressStart, ProgressEnd),
			progress.WithWidth(20),
			progress.WithoutPercentage(),
		),
		status:    "Connecting...",
		countdown: tm.State(),
		viewport:  viewport.New(80, 20),
	}
}

// Stats returns what happened during the session.
func (m *RoomModel) Stats() Stats { return m.stats }

func (m *RoomModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.feed.listen())
}

func (m *RoomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-headerLines-footerLines)
		m.input.Width = max(10, msg.Width-4)
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m.quit()
		case tea.KeyEnter:
			line := m.input.Value()
			m.input.Reset()
			if cmd := m.handleLine(line); cmd != nil {
				return m, cmd
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		m.alert = ""

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case chatMsg:
		if !msg.Own {
			m.stats.Messages++
		}
		m.appendLine(formatChat(room.ChatMessage(msg)))
		cmds = append(cmds, m.feed.listen())

	case noticeMsg:
		m.appendLine(NoticeStyle.Render(sanitize(string(msg))))
		cmds = append(cmds, m.feed.listen())

	case statusMsg:
		m.status = string(msg)
		cmds = append(cmds, m.feed.listen())

	case alertMsg:
		m.alert = string(msg)
		cmds = append(cmds, m.feed.listen())

	case callMsg:
		s := room.Snapshot(msg)
		if s.State == room.Connected && !m.wasCalling {
			m.stats.Calls++
		}
		m.wasCalling = s.State == room.Connected
		m.call = s
		cmds = append(cmds, m.feed.listen())

	case trackMsg:
		m.remote = append(m.remote, string(msg))
		cmds = append(cmds, m.feed.listen())

	case clearVideoMsg:
		m.remote = nil
		cmds = append(cmds, m.feed.listen())

	case connMsg:
		m.connected = bool(msg)
		if m.connected {
			m.status = "Connected - Ready for video call"
		} else {
			m.status = "Disconnected"
		}
		cmds = append(cmds, m.feed.listen())

	case timerMsg:
		m.countdown = timer.State(msg)
		cmds = append(cmds, m.feed.listen())

	case completeMsg:
		m.stats.Sessions++
		m.stats.FocusMinutes += int(msg)
		m.alert = fmt.Sprintf("%s Congratulations! You completed %d minutes of focused study!", IconComplete, int(msg))
		cmds = append(cmds, m.feed.listen())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *RoomModel) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	return m, tea.Quit
}

// handleLine runs one submitted input line and returns a command only when
// the screen should quit.
func (m *RoomModel) handleLine(line string) tea.Cmd {
	c, err := ParseCommand(line)
	if err != nil {
		m.status = "Error: " + err.Error()
		return nil
	}

	switch c.Kind {
	case CmdChat:
		if !m.actions.SendChat(c.Text) {
			m.status = "Not connected - message not sent"
		}
	case CmdCall:
		m.actions.StartCall()
	case CmdHangup:
		m.actions.EndCall()
	case CmdMic:
		m.actions.ToggleMic()
	case CmdCamera:
		m.actions.ToggleCamera()
	case CmdTimerStart:
		m.timer.Start()
	case CmdTimerPause:
		m.timer.Pause()
	case CmdTimerReset:
		m.timer.Reset()
	case CmdTimerPreset:
		if err := m.timer.SetPreset(c.Minutes); err != nil {
			m.status = "Error: " + err.Error()
		}
	case CmdHelp:
		m.appendLine(MutedStyle.Render(HelpText))
	case CmdQuit:
		_, cmd := m.quit()
		return cmd
	}
	return nil
}

func (m *RoomModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *RoomModel) refresh() {
	width := max(1, m.viewport.Width)
	wrapped := make([]string, len(m.lines))
	for i, l := range m.lines {
		wrapped[i] = lipgloss.NewStyle().Width(width).Render(l)
	}
	m.viewport.SetContent(strings.Join(wrapped, "\n"))
	m.viewport.GotoBottom()
}

func (m *RoomModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.alert != "" {
		b.WriteString(AlertBoxStyle.Render(m.alert))
		b.WriteString("\n")
	}
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(FooterStyle.Render("Enter to send • /help for commands • PgUp/PgDn to scroll • Ctrl+C to leave"))
	return b.String()
}

func (m *RoomModel) header() string {
	title := HeaderStyle.Render(fmt.Sprintf("%s Room %s", IconRoom, m.info.Code))
	user := MutedStyle.Render(fmt.Sprintf("%s %s", IconPeer, m.info.Username))

	clock := fmt.Sprintf("%s %s %s", IconTime, m.countdown.String(), m.bar.ViewAs(m.countdown.Elapsed()))
	if m.countdown.Running {
		clock = TitleStyle.Render(clock)
	} else {
		clock = MutedStyle.Render(clock + " (paused)")
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", user, "  ", clock)
}

func (m *RoomModel) statusLine() string {
	conn := ErrorStyle.Render("● offline")
	if m.connected {
		conn = SuccessStyle.Render("● online")
	}

	parts := []string{conn}
	if m.call.State.Active() {
		mic, cam := IconMic, IconCamera
		if !m.call.MicEnabled {
			mic = IconMicOff
		}
		if !m.call.CameraEnabled {
			cam = MutedStyle.Render("cam off")
		}
		call := fmt.Sprintf("%s %s %s %s", IconCall, m.call.State, mic, cam)
		if m.call.State == room.Acquiring || m.call.State == room.Answering {
			call = m.spinner.View() + " " + call
		}
		if len(m.remote) > 0 {
			call += MutedStyle.Render(" remote: " + strings.Join(m.remote, "+"))
		}
		parts = append(parts, call)
	}
	parts = append(parts, StatusStyle.Render(sanitize(m.status)))
	return strings.Join(parts, "  ")
}

func formatChat(msg room.ChatMessage) string {
	name := UsernameStyle.Render(sanitize(msg.Username))
	if msg.Own {
		name = OwnUsernameStyle.Render(sanitize(msg.Username))
	}
	return fmt.Sprintf("%s %s %s", TimeStyle.Render(FormatClock(msg.Time)), name, sanitize(msg.Text))
}

// sanitize drops control characters so remote text cannot move the cursor
// or inject terminal escape sequences.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
