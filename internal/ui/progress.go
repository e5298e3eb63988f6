package ui

import (
	"fmt"
	"strings"

	"github.com/BioHazard786/cafe/internal/timer"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

const presetStep = 5

// TimerModel is the standalone focus timer screen.
type TimerModel struct {
	timer TimerControl
	feed  *Feed

	bar      progress.Model
	state    timer.State
	message  string
	stats    Stats
	quitting bool
}

func NewTimerModel(tm TimerControl, feed *Feed) *TimerModel {
	return &TimerModel{
		timer: tm,
		feed:  feed,
		state: tm.State(),
		bar: progress.New(
			progress.WithGradient(ProgressStart, ProgressEnd),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
	}
}

func (m *TimerModel) Stats() Stats { return m.stats }

func (m *TimerModel) Init() tea.Cmd {
	return m.feed.listen()
}

func (m *TimerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(40, max(10, msg.Width-20))

	case tea.KeyMsg:
		m.message = ""
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case " ", "s":
			if m.timer.State().Running {
				m.timer.Pause()
			} else {
				m.timer.Start()
			}
		case "r":
			m.timer.Reset()
		case "+", "=":
			m.shiftPreset(presetStep)
		case "-":
			m.shiftPreset(-presetStep)
		}

	case timerMsg:
		m.state = timer.State(msg)
		return m, m.feed.listen()

	case completeMsg:
		m.stats.Sessions++
		m.stats.FocusMinutes += int(msg)
		m.message = fmt.Sprintf("%s Congratulations! You completed %d minutes of focused study!", IconComplete, int(msg))
		return m, m.feed.listen()
	}
	return m, nil
}

func (m *TimerModel) shiftPreset(delta int) {
	next := m.timer.State().Preset + delta
	next = min(max(next, timer.MinPreset), timer.MaxPreset)
	if err := m.timer.SetPreset(next); err != nil {
		m.message = "Error: " + err.Error()
	}
}

func (m *TimerModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s Focus timer (%d min)", IconTime, m.state.Preset)))
	b.WriteString("\n\n  ")
	b.WriteString(TimerView(m.state.Minutes, m.state.Seconds, m.state.Running))
	b.WriteString("  ")
	b.WriteString(m.bar.ViewAs(m.state.Elapsed()))
	b.WriteString("\n\n")
	if m.message != "" {
		b.WriteString(SuccessStyle.Render(m.message))
		b.WriteString("\n\n")
	}
	b.WriteString(FooterStyle.Render("space start/pause • r reset • +/- preset • q quit"))
	b.WriteString("\n")
	return b.String()
}
