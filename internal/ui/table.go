package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SessionSummary is printed when the user leaves the room.
type SessionSummary struct {
	Room         string
	Username     string
	Duration     time.Duration
	Messages     int
	Calls        int
	Sessions     int
	FocusMinutes int
}

func SessionSummaryView(s SessionSummary) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s Room Summary", IconRoom))
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Room", s.Room},
		{"User", s.Username},
		{"Time in room", s.Duration.Round(time.Second).String()},
		{"Messages received", s.Messages},
		{"Calls", s.Calls},
		{"Focus sessions", s.Sessions},
		{"Focus minutes", s.FocusMinutes},
	})
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	return t.Render()
}

func RenderSessionSummary(s SessionSummary) {
	fmt.Println(SessionSummaryView(s))
}

// RoomBanner is shown before the room screen starts.
func RoomBanner(info RoomInfo) string {
	content := fmt.Sprintf("%s Joining room\n\n%s Room:  %s\n%s User:  %s\n%s Link:  %s",
		IconRoom,
		IconRoom, BoldStyle.Foreground(Primary).Render(info.Code),
		IconPeer, info.Username,
		IconWeb, MutedStyle.Render(info.Link),
	)
	return SuccessBoxStyle.Render(content)
}

// TimerView renders a standalone countdown line.
func TimerView(minutes, seconds int, running bool) string {
	clock := fmt.Sprintf("%02d:%02d", minutes, seconds)
	style := MutedStyle
	if running {
		style = TitleStyle
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, IconTime, " ", style.Render(clock))
}
