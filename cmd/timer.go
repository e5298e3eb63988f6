package cmd

import (
	"fmt"
	"strconv"

	"github.com/BioHazard786/cafe/internal/config"
	"github.com/BioHazard786/cafe/internal/timer"
	"github.com/BioHazard786/cafe/internal/tracker"
	"github.com/BioHazard786/cafe/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var flagTimerRoom string

var timerCmd = &cobra.Command{
	Use:     "timer [minutes]",
	Aliases: []string{"t"},
	Short:   "Run the focus timer without joining a room",
	Long: `Run a pomodoro focus timer in the terminal. With --room, finished
sessions are saved to your account for that room.

Examples:
  cafe timer
  cafe timer 50
  cafe timer 25 --room ABC123 --session <sessionid>`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes := 0
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid minutes %q", args[0])
			}
			minutes = n
		}

		cfg, err := LoadConfig(config.Options{
			ConfigPath:     flagConfig,
			Origin:         flagOrigin,
			RoomCode:       flagTimerRoom,
			SessionID:      flagSession,
			CSRFToken:      flagCSRF,
			DefaultMinutes: minutes,
		})
		if err != nil {
			return err
		}

		var saver timer.Saver
		if cfg.RoomCode != "" {
			jar, err := cfg.CookieJar()
			if err != nil {
				return err
			}
			saver = tracker.New(cfg, jar, nil)
		}

		feed := ui.NewFeed()
		defer feed.Close()

		tm, err := timer.New(saver, timer.Options{
			Preset:     cfg.DefaultMinutes,
			OnTick:     feed.TimerChanged,
			OnComplete: feed.TimerCompleted,
		})
		if err != nil {
			return err
		}
		defer tm.Pause()

		model := ui.NewTimerModel(tm, feed)
		if _, err := tea.NewProgram(model, tea.WithContext(cmd.Context())).Run(); err != nil {
			return err
		}

		if stats := model.Stats(); stats.Sessions > 0 {
			ui.PrintSuccessf("Completed %d focus session(s), %d minutes", stats.Sessions, stats.FocusMinutes)
		}
		return nil
	},
}

func init() {
	f := timerCmd.Flags()
	f.StringVar(&flagTimerRoom, "room", "", "room code finished sessions are saved to")
	f.StringVar(&flagOrigin, "origin", "", "site origin (or CAFE_ORIGIN)")
	f.StringVar(&flagSession, "session", "", "session cookie value (or CAFE_SESSION_ID)")
	f.StringVar(&flagCSRF, "csrf", "", "anti-forgery token (or CAFE_CSRF_TOKEN)")

	rootCmd.AddCommand(timerCmd)
}
