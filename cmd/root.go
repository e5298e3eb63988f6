package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/cafe/internal/ui"
	"github.com/BioHazard786/cafe/internal/version"
	"github.com/spf13/cobra"
)

var flagConfig string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cafe",
	Short: "Terminal client for virtual study cafe rooms",
	Long: `cafe joins a study room from the terminal: room chat, join and leave
notices, a one-to-one WebRTC video call with the other member, and a
pomodoro focus timer whose finished sessions are saved to your account.`,
	Version: version.Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "YAML config file (or CONFIG_PATH)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
