package cmd

import (
	"log/slog"

	"github.com/BioHazard786/cafe/internal/relay"
	"github.com/BioHazard786/cafe/internal/ui"
	"github.com/spf13/cobra"
)

var flagAddr string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run a local room relay for trying two clients",
	Long: `Run a local relay serving /ws/rooms/<code>/. Each connection is named
after its session cookie, so two terminals can talk to each other:

  cafe relay --addr :8000
  cafe join ABC123 --origin http://localhost:8000 --user alice --session alice
  cafe join ABC123 --origin http://localhost:8000 --user bob --session bob`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ui.PrintInfof("Relay listening on %s (Ctrl+C to stop)", flagAddr)
		return relay.Serve(cmd.Context(), flagAddr, slog.Default())
	},
}

func init() {
	relayCmd.Flags().StringVar(&flagAddr, "addr", ":8000", "listen address")
	rootCmd.AddCommand(relayCmd)
}
