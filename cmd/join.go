package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/BioHazard786/cafe/internal/config"
	"github.com/BioHazard786/cafe/internal/ui"
	"github.com/spf13/cobra"
)

var (
	flagOrigin     string
	flagUser       string
	flagAvatar     string
	flagSession    string
	flagCSRF       string
	flagSTUN       string
	flagTURN       string
	flagTURNUser   string
	flagTURNPass   string
	flagRelay      bool
	flagVideo      string
	flagAudio      string
	flagMinutes    int
	flagTranscript string
)

var joinCmd = &cobra.Command{
	Use:     "join <room-code | room-url>",
	Aliases: []string{"j"},
	Short:   "Join a study room",
	Long: `Join a study room by code or by its page link.

Examples:
  cafe join ABC123 --user alice --session <sessionid>
  cafe join https://cafe.example.com/rooms/ABC123/ --user alice
  cafe join ABC123 --video clip.ivf --audio clip.ogg --transcript room.html`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, origin, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		if flagOrigin != "" {
			origin = flagOrigin
		}

		cfg, err := LoadConfig(config.Options{
			ConfigPath:     flagConfig,
			Origin:         origin,
			RoomCode:       code,
			Username:       flagUser,
			Avatar:         flagAvatar,
			SessionID:      flagSession,
			CSRFToken:      flagCSRF,
			STUNServer:     flagSTUN,
			TURNServer:     flagTURN,
			TURNUser:       flagTURNUser,
			TURNPass:       flagTURNPass,
			ForceRelay:     flagRelay,
			VideoFile:      flagVideo,
			AudioFile:      flagAudio,
			DefaultMinutes: flagMinutes,
			Transcript:     flagTranscript,
		})
		if err != nil {
			return err
		}
		if err := cfg.ValidateRoom(); err != nil {
			return err
		}

		fmt.Println(ui.RoomBanner(ui.RoomInfo{Code: cfg.RoomCode, Username: cfg.Username, Link: cfg.GetRoomLink()}))

		session, err := NewRoomSession(cfg)
		if err != nil {
			return err
		}
		return session.Run(cmd.Context())
	},
}

func init() {
	f := joinCmd.Flags()
	f.StringVar(&flagOrigin, "origin", "", "site origin, e.g. https://cafe.example.com (or CAFE_ORIGIN)")
	f.StringVarP(&flagUser, "user", "u", "", "your username in the room (or CAFE_USERNAME)")
	f.StringVar(&flagAvatar, "avatar", "", "default avatar URL for chat lines")
	f.StringVar(&flagSession, "session", "", "session cookie value (or CAFE_SESSION_ID)")
	f.StringVar(&flagCSRF, "csrf", "", "anti-forgery token (or CAFE_CSRF_TOKEN)")
	f.StringVar(&flagSTUN, "stun", "", "STUN server URL")
	f.StringVar(&flagTURN, "turn", "", "TURN server host")
	f.StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	f.StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	f.BoolVar(&flagRelay, "relay", false, "force TURN relay for the call")
	f.StringVar(&flagVideo, "video", "", "IVF (VP8) file to play as your camera")
	f.StringVar(&flagAudio, "audio", "", "Ogg (Opus) file to play as your microphone")
	f.IntVarP(&flagMinutes, "minutes", "m", 0, "focus timer preset in minutes")
	f.StringVar(&flagTranscript, "transcript", "", "write the chat to this HTML file")

	rootCmd.AddCommand(joinCmd)
}

// LoadConfig loads configuration and wraps failures for the CLI.
func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// parseRoomInput accepts a bare room code or a room page link. For links the
// origin is returned too.
func parseRoomInput(input string) (code, origin string, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", "", fmt.Errorf("room code cannot be empty")
	}

	if !strings.Contains(input, "/") {
		return input, "", nil
	}

	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("invalid room link %q", input)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != "rooms" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid room link %q: expected /rooms/<code>/", input)
	}

	code, err = url.PathUnescape(parts[1])
	if err != nil {
		return "", "", fmt.Errorf("invalid room link %q: %w", input, err)
	}
	return code, u.Scheme + "://" + u.Host, nil
}
