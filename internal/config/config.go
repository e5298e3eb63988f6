package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BioHazard786/cafe/internal/signaling"
	"github.com/ilyakaznacheev/cleanenv"
)

// Default configuration values
const (
	DefaultOrigin  = "http://localhost:8000"
	DefaultAvatar  = "/static/images/default-avatar.png"
	DefaultSTUN    = "stun:stun.l.google.com:19302"
	DefaultMinutes = 25

	MinPresetMinutes = 1
	MaxPresetMinutes = 120

	// Cookie names used by the room site for auth and anti-forgery.
	SessionCookie = "sessionid"
	CSRFCookie    = "csrftoken"
)

// Config holds application configuration
type Config struct {
	// Origin is the site the room page is served from, e.g. https://cafe.example.com
	Origin string `yaml:"origin" env:"CAFE_ORIGIN" env-default:"http://localhost:8000"`

	// Page-provided identity
	RoomCode string `yaml:"room" env:"CAFE_ROOM"`
	Username string `yaml:"username" env:"CAFE_USERNAME"`
	Avatar   string `yaml:"avatar" env:"CAFE_AVATAR" env-default:"/static/images/default-avatar.png"`

	// Credentials sent as cookies / headers
	SessionID string `yaml:"session_id" env:"CAFE_SESSION_ID"`
	CSRFToken string `yaml:"csrf_token" env:"CAFE_CSRF_TOKEN"`

	// ICE servers for WebRTC
	STUNServer string `yaml:"stun_server" env:"STUN_SERVER" env-default:"stun:stun.l.google.com:19302"`
	TURNServer string `yaml:"turn_server" env:"TURN_SERVER"`
	TURNUser   string `yaml:"turn_username" env:"TURN_USERNAME"`
	TURNPass   string `yaml:"turn_password" env:"TURN_PASSWORD"`
	ForceRelay bool   `yaml:"force_relay" env:"FORCE_RELAY"`

	// Local media played into calls (IVF/VP8 and Ogg/Opus)
	VideoFile string `yaml:"video_file" env:"CAFE_VIDEO_FILE"`
	AudioFile string `yaml:"audio_file" env:"CAFE_AUDIO_FILE"`

	DefaultMinutes int           `yaml:"default_minutes" env:"CAFE_DEFAULT_MINUTES" env-default:"25"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" env:"CAFE_RECONNECT_DELAY" env-default:"3s"`

	// Transcript, when set, is an HTML file receiving the rendered chat
	Transcript string `yaml:"transcript" env:"CAFE_TRANSCRIPT"`
}

// Options for loading config with CLI flag overrides
type Options struct {
	ConfigPath     string
	Origin         string
	RoomCode       string
	Username       string
	Avatar         string
	SessionID      string
	CSRFToken      string
	STUNServer     string
	TURNServer     string
	TURNUser       string
	TURNPass       string
	ForceRelay     bool
	VideoFile      string
	AudioFile      string
	DefaultMinutes int
	Transcript     string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. YAML config file (--config or CONFIG_PATH), if any
// 4. Defaults - lowest priority
func Load(opts Options) (*Config, error) {
	var cfg Config

	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg.override(opts)

	if cfg.DefaultMinutes < MinPresetMinutes || cfg.DefaultMinutes > MaxPresetMinutes {
		return nil, fmt.Errorf("default minutes must be between %d and %d, got %d",
			MinPresetMinutes, MaxPresetMinutes, cfg.DefaultMinutes)
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = signaling.DefaultReconnectDelay
	}
	cfg.Origin = strings.TrimSuffix(cfg.Origin, "/")

	return &cfg, nil
}

func (c *Config) override(opts Options) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	set(&c.Origin, opts.Origin)
	set(&c.RoomCode, opts.RoomCode)
	set(&c.Username, opts.Username)
	set(&c.Avatar, opts.Avatar)
	set(&c.SessionID, opts.SessionID)
	set(&c.CSRFToken, opts.CSRFToken)
	set(&c.STUNServer, opts.STUNServer)
	set(&c.TURNServer, opts.TURNServer)
	set(&c.TURNUser, opts.TURNUser)
	set(&c.TURNPass, opts.TURNPass)
	set(&c.VideoFile, opts.VideoFile)
	set(&c.AudioFile, opts.AudioFile)
	set(&c.Transcript, opts.Transcript)

	if opts.ForceRelay {
		c.ForceRelay = true
	}
	if opts.DefaultMinutes != 0 {
		c.DefaultMinutes = opts.DefaultMinutes
	}
}

// ValidateRoom checks the settings needed to join a room.
func (c *Config) ValidateRoom() error {
	var errs []error
	if c.RoomCode == "" {
		errs = append(errs, errors.New("room code is required"))
	}
	if c.Username == "" {
		errs = append(errs, errors.New("username is required (--user or CAFE_USERNAME)"))
	}
	if c.ForceRelay && c.GetTURNServers() == nil {
		errs = append(errs, errors.New("cannot force relay mode without TURN server configured"))
	}
	return errors.Join(errs...)
}

// SocketURL returns the room channel address derived from the origin.
func (c *Config) SocketURL() (string, error) {
	return signaling.RoomURL(c.Origin, c.RoomCode)
}

// GetRoomLink returns the web page URL for the room
func (c *Config) GetRoomLink() string {
	return fmt.Sprintf("%s/rooms/%s/", c.Origin, url.PathEscape(c.RoomCode))
}

// SaveSessionURL returns the endpoint receiving finished focus sessions
func (c *Config) SaveSessionURL() string {
	return c.Origin + "/save-session/"
}

// CookieJar returns a jar pre-loaded with the session and CSRF cookies for
// the origin, shared by the room channel and the tracker client.
func (c *Config) CookieJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(c.Origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", c.Origin, err)
	}

	var cookies []*http.Cookie
	if c.SessionID != "" {
		cookies = append(cookies, &http.Cookie{Name: SessionCookie, Value: c.SessionID, Path: "/"})
	}
	if c.CSRFToken != "" {
		cookies = append(cookies, &http.Cookie{Name: CSRFCookie, Value: c.CSRFToken, Path: "/"})
	}
	jar.SetCookies(u, cookies)

	return jar, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
