package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BioHazard786/cafe/internal/config"
	"github.com/BioHazard786/cafe/internal/room"
	"github.com/BioHazard786/cafe/internal/signaling"
	"github.com/BioHazard786/cafe/internal/timer"
	"github.com/BioHazard786/cafe/internal/tracker"
	"github.com/BioHazard786/cafe/internal/ui"
	"github.com/BioHazard786/cafe/internal/webrtc"
	tea "github.com/charmbracelet/bubbletea"
)

// connectWait bounds how long the spinner waits for the first connection
// before the room screen opens anyway.
const connectWait = 10 * time.Second

// RoomSession wires one joined room: the channel, the controller, the
// timer, and the room screen.
type RoomSession struct {
	cfg    *config.Config
	log    *slog.Logger
	feed   *ui.Feed
	script *ui.Transcript
	client *signaling.Client
	ctrl   *room.Controller
	timer  *timer.Timer
	opened chan struct{}
}

func NewRoomSession(cfg *config.Config) (*RoomSession, error) {
	logger := slog.Default().With("room", cfg.RoomCode)

	socketURL, err := cfg.SocketURL()
	if err != nil {
		return nil, err
	}
	jar, err := cfg.CookieJar()
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	peers, err := webrtc.NewFactory(cfg, logger)
	if err != nil {
		return nil, err
	}

	feed := ui.NewFeed()
	renderers := room.Renderers{feed}
	var script *ui.Transcript
	if cfg.Transcript != "" {
		script = ui.NewTranscript(cfg.RoomCode, cfg.Transcript, logger)
		renderers = append(renderers, script)
	}

	tm, err := timer.New(tracker.New(cfg, jar, logger), timer.Options{
		Preset:     cfg.DefaultMinutes,
		OnTick:     feed.TimerChanged,
		OnComplete: feed.TimerCompleted,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	s := &RoomSession{
		cfg:    cfg,
		log:    logger,
		feed:   feed,
		script: script,
		timer:  tm,
		opened: make(chan struct{}),
	}

	var once sync.Once
	s.client = signaling.NewClient(signaling.Options{
		URL:            socketURL,
		Jar:            jar,
		ReconnectDelay: cfg.ReconnectDelay,
		OnStateChange: func(open bool) {
			if open {
				once.Do(func() { close(s.opened) })
			}
			feed.Connected(open)
		},
		Logger: logger,
	}, signaling.DispatcherFunc(func(env signaling.Envelope) { s.ctrl.Dispatch(env) }))

	s.ctrl = room.New(room.Options{
		Username: cfg.Username,
		Avatar:   cfg.Avatar,
		Sender:   s.client,
		Renderer: renderers,
		Media: &webrtc.FileSource{
			VideoPath: cfg.VideoFile,
			AudioPath: cfg.AudioFile,
			Logger:    logger,
		},
		Peers:  peers,
		Logger: logger,
	})

	return s, nil
}

// Run blocks until the user leaves the room or ctx is done, then prints the
// session summary.
func (s *RoomSession) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	started := time.Now()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.ctrl.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.client.Run(ctx)
	}()

	s.waitForChannel(ctx)

	model := ui.NewRoomModel(ui.RoomInfo{
		Code:     s.cfg.RoomCode,
		Username: s.cfg.Username,
		Link:     s.cfg.GetRoomLink(),
	}, s.ctrl, s.timer, s.feed)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()

	s.timer.Pause()
	s.feed.Close()
	cancel()
	wg.Wait()
	if s.script != nil {
		if err := s.script.Close(); err != nil {
			s.log.Warn("failed to write transcript", "path", s.cfg.Transcript, "error", err)
		}
	}
	s.log.Info("left room", "duration", time.Since(started).Round(time.Second))

	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("room screen: %w", err)
	}

	stats := model.Stats()
	fmt.Println()
	ui.RenderSessionSummary(ui.SessionSummary{
		Room:         s.cfg.RoomCode,
		Username:     s.cfg.Username,
		Duration:     time.Since(started),
		Messages:     stats.Messages,
		Calls:        stats.Calls,
		Sessions:     stats.Sessions,
		FocusMinutes: stats.FocusMinutes,
	})
	return nil
}

func (s *RoomSession) waitForChannel(ctx context.Context) {
	spinner := ui.NewConnectionSpinner("Connecting to room...")
	spinner.Start()

	select {
	case <-s.opened:
		spinner.Success("Connected to room " + s.cfg.RoomCode)
	case <-time.After(connectWait):
		spinner.Warn("Still connecting, the room will keep retrying in the background")
	case <-ctx.Done():
		spinner.Stop()
	}
}
