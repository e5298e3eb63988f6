package tracker

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/BioHazard786/cafe/internal/config"
	"github.com/BioHazard786/cafe/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type savedRequest struct {
	minutes string
	room    string
	token   string
	session string
}

type fakeSite struct {
	mu     sync.Mutex
	status int
	saves  []savedRequest
}

func (s *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/save-session/" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	saved := savedRequest{
		minutes: r.PostForm.Get("minutes"),
		room:    r.PostForm.Get("room_code"),
		token:   r.Header.Get("X-CSRFToken"),
	}
	if c, err := r.Cookie(config.SessionCookie); err == nil {
		saved.session = c.Value
	}

	s.mu.Lock()
	s.saves = append(s.saves, saved)
	status := s.status
	s.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (s *fakeSite) recorded() []savedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]savedRequest(nil), s.saves...)
}

func newSite(t *testing.T, status int) (*fakeSite, *config.Config) {
	t.Helper()
	site := &fakeSite{status: status}
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)

	return site, &config.Config{Origin: srv.URL, RoomCode: "ABC123"}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSaveSessionUsesCookieToken(t *testing.T) {
	site, cfg := newSite(t, http.StatusOK)
	cfg.SessionID = "sess-1"
	cfg.CSRFToken = "tok-1"
	jar, err := cfg.CookieJar()
	require.NoError(t, err)

	// token comes from the jar only
	cfg.CSRFToken = ""
	client := New(cfg, jar, quiet())

	require.NoError(t, client.SaveSession(context.Background(), 25))

	saves := site.recorded()
	require.Len(t, saves, 1)
	assert.Equal(t, savedRequest{minutes: "25", room: "ABC123", token: "tok-1", session: "sess-1"}, saves[0])
}

func TestSaveSessionConfiguredTokenWins(t *testing.T) {
	site, cfg := newSite(t, http.StatusCreated)
	cfg.CSRFToken = "from-config"

	client := New(cfg, nil, quiet())
	require.NoError(t, client.SaveSession(context.Background(), 50))

	saves := site.recorded()
	require.Len(t, saves, 1)
	assert.Equal(t, "from-config", saves[0].token)
}

func TestSaveSessionRejected(t *testing.T) {
	_, cfg := newSite(t, http.StatusForbidden)

	err := New(cfg, nil, quiet()).SaveSession(context.Background(), 25)
	assert.ErrorIs(t, err, ErrSaveRejected)
	assert.Contains(t, err.Error(), "403")
}

func TestSaveSessionUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	origin := srv.URL
	srv.Close()

	err := New(&config.Config{Origin: origin, RoomCode: "X"}, nil, quiet()).SaveSession(context.Background(), 25)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSaveRejected)
}

type stepTicker struct{ c chan time.Time }

func (s stepTicker) Chan() <-chan time.Time { return s.c }
func (s stepTicker) Stop()                  {}

func TestCompletedTimerPostsOnce(t *testing.T) {
	site, cfg := newSite(t, http.StatusOK)
	ticks := stepTicker{c: make(chan time.Time)}

	tm, err := timer.New(New(cfg, nil, quiet()), timer.Options{
		NewTicker: func(time.Duration) timer.Ticker { return ticks },
		Logger:    quiet(),
	})
	require.NoError(t, err)
	require.NoError(t, tm.SetPreset(5))

	tm.Start()
	for i := 0; i < 300; i++ {
		ticks.c <- time.Now()
	}

	assert.Eventually(t, func() bool { return len(site.recorded()) == 1 }, 2*time.Second, 5*time.Millisecond)
	saves := site.recorded()
	require.Len(t, saves, 1)
	assert.Equal(t, "5", saves[0].minutes)
	assert.Equal(t, "ABC123", saves[0].room)
	assert.False(t, tm.State().Running)
}
