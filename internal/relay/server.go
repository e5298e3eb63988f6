package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BioHazard786/cafe/internal/config"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const roomPrefix = "/ws/rooms/"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Local development relay; browsers and the CLI connect from anywhere.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler returns the relay's routes: the room sockets and a health check.
func Handler(hub *Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthCheckHandler)
	mux.HandleFunc(roomPrefix, ServeRoom(hub))
	return mux
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Relay is healthy."))
}

// ServeRoom upgrades /ws/rooms/<code>/ requests. The session cookie value
// names the member; requests without one are refused.
func ServeRoom(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, ok := roomCode(r.URL.Path)
		if !ok {
			http.NotFound(w, r)
			return
		}

		cookie, err := r.Cookie(config.SessionCookie)
		if err != nil || cookie.Value == "" {
			http.Error(w, "missing session", http.StatusForbidden)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn("failed to upgrade connection", "error", err)
			return
		}

		m := &Member{
			ID:       uuid.NewString(),
			Username: cookie.Value,
			RoomID:   code,
			Hub:      hub,
			Conn:     conn,
			Send:     make(chan []byte, sendBuffer),
		}

		select {
		case hub.Register <- m:
		case <-hub.done:
			conn.Close()
			return
		}

		go m.WritePump()
		go m.ReadPump()
	}
}

// roomCode extracts <code> from /ws/rooms/<code>/.
func roomCode(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, roomPrefix)
	if !ok {
		return "", false
	}
	code, tail, _ := strings.Cut(rest, "/")
	if code == "" || tail != "" {
		return "", false
	}
	return code, true
}

// Serve runs the hub and an HTTP server on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	hub := NewHub(logger)
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	hub.log.Info("relay listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
