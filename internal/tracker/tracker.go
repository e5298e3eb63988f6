// Package tracker records finished focus sessions with the room site.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BioHazard786/cafe/internal/config"
	"github.com/BioHazard786/cafe/internal/dns"
)

const requestTimeout = 10 * time.Second

var ErrSaveRejected = errors.New("session save rejected")

// Client posts completed sessions to <origin>/save-session/.
type Client struct {
	endpoint string
	referer  string
	room     string
	token    string
	http     *http.Client
	log      *slog.Logger
}

// New creates a client for cfg. jar carries the session and CSRF cookies
// and may be nil.
func New(cfg *config.Config, jar http.CookieJar, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: cfg.SaveSessionURL(),
		referer:  cfg.GetRoomLink(),
		room:     cfg.RoomCode,
		token:    cfg.CSRFToken,
		http: &http.Client{
			Jar:       jar,
			Timeout:   requestTimeout,
			Transport: &http.Transport{DialContext: dns.DialContext, Proxy: http.ProxyFromEnvironment},
		},
		log: logger.With("component", "tracker"),
	}
}

// SaveSession records minutes of focused study in the room. Any 2xx
// response is success.
func (c *Client) SaveSession(ctx context.Context, minutes int) error {
	form := url.Values{}
	form.Set("minutes", strconv.Itoa(minutes))
	form.Set("room_code", c.room)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.referer)
	if token := c.csrfToken(req.URL); token != "" {
		req.Header.Set("X-CSRFToken", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrSaveRejected, resp.Status)
	}

	c.log.Info("session saved", "minutes", minutes, "room", c.room)
	return nil
}

// csrfToken prefers the configured token and falls back to the csrftoken
// cookie held for the endpoint.
func (c *Client) csrfToken(u *url.URL) string {
	if c.token != "" {
		return c.token
	}
	if c.http.Jar == nil {
		return ""
	}
	for _, cookie := range c.http.Jar.Cookies(u) {
		if cookie.Name == config.CSRFCookie {
			return cookie.Value
		}
	}
	return ""
}
