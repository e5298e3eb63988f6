// Package room holds the session controller for one joined room: chat
// rendering, the single peer-to-peer call, and the signaling relay between
// them and the room channel.
package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BioHazard786/cafe/internal/signaling"
	"github.com/pion/webrtc/v4"
)

const eventBuffer = 64

var ErrStopped = errors.New("controller stopped")

// Options configures a Controller.
type Options struct {
	// Username is the local member name used for loopback suppression.
	Username string
	// Avatar is the fallback avatar for chat lines that carry none.
	Avatar string

	Sender   Sender
	Renderer Renderer
	Media    MediaSource
	Peers    PeerFactory
	Logger   *slog.Logger
}

// Controller reacts to room envelopes and user actions. All state is owned
// by the goroutine running Run; every exported method only queues work.
type Controller struct {
	username string
	avatar   string
	out      Sender
	view     Renderer
	media    MediaSource
	peers    PeerFactory
	log      *slog.Logger

	events chan func()
	done   chan struct{}
	ctx    context.Context

	// event loop state
	state        CallState
	micOn        bool
	camOn        bool
	stream       LocalStream
	pc           PeerConnection
	remoteTracks int
	gen          uint64
	pending      int

	localCandidates  []webrtc.ICECandidateInit
	remoteCandidates []webrtc.ICECandidateInit
}

// New creates a controller. Call Run to start processing.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		username: opts.Username,
		avatar:   opts.Avatar,
		out:      opts.Sender,
		view:     opts.Renderer,
		media:    opts.Media,
		peers:    opts.Peers,
		log:      logger.With("component", "room"),
		events:   make(chan func(), eventBuffer),
		done:     make(chan struct{}),
		ctx:      context.Background(),
		micOn:    true,
		camOn:    true,
	}
}

// Run processes queued events one at a time until ctx is done, then ends
// any active call.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			c.endCall()
			return ctx.Err()
		case fn := <-c.events:
			fn()
		}
	}
}

// Dispatch queues an inbound envelope. It satisfies signaling.Dispatcher.
func (c *Controller) Dispatch(env signaling.Envelope) {
	c.post(func() { c.handle(env) })
}

// StartCall begins an outgoing call.
func (c *Controller) StartCall() { c.post(c.startCall) }

// EndCall tears down the call, if any.
func (c *Controller) EndCall() { c.post(c.endCall) }

// ToggleMic flips the local audio track.
func (c *Controller) ToggleMic() { c.post(c.toggleMic) }

// ToggleCamera flips the local video track.
func (c *Controller) ToggleCamera() { c.post(c.toggleCamera) }

// Snapshot returns the call state once every previously queued event has
// been handled.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	fn := func() { reply <- c.snapshot() }

	select {
	case c.events <- fn:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-c.done:
		return Snapshot{}, ErrStopped
	}

	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-c.done:
		return Snapshot{}, ErrStopped
	}
}

// post queues fn for the event loop. It reports false once Run has returned.
func (c *Controller) post(fn func()) bool {
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) handle(env signaling.Envelope) {
	switch e := env.(type) {
	case signaling.Chat:
		c.onChat(e)
	case signaling.Join:
		c.view.Notice(fmt.Sprintf("%s joined the room", e.Username))
	case signaling.Leave:
		c.view.Notice(fmt.Sprintf("%s left the room", e.Username))
	case signaling.Offer:
		c.onOffer(e)
	case signaling.Answer:
		c.onAnswer(e)
	case signaling.ICE:
		c.onICECandidate(e)
	case signaling.Timer:
		c.onTimer(e)
	default:
		c.log.Warn("unhandled envelope", "type", env.Type())
	}
}

func (c *Controller) snapshot() Snapshot {
	return Snapshot{
		State:         c.state,
		MicEnabled:    c.micOn,
		CameraEnabled: c.camOn,
		HasStream:     c.stream != nil,
		HasPeer:       c.pc != nil,
		RemoteTracks:  c.remoteTracks,
	}
}

func (c *Controller) setState(s CallState) {
	if c.state != s {
		c.log.Debug("call state", "from", c.state, "to", s)
	}
	c.state = s
	c.view.CallChanged(c.snapshot())
}
