package room

import (
	"context"
	"time"

	"github.com/BioHazard786/cafe/internal/signaling"
	"github.com/pion/webrtc/v4"
)

// CallState is the position of the local call in its lifecycle.
type CallState int

const (
	Idle CallState = iota
	// Acquiring: media and peer connection for an outgoing call are being set up.
	Acquiring
	// Offering: the offer was sent, no answer applied yet.
	Offering
	// Answering: an offer was received and the answer is being produced.
	Answering
	Connected
)

func (s CallState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Acquiring:
		return "acquiring"
	case Offering:
		return "offering"
	case Answering:
		return "answering"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Active reports whether a call is underway in any phase.
func (s CallState) Active() bool { return s != Idle }

// Snapshot is a copy of the controller's call state.
type Snapshot struct {
	State         CallState
	MicEnabled    bool
	CameraEnabled bool
	HasStream     bool
	HasPeer       bool
	RemoteTracks  int
}

// ChatMessage is one chat line ready for display.
type ChatMessage struct {
	Username string
	Text     string
	Time     time.Time
	Avatar   string
	Own      bool
}

// Renderer is the display surface driven by the controller. Calls are
// made from the controller's event loop.
type Renderer interface {
	Chat(msg ChatMessage)
	Notice(text string)
	Status(text string)
	Alert(text string)
	CallChanged(s Snapshot)
	RemoteTrack(kind string)
	ClearVideo()
}

// Sender delivers an envelope over the room channel, reporting false when
// it was dropped.
type Sender interface {
	Send(env signaling.Envelope) bool
}

// Track is one local media track whose output can be muted.
type Track interface {
	Enabled() bool
	SetEnabled(enabled bool)
}

// LocalStream is the camera+microphone stream owned during a call.
type LocalStream interface {
	Audio() Track
	Video() Track
	Tracks() []webrtc.TrackLocal
	Stop()
}

// MediaSource acquires the local stream.
type MediaSource interface {
	Acquire(ctx context.Context) (LocalStream, error)
}

// PeerConnection is the negotiated media link to the remote participant.
// Callbacks may fire on any goroutine.
type PeerConnection interface {
	AddStream(stream LocalStream) error
	OnTrack(fn func(kind string))
	OnICECandidate(fn func(candidate webrtc.ICECandidateInit))
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	Close() error
}

// PeerFactory creates peer connections.
type PeerFactory interface {
	NewPeer() (PeerConnection, error)
}

// Renderers fans every call out to each renderer in order.
type Renderers []Renderer

func (rs Renderers) Chat(msg ChatMessage) {
	for _, r := range rs {
		r.Chat(msg)
	}
}

func (rs Renderers) Notice(text string) {
	for _, r := range rs {
		r.Notice(text)
	}
}

func (rs Renderers) Status(text string) {
	for _, r := range rs {
		r.Status(text)
	}
}

func (rs Renderers) Alert(text string) {
	for _, r := range rs {
		r.Alert(text)
	}
}

func (rs Renderers) CallChanged(s Snapshot) {
	for _, r := range rs {
		r.CallChanged(s)
	}
}

func (rs Renderers) RemoteTrack(kind string) {
	for _, r := range rs {
		r.RemoteTrack(kind)
	}
}

func (rs Renderers) ClearVideo() {
	for _, r := range rs {
		r.ClearVideo()
	}
}
