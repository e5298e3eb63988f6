// Package webrtc adapts pion to the call interfaces used by the room
// controller.
package webrtc

import (
	"log/slog"

	"github.com/BioHazard786/cafe/internal/config"
	"github.com/BioHazard786/cafe/internal/room"
	"github.com/pion/interceptor"
	pion "github.com/pion/webrtc/v4"
)

// NewAPI returns a pion API with the default codecs (VP8, Opus, ...) and
// the default NACK/RTCP interceptors registered.
func NewAPI() (*pion.API, error) {
	mediaEngine := &pion.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	registry := &interceptor.Registry{}
	if err := pion.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, err
	}

	return pion.NewAPI(
		pion.WithMediaEngine(mediaEngine),
		pion.WithInterceptorRegistry(registry),
	), nil
}

// Configuration builds the ICE configuration from cfg. Relay-only
// transport is used when requested, or when a TURN server is available and
// the host looks to be behind a VPN or carrier-grade NAT.
func Configuration(cfg *config.Config) pion.Configuration {
	var iceServers []pion.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, pion.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || ShouldForceRelay()) {
		policy = pion.ICETransportPolicyRelay
	}

	return pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

// Factory creates peer connections sharing one API and configuration.
type Factory struct {
	api  *pion.API
	conf pion.Configuration
	log  *slog.Logger
}

func NewFactory(cfg *config.Config, logger *slog.Logger) (*Factory, error) {
	api, err := NewAPI()
	if err != nil {
		return nil, room.NewError("create media api", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{api: api, conf: Configuration(cfg), log: logger.With("component", "webrtc")}, nil
}

func (f *Factory) NewPeer() (room.PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(f.conf)
	if err != nil {
		return nil, err
	}

	p := &Peer{pc: pc, log: f.log}
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		p.log.Debug("peer connection state", "state", state.String())
	})
	return p, nil
}

// Peer is one pion peer connection.
type Peer struct {
	pc  *pion.PeerConnection
	log *slog.Logger
}

// AddStream attaches every local track and drains its RTCP feedback.
func (p *Peer) AddStream(stream room.LocalStream) error {
	for _, track := range stream.Tracks() {
		sender, err := p.pc.AddTrack(track)
		if err != nil {
			return room.WrapError("add track", err, track.Kind().String())
		}
		go drainRTCP(sender)
	}
	return nil
}

func drainRTCP(sender *pion.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// OnTrack reports the kind ("audio" or "video") of each remote track. The
// terminal has no video surface, so received packets are read and dropped.
func (p *Peer) OnTrack(fn func(kind string)) {
	p.pc.OnTrack(func(remote *pion.TrackRemote, _ *pion.RTPReceiver) {
		p.log.Info("remote track", "kind", remote.Kind().String(), "codec", remote.Codec().MimeType)
		fn(remote.Kind().String())

		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := remote.Read(buf); err != nil {
					return
				}
			}
		}()
	})
}

func (p *Peer) OnICECandidate(fn func(candidate pion.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		fn(c.ToJSON())
	})
}

// CreateOffer, CreateAnswer and SetRemoteDescription return pion's errors
// as is; the controller names the operation.
func (p *Peer) CreateOffer() (pion.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return pion.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return pion.SessionDescription{}, room.NewError("set local description", err)
	}
	return *p.pc.LocalDescription(), nil
}

func (p *Peer) CreateAnswer() (pion.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return pion.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return pion.SessionDescription{}, room.NewError("set local description", err)
	}
	return *p.pc.LocalDescription(), nil
}

func (p *Peer) SetRemoteDescription(desc pion.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

func (p *Peer) AddICECandidate(candidate pion.ICECandidateInit) error {
	if err := p.pc.AddICECandidate(candidate); err != nil {
		return room.NewError("add ICE candidate", err)
	}
	return nil
}

func (p *Peer) Close() error {
	return p.pc.Close()
}
