package room

import (
	"context"
	"errors"
	"sync"

	"github.com/BioHazard786/cafe/internal/signaling"
	"github.com/pion/webrtc/v4"
)

type fakeSender struct {
	mu     sync.Mutex
	closed bool
	sent   []signaling.Envelope
}

func (s *fakeSender) Send(env signaling.Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.sent = append(s.sent, env)
	return true
}

func (s *fakeSender) envelopes() []signaling.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]signaling.Envelope(nil), s.sent...)
}

func (s *fakeSender) last(t signaling.Type) (signaling.Envelope, bool) {
	envs := s.envelopes()
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Type() == t {
			return envs[i], true
		}
	}
	return nil, false
}

type fakeView struct {
	mu       sync.Mutex
	chats    []ChatMessage
	notices  []string
	statuses []string
	alerts   []string
	tracks   []string
	clears   int
}

func (v *fakeView) Chat(msg ChatMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.chats = append(v.chats, msg)
}

func (v *fakeView) Notice(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, text)
}

func (v *fakeView) Status(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statuses = append(v.statuses, text)
}

func (v *fakeView) Alert(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alerts = append(v.alerts, text)
}

func (v *fakeView) CallChanged(Snapshot) {}

func (v *fakeView) RemoteTrack(kind string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tracks = append(v.tracks, kind)
}

func (v *fakeView) ClearVideo() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clears++
}

func (v *fakeView) lastStatus() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.statuses) == 0 {
		return ""
	}
	return v.statuses[len(v.statuses)-1]
}

func (v *fakeView) snapshotAlerts() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.alerts...)
}

type fakeTrack struct {
	mu sync.Mutex
	on bool
}

func (t *fakeTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.on
}

func (t *fakeTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.on = enabled
}

type fakeStream struct {
	audio, video *fakeTrack

	mu      sync.Mutex
	stopped int
}

func newFakeStream() *fakeStream {
	return &fakeStream{audio: &fakeTrack{on: true}, video: &fakeTrack{on: true}}
}

func (s *fakeStream) Audio() Track { return s.audio }
func (s *fakeStream) Video() Track { return s.video }

func (s *fakeStream) Tracks() []webrtc.TrackLocal { return nil }

func (s *fakeStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
}

func (s *fakeStream) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeMedia struct {
	mu      sync.Mutex
	err     error
	gate    chan struct{}
	streams []*fakeStream
}

func (m *fakeMedia) Acquire(ctx context.Context) (LocalStream, error) {
	m.mu.Lock()
	gate, err := m.gate, m.err
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	s := newFakeStream()
	m.mu.Lock()
	m.streams = append(m.streams, s)
	m.mu.Unlock()
	return s, nil
}

func (m *fakeMedia) acquired() []*fakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*fakeStream(nil), m.streams...)
}

type fakePeer struct {
	mu         sync.Mutex
	remote     []webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	closed     int
	onTrack    func(string)
	onICE      func(webrtc.ICECandidateInit)
	gather     *webrtc.ICECandidateInit
	remoteErr  error
	offerErr   error
}

func (p *fakePeer) AddStream(LocalStream) error { return nil }

func (p *fakePeer) OnTrack(fn func(kind string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTrack = fn
}

func (p *fakePeer) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onICE = fn
}

func (p *fakePeer) CreateOffer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	err := p.offerErr
	p.mu.Unlock()
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	p.emitGathered()
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (p *fakePeer) CreateAnswer() (webrtc.SessionDescription, error) {
	p.emitGathered()
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (p *fakePeer) emitGathered() {
	p.mu.Lock()
	fn, c := p.onICE, p.gather
	p.mu.Unlock()
	if fn != nil && c != nil {
		fn(*c)
	}
}

func (p *fakePeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remoteErr != nil {
		return p.remoteErr
	}
	p.remote = append(p.remote, desc)
	return nil
}

func (p *fakePeer) failRemote(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remoteErr = err
}

func (p *fakePeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *fakePeer) remotes() []webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]webrtc.SessionDescription(nil), p.remote...)
}

func (p *fakePeer) added() []webrtc.ICECandidateInit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), p.candidates...)
}

func (p *fakePeer) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) fireTrack(kind string) {
	p.mu.Lock()
	fn := p.onTrack
	p.mu.Unlock()
	fn(kind)
}

type fakePeers struct {
	mu       sync.Mutex
	err      error
	offerErr error
	gather   *webrtc.ICECandidateInit
	peers    []*fakePeer
}

func (f *fakePeers) NewPeer() (PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p := &fakePeer{gather: f.gather, offerErr: f.offerErr}
	f.peers = append(f.peers, p)
	return p, nil
}

func (f *fakePeers) created() []*fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakePeer(nil), f.peers...)
}

var (
	errDenied = errors.New("permission denied")
	errGlare  = errors.New("have-local-offer: glare")
)
