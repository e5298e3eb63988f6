package room

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BioHazard786/cafe/internal/signaling"
	"github.com/pion/webrtc/v4"
)

const mediaAlert = "Could not access camera/microphone. Please check permissions."

// setup is the outcome of asynchronous call preparation, handed back to
// the event loop. ownStream and ownPeer mark resources created by this
// setup, which must be released if the result is discarded. prev is the
// state to fall back to when the setup fails.
type setup struct {
	gen       uint64
	prev      CallState
	stream    LocalStream
	pc        PeerConnection
	desc      webrtc.SessionDescription
	ownStream bool
	ownPeer   bool
	err       error
}

func (s *setup) release() {
	if s.ownPeer && s.pc != nil {
		_ = s.pc.Close()
	}
	if s.ownStream && s.stream != nil {
		s.stream.Stop()
	}
}

func (c *Controller) startCall() {
	if c.state != Idle {
		c.reject(NewError("start call", ErrCallInProgress))
		return
	}
	if c.pending > 0 {
		c.reject(NewError("start call", ErrSetupInFlight))
		return
	}

	// Resources left over from a failed setup are reused.
	if c.pc == nil && c.stream == nil {
		c.gen++
	}
	gen, stream, pc := c.gen, c.stream, c.pc
	c.pending++
	c.setState(Acquiring)

	go func() {
		res := c.prepare(gen, stream, pc, nil)
		res.prev = Idle
		if !c.post(func() { c.finishOffer(res) }) {
			res.release()
		}
	}()
}

// prepare acquires whatever the call is still missing and produces the
// local description: an offer when remote is nil, an answer otherwise.
// It runs off the event loop and only touches the resources it is given.
func (c *Controller) prepare(gen uint64, stream LocalStream, pc PeerConnection, remote *webrtc.SessionDescription) *setup {
	res := &setup{gen: gen, stream: stream, pc: pc}

	if res.stream == nil {
		s, err := c.media.Acquire(c.ctx)
		if err != nil {
			res.err = WrapError("acquire media", ErrMediaUnavailable, err.Error())
			return res
		}
		res.stream, res.ownStream = s, true
	}

	if res.pc == nil {
		p, err := c.newPeer(gen, res.stream)
		if err != nil {
			res.err = err
			return res
		}
		res.pc, res.ownPeer = p, true
	}

	if remote == nil {
		offer, err := res.pc.CreateOffer()
		if err != nil {
			res.err = NewError("create offer", err)
			return res
		}
		res.desc = offer
		return res
	}

	if err := res.pc.SetRemoteDescription(*remote); err != nil {
		res.err = NewError("apply offer", err)
		return res
	}
	answer, err := res.pc.CreateAnswer()
	if err != nil {
		res.err = NewError("create answer", err)
		return res
	}
	res.desc = answer
	return res
}

// newPeer builds a peer connection carrying stream. Its callbacks are
// routed through the event loop and tagged with gen so that events from a
// torn-down call are ignored.
func (c *Controller) newPeer(gen uint64, stream LocalStream) (PeerConnection, error) {
	pc, err := c.peers.NewPeer()
	if err != nil {
		return nil, NewError("create peer connection", err)
	}
	if err := pc.AddStream(stream); err != nil {
		_ = pc.Close()
		return nil, NewError("add local tracks", err)
	}

	pc.OnTrack(func(kind string) {
		c.post(func() { c.onRemoteTrack(gen, kind) })
	})
	pc.OnICECandidate(func(candidate webrtc.ICECandidateInit) {
		c.post(func() { c.sendCandidate(gen, candidate) })
	})
	return pc, nil
}

func (c *Controller) finishOffer(res *setup) {
	c.pending--
	if res.gen != c.gen || c.state != Acquiring {
		c.log.Debug("discarding stale call setup", "gen", res.gen)
		res.release()
		return
	}
	if !c.settle(res) {
		return
	}

	raw, err := json.Marshal(res.desc)
	if err != nil {
		c.fail(NewError("encode offer", err))
		return
	}
	if !c.out.Send(signaling.Offer{Offer: raw, Username: c.username}) {
		c.log.Warn("offer not sent", "error", ErrNotSent)
	}
	c.setState(Offering)
	c.view.Status("Calling...")
	c.flushCandidates()
}

func (c *Controller) onOffer(e signaling.Offer) {
	if e.Username == c.username {
		return
	}
	if c.state == Acquiring || c.state == Answering || c.pending > 0 {
		c.reject(NewError("answer call", ErrSetupInFlight))
		return
	}

	desc, err := parseDescription(e.Offer, webrtc.SDPTypeOffer)
	if err != nil {
		c.fail(NewError("read offer", err))
		return
	}

	if c.pc == nil && c.stream == nil {
		c.gen++
	}
	gen, stream, pc, prev := c.gen, c.stream, c.pc, c.state
	c.pending++
	c.setState(Answering)
	c.view.Status(fmt.Sprintf("Incoming call from %s", e.Username))

	go func() {
		res := c.prepare(gen, stream, pc, &desc)
		res.prev = prev
		if !c.post(func() { c.finishAnswer(res) }) {
			res.release()
		}
	}()
}

func (c *Controller) finishAnswer(res *setup) {
	c.pending--
	if res.gen != c.gen || c.state != Answering {
		c.log.Debug("discarding stale answer setup", "gen", res.gen)
		res.release()
		return
	}
	if !c.settle(res) {
		return
	}

	raw, err := json.Marshal(res.desc)
	if err != nil {
		c.fail(NewError("encode answer", err))
		return
	}
	if !c.out.Send(signaling.Answer{Answer: raw, Username: c.username}) {
		c.log.Warn("answer not sent", "error", ErrNotSent)
	}
	c.setState(Connected)
	c.view.Status("Call connected")
	c.flushCandidates()
}

// settle adopts the resources of a current setup. A media failure returns
// the call to idle; any later failure keeps what was built so that ending
// the call releases it, and returns to the state the setup started from.
func (c *Controller) settle(res *setup) bool {
	if res.err != nil && errors.Is(res.err, ErrMediaUnavailable) {
		res.release()
		c.log.Error("media acquisition failed", "error", res.err)
		c.view.Status("Error: " + res.err.Error())
		c.view.Alert(mediaAlert)
		c.remoteCandidates = nil
		c.setState(Idle)
		return false
	}

	if res.ownStream {
		c.stream = res.stream
		c.micOn, c.camOn = true, true
	}
	if res.ownPeer {
		c.pc = res.pc
	}

	if res.err != nil {
		c.fail(res.err)
		c.setState(res.prev)
		return false
	}
	return true
}

func (c *Controller) onAnswer(e signaling.Answer) {
	if e.Username == c.username {
		return
	}
	if c.pc == nil {
		// An answer for a call already torn down.
		err := NewError("apply answer", ErrNoPeerConnection)
		c.log.Warn("ignoring answer", "from", e.Username, "error", err)
		c.view.Status("Error: " + err.Error())
		return
	}

	desc, err := parseDescription(e.Answer, webrtc.SDPTypeAnswer)
	if err != nil {
		c.fail(NewError("read answer", err))
		return
	}
	if err := c.pc.SetRemoteDescription(desc); err != nil {
		c.fail(NewError("apply answer", err))
		return
	}

	if c.state == Offering {
		c.setState(Connected)
	}
	c.view.Status("Call connected")
}

func (c *Controller) onICECandidate(e signaling.ICE) {
	if e.Username == c.username {
		return
	}
	if len(e.Candidate) == 0 || string(e.Candidate) == "null" {
		return
	}

	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(e.Candidate, &candidate); err != nil {
		c.log.Warn("malformed ICE candidate", "from", e.Username, "error", err)
		return
	}

	// Candidates trail the offer, so they can arrive while the answer is
	// still being built.
	if c.state == Answering {
		c.remoteCandidates = append(c.remoteCandidates, candidate)
		return
	}
	if c.pc == nil {
		return
	}
	c.addCandidate(candidate)
}

func (c *Controller) addCandidate(candidate webrtc.ICECandidateInit) {
	if err := c.pc.AddICECandidate(candidate); err != nil {
		c.log.Warn("failed to add ICE candidate", "error", err)
	}
}

// flushCandidates sends local candidates gathered before the description
// went out and applies remote ones that arrived meanwhile.
func (c *Controller) flushCandidates() {
	local := c.localCandidates
	remote := c.remoteCandidates
	c.localCandidates, c.remoteCandidates = nil, nil

	for _, candidate := range local {
		c.sendCandidate(c.gen, candidate)
	}
	if c.pc == nil {
		return
	}
	for _, candidate := range remote {
		c.addCandidate(candidate)
	}
}

func (c *Controller) sendCandidate(gen uint64, candidate webrtc.ICECandidateInit) {
	if gen != c.gen {
		return
	}
	if c.state == Acquiring || c.state == Answering {
		c.localCandidates = append(c.localCandidates, candidate)
		return
	}
	raw, err := json.Marshal(candidate)
	if err != nil {
		c.log.Warn("encode ICE candidate", "error", err)
		return
	}
	if !c.out.Send(signaling.ICE{Candidate: raw, Username: c.username}) {
		c.log.Debug("ICE candidate not sent", "error", ErrNotSent)
	}
}

func (c *Controller) onRemoteTrack(gen uint64, kind string) {
	if gen != c.gen {
		return
	}
	c.remoteTracks++
	c.view.RemoteTrack(kind)
	c.view.Status("Connected with peer")
	c.view.CallChanged(c.snapshot())
}

// endCall releases every call resource and returns to idle. Safe to call
// in any state, any number of times.
func (c *Controller) endCall() {
	c.gen++

	if c.stream != nil {
		c.stream.Stop()
		c.stream = nil
	}
	if c.pc != nil {
		if err := c.pc.Close(); err != nil {
			c.log.Warn("close peer connection", "error", err)
		}
		c.pc = nil
	}

	c.remoteTracks = 0
	c.localCandidates, c.remoteCandidates = nil, nil
	c.micOn, c.camOn = true, true
	c.view.ClearVideo()
	c.setState(Idle)
	c.view.Status("Call ended")
}

func (c *Controller) toggleMic() {
	if c.stream == nil || c.stream.Audio() == nil {
		return
	}
	t := c.stream.Audio()
	t.SetEnabled(!t.Enabled())
	c.micOn = t.Enabled()
	c.view.CallChanged(c.snapshot())
}

func (c *Controller) toggleCamera() {
	if c.stream == nil || c.stream.Video() == nil {
		return
	}
	t := c.stream.Video()
	t.SetEnabled(!t.Enabled())
	c.camOn = t.Enabled()
	c.view.CallChanged(c.snapshot())
}

func (c *Controller) reject(err error) {
	c.log.Warn("call action rejected", "state", c.state, "error", err)
	c.view.Status("Error: " + err.Error())
}

func (c *Controller) fail(err error) {
	c.log.Error("call error", "state", c.state, "error", err)
	c.view.Status("Error: " + err.Error())
}

func parseDescription(raw json.RawMessage, want webrtc.SDPType) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if len(raw) == 0 || string(raw) == "null" {
		return desc, ErrMissingPayload
	}
	if err := json.Unmarshal(raw, &desc); err != nil {
		return desc, err
	}
	if desc.Type == webrtc.SDPTypeUnknown {
		desc.Type = want
	}
	if desc.Type != want {
		return desc, fmt.Errorf("expected %s description, got %s", want, desc.Type)
	}
	if desc.SDP == "" {
		return desc, ErrMissingPayload
	}
	return desc, nil
}
