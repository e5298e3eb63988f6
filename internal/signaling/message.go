package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type is the tag carried in the "type" field of every room frame.
type Type string

// Envelope type constants.
const (
	TypeChat   Type = "chat"
	TypeJoin   Type = "join"
	TypeLeave  Type = "leave"
	TypeOffer  Type = "webrtc_offer"
	TypeAnswer Type = "webrtc_answer"
	TypeICE    Type = "webrtc_ice"
	TypeTimer  Type = "timer"
)

var (
	ErrUnknownType = errors.New("unknown envelope type")
	ErrMissingType = errors.New("envelope has no type")
)

// Envelope is one frame exchanged with the room server. The set of
// implementations is closed: one struct per Type.
type Envelope interface {
	Type() Type
	envelope()
}

// Chat is a chat line. Username and Timestamp are stamped by the server.
type Chat struct {
	Username  string `json:"username,omitempty"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
}

// Join announces a member entering the room.
type Join struct {
	Username string `json:"username"`
}

// Leave announces a member leaving the room.
type Leave struct {
	Username string `json:"username"`
}

// Offer carries an opaque session description from the calling peer.
type Offer struct {
	Offer    json.RawMessage `json:"offer"`
	Username string          `json:"username"`
}

// Answer carries an opaque session description from the answering peer.
type Answer struct {
	Answer   json.RawMessage `json:"answer"`
	Username string          `json:"username"`
}

// ICE carries one opaque ICE candidate.
type ICE struct {
	Candidate json.RawMessage `json:"candidate"`
	Username  string          `json:"username"`
}

// Timer is an informational timer event from another member.
type Timer struct {
	Action   string `json:"action,omitempty"`
	Minutes  *int   `json:"minutes,omitempty"`
	Username string `json:"username,omitempty"`
}

func (Chat) Type() Type   { return TypeChat }
func (Join) Type() Type   { return TypeJoin }
func (Leave) Type() Type  { return TypeLeave }
func (Offer) Type() Type  { return TypeOffer }
func (Answer) Type() Type { return TypeAnswer }
func (ICE) Type() Type    { return TypeICE }
func (Timer) Type() Type  { return TypeTimer }

func (Chat) envelope()   {}
func (Join) envelope()   {}
func (Leave) envelope()  {}
func (Offer) envelope()  {}
func (Answer) envelope() {}
func (ICE) envelope()    {}
func (Timer) envelope()  {}

// header is decoded first to pick the concrete envelope.
type header struct {
	Type Type `json:"type"`
}

// Decode parses one JSON frame into its concrete envelope.
func Decode(data []byte) (Envelope, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var env Envelope
	switch h.Type {
	case TypeChat:
		env = &Chat{}
	case TypeJoin:
		env = &Join{}
	case TypeLeave:
		env = &Leave{}
	case TypeOffer:
		env = &Offer{}
	case TypeAnswer:
		env = &Answer{}
	case TypeICE:
		env = &ICE{}
	case TypeTimer:
		env = &Timer{}
	case "":
		return nil, ErrMissingType
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, h.Type)
	}

	if err := json.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("decode %s envelope: %w", h.Type, err)
	}
	return deref(env), nil
}

// deref returns envelopes by value so handlers can switch on value types.
func deref(env Envelope) Envelope {
	switch e := env.(type) {
	case *Chat:
		return *e
	case *Join:
		return *e
	case *Leave:
		return *e
	case *Offer:
		return *e
	case *Answer:
		return *e
	case *ICE:
		return *e
	case *Timer:
		return *e
	}
	return env
}

// Encode serializes an envelope with its "type" tag.
func Encode(env Envelope) ([]byte, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", env.Type(), err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", env.Type(), err)
	}
	tag, _ := json.Marshal(env.Type())
	fields["type"] = tag

	return json.Marshal(fields)
}
