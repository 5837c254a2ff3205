// Package notification defines the envelope exchanged between publishers
// and subscribers and the write-side facade over the broadcast bus.
package notification

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies a message variant.
type Kind string

const (
	KindPing  Kind = "ping"
	KindPong  Kind = "pong"
	KindData  Kind = "data"
	KindError Kind = "error"
)

// MessageType is a closed tagged union over the four notification message
// variants. The zero value is Ping, which makes it the safe fallback for
// undecodable input. Values are immutable and comparable.
type MessageType struct {
	kind    Kind
	payload string
}

// Ping returns the client liveness variant. It is the zero MessageType.
func Ping() MessageType { return MessageType{} }

// Pong returns the server-relayed acknowledgment variant.
func Pong() MessageType { return MessageType{kind: KindPong} }

// Data returns a notification-content variant carrying payload.
func Data(payload string) MessageType { return MessageType{kind: KindData, payload: payload} }

// Error returns a transport-failure variant carrying a description. It is
// synthesized locally for a lagging subscriber, never sent by a peer.
func Error(description string) MessageType {
	return MessageType{kind: KindError, payload: description}
}

// Kind reports the variant. The zero value reports KindPing.
func (m MessageType) Kind() Kind {
	if m.kind == "" {
		return KindPing
	}
	return m.kind
}

// Payload returns the carried string for Data and Error variants and the
// empty string otherwise.
func (m MessageType) Payload() string { return m.payload }

// MarshalJSON encodes the variant as "ping", "pong", {"data":…} or
// {"error":…}.
func (m MessageType) MarshalJSON() ([]byte, error) {
	switch m.Kind() {
	case KindPing:
		return []byte(`"ping"`), nil
	case KindPong:
		return []byte(`"pong"`), nil
	case KindData:
		return json.Marshal(map[string]string{"data": m.payload})
	case KindError:
		return json.Marshal(map[string]string{"error": m.payload})
	default:
		return nil, fmt.Errorf("notification: unknown message kind %q", m.kind)
	}
}

// UnmarshalJSON decodes the wire forms produced by MarshalJSON. Anything
// else is an error; callers that want the permissive fallback use Decode.
func (m *MessageType) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		switch tag {
		case string(KindPing):
			*m = Ping()
		case string(KindPong):
			*m = Pong()
		default:
			return fmt.Errorf("notification: unknown message tag %q", tag)
		}
		return nil
	}

	var obj struct {
		Data  *string `json:"data"`
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	switch {
	case obj.Data != nil:
		*m = Data(*obj.Data)
	case obj.Error != nil:
		*m = Error(*obj.Error)
	default:
		return errors.New("notification: message object carries no known variant")
	}
	return nil
}

// Envelope is the addressed unit of communication: a user identifier plus
// a typed message. Envelopes are immutable values; the bus stores and
// delivers them by value, so every subscriber sees its own copy.
type Envelope struct {
	UserID  string      `json:"user_id"`
	Message MessageType `json:"message"`
}

// Default returns the fallback envelope used when inbound client data
// fails to parse: an unaddressed Ping.
func Default() Envelope { return Envelope{} }

// Encode returns the envelope as compact JSON. A marshal failure (not
// expected for well-formed envelopes) degrades to the empty string rather
// than propagating.
func (e Envelope) Encode() string {
	data, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(data)
}

// Decode parses an envelope from raw bytes, substituting Default() when
// the input is not a valid envelope.
func Decode(data []byte) Envelope {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Default()
	}
	return e
}
