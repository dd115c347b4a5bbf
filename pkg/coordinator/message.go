// Package coordinator implements the out-of-process Unix-socket broker
// that multiplexes event producers (CLI commands) to consumers (TUI,
// JSON, CI reporters), per specification §4.10.
package coordinator

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"github.com/cuenv-dev/cuenv/pkg/eventbus"
)

// MaxFrameBytes is the wire protocol's maximum payload size
// (specification §4.10 "Wire format").
const MaxFrameBytes = 1 << 20

// MsgType enumerates the coordinator wire protocol's message kinds.
type MsgType string

const (
	MsgRegister    MsgType = "Register"
	MsgRegisterAck MsgType = "RegisterAck"
	MsgEvent       MsgType = "Event"
	MsgPing        MsgType = "Ping"
	MsgPong        MsgType = "Pong"
	MsgError       MsgType = "Error"
)

// ClientKind distinguishes a Producer (one-shot CLI invocation emitting
// events) from a Consumer (long-lived UI subscriber).
type ClientKind string

const (
	ClientProducer ClientKind = "Producer"
	ClientConsumer ClientKind = "Consumer"
)

// ConsumerUIType enumerates the UIs a Consumer client may identify as.
type ConsumerUIType string

const (
	UITui      ConsumerUIType = "Tui"
	UIWeb      ConsumerUIType = "Web"
	UIExternal ConsumerUIType = "External"
)

// Message is the envelope for every frame on the wire (specification
// §4.10: "Every message is { msg_type, correlation_id, payload }").
type Message struct {
	MsgType       MsgType         `json:"msg_type"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// RegisterPayload identifies a newly connected client.
type RegisterPayload struct {
	Kind    ClientKind     `json:"kind"`
	Command string         `json:"command,omitempty"`  // Producer: the CLI invocation
	UIType  ConsumerUIType `json:"ui_type,omitempty"`   // Consumer: its UI kind
}

// RegisterAckPayload acknowledges a Register, reporting acceptance.
type RegisterAckPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// EventPayload carries one eventbus.Event across the wire.
type EventPayload struct {
	Event eventbus.Event `json:"event"`
}

// ErrorPayload reports a protocol-level failure to the peer.
type ErrorPayload struct {
	Message string `json:"message"`
}

func encodePayload(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, cuenverr.Wrap(cuenverr.WireProtocolError, "encode payload", "", err)
	}
	return b, nil
}

func (m Message) decodePayload(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return cuenverr.Wrap(cuenverr.WireProtocolError, "decode payload", string(m.MsgType), err)
	}
	return nil
}

// writeFrame writes msg as a 4-byte big-endian length prefix followed
// by its JSON payload (specification §4.10 "Wire format").
func writeFrame(w io.Writer, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return cuenverr.Wrap(cuenverr.WireProtocolError, "marshal frame", string(msg.MsgType), err)
	}
	if len(body) > MaxFrameBytes {
		return cuenverr.New(cuenverr.WireProtocolError, fmt.Sprintf("frame exceeds %d bytes", MaxFrameBytes), string(msg.MsgType))
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(body)))
	if _, err := w.Write(hdr[:]); err != nil {
		return cuenverr.Wrap(cuenverr.WireProtocolError, "write frame header", "", err)
	}
	if _, err := w.Write(body); err != nil {
		return cuenverr.Wrap(cuenverr.WireProtocolError, "write frame body", "", err)
	}
	return nil
}

// readFrame reads one length-prefixed JSON message from r.
func readFrame(r io.Reader) (Message, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Message{}, err // io.EOF propagates as-is for callers to detect clean close
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameBytes {
		return Message{}, cuenverr.New(cuenverr.WireProtocolError, fmt.Sprintf("frame length %d exceeds max", n), "")
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, cuenverr.Wrap(cuenverr.WireProtocolError, "read frame body", "", err)
	}
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, cuenverr.Wrap(cuenverr.WireProtocolError, "unmarshal frame", "", err)
	}
	return msg, nil
}
