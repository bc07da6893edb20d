package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrMalformedPacket = errors.New("malformed packet")

// Engine.io packet types, sent as the first byte of every websocket frame.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineUpgrade = '5'
	engineNoop    = '6'
)

// Socket.io packet types, the first byte after an engine.io message byte.
const (
	socketConnect    = '0'
	socketDisconnect = '1'
	socketEvent      = '2'
	socketAck        = '3'
	socketError      = '4'
)

// Handshake is the payload of the engine.io open packet.
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
}

func (h Handshake) interval() time.Duration { return time.Duration(h.PingInterval) * time.Millisecond }
func (h Handshake) timeout() time.Duration  { return time.Duration(h.PingTimeout) * time.Millisecond }

func parseHandshake(frame string) (Handshake, error) {
	var h Handshake
	if frame == "" || frame[0] != engineOpen {
		return h, fmt.Errorf("%w: expected open packet, got %q", ErrMalformedPacket, frame)
	}
	if err := json.Unmarshal([]byte(frame[1:]), &h); err != nil {
		return h, fmt.Errorf("%w: open payload: %v", ErrMalformedPacket, err)
	}
	if h.PingInterval <= 0 {
		h.PingInterval = 25000
	}
	if h.PingTimeout <= 0 {
		h.PingTimeout = 5000
	}
	return h, nil
}

// Packet is a decoded socket.io packet.
type Packet struct {
	Type      byte
	Namespace string
	Event     string
	Args      []json.RawMessage
}

// decodePacket parses the socket.io part of an engine.io message, without the
// leading '4'.
func decodePacket(data string) (Packet, error) {
	if data == "" {
		return Packet{}, fmt.Errorf("%w: empty", ErrMalformedPacket)
	}
	p := Packet{Type: data[0], Namespace: "/"}
	rest := data[1:]

	if strings.HasPrefix(rest, "/") {
		end := strings.IndexByte(rest, ',')
		if end < 0 {
			p.Namespace = rest
			return p, nil
		}
		p.Namespace, rest = rest[:end], rest[end+1:]
	}
	// skip an ack id
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	rest = rest[i:]

	if p.Type != socketEvent && p.Type != socketAck {
		return p, nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal([]byte(rest), &arr); err != nil {
		return p, fmt.Errorf("%w: event body: %v", ErrMalformedPacket, err)
	}
	if p.Type == socketEvent {
		if len(arr) == 0 {
			return p, fmt.Errorf("%w: event without name", ErrMalformedPacket)
		}
		if err := json.Unmarshal(arr[0], &p.Event); err != nil {
			return p, fmt.Errorf("%w: event name: %v", ErrMalformedPacket, err)
		}
		arr = arr[1:]
	}
	p.Args = arr
	return p, nil
}

// encodeEvent builds the frame for an event on the default namespace. A nil
// payload sends the event without arguments.
func encodeEvent(event string, payload any) ([]byte, error) {
	args := []any{event}
	if payload != nil {
		args = append(args, payload)
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	frame := make([]byte, 0, len(body)+2)
	frame = append(frame, engineMessage, socketEvent)
	return append(frame, body...), nil
}
