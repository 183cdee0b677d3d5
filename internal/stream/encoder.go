// Package stream publishes animation frames to browsers over WebSocket and
// exposes the latest frame and refresh statistics over HTTP.
package stream

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/unklstewy/skytrail/internal/animation"
)

// Encoder serializes frames for the wire.
type Encoder interface {
	Encode(animation.Frame) ([]byte, error)

	// MessageType is the WebSocket message type for encoded frames
	MessageType() int

	// ContentType is the HTTP media type for encoded frames
	ContentType() string
}

// NewEncoder returns the encoder for "json" or "msgpack".
func NewEncoder(name string) (Encoder, error) {
	switch name {
	case "", "json":
		return jsonEncoder{}, nil
	case "msgpack":
		return msgpackEncoder{}, nil
	}
	return nil, fmt.Errorf("unknown frame encoding %q", name)
}

type jsonEncoder struct{}

func (jsonEncoder) Encode(f animation.Frame) ([]byte, error) { return json.Marshal(f) }
func (jsonEncoder) MessageType() int                          { return websocket.TextMessage }
func (jsonEncoder) ContentType() string                       { return "application/json" }

type msgpackEncoder struct{}

func (msgpackEncoder) Encode(f animation.Frame) ([]byte, error) {
	return msgpack.Marshal(&f)
}
func (msgpackEncoder) MessageType() int    { return websocket.BinaryMessage }
func (msgpackEncoder) ContentType() string { return "application/msgpack" }
