package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client->server events.
const (
	EventAuthenticate         = "authenticate"
	EventMediaSourceRequest   = "mediaSourceRequest"
	EventUpdateMedia          = "updateMedia"
	EventNextMedia            = "nextMedia"
	EventPrevMedia            = "prevMedia"
	EventPlayMedia            = "playMedia"
	EventPauseMedia           = "pauseMedia"
	EventMediaPositionRequest = "mediaPositionRequest"
	EventMediaSeek            = "mediaSeek"
)

// Server->client events.
const (
	EventAuthSuccess           = "authSuccess"
	EventAuthFailure           = "authFailure"
	EventMediaUpdated          = "mediaUpdated"
	EventMediaSourceChanged    = "mediaSourceChanged"
	EventMediaPositionResponse = "mediaPositionResponse"
)

var ErrMalformedFrame = errors.New("protocol: malformed frame")

// Envelope is one frame on the realtime channel. The transport delimits
// messages, so the envelope is plain JSON text with no length prefix.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode parses an inbound frame. A frame without a non-empty string
// event name is malformed; payload shape is the handler's problem.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event", ErrMalformedFrame)
	}
	return env, nil
}

// Encode builds an outbound frame. A nil payload omits the payload key.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode %s payload: %w", event, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}
