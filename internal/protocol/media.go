package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Playback status values as reported by the media endpoint.
const (
	StatusPlaying = "Playing"
	StatusPaused  = "Paused"
	StatusStopped = "Stopped"
)

// Metadata is the track description nested in a snapshot. Fields default
// to empty/zero rather than being omitted; length is microseconds.
type Metadata struct {
	Length  Micros   `json:"length"`
	TrackID string   `json:"trackId"`
	Album   string   `json:"album"`
	Artist  []string `json:"artist"`
	Title   string   `json:"title"`
	Art     string   `json:"art"`
}

// EmptyMetadata returns the zero-value track description sent before any
// endpoint has reported metadata.
func EmptyMetadata() Metadata {
	return Metadata{Length: 0, Artist: []string{""}}
}

// Snapshot carries media endpoint state to clients. Every field is
// individually optional: a failed bus read omits the field instead of
// failing the snapshot. It doubles as the partial-update payload of
// mediaUpdated, where only the changed fields are set.
type Snapshot struct {
	PlaybackStatus *string   `json:"PlaybackStatus,omitempty"`
	LoopStatus     *string   `json:"LoopStatus,omitempty"`
	Rate           *float64  `json:"Rate,omitempty"`
	Shuffle        *bool     `json:"Shuffle,omitempty"`
	Volume         *float64  `json:"Volume,omitempty"`
	Position       *Micros   `json:"Position,omitempty"`
	MinimumRate    *float64  `json:"MinimumRate,omitempty"`
	MaximumRate    *float64  `json:"MaximumRate,omitempty"`
	CanGoNext      *bool     `json:"CanGoNext,omitempty"`
	CanGoPrevious  *bool     `json:"CanGoPrevious,omitempty"`
	CanPlay        *bool     `json:"CanPlay,omitempty"`
	CanPause       *bool     `json:"CanPause,omitempty"`
	CanSeek        *bool     `json:"CanSeek,omitempty"`
	CanControl     *bool     `json:"CanControl,omitempty"`
	Metadata       *Metadata `json:"Metadata,omitempty"`
}

// IsEmpty reports whether no field is set.
func (s Snapshot) IsEmpty() bool {
	return s == Snapshot{}
}

// MediaSettings is the closed set of fields a client may write through
// updateMedia. Anything outside these four is rejected at the boundary.
type MediaSettings struct {
	LoopStatus *string  `json:"LoopStatus,omitempty"`
	Rate       *float64 `json:"Rate,omitempty"`
	Shuffle    *bool    `json:"Shuffle,omitempty"`
	Volume     *float64 `json:"Volume,omitempty"`
}

// DecodeMediaSettings parses an updateMedia payload, rejecting unknown
// field names instead of silently ignoring them.
func DecodeMediaSettings(raw json.RawMessage) (MediaSettings, error) {
	var s MediaSettings
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return MediaSettings{}, fmt.Errorf("protocol: invalid updateMedia payload: %w", err)
	}
	return s, nil
}

// SeekRequest is the mediaSeek payload: the track to seek within and the
// absolute target position.
type SeekRequest struct {
	ID       string `json:"id"`
	Position Micros `json:"position"`
}

// AuthRequest is the authenticate payload.
type AuthRequest struct {
	SessionID string `json:"sessionId"`
}
