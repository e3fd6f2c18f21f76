package mpris

import (
	"github.com/godbus/dbus/v5"
	"github.com/mediamote/bridge/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Handle wraps one live media-control endpoint. Identity is the pair
// (Name, Owner): the bus name is stable while the process lives, the
// owner token changes whenever the name is re-acquired by a new process.
// A Handle whose owner no longer matches the bus must be discarded.
type Handle struct {
	bus   Bus
	Name  string
	Owner string
}

func newHandle(bus Bus, name, owner string) *Handle {
	h := &Handle{bus: bus, Name: name, Owner: owner}
	if err := bus.AddMatch(PropertiesChangedMatch(name)); err != nil {
		log.Warn().Str("player", name).Err(err).Msg("properties match failed")
	}
	if err := bus.AddMatch(SeekedMatch(name)); err != nil {
		log.Warn().Str("player", name).Err(err).Msg("seek match failed")
	}
	return h
}

// Close removes exactly the two match rules registered at construction.
// Safe to call for a peer that already vanished.
func (h *Handle) Close() {
	if err := h.bus.RemoveMatch(PropertiesChangedMatch(h.Name)); err != nil {
		log.Debug().Str("player", h.Name).Err(err).Msg("properties unmatch failed")
	}
	if err := h.bus.RemoveMatch(SeekedMatch(h.Name)); err != nil {
		log.Debug().Str("player", h.Name).Err(err).Msg("seek unmatch failed")
	}
}

// PlaybackStatus reads the current status, empty on failure.
func (h *Handle) PlaybackStatus() string {
	v, err := h.bus.GetPlayerProperty(h.Name, "PlaybackStatus")
	if err != nil {
		return ""
	}
	s, _ := asString(v)
	return s
}

// Position reads the playback position. The second return is false when
// the endpoint does not answer.
func (h *Handle) Position() (protocol.Micros, bool) {
	v, err := h.bus.GetPlayerProperty(h.Name, "Position")
	if err != nil {
		return 0, false
	}
	n, ok := asInt64(v)
	return protocol.Micros(n), ok
}

// Snapshot reads every client-facing attribute. Each property is fetched
// independently: a failed read leaves its field unset and never fails
// the snapshot as a whole.
func (h *Handle) Snapshot() protocol.Snapshot {
	var snap protocol.Snapshot

	if v, err := h.bus.GetPlayerProperty(h.Name, "PlaybackStatus"); err == nil {
		if s, ok := asString(v); ok {
			snap.PlaybackStatus = &s
		}
	}
	if v, err := h.bus.GetPlayerProperty(h.Name, "LoopStatus"); err == nil {
		if s, ok := asString(v); ok {
			snap.LoopStatus = &s
		}
	}
	if v, err := h.bus.GetPlayerProperty(h.Name, "Rate"); err == nil {
		if f, ok := asFloat(v); ok {
			snap.Rate = &f
		}
	}
	if v, err := h.bus.GetPlayerProperty(h.Name, "Shuffle"); err == nil {
		if b, ok := asBool(v); ok {
			snap.Shuffle = &b
		}
	}
	if v, err := h.bus.GetPlayerProperty(h.Name, "Volume"); err == nil {
		if f, ok := asFloat(v); ok {
			snap.Volume = &f
		}
	}
	if v, err := h.bus.GetPlayerProperty(h.Name, "Position"); err == nil {
		if n, ok := asInt64(v); ok {
			pos := protocol.Micros(n)
			snap.Position = &pos
		}
	}
	if v, err := h.bus.GetPlayerProperty(h.Name, "MinimumRate"); err == nil {
		if f, ok := asFloat(v); ok {
			snap.MinimumRate = &f
		}
	}
	if v, err := h.bus.GetPlayerProperty(h.Name, "MaximumRate"); err == nil {
		if f, ok := asFloat(v); ok {
			snap.MaximumRate = &f
		}
	}
	for prop, dst := range map[string]**bool{
		"CanGoNext":     &snap.CanGoNext,
		"CanGoPrevious": &snap.CanGoPrevious,
		"CanPlay":       &snap.CanPlay,
		"CanPause":      &snap.CanPause,
		"CanSeek":       &snap.CanSeek,
		"CanControl":    &snap.CanControl,
	} {
		if v, err := h.bus.GetPlayerProperty(h.Name, prop); err == nil {
			if b, ok := asBool(v); ok {
				val := b
				*dst = &val
			}
		}
	}
	if v, err := h.bus.GetPlayerProperty(h.Name, "Metadata"); err == nil {
		meta := ParseMetadata(v)
		snap.Metadata = &meta
	}

	return snap
}

// Transport commands. All fire-and-forget: the resulting state change is
// observed through the signal stream.

func (h *Handle) Play()     { _ = h.bus.CallPlayer(h.Name, "Play") }
func (h *Handle) Pause()    { _ = h.bus.CallPlayer(h.Name, "Pause") }
func (h *Handle) Next()     { _ = h.bus.CallPlayer(h.Name, "Next") }
func (h *Handle) Previous() { _ = h.bus.CallPlayer(h.Name, "Previous") }

// SetPosition seeks to an absolute position within the given track.
func (h *Handle) SetPosition(trackID string, pos protocol.Micros) {
	_ = h.bus.CallPlayer(h.Name, "SetPosition", dbus.ObjectPath(trackID), int64(pos))
}

// Apply writes the mutable property subset. Each set is independent and
// fire-and-forget.
func (h *Handle) Apply(settings protocol.MediaSettings) {
	if settings.LoopStatus != nil {
		_ = h.bus.SetPlayerProperty(h.Name, "LoopStatus", dbus.MakeVariant(*settings.LoopStatus))
	}
	if settings.Rate != nil {
		_ = h.bus.SetPlayerProperty(h.Name, "Rate", dbus.MakeVariant(*settings.Rate))
	}
	if settings.Shuffle != nil {
		_ = h.bus.SetPlayerProperty(h.Name, "Shuffle", dbus.MakeVariant(*settings.Shuffle))
	}
	if settings.Volume != nil {
		_ = h.bus.SetPlayerProperty(h.Name, "Volume", dbus.MakeVariant(*settings.Volume))
	}
}
