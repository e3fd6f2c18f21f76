package mpris

import (
	"strconv"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/mediamote/bridge/internal/protocol"
)

// Well-known raw metadata keys.
const (
	metaLength  = "mpris:length"
	metaTrackID = "mpris:trackid"
	metaArtURL  = "mpris:artUrl"
	metaAlbum   = "xesam:album"
	metaArtist  = "xesam:artist"
	metaTitle   = "xesam:title"
)

// stickyMetadata keeps the last known value of every metadata field for
// the lifetime of the process. Raw metadata arrives sparse; keys absent
// from an update keep their previous value, because a stale-but-present
// field beats a flicker back to the default.
type stickyMetadata struct {
	mu  sync.Mutex
	cur protocol.Metadata
}

var sticky = &stickyMetadata{cur: protocol.EmptyMetadata()}

func (s *stickyMetadata) merge(raw map[string]dbus.Variant) protocol.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, v := range raw {
		switch key {
		case metaLength:
			if n, ok := asInt64(v); ok {
				s.cur.Length = protocol.Micros(n)
			} else if str, ok := asString(v); ok {
				if n, err := strconv.ParseInt(str, 10, 64); err == nil {
					s.cur.Length = protocol.Micros(n)
				}
			}
		case metaTrackID:
			if str, ok := asString(v); ok {
				s.cur.TrackID = str
			}
		case metaAlbum:
			if str, ok := asString(v); ok {
				s.cur.Album = str
			}
		case metaArtist:
			if list, ok := asStringList(v); ok {
				s.cur.Artist = list
			}
		case metaTitle:
			if str, ok := asString(v); ok {
				s.cur.Title = str
			}
		case metaArtURL:
			if str, ok := asString(v); ok {
				s.cur.Art = str
			}
		}
	}
	return s.snapshotLocked()
}

func (s *stickyMetadata) current() protocol.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *stickyMetadata) snapshotLocked() protocol.Metadata {
	out := s.cur
	out.Artist = append([]string(nil), s.cur.Artist...)
	return out
}

// ParseMetadata folds a raw sparse metadata mapping into the sticky
// store and returns the merged result.
func ParseMetadata(v dbus.Variant) protocol.Metadata {
	if raw, ok := v.Value().(map[string]dbus.Variant); ok {
		return sticky.merge(raw)
	}
	return sticky.current()
}

// ResetMetadata restores the process-lifetime defaults. Test hook.
func ResetMetadata() {
	sticky.mu.Lock()
	sticky.cur = protocol.EmptyMetadata()
	sticky.mu.Unlock()
}
