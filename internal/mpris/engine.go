package mpris

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/mediamote/bridge/internal/protocol"
	"github.com/rs/zerolog/log"
)

const (
	nameOwnerChangedSignal  = "org.freedesktop.DBus.NameOwnerChanged"
	propertiesChangedSignal = "org.freedesktop.DBus.Properties.PropertiesChanged"
	seekedSignal            = playerInterface + ".Seeked"
)

// EventKind discriminates engine events.
type EventKind int

const (
	// EventUpdated carries only the fields that changed on the current
	// selection.
	EventUpdated EventKind = iota
	// EventChanged reports that the selection moved to a different live
	// endpoint instance (or to none).
	EventChanged
)

// Event is one notification fanned out to engine subscribers.
type Event struct {
	Kind   EventKind
	Fields protocol.Snapshot
	Player *Handle
}

// Engine owns the Directory and the active selection. All bus signals
// are handled run-to-completion on a single goroutine, so directory
// mutation and its notification happen within one step.
type Engine struct {
	bus Bus
	dir *Directory

	selMu     sync.Mutex
	current   *Handle
	tentative bool

	subMu sync.RWMutex
	subs  map[chan Event]struct{}
}

// NewEngine enumerates the bus and derives the initial selection.
func NewEngine(bus Bus) (*Engine, error) {
	dir, err := newDirectory(bus)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		bus:  bus,
		dir:  dir,
		subs: make(map[chan Event]struct{}),
	}
	best, tentative := selectActive(dir.Handles())
	e.setSelection(best, tentative)
	return e, nil
}

// selectActive derives the single current player from live statuses.
// The first Playing handle wins; with nothing playing the last Paused
// handle wins; otherwise there is no selection. The boolean is true
// when the result is merely tentative (nothing actively playing).
func selectActive(handles []*Handle) (*Handle, bool) {
	var paused *Handle
	for _, h := range handles {
		switch h.PlaybackStatus() {
		case protocol.StatusPlaying:
			return h, false
		case protocol.StatusPaused:
			paused = h
		}
	}
	return paused, true
}

// Run consumes the bus signal stream until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	signals := e.bus.Signals()
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			e.handleSignal(sig)
		}
	}
}

func (e *Engine) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case nameOwnerChangedSignal:
		e.handleOwnerChanged(sig)
	case seekedSignal:
		if sig.Path == playerPath {
			e.handleSeeked(sig)
		}
	case propertiesChangedSignal:
		if sig.Path == playerPath {
			e.handlePropertiesChanged(sig)
		}
	}
}

func (e *Engine) handleOwnerChanged(sig *dbus.Signal) {
	if len(sig.Body) < 3 {
		return
	}
	name, _ := sig.Body[0].(string)
	newOwner, _ := sig.Body[2].(string)
	if name == "" || !hasMediaPrefix(name) {
		return
	}

	prevOwner := e.currentOwner()
	e.dir.applyOwnerChange(name, newOwner)

	best, tentative := selectActive(e.dir.Handles())
	e.setSelection(best, tentative)

	if e.currentOwner() != prevOwner {
		e.emitChanged(best)
	}
}

// handleSeeked forwards position changes directly; they never affect
// which player is current, so the selection scan is bypassed.
func (e *Engine) handleSeeked(sig *dbus.Signal) {
	if len(sig.Body) < 1 {
		return
	}
	n, ok := asInt64(dbus.MakeVariant(sig.Body[0]))
	if !ok {
		return
	}
	pos := protocol.Micros(n)
	e.emitUpdated(protocol.Snapshot{Position: &pos})
}

func (e *Engine) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	prevOwner := e.currentOwner()

	if statusVar, has := changed["PlaybackStatus"]; has {
		status, _ := asString(statusVar)
		best, tentative := selectActive(e.dir.Handles())
		if status == protocol.StatusPaused && tentative {
			// The current selection just paused and nothing else is
			// playing: keep it. Switching to an unrelated idle player
			// here would bounce the client's "current device" on every
			// pause/resume.
			e.selMu.Lock()
			e.tentative = true
			e.selMu.Unlock()
		} else {
			e.setSelection(best, tentative)
		}
	}

	if e.currentOwner() != prevOwner {
		e.selMu.Lock()
		cur := e.current
		e.selMu.Unlock()
		e.emitChanged(cur)
		return
	}

	if sig.Sender != prevOwner || prevOwner == "" {
		return
	}
	if fields := updatedFields(changed); !fields.IsEmpty() {
		e.emitUpdated(fields)
	}
}

// updatedFields translates a raw property-change mapping into the
// client-facing partial snapshot.
func updatedFields(changed map[string]dbus.Variant) protocol.Snapshot {
	var out protocol.Snapshot
	for prop, v := range changed {
		switch prop {
		case "PlaybackStatus":
			if s, ok := asString(v); ok {
				out.PlaybackStatus = &s
			}
		case "LoopStatus":
			if s, ok := asString(v); ok {
				out.LoopStatus = &s
			}
		case "Rate":
			if f, ok := asFloat(v); ok {
				out.Rate = &f
			}
		case "Shuffle":
			if b, ok := asBool(v); ok {
				out.Shuffle = &b
			}
		case "Volume":
			if f, ok := asFloat(v); ok {
				out.Volume = &f
			}
		case "Position":
			if n, ok := asInt64(v); ok {
				pos := protocol.Micros(n)
				out.Position = &pos
			}
		case "Metadata":
			meta := ParseMetadata(v)
			out.Metadata = &meta
		}
	}
	return out
}

func hasMediaPrefix(name string) bool {
	return len(name) > len(BusNamePrefix) && name[:len(BusNamePrefix)] == BusNamePrefix
}

func (e *Engine) setSelection(h *Handle, tentative bool) {
	e.selMu.Lock()
	e.current = h
	e.tentative = tentative
	e.selMu.Unlock()
}

func (e *Engine) currentOwner() string {
	e.selMu.Lock()
	defer e.selMu.Unlock()
	if e.current == nil {
		return ""
	}
	return e.current.Owner
}

// Current returns the selected handle, nil when no endpoint qualifies.
func (e *Engine) Current() *Handle {
	e.selMu.Lock()
	defer e.selMu.Unlock()
	return e.current
}

// CurrentSnapshot reads a full snapshot of the selection. The snapshot
// spans bus round trips, so the selection identity is re-validated
// afterwards; a result captured for a superseded instance is discarded
// and re-read from current state.
func (e *Engine) CurrentSnapshot() protocol.Snapshot {
	for attempt := 0; attempt < 2; attempt++ {
		h := e.Current()
		if h == nil {
			return protocol.Snapshot{}
		}
		snap := h.Snapshot()
		cur := e.Current()
		if cur == h && cur.Owner == h.Owner {
			return snap
		}
	}
	if h := e.Current(); h != nil {
		return h.Snapshot()
	}
	return protocol.Snapshot{}
}

// CurrentPosition is a point-in-time position read of the selection.
func (e *Engine) CurrentPosition() (protocol.Micros, bool) {
	h := e.Current()
	if h == nil {
		return 0, false
	}
	return h.Position()
}

// Subscribe registers an event listener. The returned cancel removes it
// and closes the channel; events are dropped rather than blocking a
// slow subscriber.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	e.subMu.Lock()
	e.subs[ch] = struct{}{}
	e.subMu.Unlock()

	cancel := func() {
		e.subMu.Lock()
		if _, ok := e.subs[ch]; ok {
			delete(e.subs, ch)
			close(ch)
		}
		e.subMu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) emitUpdated(fields protocol.Snapshot) {
	e.emit(Event{Kind: EventUpdated, Fields: fields})
}

func (e *Engine) emitChanged(h *Handle) {
	name := ""
	if h != nil {
		name = h.Name
	}
	log.Info().Str("player", name).Msg("current player changed")
	e.emit(Event{Kind: EventChanged, Player: h})
}

func (e *Engine) emit(evt Event) {
	e.subMu.RLock()
	defer e.subMu.RUnlock()
	for ch := range e.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Close tears down subscriptions and directory state.
func (e *Engine) Close() {
	e.subMu.Lock()
	for ch := range e.subs {
		close(ch)
	}
	e.subs = make(map[chan Event]struct{})
	e.subMu.Unlock()

	e.dir.close()
	e.setSelection(nil, true)
}
