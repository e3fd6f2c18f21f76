package mpris

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Directory holds the live set of media endpoints, at most one Handle
// per bus name. It is mutated only by initial enumeration and by
// NameOwnerChanged handling, both on the engine goroutine.
type Directory struct {
	bus     Bus
	handles map[string]*Handle
	order   []string
}

func newDirectory(bus Bus) (*Directory, error) {
	d := &Directory{
		bus:     bus,
		handles: make(map[string]*Handle),
	}

	names, err := bus.ListNames()
	if err != nil {
		return nil, fmt.Errorf("mpris: enumerate bus names: %w", err)
	}
	for _, name := range names {
		if !strings.HasPrefix(name, BusNamePrefix) {
			continue
		}
		owner, err := bus.NameOwner(name)
		if err != nil {
			log.Warn().Str("player", name).Err(err).Msg("owner lookup failed, skipping")
			continue
		}
		d.insert(newHandle(bus, name, owner))
	}

	if err := bus.AddMatch(NameOwnerChangedMatch()); err != nil {
		return nil, fmt.Errorf("mpris: subscribe ownership changes: %w", err)
	}
	return d, nil
}

func (d *Directory) insert(h *Handle) {
	if _, exists := d.handles[h.Name]; !exists {
		d.order = append(d.order, h.Name)
	}
	d.handles[h.Name] = h
}

func (d *Directory) remove(name string) *Handle {
	h, ok := d.handles[name]
	if !ok {
		return nil
	}
	delete(d.handles, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return h
}

// Get returns the handle for a bus name, if live.
func (d *Directory) Get(name string) (*Handle, bool) {
	h, ok := d.handles[name]
	return h, ok
}

// Handles returns the live handles in stable enumeration order.
func (d *Directory) Handles() []*Handle {
	out := make([]*Handle, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.handles[name])
	}
	return out
}

// OwnerChange describes the outcome of one NameOwnerChanged signal.
type OwnerChange struct {
	Name        string
	ClosedOwner string // owner token of the destroyed handle, if any
	Opened      bool
}

// applyOwnerChange mutates the directory for one ownership transition.
// Destruction and construction happen synchronously here so that no
// reader ever observes the directory between a vacate and its event.
func (d *Directory) applyOwnerChange(name, newOwner string) OwnerChange {
	change := OwnerChange{Name: name}

	if old := d.remove(name); old != nil {
		old.Close()
		change.ClosedOwner = old.Owner
		log.Info().Str("player", name).Str("owner", old.Owner).Msg("player closed")
	}
	if newOwner != "" {
		d.insert(newHandle(d.bus, name, newOwner))
		change.Opened = true
		log.Info().Str("player", name).Str("owner", newOwner).Msg("player opened")
	}
	return change
}

func (d *Directory) close() {
	for _, name := range d.order {
		d.handles[name].Close()
	}
	d.handles = make(map[string]*Handle)
	d.order = nil
	if err := d.bus.RemoveMatch(NameOwnerChangedMatch()); err != nil {
		log.Debug().Err(err).Msg("ownership unmatch failed")
	}
}
