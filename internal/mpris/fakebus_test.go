package mpris

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

// fakeBus is an in-memory Bus for exercising the directory and engine
// without a real session bus.
type fakeBus struct {
	mu      sync.Mutex
	owners  map[string]string
	order   []string
	props   map[string]map[string]dbus.Variant
	matches map[string]int
	calls   []string
	sets    []string
	notices []string
	signals chan *dbus.Signal
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		owners:  make(map[string]string),
		props:   make(map[string]map[string]dbus.Variant),
		matches: make(map[string]int),
		signals: make(chan *dbus.Signal, 16),
	}
}

func (b *fakeBus) addPlayer(name, owner, status string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.owners[name]; !ok {
		b.order = append(b.order, name)
	}
	b.owners[name] = owner
	b.props[name] = map[string]dbus.Variant{
		"PlaybackStatus": dbus.MakeVariant(status),
	}
}

func (b *fakeBus) removePlayer(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.owners, name)
	delete(b.props, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *fakeBus) setProp(name, prop string, v dbus.Variant) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.props[name] == nil {
		b.props[name] = make(map[string]dbus.Variant)
	}
	b.props[name][prop] = v
}

func (b *fakeBus) setStatus(name, status string) {
	b.setProp(name, "PlaybackStatus", dbus.MakeVariant(status))
}

func (b *fakeBus) matchCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.matches {
		total += n
	}
	return total
}

func (b *fakeBus) ListNames() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := append([]string{"org.freedesktop.DBus"}, b.order...)
	return names, nil
}

func (b *fakeBus) NameOwner(name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	owner, ok := b.owners[name]
	if !ok {
		return "", fmt.Errorf("no such name %q", name)
	}
	return owner, nil
}

func (b *fakeBus) GetPlayerProperty(name, prop string) (dbus.Variant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	props, ok := b.props[name]
	if !ok {
		return dbus.Variant{}, fmt.Errorf("no such player %q", name)
	}
	v, ok := props[prop]
	if !ok {
		return dbus.Variant{}, fmt.Errorf("no such property %q", prop)
	}
	return v, nil
}

func (b *fakeBus) SetPlayerProperty(name, prop string, value dbus.Variant) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sets = append(b.sets, name+"."+prop)
	if b.props[name] == nil {
		b.props[name] = make(map[string]dbus.Variant)
	}
	b.props[name][prop] = value
	return nil
}

func (b *fakeBus) CallPlayer(name, method string, args ...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, name+"."+method)
	return nil
}

func (b *fakeBus) AddMatch(rule string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.matches[rule]++
	return nil
}

func (b *fakeBus) RemoveMatch(rule string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.matches[rule] > 0 {
		b.matches[rule]--
	}
	return nil
}

func (b *fakeBus) Signals() <-chan *dbus.Signal {
	return b.signals
}

func (b *fakeBus) Notify(summary, body string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notices = append(b.notices, summary+": "+body)
	return nil
}

func (b *fakeBus) Close() error { return nil }

// Signal builders for the shapes the engine consumes.

func sigOwnerChanged(name, oldOwner, newOwner string) *dbus.Signal {
	return &dbus.Signal{
		Sender: "org.freedesktop.DBus",
		Path:   "/org/freedesktop/DBus",
		Name:   nameOwnerChangedSignal,
		Body:   []any{name, oldOwner, newOwner},
	}
}

func sigPropertiesChanged(sender string, changed map[string]dbus.Variant) *dbus.Signal {
	return &dbus.Signal{
		Sender: sender,
		Path:   playerPath,
		Name:   propertiesChangedSignal,
		Body:   []any{playerInterface, changed, []string{}},
	}
}

func sigSeeked(sender string, pos int64) *dbus.Signal {
	return &dbus.Signal{
		Sender: sender,
		Path:   playerPath,
		Name:   seekedSignal,
		Body:   []any{pos},
	}
}

func statusChange(status string) map[string]dbus.Variant {
	return map[string]dbus.Variant{"PlaybackStatus": dbus.MakeVariant(status)}
}
