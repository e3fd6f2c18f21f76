package mpris

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	// BusNamePrefix qualifies a bus name as a media-control endpoint.
	BusNamePrefix = "org.mpris.MediaPlayer2."

	playerPath      = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	playerInterface = "org.mpris.MediaPlayer2.Player"

	notifyDest      = "org.freedesktop.Notifications"
	notifyPath      = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyInterface = "org.freedesktop.Notifications"
)

// Bus is the narrow view of the session bus the bridge needs. Commands
// and property writes are fire-and-forget: delivery is confirmed by the
// next observed signal, never by the call's return.
type Bus interface {
	ListNames() ([]string, error)
	NameOwner(name string) (string, error)

	GetPlayerProperty(name, prop string) (dbus.Variant, error)
	SetPlayerProperty(name, prop string, value dbus.Variant) error
	CallPlayer(name, method string, args ...any) error

	// AddMatch/RemoveMatch manage signal match rules. RemoveMatch is
	// idempotent: a rule whose sender already vacated the bus is
	// treated as removed.
	AddMatch(rule string) error
	RemoveMatch(rule string) error
	Signals() <-chan *dbus.Signal

	Notify(summary, body string) error

	Close() error
}

// PropertiesChangedMatch scopes property-change signals to one sender.
func PropertiesChangedMatch(name string) string {
	return "type='signal',sender='" + name +
		"',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged'"
}

// SeekedMatch scopes seek signals to one sender.
func SeekedMatch(name string) string {
	return "type='signal',sender='" + name +
		"',interface='" + playerInterface + "',member='Seeked'"
}

// NameOwnerChangedMatch covers bus-wide ownership changes; filtering to
// the media prefix happens at the signal handler.
func NameOwnerChangedMatch() string {
	return "type='signal',interface='org.freedesktop.DBus',member='NameOwnerChanged'"
}

type sessionBus struct {
	conn    *dbus.Conn
	signals chan *dbus.Signal
}

// ConnectSessionBus opens the user session bus.
func ConnectSessionBus() (Bus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("mpris: session bus connect: %w", err)
	}
	signals := make(chan *dbus.Signal, 64)
	conn.Signal(signals)
	return &sessionBus{conn: conn, signals: signals}, nil
}

func (b *sessionBus) ListNames() ([]string, error) {
	var names []string
	call := b.conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0)
	if call.Err != nil {
		return nil, call.Err
	}
	if err := call.Store(&names); err != nil {
		return nil, err
	}
	return names, nil
}

func (b *sessionBus) NameOwner(name string) (string, error) {
	var owner string
	call := b.conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, name)
	if call.Err != nil {
		return "", call.Err
	}
	if err := call.Store(&owner); err != nil {
		return "", err
	}
	return owner, nil
}

func (b *sessionBus) GetPlayerProperty(name, prop string) (dbus.Variant, error) {
	return b.conn.Object(name, playerPath).GetProperty(playerInterface + "." + prop)
}

func (b *sessionBus) SetPlayerProperty(name, prop string, value dbus.Variant) error {
	obj := b.conn.Object(name, playerPath)
	obj.Go("org.freedesktop.DBus.Properties.Set", dbus.FlagNoReplyExpected, nil,
		playerInterface, prop, value)
	return nil
}

func (b *sessionBus) CallPlayer(name, method string, args ...any) error {
	obj := b.conn.Object(name, playerPath)
	obj.Go(playerInterface+"."+method, dbus.FlagNoReplyExpected, nil, args...)
	return nil
}

func (b *sessionBus) AddMatch(rule string) error {
	call := b.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule)
	return call.Err
}

func (b *sessionBus) RemoveMatch(rule string) error {
	call := b.conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, rule)
	if call.Err != nil {
		// The peer named in the rule may already be gone; the match is
		// dead either way.
		if strings.Contains(call.Err.Error(), "MatchRuleNotFound") {
			return nil
		}
		return call.Err
	}
	return nil
}

func (b *sessionBus) Signals() <-chan *dbus.Signal {
	return b.signals
}

func (b *sessionBus) Notify(summary, body string) error {
	obj := b.conn.Object(notifyDest, notifyPath)
	call := obj.Call(notifyInterface+".Notify", 0,
		"", uint32(0), "", summary, body, []string{}, map[string]dbus.Variant{}, int32(-1))
	return call.Err
}

func (b *sessionBus) Close() error {
	b.conn.RemoveSignal(b.signals)
	return b.conn.Close()
}
