package mpris

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/mediamote/bridge/internal/protocol"
)

const (
	alphaName = BusNamePrefix + "alpha"
	betaName  = BusNamePrefix + "beta"
	gammaName = BusNamePrefix + "gamma"
)

func newTestEngine(t *testing.T, bus *fakeBus) *Engine {
	t.Helper()
	ResetMetadata()
	e, err := NewEngine(bus)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func expectEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()
	select {
	case evt := <-ch:
		if evt.Kind != kind {
			t.Fatalf("unexpected event kind: got %d want %d (%+v)", evt.Kind, kind, evt)
		}
		return evt
	default:
		t.Fatalf("expected event of kind %d, got none", kind)
	}
	return Event{}
}

func expectNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event: %+v", evt)
	default:
	}
}

func TestSelectActivePriority(t *testing.T) {
	cases := []struct {
		name      string
		statuses  map[string]string
		want      string
		tentative bool
	}{
		{
			name:     "first playing wins",
			statuses: map[string]string{alphaName: protocol.StatusPaused, betaName: protocol.StatusPlaying, gammaName: protocol.StatusPlaying},
			want:     betaName,
		},
		{
			name:      "last paused wins with nothing playing",
			statuses:  map[string]string{alphaName: protocol.StatusPaused, betaName: protocol.StatusStopped, gammaName: protocol.StatusPaused},
			want:      gammaName,
			tentative: true,
		},
		{
			name:      "all stopped selects none",
			statuses:  map[string]string{alphaName: protocol.StatusStopped, betaName: protocol.StatusStopped},
			want:      "",
			tentative: true,
		},
		{
			name:      "no players",
			statuses:  map[string]string{},
			want:      "",
			tentative: true,
		},
	}

	order := []string{alphaName, betaName, gammaName}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bus := newFakeBus()
			for i, name := range order {
				if status, ok := tc.statuses[name]; ok {
					bus.addPlayer(name, owner(i), status)
				}
			}
			e := newTestEngine(t, bus)

			got := e.Current()
			if tc.want == "" {
				if got != nil {
					t.Fatalf("expected no selection, got %s", got.Name)
				}
				return
			}
			if got == nil || got.Name != tc.want {
				t.Fatalf("unexpected selection: got %v want %s", got, tc.want)
			}
			if e.tentative != tc.tentative {
				t.Fatalf("unexpected tentative flag: got %v want %v", e.tentative, tc.tentative)
			}
		})
	}
}

func owner(i int) string {
	return ":1." + string(rune('1'+i))
}

func TestPauseKeepsSelection(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(alphaName, ":1.1", protocol.StatusPlaying)
	bus.addPlayer(betaName, ":1.2", protocol.StatusPaused)
	e := newTestEngine(t, bus)

	if cur := e.Current(); cur == nil || cur.Name != alphaName {
		t.Fatalf("unexpected initial selection: %v", cur)
	}

	events, cancel := e.Subscribe()
	defer cancel()

	// The selection pauses and nothing else is playing. A rescan would
	// move to beta; the engine must stay put.
	bus.setStatus(alphaName, protocol.StatusPaused)
	e.handleSignal(sigPropertiesChanged(":1.1", statusChange(protocol.StatusPaused)))

	if cur := e.Current(); cur == nil || cur.Name != alphaName {
		t.Fatalf("selection moved on pause: %v", cur)
	}
	evt := expectEvent(t, events, EventUpdated)
	if evt.Fields.PlaybackStatus == nil || *evt.Fields.PlaybackStatus != protocol.StatusPaused {
		t.Fatalf("unexpected update fields: %+v", evt.Fields)
	}
	expectNoEvent(t, events)
}

func TestPlayingElsewhereTakesOver(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(alphaName, ":1.1", protocol.StatusPaused)
	bus.addPlayer(betaName, ":1.2", protocol.StatusStopped)
	e := newTestEngine(t, bus)

	if cur := e.Current(); cur == nil || cur.Name != alphaName {
		t.Fatalf("unexpected initial selection: %v", cur)
	}

	events, cancel := e.Subscribe()
	defer cancel()

	bus.setStatus(betaName, protocol.StatusPlaying)
	e.handleSignal(sigPropertiesChanged(":1.2", statusChange(protocol.StatusPlaying)))

	if cur := e.Current(); cur == nil || cur.Name != betaName {
		t.Fatalf("selection did not move to playing endpoint: %v", cur)
	}
	evt := expectEvent(t, events, EventChanged)
	if evt.Player == nil || evt.Player.Name != betaName {
		t.Fatalf("unexpected changed player: %+v", evt.Player)
	}
	expectNoEvent(t, events)
}

func TestSeekedBypassesSelectionScan(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(alphaName, ":1.1", protocol.StatusPlaying)
	e := newTestEngine(t, bus)

	events, cancel := e.Subscribe()
	defer cancel()

	e.handleSignal(sigSeeked(":1.1", 5_000_000))

	evt := expectEvent(t, events, EventUpdated)
	if evt.Fields.Position == nil || *evt.Fields.Position != 5_000_000 {
		t.Fatalf("unexpected seek fields: %+v", evt.Fields)
	}
	if evt.Fields.PlaybackStatus != nil {
		t.Fatalf("seek update carried extra fields: %+v", evt.Fields)
	}
	if cur := e.Current(); cur == nil || cur.Name != alphaName {
		t.Fatalf("selection changed on seek: %v", cur)
	}
}

func TestOwnerVacatedRescans(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(alphaName, ":1.1", protocol.StatusPlaying)
	bus.addPlayer(betaName, ":1.2", protocol.StatusPaused)
	e := newTestEngine(t, bus)

	events, cancel := e.Subscribe()
	defer cancel()

	bus.removePlayer(alphaName)
	e.handleSignal(sigOwnerChanged(alphaName, ":1.1", ""))

	if cur := e.Current(); cur == nil || cur.Name != betaName {
		t.Fatalf("expected fallback to %s, got %v", betaName, cur)
	}
	evt := expectEvent(t, events, EventChanged)
	if evt.Player == nil || evt.Player.Name != betaName {
		t.Fatalf("unexpected changed player: %+v", evt.Player)
	}
}

func TestLastPlayerGoneSelectsNone(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(alphaName, ":1.1", protocol.StatusPlaying)
	e := newTestEngine(t, bus)

	events, cancel := e.Subscribe()
	defer cancel()

	bus.removePlayer(alphaName)
	e.handleSignal(sigOwnerChanged(alphaName, ":1.1", ""))

	if cur := e.Current(); cur != nil {
		t.Fatalf("expected no selection, got %s", cur.Name)
	}
	evt := expectEvent(t, events, EventChanged)
	if evt.Player != nil {
		t.Fatalf("expected nil player in changed event, got %s", evt.Player.Name)
	}
}

func TestNameReacquiredReplacesInstance(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(alphaName, ":1.1", protocol.StatusPlaying)
	e := newTestEngine(t, bus)

	events, cancel := e.Subscribe()
	defer cancel()

	// Same bus name, new process. The owner token distinguishes them.
	bus.addPlayer(alphaName, ":1.9", protocol.StatusPlaying)
	e.handleSignal(sigOwnerChanged(alphaName, ":1.1", ":1.9"))

	cur := e.Current()
	if cur == nil || cur.Owner != ":1.9" {
		t.Fatalf("expected new instance owner, got %v", cur)
	}
	evt := expectEvent(t, events, EventChanged)
	if evt.Player == nil || evt.Player.Owner != ":1.9" {
		t.Fatalf("unexpected changed player: %+v", evt.Player)
	}
}

func TestNonMediaOwnerChangeIgnored(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(alphaName, ":1.1", protocol.StatusPlaying)
	e := newTestEngine(t, bus)

	events, cancel := e.Subscribe()
	defer cancel()

	e.handleSignal(sigOwnerChanged("org.freedesktop.Notifications", ":1.5", ":1.6"))

	if cur := e.Current(); cur == nil || cur.Name != alphaName {
		t.Fatalf("selection disturbed by unrelated name: %v", cur)
	}
	expectNoEvent(t, events)
}

func TestUpdateFromNonCurrentSenderNotForwarded(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(alphaName, ":1.1", protocol.StatusPlaying)
	bus.addPlayer(betaName, ":1.2", protocol.StatusPaused)
	e := newTestEngine(t, bus)

	events, cancel := e.Subscribe()
	defer cancel()

	// Beta chatters about volume while alpha stays current.
	e.handleSignal(sigPropertiesChanged(":1.2", map[string]dbus.Variant{
		"Volume": dbus.MakeVariant(0.3),
	}))

	if cur := e.Current(); cur == nil || cur.Name != alphaName {
		t.Fatalf("selection disturbed: %v", cur)
	}
	expectNoEvent(t, events)
}

func TestCurrentSnapshotAndPosition(t *testing.T) {
	bus := newFakeBus()
	bus.addPlayer(alphaName, ":1.1", protocol.StatusPlaying)
	bus.setProp(alphaName, "Volume", dbus.MakeVariant(0.8))
	bus.setProp(alphaName, "Position", dbus.MakeVariant(int64(7_000_000)))
	bus.setProp(alphaName, "CanPause", dbus.MakeVariant(true))
	e := newTestEngine(t, bus)

	snap := e.CurrentSnapshot()
	if snap.PlaybackStatus == nil || *snap.PlaybackStatus != protocol.StatusPlaying {
		t.Fatalf("unexpected status: %+v", snap)
	}
	if snap.Volume == nil || *snap.Volume != 0.8 {
		t.Fatalf("unexpected volume: %+v", snap)
	}
	if snap.CanPause == nil || !*snap.CanPause {
		t.Fatalf("unexpected CanPause: %+v", snap)
	}
	// Properties the endpoint never answered stay unset.
	if snap.LoopStatus != nil || snap.Shuffle != nil {
		t.Fatalf("unanswered properties populated: %+v", snap)
	}

	pos, ok := e.CurrentPosition()
	if !ok || pos != 7_000_000 {
		t.Fatalf("unexpected position: %d %v", pos, ok)
	}
}

func TestCurrentSnapshotWithNoSelection(t *testing.T) {
	bus := newFakeBus()
	e := newTestEngine(t, bus)

	if snap := e.CurrentSnapshot(); !snap.IsEmpty() {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
	if _, ok := e.CurrentPosition(); ok {
		t.Fatalf("expected no position")
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	bus := newFakeBus()
	e := newTestEngine(t, bus)

	events, cancel := e.Subscribe()
	cancel()
	if _, open := <-events; open {
		t.Fatalf("expected closed channel after cancel")
	}
	// Cancelling twice is safe.
	cancel()
}
