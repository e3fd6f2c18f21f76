package pairing

import "github.com/mediamote/bridge/internal/mpris"

// DesktopNotifier surfaces the pairing code as a desktop notification
// on the host, the only trusted place the code ever appears.
type DesktopNotifier struct {
	Bus mpris.Bus
}

func (n DesktopNotifier) Notify(code string) error {
	return n.Bus.Notify("Pair Request", "Code: "+code)
}
