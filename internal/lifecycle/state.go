package lifecycle

// State identifies where a managed instrument is in its connection
// lifecycle.
type State int

const (
	// StateDisconnected is the initial state: no link, waiting for an
	// advertisement. While the reconnect yield timer is active, incoming
	// advertisements are deliberately ignored so the instrument's mobile
	// app can claim the device.
	StateDisconnected State = iota

	// StateConnecting covers dial plus GATT discovery and subscription
	// setup. Further advertisements are no-ops here.
	StateConnecting

	// StateConnected has live status notifications and an armed
	// inactivity disconnect timer.
	StateConnected

	// StateVisibilityPolling follows an unexpected link drop: the
	// instrument may have been claimed by another central, so presence
	// is probed periodically instead of reconnecting outright.
	StateVisibilityPolling
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateVisibilityPolling:
		return "visibility_polling"
	default:
		return "unknown"
	}
}
