package lifecycle

// eventKind enumerates the control stimuli that drive the state machine.
// Control events (transport callbacks, timer firings, API calls) travel
// on a dedicated channel and are never dropped; advertisements, which
// are a lossy signal to begin with, ride a separate overwrite-oldest
// ring. Both are drained by the single run-loop goroutine, which is
// what serializes the machine.
type eventKind int

const (
	evConnectResult eventKind = iota
	evNotification
	evLinkDropped
	evTimerFired
	evForceReconnect
)

func (k eventKind) String() string {
	switch k {
	case evConnectResult:
		return "connect_result"
	case evNotification:
		return "notification"
	case evLinkDropped:
		return "link_dropped"
	case evTimerFired:
		return "timer_fired"
	case evForceReconnect:
		return "force_reconnect"
	default:
		return "unknown"
	}
}

type event struct {
	kind eventKind

	// err and gen carry the outcome of an async connect attempt; gen
	// identifies which attempt, so superseded results are discarded.
	err error
	gen int

	// data carries a status notification payload.
	data []byte

	// timer names which timer fired.
	timer string
}
