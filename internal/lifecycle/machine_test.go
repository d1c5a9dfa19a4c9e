package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joyfulhouse/lamotte-spintouch/internal/protocol"
	"github.com/joyfulhouse/lamotte-spintouch/internal/reading"
	"github.com/joyfulhouse/lamotte-spintouch/internal/testutils"
	"github.com/joyfulhouse/lamotte-spintouch/internal/transport"
)

const testAddr = "AA:BB:CC:DD:EE:FF"

// fakeCentral is an in-memory transport.Central. Tests drive the
// machine by invoking the registered handlers the way the BLE layer
// would.
type fakeCentral struct {
	mu sync.Mutex

	advHandler  func()
	dropHandler func()
	notify      transport.NotificationHandler

	connectErr   error
	blockConnect bool
	connectGate  chan struct{}
	visible      bool

	readQueue [][]byte
	readErr   error
	readGate  chan struct{}

	connects    int
	disconnects int
	reads       int
	writes      [][]byte
	advProbes   int
}

func newFakeCentral() *fakeCentral {
	return &fakeCentral{}
}

func (f *fakeCentral) RegisterAdvertisementHandler(deviceID string, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advHandler = fn
}

func (f *fakeCentral) RegisterDisconnectHandler(deviceID string, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropHandler = fn
}

func (f *fakeCentral) Connect(ctx context.Context, deviceID string) error {
	f.mu.Lock()
	f.connects++
	err := f.connectErr
	block := f.blockConnect
	gate := f.connectGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return transport.NormalizeError(transport.ConnectFailed, ctx.Err())
		}
	}
	if block {
		<-ctx.Done()
		return transport.NormalizeError(transport.ConnectFailed, ctx.Err())
	}
	return err
}

func (f *fakeCentral) Disconnect(deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

func (f *fakeCentral) Subscribe(deviceID, charUUID string, fn transport.NotificationHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notify = fn
	return nil
}

func (f *fakeCentral) Read(ctx context.Context, deviceID, charUUID string) ([]byte, error) {
	f.mu.Lock()
	f.reads++
	gate := f.readGate
	readErr := f.readErr
	var data []byte
	if len(f.readQueue) > 0 {
		data = f.readQueue[0]
		if len(f.readQueue) > 1 {
			f.readQueue = f.readQueue[1:]
		}
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, transport.NormalizeError(transport.ReadFailed, ctx.Err())
		}
	}
	if readErr != nil {
		return nil, readErr
	}
	if data == nil {
		return nil, transport.Errorf(transport.ReadFailed, "no data staged")
	}
	return data, nil
}

func (f *fakeCentral) Write(ctx context.Context, deviceID, charUUID string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, data)
	return nil
}

func (f *fakeCentral) IsAdvertising(ctx context.Context, deviceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advProbes++
	return f.visible, nil
}

// advertise simulates an advertisement callback from the BLE layer.
func (f *fakeCentral) advertise() {
	f.mu.Lock()
	fn := f.advHandler
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// drop simulates an unexpected link drop.
func (f *fakeCentral) drop() {
	f.mu.Lock()
	fn := f.dropHandler
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// pushStatus simulates a status notification.
func (f *fakeCentral) pushStatus(code byte) {
	f.mu.Lock()
	fn := f.notify
	f.mu.Unlock()
	if fn != nil {
		fn([]byte{code})
	}
}

func (f *fakeCentral) counters() (connects, disconnects, reads, writes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects, f.reads, len(f.writes)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testConfig() Config {
	return Config{
		DeviceID:           testAddr,
		DisconnectDelay:    40 * time.Millisecond,
		ReconnectDelay:     250 * time.Millisecond,
		VisibilityInterval: 30 * time.Millisecond,
		ConnectTimeout:     500 * time.Millisecond,
	}
}

func startMachine(t *testing.T, central *fakeCentral, cfg Config) (*Machine, *reading.Store) {
	t.Helper()
	store := reading.NewStore(testLogger())
	m := NewMachine(cfg, central, store, testLogger())
	require.NoError(t, m.Start(context.Background()), "machine MUST start")
	t.Cleanup(m.Stop)
	return m, store
}

func waitState(t *testing.T, m *Machine, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return m.State() == want },
		2*time.Second, 5*time.Millisecond,
		"machine MUST reach state %s, still in %s", want, m.State())
}

// GOAL: Verify the basic happy path, an advertisement from a quiet
// machine triggers exactly one connect attempt and ends in Connected.
func TestMachineConnectsOnAdvertisement(t *testing.T) {
	central := newFakeCentral()
	m, _ := startMachine(t, central, testConfig())

	require.Equal(t, StateDisconnected, m.State(), "machine MUST start disconnected")

	central.advertise()
	waitState(t, m, StateConnected)

	connects, _, _, _ := central.counters()
	assert.Equal(t, 1, connects, "exactly one connect attempt MUST be made")
}

// GOAL: Verify that advertisements seen while already Connecting or
// Connected are ignored rather than queued.
func TestMachineIgnoresAdvertisementWhileConnected(t *testing.T) {
	central := newFakeCentral()
	m, _ := startMachine(t, central, testConfig())

	central.advertise()
	waitState(t, m, StateConnected)

	for i := 0; i < 5; i++ {
		central.advertise()
	}
	time.Sleep(50 * time.Millisecond)

	connects, _, _, _ := central.counters()
	assert.Equal(t, 1, connects, "repeated advertisements MUST NOT trigger extra connects")
	assert.Equal(t, StateConnected, m.State(), "machine MUST remain connected")
}

// GOAL: Verify the full read cycle. A test-complete notification
// triggers read, decode, ack and store update, then the machine yields
// the link and refuses reconnects for the yield window.
//
// TEST SCENARIO:
//  1. Connect via advertisement
//  2. Push test-complete status with a valid staged record
//  3. Expect the reading stored and an ack written
//  4. Expect the machine to disconnect after the disconnect delay
//  5. Expect advertisements during the yield window to be ignored
//  6. Expect a reconnect once the window elapses
func TestMachineReadCycleAndYield(t *testing.T) {
	central := newFakeCentral()
	central.readQueue = [][]byte{testutils.NewRecordBuilder().Build()}
	m, store := startMachine(t, central, testConfig())

	central.advertise()
	waitState(t, m, StateConnected)

	central.pushStatus(byte(protocol.StatusTestComplete))

	require.Eventually(t, func() bool { return store.Current() != nil },
		2*time.Second, 5*time.Millisecond, "reading MUST be stored after test-complete")

	_, _, reads, writes := central.counters()
	assert.Equal(t, 1, reads, "result characteristic MUST be read once")
	assert.Equal(t, 1, writes, "ack MUST be written after a successful decode")

	// Disconnect delay elapses, link is yielded.
	waitState(t, m, StateDisconnected)
	_, disconnects, _, _ := central.counters()
	assert.Equal(t, 1, disconnects, "machine MUST disconnect after the hold delay")

	// Advertisements during the yield window are ignored.
	for i := 0; i < 5; i++ {
		central.advertise()
		time.Sleep(10 * time.Millisecond)
	}
	connects, _, _, _ := central.counters()
	assert.Equal(t, 1, connects, "no reconnect MUST happen inside the yield window")

	// Once the window elapses the next advertisement reconnects.
	require.Eventually(t, func() bool {
		central.advertise()
		c, _, _, _ := central.counters()
		return c == 2
	}, 2*time.Second, 20*time.Millisecond, "machine MUST reconnect after the yield window")
}

// GOAL: Verify force-reconnect punches through the yield window.
func TestMachineForceReconnectDuringYield(t *testing.T) {
	central := newFakeCentral()
	central.readQueue = [][]byte{testutils.NewRecordBuilder().Build()}
	cfg := testConfig()
	cfg.ReconnectDelay = 10 * time.Second // window longer than the test
	m, store := startMachine(t, central, cfg)

	central.advertise()
	waitState(t, m, StateConnected)
	central.pushStatus(byte(protocol.StatusTestComplete))
	require.Eventually(t, func() bool { return store.Current() != nil },
		2*time.Second, 5*time.Millisecond, "reading MUST be stored")
	waitState(t, m, StateDisconnected)

	central.advertise()
	connects, _, _, _ := central.counters()
	require.Equal(t, 1, connects, "yield window MUST block ordinary reconnects")

	m.ForceReconnect()
	waitState(t, m, StateConnected)
	connects, _, _, _ = central.counters()
	assert.Equal(t, 2, connects, "force-reconnect MUST bypass the yield window")
}

// GOAL: Verify a failed connect attempt moves to visibility polling and
// that a successful probe leads back to Connecting.
func TestMachineConnectFailureEntersVisibilityPolling(t *testing.T) {
	central := newFakeCentral()
	central.connectErr = transport.Errorf(transport.ConnectFailed, "instrument went away")
	m, _ := startMachine(t, central, testConfig())

	central.advertise()
	waitState(t, m, StateVisibilityPolling)

	// Instrument comes back, probe succeeds, connects cleanly this time.
	central.mu.Lock()
	central.connectErr = nil
	central.visible = true
	central.mu.Unlock()

	waitState(t, m, StateConnected)
	connects, _, _, _ := central.counters()
	assert.Equal(t, 2, connects, "successful probe MUST trigger a reconnect")
}

// GOAL: Verify a connect attempt that hangs is bounded by the connect
// timeout and treated as a failure.
func TestMachineConnectTimeout(t *testing.T) {
	central := newFakeCentral()
	central.blockConnect = true
	cfg := testConfig()
	cfg.ConnectTimeout = 50 * time.Millisecond
	m, _ := startMachine(t, central, cfg)

	central.advertise()
	waitState(t, m, StateVisibilityPolling)
}

// GOAL: Verify an unexpected link drop from Connected always lands in
// VisibilityPolling, never silently in Disconnected.
func TestMachineUnexpectedDropPolls(t *testing.T) {
	central := newFakeCentral()
	m, _ := startMachine(t, central, testConfig())

	central.advertise()
	waitState(t, m, StateConnected)

	central.drop()
	waitState(t, m, StateVisibilityPolling)
}

// GOAL: Verify three consecutive malformed records force an explicit
// disconnect while one or two are tolerated.
func TestMachineDecodeFailuresForceDisconnect(t *testing.T) {
	central := newFakeCentral()
	central.readQueue = [][]byte{{0xDE, 0xAD, 0xBE, 0xEF}} // persistently malformed
	m, store := startMachine(t, central, testConfig())

	central.advertise()
	waitState(t, m, StateConnected)

	central.pushStatus(byte(protocol.StatusTestComplete))
	central.pushStatus(byte(protocol.StatusTestComplete))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, StateConnected, m.State(), "two decode failures MUST NOT drop the link")

	central.pushStatus(byte(protocol.StatusTestComplete))
	waitState(t, m, StateDisconnected)

	_, disconnects, _, _ := central.counters()
	assert.Equal(t, 1, disconnects, "third consecutive failure MUST force a disconnect")
	assert.Nil(t, store.Current(), "no reading MUST be stored from malformed records")
}

// GOAL: Verify a duplicate reading is still acked so the instrument
// stops resending, but the store publishes it only once.
func TestMachineDuplicateReadingStillAcked(t *testing.T) {
	central := newFakeCentral()
	central.readQueue = [][]byte{testutils.NewRecordBuilder().Build()}
	m, store := startMachine(t, central, testConfig())

	var updates int
	var mu sync.Mutex
	store.OnChange(func(*protocol.Reading) {
		mu.Lock()
		updates++
		mu.Unlock()
	})

	central.advertise()
	waitState(t, m, StateConnected)

	central.pushStatus(byte(protocol.StatusTestComplete))
	central.pushStatus(byte(protocol.StatusTestComplete))

	require.Eventually(t, func() bool {
		_, _, _, writes := central.counters()
		return writes == 2
	}, 2*time.Second, 5*time.Millisecond, "both submissions MUST be acked")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, updates, "duplicate timestamp MUST NOT re-publish the reading")
}

// GOAL: Verify status codes other than test-complete never trigger a
// result read, including vendor codes outside the documented set.
func TestMachineNonCompleteStatusIgnored(t *testing.T) {
	central := newFakeCentral()
	m, _ := startMachine(t, central, testConfig())

	central.advertise()
	waitState(t, m, StateConnected)

	for _, code := range []byte{
		byte(protocol.StatusInitializing),
		byte(protocol.StatusReady),
		byte(protocol.StatusTesting),
		byte(protocol.StatusError),
		byte(protocol.StatusIdle),
		0x42,
	} {
		central.pushStatus(code)
	}
	time.Sleep(50 * time.Millisecond)

	_, _, reads, _ := central.counters()
	assert.Zero(t, reads, "only test-complete MUST trigger a result read")
}

// GOAL: Verify Stop goes through even while the run loop is held up
// inside a slow result read and advertisements keep arriving; teardown
// must never be lost to event traffic.
//
// TEST SCENARIO:
//  1. Connect and trigger a read that blocks on a gate
//  2. Request Stop while the loop is stuck in the read
//  3. Flood the machine with advertisements
//  4. Release the read and expect Stop to complete
func TestMachineStopSurvivesAdvertisementFlood(t *testing.T) {
	central := newFakeCentral()
	central.readQueue = [][]byte{testutils.NewRecordBuilder().Build()}
	central.readGate = make(chan struct{})
	store := reading.NewStore(testLogger())
	m := NewMachine(testConfig(), central, store, testLogger())
	require.NoError(t, m.Start(context.Background()))

	central.advertise()
	waitState(t, m, StateConnected)

	central.pushStatus(byte(protocol.StatusTestComplete))
	require.Eventually(t, func() bool {
		_, _, reads, _ := central.counters()
		return reads == 1
	}, 2*time.Second, 5*time.Millisecond, "run loop MUST be inside the result read")

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()

	for i := 0; i < 100; i++ {
		central.advertise()
	}
	close(central.readGate)

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop MUST complete once the read returns, regardless of advertisement traffic")
	}
	assert.Equal(t, StateDisconnected, m.State(), "stopped machine MUST report disconnected")
}

// GOAL: Verify a pending connect result is delivered even when a burst
// of advertisements arrives while the attempt is in flight; the machine
// must never wedge in Connecting.
func TestMachineConnectResultSurvivesAdvertisementFlood(t *testing.T) {
	central := newFakeCentral()
	central.connectGate = make(chan struct{})
	m, _ := startMachine(t, central, testConfig())

	central.advertise()
	require.Eventually(t, func() bool { return m.State() == StateConnecting },
		2*time.Second, 5*time.Millisecond, "machine MUST be connecting")

	for i := 0; i < 100; i++ {
		central.advertise()
	}
	close(central.connectGate)

	waitState(t, m, StateConnected)
	connects, _, _, _ := central.counters()
	assert.Equal(t, 1, connects, "the in-flight attempt MUST complete without duplicates")
}

// GOAL: Verify Stop tears down a live link and leaves no armed timers
// behind.
func TestMachineStopCleansUp(t *testing.T) {
	central := newFakeCentral()
	store := reading.NewStore(testLogger())
	m := NewMachine(testConfig(), central, store, testLogger())
	require.NoError(t, m.Start(context.Background()))

	central.advertise()
	waitState(t, m, StateConnected)

	m.Stop()
	assert.Equal(t, StateDisconnected, m.State(), "stopped machine MUST report disconnected")
	_, disconnects, _, _ := central.counters()
	assert.Equal(t, 1, disconnects, "Stop MUST tear down the live link")
}
