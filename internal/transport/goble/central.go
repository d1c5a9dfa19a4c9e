// Package goble implements transport.Central on top of the go-ble stack.
package goble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
	"github.com/sirupsen/logrus"

	"github.com/joyfulhouse/lamotte-spintouch/internal/transport"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests)
var DeviceFactory = func() (ble.Device, error) {
	dev, err := darwin.NewDevice()
	if err != nil {
		// Wrap Bluetooth state errors with clearer messages
		if strings.Contains(err.Error(), "central manager has invalid state") {
			if strings.Contains(err.Error(), "have=4") { // StatePoweredOff
				return nil, transport.Errorf(transport.Unavailable, "Bluetooth is turned off - please enable Bluetooth and retry")
			}
			return nil, transport.Errorf(transport.Unavailable, "Bluetooth is not ready - %v", err)
		}
		return nil, transport.NormalizeError(transport.Unavailable, err)
	}
	return dev, nil
}

// link is the per-device live connection state.
type link struct {
	client ble.Client
	chars  map[string]*ble.Characteristic // keyed by normalized UUID
	// intentional marks a disconnect we initiated, so the disconnect
	// monitor does not report it as an unexpected drop.
	intentional bool
}

// Central drives one BLE adapter for any number of managed instruments.
// It implements transport.Central.
type Central struct {
	logger *logrus.Logger

	mu          sync.Mutex
	dev         ble.Device
	links       map[string]*link
	advHandlers map[string]func()
	dropped     map[string]func()
}

// NewCentral creates a Central. The BLE adapter is initialized lazily on
// first use so that constructing a Central never touches the radio.
func NewCentral(logger *logrus.Logger) *Central {
	if logger == nil {
		logger = logrus.New()
	}
	return &Central{
		logger:      logger,
		links:       make(map[string]*link),
		advHandlers: make(map[string]func()),
		dropped:     make(map[string]func()),
	}
}

func (c *Central) device() (ble.Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev != nil {
		return c.dev, nil
	}
	dev, err := DeviceFactory()
	if err != nil {
		return nil, err
	}
	ble.SetDefaultDevice(dev)
	c.dev = dev
	return dev, nil
}

// RegisterAdvertisementHandler installs the advertisement callback for a
// device. Registering again replaces the previous handler.
func (c *Central) RegisterAdvertisementHandler(deviceID string, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advHandlers[normalizeAddr(deviceID)] = fn
}

// RegisterDisconnectHandler installs the unexpected-drop callback.
func (c *Central) RegisterDisconnectHandler(deviceID string, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped[normalizeAddr(deviceID)] = fn
}

// Run scans for advertisements and dispatches them to registered handlers
// until ctx is cancelled. It should be run on its own goroutine; the
// lifecycle's event queue serializes the callbacks it triggers.
func (c *Central) Run(ctx context.Context) error {
	dev, err := c.device()
	if err != nil {
		return err
	}

	c.logger.Info("Advertisement watch started")
	err = dev.Scan(ctx, true, func(adv ble.Advertisement) {
		addr := normalizeAddr(adv.Addr().String())
		c.mu.Lock()
		fn := c.advHandlers[addr]
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
	if err != nil && ctx.Err() == nil {
		return transport.NormalizeError(transport.Unavailable, err)
	}
	return nil
}

// Connect dials the device and discovers its GATT profile. The attempt is
// bounded by ctx.
func (c *Central) Connect(ctx context.Context, deviceID string) error {
	addr := normalizeAddr(deviceID)

	c.mu.Lock()
	if _, ok := c.links[addr]; ok {
		c.mu.Unlock()
		return transport.Errorf(transport.ConnectFailed, "device %s already connected", deviceID)
	}
	c.mu.Unlock()

	if _, err := c.device(); err != nil {
		return err
	}

	c.logger.WithField("address", deviceID).Info("Connecting to instrument...")

	client, err := ble.Dial(ctx, ble.NewAddr(deviceID))
	if err != nil {
		return transport.NormalizeError(transport.ConnectFailed, err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		client.CancelConnection()
		return transport.NormalizeError(transport.ConnectFailed, fmt.Errorf("discover profile: %w", err))
	}

	chars := make(map[string]*ble.Characteristic)
	for _, svc := range profile.Services {
		for _, char := range svc.Characteristics {
			chars[transport.NormalizeUUID(char.UUID.String())] = char
		}
	}

	l := &link{client: client, chars: chars}
	c.mu.Lock()
	c.links[addr] = l
	c.mu.Unlock()

	// go-ble exposes the disconnect channel on the darwin client only,
	// so probe for it instead of relying on the Client interface.
	if dc, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		go c.monitorDisconnect(addr, client, dc.Disconnected())
	}

	c.logger.WithFields(logrus.Fields{
		"address":         deviceID,
		"characteristics": len(chars),
	}).Info("Instrument connected")
	return nil
}

// monitorDisconnect waits for the link to drop and reports it unless the
// disconnect was initiated through Disconnect.
func (c *Central) monitorDisconnect(addr string, client ble.Client, ch <-chan struct{}) {
	<-ch

	c.mu.Lock()
	l := c.links[addr]
	var fn func()
	intentional := l == nil || l.intentional
	if l != nil && l.client == client {
		delete(c.links, addr)
	}
	if !intentional {
		fn = c.dropped[addr]
	}
	c.mu.Unlock()

	if intentional {
		return
	}
	c.logger.WithField("address", addr).Warn("Unexpected disconnect")
	if fn != nil {
		fn()
	}
}

// Disconnect tears the link down. A no-op when already disconnected.
func (c *Central) Disconnect(deviceID string) error {
	addr := normalizeAddr(deviceID)

	c.mu.Lock()
	l, ok := c.links[addr]
	if ok {
		l.intentional = true
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}

	err := l.client.CancelConnection()
	if err != nil {
		c.logger.WithError(err).Warn("Instrument disconnected with errors")
		return transport.NormalizeError(transport.NotConnected, err)
	}
	c.logger.WithField("address", deviceID).Info("Instrument disconnected")
	return nil
}

func (c *Central) characteristic(deviceID, uuid string) (ble.Client, *ble.Characteristic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.links[normalizeAddr(deviceID)]
	if !ok {
		return nil, nil, transport.Errorf(transport.NotConnected, "device %s is not connected", deviceID)
	}
	char, ok := l.chars[transport.NormalizeUUID(uuid)]
	if !ok {
		return nil, nil, transport.Errorf(transport.NotConnected, "characteristic %q not found on device %s", uuid, deviceID)
	}
	return l.client, char, nil
}

// Subscribe starts notifications on a characteristic.
func (c *Central) Subscribe(deviceID, characteristicUUID string, fn transport.NotificationHandler) error {
	client, char, err := c.characteristic(deviceID, characteristicUUID)
	if err != nil {
		return err
	}
	if err := client.Subscribe(char, false, func(data []byte) { fn(data) }); err != nil {
		return transport.NormalizeError(transport.SubscribeFailed, err)
	}
	c.logger.WithFields(logrus.Fields{
		"address":        deviceID,
		"characteristic": transport.KnownCharacteristicName(characteristicUUID),
	}).Debug("Subscribed to notifications")
	return nil
}

// Read reads a characteristic value.
func (c *Central) Read(ctx context.Context, deviceID, characteristicUUID string) ([]byte, error) {
	client, char, err := c.characteristic(deviceID, characteristicUUID)
	if err != nil {
		return nil, err
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := client.ReadCharacteristic(char)
		done <- result{data, err}
	}()

	select {
	case <-ctx.Done():
		return nil, transport.NormalizeError(transport.ReadFailed, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, transport.NormalizeError(transport.ReadFailed, r.err)
		}
		return r.data, nil
	}
}

// Write writes a characteristic value with response.
func (c *Central) Write(ctx context.Context, deviceID, characteristicUUID string, data []byte) error {
	client, char, err := c.characteristic(deviceID, characteristicUUID)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- client.WriteCharacteristic(char, data, false) }()

	select {
	case <-ctx.Done():
		return transport.NormalizeError(transport.WriteFailed, ctx.Err())
	case err := <-done:
		if err != nil {
			return transport.NormalizeError(transport.WriteFailed, err)
		}
		return nil
	}
}

// IsAdvertising runs a short bounded scan looking for the device.
func (c *Central) IsAdvertising(ctx context.Context, deviceID string) (bool, error) {
	dev, err := c.device()
	if err != nil {
		return false, err
	}

	addr := normalizeAddr(deviceID)
	scanCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// The scan callback runs on the BLE stack's goroutine.
	var seen atomic.Bool
	err = dev.Scan(scanCtx, false, func(adv ble.Advertisement) {
		if normalizeAddr(adv.Addr().String()) == addr {
			seen.Store(true)
			cancel()
		}
	})
	if err != nil && scanCtx.Err() == nil {
		return false, transport.NormalizeError(transport.Unavailable, err)
	}
	return seen.Load(), nil
}

func normalizeAddr(addr string) string {
	return strings.ToUpper(strings.TrimSpace(addr))
}
