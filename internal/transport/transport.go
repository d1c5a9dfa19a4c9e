// Package transport defines the narrow interface the connection lifecycle
// requires from the BLE stack. The lifecycle never talks to a BLE library
// directly; it consumes link-layer events and issues connect, read, write,
// subscribe, and disconnect calls through this interface. The go-ble
// backed implementation lives in the goble subpackage; tests substitute
// in-memory fakes.
package transport

import (
	"context"
	"strings"
	"time"
)

// Instrument GATT profile. The vendor service hosts four characteristics:
// the result record, the status phase byte, the send-test trigger, and the
// post-read acknowledgement.
const (
	ServiceUUID    = "00000000-0000-1000-8000-bbbd00000000"
	ResultCharUUID = "00000000-0000-1000-8000-bbbd00000010"
	StatusCharUUID = "00000000-0000-1000-8000-bbbd00000011"
	SendTestUUID   = "00000000-0000-1000-8000-bbbd00000012"
	AckCharUUID    = "00000000-0000-1000-8000-bbbd00000013"
)

var knownCharacteristics = map[string]string{
	NormalizeUUID(ResultCharUUID): "Test Result",
	NormalizeUUID(StatusCharUUID): "Test Available",
	NormalizeUUID(SendTestUUID):   "Send Test",
	NormalizeUUID(AckCharUUID):    "Test Acknowledge",
}

// KnownCharacteristicName returns the human-readable name for one of the
// instrument's characteristics, or empty for unknown UUIDs.
func KnownCharacteristicName(uuid string) string {
	return knownCharacteristics[NormalizeUUID(uuid)]
}

// NormalizeUUID converts a UUID string to the internal BLE library format
// (lowercase, no dashes). Handles both dashed and already normalized forms.
func NormalizeUUID(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
}

// NotificationHandler receives notification payloads for a subscribed
// characteristic. The data slice is only valid for the duration of the
// call; handlers must copy it if they retain it.
type NotificationHandler func(data []byte)

// Central is the transport collaborator consumed by the lifecycle: one
// logical BLE central that can watch for a device's advertisements,
// connect to it, and use its GATT profile. Implementations own retry and
// backoff at the radio layer; the lifecycle treats every call as a single
// asynchronous outcome.
type Central interface {
	// RegisterAdvertisementHandler installs the callback invoked whenever
	// an advertisement from the device is seen. One handler per device;
	// registering again replaces it.
	RegisterAdvertisementHandler(deviceID string, fn func())

	// RegisterDisconnectHandler installs the callback invoked on an
	// unexpected link drop for the device.
	RegisterDisconnectHandler(deviceID string, fn func())

	// Connect establishes the link and discovers the GATT profile. The
	// attempt is bounded by ctx; expiry yields ErrTimeout.
	Connect(ctx context.Context, deviceID string) error

	// Disconnect tears the link down. Disconnecting an already
	// disconnected device is a no-op.
	Disconnect(deviceID string) error

	// Subscribe starts notifications on a characteristic of the connected
	// device.
	Subscribe(deviceID, characteristicUUID string, fn NotificationHandler) error

	// Read reads a characteristic value from the connected device.
	Read(ctx context.Context, deviceID, characteristicUUID string) ([]byte, error)

	// Write writes a characteristic value on the connected device.
	Write(ctx context.Context, deviceID, characteristicUUID string, data []byte) error

	// IsAdvertising reports whether the device is currently advertising.
	// Used for visibility polling while disconnected.
	IsAdvertising(ctx context.Context, deviceID string) (bool, error)
}

// DefaultConnectTimeout bounds a connect attempt that neither succeeds nor
// fails on its own; expiry is treated as a connect failure.
const DefaultConnectTimeout = 30 * time.Second
