package testutils

import "github.com/go-ble/ble"

// AdvertisementBuilder builds fake BLE advertisements for testing.
// The result implements ble.Advertisement directly, no mocking layer.
type AdvertisementBuilder struct {
	adv *FakeAdvertisement
}

// NewAdvertisementBuilder creates a builder with connectable=true and
// an unavailable TX power level per the BLE spec default.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{
		adv: &FakeAdvertisement{
			connectable: true,
			txPower:     127,
		},
	}
}

// WithAddress sets the device address.
func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.adv.addr = addr
	return b
}

// WithName sets the local name.
func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.adv.name = name
	return b
}

// WithRSSI sets the signal strength.
func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.adv.rssi = rssi
	return b
}

// WithServices adds advertised service UUIDs, short or full form.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	for _, u := range uuids {
		b.adv.services = append(b.adv.services, ble.MustParse(u))
	}
	return b
}

// WithConnectable sets whether the device accepts connections.
func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.adv.connectable = c
	return b
}

// WithManufacturerData sets the manufacturer-specific payload.
func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.adv.manufData = data
	return b
}

// WithTxPower sets the transmission power level.
func (b *AdvertisementBuilder) WithTxPower(power int) *AdvertisementBuilder {
	b.adv.txPower = power
	return b
}

// Build returns the fake advertisement.
func (b *AdvertisementBuilder) Build() *FakeAdvertisement {
	return b.adv
}

// FakeAdvertisement is an in-memory ble.Advertisement.
type FakeAdvertisement struct {
	addr        string
	name        string
	rssi        int
	services    []ble.UUID
	manufData   []byte
	txPower     int
	connectable bool
}

type fakeAddr string

func (a fakeAddr) String() string { return string(a) }

func (f *FakeAdvertisement) LocalName() string              { return f.name }
func (f *FakeAdvertisement) ManufacturerData() []byte       { return f.manufData }
func (f *FakeAdvertisement) ServiceData() []ble.ServiceData { return nil }
func (f *FakeAdvertisement) Services() []ble.UUID           { return f.services }
func (f *FakeAdvertisement) OverflowService() []ble.UUID    { return nil }
func (f *FakeAdvertisement) TxPowerLevel() int              { return f.txPower }
func (f *FakeAdvertisement) Connectable() bool              { return f.connectable }
func (f *FakeAdvertisement) SolicitedService() []ble.UUID   { return nil }
func (f *FakeAdvertisement) RSSI() int                      { return f.rssi }
func (f *FakeAdvertisement) Addr() ble.Addr                 { return fakeAddr(f.addr) }
