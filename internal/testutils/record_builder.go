// Package testutils provides shared builders for package tests.
package testutils

import (
	"encoding/binary"
	"math"

	"github.com/joyfulhouse/lamotte-spintouch/internal/protocol"
)

// Wire layout facts duplicated here so tests can corrupt records at known
// offsets without reaching into the decoder's internals.
const (
	RecordLen       = 91
	TimestampOffset = 76
	MetadataOffset  = 84
	FooterOffset    = 87
)

type recordEntry struct {
	id       protocol.ParamID
	decimals uint8
	value    float32
}

// RecordBuilder builds wire-format result records for testing.
// It provides a fluent API; defaults produce a valid chlorine-disk record
// (series 303) with a fixed timestamp and no parameter entries.
type RecordBuilder struct {
	entries        []recordEntry
	year           uint8
	month          uint8
	day            uint8
	hour           uint8
	minute         uint8
	second         uint8
	meridiem       uint8
	military       uint8
	validCount     uint8
	seriesIndex    uint8
	sanitizerIndex uint8
	trailing       []byte
}

// NewRecordBuilder creates a RecordBuilder with valid defaults.
func NewRecordBuilder() *RecordBuilder {
	return &RecordBuilder{
		year:           25,
		month:          11,
		day:            29,
		hour:           12,
		minute:         30,
		second:         45,
		military:       1,
		validCount:     10,
		seriesIndex:    18, // 303
		sanitizerIndex: 0,  // Chlorine
	}
}

// WithEntry appends a parameter entry slot.
func (b *RecordBuilder) WithEntry(id protocol.ParamID, decimals uint8, value float32) *RecordBuilder {
	b.entries = append(b.entries, recordEntry{id: id, decimals: decimals, value: value})
	return b
}

// WithTimestamp sets the device timestamp (year is the wire byte, year-2000).
func (b *RecordBuilder) WithTimestamp(year, month, day, hour, minute, second uint8) *RecordBuilder {
	b.year, b.month, b.day = year, month, day
	b.hour, b.minute, b.second = hour, minute, second
	return b
}

// WithClock sets the meridiem and 24h-mode flags.
func (b *RecordBuilder) WithClock(meridiem, military uint8) *RecordBuilder {
	b.meridiem = meridiem
	b.military = military
	return b
}

// WithMetadata sets the valid-result count, disk-type index, and sanitizer
// index metadata bytes.
func (b *RecordBuilder) WithMetadata(validCount, seriesIndex, sanitizerIndex uint8) *RecordBuilder {
	b.validCount = validCount
	b.seriesIndex = seriesIndex
	b.sanitizerIndex = sanitizerIndex
	return b
}

// WithTrailing appends extra bytes after the end signature, mimicking
// firmware revisions that extend the record.
func (b *RecordBuilder) WithTrailing(data ...byte) *RecordBuilder {
	b.trailing = append(b.trailing, data...)
	return b
}

// Build assembles the wire record: start signature, 12 entry slots (unused
// slots zeroed), timestamp block, metadata, end signature, trailing bytes.
func (b *RecordBuilder) Build() []byte {
	const maxEntries = 12
	data := make([]byte, 0, RecordLen+len(b.trailing))
	data = append(data, 0x01, 0x02, 0x03, 0x05)

	for i := 0; i < maxEntries; i++ {
		if i < len(b.entries) {
			e := b.entries[i]
			data = append(data, byte(e.id), e.decimals)
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(e.value))
		} else {
			data = append(data, 0, 0, 0, 0, 0, 0)
		}
	}

	data = append(data, b.year, b.month, b.day, b.hour, b.minute, b.second, b.meridiem, b.military)
	data = append(data, b.validCount, b.seriesIndex, b.sanitizerIndex)
	data = append(data, 0x07, 0x0B, 0x0D, 0x11)
	data = append(data, b.trailing...)
	return data
}

// MustDecode builds the record and decodes it, panicking on failure.
// Convenient for tests that need a Reading rather than raw bytes.
func (b *RecordBuilder) MustDecode() *protocol.Reading {
	reading, err := protocol.Decode(b.Build())
	if err != nil {
		panic(err)
	}
	return reading
}
