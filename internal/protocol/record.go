// Package protocol decodes the fixed-layout result records the instrument
// exposes through its result characteristic. The decoder is a pure
// function: raw bytes in, validated Reading or typed DecodeError out. It
// performs no I/O and keeps no state.
package protocol

import (
	"bytes"
	"encoding/binary"
	"math"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Record layout. The parameter block is scanned by identifier because
// different cartridge series omit, reorder, or relocate entries; the same
// physical slot holds different chemistries depending on the inserted disk.
// The header, timestamp, metadata, and footer offsets are stable across
// series. Firmware revisions may append trailing metadata bytes, so buffers
// longer than MinRecordLen are accepted and the excess is not interpreted.
const (
	headerSize      = 4
	entrySize       = 6
	maxEntries      = 12
	timestampOffset = headerSize + maxEntries*entrySize // 76
	timestampSize   = 8
	metadataOffset  = timestampOffset + timestampSize // 84
	footerOffset    = metadataOffset + 3              // 87

	// MinRecordLen is the smallest buffer that can hold a complete record.
	MinRecordLen = footerOffset + 4 // 91
)

var (
	startSignature = []byte{0x01, 0x02, 0x03, 0x05}
	endSignature   = []byte{0x07, 0x0B, 0x0D, 0x11}
)

// Decode parses a raw result record into a validated Reading.
//
// Validation is fail-fast: short buffers, missing signatures, and
// out-of-range timestamps each yield their own DecodeError. Parameter
// values outside the cartridge's documented range are kept but flagged;
// decoding never fails solely on range. An unknown disk-type index is not
// an error: the series is inferred from the parameters present, falling
// back to SeriesUnrecognized.
func Decode(data []byte) (*Reading, error) {
	if len(data) < MinRecordLen {
		return nil, decodeErrorf(TooShort, "record is %d bytes, need at least %d", len(data), MinRecordLen)
	}
	if !bytes.Equal(data[:headerSize], startSignature) {
		return nil, decodeErrorf(BadStartSignature, "got % X", data[:headerSize])
	}
	if !bytes.Equal(data[footerOffset:footerOffset+4], endSignature) {
		return nil, decodeErrorf(BadEndSignature, "got % X", data[footerOffset:footerOffset+4])
	}

	params := orderedmap.New[ParamID, Measurement]()
	for i := 0; i < maxEntries; i++ {
		off := headerSize + i*entrySize
		id := ParamID(data[off])
		if id == 0 || !id.Known() {
			// Unused slot or identifier outside the known set: skip.
			continue
		}
		value := math.Float32frombits(binary.LittleEndian.Uint32(data[off+2 : off+6]))
		params.Set(id, Measurement{Value: value, Decimals: data[off+1]})
	}

	ts := DeviceTime{
		Year:     2000 + int(data[timestampOffset]),
		Month:    int(data[timestampOffset+1]),
		Day:      int(data[timestampOffset+2]),
		Hour:     int(data[timestampOffset+3]),
		Minute:   int(data[timestampOffset+4]),
		Second:   int(data[timestampOffset+5]),
		Meridiem: data[timestampOffset+6],
		Military: data[timestampOffset+7] != 0,
	}
	if !validTimestamp(ts) {
		return nil, decodeErrorf(InvalidTimestamp, "%s is out of range", ts)
	}

	series := SeriesForIndex(data[metadataOffset+1])
	if series == SeriesUnrecognized {
		// Newer firmware ships disk indices the table does not cover; the
		// sanitizer parameters present in the record still identify the
		// disk family.
		series = InferSeries(func(id ParamID) bool {
			_, ok := params.Get(id)
			return ok
		})
	}

	reading := &Reading{
		Timestamp:      ts,
		SeriesIndex:    data[metadataOffset+1],
		Series:         series,
		SanitizerIndex: data[metadataOffset+2],
		Sanitizer:      SanitizerForIndex(data[metadataOffset+2]),
		ValidCount:     data[metadataOffset],
		params:         params,
	}

	annotateRanges(reading)

	return reading, nil
}

// validTimestamp checks the natural field ranges. The day check is
// calendar-agnostic on purpose: the instrument clock is user-set and the
// timestamp only needs to be stable for de-duplication.
func validTimestamp(t DeviceTime) bool {
	return t.Month >= 1 && t.Month <= 12 &&
		t.Day >= 1 && t.Day <= 31 &&
		t.Hour >= 0 && t.Hour <= 23 &&
		t.Minute >= 0 && t.Minute <= 59 &&
		t.Second >= 0 && t.Second <= 59
}

// annotateRanges flags parameter values outside their documented range.
// Values are never dropped: a fixed-offset parser that silently discards
// data mis-attributes chemistry across series, which is worse than an
// explicit flag the caller can act on.
func annotateRanges(r *Reading) {
	if _, err := DescriptorFor(r.Series); err != nil {
		// No descriptor for this series; skip range annotation entirely.
		return
	}
	for pair := r.params.Oldest(); pair != nil; pair = pair.Next() {
		spec, ok := pair.Key.Spec()
		if !ok {
			continue
		}
		if pair.Value.Value < spec.Min || pair.Value.Value > spec.Max {
			m := pair.Value
			m.OutOfRange = true
			r.params.Set(pair.Key, m)
		}
	}
}
