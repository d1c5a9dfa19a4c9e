package protocol

import (
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DeviceTime is the timestamp reported by the instrument's own clock, kept
// exactly as encoded on the wire. It is used for de-duplication of
// readings, not as wall-clock time.
type DeviceTime struct {
	Year     int // full year (wire byte + 2000)
	Month    int
	Day      int
	Hour     int
	Minute   int
	Second   int
	Meridiem uint8 // nonzero means PM when the clock is in 12h mode
	Military bool  // true when the clock reports 24h time
}

// Time converts the device timestamp to a time.Time in the local zone.
// In 12h mode the meridiem flag is folded into the hour.
func (t DeviceTime) Time() time.Time {
	hour := t.Hour
	if !t.Military {
		hour = hour % 12
		if t.Meridiem != 0 {
			hour += 12
		}
	}
	return time.Date(t.Year, time.Month(t.Month), t.Day, hour, t.Minute, t.Second, 0, time.Local)
}

func (t DeviceTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
}

// Measurement is one decoded parameter entry: the float value, the
// display-precision hint carried alongside it on the wire, and the range
// annotation. Out-of-range values are kept, never discarded; the flag lets
// the caller decide policy.
type Measurement struct {
	Value      float32
	Decimals   uint8
	OutOfRange bool
}

// Reading is an immutable snapshot of one completed test. A Reading is only
// constructed by Decode from a record that passed full structural
// validation; it is superseded, never mutated, by the next Reading with a
// different device timestamp.
type Reading struct {
	Timestamp      DeviceTime
	Series         CartridgeSeries
	SeriesIndex    uint8
	Sanitizer      SanitizerType
	SanitizerIndex uint8
	ValidCount     uint8

	params *orderedmap.OrderedMap[ParamID, Measurement]
}

// Param returns the measurement for a parameter identifier.
func (r *Reading) Param(id ParamID) (Measurement, bool) {
	if r == nil || r.params == nil {
		return Measurement{}, false
	}
	return r.params.Get(id)
}

// HasParam reports whether the reading contains the parameter.
func (r *Reading) HasParam(id ParamID) bool {
	_, ok := r.Param(id)
	return ok
}

// ParamCount returns the number of decoded parameters.
func (r *Reading) ParamCount() int {
	if r == nil || r.params == nil {
		return 0
	}
	return r.params.Len()
}

// EachParam visits the decoded parameters in wire order.
func (r *Reading) EachParam(visit func(id ParamID, m Measurement)) {
	if r == nil || r.params == nil {
		return
	}
	for pair := r.params.Oldest(); pair != nil; pair = pair.Next() {
		visit(pair.Key, pair.Value)
	}
}

// SanitizerKind collapses the wire sanitizer label into the class that
// decides which sanitizer parameters are meaningful.
func (r *Reading) SanitizerKind() SanitizerKind {
	return r.Sanitizer.Kind()
}
