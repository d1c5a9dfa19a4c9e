package reading

import "github.com/joyfulhouse/lamotte-spintouch/internal/protocol"

// Derived quantities depend on two parameters jointly, so they live here
// rather than in the decoder. Each returns (value, ok); ok is false when a
// required parameter is absent or the math is undefined. Absent never means
// zero.

// CombinedSanitizer returns total minus free sanitizer for the reading's
// sanitizer class. For chlorine disks this is combined chlorine.
func CombinedSanitizer(r *protocol.Reading) (float64, bool) {
	if r == nil {
		return 0, false
	}
	free, okFree := r.Param(protocol.ParamFreeChlorine)
	total, okTotal := r.Param(protocol.ParamTotalChlorine)
	if !okFree || !okTotal {
		return 0, false
	}
	return float64(total.Value) - float64(free.Value), true
}

// StabilizerRatio returns free sanitizer divided by the stabilizer
// (cyanuric acid) as a percentage. Undefined when the stabilizer is zero
// or absent; that is reported as ok=false, never as an error or a division
// by zero.
func StabilizerRatio(r *protocol.Reading) (float64, bool) {
	if r == nil {
		return 0, false
	}
	free, okFree := r.Param(protocol.ParamFreeChlorine)
	cya, okCya := r.Param(protocol.ParamCyanuricAcid)
	if !okFree || !okCya || cya.Value == 0 {
		return 0, false
	}
	return float64(free.Value) / float64(cya.Value) * 100, true
}
