package protocol

// CartridgeSeries identifies an interchangeable reagent disk series
// (e.g. "303"). The wire carries a small index that is mapped through a
// closed table; unlisted indices decode to SeriesUnrecognized.
type CartridgeSeries string

// SeriesUnrecognized marks a disk-type index that is not in the known table.
const SeriesUnrecognized CartridgeSeries = "unrecognized"

// cartridgeSeriesByIndex maps the wire disk-type index to its series code.
var cartridgeSeriesByIndex = map[uint8]CartridgeSeries{
	0:  "101",
	1:  "102",
	2:  "201",
	3:  "202",
	4:  "301",
	5:  "302",
	6:  "401",
	7:  "402",
	8:  "501",
	9:  "601",
	16: "103",
	17: "203",
	18: "303",
	19: "503",
	20: "603",
	22: "104",
	23: "204",
	24: "304",
}

// SeriesForIndex resolves a wire disk-type index to its cartridge series.
func SeriesForIndex(index uint8) CartridgeSeries {
	if series, ok := cartridgeSeriesByIndex[index]; ok {
		return series
	}
	return SeriesUnrecognized
}

// AuxChemistry names the chemistry measured by the 0x0D/0x0E parameter pair
// on a given series. The pair is mutually exclusive per disk.
type AuxChemistry string

const (
	AuxPhosphate AuxChemistry = "phosphate"
	AuxBorate    AuxChemistry = "borate"
	AuxNone      AuxChemistry = ""
)

// CartridgeDescriptor is the static description of one cartridge series:
// which parameters a disk of that series reports and which of the
// phosphate/borate pair it carries. x04 series report calcium through the
// high-range identifier, visible in Params. The table is read-only
// process-wide.
type CartridgeDescriptor struct {
	Series CartridgeSeries
	Params []ParamID
	Aux    AuxChemistry
}

// HasParam reports whether this series is expected to report the parameter.
func (d *CartridgeDescriptor) HasParam(id ParamID) bool {
	for _, p := range d.Params {
		if p == id {
			return true
		}
	}
	return false
}

// cartridgeDescriptors covers the pool/spa disk series the instrument
// software documents. x03 series use standard-range calcium (0x0F), x04
// series high-range calcium (0x08). 203/204 carry phosphate on the aux
// slot, 303/304 borate.
var cartridgeDescriptors = map[CartridgeSeries]*CartridgeDescriptor{
	"103": {
		Series: "103",
		Params: []ParamID{ParamFreeChlorine, ParamTotalChlorine, ParamBromine, ParamPH, ParamAlkalinity, ParamCalcium, ParamCyanuricAcid},
	},
	"203": {
		Series: "203",
		Params: []ParamID{ParamFreeChlorine, ParamTotalChlorine, ParamBromine, ParamPH, ParamAlkalinity, ParamCalcium, ParamCyanuricAcid, ParamCopper, ParamIron, ParamPhosphate, ParamBorate},
		Aux:    AuxPhosphate,
	},
	"303": {
		Series: "303",
		Params: []ParamID{ParamFreeChlorine, ParamTotalChlorine, ParamBromine, ParamPH, ParamAlkalinity, ParamCalcium, ParamCyanuricAcid, ParamCopper, ParamIron, ParamSalt, ParamPhosphate, ParamBorate},
		Aux:    AuxBorate,
	},
	"104": {
		Series: "104",
		Params: []ParamID{ParamFreeChlorine, ParamTotalChlorine, ParamBromine, ParamPH, ParamAlkalinity, ParamCalciumHighRange, ParamCyanuricAcid},
	},
	"204": {
		Series: "204",
		Params: []ParamID{ParamFreeChlorine, ParamTotalChlorine, ParamBromine, ParamPH, ParamAlkalinity, ParamCalciumHighRange, ParamCyanuricAcid, ParamCopper, ParamIron, ParamPhosphate, ParamBorate},
		Aux:    AuxPhosphate,
	},
	"304": {
		Series: "304",
		Params: []ParamID{ParamFreeChlorine, ParamTotalChlorine, ParamBromine, ParamPH, ParamAlkalinity, ParamCalciumHighRange, ParamCyanuricAcid, ParamCopper, ParamIron, ParamSalt, ParamPhosphate, ParamBorate},
		Aux:    AuxBorate,
	},
}

// DescriptorFor returns the static descriptor for a cartridge series.
// Series outside the documented table yield ErrUnknownCartridgeSeries;
// callers that only need range annotation treat that as "skip the check".
func DescriptorFor(series CartridgeSeries) (*CartridgeDescriptor, error) {
	if d, ok := cartridgeDescriptors[series]; ok {
		return d, nil
	}
	return nil, decodeErrorf(UnknownCartridgeSeries, "no descriptor for series %q", series)
}

// SanitizerType is the wire sanitizer-type label as reported by the
// instrument metadata byte.
type SanitizerType string

const (
	SanitizerChlorine  SanitizerType = "Chlorine"
	SanitizerSalt      SanitizerType = "Salt"
	SanitizerBromine   SanitizerType = "Bromine"
	SanitizerBiguanide SanitizerType = "Biguanide"
	SanitizerDWTreated SanitizerType = "DWTreated"
	SanitizerAQFresh   SanitizerType = "AQFresh"
	SanitizerCTCL      SanitizerType = "CTCL"
	SanitizerCTBR      SanitizerType = "CTBR"
	SanitizerUnknown   SanitizerType = "Unknown"
)

var sanitizerTypeByIndex = map[uint8]SanitizerType{
	0: SanitizerChlorine,
	1: SanitizerSalt,
	2: SanitizerBromine,
	3: SanitizerBiguanide,
	4: SanitizerDWTreated,
	5: SanitizerAQFresh,
	6: SanitizerCTCL,
	7: SanitizerCTBR,
	8: SanitizerUnknown,
}

// SanitizerForIndex resolves a wire sanitizer index to its label.
func SanitizerForIndex(index uint8) SanitizerType {
	if s, ok := sanitizerTypeByIndex[index]; ok {
		return s
	}
	return SanitizerUnknown
}

// SanitizerKind collapses the wire sanitizer labels into the three classes
// that decide which mutually-exclusive parameters are meaningful.
type SanitizerKind string

const (
	KindChlorine SanitizerKind = "chlorine"
	KindBromine  SanitizerKind = "bromine"
	KindNone     SanitizerKind = "none"
)

// Kind maps a sanitizer label to its parameter class. Chlorine-family
// sanitizers (salt chlorination included) report free/total chlorine;
// bromine-family sanitizers report bromine.
func (s SanitizerType) Kind() SanitizerKind {
	switch s {
	case SanitizerChlorine, SanitizerSalt, SanitizerCTCL:
		return KindChlorine
	case SanitizerBromine, SanitizerCTBR:
		return KindBromine
	default:
		return KindNone
	}
}

// InferSeries guesses the cartridge series from the parameters present in a
// record when the wire disk index is unrecognized. Chlorine disks read as
// 303, bromine disks as 203. Returns SeriesUnrecognized when neither
// sanitizer parameter is present.
func InferSeries(has func(ParamID) bool) CartridgeSeries {
	switch {
	case has(ParamFreeChlorine) || has(ParamTotalChlorine):
		return "303"
	case has(ParamBromine):
		return "203"
	default:
		return SeriesUnrecognized
	}
}
