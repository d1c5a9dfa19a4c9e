package protocol

// ParamID is the small integer tag that identifies a chemical measurement
// on the wire. Different cartridge series include different parameters, so
// records are parsed by scanning for these IDs, never by fixed offset.
type ParamID uint8

const (
	ParamFreeChlorine     ParamID = 0x01
	ParamTotalChlorine    ParamID = 0x02
	ParamBromine          ParamID = 0x03
	ParamPH               ParamID = 0x06
	ParamAlkalinity       ParamID = 0x07
	ParamCalciumHighRange ParamID = 0x08
	ParamCyanuricAcid     ParamID = 0x0A
	ParamIron             ParamID = 0x0B
	ParamCopper           ParamID = 0x0C
	ParamBorate           ParamID = 0x0D
	ParamPhosphate        ParamID = 0x0E
	ParamCalcium          ParamID = 0x0F
	ParamSalt             ParamID = 0x10
	ParamCombinedChlorine ParamID = 0x11
)

// ParamSpec describes how a parameter is displayed and which numeric range
// the instrument documents as valid for it.
type ParamSpec struct {
	Key      string
	Name     string
	Unit     string // empty for unitless parameters (pH)
	Decimals int
	Min      float32
	Max      float32
}

// paramSpecs is the closed set of known parameter identifiers. Values come
// from the instrument vendor's published measurement ranges.
var paramSpecs = map[ParamID]ParamSpec{
	ParamFreeChlorine:     {Key: "free_chlorine", Name: "Free Chlorine", Unit: "ppm", Decimals: 2, Min: 0, Max: 20},
	ParamTotalChlorine:    {Key: "total_chlorine", Name: "Total Chlorine", Unit: "ppm", Decimals: 2, Min: 0, Max: 20},
	ParamBromine:          {Key: "bromine", Name: "Bromine", Unit: "ppm", Decimals: 2, Min: 0, Max: 20},
	ParamPH:               {Key: "ph", Name: "pH", Unit: "", Decimals: 2, Min: 0, Max: 14},
	ParamAlkalinity:       {Key: "alkalinity", Name: "Total Alkalinity", Unit: "ppm", Decimals: 1, Min: 0, Max: 500},
	ParamCalciumHighRange: {Key: "calcium", Name: "Calcium Hardness", Unit: "ppm", Decimals: 1, Min: 0, Max: 1200},
	ParamCyanuricAcid:     {Key: "cyanuric_acid", Name: "Cyanuric Acid", Unit: "ppm", Decimals: 1, Min: 0, Max: 300},
	ParamIron:             {Key: "iron", Name: "Iron", Unit: "ppm", Decimals: 2, Min: 0, Max: 5},
	ParamCopper:           {Key: "copper", Name: "Copper", Unit: "ppm", Decimals: 2, Min: 0, Max: 5},
	ParamBorate:           {Key: "borate", Name: "Borate", Unit: "ppm", Decimals: 1, Min: 0, Max: 100},
	ParamPhosphate:        {Key: "phosphate", Name: "Phosphate", Unit: "ppb", Decimals: 0, Min: 0, Max: 2500},
	ParamCalcium:          {Key: "calcium", Name: "Calcium Hardness", Unit: "ppm", Decimals: 1, Min: 0, Max: 1200},
	ParamSalt:             {Key: "salt", Name: "Salt", Unit: "ppm", Decimals: 0, Min: 0, Max: 10000},
	ParamCombinedChlorine: {Key: "combined_chlorine", Name: "Combined Chlorine", Unit: "ppm", Decimals: 2, Min: 0, Max: 20},
}

// Spec returns the display and range metadata for a parameter identifier.
func (p ParamID) Spec() (ParamSpec, bool) {
	spec, ok := paramSpecs[p]
	return spec, ok
}

// Known reports whether the identifier belongs to the known parameter set.
// Entries with unknown identifiers are unused slots and are skipped during
// decoding, not treated as errors.
func (p ParamID) Known() bool {
	_, ok := paramSpecs[p]
	return ok
}

func (p ParamID) String() string {
	if spec, ok := paramSpecs[p]; ok {
		return spec.Key
	}
	return "unknown"
}
