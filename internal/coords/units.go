package coords

import "strconv"

// unitScale is the divisor that converts a value in the unit to meters.
var unitScale = map[string]float64{
	"m":  1,
	"mm": 1e3,
	"um": 1e6,
	"µm": 1e6,
	"nm": 1e9,
	"pm": 1e12,
	"s":  1,
	"ms": 1e3,
	"us": 1e6,
	"Hz": 1,
	"":   1,
}

// ToSI converts value in unit to the base unit the wire format uses.
func ToSI(value float64, unit string) (float64, string) {
	div, ok := unitScale[unit]
	if !ok {
		return value, unit
	}
	return value / div, baseUnit(unit)
}

// FromSI converts an SI value back into nanometers for length and leaves
// other units untouched.
func FromSI(value float64, unit string) (float64, string) {
	if unit == "m" {
		return roundSig(value * 1e9), "nm"
	}
	return value, unit
}

func baseUnit(unit string) string {
	switch unit {
	case "m", "mm", "um", "µm", "nm", "pm":
		return "m"
	case "s", "ms", "us":
		return "s"
	default:
		return unit
	}
}

// roundSig trims floating point noise left over from unit conversion.
func roundSig(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', 12, 64), 64)
	if err != nil {
		return v
	}
	return r
}
