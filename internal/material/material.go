// Package material defines the scrap material categories the estimator
// understands, along with per-material reference data used by the
// heuristic and statistical estimation paths.
package material

import (
	"fmt"
	"strings"
)

// Material identifies a scrap metal category.
type Material int

const (
	Unknown Material = iota
	Steel
	Aluminum
	Copper
	Brass
)

func (m Material) String() string {
	switch m {
	case Steel:
		return "steel"
	case Aluminum:
		return "aluminum"
	case Copper:
		return "copper"
	case Brass:
		return "brass"
	default:
		return "unknown"
	}
}

// Parse converts a material name to a Material. Matching is
// case-insensitive. Unrecognized names return an error rather than
// Unknown so callers can distinguish "not yet chosen" from a typo.
func Parse(s string) (Material, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "steel":
		return Steel, nil
	case "aluminum", "aluminium":
		return Aluminum, nil
	case "copper":
		return Copper, nil
	case "brass":
		return Brass, nil
	case "unknown", "":
		return Unknown, nil
	default:
		return Unknown, fmt.Errorf("unrecognized material %q", s)
	}
}

// All returns the concrete (non-Unknown) materials.
func All() []Material {
	return []Material{Steel, Aluminum, Copper, Brass}
}

// Profile holds per-material reference data.
type Profile struct {
	// WeightMin/WeightMax bound the typical per-item weight in pounds
	// for scrap brought to a yard.
	WeightMin float64
	WeightMax float64

	// DensityLbIn3 is the material density in pounds per cubic inch.
	DensityLbIn3 float64

	// Reference surface color (sRGB, 0-255) of the unoxidized metal.
	RefR, RefG, RefB float64
}

var profiles = map[Material]Profile{
	Steel:    {WeightMin: 5, WeightMax: 50, DensityLbIn3: 0.284, RefR: 128, RefG: 128, RefB: 128},
	Aluminum: {WeightMin: 2, WeightMax: 20, DensityLbIn3: 0.098, RefR: 192, RefG: 192, RefB: 192},
	Copper:   {WeightMin: 3, WeightMax: 30, DensityLbIn3: 0.323, RefR: 184, RefG: 115, RefB: 51},
	Brass:    {WeightMin: 4, WeightMax: 25, DensityLbIn3: 0.308, RefR: 181, RefG: 166, RefB: 66},
}

// ProfileFor returns the reference profile for a material. Unknown (or
// any unmapped value) returns a broad catch-all profile so statistical
// estimation still has something to work with.
func ProfileFor(m Material) Profile {
	if p, ok := profiles[m]; ok {
		return p
	}
	return Profile{WeightMin: 2, WeightMax: 50, DensityLbIn3: 0.2, RefR: 150, RefG: 150, RefB: 150}
}

// TypicalWeight returns the midpoint of the material's typical weight
// range, the anchor value for statistical estimation.
func TypicalWeight(m Material) float64 {
	p := ProfileFor(m)
	return (p.WeightMin + p.WeightMax) / 2
}
