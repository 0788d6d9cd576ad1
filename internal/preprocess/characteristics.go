package preprocess

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Characteristics summarizes a photo for the orchestrator's weight
// tuning. Computed once per request; immutable afterwards.
type Characteristics struct {
	HasClearObject     bool    `json:"has_clear_object"`
	HasDepthCues       bool    `json:"has_depth_cues"`
	IsRegularShape     bool    `json:"is_regular_shape"`
	EstimatedLuminance float64 `json:"estimated_luminance"` // 0-1
	EdgeDensity        float64 `json:"edge_density"`        // fraction of edge pixels
}

// Thresholds for deriving boolean characteristics. Tuned against the
// synthetic scrap dataset; uniform backgrounds score well below all of
// them.
const (
	clearObjectEdgeMin     = 0.02 // minimum edge fraction for a distinct object
	clearObjectContrastMin = 18.0 // minimum luminance stddev (0-255 domain)
	depthShadingMin        = 12.0 // top/bottom luminance split indicating shading
	regularEccentricityMax = 0.85
	regularHu2Max          = 0.001
)

// deriveCharacteristics computes the characteristics summary from the
// equalized luminance plane, the edge map, and the shape moments.
func deriveCharacteristics(lum, edges *Plane, sm ShapeMoments) Characteristics {
	ch := Characteristics{
		EstimatedLuminance: stat.Mean(lum.Pix, nil) / 255.0,
		EdgeDensity:        edgeDensity(edges),
	}

	contrast := stat.StdDev(lum.Pix, nil)
	ch.HasClearObject = ch.EdgeDensity >= clearObjectEdgeMin &&
		contrast >= clearObjectContrastMin &&
		sm.M00 > 0

	// Vertical shading split is the cheapest depth cue available from a
	// single photo: lit tops and shadowed undersides.
	third := lum.H / 3
	if third > 0 {
		var top, bottom []float64
		top = lum.Pix[:third*lum.W]
		bottom = lum.Pix[(lum.H-third)*lum.W:]
		shading := math.Abs(stat.Mean(top, nil) - stat.Mean(bottom, nil))
		ch.HasDepthCues = shading >= depthShadingMin && ch.HasClearObject
	}

	ch.IsRegularShape = ch.HasClearObject &&
		sm.Eccentricity <= regularEccentricityMax &&
		sm.Hu2 <= regularHu2Max

	return ch
}
