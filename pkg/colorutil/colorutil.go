// Package colorutil provides shared color conversions for the estimation pipeline.
package colorutil

import (
	"image/color"
	"math"
)

// Luminance returns the BT.601 luma of an RGB triple in the 0-255 range.
func Luminance(r, g, b float64) float64 {
	return 0.299*r + 0.587*g + 0.114*b
}

// LuminanceOf returns the BT.601 luma of a color.Color in the 0-255 range.
func LuminanceOf(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return Luminance(float64(r>>8), float64(g>>8), float64(b>>8))
}

// RGBToHSV converts RGB (0-255) to HSV (OpenCV convention: H 0-180, S 0-255, V 0-255).
func RGBToHSV(r, g, b float64) (h, s, v float64) {
	r /= 255.0
	g /= 255.0
	b /= 255.0

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	diff := maxC - minC

	v = maxC * 255.0 // V in 0-255

	if maxC == 0 {
		s = 0
	} else {
		s = (diff / maxC) * 255.0 // S in 0-255
	}

	if diff == 0 {
		h = 0
	} else if maxC == r {
		h = 60 * math.Mod((g-b)/diff, 6)
	} else if maxC == g {
		h = 60 * ((b-r)/diff + 2)
	} else {
		h = 60 * ((r-g)/diff + 4)
	}

	if h < 0 {
		h += 360
	}

	h = h / 2 // Convert to OpenCV's 0-180 range

	return h, s, v
}

// ColorDistance returns the Euclidean distance between two RGB triples
// in the 0-255 range. Used to compare a photo's dominant color against
// a material's reference color.
func ColorDistance(r1, g1, b1, r2, g2, b2 float64) float64 {
	dr := r1 - r2
	dg := g1 - g2
	db := b1 - b2
	return math.Sqrt(dr*dr + dg*dg + db*db)
}
