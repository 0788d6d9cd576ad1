package preprocess

import "math"

// applyCLAHE performs contrast-limited adaptive histogram equalization
// on a luminance plane. The plane is partitioned into blockSize×blockSize
// tiles; each tile gets its own clipped histogram and CDF, and pixels
// are remapped block-locally. Deterministic for identical input pixels.
//
// clipLimit is a multiplier over the mean bin count: bins above
// clipLimit×mean are clipped and the excess redistributed evenly,
// which bounds the contrast amplification in near-uniform tiles.
func applyCLAHE(src *Plane, blockSize int, clipLimit float64) *Plane {
	if blockSize < 2 {
		blockSize = 2
	}
	out := NewPlane(src.W, src.H)

	for by := 0; by < src.H; by += blockSize {
		for bx := 0; bx < src.W; bx += blockSize {
			x1 := bx + blockSize
			if x1 > src.W {
				x1 = src.W
			}
			y1 := by + blockSize
			if y1 > src.H {
				y1 = src.H
			}
			equalizeBlock(src, out, bx, by, x1, y1, clipLimit)
		}
	}
	return out
}

func equalizeBlock(src, dst *Plane, x0, y0, x1, y1 int, clipLimit float64) {
	var hist [256]float64
	n := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			v := int(clamp255(src.At(x, y)))
			hist[v]++
			n++
		}
	}
	if n == 0 {
		return
	}

	// Clip histogram at clipLimit × mean bin count, redistribute excess.
	meanBin := float64(n) / 256.0
	limit := clipLimit * meanBin
	excess := 0.0
	for i := range hist {
		if hist[i] > limit {
			excess += hist[i] - limit
			hist[i] = limit
		}
	}
	redist := excess / 256.0
	for i := range hist {
		hist[i] += redist
	}

	// Cumulative distribution → remap table.
	var cdf [256]float64
	sum := 0.0
	for i := range hist {
		sum += hist[i]
		cdf[i] = sum
	}
	scale := 255.0 / sum

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			v := int(clamp255(src.At(x, y)))
			dst.Set(x, y, math.Round(cdf[v]*scale))
		}
	}
}
