package preprocess

import "math"

// Edge threshold used when counting edge pixels for edge density.
// Gradient magnitudes above this are considered real structure rather
// than sensor noise.
const edgeMagnitudeThreshold = 50.0

// sobelEdges computes the gradient magnitude map of a luminance plane
// using the 3×3 Sobel kernels. Border pixels are left at zero. Output
// values are clamped to [0, 255].
func sobelEdges(src *Plane) *Plane {
	out := NewPlane(src.W, src.H)

	for y := 1; y < src.H-1; y++ {
		for x := 1; x < src.W-1; x++ {
			gx := -src.At(x-1, y-1) + src.At(x+1, y-1) +
				-2*src.At(x-1, y) + 2*src.At(x+1, y) +
				-src.At(x-1, y+1) + src.At(x+1, y+1)
			gy := -src.At(x-1, y-1) - 2*src.At(x, y-1) - src.At(x+1, y-1) +
				src.At(x-1, y+1) + 2*src.At(x, y+1) + src.At(x+1, y+1)

			out.Set(x, y, clamp255(math.Sqrt(gx*gx+gy*gy)))
		}
	}
	return out
}

// edgeDensity returns the fraction of pixels whose gradient magnitude
// exceeds the edge threshold.
func edgeDensity(edges *Plane) float64 {
	if len(edges.Pix) == 0 {
		return 0
	}
	count := 0
	for _, v := range edges.Pix {
		if v > edgeMagnitudeThreshold {
			count++
		}
	}
	return float64(count) / float64(len(edges.Pix))
}
