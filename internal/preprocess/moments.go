package preprocess

import (
	"math"

	"scrapweigh/pkg/geometry"
)

// ShapeMoments holds image-moment shape descriptors computed over the
// luminance-weighted image. Hu1 and Hu2 are invariant under rotation,
// scale, and translation; Orientation is the principal-axis angle in
// radians.
type ShapeMoments struct {
	M00      float64 // total luminance mass
	Centroid geometry.Point2D

	// Central moments (translation-invariant).
	Mu20, Mu02, Mu11 float64

	// Invariant combinations.
	Hu1, Hu2 float64

	Orientation  float64
	Eccentricity float64 // 0 = circular mass distribution, →1 = elongated
}

// computeMoments derives shape descriptors from a luminance plane.
// A fully dark plane yields zero-valued moments.
func computeMoments(lum *Plane) ShapeMoments {
	var m00, m10, m01 float64
	for y := 0; y < lum.H; y++ {
		for x := 0; x < lum.W; x++ {
			v := lum.At(x, y)
			m00 += v
			m10 += float64(x) * v
			m01 += float64(y) * v
		}
	}
	if m00 < 1e-9 {
		return ShapeMoments{}
	}

	cx := m10 / m00
	cy := m01 / m00

	var mu20, mu02, mu11 float64
	for y := 0; y < lum.H; y++ {
		for x := 0; x < lum.W; x++ {
			v := lum.At(x, y)
			dx := float64(x) - cx
			dy := float64(y) - cy
			mu20 += dx * dx * v
			mu02 += dy * dy * v
			mu11 += dx * dy * v
		}
	}

	// Normalized central moments: eta_pq = mu_pq / m00^(1+(p+q)/2).
	norm := m00 * m00
	eta20 := mu20 / norm
	eta02 := mu02 / norm
	eta11 := mu11 / norm

	sm := ShapeMoments{
		M00:      m00,
		Centroid: geometry.NewPoint2D(cx, cy),
		Mu20:     mu20,
		Mu02:     mu02,
		Mu11:     mu11,
		Hu1:      eta20 + eta02,
		Hu2:      (eta20-eta02)*(eta20-eta02) + 4*eta11*eta11,
	}

	sm.Orientation = 0.5 * math.Atan2(2*mu11, mu20-mu02)

	// Eccentricity from the eigenvalues of the second-moment matrix.
	common := math.Sqrt(4*mu11*mu11 + (mu20-mu02)*(mu20-mu02))
	lambda1 := (mu20 + mu02 + common) / 2
	lambda2 := (mu20 + mu02 - common) / 2
	if lambda1 > 1e-9 {
		ratio := lambda2 / lambda1
		if ratio < 0 {
			ratio = 0
		}
		sm.Eccentricity = math.Sqrt(1 - ratio)
	}

	return sm
}
