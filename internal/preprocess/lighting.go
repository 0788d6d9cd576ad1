package preprocess

import "gonum.org/v1/gonum/stat"

// Per-channel normalization targets in the 0-1 domain. These match the
// statistics the weight models were trained against, so normalized
// photos from different camera pipelines land in the same input
// distribution.
var (
	targetMean = [3]float64{0.485, 0.456, 0.406}
	targetStd  = [3]float64{0.229, 0.224, 0.225}
)

// normalizeLighting rescales each channel's mean and spread toward the
// fixed targets, reducing cross-device exposure variance. Input planes
// are 0-255; output planes are in the 0-1 domain, clamped.
func normalizeLighting(r, g, b *Plane) (nr, ng, nb *Plane) {
	channels := [3]*Plane{r, g, b}
	var out [3]*Plane

	for c, ch := range channels {
		n := NewPlane(ch.W, ch.H)
		mean := stat.Mean(ch.Pix, nil) / 255.0
		std := stat.StdDev(ch.Pix, nil) / 255.0
		if std < 1e-6 {
			// Flat channel: shift to the target mean, nothing to scale.
			for i := range n.Pix {
				n.Pix[i] = clamp01(ch.Pix[i]/255.0 - mean + targetMean[c])
			}
			out[c] = n
			continue
		}
		scale := targetStd[c] / std
		for i := range n.Pix {
			v := (ch.Pix[i]/255.0-mean)*scale + targetMean[c]
			n.Pix[i] = clamp01(v)
		}
		out[c] = n
	}
	return out[0], out[1], out[2]
}
