package preprocess

// Plane is a single-channel float image stored row-major. Values are
// in the 0-255 range unless a stage documents otherwise.
type Plane struct {
	W, H int
	Pix  []float64
}

// NewPlane allocates a zeroed plane.
func NewPlane(w, h int) *Plane {
	return &Plane{W: w, H: h, Pix: make([]float64, w*h)}
}

// At returns the value at (x, y). No bounds checking; callers iterate
// within W×H.
func (p *Plane) At(x, y int) float64 {
	return p.Pix[y*p.W+x]
}

// Set stores a value at (x, y).
func (p *Plane) Set(x, y int, v float64) {
	p.Pix[y*p.W+x] = v
}

// Clone returns a deep copy of the plane.
func (p *Plane) Clone() *Plane {
	out := &Plane{W: p.W, H: p.H, Pix: make([]float64, len(p.Pix))}
	copy(out.Pix, p.Pix)
	return out
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
