package preprocess

// TensorLayout selects the channel ordering of a packed tensor.
type TensorLayout int

const (
	LayoutNHWC TensorLayout = iota // height, width, channel
	LayoutNCHW                     // channel, height, width
)

// TensorSource selects which preprocessed plane(s) feed a tensor.
type TensorSource int

const (
	// SourceNormalizedRGB packs the lighting-normalized RGB planes (0-1).
	SourceNormalizedRGB TensorSource = iota
	// SourceEqualizedGray packs the CLAHE'd luminance plane scaled to 0-1.
	SourceEqualizedGray
	// SourceEdgeMap packs the Sobel magnitude plane scaled to 0-1.
	SourceEdgeMap
)

// TensorSpec is a backend's declared input contract. Backends do not
// share an input format; each declares its own and the preprocessor
// packs accordingly.
type TensorSpec struct {
	Name     string
	Width    int
	Height   int
	Channels int
	Layout   TensorLayout
	Source   TensorSource
}

// Tensor is a packed model input.
type Tensor struct {
	Spec TensorSpec
	Data []float32
}

// PackTensor materializes a tensor for the given spec from this output.
// The preprocessed planes are already at the canonical resolution; a
// spec requesting a different size gets nearest-neighbor sampling,
// which keeps packing deterministic and allocation-light.
func (o *Output) PackTensor(spec TensorSpec) Tensor {
	data := make([]float32, spec.Width*spec.Height*spec.Channels)

	sample := func(p *Plane, x, y int) float64 {
		sx := x * p.W / spec.Width
		sy := y * p.H / spec.Height
		return p.At(sx, sy)
	}

	put := func(x, y, c int, v float64) {
		var idx int
		if spec.Layout == LayoutNHWC {
			idx = (y*spec.Width+x)*spec.Channels + c
		} else {
			idx = c*spec.Width*spec.Height + y*spec.Width + x
		}
		data[idx] = float32(v)
	}

	for y := 0; y < spec.Height; y++ {
		for x := 0; x < spec.Width; x++ {
			switch spec.Source {
			case SourceNormalizedRGB:
				put(x, y, 0, sample(o.NormR, x, y))
				if spec.Channels > 1 {
					put(x, y, 1, sample(o.NormG, x, y))
				}
				if spec.Channels > 2 {
					put(x, y, 2, sample(o.NormB, x, y))
				}
			case SourceEqualizedGray:
				put(x, y, 0, sample(o.Gray, x, y)/255.0)
			case SourceEdgeMap:
				put(x, y, 0, sample(o.Edges, x, y)/255.0)
			}
		}
	}

	return Tensor{Spec: spec, Data: data}
}
