// Package preprocess normalizes raw scrap photos into model-ready
// planes, packed tensors, and a characteristics summary.
//
// The pipeline runs in a fixed order: canonical resize, CLAHE contrast
// equalization, statistical lighting normalization, Sobel edge
// extraction, moment-based shape descriptors, characteristics
// derivation. Every stage is deterministic for identical input pixels.
package preprocess

import (
	"errors"
	"fmt"
	"image"
)

// Sentinel errors surfaced directly to the caller. Invalid input is not
// a fallback case: no estimate can be produced from an unusable photo.
var (
	ErrInvalidImage  = errors.New("invalid image")
	ErrImageTooSmall = errors.New("image below minimum dimensions")
)

// Options controls the preprocessing pipeline.
type Options struct {
	// Resolution is the canonical square edge in pixels.
	Resolution int
	// MinDimension rejects images whose shorter edge is below it.
	MinDimension int
	// CLAHEBlockSize is the equalization tile edge in pixels.
	CLAHEBlockSize int
	// CLAHEClipLimit is the histogram clip multiplier over the mean bin.
	CLAHEClipLimit float64
}

// DefaultOptions returns pipeline defaults matching the deployed models.
func DefaultOptions() Options {
	return Options{
		Resolution:     224,
		MinDimension:   32,
		CLAHEBlockSize: 16,
		CLAHEClipLimit: 2.0,
	}
}

// Output is the preprocessed form of one photo. All planes share the
// canonical resolution. Owned by the request that created it.
type Output struct {
	// Gray is the CLAHE-equalized luminance plane (0-255).
	Gray *Plane
	// Edges is the Sobel gradient magnitude plane (0-255).
	Edges *Plane
	// NormR/NormG/NormB are the lighting-normalized channels (0-1).
	NormR, NormG, NormB *Plane
	// MeanR/MeanG/MeanB are the pre-normalization channel means (0-255),
	// kept for material color comparison in the heuristic paths.
	MeanR, MeanG, MeanB float64

	Moments         ShapeMoments
	Characteristics Characteristics
}

// Preprocessor runs the fixed pipeline with a given set of options.
type Preprocessor struct {
	opts Options
}

// New creates a Preprocessor. Zero-valued option fields fall back to
// defaults.
func New(opts Options) *Preprocessor {
	def := DefaultOptions()
	if opts.Resolution <= 0 {
		opts.Resolution = def.Resolution
	}
	if opts.MinDimension <= 0 {
		opts.MinDimension = def.MinDimension
	}
	if opts.CLAHEBlockSize <= 0 {
		opts.CLAHEBlockSize = def.CLAHEBlockSize
	}
	if opts.CLAHEClipLimit <= 0 {
		opts.CLAHEClipLimit = def.CLAHEClipLimit
	}
	return &Preprocessor{opts: opts}
}

// Run executes the pipeline on a decoded image.
func (p *Preprocessor) Run(img image.Image) (*Output, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty bounds", ErrInvalidImage)
	}
	if b.Dx() < p.opts.MinDimension || b.Dy() < p.opts.MinDimension {
		return nil, fmt.Errorf("%w: %dx%d, minimum edge %d",
			ErrImageTooSmall, b.Dx(), b.Dy(), p.opts.MinDimension)
	}

	base := resizeSquare(img, p.opts.Resolution)
	r, g, bl := splitChannels(base)

	out := &Output{}
	out.MeanR = planeMean(r)
	out.MeanG = planeMean(g)
	out.MeanB = planeMean(bl)

	lum := luminancePlane(r, g, bl)
	out.Gray = applyCLAHE(lum, p.opts.CLAHEBlockSize, p.opts.CLAHEClipLimit)
	out.NormR, out.NormG, out.NormB = normalizeLighting(r, g, bl)
	out.Edges = sobelEdges(out.Gray)
	out.Moments = computeMoments(out.Gray)
	out.Characteristics = deriveCharacteristics(out.Gray, out.Edges, out.Moments)

	return out, nil
}

func planeMean(p *Plane) float64 {
	if len(p.Pix) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range p.Pix {
		sum += v
	}
	return sum / float64(len(p.Pix))
}
