package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

// uniformImage returns a w×h image filled with a single gray level.
func uniformImage(w, h int, level uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{level, level, level, 255})
		}
	}
	return img
}

// objectImage returns a dark background with a bright centered square,
// a stand-in for a well-lit scrap piece on a plain surface.
func objectImage(w, h, objEdge int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{30, 30, 30, 255})
		}
	}
	x0 := (w - objEdge) / 2
	y0 := (h - objEdge) / 2
	for y := y0; y < y0+objEdge; y++ {
		for x := x0; x < x0+objEdge; x++ {
			img.Set(x, y, color.RGBA{210, 210, 210, 255})
		}
	}
	return img
}

func TestRunRejectsBadInput(t *testing.T) {
	p := New(DefaultOptions())

	_, err := p.Run(nil)
	require.ErrorIs(t, err, ErrInvalidImage)

	_, err = p.Run(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	require.ErrorIs(t, err, ErrInvalidImage)

	_, err = p.Run(uniformImage(10, 10, 128))
	require.ErrorIs(t, err, ErrImageTooSmall)
}

func TestRunDeterministic(t *testing.T) {
	p := New(DefaultOptions())
	img := objectImage(300, 200, 80)

	a, err := p.Run(img)
	require.NoError(t, err)
	b, err := p.Run(img)
	require.NoError(t, err)

	require.Equal(t, a.Gray.Pix, b.Gray.Pix)
	require.Equal(t, a.Edges.Pix, b.Edges.Pix)
	require.Equal(t, a.Characteristics, b.Characteristics)
	require.Equal(t, a.Moments, b.Moments)
}

func TestUniformGrayHasNoObject(t *testing.T) {
	p := New(DefaultOptions())
	out, err := p.Run(uniformImage(224, 224, 128))
	require.NoError(t, err)

	require.False(t, out.Characteristics.HasClearObject)
	require.False(t, out.Characteristics.IsRegularShape)
	require.InDelta(t, 0.0, out.Characteristics.EdgeDensity, 0.01)
}

func TestObjectImageCharacteristics(t *testing.T) {
	p := New(DefaultOptions())
	out, err := p.Run(objectImage(224, 224, 100))
	require.NoError(t, err)

	require.True(t, out.Characteristics.HasClearObject)
	require.Greater(t, out.Characteristics.EdgeDensity, 0.0)

	// A centered square's luminance centroid sits at the image center.
	require.InDelta(t, 111.5, out.Moments.Centroid.X, 8)
	require.InDelta(t, 111.5, out.Moments.Centroid.Y, 8)
}

func TestCLAHEStaysInRange(t *testing.T) {
	src := NewPlane(64, 64)
	for i := range src.Pix {
		src.Pix[i] = float64((i * 7) % 256)
	}
	out := applyCLAHE(src, 16, 2.0)
	for _, v := range out.Pix {
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 255.0)
	}
}

func TestSobelOnVerticalEdge(t *testing.T) {
	src := NewPlane(32, 32)
	for y := 0; y < 32; y++ {
		for x := 16; x < 32; x++ {
			src.Set(x, y, 255)
		}
	}
	edges := sobelEdges(src)

	// Strong response along the boundary, none in the flat regions.
	require.Greater(t, edges.At(16, 16), 200.0)
	require.Equal(t, 0.0, edges.At(5, 16))
	require.Equal(t, 0.0, edges.At(28, 16))
}

func TestMomentsOnFlatPlane(t *testing.T) {
	sm := computeMoments(NewPlane(16, 16))
	require.Equal(t, 0.0, sm.M00)
	require.Equal(t, 0.0, sm.Hu1)
}

func TestPackTensorLayouts(t *testing.T) {
	p := New(DefaultOptions())
	out, err := p.Run(objectImage(224, 224, 100))
	require.NoError(t, err)

	nhwc := out.PackTensor(TensorSpec{
		Name: "detector", Width: 224, Height: 224, Channels: 3,
		Layout: LayoutNHWC, Source: SourceNormalizedRGB,
	})
	require.Len(t, nhwc.Data, 224*224*3)

	gray := out.PackTensor(TensorSpec{
		Name: "shape", Width: 112, Height: 112, Channels: 1,
		Layout: LayoutNCHW, Source: SourceEqualizedGray,
	})
	require.Len(t, gray.Data, 112*112)
	for _, v := range gray.Data {
		require.GreaterOrEqual(t, v, float32(0))
		require.LessOrEqual(t, v, float32(1))
	}
}
