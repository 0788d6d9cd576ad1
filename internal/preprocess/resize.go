package preprocess

import (
	"image"

	xdraw "golang.org/x/image/draw"

	"scrapweigh/pkg/colorutil"
)

// resizeSquare center-crops the source to a square and scales it to
// edge×edge. Crop-then-scale is applied unconditionally so repeated
// calls on identical pixels produce identical output regardless of the
// original aspect ratio.
func resizeSquare(src image.Image, edge int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	side := w
	if h < side {
		side = h
	}
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2
	crop := image.Rect(x0, y0, x0+side, y0+side)

	dst := image.NewRGBA(image.Rect(0, 0, edge, edge))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, crop, xdraw.Src, nil)
	return dst
}

// splitChannels decomposes an RGBA image into R, G, B planes (0-255).
func splitChannels(img *image.RGBA) (r, g, b *Plane) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	r = NewPlane(w, h)
	g = NewPlane(w, h)
	b = NewPlane(w, h)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			r.Set(x, y, float64(row[x*4]))
			g.Set(x, y, float64(row[x*4+1]))
			b.Set(x, y, float64(row[x*4+2]))
		}
	}
	return r, g, b
}

// luminancePlane computes the BT.601 luma plane from RGB planes.
func luminancePlane(r, g, b *Plane) *Plane {
	out := NewPlane(r.W, r.H)
	for i := range out.Pix {
		out.Pix[i] = colorutil.Luminance(r.Pix[i], g.Pix[i], b.Pix[i])
	}
	return out
}
