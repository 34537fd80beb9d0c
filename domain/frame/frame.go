package frame

import (
	"errors"
	"image"
	"math"
)

// Frame is a single-channel intensity grid, row-major, one byte per sample.
// Frames are treated as immutable once built; operations return new frames.
type Frame struct {
	Pix []uint8
	W   int
	H   int
}

// ErrEmptyFrame is returned when a frame with zero area is constructed.
var ErrEmptyFrame = errors.New("frame: zero-size frame")

// New builds a frame that takes ownership of pix. len(pix) must be w*h.
func New(pix []uint8, w, h int) (*Frame, error) {
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyFrame
	}
	if len(pix) != w*h {
		return nil, errors.New("frame: pixel buffer size mismatch")
	}
	return &Frame{Pix: pix, W: w, H: h}, nil
}

// FromRGBA converts an RGBA image to an intensity frame using integer luma
// weights (77, 150, 29 out of 256).
func FromRGBA(img *image.RGBA) (*Frame, error) {
	if img == nil {
		return nil, ErrEmptyFrame
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyFrame
	}
	pix := make([]uint8, w*h)
	idx := 0
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			i := x * 4
			r, g, bl := row[i], row[i+1], row[i+2]
			pix[idx] = uint8((77*uint32(r) + 150*uint32(g) + 29*uint32(bl)) >> 8)
			idx++
		}
	}
	return &Frame{Pix: pix, W: w, H: h}, nil
}

// FromImage converts any image to an intensity frame via the standard color
// model (used on decode paths; capture paths use FromRGBA).
func FromImage(img image.Image) (*Frame, error) {
	if img == nil {
		return nil, ErrEmptyFrame
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyFrame
	}
	pix := make([]uint8, w*h)
	idx := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			pix[idx] = uint8((77*(r>>8) + 150*(g>>8) + 29*(bl>>8)) >> 8)
			idx++
		}
	}
	return &Frame{Pix: pix, W: w, H: h}, nil
}

// Image returns a *image.Gray view backed by a copy of the frame pixels.
func (f *Frame) Image() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, f.W, f.H))
	copy(out.Pix, f.Pix)
	return out
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	pix := make([]uint8, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Pix: pix, W: f.W, H: f.H}
}

// ROI copies the sub-window r (clamped to frame bounds, at least 1x1) into a
// new frame.
func (f *Frame) ROI(r image.Rectangle) *Frame {
	r = r.Intersect(image.Rect(0, 0, f.W, f.H))
	if r.Dx() < 1 || r.Dy() < 1 {
		r = image.Rect(0, 0, 1, 1)
	}
	w, h := r.Dx(), r.Dy()
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		copy(pix[y*w:(y+1)*w], f.Pix[(r.Min.Y+y)*f.W+r.Min.X:(r.Min.Y+y)*f.W+r.Min.X+w])
	}
	return &Frame{Pix: pix, W: w, H: h}
}

// CenterROI returns the central region covering frac of each axis.
func (f *Frame) CenterROI(frac float64) *Frame {
	if frac <= 0 || frac >= 1 {
		return f.Clone()
	}
	w := int(float64(f.W) * frac)
	h := int(float64(f.H) * frac)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	x0 := (f.W - w) / 2
	y0 := (f.H - h) / 2
	return f.ROI(image.Rect(x0, y0, x0+w, y0+h))
}

// Downsample resamples the frame to w x h using bilinear interpolation.
// Upsampling is allowed but not the intended use.
func (f *Frame) Downsample(w, h int) *Frame {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if w == f.W && h == f.H {
		return f.Clone()
	}
	pix := make([]uint8, w*h)
	fx := float64(f.W) / float64(w)
	fy := float64(f.H) / float64(h)
	for y := 0; y < h; y++ {
		ys := (float64(y)+0.5)*fy - 0.5
		if ys < 0 {
			ys = 0
		} else if ys > float64(f.H-1) {
			ys = float64(f.H - 1)
		}
		y0 := int(math.Floor(ys))
		y1 := y0 + 1
		if y1 >= f.H {
			y1 = f.H - 1
		}
		dy := ys - float64(y0)
		for x := 0; x < w; x++ {
			xs := (float64(x)+0.5)*fx - 0.5
			if xs < 0 {
				xs = 0
			} else if xs > float64(f.W-1) {
				xs = float64(f.W - 1)
			}
			x0 := int(math.Floor(xs))
			x1 := x0 + 1
			if x1 >= f.W {
				x1 = f.W - 1
			}
			dx := xs - float64(x0)
			g00 := float64(f.Pix[y0*f.W+x0])
			g10 := float64(f.Pix[y0*f.W+x1])
			g01 := float64(f.Pix[y1*f.W+x0])
			g11 := float64(f.Pix[y1*f.W+x1])
			top := g00*(1-dx) + g10*dx
			bottom := g01*(1-dx) + g11*dx
			pix[y*w+x] = uint8(top*(1-dy) + bottom*dy + 0.5)
		}
	}
	return &Frame{Pix: pix, W: w, H: h}
}
