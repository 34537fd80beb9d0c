package frame

import (
	"image"
	"math"
	"math/rand"

	"github.com/disintegration/imaging"
)

// SimulateZoom applies a known synthetic zoom-in: center-crop by factor and
// resize back to the original dimensions. factor is clamped to (0, 1]; 1.0
// returns a copy. Used to build calibration corpora with known zoom deltas.
func SimulateZoom(f *Frame, factor float64) *Frame {
	if factor >= 1 {
		return f.Clone()
	}
	if factor <= 0 {
		factor = 0.01
	}
	cw := int(float64(f.W) * factor)
	ch := int(float64(f.H) * factor)
	if cw < 2 {
		cw = 2
	}
	if ch < 2 {
		ch = 2
	}
	x0 := (f.W - cw) / 2
	y0 := (f.H - ch) / 2
	cropped := f.ROI(image.Rect(x0, y0, x0+cw, y0+ch))
	resized := imaging.Resize(cropped.Image(), f.W, f.H, imaging.Linear)
	out, err := FromImage(resized)
	if err != nil {
		return f.Clone()
	}
	return out
}

// AddNoise returns a copy of f perturbed by Gaussian noise with the given
// standard deviation, clamped to [0, 255].
func AddNoise(f *Frame, sigma float64, rng *rand.Rand) *Frame {
	out := f.Clone()
	for i := range out.Pix {
		v := float64(out.Pix[i]) + rng.NormFloat64()*sigma
		if v < 0 {
			v = 0
		} else if v > 255 {
			v = 255
		}
		out.Pix[i] = uint8(v)
	}
	return out
}

// SyntheticScene builds a game-like test frame: low-frequency terrain bands,
// mid-frequency block structures, and high-frequency grid lines. Useful for
// calibration when no captured reference frame is available yet, and for
// tests.
func SyntheticScene(w, h int) *Frame {
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		fy := float64(y) / float64(h) * 4 * math.Pi
		for x := 0; x < w; x++ {
			fx := float64(x) / float64(w) * 4 * math.Pi
			v := 90.0
			v += 50 * math.Sin(fx) * math.Cos(fy)
			v += 30 * math.Sin(5*fx) * math.Cos(5*fy)
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			pix[y*w+x] = uint8(v)
		}
	}
	f := &Frame{Pix: pix, W: w, H: h}
	// Block structures.
	bw := w / 12
	for x0 := w / 20; x0+bw/2 < w; x0 += w / 6 {
		for y := h / 4; y < h/2 && y < h; y++ {
			for x := x0; x < x0+bw/2 && x < w; x++ {
				f.Pix[y*w+x] = 200
			}
		}
	}
	// Grid lines.
	step := w / 16
	if step < 2 {
		step = 2
	}
	for x := 0; x < w; x += step {
		for y := 0; y < h; y++ {
			f.Pix[y*w+x] = 220
		}
	}
	for y := 0; y < h; y += step {
		for x := 0; x < w; x++ {
			f.Pix[y*w+x] = 220
		}
	}
	return f
}
