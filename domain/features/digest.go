package features

import (
	"math"

	"github.com/soocke/map-align-go/domain/frame"
)

// Digest summarizes the scale-relevant statistics of one frame region. It is
// computed fresh per frame and never mutated.
type Digest struct {
	FeatureDensity float64 // keypoints per analyzed pixel
	MeanResponse   float64
	ResponseStd    float64
	MeanSize       float64
	GradientEnergy float64 // mean Sobel magnitude
	KeypointCount  int
}

// ExtractDigest detects keypoints on f and folds them, together with the
// gradient energy, into a Digest. A frame with zero keypoints yields zero
// statistics, not an error.
func ExtractDigest(f *frame.Frame, cfg DetectorConfig) Digest {
	if f == nil || f.W == 0 || f.H == 0 {
		return Digest{}
	}
	kps := Detect(f, cfg)
	d := Digest{
		KeypointCount:  len(kps),
		FeatureDensity: float64(len(kps)) / float64(f.W*f.H),
		GradientEnergy: GradientEnergy(f),
	}
	if len(kps) == 0 {
		return d
	}
	var sumR, sumR2, sumS float64
	for _, kp := range kps {
		sumR += kp.Response
		sumR2 += kp.Response * kp.Response
		sumS += kp.Size
	}
	n := float64(len(kps))
	d.MeanResponse = sumR / n
	d.MeanSize = sumS / n
	varR := sumR2/n - d.MeanResponse*d.MeanResponse
	if varR > 0 {
		d.ResponseStd = math.Sqrt(varR)
	}
	return d
}

// GradientEnergy returns the mean Sobel gradient magnitude over the interior
// of f: a proxy for texture/detail richness.
func GradientEnergy(f *frame.Frame) float64 {
	if f == nil || f.W < 3 || f.H < 3 {
		return 0
	}
	var sum float64
	count := 0
	for y := 1; y < f.H-1; y++ {
		for x := 1; x < f.W-1; x++ {
			gx, gy := sobelAt(f, x, y)
			sum += math.Sqrt(gx*gx + gy*gy)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// sobelAt applies the 3x3 Sobel kernels at (x, y). Callers guarantee the
// point is interior.
func sobelAt(f *frame.Frame, x, y int) (gx, gy float64) {
	w := f.W
	p := func(dx, dy int) float64 { return float64(f.Pix[(y+dy)*w+(x+dx)]) }
	gx = -p(-1, -1) - 2*p(-1, 0) - p(-1, 1) + p(1, -1) + 2*p(1, 0) + p(1, 1)
	gy = -p(-1, -1) - 2*p(0, -1) - p(1, -1) + p(-1, 1) + 2*p(0, 1) + p(1, 1)
	return gx, gy
}
