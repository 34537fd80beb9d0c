package frame

import (
	"image"
	"math/rand"
	"testing"
)

func TestFromRGBA_Luma(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Pix[0], img.Pix[1], img.Pix[2], img.Pix[3] = 255, 255, 255, 255
	img.Pix[4], img.Pix[5], img.Pix[6], img.Pix[7] = 0, 0, 0, 255
	f, err := FromRGBA(img)
	if err != nil {
		t.Fatalf("FromRGBA: %v", err)
	}
	if f.Pix[0] < 250 {
		t.Fatalf("white pixel luma too low: %d", f.Pix[0])
	}
	if f.Pix[1] != 0 {
		t.Fatalf("black pixel luma = %d, want 0", f.Pix[1])
	}
}

func TestNew_RejectsEmpty(t *testing.T) {
	if _, err := New(nil, 0, 0); err == nil {
		t.Fatal("expected error for zero-size frame")
	}
	if _, err := New(make([]uint8, 3), 2, 2); err == nil {
		t.Fatal("expected error for buffer size mismatch")
	}
}

func TestROI_ClampsToBounds(t *testing.T) {
	f := SyntheticScene(40, 30)
	r := f.ROI(image.Rect(-10, -10, 100, 100))
	if r.W != 40 || r.H != 30 {
		t.Fatalf("clamped ROI = %dx%d, want 40x30", r.W, r.H)
	}
	r = f.ROI(image.Rect(200, 200, 300, 300))
	if r.W != 1 || r.H != 1 {
		t.Fatalf("out-of-bounds ROI = %dx%d, want 1x1", r.W, r.H)
	}
}

func TestCenterROI_Half(t *testing.T) {
	f := SyntheticScene(40, 20)
	r := f.CenterROI(0.5)
	if r.W != 20 || r.H != 10 {
		t.Fatalf("center ROI = %dx%d, want 20x10", r.W, r.H)
	}
}

func TestDownsample_Dimensions(t *testing.T) {
	f := SyntheticScene(240, 108)
	d := f.Downsample(120, 54)
	if d.W != 120 || d.H != 54 {
		t.Fatalf("downsample = %dx%d, want 120x54", d.W, d.H)
	}
}

func TestDownsample_PreservesFlatValue(t *testing.T) {
	pix := make([]uint8, 64*64)
	for i := range pix {
		pix[i] = 100
	}
	f, _ := New(pix, 64, 64)
	d := f.Downsample(16, 16)
	for i, v := range d.Pix {
		if v != 100 {
			t.Fatalf("pixel %d = %d, want 100", i, v)
		}
	}
}

func TestSimulateZoom_PreservesDimensions(t *testing.T) {
	f := SyntheticScene(240, 108)
	for _, factor := range []float64{1.0, 0.99, 0.95, 0.5} {
		z := SimulateZoom(f, factor)
		if z.W != f.W || z.H != f.H {
			t.Fatalf("factor %.2f: got %dx%d, want %dx%d", factor, z.W, z.H, f.W, f.H)
		}
	}
}

func TestSimulateZoom_IdentityAtFull(t *testing.T) {
	f := SyntheticScene(120, 54)
	z := SimulateZoom(f, 1.0)
	for i := range f.Pix {
		if f.Pix[i] != z.Pix[i] {
			t.Fatalf("pixel %d changed at factor 1.0", i)
		}
	}
}

func TestAddNoise_StaysInRange(t *testing.T) {
	f := SyntheticScene(60, 30)
	rng := rand.New(rand.NewSource(1))
	n := AddNoise(f, 50, rng)
	if len(n.Pix) != len(f.Pix) {
		t.Fatalf("noise frame size mismatch")
	}
	diff := false
	for i := range n.Pix {
		if n.Pix[i] != f.Pix[i] {
			diff = true
			break
		}
	}
	if !diff {
		t.Fatal("noise did not perturb frame")
	}
}
