package features

import (
	"testing"

	"github.com/soocke/map-align-go/domain/frame"
)

func flatFrame(w, h int, v uint8) *frame.Frame {
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = v
	}
	f, _ := frame.New(pix, w, h)
	return f
}

// checkerFrame alternates high/low blocks. Dense gradient content, but its
// X-junctions are not segment-test corners (no 9-point contiguous arc).
func checkerFrame(w, h, block int) *frame.Frame {
	pix := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if ((x/block)+(y/block))%2 == 0 {
				pix[y*w+x] = 220
			} else {
				pix[y*w+x] = 30
			}
		}
	}
	f, _ := frame.New(pix, w, h)
	return f
}

// blockFrame scatters isolated bright squares on a dark background. Each
// square corner is an L-junction with a long darker arc, the shape the
// segment test is built to fire on.
func blockFrame(w, h, block, spacing int) *frame.Frame {
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = 30
	}
	for y0 := spacing; y0+block < h; y0 += block + spacing {
		for x0 := spacing; x0+block < w; x0 += block + spacing {
			for y := y0; y < y0+block; y++ {
				for x := x0; x < x0+block; x++ {
					pix[y*w+x] = 220
				}
			}
		}
	}
	f, _ := frame.New(pix, w, h)
	return f
}

func TestDetect_FlatFrameHasNoKeypoints(t *testing.T) {
	kps := Detect(flatFrame(120, 60, 128), DefaultDetectorConfig())
	if len(kps) != 0 {
		t.Fatalf("flat frame produced %d keypoints, want 0", len(kps))
	}
}

func TestDetect_BlockCornersProduceKeypoints(t *testing.T) {
	kps := Detect(blockFrame(120, 60, 10, 10), DefaultDetectorConfig())
	if len(kps) == 0 {
		t.Fatal("block corners produced no keypoints")
	}
	for _, kp := range kps {
		if kp.Response <= 0 || kp.Response > 1 {
			t.Fatalf("response %f outside (0,1]", kp.Response)
		}
		if kp.X < 0 || kp.X >= 120 || kp.Y < 0 || kp.Y >= 60 {
			t.Fatalf("keypoint (%d,%d) outside base frame", kp.X, kp.Y)
		}
	}
}

func TestDetect_StructuredSceneProducesKeypoints(t *testing.T) {
	kps := Detect(frame.SyntheticScene(960, 432), DefaultDetectorConfig())
	if len(kps) == 0 {
		t.Fatal("structured scene produced no keypoints")
	}
}

// Keypoint sizes follow the pyramid: 7 at the base level, doubling per level.
func TestDetect_SizesFollowPyramidLevels(t *testing.T) {
	kps := Detect(blockFrame(240, 120, 12, 12), DetectorConfig{Levels: 3, Threshold: 12})
	if len(kps) == 0 {
		t.Fatal("no keypoints detected")
	}
	allowed := map[float64]bool{7: true, 14: true, 28: true}
	for _, kp := range kps {
		if !allowed[kp.Size] {
			t.Fatalf("keypoint size %f not in {7, 14, 28}", kp.Size)
		}
	}
}

func TestExtractDigest_ZeroKeypointsDefaults(t *testing.T) {
	d := ExtractDigest(flatFrame(120, 60, 128), DefaultDetectorConfig())
	if d.KeypointCount != 0 || d.FeatureDensity != 0 {
		t.Fatalf("flat frame digest has features: %+v", d)
	}
	if d.MeanResponse != 0 || d.ResponseStd != 0 || d.MeanSize != 0 {
		t.Fatalf("zero-keypoint statistics not zeroed: %+v", d)
	}
	if d.GradientEnergy != 0 {
		t.Fatalf("flat frame gradient energy = %f, want 0", d.GradientEnergy)
	}
}

func TestExtractDigest_TexturedFrame(t *testing.T) {
	d := ExtractDigest(blockFrame(120, 60, 10, 10), DefaultDetectorConfig())
	if d.KeypointCount == 0 {
		t.Fatal("textured frame digest has no keypoints")
	}
	if d.FeatureDensity <= 0 {
		t.Fatalf("feature density = %f, want > 0", d.FeatureDensity)
	}
	if d.MeanSize < 7 {
		t.Fatalf("mean size = %f, want >= base size 7", d.MeanSize)
	}
	if d.GradientEnergy <= 0 {
		t.Fatalf("gradient energy = %f, want > 0", d.GradientEnergy)
	}
}

func TestGradientEnergy_OrdersByTexture(t *testing.T) {
	low := GradientEnergy(flatFrame(80, 40, 100))
	high := GradientEnergy(checkerFrame(80, 40, 4))
	if low >= high {
		t.Fatalf("gradient energy flat=%f >= textured=%f", low, high)
	}
}
