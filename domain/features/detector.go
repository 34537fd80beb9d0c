package features

import (
	"github.com/soocke/map-align-go/domain/frame"
)

// Keypoint is a detected local feature: position in base-frame coordinates,
// a response in [0,1] (arc contrast normalized by full intensity range), and
// a characteristic size in pixels that doubles per pyramid level.
type Keypoint struct {
	X, Y     int
	Response float64
	Size     float64
}

// DetectorConfig fixes the speed/recall trade-off. Few levels and a
// permissive threshold give a stable, cheap signal rather than maximum
// recall.
type DetectorConfig struct {
	Levels    int // pyramid levels, each halving resolution
	Threshold int // minimum intensity contrast for the segment test
}

// DefaultDetectorConfig matches the latency budget of per-frame prediction.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{Levels: 3, Threshold: 12}
}

// circle16 is the 16-point Bresenham circle of radius 3 used by the segment
// test, as (dx, dy) offsets in clockwise order.
var circle16 = [16][2]int{
	{0, -3}, {1, -3}, {2, -2}, {3, -1},
	{3, 0}, {3, 1}, {2, 2}, {1, 3},
	{0, 3}, {-1, 3}, {-2, 2}, {-3, 1},
	{-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
}

const (
	segmentArc   = 9 // contiguous circle points required for a corner
	baseKpSize   = 7 // characteristic size at level 0
	detectBorder = 3
)

// Detect runs the segment-test detector over a small image pyramid and
// returns keypoints in base-frame coordinates. Zero keypoints is a valid
// outcome. The function is pure: no state is retained between calls.
func Detect(f *frame.Frame, cfg DetectorConfig) []Keypoint {
	if f == nil || f.W <= 2*detectBorder || f.H <= 2*detectBorder {
		return nil
	}
	if cfg.Levels <= 0 {
		cfg = DefaultDetectorConfig()
	}
	var kps []Keypoint
	level := f
	for l := 0; l < cfg.Levels; l++ {
		if level.W <= 2*detectBorder || level.H <= 2*detectBorder {
			break
		}
		resp := levelResponses(level, cfg.Threshold)
		stride := 1 << l
		kps = appendLevelKeypoints(kps, resp, level.W, level.H, l, float64(baseKpSize*stride))
		if l+1 < cfg.Levels {
			level = level.Downsample(level.W/2, level.H/2)
		}
	}
	return kps
}

// levelResponses computes the segment-test response for every interior pixel
// of one pyramid level. Non-corners have response 0.
func levelResponses(f *frame.Frame, threshold int) []float64 {
	resp := make([]float64, f.W*f.H)
	for y := detectBorder; y < f.H-detectBorder; y++ {
		for x := detectBorder; x < f.W-detectBorder; x++ {
			c := int(f.Pix[y*f.W+x])
			var diffs [16]int
			for i, off := range circle16 {
				diffs[i] = int(f.Pix[(y+off[1])*f.W+(x+off[0])]) - c
			}
			resp[y*f.W+x] = segmentResponse(diffs, threshold)
		}
	}
	return resp
}

// segmentResponse returns a normalized corner response when at least
// segmentArc contiguous circle points are all brighter or all darker than
// the center by more than threshold, and 0 otherwise. The scan covers the
// circle twice to honor wrap-around arcs.
func segmentResponse(diffs [16]int, threshold int) float64 {
	best := 0
	for _, sign := range [2]int{1, -1} {
		run := 0
		sum := 0
		bestSum := 0
		for i := 0; i < 32; i++ {
			d := diffs[i%16] * sign
			if d > threshold {
				run++
				sum += d - threshold
				if run >= segmentArc && sum > bestSum {
					bestSum = sum
				}
				if run == 16 {
					break
				}
			} else {
				run = 0
				sum = 0
			}
		}
		if bestSum > best {
			best = bestSum
		}
	}
	if best == 0 {
		return 0
	}
	// Normalize by the maximum possible arc contrast so responses land in a
	// stable, comparable range across frames.
	return float64(best) / float64(16*255)
}

// appendLevelKeypoints applies 3x3 non-max suppression to a response grid and
// appends surviving keypoints, mapping coordinates back to the base level.
func appendLevelKeypoints(kps []Keypoint, resp []float64, w, h, level int, size float64) []Keypoint {
	for y := detectBorder; y < h-detectBorder; y++ {
		for x := detectBorder; x < w-detectBorder; x++ {
			r := resp[y*w+x]
			if r == 0 {
				continue
			}
			local := true
			for dy := -1; dy <= 1 && local; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					if resp[(y+dy)*w+(x+dx)] > r {
						local = false
						break
					}
				}
			}
			if local {
				kps = append(kps, Keypoint{X: x << level, Y: y << level, Response: r, Size: size})
			}
		}
	}
	return kps
}
