package capture

import (
	"image"
	"sync"
)

// Reusable frame pool to cut long-lived heap churn from per-capture RGBA
// allocations. The capture library still allocates its own result; we copy
// into a pooled buffer so slow consumers do not pin many distinct backing
// slices. Consumers return frames with RecycleFrame when done; skipping the
// recycle degrades gracefully to plain allocation.

var framePool sync.Pool // stores *image.RGBA

// AcquireFrame returns a reusable RGBA image sized to rect, with Pix length
// exactly rect area * 4 and Stride width*4.
func AcquireFrame(rect image.Rectangle) *image.RGBA {
	w, h := rect.Dx(), rect.Dy()
	if w <= 0 || h <= 0 {
		return &image.RGBA{Rect: rect}
	}
	needed := w * h * 4
	var img *image.RGBA
	if v := framePool.Get(); v != nil {
		img = v.(*image.RGBA)
	}
	if img == nil || cap(img.Pix) < needed {
		return &image.RGBA{Pix: make([]byte, needed), Stride: w * 4, Rect: rect}
	}
	img.Stride = w * 4
	img.Rect = rect
	img.Pix = img.Pix[:needed]
	return img
}

// RecycleFrame returns a frame to the pool. The caller must not touch the
// frame afterwards.
func RecycleFrame(img *image.RGBA) {
	if img == nil || img.Pix == nil {
		return
	}
	framePool.Put(img)
}

// copyIntoPooled clones src into a pooled buffer so the original can be
// released to the capture library immediately.
func copyIntoPooled(src *image.RGBA) *image.RGBA {
	if src == nil {
		return nil
	}
	dst := AcquireFrame(src.Rect)
	if len(dst.Pix) == len(src.Pix) && dst.Stride == src.Stride {
		copy(dst.Pix, src.Pix)
		return dst
	}
	// Stride mismatch: copy row by row.
	w := src.Rect.Dx()
	for y := 0; y < src.Rect.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w*4], src.Pix[y*src.Stride:y*src.Stride+w*4])
	}
	return dst
}
