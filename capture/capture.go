// Package capture adapts the OS screen-capture collaborator: it produces raw
// RGBA frames with sequence numbers and exposes the freshest snapshot to the
// analysis pipeline. Pixel values are delivered losslessly.
package capture

import (
	"image"

	"github.com/vova616/screenshot"
)

// Grab returns a capture of the primary screen.
func Grab() (*image.RGBA, error) {
	return screenshot.CaptureScreen()
}

// GrabSelection captures the given screen rectangle.
func GrabSelection(sel image.Rectangle) (*image.RGBA, error) {
	return screenshot.CaptureRect(sel)
}
