// Package fixtures builds synthetic camera frames for pipeline tests.
package fixtures

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Frame size used by the fixtures, matching the default capture size.
const (
	Width  = 640
	Height = 480
)

// PhoneBox is where PhoneFrame draws the phone. It matches the box of
// detector.Phone.
var PhoneBox = image.Rect(200, 150, 320, 380)

var (
	deskColor   = color.RGBA{R: 170, G: 150, B: 120, A: 255}
	phoneColor  = color.RGBA{R: 20, G: 20, B: 25, A: 255}
	screenColor = color.RGBA{R: 90, G: 140, B: 220, A: 255}
)

// DeskFrame returns an empty desk. The caller closes it.
func DeskFrame() *gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(deskColor.B), float64(deskColor.G), float64(deskColor.R), 0), Height, Width, gocv.MatTypeCV8UC3)
	return &mat
}

// PhoneFrame returns a desk with a phone held in PhoneBox. The caller
// closes it.
func PhoneFrame() *gocv.Mat {
	mat := DeskFrame()
	gocv.Rectangle(mat, PhoneBox, phoneColor, -1)
	screen := image.Rect(PhoneBox.Min.X+8, PhoneBox.Min.Y+16, PhoneBox.Max.X-8, PhoneBox.Max.Y-16)
	gocv.Rectangle(mat, screen, screenColor, -1)
	return mat
}

// Sequence returns n frames: the first present show the phone, the rest
// are empty desks. The caller closes them.
func Sequence(n, present int) []*gocv.Mat {
	frames := make([]*gocv.Mat, 0, n)
	for i := range n {
		if i < present {
			frames = append(frames, PhoneFrame())
		} else {
			frames = append(frames, DeskFrame())
		}
	}
	return frames
}

// Close releases every frame.
func Close(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
