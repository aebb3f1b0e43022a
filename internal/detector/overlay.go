package detector

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	boxColor     = color.RGBA{R: 255, G: 80, B: 80, A: 255}
	bridgedColor = color.RGBA{R: 255, G: 200, B: 0, A: 255}
	statusColor  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
)

// Draw annotates frame in place with detection boxes and a status line.
// Bridged detections are drawn in a different color.
func Draw(frame *gocv.Mat, dets []Detection, bridged bool, status string) {
	c := boxColor
	if bridged {
		c = bridgedColor
	}

	for _, d := range dets {
		rect := image.Rect(int(d.Box.X1), int(d.Box.Y1), int(d.Box.X2), int(d.Box.Y2))
		gocv.Rectangle(frame, rect, c, 2)

		label := fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
		pos := image.Pt(rect.Min.X, rect.Min.Y-6)
		if pos.Y < 12 {
			pos.Y = rect.Min.Y + 14
		}
		gocv.PutText(frame, label, pos, gocv.FontHersheySimplex, 0.5, c, 1)
	}

	if status != "" {
		gocv.PutText(frame, status, image.Pt(10, 24), gocv.FontHersheySimplex, 0.6, statusColor, 2)
	}
}
