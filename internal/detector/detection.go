package detector

// COCO class used when no target is configured.
const (
	CellPhoneClassID = 67
	CellPhoneLabel   = "cell phone"
)

// Box is an axis-aligned bounding box in pixel coordinates.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Area returns the box area, or zero for a degenerate box.
func (b Box) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Center returns the midpoint of the box.
func (b Box) Center() (x, y float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Detection is one candidate object reported by the classifier.
type Detection struct {
	Box        Box     `json:"bbox"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
	Label      string  `json:"label"`
	TrackID    *int    `json:"track_id,omitempty"`
}

// FilterClass returns the detections whose class matches classID.
func FilterClass(dets []Detection, classID int) []Detection {
	var out []Detection
	for _, d := range dets {
		if d.ClassID == classID {
			out = append(out, d)
		}
	}
	return out
}

// Best returns the highest-confidence detection.
func Best(dets []Detection) (Detection, bool) {
	if len(dets) == 0 {
		return Detection{}, false
	}
	best := dets[0]
	for _, d := range dets[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}
	return best, true
}

func aboveConfidence(dets []Detection, min float64) []Detection {
	var out []Detection
	for _, d := range dets {
		if d.Confidence >= min {
			out = append(out, d)
		}
	}
	return out
}

// wireDetection is the JSON shape both the sidecar and the HTTP service
// return: bbox as [x1, y1, x2, y2].
type wireDetection struct {
	BBox       []float64 `json:"bbox"`
	Confidence float64   `json:"confidence"`
	ClassID    int       `json:"class_id"`
	Class      string    `json:"class"`
	Label      string    `json:"label"`
	TrackID    *int      `json:"track_id,omitempty"`
}

func (w wireDetection) toDetection() Detection {
	d := Detection{
		Confidence: w.Confidence,
		ClassID:    w.ClassID,
		Label:      w.Label,
		TrackID:    w.TrackID,
	}
	if d.Label == "" {
		d.Label = w.Class
	}
	if len(w.BBox) == 4 {
		d.Box = Box{X1: w.BBox[0], Y1: w.BBox[1], X2: w.BBox[2], Y2: w.BBox[3]}
	}
	return d
}

func fromWire(ws []wireDetection) []Detection {
	out := make([]Detection, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toDetection())
	}
	return out
}
