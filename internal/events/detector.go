package events

import (
	"fmt"
	"time"

	"github.com/ayusman/judgy/internal/detector"
	"github.com/ayusman/judgy/internal/timeutil"
)

// HistorySize is the capacity of the presence history ring.
const HistorySize = 30

// Options configures a Detector.
type Options struct {
	Clock timeutil.Clock

	// PersistFrames is how many consecutive empty frames a previous
	// detection may bridge. Zero disables bridging.
	PersistFrames int

	// Decay multiplies the held confidence once per bridged frame.
	Decay float64

	Sensitivity Sensitivity
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		Clock:         timeutil.RealClock{},
		PersistFrames: 3,
		Decay:         0.9,
		Sensitivity:   Sensitivity{Fresh: 0.5, Tracking: 0.3},
	}
}

func (o Options) validate() error {
	if o.PersistFrames < 0 {
		return fmt.Errorf("persist frames must not be negative, got %d", o.PersistFrames)
	}
	if o.Decay <= 0 || o.Decay > 1 {
		return fmt.Errorf("decay must be in (0, 1], got %g", o.Decay)
	}
	s := o.Sensitivity
	if s.Fresh < 0 || s.Fresh > 1 || s.Tracking < 0 || s.Tracking > 1 {
		return fmt.Errorf("sensitivity must be in [0, 1], got fresh %g tracking %g", s.Fresh, s.Tracking)
	}
	return nil
}

// Detector debounces per-frame presence into events.
type Detector struct {
	clock       timeutil.Clock
	persist     int
	decay       float64
	sensitivity Sensitivity

	visible     bool
	present     int
	absent      int
	pickupCount int
	lastEvent   time.Time

	lastKnown *detector.Detection
	bridged   int
	current   bool

	history ring
}

// New creates a Detector. A nil Clock means the real clock.
func New(opts Options) (*Detector, error) {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Detector{
		clock:       opts.Clock,
		persist:     opts.PersistFrames,
		decay:       opts.Decay,
		sensitivity: opts.Sensitivity,
		history:     newRing(HistorySize),
	}, nil
}

// ProcessFrame consumes the target-class detections for one frame and
// returns at most one event. dets may be empty; a failed classifier call
// should be passed as nil.
func (d *Detector) ProcessFrame(dets []detector.Detection, th Thresholds) Event {
	present, bridged := d.observe(dets)
	d.history.push(present)

	if present {
		d.present++
		d.absent = 0
	} else {
		d.absent++
	}

	now := d.clock.Now()

	if d.present >= th.Pickup && !d.visible {
		d.visible = true
		d.absent = 0
		if d.cooledDown(now, th.Cooldown) {
			return d.firePickup(now)
		}
		return EventNone
	}

	// Sustained use counts again once per cooldown window. A bridged frame
	// only holds visibility; re-firing needs a real detection.
	if d.visible && present && !bridged && d.cooledDown(now, th.Cooldown) {
		return d.firePickup(now)
	}

	if d.absent >= th.Putdown && d.visible {
		d.visible = false
		d.present = 0
		d.lastEvent = time.Time{}
		return EventPutDown
	}

	return EventNone
}

// observe applies detection persistence and reports whether the frame
// counts as present and whether that presence was synthesized.
func (d *Detector) observe(dets []detector.Detection) (present, bridged bool) {
	if best, ok := detector.Best(dets); ok {
		d.lastKnown = &best
		d.bridged = 0
		d.current = true
		return true, false
	}

	if d.lastKnown != nil && d.bridged < d.persist {
		d.bridged++
		d.lastKnown.Confidence *= d.decay
		d.current = true
		return true, true
	}

	d.lastKnown = nil
	d.bridged = 0
	d.current = false
	return false, false
}

func (d *Detector) cooledDown(now time.Time, cooldown time.Duration) bool {
	return d.lastEvent.IsZero() || now.Sub(d.lastEvent) >= cooldown
}

func (d *Detector) firePickup(now time.Time) Event {
	d.pickupCount++
	d.lastEvent = now
	return EventPickedUp
}

// Confidence returns the threshold the classifier should use for the next
// frame: the lower tracking value while a detection is held, otherwise the
// stricter fresh value.
func (d *Detector) Confidence() float64 {
	if d.lastKnown != nil {
		return d.sensitivity.Tracking
	}
	return d.sensitivity.Fresh
}

// Current returns the detection that made the last frame present, which may
// be a bridged copy with decayed confidence.
func (d *Detector) Current() (det detector.Detection, bridged bool, ok bool) {
	if !d.current || d.lastKnown == nil {
		return detector.Detection{}, false, false
	}
	return *d.lastKnown, d.bridged > 0, true
}

// Stats returns a snapshot without modifying state.
func (d *Detector) Stats() Stats {
	return Stats{
		PickupCount:        d.pickupCount,
		Visible:            d.visible,
		HistoryLength:      d.history.len(),
		RecentPresentCount: d.history.count(),
		Tracking:           d.lastKnown != nil,
	}
}

// ResetCount zeroes the pickup counter only.
func (d *Detector) ResetCount() {
	d.pickupCount = 0
}

// ResetTracking clears debounce, persistence and cooldown state so a paused
// session does not produce a stale event on resume. The pickup count is kept.
func (d *Detector) ResetTracking() {
	d.visible = false
	d.present = 0
	d.absent = 0
	d.lastEvent = time.Time{}
	d.lastKnown = nil
	d.bridged = 0
	d.current = false
	d.history.clear()
}

// Reset returns the detector to its freshly constructed state.
func (d *Detector) Reset() {
	d.ResetTracking()
	d.ResetCount()
}
