// Package events turns noisy per-frame detections into debounced
// picked_up and put_down events.
//
// A Detector is owned by a single goroutine: ProcessFrame, the Reset methods
// and Stats must not be called concurrently.
package events

import (
	"errors"
	"fmt"
	"time"
)

// Event is the outcome of processing one frame.
type Event int

const (
	EventNone Event = iota
	EventPickedUp
	EventPutDown
)

// String returns the wire name of the event.
func (e Event) String() string {
	switch e {
	case EventPickedUp:
		return "picked_up"
	case EventPutDown:
		return "put_down"
	default:
		return "none"
	}
}

// ParseEvent is the inverse of Event.String for the two real events.
func ParseEvent(s string) (Event, error) {
	switch s {
	case "picked_up":
		return EventPickedUp, nil
	case "put_down":
		return EventPutDown, nil
	}
	return EventNone, fmt.Errorf("unknown event %q", s)
}

// Thresholds controls how much evidence confirms a transition.
type Thresholds struct {
	// Pickup is the number of consecutive present frames that confirm a pickup.
	Pickup int
	// Putdown is the number of consecutive absent frames that confirm a putdown.
	Putdown int
	// Cooldown is the minimum spacing between pickup events.
	Cooldown time.Duration
}

// DefaultThresholds returns pickup 3, putdown 15, cooldown 10s.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Pickup:   3,
		Putdown:  15,
		Cooldown: 10 * time.Second,
	}
}

// Validate rejects thresholds that would make debouncing meaningless.
func (t Thresholds) Validate() error {
	var errs []error
	if t.Pickup <= 0 {
		errs = append(errs, fmt.Errorf("pickup threshold must be positive, got %d", t.Pickup))
	}
	if t.Putdown <= 0 {
		errs = append(errs, fmt.Errorf("putdown threshold must be positive, got %d", t.Putdown))
	}
	if t.Pickup > 0 && t.Putdown > 0 && t.Putdown < t.Pickup {
		errs = append(errs, fmt.Errorf("putdown threshold must be at least the pickup threshold, got putdown %d pickup %d", t.Putdown, t.Pickup))
	}
	if t.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("cooldown must not be negative, got %s", t.Cooldown))
	}
	return errors.Join(errs...)
}

// Sensitivity is the pair of confidence thresholds handed to the classifier.
type Sensitivity struct {
	// Fresh applies when nothing is being tracked.
	Fresh float64
	// Tracking applies while a recent detection is still held.
	Tracking float64
}

// Stats is a read-only snapshot of detector state.
type Stats struct {
	PickupCount        int  `json:"pickup_count"`
	Visible            bool `json:"visible"`
	HistoryLength      int  `json:"history_length"`
	RecentPresentCount int  `json:"recent_present_count"`
	Tracking           bool `json:"tracking"`
}
