// Package session holds the caller-owned monitoring state: whether the
// robot is watching, how many times it has scolded, and how long the
// current object-free streak has lasted.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/judgy/internal/events"
	"github.com/ayusman/judgy/internal/timeutil"
)

// Button labels for the monitoring toggle.
const (
	ButtonStart    = "Start Monitoring"
	ButtonContinue = "Continue Monitoring"
	ButtonStop     = "Stop Monitoring"
)

// Status is the snapshot served to the UI.
type Status struct {
	StatusText         string  `json:"status_text"`
	Monitoring         bool    `json:"is_monitoring"`
	Visible            bool    `json:"visible"`
	PickupCount        int     `json:"pickup_count"`
	TotalShames        int     `json:"total_shames"`
	CurrentStreak      string  `json:"current_streak"`
	CurrentStreakSecs  float64 `json:"current_streak_seconds"`
	LongestStreak      string  `json:"longest_streak"`
	LongestStreakSecs  float64 `json:"longest_streak_seconds"`
	ButtonText         string  `json:"button_text"`
	HasPreviousSession bool    `json:"has_previous_session"`
	PraiseEnabled      bool    `json:"praise_enabled"`
	Day                string  `json:"day"`
}

// State is safe for concurrent use.
type State struct {
	clock timeutil.Clock
	label string

	mu          sync.Mutex
	monitoring  bool
	praise      bool
	hasPrevious bool
	totalShames int
	longest     time.Duration
	streakStart time.Time
	frozen      time.Duration
	day         string
}

// New creates an idle session. label names the watched object in status
// text, e.g. "cell phone".
func New(clock timeutil.Clock, label string) *State {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if label == "" {
		label = "object"
	}
	return &State{
		clock:  clock,
		label:  label,
		praise: true,
		day:    dayOf(clock.Now()),
	}
}

// Start begins monitoring. A fresh start, or a start with nothing to
// continue, clears the totals and reports that the pickup count should be
// reset too. Continuing resumes the streak that was frozen by Stop.
func (s *State) Start(fresh bool) (resetCount bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.monitoring = true
	s.day = dayOf(now)

	if fresh || !s.hasPrevious {
		s.totalShames = 0
		s.longest = 0
		s.streakStart = now
		s.frozen = 0
		s.hasPrevious = false
		return true
	}

	s.streakStart = now.Add(-s.frozen)
	return false
}

// Stop pauses monitoring and freezes the current streak.
func (s *State) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.monitoring {
		return
	}
	if s.streakStart.IsZero() {
		s.frozen = 0
	} else {
		s.frozen = s.clock.Since(s.streakStart)
	}
	s.hasPrevious = true
	s.monitoring = false
}

// Monitoring reports whether frames should be processed.
func (s *State) Monitoring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitoring
}

// RecordPickup ends the current streak and returns the new shame total.
func (s *State) RecordPickup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalShames++
	if !s.streakStart.IsZero() {
		if d := s.clock.Since(s.streakStart); d > s.longest {
			s.longest = d
		}
	}
	s.streakStart = time.Time{}
	return s.totalShames
}

// RecordPutdown starts a new streak.
func (s *State) RecordPutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streakStart = s.clock.Now()
}

// Reset clears every statistic and forgets the previous session.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalShames = 0
	s.longest = 0
	s.streakStart = time.Time{}
	s.frozen = 0
	s.hasPrevious = false
}

// RollDay reports whether the local date changed since the last call or
// Start. Callers reset the daily pickup count when it returns true.
func (s *State) RollDay() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := dayOf(s.clock.Now())
	if today == s.day {
		return false
	}
	s.day = today
	return true
}

// SetPraise enables or disables reactions to put_down events.
func (s *State) SetPraise(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.praise = enabled
}

// Praise reports whether put_down events get a reaction.
func (s *State) Praise() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.praise
}

// ButtonText returns the label for the monitoring toggle.
func (s *State) ButtonText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buttonText()
}

func (s *State) buttonText() string {
	switch {
	case s.monitoring:
		return ButtonStop
	case s.hasPrevious:
		return ButtonContinue
	default:
		return ButtonStart
	}
}

// Snapshot combines session state with a detector snapshot.
func (s *State) Snapshot(stats events.Stats) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current time.Duration
	switch {
	case !s.monitoring:
		current = s.frozen
	case !s.streakStart.IsZero():
		current = s.clock.Since(s.streakStart)
	}

	var text string
	switch {
	case !s.monitoring:
		text = "Not monitoring"
	case stats.Visible:
		text = strings.ToUpper(s.label) + " DETECTED!"
	default:
		text = capitalize(s.label) + "-free"
	}

	return Status{
		StatusText:         text,
		Monitoring:         s.monitoring,
		Visible:            stats.Visible,
		PickupCount:        stats.PickupCount,
		TotalShames:        s.totalShames,
		CurrentStreak:      FormatDuration(current),
		CurrentStreakSecs:  current.Seconds(),
		LongestStreak:      FormatDuration(s.longest),
		LongestStreakSecs:  s.longest.Seconds(),
		ButtonText:         s.buttonText(),
		HasPreviousSession: s.hasPrevious,
		PraiseEnabled:      s.praise,
		Day:                s.day,
	}
}

// FormatDuration renders d as "42s", "5m" or "1h30m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm", secs/60)
	default:
		return fmt.Sprintf("%dh%dm", secs/3600, (secs%3600)/60)
	}
}

func dayOf(t time.Time) string {
	return t.Local().Format(time.DateOnly)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
