package events

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/judgy/internal/detector"
	"github.com/ayusman/judgy/internal/timeutil"
)

var t0 = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

type harness struct {
	t     *testing.T
	d     *Detector
	clock *timeutil.MockClock
	th    Thresholds
}

func newHarness(t *testing.T, persist int, th Thresholds) *harness {
	t.Helper()
	clock := timeutil.NewMockClock(t0)
	opts := DefaultOptions()
	opts.Clock = clock
	opts.PersistFrames = persist
	d, err := New(opts)
	require.NoError(t, err)
	return &harness{t: t, d: d, clock: clock, th: th}
}

func (h *harness) frame(present bool) Event {
	if present {
		return h.d.ProcessFrame([]detector.Detection{detector.Phone(0.8)}, h.th)
	}
	return h.d.ProcessFrame(nil, h.th)
}

func (h *harness) frames(n int, present bool) []Event {
	out := make([]Event, n)
	for i := range out {
		out[i] = h.frame(present)
	}
	return out
}

func count(evs []Event, e Event) int {
	n := 0
	for _, ev := range evs {
		if ev == e {
			n++
		}
	}
	return n
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, "none", EventNone.String())
	assert.Equal(t, "picked_up", EventPickedUp.String())
	assert.Equal(t, "put_down", EventPutDown.String())

	for _, e := range []Event{EventPickedUp, EventPutDown} {
		got, err := ParseEvent(e.String())
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
	_, err := ParseEvent("none")
	assert.Error(t, err)
}

func TestThresholds_Validate(t *testing.T) {
	tests := []struct {
		name    string
		th      Thresholds
		wantErr string
	}{
		{"defaults", DefaultThresholds(), ""},
		{"zero cooldown", Thresholds{Pickup: 1, Putdown: 1}, ""},
		{"zero pickup", Thresholds{Pickup: 0, Putdown: 15}, "pickup threshold must be positive"},
		{"negative putdown", Thresholds{Pickup: 3, Putdown: -1}, "putdown threshold must be positive"},
		{"putdown below pickup", Thresholds{Pickup: 5, Putdown: 3}, "putdown threshold must be at least the pickup threshold"},
		{"putdown equal to pickup", Thresholds{Pickup: 3, Putdown: 3}, ""},
		{"negative cooldown", Thresholds{Pickup: 3, Putdown: 15, Cooldown: -time.Second}, "cooldown must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.th.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_RejectsBadOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"negative persist", func(o *Options) { o.PersistFrames = -1 }},
		{"zero decay", func(o *Options) { o.Decay = 0 }},
		{"decay above one", func(o *Options) { o.Decay = 1.1 }},
		{"sensitivity above one", func(o *Options) { o.Sensitivity.Fresh = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			_, err := New(opts)
			assert.Error(t, err)
		})
	}

	d, err := New(Options{Decay: 1})
	require.NoError(t, err, "nil clock falls back to the real clock")
	assert.NotNil(t, d.clock)
}

func TestDetector_SubThresholdRunsNeverConfirm(t *testing.T) {
	for _, pickup := range []int{1, 2, 3, 5, 8} {
		for _, persist := range []int{0, 3} {
			// Bridged frames extend a present run, so the real run is
			// shortened by the persistence window.
			run := pickup - 1 - persist
			if run < 0 {
				continue
			}
			h := newHarness(t, persist, Thresholds{Pickup: pickup, Putdown: 15, Cooldown: 10 * time.Second})

			evs := h.frames(run, true)
			evs = append(evs, h.frames(40, false)...)

			assert.Zero(t, count(evs, EventPickedUp), "pickup=%d persist=%d", pickup, persist)
			assert.Zero(t, count(evs, EventPutDown), "pickup=%d persist=%d", pickup, persist)
			assert.False(t, h.d.Stats().Visible)
		}
	}
}

func TestDetector_PickupFiresOnThresholdFrame(t *testing.T) {
	h := newHarness(t, 3, DefaultThresholds())

	assert.Equal(t, EventNone, h.frame(true))
	assert.Equal(t, EventNone, h.frame(true))
	assert.Equal(t, EventPickedUp, h.frame(true))

	stats := h.d.Stats()
	assert.Equal(t, 1, stats.PickupCount)
	assert.True(t, stats.Visible)
}

func TestDetector_CooldownAndRefire(t *testing.T) {
	h := newHarness(t, 0, Thresholds{Pickup: 3, Putdown: 15, Cooldown: 10 * time.Second})

	h.frames(2, true)
	require.Equal(t, EventPickedUp, h.frame(true))

	for i := 1; i < 10; i++ {
		h.clock.Advance(time.Second)
		assert.Equal(t, EventNone, h.frame(true), "second %d is inside the cooldown", i)
	}

	h.clock.Advance(time.Second)
	assert.Equal(t, EventPickedUp, h.frame(true), "re-fires once the cooldown has elapsed")
	assert.Equal(t, EventNone, h.frame(true), "but only once per window")
	assert.Equal(t, 2, h.d.Stats().PickupCount)
}

func TestDetector_NoRefireWhileAbsent(t *testing.T) {
	h := newHarness(t, 0, Thresholds{Pickup: 3, Putdown: 15, Cooldown: time.Second})

	h.frames(3, true)
	for i := 0; i < 10; i++ {
		h.clock.Advance(time.Second)
		assert.NotEqual(t, EventPickedUp, h.frame(false))
	}
	assert.Equal(t, 1, h.d.Stats().PickupCount)
}

func TestDetector_ZeroCooldownRefiresEveryPresentFrame(t *testing.T) {
	h := newHarness(t, 0, Thresholds{Pickup: 2, Putdown: 5})

	evs := h.frames(5, true)
	assert.Equal(t, []Event{EventNone, EventPickedUp, EventPickedUp, EventPickedUp, EventPickedUp}, evs)
}

// Frames 1-4 share a timestamp; the clock then advances one second before
// every later frame, so frame 14 lands exactly ten seconds after frame 3.
func TestDetector_ConcreteScenario(t *testing.T) {
	h := newHarness(t, 0, Thresholds{Pickup: 3, Putdown: 15, Cooldown: 10 * time.Second})

	got := make([]Event, 0, 35)
	for n := 1; n <= 35; n++ {
		if n >= 5 {
			h.clock.Advance(time.Second)
		}
		got = append(got, h.frame(n <= 20))

		switch n {
		case 3:
			assert.Equal(t, 1, h.d.Stats().PickupCount)
		case 14:
			assert.Equal(t, t0.Add(10*time.Second), h.d.lastEvent)
			assert.Equal(t, 2, h.d.Stats().PickupCount)
		}
	}

	want := make([]Event, 35)
	want[3-1] = EventPickedUp
	want[14-1] = EventPickedUp
	want[35-1] = EventPutDown
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("event sequence mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, h.d.lastEvent.IsZero(), "put_down clears the cooldown timer")
	assert.Equal(t, Stats{PickupCount: 2, HistoryLength: 30, RecentPresentCount: 15}, h.d.Stats())
}

func TestDetector_PersistenceDelaysPutdownByWindow(t *testing.T) {
	h := newHarness(t, 3, Thresholds{Pickup: 3, Putdown: 15, Cooldown: time.Hour})

	h.frames(3, true)
	evs := h.frames(18, false)

	want := make([]Event, 18)
	want[17] = EventPutDown
	if diff := cmp.Diff(want, evs); diff != "" {
		t.Errorf("put_down should fire on the 18th empty frame (-want +got):\n%s", diff)
	}
}

func TestDetector_PersistenceBridgesGaps(t *testing.T) {
	h := newHarness(t, 3, Thresholds{Pickup: 3, Putdown: 15, Cooldown: time.Hour})

	h.frames(3, true)
	require.True(t, h.d.Stats().Visible)

	// Three bridged frames plus fourteen real absences stay short of putdown.
	evs := h.frames(17, false)
	assert.Zero(t, count(evs, EventPutDown))

	assert.Equal(t, EventNone, h.frame(true), "object reappears")
	assert.True(t, h.d.Stats().Visible)

	// Single-frame dropouts never accumulate into absence.
	for i := 0; i < 50; i++ {
		assert.Equal(t, EventNone, h.frame(i%2 == 0))
	}
	assert.True(t, h.d.Stats().Visible)
	assert.Zero(t, h.d.absent)
}

func TestDetector_BridgedConfidenceDecays(t *testing.T) {
	h := newHarness(t, 3, DefaultThresholds())

	h.d.ProcessFrame([]detector.Detection{detector.Phone(0.4), detector.Phone(0.8)}, h.th)
	det, bridged, ok := h.d.Current()
	require.True(t, ok)
	assert.False(t, bridged)
	assert.Equal(t, 0.8, det.Confidence, "the highest-confidence detection is held")

	want := 0.8
	for i := 1; i <= 3; i++ {
		h.frame(false)
		want *= 0.9
		det, bridged, ok = h.d.Current()
		require.True(t, ok, "frame %d is bridged", i)
		assert.True(t, bridged)
		assert.InDelta(t, want, det.Confidence, 1e-9)
	}

	h.frame(false)
	_, _, ok = h.d.Current()
	assert.False(t, ok, "held detection is dropped after the window")
	assert.False(t, h.d.Stats().Tracking)

	h.d.ProcessFrame([]detector.Detection{detector.Phone(0.6)}, h.th)
	det, bridged, ok = h.d.Current()
	require.True(t, ok)
	assert.False(t, bridged, "a real detection resets the bridge counter")
	assert.Equal(t, 0.6, det.Confidence)
}

func TestDetector_AdaptiveConfidence(t *testing.T) {
	h := newHarness(t, 2, DefaultThresholds())

	assert.Equal(t, 0.5, h.d.Confidence(), "fresh threshold before anything is seen")

	h.frame(true)
	assert.Equal(t, 0.3, h.d.Confidence(), "tracking threshold while a detection is held")

	h.frame(false)
	h.frame(false)
	assert.Equal(t, 0.3, h.d.Confidence(), "still tracking while bridging")

	h.frame(false)
	assert.Equal(t, 0.5, h.d.Confidence(), "strict again once tracking is lost")
}

func TestDetector_PutdownResetsCooldown(t *testing.T) {
	h := newHarness(t, 0, Thresholds{Pickup: 3, Putdown: 15, Cooldown: time.Hour})

	h.frames(3, true)
	h.clock.Advance(time.Second)
	evs := h.frames(15, false)
	require.Equal(t, EventPutDown, evs[14])

	h.clock.Advance(time.Second)
	evs = h.frames(3, true)
	assert.Equal(t, []Event{EventNone, EventNone, EventPickedUp}, evs, "next pickup ignores the old cooldown")
	assert.Equal(t, 2, h.d.Stats().PickupCount)
}

func TestDetector_MinimalThresholds(t *testing.T) {
	h := newHarness(t, 0, Thresholds{Pickup: 1, Putdown: 2, Cooldown: time.Minute})

	require.Equal(t, EventPickedUp, h.frame(true))
	require.Equal(t, EventNone, h.frame(false))
	require.Equal(t, EventPutDown, h.frame(false))

	// put_down cleared the one minute cooldown.
	assert.Equal(t, EventPickedUp, h.frame(true))
}

func TestDetector_FailedFramesCountAsAbsent(t *testing.T) {
	h := newHarness(t, 0, Thresholds{Pickup: 1, Putdown: 3})

	h.frame(true)
	for i := 0; i < 2; i++ {
		assert.Equal(t, EventNone, h.d.ProcessFrame(nil, h.th))
	}
	assert.Equal(t, EventPutDown, h.d.ProcessFrame([]detector.Detection{}, h.th))
}

func TestDetector_BridgedFrameCountsTowardPickup(t *testing.T) {
	h := newHarness(t, 3, Thresholds{Pickup: 3, Putdown: 15})

	evs := []Event{h.frame(true), h.frame(false), h.frame(true)}
	assert.Equal(t, []Event{EventNone, EventNone, EventPickedUp}, evs, "a one-frame dropout does not delay the pickup")
	assert.True(t, h.d.Stats().Visible)
	assert.Equal(t, 3, h.d.Stats().RecentPresentCount)
}

func TestDetector_NoRefireOnBridgedFrames(t *testing.T) {
	h := newHarness(t, 3, Thresholds{Pickup: 3, Putdown: 15, Cooldown: 5 * time.Second})

	h.frames(3, true)
	for i := 0; i < 3; i++ {
		h.clock.Advance(5 * time.Second)
		assert.Equal(t, EventNone, h.frame(false), "bridged frame %d holds visibility only", i+1)
	}
	assert.True(t, h.d.Stats().Visible)
	assert.Equal(t, 1, h.d.Stats().PickupCount)

	assert.Equal(t, EventPickedUp, h.frame(true), "a real detection after the cooldown re-fires")
	assert.Equal(t, 2, h.d.Stats().PickupCount)
}

// Same timeline as the persistence-free scenario, with the production
// persistence window: the three bridged frames after the phone leaves never
// re-fire, and put_down lands three frames later.
func TestDetector_ConcreteScenarioWithPersistence(t *testing.T) {
	h := newHarness(t, DefaultOptions().PersistFrames, Thresholds{Pickup: 3, Putdown: 15, Cooldown: 10 * time.Second})

	got := make([]Event, 0, 38)
	for n := 1; n <= 38; n++ {
		if n >= 5 {
			h.clock.Advance(time.Second)
		}
		got = append(got, h.frame(n <= 20))
	}

	want := make([]Event, 38)
	want[3-1] = EventPickedUp
	want[14-1] = EventPickedUp
	want[38-1] = EventPutDown
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("event sequence mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Stats{PickupCount: 2, HistoryLength: 30, RecentPresentCount: 15}, h.d.Stats())
}

func TestDetector_HistoryIsBounded(t *testing.T) {
	h := newHarness(t, 0, DefaultThresholds())

	h.frames(10, true)
	h.frames(25, false)

	stats := h.d.Stats()
	assert.Equal(t, HistorySize, stats.HistoryLength)
	assert.Equal(t, 5, stats.RecentPresentCount, "the five oldest present frames were evicted")
}

func TestDetector_StatsIsPure(t *testing.T) {
	seq := []bool{true, true, false, true, true, true, false, false, true}

	observed := newHarness(t, 3, DefaultThresholds())
	twin := newHarness(t, 3, DefaultThresholds())

	for _, present := range seq {
		first := observed.d.Stats()
		for i := 0; i < 5; i++ {
			if diff := cmp.Diff(first, observed.d.Stats()); diff != "" {
				t.Fatalf("Stats changed between calls:\n%s", diff)
			}
		}
		assert.Equal(t, twin.frame(present), observed.frame(present))
	}
	assert.Equal(t, twin.d.Stats(), observed.d.Stats())
}

func TestDetector_ResetTrackingMatchesFreshDetector(t *testing.T) {
	th := Thresholds{Pickup: 3, Putdown: 5, Cooldown: 2 * time.Second}
	prefix := []bool{true, true, true, true, false, true, false, false}
	seq := []bool{true, false, true, true, true, true, true, false, false, false, false, false, false, true, true, true}

	reused := newHarness(t, 3, th)
	for _, p := range prefix {
		reused.frame(p)
	}
	require.True(t, reused.d.Stats().Visible)
	before := reused.d.Stats().PickupCount

	reused.d.ResetTracking()
	fresh := newHarness(t, 3, th)

	for i, p := range seq {
		reused.clock.Advance(500 * time.Millisecond)
		fresh.clock.Advance(500 * time.Millisecond)

		assert.Equal(t, fresh.frame(p), reused.frame(p), "frame %d", i)
		assert.Equal(t, fresh.d.Confidence(), reused.d.Confidence(), "frame %d", i)
	}

	ignoreCount := cmpopts.IgnoreFields(Stats{}, "PickupCount")
	if diff := cmp.Diff(fresh.d.Stats(), reused.d.Stats(), ignoreCount); diff != "" {
		t.Errorf("state diverged after ResetTracking (-fresh +reused):\n%s", diff)
	}
	assert.Equal(t, before+fresh.d.Stats().PickupCount, reused.d.Stats().PickupCount, "pickup count survives ResetTracking")
}

func TestDetector_ResetCountKeepsTracking(t *testing.T) {
	h := newHarness(t, 3, DefaultThresholds())
	h.frames(3, true)

	h.d.ResetCount()

	stats := h.d.Stats()
	assert.Zero(t, stats.PickupCount)
	assert.True(t, stats.Visible)
	assert.Equal(t, 3, stats.HistoryLength)
	assert.Equal(t, 0.3, h.d.Confidence())
}

func TestDetector_Reset(t *testing.T) {
	h := newHarness(t, 3, DefaultThresholds())
	h.frames(5, true)
	h.frames(2, false)

	h.d.Reset()

	assert.Equal(t, Stats{}, h.d.Stats())
	assert.Equal(t, 0.5, h.d.Confidence())
	_, _, ok := h.d.Current()
	assert.False(t, ok)
}

func TestRing(t *testing.T) {
	r := newRing(3)
	assert.Empty(t, r.values())

	r.push(true)
	r.push(false)
	assert.Equal(t, []bool{true, false}, r.values())

	r.push(true)
	r.push(false)
	assert.Equal(t, []bool{false, true, false}, r.values(), "oldest evicted first")
	assert.Equal(t, 1, r.count())

	r.clear()
	assert.Zero(t, r.len())

	empty := newRing(0)
	empty.push(true)
	assert.Zero(t, empty.len())
}
