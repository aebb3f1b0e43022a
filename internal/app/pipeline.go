package app

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/judgy/internal/detector"
	"github.com/ayusman/judgy/internal/events"
	"github.com/ayusman/judgy/internal/logger"
)

// runPipeline is the capture loop. It is the only writer of frame and
// tracking state.
//
// Every tick reads one frame so the video feed stays live. While
// monitoring, every Nth frame is sent to the object detector and the
// result is fed to the event detector. Confirmed events are handed to the
// reaction consumer without waiting for it.
func (a *App) runPipeline(stop <-chan struct{}) {
	defer a.wg.Done()

	fps := a.settings.Camera.FPS
	if fps <= 0 {
		fps = 15
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var (
		frameNo    int
		readFails  int
		windowFrom = time.Now()
		windowN    int
	)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			a.metrics.ReadErrors.Add(1)
			readFails++
			if readFails == 1 || readFails%100 == 0 {
				logger.Warn("pipeline", "error reading frame (%d in a row): %v", readFails, err)
			}
			continue
		}
		readFails = 0
		a.metrics.FramesRead.Add(1)

		windowN++
		if elapsed := time.Since(windowFrom); elapsed >= time.Second {
			a.setFPS(float64(windowN) / elapsed.Seconds())
			windowFrom, windowN = time.Now(), 0
		}

		a.step(frame, frameNo)
		frameNo++
		frame.Close()
	}
}

// step handles one captured frame.
func (a *App) step(frame *gocv.Mat, frameNo int) {
	if a.session.Monitoring() {
		if a.session.RollDay() {
			a.trackMu.Lock()
			a.events.ResetCount()
			a.trackMu.Unlock()
			a.metrics.PickupCount.Store(0)
			logger.Info("pipeline", "new day, pickup count reset")
		}

		every := a.settings.Camera.DetectEvery
		if every <= 1 || frameNo%every == 0 {
			a.observe(a.detect(frame))
		}
	}

	a.annotate(frame)
}

// detect runs the object detector at the threshold the event detector asks
// for and keeps only the target class. Failures count as an empty frame.
func (a *App) detect(frame *gocv.Mat) []detector.Detection {
	if !a.detReady.Load() {
		return nil
	}

	a.trackMu.Lock()
	minConf := a.events.Confidence()
	a.trackMu.Unlock()

	start := time.Now()
	dets, err := a.detector.Detect(frame, minConf)
	a.metrics.ObserveInference(time.Since(start))
	if err != nil {
		a.metrics.DetectErrors.Add(1)
		logger.Debug("pipeline", "detect failed: %v", err)
		return nil
	}
	a.metrics.FramesDetected.Add(1)

	return detector.FilterClass(dets, a.settings.Detector.TargetClass)
}

// observe feeds one analysed frame to the event detector and publishes any
// confirmed event.
func (a *App) observe(dets []detector.Detection) events.Event {
	a.mu.RLock()
	th := a.thresholds
	a.mu.RUnlock()

	a.trackMu.Lock()
	ev := a.events.ProcessFrame(dets, th)
	stats := a.events.Stats()
	cur, bridged, ok := a.events.Current()
	a.trackMu.Unlock()

	if bridged && len(dets) == 0 {
		a.metrics.FramesBridged.Add(1)
	}
	a.metrics.Visible.Store(stats.Visible)
	a.metrics.PickupCount.Store(int64(stats.PickupCount))

	if ev == events.EventNone {
		return ev
	}

	var confidence float64
	if ok {
		confidence = cur.Confidence
	}

	switch ev {
	case events.EventPickedUp:
		a.session.RecordPickup()
	case events.EventPutDown:
		a.session.RecordPutdown()
	}
	a.metrics.ObserveEvent(ev.String())

	now := a.clock.Now()
	logger.Info("pipeline", "%s (count %d, confidence %.2f)", ev, stats.PickupCount, confidence)
	a.publish(Notice{Type: NoticeEvent, Event: ev.String(), Count: stats.PickupCount, Confidence: confidence, At: now})

	select {
	case a.eventCh <- pending{event: ev, count: stats.PickupCount, confidence: confidence, at: now}:
	default:
		a.metrics.EventsDropped.Add(1)
		logger.Warn("pipeline", "reaction queue full, dropping %s", ev)
	}
	return ev
}

// annotate draws the tracked detection and stores the frame as JPEG.
func (a *App) annotate(frame *gocv.Mat) {
	a.trackMu.Lock()
	cur, bridged, ok := a.events.Current()
	stats := a.events.Stats()
	a.trackMu.Unlock()

	var dets []detector.Detection
	if ok {
		dets = []detector.Detection{cur}
	}
	status := "paused"
	if a.session.Monitoring() {
		status = fmt.Sprintf("pickups: %d", stats.PickupCount)
	}
	detector.Draw(frame, dets, bridged, status)

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		logger.Debug("pipeline", "encode frame: %v", err)
		return
	}
	// GetBytes is backed by native memory released by Close.
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	a.frameMu.Lock()
	a.latestJPEG = data
	a.frameMu.Unlock()
}

func (a *App) setFPS(fps float64) {
	a.frameMu.Lock()
	a.fps = fps
	a.frameMu.Unlock()
}
