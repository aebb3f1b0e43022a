package app

import (
	"context"
	"time"

	"github.com/ayusman/judgy/internal/logger"
	"github.com/ayusman/judgy/internal/reaction"
	"github.com/ayusman/judgy/internal/store"
)

// runReactions consumes confirmed events off the capture loop, one at a
// time and in order.
func (a *App) runReactions(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case p := <-a.eventCh:
			a.react(ctx, p)
		}
	}
}

func (a *App) react(ctx context.Context, p pending) reaction.Reaction {
	start := time.Now()
	r, err := a.dispatcher.Handle(ctx, p.event, p.count)
	a.metrics.ObserveReaction(time.Since(start))
	if err != nil {
		logger.Warn("reaction", "%s #%d: %v", p.event, p.count, err)
	}

	a.record(p, r)
	if !r.Skipped {
		a.setLastReaction(r)
	}
	a.publish(Notice{Type: NoticeReaction, Event: r.Event, Count: p.count, Confidence: p.confidence, Reaction: &r, At: r.At})
	return r
}

// record appends the event to the log and the daily totals.
func (a *App) record(p pending, r reaction.Reaction) {
	if a.store == nil {
		return
	}

	kind := p.event.String()
	err := a.store.Events().Create(&store.Event{
		Kind:        kind,
		PickupCount: p.count,
		Confidence:  p.confidence,
		Line:        r.Line,
		Personality: r.Personality,
		CreatedAt:   p.at,
	})
	if err != nil {
		logger.Error("app", "failed to record %s: %v", kind, err)
	}

	if err := a.store.Daily().Increment(p.at.Local().Format(time.DateOnly), kind); err != nil {
		logger.Error("app", "failed to update daily count: %v", err)
	}
}
