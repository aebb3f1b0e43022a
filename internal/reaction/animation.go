package reaction

import "github.com/ayusman/judgy/internal/events"

// Robot animation names understood by the reachy plugin.
const (
	AnimationCuriousLook       = "curious_look"
	AnimationDisappointedShake = "disappointed_shake"
	AnimationDramaticSigh      = "dramatic_sigh"
	AnimationApprovingNod      = "approving_nod"
	AnimationIdleBreathing     = "idle_breathing"
)

// AnimationFor escalates with the pickup count: a curious look for the
// first offence, a head shake up to the third, a dramatic sigh after that.
// Putdowns always get a nod.
func AnimationFor(ev events.Event, count int) string {
	switch ev {
	case events.EventPickedUp:
		switch {
		case count <= 1:
			return AnimationCuriousLook
		case count <= 3:
			return AnimationDisappointedShake
		default:
			return AnimationDramaticSigh
		}
	case events.EventPutDown:
		return AnimationApprovingNod
	default:
		return AnimationIdleBreathing
	}
}
