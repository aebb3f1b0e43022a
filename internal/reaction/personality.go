// Package reaction turns pickup and putdown events into lines, voices and
// robot animations, and hands them to the configured plugins.
package reaction

import (
	"math/rand/v2"
	"sort"
)

// Mixtape picks a different personality for every reaction.
const Mixtape = "mixtape"

// DefaultPersonality is used when the configured name is unknown.
const DefaultPersonality = "angry_boss"

// Personality is a voice plus the prewritten lines used when no language
// model is available.
type Personality struct {
	Name   string
	Voice  string
	Shame  []string
	Praise []string
}

var personalities = map[string]Personality{
	"angry_boss": {
		Name:   "angry_boss",
		Voice:  "en-US-EricNeural",
		Shame:  []string{"Put it down!", "Unbelievable!", "We have deadlines!", "Drop it. Now.", "Work. Not phone."},
		Praise: []string{"About time.", "Fine.", "Better.", "Good. Now work."},
	},
	"sarcastic": {
		Name:   "sarcastic",
		Voice:  "en-US-AvaMultilingualNeural",
		Shame:  []string{"Oh, how vital.", "Riveting stuff, I'm sure.", "Work can wait, obviously.", "Clearly important."},
		Praise: []string{"Shocking development.", "A miracle.", "Look at that."},
	},
	"disappointed_parent": {
		Name:   "disappointed_parent",
		Voice:  "en-US-AvaNeural",
		Shame:  []string{"I'm so disappointed...", "We talked about this.", "Expected more from you.", "After everything...", "You promised..."},
		Praise: []string{"So proud of you.", "That's my kid.", "There you go.", "Knew you could do it."},
	},
	"motivational_coach": {
		Name:   "motivational_coach",
		Voice:  "en-US-GuyNeural",
		Shame:  []string{"Where's your discipline?!", "Champions don't quit!", "Focus up!", "You're better than this!", "Eyes on the goal!"},
		Praise: []string{"Yes! That's it!", "Champion!", "That's my warrior!", "Let's go!"},
	},
	"absurdist": {
		Name:   "absurdist",
		Voice:  "en-US-AriaNeural",
		Shame:  []string{"Your thumb called. It's exhausted.", "Emergency cat video?", "The pocket brick wins again.", "Screen goblins summon you?"},
		Praise: []string{"The desk thanks you.", "Phone: defeated.", "Your thumb can rest.", "Freedom tastes weird."},
	},
	"corporate_ai": {
		Name:   "corporate_ai",
		Voice:  "en-US-MichelleNeural",
		Shame:  []string{"Distraction event detected.", "Alert: phone in hand.", "Productivity declining.", "Efficiency: suboptimal.", "Phone pickup logged."},
		Praise: []string{"Status: compliant.", "Efficiency restored.", "Acknowledged.", "Metrics improving."},
	},
	"british_butler": {
		Name:   "british_butler",
		Voice:  "en-GB-RyanNeural",
		Shame:  []string{"If I may suggest putting that down, sir...", "The telephone. Again.", "One might suggest focusing."},
		Praise: []string{"Very good, sir.", "Quite right.", "As it should be."},
	},
}

// mixtapeVoice is announced for the mixtape entry itself; each reaction
// still speaks with the voice of the personality it resolves to.
const mixtapeVoice = "en-US-AnaNeural"

// Lookup returns the named personality. Mixtape is a valid name but has no
// lines of its own; use Resolve to turn it into a concrete personality.
func Lookup(name string) (Personality, bool) {
	if name == Mixtape {
		return Personality{Name: Mixtape, Voice: mixtapeVoice}, true
	}
	p, ok := personalities[name]
	return p, ok
}

// Names lists every selectable personality, mixtape included, sorted.
func Names() []string {
	names := make([]string, 0, len(personalities)+1)
	for name := range personalities {
		names = append(names, name)
	}
	names = append(names, Mixtape)
	sort.Strings(names)
	return names
}

// Valid reports whether name can be configured.
func Valid(name string) bool {
	_, ok := Lookup(name)
	return ok
}

// Resolve returns the concrete personality for name. Mixtape picks one of
// the others with pick (rand.IntN when nil); unknown names resolve to
// DefaultPersonality.
func Resolve(name string, pick func(n int) int) Personality {
	if name != Mixtape {
		if p, ok := personalities[name]; ok {
			return p
		}
		return personalities[DefaultPersonality]
	}

	if pick == nil {
		pick = rand.IntN
	}
	names := make([]string, 0, len(personalities))
	for n := range personalities {
		names = append(names, n)
	}
	sort.Strings(names)
	return personalities[names[pick(len(names))]]
}
