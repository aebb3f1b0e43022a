package reaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	names := Names()
	assert.Len(t, names, 8)
	assert.Contains(t, names, Mixtape)
	assert.IsNonDecreasing(t, names)
}

func TestLookup(t *testing.T) {
	p, ok := Lookup("british_butler")
	require.True(t, ok)
	assert.Equal(t, "en-GB-RyanNeural", p.Voice)
	assert.NotEmpty(t, p.Shame)
	assert.NotEmpty(t, p.Praise)

	mix, ok := Lookup(Mixtape)
	require.True(t, ok)
	assert.Equal(t, "en-US-AnaNeural", mix.Voice)
	assert.Empty(t, mix.Shame)

	_, ok = Lookup("pirate")
	assert.False(t, ok)
	assert.False(t, Valid("pirate"))
}

func TestEveryPersonalityHasLines(t *testing.T) {
	for _, name := range Names() {
		if name == Mixtape {
			continue
		}
		t.Run(name, func(t *testing.T) {
			p := Resolve(name, nil)
			assert.Equal(t, name, p.Name)
			assert.NotEmpty(t, p.Voice)
			assert.NotEmpty(t, p.Shame)
			assert.NotEmpty(t, p.Praise)
		})
	}
}

func TestResolve(t *testing.T) {
	t.Run("unknown falls back to default", func(t *testing.T) {
		assert.Equal(t, DefaultPersonality, Resolve("pirate", nil).Name)
	})

	t.Run("mixtape never resolves to itself", func(t *testing.T) {
		seen := map[string]bool{}
		for i := 0; i < 7; i++ {
			p := Resolve(Mixtape, func(int) int { return i })
			assert.NotEqual(t, Mixtape, p.Name)
			assert.NotEmpty(t, p.Shame)
			seen[p.Name] = true
		}
		assert.Len(t, seen, 7)
	})
}
