package world

import (
	"fmt"
	"strings"
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Ambience derives a slow-drifting mood level per location from seeded
// noise, blended with the location's static ambient tags. It exists purely
// for prompt and presentation text; nothing mechanical reads it.
type Ambience struct {
	noise opensimplex.Noise
}

// NewAmbience creates an ambience field. The same seed always yields the
// same mood for a given location and time.
func NewAmbience(seed int64) *Ambience {
	return &Ambience{noise: opensimplex.NewNormalized(seed)}
}

// moodBands maps the noise level to a phrase, quietest first.
var moodBands = []struct {
	max    float64
	phrase string
}{
	{0.25, "hushed and still"},
	{0.45, "calm"},
	{0.65, "quietly busy"},
	{0.85, "lively"},
	{1.01, "bustling with energy"},
}

// Level returns the mood level in [0, 1) for a location at t. Drifts over
// roughly a sim-hour.
func (a *Ambience) Level(loc LocationID, t time.Time) float64 {
	// Hash the location ID into a stable noise row.
	var row float64
	for _, c := range string(loc) {
		row += float64(c)
	}
	return a.noise.Eval2(row, float64(t.Unix())/3600.0)
}

// Describe renders the ambience of a location at t as one sentence.
func (a *Ambience) Describe(l *Location, t time.Time) string {
	level := a.Level(l.ID, t)
	phrase := moodBands[len(moodBands)-1].phrase
	for _, band := range moodBands {
		if level < band.max {
			phrase = band.phrase
			break
		}
	}
	if len(l.AmbientTags) == 0 {
		return fmt.Sprintf("The %s is %s.", l.Name, phrase)
	}
	return fmt.Sprintf("The %s is %s. Around you: %s.", l.Name, phrase, strings.Join(l.AmbientTags, ", "))
}
