// Package shuffle materializes the display order of stage options. Options
// are presented in a fresh random permutation each time a stage is
// materialized (first received, or re-shown after resumption) so that option
// position never correlates with narrative quality across playthroughs.
// The permutation is per materialization, never per render: once set it is
// stable for the lifetime of the stage instance.
package shuffle

import (
	"math/rand"

	"github.com/lumen-chat/rendezvous/pkg/models"
)

// Permute returns a shuffled copy of choices. The input slice is never
// modified; the result holds the same multiset of choices.
func Permute(choices []models.Choice, rng *rand.Rand) []models.Choice {
	out := make([]models.Choice, len(choices))
	copy(out, choices)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Materialize sets the stage's display order if it has not been set yet.
// Calling it again on the same stage instance is a no-op, which is what
// keeps repeated renders stable.
func Materialize(stage *models.Stage, rng *rand.Rand) {
	if stage == nil || stage.Display != nil {
		return
	}
	stage.Display = Permute(stage.Options, rng)
}

// Rematerialize discards any existing display order and draws a fresh
// permutation. Used on resumption, where the original permutation is
// neither recoverable nor meaningful.
func Rematerialize(stage *models.Stage, rng *rand.Rand) {
	if stage == nil {
		return
	}
	stage.Display = nil
	Materialize(stage, rng)
}
