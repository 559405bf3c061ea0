package shuffle

import (
	"math/rand"
	"testing"

	"github.com/lumen-chat/rendezvous/pkg/models"
)

func sampleChoices() []models.Choice {
	return []models.Choice{
		{ID: 1, Text: "Hold her hand"},
		{ID: 2, Text: "Order another coffee"},
		{ID: 3, Text: "Tell a joke", IsSpecial: true},
		{ID: 4, Text: "Leave early", IsLocked: true, LockedReason: "affection too low"},
	}
}

func TestPermutePreservesMultiset(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	original := sampleChoices()

	for i := 0; i < 50; i++ {
		got := Permute(original, rng)
		if len(got) != len(original) {
			t.Fatalf("Expected %d choices, got %d", len(original), len(got))
		}
		seen := make(map[int]models.Choice)
		for _, c := range got {
			seen[c.ID] = c
		}
		for _, c := range original {
			found, ok := seen[c.ID]
			if !ok {
				t.Fatalf("Choice %d missing after permutation", c.ID)
			}
			if found != c {
				t.Fatalf("Choice %d mutated: %+v vs %+v", c.ID, found, c)
			}
		}
	}
}

func TestPermuteDoesNotMutateInput(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	original := sampleChoices()

	for i := 0; i < 20; i++ {
		Permute(original, rng)
	}
	for i, c := range sampleChoices() {
		if original[i] != c {
			t.Fatalf("Input slice mutated at %d: %+v", i, original[i])
		}
	}
}

func TestMaterializeIsOncePerStage(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	stage := &models.Stage{StageNum: 1, Options: sampleChoices()}

	Materialize(stage, rng)
	if stage.Display == nil {
		t.Fatal("Expected display order to be set")
	}

	first := make([]models.Choice, len(stage.Display))
	copy(first, stage.Display)

	// Repeated renders of the same stage instance must not re-permute.
	for i := 0; i < 10; i++ {
		Materialize(stage, rng)
		for j := range first {
			if stage.Display[j] != first[j] {
				t.Fatal("Display order changed on repeated materialization")
			}
		}
	}
}

func TestRematerializeDrawsFresh(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	stage := &models.Stage{StageNum: 1, Options: sampleChoices()}

	Materialize(stage, rng)
	Rematerialize(stage, rng)

	if stage.Display == nil {
		t.Fatal("Expected display order after rematerialization")
	}
	if len(stage.Display) != len(stage.Options) {
		t.Fatalf("Expected %d displayed choices, got %d", len(stage.Options), len(stage.Display))
	}
}

func TestMaterializeNilAndEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	Materialize(nil, rng) // must not panic
	Rematerialize(nil, rng)

	stage := &models.Stage{StageNum: 1}
	Materialize(stage, rng)
	if len(stage.Display) != 0 {
		t.Errorf("Expected empty display for stage without options, got %d", len(stage.Display))
	}
}
