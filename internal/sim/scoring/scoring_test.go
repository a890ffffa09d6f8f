package scoring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoequip.ai/internal/sim/catalogs"
	"autoequip.ai/internal/sim/tuning"
	"autoequip.ai/internal/sim/world/kernel/model"
)

func testCatalog(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	c, err := catalogs.FromDefs(
		catalogs.WeaponDef{ID: "RIFLE", Kind: catalogs.KindRanged, Damage: 10, Cooldown: 1, Accuracy: 0.5, Range: 20, Mass: 2},
		catalogs.WeaponDef{ID: "SWORD", Kind: catalogs.KindMelee, Damage: 10, Cooldown: 1, Accuracy: 0.5, Range: 20, Mass: 2},
	)
	require.NoError(t, err)
	return c
}

func testAgent() model.Agent {
	return model.Agent{
		ID:            "A1",
		MapID:         "M1",
		Skills:        model.Skills{Melee: 2, Shooting: 10},
		CarryCapacity: 35,
	}
}

func TestScore_Formula(t *testing.T) {
	s := NewScorer(testCatalog(t), WeightsFromTuning(tuning.Defaults()))
	a := testAgent()

	rifle := model.Weapon{ID: "W1", Def: "RIFLE", Quality: model.QualityNormal, Mass: 2}
	// 10 dps + 25 accuracy + 4 range, minus 2/35 mass penalty, plus 10 shooting * 0.4.
	assert.InDelta(t, 39-0.5*(2.0/35)*100+4, s.Score(a, rifle), 1e-5)

	sword := rifle
	sword.Def = "SWORD"
	// Same stats, melee skill 2 instead of shooting 10.
	assert.InDelta(t, s.Score(a, rifle)-3.2, s.Score(a, sword), 1e-5)

	legendary := rifle
	legendary.Quality = model.QualityLegendary
	assert.Greater(t, s.Score(a, legendary), s.Score(a, rifle))

	assert.Zero(t, s.Score(a, model.Weapon{ID: "W9", Def: "UNKNOWN"}))
}

func TestScore_Deterministic(t *testing.T) {
	s := NewScorer(testCatalog(t), WeightsFromTuning(tuning.Defaults()))
	a := testAgent()
	w := model.Weapon{ID: "W1", Def: "RIFLE", Quality: model.QualityGood, Mass: 2}
	first := s.Score(a, w)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, s.Score(a, w))
	}
}

func TestCache_HitsUntilEquipmentChanges(t *testing.T) {
	c := NewCache(NewScorer(testCatalog(t), WeightsFromTuning(tuning.Defaults())))
	a := testAgent()
	w := model.Weapon{ID: "W1", Def: "RIFLE", Quality: model.QualityNormal, Mass: 2}

	v1 := c.GetCachedScore(a, w, 1)
	v2 := c.GetCachedScore(a, w, 2)
	require.Equal(t, v1, v2)
	st := c.Stats()
	require.Equal(t, uint64(1), st.Hits)
	require.Equal(t, uint64(1), st.Misses)
	_, tick, ok := c.Lookup("A1", "W1")
	require.True(t, ok)
	require.Equal(t, uint64(1), tick)

	// Picking up a heavy primary changes carried mass and the fingerprint.
	a.Primary = &model.Weapon{ID: "P1", Def: "SWORD", Mass: 2}
	a.CarriedMass = 30
	_ = c.GetCachedScore(a, w, 3)
	require.Equal(t, uint64(2), c.Stats().Misses)
	_, tick, _ = c.Lookup("A1", "W1")
	require.Equal(t, uint64(3), tick, "entry must be recomputed, not served stale")
}

func TestCache_WeaponQualityChangeRecomputes(t *testing.T) {
	c := NewCache(NewScorer(testCatalog(t), WeightsFromTuning(tuning.Defaults())))
	a := testAgent()
	w := model.Weapon{ID: "W1", Def: "RIFLE", Quality: model.QualityNormal, Mass: 2}
	before := c.GetCachedScore(a, w, 1)
	w.Quality = model.QualityMasterwork
	after := c.GetCachedScore(a, w, 2)
	require.Greater(t, after, before)
	require.Equal(t, 1, c.Stats().Entries)
}

func TestCache_EagerInvalidation(t *testing.T) {
	c := NewCache(NewScorer(testCatalog(t), WeightsFromTuning(tuning.Defaults())))
	a := testAgent()
	b := testAgent()
	b.ID = "A2"
	w1 := model.Weapon{ID: "W1", Def: "RIFLE", Mass: 2}
	w2 := model.Weapon{ID: "W2", Def: "SWORD", Mass: 2}
	for _, ag := range []model.Agent{a, b} {
		c.GetCachedScore(ag, w1, 1)
		c.GetCachedScore(ag, w2, 1)
	}
	require.Equal(t, 4, c.Stats().Entries)

	require.Equal(t, 2, c.InvalidateAgent("A1"))
	require.Equal(t, 2, c.Stats().Entries)
	_, _, ok := c.Lookup("A1", "W1")
	require.False(t, ok)

	require.Equal(t, 1, c.InvalidateWeapon("W1"))
	require.Equal(t, 1, c.Stats().Entries)
	_, _, ok = c.Lookup("A2", "W2")
	require.True(t, ok)

	require.Zero(t, c.InvalidateAgent("ghost"))
	require.Equal(t, uint64(3), c.Stats().Invalidations)
}

func TestCache_SetScorerDropsEverything(t *testing.T) {
	cats := testCatalog(t)
	c := NewCache(NewScorer(cats, WeightsFromTuning(tuning.Defaults())))
	a := testAgent()
	w := model.Weapon{ID: "W1", Def: "RIFLE", Mass: 2}
	before := c.GetCachedScore(a, w, 1)

	tune := tuning.Defaults()
	tune.Weights.Power = 3
	c.SetScorer(NewScorer(cats, WeightsFromTuning(tune)))
	require.Zero(t, c.Stats().Entries)
	require.Equal(t, uint64(1), c.Stats().Generation)

	after := c.GetCachedScore(a, w, 2)
	require.InDelta(t, before+20, after, 1e-5)
}

func TestSession_ReusesAgentFingerprint(t *testing.T) {
	c := NewCache(NewScorer(testCatalog(t), WeightsFromTuning(tuning.Defaults())))
	a := testAgent()
	w := model.Weapon{ID: "W1", Def: "RIFLE", Mass: 2}
	s := c.For(a, 7)
	require.Equal(t, c.GetCachedScore(a, w, 7), s.Score(w))
	require.Equal(t, uint64(1), c.Stats().Hits)
}

func TestAgentFingerprint_TraitOrderInsensitive(t *testing.T) {
	a := testAgent()
	a.Traits = []string{"brawler", "tough"}
	b := testAgent()
	b.Traits = []string{"tough", "brawler"}
	require.Equal(t, AgentFingerprint(a), AgentFingerprint(b))

	b.Sidearms = []model.Weapon{{ID: "S1", Def: "SWORD"}}
	require.NotEqual(t, AgentFingerprint(a), AgentFingerprint(b))
}

func TestBetter_Boundaries(t *testing.T) {
	require.False(t, Better(11, 10, 1), "exact threshold is not an improvement")
	require.False(t, Better(10.5, 10, 1))
	require.False(t, Better(10, 10, 0), "equality never wins")
	require.True(t, Better(12, 10, 1))
	require.True(t, Better(10.0001, 10, 0))

	// Differences that are exact in decimal but not in binary.
	for _, tc := range []struct{ held, cand, threshold float64 }{
		{7.3, 8.3, 1},
		{1.2, 2.2, 1},
		{3.4, 4.4, 1},
		{0.1, 0.3, 0.2},
		{10.7, 11.2, 0.5},
	} {
		require.False(t, Better(tc.cand, tc.held, tc.threshold), "%v -> %v at %v", tc.held, tc.cand, tc.threshold)
		require.True(t, Better(tc.cand+0.000001, tc.held, tc.threshold), "%v -> %v+1e-6 at %v", tc.held, tc.cand, tc.threshold)
	}
}

func TestCache_ConcurrentReaders(t *testing.T) {
	c := NewCache(NewScorer(testCatalog(t), WeightsFromTuning(tuning.Defaults())))
	a := testAgent()
	w := model.Weapon{ID: "W1", Def: "RIFLE", Mass: 2}
	want := c.GetCachedScore(a, w, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := c.GetCachedScore(a, w, 0); got != want {
					t.Errorf("score drifted: %v != %v", got, want)
					return
				}
			}
		}()
	}
	wg.Wait()
}
