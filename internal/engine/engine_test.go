package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnusableInputs(t *testing.T) {
	domain := newTestDomain(t)

	_, err := New(nil, Params{PopulationSize: 10}, nil)
	assert.Error(t, err)

	_, err = New(domain, Params{PopulationSize: 0}, nil)
	assert.Error(t, err)

	_, err = New(domain, Params{PopulationSize: 10, Generations: -1}, nil)
	assert.Error(t, err)
}

func TestRunZeroGenerationsReturnsBestOfInitialPopulation(t *testing.T) {
	domain := newTestDomain(t)
	eng, err := New(domain, Params{
		Generations:    0,
		PopulationSize: 12,
		MaxStagnation:  50,
		Seed:           71,
	}, nil)
	require.NoError(t, err)

	result, err := eng.Run()
	require.NoError(t, err)

	assert.Equal(t, 0, result.Stats.Generations)
	assert.Len(t, result.Stats.BestScores, 1)
	assert.Empty(t, result.Stats.Diversity)
	assert.GreaterOrEqual(t, result.Score, 0.0)
	require.NotNil(t, result.Best)
	assert.Len(t, result.Best, len(domain.Keys()))
}

func TestRunZeroStagnationStopsBeforeReproducing(t *testing.T) {
	domain := newTestDomain(t)
	eng, err := New(domain, Params{
		Generations:    100,
		PopulationSize: 12,
		MaxStagnation:  0,
		Seed:           73,
	}, nil)
	require.NoError(t, err)

	result, err := eng.Run()
	require.NoError(t, err)

	assert.Equal(t, 0, result.Stats.Generations)
	assert.Equal(t, ReasonStagnation, result.Stats.Reason)
}

func TestRunIsDeterministicPerSeed(t *testing.T) {
	domain := newTestDomain(t)
	params := Params{
		Generations:    15,
		PopulationSize: 10,
		MaxStagnation:  50,
		Seed:           79,
	}

	first, err := mustRun(t, domain, params)
	require.NoError(t, err)
	second, err := mustRun(t, domain, params)
	require.NoError(t, err)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Best.Fingerprint(), second.Best.Fingerprint())
	assert.Equal(t, first.Stats.Generations, second.Stats.Generations)
	assert.Equal(t, first.Stats.BestScores, second.Stats.BestScores)
}

func mustRun(t *testing.T, domain *Domain, params Params) (*Result, error) {
	t.Helper()
	eng, err := New(domain, params, nil)
	require.NoError(t, err)
	return eng.Run()
}

func TestRunFindsTrivialOptimum(t *testing.T) {
	cfg := DomainConfig{
		Days:         []string{"Monday"},
		SlotsPerDay:  1,
		Rooms:        []Room{{Name: "R1", Capacity: 100}},
		Topics:       []string{"Algorithms"},
		SessionTypes: []string{SessionTheory},
		Teachers: map[string][]Teacher{
			"Algorithms": {{Name: "Adams", Expertise: []string{SessionTheory}}},
		},
		Preferences: map[string]SessionPreference{
			SessionTheory: {PreferredSlots: []int{0}},
		},
		TotalAttendees: 50,
	}
	domain, err := NewDomain(cfg)
	require.NoError(t, err)

	result, err := mustRun(t, domain, Params{
		Generations:    10,
		PopulationSize: 4,
		MaxStagnation:  50,
		Seed:           83,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, ReasonOptimal, result.Stats.Reason)
	key := SessionKey{Topic: "Algorithms", SessionType: SessionTheory}
	require.Len(t, result.Best[key], 1)
	assert.Equal(t, Assignment{Day: 0, Slot: 0, Room: "R1", Teacher: "Adams"}, result.Best[key][0])
}

func TestRunNeverWorsensAcrossGenerations(t *testing.T) {
	domain := newTestDomain(t)
	result, err := mustRun(t, domain, Params{
		Generations:    20,
		PopulationSize: 10,
		MaxStagnation:  50,
		Seed:           89,
	})
	require.NoError(t, err)

	scores := result.Stats.BestScores
	require.NotEmpty(t, scores)
	for i := 1; i < len(scores); i++ {
		assert.LessOrEqual(t, scores[i], scores[i-1])
	}
	assert.Equal(t, result.Score, scores[len(scores)-1])
}

func TestRunSurfacesFallbackTelemetry(t *testing.T) {
	// Two required instances for a single room-slot force the
	// initializer into its random fallback on every candidate.
	cfg := DomainConfig{
		Days:         []string{"Monday"},
		SlotsPerDay:  1,
		Rooms:        []Room{{Name: "R1", Capacity: 100}},
		Topics:       []string{"Algorithms"},
		SessionTypes: []string{SessionTheory, SessionPractical},
		Teachers: map[string][]Teacher{
			"Algorithms": {{Name: "Adams", Expertise: []string{SessionTheory, SessionPractical}}},
		},
		Preferences: map[string]SessionPreference{
			SessionTheory:    {PreferredSlots: []int{0}},
			SessionPractical: {PreferredSlots: []int{0}},
		},
		TotalAttendees: 50,
	}
	domain, err := NewDomain(cfg)
	require.NoError(t, err)

	result, err := mustRun(t, domain, Params{
		Generations:    2,
		PopulationSize: 4,
		MaxStagnation:  50,
		Seed:           97,
	})
	require.NoError(t, err)
	assert.Greater(t, result.Stats.Fallbacks, 0)
}

func TestRunBestIsImmuneToLaterAccess(t *testing.T) {
	domain := newTestDomain(t)
	result, err := mustRun(t, domain, Params{
		Generations:    5,
		PopulationSize: 8,
		MaxStagnation:  50,
		Seed:           101,
	})
	require.NoError(t, err)

	fingerprint := result.Best.Fingerprint()
	clone := result.Best.Clone()
	key := domain.Keys()[0]
	require.NotEmpty(t, clone[key])
	clone[key][0].Room = "R999"
	assert.Equal(t, fingerprint, result.Best.Fingerprint())
}
