package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededPopulation(t *testing.T, domain *Domain, size int, seed int64) []Chromosome {
	t.Helper()
	init := NewInitializer(domain, rand.New(rand.NewSource(seed)))
	pop := make([]Chromosome, 0, size)
	for i := 0; i < size; i++ {
		pop = append(pop, init.Initialize())
	}
	return pop
}

func TestTournamentReturnsFullIndependentPool(t *testing.T) {
	domain := newTestDomain(t)
	pop := seededPopulation(t, domain, 8, 43)
	scores := []float64{800, 100, 400, 0, 900, 250, 600, 50}

	selected := Tournament(rand.New(rand.NewSource(47)), pop, scores, 3)
	require.Len(t, selected, len(pop))

	key := domain.Keys()[0]
	for _, individual := range selected {
		require.NotEmpty(t, individual[key])
		individual[key][0].Room = "R999"
	}
	for _, source := range pop {
		assert.NotEqual(t, "R999", source[key][0].Room)
	}
}

func TestTournamentFavoursLowScores(t *testing.T) {
	domain := newTestDomain(t)
	pop := seededPopulation(t, domain, 10, 53)

	scores := make([]float64, len(pop))
	byScore := make(map[string]float64, len(pop))
	for i := range pop {
		scores[i] = float64(i) * 100
		byScore[pop[i].Fingerprint()] = scores[i]
	}

	selected := Tournament(rand.New(rand.NewSource(59)), pop, scores, 3)

	sum := 0.0
	for _, individual := range selected {
		score, ok := byScore[individual.Fingerprint()]
		require.True(t, ok)
		sum += score
	}
	// Winners are sample minima, so their mean score sits well below
	// the population mean of 450.
	assert.Less(t, sum/float64(len(selected)), 450.0)
}

func TestElitesReturnsBestCopies(t *testing.T) {
	domain := newTestDomain(t)
	pop := seededPopulation(t, domain, 5, 61)
	scores := []float64{500, 10, 300, 20, 400}

	elites := Elites(pop, scores, 2)
	require.Len(t, elites, 2)
	assert.Equal(t, pop[1].Fingerprint(), elites[0].Fingerprint())
	assert.Equal(t, pop[3].Fingerprint(), elites[1].Fingerprint())

	key := domain.Keys()[0]
	elites[0][key][0].Teacher = "nobody"
	assert.NotEqual(t, "nobody", pop[1][key][0].Teacher)
}

func TestElitesClampsCount(t *testing.T) {
	domain := newTestDomain(t)
	pop := seededPopulation(t, domain, 3, 67)
	scores := []float64{3, 2, 1}

	assert.Len(t, Elites(pop, scores, 10), 3)
}
