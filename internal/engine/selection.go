package engine

import (
	"math/rand"
	"sort"
)

// Tournament fills a selection pool of len(pop) parents. Each pick
// samples tournamentSize random indices and keeps the lowest-scoring
// one as a deep copy, so mutating a selected parent never touches the
// source population.
func Tournament(rng *rand.Rand, pop []Chromosome, scores []float64, tournamentSize int) []Chromosome {
	if tournamentSize > len(pop) {
		tournamentSize = len(pop)
	}
	selected := make([]Chromosome, 0, len(pop))
	for n := 0; n < len(pop); n++ {
		best := rng.Intn(len(pop))
		for k := 1; k < tournamentSize; k++ {
			idx := rng.Intn(len(pop))
			if scores[idx] < scores[best] {
				best = idx
			}
		}
		selected = append(selected, pop[best].Clone())
	}
	return selected
}

// Elites returns deep copies of the count lowest-scoring individuals.
func Elites(pop []Chromosome, scores []float64, count int) []Chromosome {
	if count > len(pop) {
		count = len(pop)
	}
	indices := make([]int, len(pop))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return scores[indices[i]] < scores[indices[j]]
	})

	elites := make([]Chromosome, 0, count)
	for _, idx := range indices[:count] {
		elites = append(elites, pop[idx].Clone())
	}
	return elites
}
