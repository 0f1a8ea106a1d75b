package engine

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Termination reasons reported in run statistics.
const (
	ReasonOptimal    = "optimal"
	ReasonStagnation = "stagnation"
	ReasonBudget     = "generation_budget"
)

// diversitySample caps how many individuals feed the pairwise
// diversity estimate each generation.
const diversitySample = 20

// Params tunes one engine run. Zero values fall back to defaults where
// a sane default exists; Generations and PopulationSize are validated
// by New. Policy bounds on generations and population size belong to
// the caller, not the engine.
type Params struct {
	Generations    int
	PopulationSize int
	MutationRate   float64
	CrossoverRate  float64
	ElitismRate    float64
	MaxStagnation  int
	TournamentSize int
	Workers        int
	Seed           int64
}

func (p Params) withDefaults() Params {
	if p.MutationRate == 0 {
		p.MutationRate = 0.05
	}
	if p.CrossoverRate == 0 {
		p.CrossoverRate = 0.8
	}
	if p.ElitismRate == 0 {
		p.ElitismRate = 0.1
	}
	if p.TournamentSize == 0 {
		p.TournamentSize = 3
	}
	if p.Workers <= 0 {
		p.Workers = 4
	}
	if p.Seed == 0 {
		p.Seed = time.Now().UnixNano()
	}
	return p
}

// Stats describes what one run did.
type Stats struct {
	Generations int           `json:"generations"`
	BestScores  []float64     `json:"best_scores"`
	Diversity   []float64     `json:"diversity"`
	Fallbacks   int           `json:"fallback_assignments"`
	Cache       CacheStats    `json:"cache"`
	Elapsed     time.Duration `json:"elapsed"`
	Reason      string        `json:"reason"`
}

// Result is the outcome of a run: the best candidate found, its score
// and the run statistics. Best is a deep copy immune to later engine
// activity.
type Result struct {
	Best  Chromosome `json:"best"`
	Score float64    `json:"score"`
	Stats Stats      `json:"stats"`
}

// Engine drives the generational loop: seeding, parallel scoring,
// selection with elitism, recombination and adaptive mutation, with
// termination on optimum, stagnation or exhausted budget. A single
// Engine value supports one Run at a time.
type Engine struct {
	domain      *Domain
	params      Params
	rng         *rand.Rand
	initializer *Initializer
	evaluator   *Evaluator
	operators   *Operators
	log         *zap.Logger
}

// New validates the inputs and assembles an engine. It fails only on
// unusable input; a domain that merely schedules badly is scored, not
// rejected.
func New(domain *Domain, params Params, log *zap.Logger) (*Engine, error) {
	if domain == nil {
		return nil, fmt.Errorf("engine: nil domain")
	}
	if params.PopulationSize < 1 {
		return nil, fmt.Errorf("engine: population size must be at least 1, got %d", params.PopulationSize)
	}
	if params.Generations < 0 {
		return nil, fmt.Errorf("engine: generations must not be negative, got %d", params.Generations)
	}
	if log == nil {
		log = zap.NewNop()
	}
	params = params.withDefaults()

	rng := rand.New(rand.NewSource(params.Seed))
	return &Engine{
		domain:      domain,
		params:      params,
		rng:         rng,
		initializer: NewInitializer(domain, rng),
		evaluator:   NewEvaluator(domain),
		operators:   NewOperators(domain, rng, params.CrossoverRate, params.MutationRate, params.Generations),
		log:         log,
	}, nil
}

// Run executes the evolutionary loop and returns the best candidate
// found. With a zero generation budget it returns the best of the
// initial population without reproducing.
func (e *Engine) Run() (*Result, error) {
	start := time.Now()
	e.log.Info("starting timetable optimization",
		zap.Int("generations", e.params.Generations),
		zap.Int("population_size", e.params.PopulationSize),
		zap.Int64("seed", e.params.Seed))

	population := e.seedPopulation()
	scores := e.evaluateAll(population)

	best, bestScore := bestOf(population, scores)
	best = best.Clone()
	stagnation := 0

	stats := Stats{Reason: ReasonBudget}
	stats.BestScores = append(stats.BestScores, bestScore)

	for gen := 1; gen <= e.params.Generations; gen++ {
		if bestScore == 0 {
			stats.Reason = ReasonOptimal
			break
		}
		if stagnation >= e.params.MaxStagnation {
			stats.Reason = ReasonStagnation
			break
		}

		diversity := e.diversity(population)
		stats.Diversity = append(stats.Diversity, diversity)

		population = e.reproduce(population, scores, gen, diversity)
		scores = e.evaluateAll(population)
		stats.Generations = gen

		genBest, genScore := bestOf(population, scores)
		if genScore < bestScore {
			bestScore = genScore
			best = genBest.Clone()
			stagnation = 0
			e.log.Info("new best candidate",
				zap.Int("generation", gen),
				zap.Float64("score", bestScore),
				zap.Float64("diversity", diversity))
		} else {
			stagnation++
		}
		stats.BestScores = append(stats.BestScores, bestScore)

		if gen%20 == 0 {
			e.log.Debug("generation progress",
				zap.Int("generation", gen),
				zap.Float64("best_score", bestScore),
				zap.Float64("current_score", genScore),
				zap.Float64("diversity", diversity))
		}
	}
	if bestScore == 0 && stats.Reason == ReasonBudget {
		stats.Reason = ReasonOptimal
	}

	stats.Fallbacks = e.initializer.FallbackCount()
	stats.Cache = e.evaluator.Stats()
	stats.Elapsed = time.Since(start)

	e.log.Info("optimization finished",
		zap.Float64("best_score", bestScore),
		zap.Int("generations", stats.Generations),
		zap.String("reason", stats.Reason),
		zap.Int("fallback_assignments", stats.Fallbacks),
		zap.Duration("elapsed", stats.Elapsed))

	return &Result{Best: best, Score: bestScore, Stats: stats}, nil
}

// seedPopulation builds the starting population, filtering candidates
// too similar to the last few accepted ones within a bounded attempt
// budget, then padding unfiltered.
func (e *Engine) seedPopulation() []Chromosome {
	target := e.params.PopulationSize
	population := make([]Chromosome, 0, target)

	for attempt := 0; attempt < target*2 && len(population) < target; attempt++ {
		candidate := e.initializer.Initialize()
		if e.sufficientlyDifferent(candidate, population) {
			population = append(population, candidate)
		}
	}
	for len(population) < target {
		population = append(population, e.initializer.Initialize())
	}
	return population
}

// sufficientlyDifferent compares the candidate against the last 5
// accepted individuals.
func (e *Engine) sufficientlyDifferent(candidate Chromosome, population []Chromosome) bool {
	recent := population
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	for _, other := range recent {
		if similarity(candidate, other, e.domain.Keys()) >= 0.7 {
			return false
		}
	}
	return true
}

// evaluateAll scores the population through a bounded worker pool.
// Scoring is pure per candidate, so indexes fan out freely; results
// land by index so score-to-individual correspondence is preserved.
func (e *Engine) evaluateAll(population []Chromosome) []float64 {
	scores := make([]float64, len(population))

	workers := e.params.Workers
	if workers > len(population) {
		workers = len(population)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				scores[i] = e.evaluator.Fitness(population[i])
			}
		}()
	}
	for i := range population {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return scores
}

// diversity estimates population spread as the mean pairwise fraction
// of differing instances over a bounded sample.
func (e *Engine) diversity(population []Chromosome) float64 {
	n := len(population)
	if n > diversitySample {
		n = diversitySample
	}
	if n < 2 {
		return 0
	}

	sum := 0.0
	comparisons := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += 1 - similarity(population[i], population[j], e.domain.Keys())
			comparisons++
		}
	}
	return sum / float64(comparisons)
}

// reproduce builds the next generation: elites carried over verbatim,
// the rest bred from tournament-selected parents via crossover and
// adaptive mutation.
func (e *Engine) reproduce(population []Chromosome, scores []float64, generation int, diversity float64) []Chromosome {
	eliteCount := int(math.Ceil(float64(e.params.PopulationSize) * e.params.ElitismRate))
	if eliteCount < 1 {
		eliteCount = 1
	}

	next := Elites(population, scores, eliteCount)
	pool := Tournament(e.rng, population, scores, e.params.TournamentSize)

	for len(next) < e.params.PopulationSize {
		p1 := pool[e.rng.Intn(len(pool))]
		p2 := pool[e.rng.Intn(len(pool))]

		child := e.operators.Crossover(p1, p2)
		e.operators.Mutate(child, generation, diversity)
		next = append(next, child)
	}
	return next[:e.params.PopulationSize]
}

func bestOf(population []Chromosome, scores []float64) (Chromosome, float64) {
	bestIdx := 0
	for i, score := range scores {
		if score < scores[bestIdx] {
			bestIdx = i
		}
	}
	return population[bestIdx], scores[bestIdx]
}
