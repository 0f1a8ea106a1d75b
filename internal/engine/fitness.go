package engine

import (
	"sort"
	"sync"
)

const (
	cacheLimit    = 10000
	cacheEviction = 2000
)

// CacheStats is a snapshot of the evaluator's memoization behaviour.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Size    int     `json:"size"`
}

// Evaluator scores candidate timetables as a weighted sum of constraint
// violations. Scores are deterministic, non-negative and memoized by
// the chromosome's structural fingerprint; the cache is bounded and
// safe for concurrent use so population scoring can fan out across
// workers.
type Evaluator struct {
	domain *Domain

	mu     sync.Mutex
	cache  map[string]float64
	order  []string
	hits   int64
	misses int64
}

// NewEvaluator builds an evaluator over the given domain.
func NewEvaluator(domain *Domain) *Evaluator {
	return &Evaluator{
		domain: domain,
		cache:  make(map[string]float64),
	}
}

// Fitness returns the penalty score for a candidate. Zero means no
// violation detected; lower is better. Malformed candidates (missing
// keys, wrong instance counts) are scored, never rejected.
func (e *Evaluator) Fitness(c Chromosome) float64 {
	key := c.Fingerprint()

	e.mu.Lock()
	if score, ok := e.cache[key]; ok {
		e.hits++
		e.mu.Unlock()
		return score
	}
	e.misses++
	e.mu.Unlock()

	score := e.score(c)

	e.mu.Lock()
	if _, ok := e.cache[key]; !ok {
		e.cache[key] = score
		e.order = append(e.order, key)
		if len(e.cache) > cacheLimit {
			for _, old := range e.order[:cacheEviction] {
				delete(e.cache, old)
			}
			e.order = append([]string(nil), e.order[cacheEviction:]...)
		}
	}
	e.mu.Unlock()

	return score
}

// Stats returns a snapshot of cache hit/miss counters.
func (e *Evaluator) Stats() CacheStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := e.hits + e.misses
	rate := 0.0
	if total > 0 {
		rate = float64(e.hits) / float64(total)
	}
	return CacheStats{Hits: e.hits, Misses: e.misses, HitRate: rate, Size: len(e.cache)}
}

func (e *Evaluator) score(c Chromosome) float64 {
	w := e.domain.Weights()
	penalty := 0.0

	penalty += w.RoomConflict * e.roomConflicts(c)
	penalty += w.TeacherConflict * e.teacherConflicts(c)
	penalty += w.TimeOrdering * e.timeOrdering(c)
	penalty += w.SessionDistribution * e.sessionDistribution(c)
	penalty += w.SessionCoverage * e.sessionCoverage(c)
	penalty += w.TimePreference * e.timePreferences(c)
	penalty += w.RoomUtilization * e.roomUtilization(c)
	penalty += w.TeacherWorkload * e.teacherWorkload(c)

	penalty += e.dayDistribution(c)
	penalty += e.consecutiveSessions(c)

	return penalty
}

// roomConflicts counts colliding pairs: n assignments sharing a
// (day,slot,room) contribute n*(n-1)/2.
func (e *Evaluator) roomConflicts(c Chromosome) float64 {
	type slotRoom struct {
		ts   TimeSlot
		room string
	}
	usage := make(map[slotRoom]int)
	for _, assignments := range c {
		for _, a := range assignments {
			usage[slotRoom{ts: a.At(), room: a.Room}]++
		}
	}
	pairs := 0
	for _, n := range usage {
		pairs += n * (n - 1) / 2
	}
	return float64(pairs)
}

// teacherConflicts counts colliding pairs per (day,slot,teacher).
func (e *Evaluator) teacherConflicts(c Chromosome) float64 {
	type slotTeacher struct {
		ts      TimeSlot
		teacher string
	}
	usage := make(map[slotTeacher]int)
	for _, assignments := range c {
		for _, a := range assignments {
			usage[slotTeacher{ts: a.At(), teacher: a.Teacher}]++
		}
	}
	pairs := 0
	for _, n := range usage {
		pairs += n * (n - 1) / 2
	}
	return float64(pairs)
}

// timeOrdering penalizes broken pedagogical sequence per topic: one
// unit when the earliest Practical does not strictly follow the
// earliest Theory, one unit when the earliest Test does not strictly
// follow the earliest Practical, and half a unit when Practical is
// absent and the earliest Test does not strictly follow the earliest
// Theory.
func (e *Evaluator) timeOrdering(c Chromosome) float64 {
	penalty := 0.0
	for _, topic := range e.domain.Topics() {
		theory := e.domain.earliestOrdinal(c, topic, SessionTheory)
		practical := e.domain.earliestOrdinal(c, topic, SessionPractical)
		test := e.domain.earliestOrdinal(c, topic, SessionTest)

		if theory >= 0 && practical >= 0 && practical <= theory {
			penalty += 1
		}
		if practical >= 0 && test >= 0 && test <= practical {
			penalty += 1
		}
		if practical < 0 && theory >= 0 && test >= 0 && test <= theory {
			penalty += 0.5
		}
	}
	return penalty
}

// sessionDistribution penalizes keys whose instance count deviates
// from the expected one-per-room.
func (e *Evaluator) sessionDistribution(c Chromosome) float64 {
	expected := e.domain.InstancesPerSession()
	penalty := 0.0
	for _, key := range e.domain.Keys() {
		deviation := len(c[key]) - expected
		if deviation < 0 {
			deviation = -deviation
		}
		penalty += float64(deviation) * 0.5
	}
	return penalty
}

// sessionCoverage adds a flat unit per key absent or empty.
func (e *Evaluator) sessionCoverage(c Chromosome) float64 {
	missing := 0
	for _, key := range e.domain.Keys() {
		if len(c[key]) == 0 {
			missing++
		}
	}
	return float64(missing)
}

// timePreferences applies graduated slot penalties: Theory drifting
// past the morning, History held in the morning, Practical pinned to
// the first or last period.
func (e *Evaluator) timePreferences(c Chromosome) float64 {
	lastSlot := e.domain.SlotsPerDay() - 1
	penalty := 0.0
	for key, assignments := range c {
		for _, a := range assignments {
			switch key.SessionType {
			case SessionTheory:
				if a.Slot >= 2 {
					penalty += 0.3 * float64(a.Slot-1)
				}
			case SessionHistory:
				if a.Slot < 2 {
					penalty += 0.3 * float64(2-a.Slot)
				}
			case SessionPractical:
				if a.Slot == 0 || a.Slot == lastSlot {
					penalty += 0.2
				}
			}
		}
	}
	return penalty
}

// roomUtilization penalizes uneven room usage, measuring every room of
// the domain against the mean so idle rooms count too.
func (e *Evaluator) roomUtilization(c Chromosome) float64 {
	usage := make(map[string]int)
	total := 0
	for _, assignments := range c {
		for _, a := range assignments {
			usage[a.Room]++
			total++
		}
	}
	if total == 0 {
		return 0
	}
	mean := float64(total) / float64(len(e.domain.RoomNames()))
	penalty := 0.0
	for _, name := range e.domain.RoomNames() {
		deviation := float64(usage[name]) - mean
		if deviation < 0 {
			deviation = -deviation
		}
		penalty += deviation * 0.1
	}
	return penalty
}

// teacherWorkload penalizes deviation of each observed teacher's
// assignment count from the mean over observed teachers.
func (e *Evaluator) teacherWorkload(c Chromosome) float64 {
	workload := make(map[string]int)
	total := 0
	for _, assignments := range c {
		for _, a := range assignments {
			workload[a.Teacher]++
			total++
		}
	}
	if len(workload) == 0 {
		return 0
	}
	mean := float64(total) / float64(len(workload))
	penalty := 0.0
	for _, count := range workload {
		deviation := float64(count) - mean
		if deviation < 0 {
			deviation = -deviation
		}
		penalty += deviation * 0.05
	}
	return penalty
}

// dayDistribution penalizes uneven daily load across every teaching
// day, unweighted.
func (e *Evaluator) dayDistribution(c Chromosome) float64 {
	usage := make([]int, e.domain.DayCount())
	total := 0
	for _, assignments := range c {
		for _, a := range assignments {
			if a.Day >= 0 && a.Day < len(usage) {
				usage[a.Day]++
				total++
			}
		}
	}
	if total == 0 || len(usage) == 0 {
		return 0
	}
	mean := float64(total) / float64(len(usage))
	penalty := 0.0
	for _, count := range usage {
		deviation := float64(count) - mean
		if deviation < 0 {
			deviation = -deviation
		}
		penalty += deviation * 0.03
	}
	return penalty
}

// consecutiveSessions penalizes, per topic, every session beyond the
// second in an unbroken run of adjacent slot ordinals.
func (e *Evaluator) consecutiveSessions(c Chromosome) float64 {
	penalty := 0.0
	for _, topic := range e.domain.Topics() {
		var ordinals []int
		for _, st := range e.domain.SessionTypes() {
			for _, a := range c[SessionKey{Topic: topic, SessionType: st}] {
				ordinals = append(ordinals, e.domain.SlotOrdinal(a.At()))
			}
		}
		sort.Ints(ordinals)

		run := 1
		for i := 1; i < len(ordinals); i++ {
			if ordinals[i] == ordinals[i-1]+1 {
				run++
				if run > 2 {
					penalty += 0.2
				}
			} else {
				run = 1
			}
		}
	}
	return penalty
}
