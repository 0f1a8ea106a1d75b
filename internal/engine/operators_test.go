package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutateRateZeroIsIdentity(t *testing.T) {
	domain := newTestDomain(t)
	rng := rand.New(rand.NewSource(13))
	ops := NewOperators(domain, rng, 0.8, 0, 100)

	c := NewInitializer(domain, rng).Initialize()
	before := c.Fingerprint()

	ops.Mutate(c, 10, 0.5)
	assert.Equal(t, before, c.Fingerprint())
}

func TestMutateRateOneTouchesEveryKey(t *testing.T) {
	domain := newTestDomain(t)
	rng := rand.New(rand.NewSource(17))
	ops := NewOperators(domain, rng, 0.8, 1, 100)

	c := NewInitializer(domain, rng).Initialize()
	original := c.Clone()

	// A single pass can redraw a value identical to the old one; after
	// repeated passes every key has changed with overwhelming
	// probability.
	for i := 0; i < 30; i++ {
		ops.Mutate(c, 10, 0.5)
	}
	for _, key := range domain.Keys() {
		assert.NotEqual(t, original[key], c[key], "key %s never mutated", key)
	}
}

func TestMutateAdaptsRateToDiversity(t *testing.T) {
	domain := newTestDomain(t)

	countChanges := func(diversity float64, generation int) int {
		rng := rand.New(rand.NewSource(23))
		ops := NewOperators(domain, rng, 0.8, 0.2, 100)
		changed := 0
		for i := 0; i < 200; i++ {
			c := NewChromosome(domain.Keys())
			for _, key := range domain.Keys() {
				c[key] = []Assignment{{Day: 0, Slot: 0, Room: "R101", Teacher: "Adams"}}
			}
			before := c.Fingerprint()
			ops.Mutate(c, generation, diversity)
			if c.Fingerprint() != before {
				changed++
			}
		}
		return changed
	}

	lowDiversity := countChanges(0.1, 10)
	highDiversity := countChanges(0.9, 10)
	assert.Greater(t, lowDiversity, highDiversity)

	earlyRun := countChanges(0.5, 10)
	lateRun := countChanges(0.5, 90)
	assert.Greater(t, lateRun, earlyRun)
}

func TestCrossoverRateZeroReturnsIndependentCopy(t *testing.T) {
	domain := newTestDomain(t)
	rng := rand.New(rand.NewSource(29))
	ops := NewOperators(domain, rng, 0, 0.05, 100)

	p1 := NewInitializer(domain, rng).Initialize()
	p2 := NewInitializer(domain, rng).Initialize()

	child := ops.Crossover(p1, p2)
	assert.Equal(t, p1.Fingerprint(), child.Fingerprint())

	key := domain.Keys()[0]
	child[key][0].Room = "R999"
	assert.NotEqual(t, "R999", p1[key][0].Room)
}

func TestCrossoverCoversFullKeySet(t *testing.T) {
	domain := newTestDomain(t)
	rng := rand.New(rand.NewSource(31))
	ops := NewOperators(domain, rng, 1, 0.05, 100)

	p1 := NewInitializer(domain, rng).Initialize()
	p2 := NewInitializer(domain, rng).Initialize()

	for i := 0; i < 20; i++ {
		child := ops.Crossover(p1, p2)
		require.Len(t, child, len(domain.Keys()))
		for _, key := range domain.Keys() {
			assert.Len(t, child[key], domain.InstancesPerSession())
		}
	}
}

func TestRepairConflictsReducesCollisions(t *testing.T) {
	cfg := testDomainConfig()
	cfg.Days = []string{"Monday", "Tuesday", "Wednesday"}
	cfg.SlotsPerDay = 3
	domain, err := NewDomain(cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(37))
	ops := NewOperators(domain, rng, 0.8, 0.05, 100)
	eval := NewEvaluator(domain)

	c := NewChromosome(domain.Keys())
	for _, key := range domain.Keys() {
		// Everything stacked into one room and one teacher at one slot.
		c[key] = []Assignment{
			{Day: 0, Slot: 0, Room: "R101", Teacher: domain.TeachersFor(key.Topic)[0].Name},
			{Day: 0, Slot: 0, Room: "R101", Teacher: domain.TeachersFor(key.Topic)[0].Name},
		}
	}
	roomsBefore := eval.roomConflicts(c)
	teachersBefore := eval.teacherConflicts(c)
	require.Greater(t, roomsBefore, 0.0)

	ops.RepairConflicts(c)

	// A randomized single pass need not reach zero, but it must
	// strictly reduce the collisions it scanned.
	assert.Less(t, eval.roomConflicts(c), roomsBefore)
	assert.Less(t, eval.teacherConflicts(c), teachersBefore)
	for _, key := range domain.Keys() {
		assert.Len(t, c[key], 2)
	}
}

func TestRepairConflictsLeavesCleanSlotsAlone(t *testing.T) {
	domain := newTestDomain(t)
	rng := rand.New(rand.NewSource(41))
	ops := NewOperators(domain, rng, 0.8, 0.05, 100)

	c := NewChromosome(domain.Keys())
	keys := domain.Keys()
	// Hand-built conflict-free layout: distinct slots per key, distinct
	// rooms and teachers within each slot.
	slots := []TimeSlot{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {0, 0}, {0, 1}}
	rooms := []string{"R101", "R101", "R101", "R101", "R102", "R102"}
	for i, key := range keys {
		teachers := domain.TeachersFor(key.Topic)
		c[key] = []Assignment{{Day: slots[i].Day, Slot: slots[i].Slot, Room: rooms[i], Teacher: teachers[i%len(teachers)].Name}}
	}

	before := c.Fingerprint()
	ops.RepairConflicts(c)
	assert.Equal(t, before, c.Fingerprint())
}
