package engine

import (
	"math/rand"
)

// Operators bundles crossover, conflict repair and adaptive mutation.
// All methods consume randomness from the single orchestrator-owned
// source, so they are not safe for concurrent use.
type Operators struct {
	domain *Domain
	rng    *rand.Rand

	CrossoverRate float64
	MutationRate  float64
	Generations   int
}

// NewOperators wires the genetic operators onto a domain and random source.
func NewOperators(domain *Domain, rng *rand.Rand, crossoverRate, mutationRate float64, generations int) *Operators {
	return &Operators{
		domain:        domain,
		rng:           rng,
		CrossoverRate: crossoverRate,
		MutationRate:  mutationRate,
		Generations:   generations,
	}
}

// Crossover recombines two parents with a two-point cut over the fixed
// key order; outside the chosen probability it returns a plain copy of
// the first parent. The child never aliases either parent, and conflict
// repair runs before it is returned.
func (o *Operators) Crossover(p1, p2 Chromosome) Chromosome {
	if o.rng.Float64() > o.CrossoverRate {
		return p1.Clone()
	}

	keys := o.domain.Keys()
	a := o.rng.Intn(len(keys))
	b := o.rng.Intn(len(keys))
	for b == a && len(keys) > 1 {
		b = o.rng.Intn(len(keys))
	}
	if a > b {
		a, b = b, a
	}

	child := make(Chromosome, len(keys))
	for i, key := range keys {
		src := p1
		if i >= a && i < b {
			src = p2
		}
		child[key] = append([]Assignment(nil), src[key]...)
	}

	o.RepairConflicts(child)
	return child
}

// RepairConflicts resolves room and teacher double-bookings in one pass
// over the fixed key order, tracking usage per time slot as it goes so
// later assignments see earlier repairs. A room collision moves to any
// free room at the slot, or to a fresh random slot when the slot is
// full; a teacher collision draws a different eligible teacher.
func (o *Operators) RepairConflicts(c Chromosome) {
	roomsInUse := make(map[TimeSlot]map[string]bool)
	teachersInUse := make(map[TimeSlot]map[string]bool)

	for _, key := range o.domain.Keys() {
		for i, a := range c[key] {
			ts := a.At()

			if roomsInUse[ts][a.Room] {
				var free []string
				for _, name := range o.domain.RoomNames() {
					if !roomsInUse[ts][name] {
						free = append(free, name)
					}
				}
				if len(free) > 0 {
					a.Room = free[o.rng.Intn(len(free))]
				} else {
					moved := o.domain.RandomSlot(o.rng)
					a.Day, a.Slot = moved.Day, moved.Slot
					ts = a.At()
				}
			}

			if teachersInUse[ts][a.Teacher] {
				a.Teacher = o.domain.RandomTeacher(o.rng, key.Topic, "")
			}

			markUsage(roomsInUse, ts, a.Room)
			markUsage(teachersInUse, ts, a.Teacher)
			c[key][i] = a
		}
	}
}

// Mutate perturbs the candidate in place. The effective rate adapts to
// the population state: doubled below 0.3 diversity, halved above 0.7,
// and raised 1.5x once the run is past 70% of its generation budget.
// Each key independently draws one of four mutation kinds.
func (o *Operators) Mutate(c Chromosome, generation int, diversity float64) {
	rate := o.MutationRate
	if diversity < 0.3 {
		rate *= 2
	} else if diversity > 0.7 {
		rate *= 0.5
	}
	if o.Generations > 0 && float64(generation) > float64(o.Generations)*0.7 {
		rate *= 1.5
	}

	for _, key := range o.domain.Keys() {
		if o.rng.Float64() >= rate {
			continue
		}
		switch o.rng.Intn(4) {
		case 0:
			o.mutateTime(c, key)
		case 1:
			o.mutateRoom(c, key)
		case 2:
			o.mutateTeacher(c, key)
		default:
			o.reassignKey(c, key)
		}
	}
}

func (o *Operators) mutateTime(c Chromosome, key SessionKey) {
	if len(c[key]) == 0 {
		return
	}
	idx := o.rng.Intn(len(c[key]))
	ts := o.domain.RandomSlot(o.rng)
	c[key][idx].Day, c[key][idx].Slot = ts.Day, ts.Slot
}

func (o *Operators) mutateRoom(c Chromosome, key SessionKey) {
	if len(c[key]) == 0 {
		return
	}
	idx := o.rng.Intn(len(c[key]))
	rooms := o.domain.RoomNames()
	c[key][idx].Room = rooms[o.rng.Intn(len(rooms))]
}

func (o *Operators) mutateTeacher(c Chromosome, key SessionKey) {
	if len(c[key]) == 0 {
		return
	}
	idx := o.rng.Intn(len(c[key]))
	c[key][idx].Teacher = o.domain.RandomTeacher(o.rng, key.Topic, "")
}

// reassignKey rebuilds every instance of the key at one fresh time slot
// across mutually distinct rooms.
func (o *Operators) reassignKey(c Chromosome, key SessionKey) {
	ts := o.domain.RandomSlot(o.rng)
	rooms := append([]string(nil), o.domain.RoomNames()...)
	o.rng.Shuffle(len(rooms), func(i, j int) { rooms[i], rooms[j] = rooms[j], rooms[i] })

	count := o.domain.InstancesPerSession()
	if count > len(rooms) {
		count = len(rooms)
	}
	assignments := make([]Assignment, 0, count)
	for i := 0; i < count; i++ {
		assignments = append(assignments, Assignment{
			Day:     ts.Day,
			Slot:    ts.Slot,
			Room:    rooms[i],
			Teacher: o.domain.RandomTeacher(o.rng, key.Topic, ""),
		})
	}
	c[key] = assignments
}
