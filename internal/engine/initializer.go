package engine

import (
	"math/rand"
)

// maxPlacementAttempts bounds the conflict-avoiding placement of a
// single session instance before falling back to a random assignment.
const maxPlacementAttempts = 100

// Initializer builds feasible-as-possible candidate timetables using
// greedy conflict avoidance with bounded retries, followed by two
// single-pass repair heuristics. Placement failures never block: the
// instance is assigned randomly and the evaluator penalises the
// result. Not safe for concurrent use; the orchestrator runs it on a
// single goroutine.
type Initializer struct {
	domain    *Domain
	rng       *rand.Rand
	fallbacks int
}

// NewInitializer wires an initializer onto the domain and random source.
func NewInitializer(domain *Domain, rng *rand.Rand) *Initializer {
	return &Initializer{domain: domain, rng: rng}
}

// FallbackCount reports how many instances were placed by the
// unconstrained random fallback across all Initialize calls.
func (in *Initializer) FallbackCount() int { return in.fallbacks }

// Initialize builds one candidate timetable covering the full session
// cross-product.
func (in *Initializer) Initialize() Chromosome {
	c := NewChromosome(in.domain.Keys())
	roomsInUse := make(map[TimeSlot]map[string]bool)
	teachersInUse := make(map[TimeSlot]map[string]bool)

	for _, key := range in.domain.Keys() {
		c[key] = in.placeInstances(key, roomsInUse, teachersInUse)
	}

	in.repairOrdering(c)
	in.balanceLoad(c)
	return c
}

// placeInstances assigns every instance of one session key, avoiding
// room and teacher double-bookings seen so far.
func (in *Initializer) placeInstances(key SessionKey, roomsInUse, teachersInUse map[TimeSlot]map[string]bool) []Assignment {
	assignments := make([]Assignment, 0, in.domain.InstancesPerSession())

	for instance := 0; instance < in.domain.InstancesPerSession(); instance++ {
		placed := false
		for attempt := 0; attempt < maxPlacementAttempts && !placed; attempt++ {
			ts := in.preferredSlot(key.SessionType, roomsInUse)

			room, ok := in.pickRoom(key.SessionType, roomsInUse[ts])
			if !ok {
				continue
			}
			teacher, ok := in.pickTeacher(key.Topic, teachersInUse[ts])
			if !ok {
				continue
			}

			assignments = append(assignments, Assignment{Day: ts.Day, Slot: ts.Slot, Room: room, Teacher: teacher})
			markUsage(roomsInUse, ts, room)
			markUsage(teachersInUse, ts, teacher)
			placed = true
		}
		if !placed {
			in.fallbacks++
			assignments = append(assignments, in.fallbackAssignment(key.Topic))
		}
	}
	return assignments
}

// preferredSlot picks the least-loaded slot among the session type's
// preferred periods, visiting them in random order and stopping early
// at an empty one.
func (in *Initializer) preferredSlot(sessionType string, roomsInUse map[TimeSlot]map[string]bool) TimeSlot {
	prefSlots := in.domain.PreferredSlots(sessionType)

	candidates := make([]TimeSlot, 0, in.domain.DayCount()*len(prefSlots))
	for day := 0; day < in.domain.DayCount(); day++ {
		for _, slot := range prefSlots {
			if slot >= 0 && slot < in.domain.SlotsPerDay() {
				candidates = append(candidates, TimeSlot{Day: day, Slot: slot})
			}
		}
	}
	if len(candidates) == 0 {
		return in.domain.RandomSlot(in.rng)
	}
	in.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	best := candidates[0]
	minLoad := len(roomsInUse[best])
	for _, ts := range candidates {
		load := len(roomsInUse[ts])
		if load < minLoad {
			minLoad = load
			best = ts
		}
		if load == 0 {
			break
		}
	}
	return best
}

// pickRoom chooses a free room at the slot, preferring the session
// type's preferred rooms when one of them is available.
func (in *Initializer) pickRoom(sessionType string, used map[string]bool) (string, bool) {
	var free []string
	for _, name := range in.domain.RoomNames() {
		if !used[name] {
			free = append(free, name)
		}
	}
	if len(free) == 0 {
		return "", false
	}
	var preferred []string
	for _, name := range in.domain.PreferredRooms(sessionType) {
		if !used[name] {
			preferred = append(preferred, name)
		}
	}
	if len(preferred) > 0 {
		return preferred[in.rng.Intn(len(preferred))], true
	}
	return free[in.rng.Intn(len(free))], true
}

// pickTeacher chooses an eligible teacher not already booked at the slot.
func (in *Initializer) pickTeacher(topic string, used map[string]bool) (string, bool) {
	var free []string
	for _, t := range in.domain.TeachersFor(topic) {
		if !used[t.Name] {
			free = append(free, t.Name)
		}
	}
	if len(free) == 0 {
		return "", false
	}
	return free[in.rng.Intn(len(free))], true
}

// fallbackAssignment draws a fully random placement once the attempt
// budget is exhausted; the evaluator penalises any conflict it causes.
func (in *Initializer) fallbackAssignment(topic string) Assignment {
	ts := in.domain.RandomSlot(in.rng)
	rooms := in.domain.RoomNames()
	return Assignment{
		Day:     ts.Day,
		Slot:    ts.Slot,
		Room:    rooms[in.rng.Intn(len(rooms))],
		Teacher: in.domain.RandomTeacher(in.rng, topic, ""),
	}
}

func markUsage(usage map[TimeSlot]map[string]bool, ts TimeSlot, name string) {
	if usage[ts] == nil {
		usage[ts] = make(map[string]bool)
	}
	usage[ts][name] = true
}

// repairOrdering runs one pass over every topic swapping the time
// components of the earliest out-of-order session pairs so Theory
// precedes Practical and Practical precedes Test. Deliberately a
// single pass, not iterated to a fixed point.
func (in *Initializer) repairOrdering(c Chromosome) {
	for _, topic := range in.domain.Topics() {
		theoryKey := SessionKey{Topic: topic, SessionType: SessionTheory}
		practicalKey := SessionKey{Topic: topic, SessionType: SessionPractical}
		testKey := SessionKey{Topic: topic, SessionType: SessionTest}

		if in.earliestAfter(c, practicalKey) <= in.earliestAfter(c, theoryKey) {
			in.swapEarliestTimes(c, theoryKey, practicalKey)
		}
		if in.earliestAfter(c, testKey) <= in.earliestAfter(c, practicalKey) {
			in.swapEarliestTimes(c, practicalKey, testKey)
		}
	}
}

// earliestAfter returns the earliest ordinal for a key, or a sentinel
// past the week's end when the key has no assignments so that empty
// keys never trigger a swap.
func (in *Initializer) earliestAfter(c Chromosome, key SessionKey) int {
	idx := in.earliestIndex(c[key])
	if idx < 0 {
		return in.domain.DayCount() * in.domain.SlotsPerDay()
	}
	return in.domain.SlotOrdinal(c[key][idx].At())
}

func (in *Initializer) earliestIndex(assignments []Assignment) int {
	best := -1
	for i, a := range assignments {
		if best < 0 || in.domain.SlotOrdinal(a.At()) < in.domain.SlotOrdinal(assignments[best].At()) {
			best = i
		}
	}
	return best
}

// swapEarliestTimes exchanges the day/slot of the earliest session of
// each key while keeping rooms and teachers in place.
func (in *Initializer) swapEarliestTimes(c Chromosome, first, second SessionKey) {
	i := in.earliestIndex(c[first])
	j := in.earliestIndex(c[second])
	if i < 0 || j < 0 {
		return
	}
	a, b := c[first][i], c[second][j]
	c[first][i].Day, c[first][i].Slot = b.Day, b.Slot
	c[second][j].Day, c[second][j].Slot = a.Day, a.Slot
}

// balanceLoad relocates single sessions from the most overloaded slots
// into the most underloaded ones when the move creates no new room or
// teacher conflict at the destination. One bounded pass.
func (in *Initializer) balanceLoad(c Chromosome) {
	load := make(map[TimeSlot]int)
	for _, assignments := range c {
		for _, a := range assignments {
			load[a.At()]++
		}
	}
	if len(load) == 0 {
		return
	}
	total := 0
	for _, count := range load {
		total += count
	}
	avg := float64(total) / float64(len(load))

	var overloaded, underloaded []TimeSlot
	for ts, count := range load {
		switch {
		case float64(count) > avg*1.5:
			overloaded = append(overloaded, ts)
		case float64(count) < avg*0.5:
			underloaded = append(underloaded, ts)
		}
	}
	if len(overloaded) > 2 {
		overloaded = overloaded[:2]
	}
	if len(underloaded) > 2 {
		underloaded = underloaded[:2]
	}

	for _, from := range overloaded {
		for _, to := range underloaded {
			if in.moveOneSession(c, from, to) {
				break
			}
		}
	}
}

func (in *Initializer) moveOneSession(c Chromosome, from, to TimeSlot) bool {
	for _, key := range in.domain.Keys() {
		for i, a := range c[key] {
			if a.At() != from {
				continue
			}
			if in.conflictsAt(c, to, a.Room, a.Teacher) {
				continue
			}
			c[key][i].Day, c[key][i].Slot = to.Day, to.Slot
			return true
		}
	}
	return false
}

func (in *Initializer) conflictsAt(c Chromosome, ts TimeSlot, room, teacher string) bool {
	for _, assignments := range c {
		for _, a := range assignments {
			if a.At() == ts && (a.Room == room || a.Teacher == teacher) {
				return true
			}
		}
	}
	return false
}
