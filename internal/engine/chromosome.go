package engine

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
)

// SessionKey identifies one (topic, session type) combination of the
// fixed cross-product.
type SessionKey struct {
	Topic       string `json:"topic"`
	SessionType string `json:"session_type"`
}

func (k SessionKey) String() string {
	return k.Topic + "/" + k.SessionType
}

// Assignment places a single session instance: when, where and who.
type Assignment struct {
	Day     int    `json:"day"`
	Slot    int    `json:"slot"`
	Room    string `json:"room"`
	Teacher string `json:"teacher"`
}

// At returns the assignment's time slot.
func (a Assignment) At() TimeSlot { return TimeSlot{Day: a.Day, Slot: a.Slot} }

// Chromosome is one candidate timetable: every session key of the
// domain cross-product mapped to its ordered instance assignments.
// A well-formed chromosome carries the full key set with exactly
// InstancesPerSession assignments per key; deviations are scored by
// the evaluator, never assumed away.
type Chromosome map[SessionKey][]Assignment

// NewChromosome allocates an empty candidate covering the given keys.
func NewChromosome(keys []SessionKey) Chromosome {
	c := make(Chromosome, len(keys))
	for _, key := range keys {
		c[key] = nil
	}
	return c
}

// Clone returns a structurally independent deep copy. Mutating the
// clone never affects the receiver.
func (c Chromosome) Clone() Chromosome {
	clone := make(Chromosome, len(c))
	for key, assignments := range c {
		clone[key] = append([]Assignment(nil), assignments...)
	}
	return clone
}

// Fingerprint derives a canonical key over the full ordered assignment
// content, FNV-1a hashed so cache keys stay compact. Two chromosomes
// share a fingerprint only when every assignment matches; per-key
// counts alone are not enough, since equal counts can hide different
// conflicts.
func (c Chromosome) Fingerprint() string {
	keys := make([]SessionKey, 0, len(c))
	for key := range c {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Topic != keys[j].Topic {
			return keys[i].Topic < keys[j].Topic
		}
		return keys[i].SessionType < keys[j].SessionType
	})

	h := fnv.New64a()
	for _, key := range keys {
		h.Write([]byte(key.Topic))
		h.Write([]byte{'/'})
		h.Write([]byte(key.SessionType))
		h.Write([]byte{':'})
		for _, a := range c[key] {
			fmt.Fprintf(h, "%d.%d.%s.%s,", a.Day, a.Slot, a.Room, a.Teacher)
		}
		h.Write([]byte{';'})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// TotalAssignments counts every placed session instance.
func (c Chromosome) TotalAssignments() int {
	total := 0
	for _, assignments := range c {
		total += len(assignments)
	}
	return total
}

// similarity returns the fraction of identical per-key instances
// between two candidates, compared over the fixed key order.
func similarity(a, b Chromosome, keys []SessionKey) float64 {
	total := 0
	same := 0
	for _, key := range keys {
		left := a[key]
		right := b[key]
		n := len(left)
		if len(right) < n {
			n = len(right)
		}
		for i := 0; i < n; i++ {
			total++
			if left[i] == right[i] {
				same++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(same) / float64(total)
}
