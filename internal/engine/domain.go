package engine

import (
	"fmt"
	"math/rand"
	"strings"
)

// Session types carrying ordering and time-preference semantics. The
// domain may declare additional types; these four are the ones the
// evaluator and repair heuristics reason about by name.
const (
	SessionTheory    = "Theory"
	SessionPractical = "Practical"
	SessionHistory   = "History"
	SessionTest      = "Test"
)

// TimeSlot addresses one teaching period inside the weekly grid.
type TimeSlot struct {
	Day  int `json:"day"`
	Slot int `json:"slot"`
}

// Room describes a bookable room with its capacity and equipment.
type Room struct {
	Name      string   `json:"name"`
	Capacity  int      `json:"capacity"`
	Type      string   `json:"type"`
	Equipment []string `json:"equipment"`
}

// Teacher describes an instructor eligible for a topic, with the
// session types they are comfortable teaching.
type Teacher struct {
	Name        string     `json:"name"`
	Expertise   []string   `json:"expertise"`
	Unavailable []TimeSlot `json:"unavailable,omitempty"`
}

// SessionPreference captures where and when a session type should run.
type SessionPreference struct {
	PreferredSlots    []int    `json:"preferred_slots"`
	PreferredRooms    []string `json:"preferred_rooms"`
	RequiredEquipment []string `json:"required_equipment,omitempty"`
}

// Weights are the penalty multipliers applied per constraint kind.
type Weights struct {
	RoomConflict        float64 `json:"room_conflict"`
	TeacherConflict     float64 `json:"teacher_conflict"`
	TimeOrdering        float64 `json:"time_ordering"`
	SessionDistribution float64 `json:"session_distribution"`
	TimePreference      float64 `json:"time_preference"`
	SessionCoverage     float64 `json:"session_coverage"`
	RoomUtilization     float64 `json:"room_utilization"`
	TeacherWorkload     float64 `json:"teacher_workload"`
}

// DefaultWeights returns the standard constraint weighting: conflicts
// dominate, preferences refine.
func DefaultWeights() Weights {
	return Weights{
		RoomConflict:        1000,
		TeacherConflict:     800,
		TimeOrdering:        300,
		SessionDistribution: 200,
		TimePreference:      100,
		SessionCoverage:     150,
		RoomUtilization:     50,
		TeacherWorkload:     75,
	}
}

// DomainConfig is the raw institution description handed to NewDomain.
type DomainConfig struct {
	Days           []string                     `json:"days"`
	SlotsPerDay    int                          `json:"slots_per_day"`
	Rooms          []Room                       `json:"rooms"`
	Topics         []string                     `json:"topics"`
	SessionTypes   []string                     `json:"session_types"`
	Teachers       map[string][]Teacher         `json:"teachers"`
	Preferences    map[string]SessionPreference `json:"preferences"`
	TotalAttendees int                          `json:"total_attendees"`
	Weights        *Weights                     `json:"weights,omitempty"`
}

// ConfigError aggregates every structural problem found in a
// DomainConfig so callers can report them all at once.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid domain configuration: %s", strings.Join(e.Problems, "; "))
}

// Domain is the validated, read-only institution description every
// engine component queries. All methods are safe for concurrent use;
// the ones taking a *rand.Rand leave synchronisation to the caller.
type Domain struct {
	days        []string
	slotsPerDay int
	rooms       []Room
	roomNames   []string
	topics      []string
	types       []string
	teachers    map[string][]Teacher
	prefs       map[string]SessionPreference
	attendees   int
	weights     Weights
	keys        []SessionKey
}

// NewDomain validates cfg and builds the immutable domain description.
// Every detected problem is collected into a single *ConfigError.
func NewDomain(cfg DomainConfig) (*Domain, error) {
	var problems []string

	if len(cfg.Days) == 0 {
		problems = append(problems, "no days defined")
	}
	if cfg.SlotsPerDay <= 0 {
		problems = append(problems, "slots per day must be positive")
	}
	if len(cfg.Rooms) == 0 {
		problems = append(problems, "no rooms defined")
	}
	if len(cfg.Topics) == 0 {
		problems = append(problems, "no topics defined")
	}
	if len(cfg.SessionTypes) == 0 {
		problems = append(problems, "no session types defined")
	}

	totalCapacity := 0
	for _, room := range cfg.Rooms {
		if room.Name == "" {
			problems = append(problems, "room with empty name")
		}
		if room.Capacity <= 0 {
			problems = append(problems, fmt.Sprintf("room %s has non-positive capacity", room.Name))
		}
		totalCapacity += room.Capacity
	}
	if cfg.TotalAttendees > 0 && totalCapacity < cfg.TotalAttendees {
		problems = append(problems, fmt.Sprintf("total room capacity (%d) below total attendees (%d)", totalCapacity, cfg.TotalAttendees))
	}

	for _, topic := range cfg.Topics {
		if len(cfg.Teachers[topic]) == 0 {
			problems = append(problems, fmt.Sprintf("no teachers defined for topic %s", topic))
		}
	}
	for _, st := range cfg.SessionTypes {
		if _, ok := cfg.Preferences[st]; !ok {
			problems = append(problems, fmt.Sprintf("no preferences defined for session type %s", st))
		}
	}

	if len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}

	weights := DefaultWeights()
	if cfg.Weights != nil {
		weights = *cfg.Weights
	}

	d := &Domain{
		days:        append([]string(nil), cfg.Days...),
		slotsPerDay: cfg.SlotsPerDay,
		rooms:       append([]Room(nil), cfg.Rooms...),
		topics:      append([]string(nil), cfg.Topics...),
		types:       append([]string(nil), cfg.SessionTypes...),
		teachers:    make(map[string][]Teacher, len(cfg.Teachers)),
		prefs:       make(map[string]SessionPreference, len(cfg.Preferences)),
		attendees:   cfg.TotalAttendees,
		weights:     weights,
	}
	for topic, list := range cfg.Teachers {
		d.teachers[topic] = append([]Teacher(nil), list...)
	}
	for st, pref := range cfg.Preferences {
		d.prefs[st] = pref
	}
	for _, room := range d.rooms {
		d.roomNames = append(d.roomNames, room.Name)
	}
	// The key order is fixed for the lifetime of the domain; crossover
	// cut points and repair passes rely on it being stable.
	for _, topic := range d.topics {
		for _, st := range d.types {
			d.keys = append(d.keys, SessionKey{Topic: topic, SessionType: st})
		}
	}
	return d, nil
}

// DayCount returns the number of teaching days.
func (d *Domain) DayCount() int { return len(d.days) }

// Days returns the day labels.
func (d *Domain) Days() []string { return d.days }

// SlotsPerDay returns the number of periods per day.
func (d *Domain) SlotsPerDay() int { return d.slotsPerDay }

// Rooms returns the room descriptions.
func (d *Domain) Rooms() []Room { return d.rooms }

// RoomNames returns room names in declaration order.
func (d *Domain) RoomNames() []string { return d.roomNames }

// Topics returns the topic identifiers.
func (d *Domain) Topics() []string { return d.topics }

// SessionTypes returns the declared session types.
func (d *Domain) SessionTypes() []string { return d.types }

// TeachersFor returns the instructors eligible for a topic.
func (d *Domain) TeachersFor(topic string) []Teacher { return d.teachers[topic] }

// TotalAttendees returns the attendee count used for capacity checks.
func (d *Domain) TotalAttendees() int { return d.attendees }

// Weights returns the penalty multipliers for this domain.
func (d *Domain) Weights() Weights { return d.weights }

// Keys returns the fixed, ordered topic x session-type cross-product.
// Callers must not mutate the returned slice.
func (d *Domain) Keys() []SessionKey { return d.keys }

// InstancesPerSession returns how many parallel instances of every
// session are scheduled; one per room so all attendees fit.
func (d *Domain) InstancesPerSession() int { return len(d.rooms) }

// SlotOrdinal maps a slot to its position in the flattened week.
func (d *Domain) SlotOrdinal(ts TimeSlot) int { return ts.Day*d.slotsPerDay + ts.Slot }

// RandomSlot draws a uniformly random time slot.
func (d *Domain) RandomSlot(rng *rand.Rand) TimeSlot {
	return TimeSlot{Day: rng.Intn(len(d.days)), Slot: rng.Intn(d.slotsPerDay)}
}

// RandomTeacher draws a random teacher for topic, preferring those
// whose expertise covers sessionType and falling back to any teacher
// for the topic when none match. sessionType may be empty.
func (d *Domain) RandomTeacher(rng *rand.Rand, topic, sessionType string) string {
	candidates := d.teachers[topic]
	if len(candidates) == 0 {
		return ""
	}
	if sessionType != "" {
		var experts []Teacher
		for _, t := range candidates {
			for _, exp := range t.Expertise {
				if exp == sessionType {
					experts = append(experts, t)
					break
				}
			}
		}
		if len(experts) > 0 {
			candidates = experts
		}
	}
	return candidates[rng.Intn(len(candidates))].Name
}

// PreferredSlots returns the preferred slot indices for a session
// type, defaulting to every slot when the type has no preference.
func (d *Domain) PreferredSlots(sessionType string) []int {
	if pref, ok := d.prefs[sessionType]; ok && len(pref.PreferredSlots) > 0 {
		return pref.PreferredSlots
	}
	all := make([]int, d.slotsPerDay)
	for i := range all {
		all[i] = i
	}
	return all
}

// PreferredRooms returns the preferred rooms for a session type,
// filtered down to rooms that actually exist.
func (d *Domain) PreferredRooms(sessionType string) []string {
	pref, ok := d.prefs[sessionType]
	if !ok || len(pref.PreferredRooms) == 0 {
		return d.roomNames
	}
	known := make(map[string]bool, len(d.roomNames))
	for _, name := range d.roomNames {
		known[name] = true
	}
	var rooms []string
	for _, name := range pref.PreferredRooms {
		if known[name] {
			rooms = append(rooms, name)
		}
	}
	if len(rooms) == 0 {
		return d.roomNames
	}
	return rooms
}

// TimeOrderingViolated reports whether the pedagogical sequence for a
// topic is broken: the earliest Practical must strictly follow the
// earliest Theory, and the earliest Test the earliest Practical. A
// topic missing any of the three stages counts as violated.
func (d *Domain) TimeOrderingViolated(c Chromosome, topic string) bool {
	theory := d.earliestOrdinal(c, topic, SessionTheory)
	practical := d.earliestOrdinal(c, topic, SessionPractical)
	test := d.earliestOrdinal(c, topic, SessionTest)

	if theory < 0 || practical < 0 || test < 0 {
		return true
	}
	return practical <= theory || test <= practical
}

// earliestOrdinal returns the smallest slot ordinal among a key's
// assignments, or -1 when the key is absent or empty.
func (d *Domain) earliestOrdinal(c Chromosome, topic, sessionType string) int {
	earliest := -1
	for _, a := range c[SessionKey{Topic: topic, SessionType: sessionType}] {
		ord := d.SlotOrdinal(TimeSlot{Day: a.Day, Slot: a.Slot})
		if earliest < 0 || ord < earliest {
			earliest = ord
		}
	}
	return earliest
}
