package service

import (
	"fmt"

	"github.com/acadplan/timetable-api/internal/engine"
)

// Catalog is the institution's scheduling domain: the weekly grid,
// rooms, topics, session types and teaching staff the optimizer
// schedules against.
type Catalog struct {
	domainCfg  engine.DomainConfig
	domain     *engine.Domain
	slotNames  []string
	topicNames map[string]string
}

// NewCatalog builds the default institution catalog and validates it
// into an engine domain.
func NewCatalog() (*Catalog, error) {
	cfg := defaultDomainConfig()
	domain, err := engine.NewDomain(cfg)
	if err != nil {
		return nil, err
	}
	return &Catalog{
		domainCfg: cfg,
		domain:    domain,
		slotNames: []string{
			"08:00 - 10:00 (Morning)",
			"10:30 - 12:30 (Late Morning)",
			"13:30 - 15:30 (Afternoon)",
			"16:00 - 18:00 (Evening)",
		},
		topicNames: map[string]string{
			"A": "Mathematics",
			"B": "Physics",
			"C": "Chemistry",
			"D": "Biology",
		},
	}, nil
}

// Domain returns the validated engine domain.
func (c *Catalog) Domain() *engine.Domain { return c.domain }

// Config returns the raw domain configuration.
func (c *Catalog) Config() engine.DomainConfig { return c.domainCfg }

// SlotName returns the human-readable period name for a slot index.
func (c *Catalog) SlotName(slot int) string {
	if slot >= 0 && slot < len(c.slotNames) {
		return c.slotNames[slot]
	}
	return fmt.Sprintf("Slot %d", slot+1)
}

// SlotNames returns every named period in order.
func (c *Catalog) SlotNames() []string { return c.slotNames }

// TopicName resolves a topic code to its display name.
func (c *Catalog) TopicName(code string) string {
	if name, ok := c.topicNames[code]; ok {
		return name
	}
	return code
}

// RoomCapacity looks up a room's seat count, 0 for unknown rooms.
func (c *Catalog) RoomCapacity(name string) int {
	for _, room := range c.domainCfg.Rooms {
		if room.Name == name {
			return room.Capacity
		}
	}
	return 0
}

func defaultDomainConfig() engine.DomainConfig {
	return engine.DomainConfig{
		Days:        []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday"},
		SlotsPerDay: 4,
		Rooms: []engine.Room{
			{Name: "Classroom1", Capacity: 60, Type: "standard", Equipment: []string{"projector", "whiteboard"}},
			{Name: "Classroom2", Capacity: 60, Type: "standard", Equipment: []string{"projector", "whiteboard"}},
			{Name: "Classroom3", Capacity: 60, Type: "standard", Equipment: []string{"projector", "whiteboard"}},
			{Name: "Classroom4", Capacity: 60, Type: "standard", Equipment: []string{"projector", "whiteboard"}},
			{Name: "Classroom5", Capacity: 60, Type: "standard", Equipment: []string{"projector", "whiteboard"}},
			{Name: "Amphitheater", Capacity: 180, Type: "lecture", Equipment: []string{"projector", "microphone", "recording"}},
		},
		Topics: []string{"A", "B", "C", "D"},
		SessionTypes: []string{
			engine.SessionTheory,
			engine.SessionPractical,
			engine.SessionHistory,
			engine.SessionTest,
		},
		Teachers: map[string][]engine.Teacher{
			"A": {
				{Name: "A1", Expertise: []string{engine.SessionTheory, engine.SessionTest}},
				{Name: "A2", Expertise: []string{engine.SessionPractical, engine.SessionHistory}},
			},
			"B": {
				{Name: "B1", Expertise: []string{engine.SessionTheory, engine.SessionTest}},
				{Name: "B2", Expertise: []string{engine.SessionPractical, engine.SessionHistory}},
			},
			"C": {
				{Name: "C1", Expertise: []string{engine.SessionTheory, engine.SessionTest}},
				{Name: "C2", Expertise: []string{engine.SessionPractical, engine.SessionHistory}},
			},
			"D": {
				{Name: "D1", Expertise: []string{engine.SessionTheory, engine.SessionTest}},
				{Name: "D2", Expertise: []string{engine.SessionPractical, engine.SessionHistory}},
			},
		},
		Preferences: map[string]engine.SessionPreference{
			engine.SessionTheory: {
				PreferredSlots:    []int{0, 1},
				PreferredRooms:    []string{"Amphitheater", "Classroom1", "Classroom2"},
				RequiredEquipment: []string{"projector"},
			},
			engine.SessionPractical: {
				PreferredSlots:    []int{1, 2},
				PreferredRooms:    []string{"Classroom3", "Classroom4", "Classroom5"},
				RequiredEquipment: []string{"projector", "whiteboard"},
			},
			engine.SessionHistory: {
				PreferredSlots:    []int{2, 3},
				PreferredRooms:    []string{"Classroom1", "Classroom2"},
				RequiredEquipment: []string{"projector"},
			},
			engine.SessionTest: {
				PreferredSlots: []int{0, 1, 2, 3},
				PreferredRooms: []string{"Amphitheater"},
			},
		},
		TotalAttendees: 600,
	}
}
