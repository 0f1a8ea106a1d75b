package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/acadplan/timetable-api/internal/engine"
	"github.com/acadplan/timetable-api/internal/models"
)

// Formatter turns raw chromosomes into presentable day/slot views with
// validation diagnostics. It never assumes engine invariants hold: a
// missing key or wrong instance count is reported, not crashed on,
// since those invariants are optimization targets rather than
// guarantees on every candidate.
type Formatter struct {
	catalog *Catalog
}

// NewFormatter builds a formatter over the institution catalog.
func NewFormatter(catalog *Catalog) *Formatter {
	return &Formatter{catalog: catalog}
}

// Format builds the structured view and its diagnostics.
func (f *Formatter) Format(c engine.Chromosome) (*models.TimetableView, *models.ValidationSummary) {
	domain := f.catalog.Domain()

	type slotKey struct{ day, slot int }
	byTime := make(map[slotKey][]models.SessionView)

	for key, assignments := range c {
		for _, a := range assignments {
			byTime[slotKey{a.Day, a.Slot}] = append(byTime[slotKey{a.Day, a.Slot}], models.SessionView{
				Session:  key.Topic + "_" + key.SessionType,
				Topic:    key.Topic,
				Type:     key.SessionType,
				Room:     a.Room,
				Teacher:  a.Teacher,
				Capacity: f.catalog.RoomCapacity(a.Room),
				Day:      a.Day,
				Slot:     a.Slot,
			})
		}
	}

	view := &models.TimetableView{
		TotalSessions: c.TotalAssignments(),
		Statistics:    f.statistics(c),
		GeneratedAt:   time.Now().UTC(),
	}
	for d, dayName := range domain.Days() {
		day := models.DayView{Day: dayName}
		for s := 0; s < domain.SlotsPerDay(); s++ {
			sessions := byTime[slotKey{d, s}]
			sort.Slice(sessions, func(i, j int) bool { return sessions[i].Room < sessions[j].Room })
			day.Slots = append(day.Slots, models.SlotView{
				Slot:     f.catalog.SlotName(s),
				Sessions: sessions,
			})
		}
		view.Days = append(view.Days, day)
	}

	return view, f.Validate(c)
}

// Validate runs the full diagnostic sweep over a solution.
func (f *Formatter) Validate(c engine.Chromosome) *models.ValidationSummary {
	summary := &models.ValidationSummary{
		RoomConflicts:    f.roomConflicts(c),
		TeacherConflicts: f.teacherConflicts(c),
		OrderingIssues:   f.orderingIssues(c),
		Completeness:     f.completenessIssues(c),
	}
	summary.Valid = len(summary.RoomConflicts) == 0 && len(summary.TeacherConflicts) == 0
	return summary
}

func (f *Formatter) roomConflicts(c engine.Chromosome) []string {
	type occupancy struct {
		day, slot int
		room      string
	}
	usage := make(map[occupancy][]string)
	for key, assignments := range c {
		for _, a := range assignments {
			k := occupancy{a.Day, a.Slot, a.Room}
			usage[k] = append(usage[k], key.String())
		}
	}

	var conflicts []string
	for k, sessions := range usage {
		if len(sessions) > 1 {
			sort.Strings(sessions)
			conflicts = append(conflicts, fmt.Sprintf("room %s double-booked at %s %s: %v",
				k.room, f.dayName(k.day), f.catalog.SlotName(k.slot), sessions))
		}
	}
	sort.Strings(conflicts)
	return conflicts
}

func (f *Formatter) teacherConflicts(c engine.Chromosome) []string {
	type occupancy struct {
		day, slot int
		teacher   string
	}
	usage := make(map[occupancy][]string)
	for key, assignments := range c {
		for _, a := range assignments {
			k := occupancy{a.Day, a.Slot, a.Teacher}
			usage[k] = append(usage[k], fmt.Sprintf("%s in %s", key, a.Room))
		}
	}

	var conflicts []string
	for k, sessions := range usage {
		if len(sessions) > 1 {
			sort.Strings(sessions)
			conflicts = append(conflicts, fmt.Sprintf("teacher %s double-booked at %s %s: %v",
				k.teacher, f.dayName(k.day), f.catalog.SlotName(k.slot), sessions))
		}
	}
	sort.Strings(conflicts)
	return conflicts
}

func (f *Formatter) orderingIssues(c engine.Chromosome) []string {
	domain := f.catalog.Domain()
	var issues []string
	for _, topic := range domain.Topics() {
		if domain.TimeOrderingViolated(c, topic) {
			issues = append(issues, fmt.Sprintf("topic %s: theory, practical and test are not in teaching order", topic))
		}
	}
	return issues
}

func (f *Formatter) completenessIssues(c engine.Chromosome) []string {
	domain := f.catalog.Domain()
	var issues []string
	for _, key := range domain.Keys() {
		switch n := len(c[key]); {
		case n == 0:
			issues = append(issues, fmt.Sprintf("missing sessions for %s", key))
		case n != domain.InstancesPerSession():
			issues = append(issues, fmt.Sprintf("wrong session count for %s: expected %d, got %d",
				key, domain.InstancesPerSession(), n))
		}
	}
	return issues
}

func (f *Formatter) statistics(c engine.Chromosome) models.TimetableStatistics {
	stats := models.TimetableStatistics{
		SessionsByType:  make(map[string]int),
		SessionsByTopic: make(map[string]int),
		RoomUtilization: make(map[string]int),
		TeacherWorkload: make(map[string]int),
	}
	type slotKey struct{ day, slot int }
	slotsUsed := make(map[slotKey]bool)
	daysUsed := make(map[int]bool)

	for key, assignments := range c {
		stats.TotalSessions += len(assignments)
		stats.SessionsByType[key.SessionType] += len(assignments)
		stats.SessionsByTopic[key.Topic] += len(assignments)
		for _, a := range assignments {
			stats.RoomUtilization[a.Room]++
			stats.TeacherWorkload[a.Teacher]++
			slotsUsed[slotKey{a.Day, a.Slot}] = true
			daysUsed[a.Day] = true
		}
	}
	stats.UniqueSlotsUsed = len(slotsUsed)
	stats.UniqueDaysUsed = len(daysUsed)
	return stats
}

func (f *Formatter) dayName(day int) string {
	days := f.catalog.Domain().Days()
	if day >= 0 && day < len(days) {
		return days[day]
	}
	return fmt.Sprintf("Day %d", day)
}
