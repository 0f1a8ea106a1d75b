package dto

import (
	"time"

	"github.com/acadplan/timetable-api/internal/models"
)

// GenerateTimetableRequest tunes one optimization run. Generations and
// population size bounds are API policy; defaults come from
// configuration when a field is omitted.
type GenerateTimetableRequest struct {
	Generations    *int     `json:"generations" validate:"omitempty,min=1,max=1000"`
	PopulationSize *int     `json:"populationSize" validate:"omitempty,min=10,max=500"`
	MutationRate   *float64 `json:"mutationRate" validate:"omitempty,gt=0,lte=1"`
	CrossoverRate  *float64 `json:"crossoverRate" validate:"omitempty,gt=0,lte=1"`
	ElitismRate    *float64 `json:"elitismRate" validate:"omitempty,gt=0,lte=1"`
	MaxStagnation  *int     `json:"maxStagnation" validate:"omitempty,min=0,max=1000"`
	Seed           *int64   `json:"seed"`
	Async          bool     `json:"async"`
}

// GenerateTimetableResponse returns a completed or enqueued proposal.
type GenerateTimetableResponse struct {
	ProposalID  string                     `json:"proposalId"`
	State       models.ProposalState       `json:"state"`
	Score       *float64                   `json:"score,omitempty"`
	Timetable   *models.TimetableView      `json:"timetable,omitempty"`
	Diagnostics *models.ValidationSummary  `json:"diagnostics,omitempty"`
	Stats       *OptimizationStatsResponse `json:"stats,omitempty"`
	ExpiresAt   time.Time                  `json:"expiresAt"`
}

// OptimizationStatsResponse summarises one engine run for API clients.
type OptimizationStatsResponse struct {
	Generations         int       `json:"generations"`
	BestScores          []float64 `json:"bestScores"`
	Diversity           []float64 `json:"diversity"`
	FallbackAssignments int       `json:"fallbackAssignments"`
	CacheHitRate        float64   `json:"cacheHitRate"`
	ElapsedMs           int64     `json:"elapsedMs"`
	Reason              string    `json:"reason"`
}

// SaveTimetableRequest persists an accepted proposal.
type SaveTimetableRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
	Label      string `json:"label" validate:"omitempty,max=120"`
}

// SaveTimetableResponse reports the stored record.
type SaveTimetableResponse struct {
	ID      string  `json:"id"`
	Version int     `json:"version"`
	Score   float64 `json:"score"`
}

// TimetableListQuery filters stored timetables.
type TimetableListQuery struct {
	Label string `form:"label" json:"label"`
	Page  int    `form:"page" json:"page" validate:"omitempty,min=1"`
	Limit int    `form:"limit" json:"limit" validate:"omitempty,min=1,max=100"`
}

// StoredTimetableResponse is a persisted timetable rebuilt into its
// presentable view.
type StoredTimetableResponse struct {
	Timetable   models.TimetableMeta      `json:"timetable"`
	View        *models.TimetableView     `json:"view"`
	Diagnostics *models.ValidationSummary `json:"diagnostics"`
}

// ConfigurationResponse summarises the scheduling domain for clients.
type ConfigurationResponse struct {
	Days                []string                  `json:"days"`
	SlotsPerDay         int                       `json:"slotsPerDay"`
	SlotNames           []string                  `json:"slotNames"`
	Rooms               []RoomResponse            `json:"rooms"`
	Topics              []TopicResponse           `json:"topics"`
	SessionTypes        []SessionTypeResponse     `json:"sessionTypes"`
	TotalAttendees      int                       `json:"totalAttendees"`
	InstancesPerSession int                       `json:"instancesPerSession"`
	Defaults            DefaultParametersResponse `json:"defaults"`
}

// RoomResponse describes one bookable room.
type RoomResponse struct {
	Name      string   `json:"name"`
	Capacity  int      `json:"capacity"`
	Type      string   `json:"type"`
	Equipment []string `json:"equipment"`
}

// TopicResponse describes a topic and its teaching staff.
type TopicResponse struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Teachers []string `json:"teachers"`
}

// SessionTypeResponse describes one session type's placement preferences.
type SessionTypeResponse struct {
	Name           string   `json:"name"`
	PreferredSlots []int    `json:"preferredSlots"`
	PreferredRooms []string `json:"preferredRooms"`
}

// DefaultParametersResponse echoes the configured optimizer defaults
// and the accepted bounds.
type DefaultParametersResponse struct {
	Generations    int     `json:"generations"`
	PopulationSize int     `json:"populationSize"`
	MutationRate   float64 `json:"mutationRate"`
	CrossoverRate  float64 `json:"crossoverRate"`
	ElitismRate    float64 `json:"elitismRate"`
	MaxStagnation  int     `json:"maxStagnation"`
	MinGenerations int     `json:"minGenerations"`
	MaxGenerations int     `json:"maxGenerations"`
	MinPopulation  int     `json:"minPopulation"`
	MaxPopulation  int     `json:"maxPopulation"`
}
