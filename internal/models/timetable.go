package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx/types"

	"github.com/acadplan/timetable-api/internal/engine"
)

// TimetableStatus represents lifecycle phases for generated timetables.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
	TimetableStatusArchived  TimetableStatus = "ARCHIVED"
)

// Timetable is a persisted, versioned timetable accepted from a proposal.
type Timetable struct {
	ID        string          `db:"id" json:"id"`
	Label     string          `db:"label" json:"label"`
	Version   int             `db:"version" json:"version"`
	Status    TimetableStatus `db:"status" json:"status"`
	Score     float64         `db:"score" json:"score"`
	Meta      types.JSONText  `db:"meta" json:"meta"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// TimetableSlot is one stored session placement of a timetable.
type TimetableSlot struct {
	ID          string    `db:"id" json:"id"`
	TimetableID string    `db:"timetable_id" json:"timetable_id"`
	Topic       string    `db:"topic" json:"topic"`
	SessionType string    `db:"session_type" json:"session_type"`
	Day         int       `db:"day" json:"day"`
	Slot        int       `db:"slot" json:"slot"`
	Room        string    `db:"room" json:"room"`
	Teacher     string    `db:"teacher" json:"teacher"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TimetableMeta is the lightweight list view of a stored timetable.
type TimetableMeta struct {
	ID        string          `json:"id"`
	Label     string          `json:"label"`
	Version   int             `json:"version"`
	Status    TimetableStatus `json:"status"`
	Score     float64         `json:"score"`
	CreatedAt time.Time       `json:"created_at"`
}

// ProposalState tracks the lifecycle of an in-memory proposal.
type ProposalState string

const (
	ProposalStatePending  ProposalState = "PENDING"
	ProposalStateRunning  ProposalState = "RUNNING"
	ProposalStateReady    ProposalState = "READY"
	ProposalStateFailed   ProposalState = "FAILED"
	ProposalStateAccepted ProposalState = "ACCEPTED"
)

// Proposal is a generated timetable held in memory until it expires,
// is accepted, or is discarded.
type Proposal struct {
	ID          string             `json:"id"`
	State       ProposalState      `json:"state"`
	Params      engine.Params      `json:"params"`
	Chromosome  engine.Chromosome  `json:"-"`
	Score       float64            `json:"score"`
	Stats       engine.Stats       `json:"stats"`
	View        *TimetableView     `json:"view,omitempty"`
	Diagnostics *ValidationSummary `json:"diagnostics,omitempty"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

// SessionView is one presentable session placement.
type SessionView struct {
	Session  string `json:"session"`
	Topic    string `json:"topic"`
	Type     string `json:"type"`
	Room     string `json:"room"`
	Teacher  string `json:"teacher"`
	Capacity int    `json:"capacity"`
	Day      int    `json:"day_index"`
	Slot     int    `json:"slot_index"`
}

// TimetableView is the day/slot indexed presentation of a chromosome.
type TimetableView struct {
	Days          []DayView           `json:"days"`
	TotalSessions int                 `json:"total_sessions"`
	Statistics    TimetableStatistics `json:"statistics"`
	GeneratedAt   time.Time           `json:"generated_at"`
}

// DayView groups one day's slots.
type DayView struct {
	Day   string     `json:"day"`
	Slots []SlotView `json:"slots"`
}

// SlotView lists the sessions running in one named period.
type SlotView struct {
	Slot     string        `json:"slot"`
	Sessions []SessionView `json:"sessions"`
}

// ValidationSummary aggregates post-run diagnostics over a solution.
type ValidationSummary struct {
	Valid            bool     `json:"valid"`
	RoomConflicts    []string `json:"room_conflicts,omitempty"`
	TeacherConflicts []string `json:"teacher_conflicts,omitempty"`
	OrderingIssues   []string `json:"ordering_issues,omitempty"`
	Completeness     []string `json:"completeness_issues,omitempty"`
}

// TimetableStatistics summarises a solution for reporting.
type TimetableStatistics struct {
	TotalSessions   int            `json:"total_sessions"`
	SessionsByType  map[string]int `json:"sessions_by_type"`
	SessionsByTopic map[string]int `json:"sessions_by_topic"`
	RoomUtilization map[string]int `json:"room_utilization"`
	TeacherWorkload map[string]int `json:"teacher_workload"`
	UniqueSlotsUsed int            `json:"unique_slots_used"`
	UniqueDaysUsed  int            `json:"unique_days_used"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Roles recognised by the authorization middleware.
const (
	RoleAdmin   = "admin"
	RolePlanner = "planner"
)

// JWTClaims is the token payload attached to authenticated requests.
type JWTClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SystemMetrics is the aggregated runtime snapshot served to operators.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	OptimizationsTotal       uint64    `json:"optimizations_total"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
