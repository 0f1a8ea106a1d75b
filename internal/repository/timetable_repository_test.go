package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadplan/timetable-api/internal/models"
)

func newTimetableRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTimetableRepositoryCreateVersioned(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) + 1 FROM timetables WHERE label = $1")).
		WithArgs("fall-2026").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetables")).
		WithArgs(sqlmock.AnyArg(), "fall-2026", 3, string(models.TimetableStatusDraft), 120.5, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	payload := &models.Timetable{
		Label: "fall-2026",
		Score: 120.5,
		Meta:  types.JSONText(`{"generations":42}`),
	}
	err := repo.CreateVersioned(context.Background(), nil, payload)
	require.NoError(t, err)
	assert.Equal(t, 3, payload.Version)
	assert.NotEmpty(t, payload.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryCreateVersionedRequiresLabel(t *testing.T) {
	db, _, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	err := repo.CreateVersioned(context.Background(), nil, &models.Timetable{})
	assert.Error(t, err)
}

func TestTimetableRepositoryInsertSlots(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_slots")).
		WithArgs(sqlmock.AnyArg(), "tt-1", "A", "Theory", 0, 1, "Amphitheater", "A1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_slots")).
		WithArgs(sqlmock.AnyArg(), "tt-1", "A", "Practical", 1, 2, "Classroom3", "A2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	slots := []models.TimetableSlot{
		{TimetableID: "tt-1", Topic: "A", SessionType: "Theory", Day: 0, Slot: 1, Room: "Amphitheater", Teacher: "A1"},
		{TimetableID: "tt-1", Topic: "A", SessionType: "Practical", Day: 1, Slot: 2, Room: "Classroom3", Teacher: "A2"},
	}
	require.NoError(t, repo.InsertSlots(context.Background(), nil, slots))
	assert.NotEmpty(t, slots[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	rows := sqlmock.NewRows([]string{"id", "label", "version", "status", "score", "meta", "created_at", "updated_at"}).
		AddRow("tt-1", "fall-2026", 1, string(models.TimetableStatusPublished), 75.0, types.JSONText(`{}`), time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, label, version, status, score, meta, created_at, updated_at FROM timetables WHERE id = $1")).
		WithArgs("tt-1").
		WillReturnRows(rows)

	timetable, err := repo.FindByID(context.Background(), "tt-1")
	require.NoError(t, err)
	assert.Equal(t, "fall-2026", timetable.Label)
	assert.Equal(t, models.TimetableStatusPublished, timetable.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositorySlotsByTimetable(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	rows := sqlmock.NewRows([]string{"id", "timetable_id", "topic", "session_type", "day", "slot", "room", "teacher", "created_at"}).
		AddRow("slot-1", "tt-1", "A", "Theory", 0, 0, "Amphitheater", "A1", time.Now()).
		AddRow("slot-2", "tt-1", "B", "Test", 2, 1, "Amphitheater", "B1", time.Now())
	mock.ExpectQuery("SELECT id, timetable_id, topic, session_type").
		WithArgs("tt-1").
		WillReturnRows(rows)

	slots, err := repo.SlotsByTimetable(context.Background(), "tt-1")
	require.NoError(t, err)
	assert.Len(t, slots, 2)
	assert.Equal(t, "Theory", slots[0].SessionType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryListFiltersByLabel(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	rows := sqlmock.NewRows([]string{"id", "label", "version", "status", "score", "meta", "created_at", "updated_at"}).
		AddRow("tt-2", "fall-2026", 2, string(models.TimetableStatusDraft), 40.0, types.JSONText(`{}`), time.Now(), time.Now())
	mock.ExpectQuery("FROM timetables WHERE label").
		WithArgs("fall-2026", 10, 0).
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), "fall-2026", 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetables WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(1, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newTimetableRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetables SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(string(models.TimetableStatusArchived), sqlmock.AnyArg(), "tt-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.UpdateStatus(context.Background(), nil, "tt-1", models.TimetableStatusArchived)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
