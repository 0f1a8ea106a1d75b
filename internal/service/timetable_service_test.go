package service

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadplan/timetable-api/internal/dto"
	"github.com/acadplan/timetable-api/internal/models"
	"github.com/acadplan/timetable-api/internal/repository"
	"github.com/acadplan/timetable-api/pkg/config"
	appErrors "github.com/acadplan/timetable-api/pkg/errors"
)

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		DefaultGenerations:    5,
		DefaultPopulationSize: 10,
		MutationRate:          0.05,
		CrossoverRate:         0.8,
		ElitismRate:           0.1,
		MaxStagnation:         50,
		Workers:               2,
		MaxGenerations:        1000,
		MinGenerations:        1,
		MaxPopulationSize:     500,
		MinPopulationSize:     10,
		ProposalTTL:           time.Minute,
		AsyncWorkers:          1,
		AsyncQueueSize:        4,
		AsyncRetries:          1,
	}
}

func newTestTimetableService(t *testing.T, repo timetableRepository, tx txProvider) *TimetableService {
	catalog, err := NewCatalog()
	require.NoError(t, err)
	cache := NewCacheService(nil, nil, 0, nil, false)
	return NewTimetableService(repo, tx, cache, nil, catalog, NewFormatter(catalog), nil, nil, testSchedulerConfig())
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestTimetableServiceGenerateSync(t *testing.T) {
	svc := newTestTimetableService(t, nil, nil)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Seed: int64Ptr(11)})
	require.NoError(t, err)

	assert.Equal(t, models.ProposalStateReady, resp.State)
	require.NotNil(t, resp.Score)
	assert.GreaterOrEqual(t, *resp.Score, 0.0)
	require.NotNil(t, resp.Timetable)
	assert.Greater(t, resp.Timetable.TotalSessions, 0)
	require.NotNil(t, resp.Stats)
	assert.NotEmpty(t, resp.Stats.Reason)
	require.NotNil(t, resp.Diagnostics)

	fetched, err := svc.GetProposal(context.Background(), resp.ProposalID)
	require.NoError(t, err)
	assert.Equal(t, resp.ProposalID, fetched.ProposalID)
	assert.Equal(t, models.ProposalStateReady, fetched.State)
}

func TestTimetableServiceGenerateIsDeterministicPerSeed(t *testing.T) {
	svc := newTestTimetableService(t, nil, nil)

	first, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Seed: int64Ptr(42)})
	require.NoError(t, err)
	second, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Seed: int64Ptr(42)})
	require.NoError(t, err)

	assert.Equal(t, *first.Score, *second.Score)
}

func TestTimetableServiceGenerateRejectsOutOfBoundsParams(t *testing.T) {
	svc := newTestTimetableService(t, nil, nil)

	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Generations: intPtr(0)})
	assert.Error(t, err)

	_, err = svc.Generate(context.Background(), dto.GenerateTimetableRequest{PopulationSize: intPtr(5)})
	assert.Error(t, err)
}

func TestTimetableServiceGenerateAsync(t *testing.T) {
	svc := newTestTimetableService(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	resp, err := svc.Generate(ctx, dto.GenerateTimetableRequest{Seed: int64Ptr(7), Async: true})
	require.NoError(t, err)
	assert.Equal(t, models.ProposalStatePending, resp.State)
	assert.Nil(t, resp.Timetable)

	require.Eventually(t, func() bool {
		fetched, err := svc.GetProposal(ctx, resp.ProposalID)
		return err == nil && fetched.State == models.ProposalStateReady
	}, 30*time.Second, 50*time.Millisecond)
}

func TestTimetableServiceProposalExpires(t *testing.T) {
	svc := newTestTimetableService(t, nil, nil)
	svc.config.ProposalTTL = time.Millisecond

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Seed: int64Ptr(3)})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = svc.GetProposal(context.Background(), resp.ProposalID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrProposalExpired.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceSavePersistsProposal(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	repo := repository.NewTimetableRepository(sqlxDB)
	svc := newTestTimetableService(t, repo, sqlxDB)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Seed: int64Ptr(21)})
	require.NoError(t, err)
	require.Equal(t, models.ProposalStateReady, resp.State)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) + 1 FROM timetables WHERE label = $1")).
		WithArgs("fall-2026").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetables")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	for i := 0; i < resp.Timetable.TotalSessions; i++ {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_slots")).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	saved, err := svc.Save(context.Background(), dto.SaveTimetableRequest{
		ProposalID: resp.ProposalID,
		Label:      "fall-2026",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)
	assert.Equal(t, *resp.Score, saved.Score)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Accepted proposals cannot be saved twice.
	_, err = svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: resp.ProposalID})
	assert.Error(t, err)
}

func TestTimetableServiceSaveRejectsUnknownProposal(t *testing.T) {
	svc := newTestTimetableService(t, nil, nil)

	_, err := svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: "missing"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrProposalExpired.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceConfiguration(t *testing.T) {
	svc := newTestTimetableService(t, nil, nil)

	cfg, cacheHit, err := svc.Configuration(context.Background())
	require.NoError(t, err)
	assert.False(t, cacheHit)

	assert.Len(t, cfg.Days, 5)
	assert.Equal(t, 4, cfg.SlotsPerDay)
	assert.Len(t, cfg.Rooms, 6)
	assert.Len(t, cfg.Topics, 4)
	assert.Len(t, cfg.SessionTypes, 4)
	assert.Equal(t, 6, cfg.InstancesPerSession)
	assert.Equal(t, 5, cfg.Defaults.Generations)
	assert.Equal(t, 1000, cfg.Defaults.MaxGenerations)
}

type stubTimetableRepo struct {
	timetableRepository
	rows  []models.Timetable
	total int
}

func (s *stubTimetableRepo) List(ctx context.Context, label string, limit, offset int) ([]models.Timetable, error) {
	return s.rows, nil
}

func (s *stubTimetableRepo) Count(ctx context.Context, label string) (int, error) {
	return s.total, nil
}

func (s *stubTimetableRepo) Delete(ctx context.Context, id string) error {
	if id == "missing" {
		return sql.ErrNoRows
	}
	return nil
}

func TestTimetableServiceListPaginates(t *testing.T) {
	repo := &stubTimetableRepo{
		rows: []models.Timetable{
			{ID: "tt-1", Label: "fall-2026", Version: 2, Status: models.TimetableStatusDraft, Score: 55},
		},
		total: 45,
	}
	svc := newTestTimetableService(t, repo, nil)

	metas, pagination, err := svc.List(context.Background(), dto.TimetableListQuery{Page: 2, Limit: 20})
	require.NoError(t, err)
	assert.Len(t, metas, 1)
	assert.Equal(t, "tt-1", metas[0].ID)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 45, pagination.Total)
	assert.Equal(t, 3, pagination.TotalPages)
}

func TestTimetableServiceDeleteNotFound(t *testing.T) {
	svc := newTestTimetableService(t, &stubTimetableRepo{}, nil)

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
