package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/acadplan/timetable-api/internal/dto"
	"github.com/acadplan/timetable-api/internal/engine"
	"github.com/acadplan/timetable-api/internal/models"
	"github.com/acadplan/timetable-api/pkg/config"
	appErrors "github.com/acadplan/timetable-api/pkg/errors"
	"github.com/acadplan/timetable-api/pkg/jobs"
)

const (
	configCacheKey      = "timetable:configuration"
	storedCachePrefix   = "timetable:stored:"
	storedCachePattern  = "timetable:stored:*"
	proposalSweepPeriod = time.Minute
)

type timetableRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error
	InsertSlots(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	SlotsByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSlot, error)
	List(ctx context.Context, label string, limit, offset int) ([]models.Timetable, error)
	Count(ctx context.Context, label string) (int, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TimetableService orchestrates timetable generation, proposal
// lifecycle and persistence of accepted results.
type TimetableService struct {
	repo      timetableRepository
	tx        txProvider
	cache     *CacheService
	metrics   *MetricsService
	catalog   *Catalog
	formatter *Formatter
	validator *validator.Validate
	logger    *zap.Logger
	config    config.SchedulerConfig

	mu        sync.RWMutex
	proposals map[string]*models.Proposal

	queue *jobs.Queue
}

// NewTimetableService constructs the timetable service.
func NewTimetableService(
	repo timetableRepository,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	catalog *Catalog,
	formatter *Formatter,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg config.SchedulerConfig,
) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}

	s := &TimetableService{
		repo:      repo,
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		catalog:   catalog,
		formatter: formatter,
		validator: validate,
		logger:    logger,
		config:    cfg,
		proposals: make(map[string]*models.Proposal),
	}
	s.queue = jobs.NewQueue("timetable-optimize", s.handleOptimizeJob, jobs.QueueConfig{
		Workers:    cfg.AsyncWorkers,
		BufferSize: cfg.AsyncQueueSize,
		MaxRetries: cfg.AsyncRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the async workers and the proposal expiry sweep.
func (s *TimetableService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	go s.sweepExpired(ctx)
}

// Stop drains the async workers.
func (s *TimetableService) Stop() {
	s.queue.Stop()
}

// Generate runs the optimizer, or enqueues a run when async is
// requested, and returns the resulting proposal.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation parameters")
	}

	params := s.resolveParams(req)
	proposal := &models.Proposal{
		ID:        uuid.NewString(),
		State:     models.ProposalStatePending,
		Params:    params,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(s.config.ProposalTTL),
	}
	s.storeProposal(proposal)

	if req.Async {
		if err := s.queue.Enqueue(jobs.Job{ID: proposal.ID, Type: "optimize", Payload: proposal.ID}); err != nil {
			s.dropProposal(proposal.ID)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue optimization")
		}
		return s.proposalResponse(proposal), nil
	}

	if err := s.optimize(proposal.ID); err != nil {
		return nil, err
	}
	stored, err := s.loadProposal(proposal.ID)
	if err != nil {
		return nil, err
	}
	return s.proposalResponse(stored), nil
}

// GetProposal returns a proposal by ID while it is still alive.
func (s *TimetableService) GetProposal(ctx context.Context, id string) (*dto.GenerateTimetableResponse, error) {
	proposal, err := s.loadProposal(id)
	if err != nil {
		return nil, err
	}
	return s.proposalResponse(proposal), nil
}

// Save persists a ready proposal as a new versioned timetable.
func (s *TimetableService) Save(ctx context.Context, req dto.SaveTimetableRequest) (*dto.SaveTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save payload")
	}

	proposal, err := s.loadProposal(req.ProposalID)
	if err != nil {
		return nil, err
	}
	if proposal.State != models.ProposalStateReady {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("proposal is %s, only READY proposals can be saved", proposal.State))
	}

	label := req.Label
	if label == "" {
		label = "timetable"
	}

	meta, err := json.Marshal(map[string]interface{}{
		"generations":          proposal.Stats.Generations,
		"reason":               proposal.Stats.Reason,
		"elapsed_ms":           proposal.Stats.Elapsed.Milliseconds(),
		"seed":                 proposal.Params.Seed,
		"fallback_assignments": proposal.Stats.Fallbacks,
		"cache_hit_rate":       proposal.Stats.Cache.HitRate,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run metadata")
	}

	timetable := &models.Timetable{
		Label: label,
		Score: proposal.Score,
		Meta:  types.JSONText(meta),
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := s.repo.CreateVersioned(ctx, tx, timetable); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable")
	}
	if err := s.repo.InsertSlots(ctx, tx, s.chromosomeToSlots(timetable.ID, proposal.Chromosome)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable slots")
	}
	if err := tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable")
	}

	s.mu.Lock()
	proposal.State = models.ProposalStateAccepted
	s.mu.Unlock()

	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, storedCachePattern)
	}

	s.logger.Info("timetable saved",
		zap.String("timetable_id", timetable.ID),
		zap.String("label", timetable.Label),
		zap.Int("version", timetable.Version),
		zap.Float64("score", timetable.Score))

	return &dto.SaveTimetableResponse{
		ID:      timetable.ID,
		Version: timetable.Version,
		Score:   timetable.Score,
	}, nil
}

// Get loads a stored timetable and rebuilds its presentable view. The
// returned flag reports whether the response came from cache.
func (s *TimetableService) Get(ctx context.Context, id string) (*dto.StoredTimetableResponse, bool, error) {
	cacheKey := storedCachePrefix + id
	if s.cache.Enabled() {
		var cached dto.StoredTimetableResponse
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, true, nil
		}
	}

	timetable, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	slots, err := s.repo.SlotsByTimetable(ctx, id)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable slots")
	}

	view, diagnostics := s.formatter.Format(s.slotsToChromosome(slots))
	resp := &dto.StoredTimetableResponse{
		Timetable:   toTimetableMeta(timetable),
		View:        view,
		Diagnostics: diagnostics,
	}

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, cacheKey, resp, s.config.ResultCacheTTL)
	}
	return resp, false, nil
}

// List returns stored timetables with pagination metadata.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableListQuery) ([]models.TimetableMeta, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid list query")
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit < 1 {
		limit = 20
	}

	total, err := s.repo.Count(ctx, query.Label)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count timetables")
	}
	rows, err := s.repo.List(ctx, query.Label, limit, (page-1)*limit)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}

	metas := make([]models.TimetableMeta, 0, len(rows))
	for i := range rows {
		metas = append(metas, toTimetableMeta(&rows[i]))
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return metas, &models.Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// Delete removes a stored timetable.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, storedCachePattern)
	}
	return nil
}

// Publish marks a stored timetable as the published one.
func (s *TimetableService) Publish(ctx context.Context, id string) error {
	if err := s.repo.UpdateStatus(ctx, nil, id, models.TimetableStatusPublished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable")
	}
	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, storedCachePattern)
	}
	return nil
}

// Configuration describes the scheduling domain and optimizer
// defaults. The returned flag reports a cache hit.
func (s *TimetableService) Configuration(ctx context.Context) (*dto.ConfigurationResponse, bool, error) {
	if s.cache.Enabled() {
		var cached dto.ConfigurationResponse
		if hit, _ := s.cache.Get(ctx, configCacheKey, &cached); hit {
			return &cached, true, nil
		}
	}

	domainCfg := s.catalog.Config()
	domain := s.catalog.Domain()

	rooms := make([]dto.RoomResponse, 0, len(domainCfg.Rooms))
	for _, room := range domainCfg.Rooms {
		rooms = append(rooms, dto.RoomResponse{
			Name:      room.Name,
			Capacity:  room.Capacity,
			Type:      room.Type,
			Equipment: room.Equipment,
		})
	}

	topics := make([]dto.TopicResponse, 0, len(domainCfg.Topics))
	for _, topic := range domainCfg.Topics {
		var names []string
		for _, teacher := range domainCfg.Teachers[topic] {
			names = append(names, teacher.Name)
		}
		topics = append(topics, dto.TopicResponse{
			Code:     topic,
			Name:     s.catalog.TopicName(topic),
			Teachers: names,
		})
	}

	sessionTypes := make([]dto.SessionTypeResponse, 0, len(domainCfg.SessionTypes))
	for _, st := range domainCfg.SessionTypes {
		pref := domainCfg.Preferences[st]
		sessionTypes = append(sessionTypes, dto.SessionTypeResponse{
			Name:           st,
			PreferredSlots: pref.PreferredSlots,
			PreferredRooms: pref.PreferredRooms,
		})
	}

	resp := &dto.ConfigurationResponse{
		Days:                domainCfg.Days,
		SlotsPerDay:         domainCfg.SlotsPerDay,
		SlotNames:           s.catalog.SlotNames(),
		Rooms:               rooms,
		Topics:              topics,
		SessionTypes:        sessionTypes,
		TotalAttendees:      domainCfg.TotalAttendees,
		InstancesPerSession: domain.InstancesPerSession(),
		Defaults: dto.DefaultParametersResponse{
			Generations:    s.config.DefaultGenerations,
			PopulationSize: s.config.DefaultPopulationSize,
			MutationRate:   s.config.MutationRate,
			CrossoverRate:  s.config.CrossoverRate,
			ElitismRate:    s.config.ElitismRate,
			MaxStagnation:  s.config.MaxStagnation,
			MinGenerations: s.config.MinGenerations,
			MaxGenerations: s.config.MaxGenerations,
			MinPopulation:  s.config.MinPopulationSize,
			MaxPopulation:  s.config.MaxPopulationSize,
		},
	}

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, configCacheKey, resp, s.config.ConfigCacheTTL)
	}
	return resp, false, nil
}

func (s *TimetableService) resolveParams(req dto.GenerateTimetableRequest) engine.Params {
	params := engine.Params{
		Generations:    s.config.DefaultGenerations,
		PopulationSize: s.config.DefaultPopulationSize,
		MutationRate:   s.config.MutationRate,
		CrossoverRate:  s.config.CrossoverRate,
		ElitismRate:    s.config.ElitismRate,
		MaxStagnation:  s.config.MaxStagnation,
		Workers:        s.config.Workers,
	}
	if req.Generations != nil {
		params.Generations = *req.Generations
	}
	if req.PopulationSize != nil {
		params.PopulationSize = *req.PopulationSize
	}
	if req.MutationRate != nil {
		params.MutationRate = *req.MutationRate
	}
	if req.CrossoverRate != nil {
		params.CrossoverRate = *req.CrossoverRate
	}
	if req.ElitismRate != nil {
		params.ElitismRate = *req.ElitismRate
	}
	if req.MaxStagnation != nil {
		params.MaxStagnation = *req.MaxStagnation
	}
	if req.Seed != nil {
		params.Seed = *req.Seed
	}
	return params
}

func (s *TimetableService) handleOptimizeJob(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(string)
	if !ok {
		id = job.ID
	}
	return s.optimize(id)
}

func (s *TimetableService) optimize(proposalID string) error {
	proposal, err := s.loadProposal(proposalID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	proposal.State = models.ProposalStateRunning
	s.mu.Unlock()

	eng, err := engine.New(s.catalog.Domain(), proposal.Params, s.logger)
	if err != nil {
		s.failProposal(proposal, err)
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid optimizer parameters")
	}

	result, err := eng.Run()
	if err != nil {
		s.failProposal(proposal, err)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "optimization failed")
	}

	view, diagnostics := s.formatter.Format(result.Best)

	s.mu.Lock()
	proposal.State = models.ProposalStateReady
	proposal.Chromosome = result.Best
	proposal.Score = result.Score
	proposal.Stats = result.Stats
	proposal.View = view
	proposal.Diagnostics = diagnostics
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ObserveOptimization(result.Score, result.Stats)
	}
	s.logger.Info("optimization finished",
		zap.String("proposal_id", proposal.ID),
		zap.Float64("score", result.Score),
		zap.Int("generations", result.Stats.Generations),
		zap.String("reason", result.Stats.Reason))
	return nil
}

func (s *TimetableService) failProposal(proposal *models.Proposal, err error) {
	s.mu.Lock()
	proposal.State = models.ProposalStateFailed
	proposal.Error = err.Error()
	s.mu.Unlock()
	s.logger.Error("optimization failed", zap.String("proposal_id", proposal.ID), zap.Error(err))
}

func (s *TimetableService) proposalResponse(p *models.Proposal) *dto.GenerateTimetableResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := &dto.GenerateTimetableResponse{
		ProposalID: p.ID,
		State:      p.State,
		ExpiresAt:  p.ExpiresAt,
	}
	if p.State == models.ProposalStateReady || p.State == models.ProposalStateAccepted {
		score := p.Score
		resp.Score = &score
		resp.Timetable = p.View
		resp.Diagnostics = p.Diagnostics
		resp.Stats = &dto.OptimizationStatsResponse{
			Generations:         p.Stats.Generations,
			BestScores:          p.Stats.BestScores,
			Diversity:           p.Stats.Diversity,
			FallbackAssignments: p.Stats.Fallbacks,
			CacheHitRate:        p.Stats.Cache.HitRate,
			ElapsedMs:           p.Stats.Elapsed.Milliseconds(),
			Reason:              p.Stats.Reason,
		}
	}
	return resp
}

func (s *TimetableService) storeProposal(p *models.Proposal) {
	s.mu.Lock()
	s.proposals[p.ID] = p
	s.mu.Unlock()
}

func (s *TimetableService) loadProposal(id string) (*models.Proposal, error) {
	s.mu.RLock()
	proposal, ok := s.proposals[id]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrProposalExpired, "proposal not found")
	}
	if time.Now().UTC().After(proposal.ExpiresAt) {
		s.dropProposal(id)
		return nil, appErrors.ErrProposalExpired
	}
	return proposal, nil
}

func (s *TimetableService) dropProposal(id string) {
	s.mu.Lock()
	delete(s.proposals, id)
	s.mu.Unlock()
}

func (s *TimetableService) sweepExpired(ctx context.Context) {
	ticker := time.NewTicker(proposalSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			s.mu.Lock()
			for id, proposal := range s.proposals {
				if now.After(proposal.ExpiresAt) {
					delete(s.proposals, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *TimetableService) chromosomeToSlots(timetableID string, c engine.Chromosome) []models.TimetableSlot {
	var slots []models.TimetableSlot
	for _, key := range s.catalog.Domain().Keys() {
		for _, a := range c[key] {
			slots = append(slots, models.TimetableSlot{
				TimetableID: timetableID,
				Topic:       key.Topic,
				SessionType: key.SessionType,
				Day:         a.Day,
				Slot:        a.Slot,
				Room:        a.Room,
				Teacher:     a.Teacher,
			})
		}
	}
	return slots
}

func (s *TimetableService) slotsToChromosome(slots []models.TimetableSlot) engine.Chromosome {
	c := make(engine.Chromosome)
	for _, slot := range slots {
		key := engine.SessionKey{Topic: slot.Topic, SessionType: slot.SessionType}
		c[key] = append(c[key], engine.Assignment{
			Day:     slot.Day,
			Slot:    slot.Slot,
			Room:    slot.Room,
			Teacher: slot.Teacher,
		})
	}
	return c
}

func toTimetableMeta(t *models.Timetable) models.TimetableMeta {
	return models.TimetableMeta{
		ID:        t.ID,
		Label:     t.Label,
		Version:   t.Version,
		Status:    t.Status,
		Score:     t.Score,
		CreatedAt: t.CreatedAt,
	}
}
