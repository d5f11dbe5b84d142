// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/venturelens/dealflow/internal/adapters/diligence"
	repository "github.com/venturelens/dealflow/internal/adapters/repository"
	"github.com/venturelens/dealflow/internal/domain/record"
	"github.com/venturelens/dealflow/internal/domain/risk"
	"github.com/venturelens/dealflow/internal/domain/view"
	"github.com/venturelens/dealflow/internal/subscription"
	"github.com/venturelens/dealflow/pkg/logger"
	"github.com/venturelens/dealflow/pkg/metrics"
)

// Memo payload keys the service reads when wiring diligence runs.
const memoIDKey = "id"

// Service implements the pipeline core behind the HTTP API.
type Service struct {
	mu sync.RWMutex

	// Core components
	store         repository.Store
	builder       *view.Builder
	scorer        *risk.Scorer
	subscriptions *subscription.Manager
	client        diligence.Client

	// Controller registry: one per memo id, created on demand. The registry
	// enforces the one-outstanding-trigger rule across callers.
	controllers     map[string]*diligence.Controller
	activeDiligence int

	// Configuration
	storeKind       string
	sqlitePath      string
	riskOptions     []risk.Option
	viewDefaults    view.Defaults
	pollInterval    time.Duration
	pollBudget      int
	transientBudget int
	clock           diligence.Clock

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithMemoryStore selects the in-memory record store.
func WithMemoryStore() Option {
	return func(s *Service) {
		s.storeKind = "memory"
	}
}

// WithSQLiteStore selects the SQLite record store at path.
func WithSQLiteStore(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.storeKind = "sqlite"
			s.sqlitePath = path
		}
	}
}

// WithStore injects a ready store, overriding the kind selection. Tests use
// this to run against a fake.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDiligenceClient sets the worker client.
func WithDiligenceClient(client diligence.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.client = client
		}
	}
}

// WithRiskOptions forwards configuration to the risk scorer.
func WithRiskOptions(opts ...risk.Option) Option {
	return func(s *Service) {
		s.riskOptions = opts
	}
}

// WithViewDefaults sets the view model defaulting policy.
func WithViewDefaults(d view.Defaults) Option {
	return func(s *Service) {
		s.viewDefaults = d
	}
}

// WithDiligencePolicy sets the poll interval and budgets for new controllers.
func WithDiligencePolicy(interval time.Duration, pollBudget, transientBudget int) Option {
	return func(s *Service) {
		if interval > 0 {
			s.pollInterval = interval
		}
		if pollBudget > 0 {
			s.pollBudget = pollBudget
		}
		if transientBudget > 0 {
			s.transientBudget = transientBudget
		}
	}
}

// WithDiligenceClock sets the poll timer source for new controllers.
func WithDiligenceClock(clk diligence.Clock) Option {
	return func(s *Service) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		controllers:     make(map[string]*diligence.Controller),
		storeKind:       "memory",
		viewDefaults:    view.StandardDefaults(),
		pollInterval:    2 * time.Second,
		pollBudget:      150,
		transientBudget: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting dealflow pipeline service...")

	if s.store == nil {
		switch s.storeKind {
		case "sqlite":
			store, err := repository.NewSQLiteStore(ctx, s.sqlitePath)
			if err != nil {
				return fmt.Errorf("open sqlite store: %w", err)
			}
			s.store = store
			s.logger.Info(ctx, "using sqlite store", logger.String("path", s.sqlitePath))
		default:
			s.store = repository.NewMemStore(ctx)
			s.logger.Info(ctx, "using in-memory store")
		}
	}

	s.scorer = risk.NewScorer(s.riskOptions...)
	s.builder = view.NewBuilder(
		view.WithScorer(s.scorer),
		view.WithDefaults(s.viewDefaults),
		view.WithLogger(s.logger.Named("view")),
	)
	s.subscriptions = subscription.NewManager(s.store, s.builder,
		subscription.WithLogger(s.logger.Named("subscription")),
	)

	s.started = true
	s.logger.Info(ctx, "dealflow pipeline service started",
		logger.String("store", s.storeKind),
		logger.Duration("pollInterval", s.pollInterval),
		logger.Int("pollBudget", s.pollBudget),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping dealflow pipeline service...")

	for _, c := range s.controllers {
		c.Reset()
	}
	s.controllers = make(map[string]*diligence.Controller)
	s.activeDiligence = 0
	metrics.UpdateDiligenceActive(0)

	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "dealflow pipeline service stopped")
}

// Deal builds the current view model for a deal.
// Returns repository.ErrNotFound when no record exists.
func (s *Service) Deal(ctx context.Context, id string) (view.Model, error) {
	rec, err := s.store.Snapshot(ctx, id)
	if err != nil {
		return view.Model{}, err
	}
	return s.builder.Build(ctx, id, rec), nil
}

// PutRecord upserts a raw record on behalf of the worker/upload boundary.
func (s *Service) PutRecord(ctx context.Context, rec record.RawRecord) error {
	return s.store.Put(ctx, rec)
}

// Subscribe attaches onUpdate to a deal's live view model stream.
func (s *Service) Subscribe(ctx context.Context, id string, onUpdate subscription.OnUpdate) (func(), error) {
	return s.subscriptions.Subscribe(ctx, id, onUpdate)
}

// StartDiligence requests a diligence run for the deal's first-stage memo.
// Returns diligence.ErrNoMemoID when the record has no memo id yet and
// diligence.ErrAlreadyRunning when a run is already in flight.
func (s *Service) StartDiligence(ctx context.Context, dealID string) (diligence.Snapshot, error) {
	rec, err := s.store.Snapshot(ctx, dealID)
	if err != nil {
		return diligence.Snapshot{}, err
	}
	memoID, ok := rec.Memo1.Text(memoIDKey)
	if !ok {
		return diligence.Snapshot{}, diligence.ErrNoMemoID
	}

	ctrl := s.controller(memoID)
	// Count the run before triggering so a fast terminal outcome cannot
	// decrement the gauge first.
	s.noteDiligence(+1)
	if err := ctrl.Trigger(ctx); err != nil {
		s.noteDiligence(-1)
		return ctrl.State(), err
	}
	return ctrl.State(), nil
}

// DiligenceState reports the run state for the deal's memo id.
// A deal whose run was never triggered reports Idle.
func (s *Service) DiligenceState(ctx context.Context, dealID string) (diligence.Snapshot, error) {
	rec, err := s.store.Snapshot(ctx, dealID)
	if err != nil {
		return diligence.Snapshot{}, err
	}
	memoID, ok := rec.Memo1.Text(memoIDKey)
	if !ok {
		return diligence.Snapshot{}, diligence.ErrNoMemoID
	}

	s.mu.RLock()
	ctrl, exists := s.controllers[memoID]
	s.mu.RUnlock()
	if !exists {
		return diligence.Snapshot{MemoID: memoID, State: diligence.Idle}, nil
	}
	return ctrl.State(), nil
}

// ResetDiligence cancels any in-flight run for the deal's memo id.
func (s *Service) ResetDiligence(ctx context.Context, dealID string) error {
	rec, err := s.store.Snapshot(ctx, dealID)
	if err != nil {
		return err
	}
	memoID, ok := rec.Memo1.Text(memoIDKey)
	if !ok {
		return diligence.ErrNoMemoID
	}

	s.mu.RLock()
	ctrl, exists := s.controllers[memoID]
	s.mu.RUnlock()
	if exists {
		snap := ctrl.State()
		ctrl.Reset()
		if snap.State == diligence.Requested || snap.State == diligence.Processing {
			s.noteDiligence(-1)
		}
	}
	return nil
}

// controller returns the single controller owning memoID, creating it on
// first use.
func (s *Service) controller(memoID string) *diligence.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctrl, ok := s.controllers[memoID]; ok {
		return ctrl
	}
	ctrl := diligence.New(memoID, s.client,
		diligence.WithPollInterval(s.pollInterval),
		diligence.WithPollBudget(s.pollBudget),
		diligence.WithTransientFailureBudget(s.transientBudget),
		diligence.WithClock(s.clockOrDefault()),
		diligence.WithLogger(s.logger.Named("diligence")),
		diligence.WithOnDone(func(snap diligence.Snapshot) {
			s.noteDiligence(-1)
		}),
	)
	s.controllers[memoID] = ctrl
	return ctrl
}

func (s *Service) clockOrDefault() diligence.Clock {
	if s.clock != nil {
		return s.clock
	}
	return nil // controller falls back to its real ticker clock
}

func (s *Service) noteDiligence(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeDiligence += delta
	if s.activeDiligence < 0 {
		s.activeDiligence = 0
	}
	metrics.UpdateDiligenceActive(s.activeDiligence)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":    s.started,
		"store":      s.storeKind,
		"pollBudget": s.pollBudget,
	}

	if s.started {
		total := s.store.Count(ctx)
		stats["totalRecords"] = total
		stats["activeSubscriptions"] = s.subscriptions.Active()
		stats["activeDiligence"] = s.activeDiligence
		stats["controllers"] = len(s.controllers)

		metrics.UpdateRecordsTotal(total)
	}
	return stats
}
