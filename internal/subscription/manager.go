// Package subscription binds record store change streams to view model
// builds and republishes the result to consumers.
package subscription

import (
	"context"
	"errors"
	"sync"

	"github.com/venturelens/dealflow/internal/adapters/repository"
	"github.com/venturelens/dealflow/internal/domain/view"
	"github.com/venturelens/dealflow/pkg/logger"
	"github.com/venturelens/dealflow/pkg/metrics"
)

// Status qualifies every delivered view model so a consumer can distinguish
// "record missing" from "record present but malformed" (the latter arrives
// as Ready with the builder's fallback model).
type Status string

// Subscription statuses.
const (
	Loading  Status = "loading"
	Ready    Status = "ready"
	NotFound Status = "not_found"
	Error    Status = "error"
)

// OnUpdate receives every rebuilt view model in store emit order.
type OnUpdate func(view.Model, Status)

// Manager owns live subscriptions over one record store.
type Manager struct {
	store   repository.Store
	builder *view.Builder
	logger  logger.Logger

	mu     sync.Mutex
	active int
}

// ManagerOption applies a configuration option to the Manager.
type ManagerOption func(*Manager)

// WithLogger sets a custom logger for the manager.
func WithLogger(l logger.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a Manager over the given store and builder.
func NewManager(store repository.Store, builder *view.Builder, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:   store,
		builder: builder,
		logger:  logger.Get().Named("subscription"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// subscriptionState guards callback delivery so nothing reaches the consumer
// after unsubscribe returns.
type subscriptionState struct {
	mu      sync.Mutex
	stopped bool
}

func (s *subscriptionState) deliver(fn OnUpdate, model view.Model, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	fn(model, status)
}

// Subscribe attaches onUpdate to the record identified by id and returns an
// unsubscribe function. The consumer sees Loading first, then NotFound once
// when no record exists yet, then Ready with a freshly built model for the
// current record and every subsequent change, in store emit order. The
// returned function fully detaches the watcher; no further callbacks occur
// after it returns, and repeated subscribe/unsubscribe cycles leak nothing.
func (m *Manager) Subscribe(ctx context.Context, id string, onUpdate OnUpdate) (func(), error) {
	ch, stop, err := m.store.Watch(ctx, id)
	if err != nil {
		return nil, err
	}

	sub := &subscriptionState{}
	sub.deliver(onUpdate, view.Model{}, Loading)

	// The watch seeds existing records itself; a missing record is reported
	// explicitly so the consumer does not confuse it with a malformed one.
	if _, err := m.store.Snapshot(ctx, id); errors.Is(err, repository.ErrNotFound) {
		sub.deliver(onUpdate, view.Model{}, NotFound)
	}

	m.setActive(+1)

	go func() {
		for rec := range ch {
			model := m.builder.Build(ctx, id, rec)
			sub.deliver(onUpdate, model, Ready)
			metrics.RecordSubscriptionUpdate()
		}
		// Channel closed by the store shutting down, or by unsubscribe;
		// only the former is an error the consumer should see.
		sub.mu.Lock()
		stopped := sub.stopped
		sub.mu.Unlock()
		if !stopped {
			m.logger.Warn(ctx, "record watch ended unexpectedly", logger.String("id", id))
			sub.deliver(onUpdate, view.Model{}, Error)
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			sub.mu.Lock()
			sub.stopped = true
			sub.mu.Unlock()
			stop()
			m.setActive(-1)
		})
	}
	return unsubscribe, nil
}

func (m *Manager) setActive(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active += delta
	metrics.UpdateSubscriptionCount(m.active)
}

// Active returns the number of live subscriptions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}
