package manager

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/asaidimu/supersave/entity"
	"github.com/asaidimu/supersave/metrics"
	"github.com/asaidimu/supersave/repository"
	"go.uber.org/zap"
)

// AddOptions controls how AddEntity brings an entity's table in line with
// its definition.
type AddOptions struct {
	// SkipSync bypasses schema synchronization, leaving an existing table
	// exactly as it is. The table is still created if entirely absent.
	SkipSync bool
}

// EntityManager is the registry of every entity definition SuperSave knows
// about. It owns table creation and synchronization, caches one repository
// per (namespace, name), and resolves relations for repositories that need
// to look each other up.
type EntityManager struct {
	mu      sync.RWMutex
	engine  Engine
	logger  *zap.Logger
	bus     *events.TypedEventBus[Event]
	prefix  string
	metrics *metrics.Recorder

	repos map[string]repository.Repository
	defs  map[string]entity.Definition
}

var _ repository.Lookup = (*EntityManager)(nil)

// New builds an EntityManager backed by engine, prefixing every physical
// table name it creates with prefix. logger may be nil, in which case a
// no-op logger is used. rec may be nil, in which case sync/write metrics
// are simply not recorded.
func New(engine Engine, logger *zap.Logger, prefix string, rec *metrics.Recorder) (*EntityManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	bus, err := newBus()
	if err != nil {
		return nil, fmt.Errorf("starting entity manager event bus: %w", err)
	}
	return &EntityManager{
		engine:  engine,
		logger:  logger,
		bus:     bus,
		prefix:  prefix,
		metrics: rec,
		repos:   make(map[string]repository.Repository),
		defs:    make(map[string]entity.Definition),
	}, nil
}

func fullName(name, namespace string) string {
	if namespace == "" {
		return name
	}
	return namespace + "_" + name
}

// AddEntity registers def, idempotently: create-table-if-missing, then sync
// unless opts.SkipSync, then build and cache the repository. Calling it
// again for the same (namespace, name) returns the cached repository
// without touching the table again.
func (m *EntityManager) AddEntity(ctx context.Context, def entity.Definition, opts AddOptions) (repository.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := def.FullName()
	if existing, ok := m.repos[name]; ok {
		return existing, nil
	}

	table := m.prefix + def.TableName()
	if err := m.engine.EnsureTable(ctx, table); err != nil {
		return nil, fmt.Errorf("ensuring table for entity %q: %w", name, err)
	}

	if !opts.SkipSync {
		m.emit(EntitySyncStarted, name, nil)
		start := time.Now()
		err := m.engine.Sync(ctx, def, table)
		m.metrics.ObserveSync(name, time.Since(start), err)
		if err != nil {
			m.emit(EntitySyncFailed, name, err)
			return nil, fmt.Errorf("synchronizing schema for entity %q: %w", name, err)
		}
		m.emit(EntitySyncFinished, name, nil)
	}

	repo := &eventingRepository{Repository: m.engine.Repository(def, table, m), name: name, m: m}
	m.repos[name] = repo
	m.defs[name] = def

	m.logger.Info("entity registered", zap.String("entity", name), zap.String("table", table))
	return repo, nil
}

// GetRepository returns the cached repository for (name, namespace), or
// false if no such entity has been added.
func (m *EntityManager) GetRepository(name, namespace string) (repository.Repository, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	repo, ok := m.repos[fullName(name, namespace)]
	return repo, ok
}

// Get implements repository.Lookup, letting repositories resolve each
// other's registered repository when expanding a relation.
func (m *EntityManager) Get(name, namespace string) (repository.Repository, bool) {
	return m.GetRepository(name, namespace)
}

// Definitions returns every entity definition registered so far, keyed by
// full name. Callers must not mutate the returned map.
func (m *EntityManager) Definitions() map[string]entity.Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]entity.Definition, len(m.defs))
	for k, v := range m.defs {
		out[k] = v
	}
	return out
}

// GetConnection exposes the underlying connection pool, for callers (such
// as the migration runner) that need to run raw statements.
func (m *EntityManager) GetConnection() *sql.DB {
	return m.engine.Conn()
}

// Metrics exposes the manager's metrics recorder, or nil if none was
// configured.
func (m *EntityManager) Metrics() *metrics.Recorder {
	return m.metrics
}

// Close releases the underlying connection pool.
func (m *EntityManager) Close() error {
	return m.engine.Close()
}

func (m *EntityManager) emit(t EventType, name string, err error) {
	if m.bus == nil {
		return
	}
	m.bus.Emit(string(t), Event{Type: t, Entity: name, At: time.Now(), Err: err})
}
