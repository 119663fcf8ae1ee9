package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-gateway/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gateway/pkg/logging"
	"github.com/ekaya-inc/ekaya-gateway/pkg/retry"
)

var errManagerClosed = errors.New("connection manager is closed")

const (
	DefaultConnectionTTLMinutes = 5
	DefaultCleanupInterval      = 1 * time.Minute
	DefaultMaxConnections       = 50
	DefaultPoolMaxConns         = 10
	DefaultPoolMinConns         = 1

	healthCheckTimeout = 5 * time.Second
)

// ConnectionManagerConfig holds configuration for the connection manager
type ConnectionManagerConfig struct {
	TTLMinutes     int
	MaxConnections int
	PoolMaxConns   int32
	PoolMinConns   int32
}

// PoolOpener creates a pool for a datasource type.
type PoolOpener func(ctx context.Context, dsType, connString string, opts PoolOptions) (PoolConnector, error)

// ConnectionManager owns one pool per registered connection id,
// with TTL-based idle cleanup.
type ConnectionManager struct {
	mu             sync.RWMutex
	connections    map[string]*ManagedConnection // key: connection id
	opening        map[string]*pendingOpen       // pools being opened outside mu
	ttl            time.Duration
	maxConnections int
	poolOpts       PoolOptions
	open           PoolOpener
	retryCfg       *retry.Config
	stopped        bool
	stopChan       chan struct{}
	logger         *zap.Logger
}

// ManagedConnection is a pooled connection and its bookkeeping.
type ManagedConnection struct {
	connector  PoolConnector
	dsType     string
	connString string
	lastUsed   time.Time
	mu         sync.Mutex // guards lastUsed
	checkMu    sync.Mutex // serializes health checks on this pool
}

func (mc *ManagedConnection) touch() {
	mc.mu.Lock()
	mc.lastUsed = time.Now()
	mc.mu.Unlock()
}

// pendingOpen is a reserved slot for a pool whose open is in flight.
// err is set before done is closed.
type pendingOpen struct {
	dsType     string
	connString string
	done       chan struct{}
	err        error
}

// ConnectionManagerOption customizes a ConnectionManager.
type ConnectionManagerOption func(*ConnectionManager)

// WithPoolOpener replaces the registry-backed pool opener.
func WithPoolOpener(open PoolOpener) ConnectionManagerOption {
	return func(m *ConnectionManager) { m.open = open }
}

// WithRetryConfig sets the backoff used when opening and re-checking pools.
func WithRetryConfig(cfg *retry.Config) ConnectionManagerOption {
	return func(m *ConnectionManager) { m.retryCfg = cfg }
}

// NewConnectionManager creates a connection manager with the given configuration.
// Starts a background cleanup goroutine that runs until Close() is called.
func NewConnectionManager(cfg ConnectionManagerConfig, logger *zap.Logger, opts ...ConnectionManagerOption) *ConnectionManager {
	if cfg.TTLMinutes <= 0 {
		cfg.TTLMinutes = DefaultConnectionTTLMinutes
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.PoolMaxConns <= 0 {
		cfg.PoolMaxConns = DefaultPoolMaxConns
	}
	if cfg.PoolMinConns <= 0 {
		cfg.PoolMinConns = DefaultPoolMinConns
	}

	ttl := time.Duration(cfg.TTLMinutes) * time.Minute
	manager := &ConnectionManager{
		connections:    make(map[string]*ManagedConnection),
		opening:        make(map[string]*pendingOpen),
		ttl:            ttl,
		maxConnections: cfg.MaxConnections,
		poolOpts: PoolOptions{
			MaxConns:    cfg.PoolMaxConns,
			MinConns:    cfg.PoolMinConns,
			MaxIdleTime: ttl,
		},
		open:     openFromRegistry,
		retryCfg: retry.DefaultConfig(),
		stopChan: make(chan struct{}),
		logger:   logger.Named("connections"),
	}
	for _, opt := range opts {
		opt(manager)
	}

	go manager.cleanupExpiredConnections()
	return manager
}

func openFromRegistry(ctx context.Context, dsType, connString string, opts PoolOptions) (PoolConnector, error) {
	reg, ok := GetRegistration(dsType)
	if !ok || reg.OpenPool == nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedType, dsType)
	}
	return reg.OpenPool(ctx, connString, opts)
}

// GetOrCreateConnection returns the pool for connectionID, creating it on first use.
// An existing pool is health-checked; an unhealthy one, or one opened for a
// different connection string, is replaced.
func (m *ConnectionManager) GetOrCreateConnection(ctx context.Context, dsType, connectionID, connString string) (PoolConnector, error) {
	// Fast path under read lock
	m.mu.RLock()
	managed, exists := m.connections[connectionID]
	m.mu.RUnlock()

	if exists {
		if managed.connString != connString || managed.dsType != dsType {
			m.removeIfSame(connectionID, managed)
			return m.createConnection(ctx, dsType, connectionID, connString)
		}

		managed.checkMu.Lock()
		healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		_, err := retry.DoIfRetryable(healthCtx, m.retryCfg, func() (struct{}, error) {
			return struct{}{}, managed.connector.Ping(healthCtx)
		})
		cancel()
		managed.checkMu.Unlock()

		if err != nil {
			m.logger.Warn("connection unhealthy, recreating",
				zap.String("connection_id", connectionID),
				zap.String("type", dsType),
				zap.String("error", logging.SanitizeError(err)),
			)
			m.removeIfSame(connectionID, managed)
			return m.createConnection(ctx, dsType, connectionID, connString)
		}

		managed.touch()
		return managed.connector, nil
	}

	return m.createConnection(ctx, dsType, connectionID, connString)
}

// createConnection opens a new pool with retry logic.
// The slot is reserved under m.mu and the pool is opened without it, so a
// slow or unreachable database only delays callers of the same connection id.
// Caller must NOT hold any locks.
func (m *ConnectionManager) createConnection(ctx context.Context, dsType, connectionID, connString string) (PoolConnector, error) {
	var slot *pendingOpen
	for slot == nil {
		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			return nil, errManagerClosed
		}

		// Another goroutine may have created it while we waited for the lock
		if managed, exists := m.connections[connectionID]; exists && managed.connString == connString && managed.dsType == dsType {
			m.mu.Unlock()
			managed.touch()
			return managed.connector, nil
		}

		if inflight, exists := m.opening[connectionID]; exists {
			m.mu.Unlock()
			select {
			case <-inflight.done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if inflight.err != nil && inflight.connString == connString && inflight.dsType == dsType {
				return nil, inflight.err
			}
			continue
		}

		if open := len(m.connections) + len(m.opening); open >= m.maxConnections {
			m.mu.Unlock()
			m.logger.Warn("reached max connections limit",
				zap.Int("current", open),
				zap.Int("max", m.maxConnections),
			)
			return nil, fmt.Errorf("%w: %d pools open", apperrors.ErrConnectionLimitReached, m.maxConnections)
		}

		slot = &pendingOpen{dsType: dsType, connString: connString, done: make(chan struct{})}
		m.opening[connectionID] = slot
		m.mu.Unlock()
	}

	connector, err := retry.DoIfRetryable(ctx, m.retryCfg, func() (PoolConnector, error) {
		return m.open(ctx, dsType, connString, m.poolOpts)
	})
	if err != nil {
		err = fmt.Errorf("failed to open %s pool: %w", dsType, err)
	}

	m.mu.Lock()
	delete(m.opening, connectionID)
	if err == nil && m.stopped {
		if cerr := connector.Close(); cerr != nil {
			m.logger.Warn("error closing pool",
				zap.String("connection_id", connectionID),
				zap.String("error", logging.SanitizeError(cerr)),
			)
		}
		err = errManagerClosed
	}
	if err == nil {
		if old, exists := m.connections[connectionID]; exists {
			m.closeManaged(connectionID, old)
		}
		m.connections[connectionID] = &ManagedConnection{
			connector:  connector,
			dsType:     dsType,
			connString: connString,
			lastUsed:   time.Now(),
		}
	}
	total := len(m.connections)
	slot.err = err
	close(slot.done)
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("failed to create pool",
			zap.String("connection_id", connectionID),
			zap.String("type", dsType),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, err
	}

	m.logger.Info("created new connection pool",
		zap.String("connection_id", connectionID),
		zap.String("type", dsType),
		zap.Int("total_connections", total),
	)
	return connector, nil
}

// removeIfSame drops managed only if it is still the pool registered for connectionID.
func (m *ConnectionManager) removeIfSame(connectionID string, managed *ManagedConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.connections[connectionID]; exists && current == managed {
		m.closeManaged(connectionID, managed)
		delete(m.connections, connectionID)
	}
}

// RemoveConnection closes and forgets the pool for connectionID.
// Reports whether a pool existed.
func (m *ConnectionManager) RemoveConnection(connectionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	managed, exists := m.connections[connectionID]
	if !exists {
		return false
	}
	m.closeManaged(connectionID, managed)
	delete(m.connections, connectionID)
	return true
}

// closeManaged closes a pool. Caller must hold m.mu.
func (m *ConnectionManager) closeManaged(connectionID string, managed *ManagedConnection) {
	if managed == nil || managed.connector == nil {
		return
	}
	if err := managed.connector.Close(); err != nil {
		m.logger.Warn("error closing pool",
			zap.String("connection_id", connectionID),
			zap.String("error", logging.SanitizeError(err)),
		)
	}
}

// cleanupExpiredConnections runs until stopChan is closed.
func (m *ConnectionManager) cleanupExpiredConnections() {
	ticker := time.NewTicker(DefaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup(time.Now())
		case <-m.stopChan:
			return
		}
	}
}

// performCleanup removes connections that haven't been used within TTL.
// Lock ordering: manager lock, then connection lock.
func (m *ConnectionManager) performCleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	expired := 0
	for id, managed := range m.connections {
		managed.mu.Lock()
		idle := now.Sub(managed.lastUsed)
		managed.mu.Unlock()

		if idle > m.ttl {
			m.logger.Debug("closing idle pool",
				zap.String("connection_id", id),
				zap.Duration("idle", idle),
			)
			m.closeManaged(id, managed)
			delete(m.connections, id)
			expired++
		}
	}

	if expired > 0 {
		m.logger.Info("cleaned up expired connections",
			zap.Int("count", expired),
			zap.Int("remaining", len(m.connections)),
		)
	}
}

// Close closes all pools and stops the cleanup goroutine. Idempotent.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}

	m.stopped = true
	close(m.stopChan)

	for id, managed := range m.connections {
		m.closeManaged(id, managed)
	}

	m.connections = make(map[string]*ManagedConnection)
	m.logger.Info("connection manager closed")
	return nil
}

// GetStats returns statistics about the connection manager.
func (m *ConnectionManager) GetStats() ConnectionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	stats := ConnectionStats{
		TotalConnections:  len(m.connections),
		MaxConnections:    m.maxConnections,
		TTLMinutes:        int(m.ttl.Minutes()),
		ConnectionsByType: make(map[string]int),
	}

	for _, managed := range m.connections {
		stats.ConnectionsByType[managed.dsType]++

		managed.mu.Lock()
		idleSeconds := int(now.Sub(managed.lastUsed).Seconds())
		managed.mu.Unlock()
		if idleSeconds > stats.OldestIdleSeconds {
			stats.OldestIdleSeconds = idleSeconds
		}
	}

	return stats
}

// ConnectionStats contains statistics about the connection manager state.
type ConnectionStats struct {
	TotalConnections  int            `json:"total_connections"`
	MaxConnections    int            `json:"max_connections"`
	TTLMinutes        int            `json:"ttl_minutes"`
	ConnectionsByType map[string]int `json:"connections_by_type"`
	OldestIdleSeconds int            `json:"oldest_idle_seconds"`
}
