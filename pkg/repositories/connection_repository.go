package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ekaya-inc/ekaya-gateway/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-gateway/pkg/models"
)

// ConnectionRepository defines the interface for connection record storage.
// Records carry the raw connection string; implementations that persist
// to disk encrypt it at rest.
type ConnectionRepository interface {
	// Save inserts a connection or replaces the record with the same ID.
	Save(ctx context.Context, conn *models.Connection) error

	// Get retrieves a connection by ID. Returns apperrors.ErrNotFound when absent.
	Get(ctx context.Context, id string) (*models.Connection, error)

	// List retrieves all connections ordered by creation time.
	List(ctx context.Context) ([]*models.Connection, error)

	// Delete removes a connection. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error

	// Touch records that a connection was just used.
	Touch(ctx context.Context, id string, at time.Time) error
}

// memoryConnectionRepository keeps records in process memory.
type memoryConnectionRepository struct {
	mu    sync.RWMutex
	conns map[string]models.Connection
}

// NewMemoryConnectionRepository creates a repository that forgets everything on restart.
func NewMemoryConnectionRepository() ConnectionRepository {
	return &memoryConnectionRepository{conns: make(map[string]models.Connection)}
}

func (r *memoryConnectionRepository) Save(_ context.Context, conn *models.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = copyConnection(conn)
	return nil
}

func (r *memoryConnectionRepository) Get(_ context.Context, id string) (*models.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := copyConnection(&conn)
	return &out, nil
}

func (r *memoryConnectionRepository) List(_ context.Context) ([]*models.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		c := copyConnection(&conn)
		out = append(out, &c)
	}
	sortConnections(out)
	return out, nil
}

func (r *memoryConnectionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, id)
	return nil
}

func (r *memoryConnectionRepository) Touch(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	at = at.UTC()
	conn.LastUsedAt = &at
	r.conns[id] = conn
	return nil
}

// copyConnection detaches LastUsedAt so callers cannot mutate stored records.
func copyConnection(conn *models.Connection) models.Connection {
	c := *conn
	if conn.LastUsedAt != nil {
		t := *conn.LastUsedAt
		c.LastUsedAt = &t
	}
	return c
}

func sortConnections(conns []*models.Connection) {
	sort.Slice(conns, func(i, j int) bool {
		if !conns[i].CreatedAt.Equal(conns[j].CreatedAt) {
			return conns[i].CreatedAt.Before(conns[j].CreatedAt)
		}
		return conns[i].ID < conns[j].ID
	})
}
