package quota

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/tmorell/launchdeck/internal/billing"
)

// UsageCounter counts rows in a feature's backing table for one tenant,
// optionally bounded by a created-at window.
type UsageCounter interface {
	Count(ctx context.Context, table, tenantID string, from, to *time.Time) (int64, error)
}

// PostgresCounter counts usage rows in PostgreSQL. Table names are
// restricted to those declared in the billing feature metadata.
type PostgresCounter struct {
	db *sql.DB
}

// NewPostgresCounter creates a PostgreSQL-backed usage counter.
func NewPostgresCounter(db *sql.DB) *PostgresCounter {
	return &PostgresCounter{db: db}
}

var allowedTables = func() map[string]bool {
	out := make(map[string]bool)
	for _, meta := range billing.Features {
		if meta.Countable() {
			out[meta.Table] = true
		}
	}
	return out
}()

func (c *PostgresCounter) Count(ctx context.Context, table, tenantID string, from, to *time.Time) (int64, error) {
	if !allowedTables[table] {
		return 0, fmt.Errorf("quota: table %q is not a countable resource", table)
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = $1", table)
	args := []any{tenantID}
	if from != nil && to != nil {
		query += " AND created_at >= $2 AND created_at <= $3"
		args = append(args, *from, *to)
	}

	var count int64
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

var _ UsageCounter = (*PostgresCounter)(nil)

// MemoryCounter is an in-memory usage counter for demo/development. Rows
// are added by the in-memory stores that own the corresponding resources.
type MemoryCounter struct {
	mu   sync.RWMutex
	rows map[string][]memoryRow // by table
}

type memoryRow struct {
	tenantID  string
	createdAt time.Time
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{rows: make(map[string][]memoryRow)}
}

// Add records one usage row.
func (c *MemoryCounter) Add(table, tenantID string, createdAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[table] = append(c.rows[table], memoryRow{tenantID: tenantID, createdAt: createdAt})
}

// Remove drops one usage row for the tenant, newest first.
func (c *MemoryCounter) Remove(table, tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := c.rows[table]
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].tenantID == tenantID {
			c.rows[table] = append(rows[:i], rows[i+1:]...)
			return
		}
	}
}

func (c *MemoryCounter) Count(_ context.Context, table, tenantID string, from, to *time.Time) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var count int64
	for _, row := range c.rows[table] {
		if row.tenantID != tenantID {
			continue
		}
		if from != nil && row.createdAt.Before(*from) {
			continue
		}
		if to != nil && row.createdAt.After(*to) {
			continue
		}
		count++
	}
	return count, nil
}

var _ UsageCounter = (*MemoryCounter)(nil)
