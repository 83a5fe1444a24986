package quota

import (
	"context"
	"database/sql"
	"time"

	"github.com/tmorell/launchdeck/internal/billing"
)

// RequestRecorder persists one row per handled API request so the
// API_REQUESTS feature has usage to count against.
type RequestRecorder interface {
	Record(ctx context.Context, tenantID, method, path string, status int) error
}

// PostgresRecorder writes request rows to the api_requests table.
type PostgresRecorder struct {
	db *sql.DB
}

// NewPostgresRecorder creates a PostgreSQL-backed request recorder.
func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) Record(ctx context.Context, tenantID, method, path string, status int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_requests (tenant_id, method, path, status) VALUES ($1, $2, $3, $4)`,
		tenantID, method, path, status)
	return err
}

var _ RequestRecorder = (*PostgresRecorder)(nil)

// Record adds a request row for in-memory mode. Method, path and status
// are not retained; counting only needs the tenant and timestamp.
func (c *MemoryCounter) Record(_ context.Context, tenantID, _, _ string, _ int) error {
	c.Add(billing.Features[billing.FeatureAPIRequests].Table, tenantID, time.Now().UTC())
	return nil
}

var _ RequestRecorder = (*MemoryCounter)(nil)

// MultiCounter routes Count calls by table so independent in-memory
// stores can each back their own features. Unknown tables count as zero.
type MultiCounter map[string]UsageCounter

func (m MultiCounter) Count(ctx context.Context, table, tenantID string, from, to *time.Time) (int64, error) {
	c, ok := m[table]
	if !ok {
		return 0, nil
	}
	return c.Count(ctx, table, tenantID, from, to)
}

var _ UsageCounter = (MultiCounter)(nil)
