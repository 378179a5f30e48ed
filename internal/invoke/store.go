package invoke

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	cpotel "github.com/dativo-io/claimpilot/internal/otel"
)

var tracer = cpotel.Tracer("github.com/dativo-io/claimpilot/internal/invoke")

const schema = `
CREATE TABLE IF NOT EXISTS ai_invocations (
    id TEXT PRIMARY KEY,
    route_name TEXT NOT NULL,
    org_id TEXT NOT NULL,
    lead_id TEXT NOT NULL DEFAULT '',
    claim_id TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL,
    model TEXT NOT NULL DEFAULT '',
    tokens_in INTEGER NOT NULL DEFAULT 0,
    tokens_out INTEGER NOT NULL DEFAULT 0,
    cache_hit INTEGER NOT NULL DEFAULT 0,
    cost_usd REAL NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_invocations_org ON ai_invocations(org_id);
CREATE INDEX IF NOT EXISTS idx_invocations_route ON ai_invocations(route_name);
CREATE INDEX IF NOT EXISTS idx_invocations_claim ON ai_invocations(claim_id);
CREATE INDEX IF NOT EXISTS idx_invocations_created ON ai_invocations(created_at);
`

// Record is one AI invocation: one row per underlying model call, persisted
// on success and failure alike. CostUSD is always recomputed at write time
// from the rate table, never trusted from upstream.
type Record struct {
	ID         string
	RouteName  string
	OrgID      string
	LeadID     string
	ClaimID    string
	DurationMS int64
	Model      string
	TokensIn   int
	TokensOut  int
	CacheHit   bool
	CostUSD    float64
	Error      string
	CreatedAt  time.Time
}

// Store persists AI invocation records in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the invocation database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening invocations database: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating invocations schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert appends one invocation record. Assigns ID and CreatedAt when unset.
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	ctx, span := tracer.Start(ctx, "invoke.record",
		trace.WithAttributes(
			attribute.String("route", rec.RouteName),
			attribute.String("org_id", rec.OrgID),
			attribute.Bool("cache_hit", rec.CacheHit),
		))
	defer span.End()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO ai_invocations
	          (id, route_name, org_id, lead_id, claim_id, duration_ms, model, tokens_in, tokens_out, cache_hit, cost_usd, error, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.RouteName, rec.OrgID, rec.LeadID, rec.ClaimID,
		rec.DurationMS, rec.Model, rec.TokensIn, rec.TokensOut,
		boolToInt(rec.CacheHit), rec.CostUSD, rec.Error, rec.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("storing invocation record: %w", err)
	}
	return nil
}

// List returns invocation records for an org, newest first.
func (s *Store) List(ctx context.Context, orgID string, limit int) ([]Record, error) {
	query := `SELECT id, route_name, org_id, lead_id, claim_id, duration_ms, model,
	                 tokens_in, tokens_out, cache_hit, cost_usd, error, created_at
	          FROM ai_invocations WHERE org_id = ? ORDER BY created_at DESC`
	args := []any{orgID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying invocations: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var cacheHit int
		if err := rows.Scan(&rec.ID, &rec.RouteName, &rec.OrgID, &rec.LeadID, &rec.ClaimID,
			&rec.DurationMS, &rec.Model, &rec.TokensIn, &rec.TokensOut,
			&cacheHit, &rec.CostUSD, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning invocation: %w", err)
		}
		rec.CacheHit = cacheHit != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CostTotal returns the USD cost sum for an org in the half-open range
// [from, to). Pass to as the start of the next period to avoid
// double-counting at boundaries.
func (s *Store) CostTotal(ctx context.Context, orgID string, from, to time.Time) (float64, error) {
	ctx, span := tracer.Start(ctx, "invoke.cost_total",
		trace.WithAttributes(attribute.String("org_id", orgID)))
	defer span.End()

	query := `SELECT COALESCE(SUM(cost_usd), 0) FROM ai_invocations WHERE org_id = ?`
	args := []any{orgID}
	if !from.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, from)
	}
	if !to.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, to)
	}

	var total float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("querying invocation costs: %w", err)
	}
	span.SetAttributes(attribute.Float64("cost_total", total))
	return total, nil
}

// CostByRoute returns cost per route for an org in the half-open range [from, to).
func (s *Store) CostByRoute(ctx context.Context, orgID string, from, to time.Time) (map[string]float64, error) {
	query := `SELECT route_name, COALESCE(SUM(cost_usd), 0) FROM ai_invocations WHERE org_id = ?`
	args := []any{orgID}
	if !from.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, from)
	}
	if !to.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, to)
	}
	query += ` GROUP BY route_name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying costs by route: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var route string
		var cost float64
		if err := rows.Scan(&route, &cost); err != nil {
			return nil, fmt.Errorf("scanning route cost: %w", err)
		}
		out[route] = cost
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
