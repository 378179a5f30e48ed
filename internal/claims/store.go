package claims

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	cpotel "github.com/dativo-io/claimpilot/internal/otel"
)

var tracer = cpotel.Tracer("github.com/dativo-io/claimpilot/internal/claims")

// ErrClaimNotFound is returned when a claim does not exist.
var ErrClaimNotFound = errors.New("claim not found")

const schema = `
CREATE TABLE IF NOT EXISTS claims (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'open',
    adjuster_email TEXT NOT NULL DEFAULT '',
    homeowner_email TEXT NOT NULL DEFAULT '',
    last_contact_at TIMESTAMP,
    last_activity_at TIMESTAMP,
    last_activity_type TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS financial_reports (
    id TEXT PRIMARY KEY,
    claim_id TEXT NOT NULL,
    underpayment REAL NOT NULL DEFAULT 0,
    acv REAL NOT NULL DEFAULT 0,
    rcv REAL NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS weather_reports (
    id TEXT PRIMARY KEY,
    claim_id TEXT NOT NULL,
    correlation_score REAL NOT NULL DEFAULT 0,
    event_date TIMESTAMP,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS supplements (
    id TEXT PRIMARY KEY,
    claim_id TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    value REAL NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claims_org ON claims(org_id);
CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);
CREATE INDEX IF NOT EXISTS idx_financial_claim ON financial_reports(claim_id);
CREATE INDEX IF NOT EXISTS idx_weather_claim ON weather_reports(claim_id);
CREATE INDEX IF NOT EXISTS idx_supplements_claim ON supplements(claim_id);
`

// Store is the SQLite-backed claim fact reader and status writer.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the claims database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening claims database: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating claims schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Claim is the mutable claim row used when seeding and updating.
type Claim struct {
	ID               string
	OrgID            string
	Status           string
	AdjusterEmail    string
	HomeownerEmail   string
	LastContactAt    *time.Time
	LastActivityAt   *time.Time
	LastActivityType string
}

// Upsert inserts or replaces a claim row.
func (s *Store) Upsert(ctx context.Context, c *Claim) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = StatusOpen
	}
	now := time.Now().UTC()
	query := `INSERT INTO claims (id, org_id, status, adjuster_email, homeowner_email, last_contact_at, last_activity_at, last_activity_type, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET
	              org_id = excluded.org_id,
	              status = excluded.status,
	              adjuster_email = excluded.adjuster_email,
	              homeowner_email = excluded.homeowner_email,
	              last_contact_at = excluded.last_contact_at,
	              last_activity_at = excluded.last_activity_at,
	              last_activity_type = excluded.last_activity_type,
	              updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.OrgID, c.Status, c.AdjusterEmail, c.HomeownerEmail,
		c.LastContactAt, c.LastActivityAt, c.LastActivityType, now, now)
	if err != nil {
		return fmt.Errorf("upserting claim: %w", err)
	}
	return nil
}

// UpdateStatus sets a claim's status (implements StatusWriter).
func (s *Store) UpdateStatus(ctx context.Context, claimID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE claims SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), claimID)
	if err != nil {
		return fmt.Errorf("updating claim status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("claim %s: %w", claimID, ErrClaimNotFound)
	}
	return nil
}

// Touch updates the last-activity markers after an automation action runs.
func (s *Store) Touch(ctx context.Context, claimID, activityType string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE claims SET last_activity_at = ?, last_activity_type = ?, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), activityType, time.Now().UTC(), claimID)
	if err != nil {
		return fmt.Errorf("touching claim: %w", err)
	}
	return nil
}

// AddFinancialReport appends a financial-analysis result.
func (s *Store) AddFinancialReport(ctx context.Context, claimID string, f *FinancialAnalysis) error {
	if f.ReportID == "" {
		f.ReportID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO financial_reports (id, claim_id, underpayment, acv, rcv, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ReportID, claimID, f.Underpayment, f.ACV, f.RCV, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("adding financial report: %w", err)
	}
	return nil
}

// AddWeatherReport appends a weather-forensics result.
func (s *Store) AddWeatherReport(ctx context.Context, claimID string, w *WeatherForensics) error {
	if w.ReportID == "" {
		w.ReportID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO weather_reports (id, claim_id, correlation_score, event_date, created_at) VALUES (?, ?, ?, ?, ?)`,
		w.ReportID, claimID, w.CorrelationScore, w.EventDate, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("adding weather report: %w", err)
	}
	return nil
}

// AddSupplement appends one supplement line item.
func (s *Store) AddSupplement(ctx context.Context, claimID string, sup *Supplement) error {
	if sup.ID == "" {
		sup.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO supplements (id, claim_id, description, value, created_at) VALUES (?, ?, ?, ?, ?)`,
		sup.ID, claimID, sup.Description, sup.Value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("adding supplement: %w", err)
	}
	return nil
}

// Facts returns the current snapshot for one claim (implements FactReader).
// Missing reports and supplements come back as nil/empty, never as errors.
func (s *Store) Facts(ctx context.Context, claimID string) (*Facts, error) {
	ctx, span := tracer.Start(ctx, "claims.facts",
		trace.WithAttributes(attribute.String("claim_id", claimID)))
	defer span.End()

	facts := &Facts{ClaimID: claimID}
	var lastContact, lastActivity sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT org_id, status, adjuster_email, homeowner_email, last_contact_at, last_activity_at, last_activity_type
		 FROM claims WHERE id = ?`, claimID).
		Scan(&facts.OrgID, &facts.Status, &facts.AdjusterEmail, &facts.HomeownerEmail,
			&lastContact, &lastActivity, &facts.LastActivityType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim %s: %w", claimID, ErrClaimNotFound)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("querying claim: %w", err)
	}
	if lastContact.Valid {
		facts.LastContactAt = &lastContact.Time
	}
	if lastActivity.Valid {
		facts.LastActivityAt = &lastActivity.Time
	}

	facts.Financial, err = s.latestFinancial(ctx, claimID)
	if err != nil {
		return nil, err
	}
	facts.Weather, err = s.latestWeather(ctx, claimID)
	if err != nil {
		return nil, err
	}
	facts.Supplements, err = s.supplements(ctx, claimID)
	if err != nil {
		return nil, err
	}
	return facts, nil
}

// OpenClaimIDs returns up to limit non-terminal claim ids for an org,
// oldest activity first so the stalest claims are scanned before the cap.
func (s *Store) OpenClaimIDs(ctx context.Context, orgID string, limit int) ([]string, error) {
	query := `SELECT id FROM claims
	          WHERE org_id = ? AND status NOT IN (?, ?, ?)
	          ORDER BY COALESCE(last_activity_at, created_at) ASC`
	args := []any{orgID, StatusSettled, StatusClosed, StatusWithdrawn}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying open claims: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning claim id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) latestFinancial(ctx context.Context, claimID string) (*FinancialAnalysis, error) {
	var f FinancialAnalysis
	err := s.db.QueryRowContext(ctx,
		`SELECT id, underpayment, acv, rcv FROM financial_reports
		 WHERE claim_id = ? ORDER BY created_at DESC LIMIT 1`, claimID).
		Scan(&f.ReportID, &f.Underpayment, &f.ACV, &f.RCV)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying financial report: %w", err)
	}
	return &f, nil
}

func (s *Store) latestWeather(ctx context.Context, claimID string) (*WeatherForensics, error) {
	var w WeatherForensics
	var eventDate sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, correlation_score, event_date FROM weather_reports
		 WHERE claim_id = ? ORDER BY created_at DESC LIMIT 1`, claimID).
		Scan(&w.ReportID, &w.CorrelationScore, &eventDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying weather report: %w", err)
	}
	if eventDate.Valid {
		w.EventDate = &eventDate.Time
	}
	return &w, nil
}

func (s *Store) supplements(ctx context.Context, claimID string) ([]Supplement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, description, value FROM supplements WHERE claim_id = ? ORDER BY created_at ASC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("querying supplements: %w", err)
	}
	defer rows.Close()

	var out []Supplement
	for rows.Next() {
		var sup Supplement
		if err := rows.Scan(&sup.ID, &sup.Description, &sup.Value); err != nil {
			return nil, fmt.Errorf("scanning supplement: %w", err)
		}
		out = append(out, sup)
	}
	return out, rows.Err()
}
