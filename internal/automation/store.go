// Package automation orchestrates claim automation runs: detected triggers
// are persisted, their mapped actions executed through a registry, and every
// outcome recorded in an append-only audit trail.
package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	cpotel "github.com/dativo-io/claimpilot/internal/otel"
	"github.com/dativo-io/claimpilot/internal/trigger"
)

var tracer = cpotel.Tracer("github.com/dativo-io/claimpilot/internal/automation")

// Record statuses.
const (
	TriggerPending   = "PENDING"
	TriggerProcessed = "PROCESSED"

	ActionRunning = "RUNNING"
	ActionSuccess = "SUCCESS"
	ActionFailed  = "FAILED"
)

// ErrRecordNotFound is returned when a trigger or action record does not exist.
var ErrRecordNotFound = errors.New("automation record not found")

const schema = `
CREATE TABLE IF NOT EXISTS automation_triggers (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    claim_id TEXT NOT NULL,
    trigger_type TEXT NOT NULL,
    severity TEXT NOT NULL,
    payload TEXT NOT NULL DEFAULT '{}',
    reason TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'PENDING',
    created_at TIMESTAMP NOT NULL,
    processed_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS action_executions (
    id TEXT PRIMARY KEY,
    trigger_id TEXT NOT NULL,
    org_id TEXT NOT NULL,
    claim_id TEXT NOT NULL,
    action_type TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'RUNNING',
    result TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS activities (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    claim_id TEXT NOT NULL,
    activity_type TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    claim_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    priority TEXT NOT NULL DEFAULT 'MEDIUM',
    status TEXT NOT NULL DEFAULT 'open',
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    claim_id TEXT NOT NULL,
    severity TEXT NOT NULL DEFAULT 'MEDIUM',
    title TEXT NOT NULL,
    message TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS recommendations (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    claim_id TEXT NOT NULL,
    topic TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_triggers_claim ON automation_triggers(claim_id);
CREATE INDEX IF NOT EXISTS idx_triggers_org ON automation_triggers(org_id);
CREATE INDEX IF NOT EXISTS idx_actions_trigger ON action_executions(trigger_id);
CREATE INDEX IF NOT EXISTS idx_actions_claim ON action_executions(claim_id);
CREATE INDEX IF NOT EXISTS idx_activities_claim ON activities(claim_id);
CREATE INDEX IF NOT EXISTS idx_tasks_claim ON tasks(claim_id);
CREATE INDEX IF NOT EXISTS idx_alerts_claim ON alerts(claim_id);
CREATE INDEX IF NOT EXISTS idx_recommendations_claim ON recommendations(claim_id);
`

// TriggerRecord is one persisted trigger row.
type TriggerRecord struct {
	ID          string
	OrgID       string
	ClaimID     string
	TriggerType trigger.Type
	Severity    trigger.Severity
	Payload     map[string]any
	Reason      string
	Status      string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// ActionRecord is one persisted (trigger, action) execution row.
// Created before the executor runs, updated exactly once on completion.
type ActionRecord struct {
	ID           string
	TriggerID    string
	OrgID        string
	ClaimID      string
	ActionType   trigger.ActionType
	Status       string
	Result       map[string]any
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// Activity is one generic activity-log row.
type Activity struct {
	ID           string
	OrgID        string
	ClaimID      string
	ActivityType string
	Description  string
	Metadata     map[string]any
	CreatedAt    time.Time
}

// Task is one actionable to-do created by automation.
type Task struct {
	ID          string
	OrgID       string
	ClaimID     string
	Title       string
	Description string
	Priority    string
	Status      string
	CreatedAt   time.Time
}

// Alert is one attention-required notification row.
type Alert struct {
	ID        string
	OrgID     string
	ClaimID   string
	Severity  string
	Title     string
	Message   string
	CreatedAt time.Time
}

// Recommendation is one advisory row produced by automation.
type Recommendation struct {
	ID        string
	OrgID     string
	ClaimID   string
	Topic     string
	Body      string
	CreatedAt time.Time
}

// Store persists automation records in SQLite. All writers are append-only;
// the only updates are trigger status and action completion.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the automation database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening automation database: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating automation schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertTrigger persists one detected trigger with status PENDING.
func (s *Store) InsertTrigger(ctx context.Context, rec *TriggerRecord) error {
	ctx, span := tracer.Start(ctx, "automation.insert_trigger",
		trace.WithAttributes(
			attribute.String("claim_id", rec.ClaimID),
			attribute.String("trigger_type", string(rec.TriggerType)),
		))
	defer span.End()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Status = TriggerPending
	rec.CreatedAt = time.Now().UTC()

	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshaling trigger payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO automation_triggers (id, org_id, claim_id, trigger_type, severity, payload, reason, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OrgID, rec.ClaimID, string(rec.TriggerType), string(rec.Severity),
		string(payload), rec.Reason, rec.Status, rec.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("storing trigger record: %w", err)
	}
	return nil
}

// MarkTriggerProcessed flips a trigger row to PROCESSED.
func (s *Store) MarkTriggerProcessed(ctx context.Context, triggerID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE automation_triggers SET status = ?, processed_at = ? WHERE id = ?`,
		TriggerProcessed, time.Now().UTC(), triggerID)
	if err != nil {
		return fmt.Errorf("marking trigger processed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("trigger %s: %w", triggerID, ErrRecordNotFound)
	}
	return nil
}

// StartAction creates the RUNNING action record before the executor runs.
func (s *Store) StartAction(ctx context.Context, rec *ActionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Status = ActionRunning
	rec.StartedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO action_executions (id, trigger_id, org_id, claim_id, action_type, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TriggerID, rec.OrgID, rec.ClaimID, string(rec.ActionType), rec.Status, rec.StartedAt)
	if err != nil {
		return fmt.Errorf("storing action record: %w", err)
	}
	return nil
}

// CompleteAction marks an action record SUCCESS with its result.
func (s *Store) CompleteAction(ctx context.Context, actionID string, result map[string]any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling action result: %w", err)
	}
	return s.finishAction(ctx, actionID, ActionSuccess, string(raw), "")
}

// FailAction marks an action record FAILED with the error message.
func (s *Store) FailAction(ctx context.Context, actionID, errorMessage string) error {
	return s.finishAction(ctx, actionID, ActionFailed, "", errorMessage)
}

func (s *Store) finishAction(ctx context.Context, actionID, status, result, errorMessage string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE action_executions SET status = ?, result = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		status, result, errorMessage, time.Now().UTC(), actionID)
	if err != nil {
		return fmt.Errorf("completing action record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("action %s: %w", actionID, ErrRecordNotFound)
	}
	return nil
}

// InsertActivity appends one activity-log row.
func (s *Store) InsertActivity(ctx context.Context, act *Activity) error {
	if act.ID == "" {
		act.ID = uuid.NewString()
	}
	act.CreatedAt = time.Now().UTC()
	metadata, err := json.Marshal(act.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling activity metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO activities (id, org_id, claim_id, activity_type, description, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		act.ID, act.OrgID, act.ClaimID, act.ActivityType, act.Description, string(metadata), act.CreatedAt)
	if err != nil {
		return fmt.Errorf("storing activity: %w", err)
	}
	return nil
}

// InsertTask appends one task row.
func (s *Store) InsertTask(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Priority == "" {
		task.Priority = "MEDIUM"
	}
	if task.Status == "" {
		task.Status = "open"
	}
	task.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, org_id, claim_id, title, description, priority, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.OrgID, task.ClaimID, task.Title, task.Description, task.Priority, task.Status, task.CreatedAt)
	if err != nil {
		return fmt.Errorf("storing task: %w", err)
	}
	return nil
}

// InsertAlert appends one alert row.
func (s *Store) InsertAlert(ctx context.Context, alert *Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Severity == "" {
		alert.Severity = "MEDIUM"
	}
	alert.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, org_id, claim_id, severity, title, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.OrgID, alert.ClaimID, alert.Severity, alert.Title, alert.Message, alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("storing alert: %w", err)
	}
	return nil
}

// InsertRecommendation appends one recommendation row.
func (s *Store) InsertRecommendation(ctx context.Context, rec *Recommendation) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recommendations (id, org_id, claim_id, topic, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OrgID, rec.ClaimID, rec.Topic, rec.Body, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("storing recommendation: %w", err)
	}
	return nil
}

// TriggersForClaim returns trigger rows for one claim, oldest first.
func (s *Store) TriggersForClaim(ctx context.Context, claimID string) ([]TriggerRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, claim_id, trigger_type, severity, payload, reason, status, created_at, processed_at
		 FROM automation_triggers WHERE claim_id = ? ORDER BY created_at ASC, rowid ASC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("querying triggers: %w", err)
	}
	defer rows.Close()

	var out []TriggerRecord
	for rows.Next() {
		var rec TriggerRecord
		var payload string
		var processedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.OrgID, &rec.ClaimID, &rec.TriggerType, &rec.Severity,
			&payload, &rec.Reason, &rec.Status, &rec.CreatedAt, &processedAt); err != nil {
			return nil, fmt.Errorf("scanning trigger: %w", err)
		}
		if processedAt.Valid {
			rec.ProcessedAt = &processedAt.Time
		}
		if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
			return nil, fmt.Errorf("unmarshaling trigger payload: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ActionsForTrigger returns action rows for one trigger in execution order.
func (s *Store) ActionsForTrigger(ctx context.Context, triggerID string) ([]ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trigger_id, org_id, claim_id, action_type, status, result, error_message, started_at, completed_at
		 FROM action_executions WHERE trigger_id = ? ORDER BY started_at ASC, rowid ASC`, triggerID)
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()

	var out []ActionRecord
	for rows.Next() {
		var rec ActionRecord
		var result string
		var completedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.TriggerID, &rec.OrgID, &rec.ClaimID, &rec.ActionType,
			&rec.Status, &result, &rec.ErrorMessage, &rec.StartedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scanning action: %w", err)
		}
		if completedAt.Valid {
			rec.CompletedAt = &completedAt.Time
		}
		if result != "" {
			if err := json.Unmarshal([]byte(result), &rec.Result); err != nil {
				return nil, fmt.Errorf("unmarshaling action result: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ActivitiesForClaim returns activity rows for one claim, oldest first.
func (s *Store) ActivitiesForClaim(ctx context.Context, claimID string) ([]Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, claim_id, activity_type, description, metadata, created_at
		 FROM activities WHERE claim_id = ? ORDER BY created_at ASC, rowid ASC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var act Activity
		var metadata string
		if err := rows.Scan(&act.ID, &act.OrgID, &act.ClaimID, &act.ActivityType,
			&act.Description, &metadata, &act.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &act.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling activity metadata: %w", err)
		}
		out = append(out, act)
	}
	return out, rows.Err()
}

// TasksForClaim returns task rows for one claim, oldest first.
func (s *Store) TasksForClaim(ctx context.Context, claimID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, claim_id, title, description, priority, status, created_at
		 FROM tasks WHERE claim_id = ? ORDER BY created_at ASC, rowid ASC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var task Task
		if err := rows.Scan(&task.ID, &task.OrgID, &task.ClaimID, &task.Title,
			&task.Description, &task.Priority, &task.Status, &task.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// AlertsForClaim returns alert rows for one claim, oldest first.
func (s *Store) AlertsForClaim(ctx context.Context, claimID string) ([]Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, claim_id, severity, title, message, created_at
		 FROM alerts WHERE claim_id = ? ORDER BY created_at ASC, rowid ASC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		var alert Alert
		if err := rows.Scan(&alert.ID, &alert.OrgID, &alert.ClaimID, &alert.Severity,
			&alert.Title, &alert.Message, &alert.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		out = append(out, alert)
	}
	return out, rows.Err()
}

// RecommendationsForClaim returns recommendation rows for one claim, oldest first.
func (s *Store) RecommendationsForClaim(ctx context.Context, claimID string) ([]Recommendation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, claim_id, topic, body, created_at
		 FROM recommendations WHERE claim_id = ? ORDER BY created_at ASC, rowid ASC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("querying recommendations: %w", err)
	}
	defer rows.Close()

	var out []Recommendation
	for rows.Next() {
		var rec Recommendation
		if err := rows.Scan(&rec.ID, &rec.OrgID, &rec.ClaimID, &rec.Topic, &rec.Body, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning recommendation: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
