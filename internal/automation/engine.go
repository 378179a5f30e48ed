package automation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	cpotel "github.com/dativo-io/claimpilot/internal/otel"
	"github.com/dativo-io/claimpilot/internal/trigger"
)

// Detector is the trigger-detection boundary the engine drives.
type Detector interface {
	Detect(ctx context.Context, claimID, orgID string) ([]trigger.Trigger, error)
	DetectBatch(ctx context.Context, orgID string, limit int) (map[string][]trigger.Trigger, error)
}

// ActionMapper resolves the ordered actions for a trigger type. The default
// is the static table's SortedActions; tests may inject their own.
type ActionMapper func(t trigger.Type) []trigger.MappedAction

// ActionResult is one executed action's outcome in a run result.
type ActionResult struct {
	TriggerType trigger.Type       `json:"trigger_type"`
	ActionType  trigger.ActionType `json:"action_type"`
	Status      string             `json:"status"` // SUCCESS or FAILED
	Outcome     map[string]any     `json:"outcome,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// RunResult is what every engine caller receives. Partial success (some
// actions failed) is a normal, modeled outcome; Success is false only when
// the pipeline itself aborted.
type RunResult struct {
	ClaimID         string            `json:"claim_id"`
	Success         bool              `json:"success"`
	Triggers        []trigger.Trigger `json:"triggers"`
	ActionsExecuted int               `json:"actions_executed"`
	Results         []ActionResult    `json:"results"`
	Errors          []string          `json:"errors"`
}

// Engine runs the automation pipeline for one claim at a time:
// detect → persist triggers → execute mapped actions in priority order →
// mark triggers processed → log a summary activity.
type Engine struct {
	detector  Detector
	store     *Store
	registry  map[trigger.ActionType]ExecutorFunc
	actions   ActionMapper
	scanLimit int
}

// NewEngine creates an engine. actions may be nil to use the static table.
func NewEngine(detector Detector, store *Store, registry map[trigger.ActionType]ExecutorFunc,
	actions ActionMapper, scanLimit int) *Engine {
	if actions == nil {
		actions = trigger.SortedActions
	}
	return &Engine{
		detector:  detector,
		store:     store,
		registry:  registry,
		actions:   actions,
		scanLimit: scanLimit,
	}
}

// Run executes one automation pass for one claim. Action failures are
// collected, never propagated: a failing action cannot prevent its siblings
// or other triggers from running. The only hard-abort paths are trigger
// detection and trigger-record persistence; those return Success=false with
// the pipeline error, preserving any partial progress already stored.
func (e *Engine) Run(ctx context.Context, claimID, orgID string) *RunResult {
	ctx, span := tracer.Start(ctx, "automation.run",
		trace.WithAttributes(
			attribute.String("claim_id", claimID),
			attribute.String("org_id", orgID),
		))
	defer span.End()

	result := &RunResult{ClaimID: claimID, Success: true, Errors: []string{}}

	triggers, err := e.detector.Detect(ctx, claimID, orgID)
	if err != nil {
		return e.abort(ctx, span, result, fmt.Errorf("trigger detection: %w", err))
	}
	result.Triggers = triggers
	if len(triggers) == 0 {
		log.Debug().Str("claim_id", claimID).Msg("automation_no_triggers")
		return result
	}

	// Persist every trigger before executing anything, so the audit trail
	// shows what was detected even if execution is interrupted.
	records := make([]*TriggerRecord, len(triggers))
	for i, t := range triggers {
		rec := &TriggerRecord{
			OrgID:       orgID,
			ClaimID:     claimID,
			TriggerType: t.Type,
			Severity:    t.Severity,
			Payload:     t.Payload,
			Reason:      t.Reason,
		}
		if err := e.store.InsertTrigger(ctx, rec); err != nil {
			return e.abort(ctx, span, result, fmt.Errorf("persisting trigger %s: %w", t.Type, err))
		}
		records[i] = rec
	}

	// Triggers are processed in detector insertion order, not severity
	// order, for reproducibility.
	for i, t := range triggers {
		e.runTrigger(ctx, records[i], t, result)
	}

	e.logSummary(ctx, claimID, orgID, result)

	span.SetAttributes(
		attribute.Int("triggers", len(triggers)),
		attribute.Int("actions_executed", result.ActionsExecuted),
		attribute.Int("action_errors", len(result.Errors)),
	)
	return result
}

// runTrigger executes one trigger's mapped actions in ascending priority
// order and marks the trigger processed, regardless of action failures.
func (e *Engine) runTrigger(ctx context.Context, rec *TriggerRecord, t trigger.Trigger, result *RunResult) {
	for _, action := range e.actions(t.Type) {
		outcome := e.runAction(ctx, rec, t, action)
		result.Results = append(result.Results, outcome)
		result.ActionsExecuted++
		if outcome.Status == ActionFailed {
			result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %s", t.Type, action.Type, outcome.Error))
		}
	}

	if err := e.store.MarkTriggerProcessed(ctx, rec.ID); err != nil {
		// The actions already ran; record the bookkeeping failure and move on.
		log.Error().Err(err).
			Str("trigger_id", rec.ID).
			Func(cpotel.LogTraceFields(ctx)).
			Msg("trigger_status_update_failed")
		result.Errors = append(result.Errors, fmt.Sprintf("%s: marking processed: %v", t.Type, err))
	}
}

// runAction creates the RUNNING record, dispatches to the executor, and
// settles the record exactly once. Any failure, including an unknown action
// type or an executor panic, yields a FAILED record and never aborts the run.
func (e *Engine) runAction(ctx context.Context, rec *TriggerRecord, t trigger.Trigger, action trigger.MappedAction) ActionResult {
	ctx, span := tracer.Start(ctx, "automation.action",
		trace.WithAttributes(
			attribute.String("action_type", string(action.Type)),
			attribute.Int("priority", action.Priority),
		))
	defer span.End()

	out := ActionResult{TriggerType: t.Type, ActionType: action.Type}

	actionRec := &ActionRecord{
		TriggerID:  rec.ID,
		OrgID:      rec.OrgID,
		ClaimID:    rec.ClaimID,
		ActionType: action.Type,
	}
	if err := e.store.StartAction(ctx, actionRec); err != nil {
		span.RecordError(err)
		out.Status = ActionFailed
		out.Error = fmt.Sprintf("creating action record: %v", err)
		return out
	}

	outcome, err := e.dispatch(ctx, action, ExecContext{
		ClaimID: rec.ClaimID,
		OrgID:   rec.OrgID,
		Trigger: t,
		Config:  action.Config,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		out.Status = ActionFailed
		out.Error = err.Error()
		if ferr := e.store.FailAction(ctx, actionRec.ID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Str("action_id", actionRec.ID).Msg("action_record_fail_update_failed")
		}
		log.Warn().Err(err).
			Str("claim_id", rec.ClaimID).
			Str("action_type", string(action.Type)).
			Func(cpotel.LogTraceFields(ctx)).
			Msg("automation_action_failed")
		return out
	}

	out.Status = ActionSuccess
	out.Outcome = outcome.Result
	if cerr := e.store.CompleteAction(ctx, actionRec.ID, outcome.Result); cerr != nil {
		log.Error().Err(cerr).Str("action_id", actionRec.ID).Msg("action_record_complete_update_failed")
	}
	return out
}

// dispatch resolves the executor for an action type and runs it, converting
// panics into errors so a broken executor cannot crash the process.
func (e *Engine) dispatch(ctx context.Context, action trigger.MappedAction, ec ExecContext) (outcome *Outcome, err error) {
	executor, ok := e.registry[action.Type]
	if !ok {
		return nil, fmt.Errorf("no executor registered for action type %s", action.Type)
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = fmt.Errorf("executor %s panicked: %v", action.Type, r)
		}
	}()

	outcome, err = executor(ctx, ec)
	if err != nil {
		return nil, err
	}
	if outcome == nil {
		return nil, fmt.Errorf("executor %s returned no outcome", action.Type)
	}
	return outcome, nil
}

// RunBatch scans up to the engine's limit of non-terminal claims for an org
// and runs the pipeline per claim. One claim's pipeline failure is isolated
// from the rest; its result simply carries Success=false.
func (e *Engine) RunBatch(ctx context.Context, orgID string) (map[string]*RunResult, error) {
	ctx, span := tracer.Start(ctx, "automation.run_batch",
		trace.WithAttributes(attribute.String("org_id", orgID)))
	defer span.End()

	detected, err := e.detector.DetectBatch(ctx, orgID, e.scanLimit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("batch detection: %w", err)
	}

	results := make(map[string]*RunResult, len(detected))
	for claimID := range detected {
		// Re-running detection inside Run keeps the per-claim path identical
		// for batch and single runs; detection is a pure read.
		results[claimID] = e.Run(ctx, claimID, orgID)
	}

	span.SetAttributes(attribute.Int("claims_processed", len(results)))
	return results, nil
}

func (e *Engine) logSummary(ctx context.Context, claimID, orgID string, result *RunResult) {
	types := make([]string, len(result.Triggers))
	for i, t := range result.Triggers {
		types[i] = string(t.Type)
	}
	if err := e.store.InsertActivity(ctx, &Activity{
		OrgID:        orgID,
		ClaimID:      claimID,
		ActivityType: "automation_run",
		Description:  fmt.Sprintf("automation executed %d actions for %d triggers", result.ActionsExecuted, len(result.Triggers)),
		Metadata: map[string]any{
			"trigger_types":    types,
			"actions_executed": result.ActionsExecuted,
			"action_errors":    len(result.Errors),
		},
	}); err != nil {
		log.Warn().Err(err).Str("claim_id", claimID).Msg("automation_summary_activity_failed")
	}
}

func (e *Engine) abort(ctx context.Context, span trace.Span, result *RunResult, err error) *RunResult {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.Error().Err(err).
		Str("claim_id", result.ClaimID).
		Func(cpotel.LogTraceFields(ctx)).
		Msg("automation_pipeline_aborted")
	result.Success = false
	result.Errors = append(result.Errors, err.Error())
	return result
}
