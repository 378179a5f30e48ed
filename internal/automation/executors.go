package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dativo-io/claimpilot/internal/claims"
	"github.com/dativo-io/claimpilot/internal/email"
	"github.com/dativo-io/claimpilot/internal/invoke"
	"github.com/dativo-io/claimpilot/internal/llm"
	cpotel "github.com/dativo-io/claimpilot/internal/otel"
	"github.com/dativo-io/claimpilot/internal/trigger"
)

// Outcome statuses. Skipped is a success path: the action's precondition
// (e.g. a recipient on file) was absent, which is expected, not an error.
const (
	OutcomeCompleted = "completed"
	OutcomeSkipped   = "skipped"
)

// Outcome is the typed result of one executor invocation.
type Outcome struct {
	Status string
	Result map[string]any
}

func completed(result map[string]any) *Outcome {
	return &Outcome{Status: OutcomeCompleted, Result: result}
}

func skipped(reason string) *Outcome {
	return &Outcome{Status: OutcomeSkipped, Result: map[string]any{"skipped": true, "reason": reason}}
}

// ExecContext carries everything one executor invocation needs.
type ExecContext struct {
	ClaimID string
	OrgID   string
	Trigger trigger.Trigger
	Config  map[string]any
}

// ExecutorFunc is the contract every executor implements. Executors must be
// safe to re-run; the engine does not guarantee at-most-once delivery across
// process restarts.
type ExecutorFunc func(ctx context.Context, ec ExecContext) (*Outcome, error)

// Executors bundles the dependencies the concrete executors close over.
type Executors struct {
	store    *Store
	facts    claims.FactReader
	statuses claims.StatusWriter
	invoker  *invoke.Invoker
	selector *llm.Selector
	provider llm.Provider
	sender   email.Sender
	cacheTTL func(orgID string) time.Duration // optional per-org TTL override
}

// NewExecutors creates the executor bundle.
func NewExecutors(store *Store, facts claims.FactReader, statuses claims.StatusWriter,
	invoker *invoke.Invoker, selector *llm.Selector, provider llm.Provider, sender email.Sender) *Executors {
	return &Executors{
		store:    store,
		facts:    facts,
		statuses: statuses,
		invoker:  invoker,
		selector: selector,
		provider: provider,
		sender:   sender,
	}
}

// SetCacheTTLResolver installs a per-org cache TTL override, consulted for
// every generative call. nil (the default) keeps the invoker's default TTL.
func (e *Executors) SetCacheTTLResolver(fn func(orgID string) time.Duration) {
	e.cacheTTL = fn
}

// Registry validates at construction that every action type appearing in
// the mapping table has an executor, turning "unknown action type" into a
// startup failure instead of a silent runtime miss.
func (e *Executors) Registry() (map[trigger.ActionType]ExecutorFunc, error) {
	registry := map[trigger.ActionType]ExecutorFunc{
		trigger.ActionGenerateFinancialAnalysis:   e.generateArtifact("financial-analysis", financialAnalysisPrompt),
		trigger.ActionGenerateDocumentationPacket: e.generateArtifact("documentation-packet", documentationPacketPrompt),
		trigger.ActionGenerateWeatherForensics:    e.generateArtifact("weather-forensics", weatherForensicsPrompt),
		trigger.ActionGenerateSupplementPacket:    e.generateArtifact("supplement-packet", supplementPacketPrompt),
		trigger.ActionSendAdjusterEmail:           e.sendEmail(recipientAdjuster),
		trigger.ActionSendHomeownerEmail:          e.sendEmail(recipientHomeowner),
		trigger.ActionSendFollowUpEmail:           e.sendEmail(recipientAdjuster),
		trigger.ActionCreateTask:                  e.createTask,
		trigger.ActionCreateAlert:                 e.createAlert,
		trigger.ActionCreateRecommendation:        e.createRecommendation,
		trigger.ActionLogActivity:                 e.logActivity,
		trigger.ActionUpdateClaimStatus:           e.updateClaimStatus,
		trigger.ActionEscalate:                    e.escalate,
	}

	for actionType := range trigger.MappedActionTypes() {
		if _, ok := registry[actionType]; !ok {
			return nil, fmt.Errorf("action type %s is mapped but has no executor", actionType)
		}
	}
	return registry, nil
}

// promptFunc renders the model prompt for one generative route.
type promptFunc func(ec ExecContext, facts *claims.Facts) string

// generateArtifact builds the executor for one generative route. The call
// goes through the full control stack: deterministic key over the prompt
// input, cache, dedupe, and cost recording.
func (e *Executors) generateArtifact(route string, prompt promptFunc) ExecutorFunc {
	return func(ctx context.Context, ec ExecContext) (*Outcome, error) {
		facts, err := e.facts.Facts(ctx, ec.ClaimID)
		if err != nil {
			return nil, fmt.Errorf("reading claim facts for %s: %w", route, err)
		}

		mode := llm.Mode(configString(ec.Config, "model_mode", string(llm.ModeAuto)))
		model, err := e.selector.Select(ctx, mode, ec.OrgID)
		if err != nil {
			return nil, fmt.Errorf("selecting model for %s: %w", route, err)
		}

		promptText := prompt(ec, facts)
		imageKeyed := configBool(ec.Config, "image_keyed")

		var ttl time.Duration
		if e.cacheTTL != nil {
			ttl = e.cacheTTL(ec.OrgID)
		}

		result, err := e.invoker.Do(ctx, invoke.Request{
			Route:   route,
			OrgID:   ec.OrgID,
			ClaimID: ec.ClaimID,
			TTL:     ttl,
			Input: map[string]any{
				"claim_id": ec.ClaimID,
				"model":    model,
				"prompt":   promptText,
			},
			ImageKeyed: imageKeyed,
		}, func(ctx context.Context) (*invoke.CallResult, error) {
			resp, err := e.provider.Generate(ctx, &llm.Request{
				Model: model,
				Messages: []llm.Message{
					{Role: "system", Content: "You are a property insurance claims analyst."},
					{Role: "user", Content: promptText},
				},
				Temperature: 0.2,
				MaxTokens:   2048,
			})
			if err != nil {
				return nil, err
			}
			value, err := json.Marshal(map[string]any{"content": resp.Content, "model": resp.Model})
			if err != nil {
				return nil, fmt.Errorf("marshaling %s artifact: %w", route, err)
			}
			return &invoke.CallResult{
				Value:     value,
				Model:     resp.Model,
				TokensIn:  resp.InputTokens,
				TokensOut: resp.OutputTokens,
			}, nil
		})
		if err != nil {
			return nil, err
		}

		return completed(map[string]any{
			"artifact_ref": result.Key,
			"route":        route,
			"model":        model,
			"cached":       result.Cached,
		}), nil
	}
}

// Recipient selectors for communication executors.
type recipientFunc func(facts *claims.Facts) (addr, role string)

func recipientAdjuster(facts *claims.Facts) (string, string) {
	return facts.AdjusterEmail, "adjuster"
}

func recipientHomeowner(facts *claims.Facts) (string, string) {
	return facts.HomeownerEmail, "homeowner"
}

// sendEmail builds a communication executor. A missing recipient or an
// unconfigured sender yields a skipped outcome; delivery failures are real
// errors. Sent mail is logged as an activity referencing the provider's
// message id.
func (e *Executors) sendEmail(recipient recipientFunc) ExecutorFunc {
	return func(ctx context.Context, ec ExecContext) (*Outcome, error) {
		facts, err := e.facts.Facts(ctx, ec.ClaimID)
		if err != nil {
			return nil, fmt.Errorf("reading claim facts for email: %w", err)
		}

		to, role := recipient(facts)
		if strings.TrimSpace(to) == "" {
			return skipped("no " + role + " email on file"), nil
		}

		template := configString(ec.Config, "template", "generic_update")
		subject := fmt.Sprintf("Claim %s: %s", ec.ClaimID, strings.ReplaceAll(template, "_", " "))
		body := email.SanitizeBody(emailBody(template, ec))

		messageID, err := e.sender.Send(ctx, to, subject, body)
		if err != nil {
			if errors.Is(err, email.ErrNotConfigured) {
				return skipped("email sender not configured"), nil
			}
			return nil, fmt.Errorf("sending %s email: %w", role, err)
		}

		if err := e.store.InsertActivity(ctx, &Activity{
			OrgID:        ec.OrgID,
			ClaimID:      ec.ClaimID,
			ActivityType: "email_sent",
			Description:  fmt.Sprintf("sent %s email to %s", template, role),
			Metadata:     map[string]any{"message_id": messageID, "template": template},
		}); err != nil {
			return nil, fmt.Errorf("logging email activity: %w", err)
		}

		return completed(map[string]any{"message_id": messageID, "to": role, "template": template}), nil
	}
}

func (e *Executors) createTask(ctx context.Context, ec ExecContext) (*Outcome, error) {
	task := &Task{
		OrgID:       ec.OrgID,
		ClaimID:     ec.ClaimID,
		Title:       configString(ec.Config, "title", "Follow up on "+string(ec.Trigger.Type)),
		Description: ec.Trigger.Reason,
		Priority:    configString(ec.Config, "priority", "MEDIUM"),
	}
	if err := e.store.InsertTask(ctx, task); err != nil {
		return nil, err
	}
	return completed(map[string]any{"task_id": task.ID}), nil
}

func (e *Executors) createAlert(ctx context.Context, ec ExecContext) (*Outcome, error) {
	alert := &Alert{
		OrgID:    ec.OrgID,
		ClaimID:  ec.ClaimID,
		Severity: string(ec.Trigger.Severity),
		Title:    configString(ec.Config, "title", string(ec.Trigger.Type)),
		Message:  ec.Trigger.Reason,
	}
	if err := e.store.InsertAlert(ctx, alert); err != nil {
		return nil, err
	}
	return completed(map[string]any{"alert_id": alert.ID}), nil
}

func (e *Executors) createRecommendation(ctx context.Context, ec ExecContext) (*Outcome, error) {
	rec := &Recommendation{
		OrgID:   ec.OrgID,
		ClaimID: ec.ClaimID,
		Topic:   configString(ec.Config, "topic", string(ec.Trigger.Type)),
		Body:    ec.Trigger.Reason,
	}
	if err := e.store.InsertRecommendation(ctx, rec); err != nil {
		return nil, err
	}
	return completed(map[string]any{"recommendation_id": rec.ID}), nil
}

func (e *Executors) logActivity(ctx context.Context, ec ExecContext) (*Outcome, error) {
	act := &Activity{
		OrgID:        ec.OrgID,
		ClaimID:      ec.ClaimID,
		ActivityType: configString(ec.Config, "activity_type", "automation_action"),
		Description:  ec.Trigger.Reason,
		Metadata:     ec.Trigger.Payload,
	}
	if err := e.store.InsertActivity(ctx, act); err != nil {
		return nil, err
	}
	return completed(map[string]any{"activity_id": act.ID}), nil
}

func (e *Executors) updateClaimStatus(ctx context.Context, ec ExecContext) (*Outcome, error) {
	status := configString(ec.Config, "status", "")
	if status == "" {
		return nil, fmt.Errorf("update_claim_status requires a status in config")
	}
	if err := e.statuses.UpdateStatus(ctx, ec.ClaimID, status); err != nil {
		return nil, err
	}
	return completed(map[string]any{"status": status}), nil
}

// escalate composes a CRITICAL alert plus a CRITICAL task. The two writes
// are independent: an alert failure does not prevent the task attempt, and
// each failure is logged on its own.
func (e *Executors) escalate(ctx context.Context, ec ExecContext) (*Outcome, error) {
	reason := configString(ec.Config, "reason", string(ec.Trigger.Type))
	result := map[string]any{"reason": reason}

	var firstErr error
	alert := &Alert{
		OrgID:    ec.OrgID,
		ClaimID:  ec.ClaimID,
		Severity: string(trigger.SeverityCritical),
		Title:    "Escalation: " + reason,
		Message:  ec.Trigger.Reason,
	}
	if err := e.store.InsertAlert(ctx, alert); err != nil {
		firstErr = err
		log.Error().Err(err).
			Str("claim_id", ec.ClaimID).
			Func(cpotel.LogTraceFields(ctx)).
			Msg("escalation_alert_failed")
	} else {
		result["alert_id"] = alert.ID
	}

	task := &Task{
		OrgID:       ec.OrgID,
		ClaimID:     ec.ClaimID,
		Title:       "Escalation: " + reason,
		Description: ec.Trigger.Reason,
		Priority:    string(trigger.SeverityCritical),
	}
	if err := e.store.InsertTask(ctx, task); err != nil {
		if firstErr == nil {
			firstErr = err
		}
		log.Error().Err(err).
			Str("claim_id", ec.ClaimID).
			Func(cpotel.LogTraceFields(ctx)).
			Msg("escalation_task_failed")
	} else {
		result["task_id"] = task.ID
	}

	if firstErr != nil {
		return nil, fmt.Errorf("escalation partially failed: %w", firstErr)
	}
	return completed(result), nil
}

func financialAnalysisPrompt(ec ExecContext, facts *claims.Facts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Produce a financial analysis for claim %s (status %s).\n", ec.ClaimID, facts.Status)
	if facts.Financial != nil {
		fmt.Fprintf(&b, "Prior analysis: underpayment $%.2f, ACV $%.2f, RCV $%.2f.\n",
			facts.Financial.Underpayment, facts.Financial.ACV, facts.Financial.RCV)
	}
	fmt.Fprintf(&b, "Trigger: %s.\n", ec.Trigger.Reason)
	return b.String()
}

func documentationPacketPrompt(ec ExecContext, facts *claims.Facts) string {
	packet := configString(ec.Config, "packet", "general")
	return fmt.Sprintf("Assemble a %s documentation packet for claim %s (status %s). Trigger: %s.",
		packet, ec.ClaimID, facts.Status, ec.Trigger.Reason)
}

func weatherForensicsPrompt(ec ExecContext, facts *claims.Facts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Produce a weather forensics report for claim %s.\n", ec.ClaimID)
	if facts.Weather != nil {
		fmt.Fprintf(&b, "Correlation score %.2f from report %s.\n",
			facts.Weather.CorrelationScore, facts.Weather.ReportID)
	}
	fmt.Fprintf(&b, "Trigger: %s.\n", ec.Trigger.Reason)
	return b.String()
}

func supplementPacketPrompt(ec ExecContext, facts *claims.Facts) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft a supplement packet for claim %s covering %d items worth $%.2f.\n",
		ec.ClaimID, len(facts.Supplements), facts.SupplementTotal())
	for _, s := range facts.Supplements {
		fmt.Fprintf(&b, "- %s: $%.2f\n", s.Description, s.Value)
	}
	return b.String()
}

func emailBody(template string, ec ExecContext) string {
	return fmt.Sprintf("<p>Automated update for claim %s.</p><p>%s</p><p>Template: %s</p>",
		ec.ClaimID, ec.Trigger.Reason, template)
}

func configString(config map[string]any, key, fallback string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func configBool(config map[string]any, key string) bool {
	v, _ := config[key].(bool)
	return v
}
