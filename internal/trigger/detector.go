package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dativo-io/claimpilot/internal/claims"
	cpotel "github.com/dativo-io/claimpilot/internal/otel"
)

var tracer = cpotel.Tracer("github.com/dativo-io/claimpilot/internal/trigger")

// Detection thresholds. Boundaries are strict: a value exactly at a
// threshold does not fire.
const (
	UnderpaymentFloor      = 5000.0
	UnderpaymentCritical   = 10000.0
	WeatherScoreFloor      = 0.75
	WeatherScoreHigh       = 0.90
	ContactOverdueDays     = 7
	ContactOverdueHighDays = 14
	IdleDays               = 5
	IdleHighDays           = 10
	SupplementFloor        = 3000.0
	SupplementHigh         = 8000.0
)

// Detector evaluates one claim's facts against the detection rules.
// Pure read: the caller persists any resulting triggers.
type Detector struct {
	facts claims.FactReader
	now   func() time.Time
}

// NewDetector creates a detector over the given fact reader.
func NewDetector(facts claims.FactReader) *Detector {
	return &Detector{facts: facts, now: time.Now}
}

// SetClock overrides the time source for recency-rule tests.
func (d *Detector) SetClock(now func() time.Time) {
	d.now = now
}

// Detect evaluates all rules for one claim and returns the fired triggers
// in rule order. Each rule is skipped when its prerequisite data is absent;
// a claim with no reports and no activity data simply fires nothing.
func (d *Detector) Detect(ctx context.Context, claimID, orgID string) ([]Trigger, error) {
	ctx, span := tracer.Start(ctx, "trigger.detect",
		trace.WithAttributes(
			attribute.String("claim_id", claimID),
			attribute.String("org_id", orgID),
		))
	defer span.End()

	facts, err := d.facts.Facts(ctx, claimID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reading claim facts: %w", err)
	}

	var triggers []Trigger
	rules := []func(*claims.Facts) *Trigger{
		d.underpayment,
		d.weatherCorrelation,
		d.adjusterOverdue,
		d.claimIdle,
		d.supplementOpportunity,
		d.causationDisputed,
	}
	for _, rule := range rules {
		if t := rule(facts); t != nil {
			triggers = append(triggers, *t)
		}
	}

	span.SetAttributes(attribute.Int("triggers_detected", len(triggers)))
	return triggers, nil
}

// DetectBatch scans up to limit non-terminal claims for an org. A failure
// (or panic) in one claim's detection is isolated: it is logged and the
// scan continues, so a single malformed claim never stops the batch.
func (d *Detector) DetectBatch(ctx context.Context, orgID string, limit int) (map[string][]Trigger, error) {
	ctx, span := tracer.Start(ctx, "trigger.detect_batch",
		trace.WithAttributes(
			attribute.String("org_id", orgID),
			attribute.Int("limit", limit),
		))
	defer span.End()

	ids, err := d.facts.OpenClaimIDs(ctx, orgID, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("listing open claims: %w", err)
	}

	results := make(map[string][]Trigger, len(ids))
	failed := 0
	for _, claimID := range ids {
		triggers, err := d.detectIsolated(ctx, claimID, orgID)
		if err != nil {
			failed++
			log.Warn().Err(err).
				Str("claim_id", claimID).
				Str("org_id", orgID).
				Func(cpotel.LogTraceFields(ctx)).
				Msg("batch_claim_detection_failed")
			continue
		}
		results[claimID] = triggers
	}

	span.SetAttributes(
		attribute.Int("claims_scanned", len(ids)),
		attribute.Int("claims_failed", failed),
	)
	return results, nil
}

// detectIsolated converts a panic inside one claim's detection into an
// error so DetectBatch can continue with the remaining claims.
func (d *Detector) detectIsolated(ctx context.Context, claimID, orgID string) (triggers []Trigger, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detection panicked: %v", r)
		}
	}()
	return d.Detect(ctx, claimID, orgID)
}

func (d *Detector) underpayment(f *claims.Facts) *Trigger {
	if f.Financial == nil {
		return nil
	}
	amount := f.Financial.Underpayment
	if amount <= UnderpaymentFloor {
		return nil
	}
	severity := SeverityHigh
	if amount > UnderpaymentCritical {
		severity = SeverityCritical
	}
	return &Trigger{
		Type:     TypeUnderpaymentDetected,
		Severity: severity,
		Payload: map[string]any{
			"underpayment": amount,
			"report_id":    f.Financial.ReportID,
		},
		Reason: fmt.Sprintf("financial analysis found $%.2f underpayment", amount),
	}
}

func (d *Detector) weatherCorrelation(f *claims.Facts) *Trigger {
	if f.Weather == nil {
		return nil
	}
	score := f.Weather.CorrelationScore
	if score <= WeatherScoreFloor {
		return nil
	}
	severity := SeverityMedium
	if score > WeatherScoreHigh {
		severity = SeverityHigh
	}
	return &Trigger{
		Type:     TypeWeatherCorrelation,
		Severity: severity,
		Payload: map[string]any{
			"correlation_score": score,
			"report_id":         f.Weather.ReportID,
		},
		Reason: fmt.Sprintf("weather forensics correlation score %.2f", score),
	}
}

func (d *Detector) adjusterOverdue(f *claims.Facts) *Trigger {
	if f.LastContactAt == nil {
		return nil
	}
	days := int(d.now().Sub(*f.LastContactAt).Hours() / 24)
	if days <= ContactOverdueDays {
		return nil
	}
	severity := SeverityMedium
	if days > ContactOverdueHighDays {
		severity = SeverityHigh
	}
	return &Trigger{
		Type:     TypeAdjusterOverdue,
		Severity: severity,
		Payload: map[string]any{
			"days_since_contact": days,
			"last_contact_at":    f.LastContactAt.UTC().Format(time.RFC3339),
		},
		Reason: fmt.Sprintf("no adjuster contact for %d days", days),
	}
}

func (d *Detector) claimIdle(f *claims.Facts) *Trigger {
	if claims.IsTerminal(f.Status) || f.LastActivityAt == nil {
		return nil
	}
	days := int(d.now().Sub(*f.LastActivityAt).Hours() / 24)
	if days <= IdleDays {
		return nil
	}
	severity := SeverityMedium
	if days > IdleHighDays {
		severity = SeverityHigh
	}
	return &Trigger{
		Type:     TypeClaimIdle,
		Severity: severity,
		Payload: map[string]any{
			"days_idle":          days,
			"last_activity_type": f.LastActivityType,
			"last_activity_at":   f.LastActivityAt.UTC().Format(time.RFC3339),
		},
		Reason: fmt.Sprintf("no recorded activity for %d days", days),
	}
}

func (d *Detector) supplementOpportunity(f *claims.Facts) *Trigger {
	if len(f.Supplements) == 0 {
		return nil
	}
	total := f.SupplementTotal()
	if total <= SupplementFloor {
		return nil
	}
	severity := SeverityMedium
	if total > SupplementHigh {
		severity = SeverityHigh
	}
	return &Trigger{
		Type:     TypeSupplementOpportunity,
		Severity: severity,
		Payload: map[string]any{
			"total_value":      total,
			"supplement_count": len(f.Supplements),
		},
		Reason: fmt.Sprintf("%d supplements worth $%.2f not yet claimed", len(f.Supplements), total),
	}
}

func (d *Detector) causationDisputed(f *claims.Facts) *Trigger {
	if f.Status != claims.StatusDisputed && f.Status != claims.StatusDenied {
		return nil
	}
	return &Trigger{
		Type:     TypeCausationDisputed,
		Severity: SeverityCritical,
		Payload: map[string]any{
			"status": f.Status,
		},
		Reason: fmt.Sprintf("claim causation is contested (status %s)", f.Status),
	}
}
