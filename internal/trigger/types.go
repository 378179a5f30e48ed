// Package trigger detects actionable conditions on claims and maps them to
// ordered remedial actions.
package trigger

// Severity ranks a detected condition.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Type is the closed enum of trigger conditions. Detector rules emit the
// first six; the auxiliary types are raised by external events (inspection
// uploads, carrier responses) routed through the same action table.
type Type string

const (
	TypeUnderpaymentDetected  Type = "UNDERPAYMENT_DETECTED"
	TypeWeatherCorrelation    Type = "WEATHER_CORRELATION"
	TypeAdjusterOverdue       Type = "ADJUSTER_OVERDUE"
	TypeClaimIdle             Type = "CLAIM_IDLE"
	TypeSupplementOpportunity Type = "SUPPLEMENT_OPPORTUNITY"
	TypeCausationDisputed     Type = "CAUSATION_DISPUTED"
	TypeInspectionCompleted   Type = "INSPECTION_COMPLETED"
	TypePhotosUploaded        Type = "PHOTOS_UPLOADED"
	TypeWeatherEventNearby    Type = "WEATHER_EVENT_NEARBY"
	TypeSettlementReady       Type = "SETTLEMENT_READY"
	TypeCarrierDenial         Type = "CARRIER_DENIAL"
	TypeCodeViolation         Type = "CODE_VIOLATION"
	TypeMissingItemsCritical  Type = "MISSING_ITEMS_CRITICAL"
)

// AllTypes lists every trigger type in the enum, in detector rule order
// followed by the auxiliary types.
func AllTypes() []Type {
	return []Type{
		TypeUnderpaymentDetected,
		TypeWeatherCorrelation,
		TypeAdjusterOverdue,
		TypeClaimIdle,
		TypeSupplementOpportunity,
		TypeCausationDisputed,
		TypeInspectionCompleted,
		TypePhotosUploaded,
		TypeWeatherEventNearby,
		TypeSettlementReady,
		TypeCarrierDenial,
		TypeCodeViolation,
		TypeMissingItemsCritical,
	}
}

// Trigger is one detected condition on one claim. Created by the detector,
// persisted once per pass, never mutated afterwards except for its stored
// status and timestamps.
type Trigger struct {
	Type     Type
	Severity Severity
	Payload  map[string]any // structured evidence for the condition
	Reason   string         // human-readable explanation
}
