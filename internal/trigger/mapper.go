package trigger

import (
	"sort"
)

// ActionType is the closed enum of remedial actions. Each has exactly one
// executor registered at startup; the registry validates coverage so an
// unmapped action type is caught at construction, not mid-run.
type ActionType string

const (
	ActionGenerateFinancialAnalysis   ActionType = "generate_financial_analysis"
	ActionGenerateDocumentationPacket ActionType = "generate_documentation_packet"
	ActionGenerateWeatherForensics    ActionType = "generate_weather_forensics"
	ActionGenerateSupplementPacket    ActionType = "generate_supplement_packet"
	ActionSendAdjusterEmail           ActionType = "send_adjuster_email"
	ActionSendHomeownerEmail          ActionType = "send_homeowner_email"
	ActionSendFollowUpEmail           ActionType = "send_follow_up_email"
	ActionCreateTask                  ActionType = "create_task"
	ActionCreateAlert                 ActionType = "create_alert"
	ActionCreateRecommendation        ActionType = "create_recommendation"
	ActionLogActivity                 ActionType = "log_activity"
	ActionUpdateClaimStatus           ActionType = "update_claim_status"
	ActionEscalate                    ActionType = "escalate"
)

// MappedAction is one declarative (type, priority, config) tuple. Never
// persisted; recomputed from the static table for each trigger.
type MappedAction struct {
	Type     ActionType
	Priority int
	Config   map[string]any
}

// actionTable is the static trigger→actions mapping. It is pure data with
// no runtime conditionals so the mapping stays auditable and testable on
// its own. Entries are not required to be declared in priority order;
// SortedActions is the ordered entry point.
var actionTable = map[Type][]MappedAction{
	TypeUnderpaymentDetected: {
		{Type: ActionGenerateFinancialAnalysis, Priority: 1, Config: map[string]any{"model_mode": "capable"}},
		{Type: ActionGenerateDocumentationPacket, Priority: 2, Config: map[string]any{"packet": "underpayment"}},
		{Type: ActionSendAdjusterEmail, Priority: 3, Config: map[string]any{"template": "underpayment_demand"}},
		{Type: ActionCreateTask, Priority: 4, Config: map[string]any{"title": "Review underpayment demand", "priority": "HIGH"}},
		{Type: ActionCreateAlert, Priority: 5, Config: map[string]any{"title": "Underpayment detected"}},
	},
	TypeWeatherCorrelation: {
		{Type: ActionGenerateWeatherForensics, Priority: 1, Config: map[string]any{"model_mode": "auto"}},
		{Type: ActionCreateRecommendation, Priority: 2, Config: map[string]any{"topic": "weather_evidence"}},
		{Type: ActionLogActivity, Priority: 3, Config: map[string]any{"activity_type": "weather_correlation_review"}},
	},
	TypeAdjusterOverdue: {
		{Type: ActionSendFollowUpEmail, Priority: 1, Config: map[string]any{"template": "adjuster_follow_up"}},
		{Type: ActionCreateTask, Priority: 2, Config: map[string]any{"title": "Chase adjuster response", "priority": "MEDIUM"}},
		{Type: ActionLogActivity, Priority: 3, Config: map[string]any{"activity_type": "adjuster_follow_up"}},
	},
	TypeClaimIdle: {
		{Type: ActionCreateTask, Priority: 1, Config: map[string]any{"title": "Revive idle claim", "priority": "MEDIUM"}},
		{Type: ActionSendHomeownerEmail, Priority: 2, Config: map[string]any{"template": "status_update"}},
		{Type: ActionLogActivity, Priority: 3, Config: map[string]any{"activity_type": "idle_claim_review"}},
	},
	TypeSupplementOpportunity: {
		{Type: ActionGenerateSupplementPacket, Priority: 1, Config: map[string]any{"model_mode": "auto"}},
		{Type: ActionCreateTask, Priority: 2, Config: map[string]any{"title": "Submit supplement packet", "priority": "HIGH"}},
		{Type: ActionCreateRecommendation, Priority: 3, Config: map[string]any{"topic": "supplement_submission"}},
	},
	TypeCausationDisputed: {
		{Type: ActionEscalate, Priority: 1, Config: map[string]any{"reason": "causation_disputed"}},
		{Type: ActionGenerateDocumentationPacket, Priority: 2, Config: map[string]any{"packet": "causation_evidence"}},
		{Type: ActionUpdateClaimStatus, Priority: 3, Config: map[string]any{"status": "escalated"}},
		{Type: ActionCreateAlert, Priority: 4, Config: map[string]any{"title": "Causation disputed"}},
	},
	TypeInspectionCompleted: {
		{Type: ActionLogActivity, Priority: 2, Config: map[string]any{"activity_type": "inspection_completed"}},
		{Type: ActionGenerateFinancialAnalysis, Priority: 1, Config: map[string]any{"model_mode": "capable"}},
	},
	TypePhotosUploaded: {
		{Type: ActionGenerateDocumentationPacket, Priority: 1, Config: map[string]any{"packet": "photo_inventory", "image_keyed": true}},
	},
	TypeWeatherEventNearby: {
		{Type: ActionCreateAlert, Priority: 2, Config: map[string]any{"title": "Weather event near loss location"}},
		{Type: ActionGenerateWeatherForensics, Priority: 1, Config: map[string]any{"model_mode": "auto"}},
	},
	TypeSettlementReady: {
		{Type: ActionCreateTask, Priority: 1, Config: map[string]any{"title": "Prepare settlement package", "priority": "HIGH"}},
		{Type: ActionSendHomeownerEmail, Priority: 2, Config: map[string]any{"template": "settlement_ready"}},
	},
	TypeCarrierDenial: {
		{Type: ActionEscalate, Priority: 1, Config: map[string]any{"reason": "carrier_denial"}},
		{Type: ActionGenerateDocumentationPacket, Priority: 2, Config: map[string]any{"packet": "denial_rebuttal"}},
	},
	TypeCodeViolation: {
		{Type: ActionCreateRecommendation, Priority: 1, Config: map[string]any{"topic": "code_upgrade_coverage"}},
		{Type: ActionCreateTask, Priority: 2, Config: map[string]any{"title": "Document code violation", "priority": "MEDIUM"}},
	},
	TypeMissingItemsCritical: {
		{Type: ActionCreateAlert, Priority: 1, Config: map[string]any{"title": "Critical items missing from estimate"}},
		{Type: ActionGenerateSupplementPacket, Priority: 2, Config: map[string]any{"model_mode": "capable"}},
	},
}

// ActionsForTrigger returns the raw table entries for a trigger type, in
// declaration order. An unknown type gets an empty list, never an error:
// every type in the enum has at least a default (empty) mapping.
func ActionsForTrigger(t Type) []MappedAction {
	entries := actionTable[t]
	out := make([]MappedAction, len(entries))
	copy(out, entries)
	return out
}

// SortedActions returns the actions for a trigger type sorted ascending by
// priority, stable for ties. This is the only entry point the execution
// engine uses.
func SortedActions(t Type) []MappedAction {
	actions := ActionsForTrigger(t)
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority < actions[j].Priority
	})
	return actions
}

// MappedActionTypes returns the set of action types that appear anywhere in
// the table, for registry coverage validation at startup.
func MappedActionTypes() map[ActionType]bool {
	out := make(map[ActionType]bool)
	for _, entries := range actionTable {
		for _, a := range entries {
			out[a.Type] = true
		}
	}
	return out
}
