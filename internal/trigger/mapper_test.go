package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortedActions_AscendingPriority(t *testing.T) {
	// This table entry is deliberately declared out of priority order.
	raw := ActionsForTrigger(TypeInspectionCompleted)
	require.Len(t, raw, 2)
	assert.Equal(t, 2, raw[0].Priority)

	sorted := SortedActions(TypeInspectionCompleted)
	require.Len(t, sorted, 2)
	assert.Equal(t, 1, sorted[0].Priority)
	assert.Equal(t, ActionGenerateFinancialAnalysis, sorted[0].Type)
	assert.Equal(t, 2, sorted[1].Priority)
	assert.Equal(t, ActionLogActivity, sorted[1].Type)
}

func TestSortedActions_WeatherEventNearby(t *testing.T) {
	sorted := SortedActions(TypeWeatherEventNearby)
	require.Len(t, sorted, 2)
	assert.Equal(t, ActionGenerateWeatherForensics, sorted[0].Type)
	assert.Equal(t, ActionCreateAlert, sorted[1].Type)
}

func TestSortedActions_UnderpaymentSequence(t *testing.T) {
	sorted := SortedActions(TypeUnderpaymentDetected)
	require.Len(t, sorted, 5)

	want := []ActionType{
		ActionGenerateFinancialAnalysis,
		ActionGenerateDocumentationPacket,
		ActionSendAdjusterEmail,
		ActionCreateTask,
		ActionCreateAlert,
	}
	for i, a := range sorted {
		assert.Equal(t, want[i], a.Type)
		assert.Equal(t, i+1, a.Priority)
	}
}

func TestSortedActions_UnknownTypeIsEmpty(t *testing.T) {
	assert.Empty(t, SortedActions(Type("NO_SUCH_TRIGGER")))
}

func TestActionsForTrigger_ReturnsCopy(t *testing.T) {
	a := ActionsForTrigger(TypeUnderpaymentDetected)
	a[0].Priority = 99

	b := ActionsForTrigger(TypeUnderpaymentDetected)
	assert.Equal(t, 1, b[0].Priority)
}

func TestActionTable_EveryTriggerTypeMapped(t *testing.T) {
	for _, trigType := range AllTypes() {
		assert.NotEmpty(t, ActionsForTrigger(trigType), "trigger type %s has no actions", trigType)
	}
}

func TestActionTable_PrioritiesUniquePerTrigger(t *testing.T) {
	for _, trigType := range AllTypes() {
		seen := map[int]bool{}
		for _, a := range ActionsForTrigger(trigType) {
			assert.False(t, seen[a.Priority], "trigger %s repeats priority %d", trigType, a.Priority)
			seen[a.Priority] = true
		}
	}
}

func TestMappedActionTypes_CoversEnum(t *testing.T) {
	mapped := MappedActionTypes()
	for _, at := range []ActionType{
		ActionGenerateFinancialAnalysis,
		ActionGenerateDocumentationPacket,
		ActionGenerateWeatherForensics,
		ActionGenerateSupplementPacket,
		ActionSendAdjusterEmail,
		ActionSendHomeownerEmail,
		ActionSendFollowUpEmail,
		ActionCreateTask,
		ActionCreateAlert,
		ActionCreateRecommendation,
		ActionLogActivity,
		ActionUpdateClaimStatus,
		ActionEscalate,
	} {
		assert.True(t, mapped[at], "action type %s never appears in the table", at)
	}
}
