package automation

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/claimpilot/internal/trigger"
)

func newTestRecordStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "automation.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_TriggerLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestRecordStore(t)

	rec := &TriggerRecord{
		OrgID:       "org-1",
		ClaimID:     "c1",
		TriggerType: trigger.TypeUnderpaymentDetected,
		Severity:    trigger.SeverityCritical,
		Payload:     map[string]any{"underpayment": 12000.0},
		Reason:      "financial analysis found $12000.00 underpayment",
	}
	require.NoError(t, store.InsertTrigger(ctx, rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, TriggerPending, rec.Status)

	require.NoError(t, store.MarkTriggerProcessed(ctx, rec.ID))

	rows, err := store.TriggersForClaim(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, TriggerProcessed, rows[0].Status)
	assert.Equal(t, trigger.TypeUnderpaymentDetected, rows[0].TriggerType)
	assert.Equal(t, 12000.0, rows[0].Payload["underpayment"])
	require.NotNil(t, rows[0].ProcessedAt)
}

func TestStore_MarkTriggerProcessedUnknownID(t *testing.T) {
	store := newTestRecordStore(t)
	err := store.MarkTriggerProcessed(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestStore_ActionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestRecordStore(t)

	trig := &TriggerRecord{OrgID: "org-1", ClaimID: "c1", TriggerType: trigger.TypeClaimIdle, Severity: trigger.SeverityMedium}
	require.NoError(t, store.InsertTrigger(ctx, trig))

	ok := &ActionRecord{TriggerID: trig.ID, OrgID: "org-1", ClaimID: "c1", ActionType: trigger.ActionCreateTask}
	require.NoError(t, store.StartAction(ctx, ok))
	assert.Equal(t, ActionRunning, ok.Status)
	require.NoError(t, store.CompleteAction(ctx, ok.ID, map[string]any{"task_id": "t1"}))

	failed := &ActionRecord{TriggerID: trig.ID, OrgID: "org-1", ClaimID: "c1", ActionType: trigger.ActionSendHomeownerEmail}
	require.NoError(t, store.StartAction(ctx, failed))
	require.NoError(t, store.FailAction(ctx, failed.ID, "smtp unreachable"))

	rows, err := store.ActionsForTrigger(ctx, trig.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, ActionSuccess, rows[0].Status)
	assert.Equal(t, "t1", rows[0].Result["task_id"])
	require.NotNil(t, rows[0].CompletedAt)

	assert.Equal(t, ActionFailed, rows[1].Status)
	assert.Equal(t, "smtp unreachable", rows[1].ErrorMessage)
	assert.Nil(t, rows[1].Result)
}

func TestStore_FinishActionUnknownID(t *testing.T) {
	store := newTestRecordStore(t)
	assert.ErrorIs(t, store.CompleteAction(context.Background(), "missing", nil), ErrRecordNotFound)
	assert.ErrorIs(t, store.FailAction(context.Background(), "missing", "x"), ErrRecordNotFound)
}

func TestStore_BookkeepingRows(t *testing.T) {
	ctx := context.Background()
	store := newTestRecordStore(t)

	require.NoError(t, store.InsertActivity(ctx, &Activity{
		OrgID: "org-1", ClaimID: "c1", ActivityType: "automation_run",
		Description: "ran 3 actions",
		Metadata:    map[string]any{"actions_executed": 3.0},
	}))
	require.NoError(t, store.InsertTask(ctx, &Task{OrgID: "org-1", ClaimID: "c1", Title: "Chase adjuster"}))
	require.NoError(t, store.InsertAlert(ctx, &Alert{OrgID: "org-1", ClaimID: "c1", Title: "Underpayment detected", Severity: "CRITICAL"}))
	require.NoError(t, store.InsertRecommendation(ctx, &Recommendation{OrgID: "org-1", ClaimID: "c1", Topic: "weather_evidence"}))

	activities, err := store.ActivitiesForClaim(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, 3.0, activities[0].Metadata["actions_executed"])

	tasks, err := store.TasksForClaim(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "MEDIUM", tasks[0].Priority) // default
	assert.Equal(t, "open", tasks[0].Status)     // default

	alerts, err := store.AlertsForClaim(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "CRITICAL", alerts[0].Severity)

	recs, err := store.RecommendationsForClaim(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "weather_evidence", recs[0].Topic)
}
