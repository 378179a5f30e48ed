package trigger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/claimpilot/internal/claims"
)

// stubFacts serves canned facts per claim id, with optional per-claim errors
// and panics for batch-isolation tests.
type stubFacts struct {
	facts  map[string]*claims.Facts
	errs   map[string]error
	panics map[string]bool
	open   []string
}

func (s *stubFacts) Facts(_ context.Context, claimID string) (*claims.Facts, error) {
	if s.panics[claimID] {
		panic("corrupt claim row")
	}
	if err := s.errs[claimID]; err != nil {
		return nil, err
	}
	f, ok := s.facts[claimID]
	if !ok {
		return nil, claims.ErrClaimNotFound
	}
	return f, nil
}

func (s *stubFacts) OpenClaimIDs(_ context.Context, _ string, limit int) ([]string, error) {
	if limit > 0 && len(s.open) > limit {
		return s.open[:limit], nil
	}
	return s.open, nil
}

func detectorFor(f *claims.Facts) *Detector {
	return NewDetector(&stubFacts{facts: map[string]*claims.Facts{f.ClaimID: f}})
}

func openFacts(claimID string) *claims.Facts {
	return &claims.Facts{ClaimID: claimID, OrgID: "org-1", Status: claims.StatusOpen}
}

func TestDetector_NoDataNoTriggers(t *testing.T) {
	d := detectorFor(openFacts("c1"))

	triggers, err := d.Detect(context.Background(), "c1", "org-1")
	require.NoError(t, err)
	assert.Empty(t, triggers)
}

func TestDetector_UnderpaymentBoundaries(t *testing.T) {
	cases := []struct {
		name     string
		amount   float64
		fires    bool
		severity Severity
	}{
		{"at floor does not fire", 5000, false, ""},
		{"just above floor is high", 5000.01, true, SeverityHigh},
		{"mid range is high", 7500, true, SeverityHigh},
		{"at critical boundary stays high", 10000, true, SeverityHigh},
		{"above critical boundary", 10000.01, true, SeverityCritical},
		{"well above critical", 12000, true, SeverityCritical},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := openFacts("c1")
			f.Financial = &claims.FinancialAnalysis{ReportID: "r1", Underpayment: tc.amount}
			d := detectorFor(f)

			triggers, err := d.Detect(context.Background(), "c1", "org-1")
			require.NoError(t, err)
			if !tc.fires {
				assert.Empty(t, triggers)
				return
			}
			require.Len(t, triggers, 1)
			assert.Equal(t, TypeUnderpaymentDetected, triggers[0].Type)
			assert.Equal(t, tc.severity, triggers[0].Severity)
			assert.Equal(t, tc.amount, triggers[0].Payload["underpayment"])
		})
	}
}

func TestDetector_WeatherCorrelationBoundaries(t *testing.T) {
	cases := []struct {
		score    float64
		fires    bool
		severity Severity
	}{
		{0.75, false, ""},
		{0.76, true, SeverityMedium},
		{0.90, true, SeverityMedium},
		{0.91, true, SeverityHigh},
	}

	for _, tc := range cases {
		f := openFacts("c1")
		f.Weather = &claims.WeatherForensics{ReportID: "w1", CorrelationScore: tc.score}
		d := detectorFor(f)

		triggers, err := d.Detect(context.Background(), "c1", "org-1")
		require.NoError(t, err)
		if !tc.fires {
			assert.Empty(t, triggers, "score %v", tc.score)
			continue
		}
		require.Len(t, triggers, 1, "score %v", tc.score)
		assert.Equal(t, TypeWeatherCorrelation, triggers[0].Type)
		assert.Equal(t, tc.severity, triggers[0].Severity, "score %v", tc.score)
	}
}

func TestDetector_AdjusterOverdue(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		daysAgo  int
		fires    bool
		severity Severity
	}{
		{7, false, ""},
		{8, true, SeverityMedium},
		{14, true, SeverityMedium},
		{15, true, SeverityHigh},
	}

	for _, tc := range cases {
		f := openFacts("c1")
		contact := now.AddDate(0, 0, -tc.daysAgo)
		f.LastContactAt = &contact
		d := detectorFor(f)
		d.SetClock(func() time.Time { return now })

		triggers, err := d.Detect(context.Background(), "c1", "org-1")
		require.NoError(t, err)
		if !tc.fires {
			assert.Empty(t, triggers, "%d days", tc.daysAgo)
			continue
		}
		require.Len(t, triggers, 1, "%d days", tc.daysAgo)
		assert.Equal(t, TypeAdjusterOverdue, triggers[0].Type)
		assert.Equal(t, tc.severity, triggers[0].Severity, "%d days", tc.daysAgo)
		assert.Equal(t, tc.daysAgo, triggers[0].Payload["days_since_contact"])
	}
}

func TestDetector_ClaimIdle(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	activity := now.AddDate(0, 0, -12)

	f := openFacts("c1")
	f.LastActivityAt = &activity
	f.LastActivityType = "note"
	d := detectorFor(f)
	d.SetClock(func() time.Time { return now })

	triggers, err := d.Detect(context.Background(), "c1", "org-1")
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, TypeClaimIdle, triggers[0].Type)
	assert.Equal(t, SeverityHigh, triggers[0].Severity)
}

func TestDetector_ClaimIdleSkipsTerminalStatuses(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	activity := now.AddDate(0, 0, -30)

	for _, status := range []string{claims.StatusSettled, claims.StatusClosed, claims.StatusWithdrawn} {
		f := openFacts("c1")
		f.Status = status
		f.LastActivityAt = &activity
		d := detectorFor(f)
		d.SetClock(func() time.Time { return now })

		triggers, err := d.Detect(context.Background(), "c1", "org-1")
		require.NoError(t, err)
		assert.Empty(t, triggers, "status %s", status)
	}
}

func TestDetector_SupplementOpportunity(t *testing.T) {
	f := openFacts("c1")
	f.Supplements = []claims.Supplement{
		{ID: "s1", Value: 2000},
		{ID: "s2", Value: 1500},
	}
	d := detectorFor(f)

	triggers, err := d.Detect(context.Background(), "c1", "org-1")
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, TypeSupplementOpportunity, triggers[0].Type)
	assert.Equal(t, SeverityMedium, triggers[0].Severity)
	assert.Equal(t, 3500.0, triggers[0].Payload["total_value"])
}

func TestDetector_SupplementTotalAtFloorDoesNotFire(t *testing.T) {
	f := openFacts("c1")
	f.Supplements = []claims.Supplement{{ID: "s1", Value: 3000}}
	d := detectorFor(f)

	triggers, err := d.Detect(context.Background(), "c1", "org-1")
	require.NoError(t, err)
	assert.Empty(t, triggers)
}

func TestDetector_SupplementHighSeverity(t *testing.T) {
	f := openFacts("c1")
	f.Supplements = []claims.Supplement{{ID: "s1", Value: 9000}}
	d := detectorFor(f)

	triggers, err := d.Detect(context.Background(), "c1", "org-1")
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, SeverityHigh, triggers[0].Severity)
}

func TestDetector_CausationDisputed(t *testing.T) {
	for _, status := range []string{claims.StatusDisputed, claims.StatusDenied} {
		f := openFacts("c1")
		f.Status = status
		d := detectorFor(f)

		triggers, err := d.Detect(context.Background(), "c1", "org-1")
		require.NoError(t, err)
		require.Len(t, triggers, 1, "status %s", status)
		assert.Equal(t, TypeCausationDisputed, triggers[0].Type)
		assert.Equal(t, SeverityCritical, triggers[0].Severity)
	}
}

func TestDetector_MultipleTriggersKeepRuleOrder(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	contact := now.AddDate(0, 0, -20)

	f := openFacts("c1")
	f.Financial = &claims.FinancialAnalysis{ReportID: "r1", Underpayment: 12000}
	f.Weather = &claims.WeatherForensics{ReportID: "w1", CorrelationScore: 0.95}
	f.LastContactAt = &contact
	d := detectorFor(f)
	d.SetClock(func() time.Time { return now })

	triggers, err := d.Detect(context.Background(), "c1", "org-1")
	require.NoError(t, err)
	require.Len(t, triggers, 3)
	assert.Equal(t, TypeUnderpaymentDetected, triggers[0].Type)
	assert.Equal(t, TypeWeatherCorrelation, triggers[1].Type)
	assert.Equal(t, TypeAdjusterOverdue, triggers[2].Type)
}

func TestDetector_DetectBatchIsolatesFailures(t *testing.T) {
	good1 := openFacts("c1")
	good1.Financial = &claims.FinancialAnalysis{ReportID: "r1", Underpayment: 6000}
	good2 := openFacts("c3")

	stub := &stubFacts{
		facts: map[string]*claims.Facts{"c1": good1, "c3": good2},
		errs:  map[string]error{"c2": errors.New("corrupt row")},
		open:  []string{"c1", "c2", "c3"},
	}
	d := NewDetector(stub)

	results, err := d.DetectBatch(context.Background(), "org-1", 50)
	require.NoError(t, err)

	// Claim 2 failed and is absent; 1 and 3 are present.
	assert.Len(t, results, 2)
	assert.Len(t, results["c1"], 1)
	assert.Empty(t, results["c3"])
	_, ok := results["c2"]
	assert.False(t, ok)
}

func TestDetector_DetectBatchRecoversPanics(t *testing.T) {
	stub := &stubFacts{
		facts:  map[string]*claims.Facts{"c1": openFacts("c1")},
		panics: map[string]bool{"c2": true},
		open:   []string{"c1", "c2"},
	}
	d := NewDetector(stub)

	results, err := d.DetectBatch(context.Background(), "org-1", 50)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestDetector_DetectBatchHonorsLimit(t *testing.T) {
	stub := &stubFacts{
		facts: map[string]*claims.Facts{
			"c1": openFacts("c1"),
			"c2": openFacts("c2"),
			"c3": openFacts("c3"),
		},
		open: []string{"c1", "c2", "c3"},
	}
	d := NewDetector(stub)

	results, err := d.DetectBatch(context.Background(), "org-1", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
