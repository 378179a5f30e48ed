// Package claims holds the claim fact model the automation core reads,
// and a SQLite-backed fact reader.
package claims

import (
	"context"
	"time"
)

// Claim statuses. Terminal statuses are excluded from idle detection and
// batch scans.
const (
	StatusOpen      = "open"
	StatusInReview  = "in_review"
	StatusDisputed  = "disputed"
	StatusDenied    = "denied"
	StatusEscalated = "escalated"
	StatusSettled   = "settled"
	StatusClosed    = "closed"
	StatusWithdrawn = "withdrawn"
)

// IsTerminal reports whether a claim in this status is done moving.
func IsTerminal(status string) bool {
	switch status {
	case StatusSettled, StatusClosed, StatusWithdrawn:
		return true
	}
	return false
}

// FinancialAnalysis is the latest financial-analysis result for a claim.
// ACV/RCV are carried as opaque claim-domain figures, not interpreted here.
type FinancialAnalysis struct {
	ReportID     string
	Underpayment float64
	ACV          float64
	RCV          float64
}

// WeatherForensics is the latest weather-correlation result for a claim.
type WeatherForensics struct {
	ReportID         string
	CorrelationScore float64
	EventDate        *time.Time
}

// Supplement is one supplement line item with its monetary value.
type Supplement struct {
	ID          string
	Description string
	Value       float64
}

// Facts is the snapshot of one claim the trigger detector evaluates.
// Any field may be absent (nil/zero); absence of data is never an error.
type Facts struct {
	ClaimID          string
	OrgID            string
	Status           string
	AdjusterEmail    string
	HomeownerEmail   string
	LastContactAt    *time.Time
	LastActivityAt   *time.Time
	LastActivityType string
	Financial        *FinancialAnalysis
	Weather          *WeatherForensics
	Supplements      []Supplement
}

// SupplementTotal sums the monetary values of all supplements.
func (f *Facts) SupplementTotal() float64 {
	var total float64
	for _, s := range f.Supplements {
		total += s.Value
	}
	return total
}

// FactReader is the boundary to the claim store. Implementations must
// tolerate absent data: a claim without reports returns Facts with nil
// report fields, not an error.
type FactReader interface {
	// Facts returns the current snapshot for one claim.
	Facts(ctx context.Context, claimID string) (*Facts, error)
	// OpenClaimIDs returns up to limit non-terminal claim ids for an org.
	OpenClaimIDs(ctx context.Context, orgID string, limit int) ([]string, error)
}

// StatusWriter mutates a claim's status. Implemented by the claim store;
// consumed by the update-claim-status executor.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, claimID, status string) error
}
