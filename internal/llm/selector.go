package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Mode controls which model a call uses.
type Mode string

const (
	ModeCheap   Mode = "cheap"   // always the low-cost model
	ModeCapable Mode = "capable" // always the high-accuracy model
	ModeAuto    Mode = "auto"    // decided by the tenant's remaining balance
)

// BalanceReader reports an org's remaining prepaid usage balance in USD.
// Implemented by internal/tenant.
type BalanceReader interface {
	RemainingBalance(ctx context.Context, orgID string) (float64, error)
}

// Selector chooses the model for a call. It is a pure decision over
// (mode, balance): no side effects beyond the balance lookup in auto mode.
type Selector struct {
	capable   string
	cheap     string
	threshold float64 // USD; auto mode picks cheap below this remaining balance
	balances  BalanceReader
}

// NewSelector creates a model selector. balances may be nil when auto mode
// is never used.
func NewSelector(capable, cheap string, thresholdUSD float64, balances BalanceReader) *Selector {
	return &Selector{
		capable:   capable,
		cheap:     cheap,
		threshold: thresholdUSD,
		balances:  balances,
	}
}

// Select returns the model id for the given mode. In auto mode a balance
// lookup failure falls back to the cheap model rather than failing the call.
func (s *Selector) Select(ctx context.Context, mode Mode, orgID string) (string, error) {
	switch mode {
	case ModeCheap:
		return s.cheap, nil
	case ModeCapable, "":
		return s.capable, nil
	case ModeAuto:
		if s.balances == nil {
			return "", ErrNoBalanceReader
		}
		balance, err := s.balances.RemainingBalance(ctx, orgID)
		if err != nil {
			log.Warn().Err(err).Str("org_id", orgID).Msg("balance_lookup_failed_using_cheap_model")
			return s.cheap, nil
		}
		if balance < s.threshold {
			return s.cheap, nil
		}
		return s.capable, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}
