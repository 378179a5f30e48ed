package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBalance struct {
	balance float64
	err     error
}

func (s *stubBalance) RemainingBalance(context.Context, string) (float64, error) {
	return s.balance, s.err
}

func TestSelector_FixedModes(t *testing.T) {
	sel := NewSelector("gpt-4o", "gpt-4o-mini", 10, nil)
	ctx := context.Background()

	model, err := sel.Select(ctx, ModeCheap, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", model)

	model, err = sel.Select(ctx, ModeCapable, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model)
}

func TestSelector_EmptyModeDefaultsToCapable(t *testing.T) {
	sel := NewSelector("gpt-4o", "gpt-4o-mini", 10, nil)

	model, err := sel.Select(context.Background(), "", "org-1")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model)
}

func TestSelector_AutoAboveThreshold(t *testing.T) {
	sel := NewSelector("gpt-4o", "gpt-4o-mini", 10, &stubBalance{balance: 50})

	model, err := sel.Select(context.Background(), ModeAuto, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model)
}

func TestSelector_AutoBelowThreshold(t *testing.T) {
	sel := NewSelector("gpt-4o", "gpt-4o-mini", 10, &stubBalance{balance: 9.99})

	model, err := sel.Select(context.Background(), ModeAuto, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", model)
}

func TestSelector_AutoAtThresholdStaysCapable(t *testing.T) {
	sel := NewSelector("gpt-4o", "gpt-4o-mini", 10, &stubBalance{balance: 10})

	model, err := sel.Select(context.Background(), ModeAuto, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", model)
}

func TestSelector_AutoBalanceLookupFailureFallsBackToCheap(t *testing.T) {
	sel := NewSelector("gpt-4o", "gpt-4o-mini", 10, &stubBalance{err: errors.New("store down")})

	model, err := sel.Select(context.Background(), ModeAuto, "org-1")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", model)
}

func TestSelector_AutoWithoutBalanceReader(t *testing.T) {
	sel := NewSelector("gpt-4o", "gpt-4o-mini", 10, nil)

	_, err := sel.Select(context.Background(), ModeAuto, "org-1")
	assert.ErrorIs(t, err, ErrNoBalanceReader)
}

func TestSelector_InvalidMode(t *testing.T) {
	sel := NewSelector("gpt-4o", "gpt-4o-mini", 10, nil)

	_, err := sel.Select(context.Background(), Mode("fastest"), "org-1")
	assert.ErrorIs(t, err, ErrInvalidMode)
}
