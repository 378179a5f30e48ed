package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	orgs []string
}

func (m *mockRunner) RunBatch(_ context.Context, orgID string) error {
	m.orgs = append(m.orgs, orgID)
	return nil
}

func TestRegisterSweeps_AddsEntries(t *testing.T) {
	sched := New(&mockRunner{})

	err := sched.RegisterSweeps([]Sweep{
		{OrgID: "org-1", Cron: "0 7 * * *", Description: "morning sweep"},
		{OrgID: "org-2", Cron: "0 19 * * *", Description: "evening sweep"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sched.Entries())
}

func TestRegisterSweeps_InvalidCron(t *testing.T) {
	sched := New(&mockRunner{})

	err := sched.RegisterSweeps([]Sweep{
		{OrgID: "org-1", Cron: "not a valid cron"},
	})
	assert.Error(t, err)
	assert.Equal(t, 0, sched.Entries())
}

func TestStartStop(t *testing.T) {
	sched := New(&mockRunner{})
	sched.Start()
	sched.Stop()
}
