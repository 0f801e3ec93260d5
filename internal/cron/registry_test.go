package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	health := &stubJob{name: "ledger-health"}
	retention := &stubJob{name: "outbox-retention"}
	registry := NewRegistry(health, nil, retention)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, health, jobs[0])
	assert.Same(t, retention, jobs[1])

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "ledger-health"})
	assert.Error(t, registry.Register(&stubJob{name: "ledger-health"}))
	assert.Len(t, registry.Jobs(), 1)
}
