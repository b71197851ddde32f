package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
)

type mockSyncer struct {
	calls   atomic.Int32
	block   chan struct{}
	started chan struct{}
	err     error
}

func (m *mockSyncer) SyncInbox(ctx context.Context) ([]domain.ImportOutcome, error) {
	m.calls.Add(1)
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	return []domain.ImportOutcome{{Source: "stock.xlsx"}}, m.err
}

func TestRun(t *testing.T) {
	m := &mockSyncer{}
	s := New(m, "0 6 * * *", time.Second)
	assert.True(t, s.Run())
	assert.EqualValues(t, 1, m.calls.Load())

	m.err = errors.New("bucket unreachable")
	assert.True(t, s.Run(), "a failed sync still counts as a run")
	assert.EqualValues(t, 2, m.calls.Load())
}

func TestRun_SkipsOverlap(t *testing.T) {
	m := &mockSyncer{block: make(chan struct{}), started: make(chan struct{})}
	s := New(m, "0 6 * * *", 0)

	done := make(chan bool)
	go func() { done <- s.Run() }()
	<-m.started

	assert.False(t, s.Run())
	close(m.block)
	assert.True(t, <-done)
	assert.EqualValues(t, 1, m.calls.Load())
}

func TestStart(t *testing.T) {
	s := New(&mockSyncer{}, "0 6 * * *", 0)
	require.NoError(t, s.Start())
	s.Stop()

	bad := New(&mockSyncer{}, "not a cron", 0)
	assert.Error(t, bad.Start())
}
