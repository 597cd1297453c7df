package rebuild

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/indexd/internal/chunking"
	"github.com/fyrsmithlabs/indexd/internal/indexer"
)

func TestSchedulerSweeps(t *testing.T) {
	policies := &stubIndexer{
		sourceType: chunking.SourcePolicyDoc,
		result:     indexer.IndexingResult{DocumentsProcessed: 1},
	}
	reg := indexer.NewRegistry()
	reg.Register(policies)

	s := NewScheduler(reg, SchedulerConfig{
		Interval: 10 * time.Millisecond,
		Tenants:  []string{"T1", "T2"},
	}, nil)
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		_, incr := policies.calls()
		return incr >= 4 // at least two full sweeps over both tenants
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	reg := indexer.NewRegistry()
	s := NewScheduler(reg, SchedulerConfig{Interval: time.Hour}, nil)

	s.Start(context.Background())
	s.Start(context.Background()) // second Start is a no-op
	s.Stop()
	s.Stop() // second Stop is a no-op
}

func TestSchedulerDefaults(t *testing.T) {
	cfg := SchedulerConfig{}
	cfg.ApplyDefaults()
	assert.Equal(t, 15*time.Minute, cfg.Interval)
}
