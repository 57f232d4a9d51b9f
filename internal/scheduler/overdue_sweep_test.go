package scheduler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookstacks/catalog/internal/tasks"
)

func setupClient(t *testing.T) *tasks.Client {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	cfg := tasks.DefaultConfig()
	cfg.Workers = 1

	client, err := tasks.NewClient(dbPath, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	client.Register(tasks.NewOverdueNoticeQueue())
	return client
}

func TestStartStop(t *testing.T) {
	client := setupClient(t)
	sweep := NewOverdueSweepScheduler(client, "0 6 * * *")

	require.NoError(t, sweep.Start(context.Background()))
	assert.True(t, sweep.IsRunning())
	assert.NotNil(t, sweep.GetNextRunTime())

	sweep.Stop()
	assert.False(t, sweep.IsRunning())
	assert.Nil(t, sweep.GetNextRunTime())

	// A second Stop is a no-op.
	sweep.Stop()
	assert.False(t, sweep.IsRunning())
}

func TestStopReleasesMonitor(t *testing.T) {
	client := setupClient(t)
	sweep := NewOverdueSweepScheduler(client, "0 6 * * *")

	parent, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sweep.Start(parent))

	// A direct Stop must cancel the derived context so the monitor
	// goroutine exits instead of waiting on the parent.
	done := make(chan struct{})
	go func() {
		sweep.Stop()
		close(done)
	}()
	<-done

	assert.False(t, sweep.IsRunning())
}

func TestStartWhileRunning(t *testing.T) {
	client := setupClient(t)
	sweep := NewOverdueSweepScheduler(client, "0 6 * * *")

	require.NoError(t, sweep.Start(context.Background()))
	defer sweep.Stop()

	// Starting twice keeps the single cron entry.
	require.NoError(t, sweep.Start(context.Background()))
	assert.True(t, sweep.IsRunning())
}

func TestInvalidSchedule(t *testing.T) {
	client := setupClient(t)
	sweep := NewOverdueSweepScheduler(client, "not a schedule")

	err := sweep.Start(context.Background())
	require.Error(t, err)
	assert.False(t, sweep.IsRunning())
}
