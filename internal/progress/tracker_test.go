package progress

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerCapsAt99UntilComplete(t *testing.T) {
	tr := NewTracker(4, nil)

	assert.Equal(t, 50, tr.Update(2, 4, false))
	assert.Equal(t, 99, tr.Update(2, 4, false))
	assert.Equal(t, 99, tr.Read())

	tr.Complete()
	assert.Equal(t, 100, tr.Read())
	assert.True(t, tr.Done())
}

func TestTrackerUpdateWithCompletedFlag(t *testing.T) {
	tr := NewTracker(10, nil)
	assert.Equal(t, 100, tr.Update(1, 10, true))
}

func TestTrackerIgnoresNonPositiveTotal(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(10, slog.New(slog.NewJSONHandler(&buf, nil)))
	tr.Update(3, 10, false)

	assert.Equal(t, 30, tr.Update(5, 0, false))
	assert.Equal(t, 30, tr.Update(5, -1, false))
	assert.Equal(t, 30, tr.Read())

	var entry map[string]any
	line, _, _ := bytes.Cut(buf.Bytes(), []byte("\n"))
	require.NoError(t, json.Unmarshal(line, &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "progress.update.ignored", entry["msg"])
}

func TestTrackerClampsOverflow(t *testing.T) {
	tr := NewTracker(3, nil)
	assert.Equal(t, 99, tr.Update(10, 3, false))
}

func TestTrackerFloorsPercent(t *testing.T) {
	tr := NewTracker(3, nil)
	assert.Equal(t, 33, tr.Update(1, 3, false))
	assert.Equal(t, 66, tr.Update(1, 3, false))
}

func TestTrackerConcurrentUpdatesAreMonotonic(t *testing.T) {
	const total = 200
	tr := NewTracker(total, nil)

	var wg sync.WaitGroup
	reads := make(chan int, total*2)
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Update(1, total, false)
			reads <- tr.Read()
		}()
	}

	done := make(chan struct{})
	var seen []int
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			seen = append(seen, tr.Read())
		}
	}()
	wg.Wait()
	<-done
	close(reads)

	for i := 1; i < len(seen); i++ {
		require.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	for r := range reads {
		require.LessOrEqual(t, r, 99)
	}
	assert.Equal(t, 99, tr.Read())
}

func TestRegistryTearsDownAfterFinalRead(t *testing.T) {
	reg := NewRegistry(nil)
	tr := reg.Start("job-1", 2)

	tr.Update(1, 2, false)
	pct, ok := reg.Read("job-1")
	require.True(t, ok)
	assert.Equal(t, 50, pct)

	tr.Complete()
	pct, ok = reg.Read("job-1")
	require.True(t, ok)
	assert.Equal(t, 100, pct)
	assert.Equal(t, 0, reg.Len())

	_, ok = reg.Read("job-1")
	assert.False(t, ok)
}
