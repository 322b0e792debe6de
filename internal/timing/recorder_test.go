package timing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecorder(t *testing.T, file string) *Recorder {
	t.Helper()
	return NewRecorder(Config{File: file, WarnThreshold: 10, SlowThreshold: 20}, zerolog.Nop())
}

func TestStatisticsAggregation(t *testing.T) {
	r := testRecorder(t, "")
	for _, secs := range []float64{1, 2, 5, 12, 25} {
		r.Add(time.Duration(secs*float64(time.Second)), 10, 20)
	}

	st := r.Statistics(7)
	assert.Equal(t, 5, st.Count)
	assert.Equal(t, 9.0, st.Average)
	assert.Equal(t, 5.0, st.Median)
	assert.Equal(t, 1.0, st.Min)
	assert.Equal(t, 25.0, st.Max)
	assert.Equal(t, 2, st.WarningCount) // 12s and 25s
	assert.Equal(t, 1, st.SlowCount)    // 25s
	assert.Equal(t, 2, st.FastCount)    // 1s and 2s
	assert.InDelta(t, 40.0, st.WarningShare, 0.01)
	assert.Greater(t, st.StdDeviation, 0.0)
}

func TestStatisticsEmptyWindow(t *testing.T) {
	r := testRecorder(t, "")
	st := r.Statistics(7)
	assert.Zero(t, st.Count)
	assert.Zero(t, st.Average)
}

func TestHistoryPersistsAcrossRecorders(t *testing.T) {
	file := filepath.Join(t.TempDir(), "times.json")
	r := testRecorder(t, file)
	r.Add(2*time.Second, 5, 10)
	r.Add(3*time.Second, 5, 10)

	again := testRecorder(t, file)
	assert.Equal(t, 2, again.Count())
}

func TestCorruptHistoryLoadsEmpty(t *testing.T) {
	file := filepath.Join(t.TempDir(), "times.json")
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0o644))

	r := testRecorder(t, file)
	assert.Zero(t, r.Count())

	// The recorder stays usable and overwrites the bad file.
	r.Add(time.Second, 1, 1)
	assert.Equal(t, 1, r.Count())
}

func TestMalformedEntriesAreDropped(t *testing.T) {
	file := filepath.Join(t.TempDir(), "times.json")
	entries := []map[string]interface{}{
		{"responseTime": 2.0, "timestamp": time.Now().UTC().Format(time.RFC3339Nano)},
		{"responseTime": "not a number"},
	}
	raw, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, raw, 0o644))

	r := testRecorder(t, file)
	assert.Equal(t, 1, r.Count())
}

func TestCountBoundIsEnforced(t *testing.T) {
	r := NewRecorder(Config{MaxCount: 5}, zerolog.Nop())
	for i := 0; i < 10; i++ {
		r.Add(time.Second, 1, 1)
	}
	assert.Equal(t, 5, r.Count())
}
