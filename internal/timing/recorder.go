// Package timing records generation response times and derives the
// aggregate statistics shown to the user. History is persisted to a JSON
// file; a corrupt or missing file yields an empty history, never an error.
package timing

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one recorded response time.
type Entry struct {
	Elapsed      float64   `json:"responseTime"` // seconds
	UserLen      int       `json:"userTextLength"`
	AssistantLen int       `json:"assistantTextLength"`
	Timestamp    time.Time `json:"timestamp"`
}

// Stats aggregates entries over a window.
type Stats struct {
	Count        int     `json:"count"`
	Average      float64 `json:"averageTime"`
	Median       float64 `json:"medianTime"`
	Min          float64 `json:"minTime"`
	Max          float64 `json:"maxTime"`
	StdDeviation float64 `json:"stdDeviation"`
	WarningCount int     `json:"warningCount"`
	SlowCount    int     `json:"slowCount"`
	FastCount    int     `json:"fastCount"`
	PeriodDays   int     `json:"periodDays"`
	WarningShare float64 `json:"warningPercentage"`
	SlowShare    float64 `json:"slowPercentage"`
	FastShare    float64 `json:"fastPercentage"`
}

// Config bounds the retained history and sets the alert thresholds.
type Config struct {
	File          string
	MaxDays       int
	MaxCount      int
	WarnThreshold float64 // seconds
	SlowThreshold float64 // seconds
}

const fastThreshold = 3.0 // seconds

// Recorder keeps the response-time history. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	cfg     Config
	log     zerolog.Logger
	history []Entry
}

// NewRecorder loads any persisted history and returns a Recorder.
// Malformed records are filtered out with a warning.
func NewRecorder(cfg Config, log zerolog.Logger) *Recorder {
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = 90
	}
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = 1000
	}
	if cfg.WarnThreshold <= 0 {
		cfg.WarnThreshold = 10
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = 20
	}
	r := &Recorder{cfg: cfg, log: log}
	r.load()
	r.pruneLocked()
	return r
}

func (r *Recorder) load() {
	if r.cfg.File == "" {
		return
	}
	raw, err := os.ReadFile(r.cfg.File)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Warn().Err(err).Str("file", r.cfg.File).Msg("response-time history unreadable, starting empty")
		}
		return
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		r.log.Warn().Err(err).Str("file", r.cfg.File).Msg("response-time history corrupt, starting empty")
		return
	}
	for _, m := range entries {
		var e Entry
		if err := json.Unmarshal(m, &e); err != nil || e.Timestamp.IsZero() || e.Elapsed < 0 {
			r.log.Warn().Str("file", r.cfg.File).Msg("dropping malformed response-time record")
			continue
		}
		r.history = append(r.history, e)
	}
}

func (r *Recorder) save() {
	if r.cfg.File == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.cfg.File), 0o755); err != nil {
		r.log.Warn().Err(err).Msg("cannot create response-time history dir")
		return
	}
	data, err := json.MarshalIndent(r.history, "", "  ")
	if err != nil {
		r.log.Error().Err(err).Msg("marshal response-time history")
		return
	}
	if err := os.WriteFile(r.cfg.File, data, 0o644); err != nil {
		r.log.Warn().Err(err).Msg("cannot persist response-time history")
	}
}

// Add records one response time together with prompt/answer sizes.
func (r *Recorder) Add(elapsed time.Duration, userLen, assistantLen int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, Entry{
		Elapsed:      elapsed.Seconds(),
		UserLen:      userLen,
		AssistantLen: assistantLen,
		Timestamp:    time.Now().UTC(),
	})
	r.pruneLocked()
	r.save()
}

// pruneLocked drops entries past the age and count bounds. Caller holds mu
// or has exclusive access during construction.
func (r *Recorder) pruneLocked() {
	cutoff := time.Now().UTC().AddDate(0, 0, -r.cfg.MaxDays)
	kept := r.history[:0]
	for _, e := range r.history {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	r.history = kept
	if len(r.history) > r.cfg.MaxCount {
		r.history = r.history[len(r.history)-r.cfg.MaxCount:]
	}
}

// Statistics aggregates the entries recorded over the past `days` days.
func (r *Recorder) Statistics(days int) Stats {
	if days <= 0 {
		days = 7
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	var times []float64
	for _, e := range r.history {
		if e.Timestamp.After(cutoff) {
			times = append(times, e.Elapsed)
		}
	}
	st := Stats{PeriodDays: days, Count: len(times)}
	if len(times) == 0 {
		return st
	}

	sort.Float64s(times)
	st.Min = times[0]
	st.Max = times[len(times)-1]
	st.Median = median(times)

	var sum float64
	for _, t := range times {
		sum += t
		switch {
		case t > r.cfg.SlowThreshold:
			st.SlowCount++
			st.WarningCount++
		case t > r.cfg.WarnThreshold:
			st.WarningCount++
		}
		if t <= fastThreshold {
			st.FastCount++
		}
	}
	st.Average = sum / float64(len(times))

	if len(times) > 1 {
		var sq float64
		for _, t := range times {
			d := t - st.Average
			sq += d * d
		}
		st.StdDeviation = math.Sqrt(sq / float64(len(times)-1))
	}

	n := float64(st.Count)
	st.WarningShare = float64(st.WarningCount) / n * 100
	st.SlowShare = float64(st.SlowCount) / n * 100
	st.FastShare = float64(st.FastCount) / n * 100
	return st
}

// Count returns the number of retained entries.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
