// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/flashcardNFC/fastball/backend/sim"
)

const HistogramBuckets = 101

const (
	// ExitVelocityBucket spans 0-125 mph.
	ExitVelocityBucket = 1.25
	// TimingBucket spans 0-200 ms of absolute timing error.
	TimingBucket = 2.0
)

// Histogram is a fixed-width histogram. Values past the last bucket land
// in it.
type Histogram struct {
	Width   float64                  `json:"w"`
	Buckets [HistogramBuckets]uint64 `json:"b"`
	Count   uint64                   `json:"c"`
	Sum     float64                  `json:"s"`
}

func NewHistogram(width float64) *Histogram {
	return &Histogram{Width: width}
}

func (h *Histogram) Add(v float64) {
	if math.IsNaN(v) {
		return
	}
	idx := 0
	if v > 0 && h.Width > 0 {
		idx = int(v / h.Width)
	}
	if idx >= HistogramBuckets {
		idx = HistogramBuckets - 1
	}
	h.Buckets[idx]++
	h.Count++
	h.Sum += v
}

func (h *Histogram) Merge(other *Histogram) {
	if other == nil {
		return
	}
	for i := 0; i < HistogramBuckets; i++ {
		h.Buckets[i] += other.Buckets[i]
	}
	h.Count += other.Count
	h.Sum += other.Sum
}

// Mean is the average of every added value, or 0 when empty.
func (h *Histogram) Mean() float64 {
	if h.Count == 0 {
		return 0
	}
	return h.Sum / float64(h.Count)
}

// Percentile returns the upper edge of the bucket holding the p-th
// percentile, p in [0,1].
func (h *Histogram) Percentile(p float64) float64 {
	if h.Count == 0 {
		return 0
	}
	rank := uint64(math.Ceil(p * float64(h.Count)))
	if rank == 0 {
		rank = 1
	}
	var seen uint64
	for i, n := range h.Buckets {
		seen += n
		if seen >= rank {
			return float64(i+1) * h.Width
		}
	}
	return float64(HistogramBuckets) * h.Width
}

// ResolutionConfig defines the policy for a single RRD bucket set.
type ResolutionConfig struct {
	Name       string        `json:"name"`
	Resolution time.Duration `json:"resolution"`
	Retention  time.Duration `json:"retention"`
	Buckets    int           `json:"buckets"`
}

var DefaultResolutions = []ResolutionConfig{
	{"1m", 1 * time.Minute, 2 * time.Hour, 120},
	{"15m", 15 * time.Minute, 24 * time.Hour, 96},
	{"1d", 24 * time.Hour, 183 * 24 * time.Hour, 183},
}

// Point represents a single data point in a time series.
type Point[T any] struct {
	Timestamp int64 `json:"t"`
	Value     T     `json:"v"`
}

// RingBuffer is a fixed-size circular buffer for storing time series data.
type RingBuffer[T any] struct {
	Config ResolutionConfig `json:"config"`
	Data   []Point[T]       `json:"data"`
	Head   int              `json:"head"` // next write position
}

func NewRingBuffer[T any](cfg ResolutionConfig) *RingBuffer[T] {
	return &RingBuffer[T]{
		Config: cfg,
		Data:   make([]Point[T], cfg.Buckets),
	}
}

func (rb *RingBuffer[T]) align(timestamp int64) int64 {
	resSec := int64(rb.Config.Resolution.Seconds())
	return (timestamp / resSec) * resSec
}

// last returns the most recent point, or nil if it is not in the same
// bucket as timestamp.
func (rb *RingBuffer[T]) last(timestamp int64) *Point[T] {
	prev := (rb.Head - 1 + len(rb.Data)) % len(rb.Data)
	if rb.Data[prev].Timestamp == rb.align(timestamp) {
		return &rb.Data[prev]
	}
	return nil
}

// Add stores value in the bucket for timestamp, replacing the value if the
// bucket is already the newest one.
func (rb *RingBuffer[T]) Add(timestamp int64, value T) {
	if p := rb.last(timestamp); p != nil {
		p.Value = value
		return
	}
	rb.Data[rb.Head] = Point[T]{Timestamp: rb.align(timestamp), Value: value}
	rb.Head = (rb.Head + 1) % len(rb.Data)
}

// GetPoints returns the data points sorted by time.
func (rb *RingBuffer[T]) GetPoints() []Point[T] {
	points := make([]Point[T], 0, len(rb.Data))
	for i := 0; i < len(rb.Data); i++ {
		idx := (rb.Head + i) % len(rb.Data)
		if rb.Data[idx].Timestamp > 0 {
			points = append(points, rb.Data[idx])
		}
	}
	return points
}

// CounterSeries counts events per bucket at every resolution.
type CounterSeries struct {
	Name    string                          `json:"name"`
	Buffers map[string]*RingBuffer[float64] `json:"buffers"`
}

func NewCounterSeries(name string) *CounterSeries {
	cs := &CounterSeries{Name: name}
	cs.Hydrate()
	return cs
}

func (cs *CounterSeries) Ingest(timestamp int64, n float64) {
	for _, cfg := range DefaultResolutions {
		buf, ok := cs.Buffers[cfg.Name]
		if !ok {
			continue
		}
		if p := buf.last(timestamp); p != nil {
			p.Value += n
			continue
		}
		buf.Add(timestamp, n)
	}
}

// Hydrate restores buffers missing after a load.
func (cs *CounterSeries) Hydrate() {
	if cs.Buffers == nil {
		cs.Buffers = make(map[string]*RingBuffer[float64])
	}
	for _, cfg := range DefaultResolutions {
		if _, ok := cs.Buffers[cfg.Name]; !ok {
			cs.Buffers[cfg.Name] = NewRingBuffer[float64](cfg)
		}
	}
}

// PitchMetrics aggregates every resolved pitch on this server.
type PitchMetrics struct {
	mu sync.Mutex

	ExitVelocity *Histogram                 `json:"exitVelocity"`
	Timing       *Histogram                 `json:"timing"`
	Outcomes     map[sim.OutcomeType]uint64 `json:"outcomes"`
	Pitches      *CounterSeries             `json:"pitches"`
	Hits         *CounterSeries             `json:"hits"`
	GamesOver    uint64                     `json:"gamesOver"`
	LastUpdate   int64                      `json:"lastUpdate"`

	now func() time.Time
}

func NewPitchMetrics() *PitchMetrics {
	m := &PitchMetrics{}
	m.Hydrate()
	return m
}

// Hydrate fills in anything a loaded snapshot left out.
func (m *PitchMetrics) Hydrate() {
	if m.ExitVelocity == nil {
		m.ExitVelocity = NewHistogram(ExitVelocityBucket)
	}
	if m.Timing == nil {
		m.Timing = NewHistogram(TimingBucket)
	}
	if m.Outcomes == nil {
		m.Outcomes = make(map[sim.OutcomeType]uint64)
	}
	if m.Pitches == nil {
		m.Pitches = NewCounterSeries("pitches")
	}
	m.Pitches.Hydrate()
	if m.Hits == nil {
		m.Hits = NewCounterSeries("hits")
	}
	m.Hits.Hydrate()
	if m.now == nil {
		m.now = time.Now
	}
}

// RecordOutcome adds one resolved pitch.
func (m *PitchMetrics) RecordOutcome(o sim.PitchOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.now().Unix()
	m.Outcomes[o.Type]++
	m.Pitches.Ingest(ts, 1)
	if o.Type.IsHit() {
		m.Hits.Ingest(ts, 1)
	}
	if o.Swung && o.Status != sim.StatusMiss {
		m.Timing.Add(math.Abs(o.TimingOffsetMs))
	}
	if o.HasContact {
		m.ExitVelocity.Add(o.ExitVelocity)
	}
	m.LastUpdate = ts
}

// RecordGameOver counts a finished game.
func (m *PitchMetrics) RecordGameOver() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GamesOver++
}

// MetricsSnapshot is the /api/metrics response.
type MetricsSnapshot struct {
	Outcomes       map[sim.OutcomeType]uint64 `json:"outcomes"`
	ExitVelocity   Histogram                  `json:"exitVelocity"`
	Timing         Histogram                  `json:"timing"`
	MeanEV         float64                    `json:"meanExitVelocity"`
	P90EV          float64                    `json:"p90ExitVelocity"`
	MeanTimingMs   float64                    `json:"meanTimingMs"`
	PitchesPerMin  []Point[float64]           `json:"pitchesPerMinute"`
	HitsPerMin     []Point[float64]           `json:"hitsPerMinute"`
	GamesOver      uint64                     `json:"gamesOver"`
	ActiveSessions int                        `json:"activeSessions"`
	LastUpdate     int64                      `json:"lastUpdate"`
}

// Snapshot copies the current metrics.
func (m *PitchMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	outcomes := make(map[sim.OutcomeType]uint64, len(m.Outcomes))
	for k, v := range m.Outcomes {
		outcomes[k] = v
	}
	return MetricsSnapshot{
		Outcomes:      outcomes,
		ExitVelocity:  *m.ExitVelocity,
		Timing:        *m.Timing,
		MeanEV:        m.ExitVelocity.Mean(),
		P90EV:         m.ExitVelocity.Percentile(0.9),
		MeanTimingMs:  m.Timing.Mean(),
		PitchesPerMin: m.Pitches.Buffers["1m"].GetPoints(),
		HitsPerMin:    m.Hits.Buffers["1m"].GetPoints(),
		GamesOver:     m.GamesOver,
		LastUpdate:    m.LastUpdate,
	}
}

const metricsFile = "metrics.json"

// Save writes the metrics so they survive a restart.
func (m *PitchMetrics) Save(s *storage.Storage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := s.SaveDataFile(metricsFile, m); err != nil {
		return fmt.Errorf("saving metrics: %w", err)
	}
	return nil
}

// LoadPitchMetrics reads saved metrics, starting empty when there are none.
func LoadPitchMetrics(s *storage.Storage) (*PitchMetrics, error) {
	var m PitchMetrics
	if err := s.ReadDataFile(metricsFile, &m); err != nil {
		if os.IsNotExist(err) {
			return NewPitchMetrics(), nil
		}
		return NewPitchMetrics(), fmt.Errorf("loading metrics: %w", err)
	}
	m.Hydrate()
	return &m, nil
}
