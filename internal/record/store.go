package record

import (
	"sort"
	"sync"
)

// SaveMode controls when buffered records are handed to a Sink; it never
// changes observable record content (spec.md §4.6).
type SaveMode int

const (
	// AtEnd buffers every record until the run terminates, then writes
	// once.
	AtEnd SaveMode = iota
	// Continuous flushes every record as soon as it is appended.
	Continuous
	// Batched flushes once every N appended records.
	Batched
	// Periodic flushes once every Δt of simulated time that elapses.
	Periodic
)

// Sink receives flushed record batches, e.g. a results-file writer or the
// optional MQTT/websocket telemetry bridges.
type Sink interface {
	Flush(records []Record) error
}

// Store is the append-only record store. Concurrent appenders (one per
// dispatched node) write into independent per-node shards that are merged
// only when a flush or Finalize is requested, matching spec.md §5's
// "concurrent appenders write into per-node shards merged at flush".
type Store struct {
	mu sync.Mutex

	mode          SaveMode
	batchSize     int
	periodicDelta float64
	sink          Sink

	shards        map[string][]Record
	unflushed     int
	lastFlushTime float64
	haveFlushedAt bool
}

// Option configures a Store at construction.
type Option func(*Store)

// WithBatched sets Batched save mode with the given flush size.
func WithBatched(n int) Option {
	return func(s *Store) { s.mode = Batched; s.batchSize = n }
}

// WithPeriodic sets Periodic save mode with the given simulated-time
// flush interval.
func WithPeriodic(delta float64) Option {
	return func(s *Store) { s.mode = Periodic; s.periodicDelta = delta }
}

// WithContinuous sets Continuous save mode.
func WithContinuous() Option {
	return func(s *Store) { s.mode = Continuous }
}

// WithSink attaches the sink records are flushed to. AtEnd mode only ever
// calls it once, at Finalize.
func WithSink(sink Sink) Option {
	return func(s *Store) { s.sink = sink }
}

// New returns an AtEnd-mode Store unless overridden by opts.
func New(opts ...Option) *Store {
	s := &Store{mode: AtEnd, shards: make(map[string][]Record)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append adds r to its node's shard and, depending on save mode, may
// trigger a flush to the configured sink.
func (s *Store) Append(r Record) error {
	s.mu.Lock()
	s.shards[r.Node] = append(s.shards[r.Node], r)
	s.unflushed++
	mode := s.mode
	s.mu.Unlock()

	switch mode {
	case Continuous:
		return s.Flush()
	case Batched:
		s.mu.Lock()
		due := s.unflushed >= s.batchSize
		s.mu.Unlock()
		if due {
			return s.Flush()
		}
	case Periodic:
		s.mu.Lock()
		due := !s.haveFlushedAt || r.Time-s.lastFlushTime >= s.periodicDelta
		s.mu.Unlock()
		if due {
			return s.Flush()
		}
	}
	return nil
}

// Flush hands every record appended since the last flush to the sink, in
// canonical (node, time, stage) order, and clears them from the shards.
// AtEnd-mode stores only actually flush from Finalize.
func (s *Store) Flush() error {
	s.mu.Lock()
	if s.sink == nil {
		s.mu.Unlock()
		return nil
	}
	batch := s.snapshotLocked()
	s.shards = make(map[string][]Record)
	s.unflushed = 0
	if len(batch) > 0 {
		s.lastFlushTime = batch[len(batch)-1].Time
		s.haveFlushedAt = true
	}
	s.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	return s.sink.Flush(batch)
}

// Finalize returns every record appended to the store, in canonical order,
// and — for AtEnd mode only — performs the single terminal flush to the
// sink.
func (s *Store) Finalize() ([]Record, error) {
	s.mu.Lock()
	all := s.snapshotLocked()
	mode := s.mode
	sink := s.sink
	s.mu.Unlock()

	if mode == AtEnd && sink != nil {
		if err := sink.Flush(all); err != nil {
			return all, err
		}
	}
	return all, nil
}

// snapshotLocked merges every shard into per-node order, per-time order,
// per-stage declaration order (spec.md §4.6). Caller must hold s.mu.
func (s *Store) snapshotLocked() []Record {
	names := make([]string, 0, len(s.shards))
	for name := range s.shards {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Record
	for _, name := range names {
		recs := append([]Record(nil), s.shards[name]...)
		sort.SliceStable(recs, func(i, j int) bool {
			if recs[i].Time != recs[j].Time {
				return recs[i].Time < recs[j].Time
			}
			return stageOrder[recs[i].Stage] < stageOrder[recs[j].Stage]
		})
		out = append(out, recs...)
	}
	return out
}
