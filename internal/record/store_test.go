package record

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type memSink struct {
	batches [][]Record
}

func (m *memSink) Flush(records []Record) error {
	cp := append([]Record(nil), records...)
	m.batches = append(m.batches, cp)
	return nil
}

func TestAtEndBuffersUntilFinalize(t *testing.T) {
	sink := &memSink{}
	s := New(WithSink(sink))
	require.NoError(t, s.Append(Record{Node: "a", Time: 1, Stage: StagePhysics}))
	require.Empty(t, sink.batches)

	all, err := s.Finalize()
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Len(t, sink.batches, 1)
}

func TestContinuousFlushesImmediately(t *testing.T) {
	sink := &memSink{}
	s := New(WithContinuous(), WithSink(sink))
	require.NoError(t, s.Append(Record{Node: "a", Time: 1, Stage: StagePhysics}))
	require.Len(t, sink.batches, 1)
}

func TestBatchedFlushesEveryN(t *testing.T) {
	sink := &memSink{}
	s := New(WithBatched(2), WithSink(sink))
	require.NoError(t, s.Append(Record{Node: "a", Time: 1, Stage: StagePhysics}))
	require.Empty(t, sink.batches)
	require.NoError(t, s.Append(Record{Node: "a", Time: 2, Stage: StagePhysics}))
	require.Len(t, sink.batches, 1)
	require.Len(t, sink.batches[0], 2)
}

func TestCanonicalOrdering(t *testing.T) {
	s := New()
	require.NoError(t, s.Append(Record{Node: "b", Time: 1, Stage: StageController}))
	require.NoError(t, s.Append(Record{Node: "a", Time: 2, Stage: StagePhysics}))
	require.NoError(t, s.Append(Record{Node: "a", Time: 1, Stage: StageSensors}))
	require.NoError(t, s.Append(Record{Node: "a", Time: 1, Stage: StagePhysics}))

	all, err := s.Finalize()
	require.NoError(t, err)
	require.Len(t, all, 4)
	// node "a" entries first (alphabetical), then within "a": time 1 before
	// time 2, and within time 1, physics (declared before sensors).
	require.Equal(t, "a", all[0].Node)
	require.Equal(t, StagePhysics, all[0].Stage)
	require.Equal(t, "a", all[1].Node)
	require.Equal(t, StageSensors, all[1].Stage)
	require.Equal(t, "a", all[2].Node)
	require.Equal(t, 2.0, all[2].Time)
	require.Equal(t, "b", all[3].Node)
}
