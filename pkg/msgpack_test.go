package hitfinder

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMsgpackSink_Stream(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	sink, err := newMsgpackSink(&buf, 12, "run-id")
	require.NoError(t, err)

	pulseA := pulseAt(4, SideA, 100)
	pulseA.Points[0].Trailing = &Edge{Time: 400}
	pulseB := pulseAt(4, SideB, 300)
	hits := PairHits([]Pulse{pulseA}, []Pulse{pulseB}, pairConfig(1000), velocityTable{4: 10})

	require.NoError(t, sink.WritePulses(3, []Pulse{pulseA, pulseB}))
	require.NoError(t, sink.WriteHits(3, hits))
	require.NoError(t, sink.Close())

	header, records, err := ReadMsgpackStream(&buf)
	require.NoError(t, err)
	assert.Equal(t, RunHeader{RunNumber: 12, RunID: "run-id"}, header)
	require.Len(t, records, 2)

	wantPulse := PulseRecord{
		PM: 8, Scin: 4, Side: "A", Time: 100, TOT: 1000, Flag: "Unknown",
		Levels: []int{1}, Lead: []float64{100}, Trail: []float64{400}, HasTrail: []bool{true},
	}
	if diff := cmp.Diff(wantPulse, records[0].Pulses[0]); diff != "" {
		t.Errorf("pulse record mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []bool{false}, records[0].Pulses[1].HasTrail)
	assert.Empty(t, records[0].Hits)

	require.Len(t, records[1].Hits, 1)
	hit := records[1].Hits[0]
	assert.Equal(t, uint64(3), records[1].Window)
	assert.Equal(t, 200.0, hit.TimeDiff)
	assert.Equal(t, 8, hit.PMA)
	assert.Equal(t, 9, hit.PMB)
	assert.True(t, hit.PositionValid)
	assert.InDelta(t, 1.0, hit.Z, 1e-9)
}

func TestMsgpackSink_File(t *testing.T) {
	t.Parallel()
	filename := filepath.Join(t.TempDir(), "out.msgpack")
	sink, err := NewMsgpackSink(filename, 1, "id")
	require.NoError(t, err)
	require.NoError(t, sink.WritePulses(0, nil))
	require.NoError(t, sink.Close())

	_, err = NewMsgpackSink(filepath.Join(t.TempDir(), "missing", "out.msgpack"), 1, "id")
	var openErr *ErrOpenFile
	assert.ErrorAs(t, err, &openErr)
}

func TestNewHitRecord_Reference(t *testing.T) {
	t.Parallel()
	b := pulseAt(9, SideB, 10)
	reference := createReferenceHit(&b)

	record := NewHitRecord(&reference)

	assert.Equal(t, -1, record.PMA)
	assert.Equal(t, 19, record.PMB)
	assert.False(t, record.PositionValid)
}
