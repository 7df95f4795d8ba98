package hitfinder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProcessor() Processor {
	config := DefaultConfiguration()
	config.NumberOfThresholds = 2
	return Processor{
		Config:     config,
		Resolver:   testChannels(),
		Velocities: velocityTable{10: 12},
	}
}

func TestProcessWindow_Edges(t *testing.T) {
	t.Parallel()
	processor := testProcessor()
	window := NewEdgeWindow(7, []Edge{
		lead(1, 1, 1000), trail(1, 1, 5000), lead(3, 2, 1010),
		lead(2, 1, 3000), trail(2, 1, 8000),
		lead(42, 1, 10),
	})

	result, err := processor.ProcessWindow(window)

	require.NoError(t, err)
	assert.Equal(t, uint64(7), result.Index)
	require.Len(t, result.Pulses, 2)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, 1, result.Dropped)
	assert.Zero(t, result.Orphans)

	hit := result.Hits[0]
	assert.Equal(t, 2000.0, hit.TimeDiff)
	assert.Equal(t, 4000.0+5000.0, hit.Energy)
	assert.True(t, hit.PositionValid)
	assert.InDelta(t, 12.0, hit.Position.Z, 1e-9)
}

func TestProcessWindow_Pulses(t *testing.T) {
	t.Parallel()
	processor := testProcessor()
	window := NewPulseWindow(1, []Pulse{pulseAt(10, SideA, 0), pulseAt(10, SideB, 100)})

	result, err := processor.ProcessWindow(window)

	require.NoError(t, err)
	assert.Len(t, result.Pulses, 2)
	assert.Len(t, result.Hits, 1)
}

func TestProcessWindow_HitsPassThrough(t *testing.T) {
	t.Parallel()
	processor := testProcessor()
	hits := []Hit{{Scin: 3}}

	result, err := processor.ProcessWindow(NewHitWindow(2, hits))

	require.NoError(t, err)
	assert.Equal(t, hits, result.Hits)
	assert.Empty(t, result.Pulses)
}

func TestProcessWindow_NoDBUsesEdgePM(t *testing.T) {
	t.Parallel()
	processor := testProcessor()
	processor.Resolver = nil
	processor.Config.NoDB = true
	edge := lead(1, 1, 10)
	edge.PM = 5

	result, err := processor.ProcessWindow(NewEdgeWindow(0, []Edge{edge}))

	require.NoError(t, err)
	require.Len(t, result.Pulses, 1)
	assert.Equal(t, 5, result.Pulses[0].PM)
}

func TestProcessWindow_StructuralErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing resolver", func(t *testing.T) {
		t.Parallel()
		processor := testProcessor()
		processor.Resolver = nil
		_, err := processor.ProcessWindow(NewEdgeWindow(0, []Edge{lead(1, 1, 0)}))
		var cfgErr *ErrConfig
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "resolver", cfgErr.Parameter)
	})

	t.Run("no thresholds", func(t *testing.T) {
		t.Parallel()
		processor := testProcessor()
		processor.Config.NumberOfThresholds = 0
		_, err := processor.ProcessWindow(NewEdgeWindow(0, nil))
		assert.Error(t, err)
	})

	t.Run("no coincidence window", func(t *testing.T) {
		t.Parallel()
		processor := testProcessor()
		processor.Config.HitCoincidenceWindow = 0
		_, err := processor.ProcessWindow(NewPulseWindow(0, nil))
		assert.Error(t, err)
	})
}

func TestProcessWindow_OrderThresholdsByValue(t *testing.T) {
	t.Parallel()
	processor := testProcessor()
	processor.Config.OrderThresholdsByValue = true
	processor.Orderings = ThresholdOrderings{1: {1, 0}}
	// channel 3 is threshold 2 of PM 1, promoted to level 1
	window := NewEdgeWindow(0, []Edge{lead(3, 2, 100), lead(1, 1, 105)})

	result, err := processor.ProcessWindow(window)

	require.NoError(t, err)
	require.Len(t, result.Pulses, 1)
	assert.Equal(t, 100.0, result.Pulses[0].Time)
	assert.Equal(t, 2, result.Pulses[0].LeadingCount())
}
