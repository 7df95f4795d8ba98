package main

import (
	"os"
	"path/filepath"
	"testing"

	hitfinder "github.com/next-exp/hitfinder_go/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edge(channel int, edgeType hitfinder.EdgeType, time float64) hitfinder.Edge {
	return hitfinder.Edge{Channel: channel, Threshold: 1, Type: edgeType, Time: time, Flag: hitfinder.FlagGood}
}

// writeEdgeFile writes n windows, each holding one pulse on both sides of
// scintillator 7.
func writeEdgeFile(t *testing.T, n int) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "edges.tdc")
	file, err := os.Create(filename)
	require.NoError(t, err)
	defer file.Close()

	require.NoError(t, hitfinder.WriteFileHeader(file, 55, n))
	for i := 0; i < n; i++ {
		offset := float64(i) * 1e6
		window := hitfinder.NewEdgeWindow(uint64(100+i), []hitfinder.Edge{
			edge(1, hitfinder.Leading, offset+1000),
			edge(1, hitfinder.Trailing, offset+4000),
			edge(2, hitfinder.Leading, offset+1500),
			edge(2, hitfinder.Trailing, offset+4500),
		})
		require.NoError(t, hitfinder.WriteWindow(file, window))
	}
	return filename
}

func setConfiguration(t *testing.T, config hitfinder.Configuration) {
	t.Helper()
	previous := configuration
	configuration = config
	t.Cleanup(func() { configuration = previous })
}

func testProcessor(config hitfinder.Configuration) hitfinder.Processor {
	return hitfinder.Processor{
		Config: config,
		Resolver: hitfinder.ChannelMap{
			1: {PMID: 14, ScinID: 7, Side: hitfinder.SideA, Threshold: 1},
			2: {PMID: 15, ScinID: 7, Side: hitfinder.SideB, Threshold: 1},
		},
	}
}

func openEdgeFile(t *testing.T, filename string) *FileReader {
	t.Helper()
	file, err := os.Open(filename)
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })
	fileReader, err := NewFileReader(file)
	require.NoError(t, err)
	return fileReader
}

func TestRunWorkers_WritesInReadingOrder(t *testing.T) {
	config := hitfinder.DefaultConfiguration()
	config.NumberOfThresholds = 1
	config.SaveControlHistograms = true
	setConfiguration(t, config)

	fileReader := openEdgeFile(t, writeEdgeFile(t, 6))
	assert.Equal(t, uint32(55), fileReader.Header.RunNumber)

	sink := hitfinder.NewMemorySink()
	histograms := runWorkers(fileReader, testProcessor(config), 3, sink)

	assert.Equal(t, []uint64{100, 101, 102, 103, 104, 105}, sink.Windows)
	for _, index := range sink.Windows {
		assert.Len(t, sink.Pulses[index], 2)
		require.Len(t, sink.Hits[index], 1)
		assert.Equal(t, 500.0, sink.Hits[index][0].TimeDiff)
	}

	tot, ok := histograms.Get("pulse_tot")
	require.True(t, ok)
	assert.Equal(t, 12.0, tot.Entries())
}

func TestGetNextWindow_SkipAndMaxWindows(t *testing.T) {
	config := hitfinder.DefaultConfiguration()
	config.NumberOfThresholds = 1
	config.Skip = 2
	config.MaxWindows = 4
	setConfiguration(t, config)

	fileReader := openEdgeFile(t, writeEdgeFile(t, 6))
	sink := hitfinder.NewMemorySink()
	runWorkers(fileReader, testProcessor(config), 2, sink)

	assert.Equal(t, []uint64{102, 103}, sink.Windows)
}
