package hitfinder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistogram_Fill(t *testing.T) {
	t.Parallel()
	s := NewHistograms()
	s.Define1D("h1", "1D", Axis{Bins: 10, Min: 0, Max: 10})
	s.Define2D("h2", "2D", Axis{Bins: 2, Min: 0, Max: 2}, Axis{Bins: 3, Min: 0, Max: 3})

	s.Record("h1", 0.5)
	s.Record("h1", 9.99)
	s.Record("h1", -1)
	s.Record("h1", 10)
	s.Record("h2", 1.5, 2.5)
	s.Record("h2", 1.5)

	h1, ok := s.Get("h1")
	require.True(t, ok)
	assert.Equal(t, 2.0, h1.Entries())
	assert.Equal(t, 1.0, h1.Counts[0])
	assert.Equal(t, 1.0, h1.Counts[9])
	assert.Equal(t, 1.0, h1.Underflow)
	assert.Equal(t, 1.0, h1.Overflow)

	h2, _ := s.Get("h2")
	assert.Equal(t, 1.0, h2.Entries())
	assert.Equal(t, 1.0, h2.Counts[2*2+1])
	assert.Equal(t, []float64{0, 1}, h2.ProjectionX())
}

func TestHistogram_MeanStdDev(t *testing.T) {
	t.Parallel()
	s := NewHistograms()
	s.Define1D("h", "", Axis{Bins: 4, Min: 0, Max: 4})
	for _, x := range []float64{1.5, 1.5, 2.5, 2.5} {
		s.Record("h", x)
	}

	h, _ := s.Get("h")
	mean, std := h.MeanStdDev()
	assert.InDelta(t, 2.0, mean, 1e-12)
	assert.Greater(t, std, 0.0)

	empty := NewHistograms()
	empty.Define1D("e", "", Axis{Bins: 4, Min: 0, Max: 4})
	e, _ := empty.Get("e")
	mean, std = e.MeanStdDev()
	assert.Zero(t, mean)
	assert.Zero(t, std)
}

func TestHistograms_UndefinedNameWarnsOnce(t *testing.T) {
	logs := captureLogs(t)
	s := NewHistograms()

	s.Record("missing", 1)
	s.Record("missing", 2)

	assert.Len(t, logs.warns, 1)
	assert.Empty(t, s.Names())
}

func TestHistograms_Merge(t *testing.T) {
	t.Parallel()
	axis := Axis{Bins: 2, Min: 0, Max: 2}
	left := NewHistograms()
	left.Define1D("shared", "", axis)
	right := NewHistograms()
	right.Define1D("shared", "", axis)
	right.Define1D("only_right", "", axis)

	left.Record("shared", 0.5)
	right.Record("shared", 0.5)
	right.Record("shared", 5)
	right.Record("only_right", 1.5)

	left.Merge(right)
	left.Merge(nil)

	shared, _ := left.Get("shared")
	assert.Equal(t, []float64{2, 0}, shared.Counts)
	assert.Equal(t, 1.0, shared.Overflow)
	onlyRight, ok := left.Get("only_right")
	require.True(t, ok)
	assert.Equal(t, 1.0, onlyRight.Entries())

	right.Record("only_right", 1.5)
	assert.Equal(t, 1.0, onlyRight.Entries(), "merged histograms must not share storage")
	assert.Equal(t, []string{"only_right", "shared"}, left.Names())
}

func TestRecord_RecoversFromPanickingSink(t *testing.T) {
	logs := captureLogs(t)

	assert.NotPanics(t, func() { record(panickingStatistics{}, "anything", 1) })
	require.Len(t, logs.errors, 1)
	assert.Contains(t, logs.errors[0], "anything")
}

func TestDefineControlHistograms(t *testing.T) {
	t.Parallel()
	config := DefaultConfiguration()
	config.NumberOfThresholds = 2
	s := NewHistograms()

	DefineControlHistograms(s, config)

	for _, name := range []string{
		"unused_sigch_all", "unused_sigch_good", "unused_sigch_corr", "good_v_bad_raw_sigs",
		"lead_trail_thr1_diff", "lead_trail_thr2_diff", "tot_thr1", "tot_thr2",
		"lead_thr1_thr2_diff", "pulse_tot", "time_diff_per_scin", "hit_pos_per_scin", "hits_per_window",
	} {
		_, ok := s.Get(name)
		assert.True(t, ok, name)
	}
	_, ok := s.Get("lead_thr1_thr1_diff")
	assert.False(t, ok)
}
