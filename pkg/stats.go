package hitfinder

import (
	"fmt"
	"math"
	"slices"

	"golang.org/x/exp/maps"
	"gonum.org/v1/gonum/stat"
)

// Statistics receives observability samples. One value fills a 1D
// histogram, two values fill a 2D histogram.
type Statistics interface {
	Record(name string, values ...float64)
}

type NopStatistics struct{}

func (NopStatistics) Record(string, ...float64) {}

// record never lets a failing statistics sink reach the reconstruction.
func record(stats Statistics, name string, values ...float64) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(fmt.Sprintf("statistics sink failed on %q: %v", name, r))
		}
	}()
	stats.Record(name, values...)
}

type Axis struct {
	Bins  int
	Min   float64
	Max   float64
	Label string
}

func (a Axis) bin(x float64) (int, bool) {
	if math.IsNaN(x) || x < a.Min || x >= a.Max {
		return 0, false
	}
	i := int((x - a.Min) / (a.Max - a.Min) * float64(a.Bins))
	if i >= a.Bins {
		i = a.Bins - 1
	}
	return i, true
}

func (a Axis) Center(i int) float64 {
	width := (a.Max - a.Min) / float64(a.Bins)
	return a.Min + (float64(i)+0.5)*width
}

type Histogram struct {
	Name      string
	Title     string
	X         Axis
	Y         *Axis
	Counts    []float64
	Underflow float64
	Overflow  float64
}

func (h *Histogram) fill(values []float64) {
	if len(values) == 0 {
		return
	}
	ix, ok := h.X.bin(values[0])
	if !ok {
		h.outOfRange(h.X, values[0])
		return
	}
	if h.Y == nil {
		h.Counts[ix]++
		return
	}
	if len(values) < 2 {
		return
	}
	iy, ok := h.Y.bin(values[1])
	if !ok {
		h.outOfRange(*h.Y, values[1])
		return
	}
	h.Counts[iy*h.X.Bins+ix]++
}

func (h *Histogram) outOfRange(axis Axis, x float64) {
	if x < axis.Min {
		h.Underflow++
	} else {
		h.Overflow++
	}
}

func (h *Histogram) Entries() float64 {
	return sumOf(h.Counts)
}

// ProjectionX returns the bin contents summed over the Y axis.
func (h *Histogram) ProjectionX() []float64 {
	if h.Y == nil {
		return slices.Clone(h.Counts)
	}
	proj := make([]float64, h.X.Bins)
	for iy := 0; iy < h.Y.Bins; iy++ {
		for ix := 0; ix < h.X.Bins; ix++ {
			proj[ix] += h.Counts[iy*h.X.Bins+ix]
		}
	}
	return proj
}

// MeanStdDev returns the weighted mean and standard deviation along X.
func (h *Histogram) MeanStdDev() (float64, float64) {
	weights := h.ProjectionX()
	if sumOf(weights) == 0 {
		return 0, 0
	}
	centers := make([]float64, h.X.Bins)
	for i := range centers {
		centers[i] = h.X.Center(i)
	}
	return stat.MeanStdDev(centers, weights)
}

func sumOf(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// Histograms is an in-memory statistics sink. It is not safe for concurrent
// use: each worker keeps its own instance and they are merged at the end.
type Histograms struct {
	histos  map[string]*Histogram
	unknown map[string]bool
}

func NewHistograms() *Histograms {
	return &Histograms{
		histos:  make(map[string]*Histogram),
		unknown: make(map[string]bool),
	}
}

func (s *Histograms) Define1D(name string, title string, x Axis) {
	s.histos[name] = &Histogram{Name: name, Title: title, X: x, Counts: make([]float64, x.Bins)}
}

func (s *Histograms) Define2D(name string, title string, x Axis, y Axis) {
	s.histos[name] = &Histogram{Name: name, Title: title, X: x, Y: &y, Counts: make([]float64, x.Bins*y.Bins)}
}

func (s *Histograms) Record(name string, values ...float64) {
	h, ok := s.histos[name]
	if !ok {
		if !s.unknown[name] {
			s.unknown[name] = true
			logger.Warn(fmt.Sprintf("histogram %q is not defined, ignoring", name), "stats")
		}
		return
	}
	h.fill(values)
}

func (s *Histograms) Get(name string) (*Histogram, bool) {
	h, ok := s.histos[name]
	return h, ok
}

func (s *Histograms) Names() []string {
	return slices.Sorted(maps.Keys(s.histos))
}

// Merge adds the contents of other into s. Histograms missing in s are
// copied, histograms with different binning are skipped.
func (s *Histograms) Merge(other *Histograms) {
	if other == nil {
		return
	}
	for _, name := range other.Names() {
		src := other.histos[name]
		dst, ok := s.histos[name]
		if !ok {
			copied := *src
			copied.Counts = slices.Clone(src.Counts)
			s.histos[name] = &copied
			continue
		}
		if len(dst.Counts) != len(src.Counts) {
			logger.Error(fmt.Sprintf("cannot merge histogram %q: binning differs", name))
			continue
		}
		for i, c := range src.Counts {
			dst.Counts[i] += c
		}
		dst.Underflow += src.Underflow
		dst.Overflow += src.Overflow
	}
}

// DefineControlHistograms creates the histograms filled by the pulse
// builder and the hit pairer.
func DefineControlHistograms(s *Histograms, config Configuration) {
	n := config.NumberOfThresholds
	edgeAxis := Axis{Bins: 2 * n, Min: 0.5, Max: float64(2*n) + 0.5, Label: "2*THR-1 lead, 2*THR trail"}
	s.Define1D("unused_sigch_all", "Unused Signal Channels", edgeAxis)
	s.Define1D("unused_sigch_good", "Unused Signal Channels with GOOD flag", edgeAxis)
	s.Define1D("unused_sigch_corr", "Unused Signal Channels with CORRUPTED flag", edgeAxis)
	s.Define1D("good_v_bad_raw_sigs", "Reco flag of raw signals", Axis{Bins: 3, Min: 0.5, Max: 3.5, Label: "good, corrupted, unknown"})
	for k := 1; k <= n; k++ {
		s.Define1D(fmt.Sprintf("lead_trail_thr%d_diff", k),
			fmt.Sprintf("Time Difference between leading and trailing Signal Channels THR%d", k),
			Axis{Bins: 200, Min: -config.SigChLeadTrailMaxTime, Max: config.SigChLeadTrailMaxTime, Label: "time diff [ps]"})
		s.Define1D(fmt.Sprintf("tot_thr%d", k),
			fmt.Sprintf("Calibrated TOT on THR%d", k),
			Axis{Bins: 200, Min: 0, Max: config.SigChLeadTrailMaxTime, Label: "TOT [ps]"})
		if k > 1 {
			s.Define1D(fmt.Sprintf("lead_thr1_thr%d_diff", k),
				fmt.Sprintf("Time Difference between leading Signal Channels THR1 and THR%d", k),
				Axis{Bins: 200, Min: -config.SigChEdgeMaxTime, Max: config.SigChEdgeMaxTime, Label: "time diff [ps]"})
		}
	}
	s.Define1D("pulse_tot", "Pulse TOT sum", Axis{Bins: 200, Min: 0, Max: float64(n) * config.SigChLeadTrailMaxTime, Label: "TOT [ps]"})

	window := config.HitCoincidenceWindow
	scinAxis := Axis{Bins: 512, Min: 0.5, Max: 512.5, Label: "scintillator ID"}
	s.Define2D("time_diff_per_scin", "Signals Time Difference per Scintillator ID",
		Axis{Bins: 200, Min: -window, Max: window, Label: "time diff [ps]"}, scinAxis)
	s.Define2D("hit_pos_per_scin", "Hit Position per Scintillator ID",
		Axis{Bins: 200, Min: -150, Max: 150, Label: "z [cm]"}, scinAxis)
	s.Define1D("hits_per_window", "Hits per time window", Axis{Bins: 100, Min: 0, Max: 100, Label: "hits"})
}
