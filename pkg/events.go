package hitfinder

import "fmt"

type EdgeType int

const (
	Leading EdgeType = iota
	Trailing
)

func (e EdgeType) String() string {
	switch e {
	case Leading:
		return "Leading"
	case Trailing:
		return "Trailing"
	default:
		return "Unknown"
	}
}

type RecoFlag int

const (
	FlagUnknown RecoFlag = iota
	FlagGood
	FlagCorrupted
)

func (f RecoFlag) String() string {
	switch f {
	case FlagGood:
		return "Good"
	case FlagCorrupted:
		return "Corrupted"
	default:
		return "Unknown"
	}
}

type Side int

const (
	SideA Side = iota
	SideB
)

func (s Side) String() string {
	if s == SideA {
		return "A"
	}
	return "B"
}

// Edge is a single TDC timestamp. Time is in picoseconds. PM is zero until
// the channel has been resolved.
type Edge struct {
	Channel   int
	Threshold int
	Type      EdgeType
	Time      float64
	Flag      RecoFlag
	PM        int
}

type ChannelInfo struct {
	PMID           int
	ScinID         int
	Side           Side
	Slot           int
	Threshold      int
	ThresholdValue float64
	ScinX          float64
	ScinY          float64
}

type ThresholdPoint struct {
	Level    int
	Leading  Edge
	Trailing *Edge
}

// TOT returns the raw time over threshold at this level and whether the
// trailing edge is present.
func (p ThresholdPoint) TOT() (float64, bool) {
	if p.Trailing == nil {
		return 0, false
	}
	return p.Trailing.Time - p.Leading.Time, true
}

// Pulse is a raw signal: the edges believed to come from one analog pulse on
// one photomultiplier. Points are kept in ascending level order.
type Pulse struct {
	PM     int
	Scin   int
	Side   Side
	Slot   int
	ScinX  float64
	ScinY  float64
	Points []ThresholdPoint
	TOT    float64
	Time   float64
	Flag   RecoFlag
}

func (p *Pulse) Point(level int) (ThresholdPoint, bool) {
	for _, point := range p.Points {
		if point.Level == level {
			return point, true
		}
	}
	return ThresholdPoint{}, false
}

func (p *Pulse) LeadingCount() int {
	return len(p.Points)
}

func (p *Pulse) TrailingCount() int {
	n := 0
	for _, point := range p.Points {
		if point.Trailing != nil {
			n++
		}
	}
	return n
}

// HasAllLevels reports whether a leading edge was found on every level 1..n.
func (p *Pulse) HasAllLevels(n int) bool {
	for level := 1; level <= n; level++ {
		if _, ok := p.Point(level); !ok {
			return false
		}
	}
	return true
}

// InvalidPosition marks a coordinate that could not be computed because a
// calibration constant was missing.
const InvalidPosition = -1000000.0

type Position struct {
	X float64
	Y float64
	Z float64
}

type Hit struct {
	A             *Pulse
	B             *Pulse
	Scin          int
	Slot          int
	Time          float64
	TimeDiff      float64
	Energy        float64
	Position      Position
	PositionValid bool
}

func (h *Hit) IsReference() bool {
	return h.A == nil || h.B == nil
}

type WindowKind int

const (
	EdgeWindow WindowKind = iota
	PulseWindow
	HitWindow
)

func (k WindowKind) String() string {
	switch k {
	case EdgeWindow:
		return "edges"
	case PulseWindow:
		return "pulses"
	case HitWindow:
		return "hits"
	default:
		return "unknown"
	}
}

// TimeWindow is the batching unit. The payload kind is fixed at construction
// and only the matching slice is populated.
type TimeWindow struct {
	Index  uint64
	Kind   WindowKind
	Edges  []Edge
	Pulses []Pulse
	Hits   []Hit
}

func NewEdgeWindow(index uint64, edges []Edge) TimeWindow {
	return TimeWindow{Index: index, Kind: EdgeWindow, Edges: edges}
}

func NewPulseWindow(index uint64, pulses []Pulse) TimeWindow {
	return TimeWindow{Index: index, Kind: PulseWindow, Pulses: pulses}
}

func NewHitWindow(index uint64, hits []Hit) TimeWindow {
	return TimeWindow{Index: index, Kind: HitWindow, Hits: hits}
}

func (w TimeWindow) Len() int {
	switch w.Kind {
	case EdgeWindow:
		return len(w.Edges)
	case PulseWindow:
		return len(w.Pulses)
	case HitWindow:
		return len(w.Hits)
	}
	return 0
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("window %d (%d %s)", w.Index, w.Len(), w.Kind)
}
