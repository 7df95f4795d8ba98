package hitfinder

import (
	"math"
	"sort"
)

// VelocityLookup returns the effective light velocity in a scintillator, in
// cm/ns.
type VelocityLookup interface {
	Velocity(scin int) (float64, bool)
}

type noVelocities struct{}

func (noVelocities) Velocity(int) (float64, bool) { return 0, false }

type PairConfig struct {
	// Maximum |tA - tB| of a pulse pair, in ps. The bound is exclusive.
	CoincidenceWindow float64
	// Reject pairs unless both pulses have leading edges on all levels
	RequireAllThresholds bool
	NumberOfThresholds   int
	// Scintillator of the reference detector, read out on side B only.
	// Negative disables reference hits.
	ReferenceScinID       int
	SaveControlHistograms bool
}

type ScinPulses struct {
	Scin  int
	SideA []Pulse
	SideB []Pulse
}

func SortByTime(pulses []Pulse) {
	sort.SliceStable(pulses, func(i, j int) bool {
		return pulses[i].Time < pulses[j].Time
	})
}

// GroupByScintillator splits pulses by scintillator and side. Scintillators
// are returned in the order their first pulse appears.
func GroupByScintillator(pulses []Pulse) []ScinPulses {
	groups := make([]ScinPulses, 0)
	index := make(map[int]int)
	for _, pulse := range pulses {
		i, ok := index[pulse.Scin]
		if !ok {
			i = len(groups)
			index[pulse.Scin] = i
			groups = append(groups, ScinPulses{Scin: pulse.Scin})
		}
		if pulse.Side == SideA {
			groups[i].SideA = append(groups[i].SideA, pulse)
		} else {
			groups[i].SideB = append(groups[i].SideB, pulse)
		}
	}
	return groups
}

// PairHits matches pulses of the two sides of one scintillator. Both sides
// are sorted by time on a copy first, the early break of the inner loop
// depends on it.
//
// Pairing is not exclusive: a pulse close to several pulses of the other
// side takes part in several hits.
func PairHits(sideA []Pulse, sideB []Pulse, cfg PairConfig, velocity VelocityLookup) []Hit {
	hits := make([]Hit, 0)
	if len(sideA) == 0 || len(sideB) == 0 {
		return hits
	}
	if velocity == nil {
		velocity = noVelocities{}
	}

	a := make([]Pulse, len(sideA))
	copy(a, sideA)
	b := make([]Pulse, len(sideB))
	copy(b, sideB)
	SortByTime(a)
	SortByTime(b)

	for i := range a {
		for j := range b {
			if b[j].Time-a[i].Time > cfg.CoincidenceWindow {
				break
			}
			if math.Abs(a[i].Time-b[j].Time) >= cfg.CoincidenceWindow {
				continue
			}
			if cfg.RequireAllThresholds &&
				(!a[i].HasAllLevels(cfg.NumberOfThresholds) || !b[j].HasAllLevels(cfg.NumberOfThresholds)) {
				continue
			}
			hits = append(hits, createHit(&a[i], &b[j], velocity))
		}
	}
	return hits
}

func createHit(signalA *Pulse, signalB *Pulse, velocity VelocityLookup) Hit {
	hit := Hit{
		A:        signalA,
		B:        signalB,
		Scin:     signalA.Scin,
		Slot:     signalA.Slot,
		Time:     (signalA.Time + signalB.Time) / 2.0,
		TimeDiff: signalB.Time - signalA.Time,
		Energy:   signalA.TOT + signalB.TOT,
		Position: Position{X: signalA.ScinX, Y: signalA.ScinY, Z: InvalidPosition},
	}
	if v, ok := velocity.Velocity(hit.Scin); ok {
		// velocity is in cm/ns, time difference in ps
		hit.Position.Z = v * hit.TimeDiff / 2000.0
		hit.PositionValid = true
	}
	return hit
}

// Reference detector signals come from side B only and have no partner.
func createReferenceHit(signalB *Pulse) Hit {
	return Hit{
		B:        signalB,
		Scin:     signalB.Scin,
		Slot:     signalB.Slot,
		Time:     signalB.Time,
		TimeDiff: 0.0,
		Energy:   signalB.TOT,
		Position: Position{X: signalB.ScinX, Y: signalB.ScinY, Z: InvalidPosition},
	}
}

// FindHits groups the pulses of a time window by scintillator and pairs
// each group. stats may be nil.
func FindHits(pulses []Pulse, cfg PairConfig, velocity VelocityLookup, stats Statistics) []Hit {
	if !cfg.SaveControlHistograms {
		stats = nil
	}
	hits := make([]Hit, 0)
	for _, group := range GroupByScintillator(pulses) {
		if cfg.ReferenceScinID >= 0 && group.Scin == cfg.ReferenceScinID &&
			len(group.SideA) == 0 && len(group.SideB) > 0 {
			for i := range group.SideB {
				hits = append(hits, createReferenceHit(&group.SideB[i]))
			}
			continue
		}

		scinHits := PairHits(group.SideA, group.SideB, cfg, velocity)
		if stats != nil {
			for _, hit := range scinHits {
				record(stats, "time_diff_per_scin", hit.TimeDiff, float64(hit.Scin))
				if hit.PositionValid {
					record(stats, "hit_pos_per_scin", hit.Position.Z, float64(hit.Scin))
				}
			}
		}
		hits = append(hits, scinHits...)
	}
	if stats != nil {
		record(stats, "hits_per_window", float64(len(hits)))
	}
	return hits
}
