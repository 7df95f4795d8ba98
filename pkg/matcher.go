package hitfinder

import (
	"fmt"
	"math"
)

type MatchConfig struct {
	NumberOfThresholds int
	// Maximum distance between the level-1 anchor and a leading edge on a
	// higher level, in ps
	EdgeMaxTime float64
	// Maximum distance between a leading edge and its trailing edge, in ps
	LeadTrailMaxTime  float64
	TrailingReference TrailingReference
	TrailingMatch     TrailingMatch
}

type MatchResult struct {
	Pulses  []Pulse
	Orphans []Edge
}

// FindTrailingEdge returns the index of the trailing edge matching a leading
// edge at time ref, or -1. Only edges strictly after ref and closer than
// maxTime qualify; among them the lowest index wins, not the closest.
func FindTrailingEdge(ref float64, trailing []Edge, maxTime float64) int {
	return findTrailing(ref, trailing, nil, maxTime, MatchForward)
}

// FindEdgeOnNextThreshold returns the index of the first edge, in storage
// order, closer than maxTime to ref, or -1.
func FindEdgeOnNextThreshold(ref float64, leading []Edge, maxTime float64) int {
	return findOnNextThreshold(ref, leading, nil, maxTime)
}

func findTrailing(ref float64, edges []Edge, used []bool, maxTime float64, mode TrailingMatch) int {
	for i, edge := range edges {
		if used != nil && used[i] {
			continue
		}
		diff := edge.Time - ref
		if mode == MatchSymmetric {
			if math.Abs(diff) < maxTime {
				return i
			}
			continue
		}
		if diff > 0 && diff < maxTime {
			return i
		}
	}
	return -1
}

func findOnNextThreshold(ref float64, edges []Edge, used []bool, maxTime float64) int {
	for i, edge := range edges {
		if used != nil && used[i] {
			continue
		}
		if math.Abs(ref-edge.Time) < maxTime {
			return i
		}
	}
	return -1
}

func validateMatchConfig(cfg MatchConfig) error {
	if cfg.NumberOfThresholds <= 0 {
		return &ErrConfig{
			Parameter: "number_of_thresholds",
			Reason:    fmt.Sprintf("must be positive, got %d", cfg.NumberOfThresholds),
		}
	}
	switch cfg.TrailingReference {
	case ReferenceThreshold, ReferenceAnchor, "":
	default:
		return &ErrConfig{Parameter: "trailing_reference", Reason: fmt.Sprintf("unknown value %q", cfg.TrailingReference)}
	}
	switch cfg.TrailingMatch {
	case MatchForward, MatchSymmetric, "":
	default:
		return &ErrConfig{Parameter: "trailing_match", Reason: fmt.Sprintf("unknown value %q", cfg.TrailingMatch)}
	}
	return nil
}

// MatchUnit reconstructs the pulses of a single detector unit. Every
// level-1 leading edge anchors exactly one pulse. Edges that end up in no
// pulse are returned as orphans.
//
// On a configuration error no pulse is built and all edges of the unit are
// reported as orphans.
func MatchUnit(unit *UnitEdges, cfg MatchConfig) (MatchResult, error) {
	var result MatchResult
	if unit == nil {
		return result, nil
	}
	if err := validateMatchConfig(cfg); err != nil {
		result.Orphans = allEdges(unit)
		return result, err
	}
	if len(unit.Invalid) > 0 || unit.Levels() > cfg.NumberOfThresholds {
		result.Orphans = allEdges(unit)
		return result, &ErrConfig{
			Parameter: "number_of_thresholds",
			Reason: fmt.Sprintf("PM %d has edges on %d levels (%d with invalid level), configured %d",
				unit.PM, unit.Levels(), len(unit.Invalid), cfg.NumberOfThresholds),
		}
	}

	n := cfg.NumberOfThresholds
	leading := make([][]Edge, n)
	trailing := make([][]Edge, n)
	usedLead := make([][]bool, n)
	usedTrail := make([][]bool, n)
	for k := 0; k < n; k++ {
		if k < unit.Levels() {
			leading[k] = unit.Leading[k]
			trailing[k] = unit.Trailing[k]
		}
		usedLead[k] = make([]bool, len(leading[k]))
		usedTrail[k] = make([]bool, len(trailing[k]))
	}

	// The anchors are consumed strictly in arrival order, so the number of
	// unconsumed level-1 leading edges decreases on every iteration.
	for i := range leading[0] {
		anchor := leading[0][i]
		usedLead[0][i] = true

		pulse := Pulse{
			PM:    unit.PM,
			Scin:  unit.Info.ScinID,
			Side:  unit.Info.Side,
			Slot:  unit.Info.Slot,
			ScinX: unit.Info.ScinX,
			ScinY: unit.Info.ScinY,
			Time:  anchor.Time,
			Flag:  anchor.Flag,
		}

		point := ThresholdPoint{Level: 1, Leading: anchor}
		if t := findTrailing(anchor.Time, trailing[0], usedTrail[0], cfg.LeadTrailMaxTime, cfg.TrailingMatch); t != -1 {
			usedTrail[0][t] = true
			trail := trailing[0][t]
			point.Trailing = &trail
		}
		pulse.Points = append(pulse.Points, point)

		for k := 1; k < n; k++ {
			j := findOnNextThreshold(anchor.Time, leading[k], usedLead[k], cfg.EdgeMaxTime)
			if j == -1 {
				continue
			}
			usedLead[k][j] = true
			lead := leading[k][j]
			point := ThresholdPoint{Level: k + 1, Leading: lead}

			ref := lead.Time
			if cfg.TrailingReference == ReferenceAnchor {
				ref = anchor.Time
			}
			if t := findTrailing(ref, trailing[k], usedTrail[k], cfg.LeadTrailMaxTime, cfg.TrailingMatch); t != -1 {
				usedTrail[k][t] = true
				trail := trailing[k][t]
				point.Trailing = &trail
			}
			pulse.Points = append(pulse.Points, point)
		}

		pulse.Flag = pulseFlag(pulse)
		result.Pulses = append(result.Pulses, pulse)
	}

	for k := 0; k < n; k++ {
		for j, edge := range leading[k] {
			if !usedLead[k][j] {
				result.Orphans = append(result.Orphans, edge)
			}
		}
		for j, edge := range trailing[k] {
			if !usedTrail[k][j] {
				result.Orphans = append(result.Orphans, edge)
			}
		}
	}
	return result, nil
}

// A pulse is corrupted as soon as one of its edges is. Otherwise it inherits
// the flag of its anchor.
func pulseFlag(pulse Pulse) RecoFlag {
	for _, point := range pulse.Points {
		if point.Leading.Flag == FlagCorrupted {
			return FlagCorrupted
		}
		if point.Trailing != nil && point.Trailing.Flag == FlagCorrupted {
			return FlagCorrupted
		}
	}
	return pulse.Points[0].Leading.Flag
}

func allEdges(unit *UnitEdges) []Edge {
	edges := make([]Edge, 0, unit.Count())
	for k := range unit.Leading {
		edges = append(edges, unit.Leading[k]...)
		edges = append(edges, unit.Trailing[k]...)
	}
	return append(edges, unit.Invalid...)
}
