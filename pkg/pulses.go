package hitfinder

import (
	"fmt"
)

// Calibration provides the affine TOT correction of a PM threshold level.
// Missing entries must return the identity (1, 0).
type Calibration interface {
	TOTFactors(pm int, level int) (a float64, b float64)
}

type NeutralCalibration struct{}

func (NeutralCalibration) TOTFactors(int, int) (float64, float64) { return 1, 0 }

type BuildConfig struct {
	MatchConfig
	SaveControlHistograms bool
}

// BuildPulses runs the edge matching on every unit, in the order the units
// were classified, and derives the TOT of each pulse. Per-unit errors are
// logged and only drop that unit. stats may be nil.
func BuildPulses(classified *ClassifiedEdges, cfg BuildConfig, calib Calibration, stats Statistics) []Pulse {
	pulses, _ := buildPulses(classified, cfg, calib, stats)
	return pulses
}

func buildPulses(classified *ClassifiedEdges, cfg BuildConfig, calib Calibration, stats Statistics) ([]Pulse, []Edge) {
	if classified == nil {
		return nil, nil
	}
	if calib == nil {
		calib = NeutralCalibration{}
	}
	if !cfg.SaveControlHistograms {
		stats = nil
	}

	pulses := make([]Pulse, 0)
	orphans := make([]Edge, 0)
	for _, unit := range classified.Units {
		result, err := MatchUnit(unit, cfg.MatchConfig)
		if err != nil {
			logger.Error(fmt.Errorf("skipping PM %d: %w", unit.PM, err).Error())
		}
		for i := range result.Pulses {
			pulse := &result.Pulses[i]
			pulse.TOT = CalibratedTOT(pulse, calib)
			if stats != nil {
				fillPulseHistograms(stats, pulse, calib)
			}
		}
		if stats != nil {
			fillOrphanHistograms(stats, result.Orphans)
		}
		pulses = append(pulses, result.Pulses...)
		orphans = append(orphans, result.Orphans...)
	}
	return pulses, orphans
}

// CalibratedTOT sums a*(trail-lead)+b over all levels with both edges.
func CalibratedTOT(pulse *Pulse, calib Calibration) float64 {
	if calib == nil {
		calib = NeutralCalibration{}
	}
	tot := 0.0
	for _, point := range pulse.Points {
		raw, ok := point.TOT()
		if !ok {
			continue
		}
		a, b := calib.TOTFactors(pulse.PM, point.Level)
		tot += a*raw + b
	}
	return tot
}

func fillPulseHistograms(stats Statistics, pulse *Pulse, calib Calibration) {
	anchor := pulse.Points[0].Leading
	for _, point := range pulse.Points {
		if point.Level > 1 {
			record(stats, fmt.Sprintf("lead_thr1_thr%d_diff", point.Level), point.Leading.Time-anchor.Time)
		}
		if raw, ok := point.TOT(); ok {
			record(stats, fmt.Sprintf("lead_trail_thr%d_diff", point.Level), raw)
			a, b := calib.TOTFactors(pulse.PM, point.Level)
			record(stats, fmt.Sprintf("tot_thr%d", point.Level), a*raw+b)
		}
	}
	record(stats, "pulse_tot", pulse.TOT)
	switch pulse.Flag {
	case FlagGood:
		record(stats, "good_v_bad_raw_sigs", 1)
	case FlagCorrupted:
		record(stats, "good_v_bad_raw_sigs", 2)
	default:
		record(stats, "good_v_bad_raw_sigs", 3)
	}
}

// Unused leading edges go to bin 2*THR-1, trailing edges to bin 2*THR.
func fillOrphanHistograms(stats Statistics, orphans []Edge) {
	for _, edge := range orphans {
		bin := float64(2 * edge.Threshold)
		if edge.Type == Leading {
			bin--
		}
		record(stats, "unused_sigch_all", bin)
		switch edge.Flag {
		case FlagGood:
			record(stats, "unused_sigch_good", bin)
		case FlagCorrupted:
			record(stats, "unused_sigch_corr", bin)
		}
	}
}
