package hitfinder

import (
	"fmt"
)

type WindowResult struct {
	Index   uint64
	Pulses  []Pulse
	Hits    []Hit
	Orphans int
	Dropped int
}

// Processor runs the reconstruction chain on single time windows. It holds
// no state between windows; the lookups are only read.
type Processor struct {
	Config      Configuration
	Resolver    ChannelResolver
	Calibration Calibration
	Velocities  VelocityLookup
	Orderings   ThresholdOrderings
	Stats       Statistics
}

func (p *Processor) validate(kind WindowKind) error {
	if err := validateMatchConfig(p.Config.MatchConfig()); err != nil {
		return err
	}
	if p.Config.HitCoincidenceWindow <= 0 {
		return &ErrConfig{
			Parameter: "hit_coincidence_window",
			Reason:    fmt.Sprintf("must be positive, got %g", p.Config.HitCoincidenceWindow),
		}
	}
	if kind == EdgeWindow && p.Resolver == nil && !p.Config.NoDB {
		return &ErrConfig{Parameter: "resolver", Reason: "a channel resolver is required unless no_db is set"}
	}
	return nil
}

// ProcessWindow reconstructs pulses and hits from an edge window, or hits
// from a pulse window. Only structural configuration problems are returned
// as errors and they abort this window only.
func (p *Processor) ProcessWindow(window TimeWindow) (WindowResult, error) {
	result := WindowResult{Index: window.Index}
	if err := p.validate(window.Kind); err != nil {
		return result, err
	}
	stats := p.Stats
	if stats == nil {
		stats = NopStatistics{}
	}

	switch window.Kind {
	case EdgeWindow:
		opts := p.Config.ClassifyOptions()
		if p.Config.OrderThresholdsByValue {
			opts.Orderings = p.Orderings
		}
		var resolver ChannelResolver
		if !p.Config.NoDB {
			resolver = p.Resolver
		}
		classified := Classify(window.Edges, resolver, opts)
		pulses, orphans := buildPulses(classified, p.Config.BuildConfig(), p.Calibration, stats)
		result.Pulses = pulses
		result.Orphans = len(orphans)
		result.Dropped = classified.Dropped
	case PulseWindow:
		result.Pulses = window.Pulses
	case HitWindow:
		result.Hits = window.Hits
		return result, nil
	default:
		return result, &ErrConfig{Parameter: "window", Reason: fmt.Sprintf("unknown window kind %d", window.Kind)}
	}

	result.Hits = FindHits(result.Pulses, p.Config.PairConfig(), p.Velocities, stats)

	if p.Config.Verbosity > 1 {
		message := fmt.Sprintf("%s: %d pulses, %d hits, %d orphan edges, %d dropped edges",
			window, len(result.Pulses), len(result.Hits), result.Orphans, result.Dropped)
		logger.Info(message, "window")
	}
	return result, nil
}
