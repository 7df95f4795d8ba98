package hitfinder

import "fmt"

type ChannelResolver interface {
	Resolve(channel int) (ChannelInfo, bool)
}

type ClassifyOptions struct {
	// Keep edges flagged as corrupted
	UseCorrupted bool
	// Edges of this PM are always treated as good. Negative disables it.
	ReferencePMID int
	// Optional per-PM permutation of threshold numbers
	Orderings ThresholdOrderings
}

// UnitEdges holds the edges of one detector unit split by level. Index 0 of
// Leading and Trailing is threshold level 1.
type UnitEdges struct {
	PM       int
	Info     ChannelInfo
	Leading  [][]Edge
	Trailing [][]Edge
	// Edges with a threshold number below 1
	Invalid []Edge
}

func (u *UnitEdges) Levels() int {
	return len(u.Leading)
}

func (u *UnitEdges) Count() int {
	n := len(u.Invalid)
	for i := range u.Leading {
		n += len(u.Leading[i]) + len(u.Trailing[i])
	}
	return n
}

func (u *UnitEdges) add(edge Edge) {
	if edge.Threshold <= 0 {
		u.Invalid = append(u.Invalid, edge)
		return
	}
	for len(u.Leading) < edge.Threshold {
		u.Leading = append(u.Leading, nil)
		u.Trailing = append(u.Trailing, nil)
	}
	level := edge.Threshold - 1
	switch edge.Type {
	case Leading:
		u.Leading[level] = append(u.Leading[level], edge)
	case Trailing:
		u.Trailing[level] = append(u.Trailing[level], edge)
	}
}

// ClassifiedEdges keeps units in the order their first edge was seen.
type ClassifiedEdges struct {
	Units   []*UnitEdges
	Dropped int
	byPM    map[int]int
}

func newClassifiedEdges() *ClassifiedEdges {
	return &ClassifiedEdges{byPM: make(map[int]int)}
}

func (c *ClassifiedEdges) Unit(pm int) (*UnitEdges, bool) {
	i, ok := c.byPM[pm]
	if !ok {
		return nil, false
	}
	return c.Units[i], true
}

func (c *ClassifiedEdges) unit(pm int, info ChannelInfo) *UnitEdges {
	if i, ok := c.byPM[pm]; ok {
		return c.Units[i]
	}
	u := &UnitEdges{PM: pm, Info: info}
	c.byPM[pm] = len(c.Units)
	c.Units = append(c.Units, u)
	return u
}

// Classify distributes edges into per-PM, per-level leading and trailing
// buckets, keeping arrival order. With a nil resolver the PM already set on
// each edge is used.
func Classify(edges []Edge, resolver ChannelResolver, opts ClassifyOptions) *ClassifiedEdges {
	classified := newClassifiedEdges()
	warned := make(map[int]bool)

	for _, edge := range edges {
		var info ChannelInfo
		if resolver != nil {
			var ok bool
			info, ok = resolver.Resolve(edge.Channel)
			if !ok {
				classified.Dropped++
				if !warned[edge.Channel] {
					warned[edge.Channel] = true
					logger.Warn((&ErrUnknownChannel{Channel: edge.Channel}).Error()+", dropping its edges", "classifier")
				}
				continue
			}
			edge.PM = info.PMID
			if edge.Threshold == 0 {
				edge.Threshold = info.Threshold
			}
		} else {
			if edge.PM == 0 {
				classified.Dropped++
				if !warned[edge.Channel] {
					warned[edge.Channel] = true
					logger.Warn(fmt.Sprintf("edge on channel %d has no detector unit, dropping", edge.Channel), "classifier")
				}
				continue
			}
			info = ChannelInfo{PMID: edge.PM}
		}

		if edge.PM == opts.ReferencePMID && opts.ReferencePMID >= 0 {
			edge.Flag = FlagGood
		}
		if !opts.UseCorrupted && edge.Flag == FlagCorrupted {
			classified.Dropped++
			continue
		}
		if opts.Orderings != nil {
			edge.Threshold = opts.Orderings.Level(edge.PM, edge.Threshold)
		}
		classified.unit(edge.PM, info).add(edge)
	}
	return classified
}
