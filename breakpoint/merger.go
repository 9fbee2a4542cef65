// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package breakpoint

// mergeAccumulator sums a run of overlapping significant windows. The zero
// value is the empty accumulator.
type mergeAccumulator struct {
	open       bool
	chr        string
	start, end int
	n          int
	depth      float64
	ratio1     float64
	ratio2     float64
	score      float64
}

func openAccumulator(w ScoredWindow) mergeAccumulator {
	return mergeAccumulator{}.fold(w)
}

// overlaps reports whether w extends the run of a.
func (a mergeAccumulator) overlaps(w ScoredWindow) bool {
	return a.open && w.Chr == a.chr && w.Anchor <= a.end
}

func (a mergeAccumulator) fold(w ScoredWindow) mergeAccumulator {
	if !a.open {
		a = mergeAccumulator{open: true, chr: w.Chr, start: w.Anchor, end: w.End}
	}
	if w.End > a.end {
		a.end = w.End
	}
	a.n++
	a.depth += float64(w.Depth)
	a.ratio1 += w.Ratio1
	a.ratio2 += w.Ratio2
	a.score += w.Score
	return a
}

// region returns the averaged region of a non-empty accumulator.
func (a mergeAccumulator) region() *Region {
	n := float64(a.n)
	return &Region{
		Chr:    a.chr,
		Start:  a.start,
		End:    a.end,
		Size:   a.end - a.start + 1,
		Depth:  a.depth / n,
		Ratio1: a.ratio1 / n,
		Ratio2: a.ratio2 / n,
		Score:  a.score / n,
	}
}

// RegionMerger folds the significant windows of a scan into regions, one per
// maximal run of overlapping windows.
type RegionMerger struct {
	acc  mergeAccumulator
	emit func(*Region) error
}

// NewRegionMerger creates a merger that passes each region to emit.
func NewRegionMerger(emit func(*Region) error) *RegionMerger {
	return &RegionMerger{emit: emit}
}

// Add folds w into the open region, or emits the open region and starts a
// new one at w. Windows must arrive in ascending anchor order per chromosome.
func (m *RegionMerger) Add(w ScoredWindow) error {
	if m.acc.overlaps(w) {
		m.acc = m.acc.fold(w)
		return nil
	}
	if err := m.Flush(); err != nil {
		return err
	}
	m.acc = openAccumulator(w)
	return nil
}

// Flush emits the open region, if any.
func (m *RegionMerger) Flush() error {
	if !m.acc.open {
		return nil
	}
	r := m.acc.region()
	m.acc = mergeAccumulator{}
	return m.emit(r)
}
