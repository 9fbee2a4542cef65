// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package breakpoint

import (
	"io"

	"github.com/grailbio/base/log"
)

// ExhaustionPoint tells where the tracker found the region source exhausted.
type ExhaustionPoint int

const (
	// NotExhausted means the source still has regions.
	NotExhausted ExhaustionPoint = iota
	// ExhaustedAtUnknownRef means the source ended while flushing the regions
	// of a reference absent from the alignments.
	ExhaustedAtUnknownRef
	// ExhaustedAtRetire means the source ended when refilling an empty queue.
	ExhaustedAtRetire
	// ExhaustedAtLookahead means the source ended when queueing a further
	// region overlapping a read.
	ExhaustedAtLookahead
	// ExhaustedAtChromEnd means the source ended while flushing the regions
	// left at the end of a chromosome.
	ExhaustedAtChromEnd
)

var exhaustionPointNames = [...]string{"not exhausted", "unknown reference", "retire", "lookahead", "chromosome end"}

func (e ExhaustionPoint) String() string {
	return exhaustionPointNames[e]
}

// RegionTracker attributes the reads of one chromosome at a time to the
// regions they overlap. Regions are pulled from the source as reads reach
// them, and retired to a callback once reads have passed their end.
type RegionTracker struct {
	src    RegionSource
	retire func(*Region) error

	chr string
	// queue holds the open regions of chr in start order.
	queue []*Region
	// next is the first region not yet queued; nil once the source is
	// exhausted.
	next    *Region
	started bool
	// exhausted records where the end of the source was found.
	exhausted ExhaustionPoint

	nRetired int
}

// NewRegionTracker creates a tracker over the regions of src. Each region is
// passed to retire exactly once.
func NewRegionTracker(src RegionSource, retire func(*Region) error) *RegionTracker {
	return &RegionTracker{src: src, retire: retire}
}

// advance reads the next region of the source into t.next.
func (t *RegionTracker) advance(at ExhaustionPoint) error {
	t.started = true
	g, err := t.src.Next()
	if err == io.EOF {
		t.next = nil
		if t.exhausted == NotExhausted {
			t.exhausted = at
			log.Printf("region file exhausted at %v, %d regions retired", at, t.nRetired)
		}
		return nil
	}
	if err != nil {
		return err
	}
	g.MismatchFreq = map[int]int{}
	g.EndCoverage = map[int]int{}
	g.Forbidden = map[int]struct{}{}
	t.next = g
	return nil
}

// Peek returns the next region to be processed, or nil once all regions are
// retired.
func (t *RegionTracker) Peek() (*Region, error) {
	if len(t.queue) > 0 {
		return t.queue[0], nil
	}
	if !t.started {
		if err := t.advance(ExhaustedAtRetire); err != nil {
			return nil, err
		}
	}
	return t.next, nil
}

// Exhausted returns where the source was found exhausted.
func (t *RegionTracker) Exhausted() ExhaustionPoint {
	return t.exhausted
}

// StartChrom starts attributing reads of chr.
func (t *RegionTracker) StartChrom(chr string) {
	t.chr = chr
}

// Add attributes r, a read on the current chromosome, to the regions it
// overlaps. Reads must be sorted by start. done is set once the source is
// exhausted and every region retired, after which the remaining reads are of
// no use.
func (t *RegionTracker) Add(r *NormalizedRead) (done bool, err error) {
	if !t.started {
		if err = t.advance(ExhaustedAtRetire); err != nil {
			return false, err
		}
	}
	for t.next != nil && t.next.Chr == t.chr && t.next.Start <= r.End {
		at := ExhaustedAtLookahead
		if len(t.queue) == 0 {
			at = ExhaustedAtRetire
		}
		t.queue = append(t.queue, t.next)
		if err = t.advance(at); err != nil {
			return false, err
		}
	}
	n := 0
	for n < len(t.queue) && t.queue[n].End < r.Start {
		if err = t.retireRegion(t.queue[n]); err != nil {
			return false, err
		}
		n++
	}
	t.queue = t.queue[n:]
	for _, g := range t.queue {
		if g.Start > r.End {
			break
		}
		attribute(g, r)
	}
	return t.next == nil && len(t.queue) == 0, nil
}

// FinishChrom retires the queued regions and the regions of chr still in the
// source. at is the exhaustion point reported if the source ends meanwhile.
func (t *RegionTracker) FinishChrom(chr string, at ExhaustionPoint) error {
	for _, g := range t.queue {
		if err := t.retireRegion(g); err != nil {
			return err
		}
	}
	t.queue = t.queue[:0]
	if !t.started {
		if err := t.advance(at); err != nil {
			return err
		}
	}
	for t.next != nil && t.next.Chr == chr {
		if err := t.retireRegion(t.next); err != nil {
			return err
		}
		if err := t.advance(at); err != nil {
			return err
		}
	}
	t.chr = ""
	return nil
}

func (t *RegionTracker) retireRegion(g *Region) error {
	t.nRetired++
	return t.retire(g)
}

// attribute adds the evidence of r to g, which it overlaps.
func attribute(g *Region, r *NormalizedRead) {
	g.Coverage++

	// End zones are those of the clipped read, as in inEndZone.
	lo, hi := r.zoneStart(), r.zoneEnd()
	head := lo + r.endZone
	for pos := max(g.Start, lo); pos <= min(g.End, head, hi); pos++ {
		g.EndCoverage[pos]++
	}
	for pos := max(g.Start, hi-r.endZone, head+1); pos <= min(g.End, hi); pos++ {
		g.EndCoverage[pos]++
	}

	var inside []int
	for _, pos := range r.Mismatches {
		if pos >= g.Start && pos <= g.End {
			g.MismatchCount++
			g.MismatchFreq[pos]++
			inside = append(inside, pos)
		}
	}
	for _, pos := range r.Forbidden {
		if pos >= g.Start && pos <= g.End {
			g.Forbidden[pos] = struct{}{}
		}
	}
	endInside := (r.Start >= g.Start && r.Start <= g.End) || (r.End >= g.Start && r.End <= g.End)
	if endInside && len(inside) > 0 {
		g.Candidates = append(g.Candidates, Candidate{Read: r, Mismatches: inside})
	}
}

func min(x int, ys ...int) int {
	for _, y := range ys {
		if y < x {
			x = y
		}
	}
	return x
}

func max(x int, ys ...int) int {
	for _, y := range ys {
		if y > x {
			x = y
		}
	}
	return x
}
