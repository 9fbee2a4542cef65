// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package breakpoint

import (
	"fmt"
	"sort"

	"github.com/grailbio/breakpointer/stats"
)

const (
	// minErrorRate is the floor of the per-base error rate of a region.
	minErrorRate = 0.01
	// minCoverage is the number of reads a region needs to be reported.
	minCoverage = 5
	// seedLen is the length of a seed sequence.
	seedLen = 25
	// noSeed is the seed of a region without a qualifying candidate read.
	noSeed = "RME"
)

// Annotation is the screening result of a region.
type Annotation struct {
	*Region
	// Confidence sums, over the qualifying mismatch positions, the
	// probability of the observed mismatch count under the region's error
	// rate.
	Confidence float64
	// Qualifying is the number of mismatch positions not forbidden.
	Qualifying int
	// HighConfidence is the number of qualifying positions with at least two
	// mismatches.
	HighConfidence int
	// MismatchRate is MismatchCount per skewed read.
	MismatchRate float64
	// Seed is a sequence, or a read tag, likely to span the breakpoint.
	Seed string
}

// pass reports whether the region is reported.
func (a Annotation) pass() bool {
	return a.Qualifying > 1 && a.Coverage >= minCoverage
}

// scoreRegion computes the annotation of a retired region.
func scoreRegion(g *Region) Annotation {
	a := Annotation{Region: g}
	totalEndCoverage := 0
	for _, n := range g.EndCoverage {
		totalEndCoverage += n
	}
	errRate := minErrorRate
	if totalEndCoverage > 0 {
		if r := float64(g.MismatchCount) / float64(totalEndCoverage); r > errRate {
			errRate = r
		}
	}
	positions := make([]int, 0, len(g.MismatchFreq))
	for pos := range g.MismatchFreq {
		positions = append(positions, pos)
	}
	sort.Ints(positions)
	for _, pos := range positions {
		if _, ok := g.Forbidden[pos]; ok {
			continue
		}
		freq := g.MismatchFreq[pos]
		a.Qualifying++
		if freq >= 2 {
			a.HighConfidence++
		}
		a.Confidence += stats.BinomialUpperTail(freq, g.EndCoverage[pos], errRate)
	}
	a.MismatchRate = float64(g.MismatchCount) / stats.Nudge(float64(g.Coverage)*g.Ratio1)
	a.Seed = selectSeed(g)
	return a
}

// seedRead is a candidate read with its qualifying mismatches.
type seedRead struct {
	*NormalizedRead
	mismatches []int
}

// nearStart reports whether pos is closer to the start of the read than to
// its end.
func (r seedRead) nearStart(pos int) bool {
	return pos-r.Start < r.End-pos
}

// nearEnd reports whether pos is closer to the end of the read than to its
// start.
func (r seedRead) nearEnd(pos int) bool {
	return pos-r.Start > r.End-pos
}

func (r seedRead) leading() string {
	if r.Seq == "" {
		return fmt.Sprintf("%s[%cp]", r.Name, r.Strand)
	}
	if len(r.Seq) <= seedLen {
		return r.Seq
	}
	return r.Seq[:seedLen]
}

func (r seedRead) trailing() string {
	if r.Seq == "" {
		return fmt.Sprintf("%s[%cs]", r.Name, r.Strand)
	}
	if len(r.Seq) <= seedLen {
		return r.Seq
	}
	return r.Seq[len(r.Seq)-seedLen:]
}

// selectSeed picks the candidate read with the most qualifying mismatches and
// returns the end of it most likely to contain the breakpoint.
func selectSeed(g *Region) string {
	var (
		top      []seedRead
		maxCount int
	)
	for _, c := range g.Candidates {
		r := seedRead{NormalizedRead: c.Read}
		for _, pos := range c.Mismatches {
			if _, ok := g.Forbidden[pos]; !ok {
				r.mismatches = append(r.mismatches, pos)
			}
		}
		switch n := len(r.mismatches); {
		case n == 0 || n < maxCount:
		case n > maxCount:
			maxCount = n
			top = append(top[:0], r)
		default:
			top = append(top, r)
		}
	}
	if maxCount == 0 {
		return noSeed
	}
	if len(top) == 1 {
		r := top[0]
		if r.nearStart(r.mismatches[0]) {
			return r.leading()
		}
		return r.trailing()
	}

	first, last := top[0], top[len(top)-1]
	if first.Start >= g.Start && first.End > g.End {
		return first.leading()
	}
	if last.Start < g.Start && last.End <= g.End {
		return last.trailing()
	}
	// Look for the read where mismatches move from the read ends facing the
	// region end to the ends facing the region start.
	prev := first
	for _, r := range top {
		m0, m1 := r.mismatches[0], r.mismatches[len(r.mismatches)-1]
		if r.End <= g.End && r.nearEnd(m0) {
			prev = r
		}
		if r.Start >= g.Start && r.nearStart(m1) {
			if g.Ratio2 > 0.5 {
				return r.leading()
			}
			return prev.trailing()
		}
	}
	return first.trailing()
}
