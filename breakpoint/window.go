// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package breakpoint

import (
	"math"
	"sort"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/breakpointer/stats"
)

// span is the extent of a read remembered by the scanner.
type span struct {
	start, end, length int
}

// bucket holds the counts of a window for reads of one length.
type bucket struct {
	depth, startDepth, endDepth int
}

// Window counts the reads overlapping [Anchor, End], and among them those
// that start and those that end inside it.
type Window struct {
	Anchor     int
	End        int
	Depth      int
	StartDepth int
	EndDepth   int
	// buckets splits the counts by read length.
	buckets map[int]*bucket
	// fresh is set until the window has been backfilled from the active
	// reads.
	fresh bool
}

func newWindow(anchor, size int) *Window {
	return &Window{Anchor: anchor, End: anchor + size - 1, buckets: map[int]*bucket{}, fresh: true}
}

// Compare implements llrb.Comparable.
func (w *Window) Compare(c llrb.Comparable) int {
	return w.Anchor - c.(*Window).Anchor
}

func (w *Window) overlaps(s span) bool {
	return s.end >= w.Anchor && s.start <= w.End
}

// add counts s, which must overlap w.
func (w *Window) add(s span) {
	b := w.buckets[s.length]
	if b == nil {
		b = &bucket{}
		w.buckets[s.length] = b
	}
	w.Depth++
	b.depth++
	if s.start >= w.Anchor {
		w.StartDepth++
		b.startDepth++
	}
	if s.end <= w.End {
		w.EndDepth++
		b.endDepth++
	}
}

// ScoredWindow is a window that passed the skew test.
type ScoredWindow struct {
	*Window
	Chr string
	// Ratio1 is the fraction of reads starting or ending in the window.
	Ratio1 float64
	// Ratio2 is the fraction of those that start in it.
	Ratio2 float64
	// Score is -log10 of the probability of the observed skew.
	Score float64
}

// nullModel gives the probability that a read starts or ends inside a window
// when reads are placed uniformly.
type nullModel struct {
	windowSize int
	// readLen is the configured read length, or 0 if lengths vary.
	readLen int
}

func (m nullModel) prob(readLen int) float64 {
	ws := float64(m.windowSize)
	return 2 * ws / (ws + float64(readLen))
}

// threshold is the fraction of starting or ending reads a window must exceed
// to be significant. There is no single null rate when lengths vary.
func (m nullModel) threshold() float64 {
	if m.readLen == 0 {
		return 0
	}
	return m.prob(m.readLen)
}

// score tests w against m. ok is false if w is not significant.
//
// Each length bucket with at least two reads contributes its binomial tail
// weighted by its share of the depth. With a configured read length there is
// a single bucket, and a zero tail is nudged rather than ignored.
func (m nullModel) score(w *Window) (sw ScoredWindow, ok bool) {
	if w.Depth <= 1 {
		return sw, false
	}
	skew := w.StartDepth + w.EndDepth
	sw = ScoredWindow{Window: w, Ratio1: float64(skew) / float64(w.Depth)}
	if skew > 0 {
		sw.Ratio2 = float64(w.StartDepth) / float64(skew)
	}
	if sw.Ratio1 <= m.threshold() {
		return sw, false
	}
	lengths := make([]int, 0, len(w.buckets))
	for l := range w.buckets {
		lengths = append(lengths, l)
	}
	sort.Ints(lengths)
	sum := 0.0
	for _, l := range lengths {
		b := w.buckets[l]
		if b.depth < 2 {
			continue
		}
		p := stats.BinomialUpperTail(b.startDepth+b.endDepth, b.depth, m.prob(l))
		sum += float64(b.depth) / float64(w.Depth) * p
	}
	switch {
	case m.readLen != 0:
		sw.Score = stats.NegLog10(sum)
	case sum > 0:
		sw.Score = -math.Log10(sum)
	}
	return sw, sw.Score > 1
}
