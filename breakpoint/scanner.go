// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package breakpoint

import (
	"strconv"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// WindowScanner sweeps the reads of a coordinate-sorted stream and scores
// every window anchored at a read start or end once the sweep has passed it.
type WindowScanner struct {
	model nullModel
	emit  func(ScoredWindow) error
	// windowLog is nil unless Opts.WindowLog is set.
	windowLog *tsv.Writer

	chr     string
	windows llrb.Tree
	// active holds the reads that may still overlap an unscored window.
	active []span

	nCreated, nEvicted, nEmitted int
}

// NewWindowScanner creates a scanner that passes each significant window to
// emit, in ascending anchor order per chromosome.
func NewWindowScanner(opts Opts, emit func(ScoredWindow) error) *WindowScanner {
	s := &WindowScanner{
		model: nullModel{windowSize: opts.windowSize(), readLen: opts.ReadLen},
		emit:  emit,
	}
	if opts.WindowLog != nil {
		s.windowLog = tsv.NewWriter(opts.WindowLog)
	}
	return s
}

// Add processes r, a read on chr. Reads must be sorted by start within a
// chromosome. A change of chromosome flushes the windows of the previous one.
func (s *WindowScanner) Add(chr string, r *NormalizedRead) error {
	if chr != s.chr {
		if err := s.Flush(); err != nil {
			return err
		}
		s.chr = chr
	}
	s.ensureWindow(r.Start)
	s.ensureWindow(r.End)
	for s.windows.Len() > 0 {
		w := s.windows.Min().(*Window)
		if w.End >= r.Start {
			break
		}
		s.windows.DeleteMin()
		if err := s.evict(w); err != nil {
			return err
		}
	}

	cur := span{start: r.Start, end: r.End, length: r.Length}
	kept := s.active[:0]
	for _, a := range s.active {
		if a.end >= r.Start {
			kept = append(kept, a)
		}
	}
	s.active = append(kept, cur)

	s.windows.Do(func(c llrb.Comparable) bool {
		w := c.(*Window)
		if w.Anchor > r.End {
			return true
		}
		if w.fresh {
			w.fresh = false
			for _, a := range s.active {
				if w.overlaps(a) {
					w.add(a)
				}
			}
		} else if w.overlaps(cur) {
			w.add(cur)
		}
		return false
	})
	return nil
}

func (s *WindowScanner) ensureWindow(anchor int) {
	probe := Window{Anchor: anchor}
	if s.windows.Get(&probe) != nil {
		return
	}
	s.windows.Insert(newWindow(anchor, s.model.windowSize))
	s.nCreated++
}

// Flush scores all remaining windows in ascending anchor order and forgets
// the current chromosome.
func (s *WindowScanner) Flush() error {
	for s.windows.Len() > 0 {
		w := s.windows.Min().(*Window)
		s.windows.DeleteMin()
		if err := s.evict(w); err != nil {
			return err
		}
	}
	s.active = s.active[:0]
	if s.chr != "" {
		log.Debug.Printf("%s flushed: %d windows scored so far, %d significant", s.chr, s.nEvicted, s.nEmitted)
	}
	s.chr = ""
	if s.windowLog != nil {
		return s.windowLog.Flush()
	}
	return nil
}

func (s *WindowScanner) evict(w *Window) error {
	s.nEvicted++
	sw, ok := s.model.score(w)
	if !ok {
		return nil
	}
	s.nEmitted++
	sw.Chr = s.chr
	if s.windowLog != nil {
		if err := writeWindow(s.windowLog, sw); err != nil {
			return err
		}
	}
	return s.emit(sw)
}

func writeWindow(w *tsv.Writer, sw ScoredWindow) error {
	w.WriteString(sw.Chr)
	w.WriteUint32(uint32(sw.Anchor))
	w.WriteUint32(uint32(sw.End))
	w.WriteUint32(uint32(sw.Depth))
	w.WriteUint32(uint32(sw.StartDepth))
	w.WriteUint32(uint32(sw.EndDepth))
	w.WriteString(strconv.FormatFloat(sw.Ratio1, 'f', 3, 64))
	w.WriteString(strconv.FormatFloat(sw.Ratio2, 'f', 3, 64))
	w.WriteString(strconv.FormatFloat(sw.Score, 'f', 5, 64))
	return w.EndLine()
}
