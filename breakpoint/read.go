// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package breakpoint

import (
	"fmt"

	"github.com/grailbio/base/errors"
	gbam "github.com/grailbio/breakpointer/encoding/bam"
	"github.com/grailbio/hts/sam"
)

const (
	// minClipQual is the lowest quality of a base that is not clipped.
	minClipQual = 5
	// clipRunLength is the number of consecutive good bases that ends
	// clipping.
	clipRunLength = 5
)

// NormalizedRead is an alignment reduced to what the breakpoint stages use.
// Coordinates are 1-based and closed.
type NormalizedRead struct {
	Name   string
	Start  int
	End    int
	Strand byte
	// Length is the length of the read sequence.
	Length int
	// QualityClipped is set when quality clipping removed bases from either
	// end.
	QualityClipped bool
	// Mismatches are the positions of mismatches within the end zones of the
	// clipped read, in ascending order. The end zones are
	// [zoneStart, zoneStart+E] and [zoneEnd-E, zoneEnd].
	Mismatches []int
	// Forbidden are the positions of the other mismatches outside the
	// clipped bases, in ascending order.
	Forbidden []int
	// Seq is the read sequence as stored in the BAM record, or "" when it is
	// not available.
	Seq string

	// endZone is E, the width of each end zone.
	endZone int
	// clipStart and clipEnd are the numbers of reference positions removed
	// from each end of [Start, End] by quality clipping.
	clipStart, clipEnd int
}

// zoneStart returns the first position of the clipped read.
func (r *NormalizedRead) zoneStart() int { return r.Start + r.clipStart }

// zoneEnd returns the last position of the clipped read. It is below
// zoneStart when the whole read is clipped.
func (r *NormalizedRead) zoneEnd() int { return r.End - r.clipEnd }

// inEndZone reports whether pos lies in one of the end zones of r.
func (r *NormalizedRead) inEndZone(pos int) bool {
	lo, hi := r.zoneStart(), r.zoneEnd()
	if pos < lo || pos > hi {
		return false
	}
	return pos <= lo+r.endZone || pos >= hi-r.endZone
}

func (r *NormalizedRead) String() string {
	return fmt.Sprintf("%s[%d-%d%c]", r.Name, r.Start, r.End, r.Strand)
}

// Normalizer turns BAM records into NormalizedReads, applying the read
// filters and duplicate suppression of one stage. Records must be fed in
// coordinate order.
type Normalizer struct {
	opts        Opts
	uniqueTag   sam.Tag
	mismatchTag sam.Tag
	// screen enables quality clipping, mismatch decoding and sequence
	// retention.
	screen bool
	dedup  deduper
}

// NewScanNormalizer creates a Normalizer for the window scanning stage. The
// first of several reads with the same alignment wins.
func NewScanNormalizer(opts Opts) (*Normalizer, error) {
	return newNormalizer(opts, false, &firstWins{})
}

// NewScreenNormalizer creates a Normalizer for the mismatch screening stage.
// Among reads with the same alignment, clean mismatch-bearing reads are
// preferred.
func NewScreenNormalizer(opts Opts) (*Normalizer, error) {
	return newNormalizer(opts, true, &ranked{})
}

func newNormalizer(opts Opts, screen bool, dedup deduper) (*Normalizer, error) {
	n := &Normalizer{opts: opts, screen: screen, dedup: dedup}
	var err error
	if n.uniqueTag, err = parseTag(opts.UniqueTag, "unique tag"); err != nil {
		return nil, err
	}
	if n.mismatchTag, err = parseTag(opts.MismatchTag, "mismatch tag"); err != nil {
		return nil, err
	}
	return n, nil
}

// Normalize converts rec. It returns nil, nil if rec is filtered out, and an
// error if rec carries a malformed CIGAR or mismatch tag.
func (n *Normalizer) Normalize(rec *sam.Record) (*NormalizedRead, error) {
	if rec.Flags&sam.Unmapped != 0 || rec.Ref == nil {
		return nil, nil
	}
	length := gbam.QueryLen(rec)
	if n.opts.ReadLen != 0 && length != n.opts.ReadLen {
		return nil, nil
	}
	if n.opts.Unique && !n.isUnique(rec) {
		return nil, nil
	}
	refLen, _, err := gbam.AlignmentSpan(rec.Cigar)
	if err != nil {
		return nil, errors.E(err, fmt.Sprintf("read %s", rec.Name))
	}
	r := &NormalizedRead{
		Name:    rec.Name,
		Start:   rec.Pos + 1,
		End:     rec.Pos + refLen,
		Strand:  gbam.Strand(rec),
		Length:  length,
		endZone: n.opts.endZoneWidth(length),
	}
	if refLen == 0 {
		r.End = r.Start
	}
	hasMismatch := false
	if n.screen {
		mismatches, err := gbam.DecodeMismatches(rec, n.mismatchTag)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("read %s", rec.Name))
		}
		hasMismatch = len(mismatches) > 0
		clipLeft, clipRight := 0, 0
		if n.opts.QualClip != NoQualClip {
			clipLeft, clipRight = qualClip(rec.Qual, n.opts.QualClip)
		}
		r.QualityClipped = clipLeft != 0 || clipRight != 0
		if err := r.clip(rec.Cigar, clipLeft, clipRight); err != nil {
			return nil, errors.E(err, fmt.Sprintf("read %s", rec.Name))
		}
		r.partition(mismatches, clipLeft, clipRight)
		if rec.Seq.Length > 0 {
			r.Seq = string(rec.Seq.Expand())
		}
	}
	key := dedupKey{refID: rec.Ref.ID(), start: r.Start, end: r.End, strand: r.Strand}
	if !n.dedup.admit(key, r.QualityClipped, hasMismatch) {
		return nil, nil
	}
	return r, nil
}

func (n *Normalizer) isUnique(rec *sam.Record) bool {
	if v, ok := gbam.AuxInt(rec, n.uniqueTag); ok {
		return v == n.opts.UniqueValue
	}
	if nh, ok := gbam.AuxInt(rec, gbam.NHTag); ok {
		return nh == 1
	}
	return int(rec.MapQ) > n.opts.MinUniqueMapQ
}

// qualClip returns the number of bases to clip from each end of a read with
// the given qualities. The kept bases extend from the first to the last run
// of clipRunLength bases of quality at least minClipQual. A read with no such
// run is clipped entirely.
func qualClip(qual []byte, enc QualEncoding) (left, right int) {
	left, right = -1, -1
	run := 0
	for i, b := range qual {
		if enc.qualValue(b) < minClipQual {
			run = 0
			continue
		}
		run++
		if run >= clipRunLength {
			if left < 0 {
				left = i + 1 - run
			}
			right = len(qual) - (i + 1)
		}
	}
	if left < 0 {
		return len(qual), len(qual)
	}
	return left, right
}

// clip sets the reference span of r that is left once clipLeft and clipRight
// read bases are removed.
func (r *NormalizedRead) clip(cigar sam.Cigar, clipLeft, clipRight int) error {
	first, last, ok, err := gbam.AlignedRefRange(cigar, clipLeft, r.Length-clipRight-1)
	if err != nil {
		return err
	}
	if !ok {
		r.clipStart, r.clipEnd = r.End-r.Start+1, 0
		return nil
	}
	r.clipStart, r.clipEnd = first, r.End-r.Start-last
	return nil
}

// partition sorts the decoded mismatches of r into end-zone mismatches and
// forbidden positions. Mismatches in clipped bases are dropped.
func (r *NormalizedRead) partition(mismatches []gbam.Mismatch, clipLeft, clipRight int) {
	first, last := clipLeft, r.Length-clipRight-1
	for _, m := range mismatches {
		if m.QueryOff < first || m.QueryOff > last {
			continue
		}
		pos := r.Start + m.RefOff
		if r.inEndZone(pos) {
			r.Mismatches = append(r.Mismatches, pos)
		} else {
			r.Forbidden = append(r.Forbidden, pos)
		}
	}
}
