// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bam

import (
	"fmt"

	"github.com/grailbio/hts/sam"
)

// InvalidCigarError is returned when a CIGAR string carries an operation this
// package does not know how to walk.
type InvalidCigarError struct {
	Op sam.CigarOpType
}

func (e *InvalidCigarError) Error() string {
	return fmt.Sprintf("bam: invalid cigar op type %d", int(e.Op))
}

// consumes reports whether op advances the query and the reference
// respectively.
func consumes(op sam.CigarOpType) (query, ref bool, err error) {
	switch op {
	case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
		return true, true, nil
	case sam.CigarInsertion, sam.CigarSoftClipped:
		return true, false, nil
	case sam.CigarDeletion, sam.CigarSkipped:
		return false, true, nil
	case sam.CigarHardClipped, sam.CigarPadded:
		return false, false, nil
	}
	return false, false, &InvalidCigarError{op}
}

// AlignmentSpan returns the number of reference and query bases consumed by
// cigar. It fails on an unknown operation, unlike sam.Cigar.Lengths which
// silently ignores one.
func AlignmentSpan(cigar sam.Cigar) (refLen, queryLen int, err error) {
	for _, co := range cigar {
		q, r, err := consumes(co.Type())
		if err != nil {
			return 0, 0, err
		}
		if q {
			queryLen += co.Len()
		}
		if r {
			refLen += co.Len()
		}
	}
	return refLen, queryLen, nil
}

// QueryOffset maps refOff, an offset from the first aligned reference base,
// to the offset of the aligned query base, counting soft clipped bases. ok is
// false when refOff falls inside a deletion or beyond the alignment.
func QueryOffset(cigar sam.Cigar, refOff int) (queryOff int, ok bool, err error) {
	r := 0
	for _, co := range cigar {
		q, consumesRef, err := consumes(co.Type())
		if err != nil {
			return 0, false, err
		}
		n := co.Len()
		switch {
		case q && consumesRef:
			if refOff < r+n {
				return queryOff + refOff - r, true, nil
			}
			queryOff += n
			r += n
		case q:
			queryOff += n
		case consumesRef:
			if refOff < r+n {
				return 0, false, nil
			}
			r += n
		}
	}
	return 0, false, nil
}

// AlignedRefRange returns the reference offsets of the first and last aligned
// query bases with offsets in [firstQuery, lastQuery]. Offsets are counted as
// in QueryOffset. ok is false when no aligned base falls in the range.
func AlignedRefRange(cigar sam.Cigar, firstQuery, lastQuery int) (first, last int, ok bool, err error) {
	queryOff, r := 0, 0
	for _, co := range cigar {
		q, consumesRef, err := consumes(co.Type())
		if err != nil {
			return 0, 0, false, err
		}
		n := co.Len()
		if q && consumesRef {
			lo, hi := queryOff, queryOff+n-1
			if lo < firstQuery {
				lo = firstQuery
			}
			if hi > lastQuery {
				hi = lastQuery
			}
			if lo <= hi {
				if !ok {
					first, ok = r+lo-queryOff, true
				}
				last = r + hi - queryOff
			}
		}
		if q {
			queryOff += n
		}
		if consumesRef {
			r += n
		}
	}
	return first, last, ok, nil
}

// Strand returns '-' for a reverse-strand record and '+' otherwise.
func Strand(r *sam.Record) byte {
	if r.Flags&sam.Reverse != 0 {
		return '-'
	}
	return '+'
}

// QueryLen returns the length of the read as stored in the record: the
// length of the quality string, or of the sequence when qualities are absent.
func QueryLen(r *sam.Record) int {
	if len(r.Qual) > 0 {
		return len(r.Qual)
	}
	return r.Seq.Length
}
