// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bam

import (
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

// MDTag is the standard tag holding the mismatching reference positions of an
// alignment.
var MDTag = sam.Tag{'M', 'D'}

// Mismatch is a single substituted base.
type Mismatch struct {
	// RefOff is the offset of the base from the first aligned reference
	// position (r.Pos).
	RefOff int
	// QueryOff is the offset of the base in the stored read sequence,
	// including soft clipped bases.
	QueryOff int
}

// DecodeMismatches parses the MD-style string tag of r and returns the
// substitutions it lists, in reference order. It returns nil, nil when r does
// not carry the tag.
//
// The tag grammar is [0-9]+(([A-Z]|\^[A-Z]+)[0-9]+)*: runs of matching bases,
// substituted reference bases and ^-prefixed deleted reference bases. Empty
// match runs between two substitutions are accepted.
func DecodeMismatches(r *sam.Record, tag sam.Tag) ([]Mismatch, error) {
	aux := r.AuxFields.Get(tag)
	if aux == nil {
		return nil, nil
	}
	md, ok := aux.Value().(string)
	if !ok {
		return nil, errors.Errorf("%s: tag %s is not a string: %v", r.Name, tag, aux)
	}
	refOffs, err := parseMD(md)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: %s:%s", r.Name, tag, md)
	}
	if len(refOffs) == 0 {
		return nil, nil
	}
	mismatches := make([]Mismatch, 0, len(refOffs))
	for _, off := range refOffs {
		q, ok, err := QueryOffset(r.Cigar, off)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Errorf("%s: %s:%s substitution at reference offset %d is not aligned by cigar %v",
				r.Name, tag, md, off, r.Cigar)
		}
		mismatches = append(mismatches, Mismatch{RefOff: off, QueryOff: q})
	}
	return mismatches, nil
}

// parseMD returns the reference offsets of the substitutions listed in md.
func parseMD(md string) ([]int, error) {
	var (
		offs   []int
		refOff int
		run    int
	)
	for i := 0; i < len(md); i++ {
		c := md[i]
		switch {
		case c >= '0' && c <= '9':
			run = run*10 + int(c-'0')
		case c == '^':
			refOff += run
			run = 0
			n := 0
			for i+1 < len(md) && isBase(md[i+1]) {
				i++
				n++
			}
			if n == 0 {
				return nil, errors.Errorf("empty deletion at byte %d", i)
			}
			refOff += n
		case isBase(c):
			refOff += run
			run = 0
			offs = append(offs, refOff)
			refOff++
		default:
			return nil, errors.Errorf("unexpected character %q at byte %d", c, i)
		}
	}
	return offs, nil
}

func isBase(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}
