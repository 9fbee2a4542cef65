// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package breakpoint

import (
	"fmt"
	"io"

	"github.com/grailbio/hts/sam"
)

// QualEncoding is the quality clipping scheme. The schemes differ only in
// the ASCII offset applied to each quality byte.
type QualEncoding int

const (
	// NoQualClip disables quality clipping.
	NoQualClip QualEncoding = iota
	// Phred33 qualities are offset by 33.
	Phred33
	// Phred64 qualities are offset by 64.
	Phred64
	// Solexa64 qualities are offset by 64.
	Solexa64
)

var qualEncodingNames = [...]string{"no", "phred33", "phred64", "solexa64"}

func (q QualEncoding) String() string {
	if q < 0 || int(q) >= len(qualEncodingNames) {
		return fmt.Sprintf("QualEncoding(%d)", int(q))
	}
	return qualEncodingNames[q]
}

// ParseQualEncoding parses one of "no", "phred33", "phred64", "solexa64".
func ParseQualEncoding(s string) (QualEncoding, error) {
	if s == "" {
		return NoQualClip, nil
	}
	for i, name := range qualEncodingNames {
		if s == name {
			return QualEncoding(i), nil
		}
	}
	return NoQualClip, fmt.Errorf("breakpoint: unknown quality encoding %q, want one of %v", s, qualEncodingNames)
}

// qualValue converts a quality byte as stored in BAM to the quality value of
// the encoding.
func (q QualEncoding) qualValue(b byte) int {
	if q == Phred33 {
		return int(b)
	}
	return int(b) + 33 - 64
}

// Opts controls both stages.
type Opts struct {
	// ReadLen, when nonzero, drops reads of any other length and selects the
	// single-length null model. 0 accepts every length and scores windows
	// per length bucket.
	ReadLen int
	// WindowSize is the width of the sliding windows. 0 picks 10 for reads of
	// at most 50 bases and 20 otherwise.
	WindowSize int
	// QualClip selects quality clipping of read ends (stage 2).
	QualClip QualEncoding
	// Unique drops reads that are not uniquely mapped.
	Unique bool
	// UniqueTag and UniqueValue define a uniquely mapped read: one whose
	// UniqueTag equals UniqueValue. Without that tag, NH:1 marks a unique
	// read, and without NH, a mapping quality above MinUniqueMapQ does.
	UniqueTag     string
	UniqueValue   int
	MinUniqueMapQ int
	// MismatchTag names the MD-style tag listing mismatching bases.
	MismatchTag string
	// Region restricts processing to a samtools-style region string.
	Region string
	// WindowLog, if non-nil, receives one line per significant window.
	WindowLog io.Writer
}

// DefaultOpts are the default options.
var DefaultOpts = Opts{
	ReadLen:       0,
	WindowSize:    0,
	QualClip:      NoQualClip,
	Unique:        false,
	UniqueTag:     "XT",
	UniqueValue:   'U',
	MinUniqueMapQ: 10,
	MismatchTag:   "MD",
}

func (o Opts) windowSize() int {
	if o.WindowSize > 0 {
		return o.WindowSize
	}
	if o.ReadLen > 0 && o.ReadLen <= 50 {
		return 10
	}
	return 20
}

// endZoneWidth returns the number of bases at each end of a read in which
// mismatches are counted as breakpoint evidence.
func (o Opts) endZoneWidth(observedLen int) int {
	n := o.ReadLen
	if n == 0 {
		n = observedLen
	}
	switch {
	case n < 50:
		return 10
	case n <= 100:
		return 15
	}
	return 20
}

func parseTag(name, what string) (sam.Tag, error) {
	if len(name) != 2 {
		return sam.Tag{}, fmt.Errorf("breakpoint: %s %q is not a two-character tag", what, name)
	}
	return sam.NewTag(name), nil
}
