// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bam

import "github.com/grailbio/hts/sam"

// NHTag is the standard tag holding the number of reported alignments of a
// read.
var NHTag = sam.Tag{'N', 'H'}

// AuxInt returns the value of an integer or character tag of r. A one-byte
// string tag is read as a character. ok is false if r does not carry the tag
// or the tag is of another type.
func AuxInt(r *sam.Record, tag sam.Tag) (v int, ok bool) {
	aux := r.AuxFields.Get(tag)
	if aux == nil {
		return 0, false
	}
	switch x := aux.Value().(type) {
	case byte:
		return int(x), true
	case int8:
		return int(x), true
	case uint16:
		return int(x), true
	case int16:
		return int(x), true
	case uint32:
		return int(x), true
	case int32:
		return int(x), true
	case string:
		if len(x) == 1 {
			return int(x[0]), true
		}
	}
	return 0, false
}
