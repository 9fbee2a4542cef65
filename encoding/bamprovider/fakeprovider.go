// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bamprovider

import (
	"github.com/grailbio/hts/sam"
)

// memProvider serves records held in memory. It exists for tests.
type memProvider struct {
	header *sam.Header
	recs   []*sam.Record
}

// memIterator walks the records of a memProvider, skipping those outside
// its range.
type memIterator struct {
	recs []*sam.Record
	cur  *sam.Record
	// inRange is nil for an iterator over all records.
	inRange func(*sam.Record) bool
}

// NewFakeProvider creates a Provider over header and recs, which must be
// sorted by coordinate. Iterators return copies of the records so that the
// code under test cannot alter them.
func NewFakeProvider(header *sam.Header, recs []*sam.Record) Provider {
	return &memProvider{header: header, recs: recs}
}

func (p *memProvider) GetHeader() (*sam.Header, error) { return p.header, nil }

func (p *memProvider) Close() error { return nil }

func (p *memProvider) NewIterator() Iterator {
	return &memIterator{recs: p.recs}
}

func (p *memProvider) NewRangeIterator(ref *sam.Reference, start, limit int) Iterator {
	id := ref.ID()
	return &memIterator{
		recs: p.recs,
		inRange: func(r *sam.Record) bool {
			return r.Ref.ID() == id && r.Pos >= start && r.Pos < limit
		},
	}
}

func (i *memIterator) Scan() bool {
	for len(i.recs) > 0 {
		i.cur, i.recs = i.recs[0], i.recs[1:]
		if i.inRange == nil || i.inRange(i.cur) {
			return true
		}
	}
	return false
}

func (i *memIterator) Record() *sam.Record {
	r := sam.GetFromFreePool()
	*r = *i.cur
	return r
}

func (i *memIterator) Err() error { return nil }

func (i *memIterator) Close() error { return nil }
