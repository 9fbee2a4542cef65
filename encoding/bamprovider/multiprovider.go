// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bamprovider

import (
	"fmt"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// multiProvider merges the records of several coordinate-sorted providers.
// Their headers are reconciled by reference name against the header of the
// first provider, and every record is rewritten to point at that header.
type multiProvider struct {
	providers []Provider
	err       errors.Once
	header    *sam.Header
}

// NewMultiProvider creates a Provider that yields the union of the records of
// providers in coordinate order. Ties are broken by the position of the
// provider in the list.
func NewMultiProvider(providers []Provider) Provider {
	if len(providers) == 1 {
		return providers[0]
	}
	return &multiProvider{providers: providers}
}

// GetHeader implements the Provider interface.
func (m *multiProvider) GetHeader() (*sam.Header, error) {
	if m.header != nil {
		return m.header, nil
	}
	if len(m.providers) == 0 {
		return nil, fmt.Errorf("bamprovider: no input files")
	}
	header, err := m.providers[0].GetHeader()
	if err != nil {
		return nil, err
	}
	for _, p := range m.providers[1:] {
		h, err := p.GetHeader()
		if err != nil {
			return nil, err
		}
		for _, ref := range h.Refs() {
			if RefByName(header, ref.Name()) == nil {
				return nil, fmt.Errorf("bamprovider: reference %s is missing from the first input", ref.Name())
			}
		}
	}
	m.header = header
	return header, nil
}

// NewIterator implements the Provider interface.
func (m *multiProvider) NewIterator() Iterator {
	return m.newIterator(func(p Provider, h *sam.Header) Iterator { return p.NewIterator() })
}

// NewRangeIterator implements the Provider interface.
func (m *multiProvider) NewRangeIterator(ref *sam.Reference, start, limit int) Iterator {
	return m.newIterator(func(p Provider, h *sam.Header) Iterator {
		local := RefByName(h, ref.Name())
		if local == nil {
			return NewErrorIterator(nil)
		}
		return p.NewRangeIterator(local, start, limit)
	})
}

func (m *multiProvider) newIterator(open func(p Provider, h *sam.Header) Iterator) Iterator {
	header, err := m.GetHeader()
	if err != nil {
		return NewErrorIterator(err)
	}
	it := &mergeIterator{provider: m}
	for i, p := range m.providers {
		h, err := p.GetHeader()
		if err != nil {
			it.err.Set(err)
			break
		}
		leaf := &mergeLeaf{seq: i, iter: open(p, h), refs: make([]*sam.Reference, len(h.Refs()))}
		for j, ref := range h.Refs() {
			leaf.refs[j] = RefByName(header, ref.Name())
		}
		it.leafs = append(it.leafs, leaf)
		if leaf.advance(&it.err) {
			it.tree.Insert(leaf)
		}
	}
	vlog.VI(1).Infof("Merging %d inputs, %d leafs active", len(m.providers), it.tree.Len())
	return it
}

// Close implements the Provider interface.
func (m *multiProvider) Close() error {
	for _, p := range m.providers {
		m.err.Set(p.Close())
	}
	return m.err.Err()
}

// mergeLeaf is one input of a mergeIterator, holding its next record.
type mergeLeaf struct {
	// seq is the position of the input in the provider list.
	seq  int
	iter Iterator
	rec  *sam.Record
	// refs maps the reference IDs of the input to the merged header.
	refs []*sam.Reference
}

// advance reads the next record of l, rewriting its references. It returns
// false at the end of the input or on error.
func (l *mergeLeaf) advance(err *errors.Once) bool {
	if !l.iter.Scan() {
		err.Set(l.iter.Err())
		l.rec = nil
		return false
	}
	l.rec = l.iter.Record()
	if id := l.rec.Ref.ID(); id >= 0 {
		l.rec.Ref = l.refs[id]
	}
	if id := l.rec.MateRef.ID(); id >= 0 && id < len(l.refs) {
		l.rec.MateRef = l.refs[id]
	}
	return true
}

// Compare implements llrb.Comparable.
func (l *mergeLeaf) Compare(c llrb.Comparable) int {
	l1 := c.(*mergeLeaf)
	if c := refOrder(l.rec.Ref.ID()) - refOrder(l1.rec.Ref.ID()); c != 0 {
		if c < 0 {
			return -1
		}
		return 1
	}
	if c := l.rec.Pos - l1.rec.Pos; c != 0 {
		return c
	}
	return l.seq - l1.seq
}

type mergeIterator struct {
	provider *multiProvider
	leafs    []*mergeLeaf
	tree     llrb.Tree
	err      errors.Once
	rec      *sam.Record
}

// Scan implements the Iterator interface.
func (i *mergeIterator) Scan() bool {
	if i.err.Err() != nil || i.tree.Len() == 0 {
		return false
	}
	top := i.tree.Min().(*mergeLeaf)
	i.tree.DeleteMin()
	i.rec = top.rec
	if top.advance(&i.err) {
		i.tree.Insert(top)
	}
	return true
}

// Record implements the Iterator interface.
func (i *mergeIterator) Record() *sam.Record {
	return i.rec
}

// Err implements the Iterator interface.
func (i *mergeIterator) Err() error {
	return i.err.Err()
}

// Close implements the Iterator interface.
func (i *mergeIterator) Close() error {
	for _, l := range i.leafs {
		i.err.Set(l.iter.Close())
	}
	i.provider.err.Set(i.err.Err())
	return i.err.Err()
}
