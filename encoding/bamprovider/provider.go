// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bamprovider

import (
	"github.com/grailbio/hts/sam"
)

// ProviderOpts defines options for NewProvider.
type ProviderOpts struct {
	// Index specifies the name of the BAM index file. If Index=="", it
	// defaults to path + ".bai". With several input files, it is ignored and
	// each file uses its default index path.
	Index string
}

// Provider reads coordinate-sorted alignments from one or more BAM files.
// Close must not be called before every iterator has been closed, and no
// other method may be called after Close.
type Provider interface {
	// GetHeader returns the header of the alignments. The caller must not
	// modify it.
	GetHeader() (*sam.Header, error)

	// NewIterator returns an iterator over all records in coordinate order,
	// with the records of no reference last.
	NewIterator() Iterator

	// NewRangeIterator returns an iterator over the records of ref, one of
	// the references of GetHeader, whose 0-based position lies in
	// [start, limit).
	NewRangeIterator(ref *sam.Reference, start, limit int) Iterator

	// Close releases the provider. It reports the first error seen by the
	// provider or by any of its iterators.
	Close() error
}

// Iterator yields records in ascending (reference, position) order. An
// Iterator is not safe for concurrent use.
type Iterator interface {
	// Scan advances to the next record. It returns false at the end of the
	// range or on error; Err tells the two apart.
	Scan() bool

	// Record returns the record Scan advanced to. It is valid only after
	// Scan returned true.
	Record() *sam.Record

	// Err returns the error that stopped iteration, or nil at a clean end.
	Err() error

	// Close releases the iterator and returns Err. It must be called once.
	Close() error
}

// NewProvider creates a Provider that reads the BAM file at path.
func NewProvider(path string, optList ...ProviderOpts) Provider {
	opts := ProviderOpts{}
	for _, o := range optList {
		if o.Index != "" {
			opts.Index = o.Index
		}
	}
	return &BAMProvider{Path: path, Index: opts.Index}
}

// refOrder returns a sort key for a reference ID that places records with no
// reference after all mapped ones.
func refOrder(id int) int {
	if id < 0 {
		return int(^uint(0) >> 1)
	}
	return id
}
