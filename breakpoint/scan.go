// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package breakpoint

import (
	"context"
	"io"

	"github.com/grailbio/base/log"
	"github.com/grailbio/breakpointer/encoding/bamprovider"
	"github.com/grailbio/breakpointer/interval"
)

// Scan runs the window scanning stage over the alignments of provider and
// writes the merged candidate regions to w.
func Scan(ctx context.Context, provider bamprovider.Provider, opts Opts, w io.Writer) (err error) {
	normalizer, err := NewScanNormalizer(opts)
	if err != nil {
		return err
	}
	iter, err := newIterator(provider, opts.Region)
	if err != nil {
		return err
	}
	defer func() {
		if e := iter.Close(); e != nil && err == nil {
			err = e
		}
	}()

	out := NewRegionWriter(w)
	merger := NewRegionMerger(out.Write)
	scanner := NewWindowScanner(opts, merger.Add)
	log.Printf("scan: window size %d, read length %d", opts.windowSize(), opts.ReadLen)

	var nRecs, nReads int
	for iter.Scan() {
		if err = ctx.Err(); err != nil {
			return err
		}
		rec := iter.Record()
		nRecs++
		r, err := normalizer.Normalize(rec)
		if err != nil {
			return err
		}
		if r == nil {
			continue
		}
		nReads++
		if err := scanner.Add(rec.Ref.Name(), r); err != nil {
			return err
		}
	}
	if err = iter.Err(); err != nil {
		return err
	}
	if err = scanner.Flush(); err != nil {
		return err
	}
	if err = merger.Flush(); err != nil {
		return err
	}
	log.Printf("scan: %d records, %d reads kept, %d significant windows, %d regions",
		nRecs, nReads, scanner.nEmitted, out.n)
	return out.Flush()
}

// newIterator returns an iterator over the whole provider, or over the reads
// starting in region if it is not empty.
func newIterator(provider bamprovider.Provider, region string) (bamprovider.Iterator, error) {
	if region == "" {
		return provider.NewIterator(), nil
	}
	entry, err := interval.ParseRegionString(region)
	if err != nil {
		return nil, err
	}
	return bamprovider.NewRefIterator(provider, entry.RefName, int(entry.Start0), int(entry.End)), nil
}
