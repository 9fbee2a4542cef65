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

// Screen runs the mismatch screening stage: it walks the alignments of
// provider once more, attributes them to the regions of src and writes the
// regions that pass the screening filters to w in GFF format.
//
// Chromosomes are visited in the order of the region file. The regions of a
// chromosome absent from the alignments are retired without evidence. Once
// the region file is exhausted and its regions retired, the remaining
// alignments are skipped.
func Screen(ctx context.Context, provider bamprovider.Provider, src RegionSource, opts Opts, w io.Writer) (err error) {
	normalizer, err := NewScreenNormalizer(opts)
	if err != nil {
		return err
	}
	if opts.Region != "" {
		entry, err := interval.ParseRegionString(opts.Region)
		if err != nil {
			return err
		}
		src = &regionFilter{src: src, entry: entry}
	}
	header, err := provider.GetHeader()
	if err != nil {
		return err
	}

	out := NewGFFWriter(w)
	var nRetired int
	tracker := NewRegionTracker(src, func(g *Region) error {
		nRetired++
		a := scoreRegion(g)
		if !a.pass() {
			log.Debug.Printf("%v: filtered, coverage %d, %d qualifying positions", g, g.Coverage, a.Qualifying)
			return nil
		}
		return out.Write(a)
	})

	var nRecs, nReads int
	for {
		g, err := tracker.Peek()
		if err != nil {
			return err
		}
		if g == nil {
			break
		}
		chr := g.Chr
		ref := bamprovider.RefByName(header, chr)
		if ref == nil {
			log.Printf("screen: reference %s not found in the alignments, retiring its regions", chr)
			if err := tracker.FinishChrom(chr, ExhaustedAtUnknownRef); err != nil {
				return err
			}
			continue
		}
		tracker.StartChrom(chr)
		iter := provider.NewRangeIterator(ref, 0, ref.Len())
		for iter.Scan() {
			if err = ctx.Err(); err != nil {
				break
			}
			nRecs++
			var r *NormalizedRead
			if r, err = normalizer.Normalize(iter.Record()); err != nil {
				break
			}
			if r == nil {
				continue
			}
			nReads++
			var done bool
			if done, err = tracker.Add(r); err != nil || done {
				break
			}
		}
		if e := iter.Close(); e != nil && err == nil {
			err = e
		}
		if err != nil {
			return err
		}
		if err := tracker.FinishChrom(chr, ExhaustedAtChromEnd); err != nil {
			return err
		}
	}
	log.Printf("screen: %d records, %d reads kept, %d regions screened, %d reported",
		nRecs, nReads, nRetired, out.n)
	return out.Flush()
}

// regionFilter drops the regions that do not overlap entry.
type regionFilter struct {
	src   RegionSource
	entry interval.Entry
}

func (f *regionFilter) Next() (*Region, error) {
	for {
		g, err := f.src.Next()
		if err != nil {
			return nil, err
		}
		if f.entry.Overlaps(g.Chr, interval.PosType(g.Start-1), interval.PosType(g.End)) {
			return g, nil
		}
	}
}
