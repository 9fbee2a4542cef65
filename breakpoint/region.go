// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package breakpoint

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/klauspost/compress/gzip"
)

// Region is a candidate breakpoint region: a merged run of significant
// windows, and in the screening stage the evidence of the reads overlapping
// it. Coordinates are 1-based and closed.
type Region struct {
	Chr    string
	Start  int
	End    int
	Size   int
	Depth  float64
	Ratio1 float64
	Ratio2 float64
	Score  float64

	// Coverage is the number of reads overlapping the region.
	Coverage int
	// MismatchCount is the number of end-zone mismatches inside the region.
	MismatchCount int
	// MismatchFreq counts end-zone mismatches by position.
	MismatchFreq map[int]int
	// EndCoverage counts, by position, the reads whose end zone covers it.
	EndCoverage map[int]int
	// Forbidden holds the positions of mismatches seen outside end zones.
	Forbidden map[int]struct{}
	// Candidates are the reads that start or end inside the region with
	// end-zone mismatches in it.
	Candidates []Candidate
}

// Candidate is a read that may carry the breakpoint sequence.
type Candidate struct {
	Read *NormalizedRead
	// Mismatches are the end-zone mismatches of Read inside the region.
	Mismatches []int
}

func (g *Region) String() string {
	return fmt.Sprintf("%s:%d-%d", g.Chr, g.Start, g.End)
}

// RegionWriter writes regions in the stage-1 tab-separated format:
// chr, start, end, size, depth, ratio1, ratio2, score.
type RegionWriter struct {
	w *tsv.Writer
	n int
}

// NewRegionWriter creates a RegionWriter.
func NewRegionWriter(w io.Writer) *RegionWriter {
	return &RegionWriter{w: tsv.NewWriter(w)}
}

// Write writes one region.
func (w *RegionWriter) Write(g *Region) error {
	w.w.WriteString(g.Chr)
	w.w.WriteUint32(uint32(g.Start))
	w.w.WriteUint32(uint32(g.End))
	w.w.WriteUint32(uint32(g.Size))
	for _, v := range [...]float64{g.Depth, g.Ratio1, g.Ratio2, g.Score} {
		w.w.WriteString(strconv.FormatFloat(v, 'f', 3, 64))
	}
	w.n++
	return w.w.EndLine()
}

// Flush flushes buffered output.
func (w *RegionWriter) Flush() error {
	return w.w.Flush()
}

// RegionSource yields regions in coordinate order. Next returns io.EOF after
// the last region.
type RegionSource interface {
	Next() (*Region, error)
}

type regionRow struct {
	Chr    string
	Start  int64
	End    int64
	Size   int64
	Depth  float64
	Ratio1 float64
	Ratio2 float64
	Score  float64
}

// RegionReader reads regions written by RegionWriter. Lines starting with
// '#' are ignored.
type RegionReader struct {
	r *tsv.Reader
}

// NewRegionReader creates a RegionReader.
func NewRegionReader(r io.Reader) *RegionReader {
	tr := tsv.NewReader(r)
	tr.Comment = '#'
	return &RegionReader{r: tr}
}

// Next implements RegionSource.
func (r *RegionReader) Next() (*Region, error) {
	var row regionRow
	if err := r.r.Read(&row); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, errors.E(err, "reading regions")
	}
	if row.Start <= 0 || row.End < row.Start {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("malformed region %s:%d-%d", row.Chr, row.Start, row.End))
	}
	return &Region{
		Chr:    row.Chr,
		Start:  int(row.Start),
		End:    int(row.End),
		Size:   int(row.Size),
		Depth:  row.Depth,
		Ratio1: row.Ratio1,
		Ratio2: row.Ratio2,
		Score:  row.Score,
	}, nil
}

// RegionFile is a RegionReader over a file.
type RegionFile struct {
	*RegionReader
	in file.File
	gz *gzip.Reader
}

// OpenRegions opens a region file. Files ending in ".gz" are decompressed.
func OpenRegions(ctx context.Context, path string) (*RegionFile, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	f := &RegionFile{in: in}
	var r io.Reader = in.Reader(ctx)
	if strings.HasSuffix(path, ".gz") {
		if f.gz, err = gzip.NewReader(r); err != nil {
			in.Close(ctx) // nolint: errcheck
			return nil, errors.E(err, path)
		}
		r = f.gz
	}
	f.RegionReader = NewRegionReader(r)
	return f, nil
}

// Close closes the file.
func (f *RegionFile) Close(ctx context.Context) error {
	var err errors.Once
	if f.gz != nil {
		err.Set(f.gz.Close())
	}
	err.Set(f.in.Close(ctx))
	return err.Err()
}

// GFFWriter writes screened regions as GFF lines.
type GFFWriter struct {
	w *tsv.Writer
	n int
}

// NewGFFWriter creates a GFFWriter.
func NewGFFWriter(w io.Writer) *GFFWriter {
	return &GFFWriter{w: tsv.NewWriter(w)}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// Write writes one annotated region.
func (w *GFFWriter) Write(a Annotation) error {
	g := a.Region
	chr := g.Chr
	if !strings.HasPrefix(chr, "chr") {
		chr = "chr" + chr
	}
	attrs := fmt.Sprintf("ID=%s:%d;SIZE=%d;DEPTH=%d;EndsRatio=%s;StartsRatio=%s;BinomialScore=%s;MIS=%d;realMIS=%d;MISRATE=%s;seedseq=%s",
		chr, g.Start, g.Size, g.Coverage,
		formatFloat(g.Ratio1), formatFloat(g.Ratio2), formatFloat(g.Score),
		g.MismatchCount, a.HighConfidence, formatFloat(a.MismatchRate), a.Seed)
	w.w.WriteString(chr)
	w.w.WriteString("Breakpointer")
	w.w.WriteString("Depth-Skewed")
	w.w.WriteUint32(uint32(g.Start))
	w.w.WriteUint32(uint32(g.End))
	w.w.WriteString(strconv.FormatFloat(a.Confidence, 'g', 3, 64))
	w.w.WriteString("+")
	w.w.WriteString(".")
	w.w.WriteString(attrs)
	w.n++
	return w.w.EndLine()
}

// Flush flushes buffered output.
func (w *GFFWriter) Flush() error {
	return w.w.Flush()
}
