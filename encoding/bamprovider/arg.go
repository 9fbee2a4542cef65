// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bamprovider

import (
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bam"
	"v.io/x/lib/vlog"
)

// NewProviderFromArg creates a Provider from an input argument, which is one
// of
//   - a whitespace-separated list of BAM paths,
//   - the path of a single BAM file,
//   - the path of a text file listing one BAM path per line. Blank lines and
//     lines starting with '#' are ignored.
// A single path is taken to be a BAM file iff it opens as one. Several BAM
// files are merged by coordinate.
func NewProviderFromArg(ctx context.Context, arg string, opts ProviderOpts) (Provider, error) {
	paths := strings.Fields(arg)
	switch len(paths) {
	case 0:
		return nil, errors.E(errors.Invalid, "bamprovider: empty input argument")
	case 1:
		isBAM, err := probeBAM(ctx, paths[0])
		if err != nil {
			return nil, err
		}
		if isBAM {
			return NewProvider(paths[0], opts), nil
		}
		if paths, err = readPathList(ctx, paths[0]); err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, errors.E(errors.Invalid, "bamprovider: no paths listed in", arg)
		}
		if len(paths) == 1 {
			return NewProvider(paths[0], opts), nil
		}
	}
	vlog.VI(1).Infof("Merging %d BAM files: %v", len(paths), paths)
	providers := make([]Provider, len(paths))
	for i, path := range paths {
		providers[i] = NewProvider(path)
	}
	return NewMultiProvider(providers), nil
}

// probeBAM reports whether path can be opened as a BAM file.
func probeBAM(ctx context.Context, path string) (bool, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return false, err
	}
	defer in.Close(ctx) // nolint: errcheck
	r, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		vlog.VI(1).Infof("%v: not a BAM file (%v), reading it as a list of paths", path, err)
		return false, nil
	}
	return true, r.Close()
}

// readPathList reads a file of BAM paths.
func readPathList(ctx context.Context, path string) (paths []string, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	r := tsv.NewReader(in.Reader(ctx))
	r.Comment = '#'
	for {
		var row struct {
			Path string
		}
		if err = r.Read(&row); err != nil {
			if err == io.EOF {
				return paths, nil
			}
			return nil, errors.E(err, path)
		}
		if p := strings.TrimSpace(row.Path); p != "" {
			paths = append(paths, p)
		}
	}
}
