// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

// See doc.go for documentation.

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/breakpointer/breakpoint"
	"github.com/grailbio/breakpointer/encoding/bamprovider"
	"v.io/x/lib/cmdline"
)

// stageFlags are the flags shared by both subcommands.
type stageFlags struct {
	readLen     *int
	windowSize  *int
	qualClip    *string
	unique      *bool
	uniqueTag   *string
	uniqueValue *string
	mismatchTag *string
	indiPrint   *bool
	region      *string
	index       *string
	out         *string
}

func addStageFlags(fs *flag.FlagSet) stageFlags {
	d := breakpoint.DefaultOpts
	return stageFlags{
		readLen:     fs.Int("readlen", d.ReadLen, "Read length. Reads of other lengths are skipped. 0 accepts all lengths and scores each length separately"),
		windowSize:  fs.Int("windowsize", d.WindowSize, "Window size. 0 picks 10 for -readlen of at most 50, and 20 otherwise"),
		qualClip:    fs.String("qualclip", d.QualClip.String(), "Quality clipping of read ends in the screen stage: no, phred33, phred64 or solexa64"),
		unique:      fs.Bool("unique", d.Unique, "Only use uniquely mapped reads"),
		uniqueTag:   fs.String("tag-uniq", d.UniqueTag, "Aux tag marking uniquely mapped reads; NH:1 or MAPQ are used for reads without it"),
		uniqueValue: fs.String("val-uniq", string(rune(d.UniqueValue)), "Value of -tag-uniq for uniquely mapped reads: a single character or an integer"),
		mismatchTag: fs.String("mistag", d.MismatchTag, "MD-style aux tag listing mismatches"),
		indiPrint:   fs.Bool("indiprint", false, "Print every significant window to stderr"),
		region:      fs.String("region", d.Region, "Restrict processing to a region, formatted as <contig>:<1-based first pos>-<last pos>, <contig>:<1-based pos> or <contig>"),
		index:       fs.String("index", "", "Input BAM index path. Defaults to bampath + .bai"),
		out:         fs.String("out", "", "Output path. Defaults to stdout"),
	}
}

// parseUniqueValue accepts a single character, taken as its code, or an
// integer.
func parseUniqueValue(s string) (int, error) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	if len(s) == 1 {
		return int(s[0]), nil
	}
	return 0, fmt.Errorf("-val-uniq %q: want a single character or an integer", s)
}

func (f stageFlags) opts() (breakpoint.Opts, error) {
	opts := breakpoint.DefaultOpts
	var err error
	if opts.QualClip, err = breakpoint.ParseQualEncoding(*f.qualClip); err != nil {
		return opts, err
	}
	if opts.UniqueValue, err = parseUniqueValue(*f.uniqueValue); err != nil {
		return opts, err
	}
	opts.ReadLen = *f.readLen
	opts.WindowSize = *f.windowSize
	opts.Unique = *f.unique
	opts.UniqueTag = *f.uniqueTag
	opts.MismatchTag = *f.mismatchTag
	opts.Region = *f.region
	if *f.indiPrint {
		opts.WindowLog = os.Stderr
	}
	if opts.ReadLen < 0 || opts.WindowSize < 0 {
		return opts, fmt.Errorf("-readlen and -windowsize must not be negative")
	}
	return opts, nil
}

// withOutput calls fn with a writer to path, or to stdout if path is empty.
func withOutput(ctx context.Context, path string, fn func(io.Writer) error) (err error) {
	if path == "" || path == "-" {
		return fn(os.Stdout)
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if e := out.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	return fn(out.Writer(ctx))
}

// withProvider opens the alignments named by arg and calls fn with them.
func withProvider(ctx context.Context, arg string, f stageFlags, fn func(bamprovider.Provider) error) (err error) {
	provider, err := bamprovider.NewProviderFromArg(ctx, arg, bamprovider.ProviderOpts{Index: *f.index})
	if err != nil {
		return err
	}
	defer func() {
		if e := provider.Close(); e != nil && err == nil {
			err = e
		}
	}()
	return fn(provider)
}

func runScan(ctx context.Context, f stageFlags, argv []string) error {
	if len(argv) != 1 {
		return fmt.Errorf("scan takes one alignment argument, but got %v", argv)
	}
	opts, err := f.opts()
	if err != nil {
		return err
	}
	log.Printf("scan: reading %s", argv[0])
	return withProvider(ctx, argv[0], f, func(provider bamprovider.Provider) error {
		return withOutput(ctx, *f.out, func(w io.Writer) error {
			return breakpoint.Scan(ctx, provider, opts, w)
		})
	})
}

func runScreen(ctx context.Context, f stageFlags, argv []string) (err error) {
	if len(argv) != 2 {
		return fmt.Errorf("screen takes an alignment argument and a region file, but got %v", argv)
	}
	opts, err := f.opts()
	if err != nil {
		return err
	}
	regions, err := breakpoint.OpenRegions(ctx, argv[1])
	if err != nil {
		return errors.E(err, fmt.Sprintf("opening regions %s", argv[1]))
	}
	defer func() {
		if e := regions.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	log.Printf("screen: reading %s, regions from %s", argv[0], argv[1])
	return withProvider(ctx, argv[0], f, func(provider bamprovider.Provider) error {
		return withOutput(ctx, *f.out, func(w io.Writer) error {
			return breakpoint.Screen(ctx, provider, regions, opts, w)
		})
	})
}

func newCmdScan() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "scan",
		Short:    "Find regions with a skewed density of read starts and ends",
		ArgsName: "alignments",
		ArgsLong: alignmentsHelp,
	}
	f := addStageFlags(&cmd.Flags)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		return runScan(vcontext.Background(), f, argv)
	})
	return cmd
}

func newCmdScreen() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "screen",
		Short:    "Screen scanned regions for recurrent mismatches at read ends",
		ArgsName: "alignments regions",
		ArgsLong: alignmentsHelp + `
regions is the output of the scan subcommand. It may be gzip-compressed, with
a .gz suffix.`,
	}
	f := addStageFlags(&cmd.Flags)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		return runScreen(vcontext.Background(), f, argv)
	})
	return cmd
}

const alignmentsHelp = `
alignments is a coordinate-sorted BAM file, a quoted whitespace-separated list
of them, or a text file listing one BAM path per line. Several BAM files are
merged by coordinate.`

func newCmdRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:     "bio-breakpointer",
		Short:    "Detect structural variant breakpoints from single-end alignments",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdScan(),
			newCmdScreen(),
		},
	}
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newCmdRoot())
}
