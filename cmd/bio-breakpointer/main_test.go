package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func writeBAM(t *testing.T, path string, header *sam.Header, recs []*sam.Record) {
	ctx := vcontext.Background()
	out, err := file.Create(ctx, path)
	require.NoError(t, err)
	w, err := bam.NewWriter(out.Writer(ctx), header, 1)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close(ctx))
}

func newRecord(name string, ref *sam.Reference, pos int, seq string) *sam.Record {
	qual := make([]byte, len(seq))
	for i := range qual {
		qual[i] = 30
	}
	return &sam.Record{
		Name:    name,
		Ref:     ref,
		Pos:     pos,
		MapQ:    60,
		Cigar:   sam.Cigar{sam.NewCigarOp(sam.CigarMatch, len(seq))},
		MatePos: -1,
		Seq:     sam.NewSeq([]byte(seq)),
		Qual:    qual,
	}
}

func parseFlags(t *testing.T, args ...string) stageFlags {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := addStageFlags(fs)
	require.NoError(t, fs.Parse(args))
	return f
}

func TestParseUniqueValue(t *testing.T) {
	for _, test := range []struct {
		in   string
		want int
	}{{"U", 'U'}, {"1", 1}, {"85", 85}} {
		v, err := parseUniqueValue(test.in)
		require.NoError(t, err)
		expect.EQ(t, v, test.want, test.in)
	}
	_, err := parseUniqueValue("UU")
	expect.HasSubstr(t, err.Error(), "UU")

	_, err = parseFlags(t, "-qualclip=phred99").opts()
	expect.HasSubstr(t, err.Error(), "phred99")
	_, err = parseFlags(t, "-readlen=-1").opts()
	expect.NotNil(t, err)

	opts, err := parseFlags(t, "-readlen=36", "-qualclip=solexa64", "-unique", "-tag-uniq=YT", "-val-uniq=1", "-mistag=XM").opts()
	require.NoError(t, err)
	expect.EQ(t, opts.ReadLen, 36)
	expect.EQ(t, opts.QualClip.String(), "solexa64")
	expect.True(t, opts.Unique)
	expect.EQ(t, opts.UniqueTag, "YT")
	expect.EQ(t, opts.UniqueValue, 1)
	expect.EQ(t, opts.MismatchTag, "XM")
	expect.Nil(t, opts.WindowLog)
}

func TestScanScreen(t *testing.T) {
	ctx := vcontext.Background()
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	ref, err := sam.NewReference("1", "", "", 100000, nil, nil)
	require.NoError(t, err)
	header, err := sam.NewHeader(nil, []*sam.Reference{ref})
	require.NoError(t, err)

	// Ten reads starting at positions 1 to 10.
	scanBAM := filepath.Join(tmpDir, "scan.bam")
	var recs []*sam.Record
	for i := 0; i < 10; i++ {
		recs = append(recs, newRecord(fmt.Sprintf("s%d", i), ref, i, strings.Repeat("ACGTTGCAAC", 10)))
	}
	writeBAM(t, scanBAM, header, recs)

	regionsPath := filepath.Join(tmpDir, "regions.txt")
	f := parseFlags(t, "-readlen=100", "-windowsize=20", "-out="+regionsPath)
	require.NoError(t, runScan(ctx, f, []string{scanBAM}))
	data, err := ioutil.ReadFile(regionsPath)
	require.NoError(t, err)
	expect.EQ(t, string(data),
		"1\t1\t24\t24\t10.000\t0.800\t1.000\t2.702\n"+
			"1\t100\t126\t27\t6.500\t1.000\t0.000\t3.101\n")

	// Six reads ending in [100, 119] with mismatches at 105 and 107.
	screenBAM := filepath.Join(tmpDir, "screen.bam")
	recs = nil
	for i := 0; i < 6; i++ {
		start := 60 + i
		r := newRecord(fmt.Sprintf("m%d", i), ref, start-1, strings.Repeat("A", 25)+strings.Repeat("C", 25))
		aux, err := sam.NewAux(sam.NewTag("MD"), fmt.Sprintf("%dA1C%d", 105-start, 50-(107-start)-1))
		require.NoError(t, err)
		r.AuxFields = sam.AuxFields{aux}
		recs = append(recs, r)
	}
	writeBAM(t, screenBAM, header, recs)
	screenRegions := filepath.Join(tmpDir, "screen_regions.txt")
	require.NoError(t, ioutil.WriteFile(screenRegions, []byte("# chr start end size depth ratio1 ratio2 score\n"+
		"1\t100\t119\t20\t10.000\t1.000\t0.000\t4.774\n"), 0644))

	gffPath := filepath.Join(tmpDir, "out.gff")
	f = parseFlags(t, "-qualclip=phred33", "-out="+gffPath)
	require.NoError(t, runScreen(ctx, f, []string{screenBAM, screenRegions}))
	data, err = ioutil.ReadFile(gffPath)
	require.NoError(t, err)
	expect.EQ(t, string(data), "chr1\tBreakpointer\tDepth-Skewed\t100\t119\t3.36e-05\t+\t.\t"+
		"ID=chr1:100;SIZE=20;DEPTH=6;EndsRatio=1;StartsRatio=0;BinomialScore=4.774;"+
		"MIS=12;realMIS=2;MISRATE=2;seedseq=CCCCCCCCCCCCCCCCCCCCCCCCC\n")

	expect.NotNil(t, runScreen(ctx, f, []string{screenBAM}))
	expect.NotNil(t, runScreen(ctx, f, []string{screenBAM, filepath.Join(tmpDir, "missing.txt")}))
	expect.NotNil(t, runScan(ctx, f, []string{filepath.Join(tmpDir, "missing.bam")}))
}
