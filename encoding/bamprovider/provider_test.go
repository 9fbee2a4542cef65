package bamprovider_test

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/breakpointer/encoding/bamprovider"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/require"
)

func newHeader(t testing.TB) *sam.Header {
	chr1, err := sam.NewReference("chr1", "", "", 10000, nil, nil)
	require.NoError(t, err)
	chr2, err := sam.NewReference("chr2", "", "", 10000, nil, nil)
	require.NoError(t, err)
	header, err := sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
	require.NoError(t, err)
	return header
}

func newRecord(name string, ref *sam.Reference, pos int) *sam.Record {
	return &sam.Record{
		Name:    name,
		Ref:     ref,
		Pos:     pos,
		MapQ:    60,
		Cigar:   []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 10)},
		MateRef: nil,
		MatePos: -1,
		Seq:     sam.NewSeq([]byte("ACGTACGTAC")),
		Qual:    []byte{30, 30, 30, 30, 30, 30, 30, 30, 30, 30},
	}
}

// writeBAM writes recs to path, and an index next to it if index is set.
func writeBAM(t *testing.T, path string, header *sam.Header, recs []*sam.Record, index bool) {
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
	if !index {
		return
	}

	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()
	br, err := bam.NewReader(in, 1)
	require.NoError(t, err)
	var idx bam.Index
	for {
		r, err := br.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.NoError(t, idx.Add(r, br.LastChunk()))
	}
	require.NoError(t, br.Close())
	idxOut, err := os.Create(path + ".bai")
	require.NoError(t, err)
	require.NoError(t, bam.WriteIndex(idxOut, &idx))
	require.NoError(t, idxOut.Close())
}

func readNames(t *testing.T, iter bamprovider.Iterator) []string {
	names := []string{}
	for iter.Scan() {
		r := iter.Record()
		names = append(names, fmt.Sprintf("%s@%s:%d", r.Name, r.Ref.Name(), r.Pos))
	}
	require.NoError(t, iter.Close())
	return names
}

func testRecords(header *sam.Header) []*sam.Record {
	chr1, chr2 := header.Refs()[0], header.Refs()[1]
	return []*sam.Record{
		newRecord("a", chr1, 10),
		newRecord("b", chr1, 500),
		newRecord("c", chr2, 99),
		newRecord("d", chr2, 100),
		newRecord("e", chr2, 250),
		newRecord("f", chr2, 300),
	}
}

func TestBAM(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	header := newHeader(t)
	recs := testRecords(header)

	for _, index := range []bool{false, true} {
		path := filepath.Join(tmpDir, fmt.Sprintf("test-%v.bam", index))
		writeBAM(t, path, header, recs, index)

		p := bamprovider.NewProvider(path)
		h, err := p.GetHeader()
		require.NoError(t, err)
		require.Equal(t, 2, len(h.Refs()))
		require.Equal(t,
			[]string{"a@chr1:10", "b@chr1:500", "c@chr2:99", "d@chr2:100", "e@chr2:250", "f@chr2:300"},
			readNames(t, p.NewIterator()), "index=%v", index)
		require.Equal(t,
			[]string{"d@chr2:100", "e@chr2:250"},
			readNames(t, bamprovider.NewRefIterator(p, "chr2", 100, 300)), "index=%v", index)
		require.Equal(t,
			[]string{"a@chr1:10", "b@chr1:500"},
			readNames(t, bamprovider.NewRefIterator(p, "chr1", 0, 10000)), "index=%v", index)
		require.Equal(t,
			[]string{},
			readNames(t, bamprovider.NewRefIterator(p, "chr1", 600, 10000)), "index=%v", index)
		require.NoError(t, p.Close())
	}
}

func TestError(t *testing.T) {
	p := bamprovider.NewProvider("/nonexistent/dir/nonexistent.bam")
	_, err := p.GetHeader()
	require.Regexp(t, "no such file", err.Error())

	iter := p.NewIterator()
	require.False(t, iter.Scan())
	require.Regexp(t, "no such file", iter.Close().Error())
	require.Regexp(t, "no such file", p.Close().Error())

	header := newHeader(t)
	iter = bamprovider.NewRefIterator(bamprovider.NewFakeProvider(header, nil), "chrX", 0, 1)
	require.Regexp(t, "reference 'chrX' not found", iter.Close().Error())
}

func TestMultiProvider(t *testing.T) {
	h0, h1 := newHeader(t), newHeader(t)
	p0 := bamprovider.NewFakeProvider(h0, []*sam.Record{
		newRecord("a0", h0.Refs()[0], 10),
		newRecord("b0", h0.Refs()[0], 20),
		newRecord("c0", h0.Refs()[1], 5),
	})
	p1 := bamprovider.NewFakeProvider(h1, []*sam.Record{
		newRecord("a1", h1.Refs()[0], 10),
		newRecord("b1", h1.Refs()[0], 15),
		newRecord("c1", h1.Refs()[1], 1),
		newRecord("d1", h1.Refs()[1], 50),
	})
	p := bamprovider.NewMultiProvider([]bamprovider.Provider{p0, p1})
	h, err := p.GetHeader()
	require.NoError(t, err)
	require.True(t, h == h0)

	iter := p.NewIterator()
	var got []string
	for iter.Scan() {
		r := iter.Record()
		// Every record must refer to the merged header.
		require.True(t, r.Ref == h.Refs()[r.Ref.ID()], r.Name)
		got = append(got, r.Name)
	}
	require.NoError(t, iter.Close())
	require.Equal(t, []string{"a0", "a1", "b1", "b0", "c1", "c0", "d1"}, got)

	require.Equal(t,
		[]string{"c0@chr2:5", "d1@chr2:50"},
		readNames(t, p.NewRangeIterator(h.Refs()[1], 2, 100)))
	require.NoError(t, p.Close())
}

func TestNewProviderFromArg(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()
	header := newHeader(t)
	chr1, chr2 := header.Refs()[0], header.Refs()[1]

	path0 := filepath.Join(tmpDir, "0.bam")
	writeBAM(t, path0, header, []*sam.Record{newRecord("x", chr1, 5), newRecord("z", chr2, 7)}, false)
	path1 := filepath.Join(tmpDir, "1.bam")
	writeBAM(t, path1, header, []*sam.Record{newRecord("y", chr1, 6)}, false)
	listPath := filepath.Join(tmpDir, "bams.txt")
	require.NoError(t, ioutil.WriteFile(listPath, []byte("# inputs\n"+path0+"\n\n"+path1+"\n"), 0644))

	for _, arg := range []string{listPath, path0 + " " + path1, " " + path0 + "\t" + path1 + "\n"} {
		p, err := bamprovider.NewProviderFromArg(ctx, arg, bamprovider.ProviderOpts{})
		require.NoError(t, err, arg)
		require.Equal(t, []string{"x@chr1:5", "y@chr1:6", "z@chr2:7"}, readNames(t, p.NewIterator()), arg)
		require.NoError(t, p.Close())
	}

	p, err := bamprovider.NewProviderFromArg(ctx, path1, bamprovider.ProviderOpts{})
	require.NoError(t, err)
	require.Equal(t, []string{"y@chr1:6"}, readNames(t, p.NewIterator()))
	require.NoError(t, p.Close())

	_, err = bamprovider.NewProviderFromArg(ctx, "  ", bamprovider.ProviderOpts{})
	require.Error(t, err)
	_, err = bamprovider.NewProviderFromArg(ctx, filepath.Join(tmpDir, "missing.bam"), bamprovider.ProviderOpts{})
	require.Error(t, err)
}
