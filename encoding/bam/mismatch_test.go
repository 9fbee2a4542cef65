package bam

import (
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cigar(ops ...sam.CigarOp) sam.Cigar { return sam.Cigar(ops) }

func TestAlignmentSpan(t *testing.T) {
	tests := []struct {
		cigar     sam.Cigar
		wantRef   int
		wantQuery int
	}{
		{cigar(sam.NewCigarOp(sam.CigarMatch, 10)), 10, 10},
		{cigar(
			sam.NewCigarOp(sam.CigarHardClipped, 3),
			sam.NewCigarOp(sam.CigarSoftClipped, 2),
			sam.NewCigarOp(sam.CigarMatch, 5),
			sam.NewCigarOp(sam.CigarInsertion, 2),
			sam.NewCigarOp(sam.CigarDeletion, 4),
			sam.NewCigarOp(sam.CigarEqual, 3),
			sam.NewCigarOp(sam.CigarSkipped, 100),
			sam.NewCigarOp(sam.CigarMismatch, 1),
		), 113, 13},
	}
	for _, test := range tests {
		ref, query, err := AlignmentSpan(test.cigar)
		require.NoError(t, err)
		expect.EQ(t, ref, test.wantRef)
		expect.EQ(t, query, test.wantQuery)
	}

	_, _, err := AlignmentSpan(cigar(sam.NewCigarOp(sam.CigarBack, 1)))
	require.Error(t, err)
	_, ok := err.(*InvalidCigarError)
	assert.True(t, ok, "%v", err)
}

func TestQueryOffset(t *testing.T) {
	// 2S3M2I2D3M
	c := cigar(
		sam.NewCigarOp(sam.CigarSoftClipped, 2),
		sam.NewCigarOp(sam.CigarMatch, 3),
		sam.NewCigarOp(sam.CigarInsertion, 2),
		sam.NewCigarOp(sam.CigarDeletion, 2),
		sam.NewCigarOp(sam.CigarMatch, 3),
	)
	tests := []struct {
		refOff int
		want   int
		wantOK bool
	}{
		{0, 2, true},
		{2, 4, true},
		{3, 0, false},
		{4, 0, false},
		{5, 7, true},
		{7, 9, true},
		{8, 0, false},
	}
	for _, test := range tests {
		got, ok, err := QueryOffset(c, test.refOff)
		require.NoError(t, err)
		assert.Equal(t, test.wantOK, ok, "refOff %d", test.refOff)
		assert.Equal(t, test.want, got, "refOff %d", test.refOff)
	}
}

func TestAlignedRefRange(t *testing.T) {
	// 2S3M2I2D3M: query 2-4 align to ref 0-2, query 7-9 to ref 5-7.
	c := cigar(
		sam.NewCigarOp(sam.CigarSoftClipped, 2),
		sam.NewCigarOp(sam.CigarMatch, 3),
		sam.NewCigarOp(sam.CigarInsertion, 2),
		sam.NewCigarOp(sam.CigarDeletion, 2),
		sam.NewCigarOp(sam.CigarMatch, 3),
	)
	tests := []struct {
		firstQuery, lastQuery int
		wantFirst, wantLast   int
		wantOK                bool
	}{
		{0, 9, 0, 7, true},
		{3, 9, 1, 7, true},
		{5, 8, 5, 6, true},
		{0, 1, 0, 0, false},
		{5, 6, 0, 0, false},
		{4, 4, 2, 2, true},
	}
	for _, test := range tests {
		first, last, ok, err := AlignedRefRange(c, test.firstQuery, test.lastQuery)
		require.NoError(t, err)
		assert.Equal(t, test.wantOK, ok, "query %d-%d", test.firstQuery, test.lastQuery)
		if ok {
			expect.EQ(t, first, test.wantFirst, "query %d-%d", test.firstQuery, test.lastQuery)
			expect.EQ(t, last, test.wantLast, "query %d-%d", test.firstQuery, test.lastQuery)
		}
	}
	_, _, _, err := AlignedRefRange(cigar(sam.NewCigarOp(sam.CigarBack, 1)), 0, 0)
	require.Error(t, err)
}

func TestDecodeMismatches(t *testing.T) {
	newRecord := func(c sam.Cigar, md string) *sam.Record {
		r := &sam.Record{Name: "r", Cigar: c}
		if md != "" {
			r.AuxFields = sam.AuxFields{newAux(t, "MD", md)}
		}
		return r
	}
	m10 := cigar(sam.NewCigarOp(sam.CigarMatch, 10))
	tests := []struct {
		cigar sam.Cigar
		md    string
		want  []Mismatch
	}{
		{m10, "", nil},
		{m10, "10", nil},
		{m10, "0A9", []Mismatch{{0, 0}}},
		{m10, "3C2G3", []Mismatch{{3, 3}, {6, 6}}},
		{m10, "3CG5", []Mismatch{{3, 3}, {4, 4}}},
		{m10, "9T", []Mismatch{{9, 9}}},
		// Deleted bases advance the reference but not the query.
		{
			cigar(
				sam.NewCigarOp(sam.CigarSoftClipped, 2),
				sam.NewCigarOp(sam.CigarMatch, 4),
				sam.NewCigarOp(sam.CigarDeletion, 2),
				sam.NewCigarOp(sam.CigarMatch, 4),
			),
			"1A2^GT1C2",
			[]Mismatch{{1, 3}, {7, 7}},
		},
		// Inserted bases advance the query but not the reference.
		{
			cigar(
				sam.NewCigarOp(sam.CigarMatch, 3),
				sam.NewCigarOp(sam.CigarInsertion, 3),
				sam.NewCigarOp(sam.CigarMatch, 3),
			),
			"4N1",
			[]Mismatch{{4, 7}},
		},
	}
	for _, test := range tests {
		got, err := DecodeMismatches(newRecord(test.cigar, test.md), MDTag)
		require.NoError(t, err, test.md)
		assert.Equal(t, test.want, got, test.md)
	}
}

func TestDecodeMismatchesErrors(t *testing.T) {
	m10 := cigar(sam.NewCigarOp(sam.CigarMatch, 10))
	for _, md := range []string{"3^4", "3*6", "20A1"} {
		r := &sam.Record{Name: "r", Cigar: m10, AuxFields: sam.AuxFields{newAux(t, "MD", md)}}
		_, err := DecodeMismatches(r, MDTag)
		assert.Error(t, err, md)
	}
	r := &sam.Record{Name: "r", Cigar: m10, AuxFields: sam.AuxFields{newAux(t, "MD", int32(10))}}
	_, err := DecodeMismatches(r, MDTag)
	assert.Error(t, err)
}
