package pileup

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRef(t *testing.T, name string, length int) *sam.Reference {
	ref, err := sam.NewReference(name, "", "", length, nil, nil)
	require.NoError(t, err)
	_, err = sam.NewHeader(nil, []*sam.Reference{ref})
	require.NoError(t, err)
	return ref
}

func newTestRecord(t *testing.T, ref *sam.Reference, name string, pos int, mapQ byte, cigar, seq string, qual []byte, flags sam.Flags) *sam.Record {
	co, err := sam.ParseCigar([]byte(cigar))
	require.NoError(t, err)
	rec, err := sam.NewRecord(name, ref, nil, pos, -1, 0, mapQ, co, []byte(seq), qual, nil)
	require.NoError(t, err)
	rec.Flags = flags
	return rec
}

func newPairedRecord(t *testing.T, ref *sam.Reference, name string, pos, matePos int, mapQ byte, cigar, seq string, qual []byte, flags sam.Flags) *sam.Record {
	co, err := sam.ParseCigar([]byte(cigar))
	require.NoError(t, err)
	rec, err := sam.NewRecord(name, ref, ref, pos, matePos, 0, mapQ, co, []byte(seq), qual, nil)
	require.NoError(t, err)
	rec.Flags = flags
	return rec
}

func TestAddRecordSimpleMatch(t *testing.T) {
	ref := newTestRef(t, "chr1", 1000)
	// One forward read ACG at 1-based position 100 inside region 100-102.
	rec := newTestRecord(t, ref, "r1", 99, 60, "3M", "ACG", []byte{30, 30, 30}, 0)
	p := &regionPileup{beg: 99, end: 102, counts: make([]PosCount, 3), mbq: 20, mrq: 1}
	p.addRecord(rec)
	assert.Equal(t, uint32(1), p.counts[0].A)
	assert.Equal(t, uint32(1), p.counts[1].C)
	assert.Equal(t, uint32(1), p.counts[2].G)
	assert.Equal(t, uint32(1), p.counts[0].Sum())
	assert.Equal(t, uint32(1), p.counts[1].Sum())
	assert.Equal(t, uint32(1), p.counts[2].Sum())
}

func TestAddRecordDeletion(t *testing.T) {
	ref := newTestRef(t, "chr1", 1000)
	rec := newTestRecord(t, ref, "r1", 99, 60, "1M1D1M", "AC", []byte{30, 30}, 0)
	p := &regionPileup{beg: 99, end: 102, counts: make([]PosCount, 3), mbq: 20, mrq: 1}
	p.addRecord(rec)
	assert.Equal(t, uint32(1), p.counts[0].A)
	assert.Equal(t, uint32(1), p.counts[1].Del)
	assert.Equal(t, uint32(0), p.counts[1].Sum())
	assert.Equal(t, uint32(1), p.counts[2].C)
}

func TestAddRecordRefSkip(t *testing.T) {
	ref := newTestRef(t, "chr1", 1000)
	rec := newTestRecord(t, ref, "r1", 99, 60, "1M1N1M", "AC", []byte{30, 30}, 0)
	p := &regionPileup{beg: 99, end: 102, counts: make([]PosCount, 3), mbq: 20, mrq: 1}
	p.addRecord(rec)
	assert.Equal(t, uint32(1), p.counts[0].A)
	assert.Equal(t, uint32(0), p.counts[1].Sum())
	assert.Equal(t, uint32(0), p.counts[1].Del)
	assert.Equal(t, uint32(1), p.counts[2].C)
}

func TestAddRecordBaseQuality(t *testing.T) {
	ref := newTestRef(t, "chr1", 1000)
	// Quality exactly at mbq passes; one below is dropped.
	rec := newTestRecord(t, ref, "r1", 99, 60, "3M", "ACG", []byte{20, 19, 21}, 0)
	p := &regionPileup{beg: 99, end: 102, counts: make([]PosCount, 3), mbq: 20, mrq: 1}
	p.addRecord(rec)
	assert.Equal(t, uint32(1), p.counts[0].A)
	assert.Equal(t, uint32(0), p.counts[1].C)
	assert.Equal(t, uint32(1), p.counts[2].G)
}

func TestAddRecordMapQuality(t *testing.T) {
	ref := newTestRef(t, "chr1", 1000)
	rec := newTestRecord(t, ref, "r1", 99, 9, "3M", "ACG", []byte{30, 30, 30}, 0)
	p := &regionPileup{beg: 99, end: 102, counts: make([]PosCount, 3), mbq: 20, mrq: 10}
	p.addRecord(rec)
	for i := range p.counts {
		assert.Equal(t, uint32(0), p.counts[i].Sum())
	}
}

func TestAddRecordBadFlags(t *testing.T) {
	ref := newTestRef(t, "chr1", 1000)
	for _, flags := range []sam.Flags{sam.Unmapped, sam.Secondary, sam.QCFail, sam.Duplicate} {
		p := &regionPileup{beg: 99, end: 102, counts: make([]PosCount, 3), mbq: 20, mrq: 1}
		p.addRecord(newTestRecord(t, ref, "r1", 99, 60, "3M", "ACG", []byte{30, 30, 30}, flags))
		for i := range p.counts {
			assert.Equal(t, uint32(0), p.counts[i].Sum(), "flags %v", flags)
		}
	}
	// Supplementary alignments are not part of the exclusion mask.
	p := &regionPileup{beg: 99, end: 102, counts: make([]PosCount, 3), mbq: 20, mrq: 1}
	p.addRecord(newTestRecord(t, ref, "r1", 99, 60, "3M", "ACG", []byte{30, 30, 30}, sam.Supplementary))
	assert.Equal(t, uint32(1), p.counts[0].A)
}

func TestAddRecordDeletionIgnoresFilters(t *testing.T) {
	ref := newTestRef(t, "chr1", 1000)
	rec := newTestRecord(t, ref, "r1", 99, 0, "1M1D1M", "AC", []byte{2, 2}, sam.Duplicate)
	p := &regionPileup{beg: 99, end: 102, counts: make([]PosCount, 3), mbq: 20, mrq: 1}
	p.addRecord(rec)
	assert.Equal(t, uint32(0), p.counts[0].Sum())
	assert.Equal(t, uint32(1), p.counts[1].Del)
}

func TestAddRecordStrand(t *testing.T) {
	ref := newTestRef(t, "chr1", 1000)
	p := &regionPileup{beg: 99, end: 100, counts: make([]PosCount, 1), mbq: 20, mrq: 1, strandBias: true}
	for i := 0; i < 6; i++ {
		p.addRecord(newTestRecord(t, ref, "f", 99, 60, "1M", "A", []byte{30}, 0))
	}
	for i := 0; i < 2; i++ {
		p.addRecord(newTestRecord(t, ref, "r", 99, 60, "1M", "A", []byte{30}, sam.Reverse))
	}
	assert.Equal(t, uint32(8), p.counts[0].A)
	assert.Equal(t, uint32(2), p.counts[0].ARev)
}

func TestAddRecordStrandDisabled(t *testing.T) {
	ref := newTestRef(t, "chr1", 1000)
	p := &regionPileup{beg: 99, end: 100, counts: make([]PosCount, 1), mbq: 20, mrq: 1}
	p.addRecord(newTestRecord(t, ref, "r", 99, 60, "1M", "A", []byte{30}, sam.Reverse))
	assert.Equal(t, uint32(1), p.counts[0].A)
	assert.Equal(t, uint32(0), p.counts[0].ARev)
}

func TestAddRecordSoftClipAndWindowClamp(t *testing.T) {
	ref := newTestRef(t, "chr1", 1000)
	// Soft clip consumes read bases only; counting stays inside [beg, end).
	rec := newTestRecord(t, ref, "r1", 100, 60, "2S4M", "TTACGT", []byte{30, 30, 30, 30, 30, 30}, 0)
	p := &regionPileup{beg: 101, end: 103, counts: make([]PosCount, 2), mbq: 20, mrq: 1}
	p.addRecord(rec)
	// Aligned bases are A@100 C@101 G@102 T@103; only 101 and 102 land.
	assert.Equal(t, uint32(1), p.counts[0].C)
	assert.Equal(t, uint32(1), p.counts[1].G)
	assert.Equal(t, uint32(1), p.counts[0].Sum()+p.counts[0].Del)
}

func TestFindAlternative(t *testing.T) {
	cnt := &PosCount{A: 8, G: 2}
	alt, n := cnt.FindAlternative('A')
	assert.Equal(t, byte('G'), alt)
	assert.Equal(t, uint32(2), n)

	// Two non-reference bases tied for the maximum.
	cnt = &PosCount{A: 8, G: 2, T: 2}
	alt, n = cnt.FindAlternative('A')
	assert.Equal(t, byte('N'), alt)
	assert.Equal(t, uint32(0), n)

	// All zero counts tie as well.
	cnt = &PosCount{A: 8}
	alt, n = cnt.FindAlternative('A')
	assert.Equal(t, byte('N'), alt)
	assert.Equal(t, uint32(0), n)

	// Non-ACGT reference has no alternative-allele sum.
	cnt = &PosCount{A: 1, C: 2}
	assert.Equal(t, uint32(0), cnt.AltSum('N'))
}

func TestAltSum(t *testing.T) {
	cnt := &PosCount{A: 1, C: 2, G: 3, T: 4}
	assert.Equal(t, uint32(9), cnt.AltSum('A'))
	assert.Equal(t, uint32(8), cnt.AltSum('C'))
	assert.Equal(t, uint32(7), cnt.AltSum('G'))
	assert.Equal(t, uint32(6), cnt.AltSum('T'))
	assert.Equal(t, uint32(10), cnt.Sum())
}
