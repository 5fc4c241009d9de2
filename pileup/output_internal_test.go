package pileup

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/gerbenvoshol/pacbam/snp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readOut(t *testing.T, dir, name string) string {
	b, err := ioutil.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(b)
}

func bedOnlyOrder(t *testing.T, chroms ...string) *snp.ChromOrder {
	order, err := snp.NewChromOrder(nil, chroms)
	require.NoError(t, err)
	return order
}

func TestWritePileupMode4(t *testing.T) {
	dir := t.TempDir()
	r := &Region{
		Chrom: "chr1", From: 100, To: 102,
		Seq:    []byte("TTT"),
		Counts: []PosCount{{A: 1}, {C: 1}, {G: 1}},
	}
	opts := &Opts{Mode: ModePileupOnly, BAMPath: "sample.bam", OutDir: dir}
	require.NoError(t, WriteOutputs(context.Background(), []*Region{r}, nil, bedOnlyOrder(t, "chr1"), opts))
	want := "chr\tpos\tref\tA\tC\tG\tT\taf\tcov\n" +
		"chr1\t100\tT\t1\t0\t0\t0\t1.000000\t1\n" +
		"chr1\t101\tT\t0\t1\t0\t0\t1.000000\t1\n" +
		"chr1\t102\tT\t0\t0\t1\t0\t1.000000\t1\n"
	assert.Equal(t, want, readOut(t, dir, "sample.pileup"))
}

func TestWritePileupStrandColumns(t *testing.T) {
	dir := t.TempDir()
	r := &Region{
		Chrom: "chr1", From: 50, To: 50,
		Seq:    []byte("G"),
		Counts: []PosCount{{G: 4, GRev: 1}},
	}
	opts := &Opts{Mode: ModePileupOnly, BAMPath: "s.bam", OutDir: dir, StrandBias: true}
	require.NoError(t, WriteOutputs(context.Background(), []*Region{r}, nil, bedOnlyOrder(t, "chr1"), opts))
	want := "chr\tpos\tref\tA\tC\tG\tT\taf\tcov\tArs\tCrs\tGrs\tTrs\n" +
		"chr1\t50\tG\t0\t0\t4\t0\t0.000000\t4\t0\t0\t1\t0\n"
	assert.Equal(t, want, readOut(t, dir, "s.pileup"))
}

func TestWriteMode0(t *testing.T) {
	dir := t.TempDir()
	r := &Region{
		Chrom: "chr1", From: 200, To: 201,
		Seq:     []byte("AG"),
		Counts:  []PosCount{{A: 8, G: 2}, {}},
		FromSel: 200, ToSel: 200,
		RC: 5, RCGlob: 2.5, GC: 0.5,
	}
	snps := []snp.Record{{Chrom: "chr1", Pos: 200, RSID: "rs1", Ref: 'A', Alt: 'G'}}
	order, err := snp.NewChromOrder([]string{"chr1"}, []string{"chr1"})
	require.NoError(t, err)
	opts := &Opts{
		Mode: ModeSNPsSNVsRC, BAMPath: "/data/sample.bam", OutDir: dir,
		Genotype: GenotypeFraction,
	}
	require.NoError(t, WriteOutputs(context.Background(), []*Region{r}, snps, order, opts))

	wantSNPs := "chr\tpos\trsid\tref\talt\tA\tC\tG\tT\taf\tcov\tgenotype\n" +
		"chr1\t200\trs1\tA\tG\t8\t0\t2\t0\t0.200000\t10\t0/1\n"
	assert.Equal(t, wantSNPs, readOut(t, dir, "sample.snps"))

	// The SNP position is excluded from SNV candidates and the other
	// position has no non-reference evidence.
	wantSNVs := "chr\tpos\tref\talt\tA\tC\tG\tT\taf\tcov\n"
	assert.Equal(t, wantSNVs, readOut(t, dir, "sample.pabs"))

	wantRC := "chr\tfrom\tto\tfromS\ttoS\trc\trcS\tgc\n" +
		"chr1\t200\t201\t200\t200\t2.50\t5.00\t0.50\n"
	assert.Equal(t, wantRC, readOut(t, dir, "sample.rc"))
}

func TestWriteMode1ExcludesSNPRows(t *testing.T) {
	dir := t.TempDir()
	r := &Region{
		Chrom: "chr1", From: 100, To: 101,
		Seq:    []byte("AC"),
		Counts: []PosCount{{A: 1}, {C: 2}},
	}
	snps := []snp.Record{{Chrom: "chr1", Pos: 100, RSID: "rs7", Ref: 'A', Alt: 'C'}}
	order, err := snp.NewChromOrder([]string{"chr1"}, []string{"chr1"})
	require.NoError(t, err)
	opts := &Opts{Mode: ModeSNPsSNVsPileup, BAMPath: "x.bam", OutDir: dir}
	require.NoError(t, WriteOutputs(context.Background(), []*Region{r}, snps, order, opts))
	want := "chr\tpos\tref\tA\tC\tG\tT\taf\tcov\n" +
		"chr1\t101\tC\t0\t2\t0\t0\t0.000000\t2\n"
	assert.Equal(t, want, readOut(t, dir, "x.pileup"))
	wantSNPs := "chr\tpos\trsid\tref\talt\tA\tC\tG\tT\taf\tcov\n" +
		"chr1\t100\trs7\tA\tC\t1\t0\t0\t0\t0.000000\t1\n"
	assert.Equal(t, wantSNPs, readOut(t, dir, "x.snps"))
}

func TestWriteMode5RSIDColumns(t *testing.T) {
	dir := t.TempDir()
	r := &Region{
		Chrom: "chr1", From: 100, To: 101,
		Seq:    []byte("AC"),
		Counts: []PosCount{{A: 2}, {C: 3, T: 1}},
	}
	snps := []snp.Record{{Chrom: "chr1", Pos: 101, RSID: "rs9", Ref: 'C', Alt: 'T'}}
	order, err := snp.NewChromOrder([]string{"chr1"}, []string{"chr1"})
	require.NoError(t, err)
	opts := &Opts{Mode: ModePileupAnnot, BAMPath: "y.bam", OutDir: dir}
	require.NoError(t, WriteOutputs(context.Background(), []*Region{r}, snps, order, opts))

	wantPileup := "chr\tpos\tref\tA\tC\tG\tT\taf\tcov\trsid\n" +
		"chr1\t100\tA\t2\t0\t0\t0\t0.000000\t2\t\n" +
		"chr1\t101\tC\t0\t3\t0\t1\t0.250000\t4\trs9\n"
	assert.Equal(t, wantPileup, readOut(t, dir, "y.pileup"))

	wantSNVs := "chr\tpos\tref\talt\tA\tC\tG\tT\taf\tcov\trsid\n" +
		"chr1\t101\tC\tT\t0\t3\t0\t1\t0.250000\t4\trs9\n"
	assert.Equal(t, wantSNVs, readOut(t, dir, "y.pabs"))
}

func TestWriteMode6(t *testing.T) {
	dir := t.TempDir()
	r := &Region{
		Chrom: "chr1", From: 100, To: 100,
		Seq:    []byte("A"),
		Counts: []PosCount{{A: 8, ARev: 2, Del: 1}},
	}
	opts := &Opts{Mode: ModeBaseCount, BAMPath: "z.bam", OutDir: dir, StrandBias: true}
	require.NoError(t, WriteOutputs(context.Background(), []*Region{r}, nil, bedOnlyOrder(t, "chr1"), opts))
	want := "chr\tpos\tref\tcov\tCountA\tFracA\tStrandA\tCountC\tFracC\tStrandC\tCountG\tFracG\tStrandG\tCountT\tFracT\tStrandT\n" +
		"chr1\t100\tA\t9\t8\t1.0000\t0.75\t0\t0.0000\t0.00\t0\t0.0000\t0.00\t0\t0.0000\t0.00\n"
	assert.Equal(t, want, readOut(t, dir, "z.pileup"))
}

func TestWriteSNVDepthCutoff(t *testing.T) {
	dir := t.TempDir()
	r := &Region{
		Chrom: "chr1", From: 10, To: 11,
		Seq:    []byte("AA"),
		Counts: []PosCount{{A: 1, G: 1}, {A: 5, G: 5}},
	}
	opts := &Opts{Mode: ModeSNPsSNVsPileup, BAMPath: "m.bam", OutDir: dir, MinDepth: 4}
	require.NoError(t, WriteOutputs(context.Background(), []*Region{r}, nil, bedOnlyOrder(t, "chr1"), opts))
	// Row at pos 10 has ref+alt coverage 2 < mdc and is dropped; the
	// .pileup rows are not depth-gated.
	wantSNVs := "chr\tpos\tref\talt\tA\tC\tG\tT\taf\tcov\n" +
		"chr1\t11\tA\tG\t5\t0\t5\t0\t0.500000\t10\n"
	assert.Equal(t, wantSNVs, readOut(t, dir, "m.pabs"))
	wantPileup := "chr\tpos\tref\tA\tC\tG\tT\taf\tcov\n" +
		"chr1\t10\tA\t1\t0\t1\t0\t0.500000\t2\n" +
		"chr1\t11\tA\t5\t0\t5\t0\t0.500000\t10\n"
	assert.Equal(t, wantPileup, readOut(t, dir, "m.pileup"))
}

func TestWriteSNVTieReportsN(t *testing.T) {
	dir := t.TempDir()
	r := &Region{
		Chrom: "chr1", From: 10, To: 10,
		Seq:    []byte("A"),
		Counts: []PosCount{{A: 6, C: 2, G: 2}},
	}
	opts := &Opts{Mode: ModeSNPsSNVsRC, BAMPath: "n.bam", OutDir: dir}
	require.NoError(t, WriteOutputs(context.Background(), []*Region{r}, nil, bedOnlyOrder(t, "chr1"), opts))
	wantSNVs := "chr\tpos\tref\talt\tA\tC\tG\tT\taf\tcov\n" +
		"chr1\t10\tA\tN\t6\t2\t2\t0\t0.000000\t6\n"
	assert.Equal(t, wantSNVs, readOut(t, dir, "n.pabs"))
}

func TestOutBase(t *testing.T) {
	assert.Equal(t, "sample", OutBase("/a/b/sample.bam"))
	assert.Equal(t, "sample", OutBase("sample.bam"))
	assert.Equal(t, "sample.cram", OutBase("sample.cram"))
}
