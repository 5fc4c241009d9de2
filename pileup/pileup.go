// Package pileup computes per-position base counts and per-region
// statistics over aligned reads inside a set of capture regions.
package pileup

import (
	"github.com/biogo/hts/sam"
)

// Execution modes.
const (
	// ModeSNPsSNVsRC emits .snps, .pabs and .rc.
	ModeSNPsSNVsRC = 0
	// ModeSNPsSNVsPileup adds a per-base .pileup (excluding SNP rows).
	ModeSNPsSNVsPileup = 1
	// ModeSNPsOnly emits .snps only.
	ModeSNPsOnly = 2
	// ModeRCOnly emits .rc only.
	ModeRCOnly = 3
	// ModePileupOnly emits a per-base .pileup for all positions.
	ModePileupOnly = 4
	// ModePileupAnnot emits .pileup and .pabs with rsID annotation.
	ModePileupAnnot = 5
	// ModeBaseCount emits the extended per-base .pileup with fractions
	// and forward-strand ratios.
	ModeBaseCount = 6
)

// ModeNeedsVCF reports whether the mode consumes the known-SNP list.
func ModeNeedsVCF(mode int) bool {
	switch mode {
	case ModeSNPsSNVsRC, ModeSNPsSNVsPileup, ModeSNPsOnly, ModePileupAnnot:
		return true
	}
	return false
}

func modeNeedsRC(mode int) bool {
	switch mode {
	case ModeSNPsSNVsRC, ModeSNPsSNVsPileup, ModeRCOnly:
		return true
	}
	return false
}

func modeNeedsPileupFile(mode int) bool {
	switch mode {
	case ModeSNPsSNVsPileup, ModePileupOnly, ModePileupAnnot, ModeBaseCount:
		return true
	}
	return false
}

func modeNeedsSNVFile(mode int) bool {
	switch mode {
	case ModeSNPsSNVsRC, ModeSNPsSNVsPileup, ModePileupAnnot:
		return true
	}
	return false
}

func modeNeedsSNPFile(mode int) bool {
	switch mode {
	case ModeSNPsSNVsRC, ModeSNPsSNVsPileup, ModeSNPsOnly:
		return true
	}
	return false
}

// Opts carries every knob of a pileup run.  It is read-only once the
// workers start.
type Opts struct {
	BAMPath    string
	BEDPath    string
	VCFPath    string
	FastaPath  string
	OutDir     string
	DupTabPath string

	Mode        int
	Threads     int
	MinBaseQual int // mbq: bases below this quality are not counted
	MinReadQual int // mrq: reads below this MAPQ are not counted
	MinDepth    int // mdc: .snps/.pabs rows below this coverage are dropped
	RegionPerc  float64
	StrandBias  bool
	Dedup       bool
	DedupWindow int
	Genotype    GenotypeModel
	DupTable    *DupTable
}

// PosCount tallies the pileup at a single reference position.  A/C/G/T
// count accepted read bases on both strands; the Rev counters are the
// reverse-strand portion and are maintained only when strand accounting
// is enabled.  Del counts reads whose alignment deletes this position.
type PosCount struct {
	A, C, G, T             uint32
	ARev, CRev, GRev, TRev uint32
	Del                    uint32
}

// Sum returns the accepted base count across the four bases.
func (c *PosCount) Sum() uint32 {
	return c.A + c.C + c.G + c.T
}

// Count returns the tally of the given uppercase base, or 0 for any other
// byte.
func (c *PosCount) Count(base byte) uint32 {
	switch base {
	case 'A':
		return c.A
	case 'C':
		return c.C
	case 'G':
		return c.G
	case 'T':
		return c.T
	}
	return 0
}

func (c *PosCount) countRev(base byte) uint32 {
	switch base {
	case 'A':
		return c.ARev
	case 'C':
		return c.CRev
	case 'G':
		return c.GRev
	case 'T':
		return c.TRev
	}
	return 0
}

// AltSum returns the total count of bases other than refBase, or 0 when
// refBase is not one of A/C/G/T.
func (c *PosCount) AltSum(refBase byte) uint32 {
	switch refBase {
	case 'A':
		return c.C + c.G + c.T
	case 'C':
		return c.A + c.G + c.T
	case 'G':
		return c.A + c.C + c.T
	case 'T':
		return c.A + c.C + c.G
	}
	return 0
}

// FindAlternative returns the non-reference base with the strictly
// largest count and that count.  When two or more non-reference bases tie
// for the maximum the alternative is reported as 'N' with count 0.
func (c *PosCount) FindAlternative(refBase byte) (byte, uint32) {
	var (
		alt   byte
		max   uint32
		nMax  int
		first = true
	)
	for _, b := range [4]byte{'A', 'C', 'G', 'T'} {
		if b == refBase {
			continue
		}
		v := c.Count(b)
		switch {
		case first:
			alt, max, nMax, first = b, v, 1, false
		case v > max:
			alt, max, nMax = b, v, 1
		case v == max:
			nMax++
		}
	}
	if nMax > 1 {
		return 'N', 0
	}
	return alt, max
}

// Region is a capture interval plus the fields its owning worker computes.
// From/To are 1-based inclusive.  Counts holds one entry per position in
// [From, To].
type Region struct {
	Chrom string
	From  uint32
	To    uint32

	Seq     []byte
	Counts  []PosCount
	FromSel uint32
	ToSel   uint32
	RC      float64
	RCGlob  float64
	GC      float64
}

// badReadMask is the record-level filter applied to counted bases: the
// conventional pileup exclusion set.
const badReadMask = sam.Unmapped | sam.Secondary | sam.QCFail | sam.Duplicate

// seqNibble returns the 4-bit BAM encoding (A=1, C=2, G=4, T=8, other
// values ambiguity codes) of the read base at query offset i.
func seqNibble(s sam.Seq, i int) byte {
	d := byte(s.Seq[i>>1])
	if i&1 == 0 {
		return d >> 4
	}
	return d & 0xf
}

func (c *PosCount) incBase(val byte) {
	switch val {
	case 1:
		c.A++
	case 2:
		c.C++
	case 4:
		c.G++
	case 8:
		c.T++
	}
}

func (c *PosCount) incBaseRev(val byte) {
	switch val {
	case 1:
		c.ARev++
	case 2:
		c.CRev++
	case 4:
		c.GRev++
	case 8:
		c.TRev++
	}
}

// regionPileup accumulates counts for the 0-based half-open reference
// window [beg, end).
type regionPileup struct {
	beg, end   int
	counts     []PosCount
	mbq        int
	mrq        int
	strandBias bool
}

// addRecord walks the record's CIGAR and pushes its aligned bases into the
// counters.  A base is counted iff the record is mapped, primary, not a
// duplicate, not QC-failed, has MAPQ >= mrq, and the base quality is >=
// mbq.  Positions the alignment deletes increment Del for every fetched
// record, with no quality or flag gate.
func (p *regionPileup) addRecord(rec *sam.Record) {
	recOK := int(rec.MapQ) >= p.mrq && rec.Flags&badReadMask == 0
	rev := rec.Flags&sam.Reverse != 0
	refPos := rec.Pos
	readPos := 0
	for _, co := range rec.Cigar {
		n := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for i := 0; i < n; i++ {
				pos := refPos + i
				if pos < p.beg {
					continue
				}
				if pos >= p.end {
					break
				}
				if !recOK || int(rec.Qual[readPos+i]) < p.mbq {
					continue
				}
				cnt := &p.counts[pos-p.beg]
				val := seqNibble(rec.Seq, readPos+i)
				cnt.incBase(val)
				if p.strandBias && rev {
					cnt.incBaseRev(val)
				}
			}
			refPos += n
			readPos += n
		case sam.CigarDeletion:
			for i := 0; i < n; i++ {
				pos := refPos + i
				if pos < p.beg {
					continue
				}
				if pos >= p.end {
					break
				}
				p.counts[pos-p.beg].Del++
			}
			refPos += n
		case sam.CigarSkipped:
			refPos += n
		case sam.CigarInsertion, sam.CigarSoftClipped:
			readPos += n
		default:
			// Hard clips and padding consume neither reference nor read.
		}
	}
}
