package pileup

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/gerbenvoshol/pacbam/snp"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// Mode-driven output.  All files are tab-separated with a single header
// line and are named after the BAM basename.  The writer walks the region
// list in BED order on one goroutine after the workers join, so output is
// identical for any thread count.

// OutBase returns the output-file base name: the BAM basename with a
// trailing .bam stripped.
func OutBase(bamPath string) string {
	return strings.TrimSuffix(filepath.Base(bamPath), ".bam")
}

// WriteOutputs emits every output file the mode calls for.
func WriteOutputs(ctx context.Context, regions []*Region, snps []snp.Record, order *snp.ChromOrder, opts *Opts) (err error) {
	base := OutBase(opts.BAMPath)
	if opts.Mode != ModeRCOnly {
		log.Printf("Output single base pileup statistics files in folder %s", opts.OutDir)
		if err = writePositional(ctx, regions, snps, order, opts, base); err != nil {
			return
		}
	}
	if modeNeedsRC(opts.Mode) {
		log.Printf("Output regions statistics file in folder %s", opts.OutDir)
		if err = writeRegionRC(ctx, regions, opts, base); err != nil {
			return
		}
	}
	return
}

// writeRegionRC emits the per-region read-count table (.rc).
func writeRegionRC(ctx context.Context, regions []*Region, opts *Opts, base string) (err error) {
	var dst file.File
	if dst, err = file.Create(ctx, filepath.Join(opts.OutDir, base+".rc")); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, dst, &err)
	w := tsv.NewWriter(dst.Writer(ctx))
	w.WriteString("chr\tfrom\tto\tfromS\ttoS\trc\trcS\tgc")
	if err = w.EndLine(); err != nil {
		return
	}
	for _, r := range regions {
		w.WriteString(r.Chrom)
		w.WriteUint32(r.From)
		w.WriteUint32(r.To)
		w.WriteUint32(r.FromSel)
		w.WriteUint32(r.ToSel)
		w.WriteFloat64(r.RCGlob, 'f', 2)
		w.WriteFloat64(r.RC, 'f', 2)
		w.WriteFloat64(r.GC, 'f', 2)
		if err = w.EndLine(); err != nil {
			return
		}
	}
	return w.Flush()
}

type posWriters struct {
	snps *tsv.Writer // .snps: pileup at known SNP sites
	snvs *tsv.Writer // .pabs: SNV candidates
	all  *tsv.Writer // .pileup: per-base rows
}

func writePositional(ctx context.Context, regions []*Region, snps []snp.Record, order *snp.ChromOrder, opts *Opts, base string) (err error) {
	mode := opts.Mode
	var w posWriters
	if modeNeedsSNPFile(mode) {
		var dst file.File
		if dst, err = file.Create(ctx, filepath.Join(opts.OutDir, base+".snps")); err != nil {
			return
		}
		defer file.CloseAndReport(ctx, dst, &err)
		w.snps = tsv.NewWriter(dst.Writer(ctx))
	}
	if modeNeedsSNVFile(mode) {
		var dst file.File
		if dst, err = file.Create(ctx, filepath.Join(opts.OutDir, base+".pabs")); err != nil {
			return
		}
		defer file.CloseAndReport(ctx, dst, &err)
		w.snvs = tsv.NewWriter(dst.Writer(ctx))
	}
	if modeNeedsPileupFile(mode) {
		var dst file.File
		if dst, err = file.Create(ctx, filepath.Join(opts.OutDir, base+".pileup")); err != nil {
			return
		}
		defer file.CloseAndReport(ctx, dst, &err)
		w.all = tsv.NewWriter(dst.Writer(ctx))
	}

	if err = w.writeHeaders(opts); err != nil {
		return
	}

	mdc := uint32(opts.MinDepth)
	si := 0
	for _, r := range regions {
		rRank := order.Rank(r.Chrom)
		for i := range r.Counts {
			pos := r.From + uint32(i)
			cnt := &r.Counts[i]
			refBase := r.Seq[i]

			for si < len(snps) && (order.Rank(snps[si].Chrom) < rRank || (snps[si].Chrom == r.Chrom && snps[si].Pos < pos)) {
				si++
			}
			isSNP := si < len(snps) && snps[si].Chrom == r.Chrom && snps[si].Pos == pos

			if mode == ModePileupAnnot {
				rsid := ""
				if isSNP {
					rsid = snps[si].RSID
				}
				if err = writePileupRow(w.all, r.Chrom, pos, refBase, cnt, false, true, rsid); err != nil {
					return
				}
				if cnt.AltSum(refBase) > 0 {
					if err = writeSNVRow(w.snvs, r.Chrom, pos, refBase, cnt, mdc, opts.StrandBias, true, rsid); err != nil {
						return
					}
				}
			}

			if isSNP {
				if modeNeedsSNPFile(mode) {
					if err = writeSNPRow(w.snps, r.Chrom, &snps[si], cnt, mdc, opts.Genotype); err != nil {
						return
					}
				}
			} else {
				switch mode {
				case ModeSNPsSNVsPileup, ModePileupOnly:
					if err = writePileupRow(w.all, r.Chrom, pos, refBase, cnt, opts.StrandBias, false, ""); err != nil {
						return
					}
				case ModeBaseCount:
					if err = writeBaseCountRow(w.all, r.Chrom, pos, refBase, cnt); err != nil {
						return
					}
				}
				if mode == ModeSNPsSNVsRC || mode == ModeSNPsSNVsPileup {
					if cnt.AltSum(refBase) > 0 {
						if err = writeSNVRow(w.snvs, r.Chrom, pos, refBase, cnt, mdc, opts.StrandBias, false, ""); err != nil {
							return
						}
					}
				}
			}
		}
	}

	for _, tw := range []*tsv.Writer{w.snps, w.snvs, w.all} {
		if tw == nil {
			continue
		}
		if err = tw.Flush(); err != nil {
			return
		}
	}
	return
}

func (w *posWriters) writeHeaders(opts *Opts) (err error) {
	if w.snps != nil {
		h := "chr\tpos\trsid\tref\talt\tA\tC\tG\tT\taf\tcov"
		if opts.Genotype != GenotypeNone {
			h += "\tgenotype"
		}
		w.snps.WriteString(h)
		if err = w.snps.EndLine(); err != nil {
			return
		}
	}
	if w.snvs != nil {
		h := "chr\tpos\tref\talt\tA\tC\tG\tT\taf\tcov"
		if opts.StrandBias {
			h += "\tArs\tCrs\tGrs\tTrs"
		}
		if opts.Mode == ModePileupAnnot {
			h += "\trsid"
		}
		w.snvs.WriteString(h)
		if err = w.snvs.EndLine(); err != nil {
			return
		}
	}
	if w.all != nil {
		var h string
		switch opts.Mode {
		case ModeBaseCount:
			h = "chr\tpos\tref\tcov\tCountA\tFracA\tStrandA\tCountC\tFracC\tStrandC\tCountG\tFracG\tStrandG\tCountT\tFracT\tStrandT"
		case ModePileupAnnot:
			h = "chr\tpos\tref\tA\tC\tG\tT\taf\tcov\trsid"
		default:
			h = "chr\tpos\tref\tA\tC\tG\tT\taf\tcov"
			if opts.StrandBias {
				h += "\tArs\tCrs\tGrs\tTrs"
			}
		}
		w.all.WriteString(h)
		if err = w.all.EndLine(); err != nil {
			return
		}
	}
	return
}

// writePileupRow emits one per-base row: counts, non-reference allelic
// fraction and coverage, optionally followed by the reverse-strand counts
// and/or an rsID column.
func writePileupRow(w *tsv.Writer, chrom string, pos uint32, refBase byte, cnt *PosCount, strand, withRSID bool, rsid string) error {
	cov := cnt.Sum()
	var af float64
	if cov > 0 {
		af = float64(cnt.AltSum(refBase)) / float64(cov)
	}
	w.WriteString(chrom)
	w.WriteUint32(pos)
	w.WriteByte(refBase)
	w.WriteUint32(cnt.A)
	w.WriteUint32(cnt.C)
	w.WriteUint32(cnt.G)
	w.WriteUint32(cnt.T)
	w.WriteFloat64(af, 'f', 6)
	w.WriteUint32(cov)
	if strand {
		w.WriteUint32(cnt.ARev)
		w.WriteUint32(cnt.CRev)
		w.WriteUint32(cnt.GRev)
		w.WriteUint32(cnt.TRev)
	}
	if withRSID {
		w.WriteString(rsid)
	}
	return w.EndLine()
}

// writeSNVRow emits an SNV-candidate row when its ref+alt coverage meets
// the depth cutoff.  The alternative is the non-reference base with the
// strictly largest count, or N on ties.
func writeSNVRow(w *tsv.Writer, chrom string, pos uint32, refBase byte, cnt *PosCount, mdc uint32, strand, withRSID bool, rsid string) error {
	altBase, altCnt := cnt.FindAlternative(refBase)
	cov := cnt.Count(refBase) + altCnt
	if cov < mdc {
		return nil
	}
	var af float64
	if cov > 0 {
		af = float64(altCnt) / float64(cov)
	}
	w.WriteString(chrom)
	w.WriteUint32(pos)
	w.WriteByte(refBase)
	w.WriteByte(altBase)
	w.WriteUint32(cnt.A)
	w.WriteUint32(cnt.C)
	w.WriteUint32(cnt.G)
	w.WriteUint32(cnt.T)
	w.WriteFloat64(af, 'f', 6)
	w.WriteUint32(cov)
	if strand {
		w.WriteUint32(cnt.ARev)
		w.WriteUint32(cnt.CRev)
		w.WriteUint32(cnt.GRev)
		w.WriteUint32(cnt.TRev)
	}
	if withRSID {
		w.WriteString(rsid)
	}
	return w.EndLine()
}

// writeSNPRow emits the pileup at a known SNP site when its ref+alt
// coverage meets the depth cutoff.
func writeSNPRow(w *tsv.Writer, chrom string, s *snp.Record, cnt *PosCount, mdc uint32, model GenotypeModel) error {
	ref := cnt.Count(s.Ref)
	alt := cnt.Count(s.Alt)
	cov := ref + alt
	if cov < mdc {
		return nil
	}
	var af float64
	if cov > 0 {
		af = float64(alt) / float64(cov)
	}
	w.WriteString(chrom)
	w.WriteUint32(s.Pos)
	w.WriteString(s.RSID)
	w.WriteByte(s.Ref)
	w.WriteByte(s.Alt)
	w.WriteUint32(cnt.A)
	w.WriteUint32(cnt.C)
	w.WriteUint32(cnt.G)
	w.WriteUint32(cnt.T)
	w.WriteFloat64(af, 'f', 6)
	w.WriteUint32(cov)
	if model != GenotypeNone {
		w.WriteString(callGenotype(model, ref, alt))
	}
	return w.EndLine()
}

// writeBaseCountRow emits the extended per-base row: total coverage
// including deletions, then per-base count, fraction of the accepted
// pileup, and forward-strand fraction.
func writeBaseCountRow(w *tsv.Writer, chrom string, pos uint32, refBase byte, cnt *PosCount) error {
	covG := cnt.Sum()
	w.WriteString(chrom)
	w.WriteUint32(pos)
	w.WriteByte(refBase)
	w.WriteUint32(covG + cnt.Del)
	for _, b := range [4]byte{'A', 'C', 'G', 'T'} {
		count := cnt.Count(b)
		var frac, strandFrac float64
		if covG > 0 {
			frac = float64(count) / float64(covG)
		}
		if count > 0 {
			strandFrac = float64(count-cnt.countRev(b)) / float64(count)
		}
		w.WriteUint32(count)
		w.WriteFloat64(frac, 'f', 4)
		w.WriteFloat64(strandFrac, 'f', 2)
	}
	return w.EndLine()
}
