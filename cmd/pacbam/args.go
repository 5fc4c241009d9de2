package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gerbenvoshol/pacbam/pileup"
)

func defaultOpts() *pileup.Opts {
	return &pileup.Opts{
		Mode:        pileup.ModePileupOnly,
		Threads:     1,
		MinBaseQual: 20,
		MinReadQual: 1,
		MinDepth:    0,
		OutDir:      "./",
		RegionPerc:  0.5,
		DedupWindow: 1000,
	}
}

// parseArgs interprets the order-independent key=value command line.
// Value-free flags must match their token exactly.
func parseArgs(args []string) (*pileup.Opts, error) {
	opts := defaultOpts()
	for _, arg := range args {
		key, val, hasVal := strings.Cut(arg, "=")
		if !hasVal {
			switch arg {
			case "strandbias":
				opts.StrandBias = true
			case "dedup":
				opts.Dedup = true
			case "genotype":
				opts.Genotype = pileup.GenotypeFraction
			case "genotypeBT":
				opts.Genotype = pileup.GenotypeBinomial
			default:
				return nil, fmt.Errorf("input parameter %q not valid", arg)
			}
			continue
		}
		var err error
		switch key {
		case "bam":
			opts.BAMPath = val
		case "bed":
			opts.BEDPath = val
		case "vcf":
			opts.VCFPath = val
		case "fasta":
			opts.FastaPath = val
		case "duptab":
			opts.DupTabPath = val
		case "out":
			opts.OutDir = val
		case "mode":
			opts.Mode, err = strconv.Atoi(val)
		case "threads":
			opts.Threads, err = strconv.Atoi(val)
		case "mbq":
			opts.MinBaseQual, err = strconv.Atoi(val)
		case "mrq":
			opts.MinReadQual, err = strconv.Atoi(val)
		case "mdc":
			opts.MinDepth, err = strconv.Atoi(val)
		case "dedupwin":
			opts.DedupWindow, err = strconv.Atoi(val)
		case "regionperc":
			opts.RegionPerc, err = strconv.ParseFloat(val, 64)
		default:
			return nil, fmt.Errorf("input parameter %q not valid", arg)
		}
		if err != nil {
			return nil, fmt.Errorf("input parameter %q not valid", arg)
		}
	}
	if opts.Mode == pileup.ModeBaseCount {
		// The Strand columns need the reverse-strand tallies.
		opts.StrandBias = true
	}
	return opts, nil
}

func fileReadable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

func validateOpts(opts *pileup.Opts) error {
	if opts.Threads <= 0 {
		return fmt.Errorf("the number of threads is not valid")
	}
	if opts.Mode < 0 || opts.Mode > 6 {
		return fmt.Errorf("mode should be in 0,1,2,3,4,5,6")
	}
	if opts.MinBaseQual < 0 {
		return fmt.Errorf("minimum base quality should be positive")
	}
	if opts.MinReadQual < 0 {
		return fmt.Errorf("minimum read quality should be positive")
	}
	if opts.MinDepth < 0 {
		return fmt.Errorf("minimum depth of coverage should be positive")
	}
	if opts.RegionPerc < 0 || opts.RegionPerc > 1 {
		return fmt.Errorf("region fraction should be in the range [0,1]")
	}
	if opts.DedupWindow < 0 {
		return fmt.Errorf("duplicates filtering window should be positive")
	}
	if opts.BAMPath == "" || !fileReadable(opts.BAMPath) {
		return fmt.Errorf("file BAM does not exist or is not specified")
	}
	if opts.BEDPath == "" || !fileReadable(opts.BEDPath) {
		return fmt.Errorf("file BED does not exist or is not specified")
	}
	if !strings.HasSuffix(opts.BEDPath, ".bed") && !strings.HasSuffix(opts.BEDPath, ".bed.gz") {
		return fmt.Errorf("a file BED should be specified")
	}
	if opts.FastaPath == "" || !fileReadable(opts.FastaPath) {
		return fmt.Errorf("file FASTA does not exist or is not specified")
	}
	if pileup.ModeNeedsVCF(opts.Mode) {
		if opts.VCFPath == "" || !fileReadable(opts.VCFPath) {
			return fmt.Errorf("selected mode requires the specification of a VCF file")
		}
		if !strings.HasSuffix(opts.VCFPath, ".vcf") {
			return fmt.Errorf("a file VCF should be specified (no compressed files are admitted)")
		}
	}
	if opts.DupTabPath != "" && !fileReadable(opts.DupTabPath) {
		return fmt.Errorf("file duplicates table does not exist")
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
 pacbam bam=string bed=string vcf=string fasta=string [mode=int] [threads=int] [mbq=int] [mrq=int] [mdc=int] [out=string] [dedup] [dedupwin=int] [regionperc=float] [strandbias] [genotype|genotypeBT]

bam=string
 NGS data file in BAM format (.bai index required)
bed=string
 List of target captured regions in BED format
vcf=string
 List of SNP positions in VCF format (no compressed files are admitted)
fasta=string
 Reference genome FASTA format file (.fai index required)
mode=int
 Execution mode [0=RC+SNPs+SNVs|1=RC+SNPs+SNVs+PILEUP(not including SNPs)|2=SNPs|3=RC|4=PILEUP|5=PILEUP+SNVs annotated|6=BAMCOUNT]
 (default 4)
dedup
 On-the-fly duplicates filtering
dedupwin=int
 Flanking region around captured regions to consider in duplicates filtering (default 1000)
threads=int
 Number of threads used (if available) for the pileup computation (default 1)
regionperc=float
 Fraction of the captured region to consider for maximum peak signal characterization (default 0.5)
mbq=int
 Min base quality (default 20)
mrq=int
 Min read quality (default 1)
mdc=int
 Min depth of coverage that a position should have to be considered in the output (default 0)
strandbias
 Print strand bias count information
genotype
 Print genotype calls for input SNPs using an allelic fraction cutoff at 20%%
genotypeBT
 Print genotype calls for input SNPs using a binomial test with significance at 1%%
out=string
 Path of output directory (default is the current directory)
`)
}
