// pacbam computes per-position and per-region pileup statistics for
// aligned short reads over a set of capture regions, with optional known-
// SNP reporting and genotype calling.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gerbenvoshol/pacbam/interval"
	"github.com/gerbenvoshol/pacbam/pileup"
	"github.com/gerbenvoshol/pacbam/snp"
	"github.com/grailbio/base/log"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	opts, err := parseArgs(os.Args[1:])
	if err == nil {
		err = validateOpts(opts)
	}
	if err == nil {
		err = run(context.Background(), opts)
	}
	if err != nil {
		log.Error.Printf("pacbam: %v", err)
		os.Exit(1)
	}
}

func logArguments(opts *pileup.Opts) {
	log.Printf("BAM=%s BED=%s VCF=%s FASTA=%s MODE=%d MBQ=%d MRQ=%d MDC=%d THREADS=%d OUT=%s REGIONPERC=%f",
		opts.BAMPath, opts.BEDPath, opts.VCFPath, opts.FastaPath, opts.Mode,
		opts.MinBaseQual, opts.MinReadQual, opts.MinDepth, opts.Threads, opts.OutDir, opts.RegionPerc)
}

func run(ctx context.Context, opts *pileup.Opts) error {
	log.Printf("Load input parameters")
	logArguments(opts)
	if err := os.MkdirAll(opts.OutDir, 0777); err != nil {
		return fmt.Errorf("cannot create output directory %s: %v", opts.OutDir, err)
	}

	log.Printf("Load target regions")
	entries, bedChroms, err := interval.LoadBED(ctx, opts.BEDPath)
	if err != nil {
		return err
	}
	log.Printf("%d target regions loaded", len(entries))
	log.Printf("Loaded chromosomes: %s", strings.Join(bedChroms, ","))

	var (
		snps      []snp.Record
		vcfChroms []string
	)
	if pileup.ModeNeedsVCF(opts.Mode) {
		log.Printf("Load SNPs")
		if snps, vcfChroms, err = snp.Load(ctx, opts.VCFPath); err != nil {
			return err
		}
		log.Printf("%d snps loaded", len(snps))
		log.Printf("Loaded chromosomes: %s", strings.Join(vcfChroms, ","))
	}
	order, err := snp.NewChromOrder(vcfChroms, bedChroms)
	if err != nil {
		return err
	}

	if opts.DupTabPath != "" {
		log.Printf("Load duplicates lookup table")
		if opts.DupTable, err = pileup.LoadDupTable(ctx, opts.DupTabPath); err != nil {
			return err
		}
	}

	regions := make([]*pileup.Region, len(entries))
	for i, e := range entries {
		regions[i] = &pileup.Region{Chrom: e.Chrom, From: e.From, To: e.To}
	}
	log.Printf("Compute pileup (%d threads)", opts.Threads)
	if err := pileup.Process(regions, opts); err != nil {
		return err
	}
	if err := pileup.WriteOutputs(ctx, regions, snps, order, opts); err != nil {
		return err
	}
	log.Printf("Computation end")
	return nil
}
