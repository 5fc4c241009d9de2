package pileup

import (
	"fmt"
	"os"

	"github.com/gerbenvoshol/pacbam/encoding/fasta"
	"github.com/grailbio/base/traverse"
	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
)

// Region-parallel scheduling.  The region list is split into contiguous
// chunks, one per worker; each worker opens its own BAM reader, BAM index
// and FASTA handle, since none of those are safe to share across
// goroutines.  A worker writes only to the regions of its own chunk, so
// no locking is needed, and the writer runs after all workers join.

// Process runs the pileup over regions with opts.Threads workers.
func Process(regions []*Region, opts *Opts) error {
	n := opts.Threads
	if n > len(regions) {
		n = len(regions)
	}
	if n < 1 {
		n = 1
	}
	per := (len(regions) + n - 1) / n
	return traverse.Each(n, func(jobIdx int) error {
		start := jobIdx * per
		if start >= len(regions) {
			return nil
		}
		end := start + per
		if end > len(regions) {
			end = len(regions)
		}
		w, err := newWorker(opts)
		if err != nil {
			return err
		}
		defer w.close()
		for _, r := range regions[start:end] {
			if err := w.processRegion(r); err != nil {
				return err
			}
		}
		return nil
	})
}

type worker struct {
	opts *Opts
	bamf *os.File
	br   *bam.Reader
	idx  *bam.Index
	fa   *fasta.Indexed
	refs map[string]*sam.Reference
}

func newWorker(opts *Opts) (_ *worker, err error) {
	w := &worker{opts: opts}
	defer func() {
		if err != nil {
			w.close()
		}
	}()
	if w.bamf, err = os.Open(opts.BAMPath); err != nil {
		return nil, err
	}
	if w.br, err = bam.NewReader(w.bamf, 1); err != nil {
		return nil, fmt.Errorf("pileup: cannot open BAM %s: %v", opts.BAMPath, err)
	}
	idxf, err := os.Open(opts.BAMPath + ".bai")
	if err != nil {
		return nil, fmt.Errorf("pileup: BAM index not available for %s", opts.BAMPath)
	}
	w.idx, err = bam.ReadIndex(idxf)
	if e := idxf.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return nil, fmt.Errorf("pileup: cannot read BAM index for %s: %v", opts.BAMPath, err)
	}
	if w.fa, err = fasta.Open(opts.FastaPath); err != nil {
		return nil, err
	}
	w.refs = make(map[string]*sam.Reference)
	for _, ref := range w.br.Header().Refs() {
		w.refs[ref.Name()] = ref
	}
	return w, nil
}

func (w *worker) close() {
	if w.br != nil {
		_ = w.br.Close()
	}
	if w.bamf != nil {
		_ = w.bamf.Close()
	}
	if w.fa != nil {
		_ = w.fa.Close()
	}
}

// fetch streams every indexed record overlapping the 0-based half-open
// window [beg, end) on ref through fn, in file order.
func (w *worker) fetch(ref *sam.Reference, beg, end int, fn func(*sam.Record)) error {
	chunks, err := w.idx.Chunks(ref, beg, end)
	if err != nil {
		// The index has no coverage for this window; nothing to fetch.
		return nil
	}
	it, err := bam.NewIterator(w.br, chunks)
	if err != nil {
		return err
	}
	for it.Next() {
		rec := it.Record()
		if rec.Pos >= end {
			break
		}
		if rec.End() <= beg {
			continue
		}
		fn(rec)
	}
	return it.Close()
}

// processRegion fetches the reference slice, allocates the counter array
// and drives the pileup for one region, optionally collapsing duplicates
// first.
func (w *worker) processRegion(r *Region) error {
	ref := w.refs[r.Chrom]
	if ref == nil {
		return fmt.Errorf("pileup: region %s:%d-%d not compatible with BAM header", r.Chrom, r.From, r.To)
	}
	beg := int(r.From) - 1
	end := int(r.To)
	seq, err := w.fa.Get(r.Chrom, int64(beg), int64(end))
	if err != nil {
		return fmt.Errorf("pileup: region %s:%d-%d not compatible with FASTA: %v", r.Chrom, r.From, r.To, err)
	}
	r.Seq = seq
	r.Counts = make([]PosCount, end-beg)

	p := &regionPileup{
		beg:        beg,
		end:        end,
		counts:     r.Counts,
		mbq:        w.opts.MinBaseQual,
		mrq:        w.opts.MinReadQual,
		strandBias: w.opts.StrandBias,
	}
	if w.opts.Dedup {
		coll := newCollapser()
		wbeg := beg - w.opts.DedupWindow
		if wbeg < 0 {
			wbeg = 0
		}
		wend := end + w.opts.DedupWindow
		if wend > ref.Len() {
			wend = ref.Len()
		}
		if err := w.fetch(ref, wbeg, wend, coll.add); err != nil {
			return err
		}
		keep := coll.survivors()
		err = w.fetch(ref, beg, end, func(rec *sam.Record) {
			if keep[rec.Name] {
				p.addRecord(rec)
			}
		})
	} else {
		err = w.fetch(ref, beg, end, p.addRecord)
	}
	if err != nil {
		return err
	}

	if modeNeedsRC(w.opts.Mode) {
		r.computeStats(w.opts.RegionPerc)
	}
	if w.opts.Mode == ModeRCOnly {
		// The writer only needs the scalar statistics in this mode.
		r.Seq = nil
		r.Counts = nil
	}
	return nil
}
