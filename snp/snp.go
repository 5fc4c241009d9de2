// Package snp loads the known-SNP list and derives the unified chromosome
// order shared by the region list and the SNP list.
package snp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/klauspost/compress/gzip"
)

// Record is a known single-nucleotide variant site.  Pos is 1-based.
type Record struct {
	Chrom string
	Pos   uint32
	RSID  string
	Ref   byte
	Alt   byte
}

func validBase(b []byte) (byte, bool) {
	if len(b) != 1 {
		return 0, false
	}
	switch b[0] {
	case 'A', 'C', 'G', 'T':
		return b[0], true
	}
	return 0, false
}

func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// Load reads a VCF-style SNP list: tab-separated chrom, 1-based position,
// rsID, single-base ref, single-base alt.  Entries must be grouped by
// chromosome and strictly ascending within each chromosome.  Returns the
// records plus the chromosome names in first-appearance order.
func Load(ctx context.Context, path string) (records []Record, chroms []string, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if e := infile.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		var gz *gzip.Reader
		if gz, err = gzip.NewReader(reader); err != nil {
			return
		}
		reader = gz
	}

	seen := make(map[string]bool)
	var (
		tokens   [5][]byte
		prevPos  uint32
		lineIdx  int
		curChrom string
	)
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		lineIdx++
		line := scanner.Bytes()
		if len(line) == 0 || line[0] == '#' || line[0] <= ' ' {
			continue
		}
		nToken := getTokens(tokens[:], line)
		if nToken < 5 {
			err = fmt.Errorf("snp.Load: line %d has fewer than 5 columns", lineIdx)
			return
		}
		var pos uint64
		if pos, err = strconv.ParseUint(string(tokens[1]), 10, 32); err != nil {
			err = fmt.Errorf("snp.Load: invalid position on line %d", lineIdx)
			return
		}
		rec := Record{
			Chrom: string(tokens[0]),
			Pos:   uint32(pos),
			RSID:  string(tokens[2]),
		}
		var ok bool
		if rec.Ref, ok = validBase(tokens[3]); !ok {
			err = fmt.Errorf("snp.Load: reference allele on line %d is not a single A/C/G/T base", lineIdx)
			return
		}
		if rec.Alt, ok = validBase(tokens[4]); !ok {
			err = fmt.Errorf("snp.Load: alternative allele on line %d is not a single A/C/G/T base", lineIdx)
			return
		}
		if rec.Chrom != curChrom {
			if seen[rec.Chrom] {
				err = fmt.Errorf("snp.Load: chromosomes are not grouped (line %d)", lineIdx)
				return
			}
			seen[rec.Chrom] = true
			chroms = append(chroms, rec.Chrom)
			curChrom = rec.Chrom
			prevPos = 0
		} else if rec.Pos <= prevPos {
			err = fmt.Errorf("snp.Load: entries are not positionally ordered (line %d)", lineIdx)
			return
		}
		prevPos = rec.Pos
		records = append(records, rec)
	}
	if err = scanner.Err(); err != nil {
		return
	}
	if len(records) == 0 {
		err = fmt.Errorf("snp.Load: %s contains no entries", path)
	}
	return
}

// ChromOrder is the unified chromosome order over the SNP and region
// lists.  It is immutable after construction and safe to share across
// workers.
type ChromOrder struct {
	names []string
	rank  map[string]int
}

// NewChromOrder merges the VCF and BED chromosome lists into one total
// order, preserving each list's relative order and interleaving
// chromosomes that appear in only one.  A pair of chromosomes whose
// relative order differs between the two lists is a configuration error.
func NewChromOrder(vcfChroms, bedChroms []string) (*ChromOrder, error) {
	bedRank := make(map[string]int, len(bedChroms))
	for i, c := range bedChroms {
		bedRank[c] = i
	}
	last := 0
	for _, c := range vcfChroms {
		if j, ok := bedRank[c]; ok {
			if j < last {
				return nil, fmt.Errorf("snp.NewChromOrder: chromosomes in BED and VCF files are not in the same order")
			}
			last = j
		}
	}

	o := &ChromOrder{rank: make(map[string]int)}
	bi := 0
	for _, c := range vcfChroms {
		j, ok := bedRank[c]
		if !ok {
			o.append(c)
			continue
		}
		for ; bi <= j; bi++ {
			o.append(bedChroms[bi])
		}
	}
	for ; bi < len(bedChroms); bi++ {
		o.append(bedChroms[bi])
	}
	return o, nil
}

func (o *ChromOrder) append(name string) {
	if _, ok := o.rank[name]; ok {
		return
	}
	o.rank[name] = len(o.names)
	o.names = append(o.names, name)
}

// Names returns the unified order.
func (o *ChromOrder) Names() []string { return o.names }

// Rank returns the position of chrom in the unified order.  Every
// chromosome appearing in either source list has a rank; anything else
// maps to -1.
func (o *ChromOrder) Rank(chrom string) int {
	r, ok := o.rank[chrom]
	if !ok {
		return -1
	}
	return r
}
