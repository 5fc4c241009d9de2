// Package interval loads and validates the capture-region list driving the
// pileup.
package interval

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

// Entry is a single capture region.  From/To are 1-based inclusive; BED
// input is 0-based half-open and converted on load.
type Entry struct {
	Chrom string
	From  uint32
	To    uint32
}

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' '
// is treated as a delimiter.
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

// LoadBED reads a BED file (optionally gzipped) and returns the region
// list plus the chromosome names in first-appearance order.  Regions must
// be grouped by chromosome and, within a chromosome, strictly ascending
// and non-overlapping.
func LoadBED(ctx context.Context, path string) (entries []Entry, chroms []string, err error) {
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
		tokens   [3][]byte
		prevTo   uint32
		lineIdx  int
		curChrom string
	)
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		lineIdx++
		line := scanner.Bytes()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		nToken := getTokens(tokens[:], line)
		if nToken == 0 {
			continue
		}
		if nToken < 3 {
			err = fmt.Errorf("interval.LoadBED: line %d has fewer than 3 columns", lineIdx)
			return
		}
		var start, end uint64
		if start, err = strconv.ParseUint(string(tokens[1]), 10, 32); err != nil {
			err = fmt.Errorf("interval.LoadBED: invalid coordinates on line %d", lineIdx)
			return
		}
		if end, err = strconv.ParseUint(string(tokens[2]), 10, 32); err != nil {
			err = fmt.Errorf("interval.LoadBED: invalid coordinates on line %d", lineIdx)
			return
		}
		ent := Entry{
			Chrom: string(tokens[0]),
			From:  uint32(start) + 1,
			To:    uint32(end),
		}
		if ent.From > ent.To {
			err = fmt.Errorf("interval.LoadBED: region on line %d has inverted coordinates", lineIdx)
			return
		}
		if ent.Chrom != curChrom {
			if seen[ent.Chrom] {
				err = fmt.Errorf("interval.LoadBED: chromosomes are not grouped (line %d)", lineIdx)
				return
			}
			seen[ent.Chrom] = true
			chroms = append(chroms, ent.Chrom)
			curChrom = ent.Chrom
			prevTo = 0
		} else if ent.From <= prevTo {
			err = fmt.Errorf("interval.LoadBED: regions out of order or overlapping (line %d)", lineIdx)
			return
		}
		prevTo = ent.To
		entries = append(entries, ent)
	}
	if err = scanner.Err(); err != nil {
		return
	}
	if len(entries) == 0 {
		err = fmt.Errorf("interval.LoadBED: %s contains no regions", path)
	}
	return
}
