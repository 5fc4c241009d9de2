package pileup

import (
	"bufio"
	"context"
	"fmt"
	"strconv"

	"github.com/grailbio/base/file"
)

// DupTable is the coverage-stratified duplicate-threshold table accepted
// via duptab=.  It is parsed and validated for command-line compatibility;
// the counting path does not consult it.
type DupTable struct {
	rows []dupRow
}

type dupRow struct {
	covLow, covHigh int
	threshold       int
}

// LoadDupTable reads a tab-separated table of coverage intervals and
// duplicate thresholds: cov_low, cov_high, threshold per line, with
// cov_low < cov_high and all values nonnegative.
func LoadDupTable(ctx context.Context, path string) (tab *DupTable, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if e := infile.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()

	tab = &DupTable{}
	lineIdx := 0
	scanner := bufio.NewScanner(infile.Reader(ctx))
	for scanner.Scan() {
		lineIdx++
		line := scanner.Bytes()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		var tokens [3][]byte
		if getDupTokens(tokens[:], line) < 3 {
			return nil, fmt.Errorf("pileup.LoadDupTable: line %d has fewer than 3 columns", lineIdx)
		}
		var row dupRow
		if row.covLow, err = strconv.Atoi(string(tokens[0])); err != nil {
			return nil, fmt.Errorf("pileup.LoadDupTable: invalid value on line %d", lineIdx)
		}
		if row.covHigh, err = strconv.Atoi(string(tokens[1])); err != nil {
			return nil, fmt.Errorf("pileup.LoadDupTable: invalid value on line %d", lineIdx)
		}
		if row.threshold, err = strconv.Atoi(string(tokens[2])); err != nil {
			return nil, fmt.Errorf("pileup.LoadDupTable: invalid value on line %d", lineIdx)
		}
		if row.covLow < 0 || row.covHigh < 0 || row.threshold < 0 {
			return nil, fmt.Errorf("pileup.LoadDupTable: negative value on line %d", lineIdx)
		}
		if row.covLow >= row.covHigh {
			return nil, fmt.Errorf("pileup.LoadDupTable: line %d does not define a coverage interval", lineIdx)
		}
		tab.rows = append(tab.rows, row)
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	if len(tab.rows) == 0 {
		return nil, fmt.Errorf("pileup.LoadDupTable: %s contains no rows", path)
	}
	return tab, nil
}

func getDupTokens(tokens [][]byte, curLine []byte) int {
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

// Threshold returns the duplicate threshold for the given coverage.
// Coverages below the first interval take the first threshold, coverages
// at or past the last interval take the last.
func (t *DupTable) Threshold(cov int) int {
	if cov < t.rows[0].covLow {
		return t.rows[0].threshold
	}
	if cov >= t.rows[len(t.rows)-1].covHigh {
		return t.rows[len(t.rows)-1].threshold
	}
	for _, row := range t.rows {
		if cov >= row.covLow && cov < row.covHigh {
			return row.threshold
		}
	}
	return t.rows[len(t.rows)-1].threshold
}
