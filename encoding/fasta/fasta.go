// Package fasta provides random access to reference sequences in an
// uncompressed FASTA file through its samtools faidx index (.fai).
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

type faiEntry struct {
	length    int64
	offset    int64
	lineBases int64
	lineWidth int64
}

// Indexed is a .fai-indexed FASTA reader.  It is not safe for concurrent
// use; every pileup worker owns its own handle.
type Indexed struct {
	r       io.ReadSeeker
	f       *os.File
	entries map[string]faiEntry
	names   []string
	buf     []byte
}

// Open opens the FASTA file at path together with its index at path+".fai".
func Open(path string) (*Indexed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	faif, err := os.Open(path + ".fai")
	if err != nil {
		_ = f.Close()
		return nil, errors.E("fasta.Open: missing FASTA index", err)
	}
	defer faif.Close() // nolint: errcheck
	idx, err := NewIndexed(f, faif)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	idx.f = f
	return idx, nil
}

// NewIndexed creates an Indexed reader from a FASTA stream and its fai
// index content.
func NewIndexed(fa io.ReadSeeker, fai io.Reader) (*Indexed, error) {
	idx := &Indexed{
		r:       fa,
		entries: make(map[string]faiEntry),
	}
	scanner := bufio.NewScanner(fai)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 5 {
			return nil, errors.E(fmt.Sprintf("fasta: malformed fai line %q", line))
		}
		var (
			ent faiEntry
			err error
		)
		if ent.length, err = strconv.ParseInt(cols[1], 10, 64); err != nil {
			return nil, errors.E("fasta: malformed fai length", err)
		}
		if ent.offset, err = strconv.ParseInt(cols[2], 10, 64); err != nil {
			return nil, errors.E("fasta: malformed fai offset", err)
		}
		if ent.lineBases, err = strconv.ParseInt(cols[3], 10, 64); err != nil {
			return nil, errors.E("fasta: malformed fai line-bases", err)
		}
		if ent.lineWidth, err = strconv.ParseInt(cols[4], 10, 64); err != nil {
			return nil, errors.E("fasta: malformed fai line-width", err)
		}
		if ent.lineBases <= 0 || ent.lineWidth < ent.lineBases {
			return nil, errors.E(fmt.Sprintf("fasta: inconsistent fai geometry for %s", cols[0]))
		}
		if _, ok := idx.entries[cols[0]]; ok {
			return nil, errors.E(fmt.Sprintf("fasta: duplicate fai entry %s", cols[0]))
		}
		idx.entries[cols[0]] = ent
		idx.names = append(idx.names, cols[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Close releases the underlying file when the reader was built with Open.
func (f *Indexed) Close() error {
	if f.f == nil {
		return nil
	}
	return f.f.Close()
}

// SeqNames returns the sequence names in index order.
func (f *Indexed) SeqNames() []string { return f.names }

// Len returns the length of the named sequence.
func (f *Indexed) Len(name string) (int64, bool) {
	ent, ok := f.entries[name]
	if !ok {
		return 0, false
	}
	return ent.length, true
}

// Get returns the uppercased bases of seq [start, end), 0-based.  The
// returned slice is owned by the caller.
func (f *Indexed) Get(name string, start, end int64) ([]byte, error) {
	ent, ok := f.entries[name]
	if !ok {
		return nil, fmt.Errorf("fasta: sequence %s not in index", name)
	}
	if start < 0 || end < start {
		return nil, fmt.Errorf("fasta: invalid range [%d, %d) for %s", start, end, name)
	}
	if end > ent.length {
		return nil, fmt.Errorf("fasta: range [%d, %d) past end of %s (%d bases)", start, end, name, ent.length)
	}
	want := end - start
	if want == 0 {
		return []byte{}, nil
	}

	// Byte offset of the first requested base, accounting for the
	// separator bytes terminating every lineBases-sized line.
	sepBytes := ent.lineWidth - ent.lineBases
	offset := ent.offset + start + sepBytes*(start/ent.lineBases)
	firstLineBases := ent.lineBases - start%ent.lineBases
	var seps int64
	if want > firstLineBases {
		seps = 1 + (want-firstLineBases)/ent.lineBases
	}
	span := want + seps*sepBytes

	if _, err := f.r.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	if int64(cap(f.buf)) < span {
		f.buf = make([]byte, span)
	}
	f.buf = f.buf[:span]
	n, err := io.ReadFull(f.r, f.buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}

	out := make([]byte, 0, want)
	linePos := start % ent.lineBases
	for _, b := range f.buf[:n] {
		if linePos < ent.lineBases {
			out = append(out, upperTable[b])
		}
		linePos++
		if linePos == ent.lineWidth {
			linePos = 0
		}
	}
	if int64(len(out)) < want {
		return nil, fmt.Errorf("fasta: truncated read for %s:[%d, %d) (stale index?)", name, start, end)
	}
	return out[:want], nil
}

var upperTable = buildUpperTable()

func buildUpperTable() (t [256]byte) {
	for i := range t {
		c := byte(i)
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		t[i] = c
	}
	return
}
