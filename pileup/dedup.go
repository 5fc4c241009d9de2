package pileup

import (
	"fmt"

	"github.com/biogo/hts/sam"
)

// On-the-fly duplicate collapsing.  Within a region plus its flanking
// window, read-pairs are grouped by the CIGAR-adjusted outer endpoints of
// their template; one representative per group survives into the counting
// pass.

// template records the outer endpoints seen so far for one read name.
// Slot 1 is preferentially filled by forward-strand mates, slot 2 by
// reverse-strand mates; -1 marks an unfilled slot.
type template struct {
	name       string
	chr1, chr2 int
	pos1, pos2 int
	paired     bool
	bp         int
}

// key derives the duplicate-group key.  Paired templates use both outer
// coordinates, ordered so the key is invariant to which mate was seen
// first; single-end templates use the one filled slot.
func (t *template) key() string {
	if t.paired {
		c1, c2, p1, p2 := t.chr1, t.chr2, t.pos1, t.pos2
		if c1 == c2 {
			if p1 > p2 {
				p1, p2 = p2, p1
			}
		} else if c1 > c2 {
			c1, c2, p1, p2 = c2, c1, p2, p1
		}
		return fmt.Sprintf("%d-%d:%d-%d", c1, c2, p1, p2)
	}
	c, p := t.chr1, t.pos1
	if p < 0 {
		c, p = t.chr2, t.pos2
	}
	return fmt.Sprintf("%d:%d", c, p)
}

// collapser assembles templates from a fetch over the flanked region
// (pass 1) and selects one survivor per duplicate group (pass 2).  Group
// selection iterates templates in first-seen fetch order, which makes the
// survivor set deterministic and independent of map iteration.
type collapser struct {
	templates map[string]*template
	order     []string
}

func newCollapser() *collapser {
	return &collapser{templates: make(map[string]*template)}
}

func refSpan(cigar sam.Cigar) int {
	var span int
	for _, co := range cigar {
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch, sam.CigarSkipped, sam.CigarDeletion:
			span += co.Len()
		}
	}
	return span
}

func leadingSoftClip(cigar sam.Cigar) int {
	if len(cigar) != 0 && cigar[0].Type() == sam.CigarSoftClipped {
		return cigar[0].Len()
	}
	return 0
}

func trailingSoftClip(cigar sam.Cigar) int {
	if len(cigar) != 0 && cigar[len(cigar)-1].Type() == sam.CigarSoftClipped {
		return cigar[len(cigar)-1].Len()
	}
	return 0
}

// add incorporates one fetched record into its template.  Forward-strand
// reads contribute their 5'-most coordinate including leading soft clips;
// reverse-strand reads their 3'-most coordinate including trailing soft
// clips.  bp accumulates each mate's reference-aligned span, plus the
// trailing soft clip for reverse-strand mates, and breaks ties between
// templates sharing a group key.
func (c *collapser) add(rec *sam.Record) {
	t := c.templates[rec.Name]
	if t == nil {
		t = &template{
			name: rec.Name,
			chr1: -1, chr2: -1,
			pos1: -1, pos2: -1,
			paired: rec.Flags&sam.Paired != 0 && rec.Flags&sam.MateUnmapped == 0,
		}
		c.templates[rec.Name] = t
		c.order = append(c.order, rec.Name)
	}
	span := refSpan(rec.Cigar)
	if rec.Flags&sam.Reverse == 0 {
		outer := rec.Pos - leadingSoftClip(rec.Cigar)
		if t.pos1 < 0 {
			t.pos1, t.chr1 = outer, rec.Ref.ID()
		} else {
			t.pos2, t.chr2 = outer, rec.Ref.ID()
		}
		t.bp += span
	} else {
		clip := trailingSoftClip(rec.Cigar)
		outer := rec.Pos + span + clip
		if t.pos2 < 0 {
			t.pos2, t.chr2 = outer, rec.Ref.ID()
		} else {
			t.pos1, t.chr1 = outer, rec.Ref.ID()
		}
		t.bp += span + clip
	}
}

// survivors groups the assembled templates by key and returns the read
// names that remain: the template with the largest bp per group, the
// earliest-seen one on ties.
func (c *collapser) survivors() map[string]bool {
	groups := make(map[string]*template)
	var keys []string
	for _, name := range c.order {
		t := c.templates[name]
		k := t.key()
		best, ok := groups[k]
		if !ok {
			groups[k] = t
			keys = append(keys, k)
		} else if t.bp > best.bp {
			groups[k] = t
		}
	}
	keep := make(map[string]bool, len(keys))
	for _, k := range keys {
		keep[groups[k].name] = true
	}
	return keep
}
