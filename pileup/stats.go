package pileup

// Per-region read-count signal and GC content.

// computeStats fills the region's peak-window endpoints, read-count
// scalars and GC fraction from its counter array and reference slice.
//
// The window width is floor((To-From)*perc) positions.  A zero width
// collapses both scalars to the counts at the region's first position.
// Otherwise the window slides one position at a time over offsets 0 to
// (To-From)-width, so the region's last position is never inside a window,
// and the leftmost window with the maximum total wins.  RC is the per-base
// mean inside that window; RCGlob is the total over all To-From+1
// positions divided by To-From.
func (r *Region) computeStats(perc float64) {
	length := int(r.To - r.From)
	w := int(float64(length) * perc)
	if w == 0 {
		sum := r.Counts[0].Sum()
		r.RC = float64(sum)
		r.RCGlob = float64(sum)
		r.FromSel = r.From
		r.ToSel = r.To
	} else {
		var total uint64
		for i := range r.Counts {
			total += uint64(r.Counts[i].Sum())
		}
		var winSum uint64
		for i := 0; i < w; i++ {
			winSum += uint64(r.Counts[i].Sum())
		}
		best := winSum
		bestOff := 0
		for off := 1; off <= length-w; off++ {
			winSum += uint64(r.Counts[off+w-1].Sum())
			winSum -= uint64(r.Counts[off-1].Sum())
			if winSum > best {
				best = winSum
				bestOff = off
			}
		}
		r.FromSel = r.From + uint32(bestOff)
		r.ToSel = r.From + uint32(bestOff+w-1)
		r.RC = float64(best) / float64(w)
		r.RCGlob = float64(total) / float64(length)
	}

	gcLen := length
	if gcLen == 0 {
		gcLen = 1
	}
	r.GC = gcFraction(r.Seq[:gcLen])
}

// gcFraction returns the fraction of G/C bases in the uppercased slice.
func gcFraction(seq []byte) float64 {
	var count int
	for _, b := range seq {
		if b == 'G' || b == 'C' {
			count++
		}
	}
	return float64(count) / float64(len(seq))
}
