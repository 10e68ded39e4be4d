package search

import "github.com/domino14/caissa/chess"

// CorrectionHistory tracks, per side to move and pawn structure, how far
// static evaluation has historically landed from the search-derived
// score, and supplies a bounded correction for future static evals.
// Entries persist across a search and are halved when a new one starts.
type CorrectionHistory struct {
	table [2][correctionTableSize]int16
}

const (
	// correctionTableSize is a power of two; pawn fingerprints index by
	// modulo.
	correctionTableSize = 16384
	correctionMax       = 1024
)

// Get returns the stored correction for the pawn structure, zero when
// the slot was never updated.
func (ch *CorrectionHistory) Get(c chess.Color, pawnHash uint64) Score {
	return Score(ch.table[c][pawnHash&(correctionTableSize-1)])
}

// Update folds diff = searchScore - staticEval at the given depth into
// the entry with a gravity rule: the depth-weighted bonus is clamped to
// a quarter of the bound, and the pull toward the bonus is discounted by
// the entry's current magnitude, so repeated large updates converge on
// ±correctionMax instead of overflowing.
func (ch *CorrectionHistory) Update(c chess.Color, pawnHash uint64, depth int, diff Score) {
	idx := pawnHash & (correctionTableSize - 1)
	bonus := min(max(int32(diff)*int32(depth), -correctionMax/4), correctionMax/4)
	old := int32(ch.table[c][idx])
	v := old + bonus - old*abs32(bonus)/correctionMax
	ch.table[c][idx] = int16(min(max(v, -correctionMax), correctionMax))
}

// Age halves every entry, biasing the table toward recent information.
// Called once per new search.
func (ch *CorrectionHistory) Age() {
	for c := range ch.table {
		for i := range ch.table[c] {
			ch.table[c][i] /= 2
		}
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
