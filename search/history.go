package search

import "github.com/domino14/caissa/chess"

func movesEqual(a, b chess.Move) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.From() == b.From() && a.To() == b.To() && a.Promotion() == b.Promotion()
}

// KillerTable holds the two most recent distinct quiet cutoff moves per
// ply. Cleared at the start of every search.
type KillerTable struct {
	moves [MaxPly][2]chess.Move
}

func (kt *KillerTable) Store(ply int, m chess.Move) {
	if ply >= MaxPly {
		return
	}
	k := &kt.moves[ply]
	if !movesEqual(k[0], m) {
		k[1] = k[0]
		k[0] = m
	}
}

func (kt *KillerTable) Get(ply int) [2]chess.Move {
	if ply >= MaxPly {
		return [2]chess.Move{}
	}
	return kt.moves[ply]
}

func (kt *KillerTable) Clear() {
	kt.moves = [MaxPly][2]chess.Move{}
}

const historyMax = 8192

// HistoryTable scores quiet moves by (color, origin, destination).
// Updates use a gravity rule: the depth-squared bonus is discounted by
// the entry's current magnitude, keeping every entry inside
// [-historyMax, historyMax] without explicit clamping. The table is
// never cleared mid-search; Age halves it between searches.
type HistoryTable struct {
	scores [2][chess.NumSquares][chess.NumSquares]int32
}

func (ht *HistoryTable) Score(c chess.Color, m chess.Move) int32 {
	return ht.scores[c][m.From()][m.To()]
}

func (ht *HistoryTable) gravity(c chess.Color, m chess.Move, bonus int32) {
	e := &ht.scores[c][m.From()][m.To()]
	*e += bonus - *e*abs32(bonus)/historyMax
}

// UpdateOnCutoff rewards the move that produced a beta cutoff and
// penalizes the quiet moves that were tried before it at the same node.
func (ht *HistoryTable) UpdateOnCutoff(c chess.Color, cutoff chess.Move, depth int, searchedQuiets []chess.Move) {
	bonus := int32(depth * depth)
	if bonus > historyMax {
		bonus = historyMax
	}
	ht.gravity(c, cutoff, bonus)
	for _, q := range searchedQuiets {
		ht.gravity(c, q, -bonus)
	}
}

func (ht *HistoryTable) Age() {
	for c := range ht.scores {
		for from := range ht.scores[c] {
			for to := range ht.scores[c][from] {
				ht.scores[c][from][to] /= 2
			}
		}
	}
}
