package search

import (
	"sort"

	"github.com/domino14/caissa/chess"
)

// Ordering estimates are tiered: the table-hinted move first, then
// captures by most-valuable-victim/least-valuable-aggressor, then the
// two killers for the ply, then quiet moves by history score. Sorting is
// stable, so ties keep generation order and ordering is deterministic
// for identical inputs.
const (
	hashMoveOffset int32 = 1 << 22
	captureOffset  int32 = 1 << 18
	killer0Offset  int32 = 1 << 17
	killer1Offset  int32 = 1<<17 - 1
)

var pieceValues = [7]int32{0, 100, 300, 330, 500, 900, 0}

func mvvLVA(victim, attacker chess.PieceType) int32 {
	return pieceValues[victim]*8 - int32(attacker)
}

type moveSorter struct {
	estimates []int32
	moves     []chess.Move
}

func (s moveSorter) Len() int { return len(s.moves) }
func (s moveSorter) Swap(i, j int) {
	s.estimates[i], s.estimates[j] = s.estimates[j], s.estimates[i]
	s.moves[i], s.moves[j] = s.moves[j], s.moves[i]
}
func (s moveSorter) Less(i, j int) bool { return s.estimates[j] < s.estimates[i] }

func moveEstimate(pos chess.Position, m chess.Move, ttMove chess.Move, killers [2]chess.Move, hist *HistoryTable, stm chess.Color) int32 {
	if ttMove != nil && movesEqual(m, ttMove) {
		return hashMoveOffset
	}
	if victim := pos.PieceOn(m.To()); victim != chess.Empty {
		return captureOffset + mvvLVA(victim.Type(), pos.PieceOn(m.From()).Type())
	}
	if movesEqual(m, killers[0]) {
		return killer0Offset
	}
	if movesEqual(m, killers[1]) {
		return killer1Offset
	}
	return hist.Score(stm, m)
}

// orderMoves sorts moves in place for the main search.
func orderMoves(pos chess.Position, moves []chess.Move, ttMove chess.Move, killers [2]chess.Move, hist *HistoryTable) {
	estimates := make([]int32, len(moves))
	stm := pos.SideToMove()
	for i, m := range moves {
		estimates[i] = moveEstimate(pos, m, ttMove, killers, hist, stm)
	}
	sort.Stable(moveSorter{estimates: estimates, moves: moves})
}

// orderCaptures sorts captures in place by MVV-LVA for quiescence.
func orderCaptures(pos chess.Position, moves []chess.Move) {
	estimates := make([]int32, len(moves))
	for i, m := range moves {
		estimates[i] = mvvLVA(pos.PieceOn(m.To()).Type(), pos.PieceOn(m.From()).Type())
	}
	sort.Stable(moveSorter{estimates: estimates, moves: moves})
}
