package search

import (
	"math"
	"sort"
	"sync/atomic"

	"lukechampine.com/frand"

	"github.com/domino14/caissa/chess"
	"github.com/domino14/caissa/nnue"
)

// rootMove pairs a root move with the score from the last iteration that
// searched it, used to re-order the root between iterations.
type rootMove struct {
	m     chess.Move
	score Score
}

// worker carries the per-thread state of one search thread: its own copy
// of the root move list, killer/history/correction tables, and an
// accumulator stack indexed by ply. Workers share only the transposition
// table, the model, and the node counter on the Solver.
type worker struct {
	id     int
	solver *Solver

	rootMoves []rootMove
	killers   KillerTable
	history   HistoryTable
	corr      CorrectionHistory
	accs      [MaxPly + 1]nnue.Accumulator
	seldepth  int
	stop      atomic.Bool
}

// prepare readies the worker for a new search from pos. Killers are
// per-search; history and correction persist, halved so stale structure
// fades. The root move list is pre-ordered with captures first so the
// first iteration has something better than generation order.
func (w *worker) prepare(pos chess.Position) {
	w.killers.Clear()
	w.history.Age()
	w.corr.Age()
	w.seldepth = 0
	w.stop.Store(false)
	w.solver.model.Refresh(&w.accs[0], pos)

	moves := pos.LegalMoves()
	orderMoves(pos, moves, nil, [2]chess.Move{}, &w.history)
	w.rootMoves = make([]rootMove, len(moves))
	for i, m := range moves {
		w.rootMoves[i] = rootMove{m: m}
	}
}

func (w *worker) stopped() bool {
	return w.stop.Load()
}

// staticEval is the corrected static evaluation for the node at ply: the
// network output for the accumulator on the stack, adjusted by the
// correction history for this pawn structure, kept clear of the mate
// bands so it can never be mistaken for a forced mate.
func (w *worker) staticEval(pos chess.Position, ply int) Score {
	stm := pos.SideToMove()
	v := Score(w.solver.model.Evaluate(&w.accs[ply], stm)) + w.corr.Get(stm, pos.PawnHash())
	if v >= mateBound {
		v = mateBound - 1
	} else if v <= -mateBound {
		v = -(mateBound - 1)
	}
	return v
}

func (w *worker) rootMoveList() []chess.Move {
	ms := make([]chess.Move, len(w.rootMoves))
	for i, rm := range w.rootMoves {
		ms[i] = rm.m
	}
	return ms
}

// rootTTMove resolves a packed table hint against the root move list,
// returning nil when no legal root move matches.
func (w *worker) rootTTMove(hint packedMove) chess.Move {
	if hint == 0 {
		return nil
	}
	for _, rm := range w.rootMoves {
		if packMove(rm.m) == hint {
			return rm.m
		}
	}
	return nil
}

func (w *worker) sortRootMoves() {
	sort.SliceStable(w.rootMoves, func(i, j int) bool {
		return w.rootMoves[i].score > w.rootMoves[j].score
	})
}

// reorderForHelper perturbs the root order for helper thread t between
// iterations so the threads diverge instead of searching the same tree:
// the first helper sorts by score, the second keeps its order, low
// threads shuffle everything, and high threads shuffle the top third and
// the rest separately so a strong candidate stays near the front.
func (w *worker) reorderForHelper(t int) {
	switch {
	case t == 1:
		w.sortRootMoves()
	case t == 2:
		// keep the current order
	case t <= 7:
		frand.Shuffle(len(w.rootMoves), func(i, j int) {
			w.rootMoves[i], w.rootMoves[j] = w.rootMoves[j], w.rootMoves[i]
		})
	default:
		topfew := len(w.rootMoves) / 3
		frand.Shuffle(topfew, func(i, j int) {
			w.rootMoves[i], w.rootMoves[j] = w.rootMoves[j], w.rootMoves[i]
		})
		rest := w.rootMoves[topfew:]
		frand.Shuffle(len(rest), func(i, j int) {
			rest[i], rest[j] = rest[j], rest[i]
		})
	}
}

func isQuiet(pos chess.Position, m chess.Move) bool {
	return pos.PieceOn(m.To()) == chess.Empty && m.Promotion() == chess.NoPieceType
}

func (w *worker) negamax(pos chess.Position, depth, ply int, α, β Score, allowNull bool, pv *PVLine) Score {
	s := w.solver
	s.nodes.Add(1)
	if ply > w.seldepth {
		w.seldepth = ply
	}
	if ply >= MaxPly {
		// The accumulator stack ends here.
		return w.staticEval(pos, ply)
	}

	origAlpha := α
	hash := pos.Hash()
	var ttHint packedMove

	if entry, ok := s.ttable.probe(hash); ok {
		ttHint = entry.move()
		if entry.depth() >= depth {
			ttScore := Score(entry.score).FromTT(ply)
			switch entry.flag() {
			case boundExact:
				if ply > 0 {
					return ttScore
				}
				// At the root the table hint stands in for a whole
				// search, so take the cutoff only if it resolves to a
				// legal root move the caller can actually play.
				if m := w.rootTTMove(ttHint); m != nil {
					pv.Update(m, PVLine{}, ttScore)
					return ttScore
				}
			case boundLower:
				if ttScore >= β {
					return ttScore
				}
				if ttScore > α {
					α = ttScore
				}
			case boundUpper:
				if ttScore <= α {
					return ttScore
				}
			}
		}
	}

	if w.stopped() {
		// Unwind without polluting the table.
		return DrawScore
	}

	inCheck := pos.InCheck()
	stm := pos.SideToMove()

	if allowNull && !inCheck && depth >= 3 && pos.HasNonPawnMaterial(stm) {
		r := 2
		if depth > 6 {
			r = 3
		}
		nullDepth := depth - 1 - r
		if nullDepth < 0 {
			nullDepth = 0
		}
		w.accs[ply+1] = w.accs[ply]
		var nullPV PVLine
		nullScore := -w.negamax(pos.MakeNull(), nullDepth, ply+1, -β, -β+1, false, &nullPV)
		if nullScore >= β {
			return β
		}
	}

	moves := pos.LegalMoves()
	if len(moves) == 0 {
		if inCheck {
			return MatedIn(ply)
		}
		return DrawScore
	}

	if depth <= 0 {
		return w.quiescence(pos, ply, α, β, pv)
	}

	killers := w.killers.Get(ply)
	if ply == 0 {
		moves = w.rootMoveList()
	} else {
		orderMoves(pos, moves, matchPackedMove(moves, ttHint), killers, &w.history)
	}

	best := -Infinity
	var bestMove chess.Move
	var childPV PVLine
	var searchedQuiets []chess.Move

	for i, m := range moves {
		child := pos.MakeMove(m)
		s.ttable.Prefetch(child.Hash())

		isCapture := pos.PieceOn(m.To()) != chess.Empty
		isPromotion := m.Promotion() != chess.NoPieceType
		quiet := !isCapture && !isPromotion
		isKiller := movesEqual(m, killers[0]) || movesEqual(m, killers[1])
		givesCheck := child.InCheck()

		if err := s.model.Update(&w.accs[ply+1], &w.accs[ply], pos, m); err != nil {
			s.model.Refresh(&w.accs[ply+1], child)
		}

		extension := 0
		if inCheck {
			extension = 1
		}
		childDepth := depth - 1 + extension
		reduced := false
		if i >= 4 && depth >= 3 && quiet && !inCheck && !givesCheck && !isKiller {
			reduction := int(math.Log(float64(depth)) * math.Log(float64(i+1)) / 2.5)
			if reduction > depth-2 {
				reduction = depth - 2
			}
			if reduction < 1 {
				reduction = 1
			}
			childDepth = depth - 1 - reduction
			if childDepth < 1 {
				childDepth = 1
			}
			reduced = true
		}

		childPV.Clear()
		value := -w.negamax(child, childDepth, ply+1, -β, -α, true, &childPV)
		if reduced && value > α && !w.stopped() {
			// The reduction was too optimistic; repeat at full depth.
			childPV.Clear()
			value = -w.negamax(child, depth-1, ply+1, -β, -α, true, &childPV)
		}
		if w.stopped() {
			break
		}

		if ply == 0 {
			w.rootMoves[i].score = value
		}

		if value > best {
			best = value
			bestMove = m
			pv.Update(m, childPV, value)
			if value > α {
				α = value
				if α >= β {
					if quiet {
						w.killers.Store(ply, m)
						w.history.UpdateOnCutoff(stm, m, depth, searchedQuiets)
					}
					break
				}
			}
		}
		if quiet {
			searchedQuiets = append(searchedQuiets, m)
		}
	}

	if w.stopped() {
		return best
	}

	var flag uint8
	switch {
	case best >= β:
		flag = boundLower
	case best > origAlpha:
		flag = boundExact
	default:
		flag = boundUpper
	}

	// Fold the gap between the search result and the static eval into
	// the correction history, but only when the node says something
	// about evaluation: quiet best move, not in check, and a bound that
	// does not already agree with the static eval's side of the fence.
	if !inCheck && (bestMove == nil || isQuiet(pos, bestMove)) {
		staticEval := w.staticEval(pos, ply)
		if !(flag == boundLower && best <= staticEval) &&
			!(flag == boundUpper && best >= staticEval) {
			w.corr.Update(stm, pos.PawnHash(), depth, best-staticEval)
		}
	}

	s.ttable.store(hash, packMove(bestMove), best.ToTT(ply), depth, flag)
	return best
}

// quiescence resolves captures until the position is quiet enough for
// the static evaluation to stand. It never writes to the transposition
// table and never recurses when no capture exists.
func (w *worker) quiescence(pos chess.Position, ply int, α, β Score, pv *PVLine) Score {
	s := w.solver
	s.nodes.Add(1)
	if ply > w.seldepth {
		w.seldepth = ply
	}

	standPat := w.staticEval(pos, ply)
	if standPat >= β {
		return β
	}
	if standPat > α {
		α = standPat
	}
	if ply >= MaxPly {
		return standPat
	}

	var captures []chess.Move
	for _, m := range pos.LegalMoves() {
		if pos.PieceOn(m.To()) != chess.Empty {
			captures = append(captures, m)
		}
	}
	if len(captures) == 0 {
		return α
	}
	orderCaptures(pos, captures)

	best := standPat
	var childPV PVLine
	for _, m := range captures {
		if w.stopped() {
			break
		}
		child := pos.MakeMove(m)
		if err := s.model.Update(&w.accs[ply+1], &w.accs[ply], pos, m); err != nil {
			s.model.Refresh(&w.accs[ply+1], child)
		}
		childPV.Clear()
		value := -w.quiescence(child, ply+1, -β, -α, &childPV)
		if value > best {
			best = value
			pv.Update(m, childPV, value)
			if value > α {
				α = value
				if α >= β {
					break
				}
			}
		}
	}
	return best
}
