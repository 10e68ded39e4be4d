package nnue

import (
	"errors"

	"github.com/domino14/caissa/chess"
)

// ErrKingMove means the move cannot be applied as an accumulator delta.
// Moving a king reindexes every feature of that perspective, so the
// caller must Refresh from the resulting position instead.
var ErrKingMove = errors.New("nnue: king move requires a full accumulator rebuild")

// Accumulator holds the first-layer sums for one position, one vector
// per perspective. Each search worker keeps a stack of these, one per
// ply; they are never shared between goroutines.
type Accumulator struct {
	white [HiddenSize]int16
	black [HiddenSize]int16
}

// featureIndex maps a non-king piece on a square, as seen by the
// perspective whose king sits on kingSq, into the half-KP input space.
// Black's view mirrors the board vertically and swaps piece colors so
// both perspectives share one weight set.
func featureIndex(perspective chess.Color, kingSq chess.Square, pc chess.Piece, sq chess.Square) int {
	c := pc.Color()
	if perspective == chess.Black {
		kingSq = kingSq.Mirror()
		sq = sq.Mirror()
		c = c.Other()
	}
	pi := int(pc.Type()) - 1
	if c == chess.Black {
		pi += 5
	}
	return int(kingSq)*(10*chess.NumSquares) + pi*chess.NumSquares + int(sq)
}

func (m *Model) addFeature(vec *[HiddenSize]int16, idx int) {
	row := m.ftWeights[idx*HiddenSize : (idx+1)*HiddenSize]
	for i := range vec {
		vec[i] += row[i]
	}
}

func (m *Model) subFeature(vec *[HiddenSize]int16, idx int) {
	row := m.ftWeights[idx*HiddenSize : (idx+1)*HiddenSize]
	for i := range vec {
		vec[i] -= row[i]
	}
}

func (m *Model) addPiece(acc *Accumulator, wk, bk chess.Square, pc chess.Piece, sq chess.Square) {
	m.addFeature(&acc.white, featureIndex(chess.White, wk, pc, sq))
	m.addFeature(&acc.black, featureIndex(chess.Black, bk, pc, sq))
}

func (m *Model) subPiece(acc *Accumulator, wk, bk chess.Square, pc chess.Piece, sq chess.Square) {
	m.subFeature(&acc.white, featureIndex(chess.White, wk, pc, sq))
	m.subFeature(&acc.black, featureIndex(chess.Black, bk, pc, sq))
}

// Refresh rebuilds acc from scratch for pos: the bias vector plus one
// feature per non-king piece, from both perspectives.
func (m *Model) Refresh(acc *Accumulator, pos chess.Position) {
	copy(acc.white[:], m.ftBias)
	copy(acc.black[:], m.ftBias)
	wk := pos.KingSquare(chess.White)
	bk := pos.KingSquare(chess.Black)
	chess.EachPiece(pos, func(pc chess.Piece, sq chess.Square) {
		if pc.Type() == chess.King {
			return
		}
		m.addPiece(acc, wk, bk, pc, sq)
	})
}

// Update derives into dst the accumulator for the position reached by
// playing mv on pos, starting from src (the accumulator for pos): the
// mover leaves its origin, any captured piece is removed, and the mover
// or its promotion lands on the destination, in both perspectives. mv
// must be legal for pos. King moves return ErrKingMove without touching
// dst. dst and src may alias.
func (m *Model) Update(dst, src *Accumulator, pos chess.Position, mv chess.Move) error {
	mover := pos.PieceOn(mv.From())
	if mover.Type() == chess.King {
		return ErrKingMove
	}
	*dst = *src
	wk := pos.KingSquare(chess.White)
	bk := pos.KingSquare(chess.Black)

	m.subPiece(dst, wk, bk, mover, mv.From())
	if victim := pos.PieceOn(mv.To()); victim != chess.Empty {
		m.subPiece(dst, wk, bk, victim, mv.To())
	} else if mover.Type() == chess.Pawn && mv.From().File() != mv.To().File() {
		// A pawn capturing onto an empty square is en passant; the
		// victim stands on the destination file at the origin rank.
		epSq := chess.SquareOf(mv.To().File(), mv.From().Rank())
		if victim := pos.PieceOn(epSq); victim != chess.Empty {
			m.subPiece(dst, wk, bk, victim, epSq)
		}
	}

	placed := mover
	if promo := mv.Promotion(); promo != chess.NoPieceType {
		placed = chess.MakePiece(mover.Color(), promo)
	}
	m.addPiece(dst, wk, bk, placed, mv.To())
	return nil
}
