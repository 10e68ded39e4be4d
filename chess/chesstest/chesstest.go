// Package chesstest provides scripted implementations of chess.Position
// and chess.Move for exercising the search and evaluation layers without
// a board implementation. Positions are node graphs: every legal move is
// declared together with the position it leads to, so tests can shape
// game trees (mates, stalemates, capture chains) exactly.
package chesstest

import (
	"fmt"
	"sync/atomic"

	"github.com/domino14/caissa/chess"
)

type scriptedMove struct {
	from  chess.Square
	to    chess.Square
	promo chess.PieceType
}

func (m scriptedMove) From() chess.Square         { return m.from }
func (m scriptedMove) To() chess.Square           { return m.to }
func (m scriptedMove) Promotion() chess.PieceType { return m.promo }
func (m scriptedMove) String() string             { return chess.MoveString(m) }

// Sq parses algebraic square notation ("e4"). It panics on malformed
// input; it is meant for test literals.
func Sq(s string) chess.Square {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		panic("chesstest: bad square literal " + s)
	}
	return chess.SquareOf(int(s[0]-'a'), int(s[1]-'1'))
}

// M parses coordinate notation ("e2e4", "e7e8q") into a move. It panics
// on malformed input; it is meant for test literals.
func M(s string) chess.Move {
	if len(s) != 4 && len(s) != 5 {
		panic("chesstest: bad move literal " + s)
	}
	m := scriptedMove{from: Sq(s[:2]), to: Sq(s[2:4])}
	if len(s) == 5 {
		switch s[4] {
		case 'n':
			m.promo = chess.Knight
		case 'b':
			m.promo = chess.Bishop
		case 'r':
			m.promo = chess.Rook
		case 'q':
			m.promo = chess.Queen
		default:
			panic("chesstest: bad promotion in move literal " + s)
		}
	}
	return m
}

func sameMove(a, b chess.Move) bool {
	return a.From() == b.From() && a.To() == b.To() && a.Promotion() == b.Promotion()
}

// Recorder counts interface calls across a whole scripted tree. Tests use
// it to assert, for example, that the null move was never tried.
type Recorder struct {
	MovesMade atomic.Int64
	NullMoves atomic.Int64
}

type edge struct {
	m     chess.Move
	child *Position
}

// Position is a scripted chess.Position. Build one with New, place pieces
// with Put, and wire children with AddMove, Apply, or SetNull.
type Position struct {
	name     string
	hash     uint64
	pawnHash uint64
	stm      chess.Color
	inCheck  bool
	pieces   [chess.NumSquares]chess.Piece
	edges    []edge
	null     *Position
	rec      *Recorder
}

var hashCounter uint64

// splitmix-style mixer over a counter keeps scripted fingerprints
// deterministic across runs.
func nextHash() uint64 {
	hashCounter++
	z := hashCounter * 0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// New creates an empty scripted position with white to move, not in
// check, and fresh deterministic fingerprints.
func New(name string) *Position {
	return &Position{
		name:     name,
		hash:     nextHash(),
		pawnHash: nextHash(),
		rec:      &Recorder{},
	}
}

func (p *Position) Name() string        { return p.name }
func (p *Position) Recorder() *Recorder { return p.rec }

// Put places a piece. It returns p for chaining.
func (p *Position) Put(sq string, pc chess.Piece) *Position {
	p.pieces[Sq(sq)] = pc
	return p
}

func (p *Position) SetSideToMove(c chess.Color) *Position {
	p.stm = c
	return p
}

func (p *Position) SetInCheck(v bool) *Position {
	p.inCheck = v
	return p
}

func (p *Position) SetHash(h uint64) *Position {
	p.hash = h
	return p
}

func (p *Position) SetPawnHash(h uint64) *Position {
	p.pawnHash = h
	return p
}

// AddMove declares mv as legal, leading to child. Moves are enumerated in
// declaration order. The child inherits p's recorder. If the origin
// square is empty, a pawn of the side to move is placed there so the
// position stays consistent with its declared moves; a pawn keeps
// HasNonPawnMaterial false for boards that never called Put.
func (p *Position) AddMove(mv string, child *Position) *Position {
	m := M(mv)
	if p.pieces[m.From()] == chess.Empty {
		p.pieces[m.From()] = chess.MakePiece(p.stm, chess.Pawn)
	}
	child.rec = p.rec
	p.edges = append(p.edges, edge{m: m, child: child})
	return p
}

// SetNull declares the position reached by passing the turn.
func (p *Position) SetNull(child *Position) *Position {
	child.rec = p.rec
	p.null = child
	return p
}

// Apply declares mv as legal and derives the child mechanically: the
// moving piece leaves the origin, any piece on the destination is
// removed, the mover (or its promotion) lands on the destination, and
// the side to move flips. It returns the child so tests can chain real
// move sequences.
func (p *Position) Apply(mv string) *Position {
	m := M(mv)
	mover := p.pieces[m.From()]
	if mover == chess.Empty {
		panic(fmt.Sprintf("chesstest: %s: no piece on %s", p.name, m.From()))
	}
	child := New(fmt.Sprintf("%s/%s", p.name, mv))
	child.pieces = p.pieces
	child.pieces[m.From()] = chess.Empty
	placed := mover
	if m.Promotion() != chess.NoPieceType {
		placed = chess.MakePiece(mover.Color(), m.Promotion())
	}
	child.pieces[m.To()] = placed
	child.stm = p.stm.Other()
	p.AddMove(mv, child)
	return child
}

var _ chess.Position = (*Position)(nil)

func (p *Position) Hash() uint64            { return p.hash }
func (p *Position) PawnHash() uint64        { return p.pawnHash }
func (p *Position) SideToMove() chess.Color { return p.stm }
func (p *Position) InCheck() bool           { return p.inCheck }

func (p *Position) LegalMoves() []chess.Move {
	ms := make([]chess.Move, len(p.edges))
	for i, e := range p.edges {
		ms[i] = e.m
	}
	return ms
}

func (p *Position) MakeMove(m chess.Move) chess.Position {
	for _, e := range p.edges {
		if sameMove(e.m, m) {
			p.rec.MovesMade.Add(1)
			return e.child
		}
	}
	panic(fmt.Sprintf("chesstest: %s: move %s is not scripted", p.name, chess.MoveString(m)))
}

func (p *Position) MakeNull() chess.Position {
	p.rec.NullMoves.Add(1)
	if p.null == nil {
		panic(fmt.Sprintf("chesstest: %s: null move is not scripted", p.name))
	}
	return p.null
}

func (p *Position) PieceOn(sq chess.Square) chess.Piece {
	return p.pieces[sq]
}

func (p *Position) KingSquare(c chess.Color) chess.Square {
	for sq := chess.Square(0); sq < chess.NumSquares; sq++ {
		if p.pieces[sq] == chess.MakePiece(c, chess.King) {
			return sq
		}
	}
	return 0
}

func (p *Position) HasNonPawnMaterial(c chess.Color) bool {
	for sq := chess.Square(0); sq < chess.NumSquares; sq++ {
		pc := p.pieces[sq]
		if pc == chess.Empty || pc.Color() != c {
			continue
		}
		if t := pc.Type(); t != chess.Pawn && t != chess.King {
			return true
		}
	}
	return false
}
