package chess_test

import (
	"testing"

	"github.com/matryer/is"

	"github.com/domino14/caissa/chess"
	"github.com/domino14/caissa/chess/chesstest"
)

func TestSquare(t *testing.T) {
	is := is.New(t)
	is.Equal(chess.SquareOf(0, 0), chess.Square(0))
	is.Equal(chess.SquareOf(7, 7), chess.Square(63))
	e4 := chesstest.Sq("e4")
	is.Equal(e4.File(), 4)
	is.Equal(e4.Rank(), 3)
	is.Equal(e4.String(), "e4")
	is.Equal(chess.Square(0).String(), "a1")
	is.Equal(chess.Square(63).String(), "h8")
}

func TestSquareMirror(t *testing.T) {
	is := is.New(t)
	is.Equal(chesstest.Sq("a1").Mirror(), chesstest.Sq("a8"))
	is.Equal(chesstest.Sq("e2").Mirror(), chesstest.Sq("e7"))
	is.Equal(chesstest.Sq("h8").Mirror(), chesstest.Sq("h1"))
	for sq := chess.Square(0); sq < chess.NumSquares; sq++ {
		is.Equal(sq.Mirror().Mirror(), sq)
		is.Equal(sq.Mirror().File(), sq.File())
		is.Equal(sq.Mirror().Rank(), 7-sq.Rank())
	}
}

func TestColor(t *testing.T) {
	is := is.New(t)
	is.Equal(chess.White.Other(), chess.Black)
	is.Equal(chess.Black.Other(), chess.White)
	is.Equal(chess.White.String(), "white")
	is.Equal(chess.Black.String(), "black")
}

func TestPiece(t *testing.T) {
	is := is.New(t)
	types := []chess.PieceType{
		chess.Pawn, chess.Knight, chess.Bishop, chess.Rook, chess.Queen, chess.King,
	}
	for _, c := range []chess.Color{chess.White, chess.Black} {
		for _, pt := range types {
			pc := chess.MakePiece(c, pt)
			is.True(pc != chess.Empty)
			is.Equal(pc.Type(), pt)
			is.Equal(pc.Color(), c)
		}
	}
	is.Equal(chess.Queen.Letter(), byte('q'))
	is.Equal(chess.Knight.Letter(), byte('n'))
}

func TestMoveString(t *testing.T) {
	is := is.New(t)
	is.Equal(chess.MoveString(nil), "(none)")
	is.Equal(chess.MoveString(chesstest.M("e2e4")), "e2e4")
	is.Equal(chess.MoveString(chesstest.M("e7e8q")), "e7e8q")
	is.Equal(chess.MoveString(chesstest.M("a7a8n")), "a7a8n")
}

func TestEachPiece(t *testing.T) {
	is := is.New(t)
	pos := chesstest.New("three-pieces").
		Put("a1", chess.MakePiece(chess.White, chess.Rook)).
		Put("e4", chess.MakePiece(chess.White, chess.Pawn)).
		Put("h8", chess.MakePiece(chess.Black, chess.King))

	var pieces []chess.Piece
	var squares []chess.Square
	chess.EachPiece(pos, func(pc chess.Piece, sq chess.Square) {
		pieces = append(pieces, pc)
		squares = append(squares, sq)
	})

	is.Equal(len(pieces), 3)
	// visits run in ascending square order.
	is.Equal(squares[0], chesstest.Sq("a1"))
	is.Equal(squares[1], chesstest.Sq("e4"))
	is.Equal(squares[2], chesstest.Sq("h8"))
	is.Equal(pieces[0], chess.MakePiece(chess.White, chess.Rook))
	is.Equal(pieces[2], chess.MakePiece(chess.Black, chess.King))
}
