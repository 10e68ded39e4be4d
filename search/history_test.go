package search

import (
	"testing"

	"github.com/matryer/is"

	"github.com/domino14/caissa/chess"
	"github.com/domino14/caissa/chess/chesstest"
)

func TestKillerShift(t *testing.T) {
	is := is.New(t)
	kt := &KillerTable{}

	m1 := chesstest.M("e2e4")
	m2 := chesstest.M("d2d4")
	m3 := chesstest.M("g1f3")

	kt.Store(3, m1)
	k := kt.Get(3)
	is.True(movesEqual(k[0], m1))
	is.Equal(k[1], nil)

	kt.Store(3, m2)
	k = kt.Get(3)
	is.True(movesEqual(k[0], m2))
	is.True(movesEqual(k[1], m1))

	kt.Store(3, m3)
	k = kt.Get(3)
	is.True(movesEqual(k[0], m3))
	is.True(movesEqual(k[1], m2))

	// Re-storing the newest killer must not duplicate it into both
	// slots.
	kt.Store(3, m3)
	k = kt.Get(3)
	is.True(movesEqual(k[0], m3))
	is.True(movesEqual(k[1], m2))

	// Other plies are independent.
	k = kt.Get(4)
	is.Equal(k[0], nil)

	kt.Clear()
	k = kt.Get(3)
	is.Equal(k[0], nil)
	is.Equal(k[1], nil)
}

func TestKillerPlyBounds(t *testing.T) {
	is := is.New(t)
	kt := &KillerTable{}
	kt.Store(MaxPly+5, chesstest.M("e2e4"))
	k := kt.Get(MaxPly + 5)
	is.Equal(k[0], nil)
}

func TestHistoryCutoffUpdate(t *testing.T) {
	is := is.New(t)
	ht := &HistoryTable{}

	cutoff := chesstest.M("b1c3")
	tried := []chess.Move{chesstest.M("a2a3"), chesstest.M("h2h4")}

	ht.UpdateOnCutoff(chess.White, cutoff, 5, tried)
	is.True(ht.Score(chess.White, cutoff) > 0)
	for _, q := range tried {
		is.True(ht.Score(chess.White, q) < 0)
	}
	// The other color's table is untouched.
	is.Equal(ht.Score(chess.Black, cutoff), int32(0))
}

func TestHistoryBounded(t *testing.T) {
	is := is.New(t)
	ht := &HistoryTable{}
	m := chesstest.M("b1c3")

	for i := 0; i < 500; i++ {
		ht.UpdateOnCutoff(chess.White, m, 60, nil)
	}
	is.True(ht.Score(chess.White, m) > 0)
	is.True(ht.Score(chess.White, m) <= historyMax)

	for i := 0; i < 1000; i++ {
		ht.UpdateOnCutoff(chess.White, chesstest.M("a2a3"), 60, []chess.Move{m})
	}
	is.True(ht.Score(chess.White, m) >= -historyMax)
	is.True(ht.Score(chess.White, m) < 0)
}

func TestHistoryAge(t *testing.T) {
	is := is.New(t)
	ht := &HistoryTable{}
	m := chesstest.M("b1c3")
	ht.UpdateOnCutoff(chess.White, m, 8, nil)
	before := ht.Score(chess.White, m)
	is.True(before > 0)
	ht.Age()
	is.Equal(ht.Score(chess.White, m), before/2)
}
