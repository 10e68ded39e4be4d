package search

import (
	"testing"

	"github.com/matryer/is"

	"github.com/domino14/caissa/chess"
)

func TestCorrectionZeroInit(t *testing.T) {
	is := is.New(t)
	ch := &CorrectionHistory{}
	is.Equal(ch.Get(chess.White, 0xDEADBEEF), Score(0))
	is.Equal(ch.Get(chess.Black, 0xDEADBEEF), Score(0))
}

func TestCorrectionColorIsolation(t *testing.T) {
	is := is.New(t)
	ch := &CorrectionHistory{}
	const pawnHash = 0x1234567890ABCDEF

	ch.Update(chess.White, pawnHash, 8, 120)
	is.True(ch.Get(chess.White, pawnHash) > 0)
	is.Equal(ch.Get(chess.Black, pawnHash), Score(0))
}

func TestCorrectionPullsTowardDiff(t *testing.T) {
	is := is.New(t)
	ch := &CorrectionHistory{}
	const pawnHash = 42

	ch.Update(chess.White, pawnHash, 4, 50)
	first := ch.Get(chess.White, pawnHash)
	is.True(first > 0)

	ch.Update(chess.White, pawnHash, 4, 50)
	second := ch.Get(chess.White, pawnHash)
	is.True(second > first)

	ch.Update(chess.White, pawnHash, 4, -500)
	is.True(ch.Get(chess.White, pawnHash) < second)
}

func TestCorrectionBounded(t *testing.T) {
	is := is.New(t)
	ch := &CorrectionHistory{}
	const pawnHash = 777

	// Repeated huge same-direction updates must converge, not overflow.
	for i := 0; i < 200; i++ {
		ch.Update(chess.White, pawnHash, 20, 10000)
	}
	v := ch.Get(chess.White, pawnHash)
	is.True(v > 0)
	is.True(v <= correctionMax)

	for i := 0; i < 400; i++ {
		ch.Update(chess.White, pawnHash, 20, -10000)
	}
	v = ch.Get(chess.White, pawnHash)
	is.True(v < 0)
	is.True(v >= -correctionMax)
}

func TestCorrectionSlotIndexing(t *testing.T) {
	is := is.New(t)
	ch := &CorrectionHistory{}
	// Hashes congruent modulo the table size share a slot.
	h1 := uint64(5)
	h2 := uint64(5 + correctionTableSize)
	ch.Update(chess.White, h1, 6, 200)
	is.Equal(ch.Get(chess.White, h1), ch.Get(chess.White, h2))

	// A different slot stays untouched.
	is.Equal(ch.Get(chess.White, 6), Score(0))
}

func TestCorrectionAge(t *testing.T) {
	is := is.New(t)
	ch := &CorrectionHistory{}
	const pawnHash = 99
	for i := 0; i < 50; i++ {
		ch.Update(chess.White, pawnHash, 10, 300)
	}
	before := ch.Get(chess.White, pawnHash)
	ch.Age()
	is.Equal(ch.Get(chess.White, pawnHash), before/2)
}
