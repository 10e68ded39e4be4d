package search

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/matryer/is"
	"gopkg.in/yaml.v3"

	"github.com/domino14/caissa/chess"
	"github.com/domino14/caissa/chess/chesstest"
	"github.com/domino14/caissa/nnue"
)

func newSolver(threads int) *Solver {
	s := new(Solver)
	if err := s.Init(nnue.NewFlatModel(0)); err != nil {
		panic(err)
	}
	s.SetThreads(threads)
	s.SetTTMemoryFraction(0)
	return s
}

// buildMateTree scripts a root where d1h5 mates and a2a3 stalemates.
func buildMateTree() *chesstest.Position {
	mated := chesstest.New("mated").SetSideToMove(chess.Black).SetInCheck(true)
	stalemated := chesstest.New("stalemated").SetSideToMove(chess.Black)
	return chesstest.New("root").
		AddMove("d1h5", mated).
		AddMove("a2a3", stalemated)
}

func TestSolveMateInOne(t *testing.T) {
	is := is.New(t)
	root := buildMateTree()
	s := newSolver(1)
	buf := &bytes.Buffer{}
	s.SetLogStream(buf)

	r, err := s.Solve(context.Background(), root, 2)
	is.NoErr(err)
	is.True(movesEqual(r.BestMove, chesstest.M("d1h5")))
	is.Equal(r.Score, MateIn(1))
	is.Equal(len(r.PV), 1)
	is.True(r.Nodes > 0)
	is.True(r.SelDepth >= 1)

	var iters []LogIteration
	is.NoErr(yaml.Unmarshal(buf.Bytes(), &iters))
	is.Equal(len(iters), 2)
	is.Equal(iters[0].Depth, 1)
	is.Equal(iters[1].Depth, 2)
	is.Equal(iters[0].Score, int32(MateIn(1)))
	is.Equal(iters[0].Mate, 1)
	is.True(iters[0].Nodes > 0)
	is.True(strings.Contains(iters[1].PV, "d1h5"))
}

func TestSolveTerminalRoots(t *testing.T) {
	is := is.New(t)

	stalemated := chesstest.New("stalemated-root")
	r, err := newSolver(1).Solve(context.Background(), stalemated, 2)
	is.NoErr(err)
	is.Equal(r.BestMove, nil)
	is.Equal(len(r.PV), 0)
	is.Equal(r.Score, DrawScore)

	mated := chesstest.New("mated-root").SetInCheck(true)
	r, err = newSolver(1).Solve(context.Background(), mated, 2)
	is.NoErr(err)
	is.Equal(r.BestMove, nil)
	is.Equal(r.Score, MatedIn(0))
}

func TestSolveNoModel(t *testing.T) {
	is := is.New(t)
	s := new(Solver)
	_, err := s.Solve(context.Background(), buildMateTree(), 2)
	is.Equal(err, ErrNoModel)
}

func TestSolveValidations(t *testing.T) {
	is := is.New(t)

	_, err := newSolver(1).Solve(context.Background(), buildMateTree(), 0)
	is.True(err != nil)

	s := newSolver(2)
	s.SetIterativeDeepening(false)
	_, err = s.Solve(context.Background(), buildMateTree(), 3)
	is.True(err != nil)

	// lazy SMP needs room to stagger helper depths.
	_, err = newSolver(2).Solve(context.Background(), buildMateTree(), 1)
	is.True(err != nil)
}

func TestSolveLazySMP(t *testing.T) {
	is := is.New(t)
	root := buildMateTree()
	s := newSolver(2)
	r, err := s.Solve(context.Background(), root, 3)
	is.NoErr(err)
	is.True(movesEqual(r.BestMove, chesstest.M("d1h5")))
	is.Equal(r.Score, MateIn(1))
	is.True(r.Nodes > 0)
}

func TestSolveCancelledContext(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	root := buildMateTree()
	r, err := newSolver(1).Solve(ctx, root, 2)
	is.NoErr(err)
	is.True(r != nil)
	// iterations that finished before the stop landed still count; a
	// solve stopped before any finished reports no move.
	is.True(r.BestMove == nil || movesEqual(r.BestMove, chesstest.M("d1h5")))
}

func TestSolveSharedTable(t *testing.T) {
	is := is.New(t)
	tt := NewTranspositionTable()
	tt.Reset(0)
	root := buildMateTree()

	s1 := newSolver(1)
	s1.SetTranspositionTable(tt)
	r1, err := s1.Solve(context.Background(), root, 2)
	is.NoErr(err)
	is.True(movesEqual(r1.BestMove, chesstest.M("d1h5")))
	hits := tt.hits.Load()

	// the second solver rides on the first one's table entries.
	s2 := newSolver(1)
	s2.SetTranspositionTable(tt)
	r2, err := s2.Solve(context.Background(), root, 2)
	is.NoErr(err)
	is.True(movesEqual(r2.BestMove, chesstest.M("d1h5")))
	is.Equal(r2.Score, MateIn(1))
	is.True(tt.hits.Load() > hits)
}

func TestSolveWithoutIterativeDeepening(t *testing.T) {
	is := is.New(t)
	root := buildMateTree()
	s := newSolver(1)
	s.SetIterativeDeepening(false)
	buf := &bytes.Buffer{}
	s.SetLogStream(buf)

	r, err := s.Solve(context.Background(), root, 3)
	is.NoErr(err)
	is.True(movesEqual(r.BestMove, chesstest.M("d1h5")))
	is.Equal(r.Score, MateIn(1))

	var iters []LogIteration
	is.NoErr(yaml.Unmarshal(buf.Bytes(), &iters))
	is.Equal(len(iters), 1)
	is.Equal(iters[0].Depth, 3)
}
