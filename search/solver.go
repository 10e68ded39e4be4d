// Package search implements the decision core: iterative-deepening
// negamax with alpha-beta pruning, a shared lock-free transposition
// table, null-move pruning, late move reductions, killer/history move
// ordering, pawn-structure correction of the static evaluation, and a
// capture-resolving quiescence search. Multi-threaded solves use lazy
// SMP: workers search the same tree at staggered depths and communicate
// only through the transposition table.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/domino14/caissa/chess"
	"github.com/domino14/caissa/nnue"
	"github.com/domino14/caissa/stats"
)

// ErrNoModel is returned by Solve when the solver has no evaluation
// model. Call Init first.
var ErrNoModel = errors.New("search: no model set; call Init first")

// Credit: MIT-licensed https://github.com/algerbrex/blunder/blob/main/engine/search.go
type PVLine struct {
	Moves []chess.Move
	score Score
}

// Clear the principal variation line.
func (pvLine *PVLine) Clear() {
	pvLine.Moves = nil
}

// Update the principal variation line with a new best move,
// and a new line of best play after the best move.
func (pvLine *PVLine) Update(move chess.Move, newPVLine PVLine, score Score) {
	pvLine.Clear()
	pvLine.Moves = append(pvLine.Moves, move)
	pvLine.Moves = append(pvLine.Moves, newPVLine.Moves...)
	pvLine.score = score
}

// Get the best move from the principal variation line.
func (pvLine *PVLine) GetPVMove() chess.Move {
	if len(pvLine.Moves) == 0 {
		return nil
	}
	return pvLine.Moves[0]
}

// Convert the principal variation line to a string.
func (pvLine PVLine) String() string {
	var s string
	s = fmt.Sprintf("PV; val %s\n", pvLine.score)
	for i := 0; i < len(pvLine.Moves); i++ {
		s += fmt.Sprintf("%d: %s\n", i+1, chess.MoveString(pvLine.Moves[i]))
	}
	return s
}

func (pvLine PVLine) NLBString() string {
	// no line breaks
	plays := lo.Map(pvLine.Moves, func(m chess.Move, i int) string {
		return fmt.Sprintf("%d: %s", i+1, chess.MoveString(m))
	})
	return fmt.Sprintf("PV; val %s; %s", pvLine.score, strings.Join(plays, "; "))
}

// SearchResult is what Solve hands back. On a position with no legal
// moves, and on a solve cancelled before any iteration completed,
// BestMove is nil and PV is empty; callers distinguish the two by
// checking legal moves themselves.
type SearchResult struct {
	BestMove chess.Move
	Score    Score
	PV       []chess.Move
	Nodes    uint64
	SelDepth int
}

// LogIteration is a struct meant for serializing iteration summaries to
// a log stream, for debug reasons.
type LogIteration struct {
	Depth      int     `json:"depth" yaml:"depth"`
	Score      int32   `json:"score" yaml:"score"`
	Mate       int     `json:"mate,omitempty" yaml:"mate,omitempty"`
	PV         string  `json:"pv" yaml:"pv"`
	Nodes      uint64  `json:"nodes" yaml:"nodes"`
	Seldepth   int     `json:"seldepth" yaml:"seldepth"`
	ElapsedSec float64 `json:"elapsed_sec" yaml:"elapsed_sec"`
	NPS        float64 `json:"nps" yaml:"nps"`
}

// Solver coordinates the search workers. Construct with Init; it is not
// safe to reconfigure while a Solve is in flight.
type Solver struct {
	model  *nnue.Model
	ttable *TranspositionTable

	threads                 int
	lazySMPOptim            bool
	iterativeDeepeningOptim bool
	ttMemFraction           float64

	workers []*worker

	requestedPlies     int
	nodes              atomic.Uint64
	stopped            atomic.Bool
	principalVariation PVLine
	bestPVValue        Score

	ebf           stats.Statistic
	lastIterNodes uint64

	logStream io.Writer
}

// Init readies the solver with an evaluation model. Defaults: iterative
// deepening on, lazy SMP across all but one available CPU, and a quarter
// of system memory for the transposition table when it is first sized.
func (s *Solver) Init(model *nnue.Model) error {
	s.model = model
	s.iterativeDeepeningOptim = true
	s.ttMemFraction = 0.25
	s.ttable = NewTranspositionTable()
	s.SetThreads(max(1, runtime.NumCPU()-1))
	return nil
}

// SetThreads sets the number of search threads. Anything below 2 turns
// lazy SMP off. Worker heuristic tables are rebuilt from scratch.
func (s *Solver) SetThreads(threads int) {
	switch {
	case threads < 2:
		s.threads = 1
		s.lazySMPOptim = false
	default:
		s.threads = threads
		s.lazySMPOptim = true
	}
	s.workers = make([]*worker, s.threads)
	for i := range s.workers {
		s.workers[i] = &worker{id: i, solver: s}
	}
}

// SetIterativeDeepening turns iterative deepening off or on. With it off
// a single-threaded solve searches the requested depth directly.
func (s *Solver) SetIterativeDeepening(id bool) {
	s.iterativeDeepeningOptim = id
}

// SetTranspositionTable swaps in a table, letting several solvers share
// one cache.
func (s *Solver) SetTranspositionTable(tt *TranspositionTable) {
	s.ttable = tt
}

// SetTTMemoryFraction controls how much of system memory the table takes
// when Solve first sizes it.
func (s *Solver) SetTTMemoryFraction(f float64) {
	s.ttMemFraction = f
}

// SetLogStream directs per-iteration YAML summaries to l.
func (s *Solver) SetLogStream(l io.Writer) {
	s.logStream = l
}

// Stop requests a cooperative stop. Workers unwind at the next node
// boundary; the last completed iteration's result stands.
func (s *Solver) Stop() {
	s.requestStop()
}

func (s *Solver) requestStop() {
	s.stopped.Store(true)
	for _, w := range s.workers {
		w.stop.Store(true)
	}
}

func (s *Solver) maxSeldepth() int {
	sd := 0
	for _, w := range s.workers {
		if w.seldepth > sd {
			sd = w.seldepth
		}
	}
	return sd
}

// Solve searches pos to the requested depth and returns the best line
// found. Context cancellation is translated into the cooperative stop
// flag; the search then returns the last completed iteration's result
// with a nil error.
func (s *Solver) Solve(ctx context.Context, pos chess.Position, plies int) (*SearchResult, error) {
	if s.model == nil {
		return nil, ErrNoModel
	}
	if plies < 1 {
		return nil, errors.New("search: need at least one ply")
	}
	if s.lazySMPOptim && !s.iterativeDeepeningOptim {
		return nil, errors.New("search: cannot use lazy SMP with iterative deepening off")
	}
	log.Debug().Int("plies", plies).Int("threads", s.threads).Msg("solve-config")
	s.requestedPlies = plies
	tstart := time.Now()

	if len(s.ttable.table) == 0 {
		s.ttable.Reset(s.ttMemFraction)
	}
	s.ttable.NewSearch()

	s.nodes.Store(0)
	s.stopped.Store(false)
	s.principalVariation = PVLine{}
	s.bestPVValue = DrawScore
	s.ebf = stats.Statistic{}
	s.lastIterNodes = 0

	for _, w := range s.workers {
		w.prepare(pos)
	}

	g := &errgroup.Group{}
	done := make(chan struct{})

	g.Go(func() error {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		var lastNodes uint64
		for {
			select {
			case <-done:
				return nil
			case <-ticker.C:
				nodes := s.nodes.Load()
				log.Debug().Uint64("nps", nodes-lastNodes).Msg("nodes-per-second")
				lastNodes = nodes
			}
		}
	})

	g.Go(func() error {
		// Workers never see the context; it becomes a stop flag here.
		select {
		case <-ctx.Done():
			s.requestStop()
		case <-done:
		}
		return nil
	})

	g.Go(func() error {
		defer close(done)
		return s.iterativelyDeepen(pos, plies)
	})

	err := g.Wait()

	result := &SearchResult{
		Score:    s.bestPVValue,
		PV:       append([]chess.Move(nil), s.principalVariation.Moves...),
		Nodes:    s.nodes.Load(),
		SelDepth: s.maxSeldepth(),
	}
	if len(result.PV) > 0 {
		result.BestMove = result.PV[0]
	}

	evt := log.Info().
		Uint64("ttable-created", s.ttable.created.Load()).
		Uint64("ttable-lookups", s.ttable.lookups.Load()).
		Uint64("ttable-hits", s.ttable.hits.Load()).
		Uint64("ttable-t2collisions", s.ttable.t2collisions.Load()).
		Uint64("total-nodes", result.Nodes).
		Int("seldepth", result.SelDepth).
		Float64("time-elapsed-sec", time.Since(tstart).Seconds())
	if s.ebf.Iterations() > 0 {
		evt = evt.Float64("mean-ebf", s.ebf.Mean()).Float64("stdev-ebf", s.ebf.Stdev())
	}
	evt.Msg("solve-returning")

	return result, err
}

// adoptIteration records a completed iteration: principal variation,
// score, iteration log, and the node ratio against the previous
// iteration for effective-branching-factor reporting. Callers only
// invoke it when the iteration finished un-stopped.
func (s *Solver) adoptIteration(depth int, val Score, pv PVLine, itStart time.Time, nodesBefore uint64) {
	s.principalVariation = pv
	s.bestPVValue = val
	elapsed := time.Since(itStart)
	iterNodes := s.nodes.Load() - nodesBefore
	if s.lastIterNodes > 0 {
		s.ebf.Push(float64(iterNodes) / float64(s.lastIterNodes))
	}
	s.lastIterNodes = iterNodes

	log.Info().Str("score", val.String()).Int("ply", depth).Str("pv", pv.NLBString()).Msg("best-val")
	if s.logStream == nil {
		return
	}
	logIter := LogIteration{
		Depth:      depth,
		Score:      int32(val),
		PV:         pv.NLBString(),
		Nodes:      iterNodes,
		Seldepth:   s.maxSeldepth(),
		ElapsedSec: elapsed.Seconds(),
	}
	if elapsed > 0 {
		logIter.NPS = float64(iterNodes) / elapsed.Seconds()
	}
	if val.IsMate() {
		logIter.Mate = val.MateDistance()
	}
	out, err := yaml.Marshal([]LogIteration{logIter})
	if err != nil {
		log.Error().Err(err).Msg("marshalling log iteration")
		return
	}
	s.logStream.Write(out)
}

func (s *Solver) iterativelyDeepen(pos chess.Position, plies int) error {
	if s.lazySMPOptim {
		return s.iterativelyDeepenLazySMP(pos, plies)
	}
	w := s.workers[0]
	start := 1
	if !s.iterativeDeepeningOptim {
		start = plies
	}
	for p := start; p <= plies; p++ {
		log.Info().Int("plies", p).Msg("deepening-iteratively")
		itStart := time.Now()
		before := s.nodes.Load()
		var pv PVLine
		val := w.negamax(pos, p, 0, -Infinity, Infinity, true, &pv)
		if w.stopped() {
			break
		}
		// Sort top layer of moves by value for the next time around.
		w.sortRootMoves()
		s.adoptIteration(p, val, pv, itStart, before)
	}
	return nil
}

func (s *Solver) iterativelyDeepenLazySMP(pos chess.Position, plies int) error {
	if plies < 2 {
		return errors.New("use at least 2 plies")
	}
	log.Info().Int("threads", s.threads).Msg("using-lazy-smp")
	principal := s.workers[0]

	// Do an initial 1-ply search so every thread starts from a sane
	// root ordering.
	itStart := time.Now()
	before := s.nodes.Load()
	var pv PVLine
	val := principal.negamax(pos, 1, 0, -Infinity, Infinity, true, &pv)
	if principal.stopped() {
		return nil
	}
	principal.sortRootMoves()
	s.adoptIteration(1, val, pv, itStart, before)
	for t := 1; t < s.threads; t++ {
		s.workers[t].rootMoves = append([]rootMove(nil), principal.rootMoves...)
	}

	for p := 2; p <= plies; p++ {
		if s.stopped.Load() {
			break
		}
		log.Info().Int("plies", p).Msg("deepening-iteratively")
		itStart := time.Now()
		before := s.nodes.Load()

		// Helper threads search at staggered depths; they exist to
		// fill the shared table, their scores are thrown away.
		hg := errgroup.Group{}
		for t := 1; t < s.threads; t++ {
			t := t
			w := s.workers[t]
			helperDepth := p + t%3
			hg.Go(func() error {
				defer log.Debug().Int("thread", t).Msg("helper-exiting")
				var helperPV PVLine
				w.negamax(pos, helperDepth, 0, -Infinity, Infinity, true, &helperPV)
				w.reorderForHelper(t)
				return nil
			})
		}

		var iterPV PVLine
		iterVal := principal.negamax(pos, p, 0, -Infinity, Infinity, true, &iterPV)

		// Stop helpers for this iteration cleanly, then re-arm them
		// unless the whole solve is being stopped.
		for t := 1; t < s.threads; t++ {
			s.workers[t].stop.Store(true)
		}
		if err := hg.Wait(); err != nil {
			return err
		}
		if !s.stopped.Load() {
			for t := 1; t < s.threads; t++ {
				s.workers[t].stop.Store(false)
			}
		}
		if principal.stopped() {
			break
		}
		principal.sortRootMoves()
		s.adoptIteration(p, iterVal, iterPV, itStart, before)
	}
	return nil
}
