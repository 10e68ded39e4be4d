// nnbench measures evaluation throughput for a network over randomized
// material placements and prints the score distribution.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"lukechampine.com/frand"

	"github.com/domino14/caissa/chess"
	"github.com/domino14/caissa/config"
	"github.com/domino14/caissa/nnue"
	"github.com/domino14/caissa/stats"
)

const bignum = 1<<63 - 2

// benchPosition is a bare material placement. Only the methods the
// evaluator touches do real work; it is not a playable position.
type benchPosition struct {
	pieces [chess.NumSquares]chess.Piece
	stm    chess.Color
	hash   uint64
	wk, bk chess.Square
}

func (p *benchPosition) Hash() uint64     { return p.hash }
func (p *benchPosition) PawnHash() uint64 { return p.hash >> 1 }

func (p *benchPosition) SideToMove() chess.Color            { return p.stm }
func (p *benchPosition) InCheck() bool                      { return false }
func (p *benchPosition) LegalMoves() []chess.Move           { return nil }
func (p *benchPosition) MakeMove(chess.Move) chess.Position { return p }
func (p *benchPosition) MakeNull() chess.Position           { return p }

func (p *benchPosition) PieceOn(sq chess.Square) chess.Piece { return p.pieces[sq] }

func (p *benchPosition) KingSquare(c chess.Color) chess.Square {
	if c == chess.White {
		return p.wk
	}
	return p.bk
}

func (p *benchPosition) HasNonPawnMaterial(chess.Color) bool { return true }

var nonKingTypes = []chess.PieceType{
	chess.Pawn, chess.Knight, chess.Bishop, chess.Rook, chess.Queen,
}

func randomPosition() *benchPosition {
	p := &benchPosition{
		hash: frand.Uint64n(bignum) + 1,
		stm:  chess.Color(frand.Intn(2)),
	}
	var taken [chess.NumSquares]bool
	place := func() chess.Square {
		for {
			sq := chess.Square(frand.Intn(chess.NumSquares))
			if !taken[sq] {
				taken[sq] = true
				return sq
			}
		}
	}
	p.wk = place()
	p.bk = place()
	p.pieces[p.wk] = chess.MakePiece(chess.White, chess.King)
	p.pieces[p.bk] = chess.MakePiece(chess.Black, chess.King)
	for n := 2 + frand.Intn(29); n > 0; n-- {
		c := chess.Color(frand.Intn(2))
		p.pieces[place()] = chess.MakePiece(c, nonKingTypes[frand.Intn(len(nonKingTypes))])
	}
	return p
}

func main() {
	n := flag.Int("n", 20000, "number of evaluations")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}
	zerolog.SetGlobalLevel(cfg.ZerologLevel())

	var model *nnue.Model
	if cfg.ModelPath != "" {
		model, err = nnue.LoadModel(cfg.ModelPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.ModelPath).Msg("loading model")
		}
	} else {
		log.Info().Msg("no model-path configured; benchmarking a random model")
		model = nnue.NewRandomModel()
	}
	log.Info().Uint64("checksum", model.Checksum()).Msg("model-ready")

	positions := make([]*benchPosition, *n)
	for i := range positions {
		positions[i] = randomPosition()
	}

	scores := make([]float64, 0, *n)
	st := &stats.Statistic{}
	start := time.Now()
	for _, pos := range positions {
		cp := float64(model.EvaluatePosition(pos))
		scores = append(scores, cp)
		st.Push(cp)
	}
	elapsed := time.Since(start)

	p := message.NewPrinter(language.English)
	p.Printf("%d evaluations in %.2fs (%.0f evals/sec)\n",
		*n, elapsed.Seconds(), float64(*n)/elapsed.Seconds())
	p.Printf("mean %.1f cp ± %.1f (95%% CI), stdev %.1f, range [%.0f, %.0f]\n",
		st.Mean(), st.ConfidenceInterval(95), st.Stdev(), st.Min(), st.Max())

	fmt.Println("score distribution (centipawns):")
	hist := histogram.Hist(15, scores)
	if err := histogram.Fprint(os.Stdout, hist, histogram.Linear(40)); err != nil {
		log.Error().Err(err).Msg("printing histogram")
	}
}
