package search

import "fmt"

// Score is a position evaluation in centipawns, with reserved bands near
// ±MateScore encoding "mate in N plies". Draws are 0. Scores fit in an
// int16 so they can live in packed transposition table entries.
type Score int32

const (
	// Infinity bounds every alpha-beta window.
	Infinity Score = 30000
	// MateScore is the value of delivering mate at the root. A mate N
	// plies down the tree scores MateScore - N.
	MateScore Score = 29000
	// DrawScore is returned for stalemates and cancelled searches.
	DrawScore Score = 0

	// MaxPly caps plies-from-root bookkeeping (killer slots,
	// accumulator stacks). Depth is never clamped against it.
	MaxPly = 128
)

// mateBound separates mate encodings from ordinary centipawn scores.
const mateBound = MateScore - Score(MaxPly)

// MateIn returns the score for the side to move delivering mate ply
// plies from the root.
func MateIn(ply int) Score {
	return MateScore - Score(ply)
}

// MatedIn returns the score for the side to move being mated ply plies
// from the root.
func MatedIn(ply int) Score {
	return -MateScore + Score(ply)
}

// IsMate reports whether s encodes a forced mate for either side.
func (s Score) IsMate() bool {
	return s > mateBound || s < -mateBound
}

// MateDistance returns the encoded distance to mate in plies: positive
// when the side to move mates, negative when it is being mated. It is
// only meaningful when IsMate is true.
func (s Score) MateDistance() int {
	if s > 0 {
		return int(MateScore - s)
	}
	return -int(MateScore + s)
}

// ToTT rebases a mate score from root-relative to node-relative before a
// table store. FromTT at the same ply is the exact inverse.
func (s Score) ToTT(ply int) Score {
	if s > mateBound {
		return s + Score(ply)
	}
	if s < -mateBound {
		return s - Score(ply)
	}
	return s
}

// FromTT rebases a stored node-relative mate score back to the probing
// ply.
func (s Score) FromTT(ply int) Score {
	if s > mateBound {
		return s - Score(ply)
	}
	if s < -mateBound {
		return s + Score(ply)
	}
	return s
}

func (s Score) String() string {
	if s.IsMate() {
		d := s.MateDistance()
		if d > 0 {
			return fmt.Sprintf("mate %d", (d+1)/2)
		}
		return fmt.Sprintf("mate -%d", (-d+1)/2)
	}
	return fmt.Sprintf("cp %d", int32(s))
}
