package search

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"

	"github.com/domino14/caissa/chess"
)

const (
	boundNone  uint8 = 0x00
	boundExact uint8 = 0x01
	boundLower uint8 = 0x02
	boundUpper uint8 = 0x03
)

const entrySize = 16

const depthMask = (1 << 6) - 1

// maxStoredDepth is what fits next to the bound in flagAndDepth. Deeper
// results saturate; under-reporting depth only costs a re-search.
const maxStoredDepth = depthMask

// packedMove is a move squeezed into 16 bits for table entries:
// 6 bits origin, 6 bits destination, 3 bits promotion piece. Zero means
// no move. A packed hint is only ever used by matching it against the
// legal moves generated for the position, so a corrupted entry can
// never inject an illegal move into the search.
type packedMove uint16

func packMove(m chess.Move) packedMove {
	if m == nil {
		return 0
	}
	return packedMove(uint16(m.From()) | uint16(m.To())<<6 | uint16(m.Promotion())<<12)
}

func matchPackedMove(moves []chess.Move, pm packedMove) chess.Move {
	if pm == 0 {
		return nil
	}
	for _, m := range moves {
		if packMove(m) == pm {
			return m
		}
	}
	return nil
}

// 16 bytes (entrySize)
type tableEntry struct {
	fullHash     uint64
	score        int16
	play         packedMove
	flagAndDepth uint8
	age          uint8
}

func (t tableEntry) flag() uint8 {
	return t.flagAndDepth >> 6
}

func (t tableEntry) depth() int {
	return int(t.flagAndDepth & depthMask)
}

func (t tableEntry) valid() bool {
	// a table flag is 1, 2, or 3.
	return t.flag() != boundNone
}

func (t tableEntry) move() packedMove {
	return t.play
}

type TableLock interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

type FakeLock struct{}

func (f FakeLock) Lock()    {}
func (f FakeLock) Unlock()  {}
func (f FakeLock) RLock()   {}
func (f FakeLock) RUnlock() {}

// TranspositionTable is a fixed-size, shared cache of search results
// keyed by position fingerprint. Concurrent workers probe and store
// without locking by default; every read verifies the stored fingerprint
// and treats mismatches (including torn writes) as misses. Replacement
// is generation-and-depth preferred: a slot is overwritten when it is
// empty, was written by an older search, or the incoming depth is at
// least the stored depth.
type TranspositionTable struct {
	TableLock
	table        []tableEntry
	created      atomic.Uint64
	lookups      atomic.Uint64
	hits         atomic.Uint64
	sizePowerOf2 int
	sizeMask     uint64
	currentAge   uint8
	// "type 2" collisions: two positions sharing a table slot. Type 1
	// collisions (same full hash for different positions) are rare
	// enough that probes treat fingerprint equality as identity.
	t2collisions atomic.Uint64
}

func NewTranspositionTable() *TranspositionTable {
	return &TranspositionTable{TableLock: FakeLock{}}
}

// SetLocking swaps in a real read-write lock. Tag verification already
// tolerates racy writes; the lock exists for debugging runs where torn
// entries would muddy the collision counters.
func (t *TranspositionTable) SetLocking(on bool) {
	if on {
		t.TableLock = &sync.RWMutex{}
	} else {
		t.TableLock = FakeLock{}
	}
}

func (t *TranspositionTable) probe(hash uint64) (tableEntry, bool) {
	t.RLock()
	defer t.RUnlock()
	t.lookups.Add(1)
	idx := hash & t.sizeMask
	entry := t.table[idx]
	if entry.fullHash != hash || !entry.valid() {
		if entry.valid() {
			// There is another unrelated node at this slot.
			t.t2collisions.Add(1)
		}
		return tableEntry{}, false
	}
	t.hits.Add(1)
	return entry, true
}

func (t *TranspositionTable) store(hash uint64, play packedMove, score Score, depth int, flag uint8) {
	if depth > maxStoredDepth {
		depth = maxStoredDepth
	}
	idx := hash & t.sizeMask
	t.Lock()
	defer t.Unlock()
	prev := t.table[idx]
	if prev.valid() && prev.age == t.currentAge && depth < prev.depth() {
		return
	}
	t.table[idx] = tableEntry{
		fullHash:     hash,
		score:        int16(score),
		play:         play,
		flagAndDepth: flag<<6 | uint8(depth),
		age:          t.currentAge,
	}
	t.created.Add(1)
}

// Prefetch hints that the entry for hash is about to be probed. It has
// no semantic effect.
func (t *TranspositionTable) Prefetch(hash uint64) {
	if len(t.table) == 0 {
		return
	}
	_ = t.table[hash&t.sizeMask]
}

// NewSearch advances the generation marker so entries from earlier
// searches become replaceable regardless of depth.
func (t *TranspositionTable) NewSearch() {
	t.currentAge++
}

// Reset sizes the table to the largest power of two fitting in the given
// fraction of system memory and zeroes it. The existing allocation is
// reused when the size is unchanged.
func (t *TranspositionTable) Reset(fractionOfMemory float64) {
	t.Lock()
	defer t.Unlock()
	totalMem := memory.TotalMemory()
	desiredNElems := fractionOfMemory * (float64(totalMem) / float64(entrySize))
	// find biggest power of 2 lower than desired.
	t.sizePowerOf2 = int(math.Log2(desiredNElems))
	// Guarantee at least 2^16 elements; anything less and the table
	// churns too fast to be worth sharing.
	if t.sizePowerOf2 < 16 {
		t.sizePowerOf2 = 16
	}

	numElems := 1 << t.sizePowerOf2
	t.sizeMask = uint64(numElems - 1)
	reset := false
	if t.table != nil && len(t.table) == numElems {
		reset = true
		clear(t.table)
	} else {
		t.table = make([]tableEntry, numElems)
	}

	log.Info().Int("num-elems", numElems).
		Float64("desired-num-elems", desiredNElems).
		Int("estimated-total-memory-bytes", numElems*entrySize).
		Uint64("total-system-memory-bytes", totalMem).
		Bool("reset", reset).
		Msg("transposition-table-size")

	t.currentAge = 0
	t.created.Store(0)
	t.lookups.Store(0)
	t.hits.Store(0)
	t.t2collisions.Store(0)
}
