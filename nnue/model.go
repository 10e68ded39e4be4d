// Package nnue implements an efficiently updatable neural network
// evaluator. A Model is an immutable quantized weight set loaded from a
// fixed binary format and shared read-only across search workers; an
// Accumulator is the per-search-path first-layer state, updated
// incrementally move by move and rebuilt from scratch when an update
// cannot be expressed as a delta (king moves reindex every feature).
package nnue

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash"
	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"

	"github.com/domino14/caissa/chess"
)

const (
	// FeatureSize is the half-KP input space: own king square times ten
	// piece-color combinations times piece square. Kings are baked into
	// the indexing and are not features themselves.
	FeatureSize = 64 * 10 * 64
	// HiddenSize is the per-perspective accumulator width.
	HiddenSize = 256
	// L2Size is the width of the dense layer after the two concatenated
	// perspectives.
	L2Size = 32

	// activationShift rescales the hidden layer back into the 0..127
	// activation range; fvScale turns the raw output into centipawns.
	activationShift = 6
	fvScale         = 16
)

// weightsMagic spells "CSNN" when the file is read little-endian.
const weightsMagic uint32 = 0x4E4E5343

const weightsVersion uint32 = 1

var (
	ErrBadMagic      = errors.New("nnue: not a caissa network file")
	ErrBadVersion    = errors.New("nnue: unsupported network version")
	ErrBadDimensions = errors.New("nnue: network dimensions do not match this build")
)

// Model is a loaded weight set. It is never mutated after load and may
// be shared freely across goroutines.
type Model struct {
	ftWeights []int16 // FeatureSize x HiddenSize, feature-major
	ftBias    []int16 // HiddenSize
	hiddenW   []int8  // L2Size x (2 * HiddenSize), neuron-major
	hiddenB   []int32 // L2Size
	outW      []int8  // L2Size
	outB      int32

	checksum uint64
}

// Checksum is the xxhash of the serialized weight payload, usable as a
// cache key by embedders.
func (m *Model) Checksum() uint64 {
	return m.checksum
}

// LoadModel reads a weight file. Malformed input fails with a wrapped
// ErrBadMagic, ErrBadVersion, ErrBadDimensions, or a read error; a model
// is never partially usable.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("nnue: reading %s: %w", path, err)
	}
	m, err := parseModel(data)
	if err != nil {
		return nil, fmt.Errorf("nnue: parsing %s: %w", path, err)
	}
	log.Info().Str("path", path).
		Int("bytes", len(data)).
		Uint64("checksum", m.checksum).
		Msg("nnue-model-loaded")
	return m, nil
}

// ReadModel reads a weight stream, e.g. an embedded or in-memory model.
func ReadModel(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("nnue: reading model stream: %w", err)
	}
	return parseModel(data)
}

func parseModel(data []byte) (*Model, error) {
	r := bytes.NewReader(data)

	var header struct {
		Magic       uint32
		Version     uint32
		FeatureSize uint32
		HiddenSize  uint32
		L2Size      uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if header.Magic != weightsMagic {
		return nil, fmt.Errorf("%w (magic %#x)", ErrBadMagic, header.Magic)
	}
	if header.Version != weightsVersion {
		return nil, fmt.Errorf("%w (version %d)", ErrBadVersion, header.Version)
	}
	if header.FeatureSize != FeatureSize || header.HiddenSize != HiddenSize || header.L2Size != L2Size {
		return nil, fmt.Errorf("%w (%dx%dx%d)", ErrBadDimensions,
			header.FeatureSize, header.HiddenSize, header.L2Size)
	}

	m := &Model{
		ftWeights: make([]int16, FeatureSize*HiddenSize),
		ftBias:    make([]int16, HiddenSize),
		hiddenW:   make([]int8, 2*HiddenSize*L2Size),
		hiddenB:   make([]int32, L2Size),
		outW:      make([]int8, L2Size),
	}
	for _, section := range []struct {
		name string
		dst  any
	}{
		{"feature biases", m.ftBias},
		{"feature weights", m.ftWeights},
		{"hidden weights", m.hiddenW},
		{"hidden biases", m.hiddenB},
		{"output weights", m.outW},
		{"output bias", &m.outB},
	} {
		if err := binary.Read(r, binary.LittleEndian, section.dst); err != nil {
			return nil, fmt.Errorf("reading %s: %w", section.name, err)
		}
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after output bias", r.Len())
	}
	m.checksum = xxhash.Sum64(data)
	return m, nil
}

// WriteTo serializes the model in the binary weight format, making it
// the inverse of ReadModel.
func (m *Model) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	header := struct {
		Magic       uint32
		Version     uint32
		FeatureSize uint32
		HiddenSize  uint32
		L2Size      uint32
	}{weightsMagic, weightsVersion, FeatureSize, HiddenSize, L2Size}
	for _, section := range []any{header, m.ftBias, m.ftWeights, m.hiddenW, m.hiddenB, m.outW, m.outB} {
		if err := binary.Write(&buf, binary.LittleEndian, section); err != nil {
			return 0, fmt.Errorf("nnue: serializing model: %w", err)
		}
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// NewRandomModel builds a model with small random weights. It exists for
// benchmarks and tests; play strength is whatever it is.
func NewRandomModel() *Model {
	m := &Model{
		ftWeights: make([]int16, FeatureSize*HiddenSize),
		ftBias:    make([]int16, HiddenSize),
		hiddenW:   make([]int8, 2*HiddenSize*L2Size),
		hiddenB:   make([]int32, L2Size),
		outW:      make([]int8, L2Size),
	}
	for i := range m.ftWeights {
		m.ftWeights[i] = int16(frand.Intn(127) - 63)
	}
	for i := range m.ftBias {
		m.ftBias[i] = int16(frand.Intn(255) - 127)
	}
	for i := range m.hiddenW {
		m.hiddenW[i] = int8(frand.Intn(127) - 63)
	}
	for i := range m.hiddenB {
		m.hiddenB[i] = int32(frand.Intn(8191) - 4095)
	}
	for i := range m.outW {
		m.outW[i] = int8(frand.Intn(127) - 63)
	}
	m.outB = int32(frand.Intn(8191) - 4095)
	m.fillChecksum()
	return m
}

// NewFlatModel builds a model that evaluates every position to cp
// centipawns. Useful for isolating search behavior from evaluation.
func NewFlatModel(cp int32) *Model {
	m := &Model{
		ftWeights: make([]int16, FeatureSize*HiddenSize),
		ftBias:    make([]int16, HiddenSize),
		hiddenW:   make([]int8, 2*HiddenSize*L2Size),
		hiddenB:   make([]int32, L2Size),
		outW:      make([]int8, L2Size),
		outB:      cp * fvScale,
	}
	m.fillChecksum()
	return m
}

func (m *Model) fillChecksum() {
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		panic(err)
	}
	m.checksum = xxhash.Sum64(buf.Bytes())
}

// Evaluate runs the forward pass over acc from the side to move's
// perspective and returns centipawns. It does not mutate acc.
func (m *Model) Evaluate(acc *Accumulator, stm chess.Color) int32 {
	var input [2 * HiddenSize]int32
	own, other := &acc.white, &acc.black
	if stm == chess.Black {
		own, other = other, own
	}
	for i := 0; i < HiddenSize; i++ {
		input[i] = clippedReLU(int32(own[i]))
		input[HiddenSize+i] = clippedReLU(int32(other[i]))
	}

	var raw int32 = m.outB
	for j := 0; j < L2Size; j++ {
		sum := m.hiddenB[j]
		row := m.hiddenW[j*2*HiddenSize : (j+1)*2*HiddenSize]
		for i, v := range input {
			sum += v * int32(row[i])
		}
		raw += clippedReLU(sum>>activationShift) * int32(m.outW[j])
	}
	return raw / fvScale
}

// EvaluatePosition builds a fresh accumulator for pos and evaluates it.
// Search paths keep incremental accumulators instead; this entry point
// serves one-off static evaluation (tuning tools, benchmarks).
func (m *Model) EvaluatePosition(pos chess.Position) int32 {
	var acc Accumulator
	m.Refresh(&acc, pos)
	return m.Evaluate(&acc, pos.SideToMove())
}

func clippedReLU(v int32) int32 {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return v
}
