package chess

// Color is the side to move, or the owner of a piece.
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) Other() Color {
	return c ^ 1
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// PieceType is a kind of piece, independent of color. NoPieceType doubles
// as the "not a promotion" value for Move.Promotion.
type PieceType uint8

const (
	NoPieceType PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var pieceTypeLetters = [7]byte{'-', 'p', 'n', 'b', 'r', 'q', 'k'}

func (pt PieceType) Letter() byte {
	return pieceTypeLetters[pt]
}

// Piece is a colored piece packed into a single byte, or Empty.
type Piece uint8

const Empty Piece = 0

func MakePiece(c Color, pt PieceType) Piece {
	return Piece(uint8(c)<<3 | uint8(pt))
}

func (p Piece) Type() PieceType {
	return PieceType(p & 7)
}

func (p Piece) Color() Color {
	return Color(p >> 3)
}

// Square is a board square, 0 through 63, a1 = 0, h8 = 63.
type Square uint8

const NumSquares = 64

func SquareOf(file, rank int) Square {
	return Square(rank*8 + file)
}

func (s Square) File() int {
	return int(s & 7)
}

func (s Square) Rank() int {
	return int(s >> 3)
}

// Mirror flips the square vertically (a1 <-> a8), used to view the board
// from black's perspective.
func (s Square) Mirror() Square {
	return s ^ 56
}

func (s Square) String() string {
	return string([]byte{byte('a' + s.File()), byte('1' + s.Rank())})
}

// Move is the narrow contract a generated move must satisfy. Promotion
// returns NoPieceType for non-promoting moves.
type Move interface {
	From() Square
	To() Square
	Promotion() PieceType
}

// MoveString renders a move in coordinate notation (e2e4, e7e8q).
func MoveString(m Move) string {
	if m == nil {
		return "(none)"
	}
	s := m.From().String() + m.To().String()
	if pt := m.Promotion(); pt != NoPieceType {
		s += string(pt.Letter())
	}
	return s
}

// Position is the board contract the search and evaluator consume. It is
// implemented externally; implementations must be pure values, with
// MakeMove and MakeNull returning new positions and never mutating the
// receiver. MakeNull is only called on positions that are not in check.
type Position interface {
	// Hash is the position fingerprint used for transposition table
	// indexing and tagging.
	Hash() uint64
	// PawnHash fingerprints the pawn structure only.
	PawnHash() uint64
	SideToMove() Color
	InCheck() bool
	LegalMoves() []Move
	MakeMove(Move) Position
	MakeNull() Position
	PieceOn(Square) Piece
	KingSquare(Color) Square
	HasNonPawnMaterial(Color) bool
}

// EachPiece calls f for every occupied square of pos.
func EachPiece(pos Position, f func(Piece, Square)) {
	for sq := Square(0); sq < NumSquares; sq++ {
		if p := pos.PieceOn(sq); p != Empty {
			f(p, sq)
		}
	}
}
