package cube

// Move is a quarter turn of one face. Double (180 degree) turns are not
// first-class; they are expressed as two quarter turns of the same face.
type Move struct {
	Face      string `json:"face"`
	Clockwise bool   `json:"clockwise"`
}

// Face letters in standard notation, mapped to face indices.
var faceByLetter = map[string]int{
	"U": FaceUp,
	"D": FaceDown,
	"L": FaceLeft,
	"R": FaceRight,
	"F": FaceFront,
	"B": FaceBack,
}

// FaceLetters lists the valid face letters in a stable order.
var FaceLetters = []string{"U", "D", "L", "R", "F", "B"}

// ParseMove parses standard quarter-turn notation: a face letter for a
// clockwise turn ("U"), or a face letter followed by an apostrophe for a
// counter-clockwise turn ("U'").
func ParseMove(notation string) (Move, error) {
	letter := notation
	clockwise := true
	switch {
	case len(notation) == 1:
	case len(notation) == 2 && notation[1] == '\'':
		letter = notation[:1]
		clockwise = false
	default:
		return Move{}, &ErrInvalidMove{Notation: notation}
	}
	if _, ok := faceByLetter[letter]; !ok {
		return Move{}, &ErrInvalidMove{Notation: notation}
	}
	return Move{Face: letter, Clockwise: clockwise}, nil
}

// String returns the move in standard notation.
func (m Move) String() string {
	if m.Clockwise {
		return m.Face
	}
	return m.Face + "'"
}

// Inverse returns the move that undoes m.
func (m Move) Inverse() Move {
	return Move{Face: m.Face, Clockwise: !m.Clockwise}
}

// faceIndex resolves the move's face letter, reporting whether it is valid.
func (m Move) faceIndex() (int, bool) {
	idx, ok := faceByLetter[m.Face]
	return idx, ok
}
