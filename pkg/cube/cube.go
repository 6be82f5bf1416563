// Package cube implements the puzzle state and the face-rotation engine.
//
// A cube is stored as six 3x3 faces in a fixed order: Back, Up, Front,
// Down, Left, Right. Cells hold color codes 1..6; the solved cube colors
// each face with its own code (Back=1, Left=2, Right=3, Up=4, Front=5,
// Down=6). Row 0 of the Up face borders the Back face, row 0 of the Front
// face borders the Up face; the adjacency tables in rotate.go are written
// against this orientation.
package cube

// Face indices within a Cube.
const (
	FaceBack = iota
	FaceUp
	FaceFront
	FaceDown
	FaceLeft
	FaceRight
	NumFaces
)

const (
	// Size is the edge length of a face.
	Size = 3
	// NumColors is the size of the color palette.
	NumColors = 6
)

// Grid is a single face: Size x Size color codes.
type Grid [Size][Size]uint8

// Cube is the full puzzle state. It is a value type; the engine never
// mutates a Cube in place.
type Cube [NumFaces]Grid

// solvedColors maps face index to the color code of that face when solved.
var solvedColors = [NumFaces]uint8{
	FaceBack:  1,
	FaceUp:    4,
	FaceFront: 5,
	FaceDown:  6,
	FaceLeft:  2,
	FaceRight: 3,
}

// Solved returns the solved cube.
func Solved() Cube {
	var c Cube
	for f := 0; f < NumFaces; f++ {
		for r := 0; r < Size; r++ {
			for col := 0; col < Size; col++ {
				c[f][r][col] = solvedColors[f]
			}
		}
	}
	return c
}

// Validate checks that every cell holds a color code within the palette.
func Validate(c Cube) error {
	for f := 0; f < NumFaces; f++ {
		for r := 0; r < Size; r++ {
			for col := 0; col < Size; col++ {
				v := c[f][r][col]
				if v < 1 || v > NumColors {
					return &ErrInvalidState{Reason: "color code out of palette"}
				}
			}
		}
	}
	return nil
}

// IsSolved reports whether the cube is solved: every face uniform and the
// six uniform colors pairwise distinct. It returns false as soon as a
// non-uniform face is found, but never returns true before all six faces
// have been examined.
func IsSolved(c Cube) bool {
	var seen [NumColors + 1]bool
	for f := 0; f < NumFaces; f++ {
		v := c[f][0][0]
		for r := 0; r < Size; r++ {
			for col := 0; col < Size; col++ {
				if c[f][r][col] != v {
					return false
				}
			}
		}
		if v < 1 || v > NumColors || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
