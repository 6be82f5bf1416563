package cube

// cell addresses one sticker on a face.
type cell struct {
	row, col int
}

// strip is an ordered run of three cells on one face. The cell order
// encodes the orientation in which the strip travels around the cube, so
// a single generic rotation routine can move content between strips
// without per-face special cases.
type strip struct {
	face  int
	cells [Size]cell
}

// adjacency lists, for each rotated face, the 4-cycle of edge strips on
// the neighboring faces. On a clockwise turn the content of cycle[i+1]
// moves into cycle[i]; counter-clockwise is the reverse. The tables are
// fixed geometric constants of the cube under the orientation documented
// in cube.go.
var adjacency = [NumFaces][4]strip{
	FaceUp: {
		{FaceFront, [Size]cell{{0, 0}, {0, 1}, {0, 2}}},
		{FaceRight, [Size]cell{{0, 0}, {0, 1}, {0, 2}}},
		{FaceBack, [Size]cell{{0, 0}, {0, 1}, {0, 2}}},
		{FaceLeft, [Size]cell{{0, 0}, {0, 1}, {0, 2}}},
	},
	FaceDown: {
		{FaceFront, [Size]cell{{2, 0}, {2, 1}, {2, 2}}},
		{FaceLeft, [Size]cell{{2, 0}, {2, 1}, {2, 2}}},
		{FaceBack, [Size]cell{{2, 0}, {2, 1}, {2, 2}}},
		{FaceRight, [Size]cell{{2, 0}, {2, 1}, {2, 2}}},
	},
	FaceFront: {
		{FaceUp, [Size]cell{{2, 0}, {2, 1}, {2, 2}}},
		{FaceLeft, [Size]cell{{2, 2}, {1, 2}, {0, 2}}},
		{FaceDown, [Size]cell{{0, 2}, {0, 1}, {0, 0}}},
		{FaceRight, [Size]cell{{0, 0}, {1, 0}, {2, 0}}},
	},
	FaceBack: {
		{FaceUp, [Size]cell{{0, 0}, {0, 1}, {0, 2}}},
		{FaceRight, [Size]cell{{0, 2}, {1, 2}, {2, 2}}},
		{FaceDown, [Size]cell{{2, 2}, {2, 1}, {2, 0}}},
		{FaceLeft, [Size]cell{{2, 0}, {1, 0}, {0, 0}}},
	},
	FaceLeft: {
		{FaceUp, [Size]cell{{0, 0}, {1, 0}, {2, 0}}},
		{FaceBack, [Size]cell{{2, 2}, {1, 2}, {0, 2}}},
		{FaceDown, [Size]cell{{0, 0}, {1, 0}, {2, 0}}},
		{FaceFront, [Size]cell{{0, 0}, {1, 0}, {2, 0}}},
	},
	FaceRight: {
		{FaceUp, [Size]cell{{0, 2}, {1, 2}, {2, 2}}},
		{FaceFront, [Size]cell{{0, 2}, {1, 2}, {2, 2}}},
		{FaceDown, [Size]cell{{0, 2}, {1, 2}, {2, 2}}},
		{FaceBack, [Size]cell{{2, 0}, {1, 0}, {0, 0}}},
	},
}

// Apply returns the cube that results from applying the move. The input
// cube is not modified. It fails with ErrInvalidMove for an unknown face
// and ErrInvalidState for a cube outside the color palette.
func Apply(c Cube, m Move) (Cube, error) {
	faceIdx, ok := m.faceIndex()
	if !ok {
		return Cube{}, &ErrInvalidMove{Notation: m.String()}
	}
	if err := Validate(c); err != nil {
		return Cube{}, err
	}

	out := c
	out[faceIdx] = rotateGrid(c[faceIdx], m.Clockwise)

	cycle := adjacency[faceIdx]
	for i := 0; i < 4; i++ {
		var src strip
		if m.Clockwise {
			src = cycle[(i+1)%4]
		} else {
			src = cycle[(i+3)%4]
		}
		dst := cycle[i]
		for k := 0; k < Size; k++ {
			out[dst.face][dst.cells[k].row][dst.cells[k].col] = c[src.face][src.cells[k].row][src.cells[k].col]
		}
	}
	return out, nil
}

// rotateGrid rotates a single face 90 degrees.
func rotateGrid(g Grid, clockwise bool) Grid {
	var out Grid
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if clockwise {
				out[r][c] = g[Size-1-c][r]
			} else {
				out[r][c] = g[c][Size-1-r]
			}
		}
	}
	return out
}
