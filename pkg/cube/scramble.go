package cube

import "math/rand"

// Scramble applies n random quarter turns to a solved cube and returns the
// resulting state together with the moves applied, in order. No two
// consecutive moves turn the same face. Scramble(0, rng) returns the solved
// cube and an empty move list.
func Scramble(n int, rng *rand.Rand) (Cube, []Move) {
	c := Solved()
	moves := make([]Move, 0, n)
	lastFace := ""
	for i := 0; i < n; i++ {
		face := FaceLetters[rng.Intn(len(FaceLetters))]
		for face == lastFace {
			face = FaceLetters[rng.Intn(len(FaceLetters))]
		}
		m := Move{Face: face, Clockwise: rng.Intn(2) == 0}
		c, _ = Apply(c, m)
		moves = append(moves, m)
		lastFace = face
	}
	return c, moves
}
