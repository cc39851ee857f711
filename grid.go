package main

const (
	gridSize  = 5
	gridCells = gridSize * gridSize

	cellEmpty = "E"
)

// Palette of legal cell symbols. "K" is reserved and unused by the
// built-in targets, but still accepted in submissions.
var palette = map[string]bool{
	"R":       true,
	"G":       true,
	"B":       true,
	"Y":       true,
	"K":       true,
	cellEmpty: true,
}

// Grid is a row-major matrix of palette symbols.
type Grid [][]string

func emptyGrid() Grid {
	g := make(Grid, gridSize)
	for r := range g {
		g[r] = make([]string, gridSize)
		for c := range g[r] {
			g[r][c] = cellEmpty
		}
	}
	return g
}

// valid reports whether g is exactly 5x5 with every cell drawn from the palette.
func (g Grid) valid() bool {
	if len(g) != gridSize {
		return false
	}
	for _, row := range g {
		if len(row) != gridSize {
			return false
		}
		for _, cell := range row {
			if !palette[cell] {
				return false
			}
		}
	}
	return true
}

func gridEquals(a, b Grid) bool {
	for r := 0; r < gridSize; r++ {
		for c := 0; c < gridSize; c++ {
			if a[r][c] != b[r][c] {
				return false
			}
		}
	}
	return true
}

// scoreGrid returns the percentage of cells matching the target, 0-100.
// 25 cells divide 100 evenly, so no rounding is lost here.
func scoreGrid(target, grid Grid) int {
	matched := 0
	for r := 0; r < gridSize; r++ {
		for c := 0; c < gridSize; c++ {
			if target[r][c] == grid[r][c] {
				matched++
			}
		}
	}
	return matched * 100 / gridCells
}

// DiffStats classifies every mismatched cell: wrongEmpty when exactly one
// side is empty, wrongColor otherwise.
type DiffStats struct {
	WrongColor int `json:"wrongColor"`
	WrongEmpty int `json:"wrongEmpty"`
}

func diffStats(target, grid Grid) DiffStats {
	var stats DiffStats
	for r := 0; r < gridSize; r++ {
		for c := 0; c < gridSize; c++ {
			t := target[r][c]
			g := grid[r][c]
			switch {
			case t == g:
			case t == cellEmpty || g == cellEmpty:
				stats.WrongEmpty++
			default:
				stats.WrongColor++
			}
		}
	}
	return stats
}
