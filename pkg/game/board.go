package game

// Cell is the content of one grid position on a derived board.
type Cell uint8

const (
	CellEmpty Cell = iota
	CellFirst
	CellSecond
)

func (r Role) cell() Cell {
	if r == First {
		return CellFirst
	}
	return CellSecond
}

// Board is the grid view derived from a move log, indexed [row][column]
// with row 0 at the top.
type Board [BoardHeight][BoardWidth]Cell

// BoardFromMoves derives the grid from an accepted move log. The log is
// the single source of truth; no mutable grid is kept anywhere, which
// rules out grid/log divergence by construction.
func BoardFromMoves(moves []Move) Board {
	var b Board
	for _, m := range moves {
		b[m.Row][m.Column] = m.Role.cell()
	}
	return b
}

// dropRow returns the lowest empty row in column, or -1 if the column
// is full. Columns fill from the floor (row BoardHeight-1) upward.
func (b *Board) dropRow(column int) int {
	for row := BoardHeight - 1; row >= 0; row-- {
		if b[row][column] == CellEmpty {
			return row
		}
	}
	return -1
}

// scanDirections orders the line checks: horizontal, vertical,
// diagonal-down-right, diagonal-down-left.
var scanDirections = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

// hasWin scans every cell in row-major order for a run of four equal
// non-empty cells in any scan direction. Out-of-range neighbors count
// as non-matching.
func (b *Board) hasWin() bool {
	for row := 0; row < BoardHeight; row++ {
		for col := 0; col < BoardWidth; col++ {
			mark := b[row][col]
			if mark == CellEmpty {
				continue
			}
			for _, d := range scanDirections {
				if b.runFrom(row, col, d[0], d[1], mark) >= winLength {
					return true
				}
			}
		}
	}
	return false
}

// runFrom counts consecutive cells equal to mark starting at (row, col)
// and stepping by (dr, dc), stopping at the first mismatch or board edge.
func (b *Board) runFrom(row, col, dr, dc int, mark Cell) int {
	count := 0
	for row >= 0 && row < BoardHeight && col >= 0 && col < BoardWidth && b[row][col] == mark {
		count++
		row += dr
		col += dc
	}
	return count
}
