package game

import "errors"

// Connect Four dimensions
const (
	ConnectFourRows = 6
	ConnectFourCols = 7
)

var (
	ErrColumnFull    = errors.New("column is full")
	ErrInvalidColumn = errors.New("invalid column")
)

// ConnectFour holds the drop grid. Cells carry the owning player's id, or ""
// while empty. Row 0 is the top of the board.
type ConnectFour struct {
	Cells [ConnectFourRows][ConnectFourCols]string `json:"cells"`
}

// NewConnectFour returns an empty grid.
func NewConnectFour() *ConnectFour {
	return &ConnectFour{}
}

// Drop places a disc for player in the given column and returns the row it
// landed in.
func (b *ConnectFour) Drop(col int, player string) (int, error) {
	if col < 0 || col >= ConnectFourCols {
		return -1, ErrInvalidColumn
	}
	for row := ConnectFourRows - 1; row >= 0; row-- {
		if b.Cells[row][col] == "" {
			b.Cells[row][col] = player
			return row, nil
		}
	}
	return -1, ErrColumnFull
}

// HasWon checks whether the disc just placed at (row, col) completed four in
// a row for player. Scans the four line directions out from the placement,
// the same walk the portal's board view does.
func (b *ConnectFour) HasWon(row, col int, player string) bool {
	directions := [4][2]int{
		{0, 1},  // horizontal
		{1, 0},  // vertical
		{1, 1},  // diagonal down-right
		{1, -1}, // diagonal down-left
	}

	for _, dir := range directions {
		count := 1
		for _, sign := range []int{1, -1} {
			r, c := row+dir[0]*sign, col+dir[1]*sign
			for r >= 0 && r < ConnectFourRows && c >= 0 && c < ConnectFourCols && b.Cells[r][c] == player {
				count++
				r += dir[0] * sign
				c += dir[1] * sign
			}
		}
		if count >= 4 {
			return true
		}
	}
	return false
}

// Full reports whether no further drop is possible (a draw).
func (b *ConnectFour) Full() bool {
	for col := 0; col < ConnectFourCols; col++ {
		if b.Cells[0][col] == "" {
			return false
		}
	}
	return true
}
