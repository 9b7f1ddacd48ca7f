package spectate

import (
	"time"

	"mazechase/internal/game"
	"mazechase/internal/grid"
)

// Frame is one picture of the world as sent to spectators
type Frame struct {
	Cols        int       `json:"cols"`
	Rows        int       `json:"rows"`
	Cells       []string  `json:"cells"` // One string of faces per row
	Player      grid.Pos  `json:"player"`
	Caught      int       `json:"caught"`
	Highlighted bool      `json:"highlighted"`
	At          time.Time `json:"at"`
}

// FrameOf captures the current state of g
func FrameOf(g *game.Game, at time.Time) Frame {
	m := g.Grid()
	cells := make([]string, m.Rows())
	for row := range cells {
		cells[row] = m.Row(row)
	}
	return Frame{
		Cols:        m.Cols(),
		Rows:        m.Rows(),
		Cells:       cells,
		Player:      g.Player(),
		Caught:      g.Caught(),
		Highlighted: g.Highlighted(),
		At:          at.UTC(),
	}
}

// CellAt returns the cell type at col, row. Malformed frames yield OutOfGrid.
func (f Frame) CellAt(col, row int) grid.CellType {
	if row < 0 || row >= len(f.Cells) {
		return grid.OutOfGrid
	}
	runes := []rune(f.Cells[row])
	if col < 0 || col >= len(runes) {
		return grid.OutOfGrid
	}
	t, err := grid.CellTypeOf(runes[col])
	if err != nil {
		return grid.OutOfGrid
	}
	return t
}
