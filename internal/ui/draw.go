package ui

import (
	"github.com/gdamore/tcell/v2"

	"mazechase/internal/grid"
)

var (
	baseStyle      = tcell.StyleDefault
	playerStyle    = baseStyle.Bold(true).Foreground(tcell.ColorPurple)
	highlightStyle = baseStyle.Bold(true).Foreground(tcell.ColorYellow)
	enemyStyle     = baseStyle.Bold(true).Foreground(tcell.ColorBlue)

	overlayTitleStyle   = baseStyle.Bold(true).Foreground(tcell.ColorYellow).Background(tcell.ColorBlack)
	overlaySectionStyle = baseStyle.Bold(true).Foreground(tcell.ColorTeal).Background(tcell.ColorBlack)
	overlayTextStyle    = baseStyle.Foreground(tcell.ColorGreen).Background(tcell.ColorBlack)
)

func cellStyle(t grid.CellType, highlighted bool) tcell.Style {
	switch t {
	case grid.Player:
		if highlighted {
			return highlightStyle
		}
		return playerStyle
	case grid.Enemy:
		return enemyStyle
	default:
		return baseStyle
	}
}

// drawCells paints a cols x rows map starting at the top left corner
func drawCells(s tcell.Screen, cols, rows int, cellAt func(col, row int) grid.CellType, highlighted bool) {
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			t := cellAt(col, row)
			s.SetContent(col, row, grid.Face(t), nil, cellStyle(t, highlighted))
		}
	}
}

func putString(s tcell.Screen, x, y int, text string, style tcell.Style) {
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, style)
	}
}
