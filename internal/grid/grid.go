package grid

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
)

// CellType is the content of a single grid cell
type CellType int

const (
	Floor CellType = iota
	Wall
	Player
	Enemy
	// OutOfGrid is returned for lookups outside the grid and is never stored
	OutOfGrid
)

// ErrNoRoom is returned when an agent has to be placed but no floor cell is left
var ErrNoRoom = errors.New("no free floor cell left")

func (t CellType) String() string {
	switch t {
	case Floor:
		return "floor"
	case Wall:
		return "wall"
	case Player:
		return "player"
	case Enemy:
		return "enemy"
	case OutOfGrid:
		return "out-of-grid"
	default:
		return fmt.Sprintf("CellType(%d)", int(t))
	}
}

// IsAgent reports whether t is something that moves around the grid
func (t CellType) IsAgent() bool {
	return t == Player || t == Enemy
}

// Pos is a cell coordinate, column first
type Pos struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// Delta is a relative step
type Delta struct {
	DCol int
	DRow int
}

// Add returns p moved by d
func (p Pos) Add(d Delta) Pos {
	return Pos{Col: p.Col + d.DCol, Row: p.Row + d.DRow}
}

// Grid is a rectangular map stored row by row
type Grid struct {
	cols  int
	rows  int
	cells []CellType
}

// New returns a grid of the given size filled with floor
func New(cols, rows int) *Grid {
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	return &Grid{
		cols:  cols,
		rows:  rows,
		cells: make([]CellType, cols*rows),
	}
}

// Generate returns a random map where every cell is a wall with probability density
func Generate(rng *rand.Rand, cols, rows int, density float64) *Grid {
	g := New(cols, rows)
	for i := range g.cells {
		if rng.Float64() < density {
			g.cells[i] = Wall
		}
	}
	return g
}

func (g *Grid) Cols() int { return g.cols }
func (g *Grid) Rows() int { return g.rows }

// InBounds reports whether p lies on the grid
func (g *Grid) InBounds(p Pos) bool {
	return p.Col >= 0 && p.Row >= 0 && p.Col < g.cols && p.Row < g.rows
}

// At returns the cell at p, or OutOfGrid
func (g *Grid) At(p Pos) CellType {
	if !g.InBounds(p) {
		return OutOfGrid
	}
	return g.cells[p.Row*g.cols+p.Col]
}

// Set stores t at p. Positions outside the grid and OutOfGrid values are ignored.
func (g *Grid) Set(p Pos, t CellType) {
	if !g.InBounds(p) || t == OutOfGrid {
		return
	}
	g.cells[p.Row*g.cols+p.Col] = t
}

// WillStepOn returns what an agent at p would step on when moving by d
func (g *Grid) WillStepOn(p Pos, d Delta) CellType {
	return g.At(p.Add(d))
}

// Move moves the occupant of p by d and leaves floor behind.
// The caller checks that the target is floor.
func (g *Grid) Move(p Pos, d Delta) Pos {
	target := p.Add(d)
	g.Set(target, g.At(p))
	g.Set(p, Floor)
	return target
}

// Find returns the positions of every cell holding the agent type t, row by row
func (g *Grid) Find(t CellType) ([]Pos, error) {
	if !t.IsAgent() {
		return nil, fmt.Errorf("%s is not an agent cell type", t)
	}
	var found []Pos
	for i, c := range g.cells {
		if c == t {
			found = append(found, Pos{Col: i % g.cols, Row: i / g.cols})
		}
	}
	return found, nil
}

// Count returns how many cells hold t
func (g *Grid) Count(t CellType) int {
	n := 0
	for _, c := range g.cells {
		if c == t {
			n++
		}
	}
	return n
}

// Spawn places t on a random floor cell
func (g *Grid) Spawn(rng *rand.Rand, t CellType) (Pos, error) {
	free := g.Count(Floor)
	if free == 0 {
		return Pos{}, ErrNoRoom
	}
	pick := rng.IntN(free)
	for i, c := range g.cells {
		if c != Floor {
			continue
		}
		if pick == 0 {
			g.cells[i] = t
			return Pos{Col: i % g.cols, Row: i / g.cols}, nil
		}
		pick--
	}
	return Pos{}, ErrNoRoom
}

// Clone returns a deep copy
func (g *Grid) Clone() *Grid {
	c := &Grid{cols: g.cols, rows: g.rows, cells: make([]CellType, len(g.cells))}
	copy(c.cells, g.cells)
	return c
}

// Row returns the faces of a row as a string
func (g *Grid) Row(row int) string {
	if row < 0 || row >= g.rows {
		return ""
	}
	buf := make([]rune, g.cols)
	for col := range buf {
		buf[col] = Face(g.cells[row*g.cols+col])
	}
	return string(buf)
}

// Face returns the character used to draw a cell
func Face(t CellType) rune {
	switch t {
	case Floor:
		return ' '
	case Wall:
		return '#'
	case Player:
		return '@'
	case Enemy:
		return '&'
	default:
		return '?'
	}
}

// CellTypeOf maps a face back to its cell type
func CellTypeOf(r rune) (CellType, error) {
	switch r {
	case ' ':
		return Floor, nil
	case '#':
		return Wall, nil
	case '@':
		return Player, nil
	case '&':
		return Enemy, nil
	default:
		return OutOfGrid, fmt.Errorf("unknown cell face %q", r)
	}
}

// MarshalText encodes the grid as one line of faces per row
func (g *Grid) MarshalText() ([]byte, error) {
	var buf bytes.Buffer
	for row := 0; row < g.rows; row++ {
		buf.WriteString(g.Row(row))
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// UnmarshalText parses the format written by MarshalText
func (g *Grid) UnmarshalText(text []byte) error {
	text = bytes.TrimSuffix(text, []byte("\n"))
	if len(text) == 0 {
		return fmt.Errorf("empty grid")
	}
	lines := bytes.Split(text, []byte("\n"))

	cols := len([]rune(string(lines[0])))
	if cols == 0 {
		return fmt.Errorf("empty grid row 0")
	}
	cells := make([]CellType, 0, cols*len(lines))
	for i, line := range lines {
		runes := []rune(string(line))
		if len(runes) != cols {
			return fmt.Errorf("row %d has %d cells, expected %d", i, len(runes), cols)
		}
		for j, r := range runes {
			t, err := CellTypeOf(r)
			if err != nil {
				return fmt.Errorf("row %d col %d: %w", i, j, err)
			}
			cells = append(cells, t)
		}
	}

	g.cols = cols
	g.rows = len(lines)
	g.cells = cells
	return nil
}
