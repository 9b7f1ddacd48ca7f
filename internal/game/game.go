// Package game holds the rules of the chase: a player walking a random maze while
// enemies wander around it and now and then step toward the player.
package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"mazechase/internal/grid"
)

var (
	// ErrSizeMismatch is returned by Load when the grid differs in size from the running game
	ErrSizeMismatch = errors.New("grid size mismatch")
	// ErrNoPlayer is returned by Load when the grid does not hold exactly one player
	ErrNoPlayer = errors.New("grid must contain exactly one player")
)

// Config describes the world to generate
type Config struct {
	Cols    int
	Rows    int
	Enemies int
	Density float64
	// Seed 0 picks a time based seed
	Seed uint64
}

// Validate checks that a world can be built from the config
func (c Config) Validate() error {
	if c.Cols <= 0 || c.Rows <= 0 {
		return fmt.Errorf("grid size must be positive, got %dx%d", c.Cols, c.Rows)
	}
	if c.Enemies < 0 {
		return fmt.Errorf("number of enemies must not be negative, got %d", c.Enemies)
	}
	if c.Density < 0 || c.Density >= 1 {
		return fmt.Errorf("map density must be in [0, 1), got %v", c.Density)
	}
	if c.Enemies+1 > c.Cols*c.Rows {
		return fmt.Errorf("%d enemies and a player do not fit on a %dx%d grid", c.Enemies, c.Cols, c.Rows)
	}
	return nil
}

// Direction is a player move
type Direction int

const (
	Left Direction = iota
	Down
	Up
	Right
)

// Delta returns the grid step for d
func (d Direction) Delta() grid.Delta {
	switch d {
	case Left:
		return grid.Delta{DCol: -1}
	case Down:
		return grid.Delta{DRow: 1}
	case Up:
		return grid.Delta{DRow: -1}
	case Right:
		return grid.Delta{DCol: 1}
	default:
		return grid.Delta{}
	}
}

// Event is something noteworthy that happened during Evolve
type Event int

const (
	// EventCaught means an enemy tried to step onto the player
	EventCaught Event = iota
)

// Game is the complete world state. It is not safe for concurrent use.
type Game struct {
	cfg     Config
	rng     *rand.Rand
	grid    *grid.Grid
	player  grid.Pos
	enemies []grid.Pos

	highlighted bool
	caught      int
}

// New validates cfg and builds a fresh world
func New(cfg Config) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	g := &Game{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	if err := g.Regenerate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Regenerate throws the current map away and builds a new one with fresh spawns
func (g *Game) Regenerate() error {
	m := grid.Generate(g.rng, g.cfg.Cols, g.cfg.Rows, g.cfg.Density)

	player, err := m.Spawn(g.rng, grid.Player)
	if err != nil {
		return fmt.Errorf("failed to spawn player: %w", err)
	}
	enemies := make([]grid.Pos, 0, g.cfg.Enemies)
	for i := 0; i < g.cfg.Enemies; i++ {
		p, err := m.Spawn(g.rng, grid.Enemy)
		if err != nil {
			return fmt.Errorf("failed to spawn enemy %d: %w", i, err)
		}
		enemies = append(enemies, p)
	}

	g.grid = m
	g.player = player
	g.enemies = enemies
	return nil
}

// Load replaces the map with m
func (g *Game) Load(m *grid.Grid) error {
	if m.Cols() != g.grid.Cols() || m.Rows() != g.grid.Rows() {
		return fmt.Errorf("%w: got %dx%d, playing on %dx%d", ErrSizeMismatch, m.Cols(), m.Rows(), g.grid.Cols(), g.grid.Rows())
	}
	players, err := m.Find(grid.Player)
	if err != nil {
		return err
	}
	if len(players) != 1 {
		return fmt.Errorf("%w: found %d", ErrNoPlayer, len(players))
	}
	enemies, err := m.Find(grid.Enemy)
	if err != nil {
		return err
	}

	g.grid = m.Clone()
	g.player = players[0]
	g.enemies = enemies
	return nil
}

// MovePlayer moves the player one cell if the target is floor
func (g *Game) MovePlayer(dir Direction) bool {
	d := dir.Delta()
	if g.grid.WillStepOn(g.player, d) != grid.Floor {
		return false
	}
	g.player = g.grid.Move(g.player, d)
	return true
}

// Evolve lets every enemy take one step
func (g *Game) Evolve() []Event {
	var events []Event
	for i := range g.enemies {
		anger := g.rng.Float64()/5 + 0.1
		if g.stepEnemy(i, anger) {
			events = append(events, EventCaught)
		}
	}
	return events
}

// stepEnemy moves enemy i and reports whether it bumped into the player
func (g *Game) stepEnemy(i int, anger float64) bool {
	d := g.enemyStep(g.enemies[i], anger)
	switch g.grid.WillStepOn(g.enemies[i], d) {
	case grid.Floor:
		g.enemies[i] = g.grid.Move(g.enemies[i], d)
	case grid.Player:
		g.highlighted = !g.highlighted
		g.caught++
		return true
	}
	return false
}

func (g *Game) enemyStep(enemy grid.Pos, anger float64) grid.Delta {
	if g.rng.Float64() < anger {
		if g.rng.IntN(2) == 0 {
			return grid.Delta{DCol: sign(g.player.Col - enemy.Col)}
		}
		return grid.Delta{DRow: sign(g.player.Row - enemy.Row)}
	}

	step := 1
	if g.rng.IntN(2) == 0 {
		step = -1
	}
	if g.rng.IntN(2) == 0 {
		return grid.Delta{DCol: step}
	}
	return grid.Delta{DRow: step}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func (g *Game) Config() Config { return g.cfg }

// Grid returns the live map. Callers must not modify it.
func (g *Game) Grid() *grid.Grid { return g.grid }

func (g *Game) Player() grid.Pos { return g.player }

// Enemies returns a copy of the enemy positions
func (g *Game) Enemies() []grid.Pos {
	out := make([]grid.Pos, len(g.enemies))
	copy(out, g.enemies)
	return out
}

// Highlighted reports whether the player is drawn in its alternate color
func (g *Game) Highlighted() bool { return g.highlighted }

// Caught returns how many times enemies bumped into the player
func (g *Game) Caught() int { return g.caught }
