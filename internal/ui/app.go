// Package ui runs the game on a terminal screen: input handling, the fixed-rate
// evolve and render loops, and the help and info overlays.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"

	"mazechase/internal/game"
	"mazechase/internal/grid"
	"mazechase/internal/spectate"
	"mazechase/internal/store"
)

const (
	commandInfoDuration = time.Second
	caughtInfoDuration  = 200 * time.Millisecond
)

// Publisher receives a frame after every redraw
type Publisher interface {
	Publish(spectate.Frame)
}

// Options configures an App
type Options struct {
	FPS       int
	EPS       int
	StateDir  string
	Slot      string
	Publisher Publisher // optional
}

// App drives a game on a screen
type App struct {
	screen tcell.Screen
	game   *game.Game
	opts   Options

	showHelp  bool
	onStart   bool
	info      string
	infoUntil time.Time
	quit      bool

	now func() time.Time
}

// New creates an App. The screen must already be initialized and is not finalized by the App.
func New(screen tcell.Screen, g *game.Game, opts Options) *App {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.EPS <= 0 {
		opts.EPS = 4
	}
	return &App{
		screen:   screen,
		game:     g,
		opts:     opts,
		showHelp: true,
		onStart:  true,
		now:      time.Now,
	}
}

// Run shows the start-up help and plays until Esc, Ctrl-C or ctx is done
func (a *App) Run(ctx context.Context) error {
	a.screen.HideCursor()
	a.draw()

	events := make(chan tcell.Event, 16)
	stop := make(chan struct{})
	defer close(stop)
	go pumpEvents(a.screen, events, stop)

	evolveTicker := time.NewTicker(tickInterval(a.opts.EPS))
	defer evolveTicker.Stop()
	renderTicker := time.NewTicker(tickInterval(a.opts.FPS))
	defer renderTicker.Stop()

	slog.Info("Game started", "cols", a.game.Grid().Cols(), "rows", a.game.Grid().Rows(), "fps", a.opts.FPS, "eps", a.opts.EPS)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Game stopped", "reason", ctx.Err())
			return nil
		case ev := <-events:
			a.handleEvent(ev)
			if a.quit {
				slog.Info("Game finished", "caught", a.game.Caught())
				return nil
			}
		case <-evolveTicker.C:
			a.evolve()
		case <-renderTicker.C:
			a.draw()
		}
	}
}

// tickInterval returns the period for rate ticks per second, never less than 1ns
func tickInterval(rate int) time.Duration {
	if rate <= 0 {
		return time.Second
	}
	d := time.Second / time.Duration(rate)
	if d <= 0 {
		d = time.Nanosecond
	}
	return d
}

// pumpEvents forwards screen events until the screen is finalized or stop closes
func pumpEvents(s tcell.Screen, events chan<- tcell.Event, stop <-chan struct{}) {
	for {
		ev := s.PollEvent()
		if ev == nil {
			return
		}
		select {
		case events <- ev:
		case <-stop:
			return
		}
	}
}

func (a *App) handleEvent(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		a.screen.Sync()
		a.draw()
	case *tcell.EventKey:
		a.handleKey(ev)
	}
}

func (a *App) handleKey(ev *tcell.EventKey) {
	if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
		a.quit = true
		return
	}

	// The world is paused behind the help screen
	if a.showHelp {
		if isHelpKey(ev) {
			a.showHelp = false
			a.onStart = false
			a.draw()
		}
		return
	}

	switch ev.Key() {
	case tcell.KeyLeft:
		a.game.MovePlayer(game.Left)
	case tcell.KeyDown:
		a.game.MovePlayer(game.Down)
	case tcell.KeyUp:
		a.game.MovePlayer(game.Up)
	case tcell.KeyRight:
		a.game.MovePlayer(game.Right)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'h':
			a.game.MovePlayer(game.Left)
		case 'j':
			a.game.MovePlayer(game.Down)
		case 'k':
			a.game.MovePlayer(game.Up)
		case 'l':
			a.game.MovePlayer(game.Right)
		case 'H':
			a.showHelp = true
		case 'S':
			a.saveMap()
		case 'R':
			a.regenerateMap()
		case 'L':
			a.loadMap()
		default:
			return
		}
	default:
		return
	}
	a.draw()
}

func (a *App) evolve() {
	if a.showHelp {
		return
	}
	for _, ev := range a.game.Evolve() {
		if ev == game.EventCaught {
			slog.Debug("Player caught", "caught", a.game.Caught())
			a.notify("Gotcha!", caughtInfoDuration)
		}
	}
}

func (a *App) saveMap() {
	sm, err := store.SaveMap(a.opts.StateDir, a.opts.Slot, a.game.Grid())
	if err != nil {
		slog.Error("Failed to save map", "slot", a.opts.Slot, "error", err)
		a.notify("Can't save map", commandInfoDuration)
		return
	}
	slog.Info("Map saved", "slot", sm.Slot, "path", sm.Path)
	a.notify("Map Saved", commandInfoDuration)
}

func (a *App) loadMap() {
	sm, err := store.LoadMap(a.opts.StateDir, a.opts.Slot)
	if err == nil {
		err = a.game.Load(sm.Grid)
	}
	if err != nil {
		slog.Warn("Failed to load map", "slot", a.opts.Slot, "error", err)
		a.notify(fmt.Sprintf("Can't load map (%s)", loadFailureReason(err)), commandInfoDuration)
		return
	}
	slog.Info("Map loaded", "slot", sm.Slot)
	a.notify("Map loaded", commandInfoDuration)
}

func loadFailureReason(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "not found"
	case errors.Is(err, game.ErrSizeMismatch):
		return "size mismatch"
	case errors.Is(err, game.ErrNoPlayer):
		return "no player"
	default:
		return "corrupt"
	}
}

func (a *App) regenerateMap() {
	if err := a.game.Regenerate(); err != nil {
		slog.Error("Failed to regenerate map", "error", err)
		a.notify("Can't regenerate map", commandInfoDuration)
		return
	}
	slog.Info("Map regenerated")
	a.notify("Map Regenerated", commandInfoDuration)
}

// notify shows msg in the info line for d
func (a *App) notify(msg string, d time.Duration) {
	a.info = msg
	a.infoUntil = a.now().Add(d)
	a.draw()
}

func (a *App) draw() {
	a.screen.Clear()
	m := a.game.Grid()
	drawCells(a.screen, m.Cols(), m.Rows(), func(col, row int) grid.CellType {
		return m.At(grid.Pos{Col: col, Row: row})
	}, a.game.Highlighted())

	switch {
	case a.showHelp:
		drawHelp(a.screen, a.onStart)
	case a.info != "" && a.now().Before(a.infoUntil):
		putString(a.screen, 2, 1, "Info: "+a.info, overlayTitleStyle)
	default:
		a.info = ""
	}
	a.screen.Show()

	if a.opts.Publisher != nil {
		a.opts.Publisher.Publish(spectate.FrameOf(a.game, a.now()))
	}
}
