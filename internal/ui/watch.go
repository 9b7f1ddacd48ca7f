package ui

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"

	"mazechase/internal/spectate"
)

// Watch renders spectator frames until ctx is done, frames closes, or Esc / q is pressed
func Watch(ctx context.Context, s tcell.Screen, frames <-chan spectate.Frame) error {
	s.HideCursor()
	s.Clear()
	putString(s, 2, 1, "Waiting for the game...", overlayTitleStyle)
	s.Show()

	events := make(chan tcell.Event, 16)
	stop := make(chan struct{})
	defer close(stop)
	go pumpEvents(s, events, stop)

	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			drawFrame(s, f)
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				s.Sync()
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || (ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
					return nil
				}
			}
		}
	}
}

func drawFrame(s tcell.Screen, f spectate.Frame) {
	s.Clear()
	drawCells(s, f.Cols, f.Rows, f.CellAt, f.Highlighted)
	putString(s, 2, 1, fmt.Sprintf("Spectating: caught %d times", f.Caught), overlayTitleStyle)
	s.Show()
}
