package ui

import (
	"github.com/gdamore/tcell/v2"
)

type helpLine struct {
	x, y  int
	text  string
	style tcell.Style
}

var helpLines = []helpLine{
	{2, 1, "This is a Help Message", overlayTitleStyle},
	{5, 2, "About: ", overlaySectionStyle},
	{10, 3, "Play as `@` and escape from `&`.", overlayTextStyle},
	{5, 4, "Keys: ", overlaySectionStyle},
	{10, 5, " h,j,k,l  : movement (arrow keys work too)", overlayTextStyle},
	{10, 6, "<shift+h>: show/hide this Help Message", overlayTextStyle},
	{10, 7, "<shift+r>: regenerate map", overlayTextStyle},
	{10, 8, "<shift+s>: save current game state", overlayTextStyle},
	{10, 9, "<shift+l>: load previously saved game state (if present)", overlayTextStyle},
	{10, 10, "<esc>    : quit", overlayTextStyle},
}

const startHint = "Hide this message (<shift+h>) to start the game."

func drawHelp(s tcell.Screen, onStart bool) {
	for _, l := range helpLines {
		putString(s, l.x, l.y, l.text, l.style)
	}
	if onStart {
		putString(s, 5, 11, startHint, overlaySectionStyle)
	}
}

func isHelpKey(ev *tcell.EventKey) bool {
	return ev.Key() == tcell.KeyRune && ev.Rune() == 'H'
}
