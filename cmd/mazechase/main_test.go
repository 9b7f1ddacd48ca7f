package main

import (
	"bytes"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/require"

	"mazechase/internal/config"
	"mazechase/internal/grid"
	"mazechase/internal/spectate"
	"mazechase/internal/store"
)

// run executes the root command with args and returns what it printed
func run(t *testing.T, in io.Reader, newScreen screenFunc, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(newScreen)
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// openPty returns the terminal side of a fresh pty of the given size. Everything
// written to the terminal is discarded, and keys is typed into it every 100ms
// until the test ends.
func openPty(t *testing.T, cols, rows uint16, keys string) *os.File {
	t.Helper()
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("no pty available: %v", err)
	}
	require.NoError(t, pty.Setsize(ptmx, &pty.Winsize{Cols: cols, Rows: rows}))
	t.Setenv("TERM", "xterm-256color")

	done := make(chan struct{})
	go func() { _, _ = io.Copy(io.Discard, ptmx) }()
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if _, err := ptmx.WriteString(keys); err != nil {
					return
				}
			}
		}
	}()
	t.Cleanup(func() {
		close(done)
		_ = tty.Close()
		_ = ptmx.Close()
	})
	return tty
}

// ptyScreen opens a terminfo screen on the terminal the command was given
func ptyScreen(tty *os.File) (tcell.Screen, error) {
	dev, err := tcell.NewDevTtyFromDev(tty.Name())
	if err != nil {
		return nil, err
	}
	return tcell.NewTerminfoScreenFromTty(dev)
}

func TestNewMapUsesConfigAndFlags(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := config.Default()
	cfg.Enemies = 1
	cfg.Density = 0
	cfg.Cols = 50
	require.NoError(t, config.Write(filepath.Join(tmpDir, config.FileName), cfg))

	_, stderr, err := run(t, nil, nil, "new-map", "--state-dir", tmpDir, "--cols", "12", "--rows", "6", "--slot", "Level One", "--seed", "3")
	require.NoError(t, err)
	require.Contains(t, stderr, `Saved map "level-one" (12x6)`)

	sm, err := store.LoadMap(tmpDir, "level-one")
	require.NoError(t, err)
	require.Equal(t, 12, sm.Cols, "flags win over the config file")
	require.Equal(t, 6, sm.Rows)
	require.Equal(t, 1, sm.Grid.Count(grid.Enemy), "config file wins over defaults")
	require.Equal(t, 1, sm.Grid.Count(grid.Player))
	require.Zero(t, sm.Grid.Count(grid.Wall))

	_, _, err = run(t, nil, nil, "delete-map", "--state-dir", tmpDir, "level-one")
	require.NoError(t, err)
	_, err = store.LoadMap(tmpDir, "level-one")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, _, err = run(t, nil, nil, "show-map", "--state-dir", tmpDir, "level-one")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestShowMapPrintsGrid(t *testing.T) {
	tmpDir := t.TempDir()
	var g grid.Grid
	require.NoError(t, g.UnmarshalText([]byte("#@ \n &#\n")))
	_, err := store.SaveMap(tmpDir, "level-one", &g)
	require.NoError(t, err)

	stdout, _, err := run(t, nil, nil, "show-map", "--state-dir", tmpDir, "level-one")
	require.NoError(t, err)
	require.Equal(t, "#@ \n &#\n", stdout)
}

func TestShowMapDefaultsToConfiguredSlot(t *testing.T) {
	tmpDir := t.TempDir()
	var g grid.Grid
	require.NoError(t, g.UnmarshalText([]byte("@&\n")))
	_, err := store.SaveMap(tmpDir, "custom", &g)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Slot = "custom"
	require.NoError(t, config.Write(filepath.Join(tmpDir, config.FileName), cfg))

	stdout, _, err := run(t, nil, nil, "show-map", "--state-dir", tmpDir)
	require.NoError(t, err)
	require.Equal(t, "@&\n", stdout)

	// An explicit config file wins over the one in the state directory
	other := filepath.Join(t.TempDir(), "other.yaml")
	require.NoError(t, config.Write(other, config.Default()))
	_, _, err = run(t, nil, nil, "show-map", "--state-dir", tmpDir, "--config", other)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListMaps(t *testing.T) {
	tmpDir := t.TempDir()
	for _, slot := range []string{"zeta", "alpha"} {
		_, err := store.SaveMap(tmpDir, slot, grid.New(12, 3))
		require.NoError(t, err)
	}

	stdout, _, err := run(t, nil, nil, "list-maps", "--state-dir", tmpDir)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, []string{"SLOT", "SIZE", "SAVED"}, strings.Fields(lines[0]))
	require.Equal(t, []string{"alpha", "12x3"}, strings.Fields(lines[1])[:2])
	require.Equal(t, []string{"zeta", "12x3"}, strings.Fields(lines[2])[:2])
	// Columns are aligned
	require.Equal(t, strings.Index(lines[0], "SIZE"), strings.Index(lines[1], "12x3"))
	saved := strings.Join(strings.Fields(lines[2])[2:], " ")
	_, err = time.ParseInLocation(time.DateTime, saved, time.Local)
	require.NoError(t, err, saved)
	require.Equal(t, strings.Index(lines[0], "SAVED"), strings.Index(lines[2], saved))
}

func TestListMapsWithoutStateDir(t *testing.T) {
	_, _, err := run(t, nil, nil, "list-maps", "--state-dir", filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolveSettingsPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := config.Default()
	cfg.FPS = 10
	cfg.EPS = 2
	cfg.LogFile = "from-config.log"
	cfg.SpectateAddr = "localhost:1"
	cfg.Enemies = 7
	require.NoError(t, config.Write(filepath.Join(tmpDir, config.FileName), cfg))

	c := &cli{flags: config.Default()}
	cmd := c.playCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--state-dir", tmpDir,
		"--fps", "60",
		"--eps", "8",
		"--log-file", " game.log ",
		"--spectate", "localhost:22124",
	}))

	s, err := c.resolveSettings(cmd, tmpDir)
	require.NoError(t, err)
	require.Equal(t, 60, s.FPS)
	require.Equal(t, 8, s.EPS)
	require.Equal(t, "game.log", s.LogFile)
	require.Equal(t, "localhost:22124", s.SpectateAddr)
	require.Equal(t, 7, s.Enemies, "unset flags keep the config file value")
	require.Equal(t, "info", s.LogLevel, "defaults fill what neither sets")
}

func TestPlayNeedsTerminal(t *testing.T) {
	tmpDir := t.TempDir()
	_, _, err := run(t, strings.NewReader(""), nil, "play", "--state-dir", tmpDir, "--cols", "10", "--rows", "5")
	require.ErrorContains(t, err, "interactive terminal")

	f, err := os.Create(filepath.Join(tmpDir, "stdin"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	_, _, err = run(t, f, nil, "play", "--state-dir", tmpDir, "--cols", "10", "--rows", "5")
	require.ErrorContains(t, err, "interactive terminal")
}

func TestPlayRejectsRateAboveCap(t *testing.T) {
	tty := openPty(t, 20, 10, "")
	_, _, err := run(t, tty, ptyScreen, "play", "--state-dir", t.TempDir(), "--cols", "10", "--rows", "5", "--eps", "2000000000")
	require.ErrorContains(t, err, "eps must be in")
}

func TestPlayQuitsOnEscape(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "play.log")
	tty := openPty(t, 20, 10, "\x1b")

	_, stderr, err := run(t, tty, ptyScreen, "play",
		"--state-dir", tmpDir,
		"--cols", "10", "--rows", "5",
		"--seed", "7",
		"--log-file", logFile,
		"--spectate", "127.0.0.1:0",
	)
	require.NoError(t, err)
	require.Regexp(t, `^Caught \d+ times\. Bye!\n$`, stderr)

	logs, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.Contains(t, string(logs), "Game started")
	require.Contains(t, string(logs), "cols=10 rows=5")
	require.Contains(t, string(logs), "Serving spectators")
}

func TestPlayUsesTerminalSize(t *testing.T) {
	tmpDir := t.TempDir()
	tty := openPty(t, 14, 6, "\x1b")

	_, stderr, err := run(t, tty, ptyScreen, "play", "--state-dir", tmpDir, "--seed", "7", "--enemies", "1")
	require.NoError(t, err)
	require.Contains(t, stderr, "Caught")

	logs, err := os.ReadFile(filepath.Join(tmpDir, "mazechase.log"))
	require.NoError(t, err)
	require.Contains(t, string(logs), "cols=14 rows=6")
}

func TestWatchShowsFeedUntilQ(t *testing.T) {
	hub := spectate.NewHub()
	srv := httptest.NewServer(spectate.Handler(hub))
	defer srv.Close()
	defer hub.Close()
	hub.Publish(spectate.Frame{Cols: 2, Rows: 1, Cells: []string{"@&"}})

	tty := openPty(t, 20, 10, "q")
	_, _, err := run(t, tty, ptyScreen, "watch", srv.URL)
	require.NoError(t, err)
}

func TestWatchUnreachableFeed(t *testing.T) {
	srv := httptest.NewServer(nil)
	addr := srv.Listener.Addr().String()
	srv.Close()

	tty := openPty(t, 20, 10, "")
	_, _, err := run(t, tty, ptyScreen, "watch", addr)
	require.ErrorContains(t, err, "failed to connect")
}

func TestWatchNeedsTerminal(t *testing.T) {
	_, _, err := run(t, strings.NewReader(""), nil, "watch", "localhost:22124")
	require.ErrorContains(t, err, "interactive terminal")
}
