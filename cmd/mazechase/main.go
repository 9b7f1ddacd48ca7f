package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"mazechase/internal/config"
	"mazechase/internal/game"
	"mazechase/internal/logging"
	"mazechase/internal/spectate"
	"mazechase/internal/store"
	"mazechase/internal/ui"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	fallbackCols = 80
	fallbackRows = 24
)

// screenFunc opens the screen for the terminal the command reads from
type screenFunc func(tty *os.File) (tcell.Screen, error)

func stdScreen(*os.File) (tcell.Screen, error) {
	return tcell.NewScreen()
}

// cli holds the flag values shared by the subcommands of one root command
type cli struct {
	stateDir   string
	configPath string
	flags      config.Settings
	newScreen  screenFunc
}

func newRootCmd(newScreen screenFunc) *cobra.Command {
	c := &cli{flags: config.Default(), newScreen: newScreen}

	rootCmd := &cobra.Command{
		Use:   "mazechase",
		Short: "mazechase - escape the enemies on a random maze in your terminal",
		Long: `mazechase is a terminal game. You play as '@' on a randomly generated maze
and try to stay away from the '&' enemies. Maps can be saved, loaded and
watched by spectators over WebSocket.`,
	}
	rootCmd.AddCommand(c.playCmd())
	rootCmd.AddCommand(c.newMapCmd())
	rootCmd.AddCommand(c.showMapCmd())
	rootCmd.AddCommand(c.listMapsCmd())
	rootCmd.AddCommand(c.deleteMapCmd())
	rootCmd.AddCommand(c.watchCmd())
	return rootCmd
}

// terminal returns r as a file when it is an interactive terminal
func terminal(r io.Reader) (*os.File, bool) {
	f, ok := r.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil, false
	}
	return f, true
}

func (c *cli) openScreen(tty *os.File) (tcell.Screen, error) {
	screen, err := c.newScreen(tty)
	if err != nil {
		return nil, fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize screen: %w", err)
	}
	return screen, nil
}

func (c *cli) playCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "play",
		Short:         "Start a game in the current terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := store.GetStateDir(c.stateDir, true)
			if err != nil {
				return err
			}
			s, err := c.resolveSettings(cmd, dir)
			if err != nil {
				return err
			}

			tty, ok := terminal(cmd.InOrStdin())
			if !ok {
				return fmt.Errorf("play needs an interactive terminal on stdin")
			}
			if s.Cols == 0 || s.Rows == 0 {
				width, height, err := term.GetSize(int(tty.Fd()))
				if err != nil {
					return fmt.Errorf("failed to get terminal size: %w", err)
				}
				if s.Cols == 0 {
					s.Cols = width
				}
				if s.Rows == 0 {
					s.Rows = height
				}
			}
			if err := s.Validate(); err != nil {
				return err
			}

			if s.LogFile == "" {
				s.LogFile = filepath.Join(dir, "mazechase.log")
			}
			logCloser, err := logging.Setup(s.LogFile, s.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logCloser.Close() }()

			return c.play(cmd, tty, dir, s)
		},
	}
	c.addSettingsFlags(cmd)
	cmd.Flags().IntVar(&c.flags.FPS, "fps", c.flags.FPS, fmt.Sprintf("Redraws per second, at most %d", config.MaxRate))
	cmd.Flags().IntVar(&c.flags.EPS, "eps", c.flags.EPS, fmt.Sprintf("Enemy steps per second, at most %d", config.MaxRate))
	cmd.Flags().StringVar(&c.flags.LogFile, "log-file", c.flags.LogFile, "Log file (default: <state-dir>/mazechase.log)")
	cmd.Flags().StringVar(&c.flags.LogLevel, "log-level", c.flags.LogLevel, "Log level: debug, info, warn or error")
	cmd.Flags().StringVar(&c.flags.SpectateAddr, "spectate", c.flags.SpectateAddr, "Serve spectators on this address, e.g. localhost:22124")
	return cmd
}

func (c *cli) play(cmd *cobra.Command, tty *os.File, dir string, s config.Settings) error {
	g, err := game.New(s.GameConfig())
	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := ui.Options{
		FPS:      s.FPS,
		EPS:      s.EPS,
		StateDir: dir,
		Slot:     s.Slot,
	}

	spectateErr := make(chan error, 1)
	if s.SpectateAddr != "" {
		ln, err := spectate.Listen(s.SpectateAddr)
		if err != nil {
			return err
		}
		hub := spectate.NewHub()
		opts.Publisher = hub
		go func() { spectateErr <- spectate.Serve(ctx, ln, hub) }()
	}

	screen, err := c.openScreen(tty)
	if err != nil {
		return err
	}
	runErr := ui.New(screen, g, opts).Run(ctx)
	screen.Fini()
	stop()

	if s.SpectateAddr != "" {
		select {
		case err := <-spectateErr:
			if err != nil && runErr == nil {
				runErr = err
			}
		case <-time.After(3 * time.Second):
		}
	}
	if runErr == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Caught %d times. Bye!\n", g.Caught())
	}
	return runErr
}

// loadSettings reads --config, or config.yaml in the state directory
func (c *cli) loadSettings(dir string) (config.Settings, error) {
	path := c.configPath
	if path == "" {
		path = filepath.Join(dir, config.FileName)
	}
	return config.Load(path)
}

// resolveSettings layers the config file and the explicitly set flags on top of the defaults
func (c *cli) resolveSettings(cmd *cobra.Command, dir string) (config.Settings, error) {
	s, err := c.loadSettings(dir)
	if err != nil {
		return s, err
	}

	changed := cmd.Flags().Changed
	if changed("cols") {
		s.Cols = c.flags.Cols
	}
	if changed("rows") {
		s.Rows = c.flags.Rows
	}
	if changed("fps") {
		s.FPS = c.flags.FPS
	}
	if changed("eps") {
		s.EPS = c.flags.EPS
	}
	if changed("enemies") {
		s.Enemies = c.flags.Enemies
	}
	if changed("density") {
		s.Density = c.flags.Density
	}
	if changed("seed") {
		s.Seed = c.flags.Seed
	}
	if changed("slot") {
		s.Slot = c.flags.Slot
	}
	if changed("log-file") {
		s.LogFile = c.flags.LogFile
	}
	if changed("log-level") {
		s.LogLevel = c.flags.LogLevel
	}
	if changed("spectate") {
		s.SpectateAddr = c.flags.SpectateAddr
	}
	return s.Normalized(), nil
}

func (c *cli) newMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "new-map",
		Short:         "Generate a map and save it to a slot without playing",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := store.GetStateDir(c.stateDir, true)
			if err != nil {
				return err
			}
			s, err := c.resolveSettings(cmd, dir)
			if err != nil {
				return err
			}
			if s.Cols == 0 {
				s.Cols = fallbackCols
			}
			if s.Rows == 0 {
				s.Rows = fallbackRows
			}
			if err := s.Validate(); err != nil {
				return err
			}

			g, err := game.New(s.GameConfig())
			if err != nil {
				return fmt.Errorf("failed to create map: %w", err)
			}
			sm, err := store.SaveMap(dir, s.Slot, g.Grid())
			if err != nil {
				return fmt.Errorf("save map failed: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved map %q (%dx%d) to %s\n", sm.Slot, sm.Cols, sm.Rows, sm.Path)
			return nil
		},
	}
	c.addSettingsFlags(cmd)
	return cmd
}

func (c *cli) showMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "show-map [slot]",
		Short:         "Print a saved map (default: the slot from the config file)",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := store.GetStateDir(c.stateDir, false)
			if err != nil {
				return err
			}
			var slot string
			if len(args) == 1 {
				slot = args[0]
			} else {
				s, err := c.loadSettings(dir)
				if err != nil {
					return err
				}
				slot = s.Slot
			}
			sm, err := store.LoadMap(dir, slot)
			if err != nil {
				return err
			}
			text, err := sm.Grid.MarshalText()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(text)
			return err
		},
	}
	c.addStateDirFlag(cmd)
	cmd.Flags().StringVar(&c.configPath, "config", "", "Config file (default: <state-dir>/config.yaml)")
	return cmd
}

func (c *cli) listMapsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list-maps",
		Short:         "List saved maps",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := store.GetStateDir(c.stateDir, false)
			if err != nil {
				return err
			}
			maps, err := store.ListMaps(dir)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SLOT\tSIZE\tSAVED")
			for _, sm := range maps {
				fmt.Fprintf(w, "%s\t%dx%d\t%s\n", sm.Slot, sm.Cols, sm.Rows, sm.SavedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
	c.addStateDirFlag(cmd)
	return cmd
}

func (c *cli) deleteMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "delete-map slot",
		Short:         "Delete a saved map",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := store.GetStateDir(c.stateDir, false)
			if err != nil {
				return err
			}
			return store.DeleteMap(dir, args[0])
		},
	}
	c.addStateDirFlag(cmd)
	return cmd
}

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch host:port|url",
		Short: "Watch a game started with play --spectate",
		Long: `Watch a running game. The argument is either host:port of a game started
with --spectate, or a full ws:// URL. Press q or Esc to stop watching.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			tty, ok := terminal(cmd.InOrStdin())
			if !ok {
				return fmt.Errorf("watch needs an interactive terminal on stdin")
			}
			url := spectate.WatchURL(args[0])

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			frames := make(chan spectate.Frame, 4)
			dialErr := make(chan error, 1)
			go func() {
				defer close(frames)
				dialErr <- spectate.Dial(ctx, url, func(f spectate.Frame) {
					select {
					case frames <- f:
					default:
						// Viewer is behind, skip
					}
				})
			}()

			screen, err := c.openScreen(tty)
			if err != nil {
				return err
			}
			watchErr := ui.Watch(ctx, screen, frames)
			screen.Fini()
			cancel()

			if err := <-dialErr; err != nil {
				return err
			}
			return watchErr
		},
	}
}

func (c *cli) addStateDirFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&c.stateDir, "state-dir", "s", "", "State directory for maps, config and logs (default: $MAZECHASE_STATE_DIR or .mazechase)")
}

func (c *cli) addSettingsFlags(cmd *cobra.Command) {
	c.addStateDirFlag(cmd)
	cmd.Flags().StringVar(&c.configPath, "config", "", "Config file (default: <state-dir>/config.yaml)")
	cmd.Flags().IntVar(&c.flags.Cols, "cols", c.flags.Cols, "Grid width (default: terminal width)")
	cmd.Flags().IntVar(&c.flags.Rows, "rows", c.flags.Rows, "Grid height (default: terminal height)")
	cmd.Flags().IntVar(&c.flags.Enemies, "enemies", c.flags.Enemies, "Number of enemies")
	cmd.Flags().Float64Var(&c.flags.Density, "density", c.flags.Density, "Probability of a cell being a wall, in [0, 1)")
	cmd.Flags().Uint64Var(&c.flags.Seed, "seed", c.flags.Seed, "Random seed, 0 picks one")
	cmd.Flags().StringVar(&c.flags.Slot, "slot", c.flags.Slot, "Save slot")
}

func main() {
	if err := newRootCmd(stdScreen).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
