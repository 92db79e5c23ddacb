// Package main provides the entry point for the readalong CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/lessoncast/readalong/internal/cache"
	"github.com/lessoncast/readalong/internal/fetch"
	"github.com/lessoncast/readalong/playback"
	"github.com/lessoncast/readalong/timing"
	"github.com/lessoncast/readalong/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile     string
	speed          float64
	maxWidth       uint
	showAllFiles   bool
	mouse          bool
	watch          bool
	trace          bool
	debug          bool
	seekThreshold  int64
	pauseThreshold int64
	cacheDir       string
	originURL      string

	keyword = lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#ECFD65"}).
		Render

	rootCmd = &cobra.Command{
		Use:   "readalong [PATH]",
		Short: "Follow narrated lessons word by word, right in your terminal",
		Long: paragraph(
			fmt.Sprintf("\nFollow narrated lessons %s, right in your terminal.", keyword("word by word")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func paragraph(s string) string {
	return lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render(s)
}

// expandPath resolves a leading tilde; on failure the path is returned
// unchanged.
func expandPath(path string) string {
	s, err := homedir.Expand(path)
	if err == nil {
		return s
	}
	return path
}

func validateOptions(_ *cobra.Command) error {
	// grab config values from Viper
	speed = viper.GetFloat64("speed")
	maxWidth = viper.GetUint("width")
	showAllFiles = viper.GetBool("all")
	mouse = viper.GetBool("mouse")
	watch = viper.GetBool("watch")
	debug = viper.GetBool("debug")
	seekThreshold = viper.GetInt64("seek-threshold")
	pauseThreshold = viper.GetInt64("pause-threshold")
	cacheDir = expandPath(viper.GetString("cache-dir"))
	originURL = viper.GetString("origin")

	if debug {
		log.SetLevel(log.DebugLevel)
	}

	if speed < playback.MinRate || speed > playback.MaxRate {
		return fmt.Errorf("speed must be between %v and %v, got %v", playback.MinRate, playback.MaxRate, speed)
	}
	if seekThreshold <= 0 {
		return fmt.Errorf("seek-threshold must be positive, got %d", seekThreshold)
	}
	if pauseThreshold <= 0 {
		return fmt.Errorf("pause-threshold must be positive, got %d", pauseThreshold)
	}

	// Keep the transcript column readable on very wide terminals.
	if maxWidth > 120 {
		maxWidth = 120
	}
	return nil
}

func execute(_ *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	abs, err := filepath.Abs(expandPath(path))
	if err != nil {
		return fmt.Errorf("unable to resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("unable to stat %s: %w", path, err)
	}

	// Without a terminal (or with --trace) change events go to stdout
	// instead of a TUI.
	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	if trace || !isTerminal {
		if info.IsDir() {
			return errors.New("trace output needs a timing file, not a directory")
		}
		return runTrace(abs)
	}
	return runTUI(abs, info.IsDir())
}

// buildManager assembles the tiered cache over the configured origin: a
// remote HTTP origin when one is given, the local corpus directory
// otherwise.
func buildManager(contentRoot string) (*cache.Manager, error) {
	logger := log.Default()

	var (
		loader cache.Loader
		err    error
	)
	if originURL != "" {
		loader, err = fetch.NewHTTPLoader(fetch.HTTPConfig{
			BaseURL: originURL,
			Logger:  logger,
		})
	} else {
		loader, err = fetch.NewDirLoader(contentRoot, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to set up content loader: %w", err)
	}

	normalizer := timing.NewNormalizer(timing.NormalizerConfig{
		PauseThresholdMs: pauseThreshold,
		Logger:           logger,
	})

	cfg := cache.DefaultConfig()
	cfg.DiskPath = cacheDir
	cfg.Logger = logger
	return cache.NewManager(cfg, loader, normalizer)
}

func runTUI(path string, isDir bool) error {
	root := path
	if !isDir {
		root = filepath.Dir(path)
	}
	mgr, err := buildManager(root)
	if err != nil {
		return err
	}
	defer mgr.Close() //nolint:errcheck

	// Read environment to get debugging stuff.
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	cfg.Path = path
	cfg.Speed = speed
	cfg.MaxWidth = maxWidth
	cfg.ShowAllFiles = showAllFiles
	cfg.EnableMouse = mouse
	cfg.Watch = watch
	cfg.SeekThresholdMs = seekThreshold

	if _, err := ui.NewProgram(cfg, mgr, log.Default()).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

// runTrace drives a playback session without a terminal, printing one
// logfmt line per highlight change until the content finishes or the
// process is interrupted.
func runTrace(path string) error {
	mgr, err := buildManager(filepath.Dir(path))
	if err != nil {
		return err
	}
	defer mgr.Close() //nolint:errcheck

	base := filepath.Base(path)
	contentID := strings.TrimSuffix(base, filepath.Ext(base))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	ds, err := mgr.Get(ctx, contentID)
	if err != nil {
		return fmt.Errorf("load %s: %w", contentID, err)
	}

	out := log.NewWithOptions(os.Stdout, log.Options{Formatter: log.LogfmtFormatter})
	ctrl := playback.NewController(playback.ControllerConfig{
		SeekThresholdMs: seekThreshold,
		Logger:          log.Default(),
	})
	ctrl.Subscribe(func(change playback.Change) {
		out.Info("change",
			"positionMs", change.PositionMs,
			"word", change.WordIndex,
			"sentence", change.SentenceIndex,
			"seek", change.Seek,
		)
	})
	ctrl.Attach(ds)

	clock := playback.NewClock(ds.TotalDurationMs)
	clock.SetRate(speed)
	clock.Play()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ctrl.OnPosition(clock.PositionMs())
			if clock.Finished() {
				return nil
			}
		}
	}
}

func setupLog() (func() error, error) {
	// Keep the default logger away from the TUI unless a sink is given.
	if file := os.Getenv("READALONG_LOGFILE"); file != "" {
		f, err := tea.LogToFileWith(file, "readalong", log.Default())
		if err != nil {
			return nil, fmt.Errorf("error setting up log file: %w", err)
		}
		return f.Close, nil
	}
	log.SetOutput(io.Discard)
	return func() error { return nil }, nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().Float64Var(&speed, "speed", 1.0, "initial playback rate")
	rootCmd.Flags().UintVarP(&maxWidth, "width", "w", 0, "cap the transcript column at width (0 for terminal width)")
	rootCmd.Flags().BoolVarP(&showAllFiles, "all", "a", false, "include hidden directories when scanning a corpus")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel (TUI-mode only)")
	_ = rootCmd.Flags().MarkHidden("mouse")
	rootCmd.Flags().BoolVar(&watch, "watch", false, "reload the timing file when it changes on disk")
	rootCmd.Flags().BoolVar(&trace, "trace", false, "print change events instead of running the TUI")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "debug logging")
	rootCmd.Flags().Int64Var(&seekThreshold, "seek-threshold", playback.DefaultSeekThresholdMs, "forward jump in milliseconds treated as a seek")
	rootCmd.Flags().Int64Var(&pauseThreshold, "pause-threshold", timing.DefaultPauseThresholdMs, "silence in milliseconds that splits inferred sentences")
	rootCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "directory for persisted timing data")
	rootCmd.Flags().StringVar(&originURL, "origin", "", "remote origin serving timing documents")

	// Config bindings
	_ = viper.BindPFlag("speed", rootCmd.Flags().Lookup("speed"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("all", rootCmd.Flags().Lookup("all"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))
	_ = viper.BindPFlag("watch", rootCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))
	_ = viper.BindPFlag("seek-threshold", rootCmd.Flags().Lookup("seek-threshold"))
	_ = viper.BindPFlag("pause-threshold", rootCmd.Flags().Lookup("pause-threshold"))
	_ = viper.BindPFlag("cache-dir", rootCmd.Flags().Lookup("cache-dir"))
	_ = viper.BindPFlag("origin", rootCmd.Flags().Lookup("origin"))

	viper.SetDefault("speed", 1.0)
	viper.SetDefault("width", 0)
	viper.SetDefault("all", false)
	viper.SetDefault("seek-threshold", playback.DefaultSeekThresholdMs)
	viper.SetDefault("pause-threshold", timing.DefaultPauseThresholdMs)

	rootCmd.AddCommand(configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "readalong")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "readalong")}, dirs...)
	}

	if c := os.Getenv("READALONG_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("readalong")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("readalong")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "readalong.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
