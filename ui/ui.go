// Package ui provides the terminal interface of the readalong application.
package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lessoncast/readalong/internal/cache"
	"github.com/lessoncast/readalong/timing"
)

const (
	statusMessageTimeout = time.Second * 2 // how long to show status messages like "Copied sentence"
	loadTimeout          = time.Second * 30

	// tickInterval paces transport polling. Terminals repaint comfortably
	// at this cadence; the index itself stays cheap enough for much more.
	tickInterval = time.Millisecond * 50
)

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type contentLoadedMsg struct {
	item corpusItem
	ds   *timing.Dataset
}

// state is the top-level application state.
type state int

const (
	stateShowPicker state = iota
	stateShowPlayer
)

func (s state) String() string {
	return map[state]string{
		stateShowPicker: "showing corpus listing",
		stateShowPlayer: "showing player",
	}[s]
}

// Common stuff we'll need to access in all models.
type commonModel struct {
	cfg    Config
	cache  *cache.Manager
	logger *log.Logger
	width  int
	height int
}

type model struct {
	common   *commonModel
	state    state
	fatalErr error

	// fileMode is set when the path argument named a single document
	// rather than a corpus directory. Quitting the player then exits the
	// program instead of returning to the picker.
	fileMode bool
	fileItem corpusItem

	// Sub-models
	picker pickerModel
	player playerModel
}

// NewProgram returns a new Tea program presenting the given corpus
// directory or timing file.
func NewProgram(cfg Config, mgr *cache.Manager, logger *log.Logger) *tea.Program {
	logger.Debug("starting readalong ui", "path", cfg.Path, "watch", cfg.Watch)
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, mgr, logger), opts...)
}

func newModel(cfg Config, mgr *cache.Manager, logger *log.Logger) tea.Model {
	common := &commonModel{
		cfg:    cfg,
		cache:  mgr,
		logger: logger,
	}
	m := model{
		common: common,
		state:  stateShowPicker,
		picker: newPickerModel(common),
	}

	info, err := os.Stat(cfg.Path)
	if err != nil {
		logger.Error("unable to stat path", "path", cfg.Path, "error", err)
		m.fatalErr = err
		return m
	}
	if !info.IsDir() {
		abs, err := filepath.Abs(cfg.Path)
		if err != nil {
			abs = cfg.Path
		}
		base := filepath.Base(abs)
		m.fileMode = true
		m.fileItem = corpusItem{
			id:      strings.TrimSuffix(base, filepath.Ext(base)),
			path:    abs,
			size:    info.Size(),
			modTime: info.ModTime(),
		}
	}
	return m
}

func (m model) Init() tea.Cmd {
	if m.fatalErr != nil {
		return nil
	}
	if m.fileMode {
		return loadContent(m.common, m.fileItem)
	}
	return m.picker.init()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits.
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Ctrl+C always quits no matter where in the application you are.
		if msg.String() == "ctrl+c" {
			if m.state == stateShowPlayer {
				m.player.teardown()
			}
			return m, tea.Quit
		}
		// Pass through all keys while the filter input is being edited.
		if m.state == stateShowPicker && m.picker.filtering() {
			break
		}
		switch msg.String() {
		case "q", "esc":
			if m.state == stateShowPlayer {
				m.player.teardown()
				if !m.fileMode {
					m.state = stateShowPicker
					return m, nil
				}
			}
			return m, tea.Quit

		case "ctrl+z":
			return m, tea.Suspend
		}

	// Window size is received when starting up and on every resize.
	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.picker.setSize(msg.Width, msg.Height)
		if m.state == stateShowPlayer {
			m.player.setSize(msg.Width, msg.Height)
		}
		return m, nil

	case errMsg:
		m.common.logger.Error("fatal error", "error", msg.err)
		m.fatalErr = msg.err
		return m, nil

	case contentSelectedMsg:
		return m, loadContent(m.common, corpusItem(msg))

	case contentLoadedMsg:
		if m.state == stateShowPlayer {
			m.player.teardown()
		}
		m.player = newPlayerModel(m.common, msg.item, msg.ds)
		m.state = stateShowPlayer
		return m, m.player.init()
	}

	// Process the active child.
	var cmd tea.Cmd
	switch m.state {
	case stateShowPicker:
		m.picker, cmd = m.picker.update(msg)
	case stateShowPlayer:
		m.player, cmd = m.player.update(msg)
	}
	return m, cmd
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}

	switch m.state { //nolint:exhaustive
	case stateShowPlayer:
		return m.player.view()
	default:
		if m.fileMode {
			return "\n" + indent(subtleStyle.Render("Loading "+m.fileItem.id+ellipsis), 3)
		}
		return m.picker.view()
	}
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// COMMANDS

// loadContent pulls a timing document through the cache manager. Any tier
// may satisfy the read; the message carries the normalized dataset.
func loadContent(common *commonModel, item corpusItem) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		ds, err := common.cache.Get(ctx, item.id)
		if err != nil {
			return errMsg{fmt.Errorf("load %s: %w", item.id, err)}
		}
		common.logger.Debug("content loaded",
			"content", item.id,
			"words", ds.WordCount(),
			"sentences", ds.SentenceCount(),
			"duration", time.Duration(ds.TotalDurationMs)*time.Millisecond,
		)
		return contentLoadedMsg{item: item, ds: ds}
	}
}

// ETC

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
