package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"

	"github.com/lessoncast/readalong/playback"
	"github.com/lessoncast/readalong/timing"
)

const (
	seekStepMs     = 5_000
	longSeekStepMs = 30_000
	rateStep       = 0.25
	ellipsis       = "…"
)

type tickMsg time.Time

type statusMessageTimeoutMsg struct{}

type reloadMsg struct{}

type contentReloadedMsg struct {
	ds *timing.Dataset
}

// playerErrMsg is a non-fatal error surfaced in the status bar, unlike
// errMsg which tears the program down.
type playerErrMsg struct {
	err error
}

// playerKeyMap declares the transport bindings. It satisfies help.KeyMap
// so the help view renders straight from it.
type playerKeyMap struct {
	PlayPause key.Binding
	Back      key.Binding
	Forward   key.Binding
	BackLong  key.Binding
	FwdLong   key.Binding
	SlowDown  key.Binding
	SpeedUp   key.Binding
	Copy      key.Binding
	Reload    key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultPlayerKeys() playerKeyMap {
	return playerKeyMap{
		PlayPause: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "play/pause"),
		),
		Back: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "back 5s"),
		),
		Forward: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "forward 5s"),
		),
		BackLong: key.NewBinding(
			key.WithKeys("shift+left"),
			key.WithHelp("shift+←", "back 30s"),
		),
		FwdLong: key.NewBinding(
			key.WithKeys("shift+right"),
			key.WithHelp("shift+→", "forward 30s"),
		),
		SlowDown: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "slower"),
		),
		SpeedUp: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "faster"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy sentence"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k playerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PlayPause, k.Back, k.Forward, k.Copy, k.Help, k.Quit}
}

func (k playerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PlayPause, k.Back, k.Forward, k.BackLong, k.FwdLong},
		{k.SlowDown, k.SpeedUp, k.Copy, k.Reload},
		{k.Help, k.Quit},
	}
}

// playerModel drives one read-along session: a simulated transport clock
// feeding the synchronization controller at frame rate, with the resolved
// indices painted onto the laid-out transcript.
type playerModel struct {
	common *commonModel
	item   corpusItem
	ds     *timing.Dataset

	clock *playback.Clock
	scrub *playback.Scrubber
	ctrl  *playback.Controller

	layout     *transcriptLayout
	active     timing.Indices
	positionMs int64

	viewport viewport.Model
	progress progress.Model
	keys     playerKeyMap
	help     help.Model

	showHelp           bool
	statusMessage      string
	showStatusMessage  bool
	statusMessageTimer *time.Timer

	watcher *fsnotify.Watcher
}

func newPlayerModel(common *commonModel, item corpusItem, ds *timing.Dataset) playerModel {
	clock, scrub := newTransport(ds, common.cfg.Speed)
	ctrl := playback.NewController(playback.ControllerConfig{
		SeekThresholdMs: common.cfg.SeekThresholdMs,
		Logger:          common.logger,
	})
	ctrl.Attach(ds)

	m := playerModel{
		common:   common,
		item:     item,
		ds:       ds,
		clock:    clock,
		scrub:    scrub,
		ctrl:     ctrl,
		active:   timing.Indices{Word: timing.NoActiveIndex, Sentence: timing.NoActiveIndex},
		progress: progress.New(progress.WithGradient("#5A56E0", "#EE6FF8"), progress.WithoutPercentage()),
		keys:     defaultPlayerKeys(),
		help:     help.New(),
	}
	m.viewport = viewport.New(common.width, common.height)
	m.setSize(common.width, common.height)
	if common.cfg.Watch {
		m.initWatcher()
	}
	m.clock.Play()
	return m
}

// newTransport builds the clock and the scrubber bound to it. Reloading
// replaces both so settled seeks can never land on a stale clock.
func newTransport(ds *timing.Dataset, rate float64) (*playback.Clock, *playback.Scrubber) {
	clock := playback.NewClock(ds.TotalDurationMs)
	if rate > 0 {
		clock.SetRate(rate)
	}
	scrub := playback.NewScrubber(0, func(targetMs int64) {
		clock.SeekTo(targetMs)
	})
	return clock, scrub
}

func (m playerModel) init() tea.Cmd {
	cmds := []tea.Cmd{tick()}
	if m.watcher != nil {
		cmds = append(cmds, m.waitForFileChange())
	}
	return tea.Batch(cmds...)
}

// teardown releases everything that outlives a single Update call.
func (m *playerModel) teardown() {
	m.scrub.Cancel()
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	if m.watcher != nil {
		m.watcher.Close() //nolint:errcheck
		m.watcher = nil
	}
}

func (m *playerModel) setSize(width, height int) {
	m.progress.Width = width
	m.help.Width = width

	contentHeight := height - 2 // progress line and status bar
	if m.showHelp {
		contentHeight -= strings.Count(m.helpView(), "\n") + 2
	}
	if contentHeight < 1 {
		contentHeight = 1
	}
	m.viewport.Width = width
	m.viewport.Height = contentHeight

	wrapWidth := width - 4
	if max := int(m.common.cfg.MaxWidth); max > 0 && wrapWidth > max {
		wrapWidth = max
	}
	m.layout = newTranscriptLayout(m.ds, wrapWidth)
	m.syncTranscript()
}

// syncTranscript repaints the viewport and keeps the active word on
// screen without fighting manual scrolling: it only recenters when the
// word has left the visible window.
func (m *playerModel) syncTranscript() {
	m.viewport.SetContent(indent(m.layout.render(m.active), 2))
	line := m.layout.lineOf(m.active.Word)
	if line < 0 {
		return
	}
	top := m.viewport.YOffset
	bottom := top + m.viewport.Height - 1
	if line < top || line > bottom {
		offset := line - m.viewport.Height/2
		if offset < 0 {
			offset = 0
		}
		m.viewport.SetYOffset(offset)
	}
}

func (m *playerModel) seekBy(deltaMs int64) {
	base := m.positionMs
	if pending, ok := m.scrub.Pending(); ok {
		base = pending
	}
	target := base + deltaMs
	if target < 0 {
		target = 0
	}
	if err := m.scrub.Request(target); err != nil {
		m.common.logger.Warn("seek rejected", "target", target, "error", err)
	}
}

func (m *playerModel) showStatus(message string) tea.Cmd {
	m.statusMessage = message
	m.showStatusMessage = true
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func (m playerModel) update(msg tea.Msg) (playerModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tickMsg:
		m.positionMs = m.clock.PositionMs()
		if change, ok := m.ctrl.OnPosition(m.positionMs); ok {
			m.active = timing.Indices{Word: change.WordIndex, Sentence: change.SentenceIndex}
			m.syncTranscript()
		}
		if m.clock.Finished() && m.clock.Playing() {
			m.clock.Pause()
			cmds = append(cmds, m.showStatus("Finished"))
		}
		return m, tea.Batch(append(cmds, tick())...)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.PlayPause):
			m.clock.Toggle()
			return m, nil
		case key.Matches(msg, m.keys.Back):
			m.seekBy(-seekStepMs)
			return m, nil
		case key.Matches(msg, m.keys.Forward):
			m.seekBy(seekStepMs)
			return m, nil
		case key.Matches(msg, m.keys.BackLong):
			m.seekBy(-longSeekStepMs)
			return m, nil
		case key.Matches(msg, m.keys.FwdLong):
			m.seekBy(longSeekStepMs)
			return m, nil
		case key.Matches(msg, m.keys.SlowDown):
			rate := m.clock.SetRate(m.clock.Rate() - rateStep)
			return m, m.showStatus("Speed " + formatRate(rate))
		case key.Matches(msg, m.keys.SpeedUp):
			rate := m.clock.SetRate(m.clock.Rate() + rateStep)
			return m, m.showStatus("Speed " + formatRate(rate))
		case key.Matches(msg, m.keys.Copy):
			if m.active.Sentence >= 0 && m.active.Sentence < len(m.ds.Sentences) {
				text := m.ds.Sentences[m.active.Sentence].Text
				termenv.Copy(text)
				_ = clipboard.WriteAll(text)
				return m, m.showStatus("Copied sentence")
			}
			return m, m.showStatus("Nothing to copy yet")
		case key.Matches(msg, m.keys.Reload):
			return m, tea.Batch(
				m.showStatus("Reloading "+m.item.id),
				reloadContent(m.common, m.item),
			)
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			m.setSize(m.common.width, m.common.height)
			return m, nil
		}

	case reloadMsg:
		// The blocking watch command returned; re-arm it alongside the
		// reload itself.
		cmds = append(cmds, reloadContent(m.common, m.item))
		if m.watcher != nil {
			cmds = append(cmds, m.waitForFileChange())
		}
		return m, tea.Batch(cmds...)

	case contentReloadedMsg:
		m.swapDataset(msg.ds)
		return m, m.showStatus("Reloaded " + m.item.id)

	case playerErrMsg:
		m.common.logger.Error("player error", "error", msg.err)
		return m, m.showStatus("Error: " + msg.err.Error())

	case statusMessageTimeoutMsg:
		m.showStatusMessage = false
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// swapDataset replaces the attached dataset wholesale: fresh transport,
// fresh controller session, carried-over rate and position. Datasets are
// never mutated in place.
func (m *playerModel) swapDataset(ds *timing.Dataset) {
	positionMs := m.clock.PositionMs()
	rate := m.clock.Rate()
	playing := m.clock.Playing()
	m.scrub.Cancel()

	m.ds = ds
	m.clock, m.scrub = newTransport(ds, rate)
	if positionMs > ds.TotalDurationMs {
		positionMs = ds.TotalDurationMs
	}
	m.clock.SeekTo(positionMs)
	if playing {
		m.clock.Play()
	}
	m.ctrl.Attach(ds)
	m.active = timing.Indices{Word: timing.NoActiveIndex, Sentence: timing.NoActiveIndex}
	m.setSize(m.common.width, m.common.height)
}

func (m playerModel) view() string {
	var b strings.Builder
	b.WriteString(m.viewport.View() + "\n")
	b.WriteString(m.progressView() + "\n")
	m.statusBarView(&b)
	if m.showHelp {
		b.WriteString("\n" + m.helpView())
	}
	return b.String()
}

func (m playerModel) progressView() string {
	fraction := 0.0
	if dur := m.clock.DurationMs(); dur > 0 {
		fraction = float64(m.positionMs) / float64(dur)
	}
	if fraction > 1 {
		fraction = 1
	}
	return m.progress.ViewAs(fraction)
}

func (m playerModel) statusBarView(b *strings.Builder) {
	appName := logoView()
	transport := transportStatus(
		m.clock.Playing(),
		m.positionMs,
		m.clock.DurationMs(),
		m.clock.Rate(),
		m.ctrl.Status(),
	)

	var (
		transportView string
		helpNote      string
		note          string
	)
	if m.showStatusMessage {
		transportView = statusBarMessageTransportStyle(" " + transport + " ")
		helpNote = statusBarMessageHelpStyle("? Help")
		note = m.statusMessage
	} else {
		transportView = statusBarTransportStyle(" " + transport + " ")
		helpNote = statusBarHelpStyle("? Help")
		note = m.item.id
		if w := wordCounter(m.active, m.ds); w != "" {
			note += " · " + w
		}
	}

	noteWidth := m.common.width -
		ansi.PrintableRuneWidth(appName) -
		ansi.PrintableRuneWidth(transportView) -
		ansi.PrintableRuneWidth(helpNote)
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, noteWidth)), ellipsis)
	if m.showStatusMessage {
		note = statusBarMessageStyle(note)
	} else {
		note = statusBarNoteStyle(note)
	}

	padding := max(0, noteWidth-ansi.PrintableRuneWidth(note))
	emptySpace := strings.Repeat(" ", padding)
	if m.showStatusMessage {
		emptySpace = statusBarMessageStyle(emptySpace)
	} else {
		emptySpace = statusBarNoteStyle(emptySpace)
	}

	fmt.Fprintf(b, "%s%s%s%s%s", appName, note, emptySpace, transportView, helpNote)
}

// wordCounter renders "word 12/345" once something is active.
func wordCounter(active timing.Indices, ds *timing.Dataset) string {
	if active.Word < 0 {
		return ""
	}
	return fmt.Sprintf("word %d/%d", active.Word+1, ds.WordCount())
}

func (m playerModel) helpView() string {
	m.help.ShowAll = true
	return helpViewStyle(m.help.View(m.keys))
}

// COMMANDS

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

// reloadContent drops the cached copy and pulls the document through the
// cache manager again, producing a brand-new dataset.
func reloadContent(common *commonModel, item corpusItem) tea.Cmd {
	return func() tea.Msg {
		common.cache.Invalidate(item.id)
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		ds, err := common.cache.Get(ctx, item.id)
		if err != nil {
			return playerErrMsg{err}
		}
		return contentReloadedMsg{ds: ds}
	}
}

// ETC

func (m *playerModel) initWatcher() {
	if m.item.path == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.common.logger.Warn("file watcher unavailable", "error", err)
		return
	}
	if err := watcher.Add(filepath.Dir(m.item.path)); err != nil {
		m.common.logger.Warn("could not watch directory", "path", m.item.path, "error", err)
		watcher.Close() //nolint:errcheck
		return
	}
	m.watcher = watcher
}

// waitForFileChange blocks until the loaded timing file is rewritten.
// Editors replace files rather than writing them in place, so the watch
// is on the directory with events filtered back down to the file.
func (m playerModel) waitForFileChange() tea.Cmd {
	watcher := m.watcher
	target := filepath.Clean(m.item.path)
	return func() tea.Msg {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(ev.Name) == target && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					return reloadMsg{}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				return playerErrMsg{err: err}
			}
		}
	}
}
