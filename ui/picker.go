package ui

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"
)

// corpusItem is one timing document discovered under the corpus root. The
// id doubles as the cache key: it is what the origin loader resolves.
type corpusItem struct {
	id      string
	path    string
	size    int64
	modTime time.Time
}

type corpusListedMsg []corpusItem

type contentSelectedMsg corpusItem

type pickerFilterState int

const (
	unfiltered pickerFilterState = iota
	filtering
	filterApplied
)

// pickerModel lists the corpus and lets the user fuzzy-filter and open a
// timing document.
type pickerModel struct {
	common      *commonModel
	items       []corpusItem
	visible     []corpusItem
	cursor      int
	loaded      bool
	filterState pickerFilterState
	filterInput textinput.Model
}

func newPickerModel(common *commonModel) pickerModel {
	input := textinput.New()
	input.Prompt = "Find: "
	input.PromptStyle = pickerCursorStyle
	input.Cursor.Style = pickerCursorStyle
	input.CharLimit = 64
	return pickerModel{
		common:      common,
		filterInput: input,
	}
}

func (m pickerModel) init() tea.Cmd {
	return listCorpus(m.common)
}

func (m *pickerModel) setSize(width, height int) {
	m.filterInput.Width = width - len(m.filterInput.Prompt) - 2
}

// filtering reports whether keystrokes currently belong to the filter
// input rather than global shortcuts.
func (m pickerModel) filtering() bool {
	return m.filterState == filtering
}

func (m pickerModel) selectedItem() (corpusItem, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return corpusItem{}, false
	}
	return m.visible[m.cursor], true
}

func (m pickerModel) update(msg tea.Msg) (pickerModel, tea.Cmd) {
	switch msg := msg.(type) {
	case corpusListedMsg:
		m.items = msg
		m.visible = msg
		m.loaded = true
		m.cursor = 0
		return m, nil

	case tea.KeyMsg:
		if m.filterState == filtering {
			return m.updateFiltering(msg)
		}
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.visible)-1 {
				m.cursor++
			}
		case "home", "g":
			m.cursor = 0
		case "end", "G":
			m.cursor = len(m.visible) - 1
			if m.cursor < 0 {
				m.cursor = 0
			}
		case "/":
			m.filterState = filtering
			m.filterInput.Focus()
			return m, textinput.Blink
		case "esc":
			m.resetFilter()
		case "enter":
			if item, ok := m.selectedItem(); ok {
				return m, selectContent(item)
			}
		}
	}
	return m, nil
}

// updateFiltering routes keys to the filter input and refreshes the match
// set on every keystroke.
func (m pickerModel) updateFiltering(msg tea.KeyMsg) (pickerModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.resetFilter()
		return m, nil
	case "enter":
		if len(m.visible) == 0 {
			m.resetFilter()
			return m, nil
		}
		m.filterState = filterApplied
		m.filterInput.Blur()
		if m.filterInput.Value() == "" {
			m.resetFilter()
		}
		return m, nil
	case "up", "down":
		// Let the list keys work without leaving the filter.
		m.filterState = filterApplied
		m.filterInput.Blur()
		return m.update(msg)
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	m.applyFilter(m.filterInput.Value())
	return m, cmd
}

func (m *pickerModel) resetFilter() {
	m.filterState = unfiltered
	m.filterInput.Reset()
	m.filterInput.Blur()
	m.visible = m.items
	m.cursor = 0
}

func (m *pickerModel) applyFilter(query string) {
	if query == "" {
		m.visible = m.items
		m.cursor = 0
		return
	}
	targets := make([]string, len(m.items))
	for i, item := range m.items {
		targets[i] = item.id
	}
	matches := fuzzy.Find(query, targets)
	m.visible = make([]corpusItem, len(matches))
	for i, match := range matches {
		m.visible[i] = m.items[match.Index]
	}
	m.cursor = 0
}

func (m pickerModel) view() string {
	var b strings.Builder
	b.WriteString("\n  " + logoView())
	if m.loaded {
		note := fmt.Sprintf("%d lessons", len(m.items))
		if m.filterState != unfiltered {
			note = fmt.Sprintf("%d of %d lessons", len(m.visible), len(m.items))
		}
		b.WriteString("  " + subtleStyle.Render(note))
	}
	b.WriteString("\n\n")

	if m.filterState != unfiltered {
		b.WriteString("  " + m.filterInput.View() + "\n\n")
	}

	switch {
	case !m.loaded:
		b.WriteString("  " + subtleStyle.Render("Scanning for timing files…"))
	case len(m.items) == 0:
		b.WriteString("  " + subtleStyle.Render("No timing files found here."))
	case len(m.visible) == 0:
		b.WriteString("  " + subtleStyle.Render("Nothing matches."))
	default:
		start, end := m.visibleRange()
		for i := start; i < end; i++ {
			item := m.visible[i]
			cursor := "  "
			idView := pickerItemStyle.Render(item.id)
			if i == m.cursor {
				cursor = pickerCursorStyle.Render("> ")
				idView = pickerCursorStyle.Render(item.id)
			}
			meta := pickerMetaStyle.Render(fmt.Sprintf("%s · %s",
				humanize.Bytes(uint64(item.size)),
				humanize.Time(item.modTime),
			))
			fmt.Fprintf(&b, "  %s%s  %s\n", cursor, idView, meta)
		}
	}

	b.WriteString("\n" + helpViewStyle("↑/↓ move · enter open · / filter · q quit"))
	return b.String()
}

// visibleRange windows the list around the cursor so long corpora stay
// navigable on short terminals.
func (m pickerModel) visibleRange() (int, int) {
	rows := m.common.height - 8
	if rows < 1 {
		rows = 1
	}
	if len(m.visible) <= rows {
		return 0, len(m.visible)
	}
	start := m.cursor - rows/2
	if start < 0 {
		start = 0
	}
	end := start + rows
	if end > len(m.visible) {
		end = len(m.visible)
		start = end - rows
	}
	return start, end
}

// COMMANDS

// listCorpus walks the corpus root for timing documents. Hidden
// directories are skipped unless configured otherwise.
func listCorpus(common *commonModel) tea.Cmd {
	return func() tea.Msg {
		root := common.cfg.Path
		var items []corpusItem
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if path != root && !common.cfg.ShowAllFiles && strings.HasPrefix(name, ".") {
					return fs.SkipDir
				}
				return nil
			}
			if !strings.EqualFold(filepath.Ext(name), ".json") {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			items = append(items, corpusItem{
				id:      strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel)),
				path:    path,
				size:    info.Size(),
				modTime: info.ModTime(),
			})
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return errMsg{err}
		}
		sort.Slice(items, func(i, j int) bool { return items[i].id < items[j].id })
		common.logger.Debug("corpus listed", "root", root, "count", len(items))
		return corpusListedMsg(items)
	}
}

func selectContent(item corpusItem) tea.Cmd {
	return func() tea.Msg {
		return contentSelectedMsg(item)
	}
}
