package ui

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

func corpusFixture() []corpusItem {
	return []corpusItem{
		{id: "alpha"},
		{id: "beta"},
		{id: "unit-2/chapter-1"},
	}
}

func testPicker(t *testing.T, items []corpusItem) pickerModel {
	t.Helper()
	common := &commonModel{
		cfg:    Config{},
		logger: log.New(io.Discard),
		width:  80,
		height: 24,
	}
	m := newPickerModel(common)
	m, _ = m.update(corpusListedMsg(items))
	return m
}

func TestPickerListLoads(t *testing.T) {
	m := testPicker(t, corpusFixture())

	if !m.loaded {
		t.Fatal("Expected picker to be loaded")
	}
	if len(m.visible) != 3 {
		t.Errorf("Expected 3 visible items, got %d", len(m.visible))
	}
	if m.cursor != 0 {
		t.Errorf("Expected cursor at 0, got %d", m.cursor)
	}
}

func TestPickerCursorNavigation(t *testing.T) {
	m := testPicker(t, corpusFixture())

	for i := 0; i < 5; i++ {
		m, _ = m.update(keyMsg(tea.KeyDown))
	}
	if m.cursor != 2 {
		t.Errorf("Expected cursor pinned to last item, got %d", m.cursor)
	}
	m, _ = m.update(keyMsg(tea.KeyUp))
	if m.cursor != 1 {
		t.Errorf("Expected cursor at 1, got %d", m.cursor)
	}
	m, _ = m.update(runeMsg('g'))
	if m.cursor != 0 {
		t.Errorf("Expected home to move cursor to 0, got %d", m.cursor)
	}
	m, _ = m.update(runeMsg('G'))
	if m.cursor != 2 {
		t.Errorf("Expected end to move cursor to 2, got %d", m.cursor)
	}
}

func TestPickerSelection(t *testing.T) {
	m := testPicker(t, corpusFixture())
	m, _ = m.update(keyMsg(tea.KeyDown))

	_, cmd := m.update(keyMsg(tea.KeyEnter))
	if cmd == nil {
		t.Fatal("Expected a selection command")
	}
	sel, ok := cmd().(contentSelectedMsg)
	if !ok {
		t.Fatalf("Expected contentSelectedMsg, got %T", cmd())
	}
	if sel.id != "beta" {
		t.Errorf("Expected beta selected, got %q", sel.id)
	}
}

func TestPickerFuzzyFilter(t *testing.T) {
	m := testPicker(t, corpusFixture())

	m, _ = m.update(runeMsg('/'))
	if !m.filtering() {
		t.Fatal("Expected filter input to take the keyboard")
	}
	m, _ = m.update(runeMsg('b'))
	if len(m.visible) != 1 || m.visible[0].id != "beta" {
		t.Fatalf("Expected fuzzy filter to leave beta, got %v", m.visible)
	}

	m, _ = m.update(keyMsg(tea.KeyEnter))
	if m.filtering() {
		t.Error("Expected enter to release the keyboard")
	}

	_, cmd := m.update(keyMsg(tea.KeyEnter))
	if cmd == nil {
		t.Fatal("Expected a selection command")
	}
	if sel, ok := cmd().(contentSelectedMsg); !ok || sel.id != "beta" {
		t.Errorf("Expected beta selected through filter, got %v", cmd())
	}
}

func TestPickerFilterEscResets(t *testing.T) {
	m := testPicker(t, corpusFixture())

	m, _ = m.update(runeMsg('/'))
	m, _ = m.update(runeMsg('z'))
	if len(m.visible) != 0 {
		t.Fatalf("Expected no matches for z, got %v", m.visible)
	}
	m, _ = m.update(keyMsg(tea.KeyEsc))
	if m.filtering() {
		t.Error("Expected filtering to stop on esc")
	}
	if len(m.visible) != 3 {
		t.Errorf("Expected full listing restored, got %d items", len(m.visible))
	}
}

func TestListCorpus(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.json":         `{"chunks":[]}`,
		"sub/b.json":     `{"chunks":[]}`,
		"notes.txt":      "not timing data",
		".hidden/c.json": `{"chunks":[]}`,
	}
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	common := &commonModel{
		cfg:    Config{Path: dir},
		logger: log.New(io.Discard),
	}
	msg := listCorpus(common)()
	listed, ok := msg.(corpusListedMsg)
	if !ok {
		t.Fatalf("Expected corpusListedMsg, got %T", msg)
	}
	if len(listed) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(listed))
	}
	if listed[0].id != "a" || listed[1].id != "sub/b" {
		t.Errorf("Expected ids [a sub/b], got [%s %s]", listed[0].id, listed[1].id)
	}
	if listed[0].size == 0 {
		t.Error("Expected file size recorded")
	}
}
