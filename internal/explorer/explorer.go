// Package explorer implements the explorer model (spec §4.10): an
// ordered, sortable, filterable, markable view over one pane's entry
// list, plus a bounded navigation stack.
package explorer

import (
	"regexp"
	"sort"

	"github.com/veeso-termscp/termscp-core/fsys"
)

// SortMode is the primary sort key; ties always break by name.
type SortMode int

const (
	SortByName SortMode = iota
	SortBySize
	SortByModifyTime
	SortByCreationTime
	SortByType
)

// GroupDirs wraps sorting: directories are bucketed before or after
// files (each bucket internally sorted by SortMode), or left
// interleaved when nil.
type GroupDirs string

const (
	GroupDirsFirst GroupDirs = "first"
	GroupDirsLast  GroupDirs = "last"
)

// MarkEntry is one (source, destination) pair in the mark queue.
type MarkEntry struct {
	Source      string
	Destination string
}

// SelectionKind distinguishes the three shapes SelectedEntries can
// return.
type SelectionKind int

const (
	SelectionNone SelectionKind = iota
	SelectionSingle
	SelectionQueue
)

// Selection is the result of SelectedEntries.
type Selection struct {
	Kind   SelectionKind
	Single fsys.File
	Queue  []MarkEntry
}

// Explorer holds one pane's entry list plus its navigation/marking
// state.
type Explorer struct {
	entries    []fsys.File
	showHidden bool
	sortMode   SortMode
	groupDirs  *GroupDirs
	filter     *regexp.Regexp
	formatter  *Formatter

	stackSize int
	stack     []string

	marks []MarkEntry
}

// SetEntries replaces the entry list and re-sorts it.
func (e *Explorer) SetEntries(entries []fsys.File) {
	e.entries = append([]fsys.File(nil), entries...)
	e.sort()
}

// Visible returns the currently sorted entries after the hidden-files
// and name-filter policy is applied. Entries of TypeSpecial are always
// left out; they stay in the raw entry list.
func (e *Explorer) Visible() []fsys.File {
	out := make([]fsys.File, 0, len(e.entries))
	for _, f := range e.entries {
		if f.Meta.Type == fsys.TypeSpecial {
			continue
		}
		if !e.showHidden && isHidden(f.Name()) {
			continue
		}
		if e.filter != nil && !e.filter.MatchString(f.Name()) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isHidden(name string) bool {
	return len(name) > 0 && name[0] == '.'
}

// SetFilter compiles pattern as the name filter; caseInsensitive
// toggles the (?i) flag. An empty pattern clears the filter.
func (e *Explorer) SetFilter(pattern string, caseInsensitive bool) error {
	if pattern == "" {
		e.filter = nil
		return nil
	}
	if caseInsensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.filter = re
	return nil
}

func (e *Explorer) sort() {
	sort.SliceStable(e.entries, func(i, j int) bool {
		a, b := e.entries[i], e.entries[j]
		if e.groupDirs != nil {
			ra, rb := dirRank(a), dirRank(b)
			if ra != rb {
				if *e.groupDirs == GroupDirsFirst {
					return ra < rb
				}
				return ra > rb
			}
		}
		return less(a, b, e.sortMode)
	})
}

func dirRank(f fsys.File) int {
	if f.IsDir() {
		return 0
	}
	return 1
}

func less(a, b fsys.File, mode SortMode) bool {
	switch mode {
	case SortBySize:
		if a.Meta.Size != b.Meta.Size {
			return a.Meta.Size < b.Meta.Size
		}
	case SortByModifyTime:
		if !a.Meta.Modified.Equal(b.Meta.Modified) {
			return a.Meta.Modified.Before(b.Meta.Modified)
		}
	case SortByCreationTime:
		if !a.Meta.Created.Equal(b.Meta.Created) {
			return a.Meta.Created.Before(b.Meta.Created)
		}
	case SortByType:
		if a.Meta.Type != b.Meta.Type {
			return a.Meta.Type < b.Meta.Type
		}
	}
	return a.Name() < b.Name()
}

// PushDir records the current working directory onto the navigation
// stack, dropping the oldest entry once the size set by WithStackSize
// is exceeded.
func (e *Explorer) PushDir(dir string) {
	e.stack = append(e.stack, dir)
	if len(e.stack) > e.stackSize {
		e.stack = e.stack[len(e.stack)-e.stackSize:]
	}
}

// PopDir removes and returns the most recently pushed directory, or
// ("", false) if the stack is empty.
func (e *Explorer) PopDir() (string, bool) {
	if len(e.stack) == 0 {
		return "", false
	}
	top := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return top, true
}

// Mark adds a (source, destination) pair to the mark queue.
func (e *Explorer) Mark(source, destination string) {
	e.marks = append(e.marks, MarkEntry{Source: source, Destination: destination})
}

// Unmark removes every queued entry with the given source path.
func (e *Explorer) Unmark(source string) {
	filtered := e.marks[:0]
	for _, m := range e.marks {
		if m.Source != source {
			filtered = append(filtered, m)
		}
	}
	e.marks = filtered
}

// ClearQueue empties the mark queue.
func (e *Explorer) ClearQueue() { e.marks = nil }

// Marks returns the current mark queue.
func (e *Explorer) Marks() []MarkEntry {
	return append([]MarkEntry(nil), e.marks...)
}

// SelectedEntries returns the mark queue if non-empty, else the single
// highlighted entry if one was given, else SelectionNone.
func (e *Explorer) SelectedEntries(highlighted *fsys.File) Selection {
	if len(e.marks) > 0 {
		return Selection{Kind: SelectionQueue, Queue: e.Marks()}
	}
	if highlighted != nil {
		return Selection{Kind: SelectionSingle, Single: *highlighted}
	}
	return Selection{Kind: SelectionNone}
}

// Format renders file using the configured formatter, or its bare name
// if no formatter was set.
func (e *Explorer) Format(file fsys.File, protocol string) string {
	if e.formatter == nil {
		return file.Name()
	}
	return e.formatter.Format(file, protocol)
}
