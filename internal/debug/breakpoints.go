// Package debug keeps the breakpoint table. The symbol table only ever
// removes breakpoints, when the function they belong to is reloaded or
// disappears.
package debug

import "sort"

// Table maps a function's canonical name to its breakpoint lines.
type Table struct {
	byFile map[string]map[int]struct{}
}

func NewTable() *Table {
	return &Table{byFile: make(map[string]map[int]struct{})}
}

// Add sets breakpoints and returns the resulting sorted line set.
func (t *Table) Add(fname string, lines ...int) []int {
	set, ok := t.byFile[fname]
	if !ok {
		set = make(map[int]struct{})
		t.byFile[fname] = set
	}
	for _, l := range lines {
		set[l] = struct{}{}
	}
	return t.Lines(fname)
}

// Remove deletes individual breakpoints.
func (t *Table) Remove(fname string, lines ...int) {
	set, ok := t.byFile[fname]
	if !ok {
		return
	}
	for _, l := range lines {
		delete(set, l)
	}
	if len(set) == 0 {
		delete(t.byFile, fname)
	}
}

// RemoveAllInFile drops every breakpoint registered for fname.
func (t *Table) RemoveAllInFile(fname string) {
	delete(t.byFile, fname)
}

func (t *Table) Lines(fname string) []int {
	set := t.byFile[fname]
	lines := make([]int, 0, len(set))
	for l := range set {
		lines = append(lines, l)
	}
	sort.Ints(lines)
	return lines
}

// Files returns the names that currently have breakpoints, sorted.
func (t *Table) Files() []string {
	names := make([]string, 0, len(t.byFile))
	for n := range t.byFile {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
