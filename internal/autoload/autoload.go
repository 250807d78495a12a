// Package autoload maps function names to the files that define them,
// independently of the search path.
package autoload

import (
	"sort"
	"sync"
)

// Entry is one autoload mapping.
type Entry struct {
	Name string
	File string
}

// Map is an in-memory autoload table.
type Map struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMap creates a table holding entries. The map is copied.
func NewMap(entries map[string]string) *Map {
	m := &Map{entries: make(map[string]string, len(entries))}
	for name, file := range entries {
		m.entries[name] = file
	}
	return m
}

// Lookup returns the file registered for name, or "".
func (m *Map) Lookup(name string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[name]
}

// Add registers file for name, replacing any earlier entry.
func (m *Map) Add(name, file string) {
	m.mu.Lock()
	m.entries[name] = file
	m.mu.Unlock()
}

// Remove drops the entry for name and reports whether there was one.
func (m *Map) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[name]; !ok {
		return false
	}
	delete(m.entries, name)
	return true
}

// Entries returns all mappings sorted by name.
func (m *Map) Entries() []Entry {
	m.mu.RLock()
	out := make([]Entry, 0, len(m.entries))
	for name, file := range m.entries {
		out = append(out, Entry{Name: name, File: file})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len is the number of entries.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Lookuper is anything that answers autoload queries.
type Lookuper interface {
	Lookup(name string) string
}

// Chain consults each index in order and returns the first hit.
type Chain []Lookuper

// Lookup implements Lookuper.
func (c Chain) Lookup(name string) string {
	for _, idx := range c {
		if idx == nil {
			continue
		}
		if file := idx.Lookup(name); file != "" {
			return file
		}
	}
	return ""
}
