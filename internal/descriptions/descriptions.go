package descriptions

import (
	"path/filepath"
	"sort"
	"sync"
)

// Index is the in-memory path to description map. Keys are canonical
// absolute paths. It is independent of the description embedded in the
// image files themselves.
type Index struct {
	mu      sync.RWMutex
	entries map[string]string
}

// Entry is one path/description pair.
type Entry struct {
	Path string `json:"path" db:"path"`
	Text string `json:"text" db:"text"`
}

// New returns an empty index.
func New() *Index {
	return &Index{entries: make(map[string]string)}
}

// Canonical returns the key used for path: absolute and cleaned.
func Canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// Put sets the description for path, overwriting any previous one.
func (x *Index) Put(path, text string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries[Canonical(path)] = text
}

// Get returns the description for path.
func (x *Index) Get(path string) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	text, ok := x.entries[Canonical(path)]
	return text, ok
}

// Delete removes the entry for path and reports whether there was one.
func (x *Index) Delete(path string) bool {
	key := Canonical(path)

	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.entries[key]
	delete(x.entries, key)
	return ok
}

// Rename moves the entry for oldPath to newPath, replacing whatever newPath
// had. It reports whether oldPath had an entry.
func (x *Index) Rename(oldPath, newPath string) bool {
	from, to := Canonical(oldPath), Canonical(newPath)

	x.mu.Lock()
	defer x.mu.Unlock()
	text, ok := x.entries[from]
	if !ok {
		return false
	}
	delete(x.entries, from)
	x.entries[to] = text
	return true
}

// Len returns the number of entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Snapshot returns a copy of the map.
func (x *Index) Snapshot() map[string]string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make(map[string]string, len(x.entries))
	for k, v := range x.entries {
		out[k] = v
	}
	return out
}

// Entries returns every entry sorted by path.
func (x *Index) Entries() []Entry {
	snap := x.Snapshot()
	out := make([]Entry, 0, len(snap))
	for k, v := range snap {
		out = append(out, Entry{Path: k, Text: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// merge inserts entries whose key is absent and returns how many it added.
// When replace is set the map is reset first.
func (x *Index) merge(entries []Entry, replace bool) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	if replace {
		x.entries = make(map[string]string, len(entries))
	}

	added := 0
	for _, e := range entries {
		key := Canonical(e.Path)
		if _, ok := x.entries[key]; ok {
			continue
		}
		x.entries[key] = e.Text
		added++
	}
	return added
}
