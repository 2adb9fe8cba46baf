// Package recency remembers which puzzles were served recently per category
// so the selector can avoid immediate repeats.
package recency

import (
	"strings"
	"sync"
)

const DefaultCapacity = 100

// Filter is a set of ids per category bounded at a fixed capacity. Once a
// category is full the oldest inserted id is evicted. Entries never expire
// by time and are never persisted.
type Filter struct {
	mu         sync.Mutex
	capacity   int
	categories map[string]*window
}

type window struct {
	order []string
	ids   map[string]struct{}
}

func New(capacity int) *Filter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Filter{
		capacity:   capacity,
		categories: make(map[string]*window),
	}
}

func (f *Filter) Capacity() int { return f.capacity }

func (f *Filter) WasRecentlyServed(category, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.categories[normalize(category)]
	if !ok {
		return false
	}
	_, seen := w.ids[id]
	return seen
}

// MarkServed는 category에 id를 기록. 이미 있는 id는 기존 순서를 유지한다.
func (f *Filter) MarkServed(category, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	key := normalize(category)

	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.categories[key]
	if !ok {
		w = &window{ids: make(map[string]struct{}, f.capacity+1)}
		f.categories[key] = w
	}
	if _, seen := w.ids[id]; seen {
		return
	}
	w.order = append(w.order, id)
	w.ids[id] = struct{}{}
	for len(w.order) > f.capacity {
		oldest := w.order[0]
		w.order[0] = ""
		w.order = w.order[1:]
		delete(w.ids, oldest)
	}
}

func (f *Filter) Len(category string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.categories[normalize(category)]; ok {
		return len(w.order)
	}
	return 0
}

// Snapshot returns the ids of category from oldest to newest.
func (f *Filter) Snapshot(category string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.categories[normalize(category)]; ok {
		return append([]string(nil), w.order...)
	}
	return nil
}

func normalize(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
