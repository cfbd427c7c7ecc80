package kafkaconsumer

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// generationDedupe remembers the newest generation applied per source.
type generationDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, int64]
}

func newGenerationDedupe(size int) *generationDedupe {
	if size <= 0 {
		size = 256
	}
	c, _ := lru.New[string, int64](size)
	return &generationDedupe{lru: c}
}

// stale reports whether v is not newer than the last applied generation.
func (d *generationDedupe) stale(source string, v int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lru.Get(source)
	return ok && v <= last
}

func (d *generationDedupe) commit(source string, v int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(source); ok && v <= last {
		return
	}
	d.lru.Add(source, v)
}
