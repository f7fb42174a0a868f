package kafka

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type versionDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, int64]
}

func newVersionDedupe(size int) *versionDedupe {
	if size <= 0 {
		size = 1024
	}
	c, _ := lru.New[string, int64](size)
	return &versionDedupe{lru: c}
}

// returns true if v is greater than last seen for layer
func (d *versionDedupe) shouldApply(layer string, v int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(layer); ok && v <= last {
		return false
	}
	d.lru.Add(layer, v)
	return true
}
