// Package invalidation defines the layer change event shared by the
// publisher and the cache invalidation consumer.
package invalidation

import (
	"fmt"
	"strings"
	"time"
)

const (
	OpInsert  = "insert"
	OpUpdate  = "update"
	OpReplace = "replace"
	OpDelete  = "delete"
)

// Event announces that a layer reached Version. IDs lists the touched
// records when known; consumers may ignore it and drop the whole layer.
type Event struct {
	Layer   string    `json:"layer"`
	Version int64     `json:"version"`
	TS      time.Time `json:"ts"`
	Op      string    `json:"op"`
	IDs     []string  `json:"ids,omitempty"`
	Source  string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.Layer) == "" {
		return fmt.Errorf("layer is required")
	}
	if e.Version <= 0 {
		return fmt.Errorf("version must be positive")
	}
	switch e.Op {
	case OpInsert, OpUpdate, OpReplace, OpDelete:
	default:
		return fmt.Errorf("op must be insert|update|replace|delete")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}
