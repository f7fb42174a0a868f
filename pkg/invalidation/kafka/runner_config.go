package kafka

import (
	"strings"
	"time"

	"github.com/mohammed-shakir/airmap/internal/core/config"
	"github.com/mohammed-shakir/airmap/internal/logger"
)

type InvalidationConfig struct {
	Enabled bool

	Brokers []string
	Topic   string
	GroupID string

	SessionTimeout   time.Duration
	Heartbeat        time.Duration
	RebalanceTimeout time.Duration
	InitialOldest    bool
}

// FromConfig derives a consumer group unique to this process, so every
// replica sees every change and purges its own resolve cache.
func FromConfig(c config.InvalidationCfg) InvalidationConfig {
	return InvalidationConfig{
		Enabled:          c.Enabled && len(c.Brokers) > 0,
		Brokers:          c.Brokers,
		Topic:            c.Topic,
		GroupID:          instanceGroup(c.GroupID, c.InstanceID),
		SessionTimeout:   30 * time.Second,
		Heartbeat:        3 * time.Second,
		RebalanceTimeout: 30 * time.Second,
		InitialOldest:    false,
	}
}

func instanceGroup(base, instance string) string {
	parts := []string{base}
	if instance = strings.TrimSpace(instance); instance != "" {
		parts = append(parts, instance)
	}
	return strings.Join(append(parts, logger.NewID()[:8]), "-")
}
