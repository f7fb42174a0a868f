package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/airmap/internal/core/observability"
	"github.com/mohammed-shakir/airmap/internal/invalidation"
)

// Purger drops cached lookups for a layer and reports how many went.
type Purger interface {
	Purge(layer string) int
}

type Runner struct {
	log      *slog.Logger
	cfg      InvalidationConfig
	purgers  []Purger
	ms       *metricSet
	ver      *versionDedupe
	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

type Options struct {
	Logger   *slog.Logger
	Register prometheus.Registerer
}

func New(cfg InvalidationConfig, purgers []Purger, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		log:     opts.Logger,
		cfg:     cfg,
		purgers: purgers,
		ms:      newMetricSet(opts.Register),
		ver:     newVersionDedupe(256),
		assign:  map[int32]struct{}{},
	}
}

func (r *Runner) Start(ctx context.Context) error {
	if !r.cfg.Enabled {
		r.log.Info("invalidation runner disabled")
		return nil
	}
	if len(r.purgers) == 0 {
		return errors.New("kafka runner: at least one purger is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = r.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = r.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = r.cfg.RebalanceTimeout
	if r.cfg.InitialOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(r.cfg.Brokers, r.cfg.GroupID, cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("consumer group: %w", err)
	}

	h := &groupHandler{
		setup: func(sess sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(true)
			r.assign = map[int32]struct{}{}
			for _, parts := range sess.Claims() {
				for _, p := range parts {
					r.assign[p] = struct{}{}
				}
			}
			r.assignMu.Unlock()
		},
		cleanup: func(sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(false)
			r.assign = map[int32]struct{}{}
			r.assignMu.Unlock()
		},
		process: r.handleMessage,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				r.log.Error("kafka consumer group close", "err", err)
			}
		}()

		for {
			if err := group.Consume(ctx, []string{r.cfg.Topic}, h); err != nil {
				r.log.Error("kafka consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for err := range group.Errors() {
			r.log.Error("kafka group error", "err", err)
		}
	}()

	r.log.Info("kafka invalidation runner started",
		"topic", r.cfg.Topic, "group", r.cfg.GroupID, "brokers", r.cfg.Brokers)
	return nil
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info("kafka invalidation runner stopped")
}

// Readiness reports whether the group currently owns any partitions.
// A disabled runner is always ready.
func (r *Runner) Readiness() (ready bool, partitions []int32) {
	if !r.cfg.Enabled {
		return true, nil
	}
	if !r.assigned.Load() {
		return false, nil
	}
	r.assignMu.RLock()
	defer r.assignMu.RUnlock()
	for p := range r.assign {
		partitions = append(partitions, p)
	}
	return true, partitions
}

// Poison messages are logged and acknowledged so the partition keeps moving.
func (r *Runner) handleMessage(_ context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	if !msg.Timestamp.IsZero() {
		r.ms.lagGauge.Set(time.Since(msg.Timestamp).Seconds())
	}

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		r.reject(msg, fmt.Errorf("decode: %w", err))
		return nil
	}
	if err := ev.Validate(); err != nil {
		r.reject(msg, fmt.Errorf("validate: %w", err))
		return nil
	}

	r.apply(ev)
	r.ms.msgs.WithLabelValues("ok").Inc()
	r.ms.proc.WithLabelValues(ev.Op).Observe(time.Since(start).Seconds())
	observability.IncChangeEvent("consume", "ok")
	return nil
}

func (r *Runner) reject(msg *sarama.ConsumerMessage, err error) {
	r.ms.msgs.WithLabelValues("error").Inc()
	observability.IncChangeEvent("consume", "error")
	r.log.Warn("invalidation message rejected",
		"partition", msg.Partition, "offset", msg.Offset, "err", err)
}

func (r *Runner) apply(ev invalidation.Event) {
	if !r.ver.shouldApply(ev.Layer, ev.Version) {
		r.ms.apply.WithLabelValues("skip_version").Inc()
		return
	}
	n := 0
	for _, p := range r.purgers {
		n += p.Purge(ev.Layer)
	}
	r.ms.apply.WithLabelValues("purge").Inc()
	r.log.Debug("layer cache purged", "layer", ev.Layer, "version", ev.Version, "entries", n)
}

type groupHandler struct {
	setup   func(sarama.ConsumerGroupSession)
	cleanup func(sarama.ConsumerGroupSession)
	process func(context.Context, *sarama.ConsumerMessage) error
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup(sess)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.cleanup != nil {
		h.cleanup(sess)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for msg := range claim.Messages() {
		if err := h.process(ctx, msg); err != nil {
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
