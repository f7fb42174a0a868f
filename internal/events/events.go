// Package events publishes layer change events to Kafka.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/airmap/internal/core/observability"
	"github.com/mohammed-shakir/airmap/internal/invalidation"
)

// Notifier is told about every committed layer change.
type Notifier interface {
	Notify(ctx context.Context, ev invalidation.Event)
}

type NotifierFunc func(ctx context.Context, ev invalidation.Event)

func (f NotifierFunc) Notify(ctx context.Context, ev invalidation.Event) { f(ctx, ev) }

// Multi fans an event out to every non-nil notifier in order.
func Multi(ns ...Notifier) Notifier {
	var out multi
	for _, n := range ns {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

type multi []Notifier

func (m multi) Notify(ctx context.Context, ev invalidation.Event) {
	for _, n := range m {
		n.Notify(ctx, ev)
	}
}

// Nop drops every event.
var Nop Notifier = NotifierFunc(func(context.Context, invalidation.Event) {})

type Publisher struct {
	topic   string
	events  chan invalidation.Event
	prod    sarama.AsyncProducer
	log     *slog.Logger
	stopped chan struct{}
	errDone chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
	err    error
}

func NewPublisher(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("events: create async producer: %w", err)
	}
	return newPublisher(prod, topic, queueSize, log), nil
}

func newPublisher(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		topic:   topic,
		events:  make(chan invalidation.Event, queueSize),
		prod:    prod,
		log:     log,
		stopped: make(chan struct{}),
		errDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Error("events: marshal", "err", err)
				observability.IncChangeEvent("publish", "error")
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Layer),
				Value: sarama.ByteEncoder(b),
			}
			observability.IncChangeEvent("publish", "ok")
		}
	}()

	go func() {
		defer close(p.errDone)
		for err := range p.prod.Errors() {
			if err != nil {
				p.log.Error("events: producer error", "err", err)
				observability.IncChangeEvent("publish", "error")
			}
		}
	}()

	return p
}

// Notify enqueues ev; a full queue drops it rather than block ingestion.
// Events after Close are dropped.
func (p *Publisher) Notify(_ context.Context, ev invalidation.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		observability.IncChangeEvent("publish", "dropped")
		return
	}
	select {
	case p.events <- ev:
	default:
		observability.IncChangeEvent("publish", "dropped")
	}
}

// Close flushes queued events and closes the producer. Later calls return
// the first result.
func (p *Publisher) Close() error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.events)
		p.mu.Unlock()
		<-p.stopped

		if err := p.prod.Close(); err != nil {
			p.err = fmt.Errorf("events: close producer: %w", err)
		}
		<-p.errDone
	})
	return p.err
}
