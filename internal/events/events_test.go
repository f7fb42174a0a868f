package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/airmap/internal/invalidation"
)

func TestPublisher_SendsEventKeyedByLayer(t *testing.T) {
	cfg := mocks.NewTestConfig()
	prod := mocks.NewAsyncProducer(t, cfg)

	ts := time.Date(2024, 9, 24, 4, 0, 0, 0, time.UTC)
	prod.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		k, _ := msg.Key.Encode()
		if string(k) != "observatory" {
			return errors.New("wrong key " + string(k))
		}
		v, _ := msg.Value.Encode()
		var ev invalidation.Event
		if err := json.Unmarshal(v, &ev); err != nil {
			return err
		}
		if ev.Version != 4 || ev.Op != invalidation.OpUpdate || !ev.TS.Equal(ts) {
			return errors.New("unexpected event " + string(v))
		}
		return nil
	})

	p := newPublisher(prod, "airmap-layer-changes", 4, nil)
	p.Notify(context.Background(), invalidation.Event{Layer: "observatory", Version: 4, TS: ts, Op: invalidation.OpUpdate})
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPublisher_DropsWhenQueueFull(t *testing.T) {
	p := &Publisher{events: make(chan invalidation.Event, 1)}
	ev := invalidation.Event{Layer: "x", Version: 1, TS: time.Now(), Op: invalidation.OpUpdate}

	done := make(chan struct{})
	go func() {
		p.Notify(context.Background(), ev)
		p.Notify(context.Background(), ev)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Notify blocked on a full queue")
	}
	if len(p.events) != 1 {
		t.Fatalf("queued %d events, want 1", len(p.events))
	}
}

func TestPublisher_CloseTwiceAndNotifyAfterClose(t *testing.T) {
	prod := mocks.NewAsyncProducer(t, mocks.NewTestConfig())
	p := newPublisher(prod, "airmap-layer-changes", 4, nil)

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	p.Notify(context.Background(), invalidation.Event{Layer: "observatory", Version: 2, TS: time.Now(), Op: invalidation.OpUpdate})
}

func TestMulti_FansOutInOrder(t *testing.T) {
	var got []string
	a := NotifierFunc(func(_ context.Context, ev invalidation.Event) { got = append(got, "a:"+ev.Layer) })
	b := NotifierFunc(func(_ context.Context, ev invalidation.Event) { got = append(got, "b:"+ev.Layer) })

	Multi(a, nil, b).Notify(context.Background(), invalidation.Event{Layer: "average"})
	if len(got) != 2 || got[0] != "a:average" || got[1] != "b:average" {
		t.Fatalf("got %v", got)
	}
	Nop.Notify(context.Background(), invalidation.Event{})
}
