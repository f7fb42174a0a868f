package kafka

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mohammed-shakir/airmap/internal/core/config"
	"github.com/mohammed-shakir/airmap/internal/invalidation"
)

type fakePurger struct {
	layer string
	mu    sync.Mutex
	calls []string
}

func (f *fakePurger) Purge(layer string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if layer != f.layer {
		return 0
	}
	f.calls = append(f.calls, layer)
	return 1
}

func (f *fakePurger) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func msgFor(t *testing.T, ev invalidation.Event) *sarama.ConsumerMessage {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 1, Timestamp: time.Now().UTC(), Value: b}
}

func TestHandleMessage_PurgesOnceForAVersion(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := &fakePurger{layer: "observatory"}
	air := &fakePurger{layer: "airstation"}
	r := New(InvalidationConfig{Enabled: true}, []Purger{obs, air}, Options{Register: reg})
	ctx := context.Background()

	ev := invalidation.Event{Layer: "observatory", Version: 2, TS: time.Now().UTC(), Op: invalidation.OpUpdate}
	if err := r.handleMessage(ctx, msgFor(t, ev)); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	if err := r.handleMessage(ctx, msgFor(t, ev)); err != nil {
		t.Fatalf("second handleMessage: %v", err)
	}
	if obs.Count() != 1 || air.Count() != 0 {
		t.Fatalf("purges obs=%d air=%d, want 1/0", obs.Count(), air.Count())
	}
	if got := testutil.ToFloat64(r.ms.apply.WithLabelValues("skip_version")); got != 1 {
		t.Fatalf("skip_version=%v want 1", got)
	}

	older := ev
	older.Version = 1
	_ = r.handleMessage(ctx, msgFor(t, older))
	if obs.Count() != 1 {
		t.Fatalf("stale version purged again")
	}

	newer := ev
	newer.Version = 3
	_ = r.handleMessage(ctx, msgFor(t, newer))
	if obs.Count() != 2 {
		t.Fatalf("newer version not applied, purges=%d", obs.Count())
	}
}

func TestHandleMessage_PoisonIsAcked(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := &fakePurger{layer: "observatory"}
	r := New(InvalidationConfig{Enabled: true}, []Purger{p}, Options{Register: reg})

	bad := &sarama.ConsumerMessage{Value: []byte("{not json")}
	if err := r.handleMessage(context.Background(), bad); err != nil {
		t.Fatalf("poison should not stop the claim: %v", err)
	}
	invalid := msgFor(t, invalidation.Event{Layer: "observatory", Op: invalidation.OpUpdate})
	if err := r.handleMessage(context.Background(), invalid); err != nil {
		t.Fatalf("invalid should not stop the claim: %v", err)
	}
	if p.Count() != 0 {
		t.Fatalf("purged on bad input")
	}
	if got := testutil.ToFloat64(r.ms.msgs.WithLabelValues("error")); got != 2 {
		t.Fatalf("error msgs=%v want 2", got)
	}
}

func TestRunner_DisabledStartIsNoop(t *testing.T) {
	r := New(InvalidationConfig{}, nil, Options{})
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if ok, _ := r.Readiness(); !ok {
		t.Fatalf("disabled runner should report ready")
	}
	r.Stop()
}

func TestFromConfig_RequiresBrokers(t *testing.T) {
	c := FromConfig(config.InvalidationCfg{Enabled: true, Topic: "x", GroupID: "g"})
	if c.Enabled {
		t.Fatalf("enabled without brokers")
	}
	c = FromConfig(config.InvalidationCfg{Enabled: true, Brokers: []string{"k:9092"}, Topic: "x", GroupID: "g"})
	if !c.Enabled || c.Topic != "x" || !strings.HasPrefix(c.GroupID, "g-") {
		t.Fatalf("unexpected %+v", c)
	}
}

// replicas never share a group, so each one receives every change
func TestFromConfig_GroupPerInstance(t *testing.T) {
	in := config.InvalidationCfg{Enabled: true, Brokers: []string{"k:9092"}, Topic: "x", GroupID: "airmap-resolver", InstanceID: "pod-a"}
	a := FromConfig(in)
	b := FromConfig(in)
	if a.GroupID == b.GroupID {
		t.Fatalf("two instances share group %q", a.GroupID)
	}
	if !strings.HasPrefix(a.GroupID, "airmap-resolver-pod-a-") {
		t.Fatalf("group %q lacks base and instance", a.GroupID)
	}

	in.InstanceID = "pod-b"
	if c := FromConfig(in); !strings.HasPrefix(c.GroupID, "airmap-resolver-pod-b-") {
		t.Fatalf("group %q lacks instance", c.GroupID)
	}

	in.InstanceID = ""
	if c := FromConfig(in); !strings.HasPrefix(c.GroupID, "airmap-resolver-") || c.GroupID == a.GroupID {
		t.Fatalf("group %q without instance", c.GroupID)
	}
}
