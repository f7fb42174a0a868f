// Package store persists stations, readings and averages in Redis, with an
// H3 cell index for bounding-box lookups.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/mohammed-shakir/airmap/internal/cache/keys"
	"github.com/mohammed-shakir/airmap/internal/cache/redisstore"
	"github.com/mohammed-shakir/airmap/internal/core/model"
	"github.com/mohammed-shakir/airmap/internal/mapper"
	h3mapper "github.com/mohammed-shakir/airmap/internal/mapper/h3"
)

var ErrNotFound = errors.New("store: not found")

const (
	LayerObservatory = "observatory"
	LayerAirStation  = "airstation"
	LayerAverage     = "average"
)

const mgetChunk = 500

// Located is anything the geo index can place on the map.
type Located interface {
	RecordID() string
	RecordName() string
	Position() model.Point
}

type Options struct {
	Res            int
	MaxIndexedSpan float64 // square degrees; wider boxes scan the layer
	OpTimeout      time.Duration
}

func (o Options) withDefaults() Options {
	if o.Res < 0 || o.Res > 15 {
		o.Res = 5
	}
	if o.MaxIndexedSpan <= 0 {
		o.MaxIndexedSpan = 25
	}
	return o
}

// geoIndex stores JSON records of T under stn:<layer>:<id> and keeps the
// per-cell, all-members and name indexes in step with them.
type geoIndex[T Located] struct {
	rc     *redisstore.Client
	mapper mapper.Interface
	layer  string
	opts   Options
	log    *slog.Logger
}

func newGeoIndex[T Located](rc *redisstore.Client, m mapper.Interface, layer string, opts Options, log *slog.Logger) *geoIndex[T] {
	if m == nil {
		m = h3mapper.New()
	}
	if log == nil {
		log = slog.Default()
	}
	return &geoIndex[T]{rc: rc, mapper: m, layer: layer, opts: opts.withDefaults(), log: log.With("layer", layer)}
}

func (g *geoIndex[T]) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.opts.OpTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.opts.OpTimeout)
}

// put writes rec and its index entries in one transaction. A record whose
// position moved to another cell is removed from the old cell set.
func (g *geoIndex[T]) put(ctx context.Context, rec T) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	id := rec.RecordID()
	if id == "" {
		return fmt.Errorf("%s put: empty id", g.layer)
	}
	cell, err := g.mapper.CellForPoint(rec.Position(), g.opts.Res)
	if err != nil {
		return fmt.Errorf("%s put %s: %w", g.layer, id, err)
	}

	var oldCell string
	if old, ok, err := g.getRaw(ctx, id); err != nil {
		return err
	} else if ok {
		if oc, err := g.mapper.CellForPoint(old.Position(), g.opts.Res); err == nil && oc != cell {
			oldCell = oc
		}
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%s encode %s: %w", g.layer, id, err)
	}

	return g.rc.Tx(ctx, g.layer+"_put", func(p redis.Pipeliner) error {
		p.Set(ctx, keys.Record(g.layer, id), body, 0)
		if oldCell != "" {
			p.SRem(ctx, keys.Cell(g.layer, g.opts.Res, oldCell), id)
		}
		p.SAdd(ctx, keys.Cell(g.layer, g.opts.Res, cell), id)
		p.SAdd(ctx, keys.Members(g.layer), id)
		if name := rec.RecordName(); name != "" {
			p.HSet(ctx, keys.Names(g.layer), name, id)
		}
		return nil
	})
}

func (g *geoIndex[T]) getRaw(ctx context.Context, id string) (T, bool, error) {
	var zero T
	b, ok, err := g.rc.Get(ctx, keys.Record(g.layer, id))
	if err != nil {
		return zero, false, fmt.Errorf("%s get %s: %w", g.layer, id, err)
	}
	if !ok {
		return zero, false, nil
	}
	var rec T
	if err := json.Unmarshal(b, &rec); err != nil {
		return zero, false, fmt.Errorf("%s decode %s: %w", g.layer, id, err)
	}
	return rec, true, nil
}

func (g *geoIndex[T]) get(ctx context.Context, id string) (T, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	rec, ok, err := g.getRaw(ctx, id)
	if err != nil {
		return rec, err
	}
	if !ok {
		return rec, fmt.Errorf("%s %s: %w", g.layer, id, ErrNotFound)
	}
	return rec, nil
}

func (g *geoIndex[T]) idByName(ctx context.Context, name string) (string, bool, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	id, ok, err := g.rc.HGet(ctx, keys.Names(g.layer), name)
	if err != nil {
		return "", false, fmt.Errorf("%s name lookup %q: %w", g.layer, name, err)
	}
	return id, ok, nil
}

func (g *geoIndex[T]) all(ctx context.Context) ([]T, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	ids, err := g.rc.SMembers(ctx, keys.Members(g.layer))
	if err != nil {
		return nil, fmt.Errorf("%s members: %w", g.layer, err)
	}
	recs, err := g.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortByID(recs)
	return recs, nil
}

// inBounds returns every record inside box, edges inclusive, sorted by id.
func (g *geoIndex[T]) inBounds(ctx context.Context, box model.BoundingBox) ([]T, error) {
	if !box.Valid() {
		return nil, fmt.Errorf("%s in bounds: invalid box %s", g.layer, box)
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	ids, err := g.candidateIDs(ctx, box)
	if err != nil {
		return nil, err
	}
	recs, err := g.load(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := recs[:0]
	for _, r := range recs {
		if box.Contains(r.Position()) {
			out = append(out, r)
		}
	}
	sortByID(out)
	return out, nil
}

func (g *geoIndex[T]) candidateIDs(ctx context.Context, box model.BoundingBox) ([]string, error) {
	if box.Span() > g.opts.MaxIndexedSpan {
		return g.scanMembers(ctx)
	}
	cells, err := g.mapper.CellsForBox(box, g.opts.Res)
	if errors.Is(err, h3mapper.ErrCoverTooLarge) {
		g.log.DebugContext(ctx, "cell cover too large, scanning layer", "box", box.String())
		return g.scanMembers(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%s cover %s: %w", g.layer, box, err)
	}
	setKeys := make([]string, len(cells))
	for i, c := range cells {
		setKeys[i] = keys.Cell(g.layer, g.opts.Res, c)
	}
	ids, err := g.rc.SUnion(ctx, setKeys...)
	if err != nil {
		return nil, fmt.Errorf("%s cell union: %w", g.layer, err)
	}
	return ids, nil
}

func (g *geoIndex[T]) scanMembers(ctx context.Context) ([]string, error) {
	ids, err := g.rc.SMembers(ctx, keys.Members(g.layer))
	if err != nil {
		return nil, fmt.Errorf("%s members: %w", g.layer, err)
	}
	return ids, nil
}

// load fetches records by id in MGET chunks; ids whose record vanished are skipped.
func (g *geoIndex[T]) load(ctx context.Context, ids []string) ([]T, error) {
	out := make([]T, 0, len(ids))
	for start := 0; start < len(ids); start += mgetChunk {
		end := min(start+mgetChunk, len(ids))
		recKeys := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			recKeys = append(recKeys, keys.Record(g.layer, id))
		}
		vals, err := g.rc.MGet(ctx, recKeys)
		if err != nil {
			return nil, fmt.Errorf("%s load: %w", g.layer, err)
		}
		for _, k := range recKeys {
			b, ok := vals[k]
			if !ok {
				continue
			}
			var rec T
			if err := json.Unmarshal(b, &rec); err != nil {
				g.log.WarnContext(ctx, "skipping undecodable record", "key", k, "err", err)
				continue
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// bumpVersion increments the layer change counter.
func (g *geoIndex[T]) bumpVersion(ctx context.Context) (int64, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	v, err := g.rc.Incr(ctx, keys.Version(g.layer))
	if err != nil {
		return 0, fmt.Errorf("%s version: %w", g.layer, err)
	}
	return v, nil
}

func sortByID[T Located](recs []T) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].RecordID() < recs[j].RecordID() })
}
