package search

import (
	"context"

	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/weight"
)

// OneToMany runs one bidirectional query per target. The forward space of
// source is computed once and replayed from cache for every target. A
// result with nil Vertices means the target was not reached.
func OneToMany[T any](ctx context.Context, g *graph.DirectedMeta, h weight.Handler[T], source Source[T], targets []Source[T], cache *Cache[T]) ([]Path[T], error) {
	if cache == nil {
		cache = NewCache[T]()
	}
	out := make([]Path[T], len(targets))
	for i, target := range targets {
		b := Combine(h,
			NewDykstra(g, h, source, false, WithCache(cache)),
			NewDykstra(g, h, target, true))
		if err := b.Run(ctx); err != nil {
			return nil, err
		}
		if !b.HasSucceeded() {
			continue
		}
		p, err := b.Path()
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
