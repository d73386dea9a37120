// Package search runs weighted searches over a contracted meta-graph.
package search

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/azybler/road_router/pkg/graph"
	"github.com/azybler/road_router/pkg/pathtree"
	"github.com/azybler/road_router/pkg/weight"
)

// ErrNotFound is returned by Path when the search did not connect.
var ErrNotFound = errors.New("search: no path found")

// Source seeds a search with one or two vertices. A point on an edge maps to
// both of its ends, each with the partial weight of reaching it.
type Source[T any] struct {
	Vertex1 uint32
	Weight1 T
	Vertex2 uint32 // graph.NoVertex when unused
	Weight2 T
}

// NewSource seeds a search at a single vertex.
func NewSource[T any](vertex uint32, w T) Source[T] {
	return Source[T]{Vertex1: vertex, Weight1: w, Vertex2: graph.NoVertex}
}

// NewSource2 seeds a search at two vertices.
func NewSource2[T any](v1 uint32, w1 T, v2 uint32, w2 T) Source[T] {
	return Source[T]{Vertex1: v1, Weight1: w1, Vertex2: v2, Weight2: w2}
}

// String is the signature used as cache key.
func (s Source[T]) String() string {
	if s.Vertex2 == graph.NoVertex {
		return fmt.Sprintf("%d:%v", s.Vertex1, s.Weight1)
	}
	return fmt.Sprintf("%d:%v|%d:%v", s.Vertex1, s.Weight1, s.Vertex2, s.Weight2)
}

// Visit is a settled vertex: its weight and its record in the path tree.
type Visit[T any] struct {
	Vertex  uint32
	Pointer uint32
	Weight  T
}

// SearchSpace is everything one search settled, in settle order. Spaces
// shared through a Cache are read-only.
type SearchSpace[T any] struct {
	Tree   *pathtree.Tree
	Visits []Visit[T]

	index map[uint32]int
}

func newSearchSpace[T any](tree *pathtree.Tree, visits []Visit[T]) *SearchSpace[T] {
	index := make(map[uint32]int, len(visits))
	for i, v := range visits {
		index[v.Vertex] = i
	}
	return &SearchSpace[T]{Tree: tree, Visits: visits, index: index}
}

// Get returns the visit of vertex.
func (s *SearchSpace[T]) Get(vertex uint32) (Visit[T], bool) {
	i, ok := s.index[vertex]
	if !ok {
		return Visit[T]{}, false
	}
	return s.Visits[i], true
}

// Path is a vertex sequence with its total weight.
type Path[T any] struct {
	Vertices []uint32
	Weight   T
}

// walk returns the vertices from pointer back to the root of the tree.
func walk[T any](h weight.Handler[T], tree *pathtree.Tree, pointer uint32) []uint32 {
	var out []uint32
	for p := pointer; p != pathtree.NoPointer; {
		v, _, prev := h.GetPathTree(tree, p)
		out = append(out, v)
		p = prev
	}
	return out
}
