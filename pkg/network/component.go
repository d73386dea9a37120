package network

import "github.com/paulmach/orb"

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{parent: parent, rank: make([]byte, n), size: size}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx, ry := uf.Find(x), uf.Find(y)
	if rx == ry {
		return false
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// Size returns the size of the set containing x.
func (uf *UnionFind) Size(x uint32) uint32 { return uf.size[uf.Find(x)] }

// LargestComponent returns the vertices of the largest weakly connected
// component, ignoring road directions and profiles.
func (n *Network) LargestComponent() []uint32 {
	count := n.VertexCount()
	if count == 0 {
		return nil
	}

	uf := NewUnionFind(count)
	for _, r := range n.Roads {
		uf.Union(r.From, r.To)
	}

	bestRoot, bestSize := uint32(0), uint32(0)
	for v := uint32(0); v < count; v++ {
		root := uf.Find(v)
		if uf.size[root] > bestSize {
			bestRoot, bestSize = root, uf.size[root]
		}
	}

	vertices := make([]uint32, 0, bestSize)
	for v := uint32(0); v < count; v++ {
		if uf.Find(v) == bestRoot {
			vertices = append(vertices, v)
		}
	}
	return vertices
}

// Filter returns a new network with only the given vertices and the roads
// between them. Vertices are renumbered in the given order.
func (n *Network) Filter(vertices []uint32) *Network {
	oldToNew := make(map[uint32]uint32, len(vertices))
	coords := make([]orb.Point, len(vertices))
	for i, v := range vertices {
		oldToNew[v] = uint32(i)
		coords[i] = n.Coords[v]
	}

	var roads []Road
	for _, r := range n.Roads {
		from, ok1 := oldToNew[r.From]
		to, ok2 := oldToNew[r.To]
		if !ok1 || !ok2 {
			continue
		}
		r.From, r.To = from, to
		roads = append(roads, r)
	}
	return New(coords, roads, n.Profiles)
}
