package search

// minHeap is a concrete-typed min-heap of path-tree pointers keyed by metric.
// Avoids interface boxing overhead of container/heap.
type minHeap struct {
	items []heapItem
}

type heapItem struct {
	pointer uint32
	metric  float32
}

func (h *minHeap) Len() int { return len(h.items) }

func (h *minHeap) Push(pointer uint32, metric float32) {
	h.items = append(h.items, heapItem{pointer, metric})
	h.siftUp(len(h.items) - 1)
}

func (h *minHeap) Pop() heapItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

// Peek returns the smallest metric without removing it.
func (h *minHeap) Peek() (float32, bool) {
	if len(h.items) == 0 {
		return 0, false
	}
	return h.items[0].metric, true
}

func (h *minHeap) Reset() {
	h.items = h.items[:0]
}

func (h *minHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].metric >= h.items[parent].metric {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *minHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.items[left].metric < h.items[smallest].metric {
			smallest = left
		}
		if right < n && h.items[right].metric < h.items[smallest].metric {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}
