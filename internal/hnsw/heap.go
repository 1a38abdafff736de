package hnsw

import "container/heap"

// candidate pairs an internal node id with its distance to the query.
type candidate struct {
	id   uint32
	dist float64
}

// less orders candidates by ascending distance, ties broken by lowest id
// so that search output is deterministic for identical inputs.
func (c candidate) less(o candidate) bool {
	if c.dist != o.dist {
		return c.dist < o.dist
	}
	return c.id < o.id
}

// minQueue is a min-heap of candidates: the closest candidate is on top.
// It drives the best-first expansion frontier.
type minQueue []candidate

func (q minQueue) Len() int            { return len(q) }
func (q minQueue) Less(i, j int) bool  { return q[i].less(q[j]) }
func (q minQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *minQueue) Push(x interface{}) { *q = append(*q, x.(candidate)) }
func (q *minQueue) Pop() interface{} {
	old := *q
	n := len(old)
	c := old[n-1]
	*q = old[:n-1]
	return c
}

func (q *minQueue) push(c candidate) { heap.Push(q, c) }
func (q *minQueue) pop() candidate   { return heap.Pop(q).(candidate) }

// maxQueue is a max-heap of candidates: the farthest kept result is on
// top, so a bounded result set can evict its worst member in O(log n).
type maxQueue []candidate

func (q maxQueue) Len() int            { return len(q) }
func (q maxQueue) Less(i, j int) bool  { return q[j].less(q[i]) }
func (q maxQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *maxQueue) Push(x interface{}) { *q = append(*q, x.(candidate)) }
func (q *maxQueue) Pop() interface{} {
	old := *q
	n := len(old)
	c := old[n-1]
	*q = old[:n-1]
	return c
}

func (q *maxQueue) push(c candidate) { heap.Push(q, c) }
func (q *maxQueue) pop() candidate   { return heap.Pop(q).(candidate) }
func (q maxQueue) top() candidate    { return q[0] }

// sorted drains the heap into a slice ordered by ascending distance.
func (q *maxQueue) sorted() []candidate {
	out := make([]candidate, q.Len())
	for i := q.Len() - 1; i >= 0; i-- {
		out[i] = q.pop()
	}
	return out
}
