package scheduler

import (
	"container/heap"

	"go.trai.ch/kiln/internal/engine/resolver"
)

// entry is a ready target. Higher priority pops first; equal priorities pop in
// the order they became ready.
type entry struct {
	node     *resolver.Node
	priority float64
	seq      uint64
}

// readyQueue implements heap.Interface.
type readyQueue []entry

var _ heap.Interface = (*readyQueue)(nil)

func (q readyQueue) Len() int { return len(q) }

func (q readyQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q readyQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *readyQueue) Push(x any) { *q = append(*q, x.(entry)) }

func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = entry{}
	*q = old[:n-1]
	return e
}
