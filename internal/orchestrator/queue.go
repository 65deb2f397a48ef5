package orchestrator

import (
	"container/heap"
	"sync"

	"github.com/ShayCichocki/taskorch/pkg/models"
)

// queueEntry pairs a pending task with its arrival number.
type queueEntry struct {
	task *models.Task
	rank int
	seq  uint64
}

// taskHeap implements heap.Interface. The root is the entry with the
// highest priority rank and, among equal ranks, the lowest arrival number.
type taskHeap []queueEntry

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].rank != h[j].rank {
		return h[i].rank > h[j].rank
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(queueEntry)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = queueEntry{}
	*h = old[:n-1]
	return e
}

// Queue is the pending-task priority queue. Tasks are ordered
// urgent > high > medium > low and first-in first-out within a priority.
// Arrival order is a counter stamped by Push, never the wall clock.
//
// The queue reads only the ID and Priority of the tasks it holds.
type Queue struct {
	mu    sync.Mutex
	items taskHeap
	seq   uint64
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push adds t to the queue and returns its arrival number.
func (q *Queue) Push(t *models.Task) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	heap.Push(&q.items, queueEntry{task: t, rank: t.Priority.Rank(), seq: q.seq})
	return q.seq
}

// Pop removes and returns the highest-ranked task.
// Returns false if the queue is empty.
func (q *Queue) Pop() (*models.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	e := heap.Pop(&q.items).(queueEntry)
	return e.task, true
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
