package pipeline

import (
	"log/slog"

	"github.com/vox-duplex/voicepipe/internal/metrics"
)

// queueCapacity is the bounded capacity of every inter-stage queue (q1..q4).
const queueCapacity = 60

// queue[T] is a single-producer/single-consumer bounded channel with a
// drop-newest-on-full policy: a send that would block is abandoned and
// logged at warning level instead of blocking the producer.
type queue[T any] struct {
	ch    chan T
	name  string
	queue string // q1..q4, for log attribution
}

func newQueue[T any](name, label string) *queue[T] {
	return &queue[T]{ch: make(chan T, queueCapacity), name: name, queue: label}
}

// trySend enqueues v, dropping it (with a warning log) if the queue is full.
func (q *queue[T]) trySend(v T) {
	select {
	case q.ch <- v:
		metrics.QueueDepth.WithLabelValues(q.queue).Set(float64(len(q.ch)))
	default:
		slog.Warn("pipeline queue full, dropping newest item", "queue", q.queue, "stage", q.name)
		metrics.QueueDrops.WithLabelValues(q.queue).Inc()
	}
}

// recv exposes the receive-only channel for range/select use by consumers.
func (q *queue[T]) recv() <-chan T {
	return q.ch
}

func (q *queue[T]) close() {
	close(q.ch)
}
