package messaging

import "container/heap"

// LetterBox is a per-node ordered queue of envelopes, indexed by delivery
// time with FIFO tie-breaking (spec.md §3/§4.2). It is not safe for
// concurrent use; the bus serializes access to each node's box at the
// barrier boundary (spec.md §5).
type LetterBox struct {
	q envelopeHeap
}

// NewLetterBox returns an empty, ready-to-use LetterBox.
func NewLetterBox() *LetterBox {
	lb := &LetterBox{}
	heap.Init(&lb.q)
	return lb
}

// Insert adds e to the box, maintaining delivery-time order.
func (b *LetterBox) Insert(e Envelope) {
	heap.Push(&b.q, e)
}

// Len returns the number of pending envelopes.
func (b *LetterBox) Len() int { return b.q.Len() }

// PeekDeliveryTime returns the delivery time of the earliest pending
// envelope, and whether the box is non-empty.
func (b *LetterBox) PeekDeliveryTime() (float64, bool) {
	if b.q.Len() == 0 {
		return 0, false
	}
	return b.q[0].DeliveryTime, true
}

// DrainUpTo removes and returns, in nondecreasing delivery-time order
// (FIFO within equal timestamps), every envelope whose DeliveryTime is
// <= t.
func (b *LetterBox) DrainUpTo(t float64) []Envelope {
	var out []Envelope
	for b.q.Len() > 0 && b.q[0].DeliveryTime <= t {
		out = append(out, heap.Pop(&b.q).(Envelope))
	}
	return out
}

// envelopeHeap orders by (DeliveryTime, seq) ascending.
type envelopeHeap []Envelope

func (h envelopeHeap) Len() int { return len(h) }
func (h envelopeHeap) Less(i, j int) bool {
	if h[i].DeliveryTime != h[j].DeliveryTime {
		return h[i].DeliveryTime < h[j].DeliveryTime
	}
	return h[i].seq < h[j].seq
}
func (h envelopeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *envelopeHeap) Push(x any)   { *h = append(*h, x.(Envelope)) }
func (h *envelopeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
