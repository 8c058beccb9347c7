package pipeline

import (
	"sync"

	"photo-gallery/internal/media"
)

// readyItem is a decoded image waiting for upload on the render thread.
type readyItem struct {
	path  string
	image *media.DecodedImage
	tier  Tier

	// full marks a full-resolution decode for GetBitmapAsync; its waiters are
	// called after upload, with nil if image is nil.
	full bool
}

// readyQueue is a FIFO with its own lock so workers pushing results never
// contend with the cache mutex. Pops are O(1).
type readyQueue struct {
	mu    sync.Mutex
	items []readyItem
	head  int
}

func (q *readyQueue) push(it readyItem) {
	q.mu.Lock()
	if q.head > 0 && q.head >= len(q.items)/2 {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	q.items = append(q.items, it)
	q.mu.Unlock()
}

// popN removes up to n items from the front.
func (q *readyQueue) popN(n int) []readyItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	avail := len(q.items) - q.head
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return nil
	}

	out := make([]readyItem, n)
	copy(out, q.items[q.head:q.head+n])
	clear(q.items[q.head : q.head+n])
	q.head += n
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return out
}

func (q *readyQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

func (q *readyQueue) clear() {
	q.mu.Lock()
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
	q.mu.Unlock()
}
