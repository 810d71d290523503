package codec

// QueueCapacity is the size of both the inbound and outbound link buffers.
// It is also the largest frame length the parser accepts.
const QueueCapacity = 120

// Queue is a bounded byte FIFO backed by a fixed array. Unread bytes always
// start at index 0; consuming compacts the remainder to the front.
// The zero value is an empty queue.
type Queue struct {
	buf [QueueCapacity]byte
	n   int
}

// Len returns the number of buffered bytes.
func (q *Queue) Len() int { return q.n }

// Free returns how many more bytes fit.
func (q *Queue) Free() int { return QueueCapacity - q.n }

// Bytes returns the buffered bytes. The slice aliases the queue and is only
// valid until the next mutation.
func (q *Queue) Bytes() []byte { return q.buf[:q.n] }

// Tail returns the unused space after the buffered bytes, for reading into.
// Call Commit with the number of bytes written.
func (q *Queue) Tail() []byte { return q.buf[q.n:] }

// Commit marks n bytes of Tail as buffered.
func (q *Queue) Commit(n int) {
	if n < 0 || n > q.Free() {
		panic("codec: commit out of range")
	}
	q.n += n
}

// Append copies p into the queue. It reports false, leaving the queue
// untouched, when p does not fit.
func (q *Queue) Append(p []byte) bool {
	if len(p) > q.Free() {
		return false
	}
	q.n += copy(q.buf[q.n:], p)
	return true
}

// Consume drops the first n bytes and moves the rest to the front.
func (q *Queue) Consume(n int) {
	if n >= q.n {
		q.n = 0
		return
	}
	if n <= 0 {
		return
	}
	q.n = copy(q.buf[:], q.buf[n:q.n])
}

// Reset empties the queue.
func (q *Queue) Reset() { q.n = 0 }
