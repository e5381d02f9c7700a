package parser

// BufferQueue is an ordered sequence of text chunks waiting to be
// tokenized. The queue never splits a chunk itself; partial consumption
// happens inside tokenizer feeding, which returns any remainder through
// PushFront.
type BufferQueue struct {
	chunks []string
}

func NewBufferQueue() *BufferQueue {
	return &BufferQueue{}
}

// PushBack appends a chunk to the end of the queue.
func (q *BufferQueue) PushBack(chunk string) {
	if chunk == "" {
		return
	}
	q.chunks = append(q.chunks, chunk)
}

// PushFront returns a chunk to the head of the queue, ahead of all
// buffered input.
func (q *BufferQueue) PushFront(chunk string) {
	if chunk == "" {
		return
	}
	q.chunks = append([]string{chunk}, q.chunks...)
}

// PopFront removes and returns the first chunk.
func (q *BufferQueue) PopFront() (string, bool) {
	if len(q.chunks) == 0 {
		return "", false
	}
	chunk := q.chunks[0]
	q.chunks = q.chunks[1:]
	return chunk, true
}

func (q *BufferQueue) IsEmpty() bool {
	return len(q.chunks) == 0
}
