package voice

import "sync"

// AudioBuffer is a FIFO of audio chunks. Client frames are pushed by the
// websocket read loop and drained by the transcription pump.
type AudioBuffer struct {
	mu     sync.Mutex
	chunks [][]byte
	bytes  int
}

// Push appends a copy of chunk. Empty chunks are ignored.
func (b *AudioBuffer) Push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)

	b.mu.Lock()
	b.chunks = append(b.chunks, c)
	b.bytes += len(c)
	b.mu.Unlock()
}

// Drain removes and returns every queued chunk, oldest first.
func (b *AudioBuffer) Drain() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.chunks) == 0 {
		return nil
	}
	out := b.chunks
	b.chunks = nil
	b.bytes = 0
	return out
}

// Clear discards everything queued.
func (b *AudioBuffer) Clear() {
	b.mu.Lock()
	b.chunks = nil
	b.bytes = 0
	b.mu.Unlock()
}

// Len returns the number of queued chunks.
func (b *AudioBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Size returns the number of queued bytes.
func (b *AudioBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}
