// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

// BytePool hands out byte slices of one fixed size.
type BytePool struct {
	objs *SyncPool[*[]byte]
	size int
}

// NewBytePool returns a pool of size-byte buffers.
func NewBytePool(size int) *BytePool {
	if size <= 0 {
		size = 4096
	}
	return &BytePool{
		objs: NewSyncPool(
			func() *[]byte {
				b := make([]byte, size)
				return &b
			},
			func(b *[]byte) (*[]byte, bool) {
				if b == nil || cap(*b) < size {
					return nil, false
				}
				*b = (*b)[:size]
				return b, true
			},
		),
		size: size,
	}
}

// Size returns the length of every buffer handed out.
func (b *BytePool) Size() int { return b.size }

// GetBuffer returns a full-length buffer from the pool.
func (b *BytePool) GetBuffer() *[]byte {
	return b.objs.Get()
}

// PutBuffer returns a buffer to the pool. Buffers smaller than Size are
// dropped.
func (b *BytePool) PutBuffer(buf *[]byte) {
	b.objs.Put(buf)
}

// With runs fn with a pooled buffer and always returns the buffer afterwards,
// even when fn panics. fn must not retain the slice.
func (b *BytePool) With(fn func(buf []byte) error) error {
	buf := b.GetBuffer()
	defer b.PutBuffer(buf)
	return fn(*buf)
}
