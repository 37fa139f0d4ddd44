// Copyright 2025-2026 The ai-token-exo-bridge Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ring provides a fixed-capacity ring buffer that overwrites its
// oldest element once full.
package ring

// Buffer is a fixed-capacity FIFO. It is not safe for concurrent use; owners
// guard it with their own lock.
type Buffer[T any] struct {
	items []T
	start int
	size  int
}

// New returns an empty buffer holding at most capacity items. It panics if
// capacity is not positive.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends item, evicting the oldest item if the buffer is full. It
// reports whether an item was evicted.
func (b *Buffer[T]) Push(item T) bool {
	capacity := len(b.items)
	if b.size < capacity {
		b.items[(b.start+b.size)%capacity] = item
		b.size++
		return false
	}
	b.items[b.start] = item
	b.start = (b.start + 1) % capacity
	return true
}

// Len returns the number of buffered items.
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap returns the capacity given to New.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// At returns the i-th oldest item. It panics if i is out of range.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= b.size {
		panic("ring: index out of range")
	}
	return b.items[(b.start+i)%len(b.items)]
}

// Last returns the newest item and false if the buffer is empty.
func (b *Buffer[T]) Last() (T, bool) {
	if b.size == 0 {
		var zero T
		return zero, false
	}
	return b.At(b.size - 1), true
}

// Slice copies the contents, oldest first, into a new slice.
func (b *Buffer[T]) Slice() []T {
	out := make([]T, b.size)
	for i := range out {
		out[i] = b.At(i)
	}
	return out
}

// Clone returns an independent copy of the buffer.
func (b *Buffer[T]) Clone() *Buffer[T] {
	items := make([]T, len(b.items))
	copy(items, b.items)
	return &Buffer[T]{items: items, start: b.start, size: b.size}
}
