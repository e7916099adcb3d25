package main

import (
	"container/list"
	"sync"
)

// Channel is an unbounded, blocking FIFO queue for passing messages between
// goroutines. Put never blocks; Get blocks until an item is available.
type Channel[T any] struct {
	queue *list.List
	mutex sync.Mutex
	cond  *sync.Cond
}

// NewChannel creates an empty channel
func NewChannel[T any]() *Channel[T] {
	c := &Channel[T]{queue: list.New()}
	c.cond = sync.NewCond(&c.mutex)
	return c
}

// Put appends an item to the tail and wakes one waiting Get
func (c *Channel[T]) Put(item T) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.queue.PushBack(item)
	c.cond.Signal()
}

// Get removes and returns the head item, blocking while the queue is empty
func (c *Channel[T]) Get() T {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for c.queue.Len() == 0 {
		c.cond.Wait()
	}
	return c.queue.Remove(c.queue.Front()).(T)
}

// Len returns the number of queued items
func (c *Channel[T]) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.queue.Len()
}
