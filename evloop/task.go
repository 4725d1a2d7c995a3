// Package evloop implements the single-threaded cooperative scheduler: a
// same-thread task FIFO, a cross-thread submission queue guarded by a
// flag+waker, a microtask pump hook, and pending-op idle accounting. A
// single owner goroutine drains scheduled work, with atomic flags
// coordinating producers.
package evloop

// Task is a closure that runs with exclusive access to the owner thread.
// Tasks run only on the owner thread: a Task
// handed across goroutines via SpawnCrossThread is only ever *executed* by
// the loop's single Run goroutine, never concurrently with another Task.
type Task func()
