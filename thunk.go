package fiberloop

import "sync"

// taskCell is a one-shot carrier for a move-only, zero-argument callable,
// the Go translation of the source's Thunk Cell: a boxed Option<FnOnce>
// handed into a freshly constructed fiber on its first transfer. take
// returns the task and clears the cell; calling take twice is a programmer
// error (it returns ok=false the second time, mirroring the source's
// debug_assert on an already-empty cell).
type taskCell struct {
	mu    sync.Mutex
	task  func()
	taken bool
}

// newTaskCell boxes task for a single future take.
func newTaskCell(task func()) *taskCell {
	return &taskCell{task: task}
}

// take returns the boxed task exactly once; subsequent calls return
// ok=false.
func (c *taskCell) take() (task func(), ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.taken {
		return nil, false
	}
	c.taken = true
	task, c.task = c.task, nil
	return task, true
}
