package screenctl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hazyhaar/tvremote/idgen"
)

// TaskStatus is the lifecycle state of a background task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Done reports a terminal status.
func (s TaskStatus) Done() bool { return s == TaskSucceeded || s == TaskFailed }

// Task is an asynchronous control operation the caller can poll.
type Task struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"`
	Status   TaskStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
	Result   any        `json:"result,omitempty"`
	Created  time.Time  `json:"created"`
	Finished time.Time  `json:"finished,omitzero"`
}

// taskRegistry keeps the most recent tasks. Finished tasks are evicted
// oldest first once limit is exceeded; running ones are never dropped.
type taskRegistry struct {
	limit int
	newID idgen.Generator

	mu    sync.Mutex
	tasks map[string]*Task
	order []string
}

func newTaskRegistry(limit int, gen idgen.Generator) *taskRegistry {
	if limit <= 0 {
		limit = 100
	}
	if gen == nil {
		gen = idgen.Task
	}
	return &taskRegistry{limit: limit, newID: gen, tasks: make(map[string]*Task)}
}

func (r *taskRegistry) create(kind string) Task {
	t := &Task{ID: r.newID(), Kind: kind, Status: TaskPending, Created: time.Now()}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ID] = t
	r.order = append(r.order, t.ID)
	r.evict()
	return *t
}

func (r *taskRegistry) evict() {
	for i := 0; len(r.order) > r.limit && i < len(r.order); {
		id := r.order[i]
		if t := r.tasks[id]; t != nil && !t.Status.Done() {
			i++
			continue
		}
		delete(r.tasks, id)
		r.order = append(r.order[:i], r.order[i+1:]...)
	}
}

func (r *taskRegistry) update(id string, fn func(*Task)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		fn(t)
	}
}

func (r *taskRegistry) get(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

func (r *taskRegistry) list() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Task, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, *r.tasks[r.order[i]])
	}
	return out
}

// spawn runs fn in the background on a context bounded by the controller
// lifetime, not by the caller. Failures are always logged.
func (c *Controller) spawn(kind string, fn func(ctx context.Context) (any, error)) (Task, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Task{}, ErrClosed
	}
	t := c.tasks.create(kind)
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.tasks.update(t.ID, func(t *Task) { t.Status = TaskRunning })

		res, err := runTask(c.life, fn)
		c.tasks.update(t.ID, func(t *Task) {
			t.Finished = time.Now()
			t.Result = res
			if err != nil {
				t.Status, t.Error = TaskFailed, err.Error()
			} else {
				t.Status = TaskSucceeded
			}
		})
		if err != nil {
			c.log.Error("screenctl: task failed", "task_id", t.ID, "kind", kind, "error", err)
			return
		}
		c.log.Info("screenctl: task done", "task_id", t.ID, "kind", kind)
	}()
	return t, nil
}

func runTask(ctx context.Context, fn func(context.Context) (any, error)) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Task returns the state of a background task.
func (c *Controller) Task(id string) (Task, error) {
	t, ok := c.tasks.get(id)
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t, nil
}

// Tasks lists the kept tasks, newest first.
func (c *Controller) Tasks() []Task {
	return c.tasks.list()
}
