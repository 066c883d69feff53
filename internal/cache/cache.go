// Package cache holds the in-memory task store the planner renders from.
//
// Tasks are grouped per (project, sprint) into one bucket; the backlog and
// every week are containers inside that bucket. Per-container reads and the
// aggregate sprint list are both projections of the same bucket, and every
// change goes through bucket.apply, so a task id can only ever be indexed in
// one container of a sprint.
package cache

import (
	"fmt"
	"sort"
	"sync"

	"github.com/josephgoksu/PlanWing/internal/task"
)

// Key scopes a bucket to one sprint of one project.
type Key struct {
	ProjectID int64
	SprintID  int64
}

func (k Key) String() string {
	return fmt.Sprintf("project:%d/sprint:%d", k.ProjectID, k.SprintID)
}

// Snapshot is the state of one container before a mutation.
// Restoring it puts the container back verbatim.
type Snapshot struct {
	key       Key
	container task.ContainerID
	tasks     []task.Task
	present   bool
}

// Key returns the bucket the snapshot belongs to.
func (s Snapshot) Key() Key { return s.key }

// Container returns the snapshotted container.
func (s Snapshot) Container() task.ContainerID { return s.container }

// Tasks returns a copy of the snapshotted list.
func (s Snapshot) Tasks() []task.Task { return cloneTasks(s.tasks) }

// Change describes which containers of a bucket were touched.
type Change struct {
	Key        Key
	Containers []task.ContainerID
}

// Listener is notified after every change, outside the cache lock.
type Listener func(Change)

// Cache is the keyed task store. The zero value is not usable; call New.
type Cache struct {
	mu        sync.RWMutex
	buckets   map[Key]*bucket
	listeners map[int]Listener
	nextID    int
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		buckets:   make(map[Key]*bucket),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers fn and returns a function that removes it.
func (c *Cache) Subscribe(fn Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Read returns the ordered tasks of a container. Never fails; an unknown
// container reads as empty.
func (c *Cache) Read(key Key, container task.ContainerID) []task.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.buckets[key]
	if !ok {
		return []task.Task{}
	}
	return cloneTasks(b.containers[container])
}

// Has reports whether the container has ever been written for key.
func (c *Cache) Has(key Key, container task.ContainerID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.buckets[key]
	if !ok {
		return false
	}
	_, ok = b.containers[container]
	return ok
}

// Write replaces a container after a server round trip. Tasks present in
// other containers of the same sprint are evicted from there.
func (c *Cache) Write(key Key, container task.ContainerID, tasks []task.Task) {
	c.mu.Lock()
	touched := c.bucket(key).apply(container, cloneTasks(tasks), true)
	change := c.change(key, touched)
	c.mu.Unlock()
	c.notify(change)
}

// InsertAtFront adds t as the first task of the container.
// The id must not exist anywhere in the sprint.
func (c *Cache) InsertAtFront(key Key, container task.ContainerID, t task.Task) (Snapshot, error) {
	c.mu.Lock()
	b := c.bucket(key)
	if at, ok := b.index[t.ID]; ok {
		c.mu.Unlock()
		return Snapshot{}, task.NewError(task.CodeConflict, "cache insert", fmt.Sprintf("task %d already in %s", t.ID, at), nil)
	}
	snap := b.snapshot(key, container)
	list := append([]task.Task{t.Clone()}, b.containers[container]...)
	touched := b.apply(container, list, true)
	change := c.change(key, touched)
	c.mu.Unlock()
	c.notify(change)
	return snap, nil
}

// RemoveByID drops the task from the container.
func (c *Cache) RemoveByID(key Key, container task.ContainerID, id int64) (Snapshot, error) {
	c.mu.Lock()
	b := c.bucket(key)
	pos := indexOf(b.containers[container], id)
	if pos < 0 {
		c.mu.Unlock()
		return Snapshot{}, notInContainer("cache remove", id, container)
	}
	snap := b.snapshot(key, container)
	list := removeAt(b.containers[container], pos)
	touched := b.apply(container, list, true)
	change := c.change(key, touched)
	c.mu.Unlock()
	c.notify(change)
	return snap, nil
}

// ReplaceByID swaps the task oldID for t at the same position.
func (c *Cache) ReplaceByID(key Key, container task.ContainerID, oldID int64, t task.Task) (Snapshot, error) {
	c.mu.Lock()
	b := c.bucket(key)
	list := b.containers[container]
	pos := indexOf(list, oldID)
	if pos < 0 {
		c.mu.Unlock()
		return Snapshot{}, notInContainer("cache replace", oldID, container)
	}
	if t.ID != oldID {
		if at, ok := b.index[t.ID]; ok {
			c.mu.Unlock()
			return Snapshot{}, task.NewError(task.CodeConflict, "cache replace", fmt.Sprintf("task %d already in %s", t.ID, at), nil)
		}
	}
	snap := b.snapshot(key, container)
	next := cloneTasks(list)
	next[pos] = t.Clone()
	touched := b.apply(container, next, true)
	change := c.change(key, touched)
	c.mu.Unlock()
	c.notify(change)
	return snap, nil
}

// Move removes the task from one container and inserts moved at the front
// of another in a single critical section. Both snapshots are returned and
// must be restored together.
func (c *Cache) Move(key Key, id int64, from, to task.ContainerID, moved task.Task) (src, dst Snapshot, err error) {
	if from == to {
		return Snapshot{}, Snapshot{}, task.NewError(task.CodeInternal, "cache move", "source and destination are the same container", nil)
	}
	c.mu.Lock()
	b := c.bucket(key)
	pos := indexOf(b.containers[from], id)
	if pos < 0 {
		c.mu.Unlock()
		return Snapshot{}, Snapshot{}, notInContainer("cache move", id, from)
	}
	src = b.snapshot(key, from)
	dst = b.snapshot(key, to)
	touched := b.apply(from, removeAt(b.containers[from], pos), true)
	touched = append(touched, b.apply(to, append([]task.Task{moved.Clone()}, b.containers[to]...), true)...)
	change := c.change(key, touched)
	c.mu.Unlock()
	c.notify(change)
	return src, dst, nil
}

// Commit reconciles a mutation with the authoritative server task by full
// replace-by-id. The entry oldID is replaced in place when t stays in the
// same container, otherwise it is removed and t goes to the front of the
// container the server reports. If oldID is gone (a refresh overwrote it),
// t is placed as if new unless its id is already cached.
func (c *Cache) Commit(key Key, oldID int64, t task.Task) []Snapshot {
	c.mu.Lock()
	b := c.bucket(key)
	dest := t.Container()
	var snaps []Snapshot
	var touched []task.ContainerID

	from, found := b.index[oldID]
	if !found && t.ID != oldID {
		from, found = b.index[t.ID]
		oldID = t.ID
	}

	switch {
	case found && from == dest:
		snaps = append(snaps, b.snapshot(key, dest))
		next := cloneTasks(b.containers[dest])
		next[indexOf(next, oldID)] = t.Clone()
		touched = b.apply(dest, next, true)
	case found:
		snaps = append(snaps, b.snapshot(key, from), b.snapshot(key, dest))
		touched = b.apply(from, removeAt(b.containers[from], indexOf(b.containers[from], oldID)), true)
		touched = append(touched, b.apply(dest, append([]task.Task{t.Clone()}, b.containers[dest]...), true)...)
	default:
		snaps = append(snaps, b.snapshot(key, dest))
		touched = b.apply(dest, append([]task.Task{t.Clone()}, b.containers[dest]...), true)
	}

	change := c.change(key, touched)
	c.mu.Unlock()
	c.notify(change)
	return snaps
}

// Restore puts every snapshot back in one critical section. A task that
// reappears through a restore is evicted from any other container, so
// the restored view wins over concurrent changes to the same tasks.
func (c *Cache) Restore(snaps ...Snapshot) {
	if len(snaps) == 0 {
		return
	}
	c.mu.Lock()
	changes := make(map[Key][]task.ContainerID)
	for _, s := range snaps {
		b := c.bucket(s.key)
		changes[s.key] = append(changes[s.key], b.apply(s.container, cloneTasks(s.tasks), s.present)...)
	}
	var out []Change
	for key, touched := range changes {
		out = append(out, c.change(key, touched))
	}
	c.mu.Unlock()
	for _, ch := range out {
		c.notify(ch)
	}
}

// Locate finds which container holds the task.
func (c *Cache) Locate(key Key, id int64) (task.ContainerID, task.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.buckets[key]
	if !ok {
		return task.ContainerID{}, task.Task{}, false
	}
	at, ok := b.index[id]
	if !ok {
		return task.ContainerID{}, task.Task{}, false
	}
	list := b.containers[at]
	return at, list[indexOf(list, id)].Clone(), true
}

// Containers lists the containers of a bucket, backlog first then weeks by id.
func (c *Cache) Containers(key Key) []task.ContainerID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.buckets[key]
	if !ok {
		return nil
	}
	return b.order()
}

// Sprint returns the aggregate task list of the sprint in container order.
func (c *Cache) Sprint(key Key) []task.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.buckets[key]
	if !ok {
		return []task.Task{}
	}
	out := make([]task.Task, 0, len(b.index))
	for _, cid := range b.order() {
		out = append(out, cloneTasks(b.containers[cid])...)
	}
	return out
}

// Drop forgets a bucket entirely.
func (c *Cache) Drop(key Key) {
	c.mu.Lock()
	b, ok := c.buckets[key]
	var change Change
	if ok {
		change = c.change(key, b.order())
		delete(c.buckets, key)
	}
	c.mu.Unlock()
	if ok {
		c.notify(change)
	}
}

// Keys lists the cached buckets.
func (c *Cache) Keys() []Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]Key, 0, len(c.buckets))
	for k := range c.buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ProjectID != keys[j].ProjectID {
			return keys[i].ProjectID < keys[j].ProjectID
		}
		return keys[i].SprintID < keys[j].SprintID
	})
	return keys
}

// bucket must be called with c.mu held for writing.
func (c *Cache) bucket(key Key) *bucket {
	b, ok := c.buckets[key]
	if !ok {
		b = newBucket()
		c.buckets[key] = b
	}
	return b
}

func (c *Cache) change(key Key, touched []task.ContainerID) Change {
	seen := make(map[task.ContainerID]bool, len(touched))
	out := make([]task.ContainerID, 0, len(touched))
	for _, t := range touched {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return Change{Key: key, Containers: out}
}

func (c *Cache) notify(change Change) {
	c.mu.RLock()
	ls := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	c.mu.RUnlock()
	for _, l := range ls {
		l(change)
	}
}

func notInContainer(op string, id int64, container task.ContainerID) error {
	return task.NewError(task.CodeNotFound, op, fmt.Sprintf("task %d not in %s", id, container), nil)
}
