package cache

import (
	"sort"

	"github.com/josephgoksu/PlanWing/internal/task"
)

// bucket holds every container of one sprint plus the id index that
// enforces single placement.
type bucket struct {
	containers map[task.ContainerID][]task.Task
	index      map[int64]task.ContainerID
}

func newBucket() *bucket {
	return &bucket{
		containers: make(map[task.ContainerID][]task.Task),
		index:      make(map[int64]task.ContainerID),
	}
}

// apply is the only routine that changes a bucket. It replaces the list of
// container (or deletes the container when present is false), re-indexes
// it, and evicts any incoming task id from the container it was in before.
// It returns every container it touched.
func (b *bucket) apply(container task.ContainerID, tasks []task.Task, present bool) []task.ContainerID {
	touched := []task.ContainerID{container}

	for _, t := range b.containers[container] {
		if b.index[t.ID] == container {
			delete(b.index, t.ID)
		}
	}

	if !present {
		delete(b.containers, container)
		return touched
	}

	// Drop duplicates inside the incoming list, first occurrence wins.
	seen := make(map[int64]bool, len(tasks))
	list := tasks[:0:0]
	for _, t := range tasks {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		list = append(list, t)
	}

	for _, t := range list {
		if other, ok := b.index[t.ID]; ok && other != container {
			b.containers[other] = removeAt(b.containers[other], indexOf(b.containers[other], t.ID))
			touched = append(touched, other)
		}
		b.index[t.ID] = container
	}
	b.containers[container] = list
	return touched
}

func (b *bucket) snapshot(key Key, container task.ContainerID) Snapshot {
	list, ok := b.containers[container]
	return Snapshot{key: key, container: container, tasks: cloneTasks(list), present: ok}
}

// order returns the backlog first, then weeks ascending by id.
func (b *bucket) order() []task.ContainerID {
	out := make([]task.ContainerID, 0, len(b.containers))
	for c := range b.containers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsBacklog() != out[j].IsBacklog() {
			return out[i].IsBacklog()
		}
		a, _ := out[i].WeekID()
		z, _ := out[j].WeekID()
		return a < z
	})
	return out
}

func indexOf(list []task.Task, id int64) int {
	for i, t := range list {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// removeAt returns a new slice without element i.
func removeAt(list []task.Task, i int) []task.Task {
	if i < 0 || i >= len(list) {
		return cloneTasks(list)
	}
	out := make([]task.Task, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}

func cloneTasks(list []task.Task) []task.Task {
	out := make([]task.Task, len(list))
	for i, t := range list {
		out[i] = t.Clone()
	}
	return out
}
