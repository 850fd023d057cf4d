// Package registry holds the live trigger set: what is currently scheduled, and when.
package registry

import (
	"sort"
	"sync"
	"time"
)

// NoWeekday marks the main (non weekly) trigger of a task.
const NoWeekday = -1

// Key identifies a trigger. Weekly tasks own one trigger per configured weekday
// (0 = Monday ... 6 = Sunday); every other kind owns a single NoWeekday trigger.
type Key struct {
	TaskID  string `json:"task_id"`
	Weekday int    `json:"weekday"`
}

func (k Key) less(o Key) bool {
	if k.TaskID != o.TaskID {
		return k.TaskID < o.TaskID
	}
	return k.Weekday < o.Weekday
}

type Trigger struct {
	Key Key       `json:"key"`
	At  time.Time `json:"at"`
}

// Registry is safe for concurrent use. Callers that need registry and storage
// to move together hold their own lock around both.
type Registry struct {
	mu     sync.Mutex
	byTask map[string]map[int]time.Time
}

func New() *Registry {
	return &Registry{byTask: map[string]map[int]time.Time{}}
}

// Register replaces every trigger of taskID with triggers. Triggers whose
// TaskID differs from taskID are ignored. With no triggers it behaves like Cancel.
func (r *Registry) Register(taskID string, triggers ...Trigger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byTask, taskID)
	var subs map[int]time.Time
	for _, tr := range triggers {
		if tr.Key.TaskID != taskID || tr.At.IsZero() {
			continue
		}
		if subs == nil {
			subs = make(map[int]time.Time, len(triggers))
		}
		subs[tr.Key.Weekday] = tr.At
	}
	if subs != nil {
		r.byTask[taskID] = subs
	}
}

// Cancel removes every trigger of taskID and reports whether any existed.
func (r *Registry) Cancel(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byTask[taskID]
	delete(r.byTask, taskID)
	return ok
}

// Due returns triggers with At <= now ordered by At then key. Nothing is removed.
func (r *Registry) Due(now time.Time) []Trigger {
	r.mu.Lock()
	var out []Trigger
	for id, subs := range r.byTask {
		for wd, at := range subs {
			if !at.After(now) {
				out = append(out, Trigger{Key: Key{TaskID: id, Weekday: wd}, At: at})
			}
		}
	}
	r.mu.Unlock()
	sortTriggers(out)
	return out
}

// Next returns the earliest trigger instant of taskID.
func (r *Registry) Next(taskID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best time.Time
	for _, at := range r.byTask[taskID] {
		if best.IsZero() || at.Before(best) {
			best = at
		}
	}
	return best, !best.IsZero()
}

// Snapshot returns a copy of all triggers, ordered like Due.
func (r *Registry) Snapshot() []Trigger {
	r.mu.Lock()
	out := make([]Trigger, 0, len(r.byTask))
	for id, subs := range r.byTask {
		for wd, at := range subs {
			out = append(out, Trigger{Key: Key{TaskID: id, Weekday: wd}, At: at})
		}
	}
	r.mu.Unlock()
	sortTriggers(out)
	return out
}

// Len is the number of triggers (not tasks).
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, subs := range r.byTask {
		n += len(subs)
	}
	return n
}

func (r *Registry) Clear() {
	r.mu.Lock()
	r.byTask = map[string]map[int]time.Time{}
	r.mu.Unlock()
}

func sortTriggers(ts []Trigger) {
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].At.Equal(ts[j].At) {
			return ts[i].At.Before(ts[j].At)
		}
		return ts[i].Key.less(ts[j].Key)
	})
}
