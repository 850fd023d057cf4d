package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tickrun/internal/task"
	logx "tickrun/pkg/logx"
)

// fileStore keeps the whole task list in one JSON array file.
//
// The list is loaded once on open and cached; every mutation rewrites the file
// through a temp file + rename so readers never observe a torn write.
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	tasks  []task.Task
	closed bool
}

// OpenFile opens (creating if needed) a JSON task file at path.
func OpenFile(path string, log logx.Logger) (Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.writeLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}
	s.tasks = s.load()
	return s, nil
}

// load never fails: a missing, unreadable or malformed file yields an empty list.
func (s *fileStore) load() []task.Task {
	b, err := os.ReadFile(s.path)
	if err != nil {
		s.log.Warn("task file unreadable, starting empty", logx.String("path", s.path), logx.Err(err))
		return nil
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		s.log.Warn("task file corrupt, starting empty", logx.String("path", s.path), logx.Err(err))
		return nil
	}
	out := make([]task.Task, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for i, raw := range raws {
		var t task.Task
		if err := json.Unmarshal(raw, &t); err != nil {
			s.log.Warn("skipping unreadable task record", logx.Int("index", i), logx.Err(err))
			continue
		}
		if t.ID == "" {
			s.log.Warn("skipping task record without id", logx.Int("index", i))
			continue
		}
		if _, dup := seen[t.ID]; dup {
			s.log.Warn("skipping duplicate task record", logx.String("id", t.ID))
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

func (s *fileStore) writeLocked() error {
	recs := make([]task.Record, 0, len(s.tasks))
	for _, t := range s.tasks {
		recs = append(recs, t.ToRecord())
	}
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) indexLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *fileStore) LoadAll(ctx context.Context) ([]task.Task, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (s *fileStore) SaveAll(ctx context.Context, tasks []task.Task) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	prev := s.tasks
	s.tasks = make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		s.tasks = append(s.tasks, t.Clone())
	}
	if err := s.writeLocked(); err != nil {
		s.tasks = prev
		return err
	}
	return nil
}

func (s *fileStore) Add(ctx context.Context, t task.Task) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.indexLocked(t.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrExists, t.ID)
	}
	s.tasks = append(s.tasks, t.Clone())
	if err := s.writeLocked(); err != nil {
		s.tasks = s.tasks[:len(s.tasks)-1]
		return err
	}
	return nil
}

func (s *fileStore) Update(ctx context.Context, t task.Task) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	i := s.indexLocked(t.ID)
	if i < 0 {
		return false, nil
	}
	prev := s.tasks[i]
	s.tasks[i] = t.Clone()
	if err := s.writeLocked(); err != nil {
		s.tasks[i] = prev
		return false, err
	}
	return true, nil
}

func (s *fileStore) Delete(ctx context.Context, id string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	i := s.indexLocked(id)
	if i < 0 {
		return false, nil
	}
	prev := s.tasks
	next := make([]task.Task, 0, len(prev)-1)
	next = append(next, prev[:i]...)
	next = append(next, prev[i+1:]...)
	s.tasks = next
	if err := s.writeLocked(); err != nil {
		s.tasks = prev
		return false, err
	}
	return true, nil
}

func (s *fileStore) Get(ctx context.Context, id string) (task.Task, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return task.Task{}, false, ErrClosed
	}
	i := s.indexLocked(id)
	if i < 0 {
		return task.Task{}, false, nil
	}
	return s.tasks[i].Clone(), true, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
