package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tickrun/internal/eventbus"
	"tickrun/internal/task"
	"tickrun/internal/task/recurrence"
	"tickrun/internal/task/scheduler"
)

type healthResponse struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
}

type statusResponse struct {
	Scheduler scheduler.Snapshot `json:"scheduler"`
	Events    []eventbus.Event   `json:"events"`
}

type previewResponse struct {
	ID   string   `json:"id"`
	Rule string   `json:"rule"`
	Runs []string `json:"runs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Running: s.svc.Snapshot().Running})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Scheduler: s.svc.Snapshot(), Events: []eventbus.Event{}}
	if s.events != nil {
		resp.Events = s.events.Recent()
	}
	writeData(w, http.StatusOK, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeData(w, http.StatusOK, tasks)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	t, err := s.decodeTask(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.svc.Add(r.Context(), t)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/tasks/"+created.ID)
	writeData(w, http.StatusCreated, created)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, t)
}

// handleUpdate replaces a task. The path ID wins; a body ID that disagrees
// is rejected.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.decodeTask(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if t.ID != "" && t.ID != id {
		s.fail(w, r, badRequest(CodeInvalidTask, "body id does not match path id"))
		return
	}
	t.ID = id
	updated, err := s.svc.Update(r.Context(), t)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggle(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := s.svc.Toggle(r.Context(), chi.URLParam(r, "id"), enabled)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeData(w, http.StatusOK, t)
	}
}

// handlePreview lists the next ?n= run times, disabled tasks included.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	n := defaultPreview
	if raw := strings.TrimSpace(r.URL.Query().Get("n")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxPreview {
			s.fail(w, r, badRequest(CodeInvalidRequest, "n must be between 1 and "+strconv.Itoa(maxPreview)))
			return
		}
		n = v
	}
	t, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	runs := recurrence.Preview(t, s.now(), n)
	resp := previewResponse{ID: t.ID, Rule: t.Describe(), Runs: make([]string, 0, len(runs))}
	for _, at := range runs {
		resp.Runs = append(resp.Runs, at.Format(time.RFC3339))
	}
	writeData(w, http.StatusOK, resp)
}

func (s *Server) decodeTask(w http.ResponseWriter, r *http.Request) (task.Task, error) {
	var rec task.Record
	if err := decodeJSON(w, r, &rec); err != nil {
		return task.Task{}, err
	}
	return rec.Task()
}
