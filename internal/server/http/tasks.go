package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/and161185/syncdo/internal/errs"
	"github.com/and161185/syncdo/internal/service"
)

type taskHandler struct {
	svc service.TaskService
	log *zap.Logger
}

func (h *taskHandler) create(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromCtx(r.Context())
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	t, err := h.svc.Create(r.Context(), u, req.input())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

func (h *taskHandler) list(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromCtx(r.Context())
	tasks, err := h.svc.List(r.Context(), u)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	out := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *taskHandler) update(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromCtx(r.Context())
	id, err := taskID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	t, err := h.svc.Update(r.Context(), u, id, req.patch())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

func (h *taskHandler) delete(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromCtx(r.Context())
	id, err := taskID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if err := h.svc.Delete(r.Context(), u, id); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func taskID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad task id %q", errs.ErrValidation, raw)
	}
	return id, nil
}
