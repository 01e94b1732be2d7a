package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/plasmalab/simtrack/internal/errors"
	"github.com/plasmalab/simtrack/internal/server/middleware"
	"github.com/plasmalab/simtrack/pkg/reconcile"
	"github.com/plasmalab/simtrack/pkg/registry"
	"github.com/plasmalab/simtrack/pkg/runstore"
)

// RunView is the JSON projection of one registry row.
type RunView struct {
	ID          int64      `json:"id"`
	Status      string     `json:"status"`
	LogPath     *string    `json:"log_path,omitempty"`
	PID         *int       `json:"pid,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// RunListResponse is the GET /api/runs payload.
type RunListResponse struct {
	Runs  []RunView `json:"runs"`
	Count int       `json:"count"`
}

// RunsHandler serves the read-only run surface backed by a Registry.
type RunsHandler struct {
	reg *registry.Registry
}

func NewRunsHandler(reg *registry.Registry) *RunsHandler {
	return &RunsHandler{reg: reg}
}

func runView(rec *runstore.RunRecord) RunView {
	return RunView{
		ID:          rec.ID,
		Status:      string(rec.Status),
		LogPath:     rec.LogPath,
		PID:         rec.PID,
		SubmittedAt: rec.SubmittedAt,
		StartedAt:   rec.StartedAt,
		EndedAt:     rec.EndedAt,
	}
}

// List returns every registered run without reconciling any of them.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := RunListResponse{Runs: []RunView{}}

	if h.reg.TablesCreated(ctx) {
		result, err := h.reg.Query(ctx,
			fmt.Sprintf("SELECT id FROM %s ORDER BY id", h.reg.Table()))
		if err != nil {
			apperrors.WriteHTTPError(w, http.StatusInternalServerError,
				apperrors.CodeInternal, "list runs failed",
				middleware.GetRequestID(ctx))
			return
		}
		for _, row := range result.Rows {
			id, ok := row[0].(int64)
			if !ok {
				continue
			}
			rec, err := h.reg.GetRun(ctx, id)
			if err != nil {
				continue
			}
			resp.Runs = append(resp.Runs, runView(rec))
		}
	}
	resp.Count = len(resp.Runs)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Get reconciles one run and returns its record. The response reflects the
// freshly computed status even when persisting it failed.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		apperrors.WriteHTTPError(w, http.StatusBadRequest,
			apperrors.CodeBadRequest, "run id must be an integer", requestID)
		return
	}

	status, err := h.reg.Status(ctx, id)
	if err != nil {
		if errors.Is(err, runstore.ErrRunNotFound) {
			apperrors.WriteHTTPError(w, http.StatusNotFound,
				apperrors.CodeNotFound,
				fmt.Sprintf("run %d is not registered", id), requestID)
			return
		}
		var recErr *reconcile.ReconciliationError
		if !errors.As(err, &recErr) {
			apperrors.WriteHTTPError(w, http.StatusInternalServerError,
				apperrors.CodeInternal, "reconciliation failed", requestID)
			return
		}
		// Persistence failed but the computed status is still the best-known
		// truth; fall through and serve it.
	}

	rec, err := h.reg.GetRun(ctx, id)
	if err != nil {
		apperrors.WriteHTTPError(w, http.StatusInternalServerError,
			apperrors.CodeInternal, "load run failed", requestID)
		return
	}
	view := runView(rec)
	if status != "" {
		view.Status = string(status)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(view)
}
