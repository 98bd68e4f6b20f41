// internal/handler/project_handler.go
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
	"github.com/Doc-Scripter/HelpingHand/internal/usecase"
)

type ProjectReader interface {
	ListActive(ctx context.Context) ([]domain.Project, error)
	Get(ctx context.Context, id string) (*usecase.ProjectDetail, error)
}

type ProjectHandler struct {
	projects ProjectReader
	logger   *zap.Logger
}

func NewProjectHandler(projects ProjectReader, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		logger:   logger.With(zap.String("component", "project_handler")),
	}
}

func (h *ProjectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.ListActive(r.Context())
	if err != nil {
		h.logger.Error("failed to list projects", zap.Error(err))
		sendError(w, h.logger, http.StatusInternalServerError, "failed to list projects", nil, nil)
		return
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	sendSuccess(w, h.logger, http.StatusOK, "projects retrieved", projects)
}

func (h *ProjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	detail, err := h.projects.Get(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrProjectNotFound):
		sendError(w, h.logger, http.StatusNotFound, "project not found", nil, nil)
		return
	case err != nil:
		h.logger.Error("failed to load project", zap.String("project_id", id), zap.Error(err))
		sendError(w, h.logger, http.StatusInternalServerError, "failed to load project", nil, nil)
		return
	}

	sendSuccess(w, h.logger, http.StatusOK, "project retrieved", map[string]interface{}{
		"project":             detail.Project,
		"accepting_donations": detail.AcceptingDonations,
		"recent_donations":    detail.RecentDonations,
	})
}
