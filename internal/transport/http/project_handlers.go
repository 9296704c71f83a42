package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/coedit/coedit-server/internal/proto"
	"github.com/coedit/coedit-server/internal/store"
)

// ProjectHandlers provides HTTP handlers for project metadata endpoints.
// Presence reads come from the live_users cache the hub keeps updated.
type ProjectHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewProjectHandlers creates a new project handlers instance.
func NewProjectHandlers(st store.Store, logger *zerolog.Logger) *ProjectHandlers {
	return &ProjectHandlers{
		store: st,
		log:   logger,
	}
}

// ProjectNameResponse represents the project name response body.
type ProjectNameResponse struct {
	Name string `json:"project_name"`
}

// InitialTabResponse is one restored tab row.
type InitialTabResponse struct {
	FileID        string `json:"file_id"`
	FileName      string `json:"file_name"`
	ProjectID     string `json:"project_id"`
	Username      string `json:"username"`
	IsActiveInTab bool   `json:"is_active_in_tab"`
	IsLive        bool   `json:"is_live"`
	Timestamp     string `json:"live_users_timestamp"`
}

// GetName handles project name lookup.
// GET /api/project/:projectId/name
func (h *ProjectHandlers) GetName(c *gin.Context) {
	projectID := c.Param("projectId")

	name, err := h.store.GetProjectName(c.Request.Context(), projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "project not found"})
			return
		}
		h.log.Error().Err(err).Str("project_id", projectID).Msg("failed to get project name")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ProjectNameResponse{Name: name})
}

// GetInitialTabs handles the tab restore read on editor reload.
// GET /api/project/:projectId/initial-tabs
func (h *ProjectHandlers) GetInitialTabs(c *gin.Context) {
	projectID := c.Param("projectId")

	tabs, err := h.store.ListInitialTabs(c.Request.Context(), projectID)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", projectID).Msg("failed to list initial tabs")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]InitialTabResponse, 0, len(tabs))
	for _, tab := range tabs {
		response = append(response, InitialTabResponse{
			FileID:        tab.FileID,
			FileName:      tab.FileName,
			ProjectID:     tab.ProjectID,
			Username:      tab.Username,
			IsActiveInTab: tab.IsActiveInTab,
			IsLive:        tab.IsLive,
			Timestamp:     tab.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	c.JSON(http.StatusOK, response)
}

// GetLiveUsers handles the live user listing for a project.
// GET /api/project/:projectId/live-users
func (h *ProjectHandlers) GetLiveUsers(c *gin.Context) {
	projectID := c.Param("projectId")

	usernames, err := h.store.ListLiveUsers(c.Request.Context(), projectID)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", projectID).Msg("failed to list live users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]proto.LiveUserData, 0, len(usernames))
	for _, username := range usernames {
		response = append(response, proto.LiveUserData{Username: username})
	}

	c.JSON(http.StatusOK, response)
}
