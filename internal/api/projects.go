// internal/api/projects.go
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/autolabelhq/autolabel-go/internal/datastore"
	"github.com/autolabelhq/autolabel-go/internal/errors"
)

// initProjectRoutes registers all project-related API endpoints
func (c *Controller) initProjectRoutes() {
	c.Group.GET("/projects", c.GetProjects)
	c.Group.POST("/projects", c.CreateProject)
	c.Group.POST("/projects/:id/upload", c.UploadImages)
	c.Group.GET("/projects/:id/images", c.GetProjectImages)
	c.Group.GET("/projects/:id/export", c.ExportProject)
}

// ProjectResponse represents a project in the API response
type ProjectResponse struct {
	ID        uint                `json:"id"`
	Name      string              `json:"name"`
	Labels    datastore.LabelList `json:"labels"`
	CreatedAt time.Time           `json:"created_at"`
}

// CreateProjectRequest represents the body of a project creation request
type CreateProjectRequest struct {
	Name   string   `json:"name"`
	Labels []string `json:"labels"`
}

func projectResponse(p *datastore.Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		Labels:    p.Labels,
		CreatedAt: p.CreatedAt,
	}
}

// parseIDParam parses a numeric path parameter.
func parseIDParam(ctx echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		return 0, errors.Newf("invalid %s %q", name, ctx.Param(name)).
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	return uint(id), nil
}

// GetProjects handles GET requests for the project list, most recent first.
func (c *Controller) GetProjects(ctx echo.Context) error {
	projects, err := c.DS.GetAllProjects()
	if err != nil {
		return c.handleError(ctx, err)
	}

	response := make([]ProjectResponse, 0, len(projects))
	for i := range projects {
		response = append(response, projectResponse(&projects[i]))
	}
	return ctx.JSON(http.StatusOK, map[string]any{"projects": response})
}

// CreateProject handles POST requests creating a new project.
func (c *Controller) CreateProject(ctx echo.Context) error {
	req := &CreateProjectRequest{}
	if err := ctx.Bind(req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	project := datastore.Project{
		Name:   req.Name,
		Labels: req.Labels,
	}
	if err := c.DS.CreateProject(&project); err != nil {
		return c.handleError(ctx, err)
	}

	c.apiLogger.Info("project created",
		"project_id", project.ID,
		"name", project.Name,
		"label_count", len(project.Labels))

	return ctx.JSON(http.StatusCreated, projectResponse(&project))
}
