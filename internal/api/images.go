// internal/api/images.go
package api

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/autolabelhq/autolabel-go/internal/datastore"
	"github.com/autolabelhq/autolabel-go/internal/ingest"
)

// initImageRoutes registers all image-related API endpoints
func (c *Controller) initImageRoutes() {
	c.Group.PUT("/images/:id/label", c.UpdateImageLabel)
}

// ImageResponse represents an image record in the API response
type ImageResponse struct {
	ID         uint      `json:"id"`
	Filename   string    `json:"filename"`
	StorageKey string    `json:"storage_key"`
	Label      *string   `json:"label"`
	Confidence *float64  `json:"confidence"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

// UploadOutcomeResponse is the per-file result of a batch upload, in input
// file order.
type UploadOutcomeResponse struct {
	Filename    string             `json:"filename"`
	Status      string             `json:"status"` // "recorded" or "rejected"
	Error       string             `json:"error,omitempty"`
	Image       *ImageResponse     `json:"image,omitempty"`
	Predictions map[string]float64 `json:"predictions,omitempty"`
}

// UpdateLabelRequest represents the body of a label update request.
// IsVerified defaults to true when omitted.
type UpdateLabelRequest struct {
	Label      string `json:"label"`
	IsVerified *bool  `json:"is_verified"`
}

func imageResponse(rec *datastore.ImageRecord) *ImageResponse {
	return &ImageResponse{
		ID:         rec.ID,
		Filename:   rec.Filename,
		StorageKey: rec.StorageKey,
		Label:      rec.Label,
		Confidence: rec.Confidence,
		IsVerified: rec.IsVerified,
		CreatedAt:  rec.CreatedAt,
	}
}

// UploadImages handles multipart batch uploads for a project and runs ML
// pre-labeling on each accepted file.
func (c *Controller) UploadImages(ctx echo.Context) error {
	projectID, err := parseIDParam(ctx, "id")
	if err != nil {
		return c.handleError(ctx, err)
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid multipart form"})
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "No files provided"})
	}

	files := make([]ingest.File, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		src, err := header.Open()
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to read upload: " + header.Filename})
		}
		data, err := io.ReadAll(src)
		closeErr := src.Close()
		if err != nil || closeErr != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to read upload: " + header.Filename})
		}
		files = append(files, ingest.File{Name: header.Filename, Data: data})
	}

	outcomes, err := c.Pipeline.IngestBatch(ctx.Request().Context(), projectID, files)
	if err != nil {
		return c.handleError(ctx, err)
	}

	response := make([]UploadOutcomeResponse, 0, len(outcomes))
	recorded := 0
	for i := range outcomes {
		outcome := &outcomes[i]
		entry := UploadOutcomeResponse{Filename: outcome.Filename}
		if outcome.Rejected() {
			entry.Status = "rejected"
			entry.Error = outcome.Err.Error()
		} else {
			entry.Status = "recorded"
			entry.Image = imageResponse(outcome.Record)
			entry.Predictions = outcome.Predictions
			recorded++
		}
		response = append(response, entry)
	}

	c.apiLogger.Info("batch upload processed",
		"project_id", projectID,
		"files", len(files),
		"recorded", recorded,
		"rejected", len(files)-recorded)

	return ctx.JSON(http.StatusOK, map[string]any{"results": response})
}

// GetProjectImages handles GET requests for all images of a project.
func (c *Controller) GetProjectImages(ctx echo.Context) error {
	projectID, err := parseIDParam(ctx, "id")
	if err != nil {
		return c.handleError(ctx, err)
	}

	// Resolve the project first so unknown IDs return 404 rather than an
	// empty list.
	if _, err := c.cachedProject(projectID); err != nil {
		return c.handleError(ctx, err)
	}

	records, err := c.DS.GetProjectImages(projectID)
	if err != nil {
		return c.handleError(ctx, err)
	}

	response := make([]*ImageResponse, 0, len(records))
	for i := range records {
		response = append(response, imageResponse(&records[i]))
	}
	return ctx.JSON(http.StatusOK, map[string]any{"images": response})
}

// UpdateImageLabel handles PUT requests applying a human label correction.
func (c *Controller) UpdateImageLabel(ctx echo.Context) error {
	imageID, err := parseIDParam(ctx, "id")
	if err != nil {
		return c.handleError(ctx, err)
	}

	req := &UpdateLabelRequest{}
	if err := ctx.Bind(req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	verified := true
	if req.IsVerified != nil {
		verified = *req.IsVerified
	}

	if err := c.Workflow.SetLabel(imageID, req.Label, verified); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]bool{"success": true})
}

// ExportProject handles GET requests producing a labeling snapshot.
func (c *Controller) ExportProject(ctx echo.Context) error {
	projectID, err := parseIDParam(ctx, "id")
	if err != nil {
		return c.handleError(ctx, err)
	}

	snapshot, err := c.Aggregator.Export(projectID)
	if err != nil {
		return c.handleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, snapshot)
}

// ServeImage streams stored image bytes by storage key.
func (c *Controller) ServeImage(ctx echo.Context) error {
	key := ctx.Param("key")
	data, err := c.Blobs.Load(key)
	if err != nil {
		return c.handleError(ctx, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return ctx.Blob(http.StatusOK, contentType, data)
}
