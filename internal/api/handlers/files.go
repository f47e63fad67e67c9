package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/api/response"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/service"
)

// FileLister is the read side behind GET /files.
type FileLister interface {
	List(ctx context.Context) ([]domain.FileView, error)
}

// FileLifecycle is the write side of the metadata store.
type FileLifecycle interface {
	Create(ctx context.Context, in domain.NewFileRecord) (*domain.FileRecord, error)
	Get(ctx context.Context, id string) (*domain.FileRecord, error)
	UpdateStatus(ctx context.Context, id, rawStatus string, expectedVersion *int64) (*domain.FileRecord, error)
	Delete(ctx context.Context, id string, expectedVersion *int64) (*service.DeleteResult, error)
}

type FileHandler struct {
	query FileLister
	files FileLifecycle
}

func NewFileHandler(query FileLister, files FileLifecycle) *FileHandler {
	return &FileHandler{query: query, files: files}
}

func (h *FileHandler) RegisterRoutes(group *gin.RouterGroup) {
	files := group.Group("/files")
	{
		files.GET("", h.List)
		files.POST("", h.Create)
		files.GET("/:id", h.Get)
		files.PATCH("/:id", h.UpdateStatus)
		files.DELETE("/:id", h.Delete)
	}
}

// List returns every record in display shape.
func (h *FileHandler) List(c *gin.Context) {
	views, err := h.query.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"files": views})
}

func (h *FileHandler) Create(c *gin.Context) {
	var in domain.NewFileRecord
	if err := c.ShouldBindJSON(&in); err != nil {
		response.Abort(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rec, err := h.files.Create(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusCreated, gin.H{"file": rec})
}

func (h *FileHandler) Get(c *gin.Context) {
	rec, err := h.files.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"file": rec})
}

type updateStatusRequest struct {
	Status          string `json:"status"`
	ExpectedVersion *int64 `json:"expectedVersion"`
}

func (h *FileHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Abort(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rec, err := h.files.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.ExpectedVersion)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"file": rec})
}

// Delete removes a record; ?version=N makes the delete conditional.
func (h *FileHandler) Delete(c *gin.Context) {
	var expected *int64
	if raw := c.Query("version"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 1 {
			response.Error(c, domain.NewValidationError("version", "must be a positive integer"))
			return
		}
		expected = &v
	}

	id := c.Param("id")
	result, err := h.files.Delete(c.Request.Context(), id, expected)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"id":            id,
		"objectDeleted": result.ObjectDeleted,
	})
}
