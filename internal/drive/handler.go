package drive

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/api/response"
)

type Handler struct {
	importer *Importer
}

func NewHandler(importer *Importer) *Handler {
	return &Handler{importer: importer}
}

func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/drive/files", h.ListFiles)
	group.POST("/drive/import", h.ImportFile)
}

func (h *Handler) ListFiles(c *gin.Context) {
	files, err := h.importer.List(c.Request.Context(), c.Query("folderId"), c.Query("path"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"files": files})
}

func (h *Handler) ImportFile(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Abort(c, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.importer.Import(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{
		"file":   result.File,
		"upload": result.Upload,
		"record": result.Record,
	})
}
