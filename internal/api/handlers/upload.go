package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/api/response"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/service"
)

// multipart framing headroom on top of the payload limit
const formOverhead = 1 << 20

type Uploader interface {
	Upload(ctx context.Context, req service.UploadRequest) (*service.UploadResult, error)
	MaxBytes() int64
}

type UploadHandler struct {
	uploads Uploader
}

func NewUploadHandler(uploads Uploader) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

func (h *UploadHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/upload", h.Upload)
}

// Upload stores one multipart file at bucket/path. It writes no metadata.
func (h *UploadHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploads.MaxBytes()+formOverhead)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Abort(c, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
			return
		}
		response.Abort(c, http.StatusBadRequest, "file is required")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		log.Error().Err(err).Str("filename", fileHeader.Filename).Msg("failed to open uploaded file")
		response.Abort(c, http.StatusBadRequest, "file could not be read")
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		log.Error().Err(err).Str("filename", fileHeader.Filename).Msg("failed to read uploaded file")
		response.Abort(c, http.StatusBadRequest, "file could not be read")
		return
	}

	result, err := h.uploads.Upload(c.Request.Context(), service.UploadRequest{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
		Bucket:      c.PostForm("bucket"),
		Path:        c.PostForm("path"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{
		"bucket": result.Bucket,
		"path":   result.Path,
		"size":   result.Size,
	})
}
