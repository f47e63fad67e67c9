package drive

import (
	"context"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/service"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/workflow"
)

// Uploader places bytes in the object store.
type Uploader interface {
	Upload(ctx context.Context, req service.UploadRequest) (*service.UploadResult, error)
}

// Recorder stores bytes and records their metadata in one saga run.
type Recorder interface {
	Run(ctx context.Context, in workflow.Input) (*workflow.Result, error)
}

type ImportRequest struct {
	FileID string `json:"fileId"`
	Bucket string `json:"bucket"`
	// Path defaults to the Drive file name.
	Path         string `json:"path"`
	CreateRecord bool   `json:"createRecord"`
}

type ImportResult struct {
	File   *File                 `json:"file"`
	Upload *service.UploadResult `json:"upload,omitempty"`
	Record *domain.FileRecord    `json:"record,omitempty"`
}

// Importer copies Drive files into the object store.
type Importer struct {
	source   Source
	uploads  Uploader
	recorder Recorder
	maxBytes int64
}

func NewImporter(source Source, uploads Uploader, recorder Recorder, maxBytes int64) *Importer {
	return &Importer{source: source, uploads: uploads, recorder: recorder, maxBytes: maxBytes}
}

func (i *Importer) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if strings.TrimSpace(req.FileID) == "" {
		return nil, domain.NewValidationError("fileId", "is required")
	}
	if strings.TrimSpace(req.Bucket) == "" {
		return nil, domain.NewValidationError("bucket", "is required")
	}

	file, data, err := i.source.Download(ctx, req.FileID, i.maxBytes)
	if err != nil {
		return nil, err
	}

	if file.MimeType == xlsxMimeType || strings.HasSuffix(strings.ToLower(file.Name), ".xlsx") {
		converted, err := convertXLSXToCSV(data)
		if err != nil {
			return nil, domain.NewValidationError("fileId", err.Error())
		}
		data = converted
		file.MimeType = "text/csv"
		file.Name = strings.TrimSuffix(file.Name, path.Ext(file.Name)) + ".csv"
		file.Size = int64(len(data))
	}

	objectPath := req.Path
	if strings.TrimSpace(objectPath) == "" {
		objectPath = file.Name
	}

	log.Info().
		Str("drive_file_id", file.ID).
		Str("name", file.Name).
		Int("size", len(data)).
		Str("bucket", req.Bucket).
		Str("path", objectPath).
		Msg("drive: importing file")

	if req.CreateRecord && i.recorder != nil {
		res, err := i.recorder.Run(ctx, workflow.Input{
			Filename:    file.Name,
			ContentType: file.MimeType,
			Data:        data,
			Bucket:      req.Bucket,
			Path:        objectPath,
		})
		out := &ImportResult{File: file}
		if res != nil {
			out.Upload = res.Upload
			out.Record = res.Record
		}
		return out, err
	}

	upload, err := i.uploads.Upload(ctx, service.UploadRequest{
		Filename:    file.Name,
		ContentType: file.MimeType,
		Data:        data,
		Bucket:      req.Bucket,
		Path:        objectPath,
	})
	if err != nil {
		return nil, err
	}
	return &ImportResult{File: file, Upload: upload}, nil
}

// List resolves folderPath when given, otherwise lists folderID.
func (i *Importer) List(ctx context.Context, folderID, folderPath string) ([]*File, error) {
	if folderPath != "" {
		id, err := i.source.FindFolderByPath(ctx, folderPath)
		if err != nil {
			return nil, err
		}
		folderID = id
	}
	return i.source.ListFiles(ctx, folderID)
}
