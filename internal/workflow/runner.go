// Package workflow drives the two-phase upload (object bytes, then metadata)
// as an explicit saga. Each step is a separate remote call; a failure stops
// the run and the result says how far it got so the caller can resume.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/service"
)

// Step names the last step a run attempted.
type Step string

const (
	StepValidate     Step = "validate"
	StepCreateRecord Step = "create_record"
	StepPutObject    Step = "put_object"
	StepMarkUploaded Step = "mark_uploaded"
	StepDone         Step = "done"
)

type Input struct {
	Filename    string
	ContentType string
	Data        []byte
	Bucket      string
	Path        string
	UploadedAt  time.Time
}

type Result struct {
	Step   Step
	Record *domain.FileRecord
	Upload *service.UploadResult
}

type Runner struct {
	uploads *service.UploadService
	files   *service.FileService
}

func NewRunner(uploads *service.UploadService, files *service.FileService) *Runner {
	return &Runner{uploads: uploads, files: files}
}

// Run creates an uploading record, stores the bytes and marks the record
// uploaded. A failed put marks the record failed. Nothing is compensated.
func (r *Runner) Run(ctx context.Context, in Input) (*Result, error) {
	req := service.UploadRequest{
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Data:        in.Data,
		Bucket:      in.Bucket,
		Path:        in.Path,
	}
	objectPath, err := r.uploads.Validate(req)
	if err != nil {
		return &Result{Step: StepValidate}, err
	}
	req.Path = objectPath

	size := int64(len(in.Data))
	rec, err := r.files.Create(ctx, domain.NewFileRecord{
		Name:        in.Filename,
		Size:        &size,
		UploadedAt:  domain.NewTimestamp(in.UploadedAt),
		Status:      string(domain.FileStatusUploading),
		Bucket:      in.Bucket,
		StoragePath: objectPath,
	})
	if err != nil {
		return &Result{Step: StepCreateRecord}, err
	}

	return r.store(ctx, rec, req)
}

// Resume finishes a run that stopped early. Records already uploaded or
// added are left alone; failed records re-enter uploading explicitly.
func (r *Runner) Resume(ctx context.Context, id string, data []byte, contentType string) (*Result, error) {
	rec, err := r.files.Get(ctx, id)
	if err != nil {
		return &Result{Step: StepValidate}, err
	}

	switch rec.Status {
	case domain.FileStatusUploaded, domain.FileStatusAdded:
		log.Info().Str("id", id).Str("status", string(rec.Status)).Msg("workflow: nothing to resume")
		return &Result{Step: StepDone, Record: rec}, nil
	}

	bucket, path := rec.Location()
	req := service.UploadRequest{
		Filename:    rec.Name,
		ContentType: contentType,
		Data:        data,
		Bucket:      bucket,
		Path:        path,
	}
	if _, err := r.uploads.Validate(req); err != nil {
		return &Result{Step: StepValidate, Record: rec}, err
	}
	if int64(len(data)) != rec.Size {
		log.Warn().Str("id", id).Int64("recorded", rec.Size).Int("given", len(data)).
			Msg("workflow: resumed payload size differs from record")
	}

	if rec.Status == domain.FileStatusFailed {
		reentered, err := r.files.UpdateStatus(ctx, id, string(domain.FileStatusUploading), &rec.Version)
		if err != nil {
			return &Result{Step: StepValidate, Record: rec}, err
		}
		rec = reentered
	}

	return r.store(ctx, rec, req)
}

func (r *Runner) store(ctx context.Context, rec *domain.FileRecord, req service.UploadRequest) (*Result, error) {
	upload, err := r.uploads.Upload(ctx, req)
	if err != nil {
		// the put may have failed because ctx ended; the record still has to leave uploading
		failed, markErr := r.files.UpdateStatus(context.WithoutCancel(ctx), rec.ID, string(domain.FileStatusFailed), nil)
		if markErr != nil {
			log.Error().Err(markErr).Str("id", rec.ID).Msg("workflow: could not mark record failed")
			return &Result{Step: StepPutObject, Record: rec}, fmt.Errorf("put object: %w (mark failed: %v)", err, markErr)
		}
		return &Result{Step: StepPutObject, Record: failed}, err
	}

	uploaded, err := r.files.UpdateStatus(ctx, rec.ID, string(domain.FileStatusUploaded), nil)
	if err != nil {
		log.Error().Err(err).Str("id", rec.ID).Msg("workflow: bytes stored but record not marked uploaded")
		return &Result{Step: StepMarkUploaded, Record: rec, Upload: upload}, err
	}

	return &Result{Step: StepDone, Record: uploaded, Upload: upload}, nil
}
