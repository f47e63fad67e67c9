package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
)

const (
	folderMimeType      = "application/vnd.google-apps.folder"
	spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"
	xlsxMimeType        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Source is the read side of a remote file library.
type Source interface {
	ListFiles(ctx context.Context, folderID string) ([]*File, error)
	FindFolderByPath(ctx context.Context, path string) (string, error)
	// Download returns the file's metadata and at most maxBytes of content.
	Download(ctx context.Context, fileID string, maxBytes int64) (*File, []byte, error)
}

type Service struct {
	srv *drive.Service
}

func NewService(ctx context.Context, credentialsJSON string) (*Service, error) {
	// Parse credentials from JSON
	config, err := google.JWTConfigFromJSON(
		[]byte(credentialsJSON),
		drive.DriveReadonlyScope,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to parse drive credentials: %w", err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %w", err)
	}

	return &Service{srv: srv}, nil
}

type File struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	Size         int64  `json:"size,omitempty"`
}

func (s *Service) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	// If no folder ID is provided, use "root"
	if folderID == "" {
		folderID = "root"
	}

	files := make([]*File, 0)
	err := s.srv.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(folderID))).
		Fields("nextPageToken, files(id, name, mimeType, modifiedTime, size)").
		Context(ctx).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				files = append(files, fromDrive(f))
			}
			return nil
		})
	if err != nil {
		return nil, driveError("list", folderID, err)
	}

	return files, nil
}

func (s *Service) FindFolderByPath(ctx context.Context, path string) (string, error) {
	currentID := "root"

	for _, folder := range strings.Split(path, "/") {
		if folder == "" {
			continue
		}

		result, err := s.srv.Files.List().
			Q(fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
				escapeQuery(currentID), escapeQuery(folder), folderMimeType)).
			Fields("files(id, name)").
			Context(ctx).
			Do()
		if err != nil {
			return "", driveError("find folder", folder, err)
		}

		if len(result.Files) == 0 {
			return "", &domain.NotFoundError{ID: path}
		}

		currentID = result.Files[0].Id
	}

	return currentID, nil
}

// Download fetches file content. Google Sheets are exported as CSV.
func (s *Service) Download(ctx context.Context, fileID string, maxBytes int64) (*File, []byte, error) {
	meta, err := s.srv.Files.Get(fileID).
		Fields("id, name, mimeType, modifiedTime, size").
		Context(ctx).
		Do()
	if err != nil {
		return nil, nil, driveError("get", fileID, err)
	}
	file := fromDrive(meta)

	var resp *http.Response
	if file.MimeType == spreadsheetMimeType {
		resp, err = s.srv.Files.Export(fileID, "text/csv").Context(ctx).Download()
		file.MimeType = "text/csv"
		if !strings.HasSuffix(strings.ToLower(file.Name), ".csv") {
			file.Name += ".csv"
		}
	} else {
		resp, err = s.srv.Files.Get(fileID).Context(ctx).Download()
	}
	if err != nil {
		return nil, nil, driveError("download", fileID, err)
	}
	defer resp.Body.Close()

	data, err := readLimited(resp.Body, maxBytes)
	if err != nil {
		return nil, nil, err
	}
	file.Size = int64(len(data))
	return file, data, nil
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read drive content: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, domain.NewValidationError("fileId", "drive file exceeds the import size limit")
	}
	return data, nil
}

func fromDrive(f *drive.File) *File {
	return &File{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		ModifiedTime: f.ModifiedTime,
		Size:         f.Size,
	}
}

func driveError(op, ref string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusNotFound {
			return &domain.NotFoundError{ID: ref}
		}
		return &domain.StoreError{Op: "drive " + op, Path: ref, StatusCode: gerr.Code, Message: gerr.Message}
	}
	return &domain.StoreError{Op: "drive " + op, Path: ref, Err: err}
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}

var _ Source = (*Service)(nil)
