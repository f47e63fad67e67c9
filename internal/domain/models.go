package domain

import (
	"fmt"
	"time"
)

// FileRecord is the metadata row describing one uploaded file and its lifecycle status.
type FileRecord struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Size        int64      `json:"size" db:"size"`
	UploadedAt  time.Time  `json:"uploadedAt" db:"uploaded_at"`
	Status      FileStatus `json:"status" db:"status"`
	Bucket      *string    `json:"bucket,omitempty" db:"bucket"`
	StoragePath *string    `json:"storagePath,omitempty" db:"storage_path"`
	Version     int64      `json:"version" db:"version"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

// HasStoragePath reports whether the record points at an object-store location.
func (r *FileRecord) HasStoragePath() bool {
	return r.StoragePath != nil && *r.StoragePath != ""
}

// Location returns the bucket and path of the stored bytes, empty when unknown.
func (r *FileRecord) Location() (bucket, path string) {
	if r.Bucket != nil {
		bucket = *r.Bucket
	}
	if r.StoragePath != nil {
		path = *r.StoragePath
	}
	return bucket, path
}

// Clone returns a deep copy so callers can't mutate stored state.
func (r *FileRecord) Clone() *FileRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Bucket != nil {
		b := *r.Bucket
		c.Bucket = &b
	}
	if r.StoragePath != nil {
		p := *r.StoragePath
		c.StoragePath = &p
	}
	return &c
}

// NewFileRecord is the create payload: a near-complete record without an id.
type NewFileRecord struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Size        *int64    `json:"size"`
	UploadedAt  Timestamp `json:"uploadedAt"`
	Status      string    `json:"status"`
	Bucket      string    `json:"bucket,omitempty"`
	StoragePath string    `json:"storagePath,omitempty"`
}

// FileView is the display shape returned by the listing endpoint.
type FileView struct {
	FileRecord
	StatusLabel string `json:"statusLabel"`
	SizeLabel   string `json:"sizeLabel"`
}

// NewFileView reshapes a record for display.
func NewFileView(r *FileRecord) FileView {
	return FileView{
		FileRecord:  *r,
		StatusLabel: r.Status.Label(),
		SizeLabel:   HumanSize(r.Size),
	}
}

// HumanSize formats a byte count as B, KB, MB or GB.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit && exp < 2; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMG"[exp])
}
