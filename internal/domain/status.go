package domain

import "strings"

// FileStatus is the lifecycle state of a FileRecord.
type FileStatus string

const (
	FileStatusUploading FileStatus = "uploading"
	FileStatusUploaded  FileStatus = "uploaded"
	FileStatusFailed    FileStatus = "failed"
	FileStatusAdded     FileStatus = "added"
)

var fileStatusLabels = map[FileStatus]string{
	FileStatusUploading: "Uploading",
	FileStatusUploaded:  "Uploaded",
	FileStatusFailed:    "Failed",
	FileStatusAdded:     "Added to directory",
}

// fileStatusTransitions lists the targets reachable from each state.
// Re-applying the current state is always allowed and is not listed here.
var fileStatusTransitions = map[FileStatus]map[FileStatus]bool{
	FileStatusUploading: {FileStatusUploaded: true, FileStatusFailed: true},
	FileStatusUploaded:  {FileStatusAdded: true},
	FileStatusFailed:    {FileStatusUploading: true},
	FileStatusAdded:     {},
}

// TransitionPolicy controls how strictly status updates are checked.
type TransitionPolicy string

const (
	// TransitionPolicyStrict rejects transitions missing from the table.
	TransitionPolicyStrict TransitionPolicy = "strict"
	// TransitionPolicyLenient accepts any known target status.
	TransitionPolicyLenient TransitionPolicy = "lenient"
)

// ParseTransitionPolicy falls back to strict for unknown values.
func ParseTransitionPolicy(raw string) TransitionPolicy {
	if TransitionPolicy(strings.ToLower(strings.TrimSpace(raw))) == TransitionPolicyLenient {
		return TransitionPolicyLenient
	}
	return TransitionPolicyStrict
}

// Valid reports whether s is one of the four lifecycle states.
func (s FileStatus) Valid() bool {
	_, ok := fileStatusLabels[s]
	return ok
}

// Label returns a human-readable label for the status.
func (s FileStatus) Label() string {
	if label, ok := fileStatusLabels[s]; ok {
		return label
	}
	return "Unknown"
}

// ParseFileStatus returns the status for a given value (case-insensitive).
func ParseFileStatus(raw string) (FileStatus, bool) {
	status := FileStatus(strings.ToLower(strings.TrimSpace(raw)))
	return status, status.Valid()
}

// CanTransition reports whether from -> to is a legal move in the lifecycle.
func CanTransition(from, to FileStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	return fileStatusTransitions[from][to]
}

// CheckTransition validates a status change for an existing record under the given policy.
func CheckTransition(policy TransitionPolicy, current *FileRecord, to FileStatus) error {
	if !to.Valid() {
		return &ValidationError{Field: "status", Message: "must be one of uploading, uploaded, failed, added"}
	}
	if policy == TransitionPolicyLenient {
		return nil
	}
	if !CanTransition(current.Status, to) {
		return &TransitionError{ID: current.ID, From: current.Status, To: to}
	}
	return nil
}

// CheckStoragePath reports a ValidationError when rec would become uploaded
// without pointing at stored bytes.
func CheckStoragePath(rec *FileRecord, to FileStatus) error {
	if to == FileStatusUploaded && !rec.HasStoragePath() {
		return &ValidationError{Field: "storagePath", Message: "required before a record can be marked uploaded"}
	}
	return nil
}

// CheckInitialStatus validates the status a new record is created with.
// A record can never be born "added"; it must pass through "uploaded" first.
func CheckInitialStatus(status FileStatus) error {
	if !status.Valid() {
		return &ValidationError{Field: "status", Message: "must be one of uploading, uploaded, failed"}
	}
	if status == FileStatusAdded {
		return &ValidationError{Field: "status", Message: "a new record cannot start as added"}
	}
	return nil
}
