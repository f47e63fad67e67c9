package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestParseFileStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want FileStatus
		ok   bool
	}{
		{"uploading", FileStatusUploading, true},
		{"Uploaded", FileStatusUploaded, true},
		{" failed ", FileStatusFailed, true},
		{"ADDED", FileStatusAdded, true},
		{"deleted", FileStatus("deleted"), false},
		{"", FileStatus(""), false},
	}
	for _, tt := range tests {
		got, ok := ParseFileStatus(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]FileStatus{
		{FileStatusUploading, FileStatusUploaded},
		{FileStatusUploading, FileStatusFailed},
		{FileStatusUploaded, FileStatusAdded},
		{FileStatusFailed, FileStatusUploading},
		{FileStatusUploaded, FileStatusUploaded},
		{FileStatusAdded, FileStatusAdded},
	}
	for _, pair := range allowed {
		assert.True(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}

	rejected := [][2]FileStatus{
		{FileStatusAdded, FileStatusUploading},
		{FileStatusUploading, FileStatusAdded},
		{FileStatusFailed, FileStatusAdded},
		{FileStatusFailed, FileStatusUploaded},
		{FileStatusUploaded, FileStatusUploading},
		{FileStatusUploading, FileStatus("bogus")},
	}
	for _, pair := range rejected {
		assert.False(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}
}

func TestCheckTransition_Strict(t *testing.T) {
	rec := &FileRecord{ID: "a", Status: FileStatusAdded, StoragePath: strPtr("dir/a.csv")}

	err := CheckTransition(TransitionPolicyStrict, rec, FileStatusUploading)
	require.Error(t, err)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, FileStatusAdded, te.From)
	assert.Equal(t, FileStatusUploading, te.To)
	assert.ErrorIs(t, err, ErrTransition)
}

func TestCheckStoragePath(t *testing.T) {
	rec := &FileRecord{ID: "a", Status: FileStatusUploading}

	assert.NoError(t, CheckTransition(TransitionPolicyStrict, rec, FileStatusUploaded))
	assert.ErrorIs(t, CheckStoragePath(rec, FileStatusUploaded), ErrValidation)
	assert.NoError(t, CheckStoragePath(rec, FileStatusFailed))

	rec.StoragePath = strPtr("dir/a.csv")
	assert.NoError(t, CheckStoragePath(rec, FileStatusUploaded))
}

func TestCheckTransition_Lenient(t *testing.T) {
	rec := &FileRecord{ID: "a", Status: FileStatusAdded}

	assert.NoError(t, CheckTransition(TransitionPolicyLenient, rec, FileStatusUploading))
	assert.ErrorIs(t, CheckTransition(TransitionPolicyLenient, rec, FileStatus("archived")), ErrValidation)
}

func TestCheckInitialStatus(t *testing.T) {
	assert.NoError(t, CheckInitialStatus(FileStatusUploading))
	assert.NoError(t, CheckInitialStatus(FileStatusFailed))
	assert.NoError(t, CheckInitialStatus(FileStatusUploaded))
	assert.ErrorIs(t, CheckInitialStatus(FileStatusAdded), ErrValidation)
	assert.ErrorIs(t, CheckInitialStatus(FileStatus("nope")), ErrValidation)
}

func TestParseTransitionPolicy(t *testing.T) {
	assert.Equal(t, TransitionPolicyLenient, ParseTransitionPolicy("LENIENT"))
	assert.Equal(t, TransitionPolicyStrict, ParseTransitionPolicy("strict"))
	assert.Equal(t, TransitionPolicyStrict, ParseTransitionPolicy(""))
	assert.Equal(t, TransitionPolicyStrict, ParseTransitionPolicy("whatever"))
}
