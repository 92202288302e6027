package testing

import (
	"testing"

	"github.com/dl-alexandre/gdsync/internal/types"
	"github.com/dl-alexandre/gdsync/internal/utils"
)

// TestRequestContext creates a standard request context for testing
func TestRequestContext() *types.RequestContext {
	return &types.RequestContext{
		TargetID:          "test-target",
		InvolvedFileIDs:   []string{},
		InvolvedParentIDs: []string{},
		RequestType:       types.RequestTypeListOrSearch,
		TraceID:           "test-trace-id",
	}
}

// TestCredentials returns a well-formed credential triple
func TestCredentials() types.Credentials {
	return types.Credentials{
		ClientID:     "client-id.apps.googleusercontent.com",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-token",
	}
}

// TestFile creates a remote file for testing
func TestFile(id, name, parentID string) *types.RemoteObject {
	return &types.RemoteObject{
		ID:          id,
		Name:        name,
		MimeType:    "application/octet-stream",
		ParentID:    parentID,
		Parents:     []string{parentID},
		Size:        1024,
		DownloadURL: "https://doc-0s.googleusercontent.com/download?id=" + id + "&e=download",
	}
}

// TestFolder creates a remote folder for testing
func TestFolder(id, name, parentID string) *types.RemoteObject {
	return &types.RemoteObject{
		ID:          id,
		Name:        name,
		IsDirectory: true,
		MimeType:    utils.MimeTypeFolder,
		ParentID:    parentID,
		Parents:     []string{parentID},
	}
}

// Page wraps items in a single ListPage
func Page(next string, items ...*types.RemoteObject) *types.ListPage {
	return &types.ListPage{Items: items, NextPageToken: next}
}

// NotFoundError returns the error a store reports for a missing object
func NotFoundError(id string) error {
	return utils.NewAppError(utils.NewCLIError(utils.ErrCodeFileNotFound, "file not found").
		WithHTTPStatus(404).
		WithContext("fileId", id).
		Build())
}

// AssertErrorCode fails the test unless err is an AppError with code
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error but got nil", code)
	}
	if got := utils.ErrorCode(err); got != code {
		t.Fatalf("error code = %s, want %s (%v)", got, code, err)
	}
}
