package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	testhelpers "github.com/dl-alexandre/gdsync/internal/testing"
	"github.com/dl-alexandre/gdsync/internal/types"
	"github.com/dl-alexandre/gdsync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	drive "google.golang.org/api/drive/v2"
	"google.golang.org/api/option"
)

// fakeDrive answers the handful of v2 endpoints the client uses and records
// what it was sent.
type fakeDrive struct {
	mu          sync.Mutex
	folders     []drive.File
	uploads     []string
	permissions []drive.Permission
	deleted     []string

	rejectUploads     bool
	rejectPermissions bool
}

func (d *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/files"):
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":         []map[string]any{{"id": "f1", "title": "a.jpg", "fileSize": "5", "parents": []map[string]string{{"id": "root-id"}}}},
			"nextPageToken": r.URL.Query().Get("pageToken") + "x",
		})
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/files/gone"):
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"File not found: gone","errors":[{"reason":"notFound"}]}}`)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/files/limited"):
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"code":429,"message":"Rate limit","errors":[{"reason":"rateLimitExceeded"}]}}`)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/permissions") && d.rejectPermissions:
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"sharing disabled","errors":[{"reason":"forbidden"}]}}`)
	case r.Method == http.MethodPost && r.URL.Query().Get("uploadType") != "" && d.rejectUploads:
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"rejected","errors":[{"reason":"badRequest"}]}}`)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/permissions"):
		var p drive.Permission
		_ = json.NewDecoder(r.Body).Decode(&p)
		d.permissions = append(d.permissions, p)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "anyone"})
	case r.Method == http.MethodPost && r.URL.Query().Get("uploadType") != "":
		body, _ := io.ReadAll(r.Body)
		d.uploads = append(d.uploads, string(body))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "new-file", "title": "clip.mp4", "mimeType": "video/mp4",
			"downloadUrl": "https://doc.example/dl?id=new-file",
		})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/files"):
		var f drive.File
		_ = json.NewDecoder(r.Body).Decode(&f)
		d.folders = append(d.folders, f)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "new-folder", "title": f.Title, "mimeType": f.MimeType})
	case r.Method == http.MethodDelete:
		parts := strings.Split(r.URL.Path, "/")
		d.deleted = append(d.deleted, parts[len(parts)-1])
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeDrive) {
	t.Helper()
	fake := &fakeDrive{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := drive.NewService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/drive/v2/"),
	)
	require.NoError(t, err)
	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "static-token"})
	return NewClient(svc, tokens, nil), fake
}

func TestClient_ListPage(t *testing.T) {
	client, _ := newTestClient(t)

	page, err := client.ListPage(context.Background(), testhelpers.TestRequestContext(), "'root-id' in parents", "p1")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "p1x", page.NextPageToken)

	item := page.Items[0]
	assert.Equal(t, "f1", item.ID)
	assert.Equal(t, "a.jpg", item.Name)
	assert.Equal(t, int64(5), item.Size)
	assert.Equal(t, "root-id", item.ParentID)
	assert.False(t, item.IsDirectory)
}

func TestClient_GetClassifiesErrors(t *testing.T) {
	client, _ := newTestClient(t)
	reqCtx := testhelpers.TestRequestContext()

	_, err := client.Get(context.Background(), reqCtx, "gone")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrNotFound)
	assert.Contains(t, reqCtx.InvolvedFileIDs, "gone")

	_, err = client.Get(context.Background(), testhelpers.TestRequestContext(), "limited")
	require.Error(t, err)
	assert.Equal(t, utils.ErrCodeRateLimited, utils.ErrorCode(err))
}

func TestClient_CreateFolderWritesMarker(t *testing.T) {
	client, fake := newTestClient(t)
	marker := types.MarkerProperty{Key: "K", Value: "V", Visibility: "PRIVATE"}

	obj, err := client.CreateFolder(context.Background(), testhelpers.TestRequestContext(), "trip", "root-id", marker)
	require.NoError(t, err)
	assert.Equal(t, "new-folder", obj.ID)
	assert.True(t, obj.IsDirectory)

	require.Len(t, fake.folders, 1)
	sent := fake.folders[0]
	assert.Equal(t, "trip", sent.Title)
	assert.Equal(t, utils.MimeTypeFolder, sent.MimeType)
	require.Len(t, sent.Parents, 1)
	assert.Equal(t, "root-id", sent.Parents[0].Id)
	require.Len(t, sent.Properties, 1)
	assert.Equal(t, "K", sent.Properties[0].Key)
	assert.Equal(t, "V", sent.Properties[0].Value)
	assert.Equal(t, "PRIVATE", sent.Properties[0].Visibility)
}

func TestClient_CreateFileGrantsPublicRead(t *testing.T) {
	client, fake := newTestClient(t)

	obj, err := client.CreateFile(context.Background(), testhelpers.TestRequestContext(), types.NewFile{
		Name:       "clip.mp4",
		ParentID:   "folder-id",
		MimeType:   "video/mp4",
		PublicRead: true,
	}, strings.NewReader("video-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "new-file", obj.ID)
	assert.Equal(t, "https://doc.example/dl?id=new-file", obj.DownloadURL)

	require.Len(t, fake.uploads, 1)
	assert.Contains(t, fake.uploads[0], "video-bytes")
	assert.Contains(t, fake.uploads[0], "folder-id")
	require.Len(t, fake.permissions, 1)
	assert.Equal(t, "reader", fake.permissions[0].Role)
	assert.Equal(t, "anyone", fake.permissions[0].Type)
}

func TestClient_CreateFilePrivate(t *testing.T) {
	client, fake := newTestClient(t)

	_, err := client.CreateFile(context.Background(), testhelpers.TestRequestContext(), types.NewFile{
		Name:     "notes.txt",
		ParentID: "folder-id",
	}, strings.NewReader("x"))
	require.NoError(t, err)
	assert.Empty(t, fake.permissions)
}

func TestClient_RejectedUploadReportsNoProgress(t *testing.T) {
	client, fake := newTestClient(t)
	fake.rejectUploads = true

	var reports []int64
	_, err := client.CreateFile(context.Background(), testhelpers.TestRequestContext(), types.NewFile{
		Name:     "big.bin",
		ParentID: "folder-id",
		Progress: func(sent, _ int64) { reports = append(reports, sent) },
	}, strings.NewReader(strings.Repeat("x", 1<<20)))
	require.Error(t, err)
	assert.Equal(t, utils.ErrCodeInvalidArgument, utils.ErrorCode(err))
	assert.Empty(t, reports)
}

func TestClient_FailedGrantRemovesFile(t *testing.T) {
	client, fake := newTestClient(t)
	fake.rejectPermissions = true

	_, err := client.CreateFile(context.Background(), testhelpers.TestRequestContext(), types.NewFile{
		Name:       "clip.mp4",
		ParentID:   "folder-id",
		PublicRead: true,
	}, strings.NewReader("video-bytes"))
	require.Error(t, err)
	assert.Equal(t, utils.ErrCodePermissionDenied, utils.ErrorCode(err))
	assert.Len(t, fake.uploads, 1)
	assert.Equal(t, []string{"new-file"}, fake.deleted)
}

func TestClient_Delete(t *testing.T) {
	client, fake := newTestClient(t)

	require.NoError(t, client.Delete(context.Background(), testhelpers.TestRequestContext(), "old-id"))
	assert.Equal(t, []string{"old-id"}, fake.deleted)
}

func TestClient_CancelledContextSkipsCall(t *testing.T) {
	client, fake := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Delete(ctx, testhelpers.TestRequestContext(), "old-id")
	assert.ErrorIs(t, err, utils.ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.deleted)
}

func TestClient_AccessToken(t *testing.T) {
	client, _ := newTestClient(t)

	tok, err := client.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "static-token", tok)
}

func TestNewRequestContext(t *testing.T) {
	a := NewRequestContext("photos", types.RequestTypeUpload)
	b := NewRequestContext("photos", types.RequestTypeUpload)

	assert.NotEmpty(t, a.TraceID)
	assert.NotEqual(t, a.TraceID, b.TraceID)
	assert.Equal(t, "photos", a.TargetID)
	assert.Empty(t, a.InvolvedFileIDs)

	WithParentIDs(WithFileIDs(a, "f1"), "p1")
	assert.Equal(t, []string{"f1"}, a.InvolvedFileIDs)
	assert.Equal(t, []string{"p1"}, a.InvolvedParentIDs)
	assert.Nil(t, WithFileIDs(nil, "x"))
}
