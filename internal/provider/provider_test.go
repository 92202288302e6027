package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/dl-alexandre/gdsync/internal/api"
	"github.com/dl-alexandre/gdsync/internal/config"
	"github.com/dl-alexandre/gdsync/internal/files"
	"github.com/dl-alexandre/gdsync/internal/journal"
	"github.com/dl-alexandre/gdsync/internal/testing/memstore"
	"github.com/dl-alexandre/gdsync/internal/types"
	"github.com/dl-alexandre/gdsync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSessions struct {
	store api.RemoteStore
	seen  []types.Credentials
}

func (s *staticSessions) NewSession(ctx context.Context, creds types.Credentials) (api.RemoteStore, error) {
	s.seen = append(s.seen, creds)
	return s.store, nil
}

type mapTokens map[string]string

func (m mapTokens) LoadRefreshToken(targetID string) (string, error) {
	if tok, ok := m[targetID]; ok {
		return tok, nil
	}
	return "", utils.NewAppError(utils.NewCLIError(utils.ErrCodeAuthRequired, "no token").Build())
}

type memJournal struct{ entries []journal.Entry }

func (j *memJournal) Record(ctx context.Context, e journal.Entry) (int64, error) {
	j.entries = append(j.entries, e)
	return int64(len(j.entries)), nil
}

// storeTransport serves retrieval URLs from the in-memory store
type storeTransport struct{ store *memstore.Store }

func (t storeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body, ok := t.store.Content(req.URL.Query().Get("id"))
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

type fixture struct {
	provider *Provider
	store    *memstore.Store
	sessions *staticSessions
	journal  *memJournal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ClientID = "cid"
	cfg.ClientSecret = "secret"
	cfg.Accounts = []config.SyncAccount{
		{ID: "photos", Name: "Photos", FolderID: "root-photos", RefreshToken: "rt-inline", UserIDs: []string{"alice"}},
		{ID: "shared", Name: "Shared", FolderID: "root-shared"},
	}

	store := memstore.New(2)
	sessions := &staticSessions{store: store}
	j := &memJournal{}
	p := New(cfg, files.NewManager(sessions, nil), Options{
		Tokens:    mapTokens{"shared": "rt-stored"},
		Journal:   j,
		Transport: storeTransport{store: store},
	})
	return &fixture{provider: p, store: store, sessions: sessions, journal: j}
}

var photos = types.SyncTarget{ID: "photos"}

func TestProvider_Targets(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "GoogleDrive", f.provider.Name())
	assert.True(t, f.provider.SupportsRemoteSync())
	assert.Len(t, f.provider.AllSyncTargets(), 2)

	bob := f.provider.SyncTargets("bob")
	require.Len(t, bob, 1)
	assert.Equal(t, "shared", bob[0].ID)
}

func TestProvider_Credentials(t *testing.T) {
	f := newFixture(t)

	creds, err := f.provider.Credentials(photos)
	require.NoError(t, err)
	assert.Equal(t, types.Credentials{ClientID: "cid", ClientSecret: "secret", RefreshToken: "rt-inline"}, creds)

	creds, err = f.provider.Credentials(types.SyncTarget{ID: "shared"})
	require.NoError(t, err)
	assert.Equal(t, "rt-stored", creds.RefreshToken)

	_, err = f.provider.Credentials(types.SyncTarget{ID: "music"})
	assert.ErrorIs(t, err, utils.ErrInvalidArgument)
}

func TestProvider_SendFileAndFetch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	info, err := f.provider.SendFile(ctx, strings.NewReader("jpeg-bytes"), []string{"2024", "trip", "a.jpg"}, photos, nil)
	require.NoError(t, err)
	assert.Equal(t, "Http", info.Protocol)
	assert.Contains(t, info.Path, "access_token=mem-token")
	assert.Equal(t, "rt-inline", f.sessions.seen[0].RefreshToken)

	require.Len(t, f.journal.entries, 1)
	entry := f.journal.entries[0]
	assert.Equal(t, journal.OpUpload, entry.Operation)
	assert.Equal(t, "2024/trip/a.jpg", entry.Path)
	assert.Equal(t, info.ID, entry.RemoteID)
	assert.Equal(t, int64(10), entry.Bytes)
	assert.True(t, entry.Succeeded)

	rc, err := f.provider.GetFile(ctx, info.ID, photos)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(body))

	listed, err := f.provider.GetFiles(ctx, []string{"2024", "trip"}, photos)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "a.jpg", listed[0].Name)

	root, err := f.provider.GetAllFiles(ctx, photos)
	require.NoError(t, err)
	require.Len(t, root, 1)
	assert.True(t, root[0].IsDirectory)
}

func TestProvider_SendFileWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	info, err := f.provider.SendFileWithOptions(ctx, strings.NewReader("0123456789"), []string{"clip.bin"}, photos, nil,
		files.UploadOptions{Offset: 2, Length: 3})
	require.NoError(t, err)

	content, ok := f.store.Content(info.ID)
	require.True(t, ok)
	assert.Equal(t, "234", string(content))
	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, int64(3), f.journal.entries[0].Bytes)
}

func TestProvider_EnsureFolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.provider.EnsureFolder(ctx, []string{"2024", "trip"}, photos)
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.FoldersCreated)

	_, err = f.provider.SendFile(ctx, strings.NewReader("x"), []string{"2024", "trip", "a.jpg"}, photos, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.FoldersCreated)

	children := f.store.Children(id)
	require.Len(t, children, 1)
	assert.Equal(t, "a.jpg", children[0].Name)
}

func TestProvider_GetSyncedFileInfo(t *testing.T) {
	f := newFixture(t)
	obj := f.store.AddFile("b.jpg", "root-photos", []byte("x"))

	info, err := f.provider.GetSyncedFileInfo(context.Background(), obj.ID, photos)
	require.NoError(t, err)
	assert.Equal(t, obj.ID, info.ID)
	assert.True(t, strings.HasPrefix(info.Path, obj.DownloadURL+"&access_token="))
}

func TestProvider_DeleteByURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	info, err := f.provider.SendFile(ctx, strings.NewReader("x"), []string{"a.jpg"}, photos, nil)
	require.NoError(t, err)

	ok, err := f.provider.DeleteFile(ctx, info.Path, photos)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, f.store.Children("root-photos"))

	last := f.journal.entries[len(f.journal.entries)-1]
	assert.Equal(t, journal.OpDelete, last.Operation)
	assert.Equal(t, info.ID, last.RemoteID)
}

func TestProvider_DeleteMissingReportsFalse(t *testing.T) {
	f := newFixture(t)

	ok, err := f.provider.DeleteFile(context.Background(), "no-such-id", photos)
	assert.False(t, ok)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	last := f.journal.entries[len(f.journal.entries)-1]
	assert.False(t, last.Succeeded)
	assert.NotEmpty(t, last.Error)
}

func TestProvider_GetFileMissingContent(t *testing.T) {
	f := newFixture(t)
	// folders carry no download URL
	folder := f.store.AddFolder("dir", "root-photos", nil)

	_, err := f.provider.GetFile(context.Background(), folder.ID, photos)
	require.Error(t, err)
}

func TestExtractFileID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://doc-0s.googleusercontent.com/download?id=abc&e=download&access_token=x", "abc"},
		{"https://example.com/files/xyz", "xyz"},
		{"https://example.com/files/xyz/", "xyz"},
		{"raw-id", "raw-id"},
		{"https://example.com", "https://example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractFileID(tt.in), tt.in)
	}
}

func TestFullPath(t *testing.T) {
	assert.Equal(t, "a/b/c.jpg", FullPath([]string{"a", "b", "c.jpg"}))
	assert.Equal(t, "", FullPath(nil))
}
