package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"
	"testing"

	"github.com/dl-alexandre/gdsync/internal/api"
	"github.com/dl-alexandre/gdsync/internal/config"
	"github.com/dl-alexandre/gdsync/internal/files"
	"github.com/dl-alexandre/gdsync/internal/logging"
	"github.com/dl-alexandre/gdsync/internal/provider"
	"github.com/dl-alexandre/gdsync/internal/testing/memstore"
	"github.com/dl-alexandre/gdsync/internal/types"
	"github.com/dl-alexandre/gdsync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSessions struct {
	mu    gosync.Mutex
	store api.RemoteStore
	count int
}

func (m *memSessions) NewSession(ctx context.Context, creds types.Credentials) (api.RemoteStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
	return m.store, nil
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func remotePaths(items []pushItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = strings.Join(it.remotePath, "/")
	}
	return out
}

func TestPlanPush(t *testing.T) {
	root := writeTree(t, map[string]string{
		"top.txt":       "t",
		"a/b.jpg":       "b",
		"a/c/d.jpg":     "d",
		".hidden":       "h",
		".git/config":   "g",
		"a/.DS_Store":   "x",
		"cafe\u0301.md": "decomposed",
	})

	items, err := planPush(root, []string{"backup"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"backup/a/b.jpg",
		"backup/a/c/d.jpg",
		"backup/caf\u00e9.md",
		"backup/top.txt",
	}, remotePaths(items))

	_, err = planPush(filepath.Join(root, "top.txt"), nil)
	assert.Equal(t, utils.ErrCodeInvalidPath, utils.ErrorCode(err))
}

func TestFolderChains(t *testing.T) {
	items := []pushItem{
		{remotePath: []string{"b", "x.jpg"}},
		{remotePath: []string{"a", "c", "y.jpg"}},
		{remotePath: []string{"a", "c", "z.jpg"}},
		{remotePath: []string{"root.jpg"}},
	}
	assert.Equal(t, [][]string{{"a", "c"}, {"b"}}, folderChains(items))
}

func TestPush_UploadsTreeWithoutDuplicateFolders(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a/1.jpg":   "one",
		"a/2.jpg":   "two",
		"a/3.jpg":   "three",
		"a/c/4.jpg": "four",
		"5.jpg":     "five",
	})
	items, err := planPush(root, []string{"backup"})
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.ClientID = "cid"
	cfg.ClientSecret = "secret"
	cfg.Accounts = []config.SyncAccount{{ID: "photos", FolderID: "root-photos", RefreshToken: "rt"}}

	store := memstore.New(2)
	p := provider.New(cfg, files.NewManager(&memSessions{store: store}, nil), provider.Options{})
	target := types.SyncTarget{ID: "photos"}

	result, err := push(context.Background(), p, target, items, 4, logging.NewNoOpLogger())
	require.NoError(t, err)
	assert.Empty(t, result.Failed)
	require.Len(t, result.Uploaded, 5)
	assert.Equal(t, "backup/5.jpg", result.Uploaded[0].RemotePath)
	assert.Equal(t, 3, result.Folders)

	// backup, backup/a, backup/a/c
	assert.Equal(t, 3, store.FoldersCreated)
	backup := store.Children("root-photos")
	require.Len(t, backup, 1)
	assert.Len(t, store.Children(backup[0].ID), 2)
}

// scriptedSender fails the files whose remote path is listed in errs
type scriptedSender struct {
	mu      gosync.Mutex
	errs    map[string]error
	sent    []string
	ensured [][]string
}

func (s *scriptedSender) EnsureFolder(ctx context.Context, parts []string, target types.SyncTarget) (string, error) {
	s.ensured = append(s.ensured, parts)
	return "folder", nil
}

func (s *scriptedSender) SendFile(ctx context.Context, content io.Reader, parts []string, target types.SyncTarget, progress files.ProgressSink) (*types.SyncedFileInfo, error) {
	path := strings.Join(parts, "/")
	if err := s.errs[path]; err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.sent = append(s.sent, path)
	s.mu.Unlock()
	return &types.SyncedFileInfo{ID: "id-" + path}, nil
}

func TestPush_CollectsPerFileFailures(t *testing.T) {
	root := writeTree(t, map[string]string{"ok.jpg": "1", "bad.jpg": "2"})
	items, err := planPush(root, nil)
	require.NoError(t, err)

	sender := &scriptedSender{errs: map[string]error{
		"bad.jpg": utils.NewAppError(utils.NewCLIError(utils.ErrCodeNetworkError, "reset").Build()),
	}}
	result, err := push(context.Background(), sender, types.SyncTarget{}, items, 2, logging.NewNoOpLogger())
	require.NoError(t, err)
	require.Len(t, result.Uploaded, 1)
	assert.Equal(t, "id-ok.jpg", result.Uploaded[0].RemoteID)
	require.Len(t, result.Failed, 1)
	assert.Contains(t, result.Failed[0].Error, "reset")
	assert.Empty(t, sender.ensured)
}

func TestPush_AuthFailureStops(t *testing.T) {
	root := writeTree(t, map[string]string{"x.jpg": "1"})
	items, err := planPush(root, nil)
	require.NoError(t, err)

	authErr := utils.NewAppError(utils.NewCLIError(utils.ErrCodeAuthRequired, "no token").Build())
	sender := &scriptedSender{errs: map[string]error{"x.jpg": authErr}}
	_, err = push(context.Background(), sender, types.SyncTarget{}, items, 1, logging.NewNoOpLogger())
	assert.Equal(t, utils.ErrCodeAuthRequired, utils.ErrorCode(err))
}

func TestIsFatalPushError(t *testing.T) {
	assert.True(t, isFatalPushError(context.Canceled))
	assert.True(t, isFatalPushError(utils.WrapAppError(context.DeadlineExceeded, utils.NewCLIError(utils.ErrCodeTimeout, "t").Build())))
	assert.True(t, isFatalPushError(utils.NewAppError(utils.NewCLIError(utils.ErrCodeAuthExpired, "x").Build())))
	assert.False(t, isFatalPushError(errors.New("disk")))
	assert.False(t, isFatalPushError(utils.NewAppError(utils.NewCLIError(utils.ErrCodeRateLimited, "x").Build())))
}
