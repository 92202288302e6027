package resolver

import (
	"context"
	"testing"

	"github.com/dl-alexandre/gdsync/internal/api"
	"github.com/dl-alexandre/gdsync/internal/folders"
	testhelpers "github.com/dl-alexandre/gdsync/internal/testing"
	"github.com/dl-alexandre/gdsync/internal/testing/memstore"
	"github.com/dl-alexandre/gdsync/internal/testing/mocks"
	"github.com/dl-alexandre/gdsync/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newResolver(store api.RemoteStore) *PathResolver {
	return NewPathResolver(folders.NewManager(store, nil), nil)
}

func TestResolve_EmptyPathReturnsRoot(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockRemoteStore(ctrl) // no calls expected

	res, err := newResolver(store).Resolve(context.Background(), testhelpers.TestRequestContext(), nil, "root-id", true)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "root-id", res.FolderID)
	assert.Empty(t, res.Created)
}

func TestResolve_CreatesMissingSegments(t *testing.T) {
	store := memstore.New(0)

	res, err := newResolver(store).Resolve(context.Background(), testhelpers.TestRequestContext(), []string{"a", "b"}, "root-id", true)
	require.NoError(t, err)
	require.True(t, res.Found)

	assert.Equal(t, 2, store.FoldersCreated)
	require.Len(t, res.Created, 2)

	a := store.Children("root-id")
	require.Len(t, a, 1)
	assert.Equal(t, "a", a[0].Name)

	b := store.Children(a[0].ID)
	require.Len(t, b, 1)
	assert.Equal(t, "b", b[0].Name)
	assert.Equal(t, b[0].ID, res.FolderID)
}

func TestResolve_ReusesExistingMarkedFolders(t *testing.T) {
	store := memstore.New(1)
	marker := folders.DefaultMarker()
	a := store.AddFolder("a", "root-id", &marker)
	b := store.AddFolder("b", a.ID, &marker)

	res, err := newResolver(store).Resolve(context.Background(), testhelpers.TestRequestContext(), []string{"a", "b"}, "root-id", true)
	require.NoError(t, err)
	assert.Equal(t, b.ID, res.FolderID)
	assert.Equal(t, 0, store.FoldersCreated)
}

func TestResolve_IgnoresUnmarkedFolders(t *testing.T) {
	store := memstore.New(0)
	store.AddFolder("a", "root-id", nil)

	res, err := newResolver(store).Resolve(context.Background(), testhelpers.TestRequestContext(), []string{"a"}, "root-id", false)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, "a", res.MissingSegment)
}

func TestResolve_StopsAtFirstMissingSegment(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockRemoteStore(ctrl)
	marker := folders.DefaultMarker()

	gomock.InOrder(
		store.EXPECT().ListPage(ctx, gomock.Any(), folders.FolderQuery("a", "root-id", marker), "").
			Return(testhelpers.Page("", testhelpers.TestFolder("a-id", "a", "root-id")), nil),
		store.EXPECT().ListPage(ctx, gomock.Any(), folders.FolderQuery("missing", "a-id", marker), "").
			Return(testhelpers.Page(""), nil),
	)
	// any lookup of "c" or any creation would be an unexpected call

	res, err := newResolver(store).Resolve(ctx, testhelpers.TestRequestContext(), []string{"a", "missing", "c"}, "root-id", false)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Equal(t, "missing", res.MissingSegment)
	assert.Empty(t, res.FolderID)
}

func TestResolve_QueriesEscapedNames(t *testing.T) {
	store := memstore.New(0)

	_, err := newResolver(store).Resolve(context.Background(), testhelpers.TestRequestContext(), []string{"O'Brien"}, "root-id", true)
	require.NoError(t, err)
	require.NotEmpty(t, store.Queries)
	assert.Contains(t, store.Queries[0], `title = 'O\'Brien'`)

	// the created folder is found again by the same escaped query
	res, err := newResolver(store).Resolve(context.Background(), testhelpers.TestRequestContext(), []string{"O'Brien"}, "root-id", false)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 1, store.FoldersCreated)
}

func TestResolve_InvalidArguments(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockRemoteStore(ctrl)
	r := newResolver(store)

	tests := []struct {
		name     string
		segments []string
		root     string
	}{
		{"blank root", []string{"a"}, " "},
		{"blank segment", []string{"a", "", "c"}, "root-id"},
		{"whitespace segment", []string{"  "}, "root-id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), testhelpers.TestRequestContext(), tt.segments, tt.root, true)
			assert.ErrorIs(t, err, utils.ErrInvalidArgument)
		})
	}
}

func TestResolve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newResolver(memstore.New(0)).Resolve(ctx, testhelpers.TestRequestContext(), []string{"a"}, "root-id", true)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, utils.ErrCancelled)
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"/", nil},
		{"photos", []string{"photos"}},
		{"/photos//trip/", []string{"photos", "trip"}},
		{"./photos/trip", []string{"photos", "trip"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitPath(tt.in), tt.in)
	}
}
