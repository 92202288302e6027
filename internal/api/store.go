package api

import (
	"context"
	"io"

	"github.com/dl-alexandre/gdsync/internal/types"
)

//go:generate mockgen -source=store.go -destination=../testing/mocks/store.go -package=mocks

// RemoteStore is the narrow view of the object store the sync core needs.
// Client implements it over Drive v2; tests use mocks and an in-memory store.
//
// Implementations return *utils.AppError values. A missing object on Get or
// Delete is reported with code FILE_NOT_FOUND.
type RemoteStore interface {
	// ListPage runs one page of a filtered listing. An empty NextPageToken
	// on the result means the listing is complete.
	ListPage(ctx context.Context, reqCtx *types.RequestContext, query, pageToken string) (*types.ListPage, error)
	Get(ctx context.Context, reqCtx *types.RequestContext, id string) (*types.RemoteObject, error)
	CreateFolder(ctx context.Context, reqCtx *types.RequestContext, name, parentID string, marker types.MarkerProperty) (*types.RemoteObject, error)
	CreateFile(ctx context.Context, reqCtx *types.RequestContext, file types.NewFile, content io.Reader) (*types.RemoteObject, error)
	Delete(ctx context.Context, reqCtx *types.RequestContext, id string) error
	// AccessToken returns a bearer token valid for retrieval URLs
	AccessToken(ctx context.Context) (string, error)
}
