package api

import (
	"context"

	"github.com/dl-alexandre/gdsync/internal/errors"
	"github.com/dl-alexandre/gdsync/internal/types"
)

// PageFetcher returns one page of items and the token for the next page.
// An empty token ends the listing.
type PageFetcher[T any] func(ctx context.Context, pageToken string) ([]T, string, error)

// CollectPages drains a paged listing, feeding each continuation token into
// the next fetch and keeping items in the order the store returned them.
// It stops at the first empty token and makes no assumption about page size.
func CollectPages[T any](ctx context.Context, fetch PageFetcher[T]) ([]T, error) {
	var all []T
	token := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.ClassifyCancellation(err, nil)
		}
		items, next, err := fetch(ctx, token)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if next == "" {
			return all, nil
		}
		token = next
	}
}

// ListAll runs query against store and returns every matching object
func ListAll(ctx context.Context, store RemoteStore, reqCtx *types.RequestContext, query string) ([]*types.RemoteObject, error) {
	return CollectPages(ctx, func(ctx context.Context, pageToken string) ([]*types.RemoteObject, string, error) {
		page, err := store.ListPage(ctx, reqCtx, query, pageToken)
		if err != nil {
			return nil, "", err
		}
		return page.Items, page.NextPageToken, nil
	})
}
