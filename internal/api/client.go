package api

import (
	"context"
	"io"
	"time"

	"github.com/dl-alexandre/gdsync/internal/errors"
	"github.com/dl-alexandre/gdsync/internal/logging"
	"github.com/dl-alexandre/gdsync/internal/types"
	"github.com/dl-alexandre/gdsync/internal/utils"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	drive "google.golang.org/api/drive/v2"
	"google.golang.org/api/googleapi"
)

// Client implements RemoteStore on top of the Drive v2 API. It never
// retries: a failed call is classified and returned to the caller.
type Client struct {
	service *drive.Service
	tokens  oauth2.TokenSource
	logger  logging.Logger
}

var _ RemoteStore = (*Client)(nil)

// NewClient creates a new Drive API client. tokens mints the bearer tokens
// embedded in retrieval URLs and should be the source backing service.
func NewClient(service *drive.Service, tokens oauth2.TokenSource, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Client{
		service: service,
		tokens:  tokens,
		logger:  logger,
	}
}

// NewRequestContext creates a new request context with trace ID
func NewRequestContext(targetID string, requestType types.RequestType) *types.RequestContext {
	return &types.RequestContext{
		TargetID:          targetID,
		InvolvedFileIDs:   []string{},
		InvolvedParentIDs: []string{},
		RequestType:       requestType,
		TraceID:           uuid.New().String(),
	}
}

// WithFileIDs adds file IDs to the request context
func WithFileIDs(reqCtx *types.RequestContext, fileIDs ...string) *types.RequestContext {
	if reqCtx == nil {
		return nil
	}
	reqCtx.InvolvedFileIDs = append(reqCtx.InvolvedFileIDs, fileIDs...)
	return reqCtx
}

// WithParentIDs adds parent IDs to the request context
func WithParentIDs(reqCtx *types.RequestContext, parentIDs ...string) *types.RequestContext {
	if reqCtx == nil {
		return nil
	}
	reqCtx.InvolvedParentIDs = append(reqCtx.InvolvedParentIDs, parentIDs...)
	return reqCtx
}

// Execute runs fn once, logging start, completion and failure under the
// request's trace ID. A context that is already done short-circuits the call.
func Execute[T any](ctx context.Context, client *Client, reqCtx *types.RequestContext, op string, fn func() (T, error)) (T, error) {
	var zero T
	if reqCtx == nil {
		reqCtx = NewRequestContext("", types.RequestTypeGetByID)
	}

	logger := client.logger.WithTraceID(reqCtx.TraceID)
	if err := ctx.Err(); err != nil {
		return zero, errors.ClassifyCancellation(err, reqCtx)
	}

	logger.Debug("API operation starting",
		logging.F("operation", op),
		logging.F("requestType", reqCtx.RequestType),
		logging.F("target", reqCtx.TargetID),
	)

	start := time.Now()
	result, err := fn()
	if err != nil {
		logger.Error("API operation failed",
			logging.F("operation", op),
			logging.F("duration_ms", time.Since(start).Milliseconds()),
			logging.F("error", err.Error()),
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, errors.ClassifyCancellation(ctxErr, reqCtx)
		}
		return zero, errors.ClassifyGoogleAPIError("drive", err, reqCtx, client.logger)
	}

	logger.Debug("API operation completed",
		logging.F("operation", op),
		logging.F("duration_ms", time.Since(start).Milliseconds()),
	)
	return result, nil
}

func (c *Client) ListPage(ctx context.Context, reqCtx *types.RequestContext, query, pageToken string) (*types.ListPage, error) {
	return Execute(ctx, c, reqCtx, "files.list", func() (*types.ListPage, error) {
		call := c.service.Files.List().Q(query).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		list, err := call.Do()
		if err != nil {
			return nil, err
		}
		page := &types.ListPage{
			Items:         make([]*types.RemoteObject, 0, len(list.Items)),
			NextPageToken: list.NextPageToken,
		}
		for _, f := range list.Items {
			page.Items = append(page.Items, convertDriveFile(f))
		}
		return page, nil
	})
}

func (c *Client) Get(ctx context.Context, reqCtx *types.RequestContext, id string) (*types.RemoteObject, error) {
	WithFileIDs(reqCtx, id)
	return Execute(ctx, c, reqCtx, "files.get", func() (*types.RemoteObject, error) {
		f, err := c.service.Files.Get(id).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return convertDriveFile(f), nil
	})
}

func (c *Client) CreateFolder(ctx context.Context, reqCtx *types.RequestContext, name, parentID string, marker types.MarkerProperty) (*types.RemoteObject, error) {
	WithParentIDs(reqCtx, parentID)
	folder := &drive.File{
		Title:    name,
		MimeType: utils.MimeTypeFolder,
		Parents:  []*drive.ParentReference{{Id: parentID}},
		Properties: []*drive.Property{{
			Key:        marker.Key,
			Value:      marker.Value,
			Visibility: marker.Visibility,
		}},
	}
	return Execute(ctx, c, reqCtx, "files.insert", func() (*types.RemoteObject, error) {
		f, err := c.service.Files.Insert(folder).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return convertDriveFile(f), nil
	})
}

// CreateFile uploads content as a new file in chunks of UploadChunkSize,
// reporting each acknowledged chunk to file.Progress. With PublicRead set it
// also grants anyone/reader before returning, so the download URL is usable
// with just an access token; a file whose grant fails is removed again.
func (c *Client) CreateFile(ctx context.Context, reqCtx *types.RequestContext, file types.NewFile, content io.Reader) (*types.RemoteObject, error) {
	WithParentIDs(reqCtx, file.ParentID)
	meta := &drive.File{
		Title:   file.Name,
		Parents: []*drive.ParentReference{{Id: file.ParentID}},
	}
	opts := []googleapi.MediaOption{googleapi.ChunkSize(utils.UploadChunkSize)}
	if file.MimeType != "" {
		meta.MimeType = file.MimeType
		opts = append(opts, googleapi.ContentType(file.MimeType))
	}

	call := c.service.Files.Insert(meta).Media(content, opts...).Context(ctx)
	if file.Progress != nil {
		call = call.ProgressUpdater(file.Progress)
	}
	created, err := Execute(ctx, c, reqCtx, "files.insert", func() (*drive.File, error) {
		return call.Do()
	})
	if err != nil {
		return nil, err
	}
	WithFileIDs(reqCtx, created.Id)

	if file.PublicRead {
		perm := &drive.Permission{Role: utils.PublicPermissionRole, Type: utils.PublicPermissionType}
		_, err := Execute(ctx, c, reqCtx, "permissions.insert", func() (*drive.Permission, error) {
			return c.service.Permissions.Insert(created.Id, perm).Context(ctx).Do()
		})
		if err != nil {
			if delErr := c.Delete(context.WithoutCancel(ctx), reqCtx, created.Id); delErr != nil {
				c.logger.Warn("Failed to remove file after permission grant failed",
					logging.F("fileId", created.Id),
					logging.F("error", delErr.Error()),
				)
			}
			return nil, err
		}
	}
	return convertDriveFile(created), nil
}

func (c *Client) Delete(ctx context.Context, reqCtx *types.RequestContext, id string) error {
	WithFileIDs(reqCtx, id)
	_, err := Execute(ctx, c, reqCtx, "files.delete", func() (struct{}, error) {
		return struct{}{}, c.service.Files.Delete(id).Context(ctx).Do()
	})
	return err
}

func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.ClassifyCancellation(err, nil)
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return "", utils.WrapAppError(err, utils.NewCLIError(utils.ErrCodeAuthExpired, "failed to obtain access token").
			WithContext("error", err.Error()).
			Build())
	}
	return tok.AccessToken, nil
}

func convertDriveFile(f *drive.File) *types.RemoteObject {
	obj := &types.RemoteObject{
		ID:          f.Id,
		Name:        f.Title,
		MimeType:    f.MimeType,
		IsDirectory: utils.IsFolderMimeType(f.MimeType),
		Size:        f.FileSize,
		DownloadURL: f.DownloadUrl,
	}
	for _, p := range f.Parents {
		if p == nil {
			continue
		}
		obj.Parents = append(obj.Parents, p.Id)
	}
	if len(obj.Parents) > 0 {
		obj.ParentID = obj.Parents[0]
	}
	return obj
}
