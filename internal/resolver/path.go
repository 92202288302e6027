package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/dl-alexandre/gdsync/internal/logging"
	"github.com/dl-alexandre/gdsync/internal/types"
	"github.com/dl-alexandre/gdsync/internal/utils"
)

// FolderFinder is the lookup the resolver walks with. folders.Manager
// implements it.
type FolderFinder interface {
	Find(ctx context.Context, reqCtx *types.RequestContext, name, parentID string) (*types.RemoteObject, error)
	Create(ctx context.Context, reqCtx *types.RequestContext, name, parentID string) (*types.RemoteObject, error)
}

// PathResolver maps path segments to a folder ID by walking from a root one
// segment at a time. It holds no cache: every call asks the store again.
type PathResolver struct {
	finder FolderFinder
	logger logging.Logger
}

// NewPathResolver creates a new path resolver
func NewPathResolver(finder FolderFinder, logger logging.Logger) *PathResolver {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &PathResolver{finder: finder, logger: logger}
}

// Resolve walks segments left to right starting at rootID. Each resolved ID
// becomes the parent of the next lookup.
//
// A missing segment is created when createIfMissing is set. Otherwise the
// walk stops there and the result has Found=false; later segments are never
// looked up. An empty segment list resolves to rootID without remote calls.
func (r *PathResolver) Resolve(ctx context.Context, reqCtx *types.RequestContext, segments []string, rootID string, createIfMissing bool) (*types.ResolveResult, error) {
	if strings.TrimSpace(rootID) == "" {
		return nil, utils.InvalidArgument("rootId", "root folder id must not be blank")
	}
	for i, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			return nil, utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument,
				fmt.Sprintf("path segment %d is blank", i)).
				WithContext("path", strings.Join(segments, "/")).
				Build())
		}
	}

	result := &types.ResolveResult{FolderID: rootID, Found: true}
	currentID := rootID

	for i, segment := range segments {
		folder, err := r.finder.Find(ctx, reqCtx, segment, currentID)
		if err != nil {
			return nil, err
		}

		if folder == nil {
			if !createIfMissing {
				r.logger.Debug("Path segment not found",
					logging.F("segment", segment),
					logging.F("path", strings.Join(segments[:i+1], "/")),
				)
				return &types.ResolveResult{Found: false, MissingSegment: segment}, nil
			}
			folder, err = r.finder.Create(ctx, reqCtx, segment, currentID)
			if err != nil {
				return nil, err
			}
			result.Created = append(result.Created, folder.ID)
		}

		currentID = folder.ID
	}

	result.FolderID = currentID
	return result, nil
}

// SplitPath turns "a/b/c" into its segments, dropping empty ones produced by
// leading, trailing or doubled slashes.
func SplitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s == "" || s == "." {
			continue
		}
		segments = append(segments, s)
	}
	return segments
}
