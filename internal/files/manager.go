package files

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/dl-alexandre/gdsync/internal/api"
	"github.com/dl-alexandre/gdsync/internal/folders"
	"github.com/dl-alexandre/gdsync/internal/logging"
	"github.com/dl-alexandre/gdsync/internal/resolver"
	"github.com/dl-alexandre/gdsync/internal/stream"
	"github.com/dl-alexandre/gdsync/internal/types"
	"github.com/dl-alexandre/gdsync/internal/utils"
)

// SessionFactory turns a credential triple into a store session scoped to
// one operation. auth.SessionFactory is the production implementation.
type SessionFactory interface {
	NewSession(ctx context.Context, creds types.Credentials) (api.RemoteStore, error)
}

// Manager is the transfer engine. It keeps no state between calls: each
// operation opens a session, rebuilds its folder finder and resolver, and
// discards them on return.
type Manager struct {
	sessions SessionFactory
	logger   logging.Logger
}

// NewManager creates a new transfer engine
func NewManager(sessions SessionFactory, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Manager{sessions: sessions, logger: logger}
}

// UploadOptions configures a single upload
type UploadOptions struct {
	// Offset and Length select a byte window of the content. Length 0 sends
	// the whole stream.
	Offset   int64
	Length   int64
	MimeType string
	TargetID string
}

type session struct {
	store    api.RemoteStore
	reqCtx   *types.RequestContext
	logger   logging.Logger
	resolver *resolver.PathResolver
}

func (m *Manager) open(ctx context.Context, creds types.Credentials, targetID string, requestType types.RequestType) (*session, error) {
	store, err := m.sessions.NewSession(ctx, creds)
	if err != nil {
		return nil, err
	}
	reqCtx := api.NewRequestContext(targetID, requestType)
	logger := m.logger.WithTraceID(reqCtx.TraceID)
	return &session{
		store:    store,
		reqCtx:   reqCtx,
		logger:   logger,
		resolver: resolver.NewPathResolver(folders.NewManager(store, logger), logger),
	}, nil
}

// Upload stores content at pathParts under rootFolderID, replacing any
// object with the same name in the target folder. The last element of
// pathParts is the file name; missing folders are created.
func (m *Manager) Upload(ctx context.Context, content io.Reader, pathParts []string, rootFolderID string, creds types.Credentials, progress ProgressSink, opts UploadOptions) (*types.UploadResult, error) {
	if content == nil {
		return nil, utils.InvalidArgument("content", "content stream is nil")
	}
	if len(pathParts) == 0 {
		return nil, utils.InvalidArgument("pathParts", "path must contain at least a file name")
	}
	name := pathParts[len(pathParts)-1]
	if strings.TrimSpace(name) == "" {
		return nil, utils.InvalidArgument("pathParts", "file name must not be blank")
	}
	if strings.TrimSpace(rootFolderID) == "" {
		return nil, utils.InvalidArgument("rootFolderId", "root folder id must not be blank")
	}
	if opts.Offset < 0 || opts.Length < 0 {
		return nil, utils.InvalidArgument("range", "offset and length must not be negative")
	}
	if opts.Offset > 0 && opts.Length == 0 {
		return nil, utils.InvalidArgument("range", "an offset requires a length")
	}

	if opts.Length > 0 {
		window, err := stream.NewBoundedReader(content, opts.Offset, opts.Length)
		if err != nil {
			return nil, err
		}
		defer window.Close()
		content = window
	}

	s, err := m.open(ctx, creds, opts.TargetID, types.RequestTypeUpload)
	if err != nil {
		return nil, err
	}

	res, err := s.resolver.Resolve(ctx, s.reqCtx, pathParts[:len(pathParts)-1], rootFolderID, true)
	if err != nil {
		return nil, err
	}
	folderID := res.FolderID

	if err := m.removeExisting(ctx, s, name, folderID); err != nil {
		return nil, err
	}

	total := opts.Length
	if total == 0 {
		if size, ok := stream.Size(content); ok {
			total = size
		}
	}
	reporter := newProgressReporter(progress, total, s.logger)

	s.logger.Info("Uploading file",
		logging.F("name", name),
		logging.F("folderId", folderID),
		logging.F("bytes", total),
	)
	created, err := s.store.CreateFile(ctx, s.reqCtx, types.NewFile{
		Name:       name,
		ParentID:   folderID,
		MimeType:   opts.MimeType,
		PublicRead: true,
		Progress:   reporter.callback(),
	}, stream.NewContextReader(ctx, content))
	if err != nil {
		return nil, err
	}
	if reporter != nil {
		reporter.done()
	}

	stored, err := m.reresolve(ctx, s, name, folderID, created)
	if err != nil {
		return nil, err
	}

	retrievalURL, err := m.retrievalURL(ctx, s, stored)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Upload complete",
		logging.F("name", name),
		logging.F("fileId", stored.ID),
	)
	return &types.UploadResult{RemoteID: stored.ID, RetrievalURL: retrievalURL}, nil
}

// removeExisting deletes the first object called name in folderID. A
// missing object at any point of the probe is not an error.
func (m *Manager) removeExisting(ctx context.Context, s *session, name, folderID string) error {
	existing, err := api.ListAll(ctx, s.store, s.reqCtx, folders.FileQuery(name, folderID))
	if err != nil {
		if stderrors.Is(err, utils.ErrNotFound) {
			return nil
		}
		return err
	}
	if len(existing) == 0 {
		return nil
	}

	s.logger.Info("Replacing existing file",
		logging.F("name", name),
		logging.F("fileId", existing[0].ID),
	)
	if err := s.store.Delete(ctx, s.reqCtx, existing[0].ID); err != nil && !stderrors.Is(err, utils.ErrNotFound) {
		return err
	}
	return nil
}

// reresolve looks the new object up by name so the returned ID is the one a
// later listing will see. If the listing does not show it yet, the creation
// response is used.
func (m *Manager) reresolve(ctx context.Context, s *session, name, folderID string, created *types.RemoteObject) (*types.RemoteObject, error) {
	matches, err := api.ListAll(ctx, s.store, s.reqCtx, folders.FileQuery(name, folderID))
	if err != nil {
		return nil, err
	}
	for _, obj := range matches {
		if obj.ID == created.ID {
			return obj, nil
		}
	}
	if len(matches) > 0 {
		return matches[0], nil
	}
	s.logger.Warn("Uploaded file not visible in listing yet, using creation response",
		logging.F("name", name),
		logging.F("fileId", created.ID),
	)
	return created, nil
}

func (m *Manager) retrievalURL(ctx context.Context, s *session, obj *types.RemoteObject) (string, error) {
	if obj.DownloadURL == "" {
		return "", utils.NewAppError(utils.NewCLIError(utils.ErrCodeNotDownloadable,
			fmt.Sprintf("object %s has no download URL", obj.ID)).
			WithContext("fileId", obj.ID).
			WithContext("mimeType", obj.MimeType).
			Build())
	}
	token, err := s.store.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	return RetrievalURL(obj.DownloadURL, token), nil
}

// RetrievalURL appends the access token parameter to a native download URL
func RetrievalURL(downloadURL, token string) string {
	sep := "&"
	if !strings.Contains(downloadURL, "?") {
		sep = "?"
	}
	return downloadURL + sep + utils.AccessTokenParam + "=" + url.QueryEscape(token)
}

// CreateDownloadURL fetches the object by ID and returns a retrieval URL
// for it.
func (m *Manager) CreateDownloadURL(ctx context.Context, id string, creds types.Credentials) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", utils.InvalidArgument("id", "file id must not be blank")
	}
	s, err := m.open(ctx, creds, "", types.RequestTypeGetByID)
	if err != nil {
		return "", err
	}
	obj, err := s.store.Get(ctx, s.reqCtx, id)
	if err != nil {
		return "", err
	}
	return m.retrievalURL(ctx, s, obj)
}

// Delete removes the object with the given ID. The object is fetched first,
// so a missing object surfaces as FILE_NOT_FOUND.
func (m *Manager) Delete(ctx context.Context, id string, creds types.Credentials) error {
	if strings.TrimSpace(id) == "" {
		return utils.InvalidArgument("id", "file id must not be blank")
	}
	s, err := m.open(ctx, creds, "", types.RequestTypeMutation)
	if err != nil {
		return err
	}
	obj, err := s.store.Get(ctx, s.reqCtx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, s.reqCtx, obj.ID); err != nil {
		return err
	}
	s.logger.Info("Deleted file", logging.F("fileId", obj.ID), logging.F("name", obj.Name))
	return nil
}

// ListChildren returns every direct child of folderID
func (m *Manager) ListChildren(ctx context.Context, folderID string, creds types.Credentials) ([]*types.RemoteObject, error) {
	if strings.TrimSpace(folderID) == "" {
		return nil, utils.InvalidArgument("folderId", "folder id must not be blank")
	}
	s, err := m.open(ctx, creds, "", types.RequestTypeListOrSearch)
	if err != nil {
		return nil, err
	}
	return listChildren(ctx, s, folderID)
}

func listChildren(ctx context.Context, s *session, folderID string) ([]*types.RemoteObject, error) {
	children, err := api.ListAll(ctx, s.store, s.reqCtx, folders.ParentClause(folderID))
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		c.IsDirectory = utils.IsFolderMimeType(c.MimeType)
	}
	return children, nil
}

// ListPath lists the folder at pathParts under rootFolderID without creating
// anything. An empty path or a path that does not exist yields no entries.
func (m *Manager) ListPath(ctx context.Context, pathParts []string, rootFolderID string, creds types.Credentials) ([]*types.RemoteObject, error) {
	if len(pathParts) == 0 {
		return []*types.RemoteObject{}, nil
	}
	s, err := m.open(ctx, creds, "", types.RequestTypeListOrSearch)
	if err != nil {
		return nil, err
	}
	res, err := s.resolver.Resolve(ctx, s.reqCtx, pathParts, rootFolderID, false)
	if err != nil {
		return nil, err
	}
	if !res.Found {
		s.logger.Debug("Path not found", logging.F("missingSegment", res.MissingSegment))
		return []*types.RemoteObject{}, nil
	}
	return listChildren(ctx, s, res.FolderID)
}

// EnsurePath resolves pathParts under rootFolderID, creating any missing
// folder, and returns the ID of the last one.
func (m *Manager) EnsurePath(ctx context.Context, pathParts []string, rootFolderID string, creds types.Credentials) (string, error) {
	if strings.TrimSpace(rootFolderID) == "" {
		return "", utils.InvalidArgument("rootFolderId", "root folder id must not be blank")
	}
	if len(pathParts) == 0 {
		return rootFolderID, nil
	}
	s, err := m.open(ctx, creds, "", types.RequestTypeMutation)
	if err != nil {
		return "", err
	}
	res, err := s.resolver.Resolve(ctx, s.reqCtx, pathParts, rootFolderID, true)
	if err != nil {
		return "", err
	}
	if len(res.Created) > 0 {
		s.logger.Info("Created folders", logging.F("created", res.Created))
	}
	return res.FolderID, nil
}
