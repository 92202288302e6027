// Package provider adapts the transfer engine to a host that thinks in
// sync targets rather than credentials and folder IDs.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dl-alexandre/gdsync/internal/config"
	"github.com/dl-alexandre/gdsync/internal/files"
	"github.com/dl-alexandre/gdsync/internal/journal"
	"github.com/dl-alexandre/gdsync/internal/logging"
	"github.com/dl-alexandre/gdsync/internal/stream"
	"github.com/dl-alexandre/gdsync/internal/types"
	"github.com/dl-alexandre/gdsync/internal/utils"
	"github.com/go-resty/resty/v2"
)

const (
	// Name is the provider name reported to hosts
	Name = "GoogleDrive"
	// ProtocolHTTP marks retrieval URLs that are fetched with a plain GET
	ProtocolHTTP = "Http"
)

// Engine is the subset of files.Manager the provider drives
type Engine interface {
	Upload(ctx context.Context, content io.Reader, pathParts []string, rootFolderID string, creds types.Credentials, progress files.ProgressSink, opts files.UploadOptions) (*types.UploadResult, error)
	CreateDownloadURL(ctx context.Context, id string, creds types.Credentials) (string, error)
	Delete(ctx context.Context, id string, creds types.Credentials) error
	ListChildren(ctx context.Context, folderID string, creds types.Credentials) ([]*types.RemoteObject, error)
	ListPath(ctx context.Context, pathParts []string, rootFolderID string, creds types.Credentials) ([]*types.RemoteObject, error)
	EnsurePath(ctx context.Context, pathParts []string, rootFolderID string, creds types.Credentials) (string, error)
}

// TokenLoader returns the refresh token stored for a sync target
type TokenLoader interface {
	LoadRefreshToken(targetID string) (string, error)
}

// Recorder appends transfer history
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) (int64, error)
}

// Provider maps sync targets onto the transfer engine
type Provider struct {
	cfg     *config.Config
	tokens  TokenLoader
	engine  Engine
	journal Recorder
	http    *resty.Client
	logger  logging.Logger
}

// Options configures optional provider collaborators
type Options struct {
	Tokens  TokenLoader
	Journal Recorder
	// Transport is used for raw GETs of retrieval URLs
	Transport http.RoundTripper
	Timeout   time.Duration
	Logger    logging.Logger
}

// New creates a new provider
func New(cfg *config.Config, engine Engine, opts Options) *Provider {
	if opts.Logger == nil {
		opts.Logger = logging.NewNoOpLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = cfg.GetRequestTimeout()
	}
	cli := resty.New().SetTimeout(opts.Timeout)
	if opts.Transport != nil {
		cli.SetTransport(opts.Transport)
	}
	return &Provider{
		cfg:     cfg,
		tokens:  opts.Tokens,
		engine:  engine,
		journal: opts.Journal,
		http:    cli,
		logger:  opts.Logger,
	}
}

func (p *Provider) Name() string { return Name }

// SupportsRemoteSync is always true: targets are remote accounts
func (p *Provider) SupportsRemoteSync() bool { return true }

// AllSyncTargets lists every configured account
func (p *Provider) AllSyncTargets() []types.SyncTarget {
	return toTargets(p.cfg.SyncAccounts())
}

// SyncTargets lists the accounts userID may sync to
func (p *Provider) SyncTargets(userID string) []types.SyncTarget {
	return toTargets(p.cfg.UserSyncAccounts(userID))
}

func toTargets(accounts []config.SyncAccount) []types.SyncTarget {
	targets := make([]types.SyncTarget, 0, len(accounts))
	for _, a := range accounts {
		targets = append(targets, a.Target())
	}
	return targets
}

func (p *Provider) account(target types.SyncTarget) (config.SyncAccount, error) {
	account, ok := p.cfg.SyncAccount(target.ID)
	if !ok {
		return config.SyncAccount{}, utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("unknown sync target '%s'", target.ID)).
			WithContext("target", target.ID).
			Build())
	}
	return account, nil
}

// Credentials assembles the credential triple for target. The account's
// own refresh token wins over the token store.
func (p *Provider) Credentials(target types.SyncTarget) (types.Credentials, error) {
	account, err := p.account(target)
	if err != nil {
		return types.Credentials{}, err
	}
	return p.credentials(account)
}

func (p *Provider) credentials(account config.SyncAccount) (types.Credentials, error) {
	creds := types.Credentials{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		RefreshToken: account.RefreshToken,
	}
	if creds.RefreshToken == "" {
		if p.tokens == nil {
			return types.Credentials{}, utils.NewAppError(utils.NewCLIError(utils.ErrCodeAuthRequired,
				fmt.Sprintf("no refresh token configured for target '%s'", account.ID)).
				WithContext("target", account.ID).
				Build())
		}
		token, err := p.tokens.LoadRefreshToken(account.ID)
		if err != nil {
			return types.Credentials{}, err
		}
		creds.RefreshToken = token
	}
	return creds, nil
}

// SendFile uploads content to pathParts under the target's root folder and
// reports where it can be fetched from.
func (p *Provider) SendFile(ctx context.Context, content io.Reader, pathParts []string, target types.SyncTarget, progress files.ProgressSink) (*types.SyncedFileInfo, error) {
	return p.SendFileWithOptions(ctx, content, pathParts, target, progress, files.UploadOptions{})
}

// SendFileWithOptions is SendFile with a byte window and MIME type
func (p *Provider) SendFileWithOptions(ctx context.Context, content io.Reader, pathParts []string, target types.SyncTarget, progress files.ProgressSink, opts files.UploadOptions) (*types.SyncedFileInfo, error) {
	account, err := p.account(target)
	if err != nil {
		return nil, err
	}
	creds, err := p.credentials(account)
	if err != nil {
		return nil, err
	}

	size := opts.Length
	if size == 0 {
		size, _ = stream.Size(content)
	}
	opts.TargetID = account.ID
	res, err := p.engine.Upload(ctx, content, pathParts, account.FolderID, creds, progress, opts)
	entry := journal.Entry{
		TargetID:  account.ID,
		Operation: journal.OpUpload,
		Path:      FullPath(pathParts),
		Bytes:     size,
		Succeeded: err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
		p.record(ctx, entry)
		return nil, err
	}
	entry.RemoteID = res.RemoteID
	p.record(ctx, entry)

	return &types.SyncedFileInfo{ID: res.RemoteID, Path: res.RetrievalURL, Protocol: ProtocolHTTP}, nil
}

// EnsureFolder creates the folder chain dirPathParts under the target's
// root and returns the ID of its last folder.
func (p *Provider) EnsureFolder(ctx context.Context, dirPathParts []string, target types.SyncTarget) (string, error) {
	account, err := p.account(target)
	if err != nil {
		return "", err
	}
	creds, err := p.credentials(account)
	if err != nil {
		return "", err
	}
	return p.engine.EnsurePath(ctx, dirPathParts, account.FolderID, creds)
}

// GetSyncedFileInfo mints a fresh retrieval URL for id
func (p *Provider) GetSyncedFileInfo(ctx context.Context, id string, target types.SyncTarget) (*types.SyncedFileInfo, error) {
	creds, err := p.Credentials(target)
	if err != nil {
		return nil, err
	}
	u, err := p.engine.CreateDownloadURL(ctx, id, creds)
	if err != nil {
		return nil, err
	}
	return &types.SyncedFileInfo{ID: id, Path: u, Protocol: ProtocolHTTP}, nil
}

// DeleteFile removes the object named by a file ID or by a URL previously
// returned from SendFile. Failures are logged and reported as false.
func (p *Provider) DeleteFile(ctx context.Context, pathOrURL string, target types.SyncTarget) (bool, error) {
	id := ExtractFileID(pathOrURL)
	creds, err := p.Credentials(target)
	if err != nil {
		p.logger.Error("Delete failed", logging.F("target", target.ID), logging.F("error", err.Error()))
		return false, err
	}

	err = p.engine.Delete(ctx, id, creds)
	entry := journal.Entry{
		TargetID:  target.ID,
		Operation: journal.OpDelete,
		Path:      id,
		RemoteID:  id,
		Succeeded: err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
		p.record(ctx, entry)
		p.logger.Error("Delete failed",
			logging.F("target", target.ID),
			logging.F("fileId", id),
			logging.F("error", err.Error()),
		)
		return false, err
	}
	p.record(ctx, entry)
	return true, nil
}

// GetFile streams the content of id. The caller closes the reader.
func (p *Provider) GetFile(ctx context.Context, id string, target types.SyncTarget) (io.ReadCloser, error) {
	info, err := p.GetSyncedFileInfo(ctx, id, target)
	if err != nil {
		return nil, err
	}

	resp, err := p.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(info.Path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, utils.WrapAppError(ctx.Err(), utils.NewCLIError(utils.ErrCodeCancelled, "download cancelled").Build())
		}
		return nil, utils.WrapAppError(err, utils.NewCLIError(utils.ErrCodeNetworkError, "download request failed").
			WithContext("fileId", id).
			Build())
	}
	if err := mapHTTPError(resp, id); err != nil {
		_ = resp.RawBody().Close()
		return nil, err
	}
	return resp.RawBody(), nil
}

func mapHTTPError(resp *resty.Response, id string) error {
	status := resp.StatusCode()
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		return nil
	}

	code := utils.ErrCodeNetworkError
	switch status {
	case http.StatusUnauthorized:
		code = utils.ErrCodeAuthExpired
	case http.StatusForbidden:
		code = utils.ErrCodePermissionDenied
	case http.StatusNotFound:
		code = utils.ErrCodeFileNotFound
	case http.StatusTooManyRequests:
		code = utils.ErrCodeRateLimited
	}
	return utils.NewAppError(utils.NewCLIError(code, fmt.Sprintf("download returned http %d", status)).
		WithHTTPStatus(status).
		WithContext("fileId", id).
		Build())
}

// GetFiles lists the folder at dirPathParts under the target's root
func (p *Provider) GetFiles(ctx context.Context, dirPathParts []string, target types.SyncTarget) ([]*types.RemoteObject, error) {
	account, err := p.account(target)
	if err != nil {
		return nil, err
	}
	creds, err := p.credentials(account)
	if err != nil {
		return nil, err
	}
	if len(dirPathParts) == 0 {
		return p.engine.ListChildren(ctx, account.FolderID, creds)
	}
	return p.engine.ListPath(ctx, dirPathParts, account.FolderID, creds)
}

// GetAllFiles lists the target's root folder
func (p *Provider) GetAllFiles(ctx context.Context, target types.SyncTarget) ([]*types.RemoteObject, error) {
	return p.GetFiles(ctx, nil, target)
}

// FullPath joins path segments with '/'
func FullPath(parts []string) string {
	return strings.Join(parts, "/")
}

// ExtractFileID returns the file ID carried by a retrieval URL: its id
// query parameter, else its last path segment. Anything that is not a URL
// is taken to be an ID already.
func ExtractFileID(pathOrURL string) string {
	u, err := url.Parse(pathOrURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return pathOrURL
	}
	if id := u.Query().Get("id"); id != "" {
		return id
	}
	segments := strings.Split(strings.TrimRight(u.Path, "/"), "/")
	if last := segments[len(segments)-1]; last != "" {
		return last
	}
	return pathOrURL
}

func (p *Provider) record(ctx context.Context, e journal.Entry) {
	if p.journal == nil {
		return
	}
	if _, err := p.journal.Record(context.WithoutCancel(ctx), e); err != nil {
		p.logger.Warn("Failed to record transfer", logging.F("error", err.Error()))
	}
}
