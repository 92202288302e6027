package cli

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	gosync "sync"

	"github.com/dl-alexandre/gdsync/internal/files"
	"github.com/dl-alexandre/gdsync/internal/logging"
	"github.com/dl-alexandre/gdsync/internal/resolver"
	"github.com/dl-alexandre/gdsync/internal/types"
	"github.com/dl-alexandre/gdsync/internal/utils"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
)

var pushCmd = &cobra.Command{
	Use:   "push <local-dir> <remote-dir>",
	Short: "Upload a directory tree",
	Long: `Upload every regular file below a local directory to the same relative
path under a remote folder. Dot files are skipped.

Remote folders are created one at a time before the uploads start, then
files are uploaded in parallel.`,
	Args: cobra.ExactArgs(2),
	RunE: runPush,
}

var pushWorkers int

func init() {
	pushCmd.Flags().IntVar(&pushWorkers, "workers", 0, "Parallel uploads (default from config)")
	rootCmd.AddCommand(pushCmd)
}

// pushSender is the part of the provider push drives
type pushSender interface {
	EnsureFolder(ctx context.Context, dirPathParts []string, target types.SyncTarget) (string, error)
	SendFile(ctx context.Context, content io.Reader, pathParts []string, target types.SyncTarget, progress files.ProgressSink) (*types.SyncedFileInfo, error)
}

type pushItem struct {
	localPath  string
	remotePath []string
}

func runPush(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	workers := pushWorkers
	if workers <= 0 {
		workers = cfg.UploadWorkers
	}

	items, err := planPush(args[0], resolver.SplitPath(args[1]))
	if err != nil {
		return handleError(out, "push", err)
	}

	sc, err := getSyncContext(out, true)
	if err != nil {
		return handleError(out, "push", err)
	}
	defer sc.Close()

	result, err := push(cmd.Context(), sc.provider, sc.target, items, workers, GetLogger())
	if err != nil {
		return handleError(out, "push", err)
	}

	out.Log("Pushed %d file(s), %d failed", len(result.Uploaded), len(result.Failed))
	if len(result.Failed) > 0 {
		out.AddWarning("PUSH_INCOMPLETE", "some files failed to upload", "warning")
	}
	return out.WriteSuccess("push", result)
}

// planPush lists the regular files below localDir in lexical order. Local
// names are NFC-normalized so macOS decomposed names match what Drive shows.
func planPush(localDir string, remoteDir []string) ([]pushItem, error) {
	info, err := os.Stat(localDir)
	if err != nil || !info.IsDir() {
		return nil, utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidPath,
			"local path is not a directory").
			WithContext("path", localDir).
			Build())
	}

	var items []pushItem
	err = filepath.WalkDir(localDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != localDir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		segments := strings.Split(filepath.ToSlash(rel), "/")
		remote := make([]string, 0, len(remoteDir)+len(segments))
		remote = append(remote, remoteDir...)
		for _, s := range segments {
			remote = append(remote, norm.NFC.String(s))
		}
		items = append(items, pushItem{localPath: path, remotePath: remote})
		return nil
	})
	if err != nil {
		return nil, utils.WrapAppError(err, utils.NewCLIError(utils.ErrCodeInvalidPath,
			"failed to scan local directory").
			WithContext("path", localDir).
			Build())
	}
	return items, nil
}

// folderChains returns each distinct parent folder chain of items, sorted
func folderChains(items []pushItem) [][]string {
	seen := make(map[string][]string)
	for _, it := range items {
		dir := it.remotePath[:len(it.remotePath)-1]
		if len(dir) == 0 {
			continue
		}
		seen[strings.Join(dir, "/")] = dir
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	chains := make([][]string, 0, len(keys))
	for _, k := range keys {
		chains = append(chains, seen[k])
	}
	return chains
}

// push creates every folder chain sequentially, so parallel uploads never
// race to create the same folder, then uploads with at most workers in
// flight. Per-file failures are collected; cancellation and missing
// credentials stop the push.
func push(ctx context.Context, sender pushSender, target types.SyncTarget, items []pushItem, workers int, logger logging.Logger) (*types.PushResult, error) {
	result := &types.PushResult{Uploaded: []types.PushedFile{}, Failed: []types.PushedFile{}}

	for _, chain := range folderChains(items) {
		if _, err := sender.EnsureFolder(ctx, chain, target); err != nil {
			return nil, err
		}
		result.Folders++
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu gosync.Mutex
	for _, it := range items {
		g.Go(func() error {
			pushed := types.PushedFile{LocalPath: it.localPath, RemotePath: strings.Join(it.remotePath, "/")}
			id, err := sendOne(gctx, sender, target, it)
			if err != nil {
				if isFatalPushError(err) {
					return err
				}
				logger.Warn("push: upload failed",
					logging.F("path", pushed.RemotePath),
					logging.F("error", err.Error()),
				)
				pushed.Error = err.Error()
				mu.Lock()
				result.Failed = append(result.Failed, pushed)
				mu.Unlock()
				return nil
			}

			pushed.RemoteID = id
			mu.Lock()
			result.Uploaded = append(result.Uploaded, pushed)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(result.Uploaded, func(i, j int) bool { return result.Uploaded[i].RemotePath < result.Uploaded[j].RemotePath })
	sort.Slice(result.Failed, func(i, j int) bool { return result.Failed[i].RemotePath < result.Failed[j].RemotePath })
	return result, nil
}

func sendOne(ctx context.Context, sender pushSender, target types.SyncTarget, it pushItem) (string, error) {
	f, err := os.Open(it.localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := sender.SendFile(ctx, f, it.remotePath, target, nil)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func isFatalPushError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, utils.ErrCancelled) {
		return true
	}
	switch utils.ErrorCode(err) {
	case utils.ErrCodeAuthRequired, utils.ErrCodeAuthExpired:
		return true
	}
	return false
}
