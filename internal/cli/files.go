package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dl-alexandre/gdsync/internal/files"
	"github.com/dl-alexandre/gdsync/internal/provider"
	"github.com/dl-alexandre/gdsync/internal/resolver"
	"github.com/dl-alexandre/gdsync/internal/types"
	"github.com/dl-alexandre/gdsync/internal/utils"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <local-file> <remote-path>",
	Short: "Upload a file",
	Long: `Upload a local file to a path under the target's root folder.

Missing folders are created. An existing file with the same name in the
destination folder is replaced. --offset and --length upload a byte window
of the local file instead of the whole file.`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

var urlCmd = &cobra.Command{
	Use:   "url <file-id>",
	Short: "Print a retrieval URL",
	Long:  "Mint a fresh retrieval URL for a file. The URL embeds a short-lived access token.",
	Args:  cobra.ExactArgs(1),
	RunE:  runURL,
}

var rmCmd = &cobra.Command{
	Use:   "rm <file-id-or-url>",
	Short: "Delete a file",
	Long:  "Delete a file by ID or by a retrieval URL previously printed by upload or url",
	Args:  cobra.ExactArgs(1),
	RunE:  runRm,
}

var lsCmd = &cobra.Command{
	Use:   "ls [remote-path]",
	Short: "List a folder",
	Long:  "List the children of a folder under the target's root. Nothing is created; a missing path lists as empty.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLs,
}

var getCmd = &cobra.Command{
	Use:   "get <file-id> <local-path>",
	Short: "Download a file",
	Long:  "Download a file through its retrieval URL. Use - as local path to write to stdout.",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

var (
	uploadOffset   int64
	uploadLength   int64
	uploadMimeType string
)

func init() {
	uploadCmd.Flags().Int64Var(&uploadOffset, "offset", 0, "Byte offset of the window to upload (requires --length)")
	uploadCmd.Flags().Int64Var(&uploadLength, "length", 0, "Number of bytes to upload")
	uploadCmd.Flags().StringVar(&uploadMimeType, "mime-type", "", "MIME type (detected by Drive when empty)")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(urlCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(getCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	sc, err := getSyncContext(out, true)
	if err != nil {
		return handleError(out, "upload", err)
	}
	defer sc.Close()

	pathParts := resolver.SplitPath(args[1])
	if len(pathParts) == 0 {
		pathParts = []string{filepath.Base(args[0])}
	} else if strings.HasSuffix(args[1], "/") {
		pathParts = append(pathParts, filepath.Base(args[0]))
	}

	f, err := os.Open(args[0])
	if err != nil {
		return handleError(out, "upload", utils.WrapAppError(err, utils.NewCLIError(utils.ErrCodeInvalidPath,
			fmt.Sprintf("cannot open %s", args[0])).
			WithContext("path", args[0]).
			Build()))
	}
	defer f.Close()

	info, err := sc.provider.SendFileWithOptions(cmd.Context(), f, pathParts, sc.target, newProgressPrinter(out, args[0]), files.UploadOptions{
		Offset:   uploadOffset,
		Length:   uploadLength,
		MimeType: uploadMimeType,
	})
	if err != nil {
		return handleError(out, "upload", err)
	}

	out.Log("Uploaded: %s", strings.Join(pathParts, "/"))
	return out.WriteSuccess("upload", info)
}

func runURL(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	sc, err := getSyncContext(out, true)
	if err != nil {
		return handleError(out, "url", err)
	}
	defer sc.Close()

	info, err := sc.provider.GetSyncedFileInfo(cmd.Context(), args[0], sc.target)
	if err != nil {
		return handleError(out, "url", err)
	}
	if flags.OutputFormat == types.OutputFormatTable {
		fmt.Fprintln(out.stdout, info.Path)
		return nil
	}
	return out.WriteSuccess("url", info)
}

func runRm(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	sc, err := getSyncContext(out, true)
	if err != nil {
		return handleError(out, "rm", err)
	}
	defer sc.Close()

	if _, err := sc.provider.DeleteFile(cmd.Context(), args[0], sc.target); err != nil {
		return handleError(out, "rm", err)
	}

	id := provider.ExtractFileID(args[0])
	out.Log("Deleted: %s", id)
	return out.WriteSuccess("rm", map[string]string{"id": id, "status": "deleted"})
}

func runLs(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	sc, err := getSyncContext(out, true)
	if err != nil {
		return handleError(out, "ls", err)
	}
	defer sc.Close()

	var remote string
	if len(args) == 1 {
		remote = args[0]
	}
	listed, err := sc.provider.GetFiles(cmd.Context(), resolver.SplitPath(remote), sc.target)
	if err != nil {
		return handleError(out, "ls", err)
	}
	return out.WriteSuccess("ls", &types.FileListResponse{Path: remote, Files: listed})
}

func runGet(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	sc, err := getSyncContext(out, true)
	if err != nil {
		return handleError(out, "get", err)
	}
	defer sc.Close()

	n, err := download(cmd.Context(), sc, args[0], args[1], out)
	if err != nil {
		return handleError(out, "get", err)
	}
	if args[1] == "-" {
		return nil
	}

	out.Log("Downloaded to: %s", args[1])
	return out.WriteSuccess("get", map[string]interface{}{"id": args[0], "path": args[1], "bytes": n})
}

func download(ctx context.Context, sc *syncContext, id, localPath string, out *OutputWriter) (int64, error) {
	body, err := sc.provider.GetFile(ctx, id, sc.target)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	var dst io.Writer = out.stdout
	if localPath != "-" {
		f, err := os.Create(localPath)
		if err != nil {
			return 0, utils.WrapAppError(err, utils.NewCLIError(utils.ErrCodeInvalidPath,
				fmt.Sprintf("cannot create %s", localPath)).
				WithContext("path", localPath).
				Build())
		}
		defer f.Close()
		dst = f
	}

	n, err := io.Copy(dst, body)
	if err != nil {
		if ctx.Err() != nil {
			return n, utils.WrapAppError(ctx.Err(), utils.NewCLIError(utils.ErrCodeCancelled, "download cancelled").Build())
		}
		return n, utils.WrapAppError(err, utils.NewCLIError(utils.ErrCodeNetworkError, "download interrupted").
			WithContext("fileId", id).
			Build())
	}
	return n, nil
}

// progressPrinter logs upload progress in whole-ten-percent steps
type progressPrinter struct {
	mu   sync.Mutex
	out  *OutputWriter
	name string
	last int
}

func newProgressPrinter(out *OutputWriter, name string) files.ProgressSink {
	if out.quiet {
		return nil
	}
	return &progressPrinter{out: out, name: name, last: -1}
}

func (p *progressPrinter) Report(percent float64) {
	step := int(percent) / 10 * 10
	p.mu.Lock()
	defer p.mu.Unlock()
	if step <= p.last {
		return
	}
	p.last = step
	p.out.Log("%s: %d%%", p.name, step)
}
