package types

import (
	"fmt"
	"strconv"
)

// TargetsListResponse is the result of `targets`
type TargetsListResponse struct {
	Targets []TargetInfo `json:"targets"`
}

// TargetInfo is one configured account as shown to users
type TargetInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FolderID string `json:"folderId"`
	Default  bool   `json:"default"`
	// TokenSource is "config", "store" or "missing"
	TokenSource string `json:"tokenSource"`
}

func (r *TargetsListResponse) Headers() []string {
	return []string{"ID", "Name", "Root Folder", "Default", "Token"}
}

func (r *TargetsListResponse) Rows() [][]string {
	rows := make([][]string, len(r.Targets))
	for i, t := range r.Targets {
		def := ""
		if t.Default {
			def = "*"
		}
		rows[i] = []string{t.ID, t.Name, t.FolderID, def, t.TokenSource}
	}
	return rows
}

func (r *TargetsListResponse) EmptyMessage() string {
	return "No sync targets configured"
}

// FileListResponse is the result of `ls`
type FileListResponse struct {
	Path  string          `json:"path"`
	Files []*RemoteObject `json:"files"`
}

func (r *FileListResponse) Headers() []string {
	return []string{"ID", "Name", "Type", "Size"}
}

func (r *FileListResponse) Rows() [][]string {
	rows := make([][]string, len(r.Files))
	for i, f := range r.Files {
		kind := "file"
		size := strconv.FormatInt(f.Size, 10)
		if f.IsDirectory {
			kind = "folder"
			size = "-"
		}
		rows[i] = []string{f.ID, f.Name, kind, size}
	}
	return rows
}

func (r *FileListResponse) EmptyMessage() string {
	if r.Path == "" {
		return "No files found"
	}
	return fmt.Sprintf("No files found in %s", r.Path)
}

// PushResult summarizes a directory push
type PushResult struct {
	Uploaded []PushedFile `json:"uploaded"`
	Failed   []PushedFile `json:"failed"`
	Folders  int          `json:"foldersEnsured"`
}

// PushedFile is one file of a push
type PushedFile struct {
	LocalPath  string `json:"localPath"`
	RemotePath string `json:"remotePath"`
	RemoteID   string `json:"remoteId,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (r *PushResult) Headers() []string {
	return []string{"Remote Path", "ID", "Status"}
}

func (r *PushResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.Uploaded)+len(r.Failed))
	for _, f := range r.Uploaded {
		rows = append(rows, []string{f.RemotePath, f.RemoteID, "uploaded"})
	}
	for _, f := range r.Failed {
		rows = append(rows, []string{f.RemotePath, "-", "failed: " + f.Error})
	}
	return rows
}

func (r *PushResult) EmptyMessage() string {
	return "Nothing to push"
}
