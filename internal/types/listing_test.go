package types

import "testing"

func TestTargetsListRows(t *testing.T) {
	resp := &TargetsListResponse{
		Targets: []TargetInfo{
			{ID: "photos", Name: "Photos", FolderID: "root-1", Default: true, TokenSource: "store"},
			{ID: "music", Name: "Music", FolderID: "root-2", TokenSource: "missing"},
		},
	}
	rows := resp.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][3] != "*" || rows[1][3] != "" {
		t.Fatalf("default marker wrong: %#v", rows)
	}
	if rows[1][4] != "missing" {
		t.Fatalf("unexpected row: %#v", rows[1])
	}
}

func TestFileListRows(t *testing.T) {
	resp := &FileListResponse{
		Path: "2024/trip",
		Files: []*RemoteObject{
			{ID: "d1", Name: "raw", IsDirectory: true},
			{ID: "f1", Name: "a.jpg", Size: 2048},
		},
	}
	rows := resp.Rows()
	if rows[0][2] != "folder" || rows[0][3] != "-" {
		t.Fatalf("unexpected folder row: %#v", rows[0])
	}
	if rows[1][2] != "file" || rows[1][3] != "2048" {
		t.Fatalf("unexpected file row: %#v", rows[1])
	}
	if msg := (&FileListResponse{Path: "x"}).EmptyMessage(); msg != "No files found in x" {
		t.Fatalf("unexpected empty message %q", msg)
	}
}

func TestPushResultRows(t *testing.T) {
	resp := &PushResult{
		Uploaded: []PushedFile{{RemotePath: "a/b.jpg", RemoteID: "id1"}},
		Failed:   []PushedFile{{RemotePath: "a/c.jpg", Error: "boom"}},
	}
	rows := resp.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][2] != "uploaded" || rows[1][2] != "failed: boom" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}
